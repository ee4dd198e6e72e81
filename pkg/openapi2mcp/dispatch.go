// dispatch.go
package openapi2mcp

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/google/uuid"
	"github.com/spf13/cast"
	"github.com/yosida95/uritemplate/v3"
	"go.uber.org/zap"

	"github.com/ubermorgenland/openapi-mcp-server/pkg/client"
	"github.com/ubermorgenland/openapi-mcp-server/pkg/config"
)

// Backend executes a built request on behalf of an operation.
// *client.Client is the production implementation.
type Backend interface {
	Call(ctx context.Context, operationID string, req *client.Request) (*client.Response, error)
}

// Dispatcher turns validated tool input into backend requests.
//
// It holds no per-call state and may be used from many goroutines.
type Dispatcher struct {
	backend Backend
	cfg     *config.ServerConfig
	logger  *zap.Logger
}

// NewDispatcher creates a Dispatcher sending requests to cfg.BaseURL.
func NewDispatcher(backend Backend, cfg *config.ServerConfig, logger *zap.Logger) *Dispatcher {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Dispatcher{
		backend: backend,
		cfg:     cfg,
		logger:  logger.With(zap.String("component", "dispatcher")),
	}
}

// Execute builds and sends the request for op and formats the outcome.
// It never panics and never returns a Go error: every failure is reported as
// a ToolResult with IsError set.
func (d *Dispatcher) Execute(ctx context.Context, operationID string, args map[string]any, op *OpenAPIOperation) (result ToolResult) {
	logger := d.logger.With(
		zap.String("operation_id", operationID),
		zap.String("request_id", uuid.NewString()))

	defer func() {
		if r := recover(); r != nil {
			logger.Error("recovered panic while executing operation", zap.Any("panic", r))
			result = FormatFailure(r)
		}
	}()

	req, err := d.BuildRequest(op, args)
	if err != nil {
		logger.Warn("failed to build request", zap.Error(err))
		return FormatFailure(err)
	}

	logger.Debug("dispatching request", zap.String("method", req.Method), zap.String("url", req.URL))
	resp, err := d.backend.Call(ctx, operationID, req)
	if err != nil {
		logger.Warn("operation failed", zap.Error(err))
		return FormatFailure(err)
	}
	if resp == nil {
		return FormatSuccess(nil)
	}
	return FormatSuccess(resp.Data)
}

// BuildRequest reconstructs the HTTP request for op from grouped tool input.
//
// Values are looked up in their location group (pathParameters, ...) first
// and then at the top level of args. The URL always starts with the
// configured base URL.
func (d *Dispatcher) BuildRequest(op *OpenAPIOperation, args map[string]any) (*client.Request, error) {
	if op == nil {
		return nil, fmt.Errorf("operation not found")
	}
	if op.Webhook {
		return nil, fmt.Errorf("operation %s is a webhook and cannot be called", op.OperationID)
	}
	if args == nil {
		args = map[string]any{}
	}

	path, err := d.substitutePath(op, args)
	if err != nil {
		return nil, err
	}

	query := url.Values{}
	for _, p := range op.ParametersIn(openapi3.ParameterInQuery) {
		v, ok := lookupArg(args, KeyQueryParameters, p.Name)
		if !ok {
			continue
		}
		for _, item := range queryValues(v) {
			query.Add(p.Name, item)
		}
	}

	header := http.Header{}
	for _, p := range op.ParametersIn(openapi3.ParameterInHeader) {
		if IsExcludedHeader(p.Name) {
			continue
		}
		v, ok := lookupArg(args, KeyHeaderParameters, p.Name)
		if !ok {
			continue
		}
		header.Set(p.Name, strings.Join(queryValues(v), ","))
	}

	body, contentType, err := encodeBody(op, args)
	if err != nil {
		return nil, err
	}
	if contentType != "" {
		header.Set("Content-Type", contentType)
	}

	u := strings.TrimRight(d.cfg.BaseURL, "/") + path
	if len(query) > 0 {
		u += "?" + query.Encode()
	}

	return &client.Request{
		Method: strings.ToUpper(op.Method),
		URL:    u,
		Header: header,
		Body:   body,
	}, nil
}

func (d *Dispatcher) substitutePath(op *OpenAPIOperation, args map[string]any) (string, error) {
	path := op.Path
	for _, p := range op.ParametersIn(openapi3.ParameterInPath) {
		v, ok := lookupArg(args, KeyPathParameters, p.Name)
		if !ok {
			continue
		}
		encoded, err := encodePathValue(stringify(v))
		if err != nil {
			return "", fmt.Errorf("failed to encode path parameter %q: %w", p.Name, err)
		}
		path = strings.ReplaceAll(path, "{"+p.Name+"}", encoded)
	}

	// Leftover placeholders are sent as-is; the backend rejects them if needed.
	if tmpl, err := uritemplate.New(path); err == nil {
		if names := tmpl.Varnames(); len(names) > 0 {
			d.logger.Debug("path placeholders left unresolved",
				zap.String("operation_id", op.OperationID),
				zap.Strings("placeholders", names))
		}
	}
	return path, nil
}

var pathValueTemplate = uritemplate.MustNew("{value}")

// encodePathValue percent-encodes everything but unreserved characters.
func encodePathValue(s string) (string, error) {
	return pathValueTemplate.Expand(uritemplate.Values{"value": uritemplate.String(s)})
}

// lookupArg finds a parameter value. Null values count as absent.
func lookupArg(args map[string]any, group, name string) (any, bool) {
	if g, ok := args[group].(map[string]any); ok {
		for _, key := range []string{escapeParameterName(name), name} {
			if v, ok := g[key]; ok && v != nil {
				return v, true
			}
		}
	}
	if v, ok := args[name]; ok && v != nil {
		return v, true
	}
	return nil, false
}

// queryValues expands sequences into one value per element.
func queryValues(v any) []string {
	switch items := v.(type) {
	case []any:
		out := make([]string, 0, len(items))
		for _, item := range items {
			out = append(out, stringify(item))
		}
		return out
	case []string:
		return items
	}
	if items, err := cast.ToStringSliceE(v); err == nil && isStructured(v) {
		return items
	}
	return []string{stringify(v)}
}

// encodeBody serializes the requestBody argument according to the media type
// the tool's body was compiled from.
func encodeBody(op *OpenAPIOperation, args map[string]any) ([]byte, string, error) {
	v, ok := args[KeyRequestBody]
	if !ok || v == nil {
		return nil, "", nil
	}

	mediaType := jsonMediaType
	if op.RequestBody != nil && op.RequestBody.Value != nil && len(op.RequestBody.Value.Content) > 0 {
		mediaType = preferredMediaType(op.RequestBody.Value.Content)
	}

	switch {
	case mediaType == "application/x-www-form-urlencoded":
		if fields, ok := v.(map[string]any); ok {
			form := url.Values{}
			for k, fv := range fields {
				for _, item := range queryValues(fv) {
					form.Add(k, item)
				}
			}
			return []byte(form.Encode()), mediaType, nil
		}
	case !isJSONMediaType(mediaType):
		if s, ok := v.(string); ok {
			return []byte(s), mediaType, nil
		}
	}

	b, err := json.Marshal(v)
	if err != nil {
		return nil, "", fmt.Errorf("failed to encode request body: %w", err)
	}
	if isJSONMediaType(mediaType) {
		return b, mediaType, nil
	}
	return b, jsonMediaType, nil
}

func isJSONMediaType(mt string) bool {
	return mt == jsonMediaType || strings.HasSuffix(mt, "+json")
}
