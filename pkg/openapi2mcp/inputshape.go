// inputshape.go
package openapi2mcp

import (
	"fmt"
	"strings"

	"github.com/getkin/kin-openapi/openapi3"
	"go.uber.org/zap"

	"github.com/ubermorgenland/openapi-mcp-server/pkg/schema"
)

// Top-level keys of every tool input.
const (
	KeyPathParameters   = "pathParameters"
	KeyQueryParameters  = "queryParameters"
	KeyHeaderParameters = "headerParameters"
	KeyRequestBody      = "requestBody"
)

const jsonMediaType = "application/json"

// excludedHeaders are never exposed as tool input; the transport manages them
// or they carry credentials.
var excludedHeaders = map[string]bool{
	"authorization": true,
	"content-type":  true,
	"accept":        true,
}

// IsExcludedHeader reports whether a header parameter is hidden from tool input.
func IsExcludedHeader(name string) bool {
	return excludedHeaders[strings.ToLower(name)]
}

// Field is one parameter inside a ParameterGroup.
type Field struct {
	// Name is the parameter name as declared in the document.
	Name string
	// Key is the property name in the input schema; see escapeParameterName.
	Key         string
	Description string
	Required    bool
	Type        schema.Descriptor
}

// ParameterGroup collects the parameters of one location.
type ParameterGroup struct {
	Description string
	Required    bool
	Fields      []Field
}

// Lookup returns the field stored under key.
func (g *ParameterGroup) Lookup(key string) (Field, bool) {
	if g == nil {
		return Field{}, false
	}
	for _, f := range g.Fields {
		if f.Key == key {
			return f, true
		}
	}
	return Field{}, false
}

// BodyField is the compiled request body.
type BodyField struct {
	Description string
	Required    bool
	MediaType   string
	Type        schema.Descriptor
}

// InputShape is the grouped input of a tool. Nil groups are absent.
type InputShape struct {
	PathParameters   *ParameterGroup
	QueryParameters  *ParameterGroup
	HeaderParameters *ParameterGroup
	RequestBody      *BodyField
}

// JSONSchema renders the shape as a JSON Schema object. Definitions for
// recursive schemas are collected at the root.
func (s InputShape) JSONSchema() map[string]any {
	r := schema.NewRenderer()
	props := map[string]any{}
	var required []string

	addGroup := func(key string, g *ParameterGroup) {
		if g == nil {
			return
		}
		props[key] = renderGroup(r, g)
		if g.Required {
			required = append(required, key)
		}
	}
	addGroup(KeyPathParameters, s.PathParameters)
	addGroup(KeyQueryParameters, s.QueryParameters)
	addGroup(KeyHeaderParameters, s.HeaderParameters)

	if s.RequestBody != nil {
		body := r.Render(s.RequestBody.Type)
		if s.RequestBody.Description != "" {
			body["description"] = s.RequestBody.Description
		}
		props[KeyRequestBody] = body
		if s.RequestBody.Required {
			required = append(required, KeyRequestBody)
		}
	}

	out := map[string]any{
		"type":       "object",
		"properties": props,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	if defs := r.Definitions(); defs != nil {
		out["definitions"] = defs
	}
	return out
}

func renderGroup(r *schema.Renderer, g *ParameterGroup) map[string]any {
	props := make(map[string]any, len(g.Fields))
	var required []string
	for _, f := range g.Fields {
		p := r.Render(f.Type)
		if f.Description != "" {
			p["description"] = f.Description
		}
		props[f.Key] = p
		if f.Required {
			required = append(required, f.Key)
		}
	}
	out := map[string]any{
		"type":        "object",
		"description": g.Description,
		"properties":  props,
	}
	if len(required) > 0 {
		out["required"] = required
	}
	return out
}

// BuildInputShape compiles an operation's parameters and request body into an
// InputShape. It never fails: unusable schemas become Unconstrained and are
// reported in the returned diagnostics, which are also logged.
//
// Example usage:
//
//	shape, diags := openapi2mcp.BuildInputShape(op, compiler, logger)
//	for _, d := range diags {
//		fmt.Println(d)
//	}
//	inputSchema := shape.JSONSchema()
func BuildInputShape(op *OpenAPIOperation, compiler *schema.Compiler, logger *zap.Logger) (InputShape, []string) {
	if logger == nil {
		logger = zap.NewNop()
	}
	a := &assembler{
		op:       op,
		compiler: compiler,
		logger:   logger.With(zap.String("component", "assembler"), zap.String("operation_id", op.OperationID)),
	}
	return a.build(), a.diagnostics
}

type assembler struct {
	op          *OpenAPIOperation
	compiler    *schema.Compiler
	logger      *zap.Logger
	diagnostics []string
}

func (a *assembler) diag(msg string, fields ...zap.Field) {
	a.diagnostics = append(a.diagnostics, msg)
	a.logger.Warn(msg, fields...)
}

func (a *assembler) build() InputShape {
	var (
		shape               InputShape
		path, query, header []Field
		queryReq, headerReq bool
	)

	seen := map[string]string{}
	for _, ref := range a.op.Parameters {
		if ref == nil || ref.Value == nil || ref.Value.Name == "" {
			continue
		}
		p := ref.Value
		if p.In == openapi3.ParameterInPath || p.In == openapi3.ParameterInQuery || p.In == openapi3.ParameterInHeader {
			slot := p.In + "\x00" + escapeParameterName(p.Name)
			if first, dup := seen[slot]; dup {
				a.diag(fmt.Sprintf("%s parameter %q maps to the same argument as %q; ignoring it", p.In, p.Name, first),
					zap.String("parameter", p.Name))
				continue
			}
			seen[slot] = p.Name
		}
		switch p.In {
		case openapi3.ParameterInPath:
			f := a.field(p)
			f.Required = true
			path = append(path, f)
		case openapi3.ParameterInQuery:
			f := a.field(p)
			query = append(query, f)
			queryReq = queryReq || f.Required
		case openapi3.ParameterInHeader:
			if IsExcludedHeader(p.Name) {
				continue
			}
			f := a.field(p)
			header = append(header, f)
			headerReq = headerReq || f.Required
		}
		// Cookie parameters are never surfaced.
	}

	if len(path) > 0 {
		shape.PathParameters = &ParameterGroup{
			Description: "Parameters required in the URL path.",
			Required:    true,
			Fields:      path,
		}
	}
	if len(query) > 0 {
		shape.QueryParameters = &ParameterGroup{
			Description: "Parameters provided in the query string.",
			Required:    queryReq,
			Fields:      query,
		}
	}
	if len(header) > 0 {
		shape.HeaderParameters = &ParameterGroup{
			Description: "Allowed parameters provided in the request headers (excluding common auth/content headers).",
			Required:    headerReq,
			Fields:      header,
		}
	}

	shape.RequestBody = a.body()
	return shape
}

func (a *assembler) field(p *openapi3.Parameter) Field {
	f := Field{
		Name:        p.Name,
		Key:         escapeParameterName(p.Name),
		Description: p.Description,
		Required:    p.Required,
	}

	ref := p.Schema
	if ref == nil && len(p.Content) > 0 {
		mt := firstMediaType(p.Content)
		if media := p.Content[mt]; media != nil {
			ref = media.Schema
		}
		a.logger.Debug("using content schema for parameter",
			zap.String("parameter", p.Name), zap.String("media_type", mt))
	}
	if ref == nil {
		a.diag(fmt.Sprintf("parameter %q has neither schema nor content; accepting any value", p.Name),
			zap.String("parameter", p.Name))
		f.Type = schema.Unconstrained{}
		return f
	}

	f.Type = a.compile(ref, fmt.Sprintf("parameter %q", p.Name))
	return f
}

func (a *assembler) body() *BodyField {
	if a.op.RequestBody == nil || a.op.RequestBody.Value == nil {
		return nil
	}
	rb := a.op.RequestBody.Value
	if len(rb.Content) == 0 {
		a.diag("skipping request body: no media type declared")
		return nil
	}

	mt := preferredMediaType(rb.Content)
	if mt != jsonMediaType {
		a.diag(fmt.Sprintf("request body media type %q not found; falling back to %q", jsonMediaType, mt),
			zap.String("media_type", mt))
	}
	media := rb.Content[mt]
	if media == nil || media.Schema == nil {
		a.diag(fmt.Sprintf("skipping request body: media type %q has no schema", mt),
			zap.String("media_type", mt))
		return nil
	}

	d := a.compile(media.Schema, "request body")
	description := rb.Description
	if description == "" && media.Schema.Value != nil {
		description = media.Schema.Value.Description
	}
	if description == "" {
		description = "The request body."
	}
	return &BodyField{
		Description: description,
		Required:    rb.Required,
		MediaType:   mt,
		Type:        d,
	}
}

// compile shields the operation from unexpected compiler panics.
func (a *assembler) compile(ref *openapi3.SchemaRef, what string) (d schema.Descriptor) {
	defer func() {
		if r := recover(); r != nil {
			msg := fmt.Sprintf("%s: schema conversion failed: %v", what, r)
			a.diag(msg)
			d = schema.Unconstrained{Description: msg}
		}
	}()
	return a.compiler.Compile(ref)
}

// escapeParameterName converts parameter names with brackets to MCP-compatible names.
// For example: "filter[created_at]" becomes "filter_created_at_".
// The trailing underscore distinguishes escaped names from naturally occurring names.
func escapeParameterName(name string) string {
	if !strings.Contains(name, "[") && !strings.Contains(name, "]") {
		return name
	}

	escaped := strings.ReplaceAll(name, "[", "_")
	escaped = strings.ReplaceAll(escaped, "]", "_")

	if !strings.HasSuffix(escaped, "_") {
		escaped += "_"
	}
	return escaped
}
