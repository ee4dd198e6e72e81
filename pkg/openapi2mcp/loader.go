// loader.go
package openapi2mcp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/spf13/cast"
	"go.uber.org/zap"
	"gopkg.in/yaml.v3"

	"github.com/ubermorgenland/openapi-mcp-server/pkg/schema"
)

// Version is the major.minor band of a supported OpenAPI document.
type Version string

const (
	Version30 Version = "3.0"
	Version31 Version = "3.1"
)

// Nullability returns how schemas of this band signal null.
func (v Version) Nullability() schema.NullabilityMode {
	if v == Version31 {
		return schema.UnionBased
	}
	return schema.FlagBased
}

// SupportsWebhooks reports whether the band defines top-level webhooks.
func (v Version) SupportsWebhooks() bool {
	return v == Version31
}

// DetectVersion maps an `openapi` version marker to its band.
func DetectVersion(marker string) (Version, error) {
	marker = strings.TrimSpace(marker)
	switch {
	case marker == "":
		return "", newLoadError(ErrorTypeVersion, "missing 'openapi' version string", "")
	case strings.HasPrefix(marker, "3.0."):
		return Version30, nil
	case strings.HasPrefix(marker, "3.1."):
		return Version31, nil
	default:
		return "", newLoadError(ErrorTypeVersion,
			"unsupported OpenAPI version, only 3.0.x and 3.1.x are supported", marker)
	}
}

// Webhook is a named PathItem describing an inbound callback.
type Webhook struct {
	Name string
	Item *openapi3.PathItem
}

// Document is a dereferenced OpenAPI document plus what kin-openapi does not
// model for us: the version band, the document order of paths, and webhooks.
type Document struct {
	*openapi3.T

	Version   Version
	PathOrder []string
	Webhooks  []Webhook
	// Warnings are recoverable problems found while loading.
	Warnings []string
}

// PathItem returns the PathItem for path, or nil.
func (d *Document) PathItem(path string) *openapi3.PathItem {
	if d.T == nil || d.Paths == nil {
		return nil
	}
	return d.Paths.Value(path)
}

// Title and APIVersion fall back to placeholders when info is missing.
func (d *Document) Title() string {
	if d.T != nil && d.Info != nil && d.Info.Title != "" {
		return d.Info.Title
	}
	return "openapi-mcp-server"
}

func (d *Document) APIVersion() string {
	if d.T != nil && d.Info != nil && d.Info.Version != "" {
		return d.Info.Version
	}
	return "0.0.0"
}

// DefaultMaxSpecBytes bounds the size of a document read from a file or URL.
const DefaultMaxSpecBytes int64 = 50 << 20

// Loader reads OpenAPI documents from files and URLs.
//
// Example usage:
//
//	doc, err := openapi2mcp.NewLoader(logger).Load(ctx, "petstore.yaml")
//	if err != nil {
//		return err
//	}
//	fmt.Println(doc.Version, len(doc.PathOrder))
type Loader struct {
	HTTPClient *http.Client
	MaxBytes   int64

	logger *zap.Logger
}

// NewLoader creates a Loader with a 30 second fetch timeout.
func NewLoader(logger *zap.Logger) *Loader {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Loader{
		HTTPClient: &http.Client{Timeout: 30 * time.Second},
		MaxBytes:   DefaultMaxSpecBytes,
		logger:     logger.With(zap.String("component", "loader")),
	}
}

// Load reads the document at location, an http(s) URL or a file path.
func (l *Loader) Load(ctx context.Context, location string) (*Document, error) {
	if strings.TrimSpace(location) == "" {
		return nil, newLoadError(ErrorTypeSource, "OpenAPI specification path cannot be empty", "")
	}

	var (
		content []byte
		base    *url.URL
		err     error
	)
	if strings.HasPrefix(location, "http://") || strings.HasPrefix(location, "https://") {
		content, err = l.loadFromURL(ctx, location)
		if err == nil {
			base, err = url.Parse(location)
		}
	} else {
		content, err = l.loadFromLocalFile(location)
		if err == nil {
			base, err = fileURL(location)
		}
	}
	if err != nil {
		return nil, err
	}

	l.logger.Info("loaded OpenAPI document", zap.String("location", location), zap.Int("bytes", len(content)))
	return l.LoadFromData(ctx, content, base)
}

func (l *Loader) loadFromURL(ctx context.Context, location string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, wrapLoadError(err, ErrorTypeSource, "failed to create request")
	}

	resp, err := l.HTTPClient.Do(req)
	if err != nil {
		return nil, wrapLoadError(err, ErrorTypeSource, "failed to fetch spec from URL")
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, newLoadError(ErrorTypeSource,
			fmt.Sprintf("HTTP %d when fetching spec", resp.StatusCode), location)
	}
	return l.readLimited(resp.Body)
}

func (l *Loader) loadFromLocalFile(path string) ([]byte, error) {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, newLoadError(ErrorTypeSource, "spec file not found", path)
		}
		return nil, wrapLoadError(err, ErrorTypeSource, "failed to read spec file")
	}
	defer f.Close()
	return l.readLimited(f)
}

func (l *Loader) readLimited(r io.Reader) ([]byte, error) {
	max := l.MaxBytes
	if max <= 0 {
		max = DefaultMaxSpecBytes
	}
	content, err := io.ReadAll(io.LimitReader(r, max+1))
	if err != nil {
		return nil, wrapLoadError(err, ErrorTypeSource, "failed to read spec")
	}
	if int64(len(content)) > max {
		return nil, newLoadError(ErrorTypeSource,
			fmt.Sprintf("spec exceeds maximum allowed size (%dMB)", max>>20), "")
	}
	return content, nil
}

// LoadFromData parses, dereferences and checks a YAML or JSON document.
// base, when set, is used to resolve relative external references.
func (l *Loader) LoadFromData(ctx context.Context, content []byte, base *url.URL) (*Document, error) {
	root, err := parseRawDocument(content)
	if err != nil {
		return nil, err
	}

	marker, hasMarker := scalarValue(root, "openapi")
	if !hasMarker {
		if swagger, ok := scalarValue(root, "swagger"); ok {
			return nil, newLoadError(ErrorTypeVersion,
				"unsupported OpenAPI version, only 3.0.x and 3.1.x are supported", "swagger "+swagger)
		}
	}
	version, err := DetectVersion(marker)
	if err != nil {
		return nil, err
	}

	annotateMediaTypeOrder(root)

	var raw map[string]any
	if err := root.Decode(&raw); err != nil {
		return nil, wrapLoadError(err, ErrorTypeParse, "failed to decode document")
	}
	raw = normalizeYAML(raw).(map[string]any)
	if version == Version31 {
		if n := rewriteExclusiveBounds(raw); n > 0 {
			l.logger.Debug("converted numeric exclusive bounds", zap.Int("schemas", n))
		}
	}
	rawWebhooks, _ := raw["webhooks"].(map[string]any)
	delete(raw, "webhooks")

	t, err := loadKinDocument(ctx, raw, base)
	if err != nil {
		return nil, wrapLoadError(err, ErrorTypeParse, "failed to parse OpenAPI spec")
	}
	if t.Paths == nil || t.Paths.Len() == 0 {
		return nil, newLoadError(ErrorTypeStructure, "OpenAPI document has no paths", "")
	}

	doc := &Document{
		T:         t,
		Version:   version,
		PathOrder: orderedPaths(mappingKeys(mappingValue(root, "paths")), t.Paths),
	}

	if version.SupportsWebhooks() && len(rawWebhooks) > 0 {
		order := mappingKeys(mappingValue(root, "webhooks"))
		webhooks, err := loadWebhooks(ctx, raw, rawWebhooks, order, base)
		if err != nil {
			doc.warn(l.logger, fmt.Sprintf("webhooks could not be loaded: %v", err))
		}
		doc.Webhooks = webhooks
	} else if len(rawWebhooks) > 0 {
		doc.warn(l.logger, "webhooks are only supported in OpenAPI 3.1 documents; ignoring them")
	}

	if err := t.Validate(ctx, openapi3.DisableExamplesValidation()); err != nil {
		doc.warn(l.logger, fmt.Sprintf("OpenAPI schema validation warnings: %v", err))
	}

	if err := checkResolved(doc); err != nil {
		return nil, err
	}

	assignment := AssignOperationIDs(doc, NewIDContext())
	for _, dup := range assignment.Duplicates {
		doc.warn(l.logger, fmt.Sprintf("duplicate operationId %q; only the first occurrence is reachable", dup))
	}
	for _, gen := range assignment.Generated {
		l.logger.Info("adding generated operationId",
			zap.String("operation_id", gen.OperationID),
			zap.String("operation", gen.Key()))
	}
	assignment.Apply()

	return doc, nil
}

func (d *Document) warn(logger *zap.Logger, msg string) {
	d.Warnings = append(d.Warnings, msg)
	logger.Warn(msg)
}

func loadKinDocument(ctx context.Context, raw map[string]any, base *url.URL) (*openapi3.T, error) {
	body, err := json.Marshal(raw)
	if err != nil {
		return nil, err
	}
	loader := openapi3.NewLoader()
	loader.Context = ctx
	loader.IsExternalRefsAllowed = true
	if base != nil {
		return loader.LoadFromDataWithPath(body, base)
	}
	return loader.LoadFromData(body)
}

// loadWebhooks dereferences webhook PathItems by loading them as the paths of
// a scratch document that shares the real document's components.
func loadWebhooks(ctx context.Context, raw, webhooks map[string]any, order []string, base *url.URL) ([]Webhook, error) {
	paths := make(map[string]any, len(webhooks))
	for name, item := range webhooks {
		paths["/"+name] = item
	}
	scratch := map[string]any{
		"openapi": raw["openapi"],
		"info":    map[string]any{"title": "webhooks", "version": "0"},
		"paths":   paths,
	}
	if components, ok := raw["components"]; ok {
		scratch["components"] = components
	}

	t, err := loadKinDocument(ctx, scratch, base)
	if err != nil {
		return nil, err
	}

	out := make([]Webhook, 0, len(order))
	for _, name := range order {
		if item := t.Paths.Value("/" + name); item != nil {
			out = append(out, Webhook{Name: name, Item: item})
		}
	}
	return out, nil
}

// checkResolved rejects operations that still carry reference-only objects.
func checkResolved(doc *Document) error {
	for _, path := range doc.PathOrder {
		item := doc.PathItem(path)
		for _, p := range item.Parameters {
			if p == nil || p.Value == nil {
				return newLoadError(ErrorTypeReference, "unresolved path-level parameter", path)
			}
		}
		for _, m := range operationMethods {
			op := operationFor(item, m)
			if op == nil {
				continue
			}
			for _, p := range op.Parameters {
				if p == nil || p.Value == nil {
					return newLoadError(ErrorTypeReference, "unresolved parameter", strings.ToUpper(m)+" "+path)
				}
			}
			if op.RequestBody != nil && op.RequestBody.Value == nil {
				return newLoadError(ErrorTypeReference, "unresolved request body", strings.ToUpper(m)+" "+path)
			}
		}
	}
	return nil
}

func parseRawDocument(content []byte) (*yaml.Node, error) {
	if len(bytes.TrimSpace(content)) == 0 {
		return nil, newLoadError(ErrorTypeParse, "OpenAPI document is empty", "")
	}
	var node yaml.Node
	if err := yaml.Unmarshal(content, &node); err != nil {
		return nil, wrapLoadError(err, ErrorTypeParse, "failed to parse OpenAPI spec")
	}
	if node.Kind != yaml.DocumentNode || len(node.Content) == 0 || node.Content[0].Kind != yaml.MappingNode {
		return nil, newLoadError(ErrorTypeParse, "OpenAPI document must be an object", "")
	}
	return node.Content[0], nil
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func mappingKeys(node *yaml.Node) []string {
	if node == nil || node.Kind != yaml.MappingNode {
		return nil
	}
	keys := make([]string, 0, len(node.Content)/2)
	for i := 0; i+1 < len(node.Content); i += 2 {
		keys = append(keys, node.Content[i].Value)
	}
	return keys
}

func scalarValue(node *yaml.Node, key string) (string, bool) {
	v := mappingValue(node, key)
	if v == nil || v.Kind != yaml.ScalarNode {
		return "", false
	}
	return v.Value, true
}

// orderedPaths keeps the document order of path keys that kin-openapi loaded,
// then appends any it knows about that the raw scan missed.
func orderedPaths(rawOrder []string, paths *openapi3.Paths) []string {
	seen := make(map[string]bool, len(rawOrder))
	out := make([]string, 0, paths.Len())
	for _, p := range rawOrder {
		if paths.Value(p) != nil && !seen[p] {
			seen[p] = true
			out = append(out, p)
		}
	}
	var rest []string
	for p := range paths.Map() {
		if !seen[p] {
			rest = append(rest, p)
		}
	}
	sort.Strings(rest)
	return append(out, rest...)
}

// normalizeYAML converts the map[any]any values yaml.v3 produces for
// non-string keys (e.g. response codes) into JSON-compatible maps.
func normalizeYAML(v any) any {
	switch t := v.(type) {
	case map[string]any:
		for k, val := range t {
			t[k] = normalizeYAML(val)
		}
		return t
	case map[any]any:
		out := make(map[string]any, len(t))
		for k, val := range t {
			out[fmt.Sprint(k)] = normalizeYAML(val)
		}
		return out
	case []any:
		for i, val := range t {
			t[i] = normalizeYAML(val)
		}
		return t
	default:
		return v
	}
}

// rewriteExclusiveBounds converts the 3.1 numeric form of exclusiveMinimum
// and exclusiveMaximum into the boolean form the document model decodes:
// {exclusiveMinimum: n} becomes {minimum: n, exclusiveMinimum: true}. When an
// inclusive bound is already stricter, the exclusive one is dropped. It
// returns the number of rewritten keywords.
func rewriteExclusiveBounds(v any) int {
	n := 0
	switch t := v.(type) {
	case map[string]any:
		n += rewriteBound(t, "exclusiveMinimum", "minimum", func(excl, incl float64) bool { return incl > excl })
		n += rewriteBound(t, "exclusiveMaximum", "maximum", func(excl, incl float64) bool { return incl < excl })
		for _, val := range t {
			n += rewriteExclusiveBounds(val)
		}
	case []any:
		for _, val := range t {
			n += rewriteExclusiveBounds(val)
		}
	}
	return n
}

func rewriteBound(m map[string]any, exclusiveKey, inclusiveKey string, inclusiveWins func(excl, incl float64) bool) int {
	bound, ok := m[exclusiveKey]
	if !ok || !isNumber(bound) {
		return 0
	}
	excl := cast.ToFloat64(bound)
	if incl, ok := m[inclusiveKey]; ok && isNumber(incl) && inclusiveWins(excl, cast.ToFloat64(incl)) {
		delete(m, exclusiveKey)
		return 1
	}
	m[inclusiveKey] = bound
	m[exclusiveKey] = true
	return 1
}

func isNumber(v any) bool {
	switch v.(type) {
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, float32, float64:
		return true
	}
	return false
}

func fileURL(path string) (*url.URL, error) {
	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, wrapLoadError(err, ErrorTypeSource, "failed to resolve spec path")
	}
	return &url.URL{Path: filepath.ToSlash(abs)}, nil
}
