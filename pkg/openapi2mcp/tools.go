// tools.go
package openapi2mcp

import (
	"context"
	"fmt"
	"net/http"
	"sort"
	"strings"

	"github.com/xeipuuv/gojsonschema"
	"go.uber.org/zap"

	"github.com/ubermorgenland/openapi-mcp-server/pkg/schema"
)

// Tool is one callable operation. Tools are immutable once built and safe
// for concurrent use.
type Tool struct {
	Name        string
	Description string
	Operation   *OpenAPIOperation
	Shape       InputShape
	// InputSchema is the JSON Schema advertised to clients.
	InputSchema map[string]any
	// Diagnostics lists the schema fallbacks taken while building the tool.
	Diagnostics []string
	ReadOnly    bool

	validator  *gojsonschema.Schema
	dispatcher *Dispatcher
}

// Validate checks args against the tool's input schema.
func (t *Tool) Validate(args map[string]any) error {
	if t.validator == nil {
		return nil
	}
	if args == nil {
		args = map[string]any{}
	}
	res, err := t.validator.Validate(gojsonschema.NewGoLoader(args))
	if err != nil {
		return fmt.Errorf("failed to validate arguments: %w", err)
	}
	if res.Valid() {
		return nil
	}
	msgs := make([]string, 0, len(res.Errors()))
	for _, e := range res.Errors() {
		msgs = append(msgs, e.String())
	}
	return fmt.Errorf("invalid arguments: %s", strings.Join(msgs, "; "))
}

// Call validates args and dispatches the operation.
func (t *Tool) Call(ctx context.Context, args map[string]any) ToolResult {
	if err := t.Validate(args); err != nil {
		return FormatFailure(err)
	}
	return t.dispatcher.Execute(ctx, t.Operation.OperationID, args, t.Operation)
}

// Toolset is the ordered, read-only table of tools built from a document.
type Toolset struct {
	tools  []*Tool
	byName map[string]*Tool
}

// Tools returns the tools in registration order.
func (s *Toolset) Tools() []*Tool {
	return s.tools
}

func (s *Toolset) Len() int {
	return len(s.tools)
}

// Lookup returns the tool registered under name.
func (s *Toolset) Lookup(name string) (*Tool, bool) {
	t, ok := s.byName[name]
	return t, ok
}

// Call invokes the named tool. Unknown names produce an error result.
func (s *Toolset) Call(ctx context.Context, name string, args map[string]any) ToolResult {
	t, ok := s.Lookup(name)
	if !ok {
		return FormatFailure(fmt.Errorf("unknown tool %q", name))
	}
	return t.Call(ctx, args)
}

// BuildToolset creates one tool per operation under the document's paths.
//
// Operations sharing an identifier resolve to the first one in document
// order; later ones are skipped with a warning. Schema problems never fail
// the build; they are recorded in each Tool's Diagnostics.
//
// Example usage:
//
//	tools, err := openapi2mcp.BuildToolset(doc, dispatcher, &openapi2mcp.ToolGenOptions{
//		TagFilter: []string{"pets"},
//		Logger:    logger,
//	})
func BuildToolset(doc *Document, dispatcher *Dispatcher, opts *ToolGenOptions) (*Toolset, error) {
	if opts == nil {
		opts = &ToolGenOptions{}
	}
	logger := opts.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "toolset"))

	compiler := schema.NewCompiler(schema.Options{
		Nullability: doc.Version.Nullability(),
		EnumMode:    opts.EnumMode,
	}, logger)

	set := &Toolset{byName: map[string]*Tool{}}
	seenIDs := map[string]bool{}

	for _, candidate := range ExtractOpenAPIOperations(doc) {
		id := candidate.OperationID
		if seenIDs[id] {
			logger.Warn("skipping operation with duplicate identifier",
				zap.String("operation_id", id),
				zap.String("method", strings.ToUpper(candidate.Method)),
				zap.String("path", candidate.Path))
			continue
		}
		seenIDs[id] = true

		if len(opts.TagFilter) > 0 && !hasAnyTag(candidate.Tags, opts.TagFilter) {
			continue
		}

		// Lookup by identifier so the tool binds to the same operation a
		// later FindOperation call would return.
		op, ok := FindOperation(doc, id)
		if !ok {
			logger.Warn("operation could not be resolved", zap.String("operation_id", id))
			continue
		}

		name := id
		if opts.NameFormat != nil {
			name = opts.NameFormat(id)
		}
		if _, exists := set.byName[name]; exists {
			return nil, fmt.Errorf("tool name %q for operation %s collides with another tool", name, id)
		}

		t, err := buildTool(name, op, compiler, dispatcher, opts, logger)
		if err != nil {
			return nil, err
		}
		set.tools = append(set.tools, t)
		set.byName[name] = t
	}

	logger.Info("tools built", zap.Int("count", len(set.tools)))
	return set, nil
}

func buildTool(name string, op *OpenAPIOperation, compiler *schema.Compiler, dispatcher *Dispatcher, opts *ToolGenOptions, logger *zap.Logger) (*Tool, error) {
	shape, diags := BuildInputShape(op, compiler, logger)
	inputSchema := shape.JSONSchema()
	if opts.PostProcessSchema != nil {
		inputSchema = opts.PostProcessSchema(name, inputSchema)
	}

	validator, err := gojsonschema.NewSchema(gojsonschema.NewGoLoader(inputSchema))
	if err != nil {
		return nil, fmt.Errorf("failed to compile input schema for tool %s: %w", name, err)
	}

	method := strings.ToUpper(op.Method)
	return &Tool{
		Name:        name,
		Description: toolDescription(op),
		Operation:   op,
		Shape:       shape,
		InputSchema: inputSchema,
		Diagnostics: diags,
		ReadOnly:    method == http.MethodGet || method == http.MethodHead,
		validator:   validator,
		dispatcher:  dispatcher,
	}, nil
}

func toolDescription(op *OpenAPIOperation) string {
	switch {
	case op.Description != "":
		return op.Description
	case op.Summary != "":
		return op.Summary
	}
	return "API operation for " + op.OperationID
}

func hasAnyTag(tags, filter []string) bool {
	for _, t := range tags {
		for _, f := range filter {
			if t == f {
				return true
			}
		}
	}
	return false
}

// Tags returns the distinct tags across the toolset, sorted.
func (s *Toolset) Tags() []string {
	seen := map[string]bool{}
	for _, t := range s.tools {
		for _, tag := range t.Operation.Tags {
			seen[tag] = true
		}
	}
	tags := make([]string, 0, len(seen))
	for tag := range seen {
		tags = append(tags, tag)
	}
	sort.Strings(tags)
	return tags
}
