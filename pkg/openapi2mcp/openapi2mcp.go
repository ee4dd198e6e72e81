// Package openapi2mcp turns OpenAPI 3.0.x / 3.1.x documents into MCP tools.
//
// The conversion pipeline is:
//
//  1. Loader reads and dereferences the document, checks its version band and
//     assigns operation identifiers to anonymous operations.
//  2. ExtractOpenAPIOperations and FindOperation resolve operations with their
//     merged path-level and operation-level parameters.
//  3. BuildInputShape compiles each operation's parameters and request body
//     into a grouped input schema.
//  4. Dispatcher rebuilds the HTTP request from validated tool input, calls
//     the backend and formats the result.
//
// # Quick Start
//
//	doc, err := openapi2mcp.NewLoader(logger).Load(ctx, "petstore.yaml")
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	backend := client.New(cfg, client.WithLogger(logger))
//	dispatcher := openapi2mcp.NewDispatcher(backend, cfg, logger)
//	tools, err := openapi2mcp.BuildToolset(doc, dispatcher, nil)
//	if err != nil {
//		log.Fatal(err)
//	}
//
//	srv := openapi2mcp.NewServer(doc, tools)
//	openapi2mcp.ServeStdio(srv) // or ServeStreamableHTTP(srv, ":8080", "/mcp", nil)
//
// Requests are always sent to the configured base URL; `servers` entries in
// the document are ignored.
package openapi2mcp

import (
	"github.com/getkin/kin-openapi/openapi3"
	"go.uber.org/zap"

	"github.com/ubermorgenland/openapi-mcp-server/pkg/schema"
)

// OpenAPIOperation is a resolved operation: the operation plus the location
// it was found at and its merged parameter list.
type OpenAPIOperation struct {
	OperationID string
	Summary     string
	Description string
	// Path is the URL path template, or "webhook:<name>" for webhooks.
	Path        string
	Method      string
	Webhook     bool
	Parameters  openapi3.Parameters
	RequestBody *openapi3.RequestBodyRef
	Tags        []string
	Deprecated  bool
}

// ToolGenOptions controls tool generation.
//
// NameFormat: function to format tool names (e.g., strings.ToLower)
// TagFilter: only include operations with at least one of these tags (if non-empty)
// EnumMode: how string enums are enforced (lenient by default)
// PostProcessSchema: optional hook to modify each tool's input schema before registration
// Logger: receives per-operation diagnostics
type ToolGenOptions struct {
	NameFormat        func(string) string
	TagFilter         []string
	EnumMode          schema.EnumMode
	PostProcessSchema func(toolName string, schema map[string]any) map[string]any
	Logger            *zap.Logger
}
