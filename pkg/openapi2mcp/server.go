// server.go
package openapi2mcp

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/mark3labs/mcp-go/mcp"
	mcpserver "github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// DefaultBasePath is where the streamable HTTP endpoint is mounted.
const DefaultBasePath = "/mcp"

const shutdownTimeout = 25 * time.Second

// NewServer creates a new MCP server named after the document's info block
// and registers every tool of the toolset.
//
// Example usage:
//
//	tools, _ := openapi2mcp.BuildToolset(doc, dispatcher, nil)
//	srv := openapi2mcp.NewServer(doc, tools)
//	openapi2mcp.ServeStdio(srv)
func NewServer(doc *Document, tools *Toolset, opts ...mcpserver.ServerOption) *mcpserver.MCPServer {
	opts = append([]mcpserver.ServerOption{
		mcpserver.WithToolCapabilities(false),
		mcpserver.WithRecovery(),
	}, opts...)
	srv := mcpserver.NewMCPServer(doc.Title(), doc.APIVersion(), opts...)
	RegisterTools(srv, tools)
	return srv
}

// RegisterTools adds every tool of the toolset to srv.
func RegisterTools(srv *mcpserver.MCPServer, tools *Toolset) {
	for _, t := range tools.Tools() {
		srv.AddTool(t.MCPTool(), t.Handler())
	}
}

// MCPTool returns the protocol description of the tool.
func (t *Tool) MCPTool() mcp.Tool {
	raw, err := json.Marshal(t.InputSchema)
	if err != nil {
		// Input schemas are built from plain maps and always marshal.
		raw = []byte(`{"type":"object"}`)
	}
	tool := mcp.NewToolWithRawSchema(t.Name, t.Description, raw)
	tool.Annotations.ReadOnlyHint = mcp.ToBoolPtr(t.ReadOnly)
	return tool
}

// Handler adapts the tool to the MCP tool handler signature. Failures are
// reported in the result, never as a protocol error.
func (t *Tool) Handler() mcpserver.ToolHandlerFunc {
	return func(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
		return t.Call(ctx, req.GetArguments()).MCPResult(), nil
	}
}

// MCPResult converts the result to its protocol form.
func (r ToolResult) MCPResult() *mcp.CallToolResult {
	content := make([]mcp.Content, 0, len(r.Content))
	for _, c := range r.Content {
		content = append(content, mcp.NewTextContent(c.Text))
	}
	return &mcp.CallToolResult{Content: content, IsError: r.IsError}
}

// ServeStdio starts the MCP server using stdio (wraps mcpserver.ServeStdio).
// Returns an error if the server fails to start.
// Example usage for ServeStdio:
//
//	openapi2mcp.ServeStdio(srv)
func ServeStdio(server *mcpserver.MCPServer) error {
	return mcpserver.ServeStdio(server)
}

// HandlerForStreamableHTTP returns an http.Handler that serves the given MCP server using StreamableHTTP.
// Example usage:
//
//	handler := openapi2mcp.HandlerForStreamableHTTP(srv)
//	mux.Handle("/petstore", handler)
func HandlerForStreamableHTTP(server *mcpserver.MCPServer) http.Handler {
	return mcpserver.NewStreamableHTTPServer(server)
}

// ServeStreamableHTTP serves the MCP server at basePath on addr until ctx is
// cancelled, then shuts down gracefully. routes are mounted next to the MCP
// endpoint (for example /health).
//
// Example usage:
//
//	routes := map[string]http.Handler{"/health": server.HandleHealth()}
//	err := openapi2mcp.ServeStreamableHTTP(ctx, srv, ":8080", "/mcp", routes, logger)
func ServeStreamableHTTP(ctx context.Context, server *mcpserver.MCPServer, addr, basePath string, routes map[string]http.Handler, logger *zap.Logger) error {
	if logger == nil {
		logger = zap.NewNop()
	}
	basePath = normalizeBasePath(basePath)

	mux := http.NewServeMux()
	mux.Handle(basePath, HandlerForStreamableHTTP(server))
	for pattern, h := range routes {
		mux.Handle(pattern, h)
	}

	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 30 * time.Second,
	}

	serverErrors := make(chan error, 1)
	go func() {
		logger.Info("starting streamable HTTP server",
			zap.String("addr", addr),
			zap.String("url", GetStreamableHTTPURL(addr, basePath)))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrors <- err
		}
		close(serverErrors)
	}()

	select {
	case err, ok := <-serverErrors:
		if ok {
			return fmt.Errorf("server error: %w", err)
		}
		return nil
	case <-ctx.Done():
		logger.Info("shutting down server", zap.Duration("timeout", shutdownTimeout))
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server shutdown error: %w", err)
		}
		logger.Info("server shut down gracefully")
		return nil
	}
}

// GetStreamableHTTPURL returns the URL for the Streamable HTTP endpoint of the MCP server.
// addr is the address the server is listening on (e.g., ":8080", "0.0.0.0:8080", "localhost:8080").
// basePath is the base HTTP path (e.g., "/mcp").
// Example usage:
//
//	url := openapi2mcp.GetStreamableHTTPURL(":8080", "/custom-base")
//	// Returns: "http://localhost:8080/custom-base"
func GetStreamableHTTPURL(addr, basePath string) string {
	host := normalizeAddrToHost(addr)
	return "http://" + host + normalizeBasePath(basePath)
}

func normalizeBasePath(basePath string) string {
	trimmed := strings.Trim(basePath, "/")
	if trimmed == "" {
		return DefaultBasePath
	}
	return "/" + trimmed
}

// normalizeAddrToHost converts an addr (as used by net/http) to a host:port string suitable for URLs.
// If addr is just ":8080", returns "localhost:8080". If it already includes a host, returns as is.
func normalizeAddrToHost(addr string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return "localhost"
	}
	if strings.HasPrefix(addr, ":") {
		return "localhost" + addr
	}
	return addr
}
