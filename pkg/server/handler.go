// Package server provides the HTTP side routes mounted next to the
// streamable MCP endpoint.
package server

import (
	"context"
	"encoding/json"
	"net/http"
	"time"

	"go.uber.org/zap"

	"github.com/ubermorgenland/openapi-mcp-server/pkg/openapi2mcp"
	"github.com/ubermorgenland/openapi-mcp-server/pkg/store"
)

// ToolInfo is the JSON form of a tool in /tools responses.
type ToolInfo struct {
	Name        string         `json:"name"`
	Description string         `json:"description"`
	Method      string         `json:"method"`
	Path        string         `json:"path"`
	Tags        []string       `json:"tags,omitempty"`
	ReadOnly    bool           `json:"read_only"`
	Diagnostics []string       `json:"diagnostics,omitempty"`
	InputSchema map[string]any `json:"input_schema,omitempty"`
}

// SpecInfo is the JSON form of a stored spec; the document body is omitted.
type SpecInfo struct {
	Name      string    `json:"name"`
	Title     string    `json:"title"`
	Version   string    `json:"version,omitempty"`
	Format    string    `json:"file_format"`
	Size      int       `json:"file_size"`
	Active    bool      `json:"is_active"`
	UpdatedAt time.Time `json:"updated_at"`
}

// HandleHealth handles the /health endpoint for health checks
func HandleHealth(api string, tools *openapi2mcp.Toolset) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		writeJSON(w, http.StatusOK, map[string]any{
			"status":  "healthy",
			"service": "openapi-mcp-server",
			"api":     api,
			"tools":   tools.Len(),
		}, zap.NewNop())
	}
}

// HandleToolList lists the registered tools. With ?name=<tool> it returns
// that tool including its input schema.
func HandleToolList(tools *openapi2mcp.Toolset, logger *zap.Logger) http.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "tool_list"))

	return func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
			return
		}

		if name := r.URL.Query().Get("name"); name != "" {
			t, ok := tools.Lookup(name)
			if !ok {
				WriteError(w, NewError(ErrorTypeNotFound, "tool not found", name), logger)
				return
			}
			info := toolInfo(t)
			info.InputSchema = t.InputSchema
			writeJSON(w, http.StatusOK, info, logger)
			return
		}

		list := make([]ToolInfo, 0, tools.Len())
		for _, t := range tools.Tools() {
			list = append(list, toolInfo(t))
		}
		writeJSON(w, http.StatusOK, list, logger)
	}
}

// HandleSpecList handles listing the specs stored in the database.
func HandleSpecList(listFunc func(ctx context.Context) ([]*store.Spec, error), logger *zap.Logger) http.HandlerFunc {
	if logger == nil {
		logger = zap.NewNop()
	}
	logger = logger.With(zap.String("component", "spec_list"))

	return func(w http.ResponseWriter, r *http.Request) {
		specs, err := listFunc(r.Context())
		if err != nil {
			WriteError(w, Wrap(err, ErrorTypeDatabase, "failed to list specs"), logger)
			return
		}

		out := make([]SpecInfo, 0, len(specs))
		for _, s := range specs {
			info := SpecInfo{
				Name:      s.Name,
				Title:     s.DisplayTitle(),
				Format:    s.Format,
				Size:      s.Size,
				Active:    s.Active,
				UpdatedAt: s.UpdatedAt,
			}
			if s.Version != nil {
				info.Version = *s.Version
			}
			out = append(out, info)
		}
		writeJSON(w, http.StatusOK, out, logger)
	}
}

// WithCORS allows browser-based MCP inspectors to reach the side routes.
func WithCORS(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func toolInfo(t *openapi2mcp.Tool) ToolInfo {
	return ToolInfo{
		Name:        t.Name,
		Description: t.Description,
		Method:      t.Operation.Method,
		Path:        t.Operation.Path,
		Tags:        t.Operation.Tags,
		ReadOnly:    t.ReadOnly,
		Diagnostics: t.Diagnostics,
	}
}

func writeJSON(w http.ResponseWriter, status int, v any, logger *zap.Logger) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logger.Error("failed to encode response", zap.Error(err))
	}
}
