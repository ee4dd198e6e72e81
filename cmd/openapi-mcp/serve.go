package main

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ubermorgenland/openapi-mcp-server/pkg/console"
	"github.com/ubermorgenland/openapi-mcp-server/pkg/openapi2mcp"
	"github.com/ubermorgenland/openapi-mcp-server/pkg/server"
	"github.com/ubermorgenland/openapi-mcp-server/pkg/store"
)

func newServeCmd(opts *rootOptions) *cobra.Command {
	var (
		httpAddr string
		basePath string
	)

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run the MCP server over stdio or streamable HTTP",
		Example: `  openapi-mcp serve --api petstore.yaml
  openapi-mcp serve --api db:petstore --http :8080 --base-path /mcp`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger, err := opts.logger()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			a, err := opts.buildApp(ctx, logger)
			if err != nil {
				return err
			}
			srv := openapi2mcp.NewServer(a.doc, a.tools)

			if httpAddr == "" {
				logger.Info("serving MCP over stdio")
				return openapi2mcp.ServeStdio(srv)
			}

			return openapi2mcp.ServeStreamableHTTP(ctx, srv, httpAddr, basePath, sideRoutes(ctx, a), logger)
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http", "", "serve streamable HTTP on this address instead of stdio (e.g. :8080)")
	cmd.Flags().StringVar(&basePath, "base-path", openapi2mcp.DefaultBasePath, "HTTP path of the MCP endpoint")
	return cmd
}

// sideRoutes are the plain HTTP endpoints mounted next to the MCP endpoint.
// /specs is only mounted when DATABASE_URL is set.
func sideRoutes(ctx context.Context, a *app) map[string]http.Handler {
	routes := map[string]http.Handler{
		"/health": server.WithCORS(server.HandleHealth(a.doc.Title(), a.tools)),
		"/tools":  server.WithCORS(server.HandleToolList(a.tools, a.logger)),
	}

	databaseURL := os.Getenv("DATABASE_URL")
	if databaseURL == "" {
		return routes
	}
	st, err := store.Open(ctx, databaseURL, a.logger)
	if err != nil {
		a.logger.Warn("spec store unavailable, /specs not mounted", zap.Error(err))
		return routes
	}
	go func() {
		<-ctx.Done()
		st.Close()
	}()
	routes["/specs"] = server.WithCORS(server.HandleSpecList(func(ctx context.Context) ([]*store.Spec, error) {
		return st.List(ctx, false)
	}, a.logger))
	return routes
}

func newToolsCmd(opts *rootOptions) *cobra.Command {
	var showSchemas bool

	cmd := &cobra.Command{
		Use:   "tools",
		Short: "Print the tools generated from the document",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			logger, err := opts.logger()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			a, err := opts.buildApp(cmd.Context(), logger)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			openapi2mcp.PrintToolSummary(out, a.tools)
			fmt.Fprintln(out)
			for _, t := range a.tools.Tools() {
				fmt.Fprintf(out, "%s  %s %s\n", t.Name, t.Operation.Method, t.Operation.Path)
				if !showSchemas {
					continue
				}
				data, err := json.MarshalIndent(t.InputSchema, "    ", "  ")
				if err != nil {
					return fmt.Errorf("failed to render schema for %s: %w", t.Name, err)
				}
				fmt.Fprintf(out, "    %s\n", data)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&showSchemas, "schemas", false, "also print each tool's input schema")
	return cmd
}

func newConsoleCmd(opts *rootOptions) *cobra.Command {
	var historyFile string

	cmd := &cobra.Command{
		Use:   "console",
		Short: "Call tools interactively without an MCP client",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGTERM)
			defer stop()

			logger, err := opts.logger()
			if err != nil {
				return err
			}
			defer logger.Sync() //nolint:errcheck

			a, err := opts.buildApp(ctx, logger)
			if err != nil {
				return err
			}

			c := console.New(a.tools, cmd.OutOrStdout(), logger)
			return c.Run(ctx, &readline.Config{HistoryFile: historyFile})
		},
	}

	cmd.Flags().StringVar(&historyFile, "history", "", "file to keep console history in")
	return cmd
}
