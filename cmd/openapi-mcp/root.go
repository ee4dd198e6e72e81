package main

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/ubermorgenland/openapi-mcp-server/pkg/client"
	"github.com/ubermorgenland/openapi-mcp-server/pkg/config"
	"github.com/ubermorgenland/openapi-mcp-server/pkg/logging"
	"github.com/ubermorgenland/openapi-mcp-server/pkg/openapi2mcp"
	"github.com/ubermorgenland/openapi-mcp-server/pkg/schema"
	"github.com/ubermorgenland/openapi-mcp-server/pkg/store"
)

const dbSourcePrefix = "db:"

type rootOptions struct {
	api         string
	debug       bool
	logFormat   string
	strictEnums bool
	timeout     time.Duration
}

func newRootCmd() *cobra.Command {
	opts := &rootOptions{}

	root := &cobra.Command{
		Use:   "openapi-mcp",
		Short: "Serve the operations of an OpenAPI document as MCP tools",
		Long: `openapi-mcp loads an OpenAPI 3.0 or 3.1 document and exposes each operation
as an MCP tool. Tool calls are forwarded to the backend named by BASE_URL,
with the headers from HEADERS (a JSON object) added to every request.

The document may be a local file, an http(s) URL, or db:<name> for a spec
stored with "openapi-mcp specs import" (requires DATABASE_URL).`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	flags := root.PersistentFlags()
	flags.StringVar(&opts.api, "api", "", "OpenAPI document: file path, http(s) URL or db:<name>")
	flags.BoolVar(&opts.debug, "debug", false, "enable debug logging")
	flags.StringVar(&opts.logFormat, "log-format", "console", "log encoding: console or json")
	flags.BoolVar(&opts.strictEnums, "strict-enums", false, "reject string values outside a schema's enum")
	flags.DurationVar(&opts.timeout, "timeout", 30*time.Second, "backend request timeout")

	root.AddCommand(
		newServeCmd(opts),
		newToolsCmd(opts),
		newConsoleCmd(opts),
		newSpecsCmd(opts),
	)
	return root
}

func (o *rootOptions) logger() (*zap.Logger, error) {
	level := "info"
	if o.debug {
		level = "debug"
	}
	return logging.New(logging.Options{Level: level, Format: o.logFormat})
}

// app is everything a command needs once the document is loaded.
type app struct {
	doc    *openapi2mcp.Document
	tools  *openapi2mcp.Toolset
	cfg    *config.ServerConfig
	logger *zap.Logger
}

func (o *rootOptions) buildApp(ctx context.Context, logger *zap.Logger) (*app, error) {
	if o.api == "" {
		return nil, fmt.Errorf("--api is required")
	}

	cfg, err := config.Load(logger)
	if err != nil {
		return nil, err
	}
	cfg.LogConfiguration(logger)

	doc, err := o.loadDocument(ctx, logger)
	if err != nil {
		return nil, err
	}
	for _, w := range doc.Warnings {
		logger.Warn("document warning", zap.String("warning", w))
	}

	backend := client.New(cfg, client.WithTimeout(o.timeout), client.WithLogger(logger))
	dispatcher := openapi2mcp.NewDispatcher(backend, cfg, logger)

	genOpts := &openapi2mcp.ToolGenOptions{Logger: logger}
	if o.strictEnums {
		genOpts.EnumMode = schema.StrictEnums
	}
	tools, err := openapi2mcp.BuildToolset(doc, dispatcher, genOpts)
	if err != nil {
		return nil, err
	}

	logger.Info("tools ready",
		zap.String("api", doc.Title()),
		zap.String("openapi", string(doc.Version)),
		zap.Int("tools", tools.Len()))

	return &app{doc: doc, tools: tools, cfg: cfg, logger: logger}, nil
}

func (o *rootOptions) loadDocument(ctx context.Context, logger *zap.Logger) (*openapi2mcp.Document, error) {
	loader := openapi2mcp.NewLoader(logger)

	name, fromDB := strings.CutPrefix(o.api, dbSourcePrefix)
	if !fromDB {
		return loader.Load(ctx, o.api)
	}

	st, err := store.Open(ctx, os.Getenv("DATABASE_URL"), logger)
	if err != nil {
		return nil, err
	}
	defer st.Close()

	spec, err := st.GetByName(ctx, name)
	if err != nil {
		return nil, err
	}
	if !spec.Active {
		return nil, fmt.Errorf("spec %q is not active", name)
	}
	return loader.LoadFromData(ctx, []byte(spec.Content), nil)
}
