// Package console is an interactive shell for exploring and calling tools
// without an MCP client.
package console

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/chzyer/readline"
	"go.uber.org/zap"

	"github.com/ubermorgenland/openapi-mcp-server/pkg/openapi2mcp"
)

const helpText = `Commands:
  list                    list tools
  describe <tool>         show a tool's description and input schema
  call <tool> [json]      call a tool with JSON arguments
  help                    show this help
  quit                    leave the console
`

// Console runs commands against a toolset.
type Console struct {
	tools  *openapi2mcp.Toolset
	out    io.Writer
	logger *zap.Logger
}

// New creates a Console writing command output to out.
func New(tools *openapi2mcp.Toolset, out io.Writer, logger *zap.Logger) *Console {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Console{tools: tools, out: out, logger: logger.With(zap.String("component", "console"))}
}

// Run reads commands until quit, EOF or ctx is cancelled. cfg may carry
// Stdin/Stdout overrides and a history file; prompt and completion are filled in.
func (c *Console) Run(ctx context.Context, cfg *readline.Config) error {
	if cfg == nil {
		cfg = &readline.Config{}
	}
	if cfg.Prompt == "" {
		cfg.Prompt = "openapi-mcp> "
	}
	cfg.AutoComplete = c.completer()
	cfg.InterruptPrompt = "^C"
	cfg.EOFPrompt = "quit"

	rl, err := readline.NewEx(cfg)
	if err != nil {
		return fmt.Errorf("failed to start console: %w", err)
	}
	defer rl.Close()

	fmt.Fprintf(c.out, "%d tools loaded. Type 'help' for commands.\n", c.tools.Len())
	for ctx.Err() == nil {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			if line == "" {
				return nil
			}
			continue
		}
		if errors.Is(err, io.EOF) {
			return nil
		}
		if err != nil {
			return err
		}
		if c.Execute(ctx, line) {
			return nil
		}
	}
	return ctx.Err()
}

// Execute runs one command line and reports whether the console should exit.
func (c *Console) Execute(ctx context.Context, line string) bool {
	line = strings.TrimSpace(line)
	if line == "" {
		return false
	}
	cmd, rest, _ := strings.Cut(line, " ")
	rest = strings.TrimSpace(rest)

	switch cmd {
	case "quit", "exit":
		return true
	case "help":
		fmt.Fprint(c.out, helpText)
	case "list":
		c.list()
	case "describe":
		c.describe(rest)
	case "call":
		c.call(ctx, rest)
	default:
		fmt.Fprintf(c.out, "unknown command %q; type 'help'\n", cmd)
	}
	return false
}

func (c *Console) list() {
	for _, t := range c.tools.Tools() {
		fmt.Fprintf(c.out, "%-40s %-7s %s\n", t.Name, strings.ToUpper(t.Operation.Method), t.Operation.Path)
	}
}

func (c *Console) describe(name string) {
	t, ok := c.tools.Lookup(name)
	if !ok {
		fmt.Fprintf(c.out, "unknown tool %q\n", name)
		return
	}
	fmt.Fprintf(c.out, "%s (%s %s)\n%s\n", t.Name, strings.ToUpper(t.Operation.Method), t.Operation.Path, t.Description)
	b, err := json.MarshalIndent(t.InputSchema, "", "  ")
	if err == nil {
		fmt.Fprintf(c.out, "Input schema:\n%s\n", b)
	}
	for _, d := range t.Diagnostics {
		fmt.Fprintf(c.out, "warning: %s\n", d)
	}
}

func (c *Console) call(ctx context.Context, rest string) {
	name, raw, _ := strings.Cut(rest, " ")
	if name == "" {
		fmt.Fprintln(c.out, "usage: call <tool> [json]")
		return
	}

	args := map[string]any{}
	if raw = strings.TrimSpace(raw); raw != "" {
		if err := json.Unmarshal([]byte(raw), &args); err != nil {
			fmt.Fprintf(c.out, "invalid JSON arguments: %v\n", err)
			return
		}
	}

	c.logger.Debug("calling tool", zap.String("tool", name))
	res := c.tools.Call(ctx, name, args)
	fmt.Fprintln(c.out, res.Text())
}

func (c *Console) completer() *readline.PrefixCompleter {
	names := func(string) []string {
		out := make([]string, 0, c.tools.Len())
		for _, t := range c.tools.Tools() {
			out = append(out, t.Name)
		}
		return out
	}
	return readline.NewPrefixCompleter(
		readline.PcItem("list"),
		readline.PcItem("describe", readline.PcItemDynamic(names)),
		readline.PcItem("call", readline.PcItemDynamic(names)),
		readline.PcItem("help"),
		readline.PcItem("quit"),
	)
}
