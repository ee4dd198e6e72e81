// summary.go
package openapi2mcp

import (
	"fmt"
	"io"
)

// PrintToolSummary prints a human-readable summary of the tools built from an OpenAPI document.
//
// It writes the total number of tools, the number of tools per tag and the
// number of tools that needed schema fallbacks. This is useful for checking
// what a document produces before starting the MCP server.
//
// Example usage:
//
//	tools, _ := openapi2mcp.BuildToolset(doc, dispatcher, nil)
//	openapi2mcp.PrintToolSummary(os.Stderr, tools)
//
// Output example:
//
//	Total tools: 12
//	Tags:
//	  pets: 8
//	  store: 3
//	  user: 1
//	Tools with schema fallbacks: 1
func PrintToolSummary(w io.Writer, tools *Toolset) {
	tagCount := map[string]int{}
	fallbacks := 0
	for _, t := range tools.Tools() {
		for _, tag := range t.Operation.Tags {
			tagCount[tag]++
		}
		if len(t.Diagnostics) > 0 {
			fallbacks++
		}
	}

	fmt.Fprintf(w, "Total tools: %d\n", tools.Len())
	if len(tagCount) > 0 {
		fmt.Fprintln(w, "Tags:")
		for _, tag := range tools.Tags() {
			fmt.Fprintf(w, "  %s: %d\n", tag, tagCount[tag])
		}
	}
	if fallbacks > 0 {
		fmt.Fprintf(w, "Tools with schema fallbacks: %d\n", fallbacks)
	}
}
