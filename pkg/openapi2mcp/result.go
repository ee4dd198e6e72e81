package openapi2mcp

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"reflect"
	"strings"

	"github.com/spf13/cast"

	"github.com/ubermorgenland/openapi-mcp-server/pkg/client"
)

// NoContentText is returned when a call succeeds without a payload.
const NoContentText = "(No content returned)"

// Content is a single text item of a ToolResult.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// ToolResult is the outcome of a tool call. IsError is omitted on success.
type ToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// Text joins the text of every content item.
func (r ToolResult) Text() string {
	parts := make([]string, 0, len(r.Content))
	for _, c := range r.Content {
		parts = append(parts, c.Text)
	}
	return strings.Join(parts, "\n")
}

func textResult(text string, isError bool) ToolResult {
	return ToolResult{
		Content: []Content{{Type: "text", Text: text}},
		IsError: isError,
	}
}

// FormatSuccess renders a backend payload. Structured values become indented
// JSON with sorted keys; strings pass through unchanged.
func FormatSuccess(data any) ToolResult {
	switch v := data.(type) {
	case nil:
		return textResult(NoContentText, false)
	case string:
		return textResult(v, false)
	}
	if isStructured(data) {
		if text, err := marshalIndent(data); err == nil {
			return textResult(text, false)
		}
	}
	return textResult(stringify(data), false)
}

// FormatFailure renders anything that went wrong during a call:
//
//   - *client.HTTPError: "API Error (<status>): <payload or message>"
//   - any other error:   "Error: <message>"
//   - anything else:     "Unknown error: <value>"
func FormatFailure(v any) ToolResult {
	err, isErr := v.(error)
	if !isErr {
		return textResult("Unknown error: "+stringify(v), true)
	}

	var httpErr *client.HTTPError
	if errors.As(err, &httpErr) {
		return textResult(fmt.Sprintf("API Error (%d): %s", httpErr.StatusCode, errorPayload(httpErr)), true)
	}
	return textResult("Error: "+err.Error(), true)
}

func errorPayload(e *client.HTTPError) string {
	switch data := e.Data.(type) {
	case nil:
		return e.Message
	case string:
		if data == "" {
			return e.Message
		}
		return data
	}
	if text, err := marshalIndent(e.Data); err == nil {
		return text
	}
	return e.Message
}

func isStructured(v any) bool {
	switch reflect.ValueOf(v).Kind() {
	case reflect.Map, reflect.Slice, reflect.Array, reflect.Struct, reflect.Ptr:
		return true
	}
	return false
}

// marshalIndent matches JSON.stringify(v, null, 2): two-space indent and no
// HTML escaping.
func marshalIndent(v any) (string, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(v); err != nil {
		return "", err
	}
	return strings.TrimSuffix(buf.String(), "\n"), nil
}

// stringify converts a scalar to text, falling back to JSON and finally %v.
func stringify(v any) string {
	if s, err := cast.ToStringE(v); err == nil {
		return s
	}
	if b, err := json.Marshal(v); err == nil {
		return string(b)
	}
	return fmt.Sprintf("%v", v)
}
