package toolkit

import (
	"fmt"
	"strings"

	"github.com/wikigate/wikigate/mcp"
)

// String codes carried in result-level error payloads. These parallel the
// JSON-RPC numeric codes but live inside successful responses so callers that
// only inspect results can react to recoverable conditions.
const (
	ErrCodeMissingInput  = "MISSING_INPUT"
	ErrCodeUpstreamError = "UPSTREAM_ERROR"
)

// TextResult builds a plain text CallToolResult.
func TextResult(s string) *mcp.CallToolResult {
	return &mcp.CallToolResult{Content: []mcp.ContentBlock{{Type: "text", Text: s}}}
}

// Errorf returns an error CallToolResult with a single text block.
func Errorf(format string, a ...any) *mcp.CallToolResult {
	msg := fmt.Sprintf(format, a...)
	return &mcp.CallToolResult{Content: []mcp.ContentBlock{{Type: "text", Text: msg}}, IsError: true}
}

// StructuredResult builds a result with a text summary plus a structured
// payload for programmatic callers.
func StructuredResult(text string, structured map[string]any) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content:           []mcp.ContentBlock{{Type: "text", Text: text}},
		StructuredContent: structured,
	}
}

// MissingInput reports absent required tool arguments. The missing field
// names are enumerated so an automated planner can re-prompt for exactly
// what it failed to supply.
func MissingInput(fields ...string) *mcp.CallToolResult {
	names := make([]any, len(fields))
	for i, f := range fields {
		names[i] = f
	}
	return &mcp.CallToolResult{
		Content: []mcp.ContentBlock{{
			Type: "text",
			Text: "missing required input: " + strings.Join(fields, ", "),
		}},
		IsError: true,
		StructuredContent: map[string]any{
			"code":    ErrCodeMissingInput,
			"missing": names,
		},
	}
}

// UpstreamFailure reports a non-success response from the wiki service. The
// status and truncated body snippet ride inside the result so the caller can
// distinguish an upstream failure from an empty answer.
func UpstreamFailure(status int, snippet string) *mcp.CallToolResult {
	return &mcp.CallToolResult{
		Content: []mcp.ContentBlock{{
			Type: "text",
			Text: fmt.Sprintf("upstream request failed with status %d: %s", status, snippet),
		}},
		IsError: true,
		StructuredContent: map[string]any{
			"code":   ErrCodeUpstreamError,
			"status": status,
		},
	}
}
