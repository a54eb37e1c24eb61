// ABOUTME: Tool call result types matching the MCP content shape.
// ABOUTME: Results carry text content blocks plus an isError flag.

package tools

import (
	"encoding/json"
	"fmt"
)

// Content is a single content block within a tool result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// Result is the outcome of a tool call. Handler failures are reported as a
// Result with IsError set rather than as transport errors.
type Result struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// TextResult wraps plain text as a successful result.
func TextResult(text string) *Result {
	return &Result{Content: []Content{{Type: "text", Text: text}}}
}

// ErrorResult wraps an error message as a failed result.
func ErrorResult(text string) *Result {
	return &Result{Content: []Content{{Type: "text", Text: text}}, IsError: true}
}

// JSONResult marshals v as indented JSON text content.
func JSONResult(v any) (*Result, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("marshaling result: %w", err)
	}
	return TextResult(string(data)), nil
}

// Text returns the concatenated text of all content blocks.
func (r *Result) Text() string {
	var out string
	for _, c := range r.Content {
		out += c.Text
	}
	return out
}
