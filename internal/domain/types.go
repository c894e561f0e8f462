// Package domain defines the core entities and collaborator interfaces of the Kagi search MCP server.
package domain

import (
	"context"
)

// SessionState is the lifecycle state of a connected client session.
type SessionState int32

// Session lifecycle states.
const (
	SessionOpen SessionState = iota
	SessionClosing
	SessionClosed
)

// String returns the lowercase name of the state.
func (s SessionState) String() string {
	switch s {
	case SessionOpen:
		return "open"
	case SessionClosing:
		return "closing"
	case SessionClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// ContentTypeText is the only content block type produced by this server.
const ContentTypeText = "text"

// Content is a single typed block of a tool result.
type Content struct {
	Type string `json:"type"`
	Text string `json:"text"`
}

// NewTextContent creates a text content block.
func NewTextContent(text string) Content {
	return Content{
		Type: ContentTypeText,
		Text: text,
	}
}

// CallToolResult is the envelope returned from a tool dispatch.
// IsError marks an application level failure of a call that was dispatched.
type CallToolResult struct {
	Content []Content `json:"content"`
	IsError bool      `json:"isError,omitempty"`
}

// NewTextResult creates a successful result holding one text block.
func NewTextResult(text string) *CallToolResult {
	return &CallToolResult{
		Content: []Content{NewTextContent(text)},
	}
}

// NewErrorResult creates an error-flagged result whose text is "Error: <message>".
func NewErrorResult(message string) *CallToolResult {
	return &CallToolResult{
		Content: []Content{NewTextContent("Error: " + message)},
		IsError: true,
	}
}

// Text joins the text of all content blocks.
func (r *CallToolResult) Text() string {
	var text string
	for _, c := range r.Content {
		text += c.Text
	}
	return text
}

// ToolHandler executes a tool call with arguments that already passed schema validation.
type ToolHandler func(ctx context.Context, args map[string]interface{}) (*CallToolResult, error)

// Tool describes a named, schema-validated operation that can be called by clients.
type Tool struct {
	Name        string
	Description string
	InputSchema map[string]interface{}
	Handler     ToolHandler
}
