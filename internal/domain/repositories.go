package domain

import (
	"context"
	"encoding/json"
)

// ToolRepository defines the interface for registering and dispatching tools.
type ToolRepository interface {
	// ListTools returns all registered tools in registration order.
	ListTools(ctx context.Context) []*Tool

	// CallTool validates the arguments and executes the named tool.
	// It returns UnknownToolError or InvalidArgumentsError when the call
	// cannot be dispatched; handler failures come back as error-flagged results.
	CallTool(ctx context.Context, name string, args json.RawMessage) (*CallToolResult, error)
}

// SearchClient performs searches against the upstream provider.
// Implementations never return transport faults as errors; they are folded
// into the response's error list instead.
type SearchClient interface {
	Search(ctx context.Context, query string, limit int) *SearchResponse
}

// MessageHandler processes a raw JSON-RPC message and returns the response to
// push back to the caller, or nil when the message expects no response.
type MessageHandler interface {
	HandleMessage(ctx context.Context, rawMessage json.RawMessage) interface{}
}
