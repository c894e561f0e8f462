package shared

import (
	"encoding/json"
	"strings"
)

// MCP method names
const (
	MethodInitialize = "initialize"
	MethodPing       = "ping"

	MethodListTools = "tools/list"
	MethodCallTool  = "tools/call"

	notificationPrefix = "notifications/"
)

// IsNotificationMethod reports whether method belongs to the notifications namespace.
func IsNotificationMethod(method string) bool {
	return strings.HasPrefix(method, notificationPrefix)
}

// InitializeParams represents parameters for the initialize method
type InitializeParams struct {
	ProtocolVersion string          `json:"protocolVersion"`
	ClientInfo      Implementation  `json:"clientInfo"`
	Capabilities    json.RawMessage `json:"capabilities,omitempty"`
}

// InitializeResult represents the result of the initialize method
type InitializeResult struct {
	ProtocolVersion string         `json:"protocolVersion"`
	Capabilities    Capabilities   `json:"capabilities"`
	ServerInfo      Implementation `json:"serverInfo"`
}

// ListToolsResult represents the result of the tools/list method
type ListToolsResult struct {
	Tools []Tool `json:"tools"`
}

// CallToolParams represents parameters for the tools/call method
type CallToolParams struct {
	Name      string          `json:"name"`
	Arguments json.RawMessage `json:"arguments,omitempty"`
}
