package shared

// Protocol versions understood by the server, newest first.
var SupportedProtocolVersions = []string{"2025-03-26", "2024-11-05"}

// LatestProtocolVersion is the version offered when the client asks for an unknown one.
const LatestProtocolVersion = "2025-03-26"

// NegotiateProtocolVersion returns requested when it is supported, else the latest version.
func NegotiateProtocolVersion(requested string) string {
	for _, v := range SupportedProtocolVersions {
		if v == requested {
			return v
		}
	}
	return LatestProtocolVersion
}

// Implementation names a client or server implementation
type Implementation struct {
	Name    string `json:"name"`
	Version string `json:"version"`
}

// Capabilities represents the server's capabilities
type Capabilities struct {
	Tools *ToolsCapability `json:"tools,omitempty"`
}

// ToolsCapability indicates support for tools
type ToolsCapability struct {
	ListChanged bool `json:"listChanged,omitempty"`
}

// Tool represents a tool exposed by the server
type Tool struct {
	Name        string      `json:"name"`
	Description string      `json:"description,omitempty"`
	InputSchema interface{} `json:"inputSchema"`
}
