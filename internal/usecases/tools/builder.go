package tools

import (
	"github.com/FreePeak/mcp-kagi-search/internal/domain"
)

// ToolOption is a function that configures a tool.
type ToolOption func(*toolDraft)

// ParameterOption is a function that configures a parameter.
type ParameterOption func(map[string]interface{})

type toolDraft struct {
	tool       *domain.Tool
	properties map[string]interface{}
	required   []string
}

// NewTool creates a tool whose input schema is an object built from the
// parameter options.
func NewTool(name string, handler domain.ToolHandler, options ...ToolOption) *domain.Tool {
	draft := &toolDraft{
		tool: &domain.Tool{
			Name:    name,
			Handler: handler,
		},
		properties: map[string]interface{}{},
	}

	for _, option := range options {
		option(draft)
	}

	schema := map[string]interface{}{
		"type":       "object",
		"properties": draft.properties,
	}
	if len(draft.required) > 0 {
		schema["required"] = draft.required
	}
	draft.tool.InputSchema = schema
	return draft.tool
}

// WithDescription sets the description of a tool.
func WithDescription(description string) ToolOption {
	return func(s *toolDraft) {
		s.tool.Description = description
	}
}

// Description sets the description of a parameter.
func Description(description string) ParameterOption {
	return func(p map[string]interface{}) {
		p["description"] = description
	}
}

// Required marks a parameter as required.
func Required() ParameterOption {
	return func(p map[string]interface{}) {
		p[requiredKey] = true
	}
}

// Minimum sets the inclusive lower bound of a numeric parameter.
func Minimum(n int) ParameterOption {
	return func(p map[string]interface{}) {
		p["minimum"] = n
	}
}

// Maximum sets the inclusive upper bound of a numeric parameter.
func Maximum(n int) ParameterOption {
	return func(p map[string]interface{}) {
		p["maximum"] = n
	}
}

// requiredKey marks a parameter while options run; it never reaches the schema.
const requiredKey = "\x00required"

// WithString adds a string parameter to a tool.
func WithString(name string, options ...ParameterOption) ToolOption {
	return withParameter(name, "string", options)
}

// WithInteger adds an integer parameter to a tool.
func WithInteger(name string, options ...ParameterOption) ToolOption {
	return withParameter(name, "integer", options)
}

func withParameter(name, typ string, options []ParameterOption) ToolOption {
	return func(s *toolDraft) {
		param := map[string]interface{}{"type": typ}
		for _, option := range options {
			option(param)
		}
		if _, ok := param[requiredKey]; ok {
			delete(param, requiredKey)
			s.required = append(s.required, name)
		}
		s.properties[name] = param
	}
}
