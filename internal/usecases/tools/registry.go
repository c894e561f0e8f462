// Package tools holds the tool registry: schema validated dispatch of named tools.
package tools

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	"github.com/santhosh-tekuri/jsonschema/v6"

	"github.com/FreePeak/mcp-kagi-search/internal/domain"
	"github.com/FreePeak/mcp-kagi-search/internal/infrastructure/logging"
)

type registeredTool struct {
	tool   *domain.Tool
	schema *jsonschema.Schema
}

// Registry implements domain.ToolRepository. Tools are registered at startup;
// lookups afterwards are read-only.
type Registry struct {
	mu     sync.RWMutex
	tools  map[string]*registeredTool
	order  []string
	logger *logging.Logger
}

// NewRegistry creates an empty registry.
func NewRegistry(logger *logging.Logger) *Registry {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Registry{
		tools:  make(map[string]*registeredTool),
		logger: logger,
	}
}

// Register adds a tool and compiles its input schema. A duplicate name, a
// missing handler or an invalid schema is a ConfigurationError.
func (r *Registry) Register(tool *domain.Tool) error {
	if tool == nil || tool.Name == "" {
		return domain.NewConfigurationError("tool", "tool name is required")
	}
	if tool.Handler == nil {
		return domain.NewConfigurationError(tool.Name, fmt.Sprintf("tool %s has no handler", tool.Name))
	}

	schema, err := compileSchema(tool)
	if err != nil {
		return domain.NewConfigurationError(tool.Name, fmt.Sprintf("tool %s has an invalid input schema: %v", tool.Name, err))
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.tools[tool.Name]; exists {
		return domain.NewDuplicateToolError(tool.Name)
	}
	r.tools[tool.Name] = &registeredTool{tool: tool, schema: schema}
	r.order = append(r.order, tool.Name)
	return nil
}

func compileSchema(tool *domain.Tool) (*jsonschema.Schema, error) {
	schemaJSON, err := json.Marshal(tool.InputSchema)
	if err != nil {
		return nil, err
	}
	doc, err := jsonschema.UnmarshalJSON(bytes.NewReader(schemaJSON))
	if err != nil {
		return nil, err
	}

	location := tool.Name + ".json"
	c := jsonschema.NewCompiler()
	if err := c.AddResource(location, doc); err != nil {
		return nil, err
	}
	return c.Compile(location)
}

// ListTools returns all registered tools in registration order.
func (r *Registry) ListTools(ctx context.Context) []*domain.Tool {
	r.mu.RLock()
	defer r.mu.RUnlock()

	tools := make([]*domain.Tool, 0, len(r.order))
	for _, name := range r.order {
		tools = append(tools, r.tools[name].tool)
	}
	return tools
}

// CallTool validates args against the tool's schema and runs its handler.
func (r *Registry) CallTool(ctx context.Context, name string, args json.RawMessage) (*domain.CallToolResult, error) {
	r.mu.RLock()
	entry, ok := r.tools[name]
	r.mu.RUnlock()
	if !ok {
		return nil, domain.NewUnknownToolError(name)
	}

	if len(bytes.TrimSpace(args)) == 0 || string(bytes.TrimSpace(args)) == "null" {
		args = json.RawMessage("{}")
	}

	instance, err := jsonschema.UnmarshalJSON(bytes.NewReader(args))
	if err != nil {
		return nil, domain.NewInvalidArgumentsError("", "arguments are not valid JSON")
	}
	if err := entry.schema.Validate(instance); err != nil {
		return nil, invalidArguments(err)
	}

	var params map[string]interface{}
	decoder := json.NewDecoder(bytes.NewReader(args))
	decoder.UseNumber()
	if err := decoder.Decode(&params); err != nil || params == nil {
		return nil, domain.NewInvalidArgumentsError("", "arguments must be a JSON object")
	}

	return r.invoke(ctx, entry.tool, params), nil
}

// invoke runs the handler, turning returned errors and panics into
// error-flagged results so transports only ever see well-formed envelopes.
func (r *Registry) invoke(ctx context.Context, tool *domain.Tool, params map[string]interface{}) (result *domain.CallToolResult) {
	defer func() {
		if rec := recover(); rec != nil {
			message := fmt.Sprint(rec)
			if err, ok := rec.(error); ok {
				message = err.Error()
			}
			r.logger.Error("tool handler panicked", logging.Fields{
				"tool":  tool.Name,
				"panic": message,
			})
			result = domain.NewErrorResult(message)
		}
	}()

	result, err := tool.Handler(ctx, params)
	if err != nil {
		r.logger.Debug("tool reported an error", logging.Fields{
			"tool":  tool.Name,
			"error": err,
		})
		return domain.NewErrorResult(err.Error())
	}
	if result == nil {
		return domain.NewErrorResult(fmt.Sprintf("tool %s returned no result", tool.Name))
	}
	return result
}

func invalidArguments(err error) *domain.InvalidArgumentsError {
	var verr *jsonschema.ValidationError
	if !errors.As(err, &verr) {
		return domain.NewInvalidArgumentsError("", err.Error())
	}

	detail := lastLine(verr.Error())
	if leaf := firstLocatedLeaf(verr); leaf != nil {
		return domain.NewInvalidArgumentsError(strings.Join(leaf.InstanceLocation, "."), detail)
	}
	return domain.NewInvalidArgumentsError("", "Invalid arguments: "+detail)
}

// firstLocatedLeaf returns the first innermost cause that points below the root object.
func firstLocatedLeaf(verr *jsonschema.ValidationError) *jsonschema.ValidationError {
	if len(verr.Causes) == 0 {
		if len(verr.InstanceLocation) > 0 {
			return verr
		}
		return nil
	}
	for _, cause := range verr.Causes {
		if leaf := firstLocatedLeaf(cause); leaf != nil {
			return leaf
		}
	}
	return nil
}

func lastLine(text string) string {
	lines := strings.Split(strings.TrimSpace(text), "\n")
	return strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(lines[len(lines)-1]), "- "))
}
