// Package usecases implements the application business logic for the MCP server.
package usecases

import (
	"context"
	"encoding/json"
	"time"

	"github.com/oklog/ulid/v2"

	"github.com/FreePeak/mcp-kagi-search/internal/domain"
	"github.com/FreePeak/mcp-kagi-search/internal/domain/shared"
	"github.com/FreePeak/mcp-kagi-search/internal/infrastructure/logging"
)

// ServerService answers MCP requests. It implements domain.MessageHandler and
// is shared by every session, so it holds no per-session state.
type ServerService struct {
	name     string
	version  string
	toolRepo domain.ToolRepository
	logger   *logging.Logger
}

// ServerConfig contains configuration for the ServerService.
type ServerConfig struct {
	Name     string
	Version  string
	ToolRepo domain.ToolRepository
	Logger   *logging.Logger
}

// NewServerService creates a new ServerService with the given repositories and configuration.
func NewServerService(config ServerConfig) *ServerService {
	logger := config.Logger
	if logger == nil {
		logger = logging.NewNop()
	}
	return &ServerService{
		name:     config.Name,
		version:  config.Version,
		toolRepo: config.ToolRepo,
		logger:   logger,
	}
}

// HandleMessage processes one JSON-RPC message. It returns nil for
// notifications, which never get a response.
func (s *ServerService) HandleMessage(ctx context.Context, rawMessage json.RawMessage) interface{} {
	if !json.Valid(rawMessage) {
		return shared.NewErrorResponse(nil, shared.ParseError, shared.ErrorMessage(shared.ParseError))
	}

	var request shared.JSONRPCRequest
	if err := json.Unmarshal(rawMessage, &request); err != nil {
		return shared.NewErrorResponse(nil, shared.InvalidRequest, shared.ErrorMessage(shared.InvalidRequest))
	}

	if shared.IsNotificationMethod(request.Method) {
		s.logger.Debug("notification received", logging.Fields{"method": request.Method})
		return nil
	}
	if request.Method == "" {
		return shared.NewErrorResponse(request.ID, shared.InvalidRequest, "Invalid request: missing method")
	}
	if request.JSONRPC != shared.JSONRPCVersion {
		if request.IsNotification() {
			return nil
		}
		return shared.NewErrorResponse(request.ID, shared.InvalidRequest, "Invalid JSON-RPC version")
	}

	var response *shared.JSONRPCResponse
	switch request.Method {
	case shared.MethodInitialize:
		response = s.processInitialize(request)
	case shared.MethodPing:
		response = shared.NewResponse(request.ID, struct{}{})
	case shared.MethodListTools:
		response = s.processToolsList(ctx, request)
	case shared.MethodCallTool:
		response = s.processToolsCall(ctx, request)
	default:
		response = shared.NewErrorResponse(request.ID, shared.MethodNotFound, "Method '"+request.Method+"' not found")
	}

	if request.IsNotification() {
		return nil
	}
	return response
}

func (s *ServerService) processInitialize(request shared.JSONRPCRequest) *shared.JSONRPCResponse {
	var params shared.InitializeParams
	if len(request.Params) > 0 {
		if err := json.Unmarshal(request.Params, &params); err != nil {
			return shared.NewErrorResponse(request.ID, shared.InvalidParams, shared.ErrorMessage(shared.InvalidParams))
		}
	}

	version := shared.NegotiateProtocolVersion(params.ProtocolVersion)
	s.logger.Info("client initialized", logging.Fields{
		"client":           params.ClientInfo.Name,
		"client_version":   params.ClientInfo.Version,
		"protocol_version": version,
	})

	return shared.NewResponse(request.ID, shared.InitializeResult{
		ProtocolVersion: version,
		Capabilities: shared.Capabilities{
			Tools: &shared.ToolsCapability{},
		},
		ServerInfo: shared.Implementation{
			Name:    s.name,
			Version: s.version,
		},
	})
}

func (s *ServerService) processToolsList(ctx context.Context, request shared.JSONRPCRequest) *shared.JSONRPCResponse {
	tools := s.toolRepo.ListTools(ctx)

	result := shared.ListToolsResult{Tools: make([]shared.Tool, 0, len(tools))}
	for _, tool := range tools {
		result.Tools = append(result.Tools, shared.Tool{
			Name:        tool.Name,
			Description: tool.Description,
			InputSchema: tool.InputSchema,
		})
	}
	return shared.NewResponse(request.ID, result)
}

func (s *ServerService) processToolsCall(ctx context.Context, request shared.JSONRPCRequest) *shared.JSONRPCResponse {
	var params shared.CallToolParams
	if err := json.Unmarshal(request.Params, &params); err != nil || params.Name == "" {
		return shared.NewErrorResponse(request.ID, shared.InvalidParams, "Invalid params: tool name is required")
	}

	logger := s.logger.With(logging.Fields{
		"call_id": ulid.Make().String(),
		"tool":    params.Name,
	})
	start := time.Now()

	result, err := s.toolRepo.CallTool(ctx, params.Name, params.Arguments)
	switch {
	case err == nil:
		logger.Debug("tool call finished", logging.Fields{
			"duration": time.Since(start).String(),
			"is_error": result.IsError,
		})
		return shared.NewResponse(request.ID, result)
	case domain.IsUnknownTool(err):
		logger.Warn("tool call could not be dispatched", logging.Fields{"error": err})
		return shared.NewErrorResponse(request.ID, shared.InvalidParams, err.Error())
	case domain.IsInvalidArguments(err):
		logger.Debug("tool arguments rejected", logging.Fields{"error": err})
		return shared.NewResponse(request.ID, domain.NewErrorResult(err.Error()))
	default:
		logger.Error("tool call failed", logging.Fields{"error": err})
		return shared.NewErrorResponse(request.ID, shared.InternalError, shared.ErrorMessage(shared.InternalError))
	}
}
