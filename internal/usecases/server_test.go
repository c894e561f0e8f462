package usecases

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/FreePeak/mcp-kagi-search/internal/domain"
	"github.com/FreePeak/mcp-kagi-search/internal/domain/shared"
	"github.com/FreePeak/mcp-kagi-search/internal/usecases/search"
	"github.com/FreePeak/mcp-kagi-search/internal/usecases/tools"
)

// MockToolRepository is a mock for the ToolRepository interface
type MockToolRepository struct {
	mock.Mock
}

func (m *MockToolRepository) ListTools(ctx context.Context) []*domain.Tool {
	args := m.Called(ctx)
	return args.Get(0).([]*domain.Tool)
}

func (m *MockToolRepository) CallTool(ctx context.Context, name string, arguments json.RawMessage) (*domain.CallToolResult, error) {
	args := m.Called(ctx, name, arguments)
	result, _ := args.Get(0).(*domain.CallToolResult)
	return result, args.Error(1)
}

// stubSearchClient answers every search with a fixed response
type stubSearchClient struct {
	calls    int
	response *domain.SearchResponse
}

func (c *stubSearchClient) Search(ctx context.Context, query string, limit int) *domain.SearchResponse {
	c.calls++
	return c.response
}

func newTestService(repo domain.ToolRepository) *ServerService {
	return NewServerService(ServerConfig{
		Name:     "mcp-kagi-search",
		Version:  "0.1.0",
		ToolRepo: repo,
	})
}

// roundTrip dispatches message and decodes the response as a generic map.
func roundTrip(t *testing.T, s *ServerService, message string) map[string]interface{} {
	t.Helper()
	response := s.HandleMessage(context.Background(), json.RawMessage(message))
	require.NotNil(t, response)

	data, err := json.Marshal(response)
	require.NoError(t, err)

	var decoded map[string]interface{}
	require.NoError(t, json.Unmarshal(data, &decoded))
	return decoded
}

func errorCode(t *testing.T, response map[string]interface{}) int {
	t.Helper()
	rpcErr, ok := response["error"].(map[string]interface{})
	require.True(t, ok, "expected an error response, got %v", response)
	return int(rpcErr["code"].(float64))
}

func TestServerService_Initialize(t *testing.T) {
	s := newTestService(&MockToolRepository{})

	tests := []struct {
		name      string
		requested string
		want      string
	}{
		{name: "supported version is echoed", requested: "2024-11-05", want: "2024-11-05"},
		{name: "latest version", requested: "2025-03-26", want: "2025-03-26"},
		{name: "unknown version falls back", requested: "1999-01-01", want: shared.LatestProtocolVersion},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			response := roundTrip(t, s, `{"jsonrpc":"2.0","id":1,"method":"initialize","params":{"protocolVersion":"`+tt.requested+`","clientInfo":{"name":"test","version":"1"}}}`)

			result := response["result"].(map[string]interface{})
			assert.Equal(t, tt.want, result["protocolVersion"])
			assert.Equal(t, map[string]interface{}{"tools": map[string]interface{}{}}, result["capabilities"])
			assert.Equal(t, map[string]interface{}{"name": "mcp-kagi-search", "version": "0.1.0"}, result["serverInfo"])
		})
	}
}

func TestServerService_Ping(t *testing.T) {
	s := newTestService(&MockToolRepository{})

	response := roundTrip(t, s, `{"jsonrpc":"2.0","id":"abc","method":"ping"}`)
	assert.Equal(t, "abc", response["id"])
	assert.Equal(t, map[string]interface{}{}, response["result"])
}

func TestServerService_Notifications(t *testing.T) {
	repo := &MockToolRepository{}
	s := newTestService(repo)

	assert.Nil(t, s.HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","method":"notifications/initialized"}`)))
	assert.Nil(t, s.HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","method":"notifications/cancelled","params":{"requestId":1}}`)))
	assert.Nil(t, s.HandleMessage(context.Background(), json.RawMessage(`{"jsonrpc":"2.0","method":"ping"}`)))

	repo.AssertNotCalled(t, "CallTool", mock.Anything, mock.Anything, mock.Anything)
}

func TestServerService_ProtocolErrors(t *testing.T) {
	s := newTestService(&MockToolRepository{})

	t.Run("parse error", func(t *testing.T) {
		response := roundTrip(t, s, `{"jsonrpc":`)
		assert.Equal(t, int(shared.ParseError), errorCode(t, response))
		assert.Nil(t, response["id"])
	})

	t.Run("not an object", func(t *testing.T) {
		response := roundTrip(t, s, `[1,2,3]`)
		assert.Equal(t, int(shared.InvalidRequest), errorCode(t, response))
	})

	t.Run("missing method", func(t *testing.T) {
		response := roundTrip(t, s, `{"jsonrpc":"2.0","id":3}`)
		assert.Equal(t, int(shared.InvalidRequest), errorCode(t, response))
		assert.Equal(t, float64(3), response["id"])
	})

	t.Run("wrong version", func(t *testing.T) {
		response := roundTrip(t, s, `{"jsonrpc":"1.0","id":4,"method":"ping"}`)
		assert.Equal(t, int(shared.InvalidRequest), errorCode(t, response))
	})

	t.Run("unknown method", func(t *testing.T) {
		response := roundTrip(t, s, `{"jsonrpc":"2.0","id":5,"method":"resources/list"}`)
		assert.Equal(t, int(shared.MethodNotFound), errorCode(t, response))
	})

	t.Run("call without name", func(t *testing.T) {
		response := roundTrip(t, s, `{"jsonrpc":"2.0","id":6,"method":"tools/call","params":{}}`)
		assert.Equal(t, int(shared.InvalidParams), errorCode(t, response))
	})
}

func TestServerService_ToolsList(t *testing.T) {
	repo := &MockToolRepository{}
	repo.On("ListTools", mock.Anything).Return([]*domain.Tool{
		{Name: "first", Description: "one", InputSchema: map[string]interface{}{"type": "object"}},
		{Name: "second", Description: "two", InputSchema: map[string]interface{}{"type": "object"}},
	})
	s := newTestService(repo)

	response := roundTrip(t, s, `{"jsonrpc":"2.0","id":1,"method":"tools/list"}`)
	list := response["result"].(map[string]interface{})["tools"].([]interface{})

	require.Len(t, list, 2)
	assert.Equal(t, "first", list[0].(map[string]interface{})["name"])
	assert.Equal(t, "second", list[1].(map[string]interface{})["name"])
	assert.Equal(t, map[string]interface{}{"type": "object"}, list[0].(map[string]interface{})["inputSchema"])
	repo.AssertExpectations(t)
}

func TestServerService_ToolsCall(t *testing.T) {
	repo := &MockToolRepository{}
	repo.On("CallTool", mock.Anything, "echo", json.RawMessage(`{"message":"hi"}`)).
		Return(domain.NewTextResult("hi"), nil)
	s := newTestService(repo)

	response := roundTrip(t, s, `{"jsonrpc":"2.0","id":9,"method":"tools/call","params":{"name":"echo","arguments":{"message":"hi"}}}`)
	assert.Equal(t, float64(9), response["id"])
	result := response["result"].(map[string]interface{})
	assert.Nil(t, result["isError"])
	assert.Equal(t, []interface{}{map[string]interface{}{"type": "text", "text": "hi"}}, result["content"])
	repo.AssertExpectations(t)
}

func TestServerService_ToolsCallErrors(t *testing.T) {
	tests := []struct {
		name   string
		err    error
		assert func(t *testing.T, response map[string]interface{})
	}{
		{
			name: "unknown tool",
			err:  domain.NewUnknownToolError("missing"),
			assert: func(t *testing.T, response map[string]interface{}) {
				assert.Equal(t, int(shared.InvalidParams), errorCode(t, response))
				assert.Equal(t, "Unknown tool: missing", response["error"].(map[string]interface{})["message"])
			},
		},
		{
			name: "invalid arguments",
			err:  domain.NewInvalidArgumentsError("limit", "maximum"),
			assert: func(t *testing.T, response map[string]interface{}) {
				result := response["result"].(map[string]interface{})
				assert.Equal(t, true, result["isError"])
				content := result["content"].([]interface{})[0].(map[string]interface{})
				assert.Equal(t, "Error: Invalid limit value", content["text"])
			},
		},
		{
			name: "unexpected failure",
			err:  assert.AnError,
			assert: func(t *testing.T, response map[string]interface{}) {
				assert.Equal(t, int(shared.InternalError), errorCode(t, response))
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := &MockToolRepository{}
			repo.On("CallTool", mock.Anything, "some_tool", mock.Anything).Return(nil, tt.err)
			s := newTestService(repo)

			response := roundTrip(t, s, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"some_tool","arguments":{}}}`)
			tt.assert(t, response)
			repo.AssertExpectations(t)
		})
	}
}

func TestServerService_KagiSearchEndToEnd(t *testing.T) {
	rank := 1
	client := &stubSearchClient{response: &domain.SearchResponse{
		Data: []domain.SearchItem{{T: 0, Rank: &rank, URL: "https://go.dev", Title: "Go", Snippet: "The Go language"}},
	}}

	registry := tools.NewRegistry(nil)
	require.NoError(t, registry.Register(search.NewTool(client, nil).Descriptor()))
	s := newTestService(registry)

	response := roundTrip(t, s, `{"jsonrpc":"2.0","id":1,"method":"tools/call","params":{"name":"kagi_search","arguments":{"query":"golang","limit":5}}}`)
	result := response["result"].(map[string]interface{})
	assert.Nil(t, result["isError"])
	text := result["content"].([]interface{})[0].(map[string]interface{})["text"].(string)
	assert.Contains(t, text, "1: Go\nhttps://go.dev\nThe Go language")
	assert.Equal(t, 1, client.calls)

	for _, limit := range []string{"0", "101", "-3"} {
		response := roundTrip(t, s, `{"jsonrpc":"2.0","id":2,"method":"tools/call","params":{"name":"kagi_search","arguments":{"query":"golang","limit":`+limit+`}}}`)
		result := response["result"].(map[string]interface{})
		assert.Equal(t, true, result["isError"], "limit %s", limit)
		text := result["content"].([]interface{})[0].(map[string]interface{})["text"]
		assert.Equal(t, "Error: Invalid limit value", text, "limit %s", limit)
	}
	assert.Equal(t, 1, client.calls, "out of range limits never reach the provider")
}
