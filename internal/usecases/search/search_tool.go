// Package search provides the kagi_search tool.
package search

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/spf13/cast"

	"github.com/FreePeak/mcp-kagi-search/internal/domain"
	"github.com/FreePeak/mcp-kagi-search/internal/infrastructure/logging"
	"github.com/FreePeak/mcp-kagi-search/internal/usecases/tools"
)

// ToolName is the name the tool is registered under.
const ToolName = "kagi_search"

const (
	minLimit = 1
	maxLimit = 100

	resultsHeader = "-----\nResults for search query\n-----\n"
)

// Errors surfaced to callers as error-flagged results.
var (
	ErrInvalidLimit = errors.New("Invalid limit value")
	ErrNoResults    = errors.New("Didn't get any results")
)

// Tool performs web searches through the upstream search client.
type Tool struct {
	client domain.SearchClient
	logger *logging.Logger
}

// NewTool creates the search tool backed by client.
func NewTool(client domain.SearchClient, logger *logging.Logger) *Tool {
	if logger == nil {
		logger = logging.NewNop()
	}
	return &Tool{
		client: client,
		logger: logger,
	}
}

// Descriptor returns the tool registration for the tool registry.
func (t *Tool) Descriptor() *domain.Tool {
	return tools.NewTool(ToolName, t.Handle,
		tools.WithDescription("Perform web search using Kagi"),
		tools.WithString("query",
			tools.Description("The search query"),
			tools.Required(),
		),
		tools.WithInteger("limit",
			tools.Description("Maximum number of results to return"),
			tools.Minimum(minLimit),
			tools.Maximum(maxLimit),
		),
	)
}

// Handle runs a search and renders the results as text.
func (t *Tool) Handle(ctx context.Context, args map[string]interface{}) (*domain.CallToolResult, error) {
	query := cast.ToString(args["query"])

	limit := 0
	if raw, ok := args["limit"]; ok && raw != nil {
		n, err := parseLimit(raw)
		if err != nil {
			return nil, err
		}
		limit = n
	}

	resp := t.client.Search(ctx, query, limit)

	if resp.HasError() {
		return nil, errors.New(resp.Error[0].Message())
	}
	if len(resp.Data) == 0 {
		return nil, ErrNoResults
	}

	t.logger.Debug("search results rendered", logging.Fields{
		"items": len(resp.Data),
		"limit": limit,
	})
	return domain.NewTextResult(Render(resp.Data)), nil
}

// parseLimit accepts any whole number in range, including exponent forms
// such as 1e2 that the input schema also treats as integers.
func parseLimit(raw interface{}) (int, error) {
	if num, ok := raw.(json.Number); ok {
		raw = num.String()
	}
	f, err := cast.ToFloat64E(raw)
	if err != nil || f != math.Trunc(f) || f < minLimit || f > maxLimit {
		return 0, ErrInvalidLimit
	}
	return int(f), nil
}

// Render formats items as numbered title/url/snippet blocks under a fixed header.
func Render(items []domain.SearchItem) string {
	blocks := make([]string, 0, len(items))
	for i, item := range items {
		blocks = append(blocks, fmt.Sprintf("%d: %s\n%s\n%s", i+1, item.Title, item.URL, item.Snippet))
	}
	return resultsHeader + strings.Join(blocks, "\n")
}
