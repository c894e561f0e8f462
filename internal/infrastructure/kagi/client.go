// Package kagi implements the upstream search client for the Kagi Search API.
package kagi

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/pkg/errors"

	"github.com/FreePeak/mcp-kagi-search/internal/domain"
	"github.com/FreePeak/mcp-kagi-search/internal/infrastructure/json"
	"github.com/FreePeak/mcp-kagi-search/internal/infrastructure/logging"
)

const (
	// DefaultBaseURL is the Kagi API root used when no override is configured.
	DefaultBaseURL = "https://kagi.com/api/v0"

	// UserAgent identifies this server to the upstream provider.
	UserAgent = "mcp-kagi-search / 0.1.0"

	maxResponseBytes = 8 << 20
)

// Fault names reported in the error list when a call cannot be completed.
const (
	FaultRequest   = "RequestError"
	FaultTransport = "TransportError"
	FaultRead      = "ReadError"
	FaultDecode    = "DecodeError"
)

// Client calls the Kagi search endpoint.
type Client struct {
	apiKey     string
	searchURL  string
	httpClient *http.Client
	logger     *logging.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithBaseURL overrides the API root, e.g. to point at a test server.
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		if baseURL != "" {
			c.searchURL = strings.TrimSuffix(baseURL, "/") + "/search"
		}
	}
}

// WithHTTPClient sets the HTTP client used for upstream calls.
func WithHTTPClient(httpClient *http.Client) Option {
	return func(c *Client) {
		if httpClient != nil {
			c.httpClient = httpClient
		}
	}
}

// WithLogger sets the logger.
func WithLogger(logger *logging.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a client authenticating with apiKey.
func NewClient(apiKey string, opts ...Option) *Client {
	c := &Client{
		apiKey:     apiKey,
		searchURL:  DefaultBaseURL + "/search",
		httpClient: http.DefaultClient,
		logger:     logging.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Search runs query against the provider. limit <= 0 leaves the provider default.
// Faults are never returned: they come back as a response with an empty item
// list and a single error entry naming the fault.
func (c *Client) Search(ctx context.Context, query string, limit int) *domain.SearchResponse {
	resp, fault, err := c.search(ctx, query, limit)
	if err != nil {
		c.logger.Warn("search request failed", logging.Fields{
			"fault": fault,
			"error": err,
		})
		return domain.NewFaultResponse(fault, err)
	}

	if len(resp.Data) > 0 {
		resp.Data = withoutLists(resp.Data)
	}
	return resp
}

func (c *Client) search(ctx context.Context, query string, limit int) (*domain.SearchResponse, string, error) {
	params := url.Values{}
	params.Set("q", query)
	if limit > 0 {
		params.Set("limit", strconv.Itoa(limit))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.searchURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, FaultRequest, errors.Wrap(err, "error creating search request")
	}
	req.Header.Set("Authorization", "Bot "+c.apiKey)
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")

	httpResp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, FaultTransport, errors.Wrap(err, "error calling search endpoint")
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(httpResp.Body, maxResponseBytes))
	if err != nil {
		return nil, FaultRead, errors.Wrap(err, "error reading search response")
	}

	var resp domain.SearchResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return nil, FaultDecode, errors.Wrap(err, fmt.Sprintf("error decoding search response (status %d)", httpResp.StatusCode))
	}

	c.logger.Debug("search completed", logging.Fields{
		"status":  httpResp.StatusCode,
		"request": resp.Meta.ID,
		"items":   len(resp.Data),
		"errors":  len(resp.Error),
	})
	return &resp, "", nil
}

// withoutLists drops related-search groups, which carry a list instead of a result.
func withoutLists(items []domain.SearchItem) []domain.SearchItem {
	kept := make([]domain.SearchItem, 0, len(items))
	for _, item := range items {
		if len(item.List) > 0 {
			continue
		}
		kept = append(kept, item)
	}
	return kept
}
