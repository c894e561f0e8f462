package domain

import (
	"fmt"
)

// SearchMeta carries the request metadata returned by the search provider.
type SearchMeta struct {
	ID         string   `json:"id"`
	Node       string   `json:"node"`
	Ms         int      `json:"ms"`
	APIBalance *float64 `json:"api_balance,omitempty"`
}

// SearchImage is a thumbnail attached to a search item.
type SearchImage struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

// SearchItem is a single entry of a search response.
// Items carrying a List are related-search groups rather than results.
type SearchItem struct {
	T         int          `json:"t"`
	Rank      *int         `json:"rank,omitempty"`
	URL       string       `json:"url,omitempty"`
	Title     string       `json:"title,omitempty"`
	Snippet   string       `json:"snippet,omitempty"`
	Published string       `json:"published,omitempty"`
	Thumbnail *SearchImage `json:"thumbnail,omitempty"`
	List      []string     `json:"list,omitempty"`
}

// SearchError is an error entry reported by the search provider, or synthesized
// by the client when the call itself failed.
type SearchError struct {
	Code  *int                   `json:"code,omitempty"`
	Msg   string                 `json:"msg,omitempty"`
	Res   string                 `json:"res,omitempty"`
	Other map[string]interface{} `json:"other,omitempty"`
}

// Message returns the human readable text of the error entry.
func (e SearchError) Message() string {
	if e.Msg != "" {
		return e.Msg
	}
	message, _ := e.Other["message"].(string)
	name, _ := e.Other["name"].(string)
	switch {
	case message != "" && name != "":
		return fmt.Sprintf("%s: %s", name, message)
	case message != "":
		return message
	default:
		return "unknown error"
	}
}

// SearchResponse is the result of a search call.
// Exactly one of Data or Error is meaningful.
type SearchResponse struct {
	Meta  SearchMeta    `json:"meta"`
	Data  []SearchItem  `json:"data,omitempty"`
	Error []SearchError `json:"error,omitempty"`
}

// HasError reports whether the response carries at least one error entry.
func (r *SearchResponse) HasError() bool {
	return len(r.Error) > 0
}

// NewFaultResponse builds the response returned when the search call could not be completed.
func NewFaultResponse(name string, err error) *SearchResponse {
	return &SearchResponse{
		Data: []SearchItem{},
		Error: []SearchError{{
			Other: map[string]interface{}{
				"name":    name,
				"message": err.Error(),
			},
		}},
	}
}
