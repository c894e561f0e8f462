package kagi

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleResponse = `{
	"meta": {"id": "req-1", "node": "eu", "ms": 12, "api_balance": 4.5},
	"data": [
		{"t": 0, "rank": 1, "url": "https://a.example", "title": "A", "snippet": "first"},
		{"t": 1, "list": ["related one", "related two"]},
		{"t": 0, "rank": 2, "url": "https://b.example", "title": "B", "snippet": "second",
		 "thumbnail": {"url": "https://b.example/t.png", "height": 10, "width": 20}}
	]
}`

func TestClient_Search(t *testing.T) {
	var gotQuery, gotLimit, gotAuth, gotAgent string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search", r.URL.Path)
		gotQuery = r.URL.Query().Get("q")
		gotLimit = r.URL.Query().Get("limit")
		gotAuth = r.Header.Get("Authorization")
		gotAgent = r.Header.Get("User-Agent")
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(sampleResponse))
	}))
	defer srv.Close()

	client := NewClient("secret", WithBaseURL(srv.URL+"/"), WithHTTPClient(srv.Client()))
	resp := client.Search(context.Background(), "weather & today", 3)

	assert.Equal(t, "weather & today", gotQuery)
	assert.Equal(t, "3", gotLimit)
	assert.Equal(t, "Bot secret", gotAuth)
	assert.Equal(t, UserAgent, gotAgent)

	require.False(t, resp.HasError())
	assert.Equal(t, "req-1", resp.Meta.ID)
	require.NotNil(t, resp.Meta.APIBalance)
	assert.InDelta(t, 4.5, *resp.Meta.APIBalance, 0.001)

	require.Len(t, resp.Data, 2)
	assert.Equal(t, "A", resp.Data[0].Title)
	assert.Equal(t, "B", resp.Data[1].Title)
	require.NotNil(t, resp.Data[1].Thumbnail)
	assert.Equal(t, 20, resp.Data[1].Thumbnail.Width)
}

func TestClient_SearchWithoutLimit(t *testing.T) {
	hasLimit := true
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, hasLimit = r.URL.Query()["limit"]
		_, _ = w.Write([]byte(`{"meta": {"id": "x", "node": "n", "ms": 1}, "data": []}`))
	}))
	defer srv.Close()

	resp := NewClient("k", WithBaseURL(srv.URL)).Search(context.Background(), "q", 0)

	assert.False(t, hasLimit)
	assert.False(t, resp.HasError())
	assert.Empty(t, resp.Data)
}

func TestClient_ProviderError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusUnauthorized)
		_, _ = w.Write([]byte(`{"meta": {"id": "x", "node": "n", "ms": 1}, "data": null,
			"error": [{"code": 1, "msg": "Unauthorized", "res": null}]}`))
	}))
	defer srv.Close()

	resp := NewClient("bad", WithBaseURL(srv.URL)).Search(context.Background(), "q", 0)

	require.True(t, resp.HasError())
	assert.Equal(t, "Unauthorized", resp.Error[0].Message())
	require.NotNil(t, resp.Error[0].Code)
	assert.Equal(t, 1, *resp.Error[0].Code)
}

func TestClient_DecodeFault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
		_, _ = w.Write([]byte(`<html>bad gateway</html>`))
	}))
	defer srv.Close()

	resp := NewClient("k", WithBaseURL(srv.URL)).Search(context.Background(), "q", 0)

	assert.Empty(t, resp.Data)
	require.Len(t, resp.Error, 1)
	assert.Equal(t, FaultDecode, resp.Error[0].Other["name"])
	assert.Contains(t, resp.Error[0].Message(), "error decoding search response (status 502)")
}

func TestClient_TransportFault(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	url := srv.URL
	srv.Close()

	resp := NewClient("k", WithBaseURL(url)).Search(context.Background(), "q", 5)

	assert.NotNil(t, resp.Data)
	assert.Empty(t, resp.Data)
	require.Len(t, resp.Error, 1)
	assert.Equal(t, FaultTransport, resp.Error[0].Other["name"])
	assert.Contains(t, resp.Error[0].Message(), "error calling search endpoint")
}

func TestClient_RequestFault(t *testing.T) {
	resp := NewClient("k", WithBaseURL("http://[::1]:namedport")).Search(context.Background(), "q", 0)

	require.True(t, resp.HasError())
	assert.Equal(t, FaultRequest, resp.Error[0].Other["name"])
}
