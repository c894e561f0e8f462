package domain

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSearchErrorMessage(t *testing.T) {
	tests := []struct {
		name  string
		entry SearchError
		want  string
	}{
		{
			name:  "provider message",
			entry: SearchError{Msg: "Insufficient credit"},
			want:  "Insufficient credit",
		},
		{
			name: "fault with name",
			entry: SearchError{Other: map[string]interface{}{
				"name":    "TransportError",
				"message": "connection refused",
			}},
			want: "TransportError: connection refused",
		},
		{
			name:  "fault without name",
			entry: SearchError{Other: map[string]interface{}{"message": "boom"}},
			want:  "boom",
		},
		{
			name:  "empty",
			entry: SearchError{},
			want:  "unknown error",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, tt.entry.Message())
		})
	}
}

func TestNewFaultResponse(t *testing.T) {
	resp := NewFaultResponse("DecodeError", errors.New("unexpected EOF"))

	assert.Empty(t, resp.Data)
	assert.True(t, resp.HasError())
	assert.Equal(t, "DecodeError: unexpected EOF", resp.Error[0].Message())
}

func TestCallToolResultConstructors(t *testing.T) {
	ok := NewTextResult("hello")
	assert.False(t, ok.IsError)
	assert.Equal(t, "hello", ok.Text())
	assert.Equal(t, ContentTypeText, ok.Content[0].Type)

	failed := NewErrorResult("Didn't get any results")
	assert.True(t, failed.IsError)
	assert.Equal(t, "Error: Didn't get any results", failed.Text())
}

func TestSessionStateString(t *testing.T) {
	assert.Equal(t, "open", SessionOpen.String())
	assert.Equal(t, "closing", SessionClosing.String())
	assert.Equal(t, "closed", SessionClosed.String())
	assert.Equal(t, "unknown", SessionState(42).String())
}
