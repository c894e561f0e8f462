package server

import "errors"

// Common errors in the server package
var (
	// ErrResponseWriterNotFlusher is returned when the ResponseWriter doesn't support Flusher interface
	ErrResponseWriterNotFlusher = errors.New("response writer does not implement http.Flusher")

	// ErrSessionClosed is returned when attempting to push to a session that is no longer open
	ErrSessionClosed = errors.New("session is closed")

	// ErrServerClosed is returned when a session is opened after shutdown began
	ErrServerClosed = errors.New("server is shutting down")
)
