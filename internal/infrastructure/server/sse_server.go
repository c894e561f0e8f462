package server

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"sync"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"go.uber.org/multierr"

	"github.com/FreePeak/mcp-kagi-search/internal/domain"
	"github.com/FreePeak/mcp-kagi-search/internal/infrastructure/logging"
)

const (
	// maxMessageBytes caps the body of a single inbound message.
	maxMessageBytes = 4 << 20

	sessionIDParam = "sessionId"
)

// SSEServer serves many concurrent clients. Each GET on the SSE endpoint opens
// a session with its own push stream; POSTs on the message endpoint are routed
// to a session by the sessionId query parameter.
type SSEServer struct {
	handler         domain.MessageHandler
	registry        *SessionRegistry
	logger          *logging.Logger
	basePath        string
	sseEndpoint     string
	messageEndpoint string
	queueSize       int
	newID           func() string

	mu     sync.Mutex
	srv    *http.Server
	closed bool
	active sync.WaitGroup
}

// SSEOption defines a function type for configuring SSEServer
type SSEOption func(*SSEServer)

// WithBasePath sets the base path for the SSE server
func WithBasePath(basePath string) SSEOption {
	return func(s *SSEServer) {
		if basePath != "" && !strings.HasPrefix(basePath, "/") {
			basePath = "/" + basePath
		}
		s.basePath = strings.TrimSuffix(basePath, "/")
	}
}

// WithSSEEndpoint sets the SSE endpoint path
func WithSSEEndpoint(endpoint string) SSEOption {
	return func(s *SSEServer) {
		s.sseEndpoint = endpoint
	}
}

// WithMessageEndpoint sets the message endpoint path
func WithMessageEndpoint(endpoint string) SSEOption {
	return func(s *SSEServer) {
		s.messageEndpoint = endpoint
	}
}

// WithLogger sets the logger
func WithLogger(logger *logging.Logger) SSEOption {
	return func(s *SSEServer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithQueueSize sets the per-session outbound buffer size
func WithQueueSize(size int) SSEOption {
	return func(s *SSEServer) {
		s.queueSize = size
	}
}

// NewSSEServer creates a multi-session server dispatching messages to handler.
func NewSSEServer(handler domain.MessageHandler, opts ...SSEOption) *SSEServer {
	s := &SSEServer{
		handler:         handler,
		registry:        NewSessionRegistry(),
		logger:          logging.NewNop(),
		sseEndpoint:     "/sse",
		messageEndpoint: "/message",
		queueSize:       DefaultQueueSize,
		newID:           func() string { return uuid.New().String() },
	}

	for _, opt := range opts {
		opt(s)
	}

	return s
}

// Registry returns the registry of live sessions.
func (s *SSEServer) Registry() *SessionRegistry {
	return s.registry
}

// Start listens on addr and serves until Shutdown is called.
func (s *SSEServer) Start(addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return errors.Wrapf(err, "error listening on %s", addr)
	}
	return s.Serve(ln)
}

// Serve accepts connections on ln until Shutdown is called.
func (s *SSEServer) Serve(ln net.Listener) error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return ln.Close()
	}
	s.srv = &http.Server{Handler: s}
	srv := s.srv
	s.mu.Unlock()

	s.logger.Info("SSE server listening", logging.Fields{
		"addr":             ln.Addr().String(),
		"sse_endpoint":     s.ssePath(),
		"message_endpoint": s.messagePath(),
	})

	if err := srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "SSE server stopped")
	}
	return nil
}

// Shutdown stops accepting sessions, closes every live one, waits for their
// streams to finish and stops the HTTP server.
func (s *SSEServer) Shutdown(ctx context.Context) error {
	s.mu.Lock()
	s.closed = true
	srv := s.srv
	s.mu.Unlock()

	s.registry.CloseAll()

	var err error
	drained := make(chan struct{})
	go func() {
		s.active.Wait()
		close(drained)
	}()
	select {
	case <-drained:
	case <-ctx.Done():
		err = multierr.Append(err, errors.Wrap(ctx.Err(), "waiting for sessions to drain"))
	}

	if srv != nil {
		err = multierr.Append(err, srv.Shutdown(ctx))
	}
	return err
}

// ServeHTTP implements the http.Handler interface.
func (s *SSEServer) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	switch r.URL.Path {
	case s.ssePath():
		s.handleSSE(w, r)
	case s.messagePath():
		s.handleMessage(w, r)
	case s.basePath + "/healthz":
		s.handleHealth(w, r)
	default:
		http.NotFound(w, r)
	}
}

// handleSSE opens a session and streams its events until the client goes away.
func (s *SSEServer) handleSSE(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		s.logger.Error("cannot stream events", logging.Fields{"error": ErrResponseWriterNotFlusher})
		http.Error(w, "Streaming unsupported", http.StatusInternalServerError)
		return
	}

	session, err := s.openSession()
	if err != nil {
		switch {
		case errors.Is(err, ErrServerClosed):
			http.Error(w, "Server shutting down", http.StatusServiceUnavailable)
		case domain.IsDuplicateIdentity(err):
			s.logger.Error("session identity already registered", logging.Fields{"error": err})
			http.Error(w, "Internal error", http.StatusInternalServerError)
		default:
			s.logger.Error("failed to register session", logging.Fields{"error": err})
			http.Error(w, "Internal error", http.StatusInternalServerError)
		}
		return
	}
	defer s.active.Done()
	defer s.endSession(session)

	s.logger.Debug("SSE connection opened", logging.Fields{
		"session_id": session.ID(),
		"user_agent": r.UserAgent(),
	})

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")
	w.WriteHeader(http.StatusOK)
	flusher.Flush()

	session.Push(Event{Name: "endpoint", Data: []byte(s.endpointFor(session.ID()))})

	err = session.Run(r.Context(), func(event Event) error {
		if _, err := fmt.Fprintf(w, "event: %s\ndata: %s\n\n", event.Name, event.Data); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})

	s.logger.Debug("SSE connection closed", logging.Fields{
		"session_id": session.ID(),
		"reason":     err,
	})
}

// openSession registers a new session unless the server is shutting down.
func (s *SSEServer) openSession() (*Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.closed {
		return nil, ErrServerClosed
	}
	session := newSession(s.newID(), s.queueSize, s.logger)
	if err := s.registry.Add(session); err != nil {
		return nil, err
	}
	s.active.Add(1)
	return session, nil
}

// endSession tears a session down: it leaves the registry before its
// resources are released, so late messages get a clean not-found.
func (s *SSEServer) endSession(session *Session) {
	session.MarkClosing()
	s.registry.Remove(session.ID())
	session.Close()
}

// handleMessage routes an inbound JSON-RPC message to its session and pushes
// the response on that session's stream.
func (s *SSEServer) handleMessage(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Access-Control-Allow-Origin", "*")
	if r.Method == http.MethodOptions {
		w.Header().Set("Access-Control-Allow-Methods", "POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		w.WriteHeader(http.StatusNoContent)
		return
	}
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	session, body, err := s.readMessage(w, r)
	if err != nil {
		s.rejectMessage(w, err)
		return
	}

	// The dispatch outlives the POST: a client hanging up does not cancel it.
	ctx := context.WithoutCancel(r.Context())
	if response := s.handler.HandleMessage(ctx, body); response != nil {
		if err := session.PushMessage("message", response); err != nil {
			s.logger.Debug("response discarded", logging.Fields{
				"session_id": session.ID(),
				"error":      err,
			})
		}
	}

	w.WriteHeader(http.StatusAccepted)
	_, _ = io.WriteString(w, "Accepted")
}

// readMessage resolves the target session and reads the message body. It
// fails with RequestMalformedError or SessionNotFoundError.
func (s *SSEServer) readMessage(w http.ResponseWriter, r *http.Request) (*Session, []byte, error) {
	sessionID := r.URL.Query().Get(sessionIDParam)
	if sessionID == "" {
		return nil, nil, domain.NewRequestMalformedError("Missing sessionId")
	}

	session, ok := s.registry.Find(sessionID)
	if !ok {
		return nil, nil, domain.NewSessionNotFoundError(sessionID)
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxMessageBytes))
	if err != nil {
		return nil, nil, domain.NewRequestMalformedError("Invalid message body")
	}
	if !json.Valid(body) {
		return nil, nil, domain.NewRequestMalformedError("Invalid JSON")
	}
	return session, body, nil
}

// rejectMessage answers a message that could not be routed. Routing failures
// are expected after disconnects and only logged at info.
func (s *SSEServer) rejectMessage(w http.ResponseWriter, err error) {
	switch {
	case domain.IsSessionNotFound(err):
		s.logger.Info("dropping message for unknown session", logging.Fields{"error": err})
		http.Error(w, "Session not found", http.StatusNotFound)
	case domain.IsRequestMalformed(err):
		s.logger.Warn("rejecting malformed message", logging.Fields{"error": err})
		http.Error(w, err.Error(), http.StatusBadRequest)
	default:
		s.logger.Error("failed to route message", logging.Fields{"error": err})
		http.Error(w, "Internal error", http.StatusInternalServerError)
	}
}

func (s *SSEServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(map[string]interface{}{
		"status":   "ok",
		"sessions": s.registry.Count(),
	})
}

func (s *SSEServer) ssePath() string {
	return s.basePath + s.sseEndpoint
}

func (s *SSEServer) messagePath() string {
	return s.basePath + s.messageEndpoint
}

func (s *SSEServer) endpointFor(sessionID string) string {
	return s.messagePath() + "?" + sessionIDParam + "=" + url.QueryEscape(sessionID)
}
