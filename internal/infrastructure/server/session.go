package server

import (
	"context"
	"encoding/json"
	"sync"
	"sync/atomic"

	"github.com/google/uuid"
	"github.com/pkg/errors"

	"github.com/FreePeak/mcp-kagi-search/internal/domain"
	"github.com/FreePeak/mcp-kagi-search/internal/infrastructure/logging"
)

// DefaultQueueSize is the number of outbound events buffered per session.
const DefaultQueueSize = 100

// Event is one outbound message queued on a session.
type Event struct {
	// Name is the SSE event name. Line oriented transports ignore it.
	Name string
	Data []byte
}

// EventWriter writes a single event to the underlying connection.
type EventWriter func(Event) error

// Session is one connected client. It exclusively owns its outbound queue;
// events are delivered in the order they were pushed.
type Session struct {
	id        string
	events    chan Event
	done      chan struct{}
	state     atomic.Int32
	closeOnce sync.Once
	logger    *logging.Logger
}

// NewSession opens a session with a freshly generated identity.
func NewSession(queueSize int, logger *logging.Logger) *Session {
	return newSession(uuid.New().String(), queueSize, logger)
}

func newSession(id string, queueSize int, logger *logging.Logger) *Session {
	if queueSize < 1 {
		queueSize = DefaultQueueSize
	}
	if logger == nil {
		logger = logging.NewNop()
	}
	s := &Session{
		id:     id,
		events: make(chan Event, queueSize),
		done:   make(chan struct{}),
		logger: logger.With(logging.Fields{"session_id": id}),
	}
	s.state.Store(int32(domain.SessionOpen))
	return s
}

// ID returns the session identity.
func (s *Session) ID() string {
	return s.id
}

// State returns the current lifecycle state.
func (s *Session) State() domain.SessionState {
	return domain.SessionState(s.state.Load())
}

// Done is closed once the session reaches the Closed state.
func (s *Session) Done() <-chan struct{} {
	return s.done
}

// Push queues an event for delivery. Pushing to a session that is not open is
// a logged no-op and returns false; the peer is already gone.
// Push blocks while the queue is full, until the writer catches up or the session closes.
func (s *Session) Push(event Event) bool {
	if s.State() != domain.SessionOpen {
		s.logger.Debug("dropping event for session that is not open", logging.Fields{
			"event": event.Name,
			"state": s.State().String(),
		})
		return false
	}

	select {
	case s.events <- event:
		// Close may have raced the send; a Closed session is never drained again.
		select {
		case <-s.done:
			return false
		default:
			return true
		}
	case <-s.done:
		s.logger.Debug("dropping event for closed session", logging.Fields{"event": event.Name})
		return false
	}
}

// PushMessage marshals v and pushes it as a named event.
func (s *Session) PushMessage(name string, v interface{}) error {
	data, err := json.Marshal(v)
	if err != nil {
		return errors.Wrap(err, "error marshalling event")
	}
	if !s.Push(Event{Name: name, Data: data}) {
		return ErrSessionClosed
	}
	return nil
}

// MarkClosing moves an open session to Closing. It reports whether the state changed.
func (s *Session) MarkClosing() bool {
	return s.state.CompareAndSwap(int32(domain.SessionOpen), int32(domain.SessionClosing))
}

// Close moves the session to Closed and releases the outbound queue.
// Calling Close more than once has no further effect.
func (s *Session) Close() {
	s.closeOnce.Do(func() {
		s.state.Store(int32(domain.SessionClosed))
		close(s.done)
	})
}

// Run writes queued events with write until the session closes, ctx is done
// or a write fails. Events still queued at close are flushed first.
func (s *Session) Run(ctx context.Context, write EventWriter) error {
	for {
		select {
		case event := <-s.events:
			if err := write(event); err != nil {
				return errors.Wrap(err, "error writing event")
			}
		case <-s.done:
			return s.flush(write)
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

func (s *Session) flush(write EventWriter) error {
	for {
		select {
		case event := <-s.events:
			if err := write(event); err != nil {
				return errors.Wrap(err, "error writing event")
			}
		default:
			return nil
		}
	}
}
