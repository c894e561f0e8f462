package server

import (
	"bufio"
	"context"
	"io"
	"sync"

	"github.com/pkg/errors"
	"golang.org/x/sync/errgroup"

	"github.com/FreePeak/mcp-kagi-search/internal/domain"
	"github.com/FreePeak/mcp-kagi-search/internal/infrastructure/logging"
)

// StdioServer serves a single implicit session over a pair of streams.
// Messages are newline delimited JSON in both directions.
type StdioServer struct {
	handler   domain.MessageHandler
	logger    *logging.Logger
	queueSize int
}

// StdioOption defines a function type for configuring StdioServer
type StdioOption func(*StdioServer)

// WithStdioLogger sets the logger
func WithStdioLogger(logger *logging.Logger) StdioOption {
	return func(s *StdioServer) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// NewStdioServer creates a stdio server dispatching messages to handler.
func NewStdioServer(handler domain.MessageHandler, opts ...StdioOption) *StdioServer {
	s := &StdioServer{
		handler:   handler,
		logger:    logging.NewNop(),
		queueSize: DefaultQueueSize,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Listen reads messages from in and writes responses to out until in reaches
// EOF or ctx is cancelled. Messages are dispatched concurrently, so responses
// may be written in a different order than their requests arrived.
func (s *StdioServer) Listen(ctx context.Context, in io.Reader, out io.Writer) error {
	session := NewSession(s.queueSize, s.logger)
	writer := bufio.NewWriter(out)

	s.logger.Info("stdio server listening", logging.Fields{"session_id": session.ID()})

	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return session.Run(gctx, func(event Event) error {
			if _, err := writer.Write(event.Data); err != nil {
				return err
			}
			if err := writer.WriteByte('\n'); err != nil {
				return err
			}
			return writer.Flush()
		})
	})

	g.Go(func() error {
		defer session.Close()
		err := s.dispatch(gctx, session, in)
		session.MarkClosing()
		return err
	})

	err := g.Wait()
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

// dispatch reads lines until EOF and hands each one to the message handler.
// It returns after every in-flight dispatch has pushed its response.
func (s *StdioServer) dispatch(ctx context.Context, session *Session, in io.Reader) error {
	lines := make(chan []byte)
	readErr := make(chan error, 1)

	go func() {
		defer close(lines)
		reader := bufio.NewReader(in)
		for {
			line, err := reader.ReadBytes('\n')
			if len(trimLine(line)) > 0 {
				select {
				case lines <- line:
				case <-ctx.Done():
					return
				}
			}
			if err != nil {
				if err != io.EOF {
					readErr <- errors.Wrap(err, "error reading input")
				}
				return
			}
		}
	}()

	var inflight sync.WaitGroup
	defer inflight.Wait()

	for {
		select {
		case line, ok := <-lines:
			if !ok {
				inflight.Wait()
				select {
				case err := <-readErr:
					return err
				default:
					s.logger.Info("input closed, ending session")
					return nil
				}
			}
			inflight.Add(1)
			go func(raw []byte) {
				defer inflight.Done()
				response := s.handler.HandleMessage(ctx, trimLine(raw))
				if response == nil {
					return
				}
				if err := session.PushMessage("message", response); err != nil {
					s.logger.Debug("response discarded", logging.Fields{"error": err})
				}
			}(line)
		case <-ctx.Done():
			// Unblock any dispatch still pushing to a queue nobody drains.
			session.MarkClosing()
			session.Close()
			return ctx.Err()
		}
	}
}

func trimLine(line []byte) []byte {
	for len(line) > 0 {
		switch line[len(line)-1] {
		case '\n', '\r', ' ', '\t':
			line = line[:len(line)-1]
		default:
			return line
		}
	}
	return line
}
