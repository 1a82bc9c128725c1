// Package replay serves a recorded client packet trace back to one client.
package replay

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"net"
	"path/filepath"
	"sync"
	"time"

	"github.com/mtzgroup/tcpb-go/internal/core/ports/primary"
	"github.com/mtzgroup/tcpb-go/internal/domain"
	"github.com/mtzgroup/tcpb-go/internal/tcp/codec"
	"github.com/mtzgroup/tcpb-go/internal/tcp/defs"
	"github.com/mtzgroup/tcpb-go/internal/tcp/transport"
)

var (
	// ErrMismatch means the client sent something other than the recorded frame
	ErrMismatch = errors.New("frame does not match trace")
	// ErrTraceExhausted means the recv trace ran out before the sent trace
	ErrTraceExhausted = errors.New("ran out of replies in trace")
)

// Server accepts a single client and replays a trace to it
type Server struct {
	listener net.Listener
	expected []transport.Message
	replies  []transport.Message
	timeout  time.Duration
	logger   primary.Logger

	once sync.Once
	done chan struct{}
	err  error
}

// Option configures a Server
type Option func(*Server)

// WithTimeout sets the per-frame read and write deadline
func WithTimeout(d time.Duration) Option {
	return func(s *Server) {
		s.timeout = d
	}
}

// Load reads the sent and recv traces written by a tracing client in dir
func Load(dir string) (expected, replies []transport.Message, err error) {
	expected, err = transport.LoadTrace(filepath.Join(dir, transport.SentTraceFile))
	if err != nil {
		return nil, nil, err
	}
	replies, err = transport.LoadTrace(filepath.Join(dir, transport.RecvTraceFile))
	if err != nil {
		return nil, nil, err
	}
	return expected, replies, nil
}

// NewServer binds address. expected is what the client sent, replies what it received.
func NewServer(logger primary.Logger, address string, expected, replies []transport.Message, options ...Option) (*Server, error) {
	s := &Server{
		expected: expected,
		replies:  replies,
		timeout:  5 * time.Second,
		logger:   logger,
		done:     make(chan struct{}),
	}
	for _, option := range options {
		option(s)
	}

	listener, err := net.Listen("tcp", address)
	if err != nil {
		return nil, fmt.Errorf("failed to start replay server on %s: %w", address, err)
	}
	s.listener = listener
	return s, nil
}

// Addr returns the bound address
func (s *Server) Addr() net.Addr {
	return s.listener.Addr()
}

// Port returns the bound TCP port
func (s *Server) Port() int {
	if addr, ok := s.listener.Addr().(*net.TCPAddr); ok {
		return addr.Port
	}
	return 0
}

// Serve accepts one client and replays the whole trace to it. It returns
// nil once every expected frame was received and answered.
func (s *Server) Serve(ctx context.Context) error {
	s.once.Do(func() {
		defer close(s.done)
		s.err = s.serve(ctx)
	})
	<-s.done
	return s.err
}

// Close stops a Serve that is still waiting for its client
func (s *Server) Close() error {
	if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
		return err
	}
	return nil
}

func (s *Server) serve(ctx context.Context) error {
	stop := context.AfterFunc(ctx, func() { _ = s.listener.Close() })
	defer stop()

	nc, err := s.listener.Accept()
	_ = s.listener.Close()
	if err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("accept replay client: %w", err)
	}

	conn := transport.New(nc, transport.WithTimeout(s.timeout))
	defer conn.Close()
	stopConn := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer stopConn()

	s.logger.Info("Replaying trace", "client", conn.RemoteAddr(), "expected", len(s.expected), "replies", len(s.replies))
	if err := s.replay(conn); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return err
	}
	s.logger.Info("Trace replayed", "client", conn.RemoteAddr())
	return nil
}

func (s *Server) replay(conn *transport.Conn) error {
	replies := s.replies
	for i, want := range s.expected {
		got, err := transport.ReadMessage(conn)
		if err != nil {
			return fmt.Errorf("frame %d: %w", i, err)
		}
		if got.Type != want.Type {
			return fmt.Errorf("frame %d: got %s, want %s: %w", i, got.Type, want.Type, ErrMismatch)
		}
		if !bytes.Equal(got.Payload, want.Payload) {
			return fmt.Errorf("frame %d: %s payload differs (%d bytes, want %d): %w", i, got.Type, len(got.Payload), len(want.Payload), ErrMismatch)
		}

		if len(replies) == 0 {
			return fmt.Errorf("frame %d: %w", i, ErrTraceExhausted)
		}
		reply := replies[0]
		replies = replies[1:]
		if err := transport.WriteMessage(conn, reply.Type, reply.Payload); err != nil {
			return fmt.Errorf("reply %d: %w", i, err)
		}

		// a completed status is followed by the output on the same turn
		if completed(reply) {
			if len(replies) == 0 {
				return fmt.Errorf("output after frame %d: %w", i, ErrTraceExhausted)
			}
			out := replies[0]
			replies = replies[1:]
			if err := transport.WriteMessage(conn, out.Type, out.Payload); err != nil {
				return fmt.Errorf("output after frame %d: %w", i, err)
			}
		}
	}
	return nil
}

func completed(msg transport.Message) bool {
	if msg.Type != defs.MsgStatus {
		return false
	}
	status, err := codec.UnmarshalStatus(msg.Payload)
	return err == nil && status.Case == domain.StatusCaseCompleted
}
