// package tcp
package tcp

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/mtzgroup/tcpb-go/internal/adapter/metrics"
	"github.com/mtzgroup/tcpb-go/internal/core/ports/primary"
	"github.com/mtzgroup/tcpb-go/internal/core/ports/secondary"
	"github.com/mtzgroup/tcpb-go/internal/core/services/jobslot"
	"github.com/mtzgroup/tcpb-go/internal/domain"
	"github.com/mtzgroup/tcpb-go/internal/tcp/codec"
	"github.com/mtzgroup/tcpb-go/internal/tcp/connectionmanager"
	"github.com/mtzgroup/tcpb-go/internal/tcp/defs"
	"github.com/mtzgroup/tcpb-go/internal/tcp/handlers"
	"github.com/mtzgroup/tcpb-go/internal/tcp/publishers"
	"github.com/mtzgroup/tcpb-go/internal/tcp/transport"
)

// ErrUnknownMessage is returned for frames whose type has no handler
var ErrUnknownMessage = errors.New("unknown message type")

// event is what reader goroutines and the accept loop hand to the reactor
type event struct {
	conn   *transport.Conn
	opened bool
	msg    transport.Message
	err    error
}

// Server accepts client connections and serializes them onto one job slot.
// A single reactor goroutine dispatches every frame and writes every reply.
type Server struct {
	address      string
	maxPayload   uint32
	writeTimeout time.Duration
	tick         time.Duration

	slot          jobslot.IJobSlotService
	logger        primary.Logger
	metrics       secondary.ServerMetrics
	listener      net.Listener
	connectionMgr *connectionmanager.ConnectionManager
	handlers      map[defs.MessageType]primary.MessageHandler
	publisher     primary.MessagePublisher

	events      chan event
	stopCh      chan struct{}
	reactorDone chan struct{}
	startOnce   sync.Once
	stopOnce    sync.Once
	group       *errgroup.Group
	cancel      context.CancelFunc
}

// TCPServerOption configures a Server
type TCPServerOption func(*Server)

// WithAddress sets the listen address
func WithAddress(address string) TCPServerOption {
	return func(s *Server) {
		s.address = address
	}
}

// WithMaxPayload bounds the frames clients may send
func WithMaxPayload(n uint32) TCPServerOption {
	return func(s *Server) {
		if n > 0 {
			s.maxPayload = n
		}
	}
}

// WithWriteTimeout bounds every reply write
func WithWriteTimeout(d time.Duration) TCPServerOption {
	return func(s *Server) {
		s.writeTimeout = d
	}
}

// WithReactorTick sets how often the reactor refreshes slot gauges
func WithReactorTick(d time.Duration) TCPServerOption {
	return func(s *Server) {
		if d > 0 {
			s.tick = d
		}
	}
}

// WithListener serves on an already bound listener instead of the address
func WithListener(l net.Listener) TCPServerOption {
	return func(s *Server) {
		s.listener = l
	}
}

// WithMetrics attaches a metrics sink
func WithMetrics(m secondary.ServerMetrics) TCPServerOption {
	return func(s *Server) {
		if m != nil {
			s.metrics = m
		}
	}
}

// NewServer binds the listen address. Start launches the reactor.
func NewServer(logger primary.Logger, slot jobslot.IJobSlotService, options ...TCPServerOption) (*Server, error) {
	server := &Server{
		address:       ":9000",
		maxPayload:    defs.DefaultMaxPayload,
		writeTimeout:  defs.ServerWriteTimeout,
		tick:          defs.ReactorTick,
		slot:          slot,
		logger:        logger,
		metrics:       metrics.Nop{},
		connectionMgr: connectionmanager.NewConnectionManager(logger),
		events:        make(chan event),
		stopCh:        make(chan struct{}),
		reactorDone:   make(chan struct{}),
	}

	for _, option := range options {
		option(server)
	}

	if server.listener == nil {
		listener, err := net.Listen("tcp", server.address)
		if err != nil {
			return nil, fmt.Errorf("failed to start TCP server on %s: %w", server.address, err)
		}
		server.listener = listener
	}

	server.setupMessageHandlers()
	return server, nil
}

// setupMessageHandlers registers the per-type handlers
func (s *Server) setupMessageHandlers() {
	s.publisher = publishers.NewReplyPublisher(s.metrics, s.logger)
	status := handlers.NewStatusHandler(s.slot, s.publisher, s.logger)

	s.handlers = map[defs.MessageType]primary.MessageHandler{
		defs.MsgStatus:    status,
		defs.MsgJobInput:  handlers.NewJobInputHandler(s.slot, s.publisher, s.logger),
		defs.MsgJobOutput: status,
	}
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

// Peers lists the open client connections
func (s *Server) Peers() []domain.PeerInfo {
	return s.connectionMgr.Peers(s.slot.Snapshot().ActiveClient)
}

// Connections returns the number of open client connections
func (s *Server) Connections() int {
	return s.connectionMgr.Len()
}

// Start launches the accept loop and the reactor
func (s *Server) Start() {
	s.startOnce.Do(func() {
		ctx, cancel := context.WithCancel(context.Background())
		s.cancel = cancel
		s.group, ctx = errgroup.WithContext(ctx)

		s.logger.Info("TCP server listening", "address", s.listener.Addr().String())
		s.group.Go(func() error { return s.acceptConnections(ctx) })
		s.group.Go(func() error {
			defer close(s.reactorDone)
			return s.reactor(ctx)
		})
	})
}

// Stop closes the listener and every client connection, then waits for the
// server goroutines or ctx, whichever comes first
func (s *Server) Stop(ctx context.Context) error {
	s.stopOnce.Do(func() {
		close(s.stopCh)
		if s.cancel != nil {
			s.cancel()
		}
		if err := s.listener.Close(); err != nil && !errors.Is(err, net.ErrClosed) {
			s.logger.Error("Failed to close listener", "error", err)
		}
	})

	if s.group == nil {
		s.closeAllConnections()
		return nil
	}

	// connections are only closed once the reactor can no longer add one
	select {
	case <-s.reactorDone:
	case <-ctx.Done():
		return ctx.Err()
	}
	s.closeAllConnections()

	done := make(chan error, 1)
	go func() { done <- s.group.Wait() }()

	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// closeAllConnections closes every client connection and frees the slot
func (s *Server) closeAllConnections() {
	for _, id := range s.connectionMgr.CloseAll() {
		s.slot.Disconnect(id)
		s.metrics.ConnectionClosed()
	}
}

// acceptConnections accepts incoming connections and hands them to the reactor
func (s *Server) acceptConnections(ctx context.Context) error {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			select {
			case <-s.stopCh:
				return nil
			default:
			}
			s.logger.Error("Failed to accept connection", "error", err)
			select {
			case <-time.After(defs.ConnectionRetryDelay):
				continue
			case <-s.stopCh:
				return nil
			}
		}

		c := transport.New(conn,
			transport.WithMaxPayload(s.maxPayload),
			transport.WithWriteTimeout(s.writeTimeout),
		)
		if !s.emit(event{conn: c, opened: true}) {
			_ = c.Close()
			return nil
		}
	}
}

// readConnection forwards frames from one connection until it fails
func (s *Server) readConnection(c *transport.Conn) error {
	for {
		msg, err := transport.ReadMessage(c)
		if err != nil {
			s.emit(event{conn: c, err: err})
			return nil
		}
		if !s.emit(event{conn: c, msg: msg}) {
			return nil
		}
	}
}

func (s *Server) emit(ev event) bool {
	select {
	case s.events <- ev:
		return true
	case <-s.stopCh:
		return false
	}
}

// reactor processes events one at a time
func (s *Server) reactor(ctx context.Context) error {
	ticker := time.NewTicker(s.tick)
	defer ticker.Stop()

	for {
		select {
		case <-s.stopCh:
			return nil
		case ev := <-s.events:
			s.handleEvent(ctx, ev)
		case <-ticker.C:
			s.metrics.ObserveSlot(s.slot.Snapshot())
		}
	}
}

func (s *Server) handleEvent(ctx context.Context, ev event) {
	switch {
	case ev.opened:
		s.connectionMgr.Add(ev.conn)
		s.metrics.ConnectionOpened()
		s.logger.Info("Client connected", "connID", ev.conn.ID(), "remote", ev.conn.RemoteAddr())
		c := ev.conn
		s.group.Go(func() error { return s.readConnection(c) })

	case ev.err != nil:
		s.dropConnection(ev.conn, ev.err)

	default:
		if !s.connectionMgr.Touch(ev.conn.ID()) {
			// frame raced a drop of the same connection
			return
		}
		s.metrics.MessageReceived(ev.msg.Type.String())

		handler, exists := s.handlers[ev.msg.Type]
		if !exists {
			s.dropConnection(ev.conn, fmt.Errorf("%w: %d", ErrUnknownMessage, uint32(ev.msg.Type)))
			return
		}
		if err := handler.HandleMessage(ctx, ev.conn, ev.msg.Payload); err != nil {
			s.dropConnection(ev.conn, err)
		}
	}
}

// dropConnection removes and closes c; an active job on it is abandoned
func (s *Server) dropConnection(c *transport.Conn, cause error) {
	if _, ok := s.connectionMgr.Remove(c.ID()); !ok {
		return
	}
	s.slot.Disconnect(c.ID())
	if err := c.Close(); err != nil {
		s.logger.Debug("Close after drop failed", "connID", c.ID(), "error", err)
	}
	s.metrics.ConnectionClosed()

	switch {
	case errors.Is(cause, transport.ErrPeerClosed):
		s.logger.Info("Client disconnected", "connID", c.ID(), "remote", c.RemoteAddr())
	case errors.Is(cause, transport.ErrMessageTooLarge):
		s.metrics.ProtocolError("too_large")
		s.logger.Warn("Dropped client sending oversized frame", "connID", c.ID(), "error", cause)
	case errors.Is(cause, codec.ErrMalformed):
		s.metrics.ProtocolError("malformed")
		s.logger.Warn("Dropped client sending malformed job input", "connID", c.ID(), "error", cause)
	case errors.Is(cause, ErrUnknownMessage):
		s.metrics.ProtocolError("unknown_type")
		s.logger.Warn("Dropped client sending unknown message type", "connID", c.ID(), "error", cause)
	default:
		s.logger.Warn("Dropped client after I/O failure", "connID", c.ID(), "error", cause)
	}
}
