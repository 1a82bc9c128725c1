package transport

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"sync"
	"syscall"
	"time"

	"github.com/google/uuid"

	"github.com/mtzgroup/tcpb-go/internal/tcp/defs"
)

var (
	ErrTransport       = errors.New("transport failure")
	ErrPeerClosed      = fmt.Errorf("%w: peer closed connection", ErrTransport)
	ErrPartial         = fmt.Errorf("%w: partial transfer", ErrTransport)
	ErrMessageTooLarge = fmt.Errorf("%w: message exceeds maximum payload", ErrTransport)
	ErrClosed          = fmt.Errorf("%w: connection already closed", ErrTransport)
)

// IsTransport reports whether err came from the socket layer
func IsTransport(err error) bool {
	return errors.Is(err, ErrTransport)
}

// Conn is a framed socket over one TCP connection. It is owned by exactly one
// component, and Close is the only place the underlying connection is closed.
type Conn struct {
	conn         net.Conn
	id           string
	maxPayload   uint32
	readTimeout  time.Duration
	writeTimeout time.Duration
	recorder     Recorder

	closeOnce sync.Once
	closed    chan struct{}
	closeErr  error
}

// Option configures a Conn
type Option func(*Conn)

// WithMaxPayload bounds the payload length accepted and sent
func WithMaxPayload(n uint32) Option {
	return func(c *Conn) {
		if n > 0 {
			c.maxPayload = n
		}
	}
}

// WithTimeout sets both read and write deadlines applied per operation
func WithTimeout(d time.Duration) Option {
	return func(c *Conn) {
		c.readTimeout = d
		c.writeTimeout = d
	}
}

// WithWriteTimeout sets only the write deadline
func WithWriteTimeout(d time.Duration) Option {
	return func(c *Conn) {
		c.writeTimeout = d
	}
}

// WithRecorder attaches a frame recorder
func WithRecorder(r Recorder) Option {
	return func(c *Conn) {
		c.recorder = r
	}
}

// New wraps an established connection
func New(conn net.Conn, options ...Option) *Conn {
	c := &Conn{
		conn:       conn,
		id:         uuid.NewString(),
		maxPayload: defs.DefaultMaxPayload,
		closed:     make(chan struct{}),
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// Dial connects to address and wraps the result
func Dial(ctx context.Context, address string, options ...Option) (*Conn, error) {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "tcp", address)
	if err != nil {
		return nil, fmt.Errorf("dial %s: %w", address, err)
	}
	return New(conn, options...), nil
}

// ID returns the connection identifier
func (c *Conn) ID() string {
	return c.id
}

// RemoteAddr returns the peer address
func (c *Conn) RemoteAddr() string {
	if addr := c.conn.RemoteAddr(); addr != nil {
		return addr.String()
	}
	return ""
}

// MaxPayload returns the payload limit
func (c *Conn) MaxPayload() uint32 {
	return c.maxPayload
}

// Closed is closed once Close has run
func (c *Conn) Closed() <-chan struct{} {
	return c.closed
}

// SendAll writes all of buf or fails. An empty buffer is a no-op.
func (c *Conn) SendAll(buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	if c.isClosed() {
		return ErrClosed
	}
	if c.writeTimeout > 0 {
		_ = c.conn.SetWriteDeadline(time.Now().Add(c.writeTimeout))
	}

	retried := false
	sent := 0
	for sent < len(buf) {
		n, err := c.conn.Write(buf[sent:])
		sent += n
		if err == nil {
			continue
		}
		if isTransient(err) && !retried {
			retried = true
			continue
		}
		if sent > 0 {
			return fmt.Errorf("sent %d of %d bytes: %w: %w", sent, len(buf), ErrPartial, err)
		}
		return fmt.Errorf("send %d bytes: %w: %w", len(buf), ErrTransport, err)
	}
	return nil
}

// RecvAll fills buf or fails. A peer shutdown before buf is full is a failure.
func (c *Conn) RecvAll(buf []byte) error {
	if len(buf) == 0 {
		return nil
	}
	if c.isClosed() {
		return ErrClosed
	}
	if c.readTimeout > 0 {
		_ = c.conn.SetReadDeadline(time.Now().Add(c.readTimeout))
	}

	retried := false
	got := 0
	for got < len(buf) {
		n, err := c.conn.Read(buf[got:])
		got += n
		if err == nil {
			continue
		}
		if errors.Is(err, io.EOF) {
			if got == 0 {
				return ErrPeerClosed
			}
			if got < len(buf) {
				return fmt.Errorf("received %d of %d bytes: %w", got, len(buf), ErrPartial)
			}
			return nil
		}
		if isTransient(err) && !retried {
			retried = true
			continue
		}
		if c.isClosed() {
			return ErrClosed
		}
		if got > 0 {
			return fmt.Errorf("received %d of %d bytes: %w: %w", got, len(buf), ErrPartial, err)
		}
		return fmt.Errorf("recv %d bytes: %w: %w", len(buf), ErrTransport, err)
	}
	return nil
}

// Close shuts down and closes the connection once; later calls return the first result
func (c *Conn) Close() error {
	c.closeOnce.Do(func() {
		close(c.closed)
		if tcp, ok := c.conn.(*net.TCPConn); ok {
			_ = tcp.CloseWrite()
		}
		c.closeErr = c.conn.Close()
	})
	return c.closeErr
}

func (c *Conn) isClosed() bool {
	select {
	case <-c.closed:
		return true
	default:
		return false
	}
}

func isTransient(err error) bool {
	return errors.Is(err, syscall.EINTR) || errors.Is(err, syscall.EAGAIN)
}
