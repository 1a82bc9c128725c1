// Package client drives one connection to a job server: submit, poll, receive.
package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strconv"
	"time"

	"github.com/mtzgroup/tcpb-go/internal/core/ports/primary"
	"github.com/mtzgroup/tcpb-go/internal/global/logger"
	"github.com/mtzgroup/tcpb-go/internal/tcp/defs"
	"github.com/mtzgroup/tcpb-go/internal/tcp/transport"
)

// State is the position of the client in the job protocol
type State int

const (
	StateIdle State = iota
	StateAwaitingAccept
	StateAwaitingCompletion
	StateCompleted
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAwaitingAccept:
		return "awaiting-accept"
	case StateAwaitingCompletion:
		return "awaiting-completion"
	case StateCompleted:
		return "completed"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Client is not safe for concurrent use; every call blocks until its round trip ends.
type Client struct {
	host       string
	port       int
	timeout    time.Duration
	retryDelay time.Duration
	pollDelay  time.Duration
	maxPayload uint32
	traceDir   string
	logger     primary.Logger

	conn     *transport.Conn
	recorder *transport.TraceRecorder
	state    State

	jobDir    string
	jobScrDir string
	jobID     int32
}

// Option configures a Client
type Option func(*Client)

// WithTimeout bounds every socket read and write
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.timeout = d
	}
}

// WithRetryDelay sets the sleep between busy submissions
func WithRetryDelay(d time.Duration) Option {
	return func(c *Client) {
		c.retryDelay = d
	}
}

// WithPollDelay sets the sleep between completion polls
func WithPollDelay(d time.Duration) Option {
	return func(c *Client) {
		c.pollDelay = d
	}
}

// WithMaxPayload bounds the frames the client accepts
func WithMaxPayload(n uint32) Option {
	return func(c *Client) {
		c.maxPayload = n
	}
}

// WithTrace appends every frame to packet trace files in dir
func WithTrace(dir string) Option {
	return func(c *Client) {
		c.traceDir = dir
	}
}

// WithLogger sets the client logger
func WithLogger(l primary.Logger) Option {
	return func(c *Client) {
		if l != nil {
			c.logger = l
		}
	}
}

// New creates an unconnected client
func New(host string, port int, options ...Option) *Client {
	c := &Client{
		host:       host,
		port:       port,
		timeout:    defs.ClientTimeout,
		retryDelay: defs.ClientRetryDelay,
		pollDelay:  defs.ClientPollDelay,
		maxPayload: defs.DefaultMaxPayload,
		logger:     logger.Logger,
		jobID:      -1,
	}
	for _, option := range options {
		option(c)
	}
	return c
}

// Dial creates a client and connects it
func Dial(ctx context.Context, host string, port int, options ...Option) (*Client, error) {
	c := New(host, port, options...)
	if err := c.Connect(ctx); err != nil {
		return nil, err
	}
	return c, nil
}

// Connect opens the connection. Connecting an already connected client is a no-op.
func (c *Client) Connect(ctx context.Context) error {
	if c.conn != nil {
		return nil
	}

	opts := []transport.Option{
		transport.WithTimeout(c.timeout),
		transport.WithMaxPayload(c.maxPayload),
	}
	if c.traceDir != "" {
		rec, err := transport.NewTraceRecorder(c.traceDir)
		if err != nil {
			return c.commError(fmt.Errorf("connect: %w", err))
		}
		c.recorder = rec
		opts = append(opts, transport.WithRecorder(rec))
	}

	dialCtx := ctx
	if c.timeout > 0 {
		var cancel context.CancelFunc
		dialCtx, cancel = context.WithTimeout(ctx, c.timeout)
		defer cancel()
	}
	conn, err := transport.Dial(dialCtx, c.Address(), opts...)
	if err != nil {
		_ = c.closeRecorder()
		return c.commError(fmt.Errorf("connect: %w", err))
	}

	c.conn = conn
	c.state = StateIdle
	c.logger.Debug("Connected to server", "address", c.Address())
	return nil
}

// Close releases the connection and trace files
func (c *Client) Close() error {
	var err error
	if c.conn != nil {
		err = c.conn.Close()
		c.conn = nil
	}
	err = errors.Join(err, c.closeRecorder())
	c.state = StateIdle
	return err
}

// Address returns host:port
func (c *Client) Address() string {
	return net.JoinHostPort(c.host, strconv.Itoa(c.port))
}

func (c *Client) Host() string { return c.host }

func (c *Client) Port() int { return c.port }

// Connected reports whether the client holds an open connection
func (c *Client) Connected() bool {
	return c.conn != nil
}

// State returns the protocol state
func (c *Client) State() State {
	return c.state
}

// CurrentJob returns the job dir, scratch dir and id recorded at accept time.
// The id is -1 outside a job.
func (c *Client) CurrentJob() (dir, scrDir string, id int32) {
	return c.jobDir, c.jobScrDir, c.jobID
}

func (c *Client) resetJob() {
	c.jobDir = ""
	c.jobScrDir = ""
	c.jobID = -1
}

// closeRecorder closes the packet trace and reports any frame it failed to write
func (c *Client) closeRecorder() error {
	if c.recorder == nil {
		return nil
	}
	writeErr := c.recorder.Err()
	if writeErr != nil {
		c.logger.Warn("Packet trace is incomplete", "dir", c.traceDir, "error", writeErr)
		writeErr = fmt.Errorf("packet trace: %w", writeErr)
	}
	closeErr := c.recorder.Close()
	if closeErr != nil {
		c.logger.Warn("Failed to close packet trace", "dir", c.traceDir, "error", closeErr)
		closeErr = fmt.Errorf("close packet trace: %w", closeErr)
	}
	c.recorder = nil
	return errors.Join(writeErr, closeErr)
}

// commError decorates err with the server and job identity
func (c *Client) commError(err error) error {
	var sce *ServerCommError
	if errors.As(err, &sce) {
		return err
	}
	return &ServerCommError{
		Host:    c.host,
		Port:    c.port,
		JobDir:  c.jobDir,
		JobID:   c.jobID,
		LogTail: tailLog(c.jobDir, c.jobID, logTailLines),
		Err:     err,
	}
}
