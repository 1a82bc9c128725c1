package client

import (
	"context"
	"errors"
	"fmt"

	"github.com/mtzgroup/tcpb-go/internal/domain"
	"github.com/mtzgroup/tcpb-go/internal/tcp/codec"
	"github.com/mtzgroup/tcpb-go/internal/tcp/defs"
	"github.com/mtzgroup/tcpb-go/internal/tcp/transport"
)

// IsAvailable polls the server and reports whether it would accept a job
func (c *Client) IsAvailable(ctx context.Context) (bool, error) {
	status, err := c.statusRoundTrip(ctx, "IsAvailable", defs.MsgStatus, nil)
	if err != nil {
		return false, c.commError(err)
	}
	return !status.Busy, nil
}

// SendJobAsync submits in. It returns false with a nil error when the server
// is busy; the caller retries later.
func (c *Client) SendJobAsync(ctx context.Context, in *domain.JobInput) (bool, error) {
	if in == nil {
		return false, c.commError(errors.New("SendJobAsync: nil job input"))
	}

	c.state = StateAwaitingAccept
	status, err := c.statusRoundTrip(ctx, "SendJobAsync", defs.MsgJobInput, codec.MarshalJobInput(in))
	if err != nil {
		c.state = StateIdle
		return false, c.commError(err)
	}

	switch status.Case {
	case domain.StatusCaseAccepted:
		c.jobDir = status.JobDir
		c.jobScrDir = status.JobScrDir
		c.jobID = status.ServerJobID
		c.state = StateAwaitingCompletion
		c.logger.Debug("Job accepted", "jobID", c.jobID, "jobDir", c.jobDir)
		return true, nil
	case domain.StatusCaseNone:
		c.state = StateIdle
		return false, nil
	default:
		c.state = StateIdle
		return false, c.commError(protocolErrorf("SendJobAsync", "unexpected %s status in reply to a job", status.Case))
	}
}

// CheckJobComplete polls the server for the submitted job
func (c *Client) CheckJobComplete(ctx context.Context) (bool, error) {
	status, err := c.statusRoundTrip(ctx, "CheckJobComplete", defs.MsgStatus, nil)
	if err != nil {
		return false, c.commError(err)
	}

	switch status.Case {
	case domain.StatusCaseWorking:
		return false, nil
	case domain.StatusCaseCompleted:
		c.state = StateCompleted
		return true, nil
	default:
		return false, c.commError(protocolErrorf("CheckJobComplete", "no valid job status received (busy=%t)", status.Busy))
	}
}

// RecvJobAsync reads the job output that follows a completed status
func (c *Client) RecvJobAsync(ctx context.Context) (*domain.JobOutput, error) {
	var msg transport.Message
	err := c.do(ctx, func(conn *transport.Conn) error {
		var err error
		msg, err = transport.ReadMessage(conn)
		return err
	})
	if err != nil {
		return nil, c.commError(fmt.Errorf("RecvJobAsync: %w", err))
	}

	if msg.Type != defs.MsgJobOutput {
		return nil, c.commError(protocolErrorf("RecvJobAsync", "expected %s, got %s", defs.MsgJobOutput, msg.Type))
	}
	if len(msg.Payload) == 0 {
		return nil, c.commError(protocolErrorf("RecvJobAsync", "empty job output"))
	}
	out, err := codec.UnmarshalJobOutput(msg.Payload)
	if err != nil {
		return nil, c.commError(&ProtocolError{Op: "RecvJobAsync", Reason: err.Error()})
	}

	c.state = StateIdle
	return out, nil
}

// statusRoundTrip sends one frame and reads back the status reply
func (c *Client) statusRoundTrip(ctx context.Context, op string, msgType defs.MessageType, payload []byte) (domain.Status, error) {
	var msg transport.Message
	err := c.do(ctx, func(conn *transport.Conn) error {
		if err := transport.WriteMessage(conn, msgType, payload); err != nil {
			return err
		}
		var err error
		msg, err = transport.ReadMessage(conn)
		return err
	})
	if err != nil {
		return domain.Status{}, fmt.Errorf("%s: %w", op, err)
	}

	if msg.Type != defs.MsgStatus {
		return domain.Status{}, protocolErrorf(op, "expected %s, got %s", defs.MsgStatus, msg.Type)
	}
	status, err := codec.UnmarshalStatus(msg.Payload)
	if err != nil {
		return domain.Status{}, &ProtocolError{Op: op, Reason: err.Error()}
	}
	return status, nil
}

// do runs fn on the connection. A transport failure or a cancelled ctx leaves
// the connection unusable, so it is closed here.
func (c *Client) do(ctx context.Context, fn func(conn *transport.Conn) error) error {
	if c.conn == nil {
		return ErrNotConnected
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	conn := c.conn
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	err := fn(conn)
	if !stop() {
		c.dropConn()
		return ctx.Err()
	}
	if err != nil && transport.IsTransport(err) {
		c.dropConn()
	}
	return err
}

func (c *Client) dropConn() {
	if c.conn == nil {
		return
	}
	_ = c.conn.Close()
	c.conn = nil
	c.state = StateIdle
}
