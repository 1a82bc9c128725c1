package publishers

import (
	"context"
	"fmt"

	"github.com/mtzgroup/tcpb-go/internal/core/ports/primary"
	"github.com/mtzgroup/tcpb-go/internal/core/ports/secondary"
	"github.com/mtzgroup/tcpb-go/internal/domain"
	"github.com/mtzgroup/tcpb-go/internal/tcp/codec"
	"github.com/mtzgroup/tcpb-go/internal/tcp/defs"
	"github.com/mtzgroup/tcpb-go/internal/tcp/transport"
)

var _ primary.MessagePublisher = (*ReplyPublisher)(nil)

// ReplyPublisher encodes and writes the server's replies
type ReplyPublisher struct {
	Metrics secondary.ServerMetrics
	Logger  primary.Logger
}

func NewReplyPublisher(metrics secondary.ServerMetrics, logger primary.Logger) *ReplyPublisher {
	return &ReplyPublisher{
		Metrics: metrics,
		Logger:  logger,
	}
}

func (p *ReplyPublisher) PublishStatus(ctx context.Context, conn *transport.Conn, status domain.Status) error {
	if err := transport.WriteMessage(conn, defs.MsgStatus, codec.MarshalStatus(status)); err != nil {
		return fmt.Errorf("failed to send status: %w", err)
	}
	p.Metrics.StatusSent(statusLabel(status))
	p.Logger.Debug("Sent status", "connID", conn.ID(), "busy", status.Busy, "case", status.Case.String(), "jobID", status.ServerJobID)
	return nil
}

func (p *ReplyPublisher) PublishOutput(ctx context.Context, conn *transport.Conn, out *domain.JobOutput) error {
	if err := transport.WriteMessage(conn, defs.MsgJobOutput, codec.MarshalJobOutput(out)); err != nil {
		return fmt.Errorf("failed to send job output: %w", err)
	}
	p.Logger.Info("Sent job output", "connID", conn.ID(), "jobID", out.ServerJobID)
	return nil
}

func statusLabel(s domain.Status) string {
	if s.Case != domain.StatusCaseNone {
		return s.Case.String()
	}
	if s.Busy {
		return "busy"
	}
	return "available"
}
