package handlers

import (
	"context"
	"fmt"

	"github.com/mtzgroup/tcpb-go/internal/core/ports/primary"
	"github.com/mtzgroup/tcpb-go/internal/core/services/jobslot"
	"github.com/mtzgroup/tcpb-go/internal/tcp/codec"
	"github.com/mtzgroup/tcpb-go/internal/tcp/transport"
)

var _ primary.MessageHandler = (*JobInputHandler)(nil)

// JobInputHandler accepts a submitted job when the worker is waiting and the
// slot is free; otherwise it answers like a poll.
type JobInputHandler struct {
	Slot      jobslot.IJobSlotService
	Publisher primary.MessagePublisher
	Logger    primary.Logger
}

func NewJobInputHandler(slot jobslot.IJobSlotService, publisher primary.MessagePublisher, logger primary.Logger) *JobInputHandler {
	return &JobInputHandler{
		Slot:      slot,
		Publisher: publisher,
		Logger:    logger,
	}
}

// HandleMessage implements the MessageHandler interface
func (h *JobInputHandler) HandleMessage(ctx context.Context, conn *transport.Conn, payload []byte) error {
	in, err := codec.UnmarshalJobInput(payload)
	if err != nil {
		h.Logger.Error("Failed to parse job input", "connID", conn.ID(), "error", err)
		return fmt.Errorf("client %s: %w", conn.RemoteAddr(), err)
	}

	status, accepted, err := h.Slot.TryAccept(conn.ID(), conn.RemoteAddr(), in)
	if err != nil {
		// the client sees busy and retries
		h.Logger.Error("Failed to set up job", "connID", conn.ID(), "error", err)
	}
	if !accepted {
		return replyStatus(ctx, conn, h.Slot, h.Publisher)
	}

	if err := h.Publisher.PublishStatus(ctx, conn, status); err != nil {
		return err
	}
	h.Logger.Info("Accepted job", "connID", conn.ID(), "jobID", status.ServerJobID,
		"run", in.Run.String(), "method", in.Method.String(), "atoms", in.NumAtoms())
	return nil
}
