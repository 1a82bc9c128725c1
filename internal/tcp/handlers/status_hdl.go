package handlers

import (
	"context"

	"github.com/mtzgroup/tcpb-go/internal/core/ports/primary"
	"github.com/mtzgroup/tcpb-go/internal/core/services/jobslot"
	"github.com/mtzgroup/tcpb-go/internal/tcp/transport"
)

var _ primary.MessageHandler = (*StatusHandler)(nil)

// StatusHandler answers polls. It is also registered for JOBOUTPUT frames,
// which clients never legitimately send.
type StatusHandler struct {
	Slot      jobslot.IJobSlotService
	Publisher primary.MessagePublisher
	Logger    primary.Logger
}

func NewStatusHandler(slot jobslot.IJobSlotService, publisher primary.MessagePublisher, logger primary.Logger) *StatusHandler {
	return &StatusHandler{
		Slot:      slot,
		Publisher: publisher,
		Logger:    logger,
	}
}

// HandleMessage implements the MessageHandler interface. The payload is ignored.
func (h *StatusHandler) HandleMessage(ctx context.Context, conn *transport.Conn, payload []byte) error {
	return replyStatus(ctx, conn, h.Slot, h.Publisher)
}

// replyStatus sends the slot's answer for conn. A completed job is followed by
// its output and the slot is told whether delivery worked.
func replyStatus(ctx context.Context, conn *transport.Conn, slot jobslot.IJobSlotService, publisher primary.MessagePublisher) error {
	reply := slot.Poll(conn.ID())
	if err := publisher.PublishStatus(ctx, conn, reply.Status); err != nil {
		if reply.Output != nil {
			slot.Delivered(conn.ID(), err)
		}
		return err
	}
	if reply.Output == nil {
		return nil
	}

	err := publisher.PublishOutput(ctx, conn, reply.Output)
	slot.Delivered(conn.ID(), err)
	return err
}
