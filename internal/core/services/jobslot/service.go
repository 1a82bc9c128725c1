package jobslot

import (
	"context"

	"github.com/mtzgroup/tcpb-go/internal/domain"
)

// IJobSlotService is the single active-job slot shared by the reactor and the worker
type IJobSlotService interface {
	// RecvJobInput opens the accept gate and blocks until a job is accepted
	RecvJobInput(ctx context.Context) (*Job, error)

	// SendJobOutput hands the result over and blocks until it reached the client
	SendJobOutput(ctx context.Context, job *Job, out *domain.JobOutput) error

	// TryAccept accepts in for clientID when the gate is open and the slot is free
	TryAccept(clientID, remote string, in *domain.JobInput) (domain.Status, bool, error)

	// Poll builds the status reply for clientID
	Poll(clientID string) Reply

	// Delivered finishes a completed job after its output was written (or failed to be)
	Delivered(clientID string, err error)

	// Disconnect frees the slot if clientID held it
	Disconnect(clientID string)

	// Snapshot returns the current slot state
	Snapshot() domain.SlotState

	// Close wakes every blocked caller with ErrClosed
	Close()
}

// Reply is the reactor's answer to a poll. Output is set only alongside a completed status.
type Reply struct {
	Status domain.Status
	Output *domain.JobOutput
}
