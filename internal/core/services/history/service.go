package history

import (
	"context"

	"github.com/google/uuid"

	"github.com/mtzgroup/tcpb-go/internal/core/ports/secondary"
	"github.com/mtzgroup/tcpb-go/internal/domain"
)

// IHistoryService records job lifecycle transitions off the reactor path
// and serves them back to the monitor
type IHistoryService interface {
	secondary.JobRecorder

	// Start launches the writer and prune loops
	Start(ctx context.Context)

	// Stop flushes queued records and waits for the loops to exit
	Stop()

	// GetRecord retrieves a record by ID
	GetRecord(ctx context.Context, id uuid.UUID) (*domain.JobRecord, error)

	// ListRecords returns the most recent records first
	ListRecords(ctx context.Context, limit int) ([]*domain.JobRecord, error)

	// Dropped returns how many records were lost to a full queue
	Dropped() int64
}
