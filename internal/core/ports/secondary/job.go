package secondary

import (
	"context"
	"time"

	"github.com/google/uuid"

	"github.com/mtzgroup/tcpb-go/internal/domain"
)

// JobRecordRepository stores the server's job history
type JobRecordRepository interface {
	// SaveRecord inserts or updates a record
	SaveRecord(ctx context.Context, rec *domain.JobRecord) error

	// GetRecord retrieves a record by ID
	GetRecord(ctx context.Context, id uuid.UUID) (*domain.JobRecord, error)

	// ListRecords returns the most recently accepted records first
	ListRecords(ctx context.Context, limit int) ([]*domain.JobRecord, error)

	// DeleteBefore removes records accepted before t
	DeleteBefore(ctx context.Context, t time.Time) (int, error)
}

// JobRecorder observes job lifecycle transitions. Record must not block.
type JobRecorder interface {
	Record(rec domain.JobRecord)
}
