package recordport

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/mtzgroup/tcpb-go/internal/core/ports/secondary"
	"github.com/mtzgroup/tcpb-go/internal/domain"
)

var _ secondary.JobRecordRepository = (*RecordRepository)(nil)

// DefaultCapacity is how many records the ring keeps when none is given
const DefaultCapacity = 1000

// RecordRepository keeps the newest records in memory. Once full, saving a
// new record evicts the oldest one.
type RecordRepository struct {
	mu       sync.RWMutex
	records  map[uuid.UUID]*domain.JobRecord
	order    []uuid.UUID // insertion order, oldest first
	capacity int
}

// NewRecordRepository creates a ring of the given capacity
func NewRecordRepository(capacity int) *RecordRepository {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &RecordRepository{
		records:  make(map[uuid.UUID]*domain.JobRecord),
		capacity: capacity,
	}
}

// SaveRecord inserts or updates a record
func (r *RecordRepository) SaveRecord(ctx context.Context, rec *domain.JobRecord) error {
	cp := *rec
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.records[rec.ID]; exists {
		r.records[rec.ID] = &cp
		return nil
	}
	if len(r.order) >= r.capacity {
		delete(r.records, r.order[0])
		r.order = r.order[1:]
	}
	r.records[rec.ID] = &cp
	r.order = append(r.order, rec.ID)
	return nil
}

// GetRecord retrieves a record by ID
func (r *RecordRepository) GetRecord(ctx context.Context, id uuid.UUID) (*domain.JobRecord, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	rec, exists := r.records[id]
	if !exists {
		return nil, domain.ErrRecordNotFound
	}
	cp := *rec
	return &cp, nil
}

// ListRecords returns up to limit records, newest accepted first
func (r *RecordRepository) ListRecords(ctx context.Context, limit int) ([]*domain.JobRecord, error) {
	r.mu.RLock()
	recs := make([]*domain.JobRecord, 0, len(r.records))
	for _, rec := range r.records {
		cp := *rec
		recs = append(recs, &cp)
	}
	r.mu.RUnlock()

	sort.Slice(recs, func(i, j int) bool {
		return recs[i].AcceptedAt.After(recs[j].AcceptedAt)
	})
	if limit > 0 && len(recs) > limit {
		recs = recs[:limit]
	}
	return recs, nil
}

// DeleteBefore removes records accepted before t
func (r *RecordRepository) DeleteBefore(ctx context.Context, t time.Time) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	kept := r.order[:0]
	n := 0
	for _, id := range r.order {
		if r.records[id].AcceptedAt.Before(t) {
			delete(r.records, id)
			n++
			continue
		}
		kept = append(kept, id)
	}
	r.order = kept
	return n, nil
}
