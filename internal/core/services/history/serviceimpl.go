package history

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/mtzgroup/tcpb-go/internal/core/ports/primary"
	"github.com/mtzgroup/tcpb-go/internal/core/ports/secondary"
	"github.com/mtzgroup/tcpb-go/internal/domain"
)

var _ IHistoryService = (*HistoryService)(nil)

const (
	defaultQueueSize     = 256
	defaultRetention     = 7 * 24 * time.Hour
	defaultPruneInterval = time.Hour
	saveTimeout          = 5 * time.Second
)

// HistoryService queues records and writes them to a repository in the background
type HistoryService struct {
	repo          secondary.JobRecordRepository
	logger        primary.Logger
	queue         chan domain.JobRecord
	retention     time.Duration
	pruneInterval time.Duration
	dropped       atomic.Int64

	wg       sync.WaitGroup
	cancel   context.CancelFunc
	stopOnce sync.Once
}

// Option configures a HistoryService
type Option func(*HistoryService)

// WithQueueSize bounds how many records may wait for the repository
func WithQueueSize(n int) Option {
	return func(s *HistoryService) {
		if n > 0 {
			s.queue = make(chan domain.JobRecord, n)
		}
	}
}

// WithRetention sets how long records are kept; zero keeps them forever
func WithRetention(d time.Duration) Option {
	return func(s *HistoryService) {
		s.retention = d
	}
}

// WithPruneInterval sets how often old records are deleted
func WithPruneInterval(d time.Duration) Option {
	return func(s *HistoryService) {
		if d > 0 {
			s.pruneInterval = d
		}
	}
}

// NewHistoryService creates a new history service
func NewHistoryService(repo secondary.JobRecordRepository, logger primary.Logger, options ...Option) *HistoryService {
	s := &HistoryService{
		repo:          repo,
		logger:        logger,
		queue:         make(chan domain.JobRecord, defaultQueueSize),
		retention:     defaultRetention,
		pruneInterval: defaultPruneInterval,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Record queues rec; a full queue drops it
func (s *HistoryService) Record(rec domain.JobRecord) {
	select {
	case s.queue <- rec:
	default:
		n := s.dropped.Add(1)
		s.logger.Warn("History queue full, dropping record", "jobId", rec.ServerJobID, "status", rec.Status, "dropped", n)
	}
}

// Dropped returns how many records were lost to a full queue
func (s *HistoryService) Dropped() int64 {
	return s.dropped.Load()
}

// Start launches the writer and, when retention is set, the prune loop
func (s *HistoryService) Start(ctx context.Context) {
	ctx, s.cancel = context.WithCancel(ctx)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		for {
			select {
			case <-ctx.Done():
				s.flush()
				return
			case rec := <-s.queue:
				s.save(context.Background(), rec)
			}
		}
	}()

	if s.retention <= 0 {
		return
	}
	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		ticker := time.NewTicker(s.pruneInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.prune(ctx)
			}
		}
	}()
}

// Stop flushes the queue and waits for the background loops
func (s *HistoryService) Stop() {
	s.stopOnce.Do(func() {
		if s.cancel != nil {
			s.cancel()
		}
		s.wg.Wait()
	})
}

// GetRecord retrieves a record by ID
func (s *HistoryService) GetRecord(ctx context.Context, id uuid.UUID) (*domain.JobRecord, error) {
	rec, err := s.repo.GetRecord(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("failed to get job record: %w", err)
	}
	return rec, nil
}

// ListRecords returns up to limit records, newest first
func (s *HistoryService) ListRecords(ctx context.Context, limit int) ([]*domain.JobRecord, error) {
	recs, err := s.repo.ListRecords(ctx, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to list job records: %w", err)
	}
	return recs, nil
}

func (s *HistoryService) flush() {
	for {
		select {
		case rec := <-s.queue:
			s.save(context.Background(), rec)
		default:
			return
		}
	}
}

func (s *HistoryService) save(ctx context.Context, rec domain.JobRecord) {
	ctx, cancel := context.WithTimeout(ctx, saveTimeout)
	defer cancel()
	if err := s.repo.SaveRecord(ctx, &rec); err != nil {
		s.logger.Error("Failed to save job record", "jobId", rec.ServerJobID, "status", rec.Status, "error", err)
	}
}

func (s *HistoryService) prune(ctx context.Context) {
	cutoff := time.Now().Add(-s.retention)
	n, err := s.repo.DeleteBefore(ctx, cutoff)
	if err != nil {
		s.logger.Error("Failed to prune job records", "cutoff", cutoff, "error", err)
		return
	}
	if n > 0 {
		s.logger.Info("Pruned job records", "count", n, "cutoff", cutoff)
	}
}
