package jobport

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"

	"github.com/mtzgroup/tcpb-go/internal/core/ports/primary"
	"github.com/mtzgroup/tcpb-go/internal/core/ports/secondary"
	"github.com/mtzgroup/tcpb-go/internal/domain"
)

var _ secondary.JobRecordRepository = (*RecordRepository)(nil)

const (
	defaultKeyPrefix = "tcpb:job:"
	scanBatch        = 100
)

// RecordRepository implements the JobRecordRepository interface with Redis.
// Each record is one JSON value; expiry doubles as retention.
type RecordRepository struct {
	redisClient *redis.Client
	logger      primary.Logger
	keyPrefix   string
	expiration  time.Duration
}

// NewRecordRepository creates a new Redis record repository. A zero
// expiration keeps records until DeleteBefore removes them.
func NewRecordRepository(redisClient *redis.Client, logger primary.Logger, keyPrefix string, expiration time.Duration) *RecordRepository {
	if keyPrefix == "" {
		keyPrefix = defaultKeyPrefix
	}
	return &RecordRepository{
		redisClient: redisClient,
		logger:      logger,
		keyPrefix:   keyPrefix,
		expiration:  expiration,
	}
}

func (r *RecordRepository) key(id uuid.UUID) string {
	return fmt.Sprintf("%s%s", r.keyPrefix, id)
}

// SaveRecord saves a record to Redis
func (r *RecordRepository) SaveRecord(ctx context.Context, rec *domain.JobRecord) error {
	recJSON, err := json.Marshal(rec)
	if err != nil {
		r.logger.Error("Failed to marshal job record", "error", err)
		return fmt.Errorf("failed to marshal job record: %w", err)
	}

	if err := r.redisClient.Set(ctx, r.key(rec.ID), recJSON, r.expiration).Err(); err != nil {
		r.logger.Error("Failed to save job record", "id", rec.ID, "error", err)
		return fmt.Errorf("failed to save job record: %w", err)
	}
	return nil
}

// GetRecord retrieves a record from Redis by ID
func (r *RecordRepository) GetRecord(ctx context.Context, id uuid.UUID) (*domain.JobRecord, error) {
	recJSON, err := r.redisClient.Get(ctx, r.key(id)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, domain.ErrRecordNotFound
		}
		r.logger.Error("Failed to get job record", "id", id, "error", err)
		return nil, fmt.Errorf("failed to get job record: %w", err)
	}

	var rec domain.JobRecord
	if err := json.Unmarshal(recJSON, &rec); err != nil {
		r.logger.Error("Failed to unmarshal job record", "id", id, "error", err)
		return nil, fmt.Errorf("failed to unmarshal job record: %w", err)
	}
	return &rec, nil
}

// ListRecords returns up to limit records, newest accepted first
func (r *RecordRepository) ListRecords(ctx context.Context, limit int) ([]*domain.JobRecord, error) {
	recs, err := r.all(ctx)
	if err != nil {
		return nil, err
	}
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
	recs, err := r.all(ctx)
	if err != nil {
		return 0, err
	}

	var stale []string
	for _, rec := range recs {
		if rec.AcceptedAt.Before(t) {
			stale = append(stale, r.key(rec.ID))
		}
	}
	if len(stale) == 0 {
		return 0, nil
	}

	n, err := r.redisClient.Del(ctx, stale...).Result()
	if err != nil {
		r.logger.Error("Failed to delete job records", "count", len(stale), "error", err)
		return 0, fmt.Errorf("failed to delete job records: %w", err)
	}
	return int(n), nil
}

// all loads every record under the key prefix
func (r *RecordRepository) all(ctx context.Context) ([]*domain.JobRecord, error) {
	var cursor uint64
	var keys []string
	var err error

	for {
		var batch []string
		batch, cursor, err = r.redisClient.Scan(ctx, cursor, r.keyPrefix+"*", scanBatch).Result()
		if err != nil {
			return nil, fmt.Errorf("failed to scan job record keys: %w", err)
		}
		keys = append(keys, batch...)
		if cursor == 0 {
			break
		}
	}

	recs := make([]*domain.JobRecord, 0, len(keys))
	if len(keys) == 0 {
		return recs, nil
	}

	values, err := r.redisClient.MGet(ctx, keys...).Result()
	if err != nil {
		return nil, fmt.Errorf("failed to retrieve job records: %w", err)
	}
	for _, value := range values {
		// expired between SCAN and MGET
		s, ok := value.(string)
		if !ok {
			continue
		}
		var rec domain.JobRecord
		if err := json.Unmarshal([]byte(s), &rec); err != nil {
			return nil, fmt.Errorf("failed to unmarshal job record: %w", err)
		}
		recs = append(recs, &rec)
	}
	return recs, nil
}
