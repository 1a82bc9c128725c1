package history

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap/zaptest"

	"github.com/mtzgroup/tcpb-go/internal/adapter/logging"
	"github.com/mtzgroup/tcpb-go/internal/adapter/memory/recordport"
	"github.com/mtzgroup/tcpb-go/internal/domain"
)

func newRecord(id int32, acceptedAt time.Time) domain.JobRecord {
	return domain.JobRecord{
		ID:          uuid.New(),
		ServerJobID: id,
		Client:      "conn",
		Status:      domain.RecordStatusAccepted,
		AcceptedAt:  acceptedAt,
	}
}

func TestRecordsReachRepository(t *testing.T) {
	t.Parallel()
	repo := recordport.NewRecordRepository(10)
	svc := NewHistoryService(repo, logging.NewFromZap(zaptest.NewLogger(t)))
	svc.Start(context.Background())

	rec := newRecord(1, time.Now())
	svc.Record(rec)
	rec.Finish(domain.RecordStatusDelivered)
	svc.Record(rec)
	svc.Stop()

	got, err := svc.GetRecord(context.Background(), rec.ID)
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}
	if got.Status != domain.RecordStatusDelivered {
		t.Fatalf("status = %s, want DELIVERED", got.Status)
	}
	recs, err := svc.ListRecords(context.Background(), 10)
	if err != nil || len(recs) != 1 {
		t.Fatalf("ListRecords = %d records, %v", len(recs), err)
	}

	if _, err := svc.GetRecord(context.Background(), uuid.New()); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Fatalf("GetRecord unknown = %v, want ErrRecordNotFound", err)
	}
}

func TestFullQueueDrops(t *testing.T) {
	t.Parallel()
	repo := recordport.NewRecordRepository(10)
	svc := NewHistoryService(repo, logging.NewFromZap(zaptest.NewLogger(t)), WithQueueSize(1))

	// not started, so nothing drains the queue
	svc.Record(newRecord(1, time.Now()))
	svc.Record(newRecord(2, time.Now()))
	if svc.Dropped() != 1 {
		t.Fatalf("dropped = %d, want 1", svc.Dropped())
	}

	svc.Start(context.Background())
	svc.Stop()
	recs, _ := repo.ListRecords(context.Background(), 0)
	if len(recs) != 1 || recs[0].ServerJobID != 1 {
		t.Fatalf("repository holds %+v, want job 1 only", recs)
	}
}

func TestPruneRemovesOldRecords(t *testing.T) {
	t.Parallel()
	ctx := context.Background()
	repo := recordport.NewRecordRepository(10)
	old := newRecord(1, time.Now().Add(-2*time.Hour))
	fresh := newRecord(2, time.Now())
	_ = repo.SaveRecord(ctx, &old)
	_ = repo.SaveRecord(ctx, &fresh)

	svc := NewHistoryService(repo, logging.NewFromZap(zaptest.NewLogger(t)),
		WithRetention(time.Hour), WithPruneInterval(10*time.Millisecond))
	svc.Start(ctx)
	defer svc.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for {
		if _, err := repo.GetRecord(ctx, old.ID); errors.Is(err, domain.ErrRecordNotFound) {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("old record never pruned")
		}
		time.Sleep(5 * time.Millisecond)
	}
	if _, err := repo.GetRecord(ctx, fresh.ID); err != nil {
		t.Fatalf("fresh record pruned: %v", err)
	}
}

func TestStopWithoutStart(t *testing.T) {
	t.Parallel()
	svc := NewHistoryService(recordport.NewRecordRepository(1), logging.NewFromZap(zaptest.NewLogger(t)))
	svc.Stop()
	svc.Stop()
}
