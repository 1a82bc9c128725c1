package jobrepository

import (
	"context"
	"errors"
	"os"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
	"go.uber.org/zap/zaptest"

	"github.com/mtzgroup/tcpb-go/internal/adapter/logging"
	"github.com/mtzgroup/tcpb-go/internal/domain"
)

// newTestRepository connects to TCPB_TEST_POSTGRES_DSN or skips
func newTestRepository(t *testing.T) *RecordRepository {
	t.Helper()
	dsn := os.Getenv("TCPB_TEST_POSTGRES_DSN")
	if dsn == "" {
		t.Skip("TCPB_TEST_POSTGRES_DSN not set")
	}
	db, err := sqlx.Connect("postgres", dsn)
	if err != nil {
		t.Fatalf("Connect failed: %v", err)
	}
	t.Cleanup(func() { _ = db.Close() })

	repo := NewRecordRepository(db, logging.NewFromZap(zaptest.NewLogger(t)))
	if err := repo.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("EnsureSchema failed: %v", err)
	}
	return repo
}

func TestPostgresRecordLifecycle(t *testing.T) {
	repo := newTestRepository(t)
	ctx := context.Background()

	// far in the past so concurrent runs never see each other's records
	base := time.Date(1990, 1, 1, 0, 0, 0, 0, time.UTC).Add(time.Duration(time.Now().UnixNano() % int64(time.Hour)))
	old := domain.JobRecord{ID: uuid.New(), ServerJobID: 1, Status: domain.RecordStatusAccepted, AcceptedAt: base}
	fresh := domain.JobRecord{ID: uuid.New(), ServerJobID: 2, Status: domain.RecordStatusAccepted, AcceptedAt: time.Now().UTC()}
	for _, rec := range []*domain.JobRecord{&old, &fresh} {
		if err := repo.SaveRecord(ctx, rec); err != nil {
			t.Fatalf("SaveRecord failed: %v", err)
		}
	}
	t.Cleanup(func() {
		_, _ = repo.db.ExecContext(context.Background(), "DELETE FROM tcpb_jobs WHERE id = $1", fresh.ID)
	})

	fresh.Finish(domain.RecordStatusAbandoned)
	if err := repo.SaveRecord(ctx, &fresh); err != nil {
		t.Fatalf("SaveRecord update failed: %v", err)
	}
	got, err := repo.GetRecord(ctx, fresh.ID)
	if err != nil {
		t.Fatalf("GetRecord failed: %v", err)
	}
	if got.Status != domain.RecordStatusAbandoned || got.FinishedAt == nil {
		t.Fatalf("record = %+v, want abandoned", got)
	}

	recs, err := repo.ListRecords(ctx, 1)
	if err != nil || len(recs) != 1 {
		t.Fatalf("ListRecords = %d records, %v", len(recs), err)
	}

	if _, err := repo.DeleteBefore(ctx, base.Add(time.Second)); err != nil {
		t.Fatalf("DeleteBefore failed: %v", err)
	}
	if _, err := repo.GetRecord(ctx, old.ID); !errors.Is(err, domain.ErrRecordNotFound) {
		t.Fatalf("GetRecord after prune = %v, want ErrRecordNotFound", err)
	}
}
