// package jobrepository stores job records in PostgreSQL
package jobrepository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/mtzgroup/tcpb-go/internal/core/ports/primary"
	"github.com/mtzgroup/tcpb-go/internal/core/ports/secondary"
	"github.com/mtzgroup/tcpb-go/internal/domain"
)

var _ secondary.JobRecordRepository = (*RecordRepository)(nil)

// RecordRepository implements the JobRecordRepository interface with PostgreSQL
type RecordRepository struct {
	db     *sqlx.DB
	logger primary.Logger
	tbl    domain.JobRecordTable
}

// NewRecordRepository creates a new PostgreSQL record repository
func NewRecordRepository(db *sqlx.DB, logger primary.Logger) *RecordRepository {
	return &RecordRepository{
		db:     db,
		logger: logger,
		tbl:    domain.GetJobRecordTable(),
	}
}

// EnsureSchema creates the record table if it does not exist
func (r *RecordRepository) EnsureSchema(ctx context.Context) error {
	t := r.tbl
	query := fmt.Sprintf(`
		CREATE TABLE IF NOT EXISTS %s (
			%s UUID PRIMARY KEY,
			%s INTEGER NOT NULL,
			%s TEXT NOT NULL,
			%s TEXT NOT NULL,
			%s TEXT NOT NULL,
			%s TEXT NOT NULL,
			%s INTEGER NOT NULL,
			%s INTEGER NOT NULL,
			%s TEXT NOT NULL,
			%s TEXT NOT NULL,
			%s TIMESTAMPTZ NOT NULL,
			%s TIMESTAMPTZ
		)`,
		t.TableName(), t.ID, t.ServerJobID, t.Client, t.Run, t.Method, t.Basis,
		t.NumAtoms, t.NumMMAtoms, t.JobDir, t.Status, t.AcceptedAt, t.FinishedAt)

	if _, err := r.db.ExecContext(ctx, query); err != nil {
		r.logger.Error("Failed to create job record table", "error", err)
		return fmt.Errorf("failed to create job record table: %w", err)
	}
	return nil
}

// SaveRecord inserts or updates a record
func (r *RecordRepository) SaveRecord(ctx context.Context, rec *domain.JobRecord) error {
	t := r.tbl
	query := fmt.Sprintf(`
		INSERT INTO %s (
			%s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s, %s
		) VALUES (
			:id, :server_job_id, :client, :run, :method, :basis, :num_atoms,
			:num_mm_atoms, :job_dir, :status, :accepted_at, :finished_at
		)
		ON CONFLICT (%s) DO UPDATE SET
			%s = EXCLUDED.%s,
			%s = EXCLUDED.%s`,
		t.TableName(), t.ID, t.ServerJobID, t.Client, t.Run, t.Method, t.Basis,
		t.NumAtoms, t.NumMMAtoms, t.JobDir, t.Status, t.AcceptedAt, t.FinishedAt,
		t.ID, t.Status, t.Status, t.FinishedAt, t.FinishedAt)

	if _, err := r.db.NamedExecContext(ctx, query, rec); err != nil {
		r.logger.Error("Failed to save job record", "id", rec.ID, "error", err)
		return fmt.Errorf("failed to save job record: %w", err)
	}
	return nil
}

// GetRecord retrieves a record by ID
func (r *RecordRepository) GetRecord(ctx context.Context, id uuid.UUID) (*domain.JobRecord, error) {
	query := fmt.Sprintf(`SELECT * FROM %s WHERE %s = $1`, r.tbl.TableName(), r.tbl.ID)

	var rec domain.JobRecord
	if err := r.db.GetContext(ctx, &rec, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, domain.ErrRecordNotFound
		}
		r.logger.Error("Failed to get job record", "id", id, "error", err)
		return nil, fmt.Errorf("failed to get job record: %w", err)
	}
	return &rec, nil
}

// ListRecords returns up to limit records, newest accepted first
func (r *RecordRepository) ListRecords(ctx context.Context, limit int) ([]*domain.JobRecord, error) {
	query := fmt.Sprintf(`SELECT * FROM %s ORDER BY %s DESC`, r.tbl.TableName(), r.tbl.AcceptedAt)
	args := []interface{}{}
	if limit > 0 {
		query += " LIMIT $1"
		args = append(args, limit)
	}

	recs := make([]*domain.JobRecord, 0)
	if err := r.db.SelectContext(ctx, &recs, query, args...); err != nil {
		r.logger.Error("Failed to list job records", "error", err)
		return nil, fmt.Errorf("failed to list job records: %w", err)
	}
	return recs, nil
}

// DeleteBefore removes records accepted before t
func (r *RecordRepository) DeleteBefore(ctx context.Context, t time.Time) (int, error) {
	query := fmt.Sprintf(`DELETE FROM %s WHERE %s < $1`, r.tbl.TableName(), r.tbl.AcceptedAt)

	result, err := r.db.ExecContext(ctx, query, t)
	if err != nil {
		r.logger.Error("Failed to delete job records", "error", err)
		return 0, fmt.Errorf("failed to delete job records: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		r.logger.Error("Error checking rows affected", "error", err)
		return 0, fmt.Errorf("error checking rows affected: %w", err)
	}
	return int(rowsAffected), nil
}
