package domain

import (
	"errors"
	"time"

	"github.com/google/uuid"
)

// ErrRecordNotFound is returned by repositories for an unknown record id
var ErrRecordNotFound = errors.New("job record not found")

// RecordStatus represents the lifecycle state of a job on the server
type RecordStatus string

const (
	RecordStatusAccepted  RecordStatus = "ACCEPTED"
	RecordStatusCompleted RecordStatus = "COMPLETED"
	RecordStatusDelivered RecordStatus = "DELIVERED"
	RecordStatusAbandoned RecordStatus = "ABANDONED"
)

// JobRecord is the history entry kept for every accepted job
type JobRecord struct {
	ID          uuid.UUID    `db:"id" json:"id"`
	ServerJobID int32        `db:"server_job_id" json:"serverJobId"`
	Client      string       `db:"client" json:"client"`
	Run         string       `db:"run" json:"run"`
	Method      string       `db:"method" json:"method"`
	Basis       string       `db:"basis" json:"basis"`
	NumAtoms    int          `db:"num_atoms" json:"numAtoms"`
	NumMMAtoms  int          `db:"num_mm_atoms" json:"numMmAtoms"`
	JobDir      string       `db:"job_dir" json:"jobDir"`
	Status      RecordStatus `db:"status" json:"status"`
	AcceptedAt  time.Time    `db:"accepted_at" json:"acceptedAt"`
	FinishedAt  *time.Time   `db:"finished_at" json:"finishedAt,omitempty"`
}

type JobRecordTable struct {
	ID          string
	ServerJobID string
	Client      string
	Run         string
	Method      string
	Basis       string
	NumAtoms    string
	NumMMAtoms  string
	JobDir      string
	Status      string
	AcceptedAt  string
	FinishedAt  string
}

func GetJobRecordTable() JobRecordTable {
	return JobRecordTable{
		ID:          "id",
		ServerJobID: "server_job_id",
		Client:      "client",
		Run:         "run",
		Method:      "method",
		Basis:       "basis",
		NumAtoms:    "num_atoms",
		NumMMAtoms:  "num_mm_atoms",
		JobDir:      "job_dir",
		Status:      "status",
		AcceptedAt:  "accepted_at",
		FinishedAt:  "finished_at",
	}
}

func (JobRecordTable) TableName() string {
	return "tcpb_jobs"
}

// NewJobRecord creates the history entry for a freshly accepted job
func NewJobRecord(serverJobID int32, client, jobDir string, in *JobInput) *JobRecord {
	return &JobRecord{
		ID:          uuid.New(),
		ServerJobID: serverJobID,
		Client:      client,
		Run:         in.Run.String(),
		Method:      in.Method.String(),
		Basis:       in.Basis,
		NumAtoms:    in.NumAtoms(),
		NumMMAtoms:  in.NumMMAtoms(),
		JobDir:      jobDir,
		Status:      RecordStatusAccepted,
		AcceptedAt:  time.Now(),
	}
}

// Finish moves the record to a terminal state
func (r *JobRecord) Finish(status RecordStatus) {
	now := time.Now()
	r.Status = status
	r.FinishedAt = &now
}
