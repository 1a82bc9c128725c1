package jobslot

import (
	"context"
	"time"

	"github.com/mtzgroup/tcpb-go/internal/core/ports/primary"
	"github.com/mtzgroup/tcpb-go/internal/domain"
)

// Job is one accepted job as seen by the worker
type Job struct {
	ID     int32
	Dir    string
	ScrDir string
	Input  *domain.JobInput

	// Log writes to <Dir>/<ID>.log
	Log primary.Logger

	clientID   string
	logPath    string
	record     domain.JobRecord
	acceptedAt time.Time
	ctx        context.Context
	cancel     context.CancelCauseFunc
	done       chan error
	closeLog   func() error
}

// Context is cancelled with ErrClientGone when the submitting client disconnects
func (j *Job) Context() context.Context {
	return j.ctx
}

// ClientID identifies the connection that submitted the job
func (j *Job) ClientID() string {
	return j.clientID
}

func (j *Job) release() {
	if j.closeLog != nil {
		_ = j.closeLog()
		j.closeLog = nil
	}
}
