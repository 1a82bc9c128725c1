package jobslot

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/mtzgroup/tcpb-go/internal/adapter/filesystem/workspace"
	"github.com/mtzgroup/tcpb-go/internal/adapter/logging"
	"github.com/mtzgroup/tcpb-go/internal/core/ports/primary"
	"github.com/mtzgroup/tcpb-go/internal/core/ports/secondary"
	"github.com/mtzgroup/tcpb-go/internal/domain"
)

var (
	ErrClientGone       = errors.New("active client disconnected")
	ErrClosed           = errors.New("job slot closed")
	ErrAlreadyCompleted = errors.New("job output already submitted")
)

var _ IJobSlotService = (*JobSlotService)(nil)

// JobSlotService implements IJobSlotService with one mutex-guarded slot and a
// handoff channel of capacity one.
type JobSlotService struct {
	workspace *workspace.Workspace
	logger    primary.Logger
	recorders []secondary.JobRecorder

	mu         sync.Mutex
	gateOpen   bool
	active     *Job
	currJobID  int32
	completed  bool
	delivering bool
	output     *domain.JobOutput

	handoff   chan *Job
	closed    chan struct{}
	closeOnce sync.Once
}

// Option configures a JobSlotService
type Option func(*JobSlotService)

// WithRecorder registers job lifecycle observers (history, metrics)
func WithRecorder(recorders ...secondary.JobRecorder) Option {
	return func(s *JobSlotService) {
		for _, r := range recorders {
			if r != nil {
				s.recorders = append(s.recorders, r)
			}
		}
	}
}

// NewJobSlotService creates the slot; job directories are created under ws
func NewJobSlotService(ws *workspace.Workspace, logger primary.Logger, options ...Option) *JobSlotService {
	s := &JobSlotService{
		workspace: ws,
		logger:    logger,
		handoff:   make(chan *Job, 1),
		closed:    make(chan struct{}),
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// RecvJobInput opens the accept gate and blocks until the reactor accepts a job.
// Jobs whose client vanished before pickup are skipped.
func (s *JobSlotService) RecvJobInput(ctx context.Context) (*Job, error) {
	for {
		var job *Job
		s.mu.Lock()
		select {
		case <-s.closed:
			s.mu.Unlock()
			return nil, ErrClosed
		default:
		}
		// a job left over from a cancelled receive is taken before the gate reopens
		select {
		case job = <-s.handoff:
		default:
			s.gateOpen = true
		}
		s.mu.Unlock()

		if job == nil {
			select {
			case job = <-s.handoff:
			case <-ctx.Done():
				s.mu.Lock()
				s.gateOpen = false
				s.mu.Unlock()
				// an accept may have raced the cancellation
				select {
				case job = <-s.handoff:
				default:
					return nil, ctx.Err()
				}
			case <-s.closed:
				return nil, ErrClosed
			}
		}

		if job.ctx.Err() != nil {
			s.logger.Warn("Skipping job abandoned before pickup", "jobID", job.ID, "client", job.clientID)
			continue
		}

		s.openJobLog(job)
		s.logger.Info("Job handed to worker", "jobID", job.ID, "jobDir", job.Dir)
		return job, nil
	}
}

// SendJobOutput stores out, marks the job completed and waits for delivery.
// It returns ErrClientGone when the submitting client is no longer connected.
func (s *JobSlotService) SendJobOutput(ctx context.Context, job *Job, out *domain.JobOutput) error {
	if job == nil || out == nil {
		return errors.New("job and output are required")
	}

	s.mu.Lock()
	if s.active != job {
		s.mu.Unlock()
		job.release()
		s.logger.Warn("Discarding output of abandoned job", "jobID", job.ID)
		return fmt.Errorf("job %d: %w", job.ID, ErrClientGone)
	}
	if s.completed {
		s.mu.Unlock()
		return fmt.Errorf("job %d: %w", job.ID, ErrAlreadyCompleted)
	}

	stored := out.Clone()
	if stored.JobDir == "" {
		stored.JobDir = job.Dir
	}
	if stored.JobScrDir == "" {
		stored.JobScrDir = job.ScrDir
	}
	if stored.ServerJobID == 0 {
		stored.ServerJobID = job.ID
	}
	s.output = stored
	s.completed = true
	job.record.Status = domain.RecordStatusCompleted
	rec := job.record
	s.mu.Unlock()

	s.record(rec)
	job.Log.Info("Job output ready", "jobID", job.ID)

	select {
	case err := <-job.done:
		job.release()
		if err != nil {
			return fmt.Errorf("job %d: %w", job.ID, err)
		}
		return nil
	case <-ctx.Done():
		job.release()
		return ctx.Err()
	case <-s.closed:
		job.release()
		return ErrClosed
	}
}

// TryAccept takes in as the new active job when the gate is open and nothing is active
func (s *JobSlotService) TryAccept(clientID, remote string, in *domain.JobInput) (domain.Status, bool, error) {
	s.mu.Lock()
	if !s.gateOpen || s.active != nil {
		s.mu.Unlock()
		return domain.Status{}, false, nil
	}

	id := s.currJobID + 1
	dirs, err := s.workspace.CreateJobDir(id)
	if err != nil {
		s.mu.Unlock()
		return domain.Status{}, false, fmt.Errorf("job %d: %w", id, err)
	}
	s.currJobID = id

	ctx, cancel := context.WithCancelCause(context.Background())
	job := &Job{
		ID:         id,
		Dir:        dirs.Dir,
		ScrDir:     dirs.ScrDir,
		Input:      in,
		Log:        s.logger,
		clientID:   clientID,
		logPath:    dirs.LogPath,
		record:     *domain.NewJobRecord(id, remote, dirs.Dir, in),
		acceptedAt: time.Now(),
		ctx:        ctx,
		cancel:     cancel,
		done:       make(chan error, 1),
	}

	select {
	case s.handoff <- job:
	default:
		s.mu.Unlock()
		cancel(nil)
		return domain.Status{}, false, fmt.Errorf("job %d: handoff already holds a job", id)
	}

	s.active = job
	s.gateOpen = false
	s.completed = false
	s.delivering = false
	s.output = nil
	rec := job.record
	s.mu.Unlock()

	s.record(rec)
	s.logger.Info("Job accepted", "jobID", id, "client", clientID, "remote", remote, "jobDir", dirs.Dir)
	return domain.JobStatus(domain.StatusCaseAccepted, dirs.Dir, dirs.ScrDir, id), true, nil
}

// Poll answers a client message that did not start a job
func (s *JobSlotService) Poll(clientID string) Reply {
	s.mu.Lock()
	defer s.mu.Unlock()

	job := s.active
	if job != nil && job.clientID == clientID {
		if s.completed && !s.delivering {
			s.delivering = true
			return Reply{
				Status: domain.JobStatus(domain.StatusCaseCompleted, job.Dir, job.ScrDir, job.ID),
				Output: s.output,
			}
		}
		return Reply{Status: domain.JobStatus(domain.StatusCaseWorking, job.Dir, job.ScrDir, job.ID)}
	}

	return Reply{Status: domain.BusyStatus(!(s.gateOpen && s.active == nil))}
}

// Delivered ends the session of clientID once its output was written
func (s *JobSlotService) Delivered(clientID string, err error) {
	s.mu.Lock()
	job := s.active
	if job == nil || job.clientID != clientID || !s.delivering {
		s.mu.Unlock()
		return
	}
	s.clearLocked()
	s.mu.Unlock()

	if err != nil {
		s.abandon(job, err)
		return
	}

	job.record.Finish(domain.RecordStatusDelivered)
	s.record(job.record)
	select {
	case job.done <- nil:
	default:
	}
	job.cancel(nil)
	s.logger.Info("Job output delivered", "jobID", job.ID, "client", clientID, "elapsed", time.Since(job.acceptedAt))
}

// Disconnect resets the slot if clientID was the active client
func (s *JobSlotService) Disconnect(clientID string) {
	s.mu.Lock()
	job := s.active
	if job == nil || job.clientID != clientID {
		s.mu.Unlock()
		return
	}
	s.clearLocked()
	s.mu.Unlock()

	s.abandon(job, nil)
}

// Snapshot returns the current slot state
func (s *JobSlotService) Snapshot() domain.SlotState {
	s.mu.Lock()
	defer s.mu.Unlock()

	state := domain.SlotState{
		GateOpen:  s.gateOpen,
		JobID:     s.currJobID,
		Completed: s.completed,
	}
	if s.active != nil {
		state.ActiveClient = s.active.clientID
		state.JobDir = s.active.Dir
	}
	return state
}

// Close wakes every blocked caller and abandons the active job
func (s *JobSlotService) Close() {
	s.closeOnce.Do(func() {
		s.mu.Lock()
		job := s.active
		s.clearLocked()
		s.gateOpen = false
		close(s.closed)
		s.mu.Unlock()

		if job != nil {
			s.abandon(job, ErrClosed)
		}
	})
}

func (s *JobSlotService) clearLocked() {
	s.active = nil
	s.completed = false
	s.delivering = false
	s.output = nil
}

func (s *JobSlotService) abandon(job *Job, cause error) {
	if cause == nil {
		cause = ErrClientGone
	}
	job.cancel(ErrClientGone)
	select {
	case job.done <- ErrClientGone:
	default:
	}
	job.record.Finish(domain.RecordStatusAbandoned)
	s.record(job.record)
	s.logger.Warn("Job abandoned", "jobID", job.ID, "client", job.clientID, "cause", cause)
}

func (s *JobSlotService) openJobLog(job *Job) {
	l, err := logging.NewFileLogger(job.logPath, s.logger)
	if err != nil {
		s.logger.Error("Failed to open job log, using server log", "jobID", job.ID, "error", err)
		return
	}
	job.Log = l.With("jobID", job.ID)
	job.closeLog = l.Close
}

func (s *JobSlotService) record(rec domain.JobRecord) {
	for _, r := range s.recorders {
		r.Record(rec)
	}
}
