package jobslot

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/mtzgroup/tcpb-go/internal/adapter/filesystem/workspace"
	"github.com/mtzgroup/tcpb-go/internal/adapter/logging"
	"github.com/mtzgroup/tcpb-go/internal/domain"
)

type fakeRecorder struct {
	mu       sync.Mutex
	statuses []domain.RecordStatus
}

func (f *fakeRecorder) Record(rec domain.JobRecord) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.statuses = append(f.statuses, rec.Status)
}

func (f *fakeRecorder) Statuses() []domain.RecordStatus {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]domain.RecordStatus(nil), f.statuses...)
}

func newTestSlot(t *testing.T) (*JobSlotService, *fakeRecorder) {
	t.Helper()
	ws, err := workspace.NewRunDir(t.TempDir(), 54321, time.Now())
	if err != nil {
		t.Fatalf("NewRunDir failed: %v", err)
	}
	rec := &fakeRecorder{}
	s := NewJobSlotService(ws, logging.NewFromZap(zaptest.NewLogger(t)), WithRecorder(rec))
	t.Cleanup(s.Close)
	return s, rec
}

func testInput() *domain.JobInput {
	return &domain.JobInput{
		Mol: domain.Mol{
			Atoms:        []string{"O", "H", "H"},
			Xyz:          []float64{0, 0, -0.12948, 0, -1.49419, 1.02744, 0, 1.49419, 1.02744},
			Multiplicity: 1,
			Closed:       true,
			Restricted:   true,
		},
		Run:    domain.RunGradient,
		Method: domain.MethodPBE0,
		Basis:  "6-31g",
	}
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

type recvResult struct {
	job *Job
	err error
}

func startRecv(ctx context.Context, s *JobSlotService) <-chan recvResult {
	ch := make(chan recvResult, 1)
	go func() {
		job, err := s.RecvJobInput(ctx)
		ch <- recvResult{job, err}
	}()
	return ch
}

func receive(t *testing.T, ch <-chan recvResult) *Job {
	t.Helper()
	select {
	case r := <-ch:
		if r.err != nil {
			t.Fatalf("RecvJobInput failed: %v", r.err)
		}
		return r.job
	case <-time.After(2 * time.Second):
		t.Fatal("timed out waiting for RecvJobInput")
	}
	return nil
}

func acceptOne(t *testing.T, s *JobSlotService, clientID string) *Job {
	t.Helper()
	recv := startRecv(context.Background(), s)
	waitFor(t, "gate open", func() bool { return s.Snapshot().GateOpen })

	status, ok, err := s.TryAccept(clientID, "127.0.0.1:1", testInput())
	if err != nil || !ok {
		t.Fatalf("TryAccept = %v, %v; want accepted", ok, err)
	}
	if status.Case != domain.StatusCaseAccepted || status.Busy {
		t.Fatalf("unexpected accept status %+v", status)
	}
	return receive(t, recv)
}

func TestBusyWithoutWorker(t *testing.T) {
	t.Parallel()
	s, _ := newTestSlot(t)

	if reply := s.Poll("a"); !reply.Status.Busy || reply.Status.Case != domain.StatusCaseNone {
		t.Fatalf("Poll without worker = %+v, want busy", reply.Status)
	}
	if _, ok, err := s.TryAccept("a", "", testInput()); ok || err != nil {
		t.Fatalf("TryAccept without worker = %v, %v; want rejected", ok, err)
	}
}

func TestAcceptDeliverLifecycle(t *testing.T) {
	t.Parallel()
	s, rec := newTestSlot(t)

	recv := startRecv(context.Background(), s)
	waitFor(t, "gate open", func() bool { return s.Snapshot().GateOpen })
	if reply := s.Poll("b"); reply.Status.Busy {
		t.Fatal("expected available status while the worker waits")
	}

	status, ok, err := s.TryAccept("a", "127.0.0.1:1", testInput())
	if err != nil || !ok {
		t.Fatalf("TryAccept = %v, %v", ok, err)
	}
	if status.ServerJobID != 1 || status.JobDir == "" || status.JobScrDir == "" {
		t.Fatalf("unexpected accept status %+v", status)
	}
	job := receive(t, recv)
	if job.ID != 1 || job.Dir != status.JobDir || job.ClientID() != "a" {
		t.Fatalf("unexpected job %+v", job)
	}

	if reply := s.Poll("b"); !reply.Status.Busy || reply.Status.Case != domain.StatusCaseNone {
		t.Fatalf("other client Poll = %+v, want busy", reply.Status)
	}
	if reply := s.Poll("a"); reply.Status.Case != domain.StatusCaseWorking {
		t.Fatalf("owner Poll = %+v, want working", reply.Status)
	}
	if _, ok, _ := s.TryAccept("b", "", testInput()); ok {
		t.Fatal("second job accepted while one is active")
	}

	sent := make(chan error, 1)
	go func() {
		sent <- s.SendJobOutput(context.Background(), job, &domain.JobOutput{Energy: []float64{-76.3}})
	}()
	waitFor(t, "completion", func() bool { return s.Snapshot().Completed })

	reply := s.Poll("a")
	if reply.Status.Case != domain.StatusCaseCompleted || reply.Output == nil {
		t.Fatalf("owner Poll = %+v, want completed with output", reply)
	}
	if reply.Output.ServerJobID != 1 || reply.Output.JobDir != job.Dir || reply.Output.JobScrDir != job.ScrDir {
		t.Fatalf("output job fields not filled: %+v", reply.Output)
	}
	if again := s.Poll("a"); again.Output != nil {
		t.Fatal("output handed out twice")
	}

	s.Delivered("a", nil)
	select {
	case err := <-sent:
		if err != nil {
			t.Fatalf("SendJobOutput failed: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("SendJobOutput did not return after delivery")
	}

	if snap := s.Snapshot(); snap.ActiveClient != "" || snap.Completed {
		t.Fatalf("slot not reset: %+v", snap)
	}
	want := []domain.RecordStatus{domain.RecordStatusAccepted, domain.RecordStatusCompleted, domain.RecordStatusDelivered}
	got := rec.Statuses()
	if len(got) != len(want) {
		t.Fatalf("recorded %v, want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("recorded %v, want %v", got, want)
		}
	}
	if _, err := os.Stat(job.logPath); err != nil {
		t.Fatalf("job log missing: %v", err)
	}
}

func TestDisconnectAbandonsJob(t *testing.T) {
	t.Parallel()
	s, rec := newTestSlot(t)

	job := acceptOne(t, s, "a")
	s.Disconnect("b")
	if s.Snapshot().ActiveClient != "a" {
		t.Fatal("disconnect of another client freed the slot")
	}

	s.Disconnect("a")
	select {
	case <-job.Context().Done():
	default:
		t.Fatal("job context not cancelled")
	}
	if cause := context.Cause(job.Context()); !errors.Is(cause, ErrClientGone) {
		t.Fatalf("cause = %v, want ErrClientGone", cause)
	}

	err := s.SendJobOutput(context.Background(), job, &domain.JobOutput{})
	if !errors.Is(err, ErrClientGone) {
		t.Fatalf("SendJobOutput = %v, want ErrClientGone", err)
	}

	next := acceptOne(t, s, "b")
	if next.ID != 2 {
		t.Fatalf("next job id = %d, want 2", next.ID)
	}
	if got := rec.Statuses(); got[1] != domain.RecordStatusAbandoned {
		t.Fatalf("recorded %v, want ABANDONED second", got)
	}
}

func TestDeliveryFailureAbandonsJob(t *testing.T) {
	t.Parallel()
	s, _ := newTestSlot(t)

	job := acceptOne(t, s, "a")
	sent := make(chan error, 1)
	go func() {
		sent <- s.SendJobOutput(context.Background(), job, &domain.JobOutput{})
	}()
	waitFor(t, "completion", func() bool { return s.Snapshot().Completed })

	if reply := s.Poll("a"); reply.Output == nil {
		t.Fatal("expected output")
	}
	s.Delivered("a", errors.New("broken pipe"))

	select {
	case err := <-sent:
		if !errors.Is(err, ErrClientGone) {
			t.Fatalf("SendJobOutput = %v, want ErrClientGone", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("SendJobOutput did not return")
	}
}

func TestSkipsJobAbandonedBeforePickup(t *testing.T) {
	t.Parallel()
	s, _ := newTestSlot(t)

	s.mu.Lock()
	s.gateOpen = true
	s.mu.Unlock()
	if _, ok, err := s.TryAccept("a", "", testInput()); !ok || err != nil {
		t.Fatalf("TryAccept = %v, %v", ok, err)
	}
	s.Disconnect("a")

	recv := startRecv(context.Background(), s)
	waitFor(t, "gate reopened", func() bool { return s.Snapshot().GateOpen })
	if _, ok, err := s.TryAccept("b", "", testInput()); !ok || err != nil {
		t.Fatalf("TryAccept = %v, %v", ok, err)
	}

	job := receive(t, recv)
	if job.ID != 2 || job.ClientID() != "b" {
		t.Fatalf("worker got job %d of %q, want job 2 of b", job.ID, job.ClientID())
	}
}

func TestRecvJobInputCancelled(t *testing.T) {
	t.Parallel()
	s, _ := newTestSlot(t)

	ctx, cancel := context.WithCancel(context.Background())
	recv := startRecv(ctx, s)
	waitFor(t, "gate open", func() bool { return s.Snapshot().GateOpen })
	cancel()

	r := <-recv
	if !errors.Is(r.err, context.Canceled) {
		t.Fatalf("RecvJobInput = %v, want context.Canceled", r.err)
	}
	if s.Snapshot().GateOpen {
		t.Fatal("gate left open after cancellation")
	}
}

func TestCloseWakesWorker(t *testing.T) {
	t.Parallel()
	s, _ := newTestSlot(t)

	recv := startRecv(context.Background(), s)
	waitFor(t, "gate open", func() bool { return s.Snapshot().GateOpen })
	s.Close()

	if r := <-recv; !errors.Is(r.err, ErrClosed) {
		t.Fatalf("RecvJobInput = %v, want ErrClosed", r.err)
	}
	if _, err := s.RecvJobInput(context.Background()); !errors.Is(err, ErrClosed) {
		t.Fatalf("RecvJobInput after Close = %v, want ErrClosed", err)
	}
}

func TestCancelledSendReleasesJobLog(t *testing.T) {
	t.Parallel()
	s, _ := newTestSlot(t)

	job := acceptOne(t, s, "a")
	if job.closeLog == nil {
		t.Fatal("job log not opened")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	err := s.SendJobOutput(ctx, job, &domain.JobOutput{Energy: []float64{-76.3}})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("SendJobOutput = %v, want context.Canceled", err)
	}
	if job.closeLog != nil {
		t.Fatal("job log still open after cancelled send")
	}
}
