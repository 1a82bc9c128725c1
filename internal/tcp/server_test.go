package tcp

import (
	"context"
	"encoding/binary"
	"errors"
	"net"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/mtzgroup/tcpb-go/internal/adapter/filesystem/workspace"
	"github.com/mtzgroup/tcpb-go/internal/adapter/logging"
	"github.com/mtzgroup/tcpb-go/internal/adapter/metrics"
	"github.com/mtzgroup/tcpb-go/internal/core/services/jobslot"
	"github.com/mtzgroup/tcpb-go/internal/domain"
	"github.com/mtzgroup/tcpb-go/internal/tcp/codec"
	"github.com/mtzgroup/tcpb-go/internal/tcp/defs"
	"github.com/mtzgroup/tcpb-go/internal/tcp/transport"
)

type testServer struct {
	srv     *Server
	slot    *jobslot.JobSlotService
	metrics *metrics.Metrics
}

func newTestServer(t *testing.T, options ...TCPServerOption) *testServer {
	t.Helper()
	log := logging.NewFromZap(zaptest.NewLogger(t))
	ws, err := workspace.NewRunDir(t.TempDir(), 0, time.Now())
	if err != nil {
		t.Fatalf("NewRunDir failed: %v", err)
	}
	m := metrics.New()
	slot := jobslot.NewJobSlotService(ws, log, jobslot.WithRecorder(m))
	options = append([]TCPServerOption{WithAddress("127.0.0.1:0"), WithMetrics(m)}, options...)
	srv, err := NewServer(log, slot, options...)
	if err != nil {
		t.Fatalf("NewServer failed: %v", err)
	}
	srv.Start()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := srv.Stop(ctx); err != nil {
			t.Errorf("Stop failed: %v", err)
		}
		slot.Close()
	})
	return &testServer{srv: srv, slot: slot, metrics: m}
}

func (ts *testServer) dial(t *testing.T) *transport.Conn {
	t.Helper()
	c, err := transport.Dial(context.Background(), ts.srv.Addr().String(), transport.WithTimeout(5*time.Second))
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func roundTrip(t *testing.T, c *transport.Conn, msgType defs.MessageType, payload []byte) domain.Status {
	t.Helper()
	if err := transport.WriteMessage(c, msgType, payload); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}
	msg, err := transport.ReadMessage(c)
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	if msg.Type != defs.MsgStatus {
		t.Fatalf("reply type = %s, want STATUS", msg.Type)
	}
	status, err := codec.UnmarshalStatus(msg.Payload)
	if err != nil {
		t.Fatalf("UnmarshalStatus failed: %v", err)
	}
	return status
}

func expectDropped(t *testing.T, c *transport.Conn) {
	t.Helper()
	_, err := transport.ReadMessage(c)
	if !transport.IsTransport(err) {
		t.Fatalf("ReadMessage = %v, want the server to drop the connection", err)
	}
}

func openGate(t *testing.T, ts *testServer) <-chan *jobslot.Job {
	t.Helper()
	jobs := make(chan *jobslot.Job, 1)
	go func() {
		job, err := ts.slot.RecvJobInput(context.Background())
		if err == nil {
			jobs <- job
		}
		close(jobs)
	}()
	deadline := time.Now().Add(2 * time.Second)
	for !ts.slot.Snapshot().GateOpen {
		if time.Now().After(deadline) {
			t.Fatal("gate never opened")
		}
		time.Sleep(5 * time.Millisecond)
	}
	return jobs
}

func waterInput() *domain.JobInput {
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

func TestBindFailure(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)

	log := logging.NewFromZap(zaptest.NewLogger(t))
	if _, err := NewServer(log, ts.slot, WithAddress(ts.srv.Addr().String())); err == nil {
		t.Fatal("expected bind failure on a used port")
	}
}

func TestPollWithoutWorkerIsBusy(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	c := ts.dial(t)

	if status := roundTrip(t, c, defs.MsgStatus, nil); !status.Busy {
		t.Fatalf("status = %+v, want busy", status)
	}
	// a job sent while nobody waits is consumed and answered busy
	if status := roundTrip(t, c, defs.MsgJobInput, codec.MarshalJobInput(waterInput())); !status.Busy {
		t.Fatalf("status = %+v, want busy", status)
	}
	// the connection is still in sync
	if status := roundTrip(t, c, defs.MsgStatus, nil); !status.Busy {
		t.Fatalf("status = %+v, want busy", status)
	}
}

func TestAcceptWorkingCompletedSequence(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	c := ts.dial(t)
	jobs := openGate(t, ts)

	if status := roundTrip(t, c, defs.MsgStatus, nil); status.Busy {
		t.Fatal("expected available while the worker waits")
	}
	status := roundTrip(t, c, defs.MsgJobInput, codec.MarshalJobInput(waterInput()))
	if status.Case != domain.StatusCaseAccepted || status.ServerJobID != 1 {
		t.Fatalf("status = %+v, want accepted job 1", status)
	}
	job := <-jobs

	if status := roundTrip(t, c, defs.MsgStatus, nil); status.Case != domain.StatusCaseWorking || status.JobDir != job.Dir {
		t.Fatalf("status = %+v, want working", status)
	}
	// a JOBOUTPUT from a client is answered like a poll
	if status := roundTrip(t, c, defs.MsgJobOutput, nil); status.Case != domain.StatusCaseWorking {
		t.Fatalf("status = %+v, want working", status)
	}

	sent := make(chan error, 1)
	go func() {
		sent <- ts.slot.SendJobOutput(context.Background(), job, &domain.JobOutput{Energy: []float64{-76.3}})
	}()
	deadline := time.Now().Add(2 * time.Second)
	for !ts.slot.Snapshot().Completed {
		if time.Now().After(deadline) {
			t.Fatal("output never stored")
		}
		time.Sleep(5 * time.Millisecond)
	}

	if status := roundTrip(t, c, defs.MsgStatus, nil); status.Case != domain.StatusCaseCompleted {
		t.Fatalf("status = %+v, want completed", status)
	}
	msg, err := transport.ReadMessage(c)
	if err != nil {
		t.Fatalf("ReadMessage failed: %v", err)
	}
	out, err := codec.UnmarshalJobOutput(msg.Payload)
	if msg.Type != defs.MsgJobOutput || err != nil {
		t.Fatalf("got %s (%v), want JOBOUTPUT", msg.Type, err)
	}
	if out.Energy[0] != -76.3 || out.ServerJobID != 1 {
		t.Fatalf("output = %+v", out)
	}
	if err := <-sent; err != nil {
		t.Fatalf("SendJobOutput failed: %v", err)
	}

	if status := roundTrip(t, c, defs.MsgStatus, nil); !status.Busy || status.Case != domain.StatusCaseNone {
		t.Fatalf("status after delivery = %+v, want plain busy", status)
	}
}

func TestMalformedJobInputDropsConnection(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	c := ts.dial(t)
	openGate(t, ts)

	if err := transport.WriteMessage(c, defs.MsgJobInput, []byte{0x0a, 0x7f, 0x01}); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}
	expectDropped(t, c)

	// the gate is still open for a well-behaved client
	other := ts.dial(t)
	if status := roundTrip(t, other, defs.MsgStatus, nil); status.Busy {
		t.Fatal("slot not available after malformed input")
	}
}

func TestUnknownMessageTypeDropsConnection(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	c := ts.dial(t)

	if err := transport.WriteMessage(c, defs.MessageType(42), []byte("x")); err != nil {
		t.Fatalf("WriteMessage failed: %v", err)
	}
	expectDropped(t, c)
}

func TestOversizedFrameDropsConnection(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t, WithMaxPayload(1024))

	nc, err := net.Dial("tcp", ts.srv.Addr().String())
	if err != nil {
		t.Fatalf("Dial failed: %v", err)
	}
	c := transport.New(nc, transport.WithTimeout(5*time.Second))
	t.Cleanup(func() { _ = c.Close() })

	header := make([]byte, defs.HeaderSize)
	binary.BigEndian.PutUint32(header[0:4], uint32(defs.MsgJobInput))
	binary.BigEndian.PutUint32(header[4:8], 1<<20)
	if err := c.SendAll(header); err != nil {
		t.Fatalf("SendAll failed: %v", err)
	}
	expectDropped(t, c)
}

func TestActiveClientDisconnectFreesSlot(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	jobs := openGate(t, ts)

	c := ts.dial(t)
	if status := roundTrip(t, c, defs.MsgJobInput, codec.MarshalJobInput(waterInput())); status.Case != domain.StatusCaseAccepted {
		t.Fatalf("status = %+v, want accepted", status)
	}
	job := <-jobs
	_ = c.Close()

	select {
	case <-job.Context().Done():
	case <-time.After(2 * time.Second):
		t.Fatal("job context not cancelled after disconnect")
	}
	err := ts.slot.SendJobOutput(context.Background(), job, &domain.JobOutput{})
	if !errors.Is(err, jobslot.ErrClientGone) {
		t.Fatalf("SendJobOutput = %v, want ErrClientGone", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for len(ts.srv.Peers()) != 0 {
		if time.Now().After(deadline) {
			t.Fatal("dropped peer still listed")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestPeersMarksActiveClient(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	jobs := openGate(t, ts)

	idle := ts.dial(t)
	roundTrip(t, idle, defs.MsgStatus, nil)
	active := ts.dial(t)
	roundTrip(t, active, defs.MsgJobInput, codec.MarshalJobInput(waterInput()))
	<-jobs

	peers := ts.srv.Peers()
	if len(peers) != 2 {
		t.Fatalf("peers = %d, want 2", len(peers))
	}
	if n := ts.srv.Connections(); n != 2 {
		t.Fatalf("Connections = %d, want 2", n)
	}
	if peers[0].Active || !peers[1].Active {
		t.Fatalf("active flags = %v, %v; want second active", peers[0].Active, peers[1].Active)
	}
	if peers[0].Messages != 1 || peers[1].Messages != 1 {
		t.Fatalf("message counts = %d, %d", peers[0].Messages, peers[1].Messages)
	}
}

func TestStopIsIdempotent(t *testing.T) {
	t.Parallel()
	ts := newTestServer(t)
	c := ts.dial(t)
	roundTrip(t, c, defs.MsgStatus, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := ts.srv.Stop(ctx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
	expectDropped(t, c)
	if err := ts.srv.Stop(ctx); err != nil {
		t.Fatalf("second Stop failed: %v", err)
	}
}
