package transport

import (
	"bufio"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sync"

	"github.com/mtzgroup/tcpb-go/internal/tcp/defs"
)

// Trace file names written by a TraceRecorder
const (
	SentTraceFile = "client_sent.bin"
	RecvTraceFile = "client_recv.bin"
)

// Recorder observes every whole frame a Conn sends or receives
type Recorder interface {
	RecordSent(msgType defs.MessageType, payload []byte)
	RecordReceived(msgType defs.MessageType, payload []byte)
}

// TraceRecorder appends raw frames to a pair of packet trace files
type TraceRecorder struct {
	mu   sync.Mutex
	sent *os.File
	recv *os.File
	err  error
}

// NewTraceRecorder opens (appending) the trace files in dir
func NewTraceRecorder(dir string) (*TraceRecorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("create trace dir: %w", err)
	}
	sent, err := os.OpenFile(filepath.Join(dir, SentTraceFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("open sent trace: %w", err)
	}
	recv, err := os.OpenFile(filepath.Join(dir, RecvTraceFile), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		sent.Close()
		return nil, fmt.Errorf("open recv trace: %w", err)
	}
	return &TraceRecorder{sent: sent, recv: recv}, nil
}

func (t *TraceRecorder) RecordSent(msgType defs.MessageType, payload []byte) {
	t.write(t.sent, msgType, payload)
}

func (t *TraceRecorder) RecordReceived(msgType defs.MessageType, payload []byte) {
	t.write(t.recv, msgType, payload)
}

// Err returns the first write error, if any
func (t *TraceRecorder) Err() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.err
}

// Close closes both trace files
func (t *TraceRecorder) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	return errors.Join(t.sent.Close(), t.recv.Close())
}

func (t *TraceRecorder) write(f *os.File, msgType defs.MessageType, payload []byte) {
	frame := make([]byte, defs.HeaderSize+len(payload))
	binary.BigEndian.PutUint32(frame[0:4], uint32(msgType))
	binary.BigEndian.PutUint32(frame[4:8], uint32(len(payload)))
	copy(frame[defs.HeaderSize:], payload)

	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := f.Write(frame); err != nil && t.err == nil {
		t.err = err
	}
}

// LoadTrace reads every frame of a trace file in order
func LoadTrace(path string) ([]Message, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open trace: %w", err)
	}
	defer f.Close()

	r := bufio.NewReader(f)
	var msgs []Message
	header := make([]byte, defs.HeaderSize)
	for {
		if _, err := io.ReadFull(r, header); err != nil {
			if errors.Is(err, io.EOF) {
				return msgs, nil
			}
			return nil, fmt.Errorf("trace %s: truncated header after %d frames: %w", path, len(msgs), err)
		}
		msg := Message{Type: defs.MessageType(binary.BigEndian.Uint32(header[0:4]))}
		if n := binary.BigEndian.Uint32(header[4:8]); n > 0 {
			msg.Payload = make([]byte, n)
			if _, err := io.ReadFull(r, msg.Payload); err != nil {
				return nil, fmt.Errorf("trace %s: ran out of trace in frame %d: %w", path, len(msgs), err)
			}
		}
		if !msg.Type.Valid() {
			return nil, fmt.Errorf("trace %s: unknown message type %d in frame %d", path, msg.Type, len(msgs))
		}
		msgs = append(msgs, msg)
	}
}
