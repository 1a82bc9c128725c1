package client

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

var (
	ErrProtocol     = errors.New("protocol error")
	ErrNotConnected = errors.New("client not connected")
)

// logTailLines is how much of the server job log a ServerCommError carries
const logTailLines = 10

// ProtocolError is a reply the state machine did not expect
type ProtocolError struct {
	Op     string
	Reason string
}

func (e *ProtocolError) Error() string {
	return fmt.Sprintf("%s: %s", e.Op, e.Reason)
}

func (e *ProtocolError) Is(target error) bool {
	return target == ErrProtocol
}

func protocolErrorf(op, format string, args ...interface{}) error {
	return &ProtocolError{Op: op, Reason: fmt.Sprintf(format, args...)}
}

// ServerCommError wraps every failed client operation with enough context to
// find the matching server-side job log. LogTail holds the last lines of that
// log when it is readable from this host.
type ServerCommError struct {
	Host    string
	Port    int
	JobDir  string
	JobID   int32
	LogTail []string
	Err     error
}

func (e *ServerCommError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%v (server %s:%d", e.Err, e.Host, e.Port)
	if e.JobDir != "" {
		fmt.Fprintf(&b, ", job dir %s, job id %d", e.JobDir, e.JobID)
	}
	b.WriteString(")")
	if len(e.LogTail) > 0 {
		fmt.Fprintf(&b, "\nlast %d lines of %s:\n%s", len(e.LogTail), jobLogPath(e.JobDir, e.JobID), strings.Join(e.LogTail, "\n"))
	}
	return b.String()
}

func (e *ServerCommError) Unwrap() error {
	return e.Err
}

func jobLogPath(jobDir string, jobID int32) string {
	return filepath.Join(jobDir, fmt.Sprintf("%d.log", jobID))
}

// tailLog returns up to n trailing lines of the job log, or nil
func tailLog(jobDir string, jobID int32, n int) []string {
	if jobDir == "" {
		return nil
	}
	f, err := os.Open(jobLogPath(jobDir, jobID))
	if err != nil {
		return nil
	}
	defer f.Close()

	ring := make([]string, 0, n)
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		if len(ring) == n {
			ring = ring[1:]
		}
		ring = append(ring, scanner.Text())
	}
	return ring
}
