// Package api is a stateful, call-by-call session over the client for hosts
// that drive one QM/MM step at a time and only understand status codes.
package api

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/mtzgroup/tcpb-go/internal/client"
	"github.com/mtzgroup/tcpb-go/internal/core/ports/primary"
	"github.com/mtzgroup/tcpb-go/internal/domain"
	"github.com/mtzgroup/tcpb-go/internal/global/logger"
	"github.com/mtzgroup/tcpb-go/internal/input"
)

// Status codes. Their meaning depends on the operation that returned them.
const (
	CodeOK = 0

	CodeConnectFailed = 1
	CodeNotAvailable  = 2

	CodeNoOptions = 1
	CodeBadInput  = 2

	CodeBadArguments  = 1
	CodeComputeFailed = 2
)

// DefaultStepDelay is the pause before every compute after the first
const DefaultStepDelay = 110 * time.Millisecond

var (
	ErrNotConnected = errors.New("session not connected")
	ErrNotSetUp     = errors.New("session not set up")
	ErrNoOutput     = errors.New("no computed output yet")
)

// Error carries the status code of a failed session call
type Error struct {
	Op   string
	Code int
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s (status %d): %v", e.Op, e.Code, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

// Code maps err to a status code: 0 for nil, the carried code for an
// *Error, and 2 for anything else
func Code(err error) int {
	if err == nil {
		return CodeOK
	}
	var apiErr *Error
	if errors.As(err, &apiErr) {
		return apiErr.Code
	}
	return 2
}

// Session holds the connection, the job template and the MD step state
type Session struct {
	mu sync.Mutex

	client     *client.Client
	input      *domain.JobInput
	lastOutput *domain.JobOutput
	prevAtoms  int

	clientOptions []client.Option
	stepDelay     time.Duration
	logger        primary.Logger
}

// Option configures a Session
type Option func(*Session)

// WithClientOptions passes options to the client created by Connect
func WithClientOptions(options ...client.Option) Option {
	return func(s *Session) {
		s.clientOptions = append(s.clientOptions, options...)
	}
}

// WithStepDelay overrides the pause between consecutive computes
func WithStepDelay(d time.Duration) Option {
	return func(s *Session) {
		s.stepDelay = d
	}
}

// WithLogger sets the session logger
func WithLogger(l primary.Logger) Option {
	return func(s *Session) {
		s.logger = l
	}
}

// NewSession returns an unconnected session
func NewSession(options ...Option) *Session {
	s := &Session{
		prevAtoms: -1,
		stepDelay: DefaultStepDelay,
		logger:    logger.Logger,
	}
	for _, option := range options {
		option(s)
	}
	return s
}

// Connect dials host:port and checks that the server can take a job
func (s *Session) Connect(ctx context.Context, host string, port int) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.client != nil {
		_ = s.client.Close()
		s.client = nil
	}

	c, err := client.Dial(ctx, host, port, s.clientOptions...)
	if err != nil {
		return &Error{Op: "connect", Code: CodeConnectFailed, Err: err}
	}
	s.client = c

	available, err := c.IsAvailable(ctx)
	if err != nil {
		return &Error{Op: "connect", Code: CodeNotAvailable, Err: err}
	}
	if !available {
		return &Error{Op: "connect", Code: CodeNotAvailable, Err: fmt.Errorf("server %s is busy", c.Address())}
	}
	s.logger.Info("Session connected", "address", c.Address())
	return nil
}

// Setup builds the job template from a TC file. Geometry keywords and run
// are replaced: every compute is a gradient on the coordinates it is given.
func (s *Session) Setup(tcfile string, qmAtomTypes []string) error {
	options, err := input.ReadTCFile(tcfile)
	if err != nil {
		return &Error{Op: "setup", Code: CodeNoOptions, Err: err}
	}
	if len(options) == 0 {
		return &Error{Op: "setup", Code: CodeNoOptions, Err: fmt.Errorf("no options in %s", tcfile)}
	}
	delete(options, "coordinates")
	delete(options, "pointcharges")
	options["run"] = "gradient"

	in, err := input.New(qmAtomTypes, options, make([]float64, 3*len(qmAtomTypes)), nil, nil)
	if err != nil {
		return &Error{Op: "setup", Code: CodeBadInput, Err: err}
	}

	s.mu.Lock()
	s.input = in
	s.mu.Unlock()
	return nil
}

// ComputeEnergyGradient runs one point-charge QM/MM gradient. qmCoords and
// mmCoords are in bohr; mmCharges may be empty for a QM-only step. The first
// step, and any step whose QM atom count changed, starts a new MD condition.
func (s *Session) ComputeEnergyGradient(ctx context.Context, qmAtomTypes []string, qmCoords, qmGrad, mmCoords, mmCharges, mmGrad []float64) (float64, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.checkArgs(qmAtomTypes, qmCoords, qmGrad, mmCoords, mmCharges, mmGrad); err != nil {
		return 0, &Error{Op: "compute", Code: CodeBadArguments, Err: err}
	}

	if s.prevAtoms > 0 && s.stepDelay > 0 {
		select {
		case <-time.After(s.stepDelay):
		case <-ctx.Done():
			return 0, &Error{Op: "compute", Code: CodeComputeFailed, Err: ctx.Err()}
		}
	}

	in := s.input
	in.QMMMType = domain.QMMMPointCharge
	if n := len(qmAtomTypes); s.prevAtoms < 1 || s.prevAtoms != n {
		in.MDGlobalType = domain.MDGlobalNewCondition
		s.prevAtoms = n
	} else {
		in.MDGlobalType = domain.MDGlobalContinue
	}
	in.Mol.Atoms = slices.Clone(qmAtomTypes)
	in.Mol.Xyz = slices.Clone(qmCoords)

	var mm []float64
	if len(mmCharges) > 0 {
		in.MMAtomPosition = slices.Clone(mmCoords)
		in.MMAtomCharge = slices.Clone(mmCharges)
		mm = mmGrad
	} else {
		in.MMAtomPosition = nil
		in.MMAtomCharge = nil
	}

	energy, out, err := s.client.ComputeGradient(ctx, in, qmGrad, mm)
	if err != nil {
		return 0, &Error{Op: "compute", Code: CodeComputeFailed, Err: err}
	}
	s.lastOutput = out
	return energy, nil
}

func (s *Session) checkArgs(atoms []string, qmCoords, qmGrad, mmCoords, mmCharges, mmGrad []float64) error {
	if s.client == nil {
		return ErrNotConnected
	}
	if s.input == nil {
		return ErrNotSetUp
	}
	n := len(atoms)
	if n == 0 {
		return errors.New("no QM atoms")
	}
	if len(qmCoords) != 3*n || len(qmGrad) != 3*n {
		return fmt.Errorf("%d QM atoms need %d coordinates and gradient values, got %d and %d",
			n, 3*n, len(qmCoords), len(qmGrad))
	}
	if m := len(mmCharges); m > 0 && (len(mmCoords) != 3*m || len(mmGrad) != 3*m) {
		return fmt.Errorf("%d MM charges need %d coordinates and gradient values, got %d and %d",
			m, 3*m, len(mmCoords), len(mmGrad))
	}
	return nil
}

// GetQMCharges copies the QM charges of the last compute into buf
func (s *Session) GetQMCharges(buf []float64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.lastOutput == nil {
		return &Error{Op: "charges", Code: CodeBadArguments, Err: ErrNoOutput}
	}
	if err := s.lastOutput.GetCharges(buf); err != nil {
		return &Error{Op: "charges", Code: CodeBadArguments, Err: err}
	}
	return nil
}

// Finalize closes the connection and forgets the job template
func (s *Session) Finalize() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	var err error
	if s.client != nil {
		err = s.client.Close()
		s.client = nil
	}
	s.input = nil
	s.lastOutput = nil
	s.prevAtoms = -1
	return err
}
