// Package engine runs accepted jobs. The real compute engine lives outside
// this module; the engines here serve demos and tests.
package engine

import (
	"context"
	"errors"

	"github.com/mtzgroup/tcpb-go/internal/core/ports/primary"
	"github.com/mtzgroup/tcpb-go/internal/core/services/jobslot"
	"github.com/mtzgroup/tcpb-go/internal/domain"
)

// Engine computes one job
type Engine interface {
	Compute(ctx context.Context, job *jobslot.Job) (*domain.JobOutput, error)
}

// Func adapts a function to Engine
type Func func(ctx context.Context, job *jobslot.Job) (*domain.JobOutput, error)

func (f Func) Compute(ctx context.Context, job *jobslot.Job) (*domain.JobOutput, error) {
	return f(ctx, job)
}

// Run is the worker loop: receive a job, compute it, hand the output back.
// Every accepted job gets exactly one SendJobOutput; a failed computation
// is answered with an output carrying no energy. Run returns when ctx is
// done or the slot is closed.
func Run(ctx context.Context, slot jobslot.IJobSlotService, eng Engine, logger primary.Logger) error {
	for {
		job, err := slot.RecvJobInput(ctx)
		if err != nil {
			if errors.Is(err, jobslot.ErrClosed) || errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		}

		jobCtx, cancel := context.WithCancel(job.Context())
		stop := context.AfterFunc(ctx, cancel)

		job.Log.Info("Computing job", "jobID", job.ID, "run", job.Input.Run.String(),
			"method", job.Input.Method.String(), "basis", job.Input.Basis, "atoms", job.Input.NumAtoms())
		out, err := eng.Compute(jobCtx, job)
		stop()
		cancel()
		if err != nil {
			job.Log.Error("Job computation failed", "jobID", job.ID, "error", err)
			out = &domain.JobOutput{Mol: job.Input.Mol.Clone()}
		}

		if err := slot.SendJobOutput(ctx, job, out); err != nil {
			switch {
			case errors.Is(err, jobslot.ErrClientGone):
				logger.Warn("Client left before its output was delivered", "jobID", job.ID)
			case errors.Is(err, jobslot.ErrClosed), errors.Is(err, context.Canceled):
				return nil
			default:
				return err
			}
		}
	}
}
