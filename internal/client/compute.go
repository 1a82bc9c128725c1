package client

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gonum.org/v1/gonum/floats"

	"github.com/mtzgroup/tcpb-go/internal/domain"
)

// ComputeJobSync submits in, retrying while the server is busy, polls until
// the job completes and returns its output. Only busy and working replies are
// retried. Cancelling ctx closes the connection, which the server treats as a
// disconnect.
func (c *Client) ComputeJobSync(ctx context.Context, in *domain.JobInput) (*domain.JobOutput, error) {
	for {
		accepted, err := c.SendJobAsync(ctx, in)
		if err != nil {
			return nil, err
		}
		if accepted {
			break
		}
		c.logger.Debug("Server busy, retrying", "address", c.Address(), "delay", c.retryDelay)
		if err := c.sleep(ctx, c.retryDelay); err != nil {
			return nil, err
		}
	}

	for {
		done, err := c.CheckJobComplete(ctx)
		if err != nil {
			return nil, err
		}
		if done {
			break
		}
		if err := c.sleep(ctx, c.pollDelay); err != nil {
			return nil, err
		}
	}

	out, err := c.RecvJobAsync(ctx)
	if err != nil {
		return nil, err
	}
	c.resetJob()
	return out, nil
}

// ComputeEnergy runs in as an energy job
func (c *Client) ComputeEnergy(ctx context.Context, in *domain.JobInput) (float64, *domain.JobOutput, error) {
	if in == nil {
		return 0, nil, c.commError(errors.New("ComputeEnergy: nil job input"))
	}
	job := in.Clone()
	job.Run = domain.RunEnergy

	out, err := c.ComputeJobSync(ctx, job)
	if err != nil {
		return 0, nil, err
	}
	energy, err := out.GetEnergy(0)
	if err != nil {
		return 0, out, c.commError(fmt.Errorf("ComputeEnergy: %w", err))
	}
	return energy, out, nil
}

// ComputeGradient runs in as a gradient job and copies the gradient into
// qmGrad (3 per QM atom) and, when non-nil, mmGrad (3 per MM charge)
func (c *Client) ComputeGradient(ctx context.Context, in *domain.JobInput, qmGrad, mmGrad []float64) (float64, *domain.JobOutput, error) {
	if err := checkBuffers(in, qmGrad, mmGrad); err != nil {
		return 0, nil, err
	}

	job := in.Clone()
	job.Run = domain.RunGradient

	out, err := c.ComputeJobSync(ctx, job)
	if err != nil {
		return 0, nil, err
	}
	energy, err := out.GetEnergy(0)
	if err != nil {
		return 0, out, c.commError(fmt.Errorf("ComputeGradient: %w", err))
	}
	if err := out.GetGradient(qmGrad, mmGrad); err != nil {
		return 0, out, c.commError(fmt.Errorf("ComputeGradient: %w", err))
	}
	return energy, out, nil
}

// ComputeForces is ComputeGradient with the gradients negated
func (c *Client) ComputeForces(ctx context.Context, in *domain.JobInput, qmForces, mmForces []float64) (float64, *domain.JobOutput, error) {
	energy, out, err := c.ComputeGradient(ctx, in, qmForces, mmForces)
	if err != nil {
		return 0, out, err
	}
	floats.Scale(-1, qmForces)
	if mmForces != nil {
		floats.Scale(-1, mmForces)
	}
	return energy, out, nil
}

func checkBuffers(in *domain.JobInput, qm, mm []float64) error {
	if in == nil {
		return fmt.Errorf("nil job input: %w", domain.ErrBufferSize)
	}
	if want := 3 * in.NumAtoms(); len(qm) != want {
		return fmt.Errorf("qm buffer has %d values, want %d: %w", len(qm), want, domain.ErrBufferSize)
	}
	if want := 3 * in.NumMMAtoms(); mm != nil && len(mm) != want {
		return fmt.Errorf("mm buffer has %d values, want %d: %w", len(mm), want, domain.ErrBufferSize)
	}
	return nil
}

// sleep waits d; a cancelled ctx drops the connection
func (c *Client) sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		c.dropConn()
		return c.commError(ctx.Err())
	}
}
