package engine

import (
	"context"
	"fmt"
	"math"

	"gonum.org/v1/gonum/floats"

	"github.com/mtzgroup/tcpb-go/internal/core/services/jobslot"
	"github.com/mtzgroup/tcpb-go/internal/domain"
)

// Harmonic is a toy force field: every QM atom pair is a spring and every QM
// atom carries a fixed partial charge that interacts with the MM point
// charges. Coordinates are in bohr, energies in hartree.
type Harmonic struct {
	// K is the spring constant
	K float64
	// R0 is the spring rest length
	R0 float64
	// Charges maps element symbols to partial charges; missing symbols are neutral
	Charges map[string]float64
}

var _ Engine = (*Harmonic)(nil)

// NewHarmonic returns a Harmonic with water-like parameters
func NewHarmonic() *Harmonic {
	return &Harmonic{
		K:       0.5,
		R0:      1.8,
		Charges: map[string]float64{"O": -0.8, "H": 0.4},
	}
}

func (h *Harmonic) Compute(ctx context.Context, job *jobslot.Job) (*domain.JobOutput, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return h.Evaluate(job.Input)
}

// Evaluate computes energy, gradients and charges for in
func (h *Harmonic) Evaluate(in *domain.JobInput) (*domain.JobOutput, error) {
	n := in.NumAtoms()
	if len(in.Mol.Xyz) != 3*n {
		return nil, fmt.Errorf("geometry has %d values for %d atoms", len(in.Mol.Xyz), n)
	}
	m := in.NumMMAtoms()
	if len(in.MMAtomPosition) != 3*m {
		return nil, fmt.Errorf("mm positions have %d values for %d charges", len(in.MMAtomPosition), m)
	}

	xyz := in.Mol.Xyz
	if in.Mol.Units == domain.UnitsAngstrom {
		xyz = floats.ScaleTo(make([]float64, len(xyz)), domain.AngstromToBohr, xyz)
	}

	grad := make([]float64, 3*n)
	mmGrad := make([]float64, 3*m)
	charges := make([]float64, n)
	for i, atom := range in.Mol.Atoms {
		charges[i] = h.Charges[atom]
	}

	var energy float64
	diff := make([]float64, 3)
	for i := 0; i < n; i++ {
		ri := xyz[3*i : 3*i+3]
		for j := i + 1; j < n; j++ {
			rj := xyz[3*j : 3*j+3]
			r := floats.Distance(ri, rj, 2)
			if r == 0 {
				return nil, fmt.Errorf("atoms %d and %d coincide", i, j)
			}
			stretch := r - h.R0
			energy += 0.5 * h.K * stretch * stretch

			// dE/dri = k (r - r0) (ri - rj) / r
			floats.SubTo(diff, ri, rj)
			floats.Scale(h.K*stretch/r, diff)
			floats.Add(grad[3*i:3*i+3], diff)
			floats.Sub(grad[3*j:3*j+3], diff)
		}

		if charges[i] == 0 {
			continue
		}
		for k := 0; k < m; k++ {
			rk := in.MMAtomPosition[3*k : 3*k+3]
			r := floats.Distance(ri, rk, 2)
			if r == 0 {
				return nil, fmt.Errorf("atom %d sits on point charge %d", i, k)
			}
			qq := charges[i] * in.MMAtomCharge[k]
			energy += qq / r

			// dE/dri = -qq (ri - rk) / r^3
			floats.SubTo(diff, ri, rk)
			floats.Scale(-qq/math.Pow(r, 3), diff)
			floats.Add(grad[3*i:3*i+3], diff)
			floats.Sub(mmGrad[3*k:3*k+3], diff)
		}
	}

	out := &domain.JobOutput{
		Mol:      in.Mol.Clone(),
		Energy:   []float64{energy},
		Charges:  charges,
		Gradient: grad,
	}
	if m > 0 {
		out.MMAtomGradient = mmGrad
	}
	return out, nil
}
