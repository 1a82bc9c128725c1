package domain

import (
	"errors"
	"fmt"
	"slices"
)

var (
	ErrNoEnergy   = errors.New("output carries no energy for requested state")
	ErrBufferSize = errors.New("buffer size does not match output")
)

// JobOutput represents a computation result
type JobOutput struct {
	Mol            Mol
	Energy         []float64 // one per state
	Gradient       []float64
	MMAtomGradient []float64
	Charges        []float64
	Spins          []float64
	Dipoles        []float64
	BondOrder      []float64
	Orb1AFile      string
	Orb1BFile      string
	OrbEnergies    []float64
	OrbOccupations []int32
	JobDir         string
	JobScrDir      string
	ServerJobID    int32
}

// GetEnergy returns the energy of the given state (0 is the ground state)
func (o *JobOutput) GetEnergy(state int) (float64, error) {
	if state < 0 || state >= len(o.Energy) {
		return 0, fmt.Errorf("state %d of %d: %w", state, len(o.Energy), ErrNoEnergy)
	}
	return o.Energy[state], nil
}

// GetGradient copies the QM gradient into qm and, when mm is non-nil, the MM gradient into mm
func (o *JobOutput) GetGradient(qm, mm []float64) error {
	if len(qm) != len(o.Gradient) {
		return fmt.Errorf("qm gradient: have %d, buffer %d: %w", len(o.Gradient), len(qm), ErrBufferSize)
	}
	if mm != nil && len(mm) != len(o.MMAtomGradient) {
		return fmt.Errorf("mm gradient: have %d, buffer %d: %w", len(o.MMAtomGradient), len(mm), ErrBufferSize)
	}
	copy(qm, o.Gradient)
	if mm != nil {
		copy(mm, o.MMAtomGradient)
	}
	return nil
}

// GetCharges copies the per-atom charges into buf
func (o *JobOutput) GetCharges(buf []float64) error {
	if len(buf) != len(o.Charges) {
		return fmt.Errorf("charges: have %d, buffer %d: %w", len(o.Charges), len(buf), ErrBufferSize)
	}
	copy(buf, o.Charges)
	return nil
}

// Clone returns a deep copy
func (o *JobOutput) Clone() *JobOutput {
	if o == nil {
		return nil
	}
	out := *o
	out.Mol = o.Mol.Clone()
	out.Energy = slices.Clone(o.Energy)
	out.Gradient = slices.Clone(o.Gradient)
	out.MMAtomGradient = slices.Clone(o.MMAtomGradient)
	out.Charges = slices.Clone(o.Charges)
	out.Spins = slices.Clone(o.Spins)
	out.Dipoles = slices.Clone(o.Dipoles)
	out.BondOrder = slices.Clone(o.BondOrder)
	out.OrbEnergies = slices.Clone(o.OrbEnergies)
	out.OrbOccupations = slices.Clone(o.OrbOccupations)
	return &out
}
