package domain

import (
	"slices"
)

// Mol is the QM region of a job
type Mol struct {
	Atoms        []string
	Xyz          []float64 // flat, 3 per atom
	Units        UnitType
	Charge       int32
	Multiplicity int32
	Closed       bool
	Restricted   bool
}

// JobInput represents a computation request sent by a client
type JobInput struct {
	Mol             Mol
	Run             RunType
	Method          MethodType
	Basis           string
	Orb1AFile       string
	Orb1BFile       string
	Xyz2            []float64
	ReturnBondOrder bool
	MMAtomPosition  []float64
	MMAtomCharge    []float64
	QMMMType        QMMMType
	MDGlobalType    MDGlobalTreatment
	// UserOptions holds flat key, value pairs passed through to the engine
	UserOptions []string
}

// NumAtoms returns the QM atom count
func (in *JobInput) NumAtoms() int {
	return len(in.Mol.Atoms)
}

// NumMMAtoms returns the MM point charge count
func (in *JobInput) NumMMAtoms() int {
	return len(in.MMAtomCharge)
}

// UserOption looks up a passthrough option by key
func (in *JobInput) UserOption(key string) (string, bool) {
	for i := 0; i+1 < len(in.UserOptions); i += 2 {
		if in.UserOptions[i] == key {
			return in.UserOptions[i+1], true
		}
	}
	return "", false
}

// Clone returns a deep copy
func (in *JobInput) Clone() *JobInput {
	if in == nil {
		return nil
	}
	out := *in
	out.Mol = in.Mol.Clone()
	out.Xyz2 = slices.Clone(in.Xyz2)
	out.MMAtomPosition = slices.Clone(in.MMAtomPosition)
	out.MMAtomCharge = slices.Clone(in.MMAtomCharge)
	out.UserOptions = slices.Clone(in.UserOptions)
	return &out
}

// Clone returns a deep copy
func (m Mol) Clone() Mol {
	m.Atoms = slices.Clone(m.Atoms)
	m.Xyz = slices.Clone(m.Xyz)
	return m
}
