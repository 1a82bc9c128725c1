package domain

import (
	"fmt"
	"slices"
	"strings"
)

// RunType selects what the compute engine evaluates
type RunType int32

const (
	RunEnergy       RunType = 0
	RunGradient     RunType = 1
	RunCoupling     RunType = 2
	RunCIVecOverlap RunType = 3
)

var runTypeNames = map[RunType]string{
	RunEnergy:       "ENERGY",
	RunGradient:     "GRADIENT",
	RunCoupling:     "COUPLING",
	RunCIVecOverlap: "CI_VEC_OVERLAP",
}

// MethodType is the electronic structure method, without r/ro/u prefix
type MethodType int32

const (
	MethodHF MethodType = iota
	MethodPBE0
	MethodB3LYP
	MethodB3LYP1
	MethodB3LYP5
	MethodSVWN
	MethodSVWN1
	MethodSVWN5
	MethodBLYP
	MethodBHANDHLYP
	MethodPBE
	MethodREVPBE
	MethodREVPBE0
	MethodBOP
	MethodMUBOP
	MethodCAMB3LYP
	MethodB97
	MethodWB97
	MethodWB97X
	MethodWPBE
	MethodWPBEH
	MethodCASCI
	MethodCASSCF
)

var methodNames = map[MethodType]string{
	MethodHF:        "HF",
	MethodPBE0:      "PBE0",
	MethodB3LYP:     "B3LYP",
	MethodB3LYP1:    "B3LYP1",
	MethodB3LYP5:    "B3LYP5",
	MethodSVWN:      "SVWN",
	MethodSVWN1:     "SVWN1",
	MethodSVWN5:     "SVWN5",
	MethodBLYP:      "BLYP",
	MethodBHANDHLYP: "BHANDHLYP",
	MethodPBE:       "PBE",
	MethodREVPBE:    "REVPBE",
	MethodREVPBE0:   "REVPBE0",
	MethodBOP:       "BOP",
	MethodMUBOP:     "MUBOP",
	MethodCAMB3LYP:  "CAMB3LYP",
	MethodB97:       "B97",
	MethodWB97:      "WB97",
	MethodWB97X:     "WB97X",
	MethodWPBE:      "WPBE",
	MethodWPBEH:     "WPBEH",
	MethodCASCI:     "CASCI",
	MethodCASSCF:    "CASSCF",
}

// UnitType is the geometry unit carried by a Mol
type UnitType int32

const (
	UnitsBohr     UnitType = 0
	UnitsAngstrom UnitType = 1
)

// QMMMType selects how an MM region is treated
type QMMMType int32

const (
	QMMMNone        QMMMType = 0
	QMMMPointCharge QMMMType = 1
	QMMMOpenMM      QMMMType = 2
)

// MDGlobalTreatment tells the engine whether to reuse state from the previous step
type MDGlobalTreatment int32

const (
	MDGlobalContinue     MDGlobalTreatment = 0
	MDGlobalNewCondition MDGlobalTreatment = 1
	MDGlobalReference    MDGlobalTreatment = 2
)

func (r RunType) String() string {
	if name, ok := runTypeNames[r]; ok {
		return name
	}
	return fmt.Sprintf("RunType(%d)", int32(r))
}

func (m MethodType) String() string {
	if name, ok := methodNames[m]; ok {
		return name
	}
	return fmt.Sprintf("MethodType(%d)", int32(m))
}

func (u UnitType) String() string {
	if u == UnitsAngstrom {
		return "ANGSTROM"
	}
	return "BOHR"
}

// ParseRunType parses a run type case-insensitively
func ParseRunType(s string) (RunType, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for run, name := range runTypeNames {
		if name == upper {
			return run, nil
		}
	}
	return 0, fmt.Errorf("runtype %q is not valid (valid: %s)", s, validNames(runTypeNames))
}

// ParseMethodType parses a bare method name case-insensitively
func ParseMethodType(s string) (MethodType, error) {
	upper := strings.ToUpper(strings.TrimSpace(s))
	for method, name := range methodNames {
		if name == upper {
			return method, nil
		}
	}
	return 0, fmt.Errorf("method %q is not valid (valid: %s)", s, validNames(methodNames))
}

func validNames[K comparable](names map[K]string) string {
	out := make([]string, 0, len(names))
	for _, name := range names {
		out = append(out, strings.ToLower(name))
	}
	slices.Sort(out)
	return strings.Join(out, ", ")
}
