// Package input builds job inputs from option maps and TeraChem input files.
package input

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"slices"
	"strconv"
	"strings"

	"gonum.org/v1/gonum/floats"

	"github.com/mtzgroup/tcpb-go/internal/domain"
)

// ErrMissingKeyword is returned when a required option is absent
var ErrMissingKeyword = errors.New("missing required keyword (run, charge, spinmult, method, basis)")

// ApproxTolerance is the float tolerance used by IsApproxEqual
const ApproxTolerance = 1e-8

// MMRegion is an optional set of MM point charges
type MMRegion struct {
	Positions []float64 // 3 per charge
	Charges   []float64
}

// New builds a job input. options must carry run, charge, spinmult, method
// and basis; units defaults to bohr, and angstrom geometries (including geom2
// and MM positions) are converted to bohr. Keys not used here are passed
// through as user options sorted by key.
func New(atoms []string, options map[string]string, geom, geom2 []float64, mm *MMRegion) (*domain.JobInput, error) {
	n := len(atoms)
	if len(geom) != 3*n {
		return nil, fmt.Errorf("geometry has %d values for %d atoms", len(geom), n)
	}
	if geom2 != nil && len(geom2) != 3*n {
		return nil, fmt.Errorf("second geometry has %d values for %d atoms", len(geom2), n)
	}
	if mm != nil && len(mm.Positions) != 3*len(mm.Charges) {
		return nil, fmt.Errorf("MM region has %d positions for %d charges", len(mm.Positions), len(mm.Charges))
	}

	opts := make(map[string]string, len(options))
	for k, v := range options {
		opts[k] = v
	}
	take := func(key string) (string, bool) {
		v, ok := opts[key]
		delete(opts, key)
		return v, ok
	}

	scale := 1.0
	if units, ok := take("units"); ok && strings.EqualFold(units, "angstrom") {
		scale = domain.AngstromToBohr
	}

	in := &domain.JobInput{
		Mol: domain.Mol{
			Atoms: slices.Clone(atoms),
			Xyz:   scaled(geom, scale),
			Units: domain.UnitsBohr,
		},
	}

	runStr, okRun := take("run")
	chargeStr, okCharge := take("charge")
	multStr, okMult := take("spinmult")
	methodStr, okMethod := take("method")
	basis, okBasis := take("basis")
	if !okRun || !okCharge || !okMult || !okMethod || !okBasis {
		return nil, ErrMissingKeyword
	}

	run, err := domain.ParseRunType(runStr)
	if err != nil {
		return nil, err
	}
	in.Run = run

	charge, err := strconv.ParseInt(strings.TrimSpace(chargeStr), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("charge %q: %w", chargeStr, err)
	}
	in.Mol.Charge = int32(charge)

	mult, err := strconv.ParseInt(strings.TrimSpace(multStr), 10, 32)
	if err != nil {
		return nil, fmt.Errorf("spinmult %q: %w", multStr, err)
	}
	in.Mol.Multiplicity = int32(mult)

	name, closed, restricted := ParseMethod(methodStr)
	method, err := domain.ParseMethodType(name)
	if err != nil {
		return nil, err
	}
	in.Method = method
	in.Mol.Closed = closed
	in.Mol.Restricted = restricted
	in.Basis = basis

	if bondOrder, ok := take("bond_order"); ok && strings.EqualFold(bondOrder, "true") {
		in.ReturnBondOrder = true
	}
	if geom2 != nil {
		in.Xyz2 = scaled(geom2, scale)
	}
	if mm != nil && len(mm.Charges) > 0 {
		in.MMAtomPosition = scaled(mm.Positions, scale)
		in.MMAtomCharge = slices.Clone(mm.Charges)
	}

	keys := make([]string, 0, len(opts))
	for k := range opts {
		keys = append(keys, k)
	}
	slices.Sort(keys)
	for _, k := range keys {
		in.UserOptions = append(in.UserOptions, k, opts[k])
	}
	return in, nil
}

// ParseMethod splits an r, ro or u prefix off method. ro is restricted
// open-shell, u is unrestricted, r or no prefix is restricted closed-shell.
// The leading r of rev functionals is part of the name.
func ParseMethod(method string) (name string, closed, restricted bool) {
	m := strings.ToLower(strings.TrimSpace(method))
	switch {
	case strings.HasPrefix(m, "rev"):
		return m, true, true
	case strings.HasPrefix(m, "ro"):
		return m[2:], false, true
	case strings.HasPrefix(m, "u"):
		return m[1:], false, false
	case strings.HasPrefix(m, "r"):
		return m[1:], true, true
	default:
		return m, true, true
	}
}

// methodPrefix is the inverse of ParseMethod
func methodPrefix(closed, restricted bool) string {
	switch {
	case !restricted:
		return "u"
	case !closed:
		return "ro"
	default:
		return ""
	}
}

// FromTCFile builds a job input from a TeraChem keyword file. Empty xyzfile
// and xyzfile2 fall back to the coordinates and old_coors keywords, resolved
// relative to the TC file. Geometries are read in angstrom unless units is bohr.
func FromTCFile(tcfile, xyzfile, xyzfile2 string) (*domain.JobInput, error) {
	options, err := ReadTCFile(tcfile)
	if err != nil {
		return nil, err
	}

	scale := domain.AngstromToBohr
	if units, ok := options["units"]; ok {
		if strings.EqualFold(units, "bohr") {
			scale = 1.0
		}
		delete(options, "units")
	}

	dir := filepath.Dir(tcfile)
	resolve := func(p string) string {
		if filepath.IsAbs(p) {
			return p
		}
		return filepath.Join(dir, p)
	}
	if coords, ok := options["coordinates"]; ok {
		if xyzfile == "" {
			xyzfile = resolve(coords)
		}
		delete(options, "coordinates")
	}
	if old, ok := options["old_coors"]; ok {
		if xyzfile2 == "" {
			xyzfile2 = resolve(old)
		}
		delete(options, "old_coors")
	}
	if xyzfile == "" {
		return nil, fmt.Errorf("TC file %s names no coordinates", tcfile)
	}

	atoms, geom, err := ReadXYZ(xyzfile, scale)
	if err != nil {
		return nil, err
	}
	var geom2 []float64
	if xyzfile2 != "" {
		atoms2, g2, err := ReadXYZ(xyzfile2, scale)
		if err != nil {
			return nil, err
		}
		if !slices.Equal(atoms, atoms2) {
			return nil, fmt.Errorf("atoms in %s differ from %s", xyzfile2, xyzfile)
		}
		geom2 = g2
	}

	in, err := New(atoms, options, geom, geom2, nil)
	if err != nil {
		return nil, fmt.Errorf("TC file %s: %w", tcfile, err)
	}
	return in, nil
}

// WriteTCFile writes in as a TeraChem keyword file plus its XYZ geometry
// (bohr coordinates). A second geometry goes to xyzfile.old.
func WriteTCFile(in *domain.JobInput, tcfile, xyzfile string) error {
	var b strings.Builder
	fmt.Fprintf(&b, "run %s\n", strings.ToLower(in.Run.String()))
	fmt.Fprintf(&b, "basis %s\n", strings.ToLower(in.Basis))
	fmt.Fprintf(&b, "charge %d\n", in.Mol.Charge)
	fmt.Fprintf(&b, "spinmult %d\n", in.Mol.Multiplicity)
	fmt.Fprintf(&b, "method %s%s\n", methodPrefix(in.Mol.Closed, in.Mol.Restricted), strings.ToLower(in.Method.String()))
	b.WriteString("units bohr\n")

	if err := WriteXYZ(xyzfile, in.Mol.Atoms, in.Mol.Xyz); err != nil {
		return err
	}
	fmt.Fprintf(&b, "coordinates %s\n", xyzfile)

	if len(in.Xyz2) > 0 {
		old := xyzfile + ".old"
		if err := WriteXYZ(old, in.Mol.Atoms, in.Xyz2); err != nil {
			return err
		}
		fmt.Fprintf(&b, "old_coors %s\n", old)
	}
	if in.ReturnBondOrder {
		b.WriteString("bond_order true\n")
	}
	for i := 0; i+1 < len(in.UserOptions); i += 2 {
		fmt.Fprintf(&b, "%s %s\n", in.UserOptions[i], in.UserOptions[i+1])
	}

	if err := os.WriteFile(tcfile, []byte(b.String()), 0o644); err != nil {
		return fmt.Errorf("failed to write TC file: %w", err)
	}
	return nil
}

// IsApproxEqual compares two inputs field by field with float tolerance
func IsApproxEqual(a, b *domain.JobInput) bool {
	if a == nil || b == nil {
		return a == b
	}
	return slices.Equal(a.Mol.Atoms, b.Mol.Atoms) &&
		approx(a.Mol.Xyz, b.Mol.Xyz) &&
		a.Mol.Units == b.Mol.Units &&
		a.Mol.Charge == b.Mol.Charge &&
		a.Mol.Multiplicity == b.Mol.Multiplicity &&
		a.Mol.Closed == b.Mol.Closed &&
		a.Mol.Restricted == b.Mol.Restricted &&
		a.Run == b.Run &&
		a.Method == b.Method &&
		a.Basis == b.Basis &&
		a.Orb1AFile == b.Orb1AFile &&
		a.Orb1BFile == b.Orb1BFile &&
		approx(a.Xyz2, b.Xyz2) &&
		a.ReturnBondOrder == b.ReturnBondOrder &&
		approx(a.MMAtomPosition, b.MMAtomPosition) &&
		approx(a.MMAtomCharge, b.MMAtomCharge) &&
		a.QMMMType == b.QMMMType &&
		a.MDGlobalType == b.MDGlobalType &&
		slices.Equal(a.UserOptions, b.UserOptions)
}

func approx(a, b []float64) bool {
	return len(a) == len(b) && floats.EqualApprox(a, b, ApproxTolerance)
}

func scaled(v []float64, scale float64) []float64 {
	out := slices.Clone(v)
	if scale != 1.0 {
		floats.Scale(scale, out)
	}
	return out
}
