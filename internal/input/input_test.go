package input

import (
	"errors"
	"math"
	"os"
	"path/filepath"
	"reflect"
	"strings"
	"testing"

	"github.com/mtzgroup/tcpb-go/internal/domain"
)

func writeTestFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatalf("WriteFile failed: %v", err)
	}
}

func waterOptions() map[string]string {
	return map[string]string{
		"run":      "gradient",
		"charge":   "0",
		"spinmult": "1",
		"method":   "pbe0",
		"basis":    "6-31g",
	}
}

var (
	waterAtoms = []string{"O", "H", "H"}
	waterGeom  = []float64{0, 0, -0.0685, 0, -0.7907, 0.5437, 0, 0.7907, 0.5437}
)

func TestParseMethod(t *testing.T) {
	t.Parallel()
	tests := []struct {
		method     string
		name       string
		closed     bool
		restricted bool
	}{
		{"pbe0", "pbe0", true, true},
		{"rhf", "hf", true, true},
		{"uhf", "hf", false, false},
		{"rohf", "hf", false, true},
		{"ROB3LYP", "b3lyp", false, true},
		{"revpbe", "revpbe", true, true},
		{"revpbe0", "revpbe0", true, true},
		{"urevpbe", "revpbe", false, false},
		{"rrevpbe0", "revpbe0", true, true},
		{"rorevpbe", "revpbe", false, true},
	}
	for _, tt := range tests {
		name, closed, restricted := ParseMethod(tt.method)
		if name != tt.name || closed != tt.closed || restricted != tt.restricted {
			t.Errorf("ParseMethod(%q) = %q, %v, %v; want %q, %v, %v",
				tt.method, name, closed, restricted, tt.name, tt.closed, tt.restricted)
		}
	}
}

func TestNew(t *testing.T) {
	t.Parallel()
	opts := waterOptions()
	opts["units"] = "angstrom"
	opts["bond_order"] = "True"
	opts["scf"] = "diis+a"
	opts["convthre"] = "3.0e-5"

	in, err := New(waterAtoms, opts, waterGeom, nil, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if in.Run != domain.RunGradient || in.Method != domain.MethodPBE0 || in.Basis != "6-31g" {
		t.Fatalf("unexpected job fields: %v %v %q", in.Run, in.Method, in.Basis)
	}
	if !in.Mol.Closed || !in.Mol.Restricted || in.Mol.Multiplicity != 1 || in.Mol.Charge != 0 {
		t.Fatalf("unexpected mol fields: %+v", in.Mol)
	}
	if in.Mol.Units != domain.UnitsBohr {
		t.Fatalf("units = %v, want BOHR", in.Mol.Units)
	}
	if got, want := in.Mol.Xyz[5], 0.5437*domain.AngstromToBohr; math.Abs(got-want) > 1e-12 {
		t.Fatalf("xyz[5] = %v, want %v", got, want)
	}
	if !in.ReturnBondOrder {
		t.Fatal("bond_order true not honoured")
	}
	want := []string{"convthre", "3.0e-5", "scf", "diis+a"}
	if !reflect.DeepEqual(in.UserOptions, want) {
		t.Fatalf("user options = %v, want %v", in.UserOptions, want)
	}
	if opts["run"] != "gradient" {
		t.Fatal("New modified the caller's options")
	}
}

func TestNewBohrDefaultAndMM(t *testing.T) {
	t.Parallel()
	mm := &MMRegion{Positions: []float64{1, 2, 3}, Charges: []float64{-0.5}}
	in, err := New(waterAtoms, waterOptions(), waterGeom, waterGeom, mm)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	if !reflect.DeepEqual(in.Mol.Xyz, waterGeom) || !reflect.DeepEqual(in.Xyz2, waterGeom) {
		t.Fatal("bohr geometry was scaled")
	}
	if in.NumMMAtoms() != 1 || in.MMAtomPosition[2] != 3 {
		t.Fatalf("MM region = %v %v", in.MMAtomPosition, in.MMAtomCharge)
	}
	if len(in.UserOptions) != 0 {
		t.Fatalf("unexpected user options %v", in.UserOptions)
	}
}

func TestNewErrors(t *testing.T) {
	t.Parallel()
	missing := waterOptions()
	delete(missing, "basis")
	if _, err := New(waterAtoms, missing, waterGeom, nil, nil); !errors.Is(err, ErrMissingKeyword) {
		t.Fatalf("missing basis: err = %v, want ErrMissingKeyword", err)
	}

	tests := map[string]func(map[string]string){
		"bad run":      func(o map[string]string) { o["run"] = "dance" },
		"bad method":   func(o map[string]string) { o["method"] = "ccsd(t)" },
		"bad charge":   func(o map[string]string) { o["charge"] = "neutral" },
		"bad spinmult": func(o map[string]string) { o["spinmult"] = "1.5" },
	}
	for name, mutate := range tests {
		opts := waterOptions()
		mutate(opts)
		if _, err := New(waterAtoms, opts, waterGeom, nil, nil); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}

	if _, err := New(waterAtoms, waterOptions(), waterGeom[:6], nil, nil); err == nil {
		t.Error("short geometry: expected error")
	}
	if _, err := New(waterAtoms, waterOptions(), waterGeom, nil, &MMRegion{Positions: []float64{1}, Charges: []float64{1}}); err == nil {
		t.Error("short MM positions: expected error")
	}
}

func TestReadTCFile(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "tc.in")
	writeTestFile(t, path, strings.Join([]string{
		"# a comment",
		"! another",
		"",
		"basis    6-31g   # trailing comment",
		"method pbe0",
		"scf diis+a extra words ! stop here",
		"basis sto-3g",
		"charge 0",
	}, "\n"))

	options, err := ReadTCFile(path)
	if err != nil {
		t.Fatalf("ReadTCFile failed: %v", err)
	}
	want := map[string]string{
		"basis":  "6-31g",
		"method": "pbe0",
		"scf":    "diis+a extra words",
		"charge": "0",
	}
	if !reflect.DeepEqual(options, want) {
		t.Fatalf("options = %v, want %v", options, want)
	}

	if _, err := ReadTCFile(filepath.Join(t.TempDir(), "missing.in")); err == nil {
		t.Fatal("expected error for a missing file")
	}
}

func TestXYZRoundTrip(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "water.xyz")
	if err := WriteXYZ(path, waterAtoms, waterGeom); err != nil {
		t.Fatalf("WriteXYZ failed: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile failed: %v", err)
	}
	lines := strings.Split(string(data), "\n")
	if lines[0] != "3" || lines[2] != "  O\t 0.0000000000  0.0000000000 -0.0685000000" {
		t.Fatalf("unexpected XYZ layout:\n%s", data)
	}

	atoms, geom, err := ReadXYZ(path, 2)
	if err != nil {
		t.Fatalf("ReadXYZ failed: %v", err)
	}
	if !reflect.DeepEqual(atoms, waterAtoms) {
		t.Fatalf("atoms = %v", atoms)
	}
	for i := range geom {
		if math.Abs(geom[i]-2*waterGeom[i]) > 1e-12 {
			t.Fatalf("geom[%d] = %v, want %v", i, geom[i], 2*waterGeom[i])
		}
	}
}

func TestReadXYZErrors(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	tests := map[string]string{
		"empty":     "",
		"bad count": "three\n\n",
		"short":     "2\ncomment\nH 0 0 0\n",
		"bad float": "1\n\nH 0 zero 0\n",
		"few cols":  "1\n\nH 0 0\n",
	}
	for name, content := range tests {
		path := filepath.Join(dir, strings.ReplaceAll(name, " ", "_")+".xyz")
		writeTestFile(t, path, content)
		if _, _, err := ReadXYZ(path, 1); err == nil {
			t.Errorf("%s: expected error", name)
		}
	}
}

func TestFromTCFile(t *testing.T) {
	t.Parallel()
	dir := t.TempDir()
	if err := WriteXYZ(filepath.Join(dir, "water.xyz"), waterAtoms, waterGeom); err != nil {
		t.Fatalf("WriteXYZ failed: %v", err)
	}
	if err := WriteXYZ(filepath.Join(dir, "water_old.xyz"), waterAtoms, waterGeom); err != nil {
		t.Fatalf("WriteXYZ failed: %v", err)
	}
	tcfile := filepath.Join(dir, "tc.in")
	writeTestFile(t, tcfile, strings.Join([]string{
		"run energy",
		"method rob3lyp",
		"basis 6-31g",
		"charge 1",
		"spinmult 2",
		"coordinates water.xyz",
		"old_coors water_old.xyz",
		"maxit 50",
	}, "\n"))

	in, err := FromTCFile(tcfile, "", "")
	if err != nil {
		t.Fatalf("FromTCFile failed: %v", err)
	}
	if in.Run != domain.RunEnergy || in.Method != domain.MethodB3LYP || in.Mol.Closed || !in.Mol.Restricted {
		t.Fatalf("unexpected input: %v %v closed=%v restricted=%v", in.Run, in.Method, in.Mol.Closed, in.Mol.Restricted)
	}
	if got, want := in.Mol.Xyz[4], -0.7907*domain.AngstromToBohr; math.Abs(got-want) > 1e-9 {
		t.Fatalf("xyz[4] = %v, want %v (angstrom default)", got, want)
	}
	if len(in.Xyz2) != 9 {
		t.Fatalf("xyz2 has %d values", len(in.Xyz2))
	}
	if !reflect.DeepEqual(in.UserOptions, []string{"maxit", "50"}) {
		t.Fatalf("user options = %v", in.UserOptions)
	}

	bohr := filepath.Join(dir, "bohr.in")
	writeTestFile(t, bohr, "run energy\nmethod hf\nbasis sto-3g\ncharge 0\nspinmult 1\nunits bohr\n")
	in, err = FromTCFile(bohr, filepath.Join(dir, "water.xyz"), "")
	if err != nil {
		t.Fatalf("FromTCFile failed: %v", err)
	}
	if math.Abs(in.Mol.Xyz[4]+0.7907) > 1e-9 {
		t.Fatalf("xyz[4] = %v, want bohr values unscaled", in.Mol.Xyz[4])
	}

	if _, err := FromTCFile(bohr, "", ""); err == nil {
		t.Fatal("expected error without coordinates")
	}
}

func TestWriteTCFileRoundTrip(t *testing.T) {
	t.Parallel()
	opts := waterOptions()
	opts["method"] = "uhf"
	opts["spinmult"] = "3"
	opts["maxit"] = "100"
	orig, err := New(waterAtoms, opts, waterGeom, waterGeom, nil)
	if err != nil {
		t.Fatalf("New failed: %v", err)
	}
	orig.ReturnBondOrder = true

	dir := t.TempDir()
	tcfile := filepath.Join(dir, "out.in")
	xyzfile := filepath.Join(dir, "out.xyz")
	if err := WriteTCFile(orig, tcfile, xyzfile); err != nil {
		t.Fatalf("WriteTCFile failed: %v", err)
	}
	if _, err := os.Stat(xyzfile + ".old"); err != nil {
		t.Fatalf("second geometry not written: %v", err)
	}

	back, err := FromTCFile(tcfile, "", "")
	if err != nil {
		t.Fatalf("FromTCFile failed: %v", err)
	}
	if !IsApproxEqual(orig, back) {
		t.Fatalf("round trip changed the input:\n%+v\n%+v", orig, back)
	}

	back.Mol.Xyz[0] += 1e-3
	if IsApproxEqual(orig, back) {
		t.Fatal("IsApproxEqual ignored a geometry change")
	}
}
