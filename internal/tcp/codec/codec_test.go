package codec

import (
	"bytes"
	"errors"
	"reflect"
	"testing"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/mtzgroup/tcpb-go/internal/domain"
)

func waterInput() *domain.JobInput {
	return &domain.JobInput{
		Mol: domain.Mol{
			Atoms:        []string{"O", "H", "H"},
			Xyz:          []float64{0, 0, -0.12948, 0, -1.49419, 1.02744, 0, 1.49419, 1.02744},
			Charge:       0,
			Multiplicity: 1,
			Closed:       true,
			Restricted:   true,
		},
		Run:            domain.RunGradient,
		Method:         domain.MethodPBE0,
		Basis:          "6-31g",
		MMAtomPosition: []float64{1, 2, 3},
		MMAtomCharge:   []float64{-0.834},
		QMMMType:       domain.QMMMPointCharge,
		MDGlobalType:   domain.MDGlobalNewCondition,
		UserOptions:    []string{"convthre", "3.0e-5", "precision", ""},
	}
}

func TestStatusWireFormat(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		status domain.Status
		want   []byte
	}{
		{"available", domain.BusyStatus(false), nil},
		{"busy", domain.BusyStatus(true), []byte{0x08, 0x01}},
		{
			"accepted",
			domain.JobStatus(domain.StatusCaseAccepted, "d", "s", 3),
			[]byte{0x10, 0x01, 0x2a, 0x01, 'd', 0x32, 0x01, 's', 0x38, 0x03},
		},
		{"working", domain.JobStatus(domain.StatusCaseWorking, "", "", 0), []byte{0x18, 0x01}},
		{"completed", domain.JobStatus(domain.StatusCaseCompleted, "", "", 0), []byte{0x20, 0x01}},
	}

	for _, tt := range tests {
		got := MarshalStatus(tt.status)
		if !bytes.Equal(got, tt.want) {
			t.Errorf("%s: MarshalStatus = % x, want % x", tt.name, got, tt.want)
		}
		back, err := UnmarshalStatus(got)
		if err != nil {
			t.Fatalf("%s: UnmarshalStatus failed: %v", tt.name, err)
		}
		if back != tt.status {
			t.Errorf("%s: round trip = %+v, want %+v", tt.name, back, tt.status)
		}
	}
}

func TestStatusJobFieldsOnlyForJobCases(t *testing.T) {
	t.Parallel()

	s := domain.Status{Busy: true, JobDir: "ignored", ServerJobID: 9}
	if got := MarshalStatus(s); !bytes.Equal(got, []byte{0x08, 0x01}) {
		t.Fatalf("MarshalStatus = % x, want busy only", got)
	}
}

func TestJobInputRoundTrip(t *testing.T) {
	t.Parallel()

	in := waterInput()
	in.Xyz2 = []float64{0.1, 0.2, 0.3, 0.4, 0.5, 0.6, 0.7, 0.8, 0.9}
	in.ReturnBondOrder = true
	in.Orb1AFile = "c0"

	got, err := UnmarshalJobInput(MarshalJobInput(in))
	if err != nil {
		t.Fatalf("UnmarshalJobInput failed: %v", err)
	}
	if !reflect.DeepEqual(got, in) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, in)
	}
}

func TestJobOutputRoundTrip(t *testing.T) {
	t.Parallel()

	out := &domain.JobOutput{
		Mol:            waterInput().Mol,
		Energy:         []float64{-76.300505, -76.1},
		Gradient:       []float64{2.903e-7, 7.22e-8, -0.033101313, -6.08e-8, -0.0141756697, 0.016550727, -2.294e-7, 0.0141755976, 0.016550585},
		MMAtomGradient: []float64{0.1, -0.2, 0.3},
		Charges:        []float64{-0.8, 0.4, 0.4},
		OrbOccupations: []int32{2, 2, 2, 2, 2, 0, -1},
		JobDir:         "/tmp/job_1",
		JobScrDir:      "/tmp/job_1/scr",
		ServerJobID:    1,
	}

	got, err := UnmarshalJobOutput(MarshalJobOutput(out))
	if err != nil {
		t.Fatalf("UnmarshalJobOutput failed: %v", err)
	}
	if !reflect.DeepEqual(got, out) {
		t.Fatalf("round trip mismatch:\n got %+v\nwant %+v", got, out)
	}
}

func TestDecodeSkipsUnknownAndUnpacked(t *testing.T) {
	t.Parallel()

	var b []byte
	// unknown string field 99
	b = protowire.AppendTag(b, 99, protowire.BytesType)
	b = protowire.AppendString(b, "future")
	// unpacked doubles for energy
	b = protowire.AppendTag(b, outputEnergy, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, 0x4000000000000000) // 2.0
	b = protowire.AppendTag(b, outputEnergy, protowire.Fixed64Type)
	b = protowire.AppendFixed64(b, 0x4008000000000000) // 3.0

	out, err := UnmarshalJobOutput(b)
	if err != nil {
		t.Fatalf("UnmarshalJobOutput failed: %v", err)
	}
	if !reflect.DeepEqual(out.Energy, []float64{2, 3}) {
		t.Fatalf("Energy = %v, want [2 3]", out.Energy)
	}
}

func TestDecodeMalformed(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name string
		data []byte
	}{
		{"truncated tag", []byte{0x80}},
		{"truncated string", []byte{0x22, 0x05, 'a'}},
		{"wrong wire type", []byte{0x22 &^ 0x07, 0x01}},
		{"odd packed doubles", []byte{0x3a, 0x03, 1, 2, 3}},
	}

	for _, tt := range tests {
		if _, err := UnmarshalJobInput(tt.data); !errors.Is(err, ErrMalformed) {
			t.Errorf("%s: expected ErrMalformed, got %v", tt.name, err)
		}
	}
}
