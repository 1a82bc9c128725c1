package codec

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/mtzgroup/tcpb-go/internal/domain"
)

func marshalMol(m *domain.Mol) []byte {
	var b []byte
	b = appendStrings(b, molAtoms, m.Atoms)
	b = appendDoubles(b, molXyz, m.Xyz)
	b = appendInt32(b, molUnits, int32(m.Units))
	b = appendInt32(b, molCharge, m.Charge)
	b = appendInt32(b, molMultiplicity, m.Multiplicity)
	b = appendBool(b, molClosed, m.Closed)
	b = appendBool(b, molRestricted, m.Restricted)
	return b
}

func unmarshalMol(b []byte, m *domain.Mol) error {
	return walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case molAtoms:
			return consumeStrings(typ, b, &m.Atoms)
		case molXyz:
			return consumeDoubles(typ, b, &m.Xyz)
		case molUnits:
			var v int32
			n, err := consumeInt32(typ, b, &v)
			m.Units = domain.UnitType(v)
			return n, err
		case molCharge:
			return consumeInt32(typ, b, &m.Charge)
		case molMultiplicity:
			return consumeInt32(typ, b, &m.Multiplicity)
		case molClosed:
			return consumeBool(typ, b, &m.Closed)
		case molRestricted:
			return consumeBool(typ, b, &m.Restricted)
		}
		return skipField, nil
	})
}

func consumeMol(typ protowire.Type, b []byte, m *domain.Mol) (int, error) {
	raw, n, err := consumeBytes(typ, b)
	if err != nil {
		return 0, err
	}
	if err := unmarshalMol(raw, m); err != nil {
		return 0, fmt.Errorf("mol: %w", err)
	}
	return n, nil
}

// MarshalJobInput encodes a job input
func MarshalJobInput(in *domain.JobInput) []byte {
	var b []byte
	b = appendMessage(b, inputMol, marshalMol(&in.Mol))
	b = appendInt32(b, inputRun, int32(in.Run))
	b = appendInt32(b, inputMethod, int32(in.Method))
	b = appendString(b, inputBasis, in.Basis)
	b = appendString(b, inputOrb1AFile, in.Orb1AFile)
	b = appendString(b, inputOrb1BFile, in.Orb1BFile)
	b = appendDoubles(b, inputXyz2, in.Xyz2)
	b = appendBool(b, inputReturnBondOrder, in.ReturnBondOrder)
	b = appendDoubles(b, inputMMAtomPosition, in.MMAtomPosition)
	b = appendDoubles(b, inputMMAtomCharge, in.MMAtomCharge)
	b = appendInt32(b, inputQMMMType, int32(in.QMMMType))
	b = appendInt32(b, inputMDGlobalType, int32(in.MDGlobalType))
	b = appendStrings(b, inputUserOptions, in.UserOptions)
	return b
}

// UnmarshalJobInput decodes a job input
func UnmarshalJobInput(b []byte) (*domain.JobInput, error) {
	in := &domain.JobInput{}
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		var v int32
		switch num {
		case inputMol:
			return consumeMol(typ, b, &in.Mol)
		case inputRun:
			n, err := consumeInt32(typ, b, &v)
			in.Run = domain.RunType(v)
			return n, err
		case inputMethod:
			n, err := consumeInt32(typ, b, &v)
			in.Method = domain.MethodType(v)
			return n, err
		case inputBasis:
			return consumeString(typ, b, &in.Basis)
		case inputOrb1AFile:
			return consumeString(typ, b, &in.Orb1AFile)
		case inputOrb1BFile:
			return consumeString(typ, b, &in.Orb1BFile)
		case inputXyz2:
			return consumeDoubles(typ, b, &in.Xyz2)
		case inputReturnBondOrder:
			return consumeBool(typ, b, &in.ReturnBondOrder)
		case inputMMAtomPosition:
			return consumeDoubles(typ, b, &in.MMAtomPosition)
		case inputMMAtomCharge:
			return consumeDoubles(typ, b, &in.MMAtomCharge)
		case inputQMMMType:
			n, err := consumeInt32(typ, b, &v)
			in.QMMMType = domain.QMMMType(v)
			return n, err
		case inputMDGlobalType:
			n, err := consumeInt32(typ, b, &v)
			in.MDGlobalType = domain.MDGlobalTreatment(v)
			return n, err
		case inputUserOptions:
			return consumeStrings(typ, b, &in.UserOptions)
		}
		return skipField, nil
	})
	if err != nil {
		return nil, fmt.Errorf("decode job input: %w", err)
	}
	return in, nil
}
