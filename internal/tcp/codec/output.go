package codec

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/mtzgroup/tcpb-go/internal/domain"
)

// MarshalJobOutput encodes a job output
func MarshalJobOutput(out *domain.JobOutput) []byte {
	var b []byte
	b = appendMessage(b, outputMol, marshalMol(&out.Mol))
	b = appendDoubles(b, outputEnergy, out.Energy)
	b = appendDoubles(b, outputGradient, out.Gradient)
	b = appendDoubles(b, outputCharges, out.Charges)
	b = appendDoubles(b, outputSpins, out.Spins)
	b = appendDoubles(b, outputDipoles, out.Dipoles)
	b = appendString(b, outputJobDir, out.JobDir)
	b = appendString(b, outputJobScrDir, out.JobScrDir)
	b = appendInt32(b, outputServerJobID, out.ServerJobID)
	b = appendString(b, outputOrb1AFile, out.Orb1AFile)
	b = appendString(b, outputOrb1BFile, out.Orb1BFile)
	b = appendDoubles(b, outputOrbEnergies, out.OrbEnergies)
	b = appendInt32s(b, outputOrbOccupations, out.OrbOccupations)
	b = appendDoubles(b, outputBondOrder, out.BondOrder)
	b = appendDoubles(b, outputMMAtomGradient, out.MMAtomGradient)
	return b
}

// UnmarshalJobOutput decodes a job output
func UnmarshalJobOutput(b []byte) (*domain.JobOutput, error) {
	out := &domain.JobOutput{}
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case outputMol:
			return consumeMol(typ, b, &out.Mol)
		case outputEnergy:
			return consumeDoubles(typ, b, &out.Energy)
		case outputGradient:
			return consumeDoubles(typ, b, &out.Gradient)
		case outputCharges:
			return consumeDoubles(typ, b, &out.Charges)
		case outputSpins:
			return consumeDoubles(typ, b, &out.Spins)
		case outputDipoles:
			return consumeDoubles(typ, b, &out.Dipoles)
		case outputJobDir:
			return consumeString(typ, b, &out.JobDir)
		case outputJobScrDir:
			return consumeString(typ, b, &out.JobScrDir)
		case outputServerJobID:
			return consumeInt32(typ, b, &out.ServerJobID)
		case outputOrb1AFile:
			return consumeString(typ, b, &out.Orb1AFile)
		case outputOrb1BFile:
			return consumeString(typ, b, &out.Orb1BFile)
		case outputOrbEnergies:
			return consumeDoubles(typ, b, &out.OrbEnergies)
		case outputOrbOccupations:
			return consumeInt32s(typ, b, &out.OrbOccupations)
		case outputBondOrder:
			return consumeDoubles(typ, b, &out.BondOrder)
		case outputMMAtomGradient:
			return consumeDoubles(typ, b, &out.MMAtomGradient)
		}
		return skipField, nil
	})
	if err != nil {
		return nil, fmt.Errorf("decode job output: %w", err)
	}
	return out, nil
}
