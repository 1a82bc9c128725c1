package codec

import (
	"fmt"

	"google.golang.org/protobuf/encoding/protowire"

	"github.com/mtzgroup/tcpb-go/internal/domain"
)

// MarshalStatus encodes a status. Job fields are only written for a job case.
func MarshalStatus(s domain.Status) []byte {
	var b []byte
	b = appendBool(b, statusBusy, s.Busy)
	switch s.Case {
	case domain.StatusCaseAccepted:
		b = appendOneofBool(b, statusAccepted)
	case domain.StatusCaseWorking:
		b = appendOneofBool(b, statusWorking)
	case domain.StatusCaseCompleted:
		b = appendOneofBool(b, statusCompleted)
	}
	if s.Case != domain.StatusCaseNone {
		b = appendString(b, statusJobDir, s.JobDir)
		b = appendString(b, statusJobScrDir, s.JobScrDir)
		b = appendInt32(b, statusServerJobID, s.ServerJobID)
	}
	return b
}

// UnmarshalStatus decodes a status; an empty payload is the zero status
func UnmarshalStatus(b []byte) (domain.Status, error) {
	var s domain.Status
	err := walk(b, func(num protowire.Number, typ protowire.Type, b []byte) (int, error) {
		switch num {
		case statusBusy:
			return consumeBool(typ, b, &s.Busy)
		case statusAccepted, statusWorking, statusCompleted:
			var set bool
			n, err := consumeBool(typ, b, &set)
			if err != nil {
				return 0, err
			}
			// a later one-of member replaces an earlier one
			s.Case = statusCase(num)
			return n, nil
		case statusJobDir:
			return consumeString(typ, b, &s.JobDir)
		case statusJobScrDir:
			return consumeString(typ, b, &s.JobScrDir)
		case statusServerJobID:
			return consumeInt32(typ, b, &s.ServerJobID)
		}
		return skipField, nil
	})
	if err != nil {
		return domain.Status{}, fmt.Errorf("decode status: %w", err)
	}
	return s, nil
}

// appendOneofBool marks a one-of member as set
func appendOneofBool(b []byte, num protowire.Number) []byte {
	b = protowire.AppendTag(b, num, protowire.VarintType)
	return protowire.AppendVarint(b, protowire.EncodeBool(true))
}

func statusCase(num protowire.Number) domain.JobStatusCase {
	switch num {
	case statusAccepted:
		return domain.StatusCaseAccepted
	case statusWorking:
		return domain.StatusCaseWorking
	default:
		return domain.StatusCaseCompleted
	}
}
