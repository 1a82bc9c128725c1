package defs

import (
	"fmt"
	"time"
)

// MessageType tags every frame on the wire
type MessageType uint32

// Message types. Values are shared by client and server builds.
const (
	MsgStatus    MessageType = 0
	MsgMol       MessageType = 1 // reserved, never sent
	MsgJobInput  MessageType = 2
	MsgJobOutput MessageType = 3
)

// Protocol constants
const (
	HeaderSize = 8

	// DefaultMaxPayload bounds a single frame payload
	DefaultMaxPayload = 64 << 20

	// Configuration constants
	ClientTimeout        = 15 * time.Second
	ClientRetryDelay     = 1 * time.Second
	ClientPollDelay      = 1 * time.Second
	ServerWriteTimeout   = 15 * time.Second
	ReactorTick          = 100 * time.Millisecond
	ConnectionRetryDelay = 1 * time.Second
)

func (t MessageType) String() string {
	switch t {
	case MsgStatus:
		return "STATUS"
	case MsgMol:
		return "MOL"
	case MsgJobInput:
		return "JOBINPUT"
	case MsgJobOutput:
		return "JOBOUTPUT"
	default:
		return fmt.Sprintf("MessageType(%d)", uint32(t))
	}
}

// Valid reports whether t is one of the known message types
func (t MessageType) Valid() bool {
	return t <= MsgJobOutput
}
