package transport

import (
	"encoding/binary"
	"fmt"

	"github.com/mtzgroup/tcpb-go/internal/tcp/defs"
)

// Message is one framed unit on the wire
type Message struct {
	Type    defs.MessageType
	Payload []byte
}

// WriteMessage sends the 8-byte header and then the payload, if any
func WriteMessage(c *Conn, msgType defs.MessageType, payload []byte) error {
	if uint64(len(payload)) > uint64(c.maxPayload) {
		return fmt.Errorf("write %s of %d bytes: %w", msgType, len(payload), ErrMessageTooLarge)
	}

	header := make([]byte, defs.HeaderSize)
	binary.BigEndian.PutUint32(header[0:4], uint32(msgType))
	binary.BigEndian.PutUint32(header[4:8], uint32(len(payload)))

	if err := c.SendAll(header); err != nil {
		return fmt.Errorf("failed to write message header: %w", err)
	}
	if len(payload) > 0 {
		if err := c.SendAll(payload); err != nil {
			return fmt.Errorf("failed to write message payload: %w", err)
		}
	}

	if c.recorder != nil {
		c.recorder.RecordSent(msgType, payload)
	}
	return nil
}

// ReadMessage reads one whole frame. Lengths above the limit are connection-fatal.
func ReadMessage(c *Conn) (Message, error) {
	header := make([]byte, defs.HeaderSize)
	if err := c.RecvAll(header); err != nil {
		return Message{}, fmt.Errorf("failed to read message header: %w", err)
	}

	msgType := defs.MessageType(binary.BigEndian.Uint32(header[0:4]))
	payloadLen := binary.BigEndian.Uint32(header[4:8])
	if payloadLen > c.maxPayload {
		return Message{}, fmt.Errorf("read %s of %d bytes (limit %d): %w", msgType, payloadLen, c.maxPayload, ErrMessageTooLarge)
	}

	msg := Message{Type: msgType}
	if payloadLen > 0 {
		msg.Payload = make([]byte, payloadLen)
		if err := c.RecvAll(msg.Payload); err != nil {
			return Message{}, fmt.Errorf("failed to read message payload: %w", err)
		}
	}

	if c.recorder != nil {
		c.recorder.RecordReceived(msgType, msg.Payload)
	}
	return msg, nil
}
