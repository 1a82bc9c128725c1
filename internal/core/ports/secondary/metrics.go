package secondary

import "github.com/mtzgroup/tcpb-go/internal/domain"

// ServerMetrics observes reactor traffic
type ServerMetrics interface {
	MessageReceived(msgType string)
	StatusSent(statusCase string)
	ConnectionOpened()
	ConnectionClosed()
	ProtocolError(reason string)
	ObserveSlot(state domain.SlotState)
}
