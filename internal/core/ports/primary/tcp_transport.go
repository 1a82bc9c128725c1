package primary

import (
	"context"

	"github.com/mtzgroup/tcpb-go/internal/domain"
	"github.com/mtzgroup/tcpb-go/internal/tcp/transport"
)

// MessageHandler handles one frame read from a client connection. A returned
// error drops the connection.
type MessageHandler interface {
	HandleMessage(ctx context.Context, conn *transport.Conn, payload []byte) error
}

// MessagePublisher writes replies to a client connection
type MessagePublisher interface {
	PublishStatus(ctx context.Context, conn *transport.Conn, status domain.Status) error
	PublishOutput(ctx context.Context, conn *transport.Conn, out *domain.JobOutput) error
}
