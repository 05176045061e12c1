package bus

import (
	"context"

	"github.com/yungbote/adstudio-backend/internal/realtime"
)

// Bus carries SSE messages between replicas so a client connected to one
// instance sees events produced on another.
type Bus interface {
	Publish(ctx context.Context, msg realtime.SSEMessage) error
	StartForwarder(ctx context.Context, onMsg func(m realtime.SSEMessage)) error
	Ping(ctx context.Context) error
	Close() error
}
