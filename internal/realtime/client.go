package realtime

import (
	"sync"

	"github.com/google/uuid"

	"github.com/yungbote/adstudio-backend/internal/platform/logger"
)

const outboundBuffer = 32

// SSEClient is one open event stream. Channels is guarded by the hub lock.
type SSEClient struct {
	ID       uuid.UUID
	UserID   uuid.UUID
	Channels map[string]bool
	Outbound chan SSEMessage
	Logger   *logger.Logger

	done chan struct{}
	once sync.Once
}

// Done is closed once the hub has released the client.
func (c *SSEClient) Done() <-chan struct{} { return c.done }

// offer queues msg without blocking and reports whether it was accepted.
// Callers hold the hub read lock so Outbound cannot be closed underneath.
func (c *SSEClient) offer(msg SSEMessage) bool {
	select {
	case c.Outbound <- msg:
		return true
	default:
		return false
	}
}
