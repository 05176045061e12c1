package services

import (
	"context"

	"github.com/google/uuid"

	"github.com/yungbote/adstudio-backend/internal/realtime"
)

// GenerationNotifier mirrors generation events onto a user's realtime feed.
type GenerationNotifier interface {
	GenerationEvent(userID uuid.UUID, ev ProgressEvent)
	PerformanceReady(userID uuid.UUID, contentID uuid.UUID, isNew bool)
}

type generationNotifier struct {
	emit SSEEmitter
}

func NewGenerationNotifier(emit SSEEmitter) GenerationNotifier {
	return &generationNotifier{emit: emit}
}

func (n *generationNotifier) GenerationEvent(userID uuid.UUID, ev ProgressEvent) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	event := realtime.SSEEventGenerationProgress
	switch ev.Type {
	case EventComplete:
		event = realtime.SSEEventGenerationCompleted
	case EventError:
		event = realtime.SSEEventGenerationFailed
	}
	n.emit.Emit(context.Background(), realtime.SSEMessage{
		Channel: realtime.UserChannel(userID),
		Event:   event,
		Data:    ev,
	})
}

func (n *generationNotifier) PerformanceReady(userID uuid.UUID, contentID uuid.UUID, isNew bool) {
	if n == nil || n.emit == nil || userID == uuid.Nil {
		return
	}
	n.emit.Emit(context.Background(), realtime.SSEMessage{
		Channel: realtime.UserChannel(userID),
		Event:   realtime.SSEEventPerformanceReady,
		Data: map[string]any{
			"content_id": contentID,
			"is_new":     isNew,
		},
	})
}
