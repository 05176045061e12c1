package services

import (
	"github.com/google/uuid"
)

type EventType string

const (
	EventProgress EventType = "progress"
	EventComplete EventType = "complete"
	EventError    EventType = "error"
)

// ProgressEvent is one message of a streamed generation. A stream is a run of
// progress events closed by exactly one complete or error event.
type ProgressEvent struct {
	Type           EventType         `json:"type"`
	Step           int               `json:"step,omitempty"`
	Total          int               `json:"total,omitempty"`
	Message        string            `json:"message,omitempty"`
	Data           *GenerationResult `json:"data,omitempty"`
	GenerationTime float64           `json:"generation_time,omitempty"`
}

func (e ProgressEvent) Terminal() bool { return e.Type == EventComplete || e.Type == EventError }

func CompleteEvent(res *GenerationResult) ProgressEvent {
	ev := ProgressEvent{Type: EventComplete, Data: res}
	if res != nil {
		ev.GenerationTime = res.GenerationTime
	}
	return ev
}

func ErrorEvent(err error) ProgressEvent {
	msg := "generation failed"
	if err != nil {
		msg = err.Error()
	}
	return ProgressEvent{Type: EventError, Message: msg}
}

// ProgressSink receives events in order from a single goroutine.
type ProgressSink interface {
	Emit(ev ProgressEvent)
}

type ProgressSinkFunc func(ev ProgressEvent)

func (f ProgressSinkFunc) Emit(ev ProgressEvent) { f(ev) }

// relay tees events to the user's realtime feed.
func (s *generationService) relay(userID uuid.UUID, sink ProgressSink) ProgressSink {
	if s.notifier == nil || userID == uuid.Nil {
		return sink
	}
	return ProgressSinkFunc(func(ev ProgressEvent) {
		s.notifier.GenerationEvent(userID, ev)
		if sink != nil {
			sink.Emit(ev)
		}
	})
}
