package pacing

import (
	"context"
	"strconv"

	"spell-and-sprint/client/logging"
)

const (
	// EventPauseChanged is emitted when either pause flag flips.
	EventPauseChanged logging.EventType = "pacing.pause_changed"
)

// SessionRef builds the actor reference for a session id.
func SessionRef(sessionID uint64) logging.EntityRef {
	return logging.EntityRef{ID: strconv.FormatUint(sessionID, 10), Kind: logging.EntityKindSession}
}

// PauseChangedPayload captures which flag flipped and why.
type PauseChangedPayload struct {
	Flag        string `json:"flag"`
	Paused      bool   `json:"paused"`
	FramesAhead uint64 `json:"framesAhead,omitempty"`
}

// PauseChanged publishes a pause transition event.
func PauseChanged(ctx context.Context, pub logging.Publisher, frame uint64, actor logging.EntityRef, payload PauseChangedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventPauseChanged,
		Frame:    frame,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryPacing,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}
