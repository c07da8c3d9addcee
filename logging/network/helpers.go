package network

import (
	"context"
	"strconv"

	"spell-and-sprint/client/logging"
)

const (
	// EventSessionMismatch is emitted when a message arrives stamped with a
	// session id other than the live record's.
	EventSessionMismatch logging.EventType = "network.session_mismatch"
)

// SessionRef builds the actor reference for a session id.
func SessionRef(sessionID uint64) logging.EntityRef {
	return logging.EntityRef{ID: strconv.FormatUint(sessionID, 10), Kind: logging.EntityKindSession}
}

// SessionMismatchPayload captures the stale stamp and the dropped type.
type SessionMismatchPayload struct {
	Expected uint64 `json:"expected"`
	Got      uint64 `json:"got"`
	Type     string `json:"type"`
}

// SessionMismatch publishes a warning when stale-session traffic is dropped.
func SessionMismatch(ctx context.Context, pub logging.Publisher, frame uint64, actor logging.EntityRef, payload SessionMismatchPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventSessionMismatch,
		Frame:    frame,
		Actor:    actor,
		Severity: logging.SeverityWarn,
		Category: logging.CategoryNetwork,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}
