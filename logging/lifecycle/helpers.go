package lifecycle

import (
	"context"
	"strconv"

	"spell-and-sprint/client/logging"
)

const (
	// EventSessionOpened is emitted when a connection record is created.
	EventSessionOpened logging.EventType = "lifecycle.session_opened"
	// EventSessionClosed is emitted when a connection record is destroyed.
	EventSessionClosed logging.EventType = "lifecycle.session_closed"
	// EventStatusChanged is emitted on every lifecycle state transition.
	EventStatusChanged logging.EventType = "lifecycle.status_changed"
)

// SessionRef builds the actor reference for a session id.
func SessionRef(sessionID uint64) logging.EntityRef {
	return logging.EntityRef{ID: strconv.FormatUint(sessionID, 10), Kind: logging.EntityKindSession}
}

// SessionOpenedPayload captures the new record's endpoint.
type SessionOpenedPayload struct {
	RemoteAddr string `json:"remoteAddr"`
	IsHost     bool   `json:"isHost"`
}

// SessionClosedPayload captures why the record went away.
type SessionClosedPayload struct {
	Reason string `json:"reason"`
}

// StatusChangedPayload captures a lifecycle transition.
type StatusChangedPayload struct {
	From string `json:"from"`
	To   string `json:"to"`
}

// SessionOpened publishes a session creation event.
func SessionOpened(ctx context.Context, pub logging.Publisher, frame uint64, actor logging.EntityRef, payload SessionOpenedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventSessionOpened,
		Frame:    frame,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// SessionClosed publishes a session teardown event.
func SessionClosed(ctx context.Context, pub logging.Publisher, frame uint64, actor logging.EntityRef, payload SessionClosedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventSessionClosed,
		Frame:    frame,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}

// StatusChanged publishes a lifecycle transition event.
func StatusChanged(ctx context.Context, pub logging.Publisher, frame uint64, actor logging.EntityRef, payload StatusChangedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventStatusChanged,
		Frame:    frame,
		Actor:    actor,
		Severity: logging.SeverityInfo,
		Category: logging.CategoryLifecycle,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}
