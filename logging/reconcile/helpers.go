package reconcile

import (
	"context"
	"strconv"

	"spell-and-sprint/client/logging"
)

const (
	// EventBatchAbsorbed is emitted when a world-update batch mutates the
	// local timeline.
	EventBatchAbsorbed logging.EventType = "reconcile.batch_absorbed"
)

// SessionRef builds the actor reference for a session id.
func SessionRef(sessionID uint64) logging.EntityRef {
	return logging.EntityRef{ID: strconv.FormatUint(sessionID, 10), Kind: logging.EntityKindSession}
}

// BatchAbsorbedPayload captures how far a batch advanced the timeline.
type BatchAbsorbedPayload struct {
	BatchID   uint64 `json:"batchId"`
	Frames    int    `json:"frames"`
	LastFrame uint64 `json:"lastFrame"`
}

// BatchAbsorbed publishes a debug event for an absorbed batch.
func BatchAbsorbed(ctx context.Context, pub logging.Publisher, frame uint64, actor logging.EntityRef, payload BatchAbsorbedPayload, extra map[string]any) {
	if pub == nil {
		return
	}
	event := logging.Event{
		Type:     EventBatchAbsorbed,
		Frame:    frame,
		Actor:    actor,
		Severity: logging.SeverityDebug,
		Category: logging.CategoryReconcile,
		Payload:  payload,
		Extra:    extra,
	}
	pub.Publish(ctx, event)
}
