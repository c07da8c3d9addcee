package client

import (
	"fmt"
	"os"
	"sync/atomic"
)

// Telemetry aggregates protocol counters. All methods are safe for
// concurrent use; the transport pushes into it from its pump goroutines while
// the tick loop increments the rest.
type Telemetry struct {
	updatesAbsorbed      atomic.Uint64
	duplicateUpdates     atomic.Uint64
	sessionMismatches    atomic.Uint64
	eventsFiltered       atomic.Uint64
	heartbeatsSent       atomic.Uint64
	walkActionsDiscarded atomic.Uint64
	pausesEntered        atomic.Uint64
	queueOccupancy       atomic.Uint64
	queueOverflows       atomic.Uint64
	unreliableDropped    atomic.Uint64
	debug                bool
}

// TelemetrySnapshot is a point-in-time copy served by diagnostics.
type TelemetrySnapshot struct {
	UpdatesAbsorbed      uint64 `json:"updatesAbsorbed"`
	DuplicateUpdates     uint64 `json:"duplicateUpdates"`
	SessionMismatches    uint64 `json:"sessionMismatches"`
	EventsFiltered       uint64 `json:"eventsFiltered"`
	HeartbeatsSent       uint64 `json:"heartbeatsSent"`
	WalkActionsDiscarded uint64 `json:"walkActionsDiscarded"`
	PausesEntered        uint64 `json:"pausesEntered"`
	QueueOccupancy       uint64 `json:"queueOccupancy"`
	QueueOverflows       uint64 `json:"queueOverflows"`
	UnreliableDropped    uint64 `json:"unreliableDropped"`
}

// NewTelemetry constructs the counter set. DEBUG_TELEMETRY=1 enables stderr
// echo of absorbed batches.
func NewTelemetry() *Telemetry {
	t := &Telemetry{}
	if os.Getenv("DEBUG_TELEMETRY") == "1" {
		t.debug = true
	}
	return t
}

func (t *Telemetry) IncrementUpdatesAbsorbed() {
	t.updatesAbsorbed.Add(1)
	if t.debug {
		fmt.Fprintf(os.Stderr, "[telemetry] absorbed=%d duplicates=%d\n",
			t.updatesAbsorbed.Load(), t.duplicateUpdates.Load())
	}
}

func (t *Telemetry) IncrementDuplicateUpdate() {
	t.duplicateUpdates.Add(1)
}

func (t *Telemetry) IncrementSessionMismatch() {
	t.sessionMismatches.Add(1)
}

func (t *Telemetry) IncrementFilteredEvent() {
	t.eventsFiltered.Add(1)
}

func (t *Telemetry) IncrementHeartbeat() {
	t.heartbeatsSent.Add(1)
}

func (t *Telemetry) AddDiscardedWalkActions(count int) {
	if count < 0 {
		count = 0
	}
	t.walkActionsDiscarded.Add(uint64(count))
}

func (t *Telemetry) IncrementPauseEntered() {
	t.pausesEntered.Add(1)
}

// Add implements the keyed counter sink the transport expects.
func (t *Telemetry) Add(key string, delta uint64) {
	switch key {
	case "transport_event_queue_overflow_total":
		t.queueOverflows.Add(delta)
	case "transport_unreliable_dropped_total":
		t.unreliableDropped.Add(delta)
	}
}

// Store implements the keyed gauge sink the transport expects.
func (t *Telemetry) Store(key string, value uint64) {
	switch key {
	case "transport_event_queue_occupancy":
		t.queueOccupancy.Store(value)
	}
}

func (t *Telemetry) DebugEnabled() bool {
	return t.debug
}

func (t *Telemetry) Snapshot() TelemetrySnapshot {
	return TelemetrySnapshot{
		UpdatesAbsorbed:      t.updatesAbsorbed.Load(),
		DuplicateUpdates:     t.duplicateUpdates.Load(),
		SessionMismatches:    t.sessionMismatches.Load(),
		EventsFiltered:       t.eventsFiltered.Load(),
		HeartbeatsSent:       t.heartbeatsSent.Load(),
		WalkActionsDiscarded: t.walkActionsDiscarded.Load(),
		PausesEntered:        t.pausesEntered.Load(),
		QueueOccupancy:       t.queueOccupancy.Load(),
		QueueOverflows:       t.queueOverflows.Load(),
		UnreliableDropped:    t.unreliableDropped.Load(),
	}
}
