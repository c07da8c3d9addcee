package client

import "spell-and-sprint/client/internal/net/proto"

// FrameBuffer is a contiguous ring of per-frame slots keyed by increasing
// frame number. The front only advances when Reserve evicts frames past the
// retention window, so slot order never changes. An oldest-touched watermark
// tracks the earliest frame modified since the last consume, letting the
// simulation know how far back it must replay.
type FrameBuffer[T any] struct {
	slots         []T
	frontFrame    uint64
	retention     int
	touched       bool
	oldestTouched uint64
}

// NewFrameBuffer constructs a buffer holding a single slot for frame zero.
func NewFrameBuffer[T any](retention int) *FrameBuffer[T] {
	if retention < 1 {
		retention = 1
	}
	return &FrameBuffer[T]{
		slots:     make([]T, 1),
		retention: retention,
	}
}

// FrontFrame reports the oldest retained frame.
func (b *FrameBuffer[T]) FrontFrame() uint64 {
	return b.frontFrame
}

// BackFrame reports the newest retained frame.
func (b *FrameBuffer[T]) BackFrame() uint64 {
	return b.frontFrame + uint64(len(b.slots)) - 1
}

// Len reports the number of retained frames.
func (b *FrameBuffer[T]) Len() int {
	return len(b.slots)
}

// Reserve extends the back of the buffer so that upTo is a valid frame,
// appending zero-valued slots. Frames falling out of the retention window are
// evicted from the front; the watermark is clamped forward if its frame was
// evicted. Reserve never shrinks the buffer.
func (b *FrameBuffer[T]) Reserve(upTo uint64) {
	back := b.BackFrame()
	if upTo <= back {
		return
	}
	for f := back + 1; f <= upTo; f++ {
		var zero T
		b.slots = append(b.slots, zero)
	}
	if len(b.slots) > b.retention {
		evict := len(b.slots) - b.retention
		b.slots = b.slots[evict:]
		b.frontFrame += uint64(evict)
		if b.touched && b.oldestTouched < b.frontFrame {
			b.oldestTouched = b.frontFrame
		}
	}
}

// Slot returns a pointer into the slot for the given frame, or false when the
// frame is outside the retained window.
func (b *FrameBuffer[T]) Slot(frame uint64) (*T, bool) {
	if frame < b.frontFrame || frame > b.BackFrame() {
		return nil, false
	}
	return &b.slots[frame-b.frontFrame], true
}

// Slots exposes every retained slot, oldest first. The slice shares the
// buffer's backing array.
func (b *FrameBuffer[T]) Slots() []T {
	return b.slots
}

// SlotsFrom exposes the retained slots starting at the given frame, oldest
// first. Frames before the front fall back to the full window.
func (b *FrameBuffer[T]) SlotsFrom(frame uint64) []T {
	if frame <= b.frontFrame {
		return b.slots
	}
	if frame > b.BackFrame() {
		return nil
	}
	return b.slots[frame-b.frontFrame:]
}

// Touch lowers the oldest-touched watermark to the given frame. Frames
// outside the retained window clamp to its bounds.
func (b *FrameBuffer[T]) Touch(frame uint64) {
	if frame < b.frontFrame {
		frame = b.frontFrame
	}
	if back := b.BackFrame(); frame > back {
		frame = back
	}
	if !b.touched || frame < b.oldestTouched {
		b.oldestTouched = frame
	}
	b.touched = true
}

// SetOldestTouched overwrites the watermark unconditionally.
func (b *FrameBuffer[T]) SetOldestTouched(frame uint64) {
	if frame < b.frontFrame {
		frame = b.frontFrame
	}
	b.oldestTouched = frame
	b.touched = true
}

// OldestTouched reports the watermark without clearing it.
func (b *FrameBuffer[T]) OldestTouched() (uint64, bool) {
	if !b.touched {
		return 0, false
	}
	return b.oldestTouched, true
}

// ConsumeTouched reports and clears the watermark.
func (b *FrameBuffer[T]) ConsumeTouched() (uint64, bool) {
	if !b.touched {
		return 0, false
	}
	frame := b.oldestTouched
	b.touched = false
	b.oldestTouched = 0
	return frame, true
}

// WorldFrame is one frame of authoritative world actions split into the
// locally-controlled streams (replayed at full fidelity) and the broadcast
// streams for everyone else.
type WorldFrame struct {
	ControlledWalk []proto.WalkActionUpdate
	ControlledCast []proto.CastActionUpdate
	BroadcastWalk  []proto.WalkActionUpdate
	BroadcastCast  []proto.CastActionUpdate
	BroadcastLook  []proto.LookActionUpdate
}

// SpawnFrame is one frame of monster spawns. Spawns are never delayed.
type SpawnFrame struct {
	Spawns []proto.SpawnAction
}

// ActionFrame is one frame of locally-predicted walk actions awaiting server
// confirmation.
type ActionFrame struct {
	WalkActions []proto.WalkActionUpdate
}
