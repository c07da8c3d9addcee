package client

import (
	"context"
	"fmt"
	"sort"

	"spell-and-sprint/client/internal/net/proto"
	reconcilelog "spell-and-sprint/client/logging/reconcile"
)

func saturatingSub(a, b uint64) uint64 {
	if a < b {
		return 0
	}
	return a - b
}

// handleUpdateWorld acknowledges and absorbs one authoritative batch. The ack
// goes out unconditionally so a lost ack cannot stall the server; only a
// strictly newer batch id mutates local state.
func (s *NetworkSystem) handleUpdateWorld(payload *proto.UpdateWorld) error {
	if payload == nil {
		return nil
	}
	s.transport.SendUnreliable(s.conn, proto.AckWorldUpdateMessage(payload.ID))

	if payload.ID <= s.cursor.LastAckID {
		s.telemetry.IncrementDuplicateUpdate()
		return nil
	}

	updates := append([]proto.ServerWorldUpdate(nil), payload.Updates...)
	sort.SliceStable(updates, func(i, j int) bool {
		return updates[i].FrameNumber < updates[j].FrameNumber
	})

	s.cursor.LastAckID = payload.ID
	if len(updates) > 0 {
		if last := updates[len(updates)-1].FrameNumber; last > s.cursor.LastAckFrame {
			s.cursor.LastAckFrame = last
		}
	}

	target := s.cursor.LastAckFrame
	if gf := s.clock.GameFrame(); gf > target {
		target = gf
	}
	s.world.Reserve(target)
	s.spawns.Reserve(target)

	var controlled []uint64
	if s.room.PlayerNetID != 0 {
		controlled = []uint64{s.room.PlayerNetID}
	}
	if err := s.applyWorldUpdates(controlled, updates); err != nil {
		return err
	}

	s.telemetry.IncrementUpdatesAbsorbed()
	reconcilelog.BatchAbsorbed(context.Background(), s.publisher, s.clock.EngineFrame(),
		reconcilelog.SessionRef(s.sessionID()),
		reconcilelog.BatchAbsorbedPayload{BatchID: payload.ID, Frames: len(updates), LastFrame: s.cursor.LastAckFrame}, nil)
	return nil
}

// controlledUpdate is the slice of one server frame that belongs to the local
// player, replayed at full delay-shifted fidelity.
type controlledUpdate struct {
	walk *proto.WalkActionUpdate
	cast *proto.CastActionUpdate
}

// applyWorldUpdates merges a sorted batch into the world and spawn buffers.
// Broadcast streams and spawns land at the frames the server sent them for;
// the local player's extracted stream lands InterpolationFrameDelay frames
// earlier so replay corrects prediction at the frame it originally ran.
func (s *NetworkSystem) applyWorldUpdates(controlled []uint64, updates []proto.ServerWorldUpdate) error {
	if len(updates) == 0 {
		return nil
	}

	othersStart := updates[0].FrameNumber
	controlledStart := saturatingSub(othersStart, InterpolationFrameDelay)
	if controlledStart < s.world.FrontFrame() {
		return fmt.Errorf("%w: update window starts at frame %d, oldest retained is %d",
			ErrDesync, controlledStart, s.world.FrontFrame())
	}

	controlledUpdates := extractControlledUpdates(controlled, updates)

	s.spawns.SetOldestTouched(othersStart)
	for i := range updates {
		if slot, ok := s.spawns.Slot(updates[i].FrameNumber); ok {
			slot.Spawns = updates[i].SpawnActions
		}
	}

	s.world.SetOldestTouched(controlledStart)
	ci, ui := 0, 0
	for frame := controlledStart; frame <= s.world.BackFrame(); frame++ {
		slot, ok := s.world.Slot(frame)
		if !ok {
			break
		}
		if ci < len(controlledUpdates) {
			cu := controlledUpdates[ci]
			slot.ControlledWalk = nil
			slot.ControlledCast = nil
			if cu.walk != nil {
				slot.ControlledWalk = []proto.WalkActionUpdate{*cu.walk}
			}
			if cu.cast != nil {
				slot.ControlledCast = []proto.CastActionUpdate{*cu.cast}
			}
			ci++
		}
		if frame >= othersStart && ui < len(updates) && updates[ui].FrameNumber == frame {
			slot.BroadcastWalk = updates[ui].WalkActions
			slot.BroadcastCast = updates[ui].CastActions
			slot.BroadcastLook = updates[ui].LookActions
			ui++
		}
		if ui >= len(updates) && ci >= len(controlledUpdates) {
			break
		}
	}
	return nil
}

// extractControlledUpdates pulls the local player's stream out of the batch,
// mutating the updates in place. At most one walk and one cast per frame move
// to the controlled stream; controlled look actions are dropped entirely, the
// local camera already knows where it points. Frames too early to shift back
// by the interpolation delay are skipped from the front of the batch only.
func extractControlledUpdates(controlled []uint64, updates []proto.ServerWorldUpdate) []controlledUpdate {
	isControlled := func(id uint64) bool {
		for _, c := range controlled {
			if c == id {
				return true
			}
		}
		return false
	}

	var out []controlledUpdate
	skipping := true
	for i := range updates {
		if skipping && updates[i].FrameNumber < InterpolationFrameDelay {
			continue
		}
		skipping = false

		var cu controlledUpdate
		walks := updates[i].WalkActions[:0]
		for j := range updates[i].WalkActions {
			action := updates[i].WalkActions[j]
			if cu.walk == nil && isControlled(action.EntityNetID) {
				extracted := action
				cu.walk = &extracted
				continue
			}
			walks = append(walks, action)
		}
		updates[i].WalkActions = walks

		casts := updates[i].CastActions[:0]
		for j := range updates[i].CastActions {
			action := updates[i].CastActions[j]
			if cu.cast == nil && isControlled(action.EntityNetID) {
				extracted := action
				cu.cast = &extracted
				continue
			}
			casts = append(casts, action)
		}
		updates[i].CastActions = casts

		looks := updates[i].LookActions[:0]
		for j := range updates[i].LookActions {
			action := updates[i].LookActions[j]
			if isControlled(action.EntityNetID) {
				continue
			}
			looks = append(looks, action)
		}
		updates[i].LookActions = looks

		out = append(out, cu)
	}
	return out
}

// discardWalkActions removes retroactively invalidated predictions, scanning
// newest to oldest and touching each frame a removal lands on. Ids with no
// surviving prediction are dropped silently; the action they named was
// already evicted or never recorded.
func (s *NetworkSystem) discardWalkActions(ids []uint64) {
	if len(ids) == 0 {
		return
	}
	pending := make(map[uint64]struct{}, len(ids))
	for _, id := range ids {
		pending[id] = struct{}{}
	}

	removed := 0
	frame := s.predicted.BackFrame()
	for {
		if slot, ok := s.predicted.Slot(frame); ok && len(slot.WalkActions) > 0 {
			kept := slot.WalkActions[:0]
			for _, action := range slot.WalkActions {
				if _, hit := pending[action.ClientActionID]; hit {
					delete(pending, action.ClientActionID)
					removed++
					s.predicted.Touch(frame)
					continue
				}
				kept = append(kept, action)
			}
			slot.WalkActions = kept
		}
		if len(pending) == 0 || frame == s.predicted.FrontFrame() {
			break
		}
		frame--
	}
	s.telemetry.AddDiscardedWalkActions(removed)
}
