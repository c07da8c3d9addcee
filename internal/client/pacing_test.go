package client

import (
	"testing"

	"spell-and-sprint/client/internal/net/proto"
)

func countHeartbeats(tr *fakeTransport) int {
	n := 0
	for _, s := range tr.sent {
		if s.msg.Type == proto.TypeHeartbeat {
			n++
		}
	}
	return n
}

func TestHeartbeatCadence(t *testing.T) {
	h := newHarness(t)
	h.connectJoiner(t, 42)
	tr := h.dialer.last()

	h.clock.engine = HeartbeatFrameInterval
	h.tick(t)
	if countHeartbeats(tr) != 0 {
		t.Fatalf("expected no heartbeat at exactly the interval")
	}

	h.clock.engine = HeartbeatFrameInterval + 1
	h.tick(t)
	if countHeartbeats(tr) != 1 {
		t.Fatalf("expected first heartbeat past the interval")
	}

	// Ticks inside the next interval stay quiet.
	h.clock.engine += 5
	h.tick(t)
	if countHeartbeats(tr) != 1 {
		t.Fatalf("expected no heartbeat inside the interval")
	}

	h.clock.engine += HeartbeatFrameInterval
	h.tick(t)
	if countHeartbeats(tr) != 2 {
		t.Fatalf("expected second heartbeat")
	}
	if got := h.sys.telemetry.Snapshot().HeartbeatsSent; got != 2 {
		t.Fatalf("expected 2 heartbeats counted, got %d", got)
	}
}

func TestHeartbeatSuppressedOnDeadRecord(t *testing.T) {
	h := newHarness(t)
	h.connectJoiner(t, 42)
	h.sys.conn.Disconnected = true

	h.clock.engine = 100
	h.tick(t)
	if countHeartbeats(h.dialer.last()) != 0 {
		t.Fatalf("expected no heartbeat on a dead record")
	}
}

func TestNetworkPauseColdStartFill(t *testing.T) {
	h := playingHarness(t)

	// The first interpolation window is always spent waiting for frames.
	for abs := uint64(0); abs < InterpolationFrameDelay; abs++ {
		h.clock.absolute = abs
		h.tick(t)
		if !h.sys.game.WaitingNetwork {
			t.Fatalf("expected network pause during fill at absolute frame %d", abs)
		}
	}

	h.clock.absolute = InterpolationFrameDelay
	h.clock.game = 0
	h.tick(t)
	if h.sys.game.WaitingNetwork {
		t.Fatalf("expected fill pause lifted at the window boundary")
	}
}

func TestNetworkPauseHysteresis(t *testing.T) {
	h := playingHarness(t)
	h.clock.absolute = InterpolationFrameDelay + 100

	// Run right up to the threshold: no pause.
	h.sys.cursor.LastAckFrame = InterpolationFrameDelay // shifted base frame 0
	h.clock.game = PauseFrameThreshold
	h.tick(t)
	if h.sys.game.WaitingNetwork {
		t.Fatalf("expected no pause at the threshold")
	}

	// One frame past the threshold enters the pause.
	h.clock.game = PauseFrameThreshold + 1
	h.tick(t)
	if !h.sys.game.WaitingNetwork {
		t.Fatalf("expected pause past the threshold")
	}

	// Partial catch-up is not enough to leave.
	h.sys.cursor.LastAckFrame = InterpolationFrameDelay + PauseFrameThreshold
	h.tick(t)
	if !h.sys.game.WaitingNetwork {
		t.Fatalf("expected pause held while still ahead")
	}

	// Only a full catch-up lifts it.
	h.sys.cursor.LastAckFrame = InterpolationFrameDelay + h.clock.game
	h.tick(t)
	if h.sys.game.WaitingNetwork {
		t.Fatalf("expected pause lifted at zero frames ahead")
	}
	if got := h.sys.telemetry.Snapshot().PausesEntered; got != 1 {
		t.Fatalf("expected 1 pause entry counted, got %d", got)
	}
}

func TestNetworkPauseRequiresPlayingEngine(t *testing.T) {
	h := newHarness(t)
	h.connectJoiner(t, 42)

	// Lobby sessions never compute the network pause.
	h.clock.absolute = 5
	h.tick(t)
	if h.sys.game.WaitingNetwork {
		t.Fatalf("expected no network pause in the lobby")
	}
}

func TestWaitingForPlayersRecomputedEachTick(t *testing.T) {
	h := playingHarness(t)
	sid := h.sys.conn.SessionID

	// Buffer frames up to 60, then learn that a player lags.
	h.pushWorld(1, proto.ServerWorldUpdate{FrameNumber: 60})
	h.tick(t)
	h.push(proto.ServerMessage{
		SessionID: sid,
		Type:      proto.TypePauseWaitingForPlayers,
		Pause:     &proto.PauseWaitingForPlayers{ID: 1, Players: []uint64{9}},
	})

	// Far from the buffered horizon the simulation keeps running.
	h.clock.game = 10
	h.tick(t)
	if h.sys.game.WaitingForPlayers {
		t.Fatalf("expected no pause while far from the horizon")
	}

	// Within the interpolation window of the horizon it pauses.
	h.clock.game = 50
	h.tick(t)
	if !h.sys.game.WaitingForPlayers {
		t.Fatalf("expected pause near the horizon")
	}

	// More buffered frames release the pause on the next tick, even with
	// the lag set still populated.
	h.pushWorld(2, proto.ServerWorldUpdate{FrameNumber: 120})
	h.tick(t)
	if h.sys.game.WaitingForPlayers {
		t.Fatalf("expected pause released once frames buffered ahead")
	}
}
