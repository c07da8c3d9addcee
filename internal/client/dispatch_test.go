package client

import (
	"errors"
	"testing"

	"spell-and-sprint/client/internal/net/proto"
	"spell-and-sprint/client/internal/transport"
)

func TestDispatchDropsStaleSessionTraffic(t *testing.T) {
	h := newHarness(t)
	h.connectJoiner(t, 42)
	before := h.sys.game.Players

	h.push(proto.ServerMessage{
		SessionID:   h.sys.conn.SessionID + 1,
		Type:        proto.TypeUpdateRoomPlayers,
		RoomPlayers: &proto.UpdateRoomPlayers{Players: []proto.RoomPlayer{{ConnectionID: 9}}},
	})
	h.tick(t)

	if len(h.sys.game.Players) != len(before) {
		t.Fatalf("expected stale-session roster to be dropped")
	}
	if got := h.sys.telemetry.Snapshot().SessionMismatches; got != 1 {
		t.Fatalf("expected 1 session mismatch, got %d", got)
	}
}

func TestDispatchDeadRecordAdmitsOnlyHandshake(t *testing.T) {
	h := newHarness(t)
	h.connectJoiner(t, 42)
	h.sys.conn.Disconnected = true
	sid := h.sys.conn.SessionID

	h.push(proto.ServerMessage{
		SessionID:   sid,
		Type:        proto.TypeUpdateRoomPlayers,
		RoomPlayers: &proto.UpdateRoomPlayers{Players: []proto.RoomPlayer{{ConnectionID: 9}}},
	})
	h.tick(t)
	if len(h.sys.game.Players) != 0 {
		t.Fatalf("expected roster update dropped on dead record")
	}

	h.push(proto.ServerMessage{
		SessionID: sid,
		Type:      proto.TypeHandshake,
		Handshake: &proto.Handshake{NetID: 5},
	})
	h.tick(t)
	if id, ok := h.sys.room.Status.ConnectionID(); !ok || id != 5 {
		t.Fatalf("expected handshake observed on dead record, got %d (ok=%v)", id, ok)
	}
	if !h.sys.conn.Disconnected {
		t.Fatalf("expected record to stay dead after handshake")
	}

	// The record stays dead, so later non-handshake traffic is still dropped.
	h.push(proto.ServerMessage{
		SessionID:   sid,
		Type:        proto.TypeUpdateRoomPlayers,
		RoomPlayers: &proto.UpdateRoomPlayers{Players: []proto.RoomPlayer{{ConnectionID: 9}}},
	})
	h.tick(t)
	if len(h.sys.game.Players) != 0 {
		t.Fatalf("expected roster update still dropped after handshake on dead record")
	}
}

func TestDispatchDropsLobbyPayloadsWhilePlaying(t *testing.T) {
	h := newHarness(t)
	h.connectJoiner(t, 42)
	h.startMatch(t,
		[]proto.RoomPlayer{{ConnectionID: 42}},
		[]uint64{7})
	sid := h.sys.conn.SessionID

	h.push(proto.ServerMessage{
		SessionID:   sid,
		Type:        proto.TypeUpdateRoomPlayers,
		RoomPlayers: &proto.UpdateRoomPlayers{Players: []proto.RoomPlayer{{ConnectionID: 1}, {ConnectionID: 2}}},
	})
	h.push(proto.ServerMessage{
		SessionID: sid,
		Type:      proto.TypeStartGame,
		StartGame: &proto.StartGame{EntityNetIDs: []uint64{8}},
	})
	h.push(proto.ServerMessage{
		SessionID: sid,
		Type:      proto.TypeHandshake,
		Handshake: &proto.Handshake{NetID: 99},
	})
	h.tick(t)

	if len(h.sys.game.Players) != 1 || h.sys.room.PlayerNetID != 7 {
		t.Fatalf("expected lobby payloads ignored while playing")
	}
	if id, _ := h.sys.room.Status.ConnectionID(); id != 42 {
		t.Fatalf("expected connection id unchanged, got %d", id)
	}
}

func TestStartGameProtocolViolations(t *testing.T) {
	t.Run("before handshake", func(t *testing.T) {
		h := newHarness(t)
		h.commands.Push(UICommand{Kind: UICommandConnect, Addr: "room.example:7777"})
		h.tick(t)
		h.push(proto.ServerMessage{
			SessionID: h.sys.conn.SessionID,
			Type:      proto.TypeStartGame,
			StartGame: &proto.StartGame{EntityNetIDs: []uint64{1}},
		})
		if err := h.sys.Tick(); !errors.Is(err, ErrProtocolViolation) {
			t.Fatalf("expected protocol violation, got %v", err)
		}
	})

	t.Run("too few entity ids", func(t *testing.T) {
		h := newHarness(t)
		h.connectJoiner(t, 42)
		sid := h.sys.conn.SessionID
		h.push(proto.ServerMessage{
			SessionID:   sid,
			Type:        proto.TypeUpdateRoomPlayers,
			RoomPlayers: &proto.UpdateRoomPlayers{Players: []proto.RoomPlayer{{ConnectionID: 42}, {ConnectionID: 9}}},
		})
		h.push(proto.ServerMessage{
			SessionID: sid,
			Type:      proto.TypeStartGame,
			StartGame: &proto.StartGame{EntityNetIDs: []uint64{1}},
		})
		if err := h.sys.Tick(); !errors.Is(err, ErrProtocolViolation) {
			t.Fatalf("expected protocol violation, got %v", err)
		}
	})

	t.Run("local player missing from roster", func(t *testing.T) {
		h := newHarness(t)
		h.connectJoiner(t, 42)
		sid := h.sys.conn.SessionID
		h.push(proto.ServerMessage{
			SessionID:   sid,
			Type:        proto.TypeUpdateRoomPlayers,
			RoomPlayers: &proto.UpdateRoomPlayers{Players: []proto.RoomPlayer{{ConnectionID: 9}}},
		})
		h.push(proto.ServerMessage{
			SessionID: sid,
			Type:      proto.TypeStartGame,
			StartGame: &proto.StartGame{EntityNetIDs: []uint64{1}},
		})
		if err := h.sys.Tick(); !errors.Is(err, ErrProtocolViolation) {
			t.Fatalf("expected protocol violation, got %v", err)
		}
	})
}

func TestPauseNotificationsDedupByID(t *testing.T) {
	h := newHarness(t)
	h.connectJoiner(t, 42)
	sid := h.sys.conn.SessionID

	h.push(proto.ServerMessage{
		SessionID: sid,
		Type:      proto.TypePauseWaitingForPlayers,
		Pause:     &proto.PauseWaitingForPlayers{ID: 5, Players: []uint64{9}},
	})
	h.tick(t)
	if _, ok := h.sys.game.LaggingPlayers[9]; !ok {
		t.Fatalf("expected player 9 marked lagging")
	}

	// A stale pause is ignored outright.
	h.push(proto.ServerMessage{
		SessionID: sid,
		Type:      proto.TypePauseWaitingForPlayers,
		Pause:     &proto.PauseWaitingForPlayers{ID: 4, Players: []uint64{11}},
	})
	h.tick(t)
	if _, ok := h.sys.game.LaggingPlayers[11]; ok {
		t.Fatalf("expected stale pause dropped")
	}

	// A stale unpause is ignored, an equal-id unpause is honored.
	h.push(proto.ServerMessage{
		SessionID: sid,
		Type:      proto.TypeUnpauseWaitingForPlayers,
		Unpause:   &proto.UnpauseWaitingForPlayers{ID: 4},
	})
	h.tick(t)
	if len(h.sys.game.LaggingPlayers) == 0 {
		t.Fatalf("expected stale unpause dropped")
	}

	h.push(proto.ServerMessage{
		SessionID: sid,
		Type:      proto.TypeUnpauseWaitingForPlayers,
		Unpause:   &proto.UnpauseWaitingForPlayers{ID: 5},
	})
	h.tick(t)
	if len(h.sys.game.LaggingPlayers) != 0 || h.sys.game.WaitingForPlayers {
		t.Fatalf("expected unpause to clear the lag set")
	}
}

func TestServerDisconnectReasons(t *testing.T) {
	cases := []struct {
		name    string
		payload *proto.Disconnect
		want    DisconnectKind
		code    int
	}{
		{"closed", &proto.Disconnect{Reason: proto.ReasonClosed}, DisconnectClosed, 0},
		{"kicked", &proto.Disconnect{Reason: proto.ReasonKicked}, DisconnectKicked, 0},
		{"crashed", &proto.Disconnect{Reason: proto.ReasonServerCrashed, CrashCode: 7}, DisconnectServerCrashed, 7},
		{"missing payload", nil, DisconnectClosed, 0},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			h := newHarness(t)
			h.connectJoiner(t, 42)
			h.push(proto.ServerMessage{
				SessionID:  h.sys.conn.SessionID,
				Type:       proto.TypeDisconnect,
				Disconnect: tc.payload,
			})
			h.tick(t)
			st := h.sys.room.Status
			if st.Kind() != StatusDisconnected {
				t.Fatalf("expected disconnected, got %s", st.Kind())
			}
			if st.Reason().Kind != tc.want || st.Reason().CrashCode != tc.code {
				t.Fatalf("expected %s code=%d, got %s code=%d", tc.want, tc.code, st.Reason().Kind, st.Reason().CrashCode)
			}
		})
	}
}

func TestServerDisconnectIgnoredWhenAlreadyDown(t *testing.T) {
	h := newHarness(t)
	h.connectJoiner(t, 42)
	h.sys.room.Status = Disconnected(DisconnectReason{Kind: DisconnectKicked})

	h.push(proto.ServerMessage{
		SessionID:  h.sys.conn.SessionID,
		Type:       proto.TypeDisconnect,
		Disconnect: &proto.Disconnect{Reason: proto.ReasonClosed},
	})
	h.tick(t)
	if h.sys.room.Status.Reason().Kind != DisconnectKicked {
		t.Fatalf("expected original reason kept, got %s", h.sys.room.Status.Reason().Kind)
	}
}

func TestSocketLossWithinGraceIsIgnored(t *testing.T) {
	h := newHarness(t)
	h.commands.Push(UICommand{Kind: UICommandConnect, Addr: "room.example:7777"})
	h.tick(t)

	h.events.Push(transport.DisconnectedEvent())
	h.tick(t)
	if !h.sys.room.Status.IsConnecting() {
		t.Fatalf("expected status untouched inside grace, got %s", h.sys.room.Status.Kind())
	}

	// Past the grace window the same loss fails the connection.
	h.now = h.now.Add(2 * ReconnectGrace)
	h.tick(t) // redial
	h.events.Push(transport.DisconnectedEvent())
	h.tick(t)
	if h.sys.room.Status.Kind() != StatusConnectionFailed {
		t.Fatalf("expected connection failed, got %s", h.sys.room.Status.Kind())
	}
}
