package client

import (
	"context"
	"fmt"

	"spell-and-sprint/client/internal/net/proto"
	"spell-and-sprint/client/internal/transport"
	"spell-and-sprint/client/logging/network"
)

// dispatch routes one drained transport event. Filters run in order: a dead
// record only admits the socket-loss notice and a fresh handshake, a stale
// session id drops the message outright, and lobby payloads are refused once
// the match is underway.
func (s *NetworkSystem) dispatch(evt transport.Event) error {
	if evt.Kind == transport.EventDisconnected {
		s.handleSocketLost()
		return nil
	}
	msg := evt.Message

	if s.conn == nil {
		s.telemetry.IncrementFilteredEvent()
		return nil
	}
	if s.conn.Disconnected && msg.Type != proto.TypeHandshake {
		s.telemetry.IncrementFilteredEvent()
		return nil
	}
	if msg.SessionID != s.conn.SessionID {
		s.telemetry.IncrementSessionMismatch()
		network.SessionMismatch(context.Background(), s.publisher, s.clock.EngineFrame(),
			network.SessionRef(s.conn.SessionID),
			network.SessionMismatchPayload{Expected: s.conn.SessionID, Got: msg.SessionID, Type: msg.Type}, nil)
		s.logger.Warn().
			Uint64("expected", s.conn.SessionID).
			Uint64("got", msg.SessionID).
			Str("type", msg.Type).
			Msg("dropping message from stale session")
		return nil
	}
	if s.game.IsPlaying {
		switch msg.Type {
		case proto.TypeHandshake, proto.TypeUpdateRoomPlayers, proto.TypeStartGame:
			s.telemetry.IncrementFilteredEvent()
			return nil
		}
	}

	switch msg.Type {
	case proto.TypeHeartbeat, proto.TypePing, proto.TypePong:
		// LastHeartbeatAt holds the send time of the last keep-alive, so
		// the reply's round trip is measurable here.
		now := s.now()
		if !s.conn.LastHeartbeatAt.IsZero() {
			s.conn.LastRTT = now.Sub(s.conn.LastHeartbeatAt)
		}
		s.conn.LastHeartbeatAt = now
		return nil
	case proto.TypeHandshake:
		return s.handleHandshake(msg.Handshake)
	case proto.TypeUpdateRoomPlayers:
		return s.handleRoomPlayers(msg.RoomPlayers)
	case proto.TypeStartGame:
		return s.handleStartGame(msg.StartGame)
	case proto.TypeUpdateWorld:
		return s.handleUpdateWorld(msg.UpdateWorld)
	case proto.TypeDiscardWalkActions:
		if msg.DiscardWalkActions != nil {
			s.discardWalkActions(msg.DiscardWalkActions.ActionIDs)
		}
		return nil
	case proto.TypePauseWaitingForPlayers:
		s.handlePause(msg.Pause)
		return nil
	case proto.TypeUnpauseWaitingForPlayers:
		s.handleUnpause(msg.Unpause)
		return nil
	case proto.TypeDisconnect:
		s.handleDisconnect(msg.Disconnect)
		return nil
	default:
		s.logger.Warn().Str("type", msg.Type).Msg("unknown server message type")
		return nil
	}
}

// handleSocketLost maps transport loss onto the lifecycle. A loss inside the
// reconnect grace window is ignored so a redial can settle; only an
// established or long-connecting session degrades to ConnectionFailed.
func (s *NetworkSystem) handleSocketLost() {
	st := s.room.Status
	ignorable := st.IsNotConnected()
	if st.IsConnecting() && s.now().Sub(st.StartedAt()) < ReconnectGrace {
		ignorable = true
	}
	if !ignorable {
		s.setStatus(ConnectionFailed(DisconnectReason{}))
	}
	s.destroyConnection()
}

func (s *NetworkSystem) handleHandshake(payload *proto.Handshake) error {
	if payload == nil {
		return fmt.Errorf("%w: handshake without payload", ErrProtocolViolation)
	}
	if !s.room.HasSentJoin {
		s.transport.SendReliable(s.conn, proto.JoinRoomMessage(s.now().UnixMilli(), s.room.Nickname))
		s.room.HasSentJoin = true
	}
	// A replayed handshake on a dead record is observed (join send, status,
	// host flag) but never revives the record itself.
	s.setStatus(Connected(payload.NetID))
	s.room.IsHost = payload.IsHost
	return nil
}

func (s *NetworkSystem) handleRoomPlayers(payload *proto.UpdateRoomPlayers) error {
	if payload == nil {
		return nil
	}
	players := make([]PlayerRecord, 0, len(payload.Players))
	for _, p := range payload.Players {
		players = append(players, PlayerRecord{ConnectionID: p.ConnectionID, Nickname: p.Nickname})
	}
	s.game.Players = players
	return nil
}

// handleStartGame binds the roster to entity net ids positionally. Missing
// ids, or a roster the local player is absent from, break the protocol
// contract and end the session.
func (s *NetworkSystem) handleStartGame(payload *proto.StartGame) error {
	if payload == nil {
		return fmt.Errorf("%w: startGame without payload", ErrProtocolViolation)
	}
	s.cursor.Reset()

	connID, ok := s.room.Status.ConnectionID()
	if !ok {
		return fmt.Errorf("%w: startGame before handshake", ErrProtocolViolation)
	}
	if len(payload.EntityNetIDs) < len(s.game.Players) {
		return fmt.Errorf("%w: startGame assigned %d entities for %d players",
			ErrProtocolViolation, len(payload.EntityNetIDs), len(s.game.Players))
	}
	for i := range s.game.Players {
		s.game.Players[i].EntityNetID = payload.EntityNetIDs[i]
	}
	self, ok := s.game.PlayerByConnection(connID)
	if !ok {
		return fmt.Errorf("%w: local player %d missing from roster", ErrProtocolViolation, connID)
	}
	s.room.PlayerNetID = self.EntityNetID
	s.game.IsPlaying = true
	s.requestEngine(EnginePlaying)
	return nil
}

func (s *NetworkSystem) handlePause(payload *proto.PauseWaitingForPlayers) {
	if payload == nil {
		return
	}
	if payload.ID <= s.game.WaitingForPlayersAckID {
		return
	}
	s.game.WaitingForPlayersAckID = payload.ID
	s.game.LaggingPlayers = make(map[uint64]struct{}, len(payload.Players))
	for _, id := range payload.Players {
		s.game.LaggingPlayers[id] = struct{}{}
	}
}

func (s *NetworkSystem) handleUnpause(payload *proto.UnpauseWaitingForPlayers) {
	if payload == nil {
		return
	}
	if payload.ID < s.game.WaitingForPlayersAckID {
		return
	}
	s.game.WaitingForPlayersAckID = payload.ID
	s.game.WaitingForPlayers = false
	s.game.LaggingPlayers = make(map[uint64]struct{})
}

func (s *NetworkSystem) handleDisconnect(payload *proto.Disconnect) {
	if s.room.Status.IsNotConnected() {
		return
	}
	reason := DisconnectReason{Kind: DisconnectClosed}
	if payload != nil {
		switch payload.Reason {
		case proto.ReasonKicked:
			reason.Kind = DisconnectKicked
		case proto.ReasonServerCrashed:
			reason.Kind = DisconnectServerCrashed
			reason.CrashCode = payload.CrashCode
		}
	}
	s.setStatus(Disconnected(reason))
}
