package client

import (
	"context"

	"spell-and-sprint/client/internal/net/proto"
	"spell-and-sprint/client/logging/pacing"
)

// updateHeartbeat sends a keep-alive every HeartbeatFrameInterval engine
// frames while the record is alive.
func (s *NetworkSystem) updateHeartbeat() {
	if s.conn == nil || s.conn.Disconnected {
		return
	}
	engineFrame := s.clock.EngineFrame()
	if engineFrame-s.lastHeartbeatFrame <= HeartbeatFrameInterval {
		return
	}
	s.lastHeartbeatFrame = engineFrame
	s.transport.SendReliable(s.conn, proto.HeartbeatMessage())
	s.telemetry.IncrementHeartbeat()
	s.conn.LastHeartbeatAt = s.now()
}

// updatePauses recomputes both pause flags. The other-player pause is
// re-derived every tick while anyone lags: it holds only when the local
// simulation is about to outrun the buffered authoritative frames. The
// network pause fills the interpolation window at match start, then uses
// hysteresis: prediction further than PauseFrameThreshold ahead of the last
// acknowledged frame enters the pause, and only fully catching up leaves it.
func (s *NetworkSystem) updatePauses() {
	if len(s.game.LaggingPlayers) > 0 {
		was := s.game.WaitingForPlayers
		s.game.WaitingForPlayers = s.clock.GameFrame()+InterpolationFrameDelay >= s.world.BackFrame()
		if !was && s.game.WaitingForPlayers {
			s.telemetry.IncrementPauseEntered()
			pacing.PauseChanged(context.Background(), s.publisher, s.clock.EngineFrame(),
				pacing.SessionRef(s.sessionID()),
				pacing.PauseChangedPayload{Flag: "waitingForPlayers", Paused: true}, nil)
		}
	}

	if s.engine != EnginePlaying || !s.game.IsPlaying {
		return
	}

	absolute := s.clock.AbsoluteGameFrame()
	if absolute < InterpolationFrameDelay {
		s.game.WaitingNetwork = true
		return
	}
	if absolute == InterpolationFrameDelay {
		s.game.WaitingNetwork = false
	}

	framesAhead := saturatingSub(s.clock.GameFrame(),
		saturatingSub(s.cursor.LastAckFrame, InterpolationFrameDelay))
	if s.game.WaitingNetwork {
		s.game.WaitingNetwork = framesAhead != 0
		if !s.game.WaitingNetwork {
			pacing.PauseChanged(context.Background(), s.publisher, s.clock.EngineFrame(),
				pacing.SessionRef(s.sessionID()),
				pacing.PauseChangedPayload{Flag: "waitingNetwork", Paused: false}, nil)
		}
	} else if framesAhead > PauseFrameThreshold {
		s.game.WaitingNetwork = true
		s.telemetry.IncrementPauseEntered()
		pacing.PauseChanged(context.Background(), s.publisher, s.clock.EngineFrame(),
			pacing.SessionRef(s.sessionID()),
			pacing.PauseChangedPayload{Flag: "waitingNetwork", Paused: true, FramesAhead: framesAhead}, nil)
	}
}
