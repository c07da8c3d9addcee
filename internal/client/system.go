package client

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"spell-and-sprint/client/internal/net/proto"
	"spell-and-sprint/client/internal/transport"
	"spell-and-sprint/client/logging"
	"spell-and-sprint/client/logging/lifecycle"
)

// EngineState is the coarse mode the rest of the game runs in. Transitions
// requested mid-tick apply after pacing so the whole tick observes one state.
type EngineState int

const (
	EngineLobby EngineState = iota
	EnginePlaying
)

func (s EngineState) String() string {
	if s == EnginePlaying {
		return "playing"
	}
	return "lobby"
}

// NetworkSystem runs the client side of the sync protocol. Call Tick once per
// engine frame; everything else (UI commands, inbound traffic) is staged by
// other goroutines and drained inside the tick.
type NetworkSystem struct {
	mu sync.Mutex

	room   *RoomState
	game   *GameState
	cursor AckCursor
	conn   *ConnectionRecord

	world     *FrameBuffer[WorldFrame]
	spawns    *FrameBuffer[SpawnFrame]
	predicted *FrameBuffer[ActionFrame]

	clock     TimeSource
	events    *transport.EventQueue
	commands  *UICommandQueue
	dialer    Dialer
	transport Transport
	launcher  Launcher
	probe     ServerProbe
	telemetry *Telemetry
	logger    zerolog.Logger
	publisher logging.Publisher

	engine             EngineState
	pendingEngine      *EngineState
	nextSessionID      uint64
	nextLocalID        uint64
	lastHeartbeatFrame uint64
	now                func() time.Time
}

// SystemDeps carries the collaborators a NetworkSystem needs.
type SystemDeps struct {
	Clock     TimeSource
	Events    *transport.EventQueue
	Commands  *UICommandQueue
	Dialer    Dialer
	Launcher  Launcher
	Telemetry *Telemetry
	Logger    zerolog.Logger
	Publisher logging.Publisher
	Now       func() time.Time
}

// NewNetworkSystem wires a system in the lobby state with empty buffers.
func NewNetworkSystem(deps SystemDeps) *NetworkSystem {
	if deps.Now == nil {
		deps.Now = time.Now
	}
	if deps.Publisher == nil {
		deps.Publisher = logging.NopPublisher()
	}
	if deps.Telemetry == nil {
		deps.Telemetry = NewTelemetry()
	}
	s := &NetworkSystem{
		room:      &RoomState{},
		game:      NewGameState(),
		clock:     deps.Clock,
		events:    deps.Events,
		commands:  deps.Commands,
		dialer:    deps.Dialer,
		launcher:  deps.Launcher,
		telemetry: deps.Telemetry,
		logger:    deps.Logger,
		publisher: deps.Publisher,
		probe:     NoServer{},
		now:       deps.Now,
	}
	s.resetBuffers()
	return s
}

func (s *NetworkSystem) resetBuffers() {
	s.world = NewFrameBuffer[WorldFrame](FrameRetention)
	s.spawns = NewFrameBuffer[SpawnFrame](FrameRetention)
	s.predicted = NewFrameBuffer[ActionFrame](FrameRetention)
}

// Room exposes the room state for the tick's owner. Not safe to use
// concurrently with Tick.
func (s *NetworkSystem) Room() *RoomState { return s.room }

// Game exposes the game state for the tick's owner. Not safe to use
// concurrently with Tick.
func (s *NetworkSystem) Game() *GameState { return s.game }

// Engine reports the applied engine state.
func (s *NetworkSystem) Engine() EngineState { return s.engine }

// WorldFrames exposes the reconciled world buffer for replay.
func (s *NetworkSystem) WorldFrames() *FrameBuffer[WorldFrame] { return s.world }

// SpawnFrames exposes the spawn buffer for replay.
func (s *NetworkSystem) SpawnFrames() *FrameBuffer[SpawnFrame] { return s.spawns }

// PredictedFrames exposes the locally-predicted action buffer.
func (s *NetworkSystem) PredictedFrames() *FrameBuffer[ActionFrame] { return s.predicted }

// Tick runs one networking frame: drain UI commands, maintain the connection
// record, dispatch inbound events, then recompute pacing. A returned error is
// fatal for the session; transient conditions never surface here.
func (s *NetworkSystem) Tick() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	defer s.applyPendingEngine()

	for _, cmd := range s.commands.Drain() {
		s.handleUICommand(cmd)
	}

	if !s.room.IsActive {
		s.destroyConnection()
		return nil
	}

	s.ensureConnection()
	s.maybeSendStart()
	s.checkHostedServer()

	if s.conn == nil {
		if s.game.IsPlaying && s.engine == EnginePlaying {
			s.game.IsDisconnected = true
		}
		return nil
	}

	if s.room.PendingDisconnect {
		s.room.PendingDisconnect = false
		s.transport.SendReliable(s.conn, proto.DisconnectMessage())
		s.conn.Disconnected = true
		if s.room.IsHost {
			// The host lingers in Disconnecting until its child server
			// exits; socket loss during the teardown carries no new
			// information.
			s.setStatus(Disconnecting())
		} else {
			s.setStatus(Disconnected(DisconnectReason{Kind: DisconnectClosed}))
		}
	}

	for _, evt := range s.events.Drain() {
		if err := s.dispatch(evt); err != nil {
			s.setStatus(Disconnected(DisconnectReason{}))
			return err
		}
	}

	s.updateHeartbeat()
	s.updatePauses()
	return nil
}

func (s *NetworkSystem) handleUICommand(cmd UICommand) {
	switch cmd.Kind {
	case UICommandHost:
		if s.room.IsActive {
			s.logger.Warn().Msg("host command ignored: room already active")
			return
		}
		s.room.IsActive = true
		s.room.IsHost = true
		s.room.ServerAddr = cmd.Addr
		s.room.Nickname = cmd.Nickname
		s.setStatus(Connecting(s.now()))
		probe, err := s.launcher.Launch(cmd.Addr)
		if err != nil {
			s.logger.Error().Err(err).Str("addr", cmd.Addr).Msg("failed to launch hosted server")
			s.setStatus(ConnectionFailed(DisconnectReason{}))
			return
		}
		s.probe = probe
	case UICommandConnect:
		if s.room.IsActive {
			s.logger.Warn().Msg("connect command ignored: room already active")
			return
		}
		s.room.IsActive = true
		s.room.IsHost = false
		s.room.ServerAddr = cmd.Addr
		s.room.Nickname = cmd.Nickname
		s.setStatus(Connecting(s.now()))
	case UICommandStart:
		if s.room.IsHost {
			s.room.HasStarted = true
		}
	case UICommandLeave:
		if s.room.IsActive {
			s.room.PendingDisconnect = true
		}
	case UICommandKick:
		if !s.room.IsHost || s.conn == nil {
			return
		}
		if cmd.PlayerIndex < 0 || cmd.PlayerIndex >= len(s.game.Players) {
			return
		}
		target := s.game.Players[cmd.PlayerIndex].ConnectionID
		s.transport.SendReliable(s.conn, proto.KickMessage(target))
	case UICommandReset:
		s.destroyConnection()
		s.probe.Stop()
		s.probe = NoServer{}
		s.room.Reset()
		s.game.Reset()
		s.cursor.Reset()
		s.resetBuffers()
		// The per-match frame counters restart with the next session so
		// its fill window and frames-ahead math begin from zero.
		if clock, ok := s.clock.(interface{ ResetSession() }); ok {
			clock.ResetSession()
		}
		s.engine = EngineLobby
		s.pendingEngine = nil
	}
}

// ensureConnection creates the connection record when the lifecycle calls for
// one. A joiner dials as soon as the UI asks to connect; the host waits for
// its child server to come up first.
func (s *NetworkSystem) ensureConnection() {
	if s.conn != nil {
		return
	}
	st := s.room.Status
	wantRecord := st.IsConnected() ||
		(st.IsConnecting() && (!s.room.IsHost || s.probe.Started()))
	if !wantRecord {
		return
	}

	tr, err := s.dialer.Dial(s.room.ServerAddr)
	if err != nil {
		s.logger.Debug().Err(err).Str("addr", s.room.ServerAddr).Msg("dial failed")
		if st.IsConnecting() && s.now().Sub(st.StartedAt()) >= ReconnectGrace {
			s.setStatus(ConnectionFailed(DisconnectReason{}))
		}
		return
	}
	s.transport = tr

	s.nextLocalID++
	s.nextSessionID++
	s.conn = &ConnectionRecord{
		LocalID:    s.nextLocalID,
		SessionID:  s.nextSessionID,
		RemoteAddr: s.room.ServerAddr,
	}
	lifecycle.SessionOpened(context.Background(), s.publisher, s.clock.EngineFrame(),
		lifecycle.SessionRef(s.conn.SessionID),
		lifecycle.SessionOpenedPayload{RemoteAddr: s.conn.RemoteAddr, IsHost: s.room.IsHost}, nil)

	if !s.room.IsHost && !s.room.HasSentJoin {
		s.transport.SendReliable(s.conn, proto.JoinRoomMessage(s.now().UnixMilli(), s.room.Nickname))
		s.room.HasSentJoin = true
	}
}

func (s *NetworkSystem) maybeSendStart() {
	if s.conn == nil || !s.room.IsHost {
		return
	}
	if s.room.HasStarted && !s.room.HasSentStart {
		s.room.HasSentStart = true
		s.transport.SendReliable(s.conn, proto.StartHostedGameMessage())
	}
}

// checkHostedServer maps the child process exit into a disconnect reason.
func (s *NetworkSystem) checkHostedServer() {
	if !s.probe.Started() {
		return
	}
	code, exited := s.probe.ExitStatus()
	if !exited {
		return
	}
	if code == 0 {
		s.setStatus(Disconnected(DisconnectReason{Kind: DisconnectClosed}))
	} else {
		s.setStatus(Disconnected(DisconnectReason{Kind: DisconnectServerCrashed, CrashCode: code}))
	}
	s.probe.Stop()
	s.probe = NoServer{}
}

func (s *NetworkSystem) destroyConnection() {
	if s.transport != nil {
		s.transport.Close()
		s.transport = nil
	}
	if s.conn != nil {
		lifecycle.SessionClosed(context.Background(), s.publisher, s.clock.EngineFrame(),
			lifecycle.SessionRef(s.conn.SessionID),
			lifecycle.SessionClosedPayload{Reason: s.room.Status.Reason().Kind.String()}, nil)
		s.conn = nil
	}
}

func (s *NetworkSystem) setStatus(next RoomStatus) {
	prev := s.room.Status
	if prev.Kind() == next.Kind() {
		s.room.Status = next
		return
	}
	s.room.Status = next
	lifecycle.StatusChanged(context.Background(), s.publisher, s.clock.EngineFrame(),
		lifecycle.SessionRef(s.sessionID()),
		lifecycle.StatusChangedPayload{From: prev.Kind().String(), To: next.Kind().String()}, nil)
	s.logger.Info().
		Str("from", prev.Kind().String()).
		Str("to", next.Kind().String()).
		Msg("connection status changed")
}

func (s *NetworkSystem) sessionID() uint64 {
	if s.conn == nil {
		return 0
	}
	return s.conn.SessionID
}

func (s *NetworkSystem) requestEngine(state EngineState) {
	s.pendingEngine = &state
}

func (s *NetworkSystem) applyPendingEngine() {
	if s.pendingEngine != nil {
		s.engine = *s.pendingEngine
		s.pendingEngine = nil
	}
}

// SystemSnapshot is a point-in-time view served by diagnostics.
type SystemSnapshot struct {
	Status            string            `json:"status"`
	Reason            string            `json:"reason"`
	CrashCode         int               `json:"crashCode,omitempty"`
	IsActive          bool              `json:"isActive"`
	IsHost            bool              `json:"isHost"`
	Nickname          string            `json:"nickname,omitempty"`
	ServerAddr        string            `json:"serverAddr,omitempty"`
	SessionID         uint64            `json:"sessionId"`
	ConnectionID      uint64            `json:"connectionId"`
	PlayerNetID       uint64            `json:"playerNetId"`
	Engine            string            `json:"engine"`
	IsPlaying         bool              `json:"isPlaying"`
	IsDisconnected    bool              `json:"isDisconnected"`
	WaitingForPlayers bool              `json:"waitingForPlayers"`
	WaitingNetwork    bool              `json:"waitingNetwork"`
	LaggingPlayers    []uint64          `json:"laggingPlayers,omitempty"`
	Players           []PlayerRecord    `json:"players,omitempty"`
	EngineFrame       uint64            `json:"engineFrame"`
	GameFrame         uint64            `json:"gameFrame"`
	LastAckID         uint64            `json:"lastAckId"`
	LastAckFrame      uint64            `json:"lastAckFrame"`
	WorldFront        uint64            `json:"worldFront"`
	WorldBack         uint64            `json:"worldBack"`
	LastRTTMillis     int64             `json:"lastRttMillis"`
	Telemetry         TelemetrySnapshot `json:"telemetry"`
}

// Snapshot copies the observable state. Safe to call from other goroutines.
func (s *NetworkSystem) Snapshot() SystemSnapshot {
	s.mu.Lock()
	defer s.mu.Unlock()

	snap := SystemSnapshot{
		Status:            s.room.Status.Kind().String(),
		Reason:            s.room.Status.Reason().Kind.String(),
		CrashCode:         s.room.Status.Reason().CrashCode,
		IsActive:          s.room.IsActive,
		IsHost:            s.room.IsHost,
		Nickname:          s.room.Nickname,
		ServerAddr:        s.room.ServerAddr,
		PlayerNetID:       s.room.PlayerNetID,
		Engine:            s.engine.String(),
		IsPlaying:         s.game.IsPlaying,
		IsDisconnected:    s.game.IsDisconnected,
		WaitingForPlayers: s.game.WaitingForPlayers,
		WaitingNetwork:    s.game.WaitingNetwork,
		Players:           append([]PlayerRecord(nil), s.game.Players...),
		EngineFrame:       s.clock.EngineFrame(),
		GameFrame:         s.clock.GameFrame(),
		LastAckID:         s.cursor.LastAckID,
		LastAckFrame:      s.cursor.LastAckFrame,
		WorldFront:        s.world.FrontFrame(),
		WorldBack:         s.world.BackFrame(),
		Telemetry:         s.telemetry.Snapshot(),
	}
	if id, ok := s.room.Status.ConnectionID(); ok {
		snap.ConnectionID = id
	}
	if s.conn != nil {
		snap.SessionID = s.conn.SessionID
		snap.LastRTTMillis = s.conn.LastRTT.Milliseconds()
	}
	for id := range s.game.LaggingPlayers {
		snap.LaggingPlayers = append(snap.LaggingPlayers, id)
	}
	return snap
}
