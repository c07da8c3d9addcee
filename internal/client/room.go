package client

import "time"

// StatusKind enumerates the connection lifecycle states.
type StatusKind int

const (
	StatusDisconnected StatusKind = iota
	StatusConnecting
	StatusConnected
	StatusDisconnecting
	StatusConnectionFailed
)

func (k StatusKind) String() string {
	switch k {
	case StatusDisconnected:
		return "disconnected"
	case StatusConnecting:
		return "connecting"
	case StatusConnected:
		return "connected"
	case StatusDisconnecting:
		return "disconnecting"
	case StatusConnectionFailed:
		return "connectionFailed"
	default:
		return "unknown"
	}
}

// DisconnectKind enumerates why a session ended.
type DisconnectKind int

const (
	DisconnectNone DisconnectKind = iota
	DisconnectClosed
	DisconnectKicked
	DisconnectServerCrashed
)

func (k DisconnectKind) String() string {
	switch k {
	case DisconnectNone:
		return "none"
	case DisconnectClosed:
		return "closed"
	case DisconnectKicked:
		return "kicked"
	case DisconnectServerCrashed:
		return "serverCrashed"
	default:
		return "unknown"
	}
}

// DisconnectReason records why a session ended. CrashCode is only meaningful
// for DisconnectServerCrashed.
type DisconnectReason struct {
	Kind      DisconnectKind
	CrashCode int
}

// RoomStatus is the connection lifecycle state machine value. Exactly one
// kind is active; the payload fields are meaningful per kind.
type RoomStatus struct {
	kind         StatusKind
	reason       DisconnectReason
	startedAt    time.Time
	connectionID uint64
}

// Disconnected reports a session that ended for the given reason.
func Disconnected(reason DisconnectReason) RoomStatus {
	return RoomStatus{kind: StatusDisconnected, reason: reason}
}

// Connecting reports a dial in flight since startedAt.
func Connecting(startedAt time.Time) RoomStatus {
	return RoomStatus{kind: StatusConnecting, startedAt: startedAt}
}

// Connected reports an established session with the server-assigned
// connection id.
func Connected(connectionID uint64) RoomStatus {
	return RoomStatus{kind: StatusConnected, connectionID: connectionID}
}

// Disconnecting reports a teardown in progress initiated locally.
func Disconnecting() RoomStatus {
	return RoomStatus{kind: StatusDisconnecting}
}

// ConnectionFailed reports a session lost without a server-stated reason.
func ConnectionFailed(reason DisconnectReason) RoomStatus {
	return RoomStatus{kind: StatusConnectionFailed, reason: reason}
}

// Kind reports the active lifecycle state.
func (s RoomStatus) Kind() StatusKind { return s.kind }

// Reason reports the recorded disconnect reason. Zero outside the
// Disconnected and ConnectionFailed states.
func (s RoomStatus) Reason() DisconnectReason { return s.reason }

// StartedAt reports when the in-flight dial began. Zero outside Connecting.
func (s RoomStatus) StartedAt() time.Time { return s.startedAt }

// ConnectionID reports the server-assigned connection id, valid only while
// Connected.
func (s RoomStatus) ConnectionID() (uint64, bool) {
	if s.kind != StatusConnected {
		return 0, false
	}
	return s.connectionID, true
}

// IsConnected reports whether a session is established.
func (s RoomStatus) IsConnected() bool { return s.kind == StatusConnected }

// IsConnecting reports whether a dial is in flight.
func (s RoomStatus) IsConnecting() bool { return s.kind == StatusConnecting }

// IsNotConnected reports whether no session exists or one is ending, the
// states in which a socket loss carries no new information.
func (s RoomStatus) IsNotConnected() bool {
	switch s.kind {
	case StatusDisconnected, StatusDisconnecting, StatusConnectionFailed:
		return true
	default:
		return false
	}
}

// RoomState tracks the player's relationship to the current room.
type RoomState struct {
	IsActive bool
	IsHost   bool
	Nickname string
	// ServerAddr is the host:port the room server listens on.
	ServerAddr string
	// PlayerNetID is the entity id assigned to the local player at game
	// start. Zero until then.
	PlayerNetID uint64
	// PendingDisconnect is set by the UI; the next tick sends the
	// disconnect message and begins teardown.
	PendingDisconnect bool
	// HasSentJoin and HasSentStart keep the join and start messages
	// idempotent across ticks.
	HasSentJoin  bool
	HasSentStart bool
	// HasStarted is set when the hosting player asks to begin the game.
	HasStarted bool
	Status     RoomStatus
}

// Reset returns the room to its inactive zero state.
func (r *RoomState) Reset() {
	*r = RoomState{}
}

// ConnectionRecord is the live connection to the room server. At most one
// exists at a time; a replacement always gets a fresh session id so traffic
// from a torn-down socket can never be attributed to the new one.
type ConnectionRecord struct {
	LocalID   uint64
	SessionID uint64
	// RemoteAddr is the resolved server address, kept for diagnostics.
	RemoteAddr string
	// Disconnected marks the record as logically dead while the final
	// disconnect message drains.
	Disconnected bool
	// LastRTT and LastHeartbeatAt are keep-alive latency telemetry.
	LastRTT         time.Duration
	LastHeartbeatAt time.Time
}
