package proto

import (
	"encoding/json"
	"fmt"
)

const (
	// Version tracks the wire-protocol revision expected by the server.
	Version = 1
)

// Client message type identifiers.
const (
	TypeJoinRoom               = "joinRoom"
	TypeStartHostedGame        = "startHostedGame"
	TypeHeartbeat              = "heartbeat"
	TypeAcknowledgeWorldUpdate = "ackWorldUpdate"
	TypeKick                   = "kick"
	TypeDisconnect             = "disconnect"
)

// Server message type identifiers.
const (
	TypeHandshake                = "handshake"
	TypeUpdateRoomPlayers        = "updateRoomPlayers"
	TypeStartGame                = "startGame"
	TypeUpdateWorld              = "updateWorld"
	TypeDiscardWalkActions       = "discardWalkActions"
	TypePauseWaitingForPlayers   = "pauseWaitingForPlayers"
	TypeUnpauseWaitingForPlayers = "unpauseWaitingForPlayers"
	TypePing                     = "ping"
	TypePong                     = "pong"
)

// ClientMessage captures an outbound websocket message to the server. Exactly
// one payload pointer is set, selected by Type. The session id is stamped by
// the transport from the live connection record at send time.
type ClientMessage struct {
	Ver       int    `json:"ver,omitempty"`
	SessionID uint64 `json:"sessionId"`
	Type      string `json:"type"`

	JoinRoom *JoinRoom               `json:"joinRoom,omitempty"`
	Ack      *AcknowledgeWorldUpdate `json:"ack,omitempty"`
	Kick     *Kick                   `json:"kick,omitempty"`
}

// JoinRoom announces this client to the room it is joining.
type JoinRoom struct {
	SentAt   int64  `json:"sentAt"`
	Nickname string `json:"nickname"`
}

// AcknowledgeWorldUpdate confirms receipt of an UpdateWorld batch.
type AcknowledgeWorldUpdate struct {
	ID uint64 `json:"id"`
}

// Kick asks the server to remove another player from the room. Honored for
// the host only.
type Kick struct {
	KickedConnectionID uint64 `json:"kickedConnectionId"`
}

// ServerMessage captures an inbound websocket message from the server.
// Exactly one payload pointer is set, selected by Type. Heartbeat, ping and
// pong carry no payload.
type ServerMessage struct {
	Ver       int    `json:"ver,omitempty"`
	SessionID uint64 `json:"sessionId"`
	Type      string `json:"type"`

	Handshake          *Handshake                `json:"handshake,omitempty"`
	RoomPlayers        *UpdateRoomPlayers        `json:"roomPlayers,omitempty"`
	StartGame          *StartGame                `json:"startGame,omitempty"`
	UpdateWorld        *UpdateWorld              `json:"updateWorld,omitempty"`
	DiscardWalkActions *DiscardWalkActions       `json:"discardWalkActions,omitempty"`
	Pause              *PauseWaitingForPlayers   `json:"pause,omitempty"`
	Unpause            *UnpauseWaitingForPlayers `json:"unpause,omitempty"`
	Disconnect         *Disconnect               `json:"disconnect,omitempty"`
}

// Handshake is the server's first reply on a fresh connection.
type Handshake struct {
	NetID  uint64 `json:"netId"`
	IsHost bool   `json:"isHost"`
}

// UpdateRoomPlayers replaces the lobby roster wholesale.
type UpdateRoomPlayers struct {
	Players []RoomPlayer `json:"players"`
}

// RoomPlayer is one roster entry as the server sees it.
type RoomPlayer struct {
	ConnectionID uint64 `json:"connectionId"`
	Nickname     string `json:"nickname,omitempty"`
}

// StartGame carries the entity net ids assigned to the roster, positionally.
type StartGame struct {
	EntityNetIDs []uint64 `json:"entityNetIds"`
}

// UpdateWorld is an authoritative batch of per-frame world updates. The id is
// server-assigned and monotonically increasing; duplicates are re-acked and
// otherwise ignored.
type UpdateWorld struct {
	ID      uint64              `json:"id"`
	Updates []ServerWorldUpdate `json:"updates"`
}

// ServerWorldUpdate is one frame's worth of authoritative actions.
type ServerWorldUpdate struct {
	FrameNumber  uint64             `json:"frame"`
	SpawnActions []SpawnAction      `json:"spawnActions,omitempty"`
	WalkActions  []WalkActionUpdate `json:"walkActions,omitempty"`
	CastActions  []CastActionUpdate `json:"castActions,omitempty"`
	LookActions  []LookActionUpdate `json:"lookActions,omitempty"`
}

// SpawnAction creates a monster at the given position.
type SpawnAction struct {
	EntityNetID uint64  `json:"entityNetId"`
	Kind        string  `json:"kind"`
	X           float64 `json:"x"`
	Y           float64 `json:"y"`
}

// WalkActionUpdate moves a player entity. ClientActionID is the id the
// originating client assigned when it predicted the action locally; it is
// what DiscardWalkActions refers back to.
type WalkActionUpdate struct {
	EntityNetID    uint64  `json:"entityNetId"`
	ClientActionID uint64  `json:"clientActionId"`
	X              float64 `json:"x"`
	Y              float64 `json:"y"`
	DX             float64 `json:"dx"`
	DY             float64 `json:"dy"`
}

// CastActionUpdate triggers a spell cast for a player entity.
type CastActionUpdate struct {
	EntityNetID    uint64  `json:"entityNetId"`
	ClientActionID uint64  `json:"clientActionId"`
	TargetX        float64 `json:"targetX"`
	TargetY        float64 `json:"targetY"`
	Spell          string  `json:"spell,omitempty"`
}

// LookActionUpdate rotates a player entity. Look actions are never replayed
// for the locally controlled player.
type LookActionUpdate struct {
	EntityNetID uint64  `json:"entityNetId"`
	DX          float64 `json:"dx"`
	DY          float64 `json:"dy"`
}

// DiscardWalkActions retroactively invalidates predicted walk actions by
// their client-assigned ids.
type DiscardWalkActions struct {
	ActionIDs []uint64 `json:"actionIds"`
}

// PauseWaitingForPlayers notifies that the listed players are lagging behind.
type PauseWaitingForPlayers struct {
	ID      uint64   `json:"id"`
	Players []uint64 `json:"players"`
}

// UnpauseWaitingForPlayers lifts an earlier pause notification.
type UnpauseWaitingForPlayers struct {
	ID uint64 `json:"id"`
}

// Disconnect tells the peer the connection is being closed.
type Disconnect struct {
	Reason    string `json:"reason,omitempty"`
	CrashCode int    `json:"crashCode,omitempty"`
}

// Disconnect reason identifiers carried on the wire.
const (
	ReasonClosed        = "closed"
	ReasonKicked        = "kicked"
	ReasonServerCrashed = "serverCrashed"
)

// DecodeServerMessage converts a raw websocket payload into a structured
// message, rejecting unsupported protocol revisions.
func DecodeServerMessage(payload []byte) (ServerMessage, error) {
	var msg ServerMessage
	if err := json.Unmarshal(payload, &msg); err != nil {
		return msg, err
	}
	if msg.Ver == 0 {
		msg.Ver = Version
	}
	if msg.Ver != Version {
		return msg, fmt.Errorf("unsupported server protocol version %d", msg.Ver)
	}
	return msg, nil
}

// EncodeClientMessage renders an outbound message, stamping the protocol
// version.
func EncodeClientMessage(msg ClientMessage) ([]byte, error) {
	msg.Ver = Version
	return json.Marshal(msg)
}

// JoinRoomMessage builds a JoinRoom envelope.
func JoinRoomMessage(sentAt int64, nickname string) ClientMessage {
	return ClientMessage{
		Type:     TypeJoinRoom,
		JoinRoom: &JoinRoom{SentAt: sentAt, Nickname: nickname},
	}
}

// StartHostedGameMessage builds a StartHostedGame envelope.
func StartHostedGameMessage() ClientMessage {
	return ClientMessage{Type: TypeStartHostedGame}
}

// HeartbeatMessage builds a Heartbeat envelope.
func HeartbeatMessage() ClientMessage {
	return ClientMessage{Type: TypeHeartbeat}
}

// AckWorldUpdateMessage builds an AcknowledgeWorldUpdate envelope.
func AckWorldUpdateMessage(id uint64) ClientMessage {
	return ClientMessage{
		Type: TypeAcknowledgeWorldUpdate,
		Ack:  &AcknowledgeWorldUpdate{ID: id},
	}
}

// KickMessage builds a Kick envelope.
func KickMessage(connectionID uint64) ClientMessage {
	return ClientMessage{
		Type: TypeKick,
		Kick: &Kick{KickedConnectionID: connectionID},
	}
}

// DisconnectMessage builds a Disconnect envelope.
func DisconnectMessage() ClientMessage {
	return ClientMessage{Type: TypeDisconnect}
}
