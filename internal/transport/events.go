package transport

import "spell-and-sprint/client/internal/net/proto"

// EventKind discriminates transport events.
type EventKind int

const (
	// EventMessage carries a decoded server message.
	EventMessage EventKind = iota
	// EventDisconnected signals that the underlying socket closed. The
	// message payload is unset.
	EventDisconnected
)

// Event is one unit of inbound traffic handed to the per-tick consumer.
type Event struct {
	Kind    EventKind
	Message proto.ServerMessage
}

// MessageEvent wraps a decoded server message.
func MessageEvent(msg proto.ServerMessage) Event {
	return Event{Kind: EventMessage, Message: msg}
}

// DisconnectedEvent signals socket loss.
func DisconnectedEvent() Event {
	return Event{Kind: EventDisconnected}
}
