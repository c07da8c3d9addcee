package client

import "spell-and-sprint/client/internal/net/proto"

// Transport sends outbound messages over the live connection. Reliable sends
// must arrive in order or tear the connection down; unreliable sends may be
// shed under pressure. Both stamp the record's session id.
type Transport interface {
	SendReliable(rec *ConnectionRecord, msg proto.ClientMessage)
	SendUnreliable(rec *ConnectionRecord, msg proto.ClientMessage)
	Close()
}

// Dialer opens a transport to the room server. Inbound traffic from the
// returned transport lands in the system's event queue.
type Dialer interface {
	Dial(addr string) (Transport, error)
}

// Launcher starts the dedicated server child process when hosting.
type Launcher interface {
	Launch(addr string) (ServerProbe, error)
}

// ServerProbe observes the hosted server child process. A non-host session
// uses NoServer.
type ServerProbe interface {
	// Started reports whether the child process ever launched.
	Started() bool
	// ExitStatus reports the exit code once the process has terminated.
	ExitStatus() (int, bool)
	// Stop tears the child process down.
	Stop()
}

// NoServer is the probe for sessions that did not launch a server.
type NoServer struct{}

func (NoServer) Started() bool           { return false }
func (NoServer) ExitStatus() (int, bool) { return 0, false }
func (NoServer) Stop()                   {}
