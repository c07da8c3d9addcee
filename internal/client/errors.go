package client

import "errors"

var (
	// ErrProtocolViolation reports a server message that breaks the
	// protocol contract, such as a StartGame roster the local player is
	// missing from. The session cannot continue.
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrDesync reports a world update window that starts before the
	// frames this client still retains. The local timeline can no longer
	// be reconciled.
	ErrDesync = errors.New("desynchronized from server")
)
