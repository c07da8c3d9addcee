package client

// PlayerRecord is one roster entry. EntityNetID stays zero until the server
// assigns entities at game start.
type PlayerRecord struct {
	ConnectionID uint64
	Nickname     string
	EntityNetID  uint64
}

// GameState tracks the in-game side of the session: the roster, the pause
// flags, and whether the match is underway.
type GameState struct {
	IsPlaying bool
	Players   []PlayerRecord

	// WaitingForPlayers pauses the simulation while other players lag.
	// WaitingForPlayersAckID dedups stale pause and unpause notifications.
	WaitingForPlayers      bool
	WaitingForPlayersAckID uint64
	LaggingPlayers         map[uint64]struct{}

	// WaitingNetwork pauses the simulation when local prediction outruns
	// the server.
	WaitingNetwork bool

	// IsDisconnected is set when the connection vanishes mid-game so the
	// session can surface it without tearing the world down.
	IsDisconnected bool
}

// NewGameState constructs an empty pre-lobby game state.
func NewGameState() *GameState {
	return &GameState{LaggingPlayers: make(map[uint64]struct{})}
}

// Reset returns the game to its pre-lobby zero state.
func (g *GameState) Reset() {
	*g = GameState{LaggingPlayers: make(map[uint64]struct{})}
}

// PlayerByConnection finds a roster entry by its connection id.
func (g *GameState) PlayerByConnection(connectionID uint64) (*PlayerRecord, bool) {
	for i := range g.Players {
		if g.Players[i].ConnectionID == connectionID {
			return &g.Players[i], true
		}
	}
	return nil, false
}

// Paused reports whether either pause flag halts the simulation.
func (g *GameState) Paused() bool {
	return g.WaitingForPlayers || g.WaitingNetwork
}

// AckCursor tracks the newest absorbed world-update batch. Batches at or
// below LastAckID are duplicates: they are re-acked and otherwise ignored.
type AckCursor struct {
	LastAckID    uint64
	LastAckFrame uint64
}

// Reset clears the cursor for a fresh session.
func (c *AckCursor) Reset() {
	*c = AckCursor{}
}
