package client

// TimeSource exposes the frame counters the networking tick consumes.
type TimeSource interface {
	// EngineFrame counts every tick since the process started.
	EngineFrame() uint64
	// GameFrame counts simulated frames; it halts while the game is
	// paused.
	GameFrame() uint64
	// AbsoluteGameFrame counts frames since the match started, pauses
	// included. It is what lets the startup fill window elapse while the
	// network pause flag holds the simulation still.
	AbsoluteGameFrame() uint64
}

// FrameClock is the canonical TimeSource.
type FrameClock struct {
	engineFrame       uint64
	gameFrame         uint64
	absoluteGameFrame uint64
}

// NewFrameClock constructs a clock at frame zero.
func NewFrameClock() *FrameClock {
	return &FrameClock{}
}

// Advance steps the clock by one tick. Game counters only move while a match
// is underway; the simulated game frame additionally holds still while
// paused.
func (c *FrameClock) Advance(playing, paused bool) {
	c.engineFrame++
	if !playing {
		return
	}
	c.absoluteGameFrame++
	if !paused {
		c.gameFrame++
	}
}

// ResetSession zeroes the per-match counters when a session ends.
func (c *FrameClock) ResetSession() {
	c.gameFrame = 0
	c.absoluteGameFrame = 0
}

func (c *FrameClock) EngineFrame() uint64 { return c.engineFrame }

func (c *FrameClock) GameFrame() uint64 { return c.gameFrame }

func (c *FrameClock) AbsoluteGameFrame() uint64 { return c.absoluteGameFrame }
