package client

import "time"

const (
	// InterpolationFrameDelay is how many frames the remote-player streams
	// are rendered behind the authoritative frame they arrived for.
	InterpolationFrameDelay = 10

	// PauseFrameThreshold is how far local prediction may run ahead of the
	// last acknowledged server frame before the simulation pauses.
	PauseFrameThreshold = 40

	// HeartbeatFrameInterval is the engine-frame cadence of keep-alive
	// heartbeats.
	HeartbeatFrameInterval = 10

	// FrameRetention bounds how many frames either buffer keeps before the
	// front is evicted.
	FrameRetention = 600

	// ReconnectGrace is how long after initiating a connection a socket
	// loss is ignored, giving a redial a chance to settle.
	ReconnectGrace = time.Second
)
