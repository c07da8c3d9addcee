package client

import "sync"

// UICommandKind enumerates the player-initiated network commands.
type UICommandKind int

const (
	UICommandHost UICommandKind = iota
	UICommandConnect
	UICommandStart
	UICommandLeave
	UICommandKick
	UICommandReset
)

func (k UICommandKind) String() string {
	switch k {
	case UICommandHost:
		return "host"
	case UICommandConnect:
		return "connect"
	case UICommandStart:
		return "start"
	case UICommandLeave:
		return "leave"
	case UICommandKick:
		return "kick"
	case UICommandReset:
		return "reset"
	default:
		return "unknown"
	}
}

// UICommand is one player-initiated network command. Addr and Nickname are
// set for Host and Connect; PlayerIndex for Kick.
type UICommand struct {
	Kind        UICommandKind
	Addr        string
	Nickname    string
	PlayerIndex int
}

// UICommandQueue stages player commands in a fixed-size ring until the next
// networking tick drains them. Safe for concurrent producers and a single
// consumer.
type UICommandQueue struct {
	mu    sync.Mutex
	data  []UICommand
	head  int
	tail  int
	count int
}

// NewUICommandQueue constructs a ring queue with the provided capacity.
func NewUICommandQueue(capacity int) *UICommandQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &UICommandQueue{data: make([]UICommand, capacity)}
}

// Push stages a command, returning false if the queue is full.
func (q *UICommandQueue) Push(cmd UICommand) bool {
	if q == nil {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == len(q.data) {
		return false
	}
	q.data[q.tail] = cmd
	q.tail = (q.tail + 1) % len(q.data)
	q.count++
	return true
}

// Drain returns all staged commands in FIFO order and clears the queue.
func (q *UICommandQueue) Drain() []UICommand {
	if q == nil {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == 0 {
		return nil
	}
	commands := make([]UICommand, q.count)
	for i := 0; i < q.count; i++ {
		idx := (q.head + i) % len(q.data)
		commands[i] = q.data[idx]
	}
	q.head = 0
	q.tail = 0
	q.count = 0
	return commands
}

// Len reports the number of staged commands.
func (q *UICommandQueue) Len() int {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}
