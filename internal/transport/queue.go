package transport

import "sync"

const (
	eventQueueOccupancyMetricKey = "transport_event_queue_occupancy"
	eventQueueOverflowMetricKey  = "transport_event_queue_overflow_total"
)

// EventQueue stores inbound transport events in a fixed-size ring. It is safe
// for concurrent producers and a single consumer.
type EventQueue struct {
	mu      sync.Mutex
	data    []Event
	head    int
	tail    int
	count   int
	metrics telemetryMetrics
}

type telemetryMetrics interface {
	Add(string, uint64)
	Store(string, uint64)
}

// NewEventQueue constructs a ring queue with the provided capacity.
func NewEventQueue(capacity int, metrics telemetryMetrics) *EventQueue {
	if capacity < 1 {
		capacity = 1
	}
	return &EventQueue{
		data:    make([]Event, capacity),
		metrics: metrics,
	}
}

// Capacity reports the maximum number of events the queue can hold.
func (q *EventQueue) Capacity() int {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.data)
}

// Push stages an event, returning false if the queue is full.
func (q *EventQueue) Push(evt Event) bool {
	if q == nil {
		return false
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == len(q.data) {
		if q.metrics != nil {
			q.metrics.Add(eventQueueOverflowMetricKey, 1)
		}
		return false
	}
	q.data[q.tail] = evt
	q.tail = (q.tail + 1) % len(q.data)
	q.count++
	q.storeOccupancyLocked()
	return true
}

// Drain returns all staged events in FIFO order and clears the queue.
func (q *EventQueue) Drain() []Event {
	if q == nil {
		return nil
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	if q.count == 0 {
		return nil
	}
	events := make([]Event, q.count)
	for i := 0; i < q.count; i++ {
		idx := (q.head + i) % len(q.data)
		events[i] = q.data[idx]
	}
	q.head = 0
	q.tail = 0
	q.count = 0
	q.storeOccupancyLocked()
	return events
}

// Len reports the number of staged events.
func (q *EventQueue) Len() int {
	if q == nil {
		return 0
	}
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.count
}

func (q *EventQueue) storeOccupancyLocked() {
	if q.metrics == nil {
		return
	}
	q.metrics.Store(eventQueueOccupancyMetricKey, uint64(q.count))
}
