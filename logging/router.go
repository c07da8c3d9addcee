package logging

import (
	"context"
	"log"
	"os"
	"sync"
	"sync/atomic"
	"time"
)

type Sink interface {
	Write(Event) error
	Close(context.Context) error
}

type NamedSink struct {
	Name string
	Sink Sink
}

// Router fans protocol events out to its sinks without blocking the
// networking tick. Publish is non-blocking; a full queue sheds the event and
// warns through the fallback logger at most once per DropWarnInterval.
type Router struct {
	queue       chan Event
	pumps       []*sinkPump
	fallback    *log.Logger
	cancel      context.CancelFunc
	done        <-chan struct{}
	closed      atomic.Bool
	minSeverity Severity
	wg          sync.WaitGroup

	dropWarnEvery time.Duration
	nextDropWarn  atomic.Int64
}

func NewRouter(cfg Config, namedSinks []NamedSink) (*Router, error) {
	bufferSize := cfg.BufferSize
	if bufferSize <= 0 {
		bufferSize = 512
	}
	dropWarnEvery := cfg.DropWarnInterval
	if dropWarnEvery <= 0 {
		dropWarnEvery = 5 * time.Second
	}

	ctx, cancel := context.WithCancel(context.Background())
	r := &Router{
		queue:         make(chan Event, bufferSize),
		fallback:      log.New(os.Stderr, "[logging] ", log.LstdFlags),
		cancel:        cancel,
		done:          ctx.Done(),
		minSeverity:   cfg.MinimumSeverity,
		dropWarnEvery: dropWarnEvery,
	}

	pumpBuffer := min(max(bufferSize, 32), 1024)
	for _, named := range namedSinks {
		if named.Sink == nil {
			continue
		}
		r.pumps = append(r.pumps, newSinkPump(named.Name, named.Sink, pumpBuffer, r.fallback))
	}

	r.wg.Add(1)
	go r.dispatch()
	for _, pump := range r.pumps {
		r.wg.Add(1)
		go func(p *sinkPump) {
			defer r.wg.Done()
			p.run()
		}(pump)
	}
	return r, nil
}

// Publish implements Publisher. Events below the severity floor or with an
// empty type are discarded.
func (r *Router) Publish(_ context.Context, event Event) {
	if event.Type == "" || event.Severity < r.minSeverity || r.closed.Load() {
		return
	}
	select {
	case r.queue <- event:
	default:
		r.warnDrop(event)
	}
}

func (r *Router) dispatch() {
	defer func() {
		for _, pump := range r.pumps {
			close(pump.events)
		}
		r.wg.Done()
	}()
	for {
		select {
		case <-r.done:
			// Flush whatever was queued before the shutdown.
			for {
				select {
				case event := <-r.queue:
					r.forward(event)
				default:
					return
				}
			}
		case event := <-r.queue:
			r.forward(event)
		}
	}
}

func (r *Router) forward(event Event) {
	if event.Time.IsZero() {
		event.Time = time.Now()
	}
	for _, pump := range r.pumps {
		pump.enqueue(event)
	}
}

func (r *Router) warnDrop(event Event) {
	now := time.Now().UnixNano()
	next := r.nextDropWarn.Load()
	if next != 0 && now < next {
		return
	}
	if r.nextDropWarn.CompareAndSwap(next, now+r.dropWarnEvery.Nanoseconds()) {
		r.fallback.Printf("dropping event type=%s frame=%d", event.Type, event.Frame)
	}
}

// Close stops accepting events, flushes the pipeline, and closes the sinks.
func (r *Router) Close(ctx context.Context) error {
	if !r.closed.CompareAndSwap(false, true) {
		<-ctx.Done()
		return ctx.Err()
	}
	r.cancel()

	finished := make(chan struct{})
	go func() {
		r.wg.Wait()
		close(finished)
	}()
	select {
	case <-finished:
	case <-ctx.Done():
		return ctx.Err()
	}

	var firstErr error
	for _, pump := range r.pumps {
		if err := pump.sink.Close(ctx); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// sinkPump serializes writes to one sink. A failing sink backs off
// exponentially, up to 32s, so one broken sink cannot spin the pipeline.
type sinkPump struct {
	name     string
	sink     Sink
	events   chan Event
	fallback *log.Logger

	failures  int
	nextRetry time.Time
}

func newSinkPump(name string, sink Sink, buffer int, fallback *log.Logger) *sinkPump {
	return &sinkPump{
		name:     name,
		sink:     sink,
		events:   make(chan Event, buffer),
		fallback: fallback,
	}
}

func (p *sinkPump) enqueue(event Event) {
	select {
	case p.events <- cloneForFields(event):
	default:
		p.fallback.Printf("sink %s backlog full dropping event type=%s", p.name, event.Type)
	}
}

func (p *sinkPump) run() {
	for event := range p.events {
		if p.failures > 0 {
			if wait := time.Until(p.nextRetry); wait > 0 {
				time.Sleep(wait)
			}
		}
		if err := p.sink.Write(event); err != nil {
			p.failures++
			delay := time.Duration(1<<min(p.failures, 5)) * time.Second
			p.nextRetry = time.Now().Add(delay)
			p.fallback.Printf("sink %s failed: %v (retry in %s)", p.name, err, delay)
			continue
		}
		p.failures = 0
	}
}
