package logging

import (
	"context"
	"sync"
	"testing"
	"time"
)

type captureSink struct {
	mu     sync.Mutex
	events []Event
}

func (s *captureSink) Write(event Event) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.events = append(s.events, event)
	return nil
}

func (s *captureSink) Close(context.Context) error { return nil }

func (s *captureSink) all() []Event {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Event(nil), s.events...)
}

func closeRouter(t *testing.T, r *Router) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := r.Close(ctx); err != nil {
		t.Fatalf("close failed: %v", err)
	}
}

func TestRouterDeliversToSinks(t *testing.T) {
	sink := &captureSink{}
	r, err := NewRouter(Config{BufferSize: 8}, []NamedSink{{Name: "capture", Sink: sink}})
	if err != nil {
		t.Fatalf("new router failed: %v", err)
	}

	r.Publish(context.Background(), Event{Type: "lifecycle.status_changed", Frame: 3, Severity: SeverityInfo})
	r.Publish(context.Background(), Event{Severity: SeverityInfo}) // no type, discarded
	closeRouter(t, r)

	events := sink.all()
	if len(events) != 1 {
		t.Fatalf("expected 1 delivered event, got %d", len(events))
	}
	if events[0].Frame != 3 || events[0].Time.IsZero() {
		t.Fatalf("expected frame 3 with a stamped time, got %+v", events[0])
	}
}

func TestRouterSeverityFloor(t *testing.T) {
	sink := &captureSink{}
	r, err := NewRouter(Config{BufferSize: 8, MinimumSeverity: SeverityWarn},
		[]NamedSink{{Name: "capture", Sink: sink}})
	if err != nil {
		t.Fatalf("new router failed: %v", err)
	}

	r.Publish(context.Background(), Event{Type: "pacing.pause_changed", Severity: SeverityInfo})
	r.Publish(context.Background(), Event{Type: "network.session_mismatch", Severity: SeverityWarn})
	closeRouter(t, r)

	events := sink.all()
	if len(events) != 1 || events[0].Type != "network.session_mismatch" {
		t.Fatalf("expected only the warning through the floor, got %+v", events)
	}
}

func TestRouterIgnoresPublishAfterClose(t *testing.T) {
	sink := &captureSink{}
	r, err := NewRouter(Config{BufferSize: 8}, []NamedSink{{Name: "capture", Sink: sink}})
	if err != nil {
		t.Fatalf("new router failed: %v", err)
	}
	closeRouter(t, r)

	r.Publish(context.Background(), Event{Type: "lifecycle.session_opened", Severity: SeverityInfo})
	if got := len(sink.all()); got != 0 {
		t.Fatalf("expected no events after close, got %d", got)
	}
}
