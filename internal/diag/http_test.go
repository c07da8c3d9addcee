package diag

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"spell-and-sprint/client/internal/client"
	"spell-and-sprint/client/internal/history"
	"spell-and-sprint/client/internal/transport"
	"spell-and-sprint/client/logging"
	"spell-and-sprint/client/logging/sinks"
)

func testServer(t *testing.T) (*Server, *sinks.MemorySink, *history.Store) {
	t.Helper()
	sys := client.NewNetworkSystem(client.SystemDeps{
		Clock:    client.NewFrameClock(),
		Events:   transport.NewEventQueue(16, nil),
		Commands: client.NewUICommandQueue(16),
		Logger:   zerolog.Nop(),
	})
	memory := sinks.NewMemorySink(32)
	store, err := history.Open(filepath.Join(t.TempDir(), "history.db"), zerolog.Nop())
	if err != nil {
		t.Fatalf("open history failed: %v", err)
	}
	t.Cleanup(func() { store.Close() })

	srv := NewServer(Deps{
		System:  sys,
		Events:  memory,
		History: store,
		Logger:  zerolog.Nop(),
	})
	return srv, memory, store
}

func get(t *testing.T, srv *Server, path string) *httptest.ResponseRecorder {
	t.Helper()
	req := httptest.NewRequest(http.MethodGet, path, nil)
	rec := httptest.NewRecorder()
	srv.Router().ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	srv, _, _ := testServer(t)
	rec := get(t, srv, "/healthz")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
}

func TestDiagnosticsReportsLobbyState(t *testing.T) {
	srv, _, _ := testServer(t)
	rec := get(t, srv, "/diagnostics")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}

	var snap struct {
		Status string `json:"status"`
		Engine string `json:"engine"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &snap); err != nil {
		t.Fatalf("bad diagnostics body: %v", err)
	}
	if snap.Engine != "lobby" {
		t.Fatalf("expected lobby engine, got %q", snap.Engine)
	}
}

func TestEventsTailRespectsLimit(t *testing.T) {
	srv, memory, _ := testServer(t)
	for i := 0; i < 5; i++ {
		memory.Write(logging.Event{Type: "lifecycle.status_changed", Frame: uint64(i)})
	}

	rec := get(t, srv, "/events?limit=2")
	var body struct {
		Events []struct {
			Frame uint64 `json:"frame"`
		} `json:"events"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad events body: %v", err)
	}
	if len(body.Events) != 2 {
		t.Fatalf("expected 2 events, got %d", len(body.Events))
	}
	if body.Events[1].Frame != 4 {
		t.Fatalf("expected the newest event last, got frame %d", body.Events[1].Frame)
	}
}

func TestSessionsEndpoint(t *testing.T) {
	srv, _, store := testServer(t)
	if _, err := store.Begin(time.Unix(1700000000, 0), "room.example:7777", false); err != nil {
		t.Fatalf("begin failed: %v", err)
	}

	rec := get(t, srv, "/sessions")
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	var body struct {
		Sessions []history.Record `json:"sessions"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("bad sessions body: %v", err)
	}
	if len(body.Sessions) != 1 || body.Sessions[0].Address != "room.example:7777" {
		t.Fatalf("unexpected sessions payload %+v", body.Sessions)
	}
}

func TestHostServerEndpointWithoutSupervisor(t *testing.T) {
	srv, _, _ := testServer(t)
	if rec := get(t, srv, "/hostserver"); rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404 without a supervisor, got %d", rec.Code)
	}
}

func TestRunShutsDownOnCancel(t *testing.T) {
	srv, _, _ := testServer(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- srv.Run(ctx, "127.0.0.1:0") }()

	time.Sleep(100 * time.Millisecond)
	cancel()
	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("expected clean shutdown, got %v", err)
		}
	case <-time.After(5 * time.Second):
		t.Fatalf("server did not shut down")
	}
}
