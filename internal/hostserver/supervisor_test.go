package hostserver

import (
	"net"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func waitFor(t *testing.T, timeout time.Duration, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(timeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(20 * time.Millisecond)
	}
	t.Fatalf("condition not met within %s", timeout)
}

func TestLaunchMissingExecutable(t *testing.T) {
	s := NewSupervisor(Config{Executable: "/nonexistent/room-server"}, zerolog.Nop())
	if _, err := s.Launch("127.0.0.1:0"); err == nil {
		t.Fatalf("expected launch error for missing executable")
	}
}

func TestProbeReportsExitStatus(t *testing.T) {
	s := NewSupervisor(Config{Executable: "/bin/sh", Args: []string{"-c", "exit 3"}}, zerolog.Nop())
	probe, err := s.Launch("127.0.0.1:1")
	if err != nil {
		t.Fatalf("launch failed: %v", err)
	}
	waitFor(t, 5*time.Second, func() bool {
		_, done := probe.ExitStatus()
		return done
	})
	code, _ := probe.ExitStatus()
	if code != 3 {
		t.Fatalf("expected exit code 3, got %d", code)
	}
	if probe.Started() {
		t.Fatalf("expected no readiness for a server that never listened")
	}
}

func TestProbeStartedWhenPortOpen(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatalf("listen failed: %v", err)
	}
	defer ln.Close()
	go func() {
		for {
			conn, err := ln.Accept()
			if err != nil {
				return
			}
			conn.Close()
		}
	}()

	s := NewSupervisor(Config{Executable: "/bin/sh", Args: []string{"-c", "sleep 10"}, StopGrace: time.Second}, zerolog.Nop())
	probe, err := s.Launch(ln.Addr().String())
	if err != nil {
		t.Fatalf("launch failed: %v", err)
	}
	defer probe.Stop()

	waitFor(t, 5*time.Second, probe.Started)
	if s.Active() == nil {
		t.Fatalf("expected supervisor to track the active probe")
	}
}

func TestStopTerminatesServer(t *testing.T) {
	s := NewSupervisor(Config{Executable: "/bin/sh", Args: []string{"-c", "sleep 30"}, StopGrace: time.Second}, zerolog.Nop())
	probe, err := s.Launch("127.0.0.1:1")
	if err != nil {
		t.Fatalf("launch failed: %v", err)
	}

	probe.Stop()
	if _, done := probe.ExitStatus(); !done {
		t.Fatalf("expected process terminated after stop")
	}
	// Stop after exit is a no-op.
	probe.Stop()
}
