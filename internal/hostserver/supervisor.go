package hostserver

import (
	"fmt"
	"net"
	"os"
	"os/exec"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/shirou/gopsutil/v3/process"

	"spell-and-sprint/client/internal/client"
)

const (
	defaultStopGrace = 5 * time.Second
	readyPollEvery   = 100 * time.Millisecond
	readyDialTimeout = 250 * time.Millisecond
)

// Config describes how to launch the dedicated room server executable.
type Config struct {
	Executable string
	// Args are passed verbatim except that {addr} expands to the listen
	// address of the session being hosted.
	Args    []string
	WorkDir string
	// StopGrace bounds how long Stop waits after an interrupt before
	// killing the process.
	StopGrace time.Duration
}

// Supervisor launches the hosted room server as a child process and hands
// back a probe that tracks its readiness and exit.
type Supervisor struct {
	cfg    Config
	logger zerolog.Logger

	mu     sync.Mutex
	active *Probe
}

func NewSupervisor(cfg Config, logger zerolog.Logger) *Supervisor {
	if cfg.StopGrace <= 0 {
		cfg.StopGrace = defaultStopGrace
	}
	return &Supervisor{
		cfg:    cfg,
		logger: logger.With().Str("component", "hostserver").Logger(),
	}
}

// Launch starts the server process bound to addr.
func (s *Supervisor) Launch(addr string) (client.ServerProbe, error) {
	args := make([]string, 0, len(s.cfg.Args))
	for _, a := range s.cfg.Args {
		args = append(args, strings.ReplaceAll(a, "{addr}", addr))
	}

	cmd := exec.Command(s.cfg.Executable, args...)
	cmd.Dir = s.cfg.WorkDir
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("launch %s: %w", s.cfg.Executable, err)
	}

	// The stats handle is best effort; a very short-lived process may be
	// gone before gopsutil can attach.
	proc, _ := process.NewProcess(int32(cmd.Process.Pid))

	p := &Probe{
		cmd:    cmd,
		proc:   proc,
		addr:   addr,
		grace:  s.cfg.StopGrace,
		logger: s.logger.With().Int("pid", cmd.Process.Pid).Logger(),
		done:   make(chan struct{}),
	}
	p.logger.Info().Str("addr", addr).Str("executable", s.cfg.Executable).Msg("hosted server launched")

	go p.wait()
	go p.watchReady()

	s.mu.Lock()
	s.active = p
	s.mu.Unlock()
	return p, nil
}

// Active returns the probe of the most recently launched server, or nil.
func (s *Supervisor) Active() *Probe {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.active
}

// Probe observes one hosted server process. Started flips once the server
// accepts TCP connections on its listen address; ExitStatus reports the exit
// code once the process terminates.
type Probe struct {
	cmd    *exec.Cmd
	proc   *process.Process
	addr   string
	grace  time.Duration
	logger zerolog.Logger

	mu       sync.Mutex
	started  bool
	exited   bool
	exitCode int

	done chan struct{}
}

func (p *Probe) Started() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.started
}

func (p *Probe) ExitStatus() (int, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.exitCode, p.exited
}

// Stop interrupts the process and kills it if it ignores the interrupt past
// the grace window. Safe to call after exit.
func (p *Probe) Stop() {
	p.mu.Lock()
	exited := p.exited
	p.mu.Unlock()
	if exited {
		return
	}

	if p.cmd.Process != nil {
		_ = p.cmd.Process.Signal(os.Interrupt)
	}
	select {
	case <-p.done:
	case <-time.After(p.grace):
		p.logger.Warn().Msg("hosted server ignored interrupt, killing")
		_ = p.cmd.Process.Kill()
		<-p.done
	}
}

// Stats reports resource usage of the hosted server for diagnostics. Zero
// values when the process is gone or unreadable.
func (p *Probe) Stats() (cpuPercent, memoryMB float64) {
	if p.proc == nil {
		return 0, 0
	}
	if v, err := p.proc.CPUPercent(); err == nil {
		cpuPercent = v
	}
	if info, err := p.proc.MemoryInfo(); err == nil {
		memoryMB = float64(info.RSS) / (1024 * 1024)
	}
	return cpuPercent, memoryMB
}

func (p *Probe) wait() {
	_ = p.cmd.Wait()
	code := 0
	if state := p.cmd.ProcessState; state != nil {
		code = state.ExitCode()
	}

	p.mu.Lock()
	p.exited = true
	p.exitCode = code
	p.mu.Unlock()
	close(p.done)

	if code != 0 {
		p.logger.Warn().Int("code", code).Msg("hosted server exited")
	} else {
		p.logger.Info().Msg("hosted server exited")
	}
}

// watchReady polls the listen address until the server accepts a connection
// or the process exits.
func (p *Probe) watchReady() {
	ticker := time.NewTicker(readyPollEvery)
	defer ticker.Stop()
	for {
		select {
		case <-p.done:
			return
		case <-ticker.C:
		}
		conn, err := net.DialTimeout("tcp", p.addr, readyDialTimeout)
		if err != nil {
			continue
		}
		conn.Close()

		p.mu.Lock()
		p.started = true
		p.mu.Unlock()
		p.logger.Info().Msg("hosted server accepting connections")
		return
	}
}
