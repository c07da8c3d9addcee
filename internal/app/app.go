// Package app wires the client together: configuration, logging, the
// networking system, the diagnostics server, and the session history store.
package app

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog"

	"spell-and-sprint/client/internal/client"
	"spell-and-sprint/client/internal/config"
	"spell-and-sprint/client/internal/diag"
	"spell-and-sprint/client/internal/history"
	"spell-and-sprint/client/internal/hostserver"
	"spell-and-sprint/client/internal/transport"
	"spell-and-sprint/client/internal/transport/ws"
	"spell-and-sprint/client/logging"
	loggingSinks "spell-and-sprint/client/logging/sinks"
)

const (
	eventQueueCapacity   = 256
	commandQueueCapacity = 64
)

// Options selects the initial session the client opens on startup. At most
// one of Connect and Host may be set; with neither, the client idles in the
// lobby and waits for commands from the diagnostics-driven UI.
type Options struct {
	ConfigPath string
	Connect    string
	Host       string
}

// Run starts the client and blocks until ctx is cancelled or the tick loop
// fails.
func Run(ctx context.Context, opts Options) error {
	if opts.Connect != "" && opts.Host != "" {
		return fmt.Errorf("connect and host are mutually exclusive")
	}

	cfg, err := config.Load(opts.ConfigPath)
	if err != nil {
		return err
	}
	logger, err := config.InitLogger(cfg.Logging)
	if err != nil {
		return err
	}

	router, memory, err := buildRouter(cfg.Logging)
	if err != nil {
		return fmt.Errorf("construct logging router: %w", err)
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if cerr := router.Close(closeCtx); cerr != nil {
			logger.Warn().Err(cerr).Msg("failed to close logging router")
		}
	}()

	telemetry := client.NewTelemetry()
	events := transport.NewEventQueue(eventQueueCapacity, telemetry)
	commands := client.NewUICommandQueue(commandQueueCapacity)
	clock := client.NewFrameClock()

	supervisor := hostserver.NewSupervisor(hostserver.Config{
		Executable: cfg.Server.Executable,
		Args:       cfg.Server.Args,
		WorkDir:    cfg.Server.WorkDir,
	}, logger)

	sys := client.NewNetworkSystem(client.SystemDeps{
		Clock:     clock,
		Events:    events,
		Commands:  commands,
		Dialer:    &wsDialer{queue: events, metrics: telemetry, logger: logger},
		Launcher:  supervisor,
		Telemetry: telemetry,
		Logger:    logger,
		Publisher: router,
	})

	var store *history.Store
	if cfg.HistoryPath != "" {
		store, err = history.Open(cfg.HistoryPath, logger)
		if err != nil {
			logger.Warn().Err(err).Msg("session history disabled")
		} else {
			defer store.Close()
		}
	}

	diagServer := diag.NewServer(diag.Deps{
		System:     sys,
		Events:     memory,
		History:    store,
		Supervisor: supervisor,
		Logger:     logger,
	})
	diagErr := make(chan error, 1)
	go func() { diagErr <- diagServer.Run(ctx, cfg.DiagAddr) }()

	switch {
	case opts.Connect != "":
		commands.Push(client.UICommand{Kind: client.UICommandConnect, Addr: opts.Connect, Nickname: cfg.Nickname})
	case opts.Host != "":
		commands.Push(client.UICommand{Kind: client.UICommandHost, Addr: opts.Host, Nickname: cfg.Nickname})
	}

	recorder := &sessionRecorder{store: store, logger: logger}
	ticker := time.NewTicker(time.Second / time.Duration(cfg.TickRateHz))
	defer ticker.Stop()

	logger.Info().Int("tick_rate_hz", cfg.TickRateHz).Msg("client started")
	for {
		select {
		case <-ctx.Done():
			recorder.shutdown(time.Now(), sys.Snapshot())
			return nil
		case err := <-diagErr:
			if err != nil {
				return fmt.Errorf("diagnostics server: %w", err)
			}
		case <-ticker.C:
		}

		if err := sys.Tick(); err != nil {
			// Protocol violations tear the session down; the client
			// itself stays up for the next one.
			logger.Error().Err(err).Msg("session failed")
			commands.Push(client.UICommand{Kind: client.UICommandReset})
		}
		game := sys.Game()
		clock.Advance(game.IsPlaying && sys.Engine() == client.EnginePlaying, game.Paused())
		recorder.observe(time.Now(), sys.Snapshot())
	}
}

// PrintHistory renders the recent session table to stdout and returns.
func PrintHistory(configPath string, limit int) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	store, err := history.Open(cfg.HistoryPath, zerolog.Nop())
	if err != nil {
		return err
	}
	defer store.Close()
	return store.Render(os.Stdout, limit)
}

func buildRouter(logCfg config.LogConfig) (*logging.Router, *loggingSinks.MemorySink, error) {
	routerCfg := config.RouterConfig(logCfg)

	var named []logging.NamedSink
	var memory *loggingSinks.MemorySink
	if routerCfg.HasSink("console") {
		named = append(named, logging.NamedSink{
			Name: "console",
			Sink: loggingSinks.NewConsoleSink(os.Stdout, routerCfg.Console),
		})
	}
	if routerCfg.HasSink("memory") {
		memory = loggingSinks.NewMemorySink(routerCfg.Memory.MaxEvents)
		named = append(named, logging.NamedSink{Name: "memory", Sink: memory})
	}
	if routerCfg.HasSink("json") && routerCfg.JSON.FilePath != "" {
		file, err := os.OpenFile(routerCfg.JSON.FilePath, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return nil, nil, err
		}
		named = append(named, logging.NamedSink{
			Name: "json",
			Sink: loggingSinks.NewJSON(file, routerCfg.JSON.FlushInterval),
		})
	}

	router, err := logging.NewRouter(routerCfg, named)
	if err != nil {
		return nil, nil, err
	}
	return router, memory, nil
}

// wsDialer adapts the websocket transport constructor to the Dialer the
// networking system expects.
type wsDialer struct {
	queue   *transport.EventQueue
	metrics *client.Telemetry
	logger  zerolog.Logger
}

func (d *wsDialer) Dial(addr string) (client.Transport, error) {
	return ws.Dial(addr, d.queue, d.metrics, d.logger)
}

// sessionRecorder mirrors lifecycle transitions into the history store: one
// row per activated room, closed out when the session ends or resets.
type sessionRecorder struct {
	store  *history.Store
	logger zerolog.Logger

	active bool
	closed bool
	openID int64
	base   client.TelemetrySnapshot
}

func (r *sessionRecorder) observe(now time.Time, snap client.SystemSnapshot) {
	if r.store == nil {
		return
	}

	if !r.active && snap.IsActive {
		id, err := r.store.Begin(now, snap.ServerAddr, snap.IsHost)
		if err != nil {
			r.logger.Warn().Err(err).Msg("failed to record session start")
			return
		}
		r.active, r.closed = true, false
		r.openID = id
		r.base = snap.Telemetry
	}
	if !r.active {
		return
	}

	ended := snap.Status == "disconnected" || snap.Status == "connectionFailed"
	if ended && !r.closed {
		r.finish(now, snap, snap.Reason)
	}
	if !snap.IsActive {
		if !r.closed {
			r.finish(now, snap, "reset")
		}
		r.active = false
	}
}

// shutdown closes out a still-open session row when the process exits.
func (r *sessionRecorder) shutdown(now time.Time, snap client.SystemSnapshot) {
	if r.store == nil || !r.active || r.closed {
		return
	}
	r.finish(now, snap, "shutdown")
}

func (r *sessionRecorder) finish(now time.Time, snap client.SystemSnapshot, reason string) {
	absorbed := snap.Telemetry.UpdatesAbsorbed - r.base.UpdatesAbsorbed
	duplicates := snap.Telemetry.DuplicateUpdates - r.base.DuplicateUpdates
	if err := r.store.Finish(r.openID, now, reason, absorbed, duplicates, snap.GameFrame); err != nil {
		r.logger.Warn().Err(err).Msg("failed to record session end")
	}
	r.closed = true
}
