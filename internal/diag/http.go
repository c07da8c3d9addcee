// Package diag serves the local diagnostics API: connection state, protocol
// counters, the recent event tail, and session history.
package diag

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"

	"spell-and-sprint/client/internal/client"
	"spell-and-sprint/client/internal/history"
	"spell-and-sprint/client/internal/hostserver"
	"spell-and-sprint/client/logging/sinks"
)

const defaultEventTail = 100

// Deps carries the data sources the diagnostics endpoints read from. History
// and Supervisor are optional.
type Deps struct {
	System     *client.NetworkSystem
	Events     *sinks.MemorySink
	History    *history.Store
	Supervisor *hostserver.Supervisor
	Logger     zerolog.Logger
}

// Server is the local HTTP diagnostics server. It binds to loopback and is
// meant for the overlay UI and operator tooling, not the public internet.
type Server struct {
	deps       Deps
	router     *gin.Engine
	httpServer *http.Server
	logger     zerolog.Logger
}

func NewServer(deps Deps) *Server {
	gin.SetMode(gin.ReleaseMode)
	s := &Server{
		deps:   deps,
		logger: deps.Logger.With().Str("component", "diag").Logger(),
	}
	s.router = s.buildRouter()
	return s
}

// Router exposes the handler for serving and tests.
func (s *Server) Router() *gin.Engine { return s.router }

// Run serves until ctx is cancelled.
func (s *Server) Run(ctx context.Context, addr string) error {
	s.httpServer = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		s.httpServer.Shutdown(shutdownCtx)
	}()

	s.logger.Info().Str("addr", addr).Msg("diagnostics server starting")
	err := s.httpServer.ListenAndServe()
	if err != nil && err != http.ErrServerClosed {
		return err
	}
	return nil
}

func (s *Server) buildRouter() *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:  []string{"*"},
		AllowMethods:  []string{"GET", "OPTIONS"},
		AllowHeaders:  []string{"Origin", "Content-Type"},
		ExposeHeaders: []string{"Content-Length"},
		MaxAge:        12 * time.Hour,
	}))

	router.GET("/healthz", s.handleHealth)
	router.GET("/diagnostics", s.handleDiagnostics)
	router.GET("/telemetry", s.handleTelemetry)
	router.GET("/events", s.handleEvents)
	router.GET("/sessions", s.handleSessions)
	router.GET("/hostserver", s.handleHostServer)
	return router
}

func (s *Server) handleHealth(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (s *Server) handleDiagnostics(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.System.Snapshot())
}

func (s *Server) handleTelemetry(c *gin.Context) {
	c.JSON(http.StatusOK, s.deps.System.Snapshot().Telemetry)
}

func (s *Server) handleEvents(c *gin.Context) {
	if s.deps.Events == nil {
		c.JSON(http.StatusOK, gin.H{"events": []any{}})
		return
	}
	limit := queryLimit(c, defaultEventTail)
	events := s.deps.Events.Events()
	if len(events) > limit {
		events = events[len(events)-limit:]
	}
	c.JSON(http.StatusOK, gin.H{"events": events})
}

func (s *Server) handleSessions(c *gin.Context) {
	if s.deps.History == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "session history disabled"})
		return
	}
	records, err := s.deps.History.Recent(queryLimit(c, 20))
	if err != nil {
		s.logger.Error().Err(err).Msg("session history query failed")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "history query failed"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"sessions": records})
}

func (s *Server) handleHostServer(c *gin.Context) {
	if s.deps.Supervisor == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not hosting"})
		return
	}
	probe := s.deps.Supervisor.Active()
	if probe == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "not hosting"})
		return
	}
	code, exited := probe.ExitStatus()
	cpu, mem := probe.Stats()
	c.JSON(http.StatusOK, gin.H{
		"started":    probe.Started(),
		"exited":     exited,
		"exitCode":   code,
		"cpuPercent": cpu,
		"memoryMB":   mem,
	})
}

func queryLimit(c *gin.Context, fallback int) int {
	raw := c.Query("limit")
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n <= 0 {
		return fallback
	}
	return n
}
