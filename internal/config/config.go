// Package config loads the client configuration from a JSON file with
// environment overrides, and initializes the process logger.
package config

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"spell-and-sprint/client/logging"
)

const (
	DefaultConfigFile  = "client.json"
	DefaultDiagAddr    = "127.0.0.1:8090"
	DefaultHistoryPath = "data/history.db"
	DefaultTickRateHz  = 30
)

// Config is the root configuration structure for the client.
type Config struct {
	Nickname    string `json:"nickname"`
	DiagAddr    string `json:"diag_addr"`
	HistoryPath string `json:"history_path"`
	TickRateHz  int    `json:"tick_rate_hz"`

	Server  ServerConfig `json:"server"`
	Logging LogConfig    `json:"logging"`
}

// ServerConfig describes the dedicated server executable launched when
// hosting. Occurrences of {addr} in Args expand to the listen address.
type ServerConfig struct {
	Executable string   `json:"executable"`
	Args       []string `json:"args"`
	WorkDir    string   `json:"workdir"`
}

// LogConfig holds logger settings.
type LogConfig struct {
	Level     string `json:"level"`
	Directory string `json:"directory"`
	Console   bool   `json:"console"`
	// EventTail bounds the in-memory event tail served by diagnostics.
	EventTail int `json:"event_tail"`
}

func Default() Config {
	return Config{
		Nickname:    "player",
		DiagAddr:    DefaultDiagAddr,
		HistoryPath: DefaultHistoryPath,
		TickRateHz:  DefaultTickRateHz,
		Server: ServerConfig{
			Executable: "./room-server",
			Args:       []string{"--listen", "{addr}"},
		},
		Logging: LogConfig{
			Level:     "info",
			Console:   true,
			EventTail: 512,
		},
	}
}

// Load reads the file at path, falling back to defaults when it does not
// exist, then applies environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case errors.Is(err, fs.ErrNotExist):
	case err != nil:
		return cfg, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(&cfg)
	if cfg.TickRateHz <= 0 {
		cfg.TickRateHz = DefaultTickRateHz
	}
	return cfg, nil
}

func applyEnv(cfg *Config) {
	if v := os.Getenv("CLIENT_NICKNAME"); v != "" {
		cfg.Nickname = v
	}
	if v := os.Getenv("CLIENT_DIAG_ADDR"); v != "" {
		cfg.DiagAddr = v
	}
	if v := os.Getenv("CLIENT_HISTORY_PATH"); v != "" {
		cfg.HistoryPath = v
	}
	if v := os.Getenv("CLIENT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CLIENT_SERVER_EXECUTABLE"); v != "" {
		cfg.Server.Executable = v
	}
}

// InitLogger configures the global zerolog logger from cfg and returns the
// root logger for injection.
func InitLogger(cfg LogConfig) (zerolog.Logger, error) {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil {
		level = zerolog.InfoLevel
	}
	zerolog.SetGlobalLevel(level)
	zerolog.TimeFieldFormat = time.RFC3339

	var writers []io.Writer
	if cfg.Directory != "" {
		if err := os.MkdirAll(cfg.Directory, 0o755); err != nil {
			return zerolog.Logger{}, fmt.Errorf("create log directory %s: %w", cfg.Directory, err)
		}
		name := fmt.Sprintf("client_%s.log", time.Now().Format("2006-01-02"))
		file, err := os.OpenFile(filepath.Join(cfg.Directory, name), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err != nil {
			return zerolog.Logger{}, fmt.Errorf("open log file: %w", err)
		}
		writers = append(writers, file)
	}
	if cfg.Console || len(writers) == 0 {
		writers = append(writers, zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: "15:04:05"})
	}

	logger := zerolog.New(zerolog.MultiLevelWriter(writers...)).
		With().
		Timestamp().
		Str("app", "spell-and-sprint").
		Logger()
	log.Logger = logger
	return logger, nil
}

// RouterConfig assembles the event router configuration from cfg.
func RouterConfig(cfg LogConfig) logging.Config {
	routerCfg := logging.DefaultConfig()
	if cfg.EventTail > 0 {
		routerCfg.Memory.MaxEvents = cfg.EventTail
	}
	return routerCfg
}
