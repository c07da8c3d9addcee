package logging

import "time"

type Config struct {
	EnabledSinks     []string
	BufferSize       int
	MinimumSeverity  Severity
	JSON             JSONConfig
	Console          ConsoleConfig
	Memory           MemoryConfig
	DropWarnInterval time.Duration
}

type JSONConfig struct {
	FilePath      string
	MaxBatch      int
	FlushInterval time.Duration
}

type ConsoleConfig struct {
	UseColor bool
}

type MemoryConfig struct {
	// MaxEvents bounds the in-memory tail served by diagnostics.
	MaxEvents int
}

func DefaultConfig() Config {
	return Config{
		EnabledSinks:     []string{"console", "memory"},
		BufferSize:       512,
		MinimumSeverity:  SeverityInfo,
		DropWarnInterval: 5 * time.Second,
		JSON: JSONConfig{
			MaxBatch:      32,
			FlushInterval: 2 * time.Second,
		},
		Memory: MemoryConfig{
			MaxEvents: 512,
		},
	}
}

func (c Config) HasSink(name string) bool {
	for _, s := range c.EnabledSinks {
		if s == name {
			return true
		}
	}
	return false
}
