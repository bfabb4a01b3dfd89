// Package config loads process configuration from the environment and the
// core tuning from a YAML file.
package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
)

// Config holds the application configuration.
type Config struct {
	GeminiAPIKey     string        `env:"GEMINI_API_KEY"`
	GeminiModel      string        `env:"GEMINI_MODEL" envDefault:"gemini-2.5-flash"`
	DBPath           string        `env:"TEXT_ENGINE_DB" envDefault:"text-engine.db"`
	SaveDir          string        `env:"TEXT_ENGINE_SAVE_DIR" envDefault:".saves"`
	TranscriptDir    string        `env:"TEXT_ENGINE_TRANSCRIPT_DIR"`
	TuningPath       string        `env:"TEXT_ENGINE_TUNING"`
	Seed             int64         `env:"TEXT_ENGINE_SEED"`
	GeneratorTimeout time.Duration `env:"TEXT_ENGINE_GENERATOR_TIMEOUT" envDefault:"20s"`
	Addr             string        `env:"TEXT_ENGINE_ADDR" envDefault:"127.0.0.1:8088"`
	ExpandWorld      bool          `env:"TEXT_ENGINE_EXPAND_WORLD" envDefault:"true"`
	LogLevel         string        `env:"TEXT_ENGINE_LOG_LEVEL" envDefault:"info"`
	OTelEndpoint     string        `env:"TEXT_ENGINE_OTEL_ENDPOINT"`
}

// LoadConfig loads the configuration from environment variables.
func LoadConfig() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &cfg, nil
}

// RequireAPIKey fails when no Gemini key is configured.
func (c *Config) RequireAPIKey() error {
	if c.GeminiAPIKey == "" {
		return fmt.Errorf("GEMINI_API_KEY environment variable is not set")
	}
	return nil
}

// ParseLevel maps a level name to a slog level. Unknown names mean info.
func ParseLevel(s string) slog.Level {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// NewLogger returns a text logger writing to w, or to stderr when w is nil.
func NewLogger(level string, w *os.File) *slog.Logger {
	if w == nil {
		w = os.Stderr
	}
	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: ParseLevel(level)}))
}
