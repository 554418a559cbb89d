// Package config reads process settings from the environment and builds the
// structured logger shared by the store and the CLI.
package config

import (
	"fmt"
	"io"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/mesh-intelligence/spellbook/pkg/types"
)

// Prefix is prepended to every environment variable name.
const Prefix = "SPELLBOOK_"

// Log output formats.
const (
	LogFormatText = "text"
	LogFormatJSON = "json"
)

// DefaultLogLevel applies when no level is configured.
const DefaultLogLevel = "warn"

// Settings are the environment-level overrides. Empty values defer to the
// config file and built-in defaults.
type Settings struct {
	DataDir       string `env:"DATA_DIR"`
	DBName        string `env:"DB_NAME"`
	LogLevel      string `env:"LOG_LEVEL"`
	LogFormat     string `env:"LOG_FORMAT"`
	BusyTimeoutMS int    `env:"BUSY_TIMEOUT_MS"`
}

// Load parses Settings from SPELLBOOK_* variables.
func Load() (Settings, error) {
	s, err := env.ParseAsWithOptions[Settings](env.Options{Prefix: Prefix})
	if err != nil {
		return Settings{}, fmt.Errorf("parse env: %w", err)
	}
	return s, nil
}

// WithFallback returns s with its empty fields taken from f.
func (s Settings) WithFallback(f Settings) Settings {
	pick := func(v, fallback string) string {
		if v == "" {
			return fallback
		}
		return v
	}
	s.DataDir = pick(s.DataDir, f.DataDir)
	s.DBName = pick(s.DBName, f.DBName)
	s.LogLevel = pick(s.LogLevel, f.LogLevel)
	s.LogFormat = pick(s.LogFormat, f.LogFormat)
	if s.BusyTimeoutMS == 0 {
		s.BusyTimeoutMS = f.BusyTimeoutMS
	}
	return s
}

// StoreConfig returns the store configuration the settings describe.
func (s Settings) StoreConfig() types.Config {
	return types.Config{
		DataDir:     s.DataDir,
		DBName:      s.DBName,
		BusyTimeout: time.Duration(s.BusyTimeoutMS) * time.Millisecond,
	}
}

// ParseLevel maps debug, info, warn, and error onto slog levels. An empty
// string is DefaultLogLevel.
func ParseLevel(s string) (slog.Level, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		s = DefaultLogLevel
	}
	var level slog.Level
	if err := level.UnmarshalText([]byte(s)); err != nil {
		return 0, fmt.Errorf("log level %q: %w", s, err)
	}
	return level, nil
}

// NewLogger builds a logger writing to w in the configured format.
func (s Settings) NewLogger(w io.Writer) (*slog.Logger, error) {
	level, err := ParseLevel(s.LogLevel)
	if err != nil {
		return nil, err
	}
	opts := &slog.HandlerOptions{Level: level}
	switch strings.ToLower(s.LogFormat) {
	case LogFormatText, "":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case LogFormatJSON:
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	}
	return nil, fmt.Errorf("unknown log format %q", s.LogFormat)
}
