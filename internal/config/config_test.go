package config

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad(t *testing.T) {
	t.Run("unset", func(t *testing.T) {
		for _, name := range []string{"DATA_DIR", "DB_NAME", "LOG_LEVEL", "LOG_FORMAT", "BUSY_TIMEOUT_MS"} {
			t.Setenv(Prefix+name, "")
		}
		s, err := Load()
		require.NoError(t, err)
		assert.Equal(t, Settings{}, s)
		assert.Zero(t, s.StoreConfig().BusyTimeout)
	})

	t.Run("overrides", func(t *testing.T) {
		t.Setenv("SPELLBOOK_DATA_DIR", "/tmp/spells")
		t.Setenv("SPELLBOOK_DB_NAME", "other.db")
		t.Setenv("SPELLBOOK_BUSY_TIMEOUT_MS", "250")
		t.Setenv("SPELLBOOK_LOG_FORMAT", "json")

		s, err := Load()
		require.NoError(t, err)
		cfg := s.StoreConfig()
		assert.Equal(t, "/tmp/spells", cfg.DataDir)
		assert.Equal(t, "other.db", cfg.DBName)
		assert.Equal(t, 250*time.Millisecond, cfg.BusyTimeout)
		assert.Equal(t, LogFormatJSON, s.LogFormat)
	})

	t.Run("invalid number", func(t *testing.T) {
		t.Setenv("SPELLBOOK_BUSY_TIMEOUT_MS", "soon")
		_, err := Load()
		assert.ErrorContains(t, err, "parse env:")
	})
}

func TestNewLogger(t *testing.T) {
	tests := []struct {
		name     string
		settings Settings
		check    func(t *testing.T, out string)
		wantErr  bool
	}{
		{
			name:     "json handler respects the level",
			settings: Settings{LogLevel: "info", LogFormat: "JSON"},
			check: func(t *testing.T, out string) {
				var rec map[string]any
				require.NoError(t, json.Unmarshal([]byte(out), &rec))
				assert.Equal(t, "visible", rec["msg"])
				assert.Equal(t, "spells", rec["kind"])
			},
		},
		{
			name:     "text handler",
			settings: Settings{LogLevel: "debug"},
			check: func(t *testing.T, out string) {
				assert.Contains(t, out, "msg=hidden")
				assert.Contains(t, out, "msg=visible")
			},
		},
		{
			name:     "unknown level",
			settings: Settings{LogLevel: "loud"},
			wantErr:  true,
		},
		{
			name:     "unknown format",
			settings: Settings{LogLevel: "info", LogFormat: "xml"},
			wantErr:  true,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var buf bytes.Buffer
			logger, err := tt.settings.NewLogger(&buf)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			logger.Debug("hidden")
			logger.Info("visible", "kind", "spells")
			tt.check(t, buf.String())
		})
	}
}

func TestParseLevel(t *testing.T) {
	level, err := ParseLevel(" ERROR ")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelError, level)

	level, err = ParseLevel("")
	require.NoError(t, err)
	assert.Equal(t, slog.LevelWarn, level)
}

func TestWithFallback(t *testing.T) {
	env := Settings{DBName: "env.db", LogLevel: "debug"}
	file := Settings{DataDir: "/file/data", DBName: "file.db", LogFormat: "json", BusyTimeoutMS: 100}

	got := env.WithFallback(file)
	assert.Equal(t, Settings{
		DataDir:       "/file/data",
		DBName:        "env.db",
		LogLevel:      "debug",
		LogFormat:     "json",
		BusyTimeoutMS: 100,
	}, got)
}
