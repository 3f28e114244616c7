package logger

import (
	"bytes"
	"encoding/json"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEmptyAttrs(t *testing.T) {
	assert.Equal(t, slog.Attr{}, Error(nil))
	assert.Equal(t, slog.Attr{}, Component(""))
	assert.Equal(t, slog.Attr{}, UID(""))
	assert.Equal(t, slog.Attr{}, Event(""))
	assert.Equal(t, slog.Attr{}, RequestID(""))
	assert.Equal(t, slog.Attr{}, Key(""))
}

func TestAttrs(t *testing.T) {
	err := errors.New("boom")
	assert.Equal(t, slog.Any("error", err), Error(err))
	assert.Equal(t, slog.String("component", "counter"), Component("counter"))
	assert.Equal(t, slog.String("event", "Ping"), Event("Ping"))
	assert.Equal(t, slog.Int("size", 12), Size(12))
	assert.Equal(t, slog.Duration("duration", time.Second), Duration(time.Second))
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in   string
		want slog.Level
	}{
		{"debug", slog.LevelDebug},
		{"INFO", slog.LevelInfo},
		{"warning", slog.LevelWarn},
		{" error ", slog.LevelError},
		{"nonsense", slog.LevelInfo},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			assert.Equal(t, tt.want, ParseLevel(tt.in))
		})
	}
}

func TestNewWithWriter_JSON(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, Config{Level: "debug", Format: "json"})

	log.Debug("hello", Component("counter"))

	var line map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &line))
	assert.Equal(t, "hello", line["msg"])
	assert.Equal(t, "counter", line["component"])
}

func TestNewWithWriter_LevelFilters(t *testing.T) {
	var buf bytes.Buffer
	log := NewWithWriter(&buf, Config{Level: "warn"})

	log.Info("dropped")
	assert.Empty(t, buf.String())

	log.Warn("kept")
	assert.Contains(t, buf.String(), "kept")
}
