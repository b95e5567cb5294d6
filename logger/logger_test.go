package logger

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseLevel(t *testing.T) {
	assert.Equal(t, slog.LevelDebug, ParseLevel("debug"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("info"))
	assert.Equal(t, slog.LevelWarn, ParseLevel("WARN"))
	assert.Equal(t, slog.LevelError, ParseLevel("error"))
	assert.Equal(t, slog.LevelInfo, ParseLevel("verbose"))
	assert.Equal(t, slog.LevelInfo, ParseLevel(""))
}

func TestNewLoggerNilConfig(t *testing.T) {
	logger := NewLogger(nil)
	assert.NotNil(t, logger)
	logger.Info("smoke")
}

func TestWithComponent(t *testing.T) {
	logger := NewLogger(&Config{Level: "debug"})
	component := WithComponent(logger, "poller")
	assert.NotNil(t, component)
	component.Debug("smoke")
}

func captureJSONRecord(t *testing.T, log func(*slog.Logger)) map[string]any {
	t.Helper()
	var buf bytes.Buffer
	log(slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug})))

	var record map[string]any
	require.NoError(t, json.Unmarshal(buf.Bytes(), &record))
	return record
}

func TestLogUpstreamEvent(t *testing.T) {
	record := captureJSONRecord(t, func(l *slog.Logger) {
		LogUpstreamEvent(l, slog.LevelWarn, "request failed", "http://radio.example/status-json.xsl",
			slog.String("error", "boom"))
	})

	assert.Equal(t, "request failed", record["msg"])
	assert.Equal(t, "upstream", record["event_type"])
	assert.Equal(t, "http://radio.example/status-json.xsl", record["upstream"])
	assert.Equal(t, "boom", record["error"])
}

func TestLogPollEvent(t *testing.T) {
	record := captureJSONRecord(t, func(l *slog.Logger) {
		LogPollEvent(l, slog.LevelDebug, "poll failed", true)
	})

	assert.Equal(t, "poll failed", record["msg"])
	assert.Equal(t, "poll", record["event_type"])
	assert.Equal(t, true, record["silent"])
}
