// Package logger builds the service's structured JSON logger with sampling
// for high-frequency poll chatter.
package logger

import (
	"context"
	"log/slog"
	"os"
	"strings"
	"time"

	slogmulti "github.com/samber/slog-multi"
	slogsampling "github.com/samber/slog-sampling"
)

// Config holds the logger configuration.
type Config struct {
	Level                 string
	DisableSampling       bool
	ThresholdSamplingTick time.Duration
	ThresholdSamplingMax  uint64
	ThresholdSamplingRate float64
}

// DefaultConfig returns a default logger configuration. Sampling lets the
// first burst of identical messages through and then throttles: a stalled
// upstream polled every 45 seconds would otherwise log the same error
// forever.
func DefaultConfig() *Config {
	return &Config{
		Level:                 "info",
		DisableSampling:       false,
		ThresholdSamplingTick: 5 * time.Minute,
		ThresholdSamplingMax:  10,
		ThresholdSamplingRate: 0.1,
	}
}

// NewLogger creates a configured JSON logger.
func NewLogger(config *Config) *slog.Logger {
	if config == nil {
		config = DefaultConfig()
	}

	baseHandler := slog.NewJSONHandler(os.Stdout, &slog.HandlerOptions{
		Level: ParseLevel(config.Level),
	})

	if config.DisableSampling {
		return slog.New(baseHandler)
	}

	// Threshold sampling keyed on level and message: the first N identical
	// records pass, the rest are rate-limited per tick.
	thresholdOption := slogsampling.ThresholdSamplingOption{
		Tick:      config.ThresholdSamplingTick,
		Threshold: config.ThresholdSamplingMax,
		Rate:      config.ThresholdSamplingRate,
		Matcher:   slogsampling.MatchByLevelAndMessage(),
	}

	return slog.New(
		slogmulti.
			Pipe(thresholdOption.NewMiddleware()).
			Handler(baseHandler),
	)
}

// ParseLevel converts a level name to slog.Level, defaulting to info.
func ParseLevel(level string) slog.Level {
	switch strings.ToUpper(strings.TrimSpace(level)) {
	case "DEBUG":
		return slog.LevelDebug
	case "INFO", "":
		return slog.LevelInfo
	case "WARNING", "WARN":
		return slog.LevelWarn
	case "ERROR":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// WithComponent adds a component field to the logger for categorization.
func WithComponent(logger *slog.Logger, component string) *slog.Logger {
	return logger.With("component", component)
}

// LogUpstreamEvent logs upstream-related events with consistent fields.
func LogUpstreamEvent(logger *slog.Logger, level slog.Level, msg string, upstream string, attrs ...slog.Attr) {
	allAttrs := []slog.Attr{
		slog.String("upstream", upstream),
		slog.String("event_type", "upstream"),
	}
	allAttrs = append(allAttrs, attrs...)
	logger.LogAttrs(context.Background(), level, msg, allAttrs...)
}

// LogPollEvent logs poll-cycle events with consistent fields.
func LogPollEvent(logger *slog.Logger, level slog.Level, msg string, silent bool, attrs ...slog.Attr) {
	allAttrs := []slog.Attr{
		slog.Bool("silent", silent),
		slog.String("event_type", "poll"),
	}
	allAttrs = append(allAttrs, attrs...)
	logger.LogAttrs(context.Background(), level, msg, allAttrs...)
}
