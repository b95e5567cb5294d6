// Package sentry_helper wraps optional Sentry reporting. Every capture is a
// no-op unless a DSN was configured, so the rest of the code can report
// unconditionally.
package sentry_helper

import (
	"log/slog"
	"time"

	"github.com/getsentry/sentry-go"
)

// SentryHelper provides safe, optional Sentry operations.
type SentryHelper struct {
	enabled bool
	logger  *slog.Logger
}

// NewSentryHelper creates a new SentryHelper instance.
func NewSentryHelper(enabled bool, logger *slog.Logger) *SentryHelper {
	if logger == nil {
		logger = slog.Default()
	}
	return &SentryHelper{
		enabled: enabled,
		logger:  logger,
	}
}

// IsEnabled returns whether Sentry is enabled.
func (h *SentryHelper) IsEnabled() bool {
	return h.enabled
}

// CaptureException captures an exception with proper hub isolation.
func (h *SentryHelper) CaptureException(err error) {
	if !h.enabled || err == nil {
		return
	}

	// Clone hub to avoid data races in goroutines.
	hub := sentry.CurrentHub().Clone()
	hub.CaptureException(err)
}

// CaptureMessage captures a message with proper hub isolation.
func (h *SentryHelper) CaptureMessage(msg string) {
	if !h.enabled || msg == "" {
		return
	}

	hub := sentry.CurrentHub().Clone()
	hub.CaptureMessage(msg)
}

// CaptureCategorizedError captures an error tagged with its place in the
// error taxonomy (upstream, decode, normalize, resolve, poll) and the
// upstream URL it concerns.
func (h *SentryHelper) CaptureCategorizedError(err error, category, upstream string) {
	if !h.enabled || err == nil {
		return
	}

	hub := sentry.CurrentHub().Clone()
	hub.WithScope(func(scope *sentry.Scope) {
		scope.SetTag("category", category)
		if upstream != "" {
			scope.SetExtra("upstream", upstream)
		}
		hub.CaptureException(err)
	})
}

// SafeFlush flushes pending events with a timeout on shutdown.
func (h *SentryHelper) SafeFlush(timeout time.Duration) {
	if !h.enabled {
		return
	}
	if !sentry.Flush(timeout) {
		h.logger.Warn("Sentry flush timeout", slog.Duration("timeout", timeout))
	}
}
