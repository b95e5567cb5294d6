package telegram

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/nikether/stream-status/icecast"
)

func TestNotifierEnabled(t *testing.T) {
	assert.False(t, NewNotifier("", "", nil).Enabled())
	assert.False(t, NewNotifier("token", "", nil).Enabled())
	assert.False(t, NewNotifier("", "chat", nil).Enabled())
	assert.True(t, NewNotifier("token", "chat", nil).Enabled())

	var nilNotifier *Notifier
	assert.False(t, nilNotifier.Enabled())
}

func TestDisabledNotifierIsNoOp(t *testing.T) {
	notifier := NewNotifier("", "", nil)
	// Must not panic or attempt any network call.
	notifier.NotifyTransition(true, &icecast.StreamStatus{Mount: "/stream"})
}

func TestTransitionMessage(t *testing.T) {
	nowPlaying := "NTO – Trauma"
	listeners := float64(12)

	t.Run("online with details", func(t *testing.T) {
		message := transitionMessage(true, &icecast.StreamStatus{
			Mount:            "/stream",
			CurrentlyPlaying: &nowPlaying,
			Listeners:        &listeners,
		})
		assert.Contains(t, message, "back on air")
		assert.Contains(t, message, "/stream")
		assert.Contains(t, message, "NTO – Trauma")
		assert.Contains(t, message, "Listeners: 12")
	})

	t.Run("offline skips now playing", func(t *testing.T) {
		message := transitionMessage(false, &icecast.StreamStatus{
			Mount:            "/stream",
			CurrentlyPlaying: &nowPlaying,
		})
		assert.Contains(t, message, "went off air")
		assert.NotContains(t, message, "NTO")
	})

	t.Run("nil status", func(t *testing.T) {
		message := transitionMessage(true, nil)
		assert.Contains(t, message, "back on air")
	})
}

func TestCooldownSuppressesAlert(t *testing.T) {
	notifier := NewNotifier("token", "chat", nil)
	stamp := time.Now().Add(-time.Minute)
	notifier.lastAlert = stamp

	// Inside the cooldown window NotifyTransition returns before any
	// network call and leaves the alert timestamp untouched.
	notifier.NotifyTransition(true, &icecast.StreamStatus{Mount: "/stream"})
	assert.Equal(t, stamp, notifier.lastAlert)
}
