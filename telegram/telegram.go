// Package telegram sends on-air transition alerts through the Telegram Bot
// API when the polled stream flips between online and offline.
package telegram

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/nikether/stream-status/icecast"
)

const apiBaseURL = "https://api.telegram.org"

// DefaultCooldown is the minimum time between alerts, so a flapping
// upstream does not spam the chat.
const DefaultCooldown = 5 * time.Minute

// Notifier posts stream transition messages to a single chat. A Notifier
// with an empty token or chat ID is disabled and all methods are no-ops.
type Notifier struct {
	botToken   string
	chatID     string
	logger     *slog.Logger
	httpClient *http.Client
	cooldown   time.Duration

	mutex     sync.Mutex
	lastAlert time.Time
}

// NewNotifier creates a Notifier. Pass empty credentials to disable it.
func NewNotifier(botToken, chatID string, logger *slog.Logger) *Notifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Notifier{
		botToken:   botToken,
		chatID:     chatID,
		logger:     logger,
		httpClient: &http.Client{Timeout: 10 * time.Second},
		cooldown:   DefaultCooldown,
	}
}

// Enabled reports whether the notifier has credentials to send with.
func (n *Notifier) Enabled() bool {
	return n != nil && n.botToken != "" && n.chatID != ""
}

// NotifyTransition sends an alert for an online/offline flip, respecting
// the cooldown. Suitable as a poller transition hook.
func (n *Notifier) NotifyTransition(online bool, status *icecast.StreamStatus) {
	if !n.Enabled() {
		return
	}

	n.mutex.Lock()
	if !n.lastAlert.IsZero() && time.Since(n.lastAlert) < n.cooldown {
		n.mutex.Unlock()
		n.logger.Debug("Telegram alert suppressed by cooldown", "online", online)
		return
	}
	n.lastAlert = time.Now()
	n.mutex.Unlock()

	message := transitionMessage(online, status)
	if err := n.sendMessage(message); err != nil {
		n.logger.Error("Failed to send telegram alert",
			"online", online,
			"error", err.Error())
		return
	}
	n.logger.Info("Telegram alert sent", "online", online)
}

// transitionMessage renders the alert text for a stream transition.
func transitionMessage(online bool, status *icecast.StreamStatus) string {
	var b strings.Builder
	if online {
		b.WriteString("🟢 *Stream is back on air*")
	} else {
		b.WriteString("🔴 *Stream went off air*")
	}
	if status != nil {
		if status.Mount != "" {
			fmt.Fprintf(&b, "\nMount: `%s`", status.Mount)
		}
		if online && status.CurrentlyPlaying != nil && *status.CurrentlyPlaying != "" {
			fmt.Fprintf(&b, "\nNow playing: %s", *status.CurrentlyPlaying)
		}
		if online && status.Listeners != nil {
			fmt.Fprintf(&b, "\nListeners: %.0f", *status.Listeners)
		}
	}
	return b.String()
}

// sendMessage posts one message to the configured chat.
func (n *Notifier) sendMessage(message string) error {
	url := fmt.Sprintf("%s/bot%s/sendMessage", apiBaseURL, n.botToken)

	payload := map[string]interface{}{
		"chat_id":    n.chatID,
		"text":       message,
		"parse_mode": "Markdown",
	}

	data, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to marshal payload: %w", err)
	}

	req, err := http.NewRequest("POST", url, bytes.NewReader(data))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := n.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("failed to send request: %w", err)
	}
	defer resp.Body.Close()

	body, _ := io.ReadAll(io.LimitReader(resp.Body, 1<<16))
	if resp.StatusCode != http.StatusOK {
		var errorResponse struct {
			OK          bool   `json:"ok"`
			ErrorCode   int    `json:"error_code"`
			Description string `json:"description"`
		}
		if json.Unmarshal(body, &errorResponse) == nil && errorResponse.Description != "" {
			return fmt.Errorf("telegram API error %d: %s", errorResponse.ErrorCode, errorResponse.Description)
		}
		return fmt.Errorf("telegram API returned status %d", resp.StatusCode)
	}
	return nil
}
