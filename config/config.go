// Package config loads the service configuration from the environment with
// sensible defaults, and optionally hot-reloads it from a .env style file.
package config

import (
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Defaults mirror the production deployment: a Centova panel endpoint
// fronting the station's Icecast server.
const (
	defaultStatusURL = "https://control.internet-radio.com:2199/external/rpc.php?m=streaminfo.get"
	defaultUsername  = "apispopov"
	defaultMount     = "/stream"
	defaultTimeout   = 5000 * time.Millisecond
	defaultInterval  = 45 * time.Second
	defaultPort      = 8080
	defaultLogLevel  = "info"
)

// Config holds every runtime knob. All fields come from the environment; a
// zero-value Config is not usable, call Load.
type Config struct {
	// StatusURL is the upstream Icecast or Centova status endpoint.
	StatusURL string
	// Username is injected as the "username" query parameter when absent.
	Username string
	// Mount is the requested mount path, always with a leading slash.
	Mount string
	// RequestTimeout bounds one whole upstream status request, including
	// the chained playlist-resolution fetch.
	RequestTimeout time.Duration
	// PollInterval is the cadence of silent background polls. Zero or
	// negative disables polling.
	PollInterval time.Duration
	// SkipPrecheck disables the deploy-time reachability gate.
	SkipPrecheck bool

	// ListenPort is the local HTTP port.
	ListenPort int
	// LogLevel is one of debug, info, warn, error.
	LogLevel string
	// Environment is "production" in production-like builds; the raw
	// upstream payload is echoed in responses everywhere else.
	Environment string
	// SentryDSN enables Sentry error reporting when non-empty.
	SentryDSN string

	// TelegramBotToken and TelegramChatID enable on-air transition alerts
	// when both are set.
	TelegramBotToken string
	TelegramChatID   string
}

// Load reads the configuration from the environment.
func Load() *Config {
	cfg := &Config{
		StatusURL:        getEnvOrDefault("ICECAST_STATUS_URL", defaultStatusURL),
		Username:         getEnvOrDefault("ICECAST_USERNAME", defaultUsername),
		Mount:            normalizeMount(getEnvOrDefault("ICECAST_MOUNT", defaultMount)),
		RequestTimeout:   envMilliseconds("ICECAST_TIMEOUT", defaultTimeout),
		PollInterval:     envMilliseconds("POLL_INTERVAL", defaultInterval),
		SkipPrecheck:     envBool("SKIP_BACKEND_CHECK"),
		ListenPort:       envInt("PORT", defaultPort),
		LogLevel:         getEnvOrDefault("LOG_LEVEL", defaultLogLevel),
		Environment:      getEnvOrDefault("ENV", "development"),
		SentryDSN:        os.Getenv("SENTRY_DSN"),
		TelegramBotToken: os.Getenv("TG_BOT_TOKEN"),
		TelegramChatID:   os.Getenv("TG_CHAT_ID"),
	}
	return cfg
}

// Validate reports configuration errors that must stop startup, currently a
// malformed upstream URL.
func (c *Config) Validate() error {
	parsed, err := url.Parse(c.StatusURL)
	if err != nil {
		return fmt.Errorf("invalid ICECAST_STATUS_URL: %w", err)
	}
	if parsed.Scheme != "http" && parsed.Scheme != "https" {
		return fmt.Errorf("invalid ICECAST_STATUS_URL: unsupported scheme %q", parsed.Scheme)
	}
	return nil
}

// IsProduction reports whether raw payload echoing should be suppressed.
func (c *Config) IsProduction() bool {
	return strings.EqualFold(c.Environment, "production")
}

func normalizeMount(mount string) string {
	mount = strings.TrimSpace(mount)
	if mount == "" {
		return defaultMount
	}
	if !strings.HasPrefix(mount, "/") {
		return "/" + mount
	}
	return mount
}

func getEnvOrDefault(key, defaultValue string) string {
	if value, exists := os.LookupEnv(key); exists && value != "" {
		return value
	}
	return defaultValue
}

func envMilliseconds(key string, defaultValue time.Duration) time.Duration {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	ms, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return defaultValue
	}
	return time.Duration(ms) * time.Millisecond
}

func envInt(key string, defaultValue int) int {
	raw := os.Getenv(key)
	if raw == "" {
		return defaultValue
	}
	parsed, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return defaultValue
	}
	return parsed
}

func envBool(key string) bool {
	return strings.EqualFold(strings.TrimSpace(os.Getenv(key)), "true")
}
