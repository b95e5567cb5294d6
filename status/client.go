// Package status implements the upstream status client: it builds the
// configured status URL, applies the edge-network port rewrite, fetches the
// payload under a deadline, decodes it across candidate encodings,
// dispatches to the matching normalizer and resolves the playback URL.
package status

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/nikether/stream-status/config"
	"github.com/nikether/stream-status/icecast"
	"github.com/nikether/stream-status/logger"
	"github.com/nikether/stream-status/playback"
	sentryhelper "github.com/nikether/stream-status/sentry_helper"
)

// UserAgent identifies status fetches to the upstream.
const UserAgent = "Nik-Ether-Status/1.0"

// centovaPathSuffix marks a configured URL as a Centova RPC endpoint, which
// names its mount parameter differently than native Icecast.
const centovaPathSuffix = "/external/rpc.php"

// maxStatusBody caps the upstream response size.
const maxStatusBody = 4 * 1024 * 1024

// UpstreamStatusError reports a non-2xx upstream response.
type UpstreamStatusError struct {
	Code int
}

func (e *UpstreamStatusError) Error() string {
	return fmt.Sprintf("Icecast status request failed with %d", e.Code)
}

// UpstreamMeta describes how the upstream URL was resolved, including any
// port-compatibility rewrite.
type UpstreamMeta struct {
	Requested           string  `json:"requested"`
	Resolved            string  `json:"resolved"`
	PortFallbackApplied bool    `json:"portFallbackApplied"`
	OriginalPort        *string `json:"originalPort"`
}

// Report is one successful status fetch, shaped for the JSON response.
type Report struct {
	Status    *icecast.StreamStatus `json:"status"`
	UpdatedAt string                `json:"updatedAt"`
	Upstream  string                `json:"upstream"`
	Meta      UpstreamMeta          `json:"upstreamMeta"`
}

// UpstreamRef is the fully built upstream target: the requested URL with
// query parameters injected, and the resolved URL actually fetched.
type UpstreamRef struct {
	Requested *url.URL
	Resolved  *url.URL
	Mount     string
	IsCentova bool
	Fallback  playback.PortCompatibility
}

// Meta shapes the reference for the HTTP response.
func (r *UpstreamRef) Meta() UpstreamMeta {
	meta := UpstreamMeta{
		Requested:           r.Requested.String(),
		Resolved:            r.Resolved.String(),
		PortFallbackApplied: r.Fallback.Adjusted,
	}
	if r.Fallback.Adjusted && r.Fallback.OriginalPort != "" {
		port := r.Fallback.OriginalPort
		meta.OriginalPort = &port
	}
	return meta
}

// Client fetches and normalizes the upstream status. It is safe for
// concurrent use; configuration updates swap atomically under the mutex.
type Client struct {
	mu         sync.RWMutex
	cfg        *config.Config
	httpClient *http.Client
	resolver   *playback.Resolver
	logger     *slog.Logger
	sentry     *sentryhelper.SentryHelper
}

// NewClient creates a status client. The HTTP client carries no timeout of
// its own: every request is bounded by the caller's context so the chained
// playlist-resolution fetch shares the same deadline.
func NewClient(cfg *config.Config, logger *slog.Logger, sentry *sentryhelper.SentryHelper) *Client {
	if logger == nil {
		logger = slog.Default()
	}
	if sentry == nil {
		sentry = sentryhelper.NewSentryHelper(false, logger)
	}
	httpClient := &http.Client{}
	return &Client{
		cfg:        cfg,
		httpClient: httpClient,
		resolver:   playback.NewResolver(httpClient, logger),
		logger:     logger,
		sentry:     sentry,
	}
}

// SetTransport replaces the underlying HTTP transport, shared by the status
// and playlist-resolution fetches.
func (c *Client) SetTransport(rt http.RoundTripper) {
	c.httpClient.Transport = rt
}

// UpdateConfig swaps the active configuration, used by the hot reload path.
func (c *Client) UpdateConfig(cfg *config.Config) {
	c.mu.Lock()
	c.cfg = cfg
	c.mu.Unlock()
	c.logger.Info("Status client configuration updated",
		slog.String("upstream", cfg.StatusURL),
		slog.String("mount", cfg.Mount))
}

// Config returns the active configuration.
func (c *Client) Config() *config.Config {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.cfg
}

// ResolveUpstream builds the upstream URL from the active configuration:
// query parameters injected only when absent, mount parameter named per
// dialect, port rewrite applied for the actual fetch target.
func (c *Client) ResolveUpstream() (*UpstreamRef, error) {
	cfg := c.Config()

	requested, err := url.Parse(cfg.StatusURL)
	if err != nil {
		return nil, fmt.Errorf("invalid upstream status URL: %w", err)
	}

	mount := cfg.Mount
	if mount != "" && !strings.HasPrefix(mount, "/") {
		mount = "/" + mount
	}

	isCentova := strings.HasSuffix(requested.Path, centovaPathSuffix)
	mountParam := "mount"
	if isCentova {
		mountParam = "mountpoint"
	}

	query := requested.Query()
	if cfg.Username != "" && !query.Has("username") {
		query.Set("username", cfg.Username)
	}
	if mount != "" && !query.Has(mountParam) {
		query.Set(mountParam, mount)
	}
	requested.RawQuery = query.Encode()

	fallback := playback.EnsureCompatiblePort(requested)
	return &UpstreamRef{
		Requested: requested,
		Resolved:  fallback.URL,
		Mount:     mount,
		IsCentova: isCentova,
		Fallback:  fallback,
	}, nil
}

// Fetch performs one status request: upstream fetch, multi-encoding decode,
// dialect dispatch and playback URL resolution. The whole call, including
// the chained playlist fetch, observes ctx.
func (c *Client) Fetch(ctx context.Context) (*Report, error) {
	cfg := c.Config()

	ref, err := c.ResolveUpstream()
	if err != nil {
		return nil, err
	}

	if ref.Fallback.Adjusted {
		portFallbackTotal.Inc()
		logger.LogUpstreamEvent(c.logger, slog.LevelWarn,
			"Upstream port outside the edge allow-list, retrying on default port",
			ref.Resolved.String(),
			slog.String("requested", ref.Requested.String()))
	}

	started := time.Now()
	body, err := c.fetchBody(ctx, ref.Resolved)
	upstreamRequestDuration.Observe(time.Since(started).Seconds())
	if err != nil {
		upstreamRequestsTotal.WithLabelValues(outcomeLabel(ctx, err)).Inc()
		logger.LogUpstreamEvent(c.logger, slog.LevelError, "Upstream status request failed",
			ref.Resolved.String(),
			slog.String("error", err.Error()))
		return nil, err
	}

	payload, err := decodeJSON(body)
	if err != nil {
		upstreamRequestsTotal.WithLabelValues("decode_error").Inc()
		c.sentry.CaptureCategorizedError(err, "decode", ref.Resolved.String())
		return nil, err
	}

	includeRaw := !cfg.IsProduction()
	var streamStatus *icecast.StreamStatus
	if icecast.IsCentovaPayload(payload) {
		streamStatus, err = icecast.NormalizeCentova(payload, icecast.CentovaOptions{
			Options:  icecast.Options{Mount: ref.Mount, IncludeRaw: includeRaw},
			Username: cfg.Username,
		})
	} else {
		streamStatus, err = icecast.NormalizeIcecast(payload, icecast.Options{
			Mount:      ref.Mount,
			IncludeRaw: includeRaw,
		})
	}
	if err != nil {
		upstreamRequestsTotal.WithLabelValues("shape_error").Inc()
		c.sentry.CaptureCategorizedError(err, "normalize", ref.Resolved.String())
		return nil, err
	}

	c.resolvePlayback(ctx, streamStatus)
	upstreamRequestsTotal.WithLabelValues("success").Inc()

	return &Report{
		Status:    streamStatus,
		UpdatedAt: time.Now().UTC().Format(time.RFC3339),
		Upstream:  ref.Resolved.String(),
		Meta:      ref.Meta(),
	}, nil
}

// resolvePlayback upgrades the normalizer's playback URL to a directly
// playable one. Resolution is best effort and never fails the fetch.
func (c *Client) resolvePlayback(ctx context.Context, streamStatus *icecast.StreamStatus) {
	candidate := streamStatus.PlaybackURL
	if candidate == nil {
		candidate = streamStatus.ListenURL
	}
	if candidate == nil {
		return
	}
	resolved := c.resolver.Resolve(ctx, *candidate)
	if resolved == "" {
		return
	}
	streamStatus.PlaybackURL = &resolved
}

func (c *Client) fetchBody(ctx context.Context, target *url.URL) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.String(), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build upstream request: %w", err)
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("upstream request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, &UpstreamStatusError{Code: resp.StatusCode}
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStatusBody))
	if err != nil {
		return nil, fmt.Errorf("failed to read upstream response: %w", err)
	}
	return body, nil
}

func outcomeLabel(ctx context.Context, err error) string {
	if ctx.Err() != nil {
		return "timeout"
	}
	if _, ok := err.(*UpstreamStatusError); ok {
		return "upstream_error"
	}
	return "network_error"
}
