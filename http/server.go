// Package http serves the status API: the normalized Icecast/Centova
// status endpoint, the poller-backed now-playing and history views, health
// probes, Prometheus metrics and a small status page with a player.
package http

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/nikether/stream-status/playback"
	"github.com/nikether/stream-status/poller"
	sentryhelper "github.com/nikether/stream-status/sentry_helper"
	"github.com/nikether/stream-status/status"
)

var (
	statusRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "stream_status_http_requests_total",
			Help: "Status endpoint requests by response code.",
		},
		[]string{"code"},
	)

	statusRequestDuration = prometheus.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "stream_status_http_request_duration_seconds",
			Help:    "Status endpoint request duration.",
			Buckets: prometheus.DefBuckets,
		},
	)
)

func init() {
	prometheus.MustRegister(statusRequestsTotal)
	prometheus.MustRegister(statusRequestDuration)
}

// Server is the HTTP front for the status client and poller.
type Server struct {
	router *mux.Router
	client *status.Client
	poller *poller.Poller
	logger *slog.Logger
	sentry *sentryhelper.SentryHelper
}

// NewServer creates the server and wires its routes. The poller may be nil;
// the poller-backed endpoints then answer 503.
func NewServer(client *status.Client, p *poller.Poller, logger *slog.Logger, sentry *sentryhelper.SentryHelper) *Server {
	if logger == nil {
		logger = slog.Default()
	}
	if sentry == nil {
		sentry = sentryhelper.NewSentryHelper(false, logger)
	}
	server := &Server{
		router: mux.NewRouter(),
		client: client,
		poller: p,
		logger: logger,
		sentry: sentry,
	}
	server.setupRoutes()
	return server
}

// Handler returns the root HTTP handler.
func (s *Server) Handler() http.Handler {
	return s.router
}

func (s *Server) setupRoutes() {
	s.router.HandleFunc("/healthz", s.healthzHandler).Methods("GET")
	s.router.HandleFunc("/readyz", s.readyzHandler).Methods("GET")
	s.router.Handle("/metrics", promhttp.Handler()).Methods("GET")

	s.router.HandleFunc("/api/icecast/status", s.icecastStatusHandler).Methods("GET")
	s.router.HandleFunc("/now-playing", s.nowPlayingHandler).Methods("GET")
	s.router.HandleFunc("/history", s.historyHandler).Methods("GET")

	s.router.HandleFunc("/status-page", s.statusPageHandler).Methods("GET")

	s.router.NotFoundHandler = http.HandlerFunc(s.notFoundHandler)
}

func (s *Server) healthzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "text/plain")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("OK"))
}

// readyzHandler answers ready as soon as the upstream URL resolves; the
// upstream itself being down must not make the probe flap.
func (s *Server) readyzHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Cache-Control", "no-cache, no-store, must-revalidate")
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")

	if _, err := s.client.ResolveUpstream(); err != nil {
		w.WriteHeader(http.StatusServiceUnavailable)
		fmt.Fprintf(w, "Not ready: %v", err)
		return
	}
	w.WriteHeader(http.StatusOK)
	w.Write([]byte("Ready"))
}

// icecastStatusHandler fetches and normalizes upstream status. Each request
// gets its own timeout budget; cancellation propagates through the status
// fetch into any chained playlist resolution.
func (s *Server) icecastStatusHandler(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	cfg := s.client.Config()

	ctx, cancel := context.WithTimeout(r.Context(), cfg.RequestTimeout)
	defer cancel()

	report, err := s.client.Fetch(ctx)
	if err != nil {
		code := s.writeStatusError(w, err)
		statusRequestsTotal.WithLabelValues(fmt.Sprintf("%d", code)).Inc()
		statusRequestDuration.Observe(time.Since(start).Seconds())
		return
	}

	s.writeJSON(w, http.StatusOK, report)
	statusRequestsTotal.WithLabelValues("200").Inc()
	statusRequestDuration.Observe(time.Since(start).Seconds())
}

// statusErrorBody mirrors the success envelope's upstream fields so a
// caller can see which URL actually failed.
type statusErrorBody struct {
	Error        string               `json:"error"`
	Upstream     string               `json:"upstream,omitempty"`
	UpstreamMeta *status.UpstreamMeta `json:"upstreamMeta,omitempty"`
}

// writeStatusError maps a fetch failure onto an HTTP response and returns
// the code it wrote. Timeouts become 504, known upstream status codes are
// mirrored, everything else is 500.
func (s *Server) writeStatusError(w http.ResponseWriter, err error) int {
	body := statusErrorBody{Error: err.Error()}

	var fallbackApplied bool
	if upstream, resolveErr := s.client.ResolveUpstream(); resolveErr == nil {
		meta := upstream.Meta()
		body.Upstream = meta.Resolved
		body.UpstreamMeta = &meta
		fallbackApplied = meta.PortFallbackApplied
	}

	code := http.StatusInternalServerError
	var upstreamErr *status.UpstreamStatusError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		code = http.StatusGatewayTimeout
		body.Error = "Icecast status request timed out"
	case errors.As(err, &upstreamErr):
		code = upstreamErr.Code
	}

	if code == http.StatusInternalServerError && fallbackApplied {
		original := "unknown"
		if body.UpstreamMeta != nil && body.UpstreamMeta.OriginalPort != nil {
			original = *body.UpstreamMeta.OriginalPort
		}
		body.Error = fmt.Sprintf(
			"%s. The configured upstream port %s is outside the reachable set and was dropped before fetching; if the upstream only answers on that port, move it to %s.",
			body.Error, original, playback.AllowedPortList())
	}

	s.logger.Warn("Status request failed",
		slog.Int("code", code),
		slog.String("error", body.Error))
	if code >= http.StatusInternalServerError {
		s.sentry.CaptureCategorizedError(err, "upstream", body.Upstream)
	}
	s.writeJSON(w, code, body)
	return code
}

func (s *Server) nowPlayingHandler(w http.ResponseWriter, r *http.Request) {
	if s.poller == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "polling is disabled"})
		return
	}
	s.writeJSON(w, http.StatusOK, s.poller.Snapshot())
}

func (s *Server) historyHandler(w http.ResponseWriter, r *http.Request) {
	if s.poller == nil {
		s.writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "polling is disabled"})
		return
	}
	snapshot := s.poller.Snapshot()
	s.writeJSON(w, http.StatusOK, map[string]any{"history": snapshot.History})
}

func (s *Server) notFoundHandler(w http.ResponseWriter, r *http.Request) {
	s.logger.Debug("Unknown route requested",
		slog.String("path", r.URL.Path),
		slog.String("remote", r.RemoteAddr))
	s.writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found"})
}

func (s *Server) writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		s.logger.Error("Failed to encode response", slog.String("error", err.Error()))
	}
}
