// Package playback turns whatever listen URL the upstream reports into the
// best directly-playable audio URL. Playlist manifests (M3U/PLS/XSPF) are
// dereferenced with one extra bounded fetch; every failure on that path
// degrades to the original URL instead of surfacing an error.
package playback

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"regexp"
	"strings"
)

const (
	// UserAgent identifies playlist-resolution fetches to the upstream.
	UserAgent = "Nik-Ether-Status/1.0"

	playlistAccept = "application/vnd.apple.mpegurl, application/x-mpegurl, " +
		"application/pls+xml, application/xspf+xml, audio/x-mpegurl, text/plain, */*"

	// maxPlaylistBody caps how much of a playlist manifest is read. Real
	// manifests are a few hundred bytes; anything bigger is not one.
	maxPlaylistBody = 256 * 1024
)

// directStreamHints mark a URL as already playable without another hop.
var directStreamHints = []string{".mp3", ".aac", ".aacp", ".m4a", ".ogg", ".opus", ".webm"}

// playlistExtensions mark a URL as a manifest worth dereferencing.
var playlistExtensions = []string{".m3u", ".m3u8", ".pls", ".xspf"}

var urlTokenPattern = regexp.MustCompile(`(?i)(https?://[^\s"'<>]+)`)

// IsLikelyDirectStream reports whether a URL looks like a direct audio
// stream: a known audio extension anywhere in it, or a /stream or ;stream
// segment.
func IsLikelyDirectStream(rawURL string) bool {
	normalized := strings.ToLower(rawURL)
	for _, hint := range directStreamHints {
		if strings.Contains(normalized, hint) {
			return true
		}
	}
	return strings.Contains(normalized, "/stream") || strings.Contains(normalized, ";stream")
}

// IsPlaylistURL reports whether a URL ends with a known playlist extension.
func IsPlaylistURL(rawURL string) bool {
	normalized := strings.ToLower(rawURL)
	for _, ext := range playlistExtensions {
		if strings.HasSuffix(normalized, ext) {
			return true
		}
	}
	return false
}

// ExtractURLs pulls every absolute http(s) URL token out of a playlist body,
// de-duplicated, order of first appearance preserved.
func ExtractURLs(content string) []string {
	seen := make(map[string]struct{})
	var urls []string
	for _, token := range urlTokenPattern.FindAllString(content, -1) {
		candidate, err := url.Parse(token)
		if err != nil {
			continue
		}
		normalized := candidate.String()
		if _, dup := seen[normalized]; dup {
			continue
		}
		seen[normalized] = struct{}{}
		urls = append(urls, normalized)
	}
	return urls
}

// Resolver dereferences playlist URLs using a shared HTTP client.
type Resolver struct {
	client *http.Client
	logger *slog.Logger
}

// NewResolver creates a Resolver. The client's own timeout is left alone;
// callers bound requests through the context they pass to Resolve.
func NewResolver(client *http.Client, logger *slog.Logger) *Resolver {
	if client == nil {
		client = http.DefaultClient
	}
	if logger == nil {
		logger = slog.Default()
	}
	return &Resolver{client: client, logger: logger}
}

// Resolve returns the best directly-playable URL for rawURL. Direct streams
// and unrecognized URLs come back unchanged with no network call; playlist
// manifests cost one fetch bounded by ctx. Resolution is best effort: any
// fetch or parse failure returns rawURL unchanged.
func (r *Resolver) Resolve(ctx context.Context, rawURL string) string {
	if rawURL == "" {
		return rawURL
	}
	if IsLikelyDirectStream(rawURL) || !IsPlaylistURL(rawURL) {
		return rawURL
	}

	body, contentType, err := r.fetchPlaylist(ctx, rawURL)
	if err != nil {
		r.logger.Debug("Playlist resolution failed, keeping original URL",
			slog.String("url", rawURL),
			slog.String("error", err.Error()))
		return rawURL
	}
	if strings.HasPrefix(contentType, "audio/") {
		// The "playlist" URL serves audio bytes directly.
		return rawURL
	}

	candidates := ExtractURLs(body)
	if len(candidates) == 0 {
		return rawURL
	}
	for _, candidate := range candidates {
		if IsLikelyDirectStream(candidate) {
			return candidate
		}
	}
	return candidates[0]
}

func (r *Resolver) fetchPlaylist(ctx context.Context, rawURL string) (string, string, error) {
	target := rawURL
	if parsed, err := url.Parse(rawURL); err == nil {
		// The playlist fetch goes through the same edge network as the
		// status fetch, so the same port restrictions apply.
		compat := EnsureCompatiblePort(parsed)
		target = compat.URL.String()
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("User-Agent", UserAgent)
	req.Header.Set("Accept", playlistAccept)

	resp, err := r.client.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", "", &unexpectedStatusError{code: resp.StatusCode}
	}

	contentType := strings.ToLower(resp.Header.Get("Content-Type"))
	if strings.HasPrefix(contentType, "audio/") {
		return "", contentType, nil
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxPlaylistBody))
	if err != nil {
		return "", "", err
	}
	return string(body), contentType, nil
}

type unexpectedStatusError struct{ code int }

func (e *unexpectedStatusError) Error() string {
	return "unexpected playlist response status " + http.StatusText(e.code)
}
