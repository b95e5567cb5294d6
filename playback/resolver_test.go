package playback

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIsLikelyDirectStream(t *testing.T) {
	assert.True(t, IsLikelyDirectStream("http://radio.example:8000/live.mp3"))
	assert.True(t, IsLikelyDirectStream("http://radio.example/stream"))
	assert.True(t, IsLikelyDirectStream("http://proxy.example/;stream/1"))
	assert.True(t, IsLikelyDirectStream("http://radio.example/live.OGG?x=1"))
	assert.False(t, IsLikelyDirectStream("http://radio.example/listen.m3u"))
	assert.False(t, IsLikelyDirectStream("http://radio.example/page"))
}

func TestIsPlaylistURL(t *testing.T) {
	assert.True(t, IsPlaylistURL("http://radio.example/listen.m3u"))
	assert.True(t, IsPlaylistURL("http://radio.example/listen.M3U8"))
	assert.True(t, IsPlaylistURL("http://radio.example/listen.pls"))
	assert.True(t, IsPlaylistURL("http://radio.example/listen.xspf"))
	// Extension must be at the end, not merely present.
	assert.False(t, IsPlaylistURL("http://radio.example/listen.m3u/extra"))
	assert.False(t, IsPlaylistURL("http://radio.example/stream"))
}

func TestExtractURLs(t *testing.T) {
	body := `#EXTM3U
#EXTINF:-1,Nik Ether Radio
http://a.example/one.mp3
http://b.example/two
http://a.example/one.mp3
File1=http://c.example/three.aac`
	urls := ExtractURLs(body)
	require.Equal(t, []string{
		"http://a.example/one.mp3",
		"http://b.example/two",
		"http://c.example/three.aac",
	}, urls)
}

// rewriteTransport sends every request to a local test server while keeping
// the request URL itself on a stable hostname.
type rewriteTransport struct{ host string }

func (t rewriteTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	clone := req.Clone(req.Context())
	clone.Host = req.URL.Host
	clone.URL.Scheme = "http"
	clone.URL.Host = t.host
	return http.DefaultTransport.RoundTrip(clone)
}

func playlistClient(t *testing.T, handler http.HandlerFunc) *http.Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return &http.Client{Transport: rewriteTransport{host: server.Listener.Addr().String()}}
}

type failingTransport struct{}

func (failingTransport) RoundTrip(*http.Request) (*http.Response, error) {
	return nil, assert.AnError
}

func TestResolveDirectStreamSkipsNetwork(t *testing.T) {
	// A resolver with no working transport: any network call would surface
	// as a changed URL.
	resolver := NewResolver(&http.Client{Transport: failingTransport{}}, nil)

	got := resolver.Resolve(context.Background(), "http://radio.example:8000/live.mp3")
	assert.Equal(t, "http://radio.example:8000/live.mp3", got)

	got = resolver.Resolve(context.Background(), "http://radio.example/page")
	assert.Equal(t, "http://radio.example/page", got)
}

func TestResolvePlaylistFirstMatchingCandidateWins(t *testing.T) {
	client := playlistClient(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, UserAgent, r.Header.Get("User-Agent"))
		w.Header().Set("Content-Type", "application/x-mpegurl")
		// First line has no hint, second does: the second must win.
		w.Write([]byte("http://b.example/two\nhttp://a.example/one.mp3\n"))
	})

	resolver := NewResolver(client, nil)
	got := resolver.Resolve(context.Background(), "http://radio.example/listen.m3u")
	assert.Equal(t, "http://a.example/one.mp3", got)
}

func TestResolvePlaylistFallsBackToFirstCandidate(t *testing.T) {
	client := playlistClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("http://b.example/two\nhttp://c.example/three\n"))
	})

	resolver := NewResolver(client, nil)
	got := resolver.Resolve(context.Background(), "http://radio.example/listen.pls")
	assert.Equal(t, "http://b.example/two", got)
}

func TestResolvePlaylistStripsBlockedPortBeforeFetch(t *testing.T) {
	var gotHost string
	client := playlistClient(t, func(w http.ResponseWriter, r *http.Request) {
		gotHost = r.Host
		w.Write([]byte("http://a.example/one.mp3\n"))
	})

	resolver := NewResolver(client, nil)
	got := resolver.Resolve(context.Background(), "http://radio.example:8000/listen.m3u")
	assert.Equal(t, "http://a.example/one.mp3", got)
	assert.Equal(t, "radio.example", gotHost)
}

func TestResolvePlaylistFetchFailureKeepsOriginal(t *testing.T) {
	client := playlistClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	resolver := NewResolver(client, nil)
	original := "http://radio.example/listen.m3u"
	assert.Equal(t, original, resolver.Resolve(context.Background(), original))
}

func TestResolvePlaylistServingAudioKeepsOriginal(t *testing.T) {
	client := playlistClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "audio/mpeg")
		w.Write([]byte{0xff, 0xfb, 0x90})
	})

	resolver := NewResolver(client, nil)
	original := "http://radio.example/listen.m3u"
	assert.Equal(t, original, resolver.Resolve(context.Background(), original))
}

func TestResolveEmptyPlaylistKeepsOriginal(t *testing.T) {
	client := playlistClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("#EXTM3U\n"))
	})

	resolver := NewResolver(client, nil)
	original := "http://radio.example/listen.m3u"
	assert.Equal(t, original, resolver.Resolve(context.Background(), original))
}

func TestResolveCancelledContextKeepsOriginal(t *testing.T) {
	client := playlistClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("http://a.example/one.mp3\n"))
	})

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	resolver := NewResolver(client, nil)
	original := "http://radio.example/listen.m3u"
	assert.Equal(t, original, resolver.Resolve(ctx, original))
}
