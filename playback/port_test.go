package playback

import (
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustParse(t *testing.T, raw string) *url.URL {
	t.Helper()
	parsed, err := url.Parse(raw)
	require.NoError(t, err)
	return parsed
}

func TestEnsureCompatiblePortStripsBlockedPort(t *testing.T) {
	compat := EnsureCompatiblePort(mustParse(t, "http://radio.example:8000/stream"))
	assert.True(t, compat.Adjusted)
	assert.Equal(t, "8000", compat.OriginalPort)
	assert.Equal(t, "http://radio.example/stream", compat.URL.String())
}

func TestEnsureCompatiblePortKeepsAllowedPorts(t *testing.T) {
	for _, raw := range []string{
		"https://radio.example/stream",
		"https://radio.example:443/stream",
		"http://radio.example:80/stream",
	} {
		compat := EnsureCompatiblePort(mustParse(t, raw))
		assert.False(t, compat.Adjusted, raw)
		assert.Equal(t, raw, compat.URL.String(), raw)
	}
}

func TestEnsureCompatiblePortCloudflareRange(t *testing.T) {
	for _, port := range []string{"2052", "2053", "2082", "2083", "2086", "2087", "2095", "2096"} {
		compat := EnsureCompatiblePort(mustParse(t, "https://radio.example:"+port+"/stream"))
		assert.False(t, compat.Adjusted, port)
	}
}

func TestEnsureCompatiblePortIgnoresNonHTTPSchemes(t *testing.T) {
	compat := EnsureCompatiblePort(mustParse(t, "rtsp://radio.example:554/stream"))
	assert.False(t, compat.Adjusted)
	assert.Equal(t, "rtsp://radio.example:554/stream", compat.URL.String())
}

func TestEnsureCompatiblePortKeepsIPv6Brackets(t *testing.T) {
	compat := EnsureCompatiblePort(mustParse(t, "http://[2001:db8::1]:8000/stream"))
	assert.True(t, compat.Adjusted)
	assert.Equal(t, "http://[2001:db8::1]/stream", compat.URL.String())
}

func TestEnsureCompatiblePortDoesNotMutateInput(t *testing.T) {
	original := mustParse(t, "http://radio.example:8000/stream")
	_ = EnsureCompatiblePort(original)
	assert.Equal(t, "http://radio.example:8000/stream", original.String())
}
