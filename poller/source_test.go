package poller

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestEndpointSourceFetch(t *testing.T) {
	report := reportWithTitle("NTO – Trauma")
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "application/json", r.Header.Get("Accept"))
		json.NewEncoder(w).Encode(report)
	}))
	defer server.Close()

	source := &EndpointSource{URL: server.URL + "/api/icecast/status", Client: server.Client()}
	got, err := source.Fetch(context.Background())
	require.NoError(t, err)
	require.NotNil(t, got.Status)
	require.NotNil(t, got.Status.CurrentlyPlaying)
	assert.Equal(t, "NTO – Trauma", *got.Status.CurrentlyPlaying)
}

func TestEndpointSourceFetchErrors(t *testing.T) {
	t.Run("non-2xx", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		defer server.Close()

		source := &EndpointSource{URL: server.URL, Client: server.Client()}
		_, err := source.Fetch(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "502")
	})

	t.Run("invalid body", func(t *testing.T) {
		server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.Write([]byte("not json"))
		}))
		defer server.Close()

		source := &EndpointSource{URL: server.URL, Client: server.Client()}
		_, err := source.Fetch(context.Background())
		require.Error(t, err)
	})

	var _ Source = (*EndpointSource)(nil)
}
