package poller

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"github.com/nikether/stream-status/status"
)

const maxReportBody = 1 << 20 // 1 MiB

// EndpointSource fetches status reports from a running status endpoint over
// HTTP, for pollers that live apart from the server process.
type EndpointSource struct {
	URL    string
	Client *http.Client
}

// Fetch implements Source by requesting the endpoint and decoding its
// report payload.
func (s *EndpointSource) Fetch(ctx context.Context) (*status.Report, error) {
	client := s.Client
	if client == nil {
		client = http.DefaultClient
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build status request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("status request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("status request failed with %d", resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxReportBody))
	if err != nil {
		return nil, fmt.Errorf("read status response: %w", err)
	}

	var report status.Report
	if err := json.Unmarshal(body, &report); err != nil {
		return nil, fmt.Errorf("decode status response: %w", err)
	}
	return &report, nil
}
