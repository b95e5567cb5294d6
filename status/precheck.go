package status

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
)

// PrecheckResult reports a deploy-time reachability check. Warnings flag
// suspicious-but-survivable findings; hard failures come back as an error.
type PrecheckResult struct {
	Upstream string
	Meta     UpstreamMeta
	Warnings []string
}

// Precheck performs the pre-deployment health gate against the configured
// endpoint: same URL building, port fallback and fetch as a normal status
// request, but content-type and JSON-validity problems only warn. It is the
// runtime counterpart of the deploy pipeline's reachability check.
func (c *Client) Precheck(ctx context.Context) (*PrecheckResult, error) {
	ref, err := c.ResolveUpstream()
	if err != nil {
		return nil, err
	}

	result := &PrecheckResult{
		Upstream: ref.Resolved.String(),
		Meta:     ref.Meta(),
	}
	if ref.Fallback.Adjusted {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"port %s is not reachable from the edge network; falling back to %s",
			ref.Fallback.OriginalPort, ref.Resolved.String()))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, ref.Resolved.String(), nil)
	if err != nil {
		return result, fmt.Errorf("failed to build precheck request: %w", err)
	}
	req.Header.Set("User-Agent", "Nik-Ether-Deployment-Check/1.0")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return result, fmt.Errorf("backend check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return result, &UpstreamStatusError{Code: resp.StatusCode}
	}

	contentType := resp.Header.Get("Content-Type")
	if !strings.Contains(strings.ToLower(contentType), "application/json") {
		result.Warnings = append(result.Warnings, fmt.Sprintf(
			"unexpected content-type %q; continuing, but confirm the backend output", contentType))
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxStatusBody))
	if err != nil {
		return result, fmt.Errorf("failed to read backend response: %w", err)
	}
	if !json.Valid(body) {
		result.Warnings = append(result.Warnings,
			"response was not valid JSON; continuing, but confirm the backend output")
	}
	return result, nil
}
