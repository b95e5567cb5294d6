package playback

import (
	"net/url"
	"strings"
)

// The serving edge network can only open outbound connections on this port
// set. URLs pointing anywhere else are retried on the scheme's default port.
var allowedPorts = map[string]struct{}{
	"":     {},
	"80":   {},
	"443":  {},
	"2052": {},
	"2053": {},
	"2082": {},
	"2083": {},
	"2086": {},
	"2087": {},
	"2095": {},
	"2096": {},
}

// AllowedPortList returns the allow-list in display order, for hint text.
func AllowedPortList() string {
	return "80, 443, 2052, 2053, 2082, 2083, 2086, 2087, 2095 or 2096"
}

// PortCompatibility records a port-compatibility rewrite. URL is what should
// actually be fetched; the caller keeps reporting the requested URL for
// diagnostics.
type PortCompatibility struct {
	URL          *url.URL
	Adjusted     bool
	OriginalPort string
}

// EnsureCompatiblePort rewrites an http(s) URL whose explicit port is
// outside the allow-list to use the scheme's default port. Non-HTTP URLs and
// allowed ports pass through untouched. The input URL is never mutated.
func EnsureCompatiblePort(incoming *url.URL) PortCompatibility {
	clone := *incoming
	if clone.Scheme != "http" && clone.Scheme != "https" {
		return PortCompatibility{URL: &clone}
	}
	port := clone.Port()
	if _, ok := allowedPorts[port]; ok {
		return PortCompatibility{URL: &clone}
	}
	host := clone.Hostname()
	if strings.Contains(host, ":") {
		// Keep IPv6 literals bracketed once the port is stripped.
		host = "[" + host + "]"
	}
	clone.Host = host
	return PortCompatibility{URL: &clone, Adjusted: true, OriginalPort: port}
}
