package connection

import (
	"fmt"
	"net/url"
	"strings"
)

// ResolveURL builds the WebSocket URL for an endpoint.
//
// A non-empty baseURL is joined with the endpoint as-is. Otherwise the scheme and host
// are taken from origin, mapping http to ws and https to wss.
func ResolveURL(baseURL, origin, endpoint string) (string, error) {
	if baseURL != "" {
		return strings.TrimRight(baseURL, "/") + ensureLeadingSlash(endpoint), nil
	}
	if origin == "" {
		return "", ErrNoBaseURL
	}

	u, err := url.Parse(origin)
	if err != nil {
		return "", fmt.Errorf("parse origin: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("origin %q has no host", origin)
	}

	scheme := "ws"
	switch u.Scheme {
	case "https", "wss":
		scheme = "wss"
	case "http", "ws":
	default:
		return "", fmt.Errorf("origin %q: unsupported scheme %q", origin, u.Scheme)
	}

	return fmt.Sprintf("%s://%s%s", scheme, u.Host, ensureLeadingSlash(endpoint)), nil
}

func ensureLeadingSlash(p string) string {
	if p == "" || strings.HasPrefix(p, "/") {
		return p
	}
	return "/" + p
}
