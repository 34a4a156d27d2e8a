package ratelimit

import (
	"net"
	"net/http"
	"strings"
)

// ClientID resolves the caller's network identity for admission tracking.
// Resolution order is fixed: the first X-Forwarded-For entry, then
// X-Real-IP, then the transport-level peer address, then "unknown". The
// order matters for fairness behind proxies and is relied on by the
// middleware and stats surfaces.
func ClientID(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		if first, _, ok := strings.Cut(fwd, ","); ok {
			return strings.TrimSpace(first)
		}
		return strings.TrimSpace(fwd)
	}
	if realIP := r.Header.Get("X-Real-IP"); realIP != "" {
		return realIP
	}
	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil && host != "" {
		return host
	}
	if r.RemoteAddr != "" {
		return r.RemoteAddr
	}
	return "unknown"
}
