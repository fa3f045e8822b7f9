// Package identity derives the anonymous client key used for per-client throttling.
package identity

import (
	"net"
	"net/http"
	"strings"
)

// UnknownClient is returned when no client address can be determined.
const UnknownClient = "unknown"

// ClientKey returns the best-effort client address for r: the first entry of
// X-Forwarded-For, then X-Real-IP, then the connection's remote host. Headers
// are client-controlled, so the key is only as trustworthy as the proxy in front.
func ClientKey(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if first = strings.TrimSpace(first); first != "" {
			return first
		}
	}
	if realIP := strings.TrimSpace(r.Header.Get("X-Real-IP")); realIP != "" {
		return realIP
	}
	if ip := IPFromRequest(r); ip != "" {
		return ip
	}
	return UnknownClient
}

// IPFromRequest returns the normalized remote IP of the connection.
func IPFromRequest(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
