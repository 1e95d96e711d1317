package utils

import (
	"net"
	"net/http"
	"strings"
)

// ExtractClientIP returns the client address for rate limiting and login
// records. X-Forwarded-For (first hop) wins over X-Real-IP, which wins over
// RemoteAddr with its port stripped.
func ExtractClientIP(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		if ip := strings.TrimSpace(first); ip != "" {
			return ip
		}
	}

	if xri := strings.TrimSpace(r.Header.Get("X-Real-IP")); xri != "" {
		return xri
	}

	if host, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return host
	}
	return r.RemoteAddr
}
