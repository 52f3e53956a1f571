package middleware

import (
	"io"
	"log/slog"
	"net"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/ratelimit"
)

const rateLimitBody = `{"error":"rate limit exceeded","code":"rate_limited"}` + "\n"

// CacheHeader reports whether a search was served from the query cache.
const CacheHeader = "X-Cache"

// RateLimit throttles requests per client address. Paths under /health are
// never limited.
func RateLimit(limiter *ratelimit.Limiter) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if strings.HasPrefix(r.URL.Path, "/health") {
				next.ServeHTTP(w, r)
				return
			}
			client := ClientIP(r)
			if ok, wait := limiter.Allow(client); !ok {
				seconds := int(wait.Round(time.Second) / time.Second)
				if seconds < 1 {
					seconds = 1
				}
				slog.Debug("rate limited", "client", client, "path", r.URL.Path)
				w.Header().Set("Retry-After", strconv.Itoa(seconds))
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				io.WriteString(w, rateLimitBody)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// ClientIP returns the first X-Forwarded-For hop when present, otherwise
// the host part of RemoteAddr.
func ClientIP(r *http.Request) string {
	if fwd := r.Header.Get("X-Forwarded-For"); fwd != "" {
		first, _, _ := strings.Cut(fwd, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
