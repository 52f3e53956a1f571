package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/Adithya-Monish-Kumar-K/docindex/pkg/logger"
)

const RequestIDHeader = "X-Request-ID"

// RequestID propagates an incoming X-Request-ID, or assigns a new UUID, and
// stores it in the request context for logging.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(RequestIDHeader)
		if id == "" {
			id = uuid.NewString()
		}
		w.Header().Set(RequestIDHeader, id)
		next.ServeHTTP(w, r.WithContext(logger.WithRequestID(r.Context(), id)))
	})
}

func GetRequestID(ctx context.Context) string {
	return logger.RequestID(ctx)
}
