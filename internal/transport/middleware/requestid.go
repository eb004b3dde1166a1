package middleware

import (
	"net/http"

	"github.com/frahmantamala/hyperswitch-gateway/pkg/logger"

	"github.com/google/uuid"
)

const traceHeader = "X-Trace-ID"

// RequestID threads a trace id through the request: reuse the caller's
// when one arrives, mint one otherwise, and echo it on the response so
// gateway webhook deliveries can be correlated with their processing logs.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		traceID := r.Header.Get(traceHeader)
		if traceID == "" {
			traceID = uuid.NewString()
		}

		ctx := logger.With(r.Context(), "traceID", traceID)
		w.Header().Set(traceHeader, traceID)

		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
