package middleware

import (
	"context"
	"net/http"

	"github.com/google/uuid"

	"github.com/localpros/hub/internal/observability"
)

const requestIDHeader = "X-Request-ID"

// RequestID guarantees every request has an X-Request-ID, echoed in the
// response and stored in the context for the log handler. A client-supplied
// id is kept so callers can correlate across services; otherwise a fresh
// UUIDv7 is minted. Runs first in the chain.
func RequestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if id == "" {
			id = uuid.Must(uuid.NewV7()).String()
		}

		w.Header().Set(requestIDHeader, id)

		ctx := context.WithValue(r.Context(), observability.RequestIDKey, id)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}
