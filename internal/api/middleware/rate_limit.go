package middleware

import (
	"net/http"

	"golang.org/x/time/rate"

	"github.com/localpros/hub/internal/api/response"
)

// RateLimit bounds a route to perMinute requests with the given burst,
// answering 429 beyond the budget. One shared bucket, not per client: the
// trigger endpoint has a global execution budget regardless of who calls it.
func RateLimit(perMinute, burst int) func(http.Handler) http.Handler {
	limiter := rate.NewLimiter(rate.Limit(float64(perMinute)/60.0), burst)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if !limiter.Allow() {
				response.RespondTooManyRequests(w, "request budget exhausted, retry later")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
