package middleware

import (
	"crypto/subtle"
	"net/http"

	"github.com/localpros/hub/internal/api/response"
)

// RunnerSecretHeader carries the shared secret for the job execution trigger.
const RunnerSecretHeader = "X-Runner-Secret"

// RunnerSecret guards the execution trigger with a dedicated shared secret,
// separate from the admin API key so the scheduler's credential cannot read
// or create jobs. Constant-time comparison, same as Auth.
func RunnerSecret(secret string) func(http.Handler) http.Handler {
	secretBytes := []byte(secret)

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			provided := r.Header.Get(RunnerSecretHeader)
			if provided == "" {
				response.RespondUnauthorized(w, "Missing "+RunnerSecretHeader+" header")
				return
			}

			if subtle.ConstantTimeCompare([]byte(provided), secretBytes) != 1 {
				response.RespondUnauthorized(w, "Invalid runner secret")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
