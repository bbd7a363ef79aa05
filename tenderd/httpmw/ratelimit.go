package httpmw

import (
	"net/http"
	"time"

	"github.com/go-chi/httprate"

	"github.com/tenderd/tenderd/tenderd/httpapi"
	"github.com/tenderd/tenderd/tenderd/tenant"
)

// RateLimit returns a handler that limits requests per-session, falling
// back to the client IP for requests without a token. A count of zero or
// less disables the limit.
func RateLimit(count int, window time.Duration) func(http.Handler) http.Handler {
	if count <= 0 {
		return func(handler http.Handler) http.Handler {
			return handler
		}
	}

	return httprate.Limit(
		count,
		window,
		httprate.WithKeyFuncs(func(r *http.Request) (string, error) {
			if token := SessionToken(r); token != "" {
				if id, _, err := tenant.SplitToken(token); err == nil {
					return "session:" + id, nil
				}
			}
			return httprate.KeyByIP(r)
		}),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			httpapi.Write(r.Context(), w, http.StatusTooManyRequests, httpapi.Response{
				Message: "You've been rate limited for sending more than the allowed requests. Please try again later.",
			})
		}),
	)
}
