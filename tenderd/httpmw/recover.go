package httpmw

import (
	"net/http"
	"runtime/debug"

	"cdr.dev/slog/v3"

	"github.com/tenderd/tenderd/tenderd/httpapi"
)

func Recover(log slog.Logger) func(h http.Handler) http.Handler {
	return func(h http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			defer func() {
				if p := recover(); p != nil {
					log.Warn(r.Context(),
						"panic serving http request (recovered)",
						slog.F("panic", p),
						slog.F("stack", string(debug.Stack())),
					)
					httpapi.InternalServerError(w)
				}
			}()

			h.ServeHTTP(w, r)
		})
	}
}
