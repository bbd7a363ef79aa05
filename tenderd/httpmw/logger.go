package httpmw

import (
	"net/http"
	"time"

	"cdr.dev/slog/v3"

	"github.com/tenderd/tenderd/tenderd/tracing"
)

// Logger logs every request once it has been served. Requires a
// *tracing.StatusWriter, which it installs if missing.
func Logger(log slog.Logger) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			start := time.Now()
			sw, ok := rw.(*tracing.StatusWriter)
			if !ok {
				sw = &tracing.StatusWriter{ResponseWriter: rw}
			}

			httplog := log.With(
				slog.F("path", r.URL.Path),
				slog.F("proto", r.Proto),
				slog.F("remote_addr", r.RemoteAddr),
				slog.F("start", start),
			)

			next.ServeHTTP(sw, r)

			end := time.Now()
			status := sw.Status
			if status == 0 {
				status = http.StatusOK
			}
			httplog = httplog.With(
				slog.F("took", end.Sub(start)),
				slog.F("status_code", status),
				slog.F("latency_ms", float64(end.Sub(start)/time.Millisecond)),
			)

			// 5xx is logged at warn, not error, so that slogtest does not
			// fail tests that exercise failure paths on purpose.
			logLevelFn := httplog.Debug
			if status >= http.StatusInternalServerError {
				httplog = httplog.With(slog.F("response_body", string(sw.ResponseBody())))
				logLevelFn = httplog.Warn
			}
			logLevelFn(r.Context(), r.Method)
		})
	}
}
