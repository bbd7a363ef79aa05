package tracing

import (
	"fmt"
	"net/http"

	"github.com/go-chi/chi/v5"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// StatusWriter intercepts the status of the request and the response body
// so that middleware further up the chain can log it.
type StatusWriter struct {
	http.ResponseWriter
	Status       int
	responseBody []byte
}

func (w *StatusWriter) WriteHeader(status int) {
	if w.Status == 0 {
		w.Status = status
	}
	w.ResponseWriter.WriteHeader(status)
}

func (w *StatusWriter) Write(b []byte) (int, error) {
	const maxBodySize = 4096
	if w.Status == 0 {
		w.Status = http.StatusOK
	}
	if w.Status >= http.StatusBadRequest && len(w.responseBody) < maxBodySize {
		w.responseBody = append(w.responseBody, b...)
	}
	return w.ResponseWriter.Write(b)
}

func (w *StatusWriter) ResponseBody() []byte {
	return w.responseBody
}

// StatusWriterMiddleware wraps the response writer so the status code is
// available to the logger and tracing middleware.
func StatusWriterMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		sw := &StatusWriter{ResponseWriter: rw}
		next.ServeHTTP(sw, r)
	})
}

// Middleware adds tracing to http routes.
func Middleware(tracerProvider trace.TracerProvider) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
			if tracerProvider == nil {
				next.ServeHTTP(rw, r)
				return
			}

			// start span with default span name. Span name will be updated to "method route" format once request finishes.
			ctx, span := tracerProvider.Tracer(TracerName).Start(r.Context(), fmt.Sprintf("%s %s", r.Method, r.RequestURI))
			defer span.End()
			r = r.WithContext(ctx)

			sw, ok := rw.(*StatusWriter)
			if !ok {
				sw = &StatusWriter{ResponseWriter: rw}
			}
			next.ServeHTTP(sw, r)

			var route string
			if rctx := chi.RouteContext(r.Context()); rctx != nil {
				route = rctx.RoutePattern()
			}
			if route != "" {
				span.SetName(fmt.Sprintf("%s %s", r.Method, route))
			}
			status := sw.Status
			// 0 status means one has not yet been sent in which case net/http library will write StatusOK
			if status == 0 {
				status = http.StatusOK
			}
			span.SetAttributes(
				attribute.String("http.route", route),
				attribute.Int("http.status_code", status),
			)
			if status >= http.StatusInternalServerError {
				span.SetStatus(codes.Error, http.StatusText(status))
			}
		})
	}
}
