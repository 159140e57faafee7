package middleware

import (
	"log/slog"
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
)

// Logging logs one line per request, choosing the level from the response status class.
func Logging(logger *slog.Logger) func(http.Handler) http.Handler {
	log := logger.With("component", "http")

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)

			next.ServeHTTP(ww, r)

			status := ww.Status()
			if status == 0 {
				status = http.StatusOK
			}

			attrs := []any{
				"method", r.Method,
				"path", r.URL.Path,
				"status", status,
				"bytes_written", ww.BytesWritten(),
				"duration", time.Since(start),
			}

			msg := http.StatusText(status)
			switch {
			case status >= http.StatusInternalServerError:
				log.Error(msg, attrs...)
			case status >= http.StatusBadRequest:
				log.Warn(msg, attrs...)
			case r.URL.Path == "/health" || r.URL.Path == "/metrics":
				log.Debug(msg, attrs...)
			default:
				log.Info(msg, attrs...)
			}
		})
	}
}
