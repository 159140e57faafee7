package middleware

import (
	"net/http"
	"sync"

	metrics "github.com/slok/go-http-metrics/metrics/prometheus"
	httpmetrics "github.com/slok/go-http-metrics/middleware"
	"github.com/slok/go-http-metrics/middleware/std"
)

// httpMetrics registers its collectors on first use.
var httpMetrics = sync.OnceValue(func() httpmetrics.Middleware {
	return httpmetrics.New(httpmetrics.Config{
		Recorder: metrics.NewRecorder(metrics.Config{Prefix: "push_timer"}),
	})
})

// Prometheus records request count, latency and response size per route.
func Prometheus(next http.Handler) http.Handler {
	return std.Handler("", httpMetrics(), next)
}
