package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/teamtrack-io/teamtrack-engine/pkg/metrics"
)

// Metrics returns middleware that records request duration histograms.
// The route pattern from the mux is used as the path label so UUIDs in
// URLs do not explode cardinality.
func Metrics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		wrapped := &responseWriter{ResponseWriter: w, statusCode: http.StatusOK}
		next.ServeHTTP(wrapped, r)

		path := r.Pattern
		if path == "" {
			path = "unmatched"
		}
		metrics.HTTPRequestDuration.WithLabelValues(
			r.Method,
			path,
			strconv.Itoa(wrapped.statusCode),
		).Observe(time.Since(start).Seconds())
	})
}
