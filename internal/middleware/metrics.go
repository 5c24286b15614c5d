package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/palchat/backend/internal/metrics"
)

// Metrics records request counts and latencies labelled by the matched
// ServeMux pattern. It must wrap the mux directly so the pattern is visible.
func Metrics(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			wrapped := wrap(w)

			next.ServeHTTP(wrapped, r)

			route := r.Pattern
			if route == "" {
				route = "unmatched"
			}
			m.ObserveHTTP(r.Method, route, strconv.Itoa(wrapped.Status()), time.Since(start).Seconds())
		})
	}
}
