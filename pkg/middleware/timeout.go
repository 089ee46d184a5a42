package middleware

import (
	"log/slog"
	"net/http"
	"time"
)

const timeoutBody = `{"error":"request timeout"}`

// Timeout bounds handler execution. The handler's context is cancelled at the
// deadline and the client receives 503 with a JSON body.
func Timeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		if timeout <= 0 {
			return next
		}
		logged := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			next.ServeHTTP(w, r)
			if r.Context().Err() != nil {
				slog.Warn("request timed out", "method", r.Method, "path", r.URL.Path, "timeout", timeout)
			}
		})
		return http.TimeoutHandler(logged, timeout, timeoutBody)
	}
}
