package ratelimit

import (
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/ferro-labs/ai-shield/internal/logging"
	"github.com/ferro-labs/ai-shield/internal/metrics"
)

// Middleware returns an HTTP middleware that runs every request through the
// limiter's admission check. Rate-limit headers are attached to every
// response; denied requests get a 429 with a Retry-After hint and never
// reach the wrapped handler. class labels the rejection metric.
func (l *Limiter) Middleware(class string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			clientID := ClientID(r)
			res := l.Admit(clientID)

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(res.Limit))
			h.Set("X-RateLimit-Remaining", strconv.Itoa(res.Remaining))
			h.Set("X-RateLimit-Reset", strconv.FormatInt(res.ResetAt.Unix(), 10))
			h.Set("X-RateLimit-Window", strconv.Itoa(int(l.cfg.Window.Seconds())))

			if !res.Allowed {
				retrySecs := int(res.RetryAfter.Seconds())
				h.Set("Retry-After", strconv.Itoa(retrySecs))
				metrics.RateLimitRejections.WithLabelValues(class).Inc()
				logging.FromContext(r.Context()).Warn("rate limit exceeded",
					"class", class,
					"client", MaskClientID(clientID),
					"path", r.URL.Path,
					"retry_after_seconds", retrySecs,
				)
				writeRateLimited(w, l.cfg.Message, retrySecs)
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func writeRateLimited(w http.ResponseWriter, message string, retrySecs int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusTooManyRequests)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"message":             message,
			"type":                "rate_limit_error",
			"retry_after_seconds": retrySecs,
		},
	})
}
