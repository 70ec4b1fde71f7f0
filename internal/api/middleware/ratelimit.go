package middleware

import (
	"log/slog"
	"net"
	"net/http"
	"time"

	"github.com/phrazzld/scry-practice/internal/api/shared"
	"github.com/phrazzld/scry-practice/internal/platform/logger"
	"github.com/phrazzld/scry-practice/internal/platform/metrics"
	"github.com/phrazzld/scry-practice/internal/platform/ratelimit"
	"github.com/phrazzld/scry-practice/internal/redact"
)

// RateLimit rejects requests over the limiter's budget with 429. Requests
// are keyed by the authenticated principal, or by client address when
// authentication is disabled. A failing limiter lets requests through.
func RateLimit(limiter ratelimit.Limiter, action string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			principal := clientKey(r)

			allowed, err := limiter.Allow(r.Context(), ratelimit.Key(principal, action))
			if err != nil {
				logger.FromContext(r.Context()).Warn("rate limiter unavailable, allowing request",
					slog.String("action", action),
					slog.String("error", redact.Error(err)))
				next.ServeHTTP(w, r)
				return
			}

			if !allowed {
				metrics.ObserveRateLimited(action)
				shared.RespondWithError(w, r, http.StatusTooManyRequests, "Rate limit exceeded",
					shared.WithRetryAfter(time.Minute))
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

func clientKey(r *http.Request) string {
	if ownerID, ok := shared.GetOwnerID(r.Context()); ok {
		return ownerID.String()
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}
