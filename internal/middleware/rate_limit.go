package middleware

import (
	"net/http"
	"strconv"
	"time"

	"llm_router/internal/ratelimit"
	"llm_router/internal/utils"
)

// RateLimit limits each client IP to perMinute requests. A zero limit
// disables it. Limiter errors let the request through.
func RateLimit(limiter ratelimit.Limiter, perMinute int, obs Observer) Middleware {
	if obs == nil {
		obs = NopObserver{}
	}
	logger := utils.NewLogger("ratelimit")

	return func(next http.Handler) http.Handler {
		if limiter == nil || perMinute <= 0 {
			return next
		}

		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			allowed, remaining, resetAt, err := limiter.AllowWithDetails(r.Context(), ip, perMinute)
			if err != nil {
				logger.Warn("Rate limiter unavailable, allowing request", "client", ip, "error", err)
				next.ServeHTTP(w, r)
				return
			}

			h := w.Header()
			h.Set("X-RateLimit-Limit", strconv.Itoa(perMinute))
			if remaining >= 0 {
				h.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			}
			if !resetAt.IsZero() {
				h.Set("X-RateLimit-Reset", strconv.FormatInt(resetAt.Unix(), 10))
			}

			if !allowed {
				obs.ObserveRateLimited()
				retry := time.Until(resetAt)
				if retry < time.Second {
					retry = time.Second
				}
				h.Set("Retry-After", strconv.Itoa(int(retry.Round(time.Second)/time.Second)))
				utils.RespondWithError(w, http.StatusTooManyRequests, "rate_limit_error", "rate limit exceeded")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}
