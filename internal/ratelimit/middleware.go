package ratelimit

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"

	"github.com/kuitang/notewise/internal/errs"
	"github.com/kuitang/notewise/internal/obs"
)

// DefaultRetryAfterSeconds is the smallest Retry-After value sent with a 429.
const DefaultRetryAfterSeconds = 1

// RateLimitMiddleware creates HTTP middleware that enforces per-user limits.
// getUserID extracts the authenticated user; requests without one pass through
// and are left to the auth middleware.
//
// Limited requests get 429 with a Retry-After header and a coded JSON error.
// Allowed requests carry X-RateLimit-Remaining.
func RateLimitMiddleware(limiter *RateLimiter, getUserID func(r *http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			userID := getUserID(r)
			if userID == "" {
				next.ServeHTTP(w, r)
				return
			}

			rateLimiter := limiter.GetLimiter(userID)
			if !rateLimiter.Allow() {
				retryAfter := DefaultRetryAfterSeconds
				reservation := rateLimiter.Reserve()
				if reservation.OK() {
					if secs := int(math.Ceil(reservation.Delay().Seconds())); secs > retryAfter {
						retryAfter = secs
					}
					reservation.Cancel()
				}

				obs.From(r.Context()).Info("rate_limited", "retry_after_s", retryAfter)
				w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
				w.Header().Set("X-RateLimit-Remaining", "0")
				w.Header().Set("Content-Type", "application/json")
				w.WriteHeader(http.StatusTooManyRequests)
				json.NewEncoder(w).Encode(map[string]string{
					"error": "rate limit exceeded",
					"code":  string(errs.ResourceExhausted),
				})
				return
			}

			remaining := int(rateLimiter.Tokens())
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			next.ServeHTTP(w, r)
		})
	}
}
