package ratelimit

import (
	"encoding/json"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/kuitang/notes-api/internal/errs"
	"github.com/kuitang/notes-api/internal/obs"
)

// ErrTooManyRequests is reported to clients that exceed their rate.
var ErrTooManyRequests = errs.New(errs.ResourceExhausted, "Too many requests, please try again later")

// RateLimitMiddleware creates HTTP middleware that enforces per-client rate
// limits. getKey identifies the client; an empty key skips limiting.
//
// Rejected requests get 429 with a JSON error body and:
//   - Retry-After header with the wait until a token is available, in seconds
//   - X-RateLimit-Remaining header of 0
func RateLimitMiddleware(limiter *RateLimiter, getKey func(r *http.Request) string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := getKey(r)
			if key == "" {
				next.ServeHTTP(w, r)
				return
			}

			clientLimiter := limiter.GetLimiter(key)
			now := time.Now()
			reservation := clientLimiter.ReserveN(now, 1)
			if delay := reservation.DelayFrom(now); !reservation.OK() || delay > 0 {
				reservation.CancelAt(now)
				writeTooManyRequests(w, r, key, retryAfterSeconds(delay, reservation.OK()))
				return
			}

			remaining := int(clientLimiter.TokensAt(now))
			if remaining < 0 {
				remaining = 0
			}
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			next.ServeHTTP(w, r)
		})
	}
}

func retryAfterSeconds(delay time.Duration, ok bool) int {
	if !ok {
		// The burst can never satisfy the request.
		return 60
	}
	return int(math.Max(1, math.Ceil(delay.Seconds())))
}

func writeTooManyRequests(w http.ResponseWriter, r *http.Request, key string, retryAfter int) {
	obs.From(r.Context()).Warn("rate_limited",
		"pkg", "ratelimit",
		"client", key,
		"path", r.URL.Path,
		"retry_after_s", retryAfter,
	)

	w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
	w.Header().Set("X-RateLimit-Remaining", "0")
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(errs.HTTPStatus(errs.ResourceExhausted))
	_ = json.NewEncoder(w).Encode(map[string]string{
		"error":   errs.Kind(errs.ResourceExhausted),
		"message": errs.MessageOf(ErrTooManyRequests),
	})
}
