package middleware

import (
	"context"
	"net/http"
	"strconv"
	"time"

	"github.com/ieraasyl/LiteChat/pkg/utils"
	gocache "github.com/patrickmn/go-cache"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// CounterStore keeps fixed-window request counters shared between
// instances. *database.RedisDB implements it.
type CounterStore interface {
	IncrementRateLimit(ctx context.Context, ip, endpoint string, window time.Duration) (int64, error)
}

// windowReporter is implemented by stores that can tell when a window resets.
type windowReporter interface {
	RateLimitTTL(ctx context.Context, ip, endpoint string) (time.Duration, error)
}

// RateLimiter limits requests per client IP and endpoint.
//
// With a CounterStore it uses shared fixed-window counters. Without one, or
// while the store is failing, it uses an in-process token bucket per
// IP+endpoint that refills requestsPerWindow tokens per window. Idle buckets
// are dropped after a few windows.
type RateLimiter struct {
	store             CounterStore
	local             *gocache.Cache
	requestsPerWindow int
	window            time.Duration
}

// NewRateLimiter creates a limiter allowing requestsPerWindow requests per
// window. store may be nil.
//
// Example:
//
//	limiter := middleware.NewRateLimiter(redisDB, 30, time.Minute)
//	r.With(limiter.Limit("chat")).Post("/api/chat", chatHandler.Chat)
func NewRateLimiter(store CounterStore, requestsPerWindow int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		store:             store,
		local:             gocache.New(3*window, 3*window),
		requestsPerWindow: requestsPerWindow,
		window:            window,
	}
}

// Limit creates middleware that rate limits one endpoint group. Rejected
// requests get 429 with Retry-After and {"error": "..."}.
func (rl *RateLimiter) Limit(endpoint string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := utils.ExtractClientIP(r)

			allowed, remaining := rl.take(r.Context(), ip, endpoint)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.requestsPerWindow))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

			if !allowed {
				rateLimitedTotal.WithLabelValues(endpoint).Inc()
				log.Warn().
					Str("ip", ip).
					Str("endpoint", endpoint).
					Str("request_id", utils.GetRequestID(r.Context())).
					Msg("Rate limit exceeded")

				w.Header().Set("Retry-After", strconv.Itoa(rl.retryAfter(r.Context(), ip, endpoint)))
				utils.RespondWithError(w, r, http.StatusTooManyRequests, "Rate limit exceeded. Please try again later.")
				return
			}

			next.ServeHTTP(w, r)
		})
	}
}

// take consumes one request and reports whether it is allowed and how many
// remain.
func (rl *RateLimiter) take(ctx context.Context, ip, endpoint string) (bool, int) {
	if rl.store != nil {
		count, err := rl.store.IncrementRateLimit(ctx, ip, endpoint, rl.window)
		if err == nil {
			remaining := rl.requestsPerWindow - int(count)
			if remaining < 0 {
				remaining = 0
			}
			return count <= int64(rl.requestsPerWindow), remaining
		}
		log.Error().Err(err).Str("ip", ip).Msg("Rate limit store failed, using local limiter")
	}

	limiter := rl.localLimiter(ip + "|" + endpoint)
	allowed := limiter.Allow()
	remaining := int(limiter.Tokens())
	if remaining < 0 {
		remaining = 0
	}
	return allowed, remaining
}

// retryAfter returns seconds until the client may retry, falling back to
// the full window.
func (rl *RateLimiter) retryAfter(ctx context.Context, ip, endpoint string) int {
	if reporter, ok := rl.store.(windowReporter); ok {
		if ttl, err := reporter.RateLimitTTL(ctx, ip, endpoint); err == nil && ttl > 0 {
			return int(ttl.Round(time.Second).Seconds())
		}
	}
	return int(rl.window.Seconds())
}

func (rl *RateLimiter) localLimiter(key string) *rate.Limiter {
	if v, ok := rl.local.Get(key); ok {
		rl.local.Set(key, v, gocache.DefaultExpiration)
		return v.(*rate.Limiter)
	}

	every := rl.window / time.Duration(max(rl.requestsPerWindow, 1))
	limiter := rate.NewLimiter(rate.Every(every), rl.requestsPerWindow)
	if err := rl.local.Add(key, limiter, gocache.DefaultExpiration); err != nil {
		// Lost a race with another request for the same key.
		if v, ok := rl.local.Get(key); ok {
			return v.(*rate.Limiter)
		}
	}
	return limiter
}
