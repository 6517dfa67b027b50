package api

import (
	"net/http"
	"sync"

	"golang.org/x/time/rate"
)

// rateLimiter throttles requests per authenticated user. Unauthenticated
// requests share one bucket keyed by empty string; they only ever reach the
// auth middleware anyway.
type rateLimiter struct {
	mu       sync.Mutex
	limiters map[string]*rate.Limiter
	limit    rate.Limit
	burst    int
}

func newRateLimiter(limit rate.Limit, burst int) *rateLimiter {
	return &rateLimiter{
		limiters: make(map[string]*rate.Limiter),
		limit:    limit,
		burst:    burst,
	}
}

func (rl *rateLimiter) limiterFor(key string) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	limiter, ok := rl.limiters[key]
	if !ok {
		limiter = rate.NewLimiter(rl.limit, rl.burst)
		rl.limiters[key] = limiter
	}
	return limiter
}

func (rl *rateLimiter) middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var key string
		if claims, ok := r.Context().Value(claimsKey).(*Claims); ok {
			key = claims.Subject
		}
		if !rl.limiterFor(key).Allow() {
			respond(w, http.StatusTooManyRequests, errorResponse{Error: errorBody{
				Code: "RATE_LIMITED", Message: "too many requests",
			}})
			return
		}
		next.ServeHTTP(w, r)
	})
}
