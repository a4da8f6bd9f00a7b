package http

import (
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"

	"studyrag/internal/contextutil"
)

// limiterResetInterval bounds the size of the per-client limiter map.
const limiterResetInterval = time.Hour

// RateLimiter limits requests per client IP with a token bucket.
type RateLimiter struct {
	mu          sync.Mutex
	limiters    map[string]*rate.Limiter
	lastCleanup time.Time
	limit       rate.Limit
	burst       int
}

// NewRateLimiter allows perMinute requests per client, with bursts of up to
// burst requests. A non-positive perMinute disables limiting.
func NewRateLimiter(perMinute, burst int) *RateLimiter {
	if burst <= 0 {
		burst = 1
	}
	limit := rate.Inf
	if perMinute > 0 {
		limit = rate.Limit(float64(perMinute) / 60)
	}
	return &RateLimiter{
		limiters:    make(map[string]*rate.Limiter),
		lastCleanup: time.Now(),
		limit:       limit,
		burst:       burst,
	}
}

func (l *RateLimiter) limiter(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	if time.Since(l.lastCleanup) > limiterResetInterval {
		l.limiters = make(map[string]*rate.Limiter)
		l.lastCleanup = time.Now()
	}

	limiter, ok := l.limiters[ip]
	if !ok {
		limiter = rate.NewLimiter(l.limit, l.burst)
		l.limiters[ip] = limiter
	}
	return limiter
}

// Middleware rejects requests over the limit with 429 Too Many Requests.
func (l *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ip := clientIP(r)
		if !l.limiter(ip).Allow() {
			ctx := r.Context()
			contextutil.LoggerFromContext(ctx).WarnContext(ctx, "rate limit exceeded", "client_ip", ip)
			w.Header().Set("Content-Type", "application/json")
			w.Header().Set("Retry-After", "60")
			w.WriteHeader(http.StatusTooManyRequests)
			_, _ = w.Write([]byte(`{"error":"Too many requests"}` + "\n"))
			return
		}
		next.ServeHTTP(w, r)
	})
}

// clientIP returns the host part of RemoteAddr. middleware.RealIP has
// already applied proxy headers.
func clientIP(r *http.Request) string {
	if ip, _, err := net.SplitHostPort(r.RemoteAddr); err == nil {
		return ip
	}
	return r.RemoteAddr
}
