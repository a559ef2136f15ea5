package middleware

import (
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/medchain/identity-service/internal/metrics"
	"golang.org/x/time/rate"
)

// RouteLimit is a per-route rate ceiling.
type RouteLimit struct {
	PerMinute int
	Burst     int
}

// RateLimiter keeps one token bucket per (client IP, route, user-agent
// prefix) key. Idle buckets are evicted so the map stays bounded.
type RateLimiter struct {
	mu      sync.Mutex
	buckets map[string]*bucket
	limits  map[string]RouteLimit
	def     RouteLimit
}

type bucket struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// NewRateLimiter creates a limiter with per-route ceilings and a default for
// unlisted routes.
func NewRateLimiter(limits map[string]RouteLimit, def RouteLimit) *RateLimiter {
	rl := &RateLimiter{
		buckets: make(map[string]*bucket),
		limits:  limits,
		def:     def,
	}
	go rl.evictLoop()
	return rl
}

// Limit enforces the named route's ceiling.
func (rl *RateLimiter) Limit(route string) func(http.Handler) http.Handler {
	limit, ok := rl.limits[route]
	if !ok {
		limit = rl.def
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := clientKey(r, route)
			if !rl.bucketFor(key, limit).Allow() {
				metrics.RateLimited.WithLabelValues(route).Inc()
				writeJSON(w, http.StatusTooManyRequests, "too many requests")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) bucketFor(key string, limit RouteLimit) *rate.Limiter {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	b, ok := rl.buckets[key]
	if !ok {
		b = &bucket{limiter: rate.NewLimiter(rate.Limit(float64(limit.PerMinute)/60.0), limit.Burst)}
		rl.buckets[key] = b
	}
	b.lastSeen = time.Now()
	return b.limiter
}

func (rl *RateLimiter) evictLoop() {
	ticker := time.NewTicker(time.Minute)
	defer ticker.Stop()
	for range ticker.C {
		cutoff := time.Now().Add(-10 * time.Minute)
		rl.mu.Lock()
		for key, b := range rl.buckets {
			if b.lastSeen.Before(cutoff) {
				delete(rl.buckets, key)
			}
		}
		rl.mu.Unlock()
	}
}

// clientKey derives the bucket key from the client IP, the route and a short
// user-agent prefix, so distinct clients behind one NAT are still mostly
// separated.
func clientKey(r *http.Request, route string) string {
	ip := r.RemoteAddr
	if host, _, err := net.SplitHostPort(ip); err == nil {
		ip = host
	}
	ua := r.UserAgent()
	if len(ua) > 20 {
		ua = ua[:20]
	}
	return ip + ":" + route + ":" + ua
}
