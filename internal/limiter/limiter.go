package limiter

import (
	"context"
	"net"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/itstheanurag/codejudge/internal/metrics"
	"golang.org/x/time/rate"
)

type clientLimiter struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// RateLimiter combines a global token bucket, one bucket per client and a
// ceiling on requests in flight.
type RateLimiter struct {
	globalLimiter *rate.Limiter
	ipRate        rate.Limit
	ipBurst       int
	maxConcurrent int64

	mu          sync.Mutex
	clients     map[string]*clientLimiter
	currentConc int64
}

func NewRateLimiter(globalRPS float64, perIPRPS float64, perIPBurst int, maxConcurrent int) *RateLimiter {
	return &RateLimiter{
		globalLimiter: rate.NewLimiter(rate.Limit(globalRPS), int(globalRPS)*2),
		ipRate:        rate.Limit(perIPRPS),
		ipBurst:       perIPBurst,
		maxConcurrent: int64(maxConcurrent),
		clients:       make(map[string]*clientLimiter),
	}
}

func (rl *RateLimiter) getIPLimiter(ip string) *rate.Limiter {
	c, ok := rl.clients[ip]
	if !ok {
		c = &clientLimiter{limiter: rate.NewLimiter(rl.ipRate, rl.ipBurst)}
		rl.clients[ip] = c
	}
	c.lastSeen = time.Now()
	return c.limiter
}

// Allow reserves a concurrency slot on success; the caller must call Done.
func (rl *RateLimiter) Allow(ip string) bool {
	if !rl.globalLimiter.Allow() {
		metrics.RateLimitHits.Inc()
		return false
	}

	rl.mu.Lock()
	defer rl.mu.Unlock()

	if !rl.getIPLimiter(ip).Allow() {
		metrics.RateLimitHits.Inc()
		return false
	}

	if rl.currentConc >= rl.maxConcurrent {
		metrics.RateLimitHits.Inc()
		return false
	}
	rl.currentConc++
	return true
}

func (rl *RateLimiter) Done() {
	rl.mu.Lock()
	if rl.currentConc > 0 {
		rl.currentConc--
	}
	rl.mu.Unlock()
}

func (rl *RateLimiter) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !rl.Allow(clientIP(r)) {
			http.Error(w, "Too many requests", http.StatusTooManyRequests)
			return
		}
		defer rl.Done()

		next.ServeHTTP(w, r)
	})
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		first, _, _ := strings.Cut(forwarded, ",")
		return strings.TrimSpace(first)
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// Sweep drops client buckets idle for longer than maxIdle.
func (rl *RateLimiter) Sweep(maxIdle time.Duration) {
	cutoff := time.Now().Add(-maxIdle)
	rl.mu.Lock()
	defer rl.mu.Unlock()
	for ip, c := range rl.clients {
		if c.lastSeen.Before(cutoff) {
			delete(rl.clients, ip)
		}
	}
}

// StartCleanup sweeps idle clients every interval until ctx is done.
func (rl *RateLimiter) StartCleanup(ctx context.Context, interval time.Duration) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				rl.Sweep(interval)
			case <-ctx.Done():
				return
			}
		}
	}()
}
