package middleware

import (
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/goccy/go-json"
	"github.com/sirupsen/logrus"

	"github.com/promptpilot/ai-router/internal/types"
)

// RateLimitConfig configures per-client request throttling.
type RateLimitConfig struct {
	Enabled           bool          `yaml:"enabled"`
	RequestsPerMinute int           `yaml:"requests_per_minute"`
	BurstSize         int           `yaml:"burst_size"`
	CleanupInterval   time.Duration `yaml:"cleanup_interval"`
}

// RateLimit throttles requests per client IP with a token bucket. Buckets
// idle for two refill windows are swept by a background goroutine.
type RateLimit struct {
	cfg    RateLimitConfig
	logger *logrus.Logger

	mu      sync.Mutex
	buckets map[string]*bucket

	stop    chan struct{}
	stopped bool
}

type bucket struct {
	tokens     float64
	lastRefill time.Time
}

// NewRateLimit builds the limiter and starts its sweeper when enabled.
func NewRateLimit(cfg RateLimitConfig, logger *logrus.Logger) *RateLimit {
	if cfg.RequestsPerMinute <= 0 {
		cfg.RequestsPerMinute = 60
	}
	if cfg.BurstSize <= 0 {
		cfg.BurstSize = cfg.RequestsPerMinute
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = 5 * time.Minute
	}

	rl := &RateLimit{
		cfg:     cfg,
		logger:  logger,
		buckets: make(map[string]*bucket),
		stop:    make(chan struct{}),
	}
	if cfg.Enabled {
		go rl.sweep()
	}
	return rl
}

// Allow consumes one token for the client, reporting whether the request may
// proceed and how many tokens remain.
func (rl *RateLimit) Allow(client string) (bool, int) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := time.Now()
	b, ok := rl.buckets[client]
	if !ok {
		b = &bucket{tokens: float64(rl.cfg.BurstSize), lastRefill: now}
		rl.buckets[client] = b
	}

	refill := now.Sub(b.lastRefill).Minutes() * float64(rl.cfg.RequestsPerMinute)
	b.tokens = minFloat(b.tokens+refill, float64(rl.cfg.BurstSize))
	b.lastRefill = now

	if b.tokens < 1 {
		return false, 0
	}
	b.tokens--
	return true, int(b.tokens)
}

// Middleware returns the HTTP middleware function.
func (rl *RateLimit) Middleware(next http.Handler) http.Handler {
	if !rl.cfg.Enabled {
		return next
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		client := clientIP(r)
		allowed, remaining := rl.Allow(client)

		w.Header().Set("X-RateLimit-Limit", strconv.Itoa(rl.cfg.RequestsPerMinute))
		w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))

		if !allowed {
			retryAfter := int(time.Minute.Seconds()) / rl.cfg.RequestsPerMinute
			if retryAfter < 1 {
				retryAfter = 1
			}
			w.Header().Set("Retry-After", strconv.Itoa(retryAfter))
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusTooManyRequests)
			json.NewEncoder(w).Encode(types.ErrorResponse{Error: "Rate limit exceeded"})

			rl.logger.WithField("client", client).Warn("Rate limit exceeded")
			return
		}
		next.ServeHTTP(w, r)
	})
}

// Stop halts the sweeper. Safe to call more than once.
func (rl *RateLimit) Stop() {
	rl.mu.Lock()
	defer rl.mu.Unlock()
	if rl.stopped {
		return
	}
	rl.stopped = true
	close(rl.stop)
}

func (rl *RateLimit) sweep() {
	ticker := time.NewTicker(rl.cfg.CleanupInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			cutoff := time.Now().Add(-2 * time.Minute)
			rl.mu.Lock()
			for client, b := range rl.buckets {
				if b.lastRefill.Before(cutoff) {
					delete(rl.buckets, client)
				}
			}
			rl.mu.Unlock()
		case <-rl.stop:
			return
		}
	}
}

func clientIP(r *http.Request) string {
	if forwarded := r.Header.Get("X-Forwarded-For"); forwarded != "" {
		return forwarded
	}
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

func minFloat(a, b float64) float64 {
	if a < b {
		return a
	}
	return b
}
