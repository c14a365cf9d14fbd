package server

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"
	"sync"
	"time"

	"portodas-api/internal/observability/metrics"
)

const (
	scopeGlobal = "global"
	scopeLogin  = "login"

	loginPath = "/api/auth/token"
)

// RateLimitConfig bounds requests per client address. A zero limit disables
// the corresponding scope. When RedisAddr is set the counters live in Redis
// and are shared between instances.
type RateLimitConfig struct {
	GlobalLimit   int
	GlobalWindow  time.Duration
	LoginLimit    int
	LoginWindow   time.Duration
	TrustProxy    bool
	RedisAddr     string
	RedisPassword string
	RedisTimeout  time.Duration
}

// windowStore counts hits of key inside a fixed window.
type windowStore interface {
	Allow(ctx context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error)
	Ping(ctx context.Context) error
}

type rateLimiter struct {
	globalLimit  int
	globalWindow time.Duration
	loginLimit   int
	loginWindow  time.Duration
	trustProxy   bool
	store        windowStore
}

func newRateLimiter(cfg RateLimitConfig) *rateLimiter {
	rl := &rateLimiter{
		globalLimit:  cfg.GlobalLimit,
		globalWindow: cfg.GlobalWindow,
		loginLimit:   cfg.LoginLimit,
		loginWindow:  cfg.LoginWindow,
		trustProxy:   cfg.TrustProxy,
	}
	if rl.globalWindow <= 0 {
		rl.globalWindow = time.Minute
	}
	if rl.loginWindow <= 0 {
		rl.loginWindow = time.Minute
	}
	if cfg.RedisAddr != "" {
		timeout := cfg.RedisTimeout
		if timeout <= 0 {
			timeout = 2 * time.Second
		}
		rl.store = newRedisStore(cfg.RedisAddr, cfg.RedisPassword, timeout)
	} else {
		rl.store = newMemoryStore(time.Now)
	}
	return rl
}

func (r *rateLimiter) enabled() bool {
	return r != nil && (r.globalLimit > 0 || r.loginLimit > 0)
}

// Allow checks the global scope and, for token requests, the login scope.
// It returns the scope that rejected the request, if any.
func (r *rateLimiter) Allow(ctx context.Context, req *http.Request) (string, time.Duration, error) {
	ip := clientIPFromRequest(req, r.trustProxy)
	if ip == "" {
		ip = "unknown"
	}
	if r.globalLimit > 0 {
		allowed, retryAfter, err := r.store.Allow(ctx, "portodas:rl:"+scopeGlobal+":"+ip, r.globalLimit, r.globalWindow)
		if err != nil || !allowed {
			return scopeGlobal, retryAfter, err
		}
	}
	if r.loginLimit > 0 && req.Method == http.MethodPost && req.URL.Path == loginPath {
		allowed, retryAfter, err := r.store.Allow(ctx, "portodas:rl:"+scopeLogin+":"+ip, r.loginLimit, r.loginWindow)
		if err != nil || !allowed {
			return scopeLogin, retryAfter, err
		}
	}
	return "", 0, nil
}

// Ping reports whether the counter backend is reachable.
func (r *rateLimiter) Ping(ctx context.Context) error {
	if r == nil || r.store == nil {
		return nil
	}
	return r.store.Ping(ctx)
}

func rateLimitMiddleware(rl *rateLimiter, logger *slog.Logger, recorder *metrics.Recorder, next http.Handler) http.Handler {
	if !rl.enabled() {
		return next
	}
	if recorder == nil {
		recorder = metrics.Default()
	}
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		scope, retryAfter, err := rl.Allow(r.Context(), r)
		if err != nil {
			loggingWithRequest(logger, r, rl.trustProxy).Error("rate limiter failure", "scope", scope, "error", err)
			writeMiddlewareError(w, http.StatusServiceUnavailable, "rate limit failure")
			return
		}
		if scope == "" {
			next.ServeHTTP(w, r)
			return
		}
		recorder.ObserveRateLimited(scope)
		if retryAfter > 0 {
			w.Header().Set("Retry-After", strconv.FormatInt(int64((retryAfter+time.Second-1)/time.Second), 10))
		}
		message := "too many requests"
		if scope == scopeLogin {
			message = "too many login attempts"
		}
		writeMiddlewareError(w, http.StatusTooManyRequests, message)
	})
}

type windowCounter struct {
	count   int
	resetAt time.Time
}

// memoryStore keeps fixed-window counters for a single process.
type memoryStore struct {
	mu        sync.Mutex
	now       func() time.Time
	counters  map[string]*windowCounter
	lastSweep time.Time
}

func newMemoryStore(now func() time.Time) *memoryStore {
	return &memoryStore{now: now, counters: make(map[string]*windowCounter)}
}

func (s *memoryStore) Allow(_ context.Context, key string, limit int, window time.Duration) (bool, time.Duration, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	s.sweepLocked(now, window)

	counter, ok := s.counters[key]
	if !ok || !now.Before(counter.resetAt) {
		counter = &windowCounter{resetAt: now.Add(window)}
		s.counters[key] = counter
	}
	counter.count++
	if counter.count <= limit {
		return true, 0, nil
	}
	return false, counter.resetAt.Sub(now), nil
}

func (s *memoryStore) sweepLocked(now time.Time, window time.Duration) {
	if now.Sub(s.lastSweep) < window {
		return
	}
	s.lastSweep = now
	for key, counter := range s.counters {
		if !now.Before(counter.resetAt) {
			delete(s.counters, key)
		}
	}
}

func (s *memoryStore) Ping(context.Context) error { return nil }
