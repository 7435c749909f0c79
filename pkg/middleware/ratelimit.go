package middleware

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"go.uber.org/ratelimit"
	"go.uber.org/zap"
)

// Rate limit key strategies.
const (
	StrategyIP     = "ip"
	StrategyCustom = "custom"
)

// RateLimitConfig defines configuration for rate limiting
type RateLimitConfig struct {
	// BucketName identifies the bucket. Routes sharing a BucketName share the limit.
	BucketName string `yaml:"bucket_name"`

	// Limit is the number of requests allowed per Window.
	Limit int `yaml:"limit"`

	// Window is the length of a counting window. Zero means one second.
	Window time.Duration `yaml:"window"`

	// Strategy selects how clients are told apart: StrategyIP (default) or StrategyCustom.
	Strategy string `yaml:"strategy"`

	// Smooth spaces admitted requests evenly over the window instead of letting
	// them through in a burst. Requests wait rather than being rejected.
	Smooth bool `yaml:"smooth"`

	// KeyExtractor returns the client key when Strategy is StrategyCustom.
	KeyExtractor func(*http.Request) (string, error) `yaml:"-"`

	// ExceededHandler writes the response when the limit is hit. Defaults to a plain 429.
	ExceededHandler http.Handler `yaml:"-"`
}

// RateLimiter decides whether a request identified by key may proceed.
type RateLimiter interface {
	// Allow reports whether the request is allowed, how many requests remain in
	// the current window, and how long until the window resets.
	Allow(key string, limit int, window time.Duration) (bool, int, time.Duration)
}

type window struct {
	start time.Time
	count int
}

// UberRateLimiter counts requests per key in fixed windows and, for smooth
// configurations, paces admitted requests with go.uber.org/ratelimit.
type UberRateLimiter struct {
	mu       sync.Mutex
	windows  map[string]*window
	limiters sync.Map // map[string]ratelimit.Limiter
	now      func() time.Time
}

// NewUberRateLimiter creates a new rate limiter
func NewUberRateLimiter() *UberRateLimiter {
	return &UberRateLimiter{windows: make(map[string]*window), now: time.Now}
}

// Allow implements RateLimiter with a fixed window counter.
func (u *UberRateLimiter) Allow(key string, limit int, period time.Duration) (bool, int, time.Duration) {
	if period <= 0 {
		period = time.Second
	}
	if limit <= 0 {
		limit = 1
	}

	u.mu.Lock()
	defer u.mu.Unlock()

	now := u.now()
	win, ok := u.windows[key]
	if !ok || now.Sub(win.start) >= period {
		win = &window{start: now}
		u.windows[key] = win
	}
	reset := period - now.Sub(win.start)
	if win.count >= limit {
		return false, 0, reset
	}
	win.count++
	return true, limit - win.count, reset
}

// Take blocks until the pacing limiter for key admits another request.
func (u *UberRateLimiter) Take(key string, limit int, period time.Duration) {
	if period <= 0 {
		period = time.Second
	}
	if limit <= 0 {
		limit = 1
	}
	l, ok := u.limiters.Load(key)
	if !ok {
		l, _ = u.limiters.LoadOrStore(key, ratelimit.New(limit, ratelimit.Per(period), ratelimit.WithoutSlack))
	}
	l.(ratelimit.Limiter).Take()
}

// RateLimit creates a middleware that enforces rate limits. A nil config disables it.
func RateLimit(config *RateLimitConfig, limiter RateLimiter, logger *zap.Logger) Middleware {
	return func(next http.Handler) http.Handler {
		if config == nil {
			return next
		}
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			key := ClientIP(r)
			if key == "" {
				key = extractClientIP(r, DefaultIPConfig())
			}
			if config.Strategy == StrategyCustom && config.KeyExtractor != nil {
				var err error
				key, err = config.KeyExtractor(r)
				if err != nil {
					logger.Error("Failed to extract rate limit key", append(requestFields(r), zap.Error(err))...)
					http.Error(w, "Internal Server Error", http.StatusInternalServerError)
					return
				}
			}

			bucketKey := config.BucketName + ":" + key
			allowed, remaining, reset := limiter.Allow(bucketKey, config.Limit, config.Window)

			w.Header().Set("X-RateLimit-Limit", strconv.Itoa(config.Limit))
			w.Header().Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
			w.Header().Set("X-RateLimit-Reset", strconv.FormatInt(time.Now().Add(reset).Unix(), 10))

			if !allowed {
				w.Header().Set("Retry-After", strconv.FormatInt(int64(reset.Round(time.Second)/time.Second), 10))
				logger.Warn("Rate limit exceeded",
					append(requestFields(r),
						zap.String("key", key),
						zap.Int("limit", config.Limit),
					)...,
				)
				if config.ExceededHandler != nil {
					config.ExceededHandler.ServeHTTP(w, r)
				} else {
					http.Error(w, "Too Many Requests", http.StatusTooManyRequests)
				}
				return
			}

			if pacer, ok := limiter.(interface {
				Take(string, int, time.Duration)
			}); ok && config.Smooth {
				pacer.Take(bucketKey, config.Limit, config.Window)
			}

			next.ServeHTTP(w, r)
		})
	}
}
