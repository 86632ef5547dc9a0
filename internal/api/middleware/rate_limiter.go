package middleware

import (
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/saturnino-fabrica-de-software/proctor/internal/domain"
)

// RouteLimit overrides the default limit for one path.
type RouteLimit struct {
	Max    int
	Window time.Duration
}

// RateLimiterConfig holds configuration for rate limiting
type RateLimiterConfig struct {
	// Max requests per window and client
	Max int
	// Window duration
	Window time.Duration
	// KeyGenerator identifies the client, by default its IP
	KeyGenerator func(c *fiber.Ctx) string
	// PerRoute limits expensive paths separately from the default budget
	PerRoute map[string]RouteLimit
}

// DefaultRateLimiterConfig limits each client to max requests per minute.
// Saving an enrollment photo grabs a camera frame and is limited further.
func DefaultRateLimiterConfig(max int) RateLimiterConfig {
	return RateLimiterConfig{
		Max:    max,
		Window: time.Minute,
		KeyGenerator: func(c *fiber.Ctx) string {
			return c.IP()
		},
		PerRoute: map[string]RouteLimit{
			"/v1/enrollment/photos": {Max: 30, Window: time.Minute},
		},
	}
}

type window struct {
	count      int
	end        time.Time
	lastAccess time.Time
}

// RateLimiter implements fixed-window limiting per client and route
type RateLimiter struct {
	config  RateLimiterConfig
	windows map[string]*window
	mu      sync.Mutex
	done    chan struct{}
	once    sync.Once
}

// NewRateLimiter creates a new rate limiter
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	if config.Max == 0 {
		config.Max = 120
	}
	if config.Window == 0 {
		config.Window = time.Minute
	}
	if config.KeyGenerator == nil {
		config.KeyGenerator = func(c *fiber.Ctx) string {
			return c.IP()
		}
	}

	rl := &RateLimiter{
		config:  config,
		windows: make(map[string]*window),
		done:    make(chan struct{}),
	}

	// Start cleanup goroutine
	go rl.cleanup()

	return rl
}

// Stop shuts down the cleanup goroutine. It is safe to call more than once.
func (rl *RateLimiter) Stop() {
	rl.once.Do(func() {
		close(rl.done)
	})
}

func (rl *RateLimiter) limitFor(path string) (string, int, time.Duration) {
	if l, ok := rl.config.PerRoute[path]; ok {
		return path, l.Max, l.Window
	}
	return "", rl.config.Max, rl.config.Window
}

// Handler returns the Fiber middleware handler
func (rl *RateLimiter) Handler() fiber.Handler {
	return func(c *fiber.Ctx) error {
		client := rl.config.KeyGenerator(c)
		route, max, span := rl.limitFor(c.Path())
		key := client + "|" + route

		now := time.Now()

		rl.mu.Lock()
		w, exists := rl.windows[key]
		if !exists || now.After(w.end) {
			w = &window{end: now.Add(span)}
			rl.windows[key] = w
		}
		w.count++
		w.lastAccess = now
		count := w.count
		end := w.end
		rl.mu.Unlock()

		remaining := max - count
		if remaining < 0 {
			remaining = 0
		}
		c.Set("X-RateLimit-Limit", strconv.Itoa(max))
		c.Set("X-RateLimit-Remaining", strconv.Itoa(remaining))
		c.Set("X-RateLimit-Reset", end.Format(time.RFC3339))

		if count > max {
			c.Set("Retry-After", strconv.Itoa(int(time.Until(end).Seconds())+1))
			return domain.ErrRateLimitExceeded
		}

		return c.Next()
	}
}

// cleanup removes stale entries
func (rl *RateLimiter) cleanup() {
	ticker := time.NewTicker(5 * time.Minute)
	defer ticker.Stop()

	for {
		select {
		case <-rl.done:
			return
		case <-ticker.C:
			rl.evict(time.Now())
		}
	}
}

// evict drops windows that have not been used for two default windows.
func (rl *RateLimiter) evict(now time.Time) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	for key, w := range rl.windows {
		if now.Sub(w.lastAccess) > 2*rl.config.Window {
			delete(rl.windows, key)
		}
	}
}
