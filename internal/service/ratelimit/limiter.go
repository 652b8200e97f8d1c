package ratelimit

import (
	"net/http"
	"sync"
	"time"

	pkghttp "TFTracker/pkg/http"

	"github.com/labstack/echo/v4"
	"golang.org/x/time/rate"
)

// Config is passed in explicitly; there is no package-level limiter state.
type Config struct {
	RPS     float64
	Burst   int
	IdleTTL time.Duration
}

type entry struct {
	lim  *rate.Limiter
	seen time.Time
}

// Limiter keeps one token bucket per key.
type Limiter struct {
	cfg Config
	now func() time.Time

	mu        sync.Mutex
	m         map[string]*entry
	lastSweep time.Time
}

func New(cfg Config) *Limiter {
	if cfg.Burst < 1 {
		cfg.Burst = 1
	}
	if cfg.IdleTTL <= 0 {
		cfg.IdleTTL = 10 * time.Minute
	}
	return &Limiter{cfg: cfg, now: time.Now, m: make(map[string]*entry)}
}

// Allow reports whether key may make one more request now.
func (l *Limiter) Allow(key string) bool {
	now := l.now()
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastSweep) > l.cfg.IdleTTL {
		for k, e := range l.m {
			if now.Sub(e.seen) > l.cfg.IdleTTL {
				delete(l.m, k)
			}
		}
		l.lastSweep = now
	}

	e, ok := l.m[key]
	if !ok {
		e = &entry{lim: rate.NewLimiter(rate.Limit(l.cfg.RPS), l.cfg.Burst)}
		l.m[key] = e
	}
	e.seen = now
	return e.lim.AllowN(now, 1)
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.m)
}

// Middleware rejects requests over the per-client-IP budget with 429.
func (l *Limiter) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			if !l.Allow(c.RealIP()) {
				c.Response().Header().Set("Retry-After", "1")
				return pkghttp.AppErrorResponse(c,
					pkghttp.NewAppError("ERR_RATE_LIMITED", "", "Too many requests", http.StatusTooManyRequests))
			}
			return next(c)
		}
	}
}
