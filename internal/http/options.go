package http

import (
	"net/http"
	"sync"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"golang.org/x/time/rate"
)

type routerOptions struct {
	corsOrigins []string
	rps         float64
	burst       int
	metrics     bool
}

// RouterOption activa middlewares opcionales del router.
type RouterOption func(*routerOptions)

// WithCORS habilita CORS para los origenes dados ("*" admite cualquiera).
func WithCORS(origins ...string) RouterOption {
	return func(o *routerOptions) {
		o.corsOrigins = append(o.corsOrigins, origins...)
	}
}

// WithRateLimit limita las peticiones por IP de cliente.
func WithRateLimit(rps float64, burst int) RouterOption {
	return func(o *routerOptions) {
		o.rps = rps
		o.burst = burst
	}
}

// WithMetrics expone metricas Prometheus en /metrics.
func WithMetrics() RouterOption {
	return func(o *routerOptions) {
		o.metrics = true
	}
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.Config{
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Origin", "Content-Type", "Authorization", "apikey"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}
	for _, origin := range origins {
		if origin == "*" {
			cfg.AllowAllOrigins = true
			return cors.New(cfg)
		}
	}
	cfg.AllowOrigins = origins
	return cors.New(cfg)
}

const limiterIdleTTL = 10 * time.Minute

type ipRateLimiter struct {
	mu       sync.Mutex
	metrics  *metrics
	limit    rate.Limit
	burst    int
	visitors map[string]*visitor
	lastGC   time.Time
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

func newIPRateLimiter(rps float64, burst int, m *metrics) *ipRateLimiter {
	if burst <= 0 {
		burst = 1
	}
	return &ipRateLimiter{
		metrics:  m,
		limit:    rate.Limit(rps),
		burst:    burst,
		visitors: make(map[string]*visitor),
		lastGC:   time.Now(),
	}
}

func (l *ipRateLimiter) allow(ip string, now time.Time) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	if now.Sub(l.lastGC) > limiterIdleTTL {
		for key, v := range l.visitors {
			if now.Sub(v.lastSeen) > limiterIdleTTL {
				delete(l.visitors, key)
			}
		}
		l.lastGC = now
	}

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.limit, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter.AllowN(now, 1)
}

func (l *ipRateLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.allow(c.ClientIP(), time.Now()) {
			l.metrics.recordRateLimitHit(c.FullPath())
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "too many requests", "kind": "transient"})
			c.Abort()
			return
		}
		c.Next()
	}
}
