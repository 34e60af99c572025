package httpserver

import (
	"fmt"
	"net/http"
	"runtime/debug"
	"sync"
	"time"

	"catalog-pricing/internal/domain"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"golang.org/x/time/rate"
)

const (
	requestIDHeader = "X-Request-ID"
	requestIDKey    = "requestID"
)

func requestIDMiddleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		id := c.GetHeader(requestIDHeader)
		if id == "" {
			id = uuid.New().String()
		}
		c.Set(requestIDKey, id)
		c.Writer.Header().Set(requestIDHeader, id)
		c.Next()
	}
}

func accessLogMiddleware(logger zerolog.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()

		status := c.Writer.Status()
		evt := logger.Info()
		if status >= http.StatusInternalServerError {
			evt = logger.Error()
		}
		evt.Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Int("status", status).
			Dur("latency", time.Since(start)).
			Str("client_ip", c.ClientIP()).
			Str("request_id", c.GetString(requestIDKey)).
			Msg("request")
	}
}

// errorMiddleware renders the last error pushed with c.Error as the error
// envelope. Unexpected errors are logged; their detail is only returned as
// the stack outside production.
func errorMiddleware(logger zerolog.Logger, exposeStack bool) gin.HandlerFunc {
	return func(c *gin.Context) {
		c.Next()

		if len(c.Errors) == 0 || c.Writer.Written() {
			return
		}
		err := c.Errors.Last().Err
		status := statusFor(err)
		var stack string
		if status == http.StatusInternalServerError {
			logger.Error().Err(err).
				Str("path", c.Request.URL.Path).
				Str("request_id", c.GetString(requestIDKey)).
				Msg("unexpected error")
			if exposeStack {
				stack = fmt.Sprintf("%+v", err)
			}
		}
		respondError(c, status, domain.Message(err, defaultMessage(status)), stack)
	}
}

// recoveryHandler turns panics into a 500 envelope. The stack trace is only
// exposed outside production.
func recoveryHandler(logger zerolog.Logger, exposeStack bool) gin.RecoveryFunc {
	return func(c *gin.Context, recovered any) {
		stack := string(debug.Stack())
		logger.Error().
			Str("panic", fmt.Sprint(recovered)).
			Str("path", c.Request.URL.Path).
			Str("request_id", c.GetString(requestIDKey)).
			Str("stack", stack).
			Msg("recovered from panic")
		if !exposeStack {
			stack = ""
		}
		respondError(c, http.StatusInternalServerError, defaultMessage(http.StatusInternalServerError), stack)
	}
}

func notFoundHandler(c *gin.Context) {
	respondError(c, http.StatusNotFound, "Route not found", "")
}

type visitor struct {
	limiter  *rate.Limiter
	lastSeen time.Time
}

// ipRateLimiter keeps one token bucket per client IP. Visitors idle for
// longer than idle are dropped on the next sweep.
type ipRateLimiter struct {
	mu        sync.Mutex
	visitors  map[string]*visitor
	rps       rate.Limit
	burst     int
	idle      time.Duration
	lastSweep time.Time
	now       func() time.Time
}

func newIPRateLimiter(rps float64, burst int) *ipRateLimiter {
	return &ipRateLimiter{
		visitors:  make(map[string]*visitor),
		rps:       rate.Limit(rps),
		burst:     burst,
		idle:      5 * time.Minute,
		lastSweep: time.Now(),
		now:       time.Now,
	}
}

func (l *ipRateLimiter) get(ip string) *rate.Limiter {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	if now.Sub(l.lastSweep) > l.idle {
		for key, v := range l.visitors {
			if now.Sub(v.lastSeen) > l.idle {
				delete(l.visitors, key)
			}
		}
		l.lastSweep = now
	}

	v, ok := l.visitors[ip]
	if !ok {
		v = &visitor{limiter: rate.NewLimiter(l.rps, l.burst)}
		l.visitors[ip] = v
	}
	v.lastSeen = now
	return v.limiter
}

func (l *ipRateLimiter) middleware() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !l.get(c.ClientIP()).Allow() {
			c.Header("Retry-After", "1")
			respondError(c, http.StatusTooManyRequests, "Too many requests", "")
			return
		}
		c.Next()
	}
}
