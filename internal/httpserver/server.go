package httpserver

import (
	"context"
	"net/http"
	"time"

	"catalog-pricing/internal/config"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// Pinger reports whether the backing store is reachable.
type Pinger interface {
	Ping(ctx context.Context) error
}

// Deps holds the services the handlers delegate to.
type Deps struct {
	Products      ProductService
	SpecialPrices SpecialPriceService
	Pinger        Pinger
}

// Options tunes the middleware stack.
type Options struct {
	Environment      config.Environment
	CORSAllowOrigins []string
	RateLimitRPS     float64
	RateLimitBurst   int
}

// OptionsFromConfig extracts the HTTP options from the service config.
func OptionsFromConfig(cfg config.Config) Options {
	return Options{
		Environment:      cfg.Environment,
		CORSAllowOrigins: cfg.CORSAllowOrigins,
		RateLimitRPS:     cfg.RateLimitRPS,
		RateLimitBurst:   cfg.RateLimitBurst,
	}
}

// Server wraps the HTTP server setup.
type Server struct {
	httpServer *http.Server
	logger     zerolog.Logger
}

// New builds a Server with the catalog and special-price routes.
func New(addr string, logger zerolog.Logger, deps Deps, opts Options) *Server {
	if opts.Environment.IsProduction() {
		gin.SetMode(gin.ReleaseMode)
	}
	router := buildRouter(logger, deps, opts)

	httpSrv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &Server{
		httpServer: httpSrv,
		logger:     logger,
	}
}

// ListenAndServe starts the HTTP server.
func (s *Server) ListenAndServe() error {
	return s.httpServer.ListenAndServe()
}

// Shutdown gracefully stops the HTTP server.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func healthHandler(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "OK", "message": "Server is up and running"})
}

func readyHandler(p Pinger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if p == nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "reason": "store not configured"})
			return
		}
		ctx, cancel := context.WithTimeout(c.Request.Context(), time.Second)
		defer cancel()
		if err := p.Ping(ctx); err != nil {
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable", "reason": "store not reachable"})
			return
		}
		c.JSON(http.StatusOK, gin.H{"status": "ready"})
	}
}
