package httpserver

import (
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/rs/zerolog"
)

// buildRouter wires routes for the API.
func buildRouter(logger zerolog.Logger, deps Deps, opts Options) *gin.Engine {
	registerValidators()

	exposeStack := !opts.Environment.IsProduction()

	router := gin.New()
	router.Use(
		requestIDMiddleware(),
		accessLogMiddleware(logger),
		gin.CustomRecoveryWithWriter(nil, recoveryHandler(logger, exposeStack)),
		corsMiddleware(opts.CORSAllowOrigins),
	)
	if opts.RateLimitRPS > 0 {
		router.Use(newIPRateLimiter(opts.RateLimitRPS, opts.RateLimitBurst).middleware())
	}
	router.Use(errorMiddleware(logger, exposeStack))

	router.GET("/health", healthHandler)
	router.GET("/readyz", readyHandler(deps.Pinger))

	api := router.Group("/api")

	products := productHandler{svc: deps.Products}
	api.GET("/products", products.list)
	api.GET("/products/:id", products.get)

	prices := specialPriceHandler{svc: deps.SpecialPrices}
	sp := api.Group("/special-prices")
	sp.GET("", prices.list)
	sp.GET("/:id", prices.get)
	sp.POST("", prices.create)
	sp.PUT("/add-special-price", prices.addOrUpdate)
	sp.PUT("/:id", prices.update)
	sp.DELETE("/:id", prices.delete)
	sp.DELETE("/delete-product-special-price/:id", prices.removeProduct)

	router.NoRoute(notFoundHandler)

	return router
}

func corsMiddleware(origins []string) gin.HandlerFunc {
	cfg := cors.DefaultConfig()
	cfg.AllowHeaders = append(cfg.AllowHeaders, requestIDHeader)
	cfg.ExposeHeaders = []string{requestIDHeader}
	cfg.MaxAge = 12 * time.Hour
	if len(origins) == 0 || (len(origins) == 1 && origins[0] == "*") {
		cfg.AllowAllOrigins = true
	} else {
		cfg.AllowOrigins = origins
	}
	return cors.New(cfg)
}
