package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"catalog-pricing/internal/config"
	"catalog-pricing/internal/httpserver"
	"catalog-pricing/internal/logx"
	pricingsvc "catalog-pricing/internal/service/pricing"
	spsvc "catalog-pricing/internal/service/specialprice"
	"catalog-pricing/internal/store"
	"github.com/rs/zerolog/log"
)

func main() {
	cfg, err := config.FromEnv()
	if err != nil {
		log.Fatal().Err(err).Msg("load config")
	}
	base := logx.New(cfg.Environment, cfg.LogLevel)
	logger := logx.Component(base, "api")

	ctx := context.Background()
	st, err := store.Open(ctx, cfg, logx.Component(base, "store"))
	if err != nil {
		logger.Fatal().Err(err).Msg("open store")
	}
	defer func() {
		if err := st.Close(context.Background()); err != nil {
			logger.Error().Err(err).Msg("close store")
		}
	}()
	if err := st.Migrate(ctx); err != nil {
		logger.Fatal().Err(err).Str("driver", st.Driver()).Msg("prepare store")
	}

	pricingService := pricingsvc.New(st.Products, st.SpecialPrices)
	specialPriceService := spsvc.New(st.SpecialPrices, st.Products, logx.Component(base, "special-prices"))

	srv := httpserver.New(cfg.HTTPAddr, logx.Component(base, "http"), httpserver.Deps{
		Products:      pricingService,
		SpecialPrices: specialPriceService,
		Pinger:        st,
	}, httpserver.OptionsFromConfig(cfg))

	serverErr := make(chan error, 1)
	go func() {
		logger.Info().Str("addr", cfg.HTTPAddr).Str("env", string(cfg.Environment)).Msg("starting http server")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErr <- err
		}
	}()

	stopCh := make(chan os.Signal, 1)
	signal.Notify(stopCh, syscall.SIGINT, syscall.SIGTERM)

	select {
	case sig := <-stopCh:
		logger.Info().Str("signal", sig.String()).Msg("shutting down")
	case err := <-serverErr:
		logger.Error().Err(err).Msg("server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error().Err(err).Msg("graceful shutdown failed")
	} else {
		logger.Info().Msg("server stopped")
	}
}
