package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"catalog-pricing/internal/config"
	"catalog-pricing/internal/logx"
	"catalog-pricing/internal/store"
	"github.com/rs/zerolog"
	"github.com/spf13/cobra"
)

var Version = "dev"

func main() {
	rootCmd := &cobra.Command{
		Use:           "catalogctl",
		Short:         "Operator tooling for the catalog pricing service",
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(migrateCmd())
	rootCmd.AddCommand(seedCmd())
	rootCmd.AddCommand(importCmd())

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// openStore loads configuration and connects to the configured backend.
func openStore(ctx context.Context, component string) (*store.Store, zerolog.Logger, error) {
	cfg, err := config.FromEnv()
	if err != nil {
		return nil, zerolog.Nop(), err
	}
	logger := logx.Component(logx.New(cfg.Environment, cfg.LogLevel), component)
	// Tooling writes products directly; skip the read cache.
	cfg.RedisURL = ""

	st, err := store.Open(ctx, cfg, logger)
	if err != nil {
		return nil, logger, err
	}
	return st, logger, nil
}
