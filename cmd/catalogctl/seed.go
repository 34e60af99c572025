package main

import (
	"fmt"

	"catalog-pricing/internal/seed"
	"github.com/spf13/cobra"
)

func seedCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "seed",
		Short: "Load demo products and special-price profiles",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			fixtures, err := seed.Load()
			if err != nil {
				return err
			}

			st, logger, err := openStore(ctx, "seed")
			if err != nil {
				return err
			}
			defer st.Close(ctx)

			if err := st.Migrate(ctx); err != nil {
				return fmt.Errorf("migrate %s: %w", st.Driver(), err)
			}
			res, err := seed.Apply(ctx, fixtures, st.ProductWriter, st.SpecialPrices, logger)
			if err != nil {
				return fmt.Errorf("seed apply: %w", err)
			}
			logger.Info().Int("products", res.Products).Int("profiles", res.Profiles).Msg("seed applied")
			return nil
		},
	}
}
