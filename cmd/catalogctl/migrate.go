package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

func migrateCmd() *cobra.Command {
	var down int

	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Create indexes (mongo) or apply the SQL schema (postgres)",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			st, logger, err := openStore(ctx, "migrate")
			if err != nil {
				return err
			}
			defer st.Close(ctx)

			if down > 0 {
				if err := st.Rollback(ctx, down); err != nil {
					return fmt.Errorf("roll back %s: %w", st.Driver(), err)
				}
				return nil
			}
			if err := st.Migrate(ctx); err != nil {
				return fmt.Errorf("migrate %s: %w", st.Driver(), err)
			}
			logger.Info().Str("driver", st.Driver()).Msg("migrations applied")
			return nil
		},
	}

	cmd.Flags().IntVar(&down, "down", 0, "Revert this many SQL schema versions instead of migrating up (postgres only)")

	return cmd
}
