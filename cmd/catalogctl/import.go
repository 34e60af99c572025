package main

import (
	"fmt"
	"os"
	"time"

	"catalog-pricing/internal/importer"
	"github.com/spf13/cobra"
)

func importCmd() *cobra.Command {
	var filePath string

	cmd := &cobra.Command{
		Use:   "import",
		Short: "Import products or special prices from a CSV file",
		Long: `Import products or special prices from a CSV file. The kind is detected
from the header row:

  products:        id,name,price,category,brand,description,sku,stock,tags
  special prices:  email,name,productId,specialPrice

Tags are separated by ";". Rows without a leading id/name (products) or
email (special prices) continue the previous record.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			f, err := os.Open(filePath)
			if err != nil {
				return fmt.Errorf("open file: %w", err)
			}
			defer f.Close()

			st, logger, err := openStore(ctx, "import")
			if err != nil {
				return err
			}
			defer st.Close(ctx)

			imp := importer.NewCSVImporter(f, st.ProductWriter, st.SpecialPrices, st.Products, logger)

			start := time.Now()
			count, err := imp.Run(ctx)
			if err != nil {
				return fmt.Errorf("import failed after %d records: %w", count, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "Imported %d records from %s in %s\n", count, filePath, time.Since(start).Truncate(time.Millisecond))
			return nil
		},
	}

	cmd.Flags().StringVarP(&filePath, "file", "f", "", "Path to the CSV file")
	_ = cmd.MarkFlagRequired("file")

	return cmd
}
