package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"ecomdw/internal/db"
	"ecomdw/internal/etl"
	"ecomdw/internal/logging"
)

var loadCmd = &cobra.Command{
	Use:   "load",
	Short: "Load the CSV snapshot into the staging tables",
	Long: `Load the source CSV snapshot into the staging tables without
running the rest of the pipeline. Each staging table is truncated and
fully replaced; malformed rows are skipped and counted.

Example:
  ecomdw load --data-dir ./data/raw --connection "postgres://..."`,
	RunE: runLoad,
}

func runLoad(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}
	if cfg.DataDir == "" {
		return fmt.Errorf("data directory is required")
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.Connection)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	stats, err := etl.NewStagingLoader(pool, cfg.DataDir).Load(ctx)
	if err != nil {
		return err
	}

	logging.Info().
		Int64("inserted", stats.Inserted).
		Int64("skipped", stats.Skipped).
		Msg("Staging load complete")
	return nil
}
