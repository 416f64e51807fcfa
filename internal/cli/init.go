package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"ecomdw/internal/db"
	"ecomdw/internal/logging"
	"ecomdw/internal/warehouse"
)

var initDropExisting bool

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the warehouse schemas",
	Long: `Initialize the staging schema, the star schema, and the analytics
mart tables in the target database. All statements are idempotent, so
init is safe to re-run against an existing warehouse.

Example:
  ecomdw init --connection "postgres://..."`,
	RunE: runInit,
}

func init() {
	initCmd.Flags().BoolVar(&initDropExisting, "drop-existing", false,
		"drop existing schemas before initialization")
}

func runInit(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.Connection)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	if initDropExisting {
		logging.Warn().Msg("Dropping existing schemas")
		if err := warehouse.DropSchemas(ctx, pool); err != nil {
			return err
		}
		if err := db.DropRunLog(ctx, pool); err != nil {
			return err
		}
	}

	if err := warehouse.CreateSchemas(ctx, pool); err != nil {
		return err
	}
	if err := db.EnsureRunLog(ctx, pool); err != nil {
		return err
	}

	logging.Info().Msg("Warehouse initialized")
	return nil
}
