package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"ecomdw/internal/db"
	"ecomdw/internal/etl"
	"ecomdw/internal/report"
)

var checkStrict bool

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Run the data quality battery",
	Long: `Run the data quality battery against the current warehouse contents
without loading anything. Findings are rendered as a table.

Example:
  ecomdw check --connection "postgres://..."
  ecomdw check --strict`,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().BoolVar(&checkStrict, "strict", false,
		"exit with an error when any check finds violations")
}

func runCheck(cmd *cobra.Command, args []string) error {
	if err := cfg.Validate(); err != nil {
		return err
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.Connection)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	findings, err := etl.NewQualityChecker(pool).Run(ctx)
	if err != nil {
		return err
	}

	cmd.Println(report.NewRenderer(true).RenderFindings(findings))

	if checkStrict && !etl.AllPassed(findings) {
		return fmt.Errorf("%d quality checks failed", etl.FailedCount(findings))
	}
	return nil
}
