package cli

import (
	"context"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"ecomdw/internal/config"
	"ecomdw/internal/db"
	"ecomdw/internal/etl"
	"ecomdw/internal/report"
)

var (
	runStrict  bool
	runRunDate string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Run the full ETL pipeline",
	Long: `Run the full pipeline: staging, dimensions, facts, quality, marts.
Stages execute strictly in order and the first failure stops the run;
completed stages keep their committed work.

The run date defaults to today. New dimension versions become effective
on the run date, so backfills can pin it to a past date.

Example:
  ecomdw run --data-dir ./data/raw --connection "postgres://..."
  ecomdw run --strict --run-date 2026-01-15`,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runStrict, "strict", false,
		"fail the run when any quality check finds violations")
	runCmd.Flags().StringVar(&runRunDate, "run-date", "",
		"logical run date in YYYY-MM-DD form (default: today)")
}

func runRun(cmd *cobra.Command, args []string) error {
	if runStrict {
		cfg.Pipeline.StrictQuality = true
	}

	if err := cfg.ValidatePipeline(); err != nil {
		return err
	}

	var runDate time.Time
	if runRunDate != "" {
		var err error
		runDate, err = time.Parse(config.DateFormat, runRunDate)
		if err != nil {
			return fmt.Errorf("invalid run date: %w", err)
		}
	}

	ctx := context.Background()
	pool, err := db.Connect(ctx, cfg.Connection)
	if err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}
	defer pool.Close()

	dateStart, dateEnd := cfg.DateDimRange()
	pipeline := etl.NewPipeline(pool, etl.PipelineConfig{
		DataDir:       cfg.DataDir,
		RunDate:       runDate,
		DateDimStart:  dateStart,
		DateDimEnd:    dateEnd,
		StrictQuality: cfg.Pipeline.StrictQuality,
	})

	runReport, runErr := pipeline.Run(ctx)

	renderer := report.NewRenderer(true)
	cmd.Println(renderer.RenderStages(runReport))
	if len(runReport.Findings) > 0 {
		cmd.Println(renderer.RenderFindings(runReport.Findings))
	}

	return runErr
}
