//-------------------------------------------------------------------------
//
// ecomdw - E-Commerce Warehouse ETL
//
// Copyright (c) 2025 - 2026, the ecomdw authors
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package etl

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"ecomdw/internal/db"
	"ecomdw/internal/logging"
)

// Stage names, in execution order.
const (
	StageStaging    = "staging"
	StageDimensions = "dimensions"
	StageFacts      = "facts"
	StageQuality    = "quality"
	StageMarts      = "marts"
)

// StageNames returns the pipeline stages in execution order.
func StageNames() []string {
	return []string{StageStaging, StageDimensions, StageFacts, StageQuality, StageMarts}
}

// PipelineConfig carries the run parameters for a full pipeline run.
type PipelineConfig struct {
	// DataDir is the directory holding the source CSV files.
	DataDir string

	// RunDate is the logical date of the run. New dimension versions
	// become effective on this date.
	RunDate time.Time

	// DateDimStart and DateDimEnd bound the date dimension seeded on
	// first run.
	DateDimStart time.Time
	DateDimEnd   time.Time

	// StrictQuality fails the run when any quality check finds
	// violations. Otherwise findings are reported and the run
	// continues.
	StrictQuality bool
}

// StageResult records one executed stage.
type StageResult struct {
	Stage    string
	Stats    LoadStats
	Duration time.Duration
}

// RunReport summarizes a pipeline run.
type RunReport struct {
	RunID    string
	Stages   []StageResult
	Findings []Finding
}

// Pipeline runs the full load: staging, dimensions, facts, quality,
// marts. Stages run strictly in order and the first failure stops the
// run; completed stages keep their committed work.
type Pipeline struct {
	pool *pgxpool.Pool
	cfg  PipelineConfig
}

// NewPipeline creates a pipeline against the given pool.
func NewPipeline(pool *pgxpool.Pool, cfg PipelineConfig) *Pipeline {
	if cfg.RunDate.IsZero() {
		cfg.RunDate = time.Now().UTC().Truncate(24 * time.Hour)
	}
	return &Pipeline{pool: pool, cfg: cfg}
}

// Run executes the pipeline. The returned report covers every stage
// that ran, including a failed one.
func (p *Pipeline) Run(ctx context.Context) (*RunReport, error) {
	report := &RunReport{RunID: newRunID()}

	if err := db.EnsureRunLog(ctx, p.pool); err != nil {
		return report, err
	}

	logging.Info().
		Str("run_id", report.RunID).
		Str("run_date", p.cfg.RunDate.Format("2006-01-02")).
		Msg("Starting pipeline run")

	stages := []struct {
		name string
		run  func(ctx context.Context) (LoadStats, error)
	}{
		{StageStaging, func(ctx context.Context) (LoadStats, error) {
			return NewStagingLoader(p.pool, p.cfg.DataDir).Load(ctx)
		}},
		{StageDimensions, func(ctx context.Context) (LoadStats, error) {
			return NewDimensionLoader(p.pool, p.cfg.RunDate,
				p.cfg.DateDimStart, p.cfg.DateDimEnd).Load(ctx)
		}},
		{StageFacts, func(ctx context.Context) (LoadStats, error) {
			return NewFactLoader(p.pool).Load(ctx)
		}},
		{StageQuality, p.runQuality(report)},
		{StageMarts, func(ctx context.Context) (LoadStats, error) {
			rows, err := NewMartRefresher(p.pool).Refresh(ctx)
			return LoadStats{Inserted: rows}, err
		}},
	}

	for _, stage := range stages {
		start := time.Now()
		stats, err := stage.run(ctx)
		elapsed := time.Since(start)

		report.Stages = append(report.Stages, StageResult{
			Stage:    stage.name,
			Stats:    stats,
			Duration: elapsed,
		})
		p.recordStage(ctx, report.RunID, stage.name, stats, start, err)

		if err != nil {
			logging.Error().
				Err(err).
				Str("stage", stage.name).
				Msg("Pipeline stage failed")
			return report, &StageError{Stage: stage.name, Stats: stats, Err: err}
		}

		logging.Info().
			Str("stage", stage.name).
			Int64("inserted", stats.Inserted).
			Int64("updated", stats.Updated).
			Int64("skipped", stats.Skipped).
			Int64("unresolved", stats.Unresolved).
			Dur("elapsed", elapsed).
			Msg("Pipeline stage complete")
	}

	logging.Info().Str("run_id", report.RunID).Msg("Pipeline run complete")
	return report, nil
}

// runQuality wraps the quality battery as a pipeline stage. Findings
// land on the report either way; in strict mode violations fail the
// stage.
func (p *Pipeline) runQuality(report *RunReport) func(ctx context.Context) (LoadStats, error) {
	return func(ctx context.Context) (LoadStats, error) {
		findings, err := NewQualityChecker(p.pool).Run(ctx)
		report.Findings = findings
		if err != nil {
			return LoadStats{}, err
		}
		failed := FailedCount(findings)
		if failed > 0 && p.cfg.StrictQuality {
			return LoadStats{}, fmt.Errorf("%d quality checks failed", failed)
		}
		return LoadStats{Inserted: int64(len(findings) - failed), Skipped: int64(failed)}, nil
	}
}

func (p *Pipeline) recordStage(ctx context.Context, runID, stage string, stats LoadStats, start time.Time, runErr error) {
	status := "success"
	errMsg := ""
	if runErr != nil {
		status = "failed"
		errMsg = runErr.Error()
	}

	rec := db.StageRecord{
		RunID:       runID,
		Stage:       stage,
		Status:      status,
		RowsLoaded:  stats.Inserted + stats.Updated,
		RowsSkipped: stats.Skipped + stats.Unresolved,
		StartedAt:   start,
		FinishedAt:  time.Now(),
		Error:       errMsg,
	}
	if err := db.RecordStage(ctx, p.pool, rec); err != nil {
		// The run log is bookkeeping; a failed insert must not mask
		// the stage outcome.
		logging.Warn().Err(err).Str("stage", stage).Msg("Failed to record stage")
	}
}

func newRunID() string {
	return time.Now().UTC().Format("20060102T150405.000000000")
}
