//-------------------------------------------------------------------------
//
// ecomdw - E-Commerce Warehouse ETL
//
// Copyright (c) 2025 - 2026, the ecomdw authors
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package db

import (
	"context"
	"fmt"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"

	"ecomdw/internal/logging"
)

const runLogTable = "etl_run_log"

// createRunLogTableSQL creates the run log table if it doesn't exist.
const createRunLogTableSQL = `
CREATE TABLE IF NOT EXISTS etl_run_log (
    id           BIGSERIAL PRIMARY KEY,
    run_id       TEXT NOT NULL,
    stage        TEXT NOT NULL,
    status       TEXT NOT NULL,
    rows_loaded  BIGINT NOT NULL DEFAULT 0,
    rows_skipped BIGINT NOT NULL DEFAULT 0,
    started_at   TIMESTAMPTZ NOT NULL,
    finished_at  TIMESTAMPTZ NOT NULL,
    error        TEXT
)`

// StageRecord describes one pipeline stage execution for the run log.
type StageRecord struct {
	RunID       string
	Stage       string
	Status      string
	RowsLoaded  int64
	RowsSkipped int64
	StartedAt   time.Time
	FinishedAt  time.Time
	Error       string
}

// EnsureRunLog creates the run log table if it doesn't exist.
func EnsureRunLog(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, createRunLogTableSQL); err != nil {
		return fmt.Errorf("failed to create run log table: %w", err)
	}
	return nil
}

// RecordStage appends one stage execution to the run log.
func RecordStage(ctx context.Context, pool *pgxpool.Pool, rec StageRecord) error {
	var errVal any
	if rec.Error != "" {
		errVal = rec.Error
	}

	_, err := pool.Exec(ctx, `
        INSERT INTO etl_run_log
            (run_id, stage, status, rows_loaded, rows_skipped, started_at, finished_at, error)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8)
    `, rec.RunID, rec.Stage, rec.Status, rec.RowsLoaded, rec.RowsSkipped,
		rec.StartedAt, rec.FinishedAt, errVal)
	if err != nil {
		return fmt.Errorf("failed to record stage %s: %w", rec.Stage, err)
	}

	logging.Debug().
		Str("run_id", rec.RunID).
		Str("stage", rec.Stage).
		Str("status", rec.Status).
		Int64("rows_loaded", rec.RowsLoaded).
		Msg("Recorded stage")

	return nil
}

// LastRunStages retrieves the stage records for the most recent run.
func LastRunStages(ctx context.Context, pool *pgxpool.Pool) ([]StageRecord, error) {
	rows, err := pool.Query(ctx, `
        SELECT run_id, stage, status, rows_loaded, rows_skipped,
               started_at, finished_at, COALESCE(error, '')
        FROM etl_run_log
        WHERE run_id = (
            SELECT run_id FROM etl_run_log ORDER BY started_at DESC LIMIT 1
        )
        ORDER BY id
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var records []StageRecord
	for rows.Next() {
		var rec StageRecord
		if err := rows.Scan(&rec.RunID, &rec.Stage, &rec.Status, &rec.RowsLoaded,
			&rec.RowsSkipped, &rec.StartedAt, &rec.FinishedAt, &rec.Error); err != nil {
			return nil, err
		}
		records = append(records, rec)
	}

	return records, rows.Err()
}

// DropRunLog drops the run log table.
func DropRunLog(ctx context.Context, pool *pgxpool.Pool) error {
	_, err := pool.Exec(ctx, fmt.Sprintf("DROP TABLE IF EXISTS %s", runLogTable))
	return err
}

// RunLogExists checks if the run log table exists.
func RunLogExists(ctx context.Context, pool *pgxpool.Pool) (bool, error) {
	var exists bool
	err := pool.QueryRow(ctx, `
        SELECT EXISTS (
            SELECT FROM information_schema.tables
            WHERE table_name = $1
        )
    `, runLogTable).Scan(&exists)
	return exists, err
}
