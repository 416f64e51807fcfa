//-------------------------------------------------------------------------
//
// ecomdw - E-Commerce Warehouse ETL
//
// Copyright (c) 2025 - 2026, the ecomdw authors
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

// Package etl implements the batch pipeline that loads flat staging
// snapshots into the dimensional warehouse: staging load, SCD Type 2
// dimension load, fact load, data quality checks, and mart refresh, in
// that fixed order.
//
// The pipeline is single-writer by design. Running two pipeline instances
// concurrently against the same warehouse is a precondition violation and
// is not guarded against.
package etl

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// DB is an interface that both *pgxpool.Pool and pgx.Tx satisfy. Loaders
// accept it so they can run against a pool in production and a transaction
// in tests.
type DB interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	Exec(ctx context.Context, sql string, arguments ...any) (pgconn.CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	SendBatch(ctx context.Context, b *pgx.Batch) pgx.BatchResults
}

// LoadStats counts row-level outcomes within one stage. Row-level problems
// are recovered locally and counted here; they never abort the stage.
type LoadStats struct {
	// Inserted is the number of new rows written.
	Inserted int64

	// Updated is the number of existing rows modified (closed dimension
	// versions).
	Updated int64

	// Skipped is the number of rows passed over: malformed input rows and
	// rows already present from a previous run.
	Skipped int64

	// Unresolved is the number of fact rows rejected because a dimension
	// reference could not be resolved.
	Unresolved int64
}

// Add accumulates another stats value into s.
func (s *LoadStats) Add(o LoadStats) {
	s.Inserted += o.Inserted
	s.Updated += o.Updated
	s.Skipped += o.Skipped
	s.Unresolved += o.Unresolved
}

// StageError is a fatal stage-level failure. It halts the pipeline and
// carries the stage name and the row counts processed so far.
type StageError struct {
	Stage string
	Stats LoadStats
	Err   error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("stage %s failed after %d rows: %v",
		e.Stage, e.Stats.Inserted+e.Stats.Updated+e.Stats.Skipped, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
