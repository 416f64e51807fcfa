package etl

import (
	"context"
	"fmt"

	"ecomdw/internal/logging"
)

// Finding is the outcome of one data quality check.
type Finding struct {
	// Name identifies the check.
	Name string

	// Description says what the check asserts.
	Description string

	// Passed is true when no violations were found.
	Passed bool

	// Violations is the number of offending rows.
	Violations int64
}

// check is one assertion in the quality battery. The SQL must return a
// single bigint: the violation count.
type check struct {
	name        string
	description string
	sql         string
}

// qualityChecks is the fixed battery run after every load. Checks only
// read; they never mutate data.
var qualityChecks = []check{
	{
		name:        "staging_customer_ids",
		description: "staging.customers has no null or duplicate customer_ids",
		sql: `
            SELECT COUNT(*) FILTER (WHERE customer_id IS NULL)
                 + COALESCE(SUM(cnt - 1) FILTER (WHERE cnt > 1), 0)::bigint
            FROM (
                SELECT customer_id, COUNT(*) AS cnt
                FROM staging.customers
                GROUP BY customer_id
            ) d`,
	},
	{
		name:        "staging_customer_emails",
		description: "staging.customers emails contain an @",
		sql: `
            SELECT COUNT(*) FROM staging.customers
            WHERE email IS NULL OR POSITION('@' IN email) = 0`,
	},
	{
		name:        "staging_product_ids",
		description: "staging.products has no null or duplicate product_ids",
		sql: `
            SELECT COUNT(*) FILTER (WHERE product_id IS NULL)
                 + COALESCE(SUM(cnt - 1) FILTER (WHERE cnt > 1), 0)::bigint
            FROM (
                SELECT product_id, COUNT(*) AS cnt
                FROM staging.products
                GROUP BY product_id
            ) d`,
	},
	{
		name:        "staging_product_amounts",
		description: "staging.products has no negative prices or costs",
		sql: `
            SELECT COUNT(*) FROM staging.products
            WHERE price < 0 OR cost < 0`,
	},
	{
		name:        "scd2_single_current_customer",
		description: "at most one current dim_customer version per customer_id",
		sql: `
            SELECT COUNT(*) FROM (
                SELECT customer_id FROM warehouse.dim_customer
                WHERE is_current
                GROUP BY customer_id
                HAVING COUNT(*) > 1
            ) d`,
	},
	{
		name:        "scd2_single_current_product",
		description: "at most one current dim_product version per product_id",
		sql: `
            SELECT COUNT(*) FROM (
                SELECT product_id FROM warehouse.dim_product
                WHERE is_current
                GROUP BY product_id
                HAVING COUNT(*) > 1
            ) d`,
	},
	{
		name:        "fact_orders_references",
		description: "every fact_orders row resolves its dimension references",
		sql: `
            SELECT COUNT(*) FROM warehouse.fact_orders fo
            LEFT JOIN warehouse.dim_customer dc ON dc.customer_key = fo.customer_key
            LEFT JOIN warehouse.dim_payment_method dpm
                ON dpm.payment_method_key = fo.payment_method_key
            LEFT JOIN warehouse.dim_shipping_method dsm
                ON dsm.shipping_method_key = fo.shipping_method_key
            LEFT JOIN warehouse.dim_date dd ON dd.date_key = fo.order_date_key
            WHERE dc.customer_key IS NULL
               OR dpm.payment_method_key IS NULL
               OR dsm.shipping_method_key IS NULL
               OR dd.date_key IS NULL`,
	},
	{
		name:        "fact_order_items_references",
		description: "every fact_order_items row resolves its order and product",
		sql: `
            SELECT COUNT(*) FROM warehouse.fact_order_items foi
            LEFT JOIN warehouse.fact_orders fo ON fo.order_key = foi.order_key
            LEFT JOIN warehouse.dim_product dp ON dp.product_key = foi.product_key
            WHERE fo.order_key IS NULL OR dp.product_key IS NULL`,
	},
	{
		name:        "fact_point_in_time",
		description: "fact order dates fall inside the referenced customer version's validity window",
		sql: `
            SELECT COUNT(*) FROM warehouse.fact_orders fo
            JOIN warehouse.dim_customer dc ON dc.customer_key = fo.customer_key
            JOIN warehouse.dim_date dd ON dd.date_key = fo.order_date_key
            WHERE dd.date < dc.effective_date
               OR (dc.end_date IS NOT NULL AND dd.date >= dc.end_date)`,
	},
	{
		name:        "no_negative_amounts",
		description: "no negative order totals, negative unit prices, or non-positive quantities",
		sql: `
            SELECT (SELECT COUNT(*) FROM warehouse.fact_orders WHERE total_amount < 0)
                 + (SELECT COUNT(*) FROM warehouse.fact_order_items
                    WHERE unit_price < 0 OR quantity <= 0)`,
	},
	{
		name:        "order_status_values",
		description: "order_status is Completed, Pending, Cancelled, or Returned",
		sql: `
            SELECT COUNT(*) FROM warehouse.fact_orders
            WHERE order_status NOT IN ('Completed', 'Pending', 'Cancelled', 'Returned')`,
	},
	{
		name:        "line_total_consistency",
		description: "line_total matches quantity * unit_price - discount within a cent",
		sql: `
            SELECT COUNT(*) FROM warehouse.fact_order_items
            WHERE ABS(line_total - (quantity * unit_price - discount_amount)) > 0.01`,
	},
	{
		name:        "order_total_consistency",
		description: "total_amount matches subtotal + tax + shipping - discount within a cent",
		sql: `
            SELECT COUNT(*) FROM warehouse.fact_orders
            WHERE ABS(total_amount -
                (subtotal_amount + tax_amount + shipping_cost - discount_amount)) > 0.01`,
	},
	{
		name:        "date_dimension_coverage",
		description: "dim_date covers every day between the first and last fact order date",
		sql: `
            SELECT COUNT(*) FROM (
                SELECT generate_series(MIN(dd.date), MAX(dd.date),
                                       INTERVAL '1 day')::date AS day
                FROM warehouse.fact_orders fo
                JOIN warehouse.dim_date dd ON dd.date_key = fo.order_date_key
            ) days
            LEFT JOIN warehouse.dim_date dd2 ON dd2.date = days.day
            WHERE dd2.date_key IS NULL`,
	},
}

// QualityChecker runs the quality battery against the warehouse. The
// battery is advisory: findings report violations, the checker itself
// never fails a pipeline.
type QualityChecker struct {
	db DB
}

// NewQualityChecker creates a quality checker.
func NewQualityChecker(db DB) *QualityChecker {
	return &QualityChecker{db: db}
}

// Run executes every check and returns one finding per check. A query
// error (as opposed to a failed check) aborts the battery.
func (c *QualityChecker) Run(ctx context.Context) ([]Finding, error) {
	findings := make([]Finding, 0, len(qualityChecks))

	for _, chk := range qualityChecks {
		var violations int64
		if err := c.db.QueryRow(ctx, chk.sql).Scan(&violations); err != nil {
			return findings, fmt.Errorf("check %s: %w", chk.name, err)
		}

		f := Finding{
			Name:        chk.name,
			Description: chk.description,
			Passed:      violations == 0,
			Violations:  violations,
		}
		findings = append(findings, f)

		if f.Passed {
			logging.Debug().Str("check", f.Name).Msg("Quality check passed")
		} else {
			logging.Warn().
				Str("check", f.Name).
				Int64("violations", f.Violations).
				Msg("Quality check failed")
		}
	}

	return findings, nil
}

// AllPassed reports whether every finding passed.
func AllPassed(findings []Finding) bool {
	for _, f := range findings {
		if !f.Passed {
			return false
		}
	}
	return true
}

// FailedCount returns the number of failed findings.
func FailedCount(findings []Finding) int {
	n := 0
	for _, f := range findings {
		if !f.Passed {
			n++
		}
	}
	return n
}
