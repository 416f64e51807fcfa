package etl

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/jackc/pgx/v5"

	"ecomdw/internal/logging"
)

// Mart is one analytics table derived from the warehouse. Inputs name
// the marts it reads from; marts with no inputs read the warehouse
// directly.
type Mart struct {
	Name   string
	Table  string
	Inputs []string

	refresh func(ctx context.Context, db DB) (int64, error)
}

// Marts returns the mart registry in declaration order.
func Marts() []Mart {
	return []Mart{
		{
			Name:    "customer_metrics",
			Table:   "warehouse.mart_customer_metrics",
			refresh: refreshCustomerMetrics,
		},
		{
			Name:    "product_performance",
			Table:   "warehouse.mart_product_performance",
			refresh: refreshProductPerformance,
		},
		{
			Name:    "sales_summary",
			Table:   "warehouse.mart_sales_summary",
			refresh: refreshSalesSummary,
		},
	}
}

// refreshOrder returns the marts sorted so that every mart appears
// after all of its inputs. A cycle or an unknown input is an error.
func refreshOrder(marts []Mart) ([]Mart, error) {
	byName := make(map[string]Mart, len(marts))
	for _, m := range marts {
		byName[m.Name] = m
	}

	const (
		unvisited = iota
		visiting
		done
	)
	state := make(map[string]int, len(marts))
	ordered := make([]Mart, 0, len(marts))

	var visit func(name string) error
	visit = func(name string) error {
		switch state[name] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("mart dependency cycle through %s", name)
		}
		m, ok := byName[name]
		if !ok {
			return fmt.Errorf("unknown mart input %s", name)
		}
		state[name] = visiting
		for _, in := range m.Inputs {
			if err := visit(in); err != nil {
				return err
			}
		}
		state[name] = done
		ordered = append(ordered, m)
		return nil
	}

	for _, m := range marts {
		if err := visit(m.Name); err != nil {
			return nil, err
		}
	}
	return ordered, nil
}

// MartRefresher rebuilds the analytics marts from the warehouse.
type MartRefresher struct {
	db DB
}

// NewMartRefresher creates a mart refresher.
func NewMartRefresher(db DB) *MartRefresher {
	return &MartRefresher{db: db}
}

// Refresh rebuilds every mart in dependency order and returns the
// total number of rows written.
func (r *MartRefresher) Refresh(ctx context.Context) (int64, error) {
	ordered, err := refreshOrder(Marts())
	if err != nil {
		return 0, err
	}

	var total int64
	for _, m := range ordered {
		start := time.Now()
		rows, err := m.refresh(ctx, r.db)
		if err != nil {
			return total, fmt.Errorf("refresh %s: %w", m.Name, err)
		}
		total += rows
		logging.Info().
			Str("mart", m.Name).
			Int64("rows", rows).
			Dur("elapsed", time.Since(start)).
			Msg("Mart refreshed")
	}
	return total, nil
}

// customerTier buckets a customer by order count. Boundaries are
// inclusive and checked top down.
func customerTier(totalOrders int) string {
	switch {
	case totalOrders >= 10:
		return "VIP"
	case totalOrders >= 5:
		return "Loyal"
	case totalOrders >= 2:
		return "Repeat"
	default:
		return "One-time"
	}
}

// profitMargin returns profit as a percentage of revenue, or zero when
// there is no revenue.
func profitMargin(profit, revenue float64) float64 {
	if revenue == 0 {
		return 0
	}
	return round2(profit / revenue * 100)
}

// competitionRanks assigns standard competition ranking to the given
// values: ties share a rank and the next distinct value skips past
// them. The result is indexed like the input.
func competitionRanks(values []float64) []int {
	ranks := make([]int, len(values))
	for i, v := range values {
		rank := 1
		for _, other := range values {
			if other > v {
				rank++
			}
		}
		ranks[i] = rank
	}
	return ranks
}

type customerMetricsRow struct {
	CustomerID     int
	CustomerName   string
	Segment        string
	TotalOrders    int
	LifetimeValue  float64
	AvgOrderValue  float64
	FirstOrderDate time.Time
	LastOrderDate  time.Time
}

// Metrics attribute every historical order to the customer's current
// version so a customer appears once regardless of SCD history.
const customerMetricsSQL = `
    SELECT dcur.customer_id,
           dcur.first_name || ' ' || dcur.last_name,
           dcur.customer_segment,
           COUNT(*)::int,
           COALESCE(SUM(fo.total_amount), 0),
           COALESCE(AVG(fo.total_amount), 0),
           MIN(dd.date),
           MAX(dd.date)
    FROM warehouse.fact_orders fo
    JOIN warehouse.dim_customer dv ON dv.customer_key = fo.customer_key
    JOIN warehouse.dim_customer dcur
        ON dcur.customer_id = dv.customer_id AND dcur.is_current
    JOIN warehouse.dim_date dd ON dd.date_key = fo.order_date_key
    GROUP BY dcur.customer_id, dcur.first_name, dcur.last_name,
             dcur.customer_segment`

func refreshCustomerMetrics(ctx context.Context, db DB) (int64, error) {
	rows, err := db.Query(ctx, customerMetricsSQL)
	if err != nil {
		return 0, err
	}

	var metrics []customerMetricsRow
	for rows.Next() {
		var m customerMetricsRow
		err := rows.Scan(&m.CustomerID, &m.CustomerName, &m.Segment,
			&m.TotalOrders, &m.LifetimeValue, &m.AvgOrderValue,
			&m.FirstOrderDate, &m.LastOrderDate)
		if err != nil {
			rows.Close()
			return 0, err
		}
		metrics = append(metrics, m)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	if _, err := db.Exec(ctx, "TRUNCATE TABLE warehouse.mart_customer_metrics"); err != nil {
		return 0, err
	}

	const insertSQL = `
        INSERT INTO warehouse.mart_customer_metrics (
            customer_id, customer_name, customer_segment, total_orders,
            lifetime_value, avg_order_value, first_order_date,
            last_order_date, tenure_days, customer_tier
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	batch := &pgx.Batch{}
	for _, m := range metrics {
		tenure := int(m.LastOrderDate.Sub(m.FirstOrderDate).Hours() / 24)
		batch.Queue(insertSQL,
			m.CustomerID, m.CustomerName, m.Segment, m.TotalOrders,
			round2(m.LifetimeValue), round2(m.AvgOrderValue),
			m.FirstOrderDate, m.LastOrderDate, tenure,
			customerTier(m.TotalOrders))
		if batch.Len() >= insertBatchSize {
			if err := flushBatch(ctx, db, batch); err != nil {
				return 0, err
			}
			batch = &pgx.Batch{}
		}
	}
	if err := flushBatch(ctx, db, batch); err != nil {
		return 0, err
	}
	return int64(len(metrics)), nil
}

type productPerformanceRow struct {
	ProductID   int
	ProductName string
	Category    string
	UnitsSold   int
	Revenue     float64
	Profit      float64
}

const productPerformanceSQL = `
    SELECT dcur.product_id,
           dcur.product_name,
           dcur.category,
           COALESCE(SUM(foi.quantity), 0)::int,
           COALESCE(SUM(foi.line_total), 0),
           COALESCE(SUM(foi.profit), 0)
    FROM warehouse.fact_order_items foi
    JOIN warehouse.dim_product dv ON dv.product_key = foi.product_key
    JOIN warehouse.dim_product dcur
        ON dcur.product_id = dv.product_id AND dcur.is_current
    GROUP BY dcur.product_id, dcur.product_name, dcur.category`

func refreshProductPerformance(ctx context.Context, db DB) (int64, error) {
	rows, err := db.Query(ctx, productPerformanceSQL)
	if err != nil {
		return 0, err
	}

	var perf []productPerformanceRow
	for rows.Next() {
		var p productPerformanceRow
		err := rows.Scan(&p.ProductID, &p.ProductName, &p.Category,
			&p.UnitsSold, &p.Revenue, &p.Profit)
		if err != nil {
			rows.Close()
			return 0, err
		}
		perf = append(perf, p)
	}
	rows.Close()
	if err := rows.Err(); err != nil {
		return 0, err
	}

	// Rank products by revenue within their category.
	byCategory := make(map[string][]int)
	for i, p := range perf {
		byCategory[p.Category] = append(byCategory[p.Category], i)
	}
	categories := make([]string, 0, len(byCategory))
	for cat := range byCategory {
		categories = append(categories, cat)
	}
	sort.Strings(categories)

	ranks := make([]int, len(perf))
	for _, cat := range categories {
		idx := byCategory[cat]
		revenues := make([]float64, len(idx))
		for j, i := range idx {
			revenues[j] = perf[i].Revenue
		}
		for j, rank := range competitionRanks(revenues) {
			ranks[idx[j]] = rank
		}
	}

	if _, err := db.Exec(ctx, "TRUNCATE TABLE warehouse.mart_product_performance"); err != nil {
		return 0, err
	}

	const insertSQL = `
        INSERT INTO warehouse.mart_product_performance (
            product_id, product_name, category, units_sold, revenue,
            profit, avg_selling_price, profit_margin_pct, category_rank
        ) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	batch := &pgx.Batch{}
	for i, p := range perf {
		avgPrice := 0.0
		if p.UnitsSold > 0 {
			avgPrice = round2(p.Revenue / float64(p.UnitsSold))
		}
		batch.Queue(insertSQL,
			p.ProductID, p.ProductName, p.Category, p.UnitsSold,
			round2(p.Revenue), round2(p.Profit), avgPrice,
			profitMargin(p.Profit, p.Revenue), ranks[i])
		if batch.Len() >= insertBatchSize {
			if err := flushBatch(ctx, db, batch); err != nil {
				return 0, err
			}
			batch = &pgx.Batch{}
		}
	}
	if err := flushBatch(ctx, db, batch); err != nil {
		return 0, err
	}
	return int64(len(perf)), nil
}

const salesSummarySQL = `
    INSERT INTO warehouse.mart_sales_summary (
        year, quarter, month, category, sub_category,
        order_count, units_sold, revenue, profit
    )
    SELECT dd.year,
           dd.quarter,
           dd.month,
           dp.category,
           dp.sub_category,
           COUNT(DISTINCT foi.order_key),
           SUM(foi.quantity),
           ROUND(SUM(foi.line_total)::numeric, 2),
           ROUND(SUM(foi.profit)::numeric, 2)
    FROM warehouse.fact_order_items foi
    JOIN warehouse.dim_product dp ON dp.product_key = foi.product_key
    JOIN warehouse.dim_date dd ON dd.date_key = foi.order_date_key
    GROUP BY dd.year, dd.quarter, dd.month, dp.category, dp.sub_category`

func refreshSalesSummary(ctx context.Context, db DB) (int64, error) {
	if _, err := db.Exec(ctx, "TRUNCATE TABLE warehouse.mart_sales_summary"); err != nil {
		return 0, err
	}
	tag, err := db.Exec(ctx, salesSummarySQL)
	if err != nil {
		return 0, err
	}
	return tag.RowsAffected(), nil
}
