//go:build integration

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
	"os"
	"path/filepath"
	"testing"
	"time"

	"ecomdw/internal/testutil"
	"ecomdw/internal/warehouse"
)

// writeCSVs writes a small hand-crafted source snapshot into dir.
// Customer 42 is the one whose history the tests exercise.
func writeCSVs(t *testing.T, dir, segment string, includeCustomer42 bool) {
	t.Helper()

	customers := "customer_id,first_name,last_name,email,phone,address,city,state,zip_code,country,registration_date,customer_segment,is_active\n" +
		"7,Ada,Byron,ada@example.com,555-0100,1 Main St,Austin,TX,78701,USA,2023-01-05,Retail,true\n"
	if includeCustomer42 {
		customers += "42,Grace,Hopper,grace@example.com,555-0142,9 Harbor Rd,Boston,MA,02101,USA,2023-02-01," + segment + ",true\n"
	}

	products := "product_id,product_name,category,sub_category,brand,price,cost,stock_quantity,supplier_id,created_date\n" +
		"100,Widget,Gadgets,Small Gadgets,Acme,19.99,8.50,500,3,2023-01-10\n" +
		"101,Sprocket,Gadgets,Small Gadgets,Acme,49.99,20.00,200,3,2023-01-10\n"

	orders := "order_id,customer_id,order_date,order_status,payment_method,shipping_method,shipping_cost,tax_amount,discount_amount,total_amount,created_at,updated_at\n" +
		"1000,42,2023-03-15 10:30:00,Completed,Credit Card,Standard,5.99,1.60,0.00,47.57,2023-03-15 10:30:00,2023-03-15 10:30:00\n" +
		"1001,7,2023-04-01 09:00:00,Pending,PayPal,Express,12.99,4.00,5.00,61.97,2023-04-01 09:00:00,2023-04-01 09:00:00\n"

	items := "order_item_id,order_id,product_id,quantity,unit_price,line_total,discount_amount\n" +
		"1000_1,1000,100,2,19.99,39.98,0.00\n" +
		"1001_1,1001,101,1,49.99,49.98,0.01\n"

	files := map[string]string{
		"customers.csv":   customers,
		"products.csv":    products,
		"orders.csv":      orders,
		"order_items.csv": items,
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("Failed to write %s: %v", name, err)
		}
	}
}

func date(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}

func TestPipelineEndToEnd(t *testing.T) {
	baseConnStr := testutil.SkipIfNoPostgres(t)

	testConnStr := testutil.CreateTestDB(t, baseConnStr, "pipeline")
	dbName := testutil.GetDBNameFromConnStr(testConnStr)
	cleanup := testutil.NewTestCleanup(t, baseConnStr, dbName)
	defer cleanup.Cleanup()

	pool := testutil.ConnectTestDB(t, testConnStr)
	cleanup.SetPool(pool)

	ctx := context.Background()
	if err := warehouse.CreateSchemas(ctx, pool); err != nil {
		t.Fatalf("Failed to create schemas: %v", err)
	}

	dataDir := t.TempDir()
	writeCSVs(t, dataDir, "Retail", true)

	cfg := PipelineConfig{
		DataDir:      dataDir,
		RunDate:      date(2023, time.June, 1),
		DateDimStart: date(2023, time.January, 1),
		DateDimEnd:   date(2023, time.December, 31),
	}

	report, err := NewPipeline(pool, cfg).Run(ctx)
	if err != nil {
		t.Fatalf("First run failed: %v", err)
	}
	if len(report.Stages) != 5 {
		t.Fatalf("Expected 5 stages, got %d", len(report.Stages))
	}
	if !AllPassed(report.Findings) {
		for _, f := range report.Findings {
			if !f.Passed {
				t.Errorf("Quality check %s failed with %d violations", f.Name, f.Violations)
			}
		}
	}

	// Customer 42 has one version, effective from registration so the
	// historical order resolves.
	var versions int
	var effective time.Time
	var isCurrent bool
	err = pool.QueryRow(ctx, `
        SELECT COUNT(*), MIN(effective_date), BOOL_AND(is_current)
        FROM warehouse.dim_customer WHERE customer_id = 42
    `).Scan(&versions, &effective, &isCurrent)
	if err != nil {
		t.Fatalf("Failed to query dim_customer: %v", err)
	}
	if versions != 1 {
		t.Errorf("Expected 1 version of customer 42, got %d", versions)
	}
	if !effective.Equal(date(2023, time.February, 1)) {
		t.Errorf("Expected effective_date 2023-02-01, got %v", effective)
	}
	if !isCurrent {
		t.Error("Expected customer 42 version to be current")
	}

	var orderCount, itemCount int
	if err := pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM warehouse.fact_orders").Scan(&orderCount); err != nil {
		t.Fatalf("Failed to count fact_orders: %v", err)
	}
	if err := pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM warehouse.fact_order_items").Scan(&itemCount); err != nil {
		t.Fatalf("Failed to count fact_order_items: %v", err)
	}
	if orderCount != 2 || itemCount != 2 {
		t.Errorf("Expected 2 orders and 2 items, got %d and %d", orderCount, itemCount)
	}

	// An identical re-run inserts nothing new.
	report, err = NewPipeline(pool, cfg).Run(ctx)
	if err != nil {
		t.Fatalf("Re-run failed: %v", err)
	}
	if err := pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM warehouse.fact_orders").Scan(&orderCount); err != nil {
		t.Fatalf("Failed to count fact_orders: %v", err)
	}
	if orderCount != 2 {
		t.Errorf("Expected re-run to leave 2 orders, got %d", orderCount)
	}
	err = pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM warehouse.dim_customer WHERE customer_id = 42").Scan(&versions)
	if err != nil {
		t.Fatalf("Failed to query dim_customer: %v", err)
	}
	if versions != 1 {
		t.Errorf("Expected re-run to leave 1 version of customer 42, got %d", versions)
	}
}

func TestPipelineSCD2Versioning(t *testing.T) {
	baseConnStr := testutil.SkipIfNoPostgres(t)

	testConnStr := testutil.CreateTestDB(t, baseConnStr, "scd2")
	dbName := testutil.GetDBNameFromConnStr(testConnStr)
	cleanup := testutil.NewTestCleanup(t, baseConnStr, dbName)
	defer cleanup.Cleanup()

	pool := testutil.ConnectTestDB(t, testConnStr)
	cleanup.SetPool(pool)

	ctx := context.Background()
	if err := warehouse.CreateSchemas(ctx, pool); err != nil {
		t.Fatalf("Failed to create schemas: %v", err)
	}

	dataDir := t.TempDir()
	cfg := PipelineConfig{
		DataDir:      dataDir,
		RunDate:      date(2023, time.June, 1),
		DateDimStart: date(2023, time.January, 1),
		DateDimEnd:   date(2023, time.December, 31),
	}

	writeCSVs(t, dataDir, "Retail", true)
	if _, err := NewPipeline(pool, cfg).Run(ctx); err != nil {
		t.Fatalf("First run failed: %v", err)
	}

	// The customer changes segment; the second run closes the first
	// version and opens a new one effective on the run date.
	writeCSVs(t, dataDir, "Premium", true)
	secondRun := cfg
	secondRun.RunDate = date(2023, time.July, 1)
	if _, err := NewPipeline(pool, secondRun).Run(ctx); err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	rows, err := pool.Query(ctx, `
        SELECT customer_segment, effective_date, end_date, is_current
        FROM warehouse.dim_customer
        WHERE customer_id = 42
        ORDER BY effective_date
    `)
	if err != nil {
		t.Fatalf("Failed to query dim_customer: %v", err)
	}
	defer rows.Close()

	type version struct {
		Segment   string
		Effective time.Time
		End       *time.Time
		Current   bool
	}
	var versions []version
	for rows.Next() {
		var v version
		if err := rows.Scan(&v.Segment, &v.Effective, &v.End, &v.Current); err != nil {
			t.Fatalf("Failed to scan version: %v", err)
		}
		versions = append(versions, v)
	}
	if len(versions) != 2 {
		t.Fatalf("Expected 2 versions of customer 42, got %d", len(versions))
	}

	old, cur := versions[0], versions[1]
	if old.Segment != "Retail" || old.Current {
		t.Errorf("Expected closed Retail version, got %+v", old)
	}
	if old.End == nil || !old.End.Equal(date(2023, time.July, 1)) {
		t.Errorf("Expected old version closed on 2023-07-01, got %v", old.End)
	}
	if cur.Segment != "Premium" || !cur.Current || cur.End != nil {
		t.Errorf("Expected open Premium version, got %+v", cur)
	}
	if !cur.Effective.Equal(date(2023, time.July, 1)) {
		t.Errorf("Expected new version effective 2023-07-01, got %v", cur.Effective)
	}

	// The March order predates the change, so its fact row keeps
	// pointing at the Retail version.
	var segment string
	err = pool.QueryRow(ctx, `
        SELECT dc.customer_segment
        FROM warehouse.fact_orders fo
        JOIN warehouse.dim_customer dc ON dc.customer_key = fo.customer_key
        WHERE fo.order_id = 1000
    `).Scan(&segment)
	if err != nil {
		t.Fatalf("Failed to query fact order: %v", err)
	}
	if segment != "Retail" {
		t.Errorf("Expected order 1000 to reference the Retail version, got %s", segment)
	}
}

func TestPipelineOmittedCustomerUntouched(t *testing.T) {
	baseConnStr := testutil.SkipIfNoPostgres(t)

	testConnStr := testutil.CreateTestDB(t, baseConnStr, "omit")
	dbName := testutil.GetDBNameFromConnStr(testConnStr)
	cleanup := testutil.NewTestCleanup(t, baseConnStr, dbName)
	defer cleanup.Cleanup()

	pool := testutil.ConnectTestDB(t, testConnStr)
	cleanup.SetPool(pool)

	ctx := context.Background()
	if err := warehouse.CreateSchemas(ctx, pool); err != nil {
		t.Fatalf("Failed to create schemas: %v", err)
	}

	dataDir := t.TempDir()
	cfg := PipelineConfig{
		DataDir:      dataDir,
		RunDate:      date(2023, time.June, 1),
		DateDimStart: date(2023, time.January, 1),
		DateDimEnd:   date(2023, time.December, 31),
	}

	writeCSVs(t, dataDir, "Retail", true)
	if _, err := NewPipeline(pool, cfg).Run(ctx); err != nil {
		t.Fatalf("First run failed: %v", err)
	}

	// Customer 42 disappears from the snapshot. Its dimension row must
	// stay current and untouched.
	writeCSVs(t, dataDir, "Retail", false)
	secondRun := cfg
	secondRun.RunDate = date(2023, time.July, 1)
	if _, err := NewPipeline(pool, secondRun).Run(ctx); err != nil {
		t.Fatalf("Second run failed: %v", err)
	}

	var versions int
	var isCurrent bool
	var endIsNull bool
	err := pool.QueryRow(ctx, `
        SELECT COUNT(*), BOOL_AND(is_current), BOOL_AND(end_date IS NULL)
        FROM warehouse.dim_customer WHERE customer_id = 42
    `).Scan(&versions, &isCurrent, &endIsNull)
	if err != nil {
		t.Fatalf("Failed to query dim_customer: %v", err)
	}
	if versions != 1 || !isCurrent || !endIsNull {
		t.Errorf("Expected omitted customer left as one open current version, got count=%d current=%v endNull=%v",
			versions, isCurrent, endIsNull)
	}
}

func TestPipelineMarts(t *testing.T) {
	baseConnStr := testutil.SkipIfNoPostgres(t)

	testConnStr := testutil.CreateTestDB(t, baseConnStr, "marts")
	dbName := testutil.GetDBNameFromConnStr(testConnStr)
	cleanup := testutil.NewTestCleanup(t, baseConnStr, dbName)
	defer cleanup.Cleanup()

	pool := testutil.ConnectTestDB(t, testConnStr)
	cleanup.SetPool(pool)

	ctx := context.Background()
	if err := warehouse.CreateSchemas(ctx, pool); err != nil {
		t.Fatalf("Failed to create schemas: %v", err)
	}

	dataDir := t.TempDir()
	writeCSVs(t, dataDir, "Retail", true)

	cfg := PipelineConfig{
		DataDir:      dataDir,
		RunDate:      date(2023, time.June, 1),
		DateDimStart: date(2023, time.January, 1),
		DateDimEnd:   date(2023, time.December, 31),
	}
	if _, err := NewPipeline(pool, cfg).Run(ctx); err != nil {
		t.Fatalf("Pipeline run failed: %v", err)
	}

	var tier string
	var totalOrders int
	err := pool.QueryRow(ctx, `
        SELECT customer_tier, total_orders
        FROM warehouse.mart_customer_metrics WHERE customer_id = 42
    `).Scan(&tier, &totalOrders)
	if err != nil {
		t.Fatalf("Failed to query customer metrics: %v", err)
	}
	if totalOrders != 1 || tier != "One-time" {
		t.Errorf("Expected 1 order and One-time tier, got %d and %s", totalOrders, tier)
	}

	var rank int
	err = pool.QueryRow(ctx, `
        SELECT category_rank FROM warehouse.mart_product_performance
        WHERE product_id = 101
    `).Scan(&rank)
	if err != nil {
		t.Fatalf("Failed to query product performance: %v", err)
	}
	if rank != 1 {
		t.Errorf("Expected product 101 ranked 1 in its category, got %d", rank)
	}

	var summaryRows int
	if err := pool.QueryRow(ctx,
		"SELECT COUNT(*) FROM warehouse.mart_sales_summary").Scan(&summaryRows); err != nil {
		t.Fatalf("Failed to count sales summary: %v", err)
	}
	if summaryRows == 0 {
		t.Error("Expected sales summary rows, got none")
	}
}
