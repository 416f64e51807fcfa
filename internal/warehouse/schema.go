// Package warehouse declares the staging and warehouse relations and
// manages their lifecycle. The table and column names are the
// compatibility contract with existing deployments and reporting tools.
package warehouse

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// createStagingSQL creates the staging schema. Staging rows are flat,
// ungoverned snapshots keyed by natural business ids and are fully
// replaced on every pipeline run.
const createStagingSQL = `
CREATE SCHEMA IF NOT EXISTS staging;

CREATE TABLE IF NOT EXISTS staging.customers (
    customer_id       INTEGER,
    first_name        VARCHAR(50),
    last_name         VARCHAR(50),
    email             VARCHAR(255),
    phone             VARCHAR(50),
    address           VARCHAR(255),
    city              VARCHAR(100),
    state             VARCHAR(50),
    zip_code          VARCHAR(20),
    country           VARCHAR(50),
    registration_date DATE,
    customer_segment  VARCHAR(20),
    is_active         BOOLEAN
);

CREATE TABLE IF NOT EXISTS staging.products (
    product_id     INTEGER,
    product_name   VARCHAR(200),
    category       VARCHAR(100),
    sub_category   VARCHAR(150),
    brand          VARCHAR(100),
    price          NUMERIC(10,2),
    cost           NUMERIC(10,2),
    stock_quantity INTEGER,
    supplier_id    INTEGER,
    created_date   DATE
);

CREATE TABLE IF NOT EXISTS staging.orders (
    order_id        INTEGER,
    customer_id     INTEGER,
    order_date      TIMESTAMP,
    order_status    VARCHAR(20),
    payment_method  VARCHAR(50),
    shipping_method VARCHAR(50),
    shipping_cost   NUMERIC(10,2),
    tax_amount      NUMERIC(10,2),
    discount_amount NUMERIC(10,2),
    total_amount    NUMERIC(10,2),
    created_at      TIMESTAMP,
    updated_at      TIMESTAMP
);

CREATE TABLE IF NOT EXISTS staging.order_items (
    order_item_id   VARCHAR(50),
    order_id        INTEGER,
    product_id      INTEGER,
    quantity        INTEGER,
    unit_price      NUMERIC(10,2),
    line_total      NUMERIC(10,2),
    discount_amount NUMERIC(10,2)
);
`

// createWarehouseSQL creates the star schema. Dimension surrogate keys are
// generated sequences; dim_customer and dim_product keep SCD Type 2
// history via (effective_date, end_date, is_current).
const createWarehouseSQL = `
CREATE SCHEMA IF NOT EXISTS warehouse;

CREATE TABLE IF NOT EXISTS warehouse.dim_customer (
    customer_key      BIGSERIAL PRIMARY KEY,
    customer_id       INTEGER NOT NULL,
    first_name        VARCHAR(50),
    last_name         VARCHAR(50),
    email             VARCHAR(255),
    phone             VARCHAR(50),
    address           VARCHAR(255),
    city              VARCHAR(100),
    state             VARCHAR(50),
    zip_code          VARCHAR(20),
    country           VARCHAR(50),
    customer_segment  VARCHAR(20),
    is_active         BOOLEAN,
    registration_date DATE,
    effective_date    DATE NOT NULL,
    end_date          DATE,
    is_current        BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_dim_customer_current
    ON warehouse.dim_customer (customer_id) WHERE is_current;
CREATE INDEX IF NOT EXISTS idx_dim_customer_id
    ON warehouse.dim_customer (customer_id);

CREATE TABLE IF NOT EXISTS warehouse.dim_product (
    product_key    BIGSERIAL PRIMARY KEY,
    product_id     INTEGER NOT NULL,
    product_name   VARCHAR(200),
    category       VARCHAR(100),
    sub_category   VARCHAR(150),
    brand          VARCHAR(100),
    price          NUMERIC(10,2),
    cost           NUMERIC(10,2),
    effective_date DATE NOT NULL,
    end_date       DATE,
    is_current     BOOLEAN NOT NULL DEFAULT TRUE
);

CREATE UNIQUE INDEX IF NOT EXISTS uq_dim_product_current
    ON warehouse.dim_product (product_id) WHERE is_current;
CREATE INDEX IF NOT EXISTS idx_dim_product_id
    ON warehouse.dim_product (product_id);

CREATE TABLE IF NOT EXISTS warehouse.dim_date (
    date_key     INTEGER PRIMARY KEY,
    date         DATE NOT NULL,
    day_of_week  INTEGER NOT NULL,
    day_name     VARCHAR(10) NOT NULL,
    day_of_month INTEGER NOT NULL,
    day_of_year  INTEGER NOT NULL,
    week_of_year INTEGER NOT NULL,
    month        INTEGER NOT NULL,
    month_name   VARCHAR(10) NOT NULL,
    quarter      INTEGER NOT NULL,
    year         INTEGER NOT NULL,
    is_weekend   BOOLEAN NOT NULL,
    is_holiday   BOOLEAN NOT NULL DEFAULT FALSE
);

CREATE TABLE IF NOT EXISTS warehouse.dim_payment_method (
    payment_method_key SERIAL PRIMARY KEY,
    payment_method     VARCHAR(50) NOT NULL UNIQUE,
    payment_type       VARCHAR(20) NOT NULL,
    processing_fee_pct NUMERIC(5,2) NOT NULL
);

CREATE TABLE IF NOT EXISTS warehouse.dim_shipping_method (
    shipping_method_key SERIAL PRIMARY KEY,
    shipping_method     VARCHAR(50) NOT NULL UNIQUE,
    estimated_days      INTEGER NOT NULL,
    base_cost           NUMERIC(10,2) NOT NULL
);

CREATE TABLE IF NOT EXISTS warehouse.fact_orders (
    order_key           BIGSERIAL PRIMARY KEY,
    order_id            INTEGER NOT NULL UNIQUE,
    order_date_key      INTEGER NOT NULL REFERENCES warehouse.dim_date (date_key),
    customer_key        BIGINT NOT NULL REFERENCES warehouse.dim_customer (customer_key),
    payment_method_key  INTEGER NOT NULL REFERENCES warehouse.dim_payment_method (payment_method_key),
    shipping_method_key INTEGER NOT NULL REFERENCES warehouse.dim_shipping_method (shipping_method_key),
    order_quantity      INTEGER NOT NULL,
    subtotal_amount     NUMERIC(10,2) NOT NULL,
    shipping_cost       NUMERIC(10,2) NOT NULL,
    tax_amount          NUMERIC(10,2) NOT NULL,
    discount_amount     NUMERIC(10,2) NOT NULL,
    total_amount        NUMERIC(10,2) NOT NULL,
    order_status        VARCHAR(20) NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fact_orders_customer
    ON warehouse.fact_orders (customer_key);
CREATE INDEX IF NOT EXISTS idx_fact_orders_date
    ON warehouse.fact_orders (order_date_key);

CREATE TABLE IF NOT EXISTS warehouse.fact_order_items (
    order_item_key  BIGSERIAL PRIMARY KEY,
    order_item_id   VARCHAR(50) NOT NULL UNIQUE,
    order_key       BIGINT NOT NULL REFERENCES warehouse.fact_orders (order_key),
    product_key     BIGINT NOT NULL REFERENCES warehouse.dim_product (product_key),
    order_date_key  INTEGER NOT NULL REFERENCES warehouse.dim_date (date_key),
    quantity        INTEGER NOT NULL,
    unit_price      NUMERIC(10,2) NOT NULL,
    unit_cost       NUMERIC(10,2) NOT NULL,
    line_total      NUMERIC(10,2) NOT NULL,
    discount_amount NUMERIC(10,2) NOT NULL,
    profit          NUMERIC(10,2) NOT NULL
);

CREATE INDEX IF NOT EXISTS idx_fact_order_items_order
    ON warehouse.fact_order_items (order_key);
CREATE INDEX IF NOT EXISTS idx_fact_order_items_product
    ON warehouse.fact_order_items (product_key);
`

// createMartsSQL creates the analytics mart tables. Marts are derived and
// recomputed wholesale on each run; they carry no independent identity
// beyond the aggregation key.
const createMartsSQL = `
CREATE TABLE IF NOT EXISTS warehouse.mart_customer_metrics (
    customer_id      INTEGER PRIMARY KEY,
    customer_name    VARCHAR(120),
    customer_segment VARCHAR(20),
    total_orders     BIGINT NOT NULL,
    lifetime_value   NUMERIC(12,2) NOT NULL,
    avg_order_value  NUMERIC(12,2) NOT NULL,
    first_order_date DATE NOT NULL,
    last_order_date  DATE NOT NULL,
    tenure_days      INTEGER NOT NULL,
    customer_tier    VARCHAR(10) NOT NULL
);

CREATE TABLE IF NOT EXISTS warehouse.mart_product_performance (
    product_id        INTEGER PRIMARY KEY,
    product_name      VARCHAR(200),
    category          VARCHAR(100),
    units_sold        BIGINT NOT NULL,
    revenue           NUMERIC(12,2) NOT NULL,
    profit            NUMERIC(12,2) NOT NULL,
    avg_selling_price NUMERIC(12,2) NOT NULL,
    profit_margin_pct NUMERIC(6,2) NOT NULL,
    category_rank     INTEGER NOT NULL
);

CREATE TABLE IF NOT EXISTS warehouse.mart_sales_summary (
    year         INTEGER NOT NULL,
    quarter      INTEGER NOT NULL,
    month        INTEGER NOT NULL,
    category     VARCHAR(100) NOT NULL,
    sub_category VARCHAR(150) NOT NULL,
    order_count  BIGINT NOT NULL,
    units_sold   BIGINT NOT NULL,
    revenue      NUMERIC(12,2) NOT NULL,
    profit       NUMERIC(12,2) NOT NULL,
    PRIMARY KEY (year, month, category, sub_category)
);
`

const dropSchemasSQL = `
DROP SCHEMA IF EXISTS warehouse CASCADE;
DROP SCHEMA IF EXISTS staging CASCADE;
`

// CreateSchemas creates the staging schema, the star schema, and the mart
// tables. All statements are idempotent.
func CreateSchemas(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, createStagingSQL); err != nil {
		return fmt.Errorf("failed to create staging schema: %w", err)
	}
	if _, err := pool.Exec(ctx, createWarehouseSQL); err != nil {
		return fmt.Errorf("failed to create warehouse schema: %w", err)
	}
	if _, err := pool.Exec(ctx, createMartsSQL); err != nil {
		return fmt.Errorf("failed to create mart tables: %w", err)
	}
	return nil
}

// DropSchemas drops the staging and warehouse schemas and everything in them.
func DropSchemas(ctx context.Context, pool *pgxpool.Pool) error {
	if _, err := pool.Exec(ctx, dropSchemasSQL); err != nil {
		return fmt.Errorf("failed to drop schemas: %w", err)
	}
	return nil
}
