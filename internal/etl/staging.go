package etl

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/jackc/pgx/v5"

	"ecomdw/internal/logging"
	"ecomdw/internal/source"
)

// insertBatchSize is the number of rows queued per pgx batch.
const insertBatchSize = 1000

// StagingLoader reads flat CSV records and replaces the staging tables
// with them. Each run fully reloads staging; no history is kept there.
type StagingLoader struct {
	db      DB
	dataDir string
}

// NewStagingLoader creates a staging loader reading from dataDir.
func NewStagingLoader(db DB, dataDir string) *StagingLoader {
	return &StagingLoader{db: db, dataDir: dataDir}
}

// Load truncates and reloads all four staging tables from
// customers.csv, products.csv, orders.csv, and order_items.csv.
func (l *StagingLoader) Load(ctx context.Context) (LoadStats, error) {
	var stats LoadStats

	loaders := []struct {
		name string
		load func(context.Context) (LoadStats, error)
	}{
		{"customers", l.loadCustomers},
		{"products", l.loadProducts},
		{"orders", l.loadOrders},
		{"order_items", l.loadOrderItems},
	}

	for _, t := range loaders {
		s, err := t.load(ctx)
		stats.Add(s)
		if err != nil {
			return stats, fmt.Errorf("failed to load staging.%s: %w", t.name, err)
		}
		logging.Info().
			Str("table", "staging."+t.name).
			Int64("rows", s.Inserted).
			Int64("skipped", s.Skipped).
			Msg("Staging table loaded")
	}

	return stats, nil
}

func (l *StagingLoader) loadCustomers(ctx context.Context) (LoadStats, error) {
	customers, skipped, err := source.ReadCustomers(filepath.Join(l.dataDir, "customers.csv"))
	if err != nil {
		return LoadStats{}, err
	}

	stats := LoadStats{Skipped: int64(skipped)}
	if _, err := l.db.Exec(ctx, "TRUNCATE staging.customers"); err != nil {
		return stats, err
	}

	const sql = `
        INSERT INTO staging.customers
            (customer_id, first_name, last_name, email, phone, address, city,
             state, zip_code, country, registration_date, customer_segment, is_active)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)`

	batch := &pgx.Batch{}
	for _, c := range customers {
		batch.Queue(sql, c.CustomerID, c.FirstName, c.LastName, c.Email, c.Phone,
			c.Address, c.City, c.State, c.ZipCode, c.Country,
			c.RegistrationDate, c.Segment, c.IsActive)
		if batch.Len() >= insertBatchSize {
			if err := flushBatch(ctx, l.db, batch); err != nil {
				return stats, err
			}
			batch = &pgx.Batch{}
		}
	}
	if err := flushBatch(ctx, l.db, batch); err != nil {
		return stats, err
	}

	stats.Inserted = int64(len(customers))
	return stats, nil
}

func (l *StagingLoader) loadProducts(ctx context.Context) (LoadStats, error) {
	products, skipped, err := source.ReadProducts(filepath.Join(l.dataDir, "products.csv"))
	if err != nil {
		return LoadStats{}, err
	}

	stats := LoadStats{Skipped: int64(skipped)}
	if _, err := l.db.Exec(ctx, "TRUNCATE staging.products"); err != nil {
		return stats, err
	}

	const sql = `
        INSERT INTO staging.products
            (product_id, product_name, category, sub_category, brand, price,
             cost, stock_quantity, supplier_id, created_date)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`

	batch := &pgx.Batch{}
	for _, p := range products {
		batch.Queue(sql, p.ProductID, p.Name, p.Category, p.SubCategory, p.Brand,
			p.Price, p.Cost, p.StockQuantity, p.SupplierID, p.CreatedDate)
		if batch.Len() >= insertBatchSize {
			if err := flushBatch(ctx, l.db, batch); err != nil {
				return stats, err
			}
			batch = &pgx.Batch{}
		}
	}
	if err := flushBatch(ctx, l.db, batch); err != nil {
		return stats, err
	}

	stats.Inserted = int64(len(products))
	return stats, nil
}

func (l *StagingLoader) loadOrders(ctx context.Context) (LoadStats, error) {
	orders, skipped, err := source.ReadOrders(filepath.Join(l.dataDir, "orders.csv"))
	if err != nil {
		return LoadStats{}, err
	}

	stats := LoadStats{Skipped: int64(skipped)}
	if _, err := l.db.Exec(ctx, "TRUNCATE staging.orders"); err != nil {
		return stats, err
	}

	const sql = `
        INSERT INTO staging.orders
            (order_id, customer_id, order_date, order_status, payment_method,
             shipping_method, shipping_cost, tax_amount, discount_amount,
             total_amount, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)`

	batch := &pgx.Batch{}
	for _, o := range orders {
		batch.Queue(sql, o.OrderID, o.CustomerID, o.OrderDate, o.Status,
			o.PaymentMethod, o.ShippingMethod, o.ShippingCost, o.TaxAmount,
			o.DiscountAmount, o.TotalAmount, o.CreatedAt, o.UpdatedAt)
		if batch.Len() >= insertBatchSize {
			if err := flushBatch(ctx, l.db, batch); err != nil {
				return stats, err
			}
			batch = &pgx.Batch{}
		}
	}
	if err := flushBatch(ctx, l.db, batch); err != nil {
		return stats, err
	}

	stats.Inserted = int64(len(orders))
	return stats, nil
}

func (l *StagingLoader) loadOrderItems(ctx context.Context) (LoadStats, error) {
	items, skipped, err := source.ReadOrderItems(filepath.Join(l.dataDir, "order_items.csv"))
	if err != nil {
		return LoadStats{}, err
	}

	stats := LoadStats{Skipped: int64(skipped)}
	if _, err := l.db.Exec(ctx, "TRUNCATE staging.order_items"); err != nil {
		return stats, err
	}

	const sql = `
        INSERT INTO staging.order_items
            (order_item_id, order_id, product_id, quantity, unit_price,
             line_total, discount_amount)
        VALUES ($1, $2, $3, $4, $5, $6, $7)`

	batch := &pgx.Batch{}
	for _, oi := range items {
		batch.Queue(sql, oi.OrderItemID, oi.OrderID, oi.ProductID, oi.Quantity,
			oi.UnitPrice, oi.LineTotal, oi.DiscountAmount)
		if batch.Len() >= insertBatchSize {
			if err := flushBatch(ctx, l.db, batch); err != nil {
				return stats, err
			}
			batch = &pgx.Batch{}
		}
	}
	if err := flushBatch(ctx, l.db, batch); err != nil {
		return stats, err
	}

	stats.Inserted = int64(len(items))
	return stats, nil
}
