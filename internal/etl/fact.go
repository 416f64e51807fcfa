package etl

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"

	"ecomdw/internal/logging"
)

// FactLoader inserts fact rows for staging orders and order items,
// resolving each dimension reference to the version that was current at
// order time, not the version current now. Re-running against unchanged
// input inserts nothing: the staging business ids (order_id,
// order_item_id) act as natural uniqueness checks.
//
// A staging row whose references cannot be resolved is rejected and
// counted; it never aborts the batch.
type FactLoader struct {
	db DB
}

// NewFactLoader creates a fact loader.
func NewFactLoader(db DB) *FactLoader {
	return &FactLoader{db: db}
}

// Load populates fact_orders and fact_order_items.
func (l *FactLoader) Load(ctx context.Context) (LoadStats, error) {
	var stats LoadStats

	if err := l.ensureOrderDates(ctx); err != nil {
		return stats, fmt.Errorf("failed to patch date dimension: %w", err)
	}

	orderStats, err := l.loadFactOrders(ctx)
	stats.Add(orderStats)
	if err != nil {
		return stats, fmt.Errorf("failed to load fact_orders: %w", err)
	}
	logging.Info().
		Int64("inserted", orderStats.Inserted).
		Int64("skipped", orderStats.Skipped).
		Int64("unresolved", orderStats.Unresolved).
		Msg("fact_orders loaded")

	itemStats, err := l.loadFactOrderItems(ctx)
	stats.Add(itemStats)
	if err != nil {
		return stats, fmt.Errorf("failed to load fact_order_items: %w", err)
	}
	logging.Info().
		Int64("inserted", itemStats.Inserted).
		Int64("skipped", itemStats.Skipped).
		Int64("unresolved", itemStats.Unresolved).
		Msg("fact_order_items loaded")

	return stats, nil
}

// ensureOrderDates adds any staging order date missing from dim_date so
// the date foreign key always resolves.
func (l *FactLoader) ensureOrderDates(ctx context.Context) error {
	rows, err := l.db.Query(ctx, `
        SELECT DISTINCT o.order_date::date
        FROM staging.orders o
        LEFT JOIN warehouse.dim_date dd ON dd.date = o.order_date::date
        WHERE dd.date_key IS NULL
        ORDER BY 1
    `)
	if err != nil {
		return err
	}
	defer rows.Close()

	var missing []time.Time
	for rows.Next() {
		var d time.Time
		if err := rows.Scan(&d); err != nil {
			return err
		}
		missing = append(missing, d)
	}
	if err := rows.Err(); err != nil {
		return err
	}

	if len(missing) == 0 {
		return nil
	}

	logging.Warn().Int("dates", len(missing)).
		Msg("Adding order dates missing from dim_date")

	batch := &pgx.Batch{}
	for _, d := range missing {
		batch.Queue(insertDateSQL, dateArgs(makeDateRow(d))...)
	}
	return flushBatch(ctx, l.db, batch)
}

// stagedOrder is one staging order with its line item aggregates.
type stagedOrder struct {
	OrderID        int
	CustomerID     int
	OrderDate      time.Time
	Status         string
	PaymentMethod  string
	ShippingMethod string
	ShippingCost   float64
	TaxAmount      float64
	DiscountAmount float64
	TotalAmount    float64
	OrderQuantity  int
	Subtotal       float64
}

func (l *FactLoader) loadFactOrders(ctx context.Context) (LoadStats, error) {
	var stats LoadStats

	paymentKeys, err := l.methodKeys(ctx,
		"SELECT payment_method, payment_method_key FROM warehouse.dim_payment_method")
	if err != nil {
		return stats, err
	}
	shippingKeys, err := l.methodKeys(ctx,
		"SELECT shipping_method, shipping_method_key FROM warehouse.dim_shipping_method")
	if err != nil {
		return stats, err
	}

	orders, err := l.readStagedOrders(ctx)
	if err != nil {
		return stats, err
	}

	for _, o := range orders {
		if o.OrderID <= 0 {
			stats.Skipped++
			continue
		}

		customerKey, ok, err := l.customerKeyAt(ctx, o.CustomerID, o.OrderDate)
		if err != nil {
			return stats, fmt.Errorf("order %d: %w", o.OrderID, err)
		}
		paymentKey, havePayment := paymentKeys[o.PaymentMethod]
		shippingKey, haveShipping := shippingKeys[o.ShippingMethod]

		if !ok || !havePayment || !haveShipping {
			stats.Unresolved++
			logging.Warn().
				Int("order_id", o.OrderID).
				Int("customer_id", o.CustomerID).
				Bool("customer_resolved", ok).
				Bool("payment_resolved", havePayment).
				Bool("shipping_resolved", haveShipping).
				Msg("Rejecting order with unresolvable dimension reference")
			continue
		}

		tag, err := l.db.Exec(ctx, `
            INSERT INTO warehouse.fact_orders
                (order_id, order_date_key, customer_key, payment_method_key,
                 shipping_method_key, order_quantity, subtotal_amount,
                 shipping_cost, tax_amount, discount_amount, total_amount,
                 order_status)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12)
            ON CONFLICT (order_id) DO NOTHING
        `, o.OrderID, dateKey(o.OrderDate), customerKey, paymentKey,
			shippingKey, o.OrderQuantity, o.Subtotal, o.ShippingCost,
			o.TaxAmount, o.DiscountAmount, o.TotalAmount, o.Status)
		if err != nil {
			return stats, fmt.Errorf("order %d: %w", o.OrderID, err)
		}

		if tag.RowsAffected() == 0 {
			stats.Skipped++
		} else {
			stats.Inserted++
		}
	}

	return stats, nil
}

func (l *FactLoader) readStagedOrders(ctx context.Context) ([]stagedOrder, error) {
	rows, err := l.db.Query(ctx, `
        SELECT o.order_id, o.customer_id, o.order_date, o.order_status,
               o.payment_method, o.shipping_method, o.shipping_cost,
               o.tax_amount, o.discount_amount, o.total_amount,
               COUNT(oi.order_item_id), COALESCE(SUM(oi.line_total), 0)
        FROM staging.orders o
        LEFT JOIN staging.order_items oi ON oi.order_id = o.order_id
        GROUP BY o.order_id, o.customer_id, o.order_date, o.order_status,
                 o.payment_method, o.shipping_method, o.shipping_cost,
                 o.tax_amount, o.discount_amount, o.total_amount
        ORDER BY o.order_id
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []stagedOrder
	for rows.Next() {
		var o stagedOrder
		if err := rows.Scan(&o.OrderID, &o.CustomerID, &o.OrderDate, &o.Status,
			&o.PaymentMethod, &o.ShippingMethod, &o.ShippingCost, &o.TaxAmount,
			&o.DiscountAmount, &o.TotalAmount, &o.OrderQuantity,
			&o.Subtotal); err != nil {
			return nil, err
		}
		out = append(out, o)
	}
	return out, rows.Err()
}

// methodKeys loads a name-to-surrogate-key map for a static dimension.
func (l *FactLoader) methodKeys(ctx context.Context, sql string) (map[string]int, error) {
	rows, err := l.db.Query(ctx, sql)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	keys := make(map[string]int)
	for rows.Next() {
		var name string
		var key int
		if err := rows.Scan(&name, &key); err != nil {
			return nil, err
		}
		keys[name] = key
	}
	return keys, rows.Err()
}

// customerKeyAt resolves the customer dimension version that was current
// at the given order time.
func (l *FactLoader) customerKeyAt(ctx context.Context, customerID int, at time.Time) (int64, bool, error) {
	var key int64
	err := l.db.QueryRow(ctx, `
        SELECT customer_key
        FROM warehouse.dim_customer
        WHERE customer_id = $1
          AND effective_date <= $2::date
          AND (end_date IS NULL OR end_date > $2::date)
    `, customerID, at).Scan(&key)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return key, true, nil
}

// productAt resolves the product dimension version current at order time,
// returning its surrogate key and unit cost.
func (l *FactLoader) productAt(ctx context.Context, productID int, at time.Time) (int64, float64, bool, error) {
	var key int64
	var cost float64
	err := l.db.QueryRow(ctx, `
        SELECT product_key, COALESCE(cost, 0)
        FROM warehouse.dim_product
        WHERE product_id = $1
          AND effective_date <= $2::date
          AND (end_date IS NULL OR end_date > $2::date)
    `, productID, at).Scan(&key, &cost)
	if errors.Is(err, pgx.ErrNoRows) {
		return 0, 0, false, nil
	}
	if err != nil {
		return 0, 0, false, err
	}
	return key, cost, true, nil
}

// factOrderRef locates a loaded fact order for its line items.
type factOrderRef struct {
	OrderKey  int64
	DateKey   int
	OrderDate time.Time
}

func (l *FactLoader) loadFactOrderItems(ctx context.Context) (LoadStats, error) {
	var stats LoadStats

	orderRefs, err := l.factOrderRefs(ctx)
	if err != nil {
		return stats, err
	}

	items, err := l.readStagedItems(ctx)
	if err != nil {
		return stats, err
	}

	for _, oi := range items {
		ref, ok := orderRefs[oi.OrderID]
		if !ok {
			// Parent order was itself rejected or never staged.
			stats.Unresolved++
			logging.Warn().
				Str("order_item_id", oi.OrderItemID).
				Int("order_id", oi.OrderID).
				Msg("Rejecting order item without a loaded fact order")
			continue
		}

		productKey, unitCost, ok, err := l.productAt(ctx, oi.ProductID, ref.OrderDate)
		if err != nil {
			return stats, fmt.Errorf("order item %s: %w", oi.OrderItemID, err)
		}
		if !ok {
			stats.Unresolved++
			logging.Warn().
				Str("order_item_id", oi.OrderItemID).
				Int("product_id", oi.ProductID).
				Msg("Rejecting order item with unresolvable product reference")
			continue
		}

		total := lineTotal(oi.Quantity, oi.UnitPrice, oi.DiscountAmount)

		tag, err := l.db.Exec(ctx, `
            INSERT INTO warehouse.fact_order_items
                (order_item_id, order_key, product_key, order_date_key,
                 quantity, unit_price, unit_cost, line_total,
                 discount_amount, profit)
            VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
            ON CONFLICT (order_item_id) DO NOTHING
        `, oi.OrderItemID, ref.OrderKey, productKey, ref.DateKey, oi.Quantity,
			oi.UnitPrice, unitCost, total, oi.DiscountAmount,
			profit(total, oi.Quantity, unitCost))
		if err != nil {
			return stats, fmt.Errorf("order item %s: %w", oi.OrderItemID, err)
		}

		if tag.RowsAffected() == 0 {
			stats.Skipped++
		} else {
			stats.Inserted++
		}
	}

	return stats, nil
}

func (l *FactLoader) factOrderRefs(ctx context.Context) (map[int]factOrderRef, error) {
	rows, err := l.db.Query(ctx, `
        SELECT fo.order_id, fo.order_key, fo.order_date_key, dd.date
        FROM warehouse.fact_orders fo
        JOIN warehouse.dim_date dd ON dd.date_key = fo.order_date_key
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	refs := make(map[int]factOrderRef)
	for rows.Next() {
		var orderID int
		var ref factOrderRef
		if err := rows.Scan(&orderID, &ref.OrderKey, &ref.DateKey, &ref.OrderDate); err != nil {
			return nil, err
		}
		refs[orderID] = ref
	}
	return refs, rows.Err()
}

// stagedItem is one staging order item row.
type stagedItem struct {
	OrderItemID    string
	OrderID        int
	ProductID      int
	Quantity       int
	UnitPrice      float64
	DiscountAmount float64
}

func (l *FactLoader) readStagedItems(ctx context.Context) ([]stagedItem, error) {
	rows, err := l.db.Query(ctx, `
        SELECT order_item_id, order_id, product_id, quantity, unit_price,
               discount_amount
        FROM staging.order_items
        ORDER BY order_item_id
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []stagedItem
	for rows.Next() {
		var oi stagedItem
		if err := rows.Scan(&oi.OrderItemID, &oi.OrderID, &oi.ProductID,
			&oi.Quantity, &oi.UnitPrice, &oi.DiscountAmount); err != nil {
			return nil, err
		}
		out = append(out, oi)
	}
	return out, rows.Err()
}

// lineTotal computes the extended line amount:
// quantity * unit_price - discount_amount.
func lineTotal(quantity int, unitPrice, discount float64) float64 {
	return round2(float64(quantity)*unitPrice - discount)
}

// profit computes the line profit: line_total - quantity * unit_cost.
func profit(lineTotal float64, quantity int, unitCost float64) float64 {
	return round2(lineTotal - float64(quantity)*unitCost)
}

// round2 rounds a monetary amount to the cent.
func round2(v float64) float64 {
	return math.Round(v*100) / 100
}
