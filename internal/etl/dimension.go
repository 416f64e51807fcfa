package etl

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/jackc/pgx/v5"

	"ecomdw/internal/logging"
	"ecomdw/internal/source"
)

// DimensionLoader upserts warehouse dimensions from the staging snapshot.
// Customer and product follow SCD Type 2: at most one current row per
// business id, history preserved as closed version rows. The static
// dimensions (date, payment method, shipping method) are loaded once.
//
// Entities present in the warehouse but absent from the staging batch are
// left untouched; disappearance from a snapshot never closes a version.
type DimensionLoader struct {
	db        DB
	runDate   time.Time
	dateStart time.Time
	dateEnd   time.Time
}

// NewDimensionLoader creates a dimension loader. runDate stamps new
// effective/end dates; dateStart/dateEnd bound the initial date dimension.
func NewDimensionLoader(db DB, runDate, dateStart, dateEnd time.Time) *DimensionLoader {
	return &DimensionLoader{
		db:        db,
		runDate:   runDate.Truncate(24 * time.Hour),
		dateStart: dateStart,
		dateEnd:   dateEnd,
	}
}

// Load populates all dimension tables: date, payment method, shipping
// method, then the SCD2 customer and product dimensions.
func (l *DimensionLoader) Load(ctx context.Context) (LoadStats, error) {
	var stats LoadStats

	steps := []struct {
		name string
		load func(context.Context) (LoadStats, error)
	}{
		{"dim_date", l.loadDateDimension},
		{"dim_payment_method", l.loadPaymentMethods},
		{"dim_shipping_method", l.loadShippingMethods},
		{"dim_customer", l.loadCustomerDimension},
		{"dim_product", l.loadProductDimension},
	}

	for _, s := range steps {
		st, err := s.load(ctx)
		stats.Add(st)
		if err != nil {
			return stats, fmt.Errorf("failed to load %s: %w", s.name, err)
		}
		logging.Info().
			Str("table", "warehouse."+s.name).
			Int64("inserted", st.Inserted).
			Int64("closed", st.Updated).
			Int64("skipped", st.Skipped).
			Msg("Dimension loaded")
	}

	return stats, nil
}

// loadDateDimension fills dim_date for the configured range. It loads only
// when the table is empty; later gaps are patched by the fact loader.
func (l *DimensionLoader) loadDateDimension(ctx context.Context) (LoadStats, error) {
	var count int64
	if err := l.db.QueryRow(ctx,
		"SELECT COUNT(*) FROM warehouse.dim_date").Scan(&count); err != nil {
		return LoadStats{}, err
	}
	if count > 0 {
		logging.Debug().Int64("rows", count).Msg("Date dimension already loaded")
		return LoadStats{}, nil
	}

	var stats LoadStats
	batch := &pgx.Batch{}
	for d := l.dateStart; !d.After(l.dateEnd); d = d.AddDate(0, 0, 1) {
		batch.Queue(insertDateSQL, dateArgs(makeDateRow(d))...)
		stats.Inserted++
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
	return stats, nil
}

// paymentMethods is the static payment method reference data.
var paymentMethods = []struct {
	Method string
	Type   string
	FeePct float64
}{
	{"Credit Card", "Card", 2.5},
	{"PayPal", "Digital", 3.0},
	{"Debit Card", "Card", 2.0},
	{"Gift Card", "Card", 0.0},
}

func (l *DimensionLoader) loadPaymentMethods(ctx context.Context) (LoadStats, error) {
	var stats LoadStats
	for _, pm := range paymentMethods {
		tag, err := l.db.Exec(ctx, `
            INSERT INTO warehouse.dim_payment_method
                (payment_method, payment_type, processing_fee_pct)
            VALUES ($1, $2, $3)
            ON CONFLICT (payment_method) DO NOTHING
        `, pm.Method, pm.Type, pm.FeePct)
		if err != nil {
			return stats, err
		}
		stats.Inserted += tag.RowsAffected()
	}
	return stats, nil
}

// shippingMethods is the static shipping method reference data.
var shippingMethods = []struct {
	Method        string
	EstimatedDays int
	BaseCost      float64
}{
	{"Standard", 5, 5.99},
	{"Express", 3, 12.99},
	{"Next Day", 1, 24.99},
}

func (l *DimensionLoader) loadShippingMethods(ctx context.Context) (LoadStats, error) {
	var stats LoadStats
	for _, sm := range shippingMethods {
		tag, err := l.db.Exec(ctx, `
            INSERT INTO warehouse.dim_shipping_method
                (shipping_method, estimated_days, base_cost)
            VALUES ($1, $2, $3)
            ON CONFLICT (shipping_method) DO NOTHING
        `, sm.Method, sm.EstimatedDays, sm.BaseCost)
		if err != nil {
			return stats, err
		}
		stats.Inserted += tag.RowsAffected()
	}
	return stats, nil
}

// dimAction is the outcome of comparing a staging row against the current
// dimension version.
type dimAction int

const (
	// actionInsert: business id seen for the first time.
	actionInsert dimAction = iota
	// actionSkip: current version matches the snapshot; re-running with
	// unchanged input must not touch the row.
	actionSkip
	// actionNewVersion: a tracked attribute changed; close the current
	// version and append a new one.
	actionNewVersion
)

// dimCustomer is the current warehouse version of one customer.
type dimCustomer struct {
	Key           int64
	EffectiveDate time.Time
	Attrs         source.Customer
}

// customerChanged reports whether any tracked customer attribute differs
// between the current version and the staging snapshot.
func customerChanged(cur, staged source.Customer) bool {
	return cur.FirstName != staged.FirstName ||
		cur.LastName != staged.LastName ||
		cur.Email != staged.Email ||
		cur.Phone != staged.Phone ||
		cur.Address != staged.Address ||
		cur.City != staged.City ||
		cur.State != staged.State ||
		cur.ZipCode != staged.ZipCode ||
		cur.Country != staged.Country ||
		cur.Segment != staged.Segment ||
		cur.IsActive != staged.IsActive
}

// resolveCustomerAction decides what the loader does for one staging row.
func resolveCustomerAction(found bool, cur, staged source.Customer) dimAction {
	switch {
	case !found:
		return actionInsert
	case customerChanged(cur, staged):
		return actionNewVersion
	default:
		return actionSkip
	}
}

func (l *DimensionLoader) loadCustomerDimension(ctx context.Context) (LoadStats, error) {
	staged, err := l.readStagedCustomers(ctx)
	if err != nil {
		return LoadStats{}, err
	}

	var stats LoadStats
	for _, c := range staged {
		// Malformed business id: skip and count, never fatal.
		if c.CustomerID <= 0 {
			stats.Skipped++
			logging.Warn().Int("customer_id", c.CustomerID).
				Msg("Skipping customer with malformed business id")
			continue
		}

		cur, found, err := l.currentCustomer(ctx, c.CustomerID)
		if err != nil {
			return stats, fmt.Errorf("customer %d: %w", c.CustomerID, err)
		}

		switch resolveCustomerAction(found, cur.Attrs, c) {
		case actionInsert:
			if err := l.insertCustomerVersion(ctx, l.db, c, firstEffectiveDate(c.RegistrationDate, l.runDate)); err != nil {
				return stats, fmt.Errorf("customer %d: %w", c.CustomerID, err)
			}
			stats.Inserted++
		case actionNewVersion:
			if err := l.versionCustomer(ctx, cur.Key, c); err != nil {
				return stats, fmt.Errorf("customer %d: %w", c.CustomerID, err)
			}
			stats.Updated++
			stats.Inserted++
		case actionSkip:
		}
	}

	return stats, nil
}

func (l *DimensionLoader) readStagedCustomers(ctx context.Context) ([]source.Customer, error) {
	rows, err := l.db.Query(ctx, `
        SELECT customer_id, first_name, last_name, email, phone, address,
               city, state, zip_code, country, registration_date,
               customer_segment, is_active
        FROM staging.customers
        ORDER BY customer_id
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []source.Customer
	for rows.Next() {
		var c source.Customer
		if err := rows.Scan(&c.CustomerID, &c.FirstName, &c.LastName, &c.Email,
			&c.Phone, &c.Address, &c.City, &c.State, &c.ZipCode, &c.Country,
			&c.RegistrationDate, &c.Segment, &c.IsActive); err != nil {
			return nil, err
		}
		out = append(out, c)
	}
	return out, rows.Err()
}

func (l *DimensionLoader) currentCustomer(ctx context.Context, id int) (dimCustomer, bool, error) {
	var cur dimCustomer
	err := l.db.QueryRow(ctx, `
        SELECT customer_key, effective_date, first_name, last_name, email,
               phone, address, city, state, zip_code, country,
               customer_segment, is_active
        FROM warehouse.dim_customer
        WHERE customer_id = $1 AND is_current
    `, id).Scan(&cur.Key, &cur.EffectiveDate, &cur.Attrs.FirstName,
		&cur.Attrs.LastName, &cur.Attrs.Email, &cur.Attrs.Phone,
		&cur.Attrs.Address, &cur.Attrs.City, &cur.Attrs.State,
		&cur.Attrs.ZipCode, &cur.Attrs.Country, &cur.Attrs.Segment,
		&cur.Attrs.IsActive)
	if errors.Is(err, pgx.ErrNoRows) {
		return dimCustomer{}, false, nil
	}
	if err != nil {
		return dimCustomer{}, false, err
	}
	cur.Attrs.CustomerID = id
	return cur, true, nil
}

func (l *DimensionLoader) insertCustomerVersion(ctx context.Context, db DB, c source.Customer, effective time.Time) error {
	_, err := db.Exec(ctx, `
        INSERT INTO warehouse.dim_customer
            (customer_id, first_name, last_name, email, phone, address, city,
             state, zip_code, country, customer_segment, is_active,
             registration_date, effective_date, end_date, is_current)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, NULL, TRUE)
    `, c.CustomerID, c.FirstName, c.LastName, c.Email, c.Phone, c.Address,
		c.City, c.State, c.ZipCode, c.Country, c.Segment, c.IsActive,
		c.RegistrationDate, effective)
	return err
}

// versionCustomer closes the current version and appends the new one in a
// single transaction so the one-current-row invariant holds at every
// commit point.
func (l *DimensionLoader) versionCustomer(ctx context.Context, currentKey int64, c source.Customer) error {
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
        UPDATE warehouse.dim_customer
        SET end_date = $2, is_current = FALSE
        WHERE customer_key = $1
    `, currentKey, l.runDate); err != nil {
		return err
	}
	if err := l.insertCustomerVersion(ctx, tx, c, l.runDate); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// dimProduct is the current warehouse version of one product.
type dimProduct struct {
	Key           int64
	EffectiveDate time.Time
	Attrs         source.Product
}

// productChanged reports whether any tracked product attribute differs.
// Prices round-trip through NUMERIC(10,2), so monetary comparison allows
// sub-cent float drift.
func productChanged(cur, staged source.Product) bool {
	return cur.Name != staged.Name ||
		cur.Category != staged.Category ||
		cur.SubCategory != staged.SubCategory ||
		cur.Brand != staged.Brand ||
		!moneyEqual(cur.Price, staged.Price) ||
		!moneyEqual(cur.Cost, staged.Cost)
}

// resolveProductAction decides what the loader does for one staging row.
func resolveProductAction(found bool, cur, staged source.Product) dimAction {
	switch {
	case !found:
		return actionInsert
	case productChanged(cur, staged):
		return actionNewVersion
	default:
		return actionSkip
	}
}

// moneyEqual compares two monetary amounts to the cent.
func moneyEqual(a, b float64) bool {
	return math.Abs(a-b) < 0.005
}

func (l *DimensionLoader) loadProductDimension(ctx context.Context) (LoadStats, error) {
	staged, err := l.readStagedProducts(ctx)
	if err != nil {
		return LoadStats{}, err
	}

	var stats LoadStats
	for _, p := range staged {
		if p.ProductID <= 0 {
			stats.Skipped++
			logging.Warn().Int("product_id", p.ProductID).
				Msg("Skipping product with malformed business id")
			continue
		}

		cur, found, err := l.currentProduct(ctx, p.ProductID)
		if err != nil {
			return stats, fmt.Errorf("product %d: %w", p.ProductID, err)
		}

		switch resolveProductAction(found, cur.Attrs, p) {
		case actionInsert:
			if err := l.insertProductVersion(ctx, l.db, p, firstEffectiveDate(p.CreatedDate, l.runDate)); err != nil {
				return stats, fmt.Errorf("product %d: %w", p.ProductID, err)
			}
			stats.Inserted++
		case actionNewVersion:
			if err := l.versionProduct(ctx, cur.Key, p); err != nil {
				return stats, fmt.Errorf("product %d: %w", p.ProductID, err)
			}
			stats.Updated++
			stats.Inserted++
		case actionSkip:
		}
	}

	return stats, nil
}

func (l *DimensionLoader) readStagedProducts(ctx context.Context) ([]source.Product, error) {
	rows, err := l.db.Query(ctx, `
        SELECT product_id, product_name, category, sub_category, brand,
               price, cost, stock_quantity, supplier_id, created_date
        FROM staging.products
        ORDER BY product_id
    `)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []source.Product
	for rows.Next() {
		var p source.Product
		if err := rows.Scan(&p.ProductID, &p.Name, &p.Category, &p.SubCategory,
			&p.Brand, &p.Price, &p.Cost, &p.StockQuantity, &p.SupplierID,
			&p.CreatedDate); err != nil {
			return nil, err
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (l *DimensionLoader) currentProduct(ctx context.Context, id int) (dimProduct, bool, error) {
	var cur dimProduct
	err := l.db.QueryRow(ctx, `
        SELECT product_key, effective_date, product_name, category,
               sub_category, brand, price, cost
        FROM warehouse.dim_product
        WHERE product_id = $1 AND is_current
    `, id).Scan(&cur.Key, &cur.EffectiveDate, &cur.Attrs.Name,
		&cur.Attrs.Category, &cur.Attrs.SubCategory, &cur.Attrs.Brand,
		&cur.Attrs.Price, &cur.Attrs.Cost)
	if errors.Is(err, pgx.ErrNoRows) {
		return dimProduct{}, false, nil
	}
	if err != nil {
		return dimProduct{}, false, err
	}
	cur.Attrs.ProductID = id
	return cur, true, nil
}

func (l *DimensionLoader) insertProductVersion(ctx context.Context, db DB, p source.Product, effective time.Time) error {
	_, err := db.Exec(ctx, `
        INSERT INTO warehouse.dim_product
            (product_id, product_name, category, sub_category, brand, price,
             cost, effective_date, end_date, is_current)
        VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NULL, TRUE)
    `, p.ProductID, p.Name, p.Category, p.SubCategory, p.Brand, p.Price,
		p.Cost, effective)
	return err
}

func (l *DimensionLoader) versionProduct(ctx context.Context, currentKey int64, p source.Product) error {
	tx, err := l.db.Begin(ctx)
	if err != nil {
		return err
	}
	defer tx.Rollback(ctx)

	if _, err := tx.Exec(ctx, `
        UPDATE warehouse.dim_product
        SET end_date = $2, is_current = FALSE
        WHERE product_key = $1
    `, currentKey, l.runDate); err != nil {
		return err
	}
	if err := l.insertProductVersion(ctx, tx, p, l.runDate); err != nil {
		return err
	}
	return tx.Commit(ctx)
}

// firstEffectiveDate picks the validity start for a first-seen entity: its
// source inception date when known, otherwise the run date. Using the
// inception date lets facts older than the first pipeline run resolve a
// version valid at order time.
func firstEffectiveDate(inception, runDate time.Time) time.Time {
	if inception.IsZero() {
		return runDate
	}
	return inception
}

// flushBatch sends a queued batch and surfaces the first statement error.
func flushBatch(ctx context.Context, db DB, batch *pgx.Batch) error {
	if batch.Len() == 0 {
		return nil
	}
	results := db.SendBatch(ctx, batch)
	defer results.Close()

	for i := 0; i < batch.Len(); i++ {
		if _, err := results.Exec(); err != nil {
			return err
		}
	}
	return nil
}
