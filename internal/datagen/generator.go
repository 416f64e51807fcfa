//-------------------------------------------------------------------------
//
// ecomdw - E-Commerce Warehouse ETL
//
// Copyright (c) 2025 - 2026, the ecomdw authors
// This software is released under The PostgreSQL License
//
//-------------------------------------------------------------------------

package datagen

import (
	"encoding/csv"
	"fmt"
	"math"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"ecomdw/internal/logging"
)

const (
	dateLayout      = "2006-01-02"
	timestampLayout = "2006-01-02 15:04:05"

	taxRate = 0.08
)

var (
	segments        = []string{"Premium", "Standard", "Basic"}
	categories      = []string{"Electronics", "Clothing", "Home & Garden", "Sports", "Books", "Toys"}
	paymentMethods  = []string{"Credit Card", "PayPal", "Debit Card", "Gift Card"}
	shippingMethods = []string{"Standard", "Express", "Next Day"}
	orderStatuses   = []string{"Completed", "Pending", "Cancelled", "Returned"}
	statusWeights   = []int{70, 15, 10, 5}
)

// Config controls the size and determinism of a generated snapshot.
type Config struct {
	DataDir   string
	Customers int
	Products  int
	Orders    int
	Seed      uint64
}

// Generator writes a synthetic source snapshot as CSV files.
type Generator struct {
	cfg   Config
	faker *Faker
	now   time.Time
}

type customer struct {
	ID           int
	Registration time.Time
}

type product struct {
	ID    int
	Price float64
}

// NewGenerator creates a generator. A zero seed falls back to a random
// one, so fixed seeds stay reproducible.
func NewGenerator(cfg Config) *Generator {
	faker := NewFaker()
	if cfg.Seed != 0 {
		faker = NewFakerWithSeed(cfg.Seed)
	}
	return &Generator{cfg: cfg, faker: faker, now: time.Now().UTC()}
}

// Generate writes customers.csv, products.csv, orders.csv, and
// order_items.csv into the data directory.
func (g *Generator) Generate() error {
	if err := os.MkdirAll(g.cfg.DataDir, 0o755); err != nil {
		return fmt.Errorf("failed to create data directory: %w", err)
	}

	customers, err := g.writeCustomers()
	if err != nil {
		return err
	}
	products, err := g.writeProducts()
	if err != nil {
		return err
	}
	if err := g.writeOrders(customers, products); err != nil {
		return err
	}

	logging.Info().
		Str("data_dir", g.cfg.DataDir).
		Int("customers", g.cfg.Customers).
		Int("products", g.cfg.Products).
		Int("orders", g.cfg.Orders).
		Msg("Generated sample data")
	return nil
}

func (g *Generator) writeCustomers() ([]customer, error) {
	header := []string{
		"customer_id", "first_name", "last_name", "email", "phone",
		"address", "city", "state", "zip_code", "country",
		"registration_date", "customer_segment", "is_active",
	}

	customers := make([]customer, 0, g.cfg.Customers)
	rows := make([][]string, 0, g.cfg.Customers)
	f := g.faker

	regStart := g.now.AddDate(-2, 0, 0)
	for id := 1; id <= g.cfg.Customers; id++ {
		registration := f.DateRange(regStart, g.now)
		customers = append(customers, customer{ID: id, Registration: registration})

		// Roughly three quarters of customers are active.
		active := f.Int(1, 4) > 1

		rows = append(rows, []string{
			strconv.Itoa(id),
			f.FirstName(),
			f.LastName(),
			f.Email(),
			f.Phone(),
			f.Street(),
			f.City(),
			f.State(),
			f.Zip(),
			"USA",
			registration.Format(dateLayout),
			Choose(f, segments),
			strconv.FormatBool(active),
		})
	}

	if err := g.writeFile("customers.csv", header, rows); err != nil {
		return nil, err
	}
	return customers, nil
}

func (g *Generator) writeProducts() ([]product, error) {
	header := []string{
		"product_id", "product_name", "category", "sub_category", "brand",
		"price", "cost", "stock_quantity", "supplier_id", "created_date",
	}

	products := make([]product, 0, g.cfg.Products)
	rows := make([][]string, 0, g.cfg.Products)
	f := g.faker

	createdStart := g.now.AddDate(-3, 0, 0)
	createdEnd := g.now.AddDate(-1, 0, 0)
	for id := 1; id <= g.cfg.Products; id++ {
		category := Choose(f, categories)
		price := round2(f.Float64(9.99, 999.99))
		// Keep cost below price so profit stays plausible.
		cost := round2(f.Float64(5.0, price*0.8))
		products = append(products, product{ID: id, Price: price})

		rows = append(rows, []string{
			strconv.Itoa(id),
			title(f.Word()) + " " + title(f.Word()),
			category,
			category + " - " + title(f.Word()),
			f.Company(),
			money(price),
			money(cost),
			strconv.Itoa(f.Int(0, 1000)),
			strconv.Itoa(f.Int(1, 50)),
			f.DateRange(createdStart, createdEnd).Format(dateLayout),
		})
	}

	if err := g.writeFile("products.csv", header, rows); err != nil {
		return nil, err
	}
	return products, nil
}

func (g *Generator) writeOrders(customers []customer, products []product) error {
	orderHeader := []string{
		"order_id", "customer_id", "order_date", "order_status",
		"payment_method", "shipping_method", "shipping_cost", "tax_amount",
		"discount_amount", "total_amount", "created_at", "updated_at",
	}
	itemHeader := []string{
		"order_item_id", "order_id", "product_id", "quantity",
		"unit_price", "line_total", "discount_amount",
	}

	orderRows := make([][]string, 0, g.cfg.Orders)
	itemRows := make([][]string, 0, g.cfg.Orders*3)
	f := g.faker

	earliest := g.now.AddDate(-1, 0, 0)
	for orderID := 1; orderID <= g.cfg.Orders; orderID++ {
		cust := Choose(f, customers)

		// Orders never predate the customer's registration, so every
		// order resolves against the customer's first dimension version.
		start := earliest
		if cust.Registration.After(start) {
			start = cust.Registration
		}
		orderDate := f.DateRange(start, g.now)

		numItems := f.Int(1, 5)
		subtotal := 0.0
		for n := 1; n <= numItems; n++ {
			prod := Choose(f, products)
			qty := f.Int(1, 3)
			lineTotal := round2(float64(qty) * prod.Price)
			subtotal += lineTotal

			itemRows = append(itemRows, []string{
				fmt.Sprintf("%d_%d", orderID, n),
				strconv.Itoa(orderID),
				strconv.Itoa(prod.ID),
				strconv.Itoa(qty),
				money(prod.Price),
				money(lineTotal),
				money(0),
			})
		}

		shipping := round2(f.Float64(0, 25))
		tax := round2(subtotal * taxRate)
		discount := 0.0
		if f.Float64(0, 1) > 0.7 {
			discount = round2(f.Float64(0, 50))
		}
		total := round2(subtotal + tax + shipping - discount)

		ts := orderDate.Format(timestampLayout)
		orderRows = append(orderRows, []string{
			strconv.Itoa(orderID),
			strconv.Itoa(cust.ID),
			ts,
			ChooseWeighted(f, orderStatuses, statusWeights),
			Choose(f, paymentMethods),
			Choose(f, shippingMethods),
			money(shipping),
			money(tax),
			money(discount),
			money(total),
			ts,
			ts,
		})
	}

	if err := g.writeFile("orders.csv", orderHeader, orderRows); err != nil {
		return err
	}
	return g.writeFile("order_items.csv", itemHeader, itemRows)
}

func (g *Generator) writeFile(name string, header []string, rows [][]string) error {
	path := filepath.Join(g.cfg.DataDir, name)
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create %s: %w", path, err)
	}
	defer file.Close()

	w := csv.NewWriter(file)
	if err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	if err := w.WriteAll(rows); err != nil {
		return fmt.Errorf("failed to write %s: %w", path, err)
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("failed to flush %s: %w", path, err)
	}

	logging.Debug().Str("file", path).Int("rows", len(rows)).Msg("Wrote CSV")
	return nil
}

func money(v float64) string {
	return strconv.FormatFloat(v, 'f', 2, 64)
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func title(s string) string {
	if s == "" {
		return s
	}
	r := []rune(s)
	if r[0] >= 'a' && r[0] <= 'z' {
		r[0] = r[0] - 'a' + 'A'
	}
	return string(r)
}
