// Package source reads flat CSV records for the staging loader. The file
// layout is fixed: header row first, column names matching the staging
// relations exactly. Malformed rows are skipped and counted, never fatal.
package source

import (
	"encoding/csv"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"
	"time"

	"ecomdw/internal/logging"
)

// Customer is one staging customer record.
type Customer struct {
	CustomerID       int
	FirstName        string
	LastName         string
	Email            string
	Phone            string
	Address          string
	City             string
	State            string
	ZipCode          string
	Country          string
	RegistrationDate time.Time
	Segment          string
	IsActive         bool
}

// Product is one staging product record.
type Product struct {
	ProductID     int
	Name          string
	Category      string
	SubCategory   string
	Brand         string
	Price         float64
	Cost          float64
	StockQuantity int
	SupplierID    int
	CreatedDate   time.Time
}

// Order is one staging order record.
type Order struct {
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
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// OrderItem is one staging order item record. OrderItemID is the composite
// business id ("<order_id>_<item_number>").
type OrderItem struct {
	OrderItemID    string
	OrderID        int
	ProductID      int
	Quantity       int
	UnitPrice      float64
	LineTotal      float64
	DiscountAmount float64
}

// Expected header rows, in staging column order.
var (
	customerColumns = []string{
		"customer_id", "first_name", "last_name", "email", "phone",
		"address", "city", "state", "zip_code", "country",
		"registration_date", "customer_segment", "is_active",
	}
	productColumns = []string{
		"product_id", "product_name", "category", "sub_category", "brand",
		"price", "cost", "stock_quantity", "supplier_id", "created_date",
	}
	orderColumns = []string{
		"order_id", "customer_id", "order_date", "order_status",
		"payment_method", "shipping_method", "shipping_cost", "tax_amount",
		"discount_amount", "total_amount", "created_at", "updated_at",
	}
	orderItemColumns = []string{
		"order_item_id", "order_id", "product_id", "quantity",
		"unit_price", "line_total", "discount_amount",
	}
)

// timeLayouts are accepted timestamp formats, most specific first.
var timeLayouts = []string{
	"2006-01-02 15:04:05.999999",
	"2006-01-02 15:04:05",
	time.RFC3339,
	"2006-01-02",
}

// ReadCustomers reads customer records from a CSV file. It returns the
// parsed records and the number of malformed rows that were skipped.
func ReadCustomers(path string) ([]Customer, int, error) {
	var out []Customer
	skipped, err := readFile(path, customerColumns, func(rec []string) error {
		c := Customer{
			FirstName: rec[1],
			LastName:  rec[2],
			Email:     rec[3],
			Phone:     rec[4],
			Address:   rec[5],
			City:      rec[6],
			State:     rec[7],
			ZipCode:   rec[8],
			Country:   rec[9],
			Segment:   rec[11],
		}
		var err error
		if c.CustomerID, err = parseInt(rec[0]); err != nil {
			return err
		}
		if c.RegistrationDate, err = parseTime(rec[10]); err != nil {
			return err
		}
		if c.IsActive, err = strconv.ParseBool(rec[12]); err != nil {
			return err
		}
		out = append(out, c)
		return nil
	})
	return out, skipped, err
}

// ReadProducts reads product records from a CSV file.
func ReadProducts(path string) ([]Product, int, error) {
	var out []Product
	skipped, err := readFile(path, productColumns, func(rec []string) error {
		p := Product{
			Name:        rec[1],
			Category:    rec[2],
			SubCategory: rec[3],
			Brand:       rec[4],
		}
		var err error
		if p.ProductID, err = parseInt(rec[0]); err != nil {
			return err
		}
		if p.Price, err = parseFloat(rec[5]); err != nil {
			return err
		}
		if p.Cost, err = parseFloat(rec[6]); err != nil {
			return err
		}
		if p.StockQuantity, err = parseInt(rec[7]); err != nil {
			return err
		}
		if p.SupplierID, err = parseInt(rec[8]); err != nil {
			return err
		}
		if p.CreatedDate, err = parseTime(rec[9]); err != nil {
			return err
		}
		out = append(out, p)
		return nil
	})
	return out, skipped, err
}

// ReadOrders reads order records from a CSV file.
func ReadOrders(path string) ([]Order, int, error) {
	var out []Order
	skipped, err := readFile(path, orderColumns, func(rec []string) error {
		o := Order{
			Status:         rec[3],
			PaymentMethod:  rec[4],
			ShippingMethod: rec[5],
		}
		var err error
		if o.OrderID, err = parseInt(rec[0]); err != nil {
			return err
		}
		if o.CustomerID, err = parseInt(rec[1]); err != nil {
			return err
		}
		if o.OrderDate, err = parseTime(rec[2]); err != nil {
			return err
		}
		if o.ShippingCost, err = parseFloat(rec[6]); err != nil {
			return err
		}
		if o.TaxAmount, err = parseFloat(rec[7]); err != nil {
			return err
		}
		if o.DiscountAmount, err = parseFloat(rec[8]); err != nil {
			return err
		}
		if o.TotalAmount, err = parseFloat(rec[9]); err != nil {
			return err
		}
		if o.CreatedAt, err = parseTime(rec[10]); err != nil {
			return err
		}
		if o.UpdatedAt, err = parseTime(rec[11]); err != nil {
			return err
		}
		out = append(out, o)
		return nil
	})
	return out, skipped, err
}

// ReadOrderItems reads order item records from a CSV file.
func ReadOrderItems(path string) ([]OrderItem, int, error) {
	var out []OrderItem
	skipped, err := readFile(path, orderItemColumns, func(rec []string) error {
		oi := OrderItem{OrderItemID: rec[0]}
		if oi.OrderItemID == "" {
			return fmt.Errorf("empty order_item_id")
		}
		var err error
		if oi.OrderID, err = parseInt(rec[1]); err != nil {
			return err
		}
		if oi.ProductID, err = parseInt(rec[2]); err != nil {
			return err
		}
		if oi.Quantity, err = parseInt(rec[3]); err != nil {
			return err
		}
		if oi.UnitPrice, err = parseFloat(rec[4]); err != nil {
			return err
		}
		if oi.LineTotal, err = parseFloat(rec[5]); err != nil {
			return err
		}
		if oi.DiscountAmount, err = parseFloat(rec[6]); err != nil {
			return err
		}
		out = append(out, oi)
		return nil
	})
	return out, skipped, err
}

// readFile reads a CSV file, validates the header, and invokes parse for
// each data row. Rows that fail to parse are skipped and counted.
func readFile(path string, columns []string, parse func([]string) error) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	r := csv.NewReader(f)
	r.FieldsPerRecord = len(columns)

	header, err := r.Read()
	if err != nil {
		return 0, fmt.Errorf("failed to read header of %s: %w", path, err)
	}
	if err := checkHeader(header, columns); err != nil {
		return 0, fmt.Errorf("%s: %w", path, err)
	}

	skipped := 0
	line := 1
	for {
		line++
		rec, err := r.Read()
		if err == io.EOF {
			break
		}
		if err != nil {
			// Structurally broken row (wrong field count, bad quoting).
			skipped++
			logging.Debug().Str("file", path).Int("line", line).Err(err).
				Msg("Skipping malformed row")
			continue
		}
		if err := parse(rec); err != nil {
			skipped++
			logging.Debug().Str("file", path).Int("line", line).Err(err).
				Msg("Skipping unparseable row")
		}
	}

	return skipped, nil
}

func checkHeader(got, want []string) error {
	if len(got) != len(want) {
		return fmt.Errorf("expected %d columns, got %d", len(want), len(got))
	}
	for i := range want {
		if strings.TrimSpace(got[i]) != want[i] {
			return fmt.Errorf("column %d: expected %q, got %q", i+1, want[i], got[i])
		}
	}
	return nil
}

func parseInt(s string) (int, error) {
	return strconv.Atoi(strings.TrimSpace(s))
}

func parseFloat(s string) (float64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	for _, layout := range timeLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, fmt.Errorf("unrecognized time value %q", s)
}
