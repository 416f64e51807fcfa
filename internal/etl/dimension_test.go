package etl

import (
	"testing"
	"time"

	"ecomdw/internal/source"
)

func baseCustomer() source.Customer {
	return source.Customer{
		CustomerID: 42,
		FirstName:  "Ada",
		LastName:   "Smith",
		Email:      "ada@example.com",
		Phone:      "555-0101",
		Address:    "1 Main St",
		City:       "Portland",
		State:      "OR",
		ZipCode:    "97201",
		Country:    "USA",
		Segment:    "Retail",
		IsActive:   true,
	}
}

func TestCustomerChanged(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*source.Customer)
		want   bool
	}{
		{"identical", func(*source.Customer) {}, false},
		{"segment changed", func(c *source.Customer) { c.Segment = "Premium" }, true},
		{"email changed", func(c *source.Customer) { c.Email = "ada@new.example.com" }, true},
		{"address changed", func(c *source.Customer) { c.Address = "2 Oak Ave" }, true},
		{"deactivated", func(c *source.Customer) { c.IsActive = false }, true},
		{"city changed", func(c *source.Customer) { c.City = "Salem" }, true},
		{
			// Registration date is not a tracked attribute.
			"registration date differs",
			func(c *source.Customer) { c.RegistrationDate = time.Date(2020, 1, 1, 0, 0, 0, 0, time.UTC) },
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cur := baseCustomer()
			staged := baseCustomer()
			tt.mutate(&staged)
			if got := customerChanged(cur, staged); got != tt.want {
				t.Errorf("customerChanged = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveCustomerAction(t *testing.T) {
	cur := baseCustomer()

	if got := resolveCustomerAction(false, source.Customer{}, cur); got != actionInsert {
		t.Errorf("first-seen customer: got %v, want actionInsert", got)
	}
	if got := resolveCustomerAction(true, cur, cur); got != actionSkip {
		t.Errorf("unchanged customer: got %v, want actionSkip", got)
	}

	changed := baseCustomer()
	changed.Segment = "Premium"
	if got := resolveCustomerAction(true, cur, changed); got != actionNewVersion {
		t.Errorf("changed customer: got %v, want actionNewVersion", got)
	}
}

func baseProduct() source.Product {
	return source.Product{
		ProductID:   10,
		Name:        "Trail Lamp",
		Category:    "Home & Garden",
		SubCategory: "Home & Garden - Lighting",
		Brand:       "Acme",
		Price:       49.99,
		Cost:        20.00,
	}
}

func TestProductChanged(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*source.Product)
		want   bool
	}{
		{"identical", func(*source.Product) {}, false},
		{"price changed", func(p *source.Product) { p.Price = 54.99 }, true},
		{"cost changed", func(p *source.Product) { p.Cost = 22.50 }, true},
		{"renamed", func(p *source.Product) { p.Name = "Trail Lamp XL" }, true},
		{"recategorized", func(p *source.Product) { p.Category = "Sports" }, true},
		{"brand changed", func(p *source.Product) { p.Brand = "Globex" }, true},
		{
			// Price equality tolerates sub-cent drift from NUMERIC round-trips.
			"sub-cent price drift",
			func(p *source.Product) { p.Price = 49.9900000001 },
			false,
		},
		{
			// Stock level is not a tracked attribute.
			"stock changed",
			func(p *source.Product) { p.StockQuantity = 99 },
			false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cur := baseProduct()
			staged := baseProduct()
			tt.mutate(&staged)
			if got := productChanged(cur, staged); got != tt.want {
				t.Errorf("productChanged = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestResolveProductAction(t *testing.T) {
	cur := baseProduct()

	if got := resolveProductAction(false, source.Product{}, cur); got != actionInsert {
		t.Errorf("first-seen product: got %v, want actionInsert", got)
	}
	if got := resolveProductAction(true, cur, cur); got != actionSkip {
		t.Errorf("unchanged product: got %v, want actionSkip", got)
	}

	changed := baseProduct()
	changed.Price = 59.99
	if got := resolveProductAction(true, cur, changed); got != actionNewVersion {
		t.Errorf("repriced product: got %v, want actionNewVersion", got)
	}
}

func TestFirstEffectiveDate(t *testing.T) {
	runDate := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	registration := time.Date(2023, 6, 1, 0, 0, 0, 0, time.UTC)

	if got := firstEffectiveDate(registration, runDate); !got.Equal(registration) {
		t.Errorf("Expected inception date %v, got %v", registration, got)
	}
	if got := firstEffectiveDate(time.Time{}, runDate); !got.Equal(runDate) {
		t.Errorf("Expected run date fallback %v, got %v", runDate, got)
	}
}

func TestMoneyEqual(t *testing.T) {
	if !moneyEqual(49.99, 49.99) {
		t.Error("Expected equal amounts to compare equal")
	}
	if !moneyEqual(49.99, 49.994) {
		t.Error("Expected sub-cent drift to compare equal")
	}
	if moneyEqual(49.99, 50.00) {
		t.Error("Expected a one-cent difference to compare unequal")
	}
}
