package etl

import (
	"reflect"
	"testing"
)

func TestCustomerTier(t *testing.T) {
	tests := []struct {
		orders int
		want   string
	}{
		{0, "One-time"},
		{1, "One-time"},
		{2, "Repeat"},
		{4, "Repeat"},
		{5, "Loyal"},
		{9, "Loyal"},
		{10, "VIP"},
		{250, "VIP"},
	}

	for _, tt := range tests {
		if got := customerTier(tt.orders); got != tt.want {
			t.Errorf("Expected tier %s for %d orders, got %s", tt.want, tt.orders, got)
		}
	}
}

func TestProfitMargin(t *testing.T) {
	tests := []struct {
		name            string
		profit, revenue float64
		want            float64
	}{
		{"half margin", 50, 100, 50},
		{"zero revenue", 10, 0, 0},
		{"negative profit", -25, 100, -25},
		{"rounded", 1, 3, 33.33},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := profitMargin(tt.profit, tt.revenue); got != tt.want {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestCompetitionRanks(t *testing.T) {
	tests := []struct {
		name   string
		values []float64
		want   []int
	}{
		{"distinct", []float64{300, 100, 200}, []int{1, 3, 2}},
		{"tie skips next rank", []float64{100, 100, 50}, []int{1, 1, 3}},
		{"all tied", []float64{10, 10, 10}, []int{1, 1, 1}},
		{"single", []float64{42}, []int{1}},
		{"empty", nil, []int{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := competitionRanks(tt.values)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("Expected %v, got %v", tt.want, got)
			}
		})
	}
}

func TestRefreshOrder(t *testing.T) {
	marts := []Mart{
		{Name: "c", Inputs: []string{"a", "b"}},
		{Name: "a"},
		{Name: "b", Inputs: []string{"a"}},
	}

	ordered, err := refreshOrder(marts)
	if err != nil {
		t.Fatalf("Expected no error, got %v", err)
	}

	pos := make(map[string]int)
	for i, m := range ordered {
		pos[m.Name] = i
	}
	if pos["a"] > pos["b"] || pos["b"] > pos["c"] {
		names := make([]string, len(ordered))
		for i, m := range ordered {
			names[i] = m.Name
		}
		t.Errorf("Expected a before b before c, got %v", names)
	}
}

func TestRefreshOrderCycle(t *testing.T) {
	marts := []Mart{
		{Name: "a", Inputs: []string{"b"}},
		{Name: "b", Inputs: []string{"a"}},
	}
	if _, err := refreshOrder(marts); err == nil {
		t.Error("Expected cycle error, got nil")
	}
}

func TestRefreshOrderUnknownInput(t *testing.T) {
	marts := []Mart{{Name: "a", Inputs: []string{"missing"}}}
	if _, err := refreshOrder(marts); err == nil {
		t.Error("Expected unknown input error, got nil")
	}
}

func TestMartsRegistry(t *testing.T) {
	seen := make(map[string]bool)
	for _, m := range Marts() {
		if m.Name == "" || m.Table == "" || m.refresh == nil {
			t.Errorf("Incomplete mart registration %+v", m)
		}
		if seen[m.Name] {
			t.Errorf("Duplicate mart %s", m.Name)
		}
		seen[m.Name] = true
		for _, in := range m.Inputs {
			if !seen[in] {
				t.Errorf("Mart %s declared before its input %s", m.Name, in)
			}
		}
	}
}
