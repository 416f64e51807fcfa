package etl

import (
	"testing"
	"time"
)

func TestDateKey(t *testing.T) {
	tests := []struct {
		date string
		want int
	}{
		{"2024-03-10", 20240310},
		{"2022-01-01", 20220101},
		{"2025-12-31", 20251231},
		{"2024-02-29", 20240229},
	}

	for _, tt := range tests {
		d, err := time.Parse("2006-01-02", tt.date)
		if err != nil {
			t.Fatalf("bad test date %s: %v", tt.date, err)
		}
		if got := dateKey(d); got != tt.want {
			t.Errorf("dateKey(%s) = %d, want %d", tt.date, got, tt.want)
		}
	}
}

func TestMakeDateRow(t *testing.T) {
	// 2024-03-10 is a Sunday.
	d := time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC)
	row := makeDateRow(d)

	if row.Key != 20240310 {
		t.Errorf("Key = %d, want 20240310", row.Key)
	}
	if row.DayOfWeek != 6 {
		t.Errorf("DayOfWeek = %d, want 6 (Sunday, Monday=0 numbering)", row.DayOfWeek)
	}
	if row.DayName != "Sunday" {
		t.Errorf("DayName = %s, want Sunday", row.DayName)
	}
	if !row.IsWeekend {
		t.Error("Expected IsWeekend true for a Sunday")
	}
	if row.DayOfMonth != 10 {
		t.Errorf("DayOfMonth = %d, want 10", row.DayOfMonth)
	}
	if row.DayOfYear != 70 {
		t.Errorf("DayOfYear = %d, want 70", row.DayOfYear)
	}
	if row.Month != 3 || row.MonthName != "March" {
		t.Errorf("Month = %d/%s, want 3/March", row.Month, row.MonthName)
	}
	if row.Quarter != 1 {
		t.Errorf("Quarter = %d, want 1", row.Quarter)
	}
	if row.Year != 2024 {
		t.Errorf("Year = %d, want 2024", row.Year)
	}
	if row.IsHoliday {
		t.Error("Expected IsHoliday false")
	}
}

func TestMakeDateRowWeekday(t *testing.T) {
	// 2024-03-11 is a Monday.
	row := makeDateRow(time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC))

	if row.DayOfWeek != 0 {
		t.Errorf("DayOfWeek = %d, want 0 for Monday", row.DayOfWeek)
	}
	if row.IsWeekend {
		t.Error("Expected IsWeekend false for a Monday")
	}
	if row.WeekOfYear != 11 {
		t.Errorf("WeekOfYear = %d, want 11", row.WeekOfYear)
	}
}

func TestMakeDateRowQuarters(t *testing.T) {
	tests := []struct {
		month time.Month
		want  int
	}{
		{time.January, 1}, {time.March, 1},
		{time.April, 2}, {time.June, 2},
		{time.July, 3}, {time.September, 3},
		{time.October, 4}, {time.December, 4},
	}

	for _, tt := range tests {
		row := makeDateRow(time.Date(2024, tt.month, 15, 0, 0, 0, 0, time.UTC))
		if row.Quarter != tt.want {
			t.Errorf("Quarter for %s = %d, want %d", tt.month, row.Quarter, tt.want)
		}
	}
}
