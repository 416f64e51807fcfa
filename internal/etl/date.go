package etl

import "time"

// dateRow is one warehouse.dim_date row.
type dateRow struct {
	Key        int
	Date       time.Time
	DayOfWeek  int
	DayName    string
	DayOfMonth int
	DayOfYear  int
	WeekOfYear int
	Month      int
	MonthName  string
	Quarter    int
	Year       int
	IsWeekend  bool
	IsHoliday  bool
}

// dateKey returns the yyyymmdd surrogate key for a date.
func dateKey(d time.Time) int {
	return d.Year()*10000 + int(d.Month())*100 + d.Day()
}

// makeDateRow derives all dim_date attributes for a calendar day.
// Day-of-week numbering is Monday=0..Sunday=6; weekend is Sat/Sun.
func makeDateRow(d time.Time) dateRow {
	dow := (int(d.Weekday()) + 6) % 7
	_, week := d.ISOWeek()

	return dateRow{
		Key:        dateKey(d),
		Date:       d,
		DayOfWeek:  dow,
		DayName:    d.Weekday().String(),
		DayOfMonth: d.Day(),
		DayOfYear:  d.YearDay(),
		WeekOfYear: week,
		Month:      int(d.Month()),
		MonthName:  d.Month().String(),
		Quarter:    (int(d.Month())-1)/3 + 1,
		Year:       d.Year(),
		IsWeekend:  dow == 5 || dow == 6,
		IsHoliday:  false,
	}
}

const insertDateSQL = `
INSERT INTO warehouse.dim_date
    (date_key, date, day_of_week, day_name, day_of_month, day_of_year,
     week_of_year, month, month_name, quarter, year, is_weekend, is_holiday)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13)
ON CONFLICT (date_key) DO NOTHING`

// dateArgs returns the insertDateSQL argument list for a row.
func dateArgs(r dateRow) []any {
	return []any{
		r.Key, r.Date, r.DayOfWeek, r.DayName, r.DayOfMonth, r.DayOfYear,
		r.WeekOfYear, r.Month, r.MonthName, r.Quarter, r.Year,
		r.IsWeekend, r.IsHoliday,
	}
}
