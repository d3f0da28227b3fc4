// Package timecalc provides calendar-exact date arithmetic for schedule
// evaluation. All computations operate on whole calendar units (days, weeks,
// months, years), never on average-length approximations, so leap years and
// month-length differences are handled exactly.
package timecalc

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"time"
)

// ErrUnparseableDate is returned by ToDate when a string input matches none
// of the accepted date layouts.
var ErrUnparseableDate = errors.New("timecalc: unparseable date")

// Date is a calendar date with no time-of-day and no zone. The zero value is
// treated as "unset" by the *Between functions, which substitute today.
type Date struct {
	t time.Time
}

// NewDate builds a Date from year, month and day.
func NewDate(year int, month time.Month, day int) Date {
	return Date{t: time.Date(year, month, day, 0, 0, 0, 0, time.UTC)}
}

// Today returns the current date.
func Today() Date {
	y, m, d := time.Now().Date()
	return NewDate(y, m, d)
}

// ToDate coerces any supported representation to a Date. Supported inputs are
// Date itself, time.Time (the time-of-day and zone are dropped after
// converting to the value's own location, so a zoned timestamp and its
// date-only form coerce identically), and strings in one of the canonical
// layouts. Malformed strings fail with ErrUnparseableDate.
func ToDate(v interface{}) (Date, error) {
	switch x := v.(type) {
	case Date:
		return x, nil
	case *Date:
		if x == nil {
			return Date{}, ErrUnparseableDate
		}
		return *x, nil
	case time.Time:
		y, m, d := x.Date()
		return NewDate(y, m, d), nil
	case *time.Time:
		if x == nil {
			return Date{}, ErrUnparseableDate
		}
		y, m, d := x.Date()
		return NewDate(y, m, d), nil
	case string:
		return parseDate(x)
	default:
		return Date{}, fmt.Errorf("%w: unsupported type %T", ErrUnparseableDate, v)
	}
}

var dateLayouts = []string{
	"2006-01-02",
	"20060102",
	"01/02/2006",
	time.RFC3339,
	"2006-01-02 15:04:05 -0700",
	"2006-01-02T15:04:05",
}

func parseDate(s string) (Date, error) {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, s); err == nil {
			y, m, d := t.Date()
			return NewDate(y, m, d), nil
		}
	}
	return Date{}, fmt.Errorf("%w: %q", ErrUnparseableDate, s)
}

// MustDate is a test and fixture helper; it panics on coercion failure.
func MustDate(v interface{}) Date {
	d, err := ToDate(v)
	if err != nil {
		panic(err)
	}
	return d
}

// Year returns the calendar year.
func (d Date) Year() int { return d.t.Year() }

// Month returns the calendar month.
func (d Date) Month() time.Month { return d.t.Month() }

// Day returns the day of the month.
func (d Date) Day() int { return d.t.Day() }

// IsZero reports whether the date is the unset zero value.
func (d Date) IsZero() bool { return d.t.IsZero() }

// Time returns the date as a time.Time at midnight UTC.
func (d Date) Time() time.Time { return d.t }

// AddDate returns the date shifted by the given years, months and days,
// with time.Time's calendar normalization.
func (d Date) AddDate(years, months, days int) Date {
	t := d.t.AddDate(years, months, days)
	return NewDate(t.Year(), t.Month(), t.Day())
}

// Before reports whether d is strictly before o.
func (d Date) Before(o Date) bool { return d.t.Before(o.t) }

// After reports whether d is strictly after o.
func (d Date) After(o Date) bool { return d.t.After(o.t) }

// Equal reports whether the two dates are the same day.
func (d Date) Equal(o Date) bool { return d.t.Equal(o.t) }

// OnOrBefore reports whether d is o or any earlier day.
func (d Date) OnOrBefore(o Date) bool { return !d.t.After(o.t) }

// OnOrAfter reports whether d is o or any later day.
func (d Date) OnOrAfter(o Date) bool { return !d.t.Before(o.t) }

func (d Date) String() string { return d.t.Format("2006-01-02") }

// MarshalJSON encodes the date as "YYYY-MM-DD".
func (d Date) MarshalJSON() ([]byte, error) {
	return []byte(`"` + d.String() + `"`), nil
}

// UnmarshalJSON accepts any of the ToDate string layouts.
func (d *Date) UnmarshalJSON(b []byte) error {
	s := string(b)
	if len(s) >= 2 && s[0] == '"' && s[len(s)-1] == '"' {
		s = s[1 : len(s)-1]
	}
	if s == "" || s == "null" {
		*d = Date{}
		return nil
	}
	parsed, err := parseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Scan implements sql.Scanner so Date reads directly from date columns.
func (d *Date) Scan(src interface{}) error {
	if src == nil {
		*d = Date{}
		return nil
	}
	parsed, err := ToDate(src)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}

// Value implements driver.Valuer. A zero Date stores as NULL.
func (d Date) Value() (driver.Value, error) {
	if d.IsZero() {
		return nil, nil
	}
	return d.t, nil
}

func orToday(d Date) Date {
	if d.IsZero() {
		return Today()
	}
	return d
}

// DaysBetween returns the exact number of calendar days from d1 to d2
// (negative when d2 precedes d1). A zero d2 defaults to today.
func DaysBetween(d1, d2 Date) int {
	d2 = orToday(d2)
	return int(d2.t.Sub(d1.t).Hours() / 24)
}

// YearsBetween returns the number of fully completed calendar years from d1
// to d2: one day before the Nth anniversary yields N-1, the anniversary
// itself and every day after yield N. A zero d2 defaults to today.
func YearsBetween(d1, d2 Date) int {
	d2 = orToday(d2)
	years := d2.Year() - d1.Year()
	if d2.Month() < d1.Month() || (d2.Month() == d1.Month() && d2.Day() < d1.Day()) {
		years--
	}
	return years
}

// MonthsBetween returns the number of fully completed calendar months from
// d1 to d2, computed from the year/month components with a day-of-month
// correction. Spans longer than a year return values above 12. A zero d2
// defaults to today.
func MonthsBetween(d1, d2 Date) int {
	d2 = orToday(d2)
	months := (d2.Year()-d1.Year())*12 + int(d2.Month()) - int(d1.Month())
	if d2.Day() < d1.Day() {
		months--
	}
	return months
}

// WeeksBetween returns DaysBetween / 7, truncated. A zero d2 defaults to
// today.
func WeeksBetween(d1, d2 Date) int {
	return DaysBetween(d1, orToday(d2)) / 7
}

// DetailedDiff decomposes the span from d1 to d2 into whole years, remaining
// whole months and remaining whole weeks, in that priority, formatted as
// "{y}y, {m}m, {w}w". Left-over days below a week are not part of the unit
// set. A zero d2 defaults to today.
func DetailedDiff(d1, d2 Date) string {
	d2 = orToday(d2)
	months := MonthsBetween(d1, d2)
	anchor := d2.AddDate(0, -months, 0)
	weeks := DaysBetween(d1, anchor) / 7
	return fmt.Sprintf("%dy, %dm, %dw", months/12, months%12, weeks)
}

// ValidateDayDiff reports whether an elapsed day count meets a required
// minimum.
func ValidateDayDiff(dayDiff, requiredDays int) bool {
	return dayDiff >= requiredDays
}

// Period is a calendar period of years, months and weeks.
type Period struct {
	Years  int
	Months int
	Weeks  int
}

// DateMinusPeriod subtracts the period from the date: years first, then
// months, then weeks, each calendar-exact.
func DateMinusPeriod(d Date, p Period) Date {
	return d.AddDate(-p.Years, 0, 0).AddDate(0, -p.Months, 0).AddDate(0, 0, -7*p.Weeks)
}

// ValidatePeriodDiff reports whether the calendar span from d1 to d2 is at
// least the given period; boundary equality is true. A zero d2 defaults to
// today.
func ValidatePeriodDiff(d1, d2 Date, p Period) bool {
	d2 = orToday(d2)
	return d1.OnOrBefore(DateMinusPeriod(d2, p))
}
