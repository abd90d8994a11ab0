package search

import (
	"fmt"
	"time"
)

// Date is a calendar day without time of day or location.
type Date struct {
	Year  int
	Month time.Month
	Day   int
}

// FallbackDate is used for date text that cannot be normalized.
var FallbackDate = Date{Year: 2025, Month: time.January, Day: 1}

// NewDate creates a Date. Values out of range are normalized like with
// time.Date, so 32 December becomes 1 January of the next year.
func NewDate(year int, month time.Month, day int) Date {
	return DateOf(time.Date(year, month, day, 0, 0, 0, 0, time.UTC))
}

// DateOf returns the calendar day of the given time in its location.
func DateOf(t time.Time) Date {
	year, month, day := t.Date()
	return Date{Year: year, Month: month, Day: day}
}

// Today returns the local calendar day of the given wall clock time. It is
// meant to be called at the application boundary so that searching itself
// stays independent of the clock.
func Today(now time.Time) Date {
	return DateOf(now.Local())
}

// Time returns midnight UTC of the day.
func (d Date) Time() time.Time {
	return time.Date(d.Year, d.Month, d.Day, 0, 0, 0, 0, time.UTC)
}

// UnixMilli returns the epoch milliseconds of midnight UTC of the day.
func (d Date) UnixMilli() int64 {
	return d.Time().UnixMilli()
}

// endOfDayMilli returns the epoch milliseconds of the last millisecond of the
// day.
func (d Date) endOfDayMilli() int64 {
	return d.AddDays(1).UnixMilli() - 1
}

// AddDays returns the day n days after d. n may be negative.
func (d Date) AddDays(n int) Date {
	return NewDate(d.Year, d.Month, d.Day+n)
}

// Compare returns -1 if d is before other, 1 if after and 0 if both are the
// same day.
func (d Date) Compare(other Date) int {
	switch {
	case d.Year != other.Year:
		return sign(d.Year - other.Year)
	case d.Month != other.Month:
		return sign(int(d.Month) - int(other.Month))
	default:
		return sign(d.Day - other.Day)
	}
}

// Before reports whether d is before other.
func (d Date) Before(other Date) bool {
	return d.Compare(other) < 0
}

// After reports whether d is after other.
func (d Date) After(other Date) bool {
	return d.Compare(other) > 0
}

// Within reports whether d lies in the inclusive range from start to end.
func (d Date) Within(start, end Date) bool {
	return !d.Before(start) && !d.After(end)
}

// IsZero reports whether d is the zero Date.
func (d Date) IsZero() bool {
	return d == Date{}
}

func (d Date) String() string {
	return fmt.Sprintf("%04d-%02d-%02d", d.Year, int(d.Month), d.Day)
}

// MarshalText encodes the Date as YYYY-MM-DD.
func (d Date) MarshalText() ([]byte, error) {
	return []byte(d.String()), nil
}

// UnmarshalText decodes a Date from YYYY-MM-DD.
func (d *Date) UnmarshalText(text []byte) error {
	t, err := time.Parse("2006-01-02", string(text))
	if err != nil {
		return fmt.Errorf("parse date: %w", err)
	}
	*d = DateOf(t)
	return nil
}

func sign(n int) int {
	switch {
	case n < 0:
		return -1
	case n > 0:
		return 1
	}
	return 0
}

// daysIn returns the number of days of the month in the given year.
func daysIn(year int, month time.Month) int {
	return time.Date(year, month+1, 0, 0, 0, 0, 0, time.UTC).Day()
}
