package core

import (
	"encoding/json"
	"fmt"
	"time"
)

// DateLayout is the wire and storage form of a calendar date.
const DateLayout = "2006-01-02"

// Date is a local calendar day. The wrapped time is always midnight UTC so
// comparisons never depend on the process timezone.
type Date struct {
	time.Time
}

// NewDate creates a new Date from year, month, day. Out-of-range values are
// normalized the way time.Date normalizes them.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// DateOf returns the calendar day t falls on in its own location.
func DateOf(t time.Time) Date {
	return NewDate(t.Year(), int(t.Month()), t.Day())
}

// Today returns the current local calendar day.
func Today() Date {
	return DateOf(time.Now())
}

// ParseDate parses a date string in YYYY-MM-DD format.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse(DateLayout, s)
	if err != nil {
		return Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return Date{Time: t}, nil
}

// Validate rejects the zero date.
func (d Date) Validate() error {
	if d.IsZero() {
		return fmt.Errorf("%w: date cannot be zero", ErrInvalidDate)
	}
	return nil
}

// Day returns the day of the month
func (d Date) Day() int {
	return d.Time.Day()
}

// Month returns the month
func (d Date) Month() int {
	return int(d.Time.Month())
}

// Year returns the year
func (d Date) Year() int {
	return d.Time.Year()
}

// String returns the YYYY-MM-DD form, or "" for the zero date.
func (d Date) String() string {
	if d.IsZero() {
		return ""
	}
	return d.Format(DateLayout)
}

// Before reports whether d is strictly before o.
func (d Date) Before(o Date) bool { return d.Time.Before(o.Time) }

// After reports whether d is strictly after o.
func (d Date) After(o Date) bool { return d.Time.After(o.Time) }

// Equal reports whether d and o are the same day.
func (d Date) Equal(o Date) bool { return d.Time.Equal(o.Time) }

// AddDays returns d shifted by n days.
func (d Date) AddDays(n int) Date {
	return Date{Time: d.Time.AddDate(0, 0, n)}
}

// AddMonthsClamped moves d by n months and lands on anchorDay, clamped to the
// last day of the target month. An anchorDay outside 1..31 falls back to d's day.
func (d Date) AddMonthsClamped(n, anchorDay int) Date {
	if anchorDay < 1 || anchorDay > 31 {
		anchorDay = d.Day()
	}
	// Month arithmetic on the first of the month never overflows.
	first := time.Date(d.Year(), d.Time.Month(), 1, 0, 0, 0, 0, time.UTC).AddDate(0, n, 0)
	day := min(anchorDay, DaysIn(first.Year(), int(first.Month())))
	return NewDate(first.Year(), int(first.Month()), day)
}

// DaysIn returns the number of days in the given month.
func DaysIn(year, month int) int {
	return time.Date(year, time.Month(month)+1, 0, 0, 0, 0, 0, time.UTC).Day()
}

// MonthBounds returns the half-open range [start, end) covering year/month.
func MonthBounds(year, month int) (Date, Date, error) {
	if month < 1 || month > 12 {
		return Date{}, Date{}, fmt.Errorf("%w: month %d", ErrInvalidDate, month)
	}
	start := NewDate(year, month, 1)
	return start, start.AddMonthsClamped(1, 1), nil
}

// SameMonth reports whether d and o fall in the same calendar month.
func (d Date) SameMonth(o Date) bool {
	return d.Year() == o.Year() && d.Month() == o.Month()
}

// MarshalJSON encodes the date as "YYYY-MM-DD".
func (d Date) MarshalJSON() ([]byte, error) {
	return json.Marshal(d.String())
}

// UnmarshalJSON decodes "YYYY-MM-DD"; empty string and null give the zero date.
func (d *Date) UnmarshalJSON(data []byte) error {
	var s string
	if err := json.Unmarshal(data, &s); err != nil {
		return fmt.Errorf("%w: %s", ErrInvalidDate, string(data))
	}
	if s == "" {
		*d = Date{}
		return nil
	}
	parsed, err := ParseDate(s)
	if err != nil {
		return err
	}
	*d = parsed
	return nil
}
