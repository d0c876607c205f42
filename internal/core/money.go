// Package core provides money parsing and handling utilities.
//
// This file contains the fixed-point Money type used for every amount and
// balance in the ledger. Amounts are integer cents; decimal text is parsed and
// formatted through shopspring/decimal so no float ever touches a balance.
package core

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

// Money is a signed amount in minor units (cents).
type Money struct {
	Cents int64
}

// Zero is the zero amount.
var Zero = Money{}

// Cents builds a Money from minor units.
func Cents(c int64) Money {
	return Money{Cents: c}
}

// ParseMoney converts a decimal string to Money with half-up rounding on the
// third decimal place.
//
// It accepts both dot (12.34) and comma (12,34) decimal separators and an
// optional leading sign.
//
// Examples:
//
//	ParseMoney("12.34")  -> 1234
//	ParseMoney("12,345") -> 1235 (rounds up)
//	ParseMoney("-5")     -> -500
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return Money{}, ErrInvalidAmount
	}
	s = strings.ReplaceAll(s, ",", ".")
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return FromDecimal(d)
}

// ParseAmount parses a strictly positive magnitude, the form every ledger
// operation accepts at its boundary.
func ParseAmount(s string) (Money, error) {
	m, err := ParseMoney(s)
	if err != nil {
		return Money{}, err
	}
	if err := m.Validate(); err != nil {
		return Money{}, err
	}
	return m, nil
}

// FromDecimal rounds d to cents. Values outside the int64 cent range are rejected.
func FromDecimal(d decimal.Decimal) (Money, error) {
	cents := d.Round(2).Shift(2)
	if !cents.BigInt().IsInt64() {
		return Money{}, fmt.Errorf("%w: %s out of range", ErrInvalidAmount, d.String())
	}
	return Money{Cents: cents.IntPart()}, nil
}

// Validate reports ErrInvalidAmount unless the amount is a positive magnitude.
func (m Money) Validate() error {
	if m.Cents <= 0 {
		return ErrInvalidAmount
	}
	return nil
}

// Decimal returns the exact decimal value of m.
func (m Money) Decimal() decimal.Decimal {
	return decimal.New(m.Cents, -2)
}

// String formats m with exactly two decimals, e.g. "-12.30".
func (m Money) String() string {
	return m.Decimal().StringFixed(2)
}

func (m Money) Add(o Money) Money { return Money{Cents: m.Cents + o.Cents} }
func (m Money) Sub(o Money) Money { return Money{Cents: m.Cents - o.Cents} }
func (m Money) Neg() Money        { return Money{Cents: -m.Cents} }

// Abs returns the magnitude of m.
func (m Money) Abs() Money {
	if m.Cents < 0 {
		return m.Neg()
	}
	return m
}

func (m Money) IsZero() bool     { return m.Cents == 0 }
func (m Money) IsNegative() bool { return m.Cents < 0 }

// GreaterThan reports whether m > o.
func (m Money) GreaterThan(o Money) bool { return m.Cents > o.Cents }

// Percent returns m as a percentage of base, rounded to two decimals.
// A zero base yields 0.
func (m Money) Percent(base Money) float64 {
	if base.Cents == 0 {
		return 0
	}
	p := decimal.NewFromInt(m.Cents).
		Div(decimal.NewFromInt(base.Cents)).
		Mul(decimal.NewFromInt(100)).
		Round(2)
	return p.InexactFloat64()
}

// MarshalJSON encodes m as a decimal string so clients never see float rounding.
func (m Money) MarshalJSON() ([]byte, error) {
	return json.Marshal(m.String())
}

// UnmarshalJSON accepts either a decimal string ("12.34") or a JSON number.
func (m *Money) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		*m = Money{}
		return nil
	}
	var s string
	if len(data) > 0 && data[0] == '"' {
		if err := json.Unmarshal(data, &s); err != nil {
			return err
		}
	} else {
		s = string(data)
	}
	parsed, err := ParseMoney(s)
	if err != nil {
		return err
	}
	*m = parsed
	return nil
}
