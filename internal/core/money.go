// Package core provides the ledger domain types.
//
// This file contains the Money value type: a decimal amount with exactly two
// fraction digits, parsed from user input and rounded half away from zero.
package core

import (
	"fmt"
	"regexp"
	"strings"

	"github.com/shopspring/decimal"
)

// Fraction is the number of decimal places every amount carries.
const Fraction = 2

// maxAmount bounds the magnitude of a single amount so that cents always fit an int64.
var maxAmount = decimal.New(1, 13)

// Money is an exact decimal amount rounded to two fraction digits.
// The zero value is 0.00.
type Money struct {
	value decimal.Decimal
}

// Zero is 0.00.
var Zero = Money{}

// numeral is a plain decimal literal: optional sign, digits, at most one
// fraction part, no exponent.
var numeral = regexp.MustCompile(`^[+-]?(\d+(\.\d*)?|\.\d+)$`)

// maxDigits bounds the literal length accepted by parseDecimal.
const maxDigits = 64

// parseDecimal parses a plain decimal literal with '.' as separator.
func parseDecimal(s string) (decimal.Decimal, error) {
	if len(s) > maxDigits || !numeral.MatchString(s) {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	d, err := decimal.NewFromString(s)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("%w: %q", ErrInvalidAmount, s)
	}
	return d, nil
}

// Round rounds d half away from zero to two decimals.
func Round(d decimal.Decimal) Money {
	return Money{value: d.Round(Fraction)}
}

// MoneyFromCents builds a Money from an integer number of cents.
func MoneyFromCents(cents int64) Money {
	return Money{value: decimal.New(cents, -Fraction)}
}

// ParseAmount converts a user-supplied numeral to Money.
//
// Both dot (12.34) and comma (12,34) are accepted as the fraction separator and
// the value is rounded half away from zero on the third decimal place. A leading
// sign is allowed; exponent notation is not. Unparsable input, a value that
// rounds to zero and values outside the supported range return ErrInvalidAmount.
//
// Examples:
//
//	ParseAmount("12,34")  -> 12.34
//	ParseAmount("5.005")  -> 5.01
//	ParseAmount("-5.005") -> -5.01
//	ParseAmount("0.004")  -> ErrInvalidAmount
func ParseAmount(raw string) (Money, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return Zero, ErrInvalidAmount
	}
	d, err := parseDecimal(strings.ReplaceAll(s, ",", "."))
	if err != nil {
		return Zero, err
	}
	m := Round(d)
	if m.IsZero() {
		return Zero, fmt.Errorf("%w: amount must not be zero", ErrInvalidAmount)
	}
	if m.value.Abs().GreaterThanOrEqual(maxAmount) {
		return Zero, fmt.Errorf("%w: amount out of range", ErrInvalidAmount)
	}
	return m, nil
}

// ParseUnsignedAmount is ParseAmount restricted to numerals without a sign.
// Commands choose the sign of the movement themselves.
func ParseUnsignedAmount(raw string) (Money, error) {
	s := strings.TrimSpace(raw)
	if strings.HasPrefix(s, "+") || strings.HasPrefix(s, "-") {
		return Zero, fmt.Errorf("%w: sign not allowed", ErrInvalidAmount)
	}
	return ParseAmount(s)
}

func (m Money) Add(n Money) Money            { return Money{value: m.value.Add(n.value)} }
func (m Money) Neg() Money                   { return Money{value: m.value.Neg()} }
func (m Money) IsZero() bool                 { return m.value.IsZero() }
func (m Money) IsCredit() bool               { return m.value.IsPositive() }
func (m Money) IsDebit() bool                { return m.value.IsNegative() }
func (m Money) Equal(n Money) bool           { return m.value.Equal(n.value) }
func (m Money) Cmp(n Money) int              { return m.value.Cmp(n.value) }
func (m Money) Decimal() decimal.Decimal     { return m.value }
func (m Money) Abs() Money                   { return Money{value: m.value.Abs()} }
func (m Money) GreaterThan(n Money) bool     { return m.value.GreaterThan(n.value) }
func (m Money) LessThanOrEqual(n Money) bool { return m.value.LessThanOrEqual(n.value) }

// Cents returns the amount as an integer number of cents.
func (m Money) Cents() int64 {
	return m.value.Shift(Fraction).IntPart()
}

// String returns the amount with exactly two fraction digits, e.g. "-30.00".
func (m Money) String() string {
	return m.value.StringFixed(Fraction)
}

// SignedString prefixes credits with "+"; debits already carry "-".
func (m Money) SignedString() string {
	if m.IsCredit() {
		return "+" + m.String()
	}
	return m.String()
}

// Float64 is meant for spreadsheet cells only; never compute with it.
func (m Money) Float64() float64 {
	return m.value.InexactFloat64()
}

func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(`"` + m.String() + `"`), nil
}

func (m *Money) UnmarshalJSON(data []byte) error {
	d, err := parseDecimal(strings.Trim(string(data), `"`))
	if err != nil {
		return err
	}
	*m = Round(d)
	return nil
}
