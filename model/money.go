package models

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Money is an exact decimal amount in the store currency.
type Money = decimal.Decimal

// CurrencySuffix is the literal printed after every amount on receipts.
const CurrencySuffix = "TL"

// NewMoney parses a decimal string such as "10.50".
func NewMoney(s string) (Money, error) {
	return decimal.NewFromString(s)
}

// NewMoneyFromInt converts a whole quantity, for multiplying prices.
func NewMoneyFromInt(n int) Money {
	return decimal.NewFromInt(int64(n))
}

// MustMoney is NewMoney for hardcoded values.
func MustMoney(s string) Money {
	return decimal.RequireFromString(s)
}

// HasCents reports whether m fits two fraction digits, the precision
// amounts are stored with.
func HasCents(m Money) bool {
	return m.Equal(m.Round(2))
}

// FormatMoney renders two fraction digits with a decimal comma and the
// currency suffix: 10.5 -> "10,50 TL".
func FormatMoney(m Money) string {
	return strings.Replace(m.StringFixed(2), ".", ",", 1) + " " + CurrencySuffix
}

// ParseMoney is the inverse of FormatMoney.
func ParseMoney(s string) (Money, error) {
	s = strings.TrimSpace(strings.TrimSuffix(strings.TrimSpace(s), CurrencySuffix))
	return decimal.NewFromString(strings.Replace(s, ",", ".", 1))
}
