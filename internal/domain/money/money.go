// Package money holds the currency set and decimal helpers shared by the ledger,
// the rate table and the loan calculator.
package money

import (
	"errors"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"
)

var (
	ErrCurrencyUnknown   = errors.New("currency is unknown")
	ErrAmountNotPositive = errors.New("amount must be greater than zero")
	ErrAmountInvalid     = errors.New("amount is not a valid decimal")
	ErrAmountPrecision   = errors.New("amount has more than two fractional digits")
)

// Currency is an ISO-like three letter code. KZ is the home currency in which user
// balances are kept.
type Currency string

const (
	CurrencyKZ  Currency = "KZ"
	CurrencyUSD Currency = "USD"
	CurrencyEUR Currency = "EUR"
)

// MinorUnits is the number of fractional digits used for display and persisted amounts.
const MinorUnits int32 = 2

func (c Currency) String() string {
	return string(c)
}

func (c Currency) Valid() bool {
	switch c {
	case CurrencyKZ, CurrencyUSD, CurrencyEUR:
		return true
	default:
		return false
	}
}

func ParseCurrency(s string) (Currency, error) {
	c := Currency(strings.ToUpper(strings.TrimSpace(s)))
	if !c.Valid() {
		return "", fmt.Errorf("%w: %q", ErrCurrencyUnknown, s)
	}

	return c, nil
}

// ParseAmount parses a strictly positive decimal amount.
func ParseAmount(s string) (decimal.Decimal, error) {
	amount, err := decimal.NewFromString(strings.TrimSpace(s))
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrAmountInvalid, s)
	}

	if err := ValidateAmount(amount); err != nil {
		return decimal.Zero, err
	}

	return amount, nil
}

// ValidateAmount accepts strictly positive amounts expressible in minor units.
func ValidateAmount(amount decimal.Decimal) error {
	if err := ValidatePositive(amount); err != nil {
		return err
	}

	if !amount.Equal(Round(amount)) {
		return ErrAmountPrecision
	}

	return nil
}

func ValidatePositive(amount decimal.Decimal) error {
	if !amount.IsPositive() {
		return ErrAmountNotPositive
	}

	return nil
}

// Round rounds half away from zero to the minor unit precision.
func Round(amount decimal.Decimal) decimal.Decimal {
	return amount.Round(MinorUnits)
}

// Format renders an amount with exactly two fractional digits.
func Format(amount decimal.Decimal) string {
	return amount.StringFixed(MinorUnits)
}
