package settings

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
)

var (
	ErrSettingKeyUnknown   = errors.New("setting key is unknown")
	ErrSettingValueInvalid = errors.New("setting value is invalid")
)

// Key names a system setting.
type Key string

// KeyLoanInterestRate is the annual percentage applied to new loan applications.
const KeyLoanInterestRate Key = "loan_interest_rate"

type Setting struct {
	Key       Key
	Value     string
	UpdatedAt time.Time
}

// NewSetting validates a value against its key.
func NewSetting(key string, value string) (*Setting, error) {
	value = strings.TrimSpace(value)

	switch Key(key) {
	case KeyLoanInterestRate:
		if _, err := ParseRate(value); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: %q", ErrSettingKeyUnknown, key)
	}

	return &Setting{
		Key:       Key(key),
		Value:     value,
		UpdatedAt: time.Now().UTC(),
	}, nil
}

// RatePrecision is the number of fractional digits a stored rate keeps.
const RatePrecision = 2

// ParseRate parses a percentage between 0 and 100 with at most RatePrecision
// fractional digits.
func ParseRate(value string) (decimal.Decimal, error) {
	rate, err := decimal.NewFromString(value)
	if err != nil || rate.IsNegative() || rate.GreaterThan(decimal.NewFromInt(100)) ||
		!rate.Equal(rate.Round(RatePrecision)) {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrSettingValueInvalid, value)
	}

	return rate, nil
}
