package loans

import (
	"errors"
	"fmt"

	"github.com/andymarkow/cybexchange/internal/domain/money"
	"github.com/shopspring/decimal"
)

var (
	ErrPrincipalNotPositive = errors.New("loan principal must be greater than zero")
	ErrInterestRateNegative = errors.New("loan interest rate must not be negative")
	ErrTermInvalid          = errors.New("loan term must be at least one month")
)

// calcPrecision is the number of fractional digits kept in intermediate results.
const calcPrecision int32 = 24

var (
	one          = decimal.NewFromInt(1)
	percentMonth = decimal.NewFromInt(1200)

	// growthCeiling caps (1+r)^N. Past it g/(g-1) equals 1 far below the minor
	// unit and the installment is P*r.
	growthCeiling = decimal.New(1, 40)
)

// Terms are the inputs of an amortizing loan.
type Terms struct {
	Principal  decimal.Decimal
	AnnualRate decimal.Decimal // percent, e.g. 15 for 15%
	TermMonths int
}

func (t Terms) Validate() error {
	if !t.Principal.IsPositive() {
		return ErrPrincipalNotPositive
	}

	if t.AnnualRate.IsNegative() {
		return ErrInterestRateNegative
	}

	if t.TermMonths <= 0 {
		return fmt.Errorf("%w: %d months", ErrTermInvalid, t.TermMonths)
	}

	return nil
}

// Quote is the payment plan derived from Terms. MonthlyPayment is rounded to the
// minor unit first; TotalPayment is exactly MonthlyPayment x TermMonths so the two
// never drift apart. When the rounding goes down, TotalInterest can come out a few
// minor units below the exact figure, negative for tiny principals or rates.
type Quote struct {
	MonthlyPayment decimal.Decimal
	TotalPayment   decimal.Decimal
	TotalInterest  decimal.Decimal
}

// Calculate computes the fixed installment of an amortizing loan:
//
//	r = R / 100 / 12
//	M = P * r * (1+r)^N / ((1+r)^N - 1)   when r > 0
//	M = P / N                            when r = 0
func Calculate(t Terms) (Quote, error) {
	if err := t.Validate(); err != nil {
		return Quote{}, err
	}

	n := decimal.NewFromInt(int64(t.TermMonths))
	r := t.AnnualRate.DivRound(percentMonth, calcPrecision)

	var monthly decimal.Decimal

	if r.IsZero() {
		monthly = t.Principal.DivRound(n, calcPrecision)
	} else {
		growth, ok := powInt(one.Add(r), t.TermMonths)
		if ok {
			monthly = t.Principal.Mul(r).Mul(growth).DivRound(growth.Sub(one), calcPrecision)
		} else {
			monthly = t.Principal.Mul(r)
		}
	}

	monthly = money.Round(monthly)
	total := monthly.Mul(n)

	return Quote{
		MonthlyPayment: monthly,
		TotalPayment:   total,
		TotalInterest:  total.Sub(t.Principal),
	}, nil
}

// powInt raises base > 1 to a positive integer power by squaring, truncating
// intermediates to calcPrecision digits. It reports false once the result would
// exceed growthCeiling.
func powInt(base decimal.Decimal, exp int) (decimal.Decimal, bool) {
	result := one

	for exp > 0 {
		if exp&1 == 1 {
			result = result.Mul(base).Truncate(calcPrecision)
			if result.GreaterThan(growthCeiling) {
				return decimal.Zero, false
			}
		}

		exp >>= 1
		if exp == 0 {
			break
		}

		// Every remaining factor is at least base.
		base = base.Mul(base).Truncate(calcPrecision)
		if base.GreaterThan(growthCeiling) {
			return decimal.Zero, false
		}
	}

	return result, true
}
