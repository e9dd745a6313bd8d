package rates

import (
	"errors"
	"fmt"
	"time"

	"github.com/andymarkow/cybexchange/internal/domain/money"
	"github.com/shopspring/decimal"
)

var (
	ErrRateUnavailable  = errors.New("exchange rate unavailable")
	ErrRateNotPositive  = errors.New("exchange rate must be greater than zero")
	ErrRateSameCurrency = errors.New("exchange currencies must differ")
)

// RateScale is the number of fractional digits kept for a rate.
const RateScale int32 = 6

// Pair is a directed currency pair. EUR->KZ says nothing about KZ->EUR.
type Pair struct {
	From money.Currency
	To   money.Currency
}

func (p Pair) String() string {
	return p.From.String() + "->" + p.To.String()
}

func NewPair(from, to money.Currency) (Pair, error) {
	if !from.Valid() {
		return Pair{}, fmt.Errorf("%w: %q", money.ErrCurrencyUnknown, from)
	}

	if !to.Valid() {
		return Pair{}, fmt.Errorf("%w: %q", money.ErrCurrencyUnknown, to)
	}

	if from == to {
		return Pair{}, ErrRateSameCurrency
	}

	return Pair{From: from, To: to}, nil
}

type CurrencyRate struct {
	pair      Pair
	rate      decimal.Decimal
	updatedAt time.Time
}

func NewCurrencyRate(pair Pair, rate decimal.Decimal, updatedAt time.Time) (*CurrencyRate, error) {
	if _, err := NewPair(pair.From, pair.To); err != nil {
		return nil, err
	}

	if !rate.IsPositive() {
		return nil, ErrRateNotPositive
	}

	return &CurrencyRate{
		pair:      pair,
		rate:      rate.Round(RateScale),
		updatedAt: updatedAt,
	}, nil
}

func (r *CurrencyRate) Pair() Pair            { return r.pair }
func (r *CurrencyRate) From() money.Currency  { return r.pair.From }
func (r *CurrencyRate) To() money.Currency    { return r.pair.To }
func (r *CurrencyRate) Rate() decimal.Decimal { return r.rate }
func (r *CurrencyRate) UpdatedAt() time.Time  { return r.updatedAt }

// Conversion is the result of applying a rate to an amount.
type Conversion struct {
	Pair   Pair
	Amount decimal.Decimal
	Rate   decimal.Decimal
	// Converted keeps full precision; use money.Round for display.
	Converted decimal.Decimal
}

// Table is an immutable lookup of directed rates.
type Table struct {
	rates map[Pair]*CurrencyRate
}

func NewTable(list []*CurrencyRate) *Table {
	t := &Table{rates: make(map[Pair]*CurrencyRate, len(list))}

	for _, r := range list {
		t.rates[r.Pair()] = r
	}

	return t
}

func (t *Table) Lookup(from, to money.Currency) (*CurrencyRate, error) {
	pair, err := NewPair(from, to)
	if err != nil {
		return nil, err
	}

	r, ok := t.rates[pair]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrRateUnavailable, pair)
	}

	return r, nil
}

// Convert applies the directed rate from->to. It never inverts the opposite pair and
// never triangulates through a third currency.
func (t *Table) Convert(from, to money.Currency, amount decimal.Decimal) (Conversion, error) {
	if err := money.ValidatePositive(amount); err != nil {
		return Conversion{}, err
	}

	r, err := t.Lookup(from, to)
	if err != nil {
		return Conversion{}, err
	}

	return Convert(r, amount), nil
}

func Convert(r *CurrencyRate, amount decimal.Decimal) Conversion {
	return Conversion{
		Pair:      r.Pair(),
		Amount:    amount,
		Rate:      r.Rate(),
		Converted: amount.Mul(r.Rate()),
	}
}

// ToHomeCurrency expresses amount in KZ, the currency user balances are kept in.
func (t *Table) ToHomeCurrency(currency money.Currency, amount decimal.Decimal) (decimal.Decimal, error) {
	if currency == money.CurrencyKZ {
		return amount, nil
	}

	conv, err := t.Convert(currency, money.CurrencyKZ, amount)
	if err != nil {
		return decimal.Zero, err
	}

	return money.Round(conv.Converted), nil
}

// Defaults is the seed table installed on first start.
func Defaults() []*CurrencyRate {
	now := time.Now().UTC()

	seed := []struct {
		from, to money.Currency
		rate     string
	}{
		{money.CurrencyEUR, money.CurrencyKZ, "1050.00"},
		{money.CurrencyUSD, money.CurrencyKZ, "900.00"},
		{money.CurrencyEUR, money.CurrencyUSD, "1.08"},
	}

	out := make([]*CurrencyRate, 0, len(seed))
	for _, s := range seed {
		out = append(out, &CurrencyRate{
			pair:      Pair{From: s.from, To: s.to},
			rate:      decimal.RequireFromString(s.rate),
			updatedAt: now,
		})
	}

	return out
}
