package service

import (
	"context"
	"testing"
	"time"

	"github.com/andymarkow/cybexchange/internal/domain/money"
	"github.com/andymarkow/cybexchange/internal/domain/rates"
	"github.com/andymarkow/cybexchange/internal/domain/settings"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSettings(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	list, err := f.svc.Settings(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, settings.KeyLoanInterestRate, list[0].Key)
	assert.Equal(t, "15", list[0].Value)

	_, err = f.svc.UpdateSetting(ctx, "loan_interest_rate", "-1")
	require.ErrorIs(t, err, settings.ErrSettingValueInvalid)

	_, err = f.svc.UpdateSetting(ctx, "max_loan", "10")
	require.ErrorIs(t, err, settings.ErrSettingKeyUnknown)

	_, err = f.svc.UpdateSetting(ctx, "loan_interest_rate", "24")
	require.NoError(t, err)

	rate, err := f.svc.LoanInterestRate(ctx)
	require.NoError(t, err)
	assert.True(t, rate.Equal(decimal.NewFromInt(24)))

	list, err = f.svc.Settings(ctx)
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "24", list[0].Value)
}

func TestCurrencyRates(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	list, err := f.svc.CurrencyRates(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 3)

	_, err = f.svc.UpdateCurrencyRates(ctx, nil)
	require.ErrorIs(t, err, ErrRatesEmpty)

	pair, err := rates.NewPair(money.CurrencyKZ, money.CurrencyEUR)
	require.NoError(t, err)

	rate, err := rates.NewCurrencyRate(pair, decimal.RequireFromString("0.00095"), time.Now())
	require.NoError(t, err)

	list, err = f.svc.UpdateCurrencyRates(ctx, []*rates.CurrencyRate{rate})
	require.NoError(t, err)
	assert.Len(t, list, 4)

	usr := f.register(t)

	_, conv, err := f.svc.Exchange(ctx, usr.ID(), decimal.NewFromInt(10000), money.CurrencyKZ, money.CurrencyEUR)
	require.NoError(t, err)
	assert.Equal(t, "9.50", money.Format(conv.Converted))

	// Re-seeding keeps administrator changes.
	require.NoError(t, f.svc.SeedCurrencyRates(ctx))

	list, err = f.svc.CurrencyRates(ctx)
	require.NoError(t, err)
	assert.Len(t, list, 4)
}
