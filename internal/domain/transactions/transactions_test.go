package transactions

import (
	"regexp"
	"testing"
	"time"

	"github.com/andymarkow/cybexchange/internal/domain/money"
	"github.com/andymarkow/cybexchange/internal/domain/rates"
	"github.com/andymarkow/cybexchange/internal/domain/users"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var referencePattern = regexp.MustCompile(`^DEP-\d+-[0-9A-Z]{9}$`)

func TestGenerateDepositReference(t *testing.T) {
	now := time.UnixMilli(1717171717171)
	seen := make(map[string]struct{})

	for i := 0; i < 500; i++ {
		ref, err := GenerateDepositReference(now)
		require.NoError(t, err)
		require.Regexp(t, referencePattern, ref)
		assert.Contains(t, ref, "-1717171717171-")

		_, dup := seen[ref]
		require.False(t, dup, "duplicate reference %s", ref)

		seen[ref] = struct{}{}
	}
}

func TestNewDeposit(t *testing.T) {
	tx, err := NewDeposit("user-1", decimal.RequireFromString("250.5"), money.CurrencyUSD, "DEP-1-ABCDEFGHI")
	require.NoError(t, err)

	assert.Equal(t, TypeDeposit, tx.Type())
	assert.Equal(t, users.StatusPending, tx.Status())
	assert.Equal(t, "DEP-1-ABCDEFGHI", tx.Reference())
	assert.Equal(t, "Deposit of 250.50 USD", tx.Description())
	assert.Nil(t, tx.SettledAt())
}

func TestNewTransactionValidation(t *testing.T) {
	_, err := NewWithdrawal("user-1", decimal.Zero, money.CurrencyKZ)
	require.ErrorIs(t, err, money.ErrAmountNotPositive)

	_, err = NewWithdrawal("user-1", decimal.NewFromInt(-5), money.CurrencyKZ)
	require.ErrorIs(t, err, money.ErrAmountNotPositive)

	_, err = NewDeposit("user-1", decimal.NewFromInt(5), "GBP", "ref")
	require.ErrorIs(t, err, money.ErrCurrencyUnknown)

	_, err = NewDeposit("", decimal.NewFromInt(5), money.CurrencyKZ, "ref")
	require.ErrorIs(t, err, users.ErrUserIDEmpty)
}

func TestNewExchangeRecordsSourceSide(t *testing.T) {
	table := rates.NewTable(rates.Defaults())

	conv, err := table.Convert(money.CurrencyEUR, money.CurrencyKZ, decimal.NewFromInt(100))
	require.NoError(t, err)

	tx, err := NewExchange("user-1", conv)
	require.NoError(t, err)

	assert.Equal(t, TypeExchange, tx.Type())
	assert.Equal(t, money.CurrencyEUR, tx.Currency())
	assert.True(t, tx.Amount().Equal(decimal.NewFromInt(100)))
	assert.Equal(t, "Exchange of 100.00 EUR to 105000.00 KZ", tx.Description())
	assert.Empty(t, tx.Reference())
}

func TestSettle(t *testing.T) {
	at := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

	tx, err := NewWithdrawal("user-1", decimal.NewFromInt(10), money.CurrencyKZ)
	require.NoError(t, err)

	require.ErrorIs(t, tx.Settle(users.StatusPending, at), ErrTransactionStatusInvalid)

	require.NoError(t, tx.Settle(users.StatusApproved, at))
	assert.Equal(t, users.StatusApproved, tx.Status())
	require.NotNil(t, tx.SettledAt())
	assert.Equal(t, at, *tx.SettledAt())

	require.ErrorIs(t, tx.Settle(users.StatusRejected, at), ErrTransactionAlreadySettled)

	loanTx, err := NewTransaction("id", "user-1", TypeLoanDisbursement, decimal.NewFromInt(1),
		money.CurrencyKZ, "", "", users.StatusPending, at, nil)
	require.NoError(t, err)
	require.ErrorIs(t, loanTx.Settle(users.StatusApproved, at), ErrTransactionNotSettleable)
}

func TestBalanceDelta(t *testing.T) {
	amount := decimal.NewFromInt(1000)

	tests := []struct {
		txType   Type
		decision users.VerificationStatus
		want     string
	}{
		{TypeDeposit, users.StatusApproved, "1000"},
		{TypeWithdraw, users.StatusApproved, "-1000"},
		{TypeExchange, users.StatusApproved, "0"},
		{TypeDeposit, users.StatusRejected, "0"},
		{TypeWithdraw, users.StatusRejected, "0"},
	}

	for _, tt := range tests {
		got := BalanceDelta(tt.txType, tt.decision, amount)
		assert.True(t, got.Equal(decimal.RequireFromString(tt.want)), "%s/%s: %s", tt.txType, tt.decision, got)
	}
}
