//nolint:wrapcheck
package transactions

import (
	"crypto/rand"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/andymarkow/cybexchange/internal/domain/money"
	"github.com/andymarkow/cybexchange/internal/domain/rates"
	"github.com/andymarkow/cybexchange/internal/domain/users"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrTransactionTypeInvalid    = errors.New("transaction type is invalid")
	ErrTransactionStatusInvalid  = errors.New("transaction status is invalid")
	ErrTransactionAlreadySettled = errors.New("transaction already settled")
	ErrTransactionNotSettleable  = errors.New("transaction type cannot be settled")
)

type Type string

const (
	TypeDeposit          Type = "deposit"
	TypeWithdraw         Type = "withdraw"
	TypeExchange         Type = "exchange"
	TypeLoanDisbursement Type = "loan_disbursement"
	TypeLoanPayment      Type = "loan_payment"
)

func ParseType(s string) (Type, error) {
	switch t := Type(s); t {
	case TypeDeposit, TypeWithdraw, TypeExchange, TypeLoanDisbursement, TypeLoanPayment:
		return t, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrTransactionTypeInvalid, s)
	}
}

func ParseStatus(s string) (users.VerificationStatus, error) {
	switch st := users.VerificationStatus(s); st {
	case users.StatusPending, users.StatusApproved, users.StatusRejected:
		return st, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrTransactionStatusInvalid, s)
	}
}

type Transaction struct {
	id          string
	userID      string
	txType      Type
	amount      decimal.Decimal
	currency    money.Currency
	description string
	reference   string
	status      users.VerificationStatus
	createdAt   time.Time
	settledAt   *time.Time
}

func newPending(userID string, txType Type, amount decimal.Decimal, currency money.Currency, description string) (*Transaction, error) {
	if err := users.ValidateID(userID); err != nil {
		return nil, err
	}

	if err := money.ValidatePositive(amount); err != nil {
		return nil, err
	}

	if !currency.Valid() {
		return nil, fmt.Errorf("%w: %q", money.ErrCurrencyUnknown, currency)
	}

	return &Transaction{
		id:          uuid.NewString(),
		userID:      userID,
		txType:      txType,
		amount:      amount,
		currency:    currency,
		description: description,
		status:      users.StatusPending,
		createdAt:   time.Now().UTC(),
	}, nil
}

// NewDeposit creates a pending deposit carrying the bank reconciliation reference.
func NewDeposit(userID string, amount decimal.Decimal, currency money.Currency, reference string) (*Transaction, error) {
	tx, err := newPending(userID, TypeDeposit, amount, currency,
		fmt.Sprintf("Deposit of %s %s", money.Format(amount), currency))
	if err != nil {
		return nil, err
	}

	tx.reference = reference

	return tx, nil
}

func NewWithdrawal(userID string, amount decimal.Decimal, currency money.Currency) (*Transaction, error) {
	return newPending(userID, TypeWithdraw, amount, currency,
		fmt.Sprintf("Withdrawal of %s %s", money.Format(amount), currency))
}

// NewExchange records an exchange in the source currency only. The description embeds
// both sides of the conversion.
func NewExchange(userID string, conv rates.Conversion) (*Transaction, error) {
	return newPending(userID, TypeExchange, conv.Amount, conv.Pair.From,
		fmt.Sprintf("Exchange of %s %s to %s %s",
			money.Format(conv.Amount), conv.Pair.From,
			money.Format(conv.Converted), conv.Pair.To,
		))
}

// NewTransaction restores a transaction from persisted state.
func NewTransaction(
	id, userID string, txType Type, amount decimal.Decimal, currency money.Currency,
	description, reference string, status users.VerificationStatus,
	createdAt time.Time, settledAt *time.Time,
) (*Transaction, error) {
	if err := users.ValidateID(userID); err != nil {
		return nil, err
	}

	return &Transaction{
		id:          id,
		userID:      userID,
		txType:      txType,
		amount:      amount,
		currency:    currency,
		description: description,
		reference:   reference,
		status:      status,
		createdAt:   createdAt,
		settledAt:   settledAt,
	}, nil
}

func (t *Transaction) ID() string                       { return t.id }
func (t *Transaction) UserID() string                   { return t.userID }
func (t *Transaction) Type() Type                       { return t.txType }
func (t *Transaction) Amount() decimal.Decimal          { return t.amount }
func (t *Transaction) Currency() money.Currency         { return t.currency }
func (t *Transaction) Description() string              { return t.description }
func (t *Transaction) Reference() string                { return t.reference }
func (t *Transaction) Status() users.VerificationStatus { return t.status }
func (t *Transaction) CreatedAt() time.Time             { return t.createdAt }
func (t *Transaction) SettledAt() *time.Time            { return t.settledAt }

// Settle moves a pending entry to approved or rejected.
func (t *Transaction) Settle(decision users.VerificationStatus, at time.Time) error {
	if decision != users.StatusApproved && decision != users.StatusRejected {
		return fmt.Errorf("%w: %q", ErrTransactionStatusInvalid, decision)
	}

	switch t.txType {
	case TypeDeposit, TypeWithdraw, TypeExchange:
	default:
		return fmt.Errorf("%w: %s", ErrTransactionNotSettleable, t.txType)
	}

	if t.status != users.StatusPending {
		return ErrTransactionAlreadySettled
	}

	t.status = decision
	t.settledAt = &at

	return nil
}

// BalanceDelta is the change to the owner's KZ balance implied by settling the entry
// with decision. homeAmount is the entry amount expressed in KZ.
func BalanceDelta(txType Type, decision users.VerificationStatus, homeAmount decimal.Decimal) decimal.Decimal {
	if decision != users.StatusApproved {
		return decimal.Zero
	}

	switch txType {
	case TypeDeposit:
		return homeAmount
	case TypeWithdraw:
		return homeAmount.Neg()
	default:
		return decimal.Zero
	}
}

const (
	referencePrefix    = "DEP"
	referenceSuffixLen = 9
	referenceAlphabet  = "0123456789ABCDEFGHIJKLMNOPQRSTUVWXYZ"
)

// GenerateDepositReference returns DEP-<unix millis>-<9 random base36 chars>.
func GenerateDepositReference(now time.Time) (string, error) {
	var sb strings.Builder

	alphabetLen := big.NewInt(int64(len(referenceAlphabet)))

	for i := 0; i < referenceSuffixLen; i++ {
		n, err := rand.Int(rand.Reader, alphabetLen)
		if err != nil {
			return "", fmt.Errorf("rand.Int: %w", err)
		}

		sb.WriteByte(referenceAlphabet[n.Int64()])
	}

	return fmt.Sprintf("%s-%d-%s", referencePrefix, now.UnixMilli(), sb.String()), nil
}
