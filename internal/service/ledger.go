package service

import (
	"context"
	"fmt"

	"github.com/andymarkow/cybexchange/internal/domain/money"
	"github.com/andymarkow/cybexchange/internal/domain/rates"
	"github.com/andymarkow/cybexchange/internal/domain/transactions"
	"github.com/andymarkow/cybexchange/internal/domain/users"
	"github.com/andymarkow/cybexchange/internal/notify"
	"github.com/andymarkow/cybexchange/internal/storage"
	"github.com/shopspring/decimal"
)

// Deposit records a pending deposit and sends the client the reference to quote on
// the bank transfer. The balance is credited when an admin approves the entry.
func (s *Service) Deposit(ctx context.Context, userID string, amount decimal.Decimal, currency money.Currency) (*transactions.Transaction, error) {
	usr, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("storage.GetUser: %w", err)
	}

	reference, err := transactions.GenerateDepositReference(s.now())
	if err != nil {
		return nil, fmt.Errorf("transactions.GenerateDepositReference: %w", err)
	}

	tx, err := transactions.NewDeposit(usr.ID(), amount, currency, reference)
	if err != nil {
		return nil, fmt.Errorf("transactions.NewDeposit: %w", err)
	}

	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		return nil, fmt.Errorf("storage.CreateTransaction: %w", err)
	}

	s.notifier.Notify(notify.DepositReference(recipientOf(usr), reference, money.Format(amount), currency.String()))

	return tx, nil
}

// Withdraw records a pending withdrawal. The request is checked against the balance
// under the owner's lock; the debit happens when an admin approves it.
func (s *Service) Withdraw(ctx context.Context, userID string, amount decimal.Decimal, currency money.Currency) (*transactions.Transaction, error) {
	tx, err := transactions.NewWithdrawal(userID, amount, currency)
	if err != nil {
		return nil, fmt.Errorf("transactions.NewWithdrawal: %w", err)
	}

	table, err := s.rateTable(ctx)
	if err != nil {
		return nil, err
	}

	homeAmount, err := table.ToHomeCurrency(currency, amount)
	if err != nil {
		return nil, fmt.Errorf("rates.ToHomeCurrency: %w", err)
	}

	if err := s.store.CreateWithdrawal(ctx, tx, homeAmount); err != nil {
		return nil, fmt.Errorf("storage.CreateWithdrawal: %w", err)
	}

	return tx, nil
}

// Exchange converts amount with the directed from->to rate and records a single
// entry in the source currency.
func (s *Service) Exchange(
	ctx context.Context, userID string, amount decimal.Decimal, from, to money.Currency,
) (*transactions.Transaction, rates.Conversion, error) {
	table, err := s.rateTable(ctx)
	if err != nil {
		return nil, rates.Conversion{}, err
	}

	conv, err := table.Convert(from, to, amount)
	if err != nil {
		return nil, rates.Conversion{}, fmt.Errorf("rates.Convert: %w", err)
	}

	tx, err := transactions.NewExchange(userID, conv)
	if err != nil {
		return nil, rates.Conversion{}, fmt.Errorf("transactions.NewExchange: %w", err)
	}

	if err := s.store.CreateTransaction(ctx, tx); err != nil {
		return nil, rates.Conversion{}, fmt.Errorf("storage.CreateTransaction: %w", err)
	}

	return tx, conv, nil
}

// Transactions lists the user's ledger newest first.
func (s *Service) Transactions(ctx context.Context, userID string, limit, offset int) ([]*transactions.Transaction, error) {
	limit, offset = NormalizePage(limit, offset)

	list, err := s.store.GetTransactionsByUser(ctx, userID, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("storage.GetTransactionsByUser: %w", err)
	}

	return list, nil
}

func (s *Service) PendingTransactions(ctx context.Context) ([]*transactions.Transaction, error) {
	list, err := s.store.GetTransactionsByStatus(ctx, users.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("storage.GetTransactionsByStatus: %w", err)
	}

	return list, nil
}

// SettleTransaction applies an admin decision to a pending deposit, withdrawal or
// exchange. Approved deposits and withdrawals move the owner's KZ balance by the
// KZ equivalent of the entry, in the same commit as the status change.
func (s *Service) SettleTransaction(ctx context.Context, id string, decision users.VerificationStatus) (*storage.Settlement, error) {
	if err := checkID(id, storage.ErrTransactionNotFound); err != nil {
		return nil, err
	}

	tx, err := s.store.GetTransaction(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("storage.GetTransaction: %w", err)
	}

	homeAmount := decimal.Zero

	if !transactions.BalanceDelta(tx.Type(), decision, tx.Amount()).IsZero() {
		table, err := s.rateTable(ctx)
		if err != nil {
			return nil, err
		}

		homeAmount, err = table.ToHomeCurrency(tx.Currency(), tx.Amount())
		if err != nil {
			return nil, fmt.Errorf("rates.ToHomeCurrency: %w", err)
		}
	}

	settlement, err := s.store.SettleTransaction(ctx, id, decision, homeAmount, s.now())
	if err != nil {
		return nil, fmt.Errorf("storage.SettleTransaction: %w", err)
	}

	return settlement, nil
}
