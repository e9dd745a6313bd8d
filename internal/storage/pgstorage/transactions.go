package pgstorage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/andymarkow/cybexchange/internal/domain/money"
	"github.com/andymarkow/cybexchange/internal/domain/transactions"
	"github.com/andymarkow/cybexchange/internal/domain/users"
	"github.com/andymarkow/cybexchange/internal/storage"
	"github.com/andymarkow/cybexchange/internal/storage/dbmodels"
	"github.com/lib/pq"
	"github.com/shopspring/decimal"
)

const transactionColumns = `id, user_id, type, amount, currency, description, reference, status, created_at, settled_at`

func scanTransaction(row rowScanner) (*transactions.Transaction, error) {
	dbTx := new(dbmodels.Transaction)

	if err := row.Scan(
		&dbTx.ID, &dbTx.UserID, &dbTx.Type, &dbTx.Amount, &dbTx.Currency,
		&dbTx.Description, &dbTx.Reference, &dbTx.Status, &dbTx.CreatedAt, &dbTx.SettledAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
			return nil, storage.ErrTransactionNotFound
		}

		return nil, fmt.Errorf("row.Scan: %w", err)
	}

	tx, err := transactions.NewTransaction(
		dbTx.ID, dbTx.UserID, transactions.Type(dbTx.Type), dbTx.Amount, money.Currency(dbTx.Currency),
		dbTx.Description, dbTx.Reference, users.VerificationStatus(dbTx.Status),
		dbTx.CreatedAt.UTC(), timePtr(dbTx.SettledAt),
	)
	if err != nil {
		return nil, fmt.Errorf("transactions.NewTransaction: %w", err)
	}

	return tx, nil
}

func queryTransactions(ctx context.Context, q queryer, query string, args ...any) ([]*transactions.Transaction, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("QueryContext: %w", err)
	}
	defer rows.Close()

	list := make([]*transactions.Transaction, 0)

	for rows.Next() {
		tx, err := scanTransaction(rows)
		if err != nil {
			return nil, err
		}

		list = append(list, tx)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	return list, nil
}

func insertTransaction(ctx context.Context, e execer, tx *transactions.Transaction) error {
	if _, err := e.ExecContext(ctx,
		`INSERT INTO transactions (`+transactionColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)`,
		tx.ID(), tx.UserID(), string(tx.Type()), tx.Amount(), tx.Currency().String(),
		tx.Description(), tx.Reference(), tx.Status().String(), tx.CreatedAt(), nullTime(tx.SettledAt()),
	); err != nil {
		if isForeignKeyViolation(err) {
			return storage.ErrUserNotFound
		}

		return fmt.Errorf("ExecContext: %w", err)
	}

	return nil
}

func (s *Storage) CreateTransaction(ctx context.Context, tx *transactions.Transaction) error {
	err := WithRetry(func() error {
		return insertTransaction(ctx, s.db, tx)
	})
	if err != nil {
		return err
	}

	return nil
}

func (s *Storage) CreateWithdrawal(ctx context.Context, wtx *transactions.Transaction, homeAmount decimal.Decimal) error {
	err := WithRetry(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("db.BeginTx: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck

		usr, err := lockUser(ctx, tx, wtx.UserID())
		if err != nil {
			return err
		}

		if homeAmount.GreaterThan(usr.Balance()) {
			return storage.ErrUserBalanceNotEnough
		}

		if err := insertTransaction(ctx, tx, wtx); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("tx.Commit: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	return nil
}

func (s *Storage) GetTransaction(ctx context.Context, id string) (*transactions.Transaction, error) {
	var tx *transactions.Transaction

	err := WithRetry(func() error {
		var err error

		tx, err = scanTransaction(s.db.QueryRowContext(ctx,
			`SELECT `+transactionColumns+` FROM transactions WHERE id = $1`, id))

		return err
	})
	if err != nil {
		return nil, err
	}

	return tx, nil
}

func (s *Storage) GetTransactionsByUser(ctx context.Context, userID string, limit, offset int) ([]*transactions.Transaction, error) {
	var list []*transactions.Transaction

	err := WithRetry(func() error {
		var err error

		list, err = queryTransactions(ctx, s.db,
			`SELECT `+transactionColumns+` FROM transactions WHERE user_id = $1`+
				` ORDER BY created_at DESC LIMIT $2 OFFSET $3`,
			userID, limit, offset)

		return err
	})
	if err != nil {
		return nil, err
	}

	return list, nil
}

func (s *Storage) GetTransactionsByStatus(ctx context.Context, statuses ...users.VerificationStatus) ([]*transactions.Transaction, error) {
	var list []*transactions.Transaction

	err := WithRetry(func() error {
		var err error

		list, err = queryTransactions(ctx, s.db,
			`SELECT `+transactionColumns+` FROM transactions WHERE status = ANY($1) ORDER BY created_at`,
			pq.Array(statusArgs(statuses)))

		return err
	})
	if err != nil {
		return nil, err
	}

	return list, nil
}

func (s *Storage) SettleTransaction(
	ctx context.Context, id string, decision users.VerificationStatus, homeAmount decimal.Decimal, at time.Time,
) (*storage.Settlement, error) {
	var settlement *storage.Settlement

	err := WithRetry(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("db.BeginTx: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck

		var userID string

		row := tx.QueryRowContext(ctx, `SELECT user_id FROM transactions WHERE id = $1`, id)
		if err := row.Scan(&userID); err != nil {
			if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
				return storage.ErrTransactionNotFound
			}

			return fmt.Errorf("row.Scan: %w", err)
		}

		usr, err := lockUser(ctx, tx, userID)
		if err != nil {
			return err
		}

		entry, err := scanTransaction(tx.QueryRowContext(ctx,
			`SELECT `+transactionColumns+` FROM transactions WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}

		if err := entry.Settle(decision, at); err != nil {
			return err //nolint:wrapcheck
		}

		delta := transactions.BalanceDelta(entry.Type(), decision, homeAmount)
		if !delta.IsZero() {
			if err := usr.ApplyBalanceDelta(delta); err != nil {
				if errors.Is(err, users.ErrUserBalanceNegative) {
					return storage.ErrUserBalanceNotEnough
				}

				return err //nolint:wrapcheck
			}

			if err := updateUserState(ctx, tx, usr); err != nil {
				return err
			}
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE transactions SET status = $1, settled_at = $2 WHERE id = $3`,
			entry.Status().String(), nullTime(entry.SettledAt()), entry.ID(),
		); err != nil {
			return fmt.Errorf("tx.ExecContext: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("tx.Commit: %w", err)
		}

		settlement = &storage.Settlement{Transaction: entry, User: usr}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return settlement, nil
}
