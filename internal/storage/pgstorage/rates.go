package pgstorage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/andymarkow/cybexchange/internal/domain/money"
	"github.com/andymarkow/cybexchange/internal/domain/rates"
	"github.com/andymarkow/cybexchange/internal/storage"
	"github.com/andymarkow/cybexchange/internal/storage/dbmodels"
)

func scanCurrencyRate(row rowScanner) (*rates.CurrencyRate, error) {
	dbRate := new(dbmodels.CurrencyRate)

	if err := row.Scan(&dbRate.FromCurrency, &dbRate.ToCurrency, &dbRate.Rate, &dbRate.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrCurrencyRateNotFound
		}

		return nil, fmt.Errorf("row.Scan: %w", err)
	}

	pair, err := rates.NewPair(money.Currency(dbRate.FromCurrency), money.Currency(dbRate.ToCurrency))
	if err != nil {
		return nil, fmt.Errorf("rates.NewPair: %w", err)
	}

	rate, err := rates.NewCurrencyRate(pair, dbRate.Rate, dbRate.UpdatedAt.UTC())
	if err != nil {
		return nil, fmt.Errorf("rates.NewCurrencyRate: %w", err)
	}

	return rate, nil
}

func (s *Storage) GetCurrencyRates(ctx context.Context) ([]*rates.CurrencyRate, error) {
	list := make([]*rates.CurrencyRate, 0)

	err := WithRetry(func() error {
		list = list[:0]

		rows, err := s.db.QueryContext(ctx,
			`SELECT from_currency, to_currency, rate, updated_at FROM currency_rates`+
				` ORDER BY from_currency, to_currency`)
		if err != nil {
			return fmt.Errorf("db.QueryContext: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			rate, err := scanCurrencyRate(rows)
			if err != nil {
				return err
			}

			list = append(list, rate)
		}

		if err := rows.Err(); err != nil {
			return fmt.Errorf("rows.Err: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return list, nil
}

func (s *Storage) GetCurrencyRate(ctx context.Context, from, to money.Currency) (*rates.CurrencyRate, error) {
	var rate *rates.CurrencyRate

	err := WithRetry(func() error {
		var err error

		rate, err = scanCurrencyRate(s.db.QueryRowContext(ctx,
			`SELECT from_currency, to_currency, rate, updated_at FROM currency_rates`+
				` WHERE from_currency = $1 AND to_currency = $2`,
			from.String(), to.String()))

		return err
	})
	if err != nil {
		return nil, err
	}

	return rate, nil
}

func (s *Storage) UpsertCurrencyRates(ctx context.Context, list []*rates.CurrencyRate) error {
	return s.writeCurrencyRates(ctx, list,
		`INSERT INTO currency_rates (from_currency, to_currency, rate, updated_at) VALUES ($1, $2, $3, $4)`+
			` ON CONFLICT (from_currency, to_currency) DO UPDATE SET rate = EXCLUDED.rate, updated_at = EXCLUDED.updated_at`)
}

func (s *Storage) SeedCurrencyRates(ctx context.Context, list []*rates.CurrencyRate) error {
	return s.writeCurrencyRates(ctx, list,
		`INSERT INTO currency_rates (from_currency, to_currency, rate, updated_at) VALUES ($1, $2, $3, $4)`+
			` ON CONFLICT (from_currency, to_currency) DO NOTHING`)
}

func (s *Storage) writeCurrencyRates(ctx context.Context, list []*rates.CurrencyRate, query string) error {
	err := WithRetry(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("db.BeginTx: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck

		stmt, err := tx.PrepareContext(ctx, query)
		if err != nil {
			return fmt.Errorf("tx.PrepareContext: %w", err)
		}
		defer stmt.Close()

		for _, r := range list {
			if _, err := stmt.ExecContext(ctx, r.From().String(), r.To().String(), r.Rate(), r.UpdatedAt()); err != nil {
				return fmt.Errorf("stmt.ExecContext: %w", err)
			}
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
