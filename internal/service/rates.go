package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/andymarkow/cybexchange/internal/domain/rates"
)

var ErrRatesEmpty = errors.New("currency rates list is empty")

func (s *Service) CurrencyRates(ctx context.Context) ([]*rates.CurrencyRate, error) {
	list, err := s.store.GetCurrencyRates(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage.GetCurrencyRates: %w", err)
	}

	return list, nil
}

// UpdateCurrencyRates upserts every given pair in one step.
func (s *Service) UpdateCurrencyRates(ctx context.Context, list []*rates.CurrencyRate) ([]*rates.CurrencyRate, error) {
	if len(list) == 0 {
		return nil, ErrRatesEmpty
	}

	if err := s.store.UpsertCurrencyRates(ctx, list); err != nil {
		return nil, fmt.Errorf("storage.UpsertCurrencyRates: %w", err)
	}

	return s.CurrencyRates(ctx)
}

// SeedCurrencyRates installs the default table for pairs that are not configured yet.
func (s *Service) SeedCurrencyRates(ctx context.Context) error {
	if err := s.store.SeedCurrencyRates(ctx, rates.Defaults()); err != nil {
		return fmt.Errorf("storage.SeedCurrencyRates: %w", err)
	}

	return nil
}

func (s *Service) rateTable(ctx context.Context) (*rates.Table, error) {
	list, err := s.store.GetCurrencyRates(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage.GetCurrencyRates: %w", err)
	}

	return rates.NewTable(list), nil
}
