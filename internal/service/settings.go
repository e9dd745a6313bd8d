package service

import (
	"context"
	"errors"
	"fmt"

	"github.com/andymarkow/cybexchange/internal/domain/settings"
	"github.com/andymarkow/cybexchange/internal/storage"
	"github.com/shopspring/decimal"
)

// Settings lists stored settings. The loan interest rate is always present and
// falls back to the configured default.
func (s *Service) Settings(ctx context.Context) ([]*settings.Setting, error) {
	list, err := s.store.GetSettings(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage.GetSettings: %w", err)
	}

	for _, st := range list {
		if st.Key == settings.KeyLoanInterestRate {
			return list, nil
		}
	}

	return append(list, &settings.Setting{
		Key:       settings.KeyLoanInterestRate,
		Value:     s.defaultLoanRate.String(),
		UpdatedAt: s.now(),
	}), nil
}

func (s *Service) UpdateSetting(ctx context.Context, key, value string) (*settings.Setting, error) {
	setting, err := settings.NewSetting(key, value)
	if err != nil {
		return nil, fmt.Errorf("settings.NewSetting: %w", err)
	}

	setting.UpdatedAt = s.now()

	if err := s.store.UpsertSetting(ctx, setting); err != nil {
		return nil, fmt.Errorf("storage.UpsertSetting: %w", err)
	}

	return setting, nil
}

// LoanInterestRate is the annual percentage applied to new applications.
func (s *Service) LoanInterestRate(ctx context.Context) (decimal.Decimal, error) {
	setting, err := s.store.GetSetting(ctx, settings.KeyLoanInterestRate)
	if err != nil {
		if errors.Is(err, storage.ErrSettingNotFound) {
			return s.defaultLoanRate, nil
		}

		return decimal.Zero, fmt.Errorf("storage.GetSetting: %w", err)
	}

	rate, err := settings.ParseRate(setting.Value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("settings.ParseRate: %w", err)
	}

	return rate, nil
}
