package pgstorage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/andymarkow/cybexchange/internal/domain/settings"
	"github.com/andymarkow/cybexchange/internal/storage"
	"github.com/andymarkow/cybexchange/internal/storage/dbmodels"
)

func scanSetting(row rowScanner) (*settings.Setting, error) {
	dbSetting := new(dbmodels.Setting)

	if err := row.Scan(&dbSetting.Key, &dbSetting.Value, &dbSetting.UpdatedAt); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, storage.ErrSettingNotFound
		}

		return nil, fmt.Errorf("row.Scan: %w", err)
	}

	return &settings.Setting{
		Key:       settings.Key(dbSetting.Key),
		Value:     dbSetting.Value,
		UpdatedAt: dbSetting.UpdatedAt.UTC(),
	}, nil
}

func (s *Storage) GetSetting(ctx context.Context, key settings.Key) (*settings.Setting, error) {
	var setting *settings.Setting

	err := WithRetry(func() error {
		var err error

		setting, err = scanSetting(s.db.QueryRowContext(ctx,
			`SELECT key, value, updated_at FROM system_settings WHERE key = $1`, string(key)))

		return err
	})
	if err != nil {
		return nil, err
	}

	return setting, nil
}

func (s *Storage) GetSettings(ctx context.Context) ([]*settings.Setting, error) {
	list := make([]*settings.Setting, 0)

	err := WithRetry(func() error {
		list = list[:0]

		rows, err := s.db.QueryContext(ctx, `SELECT key, value, updated_at FROM system_settings ORDER BY key`)
		if err != nil {
			return fmt.Errorf("db.QueryContext: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			setting, err := scanSetting(rows)
			if err != nil {
				return err
			}

			list = append(list, setting)
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

func (s *Storage) UpsertSetting(ctx context.Context, setting *settings.Setting) error {
	err := WithRetry(func() error {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO system_settings (key, value, updated_at) VALUES ($1, $2, $3)`+
				` ON CONFLICT (key) DO UPDATE SET value = EXCLUDED.value, updated_at = EXCLUDED.updated_at`,
			string(setting.Key), setting.Value, setting.UpdatedAt,
		); err != nil {
			return fmt.Errorf("db.ExecContext: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	return nil
}
