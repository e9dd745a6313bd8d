package pgstorage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/andymarkow/cybexchange/internal/domain/users"
	"github.com/andymarkow/cybexchange/internal/storage"
	"github.com/andymarkow/cybexchange/internal/storage/dbmodels"
)

const userColumns = `id, email, phone, password_hash, full_name, date_of_birth, role,` +
	` verification_status, balance, created_at, updated_at`

func scanUser(row rowScanner) (*users.User, error) {
	dbUser := new(dbmodels.User)

	if err := row.Scan(
		&dbUser.ID, &dbUser.Email, &dbUser.Phone, &dbUser.PasswordHash, &dbUser.FullName,
		&dbUser.DateOfBirth, &dbUser.Role, &dbUser.VerificationStatus, &dbUser.Balance,
		&dbUser.CreatedAt, &dbUser.UpdatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
			return nil, storage.ErrUserNotFound
		}

		return nil, fmt.Errorf("row.Scan: %w", err)
	}

	usr, err := users.NewUser(
		dbUser.ID, dbUser.Email, dbUser.Phone, dbUser.PasswordHash, dbUser.FullName, dbUser.DateOfBirth,
		users.Role(dbUser.Role), users.VerificationStatus(dbUser.VerificationStatus), dbUser.Balance,
		dbUser.CreatedAt.UTC(), dbUser.UpdatedAt.UTC(),
	)
	if err != nil {
		return nil, fmt.Errorf("users.NewUser: %w", err)
	}

	return usr, nil
}

// lockUser reads the user row and holds it until tx ends. Every balance or
// verification status change goes through this lock.
func lockUser(ctx context.Context, tx *sql.Tx, id string) (*users.User, error) {
	row := tx.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1 FOR UPDATE`, id)

	return scanUser(row)
}

func updateUserState(ctx context.Context, tx *sql.Tx, usr *users.User) error {
	if _, err := tx.ExecContext(ctx,
		`UPDATE users SET role = $1, verification_status = $2, balance = $3, updated_at = $4 WHERE id = $5`,
		string(usr.Role()), usr.VerificationStatus().String(), usr.Balance(), usr.UpdatedAt(), usr.ID(),
	); err != nil {
		return fmt.Errorf("tx.ExecContext: %w", err)
	}

	return nil
}

func (s *Storage) CreateUser(ctx context.Context, usr *users.User) error {
	err := WithRetry(func() error {
		query := `INSERT INTO users (` + userColumns + `) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)`

		if _, err := s.db.ExecContext(ctx, query,
			usr.ID(), usr.Email(), usr.Phone(), usr.PasswordHash(), usr.FullName(), usr.DateOfBirth(),
			string(usr.Role()), usr.VerificationStatus().String(), usr.Balance(), usr.CreatedAt(), usr.UpdatedAt(),
		); err != nil {
			if isIntegrityViolation(err) {
				return storage.ErrUserAlreadyExists
			}

			return fmt.Errorf("db.ExecContext: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	return nil
}

func (s *Storage) GetUser(ctx context.Context, id string) (*users.User, error) {
	return s.getUserBy(ctx, "id", id)
}

func (s *Storage) GetUserByEmail(ctx context.Context, email string) (*users.User, error) {
	return s.getUserBy(ctx, "email", email)
}

func (s *Storage) GetUserByPhone(ctx context.Context, phone string) (*users.User, error) {
	return s.getUserBy(ctx, "phone", phone)
}

// getUserBy looks a user up by one of the unique columns. column is never user input.
func (s *Storage) getUserBy(ctx context.Context, column, value string) (*users.User, error) {
	var usr *users.User

	err := WithRetry(func() error {
		row := s.db.QueryRowContext(ctx, `SELECT `+userColumns+` FROM users WHERE `+column+` = $1`, value)

		var err error

		usr, err = scanUser(row)

		return err
	})
	if err != nil {
		return nil, err
	}

	return usr, nil
}

func (s *Storage) GetUsers(ctx context.Context) ([]*users.User, error) {
	list := make([]*users.User, 0)

	err := WithRetry(func() error {
		list = list[:0]

		rows, err := s.db.QueryContext(ctx, `SELECT `+userColumns+` FROM users ORDER BY created_at DESC`)
		if err != nil {
			return fmt.Errorf("db.QueryContext: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			usr, err := scanUser(rows)
			if err != nil {
				return err
			}

			list = append(list, usr)
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

func (s *Storage) SetUserRole(ctx context.Context, id string, role users.Role) error {
	err := WithRetry(func() error {
		res, err := s.db.ExecContext(ctx,
			`UPDATE users SET role = $1, updated_at = NOW() WHERE id = $2`, string(role), id)
		if err != nil {
			return fmt.Errorf("db.ExecContext: %w", err)
		}

		affected, err := res.RowsAffected()
		if err != nil {
			return fmt.Errorf("res.RowsAffected: %w", err)
		}

		if affected == 0 {
			return storage.ErrUserNotFound
		}

		return nil
	})
	if err != nil {
		return err
	}

	return nil
}
