package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/andymarkow/cybexchange/internal/domain/users"
	"github.com/andymarkow/cybexchange/internal/storage"
)

// Register creates a client account.
func (s *Service) Register(ctx context.Context, reg users.Registration) (*users.User, error) {
	usr, err := users.CreateUser(reg)
	if err != nil {
		return nil, fmt.Errorf("users.CreateUser: %w", err)
	}

	if err := s.store.CreateUser(ctx, usr); err != nil {
		return nil, fmt.Errorf("storage.CreateUser: %w", err)
	}

	return usr, nil
}

// Login resolves emailOrPhone to an account and checks the password. Unknown
// accounts and wrong passwords are indistinguishable to the caller.
func (s *Service) Login(ctx context.Context, emailOrPhone, password string) (*users.User, error) {
	login := strings.TrimSpace(emailOrPhone)

	var (
		usr *users.User
		err error
	)

	if strings.Contains(login, "@") {
		usr, err = s.store.GetUserByEmail(ctx, strings.ToLower(login))
	} else {
		usr, err = s.store.GetUserByPhone(ctx, strings.ReplaceAll(login, " ", ""))
	}

	if err != nil {
		if errors.Is(err, storage.ErrUserNotFound) {
			return nil, users.ErrUserCredentialsInvalid
		}

		return nil, fmt.Errorf("storage.GetUser: %w", err)
	}

	if err := usr.CheckPassword(password); err != nil {
		return nil, err //nolint:wrapcheck
	}

	return usr, nil
}

func (s *Service) Profile(ctx context.Context, userID string) (*users.User, error) {
	usr, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("storage.GetUser: %w", err)
	}

	return usr, nil
}

func (s *Service) Users(ctx context.Context) ([]*users.User, error) {
	list, err := s.store.GetUsers(ctx)
	if err != nil {
		return nil, fmt.Errorf("storage.GetUsers: %w", err)
	}

	return list, nil
}

// EnsureAdmin makes sure an administrator account exists for reg.Email. An existing
// account is promoted; otherwise a new verified admin is created.
func (s *Service) EnsureAdmin(ctx context.Context, reg users.Registration) (*users.User, error) {
	existing, err := s.store.GetUserByEmail(ctx, strings.ToLower(strings.TrimSpace(reg.Email)))

	switch {
	case err == nil:
		if existing.IsAdmin() {
			return existing, nil
		}

		if err := s.store.SetUserRole(ctx, existing.ID(), users.RoleAdmin); err != nil {
			return nil, fmt.Errorf("storage.SetUserRole: %w", err)
		}

		existing.SetRole(users.RoleAdmin)

		s.log.Info("User promoted to admin", slog.String("user_id", existing.ID()))

		return existing, nil

	case !errors.Is(err, storage.ErrUserNotFound):
		return nil, fmt.Errorf("storage.GetUserByEmail: %w", err)
	}

	usr, err := users.CreateUser(reg)
	if err != nil {
		return nil, fmt.Errorf("users.CreateUser: %w", err)
	}

	usr.SetRole(users.RoleAdmin)
	usr.SetVerificationStatus(users.StatusApproved)

	if err := s.store.CreateUser(ctx, usr); err != nil {
		return nil, fmt.Errorf("storage.CreateUser: %w", err)
	}

	s.log.Info("Admin user created", slog.String("user_id", usr.ID()))

	return usr, nil
}
