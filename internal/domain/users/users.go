package users

import (
	"errors"
	"fmt"
	"net/mail"
	"strings"
	"time"
	"unicode"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/crypto/bcrypt"
)

var (
	ErrUserIDEmpty            = errors.New("user id is empty")
	ErrUserEmailInvalid       = errors.New("user email is invalid")
	ErrUserPhoneInvalid       = errors.New("user phone is invalid")
	ErrUserPasswdTooShort     = errors.New("user password is too short")
	ErrUserFullNameEmpty      = errors.New("user full name is empty")
	ErrUserBirthDateInvalid   = errors.New("user date of birth is invalid")
	ErrUserCredentialsInvalid = errors.New("user credentials invalid")
	ErrUserRoleInvalid        = errors.New("user role is invalid")
	ErrUserBalanceNegative    = errors.New("user balance would become negative")
)

const minPasswordLength = 6

type Role string

const (
	RoleClient Role = "client"
	RoleAdmin  Role = "admin"
)

func ParseRole(s string) (Role, error) {
	switch Role(s) {
	case RoleClient, RoleAdmin:
		return Role(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUserRoleInvalid, s)
	}
}

// VerificationStatus is shared by users, KYC documents and ledger entries.
type VerificationStatus string

const (
	StatusPending  VerificationStatus = "pending"
	StatusApproved VerificationStatus = "approved"
	StatusRejected VerificationStatus = "rejected"
)

func (s VerificationStatus) String() string {
	return string(s)
}

// Registration carries the raw sign-up input.
type Registration struct {
	Email       string
	Phone       string
	Password    string
	FullName    string
	DateOfBirth string
}

type User struct {
	id                 string
	email              string
	phone              string
	passwordHash       string
	fullName           string
	dateOfBirth        string
	role               Role
	verificationStatus VerificationStatus
	balance            decimal.Decimal
	createdAt          time.Time
	updatedAt          time.Time
}

// CreateUser validates a registration and returns a new pending client with zero balance.
func CreateUser(reg Registration) (*User, error) {
	email, err := normalizeEmail(reg.Email)
	if err != nil {
		return nil, err
	}

	phone, err := normalizePhone(reg.Phone)
	if err != nil {
		return nil, err
	}

	if len(reg.Password) < minPasswordLength {
		return nil, ErrUserPasswdTooShort
	}

	fullName := strings.TrimSpace(reg.FullName)
	if fullName == "" {
		return nil, ErrUserFullNameEmpty
	}

	if _, err := time.Parse(time.DateOnly, reg.DateOfBirth); err != nil {
		return nil, fmt.Errorf("%w: %q", ErrUserBirthDateInvalid, reg.DateOfBirth)
	}

	passwordHash, err := getPasswordHash(reg.Password)
	if err != nil {
		return nil, fmt.Errorf("getPasswordHash: %w", err)
	}

	now := time.Now().UTC()

	return &User{
		id:                 uuid.NewString(),
		email:              email,
		phone:              phone,
		passwordHash:       passwordHash,
		fullName:           fullName,
		dateOfBirth:        reg.DateOfBirth,
		role:               RoleClient,
		verificationStatus: StatusPending,
		balance:            decimal.Zero,
		createdAt:          now,
		updatedAt:          now,
	}, nil
}

// NewUser restores a user from persisted state.
func NewUser(
	id, email, phone, passwordHash, fullName, dateOfBirth string,
	role Role, status VerificationStatus, balance decimal.Decimal,
	createdAt, updatedAt time.Time,
) (*User, error) {
	if err := ValidateID(id); err != nil {
		return nil, err
	}

	return &User{
		id:                 id,
		email:              email,
		phone:              phone,
		passwordHash:       passwordHash,
		fullName:           fullName,
		dateOfBirth:        dateOfBirth,
		role:               role,
		verificationStatus: status,
		balance:            balance,
		createdAt:          createdAt,
		updatedAt:          updatedAt,
	}, nil
}

func (u *User) ID() string                             { return u.id }
func (u *User) Email() string                          { return u.email }
func (u *User) Phone() string                          { return u.phone }
func (u *User) PasswordHash() string                   { return u.passwordHash }
func (u *User) FullName() string                       { return u.fullName }
func (u *User) DateOfBirth() string                    { return u.dateOfBirth }
func (u *User) Role() Role                             { return u.role }
func (u *User) VerificationStatus() VerificationStatus { return u.verificationStatus }
func (u *User) Balance() decimal.Decimal               { return u.balance }
func (u *User) CreatedAt() time.Time                   { return u.createdAt }
func (u *User) UpdatedAt() time.Time                   { return u.updatedAt }

func (u *User) IsAdmin() bool {
	return u.role == RoleAdmin
}

func (u *User) SetRole(role Role) {
	u.role = role
	u.touch()
}

func (u *User) SetVerificationStatus(status VerificationStatus) {
	u.verificationStatus = status
	u.touch()
}

// ApplyBalanceDelta adds delta (which may be negative) to the balance.
// The balance is left untouched if the result would drop below zero.
func (u *User) ApplyBalanceDelta(delta decimal.Decimal) error {
	next := u.balance.Add(delta)
	if next.IsNegative() {
		return ErrUserBalanceNegative
	}

	u.balance = next
	u.touch()

	return nil
}

// CheckPassword compares the plain password against the stored hash.
func (u *User) CheckPassword(password string) error {
	err := bcrypt.CompareHashAndPassword([]byte(u.passwordHash), []byte(password))
	if err != nil {
		if errors.Is(err, bcrypt.ErrMismatchedHashAndPassword) {
			return ErrUserCredentialsInvalid
		}

		return fmt.Errorf("bcrypt.CompareHashAndPassword: %w", err)
	}

	return nil
}

func (u *User) touch() {
	u.updatedAt = time.Now().UTC()
}

func getPasswordHash(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("bcrypt.GenerateFromPassword: %w", err)
	}

	return string(hash), nil
}

func ValidateID(id string) error {
	if id == "" {
		return ErrUserIDEmpty
	}

	return nil
}

func normalizeEmail(email string) (string, error) {
	addr, err := mail.ParseAddress(strings.TrimSpace(email))
	if err != nil || addr.Address != strings.TrimSpace(email) {
		return "", fmt.Errorf("%w: %q", ErrUserEmailInvalid, email)
	}

	return strings.ToLower(addr.Address), nil
}

func normalizePhone(phone string) (string, error) {
	phone = strings.ReplaceAll(strings.TrimSpace(phone), " ", "")

	digits := strings.TrimPrefix(phone, "+")
	if len(digits) < 6 || len(digits) > 15 {
		return "", fmt.Errorf("%w: %q", ErrUserPhoneInvalid, phone)
	}

	for _, r := range digits {
		if !unicode.IsDigit(r) {
			return "", fmt.Errorf("%w: %q", ErrUserPhoneInvalid, phone)
		}
	}

	return phone, nil
}
