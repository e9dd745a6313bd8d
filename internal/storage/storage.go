package storage

import (
	"context"
	"errors"
	"time"

	"github.com/andymarkow/cybexchange/internal/domain/kyc"
	"github.com/andymarkow/cybexchange/internal/domain/loans"
	"github.com/andymarkow/cybexchange/internal/domain/money"
	"github.com/andymarkow/cybexchange/internal/domain/rates"
	"github.com/andymarkow/cybexchange/internal/domain/settings"
	"github.com/andymarkow/cybexchange/internal/domain/transactions"
	"github.com/andymarkow/cybexchange/internal/domain/users"
	"github.com/shopspring/decimal"
)

var (
	ErrUserAlreadyExists    = errors.New("user already exists")
	ErrUserNotFound         = errors.New("user not found")
	ErrUserBalanceNotEnough = errors.New("user balance not enough")
	ErrKYCDocumentNotFound  = errors.New("kyc document not found")
	ErrTransactionNotFound  = errors.New("transaction not found")
	ErrLoanNotFound         = errors.New("loan not found")
	ErrCurrencyRateNotFound = errors.New("currency rate not found")
	ErrSettingNotFound      = errors.New("setting not found")
)

// KYCReview is the committed result of a document review.
type KYCReview struct {
	Outcome kyc.Outcome
	User    *users.User
}

// Settlement is the committed result of an admin decision on a ledger entry.
type Settlement struct {
	Transaction *transactions.Transaction
	User        *users.User
}

type UserStorage interface {
	CreateUser(ctx context.Context, usr *users.User) error
	GetUser(ctx context.Context, id string) (*users.User, error)
	GetUserByEmail(ctx context.Context, email string) (*users.User, error)
	GetUserByPhone(ctx context.Context, phone string) (*users.User, error)
	GetUsers(ctx context.Context) ([]*users.User, error)
	SetUserRole(ctx context.Context, id string, role users.Role) error
}

type KYCStorage interface {
	// SubmitKYCDocuments stores a document set if kyc.CanSubmit allows it and moves the
	// owner back to pending.
	SubmitKYCDocuments(ctx context.Context, userID string, docs []*kyc.Document) error
	GetKYCDocumentsByUser(ctx context.Context, userID string) ([]*kyc.Document, error)
	GetKYCDocumentsByStatus(ctx context.Context, statuses ...users.VerificationStatus) ([]*kyc.Document, error)
	// ReviewKYCDocument applies the decision and the user status aggregation atomically.
	ReviewKYCDocument(ctx context.Context, docID string, dec kyc.Decision, at time.Time) (*KYCReview, error)
}

type TransactionStorage interface {
	CreateTransaction(ctx context.Context, tx *transactions.Transaction) error
	// CreateWithdrawal records a withdraw request while the owner's balance is locked.
	// homeAmount is the request expressed in KZ.
	CreateWithdrawal(ctx context.Context, tx *transactions.Transaction, homeAmount decimal.Decimal) error
	GetTransaction(ctx context.Context, id string) (*transactions.Transaction, error)
	GetTransactionsByUser(ctx context.Context, userID string, limit, offset int) ([]*transactions.Transaction, error)
	GetTransactionsByStatus(ctx context.Context, statuses ...users.VerificationStatus) ([]*transactions.Transaction, error)
	// SettleTransaction applies the decision and the resulting balance delta atomically.
	SettleTransaction(
		ctx context.Context, id string, decision users.VerificationStatus, homeAmount decimal.Decimal, at time.Time,
	) (*Settlement, error)
}

type LoanStorage interface {
	CreateLoan(ctx context.Context, loan *loans.Loan) error
	GetLoan(ctx context.Context, id string) (*loans.Loan, error)
	GetLoansByUser(ctx context.Context, userID string) ([]*loans.Loan, error)
	GetLoansByStatus(ctx context.Context, statuses ...loans.Status) ([]*loans.Loan, error)
	ReviewLoan(ctx context.Context, id string, dec loans.Decision, at time.Time) (*loans.Loan, error)
}

type CurrencyRateStorage interface {
	GetCurrencyRates(ctx context.Context) ([]*rates.CurrencyRate, error)
	GetCurrencyRate(ctx context.Context, from, to money.Currency) (*rates.CurrencyRate, error)
	UpsertCurrencyRates(ctx context.Context, list []*rates.CurrencyRate) error
	// SeedCurrencyRates inserts the rates whose pair is not configured yet.
	SeedCurrencyRates(ctx context.Context, list []*rates.CurrencyRate) error
}

type SettingStorage interface {
	GetSetting(ctx context.Context, key settings.Key) (*settings.Setting, error)
	GetSettings(ctx context.Context) ([]*settings.Setting, error)
	UpsertSetting(ctx context.Context, setting *settings.Setting) error
}

type Storage interface {
	UserStorage
	KYCStorage
	TransactionStorage
	LoanStorage
	CurrencyRateStorage
	SettingStorage
	Close() error
	Ping(ctx context.Context) error
}

func NewStorage(store Storage) Storage {
	return store
}
