package dbmodels

import (
	"database/sql"
	"time"

	"github.com/shopspring/decimal"
)

type User struct {
	ID                 string
	Email              string
	Phone              string
	PasswordHash       string
	FullName           string
	DateOfBirth        string
	Role               string
	VerificationStatus string
	Balance            decimal.Decimal
	CreatedAt          time.Time
	UpdatedAt          time.Time
}

type KYCDocument struct {
	ID              string
	UserID          string
	DocumentType    string
	DocumentURL     string
	Status          string
	RejectionReason string
	ReviewedAt      sql.NullTime
	CreatedAt       time.Time
}

type Transaction struct {
	ID          string
	UserID      string
	Type        string
	Amount      decimal.Decimal
	Currency    string
	Description string
	Reference   string
	Status      string
	CreatedAt   time.Time
	SettledAt   sql.NullTime
}

type Loan struct {
	ID                     string
	UserID                 string
	Amount                 decimal.Decimal
	InterestRate           decimal.Decimal
	TermMonths             int
	MonthlyPayment         decimal.Decimal
	TotalPayment           decimal.Decimal
	TotalInterest          decimal.Decimal
	PaymentDay             int
	MonthlySalary          decimal.Decimal
	Workplace              string
	BankName               string
	IBAN                   string
	EmergencyContact1Name  string
	EmergencyContact1Phone string
	EmergencyContact2Name  string
	EmergencyContact2Phone string
	IDCardURL              string
	SelfieURL              string
	SalaryProofURL         string
	JustificationURL       string
	Status                 string
	RejectionReason        string
	ApprovedAt             sql.NullTime
	CreatedAt              time.Time
}

type CurrencyRate struct {
	FromCurrency string
	ToCurrency   string
	Rate         decimal.Decimal
	UpdatedAt    time.Time
}

type Setting struct {
	Key       string
	Value     string
	UpdatedAt time.Time
}
