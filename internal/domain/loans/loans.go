//nolint:wrapcheck
package loans

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/andymarkow/cybexchange/internal/domain/users"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var (
	ErrRequiredDocumentMissing = errors.New("loan required document is missing")
	ErrPaymentDayInvalid       = errors.New("loan payment day must be between 1 and 31")
	ErrSalaryNotPositive       = errors.New("loan monthly salary must be greater than zero")
	ErrFieldEmpty              = errors.New("loan field is empty")
	ErrStatusInvalid           = errors.New("loan status is invalid")
	ErrTransitionInvalid       = errors.New("loan status transition is not allowed")
)

type Status string

const (
	StatusPending   Status = "pending"
	StatusApproved  Status = "approved"
	StatusRejected  Status = "rejected"
	StatusActive    Status = "active"
	StatusCompleted Status = "completed"
)

func ParseStatus(s string) (Status, error) {
	switch st := Status(s); st {
	case StatusPending, StatusApproved, StatusRejected, StatusActive, StatusCompleted:
		return st, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrStatusInvalid, s)
	}
}

var transitions = map[Status][]Status{
	StatusPending:  {StatusApproved, StatusRejected},
	StatusApproved: {StatusActive},
	StatusActive:   {StatusCompleted},
}

// CanTransition reports whether a loan in from may move to to.
func CanTransition(from, to Status) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}

	return false
}

type Contact struct {
	Name  string
	Phone string
}

// Documents holds references returned by the file store. Justification is optional.
type Documents struct {
	IDCardURL        string
	SelfieURL        string
	SalaryProofURL   string
	JustificationURL string
}

// Missing lists the required documents that are absent.
func (d Documents) Missing() []string {
	var missing []string

	if strings.TrimSpace(d.IDCardURL) == "" {
		missing = append(missing, "idCard")
	}

	if strings.TrimSpace(d.SelfieURL) == "" {
		missing = append(missing, "selfie")
	}

	if strings.TrimSpace(d.SalaryProofURL) == "" {
		missing = append(missing, "salaryProof")
	}

	return missing
}

// Application is the client's request before the payment plan is computed.
type Application struct {
	Amount            decimal.Decimal
	TermMonths        int
	PaymentDay        int
	MonthlySalary     decimal.Decimal
	Workplace         string
	BankName          string
	IBAN              string
	EmergencyContacts [2]Contact
	Documents         Documents
}

func (a Application) Validate() error {
	if missing := a.Documents.Missing(); len(missing) > 0 {
		return fmt.Errorf("%w: %s", ErrRequiredDocumentMissing, strings.Join(missing, ", "))
	}

	if !a.Amount.IsPositive() {
		return ErrPrincipalNotPositive
	}

	if a.TermMonths <= 0 {
		return fmt.Errorf("%w: %d months", ErrTermInvalid, a.TermMonths)
	}

	if a.PaymentDay < 1 || a.PaymentDay > 31 {
		return ErrPaymentDayInvalid
	}

	if !a.MonthlySalary.IsPositive() {
		return ErrSalaryNotPositive
	}

	fields := []struct{ name, value string }{
		{"workplace", a.Workplace},
		{"bankName", a.BankName},
		{"iban", a.IBAN},
		{"emergencyContact1Name", a.EmergencyContacts[0].Name},
		{"emergencyContact1Phone", a.EmergencyContacts[0].Phone},
		{"emergencyContact2Name", a.EmergencyContacts[1].Name},
		{"emergencyContact2Phone", a.EmergencyContacts[1].Phone},
	}

	for _, f := range fields {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%w: %s", ErrFieldEmpty, f.name)
		}
	}

	return nil
}

type Loan struct {
	id              string
	userID          string
	app             Application
	interestRate    decimal.Decimal
	quote           Quote
	status          Status
	rejectionReason string
	approvedAt      *time.Time
	createdAt       time.Time
}

// NewLoan validates the application and bakes the payment plan for annualRate into a
// pending loan. The plan is not recomputed afterwards.
func NewLoan(userID string, app Application, annualRate decimal.Decimal) (*Loan, error) {
	if err := users.ValidateID(userID); err != nil {
		return nil, err
	}

	if err := app.Validate(); err != nil {
		return nil, err
	}

	quote, err := Calculate(Terms{
		Principal:  app.Amount,
		AnnualRate: annualRate,
		TermMonths: app.TermMonths,
	})
	if err != nil {
		return nil, err
	}

	return &Loan{
		id:           uuid.NewString(),
		userID:       userID,
		app:          app,
		interestRate: annualRate,
		quote:        quote,
		status:       StatusPending,
		createdAt:    time.Now().UTC(),
	}, nil
}

// RestoreLoan rebuilds a loan from persisted state.
func RestoreLoan(
	id, userID string, app Application, interestRate decimal.Decimal, quote Quote,
	status Status, rejectionReason string, approvedAt *time.Time, createdAt time.Time,
) *Loan {
	return &Loan{
		id:              id,
		userID:          userID,
		app:             app,
		interestRate:    interestRate,
		quote:           quote,
		status:          status,
		rejectionReason: rejectionReason,
		approvedAt:      approvedAt,
		createdAt:       createdAt,
	}
}

func (l *Loan) ID() string                      { return l.id }
func (l *Loan) UserID() string                  { return l.userID }
func (l *Loan) Application() Application        { return l.app }
func (l *Loan) Amount() decimal.Decimal         { return l.app.Amount }
func (l *Loan) InterestRate() decimal.Decimal   { return l.interestRate }
func (l *Loan) Quote() Quote                    { return l.quote }
func (l *Loan) MonthlyPayment() decimal.Decimal { return l.quote.MonthlyPayment }
func (l *Loan) TotalPayment() decimal.Decimal   { return l.quote.TotalPayment }
func (l *Loan) Status() Status                  { return l.status }
func (l *Loan) RejectionReason() string         { return l.rejectionReason }
func (l *Loan) ApprovedAt() *time.Time          { return l.approvedAt }
func (l *Loan) CreatedAt() time.Time            { return l.createdAt }

// Decision is an admin verdict or lifecycle step on a loan.
type Decision struct {
	Status Status
	Reason string
}

// IsVerdict reports whether the decision is the approve/reject review that the
// applicant is notified about.
func (d Decision) IsVerdict() bool {
	return d.Status == StatusApproved || d.Status == StatusRejected
}

// Review moves the loan along the transition table.
func (l *Loan) Review(dec Decision, at time.Time) error {
	if _, err := ParseStatus(string(dec.Status)); err != nil {
		return err
	}

	if !CanTransition(l.status, dec.Status) {
		return fmt.Errorf("%w: %s -> %s", ErrTransitionInvalid, l.status, dec.Status)
	}

	l.status = dec.Status

	switch dec.Status {
	case StatusApproved:
		l.approvedAt = &at
	case StatusRejected:
		l.rejectionReason = strings.TrimSpace(dec.Reason)
	}

	return nil
}
