package service

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/andymarkow/cybexchange/internal/domain/loans"
	"github.com/andymarkow/cybexchange/internal/domain/money"
	"github.com/andymarkow/cybexchange/internal/notify"
	"github.com/andymarkow/cybexchange/internal/storage"
	"github.com/shopspring/decimal"
)

// LoanUploads are the files attached to an application. Justification is optional.
type LoanUploads struct {
	IDCard        *Upload
	Selfie        *Upload
	SalaryProof   *Upload
	Justification *Upload
}

const (
	uploadIDCard        = "idCard"
	uploadSelfie        = "selfie"
	uploadSalaryProof   = "salaryProof"
	uploadJustification = "justification"
)

func (u LoanUploads) byName() map[string]Upload {
	out := make(map[string]Upload, 4)

	for name, up := range map[string]*Upload{
		uploadIDCard:        u.IDCard,
		uploadSelfie:        u.Selfie,
		uploadSalaryProof:   u.SalaryProof,
		uploadJustification: u.Justification,
	} {
		if up != nil {
			out[name] = *up
		}
	}

	return out
}

// documents maps upload names to document references.
func documents(refs map[string]string) loans.Documents {
	return loans.Documents{
		IDCardURL:        refs[uploadIDCard],
		SelfieURL:        refs[uploadSelfie],
		SalaryProofURL:   refs[uploadSalaryProof],
		JustificationURL: refs[uploadJustification],
	}
}

// SimulateLoan runs the calculator without recording anything. A nil rate uses
// the rate new applications would get.
func (s *Service) SimulateLoan(ctx context.Context, principal decimal.Decimal, termMonths int, rate *decimal.Decimal) (loans.Quote, decimal.Decimal, error) {
	var annualRate decimal.Decimal

	if rate != nil {
		annualRate = *rate
	} else {
		current, err := s.LoanInterestRate(ctx)
		if err != nil {
			return loans.Quote{}, decimal.Zero, err
		}

		annualRate = current
	}

	quote, err := loans.Calculate(loans.Terms{
		Principal:  principal,
		AnnualRate: annualRate,
		TermMonths: termMonths,
	})
	if err != nil {
		return loans.Quote{}, decimal.Zero, fmt.Errorf("loans.Calculate: %w", err)
	}

	return quote, annualRate, nil
}

// ApplyLoan validates the application, stores its documents and records a pending
// loan with the payment plan for the current interest rate. An invalid application
// leaves neither files nor a loan behind.
func (s *Service) ApplyLoan(ctx context.Context, userID string, app loans.Application, uploads LoanUploads) (*loans.Loan, error) {
	files := uploads.byName()

	present := make(map[string]string, len(files))
	for name := range files {
		present[name] = name
	}

	probe := app
	probe.Documents = documents(present)

	if err := probe.Validate(); err != nil {
		return nil, fmt.Errorf("loans.Validate: %w", err)
	}

	rate, err := s.LoanInterestRate(ctx)
	if err != nil {
		return nil, err
	}

	urls, err := saveUploads(ctx, s, files)
	if err != nil {
		return nil, fmt.Errorf("files.Save: %w", err)
	}

	app.Documents = documents(urls)

	loan, err := loans.NewLoan(userID, app, rate)
	if err != nil {
		removeUploads(ctx, s, urls)

		return nil, fmt.Errorf("loans.NewLoan: %w", err)
	}

	if err := s.store.CreateLoan(ctx, loan); err != nil {
		removeUploads(ctx, s, urls)

		return nil, fmt.Errorf("storage.CreateLoan: %w", err)
	}

	return loan, nil
}

func (s *Service) Loans(ctx context.Context, userID string) ([]*loans.Loan, error) {
	list, err := s.store.GetLoansByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("storage.GetLoansByUser: %w", err)
	}

	return list, nil
}

// AllLoans lists loans in the given statuses, or every loan when none is given.
func (s *Service) AllLoans(ctx context.Context, statuses ...loans.Status) ([]*loans.Loan, error) {
	list, err := s.store.GetLoansByStatus(ctx, statuses...)
	if err != nil {
		return nil, fmt.Errorf("storage.GetLoansByStatus: %w", err)
	}

	return list, nil
}

// ReviewLoan moves a loan along its lifecycle. Approve and reject verdicts are
// reported to the applicant.
func (s *Service) ReviewLoan(ctx context.Context, id string, dec loans.Decision) (*loans.Loan, error) {
	if err := checkID(id, storage.ErrLoanNotFound); err != nil {
		return nil, err
	}

	loan, err := s.store.ReviewLoan(ctx, id, dec, s.now())
	if err != nil {
		return nil, fmt.Errorf("storage.ReviewLoan: %w", err)
	}

	if dec.IsVerdict() {
		usr, err := s.store.GetUser(ctx, loan.UserID())
		if err != nil {
			// The decision is committed; only the notification is lost.
			s.log.Error("storage.GetUser()", slog.Any("error", err), slog.String("loan_id", loan.ID()))

			return loan, nil
		}

		s.notifier.Notify(notify.LoanDecision(
			recipientOf(usr), loan.ID(), string(loan.Status()), money.Format(loan.Amount()), loan.RejectionReason(),
		))
	}

	return loan, nil
}
