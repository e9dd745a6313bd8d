package pgstorage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/andymarkow/cybexchange/internal/domain/loans"
	"github.com/andymarkow/cybexchange/internal/storage"
	"github.com/andymarkow/cybexchange/internal/storage/dbmodels"
	"github.com/lib/pq"
)

const loanColumns = `id, user_id, amount, interest_rate, term_months, monthly_payment, total_payment,` +
	` total_interest, payment_day, monthly_salary, workplace, bank_name, iban,` +
	` emergency_contact1_name, emergency_contact1_phone, emergency_contact2_name, emergency_contact2_phone,` +
	` id_card_url, selfie_url, salary_proof_url, justification_url, status, rejection_reason,` +
	` approved_at, created_at`

func scanLoan(row rowScanner) (*loans.Loan, error) {
	dbLoan := new(dbmodels.Loan)

	if err := row.Scan(
		&dbLoan.ID, &dbLoan.UserID, &dbLoan.Amount, &dbLoan.InterestRate, &dbLoan.TermMonths,
		&dbLoan.MonthlyPayment, &dbLoan.TotalPayment, &dbLoan.TotalInterest, &dbLoan.PaymentDay,
		&dbLoan.MonthlySalary, &dbLoan.Workplace, &dbLoan.BankName, &dbLoan.IBAN,
		&dbLoan.EmergencyContact1Name, &dbLoan.EmergencyContact1Phone,
		&dbLoan.EmergencyContact2Name, &dbLoan.EmergencyContact2Phone,
		&dbLoan.IDCardURL, &dbLoan.SelfieURL, &dbLoan.SalaryProofURL, &dbLoan.JustificationURL,
		&dbLoan.Status, &dbLoan.RejectionReason, &dbLoan.ApprovedAt, &dbLoan.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
			return nil, storage.ErrLoanNotFound
		}

		return nil, fmt.Errorf("row.Scan: %w", err)
	}

	app := loans.Application{
		Amount:        dbLoan.Amount,
		TermMonths:    dbLoan.TermMonths,
		PaymentDay:    dbLoan.PaymentDay,
		MonthlySalary: dbLoan.MonthlySalary,
		Workplace:     dbLoan.Workplace,
		BankName:      dbLoan.BankName,
		IBAN:          dbLoan.IBAN,
		EmergencyContacts: [2]loans.Contact{
			{Name: dbLoan.EmergencyContact1Name, Phone: dbLoan.EmergencyContact1Phone},
			{Name: dbLoan.EmergencyContact2Name, Phone: dbLoan.EmergencyContact2Phone},
		},
		Documents: loans.Documents{
			IDCardURL:        dbLoan.IDCardURL,
			SelfieURL:        dbLoan.SelfieURL,
			SalaryProofURL:   dbLoan.SalaryProofURL,
			JustificationURL: dbLoan.JustificationURL,
		},
	}

	quote := loans.Quote{
		MonthlyPayment: dbLoan.MonthlyPayment,
		TotalPayment:   dbLoan.TotalPayment,
		TotalInterest:  dbLoan.TotalInterest,
	}

	return loans.RestoreLoan(
		dbLoan.ID, dbLoan.UserID, app, dbLoan.InterestRate, quote,
		loans.Status(dbLoan.Status), dbLoan.RejectionReason, timePtr(dbLoan.ApprovedAt), dbLoan.CreatedAt.UTC(),
	), nil
}

func (s *Storage) queryLoans(ctx context.Context, query string, args ...any) ([]*loans.Loan, error) {
	list := make([]*loans.Loan, 0)

	err := WithRetry(func() error {
		list = list[:0]

		rows, err := s.db.QueryContext(ctx, query, args...)
		if err != nil {
			return fmt.Errorf("db.QueryContext: %w", err)
		}
		defer rows.Close()

		for rows.Next() {
			loan, err := scanLoan(rows)
			if err != nil {
				return err
			}

			list = append(list, loan)
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

func (s *Storage) CreateLoan(ctx context.Context, loan *loans.Loan) error {
	app := loan.Application()
	quote := loan.Quote()

	err := WithRetry(func() error {
		if _, err := s.db.ExecContext(ctx,
			`INSERT INTO loans (`+loanColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12,`+
				` $13, $14, $15, $16, $17, $18, $19, $20, $21, $22, $23, $24, $25)`,
			loan.ID(), loan.UserID(), app.Amount, loan.InterestRate(), app.TermMonths,
			quote.MonthlyPayment, quote.TotalPayment, quote.TotalInterest, app.PaymentDay,
			app.MonthlySalary, app.Workplace, app.BankName, app.IBAN,
			app.EmergencyContacts[0].Name, app.EmergencyContacts[0].Phone,
			app.EmergencyContacts[1].Name, app.EmergencyContacts[1].Phone,
			app.Documents.IDCardURL, app.Documents.SelfieURL, app.Documents.SalaryProofURL,
			app.Documents.JustificationURL, string(loan.Status()), loan.RejectionReason(),
			nullTime(loan.ApprovedAt()), loan.CreatedAt(),
		); err != nil {
			if isForeignKeyViolation(err) {
				return storage.ErrUserNotFound
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

func (s *Storage) GetLoan(ctx context.Context, id string) (*loans.Loan, error) {
	var loan *loans.Loan

	err := WithRetry(func() error {
		var err error

		loan, err = scanLoan(s.db.QueryRowContext(ctx, `SELECT `+loanColumns+` FROM loans WHERE id = $1`, id))

		return err
	})
	if err != nil {
		return nil, err
	}

	return loan, nil
}

func (s *Storage) GetLoansByUser(ctx context.Context, userID string) ([]*loans.Loan, error) {
	return s.queryLoans(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE user_id = $1 ORDER BY created_at DESC`, userID)
}

// GetLoansByStatus returns every loan when no status is given.
func (s *Storage) GetLoansByStatus(ctx context.Context, statuses ...loans.Status) ([]*loans.Loan, error) {
	if len(statuses) == 0 {
		return s.queryLoans(ctx, `SELECT `+loanColumns+` FROM loans ORDER BY created_at DESC`)
	}

	return s.queryLoans(ctx,
		`SELECT `+loanColumns+` FROM loans WHERE status = ANY($1) ORDER BY created_at`,
		pq.Array(statusArgs(statuses)))
}

func (s *Storage) ReviewLoan(ctx context.Context, id string, dec loans.Decision, at time.Time) (*loans.Loan, error) {
	var loan *loans.Loan

	err := WithRetry(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("db.BeginTx: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck

		loan, err = scanLoan(tx.QueryRowContext(ctx,
			`SELECT `+loanColumns+` FROM loans WHERE id = $1 FOR UPDATE`, id))
		if err != nil {
			return err
		}

		if err := loan.Review(dec, at); err != nil {
			return err //nolint:wrapcheck
		}

		if _, err := tx.ExecContext(ctx,
			`UPDATE loans SET status = $1, rejection_reason = $2, approved_at = $3 WHERE id = $4`,
			string(loan.Status()), loan.RejectionReason(), nullTime(loan.ApprovedAt()), loan.ID(),
		); err != nil {
			return fmt.Errorf("tx.ExecContext: %w", err)
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("tx.Commit: %w", err)
		}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return loan, nil
}
