package pgstorage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/andymarkow/cybexchange/internal/domain/kyc"
	"github.com/andymarkow/cybexchange/internal/domain/users"
	"github.com/andymarkow/cybexchange/internal/storage"
	"github.com/andymarkow/cybexchange/internal/storage/dbmodels"
	"github.com/lib/pq"
)

const kycColumns = `id, user_id, document_type, document_url, status, rejection_reason, reviewed_at, created_at`

func scanKYCDocument(row rowScanner) (*kyc.Document, error) {
	dbDoc := new(dbmodels.KYCDocument)

	if err := row.Scan(
		&dbDoc.ID, &dbDoc.UserID, &dbDoc.DocumentType, &dbDoc.DocumentURL,
		&dbDoc.Status, &dbDoc.RejectionReason, &dbDoc.ReviewedAt, &dbDoc.CreatedAt,
	); err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
			return nil, storage.ErrKYCDocumentNotFound
		}

		return nil, fmt.Errorf("row.Scan: %w", err)
	}

	return kyc.RestoreDocument(
		dbDoc.ID, dbDoc.UserID, kyc.DocumentType(dbDoc.DocumentType), dbDoc.DocumentURL,
		users.VerificationStatus(dbDoc.Status), dbDoc.RejectionReason,
		timePtr(dbDoc.ReviewedAt), dbDoc.CreatedAt.UTC(),
	), nil
}

func queryKYCDocuments(ctx context.Context, q queryer, query string, args ...any) ([]*kyc.Document, error) {
	rows, err := q.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("QueryContext: %w", err)
	}
	defer rows.Close()

	docs := make([]*kyc.Document, 0)

	for rows.Next() {
		doc, err := scanKYCDocument(rows)
		if err != nil {
			return nil, err
		}

		docs = append(docs, doc)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows.Err: %w", err)
	}

	return docs, nil
}

func (s *Storage) SubmitKYCDocuments(ctx context.Context, userID string, docs []*kyc.Document) error {
	err := WithRetry(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("db.BeginTx: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck

		usr, err := lockUser(ctx, tx, userID)
		if err != nil {
			return err
		}

		existing, err := queryKYCDocuments(ctx, tx,
			`SELECT `+kycColumns+` FROM kyc_documents WHERE user_id = $1 FOR UPDATE`, userID)
		if err != nil {
			return err
		}

		if err := kyc.CanSubmit(usr.VerificationStatus(), existing); err != nil {
			return err //nolint:wrapcheck
		}

		for _, doc := range kyc.Supersede(existing, time.Now().UTC()) {
			if _, err := tx.ExecContext(ctx,
				`UPDATE kyc_documents SET status = $1, rejection_reason = $2, reviewed_at = $3 WHERE id = $4`,
				doc.Status().String(), doc.RejectionReason(), nullTime(doc.ReviewedAt()), doc.ID(),
			); err != nil {
				return fmt.Errorf("tx.ExecContext: %w", err)
			}
		}

		for _, doc := range docs {
			if _, err := tx.ExecContext(ctx,
				`INSERT INTO kyc_documents (`+kycColumns+`) VALUES ($1, $2, $3, $4, $5, $6, $7, $8)`,
				doc.ID(), doc.UserID(), string(doc.Type()), doc.URL(), doc.Status().String(),
				doc.RejectionReason(), nullTime(doc.ReviewedAt()), doc.CreatedAt(),
			); err != nil {
				return fmt.Errorf("tx.ExecContext: %w", err)
			}
		}

		usr.SetVerificationStatus(users.StatusPending)

		if err := updateUserState(ctx, tx, usr); err != nil {
			return err
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("tx.Commit: %w", err)
		}

		return nil
	})
	if err != nil {
		return err
	}

	return nil
}

func (s *Storage) GetKYCDocumentsByUser(ctx context.Context, userID string) ([]*kyc.Document, error) {
	var docs []*kyc.Document

	err := WithRetry(func() error {
		var err error

		docs, err = queryKYCDocuments(ctx, s.db,
			`SELECT `+kycColumns+` FROM kyc_documents WHERE user_id = $1 ORDER BY created_at`, userID)

		return err
	})
	if err != nil {
		return nil, err
	}

	return docs, nil
}

func (s *Storage) GetKYCDocumentsByStatus(ctx context.Context, statuses ...users.VerificationStatus) ([]*kyc.Document, error) {
	var docs []*kyc.Document

	err := WithRetry(func() error {
		var err error

		docs, err = queryKYCDocuments(ctx, s.db,
			`SELECT `+kycColumns+` FROM kyc_documents WHERE status = ANY($1) ORDER BY created_at`,
			pq.Array(statusArgs(statuses)))

		return err
	})
	if err != nil {
		return nil, err
	}

	return docs, nil
}

func (s *Storage) ReviewKYCDocument(ctx context.Context, docID string, dec kyc.Decision, at time.Time) (*storage.KYCReview, error) {
	var review *storage.KYCReview

	err := WithRetry(func() error {
		tx, err := s.db.BeginTx(ctx, nil)
		if err != nil {
			return fmt.Errorf("db.BeginTx: %w", err)
		}
		defer tx.Rollback() //nolint:errcheck

		var userID string

		row := tx.QueryRowContext(ctx, `SELECT user_id FROM kyc_documents WHERE id = $1`, docID)
		if err := row.Scan(&userID); err != nil {
			if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
				return storage.ErrKYCDocumentNotFound
			}

			return fmt.Errorf("row.Scan: %w", err)
		}

		// The user row is locked first, the same order as submission.
		usr, err := lockUser(ctx, tx, userID)
		if err != nil {
			return err
		}

		docs, err := queryKYCDocuments(ctx, tx,
			`SELECT `+kycColumns+` FROM kyc_documents WHERE user_id = $1 ORDER BY created_at FOR UPDATE`, userID)
		if err != nil {
			return err
		}

		var doc *kyc.Document

		for _, d := range docs {
			if d.ID() == docID {
				doc = d
			}
		}

		if doc == nil {
			return storage.ErrKYCDocumentNotFound
		}

		out, err := kyc.Apply(docs, doc, usr.VerificationStatus(), dec, at)
		if err != nil {
			return err //nolint:wrapcheck
		}

		if out.DocumentChanged {
			if _, err := tx.ExecContext(ctx,
				`UPDATE kyc_documents SET status = $1, rejection_reason = $2, reviewed_at = $3 WHERE id = $4`,
				doc.Status().String(), doc.RejectionReason(), nullTime(doc.ReviewedAt()), doc.ID(),
			); err != nil {
				return fmt.Errorf("tx.ExecContext: %w", err)
			}
		}

		if out.UserStatus != usr.VerificationStatus() {
			usr.SetVerificationStatus(out.UserStatus)

			if err := updateUserState(ctx, tx, usr); err != nil {
				return err
			}
		}

		if err := tx.Commit(); err != nil {
			return fmt.Errorf("tx.Commit: %w", err)
		}

		review = &storage.KYCReview{Outcome: out, User: usr}

		return nil
	})
	if err != nil {
		return nil, err
	}

	return review, nil
}
