package service

import (
	"context"
	"fmt"

	"github.com/andymarkow/cybexchange/internal/domain/kyc"
	"github.com/andymarkow/cybexchange/internal/domain/users"
	"github.com/andymarkow/cybexchange/internal/notify"
	"github.com/andymarkow/cybexchange/internal/storage"
)

// SubmitKYC stores one file per required document type and records the documents
// as pending. Nothing is stored unless all required types are present and the user
// is allowed to (re)submit.
func (s *Service) SubmitKYC(ctx context.Context, userID string, uploads map[kyc.DocumentType]Upload) ([]*kyc.Document, error) {
	for _, docType := range kyc.RequiredDocuments {
		if _, ok := uploads[docType]; !ok {
			return nil, fmt.Errorf("%w: %s", kyc.ErrDocumentMissing, docType)
		}
	}

	usr, err := s.store.GetUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("storage.GetUser: %w", err)
	}

	existing, err := s.store.GetKYCDocumentsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("storage.GetKYCDocumentsByUser: %w", err)
	}

	if err := kyc.CanSubmit(usr.VerificationStatus(), existing); err != nil {
		return nil, err //nolint:wrapcheck
	}

	required := make(map[kyc.DocumentType]Upload, len(kyc.RequiredDocuments))
	for _, docType := range kyc.RequiredDocuments {
		required[docType] = uploads[docType]
	}

	urls, err := saveUploads(ctx, s, required)
	if err != nil {
		return nil, fmt.Errorf("files.Save: %w", err)
	}

	docs := make([]*kyc.Document, 0, len(kyc.RequiredDocuments))

	for _, docType := range kyc.RequiredDocuments {
		doc, err := kyc.NewDocument(userID, docType, urls[docType])
		if err != nil {
			removeUploads(ctx, s, urls)

			return nil, fmt.Errorf("kyc.NewDocument: %w", err)
		}

		docs = append(docs, doc)
	}

	if err := s.store.SubmitKYCDocuments(ctx, userID, docs); err != nil {
		removeUploads(ctx, s, urls)

		return nil, fmt.Errorf("storage.SubmitKYCDocuments: %w", err)
	}

	return docs, nil
}

func (s *Service) KYCDocuments(ctx context.Context, userID string) ([]*kyc.Document, error) {
	docs, err := s.store.GetKYCDocumentsByUser(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("storage.GetKYCDocumentsByUser: %w", err)
	}

	return docs, nil
}

func (s *Service) PendingKYCDocuments(ctx context.Context) ([]*kyc.Document, error) {
	docs, err := s.store.GetKYCDocumentsByStatus(ctx, users.StatusPending)
	if err != nil {
		return nil, fmt.Errorf("storage.GetKYCDocumentsByStatus: %w", err)
	}

	return docs, nil
}

// ReviewKYC applies an admin decision to one document, recomputes the owner's
// verification status and notifies the owner when that status reaches a verdict.
func (s *Service) ReviewKYC(ctx context.Context, docID string, dec kyc.Decision) (*storage.KYCReview, error) {
	if err := dec.Validate(); err != nil {
		return nil, err //nolint:wrapcheck
	}

	if err := checkID(docID, storage.ErrKYCDocumentNotFound); err != nil {
		return nil, err
	}

	review, err := s.store.ReviewKYCDocument(ctx, docID, dec, s.now())
	if err != nil {
		return nil, fmt.Errorf("storage.ReviewKYCDocument: %w", err)
	}

	switch review.Outcome.Notice() {
	case kyc.NoticeApproved:
		s.notifier.Notify(notify.KYCDecision(recipientOf(review.User), users.StatusApproved.String(), ""))
	case kyc.NoticeRejected:
		s.notifier.Notify(notify.KYCDecision(
			recipientOf(review.User), users.StatusRejected.String(), review.Outcome.Document.RejectionReason(),
		))
	case kyc.NoticeNone:
	}

	return review, nil
}
