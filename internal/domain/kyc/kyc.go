// Package kyc models identity documents and the review state machine that derives
// a user's verification status from the decisions taken on them.
package kyc

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/andymarkow/cybexchange/internal/domain/users"
	"github.com/google/uuid"
)

var (
	ErrDocumentTypeInvalid     = errors.New("kyc document type is invalid")
	ErrDocumentURLEmpty        = errors.New("kyc document url is empty")
	ErrDocumentMissing         = errors.New("kyc document is missing")
	ErrDecisionInvalid         = errors.New("kyc decision must be approved or rejected")
	ErrDocumentAlreadyReviewed = errors.New("kyc document already reviewed")
	ErrAlreadySubmitted        = errors.New("kyc documents already submitted")
	ErrAlreadyApproved         = errors.New("kyc verification already approved")
)

type DocumentType string

const (
	DocumentIDCard         DocumentType = "id_card"
	DocumentSelfie         DocumentType = "selfie"
	DocumentProofOfAddress DocumentType = "proof_of_address"
)

// RequiredDocuments is the complete set a user must have approved to be verified.
var RequiredDocuments = []DocumentType{
	DocumentIDCard,
	DocumentSelfie,
	DocumentProofOfAddress,
}

func ParseDocumentType(s string) (DocumentType, error) {
	for _, t := range RequiredDocuments {
		if string(t) == s {
			return t, nil
		}
	}

	return "", fmt.Errorf("%w: %q", ErrDocumentTypeInvalid, s)
}

type Document struct {
	id              string
	userID          string
	docType         DocumentType
	url             string
	status          users.VerificationStatus
	rejectionReason string
	reviewedAt      *time.Time
	createdAt       time.Time
}

func NewDocument(userID string, docType DocumentType, url string) (*Document, error) {
	if err := users.ValidateID(userID); err != nil {
		return nil, err //nolint:wrapcheck
	}

	if _, err := ParseDocumentType(string(docType)); err != nil {
		return nil, err
	}

	if strings.TrimSpace(url) == "" {
		return nil, ErrDocumentURLEmpty
	}

	return &Document{
		id:        uuid.NewString(),
		userID:    userID,
		docType:   docType,
		url:       url,
		status:    users.StatusPending,
		createdAt: time.Now().UTC(),
	}, nil
}

// RestoreDocument rebuilds a document from persisted state.
func RestoreDocument(
	id, userID string, docType DocumentType, url string, status users.VerificationStatus,
	rejectionReason string, reviewedAt *time.Time, createdAt time.Time,
) *Document {
	return &Document{
		id:              id,
		userID:          userID,
		docType:         docType,
		url:             url,
		status:          status,
		rejectionReason: rejectionReason,
		reviewedAt:      reviewedAt,
		createdAt:       createdAt,
	}
}

func (d *Document) ID() string                       { return d.id }
func (d *Document) UserID() string                   { return d.userID }
func (d *Document) Type() DocumentType               { return d.docType }
func (d *Document) URL() string                      { return d.url }
func (d *Document) Status() users.VerificationStatus { return d.status }
func (d *Document) RejectionReason() string          { return d.rejectionReason }
func (d *Document) ReviewedAt() *time.Time           { return d.reviewedAt }
func (d *Document) CreatedAt() time.Time             { return d.createdAt }

// Decision is an admin verdict on a single document.
type Decision struct {
	Status users.VerificationStatus
	Reason string
}

func (d Decision) Validate() error {
	if d.Status != users.StatusApproved && d.Status != users.StatusRejected {
		return fmt.Errorf("%w: %q", ErrDecisionInvalid, d.Status)
	}

	return nil
}

// Review applies a decision. Pending documents accept either verdict; a reviewed
// document accepts only the verdict it already carries, which is a no-op.
func (d *Document) Review(dec Decision, at time.Time) (bool, error) {
	if err := dec.Validate(); err != nil {
		return false, err
	}

	if d.status != users.StatusPending {
		if d.status == dec.Status {
			return false, nil
		}

		return false, fmt.Errorf("%w: %s is %s", ErrDocumentAlreadyReviewed, d.id, d.status)
	}

	d.status = dec.Status
	d.reviewedAt = &at

	if dec.Status == users.StatusRejected {
		d.rejectionReason = strings.TrimSpace(dec.Reason)
	}

	return true, nil
}

// Current returns the newest document of each type.
func Current(docs []*Document) map[DocumentType]*Document {
	latest := make(map[DocumentType]*Document, len(RequiredDocuments))

	for _, doc := range docs {
		prev, ok := latest[doc.docType]
		if !ok || doc.createdAt.After(prev.createdAt) {
			latest[doc.docType] = doc
		}
	}

	return latest
}

func isCurrent(docs []*Document, doc *Document) bool {
	cur, ok := Current(docs)[doc.docType]

	return ok && cur.id == doc.id
}

// AllApproved reports whether every required document type is present and approved.
// An empty set is never approved.
func AllApproved(docs []*Document) bool {
	if len(docs) == 0 {
		return false
	}

	latest := Current(docs)

	for _, t := range RequiredDocuments {
		doc, ok := latest[t]
		if !ok || doc.status != users.StatusApproved {
			return false
		}
	}

	return true
}

// DeriveUserStatus recomputes the user's verification status after updated changed.
// docs must contain every document of the user, including updated.
func DeriveUserStatus(docs []*Document, updated *Document, current users.VerificationStatus) users.VerificationStatus {
	if AllApproved(docs) {
		return users.StatusApproved
	}

	if updated.status == users.StatusRejected && isCurrent(docs, updated) {
		return users.StatusRejected
	}

	return current
}

// Outcome describes the effect of one review.
type Outcome struct {
	Document        *Document
	DocumentChanged bool
	PreviousStatus  users.VerificationStatus
	UserStatus      users.VerificationStatus
}

// NoticeKind is the user-facing event an outcome triggers, if any.
type NoticeKind string

const (
	NoticeNone     NoticeKind = ""
	NoticeApproved NoticeKind = "approved"
	NoticeRejected NoticeKind = "rejected"
)

func (o Outcome) Notice() NoticeKind {
	if !o.DocumentChanged {
		return NoticeNone
	}

	if o.UserStatus == users.StatusApproved && o.PreviousStatus != users.StatusApproved {
		return NoticeApproved
	}

	if o.UserStatus == users.StatusRejected && o.Document.status == users.StatusRejected {
		return NoticeRejected
	}

	return NoticeNone
}

// Apply runs the full review step: the document transition followed by the user
// status aggregation. docs is every document of the owner, including doc.
func Apply(docs []*Document, doc *Document, userStatus users.VerificationStatus, dec Decision, at time.Time) (Outcome, error) {
	changed, err := doc.Review(dec, at)
	if err != nil {
		return Outcome{}, err
	}

	out := Outcome{
		Document:        doc,
		DocumentChanged: changed,
		PreviousStatus:  userStatus,
		UserStatus:      userStatus,
	}

	if changed {
		out.UserStatus = DeriveUserStatus(withDocument(docs, doc), doc, userStatus)
	}

	return out, nil
}

// CanSubmit reports whether a user may upload a (new) document set. First submissions
// are allowed while pending with nothing on file; resubmission only after a rejection.
func CanSubmit(userStatus users.VerificationStatus, docs []*Document) error {
	switch userStatus {
	case users.StatusApproved:
		return ErrAlreadyApproved
	case users.StatusRejected:
		return nil
	default:
		if len(docs) > 0 {
			return ErrAlreadySubmitted
		}

		return nil
	}
}

// SupersededReason is recorded on pending documents closed by a newer submission.
const SupersededReason = "superseded by a newer submission"

// Supersede closes every pending document in docs as rejected. A submission always
// carries the full required set, so nothing submitted earlier stays reviewable.
// It returns the documents it changed.
func Supersede(docs []*Document, at time.Time) []*Document {
	var closed []*Document

	for _, d := range docs {
		if d.status != users.StatusPending {
			continue
		}

		d.status = users.StatusRejected
		d.rejectionReason = SupersededReason
		d.reviewedAt = &at

		closed = append(closed, d)
	}

	return closed
}

// withDocument returns docs with any entry sharing doc's id replaced by doc.
func withDocument(docs []*Document, doc *Document) []*Document {
	view := make([]*Document, 0, len(docs)+1)
	found := false

	for _, d := range docs {
		if d.id == doc.id {
			view = append(view, doc)
			found = true

			continue
		}

		view = append(view, d)
	}

	if !found {
		view = append(view, doc)
	}

	return view
}
