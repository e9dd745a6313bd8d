package kyc

import (
	"testing"
	"time"

	"github.com/andymarkow/cybexchange/internal/domain/users"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var reviewedAt = time.Date(2024, 3, 1, 12, 0, 0, 0, time.UTC)

func newDocumentSet(t *testing.T) []*Document {
	t.Helper()

	docs := make([]*Document, 0, len(RequiredDocuments))

	for _, docType := range RequiredDocuments {
		doc, err := NewDocument("user-1", docType, "/uploads/"+string(docType)+".png")
		require.NoError(t, err)

		docs = append(docs, doc)
	}

	return docs
}

func permutations(n int) [][]int {
	if n == 1 {
		return [][]int{{0}}
	}

	var out [][]int

	for _, p := range permutations(n - 1) {
		for i := 0; i <= len(p); i++ {
			perm := make([]int, 0, n)
			perm = append(perm, p[:i]...)
			perm = append(perm, n-1)
			perm = append(perm, p[i:]...)
			out = append(out, perm)
		}
	}

	return out
}

func TestApproveAllInAnyOrderConvergesOnce(t *testing.T) {
	perms := permutations(len(RequiredDocuments))
	require.Len(t, perms, 6)

	approve := Decision{Status: users.StatusApproved}

	for _, perm := range perms {
		docs := newDocumentSet(t)
		status := users.StatusPending
		approvals := 0

		for step, idx := range perm {
			out, err := Apply(docs, docs[idx], status, approve, reviewedAt)
			require.NoError(t, err)
			assert.True(t, out.DocumentChanged)

			status = out.UserStatus

			if out.Notice() == NoticeApproved {
				approvals++
			}

			if step < len(perm)-1 {
				assert.Equal(t, users.StatusPending, status, "perm %v step %d", perm, step)
			}
		}

		assert.Equal(t, users.StatusApproved, status, "perm %v", perm)
		assert.Equal(t, 1, approvals, "perm %v", perm)

		// Repeating any approval is a no-op without a notice.
		for _, doc := range docs {
			out, err := Apply(docs, doc, status, approve, reviewedAt)
			require.NoError(t, err)
			assert.False(t, out.DocumentChanged)
			assert.Equal(t, NoticeNone, out.Notice())
			assert.Equal(t, users.StatusApproved, out.UserStatus)
		}
	}
}

func TestSingleRejectionRejectsUserImmediately(t *testing.T) {
	for i := range RequiredDocuments {
		docs := newDocumentSet(t)

		out, err := Apply(docs, docs[i], users.StatusPending,
			Decision{Status: users.StatusRejected, Reason: "blurry photo"}, reviewedAt)
		require.NoError(t, err)

		assert.Equal(t, users.StatusRejected, out.UserStatus)
		assert.Equal(t, NoticeRejected, out.Notice())
		assert.Equal(t, "blurry photo", out.Document.RejectionReason())
		require.NotNil(t, out.Document.ReviewedAt())
	}
}

func TestApprovalAfterRejectionKeepsUserRejected(t *testing.T) {
	docs := newDocumentSet(t)

	out, err := Apply(docs, docs[0], users.StatusPending, Decision{Status: users.StatusRejected}, reviewedAt)
	require.NoError(t, err)
	require.Equal(t, users.StatusRejected, out.UserStatus)

	out, err = Apply(docs, docs[1], out.UserStatus, Decision{Status: users.StatusApproved}, reviewedAt)
	require.NoError(t, err)
	assert.Equal(t, users.StatusRejected, out.UserStatus)
	assert.Equal(t, NoticeNone, out.Notice())
}

func TestConflictingDecisionIsRejected(t *testing.T) {
	docs := newDocumentSet(t)

	_, err := Apply(docs, docs[0], users.StatusPending, Decision{Status: users.StatusApproved}, reviewedAt)
	require.NoError(t, err)

	_, err = Apply(docs, docs[0], users.StatusPending, Decision{Status: users.StatusRejected}, reviewedAt)
	require.ErrorIs(t, err, ErrDocumentAlreadyReviewed)
	assert.Equal(t, users.StatusApproved, docs[0].Status())
}

func TestDecisionValidate(t *testing.T) {
	require.NoError(t, Decision{Status: users.StatusApproved}.Validate())
	require.NoError(t, Decision{Status: users.StatusRejected}.Validate())
	require.ErrorIs(t, Decision{Status: users.StatusPending}.Validate(), ErrDecisionInvalid)
	require.ErrorIs(t, Decision{Status: "maybe"}.Validate(), ErrDecisionInvalid)
}

func TestAllApprovedGuards(t *testing.T) {
	assert.False(t, AllApproved(nil))
	assert.False(t, AllApproved([]*Document{}))

	// Two approved documents are not a complete set.
	docs := newDocumentSet(t)[:2]
	for _, doc := range docs {
		_, err := doc.Review(Decision{Status: users.StatusApproved}, reviewedAt)
		require.NoError(t, err)
	}

	assert.False(t, AllApproved(docs))
}

func TestResubmittedDocumentReplacesRejectedOne(t *testing.T) {
	rejected := RestoreDocument("old", "user-1", DocumentSelfie, "/uploads/old.png",
		users.StatusRejected, "dark", &reviewedAt, reviewedAt.Add(-time.Hour))

	docs := []*Document{rejected}

	for _, docType := range RequiredDocuments {
		doc := RestoreDocument("new-"+string(docType), "user-1", docType, "/uploads/x.png",
			users.StatusApproved, "", &reviewedAt, reviewedAt)
		docs = append(docs, doc)
	}

	assert.True(t, AllApproved(docs))
	assert.Equal(t, "new-selfie", Current(docs)[DocumentSelfie].ID())
	assert.Equal(t, users.StatusApproved, DeriveUserStatus(docs, docs[1], users.StatusPending))
}

func TestCanSubmit(t *testing.T) {
	docs := newDocumentSet(t)

	require.NoError(t, CanSubmit(users.StatusPending, nil))
	require.ErrorIs(t, CanSubmit(users.StatusPending, docs), ErrAlreadySubmitted)
	require.ErrorIs(t, CanSubmit(users.StatusApproved, docs), ErrAlreadyApproved)
	require.NoError(t, CanSubmit(users.StatusRejected, docs))
}

func TestNewDocumentValidation(t *testing.T) {
	_, err := NewDocument("", DocumentSelfie, "/uploads/a.png")
	require.ErrorIs(t, err, users.ErrUserIDEmpty)

	_, err = NewDocument("user-1", "passport", "/uploads/a.png")
	require.ErrorIs(t, err, ErrDocumentTypeInvalid)

	_, err = NewDocument("user-1", DocumentSelfie, " ")
	require.ErrorIs(t, err, ErrDocumentURLEmpty)
}

func TestSupersedeClosesOnlyPendingDocuments(t *testing.T) {
	docs := newDocumentSet(t)

	_, err := docs[0].Review(Decision{Status: users.StatusRejected, Reason: "expired"}, reviewedAt)
	require.NoError(t, err)

	closed := Supersede(docs, reviewedAt)
	require.Len(t, closed, len(docs)-1)

	assert.Equal(t, "expired", docs[0].RejectionReason())

	for _, doc := range docs[1:] {
		assert.Equal(t, users.StatusRejected, doc.Status())
		assert.Equal(t, SupersededReason, doc.RejectionReason())
		assert.Equal(t, reviewedAt, *doc.ReviewedAt())
	}

	assert.Empty(t, Supersede(docs, reviewedAt))
}
