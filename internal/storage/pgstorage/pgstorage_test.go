package pgstorage

import (
	"context"
	"fmt"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/andymarkow/cybexchange/internal/domain/kyc"
	"github.com/andymarkow/cybexchange/internal/domain/loans"
	"github.com/andymarkow/cybexchange/internal/domain/money"
	"github.com/andymarkow/cybexchange/internal/domain/transactions"
	"github.com/andymarkow/cybexchange/internal/domain/users"
	"github.com/andymarkow/cybexchange/internal/storage"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// newTestStorage connects to the database named by DATABASE_URI and skips the
// test when it is not set.
func newTestStorage(t *testing.T) *Storage {
	t.Helper()

	uri := os.Getenv("DATABASE_URI")
	if uri == "" {
		t.Skip("DATABASE_URI is not set")
	}

	s, err := NewStorage(uri)
	require.NoError(t, err)

	t.Cleanup(func() { s.Close() })

	require.NoError(t, s.Bootstrap(context.Background()))

	return s
}

func createUser(t *testing.T, s *Storage) *users.User {
	t.Helper()

	suffix := uuid.NewString()[:8]

	usr, err := users.CreateUser(users.Registration{
		Email:       fmt.Sprintf("pg-%s@example.com", suffix),
		Phone:       fmt.Sprintf("+244%09d", time.Now().UnixNano()%1_000_000_000),
		Password:    "secret1",
		FullName:    "Postgres Client",
		DateOfBirth: "1990-01-01",
	})
	require.NoError(t, err)
	require.NoError(t, s.CreateUser(context.Background(), usr))

	return usr
}

func fund(t *testing.T, s *Storage, userID string, amount decimal.Decimal) {
	t.Helper()

	ctx := context.Background()

	dep, err := transactions.NewDeposit(userID, amount, money.CurrencyKZ, "DEP-"+uuid.NewString()[:8])
	require.NoError(t, err)
	require.NoError(t, s.CreateTransaction(ctx, dep))

	_, err = s.SettleTransaction(ctx, dep.ID(), users.StatusApproved, amount, time.Now().UTC())
	require.NoError(t, err)
}

func TestConcurrentWithdrawSettlementIsSerialized(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	usr := createUser(t, s)

	fund(t, s, usr.ID(), decimal.NewFromInt(100))

	amount := decimal.NewFromInt(80)
	ids := make([]string, 0, 2)

	for n := 0; n < 2; n++ {
		wtx, err := transactions.NewWithdrawal(usr.ID(), amount, money.CurrencyKZ)
		require.NoError(t, err)
		require.NoError(t, s.CreateWithdrawal(ctx, wtx, amount))

		ids = append(ids, wtx.ID())
	}

	var wg sync.WaitGroup

	errs := make([]error, len(ids))

	for i, id := range ids {
		i, id := i, id

		wg.Add(1)

		go func() {
			defer wg.Done()

			_, errs[i] = s.SettleTransaction(ctx, id, users.StatusApproved, amount, time.Now().UTC())
		}()
	}

	wg.Wait()

	var settled, refused int

	for _, err := range errs {
		if err == nil {
			settled++

			continue
		}

		require.ErrorIs(t, err, storage.ErrUserBalanceNotEnough)

		refused++
	}

	assert.Equal(t, 1, settled)
	assert.Equal(t, 1, refused)

	got, err := s.GetUser(ctx, usr.ID())
	require.NoError(t, err)
	assert.True(t, got.Balance().Equal(decimal.NewFromInt(20)), "balance %s", got.Balance())
}

func TestMalformedIDIsNotFound(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	at := time.Now().UTC()

	_, err := s.GetTransaction(ctx, "abc")
	require.ErrorIs(t, err, storage.ErrTransactionNotFound)

	_, err = s.SettleTransaction(ctx, "abc", users.StatusApproved, decimal.Zero, at)
	require.ErrorIs(t, err, storage.ErrTransactionNotFound)

	_, err = s.ReviewKYCDocument(ctx, "abc", kyc.Decision{Status: users.StatusApproved}, at)
	require.ErrorIs(t, err, storage.ErrKYCDocumentNotFound)

	_, err = s.GetLoan(ctx, "abc")
	require.ErrorIs(t, err, storage.ErrLoanNotFound)

	_, err = s.ReviewLoan(ctx, "abc", loans.Decision{Status: loans.StatusApproved}, at)
	require.ErrorIs(t, err, storage.ErrLoanNotFound)
}

func submitDocuments(t *testing.T, s *Storage, userID string) []*kyc.Document {
	t.Helper()

	docs := make([]*kyc.Document, 0, len(kyc.RequiredDocuments))

	for _, docType := range kyc.RequiredDocuments {
		doc, err := kyc.NewDocument(userID, docType, "/uploads/"+uuid.NewString()+".png")
		require.NoError(t, err)

		docs = append(docs, doc)
	}

	require.NoError(t, s.SubmitKYCDocuments(context.Background(), userID, docs))

	return docs
}

func TestResubmissionSupersedesPendingDocuments(t *testing.T) {
	s := newTestStorage(t)
	ctx := context.Background()
	usr := createUser(t, s)

	first := submitDocuments(t, s, usr.ID())

	review, err := s.ReviewKYCDocument(ctx, first[0].ID(), kyc.Decision{Status: users.StatusRejected}, time.Now().UTC())
	require.NoError(t, err)
	require.Equal(t, users.StatusRejected, review.User.VerificationStatus())

	time.Sleep(time.Millisecond)

	second := submitDocuments(t, s, usr.ID())

	pending, err := s.GetKYCDocumentsByStatus(ctx, users.StatusPending)
	require.NoError(t, err)

	var own []string

	for _, doc := range pending {
		if doc.UserID() == usr.ID() {
			own = append(own, doc.ID())
		}
	}

	want := make([]string, 0, len(second))
	for _, doc := range second {
		want = append(want, doc.ID())
	}

	assert.ElementsMatch(t, want, own)

	_, err = s.ReviewKYCDocument(ctx, first[1].ID(), kyc.Decision{Status: users.StatusApproved}, time.Now().UTC())
	require.ErrorIs(t, err, kyc.ErrDocumentAlreadyReviewed)
}
