package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"

	"github.com/andymarkow/cybexchange/internal/domain/kyc"
	"github.com/andymarkow/cybexchange/internal/domain/loans"
	"github.com/andymarkow/cybexchange/internal/domain/users"
	"github.com/andymarkow/cybexchange/internal/notify"
	"github.com/andymarkow/cybexchange/internal/storage"
	"github.com/andymarkow/cybexchange/internal/storage/inmemory"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/require"
)

type memoryFiles struct {
	mu    sync.Mutex
	files map[string]string
	seq   int
	fail  bool
}

func newMemoryFiles() *memoryFiles {
	return &memoryFiles{files: make(map[string]string)}
}

func (m *memoryFiles) Save(_ context.Context, filename string, r io.Reader) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.fail {
		return "", errors.New("disk full")
	}

	data, err := io.ReadAll(r)
	if err != nil {
		return "", err
	}

	m.seq++
	url := fmt.Sprintf("/uploads/%d-%s", m.seq, filename)
	m.files[url] = string(data)

	return url, nil
}

func (m *memoryFiles) Remove(_ context.Context, url string) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	delete(m.files, url)

	return nil
}

func (m *memoryFiles) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()

	return len(m.files)
}

type recordingNotifier struct {
	mu   sync.Mutex
	sent []notify.Notification
}

func (r *recordingNotifier) Notify(n notify.Notification) {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.sent = append(r.sent, n)
}

func (r *recordingNotifier) byKind(kind notify.Kind) []notify.Notification {
	r.mu.Lock()
	defer r.mu.Unlock()

	var out []notify.Notification

	for _, n := range r.sent {
		if n.Kind == kind {
			out = append(out, n)
		}
	}

	return out
}

type fixture struct {
	svc      *Service
	store    *inmemory.Storage
	files    *memoryFiles
	notifier *recordingNotifier
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	f := &fixture{
		store:    inmemory.NewStorage(),
		files:    newMemoryFiles(),
		notifier: &recordingNotifier{},
	}

	f.svc = New(f.store,
		WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil))),
		WithFileStore(f.files),
		WithNotifier(f.notifier),
	)

	require.NoError(t, f.svc.SeedCurrencyRates(context.Background()))

	return f
}

var phoneSeq int

func (f *fixture) register(t *testing.T) *users.User {
	t.Helper()

	phoneSeq++

	usr, err := f.svc.Register(context.Background(), users.Registration{
		Email:       fmt.Sprintf("client%d@example.com", phoneSeq),
		Phone:       fmt.Sprintf("+24492%07d", phoneSeq),
		Password:    "secret1",
		FullName:    "Test Client",
		DateOfBirth: "1991-01-01",
	})
	require.NoError(t, err)

	return usr
}

// fund credits the user through an approved deposit.
func (f *fixture) fund(t *testing.T, userID string, amount string) {
	t.Helper()

	ctx := context.Background()

	tx, err := f.svc.Deposit(ctx, userID, decimal.RequireFromString(amount), "KZ")
	require.NoError(t, err)

	_, err = f.svc.SettleTransaction(ctx, tx.ID(), users.StatusApproved)
	require.NoError(t, err)
}

func upload(name string) Upload {
	return Upload{Filename: name, Body: strings.NewReader("content of " + name)}
}

func TestReviewByMalformedOrUnknownIDIsNotFound(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	for _, id := range []string{"abc", "", "{" + uuid.NewString() + "}", uuid.NewString()} {
		_, err := f.svc.ReviewKYC(ctx, id, kyc.Decision{Status: users.StatusApproved})
		require.ErrorIs(t, err, storage.ErrKYCDocumentNotFound, "id %q", id)

		_, err = f.svc.SettleTransaction(ctx, id, users.StatusApproved)
		require.ErrorIs(t, err, storage.ErrTransactionNotFound, "id %q", id)

		_, err = f.svc.ReviewLoan(ctx, id, loans.Decision{Status: loans.StatusApproved})
		require.ErrorIs(t, err, storage.ErrLoanNotFound, "id %q", id)
	}
}
