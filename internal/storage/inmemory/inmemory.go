package inmemory

import (
	"context"
	"errors"
	"sort"
	"sync"
	"time"

	"github.com/andymarkow/cybexchange/internal/domain/kyc"
	"github.com/andymarkow/cybexchange/internal/domain/loans"
	"github.com/andymarkow/cybexchange/internal/domain/money"
	"github.com/andymarkow/cybexchange/internal/domain/rates"
	"github.com/andymarkow/cybexchange/internal/domain/settings"
	"github.com/andymarkow/cybexchange/internal/domain/transactions"
	"github.com/andymarkow/cybexchange/internal/domain/users"
	"github.com/andymarkow/cybexchange/internal/storage"
	"github.com/shopspring/decimal"
)

var _ storage.Storage = (*Storage)(nil)

// Stores are always locked in declaration order: users, kyc, transactions.
type UserStore struct {
	users map[string]*users.User
	mu    sync.Mutex
}

type KYCStore struct {
	docs map[string]*kyc.Document
	mu   sync.Mutex
}

type TransactionStore struct {
	txs map[string]*transactions.Transaction
	mu  sync.Mutex
}

type LoanStore struct {
	loans map[string]*loans.Loan
	mu    sync.Mutex
}

type CurrencyRateStore struct {
	rates map[rates.Pair]*rates.CurrencyRate
	mu    sync.Mutex
}

type SettingStore struct {
	settings map[settings.Key]*settings.Setting
	mu       sync.Mutex
}

type Storage struct {
	UserStore         UserStore
	KYCStore          KYCStore
	TransactionStore  TransactionStore
	LoanStore         LoanStore
	CurrencyRateStore CurrencyRateStore
	SettingStore      SettingStore
}

func NewStorage() *Storage {
	return &Storage{
		UserStore: UserStore{
			users: make(map[string]*users.User),
		},
		KYCStore: KYCStore{
			docs: make(map[string]*kyc.Document),
		},
		TransactionStore: TransactionStore{
			txs: make(map[string]*transactions.Transaction),
		},
		LoanStore: LoanStore{
			loans: make(map[string]*loans.Loan),
		},
		CurrencyRateStore: CurrencyRateStore{
			rates: make(map[rates.Pair]*rates.CurrencyRate),
		},
		SettingStore: SettingStore{
			settings: make(map[settings.Key]*settings.Setting),
		},
	}
}

func (s *Storage) Close() error {
	return nil
}

func (s *Storage) Ping(_ context.Context) error {
	return nil
}

// Copies keep callers from mutating stored records outside a lock.

func cloneUser(u *users.User) *users.User {
	c := *u

	return &c
}

func cloneDocument(d *kyc.Document) *kyc.Document {
	c := *d

	return &c
}

func cloneTransaction(t *transactions.Transaction) *transactions.Transaction {
	c := *t

	return &c
}

func cloneLoan(l *loans.Loan) *loans.Loan {
	c := *l

	return &c
}

func (s *Storage) CreateUser(_ context.Context, usr *users.User) error {
	s.UserStore.mu.Lock()
	defer s.UserStore.mu.Unlock()

	for _, u := range s.UserStore.users {
		if u.ID() == usr.ID() || u.Email() == usr.Email() || u.Phone() == usr.Phone() {
			return storage.ErrUserAlreadyExists
		}
	}

	s.UserStore.users[usr.ID()] = cloneUser(usr)

	return nil
}

func (s *Storage) GetUser(_ context.Context, id string) (*users.User, error) {
	s.UserStore.mu.Lock()
	defer s.UserStore.mu.Unlock()

	usr, ok := s.UserStore.users[id]
	if !ok {
		return nil, storage.ErrUserNotFound
	}

	return cloneUser(usr), nil
}

func (s *Storage) GetUserByEmail(_ context.Context, email string) (*users.User, error) {
	return s.findUser(func(u *users.User) bool { return u.Email() == email })
}

func (s *Storage) GetUserByPhone(_ context.Context, phone string) (*users.User, error) {
	return s.findUser(func(u *users.User) bool { return u.Phone() == phone })
}

func (s *Storage) findUser(match func(u *users.User) bool) (*users.User, error) {
	s.UserStore.mu.Lock()
	defer s.UserStore.mu.Unlock()

	for _, u := range s.UserStore.users {
		if match(u) {
			return cloneUser(u), nil
		}
	}

	return nil, storage.ErrUserNotFound
}

func (s *Storage) GetUsers(_ context.Context) ([]*users.User, error) {
	s.UserStore.mu.Lock()
	defer s.UserStore.mu.Unlock()

	list := make([]*users.User, 0, len(s.UserStore.users))
	for _, u := range s.UserStore.users {
		list = append(list, cloneUser(u))
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt().After(list[j].CreatedAt())
	})

	return list, nil
}

func (s *Storage) SetUserRole(_ context.Context, id string, role users.Role) error {
	s.UserStore.mu.Lock()
	defer s.UserStore.mu.Unlock()

	usr, ok := s.UserStore.users[id]
	if !ok {
		return storage.ErrUserNotFound
	}

	usr.SetRole(role)

	return nil
}

func (s *Storage) SubmitKYCDocuments(_ context.Context, userID string, docs []*kyc.Document) error {
	s.UserStore.mu.Lock()
	defer s.UserStore.mu.Unlock()

	s.KYCStore.mu.Lock()
	defer s.KYCStore.mu.Unlock()

	usr, ok := s.UserStore.users[userID]
	if !ok {
		return storage.ErrUserNotFound
	}

	existing := s.userDocuments(userID)

	if err := kyc.CanSubmit(usr.VerificationStatus(), existing); err != nil {
		return err
	}

	for _, doc := range kyc.Supersede(existing, time.Now().UTC()) {
		s.KYCStore.docs[doc.ID()] = cloneDocument(doc)
	}

	for _, doc := range docs {
		s.KYCStore.docs[doc.ID()] = cloneDocument(doc)
	}

	usr.SetVerificationStatus(users.StatusPending)

	return nil
}

// userDocuments must be called with KYCStore.mu held.
func (s *Storage) userDocuments(userID string) []*kyc.Document {
	var docs []*kyc.Document

	for _, doc := range s.KYCStore.docs {
		if doc.UserID() == userID {
			docs = append(docs, cloneDocument(doc))
		}
	}

	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt().Before(docs[j].CreatedAt())
	})

	return docs
}

func (s *Storage) GetKYCDocumentsByUser(_ context.Context, userID string) ([]*kyc.Document, error) {
	s.KYCStore.mu.Lock()
	defer s.KYCStore.mu.Unlock()

	return s.userDocuments(userID), nil
}

func (s *Storage) GetKYCDocumentsByStatus(_ context.Context, statuses ...users.VerificationStatus) ([]*kyc.Document, error) {
	s.KYCStore.mu.Lock()
	defer s.KYCStore.mu.Unlock()

	var docs []*kyc.Document

	for _, doc := range s.KYCStore.docs {
		if containsStatus(statuses, doc.Status()) {
			docs = append(docs, cloneDocument(doc))
		}
	}

	sort.Slice(docs, func(i, j int) bool {
		return docs[i].CreatedAt().Before(docs[j].CreatedAt())
	})

	return docs, nil
}

func (s *Storage) ReviewKYCDocument(_ context.Context, docID string, dec kyc.Decision, at time.Time) (*storage.KYCReview, error) {
	s.UserStore.mu.Lock()
	defer s.UserStore.mu.Unlock()

	s.KYCStore.mu.Lock()
	defer s.KYCStore.mu.Unlock()

	stored, ok := s.KYCStore.docs[docID]
	if !ok {
		return nil, storage.ErrKYCDocumentNotFound
	}

	usr, ok := s.UserStore.users[stored.UserID()]
	if !ok {
		return nil, storage.ErrUserNotFound
	}

	doc := cloneDocument(stored)

	out, err := kyc.Apply(s.userDocuments(doc.UserID()), doc, usr.VerificationStatus(), dec, at)
	if err != nil {
		return nil, err //nolint:wrapcheck
	}

	if out.DocumentChanged {
		s.KYCStore.docs[docID] = cloneDocument(doc)
	}

	if out.UserStatus != usr.VerificationStatus() {
		usr.SetVerificationStatus(out.UserStatus)
	}

	return &storage.KYCReview{Outcome: out, User: cloneUser(usr)}, nil
}

func (s *Storage) CreateTransaction(_ context.Context, tx *transactions.Transaction) error {
	s.UserStore.mu.Lock()
	defer s.UserStore.mu.Unlock()

	s.TransactionStore.mu.Lock()
	defer s.TransactionStore.mu.Unlock()

	if _, ok := s.UserStore.users[tx.UserID()]; !ok {
		return storage.ErrUserNotFound
	}

	s.TransactionStore.txs[tx.ID()] = cloneTransaction(tx)

	return nil
}

func (s *Storage) CreateWithdrawal(_ context.Context, tx *transactions.Transaction, homeAmount decimal.Decimal) error {
	s.UserStore.mu.Lock()
	defer s.UserStore.mu.Unlock()

	s.TransactionStore.mu.Lock()
	defer s.TransactionStore.mu.Unlock()

	usr, ok := s.UserStore.users[tx.UserID()]
	if !ok {
		return storage.ErrUserNotFound
	}

	if homeAmount.GreaterThan(usr.Balance()) {
		return storage.ErrUserBalanceNotEnough
	}

	s.TransactionStore.txs[tx.ID()] = cloneTransaction(tx)

	return nil
}

func (s *Storage) GetTransaction(_ context.Context, id string) (*transactions.Transaction, error) {
	s.TransactionStore.mu.Lock()
	defer s.TransactionStore.mu.Unlock()

	tx, ok := s.TransactionStore.txs[id]
	if !ok {
		return nil, storage.ErrTransactionNotFound
	}

	return cloneTransaction(tx), nil
}

func (s *Storage) GetTransactionsByUser(_ context.Context, userID string, limit, offset int) ([]*transactions.Transaction, error) {
	s.TransactionStore.mu.Lock()
	defer s.TransactionStore.mu.Unlock()

	var list []*transactions.Transaction

	for _, tx := range s.TransactionStore.txs {
		if tx.UserID() == userID {
			list = append(list, cloneTransaction(tx))
		}
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt().After(list[j].CreatedAt())
	})

	return paginate(list, limit, offset), nil
}

func (s *Storage) GetTransactionsByStatus(_ context.Context, statuses ...users.VerificationStatus) ([]*transactions.Transaction, error) {
	s.TransactionStore.mu.Lock()
	defer s.TransactionStore.mu.Unlock()

	var list []*transactions.Transaction

	for _, tx := range s.TransactionStore.txs {
		if containsStatus(statuses, tx.Status()) {
			list = append(list, cloneTransaction(tx))
		}
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].CreatedAt().Before(list[j].CreatedAt())
	})

	return list, nil
}

func (s *Storage) SettleTransaction(
	_ context.Context, id string, decision users.VerificationStatus, homeAmount decimal.Decimal, at time.Time,
) (*storage.Settlement, error) {
	s.UserStore.mu.Lock()
	defer s.UserStore.mu.Unlock()

	s.TransactionStore.mu.Lock()
	defer s.TransactionStore.mu.Unlock()

	stored, ok := s.TransactionStore.txs[id]
	if !ok {
		return nil, storage.ErrTransactionNotFound
	}

	storedUsr, ok := s.UserStore.users[stored.UserID()]
	if !ok {
		return nil, storage.ErrUserNotFound
	}

	tx := cloneTransaction(stored)
	if err := tx.Settle(decision, at); err != nil {
		return nil, err //nolint:wrapcheck
	}

	usr := cloneUser(storedUsr)

	delta := transactions.BalanceDelta(tx.Type(), decision, homeAmount)
	if !delta.IsZero() {
		if err := usr.ApplyBalanceDelta(delta); err != nil {
			if errors.Is(err, users.ErrUserBalanceNegative) {
				return nil, storage.ErrUserBalanceNotEnough
			}

			return nil, err //nolint:wrapcheck
		}
	}

	s.TransactionStore.txs[id] = tx
	s.UserStore.users[usr.ID()] = usr

	return &storage.Settlement{Transaction: cloneTransaction(tx), User: cloneUser(usr)}, nil
}

func (s *Storage) CreateLoan(_ context.Context, loan *loans.Loan) error {
	s.UserStore.mu.Lock()
	defer s.UserStore.mu.Unlock()

	s.LoanStore.mu.Lock()
	defer s.LoanStore.mu.Unlock()

	if _, ok := s.UserStore.users[loan.UserID()]; !ok {
		return storage.ErrUserNotFound
	}

	s.LoanStore.loans[loan.ID()] = cloneLoan(loan)

	return nil
}

func (s *Storage) GetLoan(_ context.Context, id string) (*loans.Loan, error) {
	s.LoanStore.mu.Lock()
	defer s.LoanStore.mu.Unlock()

	loan, ok := s.LoanStore.loans[id]
	if !ok {
		return nil, storage.ErrLoanNotFound
	}

	return cloneLoan(loan), nil
}

func (s *Storage) GetLoansByUser(_ context.Context, userID string) ([]*loans.Loan, error) {
	return s.filterLoans(func(l *loans.Loan) bool { return l.UserID() == userID }, true)
}

// GetLoansByStatus returns every loan when no status is given.
func (s *Storage) GetLoansByStatus(_ context.Context, statuses ...loans.Status) ([]*loans.Loan, error) {
	return s.filterLoans(func(l *loans.Loan) bool {
		if len(statuses) == 0 {
			return true
		}

		for _, st := range statuses {
			if l.Status() == st {
				return true
			}
		}

		return false
	}, len(statuses) == 0)
}

func (s *Storage) filterLoans(match func(l *loans.Loan) bool, newestFirst bool) ([]*loans.Loan, error) {
	s.LoanStore.mu.Lock()
	defer s.LoanStore.mu.Unlock()

	var list []*loans.Loan

	for _, l := range s.LoanStore.loans {
		if match(l) {
			list = append(list, cloneLoan(l))
		}
	}

	sort.Slice(list, func(i, j int) bool {
		if newestFirst {
			return list[i].CreatedAt().After(list[j].CreatedAt())
		}

		return list[i].CreatedAt().Before(list[j].CreatedAt())
	})

	return list, nil
}

func (s *Storage) ReviewLoan(_ context.Context, id string, dec loans.Decision, at time.Time) (*loans.Loan, error) {
	s.LoanStore.mu.Lock()
	defer s.LoanStore.mu.Unlock()

	stored, ok := s.LoanStore.loans[id]
	if !ok {
		return nil, storage.ErrLoanNotFound
	}

	loan := cloneLoan(stored)
	if err := loan.Review(dec, at); err != nil {
		return nil, err //nolint:wrapcheck
	}

	s.LoanStore.loans[id] = loan

	return cloneLoan(loan), nil
}

func (s *Storage) GetCurrencyRates(_ context.Context) ([]*rates.CurrencyRate, error) {
	s.CurrencyRateStore.mu.Lock()
	defer s.CurrencyRateStore.mu.Unlock()

	list := make([]*rates.CurrencyRate, 0, len(s.CurrencyRateStore.rates))
	for _, r := range s.CurrencyRateStore.rates {
		list = append(list, r)
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].Pair().String() < list[j].Pair().String()
	})

	return list, nil
}

func (s *Storage) GetCurrencyRate(_ context.Context, from, to money.Currency) (*rates.CurrencyRate, error) {
	s.CurrencyRateStore.mu.Lock()
	defer s.CurrencyRateStore.mu.Unlock()

	r, ok := s.CurrencyRateStore.rates[rates.Pair{From: from, To: to}]
	if !ok {
		return nil, storage.ErrCurrencyRateNotFound
	}

	return r, nil
}

func (s *Storage) UpsertCurrencyRates(_ context.Context, list []*rates.CurrencyRate) error {
	s.CurrencyRateStore.mu.Lock()
	defer s.CurrencyRateStore.mu.Unlock()

	for _, r := range list {
		s.CurrencyRateStore.rates[r.Pair()] = r
	}

	return nil
}

func (s *Storage) SeedCurrencyRates(_ context.Context, list []*rates.CurrencyRate) error {
	s.CurrencyRateStore.mu.Lock()
	defer s.CurrencyRateStore.mu.Unlock()

	for _, r := range list {
		if _, ok := s.CurrencyRateStore.rates[r.Pair()]; !ok {
			s.CurrencyRateStore.rates[r.Pair()] = r
		}
	}

	return nil
}

func (s *Storage) GetSetting(_ context.Context, key settings.Key) (*settings.Setting, error) {
	s.SettingStore.mu.Lock()
	defer s.SettingStore.mu.Unlock()

	st, ok := s.SettingStore.settings[key]
	if !ok {
		return nil, storage.ErrSettingNotFound
	}

	c := *st

	return &c, nil
}

func (s *Storage) GetSettings(_ context.Context) ([]*settings.Setting, error) {
	s.SettingStore.mu.Lock()
	defer s.SettingStore.mu.Unlock()

	list := make([]*settings.Setting, 0, len(s.SettingStore.settings))
	for _, st := range s.SettingStore.settings {
		c := *st
		list = append(list, &c)
	}

	sort.Slice(list, func(i, j int) bool {
		return list[i].Key < list[j].Key
	})

	return list, nil
}

func (s *Storage) UpsertSetting(_ context.Context, setting *settings.Setting) error {
	s.SettingStore.mu.Lock()
	defer s.SettingStore.mu.Unlock()

	c := *setting
	s.SettingStore.settings[setting.Key] = &c

	return nil
}

func containsStatus(statuses []users.VerificationStatus, status users.VerificationStatus) bool {
	for _, st := range statuses {
		if st == status {
			return true
		}
	}

	return false
}

func paginate[T any](list []T, limit, offset int) []T {
	if offset >= len(list) {
		return nil
	}

	list = list[offset:]

	if limit > 0 && limit < len(list) {
		list = list[:limit]
	}

	return list
}
