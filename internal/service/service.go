// Package service implements the account, ledger, KYC, loan and rate operations on
// top of storage.Storage. Every operation takes the acting user explicitly; the
// transport layer is responsible for authenticating it.
package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"time"

	"github.com/andymarkow/cybexchange/internal/domain/users"
	"github.com/andymarkow/cybexchange/internal/notify"
	"github.com/andymarkow/cybexchange/internal/storage"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

const (
	DefaultPageLimit = 50
	MaxPageLimit     = 200
)

// FileStore persists uploaded documents and returns their URL.
type FileStore interface {
	Save(ctx context.Context, filename string, r io.Reader) (string, error)
	Remove(ctx context.Context, url string) error
}

// Upload is a single file received from a client.
type Upload struct {
	Filename string
	Body     io.Reader
}

type Service struct {
	log             *slog.Logger
	store           storage.Storage
	files           FileStore
	notifier        notify.Notifier
	defaultLoanRate decimal.Decimal
	now             func() time.Time
}

type Config struct {
	logger          *slog.Logger
	files           FileStore
	notifier        notify.Notifier
	defaultLoanRate decimal.Decimal
	now             func() time.Time
}

type Option func(c *Config)

func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.logger = logger
	}
}

func WithFileStore(files FileStore) Option {
	return func(c *Config) {
		c.files = files
	}
}

func WithNotifier(n notify.Notifier) Option {
	return func(c *Config) {
		c.notifier = n
	}
}

// WithDefaultLoanRate sets the annual rate used while no loan_interest_rate setting is stored.
func WithDefaultLoanRate(rate decimal.Decimal) Option {
	return func(c *Config) {
		c.defaultLoanRate = rate
	}
}

func WithClock(now func() time.Time) Option {
	return func(c *Config) {
		c.now = now
	}
}

func New(store storage.Storage, opts ...Option) *Service {
	cfg := &Config{
		logger:          slog.New(slog.NewJSONHandler(os.Stdout, nil)),
		notifier:        discardNotifier{},
		defaultLoanRate: decimal.NewFromInt(15),
		now:             func() time.Time { return time.Now().UTC() },
	}

	for _, opt := range opts {
		opt(cfg)
	}

	return &Service{
		log:             cfg.logger.With(slog.String("module", "service")),
		store:           store,
		files:           cfg.files,
		notifier:        cfg.notifier,
		defaultLoanRate: cfg.defaultLoanRate,
		now:             cfg.now,
	}
}

var ErrUploadsDisabled = errors.New("file uploads are not configured")

func (s *Service) Ping(ctx context.Context) error {
	if err := s.store.Ping(ctx); err != nil {
		return fmt.Errorf("storage.Ping: %w", err)
	}

	return nil
}

// checkID answers notFound for ids that cannot name a stored record.
func checkID(id string, notFound error) error {
	if len(id) != 36 {
		return fmt.Errorf("%w: %q", notFound, id)
	}

	if _, err := uuid.Parse(id); err != nil {
		return fmt.Errorf("%w: %q", notFound, id)
	}

	return nil
}

type discardNotifier struct{}

func (discardNotifier) Notify(notify.Notification) {}

func recipientOf(u *users.User) notify.Recipient {
	return notify.Recipient{
		UserID:   u.ID(),
		Email:    u.Email(),
		Phone:    u.Phone(),
		FullName: u.FullName(),
	}
}

// NormalizePage clamps list pagination to sane bounds.
func NormalizePage(limit, offset int) (int, int) {
	if limit <= 0 {
		limit = DefaultPageLimit
	}

	if limit > MaxPageLimit {
		limit = MaxPageLimit
	}

	if offset < 0 {
		offset = 0
	}

	return limit, offset
}

// saveUploads stores every upload and returns their URLs keyed like the input.
// On failure the files saved so far are removed.
func saveUploads[K comparable](ctx context.Context, s *Service, uploads map[K]Upload) (map[K]string, error) {
	if s.files == nil {
		return nil, ErrUploadsDisabled
	}

	urls := make(map[K]string, len(uploads))

	for key, up := range uploads {
		url, err := s.files.Save(ctx, up.Filename, up.Body)
		if err != nil {
			removeUploads(ctx, s, urls)

			return nil, err //nolint:wrapcheck
		}

		urls[key] = url
	}

	return urls, nil
}

func removeUploads[K comparable](ctx context.Context, s *Service, urls map[K]string) {
	for _, url := range urls {
		if err := s.files.Remove(context.WithoutCancel(ctx), url); err != nil {
			s.log.Error("files.Remove()", slog.Any("error", err), slog.String("url", url))
		}
	}
}
