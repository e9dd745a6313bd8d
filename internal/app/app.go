package app

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/andymarkow/cybexchange/internal/config"
	"github.com/andymarkow/cybexchange/internal/domain/settings"
	"github.com/andymarkow/cybexchange/internal/domain/users"
	"github.com/andymarkow/cybexchange/internal/filestore"
	"github.com/andymarkow/cybexchange/internal/httpclient"
	"github.com/andymarkow/cybexchange/internal/logger"
	"github.com/andymarkow/cybexchange/internal/notify"
	"github.com/andymarkow/cybexchange/internal/server"
	"github.com/andymarkow/cybexchange/internal/server/router"
	"github.com/andymarkow/cybexchange/internal/service"
	"github.com/andymarkow/cybexchange/internal/storage"
	"github.com/andymarkow/cybexchange/internal/storage/inmemory"
	"github.com/andymarkow/cybexchange/internal/storage/pgstorage"
)

const uploadURLPrefix = "/uploads"

var ErrNotifyDriverUnknown = errors.New("notification driver is unknown")

type Application struct {
	log        *slog.Logger
	cfg        config.Config
	store      storage.Storage
	svc        *service.Service
	server     *server.Server
	dispatcher *notify.Dispatcher
}

func New() (*Application, error) {
	cfg, err := config.NewConfig()
	if err != nil {
		return nil, fmt.Errorf("config.NewConfig: %w", err)
	}

	logLevel, err := logger.ParseLogLevel(cfg.LogLevel)
	if err != nil {
		return nil, fmt.Errorf("logger.ParseLogLevel: %w", err)
	}

	logFormat, err := logger.ParseLogFormat(cfg.LogFormat)
	if err != nil {
		return nil, fmt.Errorf("logger.ParseLogFormat: %w", err)
	}

	logg := logger.NewLogger(
		logger.WithLevel(logLevel),
		logger.WithFormat(logFormat),
		logger.WithAddSource(false),
	)

	loanRate, err := settings.ParseRate(cfg.LoanRate)
	if err != nil {
		return nil, fmt.Errorf("settings.ParseRate: %w", err)
	}

	store, err := newStorage(cfg)
	if err != nil {
		return nil, err
	}

	sender, err := newSender(cfg, logg)
	if err != nil {
		store.Close() //nolint:errcheck

		return nil, err
	}

	dispatcher := notify.NewDispatcher(sender,
		notify.WithLogger(logg),
		notify.WithWorkers(cfg.NotifyWorkers),
		notify.WithTimeout(cfg.NotifyTimeout),
	)

	files, err := filestore.New(cfg.UploadDir,
		filestore.WithLogger(logg),
		filestore.WithURLPrefix(uploadURLPrefix),
		filestore.WithMaxBytes(int64(cfg.UploadMaxBytes)),
	)
	if err != nil {
		store.Close() //nolint:errcheck

		return nil, fmt.Errorf("filestore.New: %w", err)
	}

	svc := service.New(store,
		service.WithLogger(logg),
		service.WithFileStore(files),
		service.WithNotifier(dispatcher),
		service.WithDefaultLoanRate(loanRate),
	)

	srv := server.NewServer(svc,
		server.WithServerAddr(cfg.ServerAddr),
		server.WithLogger(logg),
		server.WithRouterOptions(
			router.WithSecret([]byte(cfg.JWTSecretKey)),
			router.WithSessionTTL(cfg.SessionTTL),
			router.WithUploads(files.Dir(), uploadURLPrefix, files.MaxBytes()),
		),
	)

	return &Application{
		log:        logg,
		cfg:        cfg,
		store:      store,
		svc:        svc,
		server:     srv,
		dispatcher: dispatcher,
	}, nil
}

// newStorage picks Postgres when a connection string is configured and the
// in-memory store otherwise.
func newStorage(cfg config.Config) (storage.Storage, error) {
	if cfg.DatabaseURI == "" {
		return storage.NewStorage(inmemory.NewStorage()), nil
	}

	pgstore, err := pgstorage.NewStorage(cfg.DatabaseURI)
	if err != nil {
		return nil, fmt.Errorf("pgstorage.NewStorage: %w", err)
	}

	if err := pgstore.Bootstrap(context.Background()); err != nil {
		pgstore.Close() //nolint:errcheck

		return nil, fmt.Errorf("pgstorage.Bootstrap: %w", err)
	}

	return storage.NewStorage(pgstore), nil
}

func newSender(cfg config.Config, logg *slog.Logger) (notify.Sender, error) {
	switch cfg.NotifyDriver {
	case "", "log":
		return notify.NewLogSender(logg), nil

	case "webhook":
		if cfg.NotifyWebhookURL == "" {
			return nil, fmt.Errorf("%w: webhook requires NOTIFY_WEBHOOK_URL", ErrNotifyDriverUnknown)
		}

		client := httpclient.New(httpclient.WithTimeout(cfg.NotifyTimeout))

		return notify.NewWebhookSender(cfg.NotifyWebhookURL, client), nil

	case "kafka":
		brokers := strings.Split(cfg.NotifyKafkaBrokers, ",")
		for i := range brokers {
			brokers[i] = strings.TrimSpace(brokers[i])
		}

		return notify.NewKafkaSender(brokers, cfg.NotifyKafkaTopic), nil

	default:
		return nil, fmt.Errorf("%w: %q", ErrNotifyDriverUnknown, cfg.NotifyDriver)
	}
}

// bootstrap seeds the default currency rates and the configured admin account.
func (a *Application) bootstrap(ctx context.Context) error {
	if err := a.svc.SeedCurrencyRates(ctx); err != nil {
		return fmt.Errorf("service.SeedCurrencyRates: %w", err)
	}

	if a.cfg.AdminEmail == "" {
		return nil
	}

	_, err := a.svc.EnsureAdmin(ctx, users.Registration{
		Email:       a.cfg.AdminEmail,
		Phone:       a.cfg.AdminPhone,
		Password:    a.cfg.AdminPassword,
		FullName:    "Administrator",
		DateOfBirth: "1970-01-01",
	})
	if err != nil {
		return fmt.Errorf("service.EnsureAdmin: %w", err)
	}

	return nil
}

func (a *Application) Run() error {
	defer func() {
		if err := a.store.Close(); err != nil {
			a.log.Error("storage.Close()", slog.Any("error", err))
		}
	}()

	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := a.bootstrap(ctx); err != nil {
		return err
	}

	// The dispatcher outlives the server so that requests finishing during
	// shutdown still get their notifications queued and flushed.
	dispatcherCtx, stopDispatcher := context.WithCancel(context.WithoutCancel(ctx))
	defer stopDispatcher()

	dispatcherDone := make(chan error, 1)

	go func() {
		dispatcherDone <- a.dispatcher.Run(dispatcherCtx)
	}()

	err := a.server.Start(ctx)
	if err != nil {
		err = fmt.Errorf("server.Start: %w", err)
	}

	a.log.Info("Gracefully shutting down application...")

	stopDispatcher()

	if derr := <-dispatcherDone; derr != nil {
		a.log.Error("dispatcher.Run()", slog.Any("error", derr))
	}

	return err
}
