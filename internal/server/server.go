package server

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/andymarkow/cybexchange/internal/server/router"
	"github.com/andymarkow/cybexchange/internal/service"
)

const shutdownTimeout = 10 * time.Second

type Server struct {
	srv *http.Server
	log *slog.Logger
}

type Config struct {
	addr       string
	logger     *slog.Logger
	routerOpts []router.Option
}

type Option func(c *Config)

func WithServerAddr(addr string) Option {
	return func(c *Config) {
		c.addr = addr
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(c *Config) {
		c.logger = logger
	}
}

func WithRouterOptions(opts ...router.Option) Option {
	return func(c *Config) {
		c.routerOpts = append(c.routerOpts, opts...)
	}
}

func NewServer(svc *service.Service, opts ...Option) *Server {
	cfg := &Config{
		addr:   "0.0.0.0:8080",
		logger: slog.New(slog.NewJSONHandler(os.Stdout, nil)),
	}

	for _, opt := range opts {
		opt(cfg)
	}

	r := router.NewRouter(svc, append([]router.Option{router.WithLogger(cfg.logger)}, cfg.routerOpts...)...)

	srv := &http.Server{
		Addr:              cfg.addr,
		Handler:           r,
		ReadTimeout:       30 * time.Second,
		ReadHeaderTimeout: 10 * time.Second,
		WriteTimeout:      30 * time.Second,
	}

	return &Server{
		srv: srv,
		log: cfg.logger.With(slog.String("module", "server")),
	}
}

// Start serves until ctx is cancelled and then shuts the server down gracefully.
func (s *Server) Start(ctx context.Context) error {
	errChan := make(chan error, 1)

	go func() {
		s.log.Info(fmt.Sprintf("Starting server on %s", s.srv.Addr))

		if err := s.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errChan <- fmt.Errorf("server.ListenAndServe: %w", err)
		}

		close(errChan)
	}()

	select {
	case err := <-errChan:
		return err

	case <-ctx.Done():
		s.log.Info("Gracefully shutting down server...")

		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
		defer cancel()

		if err := s.srv.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server.Shutdown: %w", err)
		}

		return nil
	}
}
