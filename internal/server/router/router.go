package router

import (
	"log/slog"
	"net/http"
	"os"
	"time"

	"github.com/andymarkow/cybexchange/internal/auth"
	"github.com/andymarkow/cybexchange/internal/server/handlers"
	"github.com/andymarkow/cybexchange/internal/service"
	"github.com/go-chi/chi/middleware"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/jwtauth/v5"
)

type Options struct {
	log            *slog.Logger
	secret         []byte
	sessionTTL     time.Duration
	uploadDir      string
	uploadPrefix   string
	uploadMaxBytes int64
}

func NewRouter(svc *service.Service, opts ...Option) chi.Router {
	r := chi.NewRouter()

	rOpts := Options{
		log:            slog.New(slog.NewJSONHandler(os.Stdout, nil)),
		secret:         []byte(""),
		uploadPrefix:   "/uploads",
		uploadMaxBytes: 5 << 20,
	}

	for _, opt := range opts {
		opt(&rOpts)
	}

	tokenAuth := jwtauth.New("HS256", rOpts.secret, nil)

	authOpts := make([]auth.Option, 0, 1)
	if rOpts.sessionTTL > 0 {
		authOpts = append(authOpts, auth.WithTokenTTL(rOpts.sessionTTL))
	}

	r.Use(
		middleware.RequestID,
		middleware.Recoverer,
		middleware.StripSlashes,
		middleware.Logger,
	)

	h := handlers.NewHandlers(svc,
		handlers.WithLogger(rOpts.log),
		handlers.WithAuth(auth.NewJWTAuth(rOpts.secret, authOpts...)),
		handlers.WithUploadMaxBytes(rOpts.uploadMaxBytes),
	)

	r.Get("/ping", h.Ping)

	if rOpts.uploadDir != "" {
		fs := http.StripPrefix(rOpts.uploadPrefix+"/", http.FileServer(http.Dir(rOpts.uploadDir)))
		r.Get(rOpts.uploadPrefix+"/*", fs.ServeHTTP)
	}

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Post("/auth/register", h.Register)
			r.Post("/auth/login", h.Login)
			r.Post("/auth/logout", h.Logout)
			r.Get("/currency-rates", h.GetCurrencyRates)
			r.Post("/loans/simulate", h.SimulateLoan)
		})

		r.Group(func(r chi.Router) {
			r.Use(
				jwtauth.Verifier(tokenAuth),
				jwtauth.Authenticator(tokenAuth),
			)

			r.Get("/auth/user", h.CurrentUser)

			r.Get("/kyc", h.GetKYCDocuments)
			r.Post("/kyc", h.SubmitKYC)

			r.Get("/transactions", h.GetTransactions)
			r.Post("/transactions/deposit", h.Deposit)
			r.Post("/transactions/withdraw", h.Withdraw)
			r.Post("/transactions/exchange", h.Exchange)

			r.Get("/loans", h.GetLoans)
			r.Post("/loans", h.ApplyLoan)

			r.Route("/admin", func(r chi.Router) {
				r.Use(h.AdminOnly)

				r.Get("/users", h.GetUsers)

				r.Get("/kyc/pending", h.GetPendingKYCDocuments)
				r.Patch("/kyc/{id}", h.ReviewKYCDocument)

				r.Get("/transactions/pending", h.GetPendingTransactions)
				r.Patch("/transactions/{id}", h.SettleTransaction)

				r.Get("/loans", h.GetAllLoans)
				r.Get("/loans/pending", h.GetPendingLoans)
				r.Patch("/loans/{id}", h.ReviewLoan)

				r.Patch("/currency-rates", h.UpdateCurrencyRates)

				r.Get("/settings", h.GetSettings)
				r.Patch("/settings", h.UpdateSetting)
			})
		})
	})

	return r
}

type Option func(r *Options)

func WithLogger(logger *slog.Logger) Option {
	return func(o *Options) {
		o.log = logger
	}
}

func WithSecret(secret []byte) Option {
	return func(o *Options) {
		o.secret = secret
	}
}

func WithSessionTTL(ttl time.Duration) Option {
	return func(o *Options) {
		o.sessionTTL = ttl
	}
}

// WithUploads serves dir read-only under prefix and bounds single uploads to maxBytes.
func WithUploads(dir, prefix string, maxBytes int64) Option {
	return func(o *Options) {
		o.uploadDir = dir
		o.uploadPrefix = prefix
		o.uploadMaxBytes = maxBytes
	}
}
