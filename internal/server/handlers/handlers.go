package handlers

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"os"

	"github.com/andymarkow/cybexchange/internal/auth"
	"github.com/andymarkow/cybexchange/internal/errmsg"
	"github.com/andymarkow/cybexchange/internal/service"
)

const maxJSONBodyBytes = 1 << 20

type Handlers struct {
	svc            *service.Service
	log            *slog.Logger
	auth           *auth.JWTAuth
	uploadMaxBytes int64
}

// NewHandlers returns a new Handlers instance.
func NewHandlers(svc *service.Service, opts ...Option) *Handlers {
	handlers := &Handlers{
		svc:            svc,
		log:            slog.New(slog.NewJSONHandler(os.Stdout, nil)),
		auth:           auth.NewJWTAuth([]byte("")),
		uploadMaxBytes: 5 << 20,
	}

	for _, opt := range opts {
		opt(handlers)
	}

	return handlers
}

// Option is a functional option for Handlers.
type Option func(h *Handlers)

// WithLogger is a option for Handlers that sets logger.
func WithLogger(logger *slog.Logger) Option {
	return func(h *Handlers) {
		h.log = logger.With(slog.String("module", "handlers"))
	}
}

func WithAuth(auth *auth.JWTAuth) Option {
	return func(h *Handlers) {
		h.auth = auth
	}
}

// WithUploadMaxBytes bounds a single uploaded file; multipart bodies may carry
// several of them.
func WithUploadMaxBytes(n int64) Option {
	return func(h *Handlers) {
		h.uploadMaxBytes = n
	}
}

type JSONResponse struct {
	Message any `json:"message,omitempty"`
	Error   any `json:"error,omitempty"`
}

func handleJSONResponse(w http.ResponseWriter, status int, resp any) {
	w.Header().Set("content-type", "application/json")
	w.WriteHeader(status)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

func handleError(w http.ResponseWriter, err errmsg.HTTPError) {
	resp := &JSONResponse{
		Error: err.Error(),
	}

	w.Header().Set("content-type", "application/json")
	w.WriteHeader(err.Code)

	if err := json.NewEncoder(w).Encode(resp); err != nil {
		w.WriteHeader(http.StatusInternalServerError)
	}
}

// handleServiceError logs err under the failing call and writes its mapped response.
func (h *Handlers) handleServiceError(w http.ResponseWriter, call string, err error) {
	httpErr := errmsg.FromError(err)

	if httpErr.Code >= http.StatusInternalServerError {
		h.log.Error(call, slog.Any("error", err))
	} else {
		h.log.Debug(call, slog.Any("error", err))
	}

	handleError(w, httpErr)
}

// decodeJSON reads a single JSON object into v, rejecting unknown fields.
func (h *Handlers) decodeJSON(w http.ResponseWriter, r *http.Request, v any) bool {
	defer r.Body.Close()

	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxJSONBodyBytes))
	dec.DisallowUnknownFields()

	if err := dec.Decode(v); err != nil {
		h.log.Debug("json.NewDecoder().Decode()", slog.Any("error", err))

		var maxErr *http.MaxBytesError

		switch {
		case errors.Is(err, io.EOF):
			handleError(w, errmsg.ErrRequestPayloadEmpty)
		case errors.As(err, &maxErr):
			handleError(w, errmsg.ErrRequestPayloadTooLarge)
		default:
			handleError(w, errmsg.ErrRequestPayloadInvalid)
		}

		return false
	}

	if dec.More() {
		handleError(w, errmsg.ErrRequestPayloadInvalid)

		return false
	}

	return true
}

// validationError answers 400 with the validation message.
func (h *Handlers) validationError(w http.ResponseWriter, err error) {
	h.log.Debug("Validate()", slog.Any("error", err))
	handleError(w, errmsg.NewHTTPError(http.StatusBadRequest, err))
}

func (h *Handlers) principal(w http.ResponseWriter, r *http.Request) (auth.Principal, bool) {
	p, err := auth.PrincipalFromContext(r.Context())
	if err != nil {
		h.log.Debug("auth.PrincipalFromContext()", slog.Any("error", err))
		handleError(w, errmsg.ErrUnauthorized)

		return auth.Principal{}, false
	}

	return p, true
}

// AdminOnly rejects callers whose session does not carry the admin role.
func (h *Handlers) AdminOnly(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		p, ok := h.principal(w, r)
		if !ok {
			return
		}

		if !p.IsAdmin() {
			handleError(w, errmsg.ErrForbidden)

			return
		}

		next.ServeHTTP(w, r)
	})
}

func (h *Handlers) Ping(w http.ResponseWriter, r *http.Request) {
	if err := h.svc.Ping(r.Context()); err != nil {
		h.log.Error("service.Ping()", slog.Any("error", err))
		handleError(w, errmsg.ErrInternal)

		return
	}

	handleJSONResponse(w, http.StatusOK, &JSONResponse{Message: "ok"})
}
