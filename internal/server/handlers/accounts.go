package handlers

import (
	"log/slog"
	"net/http"

	"github.com/andymarkow/cybexchange/internal/auth"
	"github.com/andymarkow/cybexchange/internal/domain/users"
	"github.com/andymarkow/cybexchange/internal/errmsg"
	"github.com/andymarkow/cybexchange/internal/server/models"
)

// openSession sets the session cookie and the Authorization header for usr.
func (h *Handlers) openSession(w http.ResponseWriter, usr *users.User) bool {
	token, err := h.auth.CreateJWTString(usr.ID(), usr.Role())
	if err != nil {
		h.log.Error("auth.CreateJWTString()", slog.Any("error", err))
		handleError(w, errmsg.ErrInternal)

		return false
	}

	http.SetCookie(w, h.auth.SessionCookie(token))
	w.Header().Set("Authorization", "Bearer "+token)

	return true
}

func (h *Handlers) Register(w http.ResponseWriter, r *http.Request) {
	var req models.RegisterRequest

	if !h.decodeJSON(w, r, &req) {
		return
	}

	if err := req.Validate(); err != nil {
		h.validationError(w, err)

		return
	}

	usr, err := h.svc.Register(r.Context(), req.Registration())
	if err != nil {
		h.handleServiceError(w, "service.Register()", err)

		return
	}

	if !h.openSession(w, usr) {
		return
	}

	handleJSONResponse(w, http.StatusCreated, models.NewUserResponse(usr))
}

func (h *Handlers) Login(w http.ResponseWriter, r *http.Request) {
	var req models.LoginRequest

	if !h.decodeJSON(w, r, &req) {
		return
	}

	if err := req.Validate(); err != nil {
		h.validationError(w, err)

		return
	}

	usr, err := h.svc.Login(r.Context(), req.EmailOrPhone, req.Password)
	if err != nil {
		h.handleServiceError(w, "service.Login()", err)

		return
	}

	if !h.openSession(w, usr) {
		return
	}

	handleJSONResponse(w, http.StatusOK, models.NewUserResponse(usr))
}

func (h *Handlers) Logout(w http.ResponseWriter, _ *http.Request) {
	http.SetCookie(w, auth.ExpiredCookie())

	handleJSONResponse(w, http.StatusOK, &JSONResponse{Message: "ok"})
}

func (h *Handlers) CurrentUser(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	usr, err := h.svc.Profile(r.Context(), p.UserID)
	if err != nil {
		h.handleServiceError(w, "service.Profile()", err)

		return
	}

	handleJSONResponse(w, http.StatusOK, models.NewUserResponse(usr))
}

func (h *Handlers) GetUsers(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Users(r.Context())
	if err != nil {
		h.handleServiceError(w, "service.Users()", err)

		return
	}

	resp := make([]models.UserResponse, 0, len(list))
	for _, usr := range list {
		resp = append(resp, models.NewUserResponse(usr))
	}

	handleJSONResponse(w, http.StatusOK, resp)
}
