package handlers

import (
	"fmt"
	"net/http"
	"strconv"

	"github.com/andymarkow/cybexchange/internal/server/models"
	"github.com/go-chi/chi/v5"
)

func (h *Handlers) Deposit(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req models.AmountRequest

	if !h.decodeJSON(w, r, &req) {
		return
	}

	currency, err := req.Validate()
	if err != nil {
		h.handleServiceError(w, "models.AmountRequest.Validate()", err)

		return
	}

	tx, err := h.svc.Deposit(r.Context(), p.UserID, req.Amount, currency)
	if err != nil {
		h.handleServiceError(w, "service.Deposit()", err)

		return
	}

	handleJSONResponse(w, http.StatusCreated, models.NewTransactionResponse(tx))
}

func (h *Handlers) Withdraw(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req models.AmountRequest

	if !h.decodeJSON(w, r, &req) {
		return
	}

	currency, err := req.Validate()
	if err != nil {
		h.handleServiceError(w, "models.AmountRequest.Validate()", err)

		return
	}

	tx, err := h.svc.Withdraw(r.Context(), p.UserID, req.Amount, currency)
	if err != nil {
		h.handleServiceError(w, "service.Withdraw()", err)

		return
	}

	handleJSONResponse(w, http.StatusCreated, models.NewTransactionResponse(tx))
}

func (h *Handlers) Exchange(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	var req models.ExchangeRequest

	if !h.decodeJSON(w, r, &req) {
		return
	}

	pair, err := req.Validate()
	if err != nil {
		h.handleServiceError(w, "models.ExchangeRequest.Validate()", err)

		return
	}

	tx, conv, err := h.svc.Exchange(r.Context(), p.UserID, req.Amount, pair.From, pair.To)
	if err != nil {
		h.handleServiceError(w, "service.Exchange()", err)

		return
	}

	handleJSONResponse(w, http.StatusCreated, models.NewExchangeResponse(tx, conv))
}

func queryInt(r *http.Request, key string) (int, error) {
	v := r.URL.Query().Get(key)
	if v == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(v)
	if err != nil || n < 0 {
		return 0, fmt.Errorf("%w: %s", models.ErrFieldInvalid, key)
	}

	return n, nil
}

func (h *Handlers) GetTransactions(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	limit, err := queryInt(r, "limit")
	if err != nil {
		h.validationError(w, err)

		return
	}

	offset, err := queryInt(r, "offset")
	if err != nil {
		h.validationError(w, err)

		return
	}

	list, err := h.svc.Transactions(r.Context(), p.UserID, limit, offset)
	if err != nil {
		h.handleServiceError(w, "service.Transactions()", err)

		return
	}

	handleJSONResponse(w, http.StatusOK, models.NewTransactionsResponse(list))
}

func (h *Handlers) GetPendingTransactions(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.PendingTransactions(r.Context())
	if err != nil {
		h.handleServiceError(w, "service.PendingTransactions()", err)

		return
	}

	handleJSONResponse(w, http.StatusOK, models.NewTransactionsResponse(list))
}

func (h *Handlers) SettleTransaction(w http.ResponseWriter, r *http.Request) {
	var req models.ReviewRequest

	if !h.decodeJSON(w, r, &req) {
		return
	}

	if err := req.Validate(); err != nil {
		h.validationError(w, err)

		return
	}

	decision, err := req.VerificationStatus()
	if err != nil {
		h.validationError(w, err)

		return
	}

	settlement, err := h.svc.SettleTransaction(r.Context(), chi.URLParam(r, "id"), decision)
	if err != nil {
		h.handleServiceError(w, "service.SettleTransaction()", err)

		return
	}

	handleJSONResponse(w, http.StatusOK, models.SettlementResponse{
		Transaction: models.NewTransactionResponse(settlement.Transaction),
		Balance:     models.NewUserResponse(settlement.User).Balance,
	})
}
