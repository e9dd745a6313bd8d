package handlers

import (
	"log/slog"
	"net/http"

	"github.com/andymarkow/cybexchange/internal/domain/loans"
	"github.com/andymarkow/cybexchange/internal/errmsg"
	"github.com/andymarkow/cybexchange/internal/server/models"
	"github.com/andymarkow/cybexchange/internal/service"
	"github.com/go-chi/chi/v5"
)

func (h *Handlers) ApplyLoan(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	if !h.parseMultipart(w, r, 4) {
		return
	}

	files, closeFiles, err := h.formFiles(r, "idCard", "selfie", "salaryProof", "justification")
	if err != nil {
		h.log.Error("formFiles()", slog.Any("error", err))
		handleError(w, errmsg.ErrRequestPayloadInvalid)

		return
	}
	defer closeFiles()

	app, err := models.NewLoanForm(r.FormValue).Application()
	if err != nil {
		h.handleServiceError(w, "models.LoanForm.Application()", err)

		return
	}

	loan, err := h.svc.ApplyLoan(r.Context(), p.UserID, app, service.LoanUploads{
		IDCard:        files["idCard"],
		Selfie:        files["selfie"],
		SalaryProof:   files["salaryProof"],
		Justification: files["justification"],
	})
	if err != nil {
		h.handleServiceError(w, "service.ApplyLoan()", err)

		return
	}

	handleJSONResponse(w, http.StatusCreated, models.NewLoanResponse(loan))
}

func (h *Handlers) GetLoans(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	list, err := h.svc.Loans(r.Context(), p.UserID)
	if err != nil {
		h.handleServiceError(w, "service.Loans()", err)

		return
	}

	handleJSONResponse(w, http.StatusOK, models.NewLoansResponse(list))
}

func (h *Handlers) SimulateLoan(w http.ResponseWriter, r *http.Request) {
	var req models.LoanSimulationRequest

	if !h.decodeJSON(w, r, &req) {
		return
	}

	quote, rate, err := h.svc.SimulateLoan(r.Context(), req.Amount, req.TermMonths, req.InterestRate)
	if err != nil {
		h.handleServiceError(w, "service.SimulateLoan()", err)

		return
	}

	handleJSONResponse(w, http.StatusOK, models.NewLoanSimulationResponse(req, rate, quote))
}

func (h *Handlers) GetAllLoans(w http.ResponseWriter, r *http.Request) {
	var statuses []loans.Status

	if v := r.URL.Query().Get("status"); v != "" {
		st, err := loans.ParseStatus(v)
		if err != nil {
			h.handleServiceError(w, "loans.ParseStatus()", err)

			return
		}

		statuses = append(statuses, st)
	}

	list, err := h.svc.AllLoans(r.Context(), statuses...)
	if err != nil {
		h.handleServiceError(w, "service.AllLoans()", err)

		return
	}

	handleJSONResponse(w, http.StatusOK, models.NewLoansResponse(list))
}

func (h *Handlers) GetPendingLoans(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.AllLoans(r.Context(), loans.StatusPending)
	if err != nil {
		h.handleServiceError(w, "service.AllLoans()", err)

		return
	}

	handleJSONResponse(w, http.StatusOK, models.NewLoansResponse(list))
}

func (h *Handlers) ReviewLoan(w http.ResponseWriter, r *http.Request) {
	var req models.ReviewRequest

	if !h.decodeJSON(w, r, &req) {
		return
	}

	if err := req.Validate(); err != nil {
		h.validationError(w, err)

		return
	}

	status, err := loans.ParseStatus(req.Status)
	if err != nil {
		h.handleServiceError(w, "loans.ParseStatus()", err)

		return
	}

	loan, err := h.svc.ReviewLoan(r.Context(), chi.URLParam(r, "id"), loans.Decision{
		Status: status,
		Reason: req.RejectionReason,
	})
	if err != nil {
		h.handleServiceError(w, "service.ReviewLoan()", err)

		return
	}

	handleJSONResponse(w, http.StatusOK, models.NewLoanResponse(loan))
}
