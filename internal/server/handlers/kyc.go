package handlers

import (
	"log/slog"
	"net/http"

	"github.com/andymarkow/cybexchange/internal/domain/kyc"
	"github.com/andymarkow/cybexchange/internal/errmsg"
	"github.com/andymarkow/cybexchange/internal/server/models"
	"github.com/andymarkow/cybexchange/internal/service"
	"github.com/go-chi/chi/v5"
)

// kycFields maps multipart field names to document types.
var kycFields = map[string]kyc.DocumentType{
	"idCard":         kyc.DocumentIDCard,
	"selfie":         kyc.DocumentSelfie,
	"proofOfAddress": kyc.DocumentProofOfAddress,
}

func (h *Handlers) SubmitKYC(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	if !h.parseMultipart(w, r, len(kycFields)) {
		return
	}

	names := make([]string, 0, len(kycFields))
	for name := range kycFields {
		names = append(names, name)
	}

	files, closeFiles, err := h.formFiles(r, names...)
	if err != nil {
		h.log.Error("formFiles()", slog.Any("error", err))
		handleError(w, errmsg.ErrRequestPayloadInvalid)

		return
	}
	defer closeFiles()

	uploads := make(map[kyc.DocumentType]service.Upload, len(files))
	for name, up := range files {
		uploads[kycFields[name]] = *up
	}

	docs, err := h.svc.SubmitKYC(r.Context(), p.UserID, uploads)
	if err != nil {
		h.handleServiceError(w, "service.SubmitKYC()", err)

		return
	}

	handleJSONResponse(w, http.StatusCreated, models.NewKYCDocumentsResponse(docs))
}

func (h *Handlers) GetKYCDocuments(w http.ResponseWriter, r *http.Request) {
	p, ok := h.principal(w, r)
	if !ok {
		return
	}

	docs, err := h.svc.KYCDocuments(r.Context(), p.UserID)
	if err != nil {
		h.handleServiceError(w, "service.KYCDocuments()", err)

		return
	}

	handleJSONResponse(w, http.StatusOK, models.NewKYCDocumentsResponse(docs))
}

func (h *Handlers) GetPendingKYCDocuments(w http.ResponseWriter, r *http.Request) {
	docs, err := h.svc.PendingKYCDocuments(r.Context())
	if err != nil {
		h.handleServiceError(w, "service.PendingKYCDocuments()", err)

		return
	}

	handleJSONResponse(w, http.StatusOK, models.NewKYCDocumentsResponse(docs))
}

func (h *Handlers) ReviewKYCDocument(w http.ResponseWriter, r *http.Request) {
	var req models.ReviewRequest

	if !h.decodeJSON(w, r, &req) {
		return
	}

	if err := req.Validate(); err != nil {
		h.validationError(w, err)

		return
	}

	status, err := req.VerificationStatus()
	if err != nil {
		h.validationError(w, err)

		return
	}

	review, err := h.svc.ReviewKYC(r.Context(), chi.URLParam(r, "id"), kyc.Decision{
		Status: status,
		Reason: req.RejectionReason,
	})
	if err != nil {
		h.handleServiceError(w, "service.ReviewKYC()", err)

		return
	}

	handleJSONResponse(w, http.StatusOK, models.KYCReviewResponse{
		Document:           models.NewKYCDocumentsResponse([]*kyc.Document{review.Outcome.Document})[0],
		VerificationStatus: review.User.VerificationStatus().String(),
	})
}
