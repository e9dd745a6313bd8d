package handlers

import (
	"net/http"
	"time"

	"github.com/andymarkow/cybexchange/internal/server/models"
)

func (h *Handlers) GetCurrencyRates(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.CurrencyRates(r.Context())
	if err != nil {
		h.handleServiceError(w, "service.CurrencyRates()", err)

		return
	}

	handleJSONResponse(w, http.StatusOK, models.NewCurrencyRatesResponse(list))
}

func (h *Handlers) UpdateCurrencyRates(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateCurrencyRatesRequest

	if !h.decodeJSON(w, r, &req) {
		return
	}

	list, err := req.CurrencyRates(time.Now().UTC())
	if err != nil {
		h.handleServiceError(w, "models.UpdateCurrencyRatesRequest.CurrencyRates()", err)

		return
	}

	updated, err := h.svc.UpdateCurrencyRates(r.Context(), list)
	if err != nil {
		h.handleServiceError(w, "service.UpdateCurrencyRates()", err)

		return
	}

	handleJSONResponse(w, http.StatusOK, models.NewCurrencyRatesResponse(updated))
}

func (h *Handlers) GetSettings(w http.ResponseWriter, r *http.Request) {
	list, err := h.svc.Settings(r.Context())
	if err != nil {
		h.handleServiceError(w, "service.Settings()", err)

		return
	}

	handleJSONResponse(w, http.StatusOK, models.NewSettingsResponse(list))
}

func (h *Handlers) UpdateSetting(w http.ResponseWriter, r *http.Request) {
	var req models.UpdateSettingRequest

	if !h.decodeJSON(w, r, &req) {
		return
	}

	if err := req.Validate(); err != nil {
		h.validationError(w, err)

		return
	}

	if _, err := h.svc.UpdateSetting(r.Context(), req.Key, req.Value); err != nil {
		h.handleServiceError(w, "service.UpdateSetting()", err)

		return
	}

	h.GetSettings(w, r)
}
