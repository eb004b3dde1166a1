package payment

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"

	errors "github.com/frahmantamala/hyperswitch-gateway/internal"
	datamodel "github.com/frahmantamala/hyperswitch-gateway/internal/core/datamodel/payment"
	"github.com/frahmantamala/hyperswitch-gateway/internal/gateway"
	"github.com/frahmantamala/hyperswitch-gateway/internal/transport"
	"github.com/go-chi/chi"
)

// ProviderAPI is the provider surface the HTTP handler forwards to.
type ProviderAPI interface {
	Initiate(ctx context.Context, dto InitiateDTO) (*SessionData, error)
	Update(ctx context.Context, data *SessionData, dto UpdateDTO) (*SessionData, error)
	Capture(ctx context.Context, data *SessionData) (*SessionData, error)
	Cancel(ctx context.Context, data *SessionData) (*SessionData, error)
	Refund(ctx context.Context, data *SessionData, dto RefundDTO) (*gateway.RefundResponse, error)
	GetStatus(ctx context.Context, data *SessionData) (datamodel.Status, error)
	Retrieve(ctx context.Context, data *SessionData) (*gateway.TransactionResponse, error)
}

type Handler struct {
	transport.BaseHandler
	Provider ProviderAPI
	Logger   *slog.Logger
}

func NewHandler(provider ProviderAPI, logger *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: *transport.NewBaseHandler(logger),
		Provider:    provider,
		Logger:      logger,
	}
}

// Initiate handles POST /api/v1/payments
func (h *Handler) Initiate(w http.ResponseWriter, r *http.Request) {
	var dto InitiateDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("Initiate: failed to parse request body", "error", err)
		h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}

	data, err := h.Provider.Initiate(r.Context(), dto)
	if err != nil {
		h.HandleError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, data)
}

// Update handles POST /api/v1/payments/{id}
func (h *Handler) Update(w http.ResponseWriter, r *http.Request) {
	var dto UpdateDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("Update: failed to parse request body", "error", err)
		h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}

	data, err := h.Provider.Update(r.Context(), h.sessionFromPath(r), dto)
	if err != nil {
		h.HandleError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, data)
}

// Capture handles POST /api/v1/payments/{id}/capture
func (h *Handler) Capture(w http.ResponseWriter, r *http.Request) {
	data, err := h.Provider.Capture(r.Context(), h.sessionFromPath(r))
	if err != nil {
		h.HandleError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, data)
}

// Cancel handles POST /api/v1/payments/{id}/cancel
func (h *Handler) Cancel(w http.ResponseWriter, r *http.Request) {
	data, err := h.Provider.Cancel(r.Context(), h.sessionFromPath(r))
	if err != nil {
		h.HandleError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, data)
}

// Refund handles POST /api/v1/payments/{id}/refund
func (h *Handler) Refund(w http.ResponseWriter, r *http.Request) {
	var dto RefundDTO
	if err := json.NewDecoder(r.Body).Decode(&dto); err != nil {
		h.Logger.Error("Refund: failed to parse request body", "error", err)
		h.HandleError(w, errors.NewValidationError("invalid request body", errors.ErrCodeValidationFailed))
		return
	}

	refund, err := h.Provider.Refund(r.Context(), h.sessionFromPath(r), dto)
	if err != nil {
		h.HandleError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, refund)
}

// GetStatus handles GET /api/v1/payments/{id}/status
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	status, err := h.Provider.GetStatus(r.Context(), h.sessionFromPath(r))
	if err != nil {
		h.HandleError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]string{"status": string(status)})
}

// Get handles GET /api/v1/payments/{id}
func (h *Handler) Get(w http.ResponseWriter, r *http.Request) {
	txn, err := h.Provider.Retrieve(r.Context(), h.sessionFromPath(r))
	if err != nil {
		h.HandleError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, txn)
}

func (h *Handler) sessionFromPath(r *http.Request) *SessionData {
	return &SessionData{PaymentID: chi.URLParam(r, "id")}
}
