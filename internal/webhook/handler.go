package webhook

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	errors "github.com/frahmantamala/hyperswitch-gateway/internal"
	"github.com/frahmantamala/hyperswitch-gateway/internal/gateway"
	"github.com/frahmantamala/hyperswitch-gateway/internal/transport"
)

// Verifier authenticates a raw webhook body against its signature header.
type Verifier interface {
	Verify(body []byte, signature string) error
}

// Handler is the HTTP boundary for gateway webhook deliveries.
type Handler struct {
	*transport.BaseHandler
	verifier   Verifier
	dispatcher *Dispatcher
}

func NewHandler(verifier Verifier, dispatcher *Dispatcher, logger *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger),
		verifier:    verifier,
		dispatcher:  dispatcher,
	}
}

// HandleWebhook verifies, normalizes and dispatches one delivery. A
// rejected signature never reaches the dispatcher. Processing errors
// return 5xx so the gateway redelivers; the idempotency guard absorbs
// the duplicates that redelivery produces.
func (h *Handler) HandleWebhook(w http.ResponseWriter, r *http.Request) {
	body, err := io.ReadAll(r.Body)
	if err != nil {
		h.HandleError(w, errors.NewValidationError("unable to read request body", errors.ErrCodeMalformedPayload))
		return
	}

	signature := r.Header.Get(gateway.SignatureHeader)
	if err := h.verifier.Verify(body, signature); err != nil {
		h.Logger.Warn("webhook signature rejected", "error", err, "path", r.URL.Path)
		h.HandleError(w, err)
		return
	}

	event, err := gateway.ParseWebhookEvent(body)
	if err != nil {
		if appErr, ok := errors.IsAppError(err); ok && appErr.Code == errors.ErrCodeUnsupportedEventType {
			h.Logger.Info("unsupported webhook event acknowledged", "error", err)
			h.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
			return
		}
		h.HandleError(w, err)
		return
	}

	meta := RecordMeta{
		Path:   r.URL.Path,
		Method: r.Method,
		Params: json.RawMessage(body),
	}
	if err := h.dispatcher.Dispatch(r.Context(), event, meta); err != nil {
		h.HandleError(w, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, map[string]bool{"received": true})
}
