package payment

import (
	"context"
	"crypto/subtle"
	"log/slog"
	"net/http"

	"github.com/frahmantamala/courier-fulfillment/internal"
	"github.com/frahmantamala/courier-fulfillment/internal/transport"
)

const callbackTokenHeader = "X-Callback-Token"

type ReconcilerAPI interface {
	Handle(ctx context.Context, p WebhookPayload) error
}

type WebhookHandler struct {
	*transport.BaseHandler
	reconciler    ReconcilerAPI
	callbackToken string
}

// NewWebhookHandler verifies X-Callback-Token only when callbackToken is set.
func NewWebhookHandler(reconciler ReconcilerAPI, callbackToken string, logger *slog.Logger) *WebhookHandler {
	return &WebhookHandler{
		BaseHandler:   transport.NewBaseHandler(logger),
		reconciler:    reconciler,
		callbackToken: callbackToken,
	}
}

func (h *WebhookHandler) HandlePaymentCallback(w http.ResponseWriter, r *http.Request) {
	if h.callbackToken != "" {
		got := r.Header.Get(callbackTokenHeader)
		if subtle.ConstantTimeCompare([]byte(got), []byte(h.callbackToken)) != 1 {
			h.Logger.WarnContext(r.Context(), "payment callback rejected", "reason", "callback token mismatch")
			h.WriteAppError(w, internal.ErrInvalidCallbackToken)
			return
		}
	}

	var payload WebhookPayload
	if !h.DecodeJSON(w, r, &payload) {
		return
	}

	if err := h.reconciler.Handle(r.Context(), payload); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, CallbackResponse{
		Status:  "success",
		Message: "callback processed successfully",
	})
}
