package branchscan

import (
	"context"
	"log/slog"
	"net/http"

	model "github.com/frahmantamala/courier-fulfillment/internal/core/datamodel/shipment"
	"github.com/frahmantamala/courier-fulfillment/internal/transport"
)

type ProcessorAPI interface {
	Scan(ctx context.Context, req ScanRequest) (*model.BranchLog, error)
	FindAll(ctx context.Context, userID int64) ([]model.BranchLog, error)
}

type Handler struct {
	*transport.BaseHandler
	Processor ProcessorAPI
}

func NewHandler(processor ProcessorAPI, logger *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger),
		Processor:   processor,
	}
}

func (h *Handler) Scan(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.UserID(w, r)
	if !ok {
		return
	}

	var dto ScanDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}
	if err := dto.Validate(); err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	log, err := h.Processor.Scan(r.Context(), ScanRequest{
		TrackingNumber:  dto.TrackingNumber,
		Type:            dto.Type,
		IsReadyToPickup: dto.IsReadyToPickup,
		UserID:          userID,
	})
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, log)
}

func (h *Handler) ListLogs(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.UserID(w, r)
	if !ok {
		return
	}

	logs, err := h.Processor.FindAll(r.Context(), userID)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, logs)
}
