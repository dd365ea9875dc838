package shipment

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi"

	"github.com/frahmantamala/courier-fulfillment/internal"
	model "github.com/frahmantamala/courier-fulfillment/internal/core/datamodel/shipment"
	"github.com/frahmantamala/courier-fulfillment/internal/transport"
)

// maxProofBytes bounds courier photo uploads.
const maxProofBytes = 5 << 20

type ServiceAPI interface {
	Create(ctx context.Context, userID int64, dto CreateShipmentDTO) (*CreateResult, error)
	FindAll(ctx context.Context, userID int64) ([]model.Shipment, error)
	FindOne(ctx context.Context, id int64) (*model.Shipment, error)
	FindHistory(ctx context.Context, userID int64) ([]model.Shipment, error)
	FindHistoryOne(ctx context.Context, id int64) (*model.Shipment, error)
}

type CourierAPI interface {
	FindAll(ctx context.Context, userID int64) ([]model.Shipment, error)
	Perform(ctx context.Context, action Action, trackingNumber string, userID int64, proof []byte) (*ActionResponse, error)
}

type Handler struct {
	*transport.BaseHandler
	Service ServiceAPI
}

func NewHandler(service ServiceAPI, logger *slog.Logger) *Handler {
	return &Handler{
		BaseHandler: transport.NewBaseHandler(logger),
		Service:     service,
	}
}

func (h *Handler) CreateShipment(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.UserID(w, r)
	if !ok {
		return
	}

	var dto CreateShipmentDTO
	if !h.DecodeJSON(w, r, &dto) {
		return
	}

	result, err := h.Service.Create(r.Context(), userID, dto)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusCreated, result)
}

func (h *Handler) ListShipments(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.UserID(w, r)
	if !ok {
		return
	}

	shipments, err := h.Service.FindAll(r.Context(), userID)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, transport.Envelope{Message: "Shipments fetched successfully", Data: shipments})
}

func (h *Handler) GetShipment(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	sh, err := h.Service.FindOne(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, transport.Envelope{Message: "Shipment fetched successfully", Data: sh})
}

func (h *Handler) ListHistory(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.UserID(w, r)
	if !ok {
		return
	}

	shipments, err := h.Service.FindHistory(r.Context(), userID)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, shipments)
}

func (h *Handler) GetHistory(w http.ResponseWriter, r *http.Request) {
	id, ok := h.pathID(w, r)
	if !ok {
		return
	}

	sh, err := h.Service.FindHistoryOne(r.Context(), id)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, sh)
}

func (h *Handler) pathID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	raw := chi.URLParam(r, "id")
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil || id <= 0 {
		h.WriteAppError(w, internal.NewValidationFieldError("id", "id must be a positive integer", internal.ErrCodeValidationFailed))
		return 0, false
	}
	return id, true
}

// proofFields names the multipart field each photo action reads.
var proofFields = map[Action]string{
	ActionPickup:            "pickupProofImage",
	ActionDeliverToCustomer: "receiptProofImage",
}

type CourierHandler struct {
	*transport.BaseHandler
	Service CourierAPI
}

func NewCourierHandler(service CourierAPI, logger *slog.Logger) *CourierHandler {
	return &CourierHandler{
		BaseHandler: transport.NewBaseHandler(logger),
		Service:     service,
	}
}

func (h *CourierHandler) ListShipments(w http.ResponseWriter, r *http.Request) {
	userID, ok := h.UserID(w, r)
	if !ok {
		return
	}

	shipments, err := h.Service.FindAll(r.Context(), userID)
	if err != nil {
		h.HandleServiceError(w, r, err)
		return
	}

	h.WriteJSON(w, http.StatusOK, shipments)
}

// Act returns the handler for one courier action route.
func (h *CourierHandler) Act(action Action) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		userID, ok := h.UserID(w, r)
		if !ok {
			return
		}

		var proof []byte
		if field, needsProof := proofFields[action]; needsProof {
			var err error
			if proof, err = readProof(w, r, field); err != nil {
				h.WriteAppError(w, internal.NewValidationFieldError(field, err.Error(), internal.ErrCodeProofRequired))
				return
			}
		}

		resp, err := h.Service.Perform(r.Context(), action, chi.URLParam(r, "trackingNumber"), userID, proof)
		if err != nil {
			h.HandleServiceError(w, r, err)
			return
		}

		h.WriteJSON(w, http.StatusOK, resp)
	}
}

// readProof returns nil without error when the field is absent so the
// service reports the missing proof itself.
func readProof(w http.ResponseWriter, r *http.Request, field string) ([]byte, error) {
	r.Body = http.MaxBytesReader(w, r.Body, maxProofBytes+1<<20)
	if err := r.ParseMultipartForm(maxProofBytes); err != nil {
		if errors.Is(err, http.ErrNotMultipart) {
			return nil, nil
		}
		return nil, err
	}

	file, _, err := r.FormFile(field)
	if errors.Is(err, http.ErrMissingFile) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	defer file.Close()

	return io.ReadAll(io.LimitReader(file, maxProofBytes))
}
