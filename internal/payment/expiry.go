package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/frahmantamala/courier-fulfillment/internal"
	"github.com/frahmantamala/courier-fulfillment/internal/core/datamodel/payment"
	model "github.com/frahmantamala/courier-fulfillment/internal/core/datamodel/shipment"
	"github.com/frahmantamala/courier-fulfillment/internal/core/store"
	"github.com/frahmantamala/courier-fulfillment/internal/jobs"
)

var errLostExpiry = errors.New("payment left PENDING concurrently")

// ExpiryHandler expires a payment that is still PENDING when its delayed
// job fires. It also backs the stale-payment sweep.
type ExpiryHandler struct {
	uow    store.UnitOfWorkFactory
	logger *slog.Logger
}

func NewExpiryHandler(uow store.UnitOfWorkFactory, logger *slog.Logger) *ExpiryHandler {
	return &ExpiryHandler{uow: uow, logger: logger.With("component", "payment_expiry")}
}

func (h *ExpiryHandler) Handle(ctx context.Context, job *jobs.Job) error {
	var p jobs.ExpiryPayload
	if err := job.Decode(&p); err != nil {
		h.logger.ErrorContext(ctx, "dropping undecodable expiry job", "job_id", job.ID, "error", err)
		return nil
	}

	_, err := h.Expire(ctx, p.PaymentID)
	return err
}

// Expire reports whether the payment moved from PENDING to EXPIRED.
func (h *ExpiryHandler) Expire(ctx context.Context, paymentID int64) (bool, error) {
	pay, err := h.uow.Create().Payments().GetByID(ctx, paymentID)
	if errors.Is(err, internal.ErrPaymentNotFound) {
		h.logger.WarnContext(ctx, "payment not found", "payment_id", paymentID)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	if pay.Status != payment.StatusPending {
		h.logger.InfoContext(ctx, "payment no longer pending", "payment_id", pay.ID, "status", pay.Status)
		return false, nil
	}

	err = store.WithinTx(ctx, h.uow, func(uow store.UnitOfWork) error {
		ok, err := uow.Payments().SetStatusIf(ctx, pay.ID, payment.StatusPending, payment.StatusExpired)
		if err != nil {
			return err
		}
		if !ok {
			return errLostExpiry
		}

		ok, err = uow.Shipments().SetPaymentStatusIf(ctx, pay.ShipmentID, model.PaymentExpired, model.PaymentPending)
		if err != nil {
			return err
		}
		if !ok {
			return errLostExpiry
		}

		return uow.Histories().Append(ctx, &model.History{
			ShipmentID:  pay.ShipmentID,
			Status:      string(model.PaymentExpired),
			Description: "Payment expired - automatically by system",
		})
	})
	if errors.Is(err, errLostExpiry) {
		h.logger.InfoContext(ctx, "payment settled before expiry", "payment_id", pay.ID)
		return false, nil
	}
	if err != nil {
		return false, err
	}

	h.logger.InfoContext(ctx, "payment expired", "payment_id", pay.ID, "shipment_id", pay.ShipmentID)
	return true, nil
}

// ExpireOverdue expires up to limit PENDING payments past their deadline.
func (h *ExpiryHandler) ExpireOverdue(ctx context.Context, now time.Time, limit int) (int, error) {
	overdue, err := h.uow.Create().Payments().ListOverduePending(ctx, now, limit)
	if err != nil {
		return 0, err
	}

	var (
		expired int
		errs    []error
	)
	for _, p := range overdue {
		ok, err := h.Expire(ctx, p.ID)
		if err != nil {
			errs = append(errs, fmt.Errorf("payment %d: %w", p.ID, err))
			continue
		}
		if ok {
			expired++
		}
	}
	return expired, errors.Join(errs...)
}
