// Package payment reconciles gateway callbacks and payment expiry with the
// shipment they pay for.
package payment

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/frahmantamala/courier-fulfillment/internal"
	"github.com/frahmantamala/courier-fulfillment/internal/core/datamodel/payment"
	model "github.com/frahmantamala/courier-fulfillment/internal/core/datamodel/shipment"
	"github.com/frahmantamala/courier-fulfillment/internal/core/events"
	"github.com/frahmantamala/courier-fulfillment/internal/core/store"
	"github.com/frahmantamala/courier-fulfillment/internal/jobs"
	"github.com/frahmantamala/courier-fulfillment/internal/qrcode"
)

const trackingPrefix = "KN"

type JobScheduler interface {
	CancelExpiry(ctx context.Context, paymentID int64) (bool, error)
	ScheduleEmail(ctx context.Context, p jobs.EmailPayload, opts ...jobs.EmailOption) (*jobs.Job, error)
}

// errAlreadyMarked rolls back a first-payment transaction that lost the
// tracking number race to a concurrent callback.
var errAlreadyMarked = errors.New("shipment already has a tracking number")

type Reconciler struct {
	uow       store.UnitOfWorkFactory
	qr        qrcode.Generator
	scheduler JobScheduler
	publisher events.Publisher
	logger    *slog.Logger
}

func NewReconciler(uow store.UnitOfWorkFactory, qr qrcode.Generator, scheduler JobScheduler, publisher events.Publisher, logger *slog.Logger) *Reconciler {
	return &Reconciler{
		uow:       uow,
		qr:        qr,
		scheduler: scheduler,
		publisher: publisher,
		logger:    logger.With("component", "payment_reconciler"),
	}
}

// Handle applies one gateway callback. The first PAID or SETTLED callback for
// a shipment mints its tracking number; later ones only refresh statuses.
func (r *Reconciler) Handle(ctx context.Context, p WebhookPayload) error {
	if err := p.Validate(); err != nil {
		return err
	}
	status := p.PaymentStatus()

	reader := r.uow.Create()
	pay, err := reader.Payments().GetByExternalID(ctx, strings.TrimSpace(p.ExternalID))
	if err != nil {
		return err
	}

	sh, err := reader.Shipments().GetWithRelations(ctx, pay.ShipmentID)
	if err != nil {
		return err
	}

	r.logger.InfoContext(ctx, "payment callback received",
		"external_id", pay.ExternalID,
		"shipment_id", sh.ID,
		"current", pay.Status,
		"status", status)

	if status.IsPaid() && sh.TrackingNumber == nil {
		err := r.settle(ctx, p, pay, sh, status)
		if !errors.Is(err, errAlreadyMarked) {
			return err
		}

		r.logger.InfoContext(ctx, "tracking number assigned concurrently", "shipment_id", sh.ID)
		if sh, err = reader.Shipments().GetByID(ctx, sh.ID); err != nil {
			return err
		}
	}

	return r.record(ctx, p, pay, sh, status)
}

// settle records the first successful payment and releases the shipment for
// pickup. Follow-up failures after commit surface as Upstream errors.
func (r *Reconciler) settle(ctx context.Context, p WebhookPayload, pay *payment.Payment, sh *model.Shipment, status model.PaymentStatus) error {
	trackingNumber := trackingPrefix + strings.TrimSpace(p.ID)

	qrURL, err := r.qr.Generate(ctx, trackingNumber)
	if err != nil {
		return internal.NewUpstreamError("failed to store qr code", internal.ErrCodeStorageFailed, err)
	}

	var sender *int64
	if sh.Detail != nil {
		sender = &sh.Detail.UserID
	}

	err = store.WithinTx(ctx, r.uow, func(uow store.UnitOfWork) error {
		if err := uow.Payments().UpdateStatus(ctx, pay.ID, string(status), methodOf(p)); err != nil {
			return err
		}

		marked, err := uow.Shipments().MarkPaid(ctx, sh.ID, trackingNumber, qrURL, status)
		if err != nil {
			return err
		}
		if !marked {
			return errAlreadyMarked
		}

		return uow.Histories().Append(ctx, &model.History{
			ShipmentID:  sh.ID,
			Status:      string(model.StatusReadyToPickup),
			Description: fmt.Sprintf("Payment %s for shipment with tracking number %s", status, trackingNumber),
			UserID:      sender,
		})
	})
	if err != nil {
		return err
	}

	r.logger.InfoContext(ctx, "shipment paid",
		"shipment_id", sh.ID,
		"tracking_number", trackingNumber,
		"status", status)

	r.publish(ctx, events.NewPaymentStatusChangedEvent(pay.ID, sh.ID, pay.ExternalID, string(status)))
	r.publish(ctx, events.NewShipmentStatusChangedEvent(sh.ID, trackingNumber, string(sh.DeliveryStatus), string(model.StatusReadyToPickup)))

	if _, err := r.scheduler.CancelExpiry(ctx, pay.ID); err != nil {
		return internal.NewUpstreamError("failed to cancel payment expiry", internal.ErrCodeSchedulingFailed, err)
	}

	if sh.Detail != nil && sh.Detail.User != nil && sh.Detail.User.Email != "" {
		_, err := r.scheduler.ScheduleEmail(ctx, jobs.EmailPayload{
			Type:           jobs.EmailPaymentSuccess,
			To:             sh.Detail.User.Email,
			ShipmentID:     sh.ID,
			Amount:         sh.Price,
			TrackingNumber: trackingNumber,
		})
		if err != nil {
			return internal.NewUpstreamError("failed to send payment success email", internal.ErrCodeNotificationFailed, err)
		}
	}

	return nil
}

// record refreshes the payment row and mirrors status onto the shipment. A
// paid shipment is never moved back to an unpaid status.
func (r *Reconciler) record(ctx context.Context, p WebhookPayload, pay *payment.Payment, sh *model.Shipment, status model.PaymentStatus) error {
	var changed bool
	err := store.WithinTx(ctx, r.uow, func(uow store.UnitOfWork) error {
		if err := uow.Payments().UpdateStatus(ctx, pay.ID, string(status), methodOf(p)); err != nil {
			return err
		}

		var err error
		if status.IsPaid() {
			changed, err = uow.Shipments().SetPaymentStatusUnless(ctx, sh.ID, status)
		} else {
			changed, err = uow.Shipments().SetPaymentStatusUnless(ctx, sh.ID, status, model.PaymentPaid, model.PaymentSettled)
		}
		if err != nil || !changed {
			return err
		}

		return uow.Histories().Append(ctx, &model.History{
			ShipmentID:  sh.ID,
			Status:      string(status),
			Description: describe(status, sh.TrackingNumber),
		})
	})
	if err != nil {
		return err
	}

	if pay.Status != string(status) {
		r.publish(ctx, events.NewPaymentStatusChangedEvent(pay.ID, sh.ID, pay.ExternalID, string(status)))
	}

	r.logger.InfoContext(ctx, "payment status recorded",
		"shipment_id", sh.ID,
		"status", status,
		"shipment_updated", changed)
	return nil
}

func (r *Reconciler) publish(ctx context.Context, event events.Event) {
	if r.publisher == nil {
		return
	}
	if err := r.publisher.Publish(ctx, event); err != nil {
		r.logger.WarnContext(ctx, "failed to publish event", "event_type", event.EventType(), "error", err)
	}
}

func describe(status model.PaymentStatus, trackingNumber *string) string {
	if trackingNumber != nil {
		return fmt.Sprintf("Payment %s for shipment with tracking number %s", status, *trackingNumber)
	}
	return fmt.Sprintf("Payment %s", status)
}

func methodOf(p WebhookPayload) *string {
	m := strings.TrimSpace(p.PaymentMethod)
	if m == "" {
		return nil
	}
	return &m
}
