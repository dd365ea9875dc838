package shipment

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/courier-fulfillment/internal"
	"github.com/frahmantamala/courier-fulfillment/internal/auth"
	"github.com/frahmantamala/courier-fulfillment/internal/core/datamodel/payment"
	model "github.com/frahmantamala/courier-fulfillment/internal/core/datamodel/shipment"
	"github.com/frahmantamala/courier-fulfillment/internal/core/store"
	"github.com/frahmantamala/courier-fulfillment/internal/geocode"
	"github.com/frahmantamala/courier-fulfillment/internal/jobs"
	"github.com/frahmantamala/courier-fulfillment/internal/paymentgateway"
	"github.com/frahmantamala/courier-fulfillment/internal/pricing"
)

type Authorizer interface {
	Check(ctx context.Context, userID int64, permissions []string, mode auth.Mode) error
	Authorize(ctx context.Context, userID int64, permissions []string, mode auth.Mode) (*auth.Principal, error)
}

type JobScheduler interface {
	ScheduleEmail(ctx context.Context, p jobs.EmailPayload, opts ...jobs.EmailOption) (*jobs.Job, error)
	ScheduleExpiry(ctx context.Context, p jobs.ExpiryPayload, fireAt time.Time) (*jobs.Job, error)
}

type Config struct {
	FrontendURL     string
	InvoiceDuration time.Duration
}

// Service is the booking front door and the sender-facing read paths.
type Service struct {
	uow       store.UnitOfWorkFactory
	authz     Authorizer
	geocoder  geocode.Geocoder
	invoices  paymentgateway.InvoiceCreator
	scheduler JobScheduler
	config    Config
	now       func() time.Time
	logger    *slog.Logger
}

func NewService(
	uow store.UnitOfWorkFactory,
	authz Authorizer,
	geocoder geocode.Geocoder,
	invoices paymentgateway.InvoiceCreator,
	scheduler JobScheduler,
	config Config,
	logger *slog.Logger,
) *Service {
	if config.InvoiceDuration <= 0 {
		config.InvoiceDuration = 24 * time.Hour
	}
	config.FrontendURL = strings.TrimRight(config.FrontendURL, "/")

	return &Service{
		uow:       uow,
		authz:     authz,
		geocoder:  geocoder,
		invoices:  invoices,
		scheduler: scheduler,
		config:    config,
		now:       time.Now,
		logger:    logger,
	}
}

// Create books a shipment and opens its invoice. Once the first transaction
// commits the booking is never rolled back: an invoice failure marks the
// shipment FAILED, and scheduling failures surface as Upstream errors.
func (s *Service) Create(ctx context.Context, userID int64, dto CreateShipmentDTO) (*CreateResult, error) {
	if err := s.authz.Check(ctx, userID, []string{auth.PermShipmentsCreate}, auth.ModeAny); err != nil {
		return nil, err
	}

	dto.Normalize()
	if err := dto.Validate(); err != nil {
		s.logger.InfoContext(ctx, "shipment validation failed", "error", err, "user_id", userID)
		return nil, err
	}

	destination, err := s.geocoder.Geocode(ctx, dto.DestinationAddress)
	if err != nil {
		s.logger.WarnContext(ctx, "failed to geocode destination", "error", err, "user_id", userID)
		return nil, internal.NewUpstreamError("Failed to geocode destination address", internal.ErrCodeGeocodeFailed, err)
	}

	reader := s.uow.Create()
	addr, err := reader.Addresses().GetByID(ctx, dto.PickupAddressID)
	if err != nil {
		return nil, err
	}
	if addr.UserID != userID || addr.Latitude == nil || addr.Longitude == nil {
		return nil, internal.ErrAddressNotFound
	}

	sender, err := reader.Users().GetByID(ctx, userID)
	if err != nil {
		return nil, err
	}

	pickup := geocode.Point{Lat: *addr.Latitude, Lng: *addr.Longitude}
	distance := geocode.DistanceKm(pickup, destination)
	if !pricing.Known(dto.DeliveryType) {
		s.logger.WarnContext(ctx, "unknown delivery type priced as reguler", "delivery_type", dto.DeliveryType)
	}
	price := pricing.Calculate(dto.Weight, distance, dto.DeliveryType)

	sh := &model.Shipment{
		PaymentStatus: model.PaymentPending,
		Distance:      distance,
		Price:         price.TotalPrice,
	}
	detail := &model.Detail{
		UserID:               userID,
		PickupAddressID:      addr.ID,
		DestinationAddress:   dto.DestinationAddress,
		RecipientName:        dto.RecipientName,
		RecipientPhone:       dto.RecipientPhone,
		Weight:               dto.Weight,
		PackageType:          dto.PackageType,
		DeliveryType:         dto.DeliveryType,
		DestinationLatitude:  destination.Lat,
		DestinationLongitude: destination.Lng,
		BasePrice:            price.BasePrice,
		WeightPrice:          price.WeightPrice,
		DistancePrice:        price.DistancePrice,
	}

	err = store.WithinTx(ctx, s.uow, func(uow store.UnitOfWork) error {
		if err := uow.Shipments().Create(ctx, sh); err != nil {
			return err
		}
		detail.ShipmentID = sh.ID
		return uow.Shipments().CreateDetail(ctx, detail)
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to create shipment", "error", err, "user_id", userID)
		return nil, internal.NewInternalError("failed to create shipment", err)
	}
	sh.Detail = detail

	externalID := fmt.Sprintf("INV-%d-%d", s.now().UnixMilli(), sh.ID)
	invoice, err := s.invoices.CreateInvoice(ctx, paymentgateway.InvoiceRequest{
		ExternalID:         externalID,
		Amount:             price.TotalPrice,
		Description:        fmt.Sprintf("Shipment #%d from %s to %s", sh.ID, addr.Address, dto.DestinationAddress),
		PayerEmail:         sender.Email,
		SuccessRedirectURL: fmt.Sprintf("%s/shipments/%d", s.config.FrontendURL, sh.ID),
		Duration:           s.config.InvoiceDuration,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to create invoice", "error", err, "shipment_id", sh.ID)
		s.markFailed(ctx, sh, userID, "Invoice creation failed")
		return nil, internal.NewUpstreamError("Failed to create payment invoice", internal.ErrCodeInvoiceFailed, err)
	}

	if invoice.ExternalID == "" {
		invoice.ExternalID = externalID
	}
	expiresAt := invoice.ExpiryDate
	if expiresAt.IsZero() {
		expiresAt = s.now().Add(s.config.InvoiceDuration)
	}

	pay := &payment.Payment{
		ShipmentID:     sh.ID,
		ExternalID:     invoice.ExternalID,
		InvoiceID:      invoice.ID,
		Status:         payment.StatusPending,
		InvoiceURL:     invoice.InvoiceURL,
		ExpirationDate: expiresAt.UTC(),
	}

	err = store.WithinTx(ctx, s.uow, func(uow store.UnitOfWork) error {
		if err := uow.Payments().Create(ctx, pay); err != nil {
			return err
		}
		return uow.Histories().Append(ctx, &model.History{
			ShipmentID:  sh.ID,
			Status:      string(model.PaymentPending),
			Description: fmt.Sprintf("Shipment #%d created with total price %d", sh.ID, price.TotalPrice),
			UserID:      &userID,
		})
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to record payment", "error", err, "shipment_id", sh.ID)
		s.markFailed(ctx, sh, userID, "Payment record could not be stored")
		return nil, internal.NewInternalError("failed to record payment", err)
	}
	sh.Payment = pay

	result := &CreateResult{Shipment: sh, Payment: pay, Invoice: invoice}

	// The expiry job is the compensating action, so it is scheduled first and
	// an email failure never prevents it.
	var followUp *internal.AppError
	_, err = s.scheduler.ScheduleExpiry(ctx, jobs.ExpiryPayload{
		PaymentID:  pay.ID,
		ShipmentID: sh.ID,
		ExternalID: pay.ExternalID,
	}, expiresAt)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to schedule payment expiry", "error", err, "payment_id", pay.ID)
		followUp = internal.NewUpstreamError("Failed to schedule payment expiry", internal.ErrCodeSchedulingFailed, err)
	}

	_, err = s.scheduler.ScheduleEmail(ctx, jobs.EmailPayload{
		Type:       jobs.EmailPaymentNotification,
		To:         sender.Email,
		ShipmentID: sh.ID,
		Amount:     price.TotalPrice,
		PaymentURL: invoice.InvoiceURL,
		ExpiryDate: &expiresAt,
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to enqueue payment notification", "error", err, "shipment_id", sh.ID)
		if followUp == nil {
			followUp = internal.NewUpstreamError("Failed to send payment notification", internal.ErrCodeNotificationFailed, err)
		}
	}
	if followUp != nil {
		return nil, followUp
	}

	s.logger.InfoContext(ctx, "shipment created",
		"shipment_id", sh.ID,
		"user_id", userID,
		"external_id", pay.ExternalID,
		"price", price.TotalPrice,
		"distance_km", distance)

	return result, nil
}

// markFailed compensates a booking whose payment could not be opened.
func (s *Service) markFailed(ctx context.Context, sh *model.Shipment, userID int64, reason string) {
	ctx = context.WithoutCancel(ctx)
	err := store.WithinTx(ctx, s.uow, func(uow store.UnitOfWork) error {
		ok, err := uow.Shipments().SetPaymentStatusIf(ctx, sh.ID, model.PaymentFailed, model.PaymentPending)
		if err != nil || !ok {
			return err
		}
		return uow.Histories().Append(ctx, &model.History{
			ShipmentID:  sh.ID,
			Status:      string(model.PaymentFailed),
			Description: fmt.Sprintf("%s for shipment #%d", reason, sh.ID),
			UserID:      &userID,
		})
	})
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to mark shipment as failed", "error", err, "shipment_id", sh.ID)
		return
	}
	sh.PaymentStatus = model.PaymentFailed
}

// FindAll lists the caller's own bookings, newest first.
func (s *Service) FindAll(ctx context.Context, userID int64) ([]model.Shipment, error) {
	shipments, err := s.uow.Create().Shipments().ListByOwner(ctx, userID)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list shipments", "error", err, "user_id", userID)
		return nil, internal.NewInternalError("failed to list shipments", err)
	}
	return shipments, nil
}

func (s *Service) FindOne(ctx context.Context, id int64) (*model.Shipment, error) {
	return s.uow.Create().Shipments().GetWithRelations(ctx, id)
}

// FindHistory lists paid shipments. Super Admin sees all of them; everyone
// else sees the ones whose history mentions them.
func (s *Service) FindHistory(ctx context.Context, userID int64) ([]model.Shipment, error) {
	principal, err := s.authz.Authorize(ctx, userID, []string{auth.PermShipmentsRead}, auth.ModeAny)
	if err != nil {
		return nil, err
	}

	var scope *int64
	if !principal.IsSuperAdmin() {
		scope = &userID
	}

	shipments, err := s.uow.Create().Shipments().ListPaid(ctx, scope)
	if err != nil {
		s.logger.ErrorContext(ctx, "failed to list shipment history", "error", err, "user_id", userID)
		return nil, internal.NewInternalError("failed to list shipment history", err)
	}
	return shipments, nil
}

func (s *Service) FindHistoryOne(ctx context.Context, id int64) (*model.Shipment, error) {
	return s.uow.Create().Shipments().GetWithRelations(ctx, id)
}
