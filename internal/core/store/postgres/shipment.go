package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/courier-fulfillment/internal"
	"github.com/frahmantamala/courier-fulfillment/internal/core/datamodel/shipment"
	"gorm.io/gorm"
)

var paidStatuses = []shipment.PaymentStatus{shipment.PaymentPaid, shipment.PaymentSettled}

type ShipmentRepository struct {
	db *gorm.DB
}

func NewShipmentRepository(db *gorm.DB) *ShipmentRepository {
	return &ShipmentRepository{db: db}
}

func (r *ShipmentRepository) Create(ctx context.Context, s *shipment.Shipment) error {
	return r.db.WithContext(ctx).Omit("Detail", "Payment", "Histories").Create(s).Error
}

func (r *ShipmentRepository) CreateDetail(ctx context.Context, d *shipment.Detail) error {
	return r.db.WithContext(ctx).Omit("User", "PickupAddress").Create(d).Error
}

func (r *ShipmentRepository) GetByID(ctx context.Context, id int64) (*shipment.Shipment, error) {
	var s shipment.Shipment
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&s).Error; err != nil {
		return nil, mapNotFound(err, internal.ErrShipmentNotFound)
	}
	return &s, nil
}

func (r *ShipmentRepository) GetWithRelations(ctx context.Context, id int64) (*shipment.Shipment, error) {
	var s shipment.Shipment
	err := withRelations(r.db.WithContext(ctx)).
		Preload("Payment").
		Where("id = ?", id).
		First(&s).Error
	if err != nil {
		return nil, mapNotFound(err, internal.ErrShipmentNotFound)
	}
	return &s, nil
}

func (r *ShipmentRepository) GetByTrackingNumber(ctx context.Context, trackingNumber string) (*shipment.Shipment, error) {
	var s shipment.Shipment
	err := r.db.WithContext(ctx).
		Preload("Detail").
		Where("tracking_number = ?", trackingNumber).
		First(&s).Error
	if err != nil {
		return nil, mapNotFound(err, internal.ErrShipmentNotFound)
	}
	return &s, nil
}

func (r *ShipmentRepository) GetDetail(ctx context.Context, shipmentID int64) (*shipment.Detail, error) {
	var d shipment.Detail
	err := r.db.WithContext(ctx).
		Preload("User").
		Preload("PickupAddress").
		Where("shipment_id = ?", shipmentID).
		First(&d).Error
	if err != nil {
		return nil, mapNotFound(err, internal.ErrDetailNotFound)
	}
	return &d, nil
}

func (r *ShipmentRepository) ListByOwner(ctx context.Context, userID int64) ([]shipment.Shipment, error) {
	var out []shipment.Shipment
	err := withRelations(r.db.WithContext(ctx)).
		Preload("Payment").
		Where("EXISTS (SELECT 1 FROM shipment_details d WHERE d.shipment_id = shipments.id AND d.user_id = ?)", userID).
		Order("created_at DESC, id DESC").
		Find(&out).Error
	return out, err
}

func (r *ShipmentRepository) ListPaid(ctx context.Context, historyUserID *int64) ([]shipment.Shipment, error) {
	q := withRelations(r.db.WithContext(ctx)).
		Where("payment_status IN ?", paidStatuses)
	if historyUserID != nil {
		q = q.Where("EXISTS (SELECT 1 FROM shipment_histories h WHERE h.shipment_id = shipments.id AND h.user_id = ?)", *historyUserID)
	}

	var out []shipment.Shipment
	err := q.Order("created_at DESC, id DESC").Find(&out).Error
	return out, err
}

func (r *ShipmentRepository) ListByDeliveryStatus(ctx context.Context, statuses []shipment.DeliveryStatus) ([]shipment.Shipment, error) {
	var out []shipment.Shipment
	err := r.db.WithContext(ctx).
		Preload("Detail").
		Where("payment_status IN ?", paidStatuses).
		Where("delivery_status IN ?", statuses).
		Order("created_at DESC, id DESC").
		Find(&out).Error
	return out, err
}

func (r *ShipmentRepository) UpdateDeliveryStatus(ctx context.Context, id int64, from *shipment.DeliveryStatus, to shipment.DeliveryStatus) error {
	q := r.db.WithContext(ctx).Model(&shipment.Shipment{}).Where("id = ?", id)
	if from != nil {
		q = q.Where("delivery_status = ?", *from)
	}

	res := q.Update("delivery_status", to)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		if _, err := r.GetByID(ctx, id); err != nil {
			return err
		}
		return internal.ErrStatusConflict
	}
	return nil
}

func (r *ShipmentRepository) SetPaymentStatusIf(ctx context.Context, id int64, to shipment.PaymentStatus, from ...shipment.PaymentStatus) (bool, error) {
	res := r.db.WithContext(ctx).Model(&shipment.Shipment{}).
		Where("id = ? AND payment_status IN ?", id, from).
		Update("payment_status", to)
	return res.RowsAffected > 0, res.Error
}

func (r *ShipmentRepository) SetPaymentStatusUnless(ctx context.Context, id int64, to shipment.PaymentStatus, notIn ...shipment.PaymentStatus) (bool, error) {
	excluded := append([]shipment.PaymentStatus{to}, notIn...)
	res := r.db.WithContext(ctx).Model(&shipment.Shipment{}).
		Where("id = ? AND payment_status NOT IN ?", id, excluded).
		Update("payment_status", to)
	return res.RowsAffected > 0, res.Error
}

func (r *ShipmentRepository) MarkPaid(ctx context.Context, id int64, trackingNumber, qrCodeURL string, status shipment.PaymentStatus) (bool, error) {
	res := r.db.WithContext(ctx).Model(&shipment.Shipment{}).
		Where("id = ? AND tracking_number IS NULL", id).
		Updates(map[string]interface{}{
			"tracking_number": trackingNumber,
			"delivery_status": shipment.StatusReadyToPickup,
			"payment_status":  status,
			"qr_code_image":   qrCodeURL,
		})
	return res.RowsAffected > 0, res.Error
}

func (r *ShipmentRepository) SetPickupProof(ctx context.Context, shipmentID int64, url string) error {
	return r.setDetailColumn(ctx, shipmentID, "pickup_proof", url)
}

func (r *ShipmentRepository) SetReceiptProof(ctx context.Context, shipmentID int64, url string) error {
	return r.setDetailColumn(ctx, shipmentID, "receipt_proof", url)
}

func (r *ShipmentRepository) setDetailColumn(ctx context.Context, shipmentID int64, column, value string) error {
	res := r.db.WithContext(ctx).Model(&shipment.Detail{}).
		Where("shipment_id = ?", shipmentID).
		Update(column, value)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrDetailNotFound
	}
	return nil
}

func withRelations(db *gorm.DB) *gorm.DB {
	return db.
		Preload("Detail.User").
		Preload("Detail.PickupAddress").
		Preload("Histories", func(db *gorm.DB) *gorm.DB {
			return db.Order("created_at ASC, id ASC")
		})
}

func mapNotFound(err error, notFound *internal.AppError) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return err
}
