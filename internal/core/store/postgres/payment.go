package postgres

import (
	"context"
	"time"

	"github.com/frahmantamala/courier-fulfillment/internal"
	"github.com/frahmantamala/courier-fulfillment/internal/core/datamodel/payment"
	"gorm.io/gorm"
)

type PaymentRepository struct {
	db *gorm.DB
}

func NewPaymentRepository(db *gorm.DB) *PaymentRepository {
	return &PaymentRepository{db: db}
}

func (r *PaymentRepository) Create(ctx context.Context, p *payment.Payment) error {
	return r.db.WithContext(ctx).Create(p).Error
}

func (r *PaymentRepository) GetByID(ctx context.Context, id int64) (*payment.Payment, error) {
	return r.first(ctx, "id = ?", id)
}

func (r *PaymentRepository) GetByExternalID(ctx context.Context, externalID string) (*payment.Payment, error) {
	return r.first(ctx, "external_id = ?", externalID)
}

func (r *PaymentRepository) GetByShipmentID(ctx context.Context, shipmentID int64) (*payment.Payment, error) {
	return r.first(ctx, "shipment_id = ?", shipmentID)
}

func (r *PaymentRepository) first(ctx context.Context, query string, arg interface{}) (*payment.Payment, error) {
	var p payment.Payment
	if err := r.db.WithContext(ctx).Where(query, arg).First(&p).Error; err != nil {
		return nil, mapNotFound(err, internal.ErrPaymentNotFound)
	}
	return &p, nil
}

func (r *PaymentRepository) UpdateStatus(ctx context.Context, id int64, status string, paymentMethod *string) error {
	updates := map[string]interface{}{
		"status": status,
	}
	if paymentMethod != nil {
		updates["payment_method"] = *paymentMethod
	}

	res := r.db.WithContext(ctx).Model(&payment.Payment{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return internal.ErrPaymentNotFound
	}
	return nil
}

func (r *PaymentRepository) SetStatusIf(ctx context.Context, id int64, from, to string) (bool, error) {
	res := r.db.WithContext(ctx).Model(&payment.Payment{}).
		Where("id = ? AND status = ?", id, from).
		Update("status", to)
	return res.RowsAffected > 0, res.Error
}

func (r *PaymentRepository) ListOverduePending(ctx context.Context, now time.Time, limit int) ([]payment.Payment, error) {
	var out []payment.Payment
	q := r.db.WithContext(ctx).
		Where("status = ? AND expiration_date <= ?", payment.StatusPending, now).
		Order("expiration_date ASC, id ASC")
	if limit > 0 {
		q = q.Limit(limit)
	}
	err := q.Find(&out).Error
	return out, err
}
