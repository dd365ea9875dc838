package postgres

import (
	"context"

	"github.com/frahmantamala/courier-fulfillment/internal/core/datamodel/shipment"
	"gorm.io/gorm"
)

type HistoryRepository struct {
	db *gorm.DB
}

func NewHistoryRepository(db *gorm.DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

func (r *HistoryRepository) Append(ctx context.Context, h *shipment.History) error {
	return r.db.WithContext(ctx).Create(h).Error
}

func (r *HistoryRepository) ListByShipment(ctx context.Context, shipmentID int64) ([]shipment.History, error) {
	var out []shipment.History
	err := r.db.WithContext(ctx).
		Where("shipment_id = ?", shipmentID).
		Order("created_at ASC, id ASC").
		Find(&out).Error
	return out, err
}
