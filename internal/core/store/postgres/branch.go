package postgres

import (
	"context"
	"errors"

	"github.com/frahmantamala/courier-fulfillment/internal"
	"github.com/frahmantamala/courier-fulfillment/internal/core/datamodel/branch"
	"github.com/frahmantamala/courier-fulfillment/internal/core/datamodel/shipment"
	"gorm.io/gorm"
)

type BranchRepository struct {
	db *gorm.DB
}

func NewBranchRepository(db *gorm.DB) *BranchRepository {
	return &BranchRepository{db: db}
}

func (r *BranchRepository) GetByID(ctx context.Context, id int64) (*branch.Branch, error) {
	var b branch.Branch
	if err := r.db.WithContext(ctx).Where("id = ?", id).First(&b).Error; err != nil {
		return nil, mapNotFound(err, internal.ErrBranchNotFound)
	}
	return &b, nil
}

func (r *BranchRepository) GetEmployeeBranch(ctx context.Context, userID int64) (*branch.Branch, error) {
	var eb branch.EmployeeBranch
	err := r.db.WithContext(ctx).
		Preload("Branch").
		Where("user_id = ?", userID).
		First(&eb).Error
	if err != nil {
		return nil, mapNotFound(err, internal.ErrBranchNotFound)
	}
	if eb.Branch == nil {
		return nil, internal.ErrBranchNotFound
	}
	return eb.Branch, nil
}

type BranchLogRepository struct {
	db *gorm.DB
}

func NewBranchLogRepository(db *gorm.DB) *BranchLogRepository {
	return &BranchLogRepository{db: db}
}

func (r *BranchLogRepository) Create(ctx context.Context, l *shipment.BranchLog) error {
	return r.db.WithContext(ctx).Omit("Shipment", "Branch").Create(l).Error
}

func (r *BranchLogRepository) Latest(ctx context.Context, trackingNumber string, branchID int64) (*shipment.BranchLog, error) {
	var l shipment.BranchLog
	err := r.db.WithContext(ctx).
		Where("tracking_number = ? AND branch_id = ?", trackingNumber, branchID).
		Order("scan_time DESC, id DESC").
		First(&l).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *BranchLogRepository) List(ctx context.Context, branchID *int64) ([]shipment.BranchLog, error) {
	q := r.db.WithContext(ctx).
		Preload("Shipment").
		Preload("Branch")
	if branchID != nil {
		q = q.Where("branch_id = ?", *branchID)
	}

	var out []shipment.BranchLog
	err := q.Order("scan_time DESC, id DESC").Find(&out).Error
	return out, err
}
