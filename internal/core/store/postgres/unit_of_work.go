// Package postgres implements the store repositories on gorm.
package postgres

import (
	"context"

	"github.com/frahmantamala/courier-fulfillment/internal/core/store"
	"gorm.io/gorm"
)

type UnitOfWorkFactory struct {
	db *gorm.DB
}

func NewUnitOfWorkFactory(db *gorm.DB) *UnitOfWorkFactory {
	return &UnitOfWorkFactory{db: db}
}

// Create returns a fresh unit of work; instances must not be shared between goroutines.
func (f *UnitOfWorkFactory) Create() store.UnitOfWork {
	return &UnitOfWork{db: f.db}
}

type UnitOfWork struct {
	db *gorm.DB
	tx *gorm.DB
}

// Begin is a no-op when a transaction is already open.
func (u *UnitOfWork) Begin(ctx context.Context) error {
	if u.tx != nil {
		return nil
	}

	u.tx = u.db.WithContext(ctx).Begin()
	if u.tx.Error != nil {
		err := u.tx.Error
		u.tx = nil
		return err
	}
	return nil
}

func (u *UnitOfWork) Commit(_ context.Context) error {
	if u.tx == nil {
		return gorm.ErrInvalidTransaction
	}

	err := u.tx.Commit().Error
	u.tx = nil
	return err
}

func (u *UnitOfWork) Rollback(_ context.Context) error {
	if u.tx == nil {
		return gorm.ErrInvalidTransaction
	}

	err := u.tx.Rollback().Error
	u.tx = nil
	return err
}

func (u *UnitOfWork) conn() *gorm.DB {
	if u.tx != nil {
		return u.tx
	}
	return u.db
}

func (u *UnitOfWork) Shipments() store.ShipmentRepository {
	return NewShipmentRepository(u.conn())
}

func (u *UnitOfWork) Payments() store.PaymentRepository {
	return NewPaymentRepository(u.conn())
}

func (u *UnitOfWork) Histories() store.HistoryRepository {
	return NewHistoryRepository(u.conn())
}

func (u *UnitOfWork) BranchLogs() store.BranchLogRepository {
	return NewBranchLogRepository(u.conn())
}

func (u *UnitOfWork) Branches() store.BranchRepository {
	return NewBranchRepository(u.conn())
}

func (u *UnitOfWork) Users() store.UserRepository {
	return NewUserRepository(u.conn())
}

func (u *UnitOfWork) Addresses() store.AddressRepository {
	return NewAddressRepository(u.conn())
}
