// Package store declares the repositories the fulfillment services work with
// and the unit of work that binds them to one database transaction.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/frahmantamala/courier-fulfillment/internal/core/datamodel/branch"
	"github.com/frahmantamala/courier-fulfillment/internal/core/datamodel/payment"
	"github.com/frahmantamala/courier-fulfillment/internal/core/datamodel/shipment"
	"github.com/frahmantamala/courier-fulfillment/internal/core/datamodel/user"
)

type ShipmentRepository interface {
	Create(ctx context.Context, s *shipment.Shipment) error
	CreateDetail(ctx context.Context, d *shipment.Detail) error
	GetByID(ctx context.Context, id int64) (*shipment.Shipment, error)
	GetWithRelations(ctx context.Context, id int64) (*shipment.Shipment, error)
	GetByTrackingNumber(ctx context.Context, trackingNumber string) (*shipment.Shipment, error)
	GetDetail(ctx context.Context, shipmentID int64) (*shipment.Detail, error)
	ListByOwner(ctx context.Context, userID int64) ([]shipment.Shipment, error)
	// ListPaid returns paid or settled shipments. A non-nil historyUserID keeps
	// only shipments whose history mentions that user.
	ListPaid(ctx context.Context, historyUserID *int64) ([]shipment.Shipment, error)
	ListByDeliveryStatus(ctx context.Context, statuses []shipment.DeliveryStatus) ([]shipment.Shipment, error)

	// UpdateDeliveryStatus writes to. With a non-nil from the write only
	// happens while the stored status still equals *from.
	UpdateDeliveryStatus(ctx context.Context, id int64, from *shipment.DeliveryStatus, to shipment.DeliveryStatus) error
	// SetPaymentStatusIf writes to only when the current status is one of from.
	SetPaymentStatusIf(ctx context.Context, id int64, to shipment.PaymentStatus, from ...shipment.PaymentStatus) (bool, error)
	// SetPaymentStatusUnless writes to unless the current status is to or one of notIn.
	SetPaymentStatusUnless(ctx context.Context, id int64, to shipment.PaymentStatus, notIn ...shipment.PaymentStatus) (bool, error)
	// MarkPaid assigns the tracking number once; it reports false when another
	// writer already did.
	MarkPaid(ctx context.Context, id int64, trackingNumber, qrCodeURL string, status shipment.PaymentStatus) (bool, error)
	SetPickupProof(ctx context.Context, shipmentID int64, url string) error
	SetReceiptProof(ctx context.Context, shipmentID int64, url string) error
}

type PaymentRepository interface {
	Create(ctx context.Context, p *payment.Payment) error
	GetByID(ctx context.Context, id int64) (*payment.Payment, error)
	GetByExternalID(ctx context.Context, externalID string) (*payment.Payment, error)
	GetByShipmentID(ctx context.Context, shipmentID int64) (*payment.Payment, error)
	UpdateStatus(ctx context.Context, id int64, status string, paymentMethod *string) error
	// SetStatusIf writes status only when the current status equals from.
	SetStatusIf(ctx context.Context, id int64, from, to string) (bool, error)
	ListOverduePending(ctx context.Context, now time.Time, limit int) ([]payment.Payment, error)
}

type HistoryRepository interface {
	Append(ctx context.Context, h *shipment.History) error
	ListByShipment(ctx context.Context, shipmentID int64) ([]shipment.History, error)
}

type BranchLogRepository interface {
	Create(ctx context.Context, l *shipment.BranchLog) error
	// Latest returns nil without error when (trackingNumber, branchID) has no scans.
	Latest(ctx context.Context, trackingNumber string, branchID int64) (*shipment.BranchLog, error)
	// List returns every log when branchID is nil.
	List(ctx context.Context, branchID *int64) ([]shipment.BranchLog, error)
}

type BranchRepository interface {
	GetByID(ctx context.Context, id int64) (*branch.Branch, error)
	GetEmployeeBranch(ctx context.Context, userID int64) (*branch.Branch, error)
}

type UserRepository interface {
	GetByID(ctx context.Context, id int64) (*user.User, error)
	// GetWithPermissions loads the user with its role and the role's permissions.
	GetWithPermissions(ctx context.Context, id int64) (*user.User, error)
}

type AddressRepository interface {
	GetByID(ctx context.Context, id int64) (*user.Address, error)
}

// UnitOfWork hands out repositories bound to the current transaction, or to
// the plain connection before Begin is called.
type UnitOfWork interface {
	Begin(ctx context.Context) error
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error

	Shipments() ShipmentRepository
	Payments() PaymentRepository
	Histories() HistoryRepository
	BranchLogs() BranchLogRepository
	Branches() BranchRepository
	Users() UserRepository
	Addresses() AddressRepository
}

type UnitOfWorkFactory interface {
	Create() UnitOfWork
}

// WithinTx runs fn inside one transaction. It commits when fn returns nil and
// rolls back on an error or panic.
func WithinTx(ctx context.Context, factory UnitOfWorkFactory, fn func(uow UnitOfWork) error) (err error) {
	uow := factory.Create()
	if err := uow.Begin(ctx); err != nil {
		return err
	}

	defer func() {
		if r := recover(); r != nil {
			_ = uow.Rollback(ctx)
			panic(r)
		}
	}()

	if err := fn(uow); err != nil {
		if rbErr := uow.Rollback(ctx); rbErr != nil {
			return errors.Join(err, rbErr)
		}
		return err
	}

	return uow.Commit(ctx)
}
