// Package branchscan records parcels arriving at and leaving branches.
package branchscan

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/frahmantamala/courier-fulfillment/internal"
	"github.com/frahmantamala/courier-fulfillment/internal/auth"
	model "github.com/frahmantamala/courier-fulfillment/internal/core/datamodel/shipment"
	"github.com/frahmantamala/courier-fulfillment/internal/core/store"
	"github.com/frahmantamala/courier-fulfillment/internal/shipment"
)

type Authorizer interface {
	Check(ctx context.Context, userID int64, permissions []string, mode auth.Mode) error
	Authorize(ctx context.Context, userID int64, permissions []string, mode auth.Mode) (*auth.Principal, error)
}

type Processor struct {
	uow    store.UnitOfWorkFactory
	authz  Authorizer
	engine *shipment.Engine
	now    func() time.Time
	logger *slog.Logger
}

func NewProcessor(uow store.UnitOfWorkFactory, authz Authorizer, engine *shipment.Engine, logger *slog.Logger) *Processor {
	return &Processor{
		uow:    uow,
		authz:  authz,
		engine: engine,
		now:    time.Now,
		logger: logger.With("component", "branch_scan"),
	}
}

// Scan logs an IN or OUT at the scanning employee's branch and moves the
// shipment accordingly. An OUT needs an open IN at the same branch.
func (p *Processor) Scan(ctx context.Context, req ScanRequest) (*model.BranchLog, error) {
	if err := p.authz.Check(ctx, req.UserID, []string{auth.PermDeliveryUpdate}, auth.ModeAny); err != nil {
		return nil, err
	}

	req.TrackingNumber = strings.TrimSpace(req.TrackingNumber)
	if err := (ScanDTO{TrackingNumber: req.TrackingNumber, Type: req.Type}).Validate(); err != nil {
		return nil, err
	}

	reader := p.uow.Create()
	branch, err := reader.Branches().GetEmployeeBranch(ctx, req.UserID)
	if err != nil {
		return nil, err
	}

	sh, err := reader.Shipments().GetByTrackingNumber(ctx, req.TrackingNumber)
	if err != nil {
		return nil, err
	}

	current := sh.DeliveryStatus
	if !isScannable(current) {
		return nil, internal.NewInvalidStateError(
			fmt.Sprintf("Shipment status must be in %s to be scanned %s", joinStatuses(shipment.BranchScanSources), req.Type),
			internal.ErrCodeInvalidStatus)
	}

	if req.Type == model.ScanOut {
		last, err := reader.BranchLogs().Latest(ctx, req.TrackingNumber, branch.ID)
		if err != nil {
			return nil, internal.NewInternalError("failed to read branch logs", err)
		}
		if last == nil || last.Type != model.ScanIn {
			return nil, internal.NewInvalidSequenceError(
				fmt.Sprintf("Shipment %s has not been scanned in at this branch", req.TrackingNumber),
				internal.ErrCodeScanNotOpen)
		}
	}

	next := resultingStatus(req.Type, req.IsReadyToPickup)
	description := fmt.Sprintf("Shipment arrived at %s", branch.Name)
	if req.Type == model.ScanOut {
		description = fmt.Sprintf("Shipment departed from %s", branch.Name)
	}

	log := &model.BranchLog{
		ShipmentID:      sh.ID,
		BranchID:        branch.ID,
		TrackingNumber:  req.TrackingNumber,
		Type:            req.Type,
		Status:          next,
		Description:     description,
		ScannedByUserID: req.UserID,
		ScanTime:        p.now().UTC(),
	}

	var change *shipment.Change
	err = store.WithinTx(ctx, p.uow, func(uow store.UnitOfWork) error {
		if err := uow.BranchLogs().Create(ctx, log); err != nil {
			return err
		}

		var err error
		change, err = p.engine.Apply(ctx, uow, shipment.TransitionRequest{
			ShipmentID:  sh.ID,
			To:          next,
			Actor:       &req.UserID,
			Branch:      &branch.ID,
			Description: description,
			From:        &current,
		})
		return err
	})
	if err != nil {
		p.logger.WarnContext(ctx, "branch scan failed",
			"tracking_number", req.TrackingNumber,
			"branch_id", branch.ID,
			"type", req.Type,
			"error", err)
		return nil, err
	}

	p.engine.Announce(ctx, change)

	p.logger.InfoContext(ctx, "shipment scanned",
		"tracking_number", req.TrackingNumber,
		"branch_id", branch.ID,
		"type", req.Type,
		"from", current,
		"to", next)

	log.Branch = branch
	return log, nil
}

// FindAll lists scan logs newest first. Super Admin sees every branch.
func (p *Processor) FindAll(ctx context.Context, userID int64) ([]model.BranchLog, error) {
	principal, err := p.authz.Authorize(ctx, userID, []string{auth.PermDeliveryRead}, auth.ModeAny)
	if err != nil {
		return nil, err
	}

	reader := p.uow.Create()
	var scope *int64
	if !principal.IsSuperAdmin() {
		branch, err := reader.Branches().GetEmployeeBranch(ctx, userID)
		if err != nil {
			return nil, err
		}
		scope = &branch.ID
	}

	logs, err := reader.BranchLogs().List(ctx, scope)
	if err != nil {
		return nil, internal.NewInternalError("failed to list branch logs", err)
	}
	return logs, nil
}

func resultingStatus(t model.ScanType, readyToPickup bool) model.DeliveryStatus {
	switch {
	case readyToPickup:
		return model.StatusReadyToPickupAtBranch
	case t == model.ScanIn:
		return model.StatusArrivedAtBranch
	default:
		return model.StatusDepartedFromBranch
	}
}

func isScannable(s model.DeliveryStatus) bool {
	for _, src := range shipment.BranchScanSources {
		if s == src {
			return true
		}
	}
	return false
}

func joinStatuses(list []model.DeliveryStatus) string {
	parts := make([]string, len(list))
	for i, s := range list {
		parts[i] = string(s)
	}
	return strings.Join(parts, ", ")
}
