package shipment

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/courier-fulfillment/internal"
	"github.com/frahmantamala/courier-fulfillment/internal/auth"
	model "github.com/frahmantamala/courier-fulfillment/internal/core/datamodel/shipment"
	"github.com/frahmantamala/courier-fulfillment/internal/core/store"
	"github.com/frahmantamala/courier-fulfillment/internal/storage"
)

var courierRules = map[Action]ActionRule{
	ActionPick: {
		From:        []model.DeliveryStatus{model.StatusReadyToPickup},
		To:          model.StatusWaitingPickup,
		Description: "Shipment assigned to courier #%d for pickup",
	},
	ActionPickup: {
		From:        []model.DeliveryStatus{model.StatusWaitingPickup},
		To:          model.StatusPickedUp,
		Bucket:      storage.BucketPickupProof,
		Description: "Shipment picked up by courier #%d",
	},
	ActionDeliverToBranch: {
		From:        []model.DeliveryStatus{model.StatusPickedUp, model.StatusDepartedFromBranch},
		To:          model.StatusInTransit,
		Description: "Shipment in transit to branch with courier #%d",
	},
	ActionPickFromBranch: {
		From:        []model.DeliveryStatus{model.StatusReadyToPickupAtBranch},
		To:          model.StatusReadyToDeliver,
		Description: "Shipment collected from branch by courier #%d",
	},
	ActionPickupFromBranch: {
		From:        []model.DeliveryStatus{model.StatusReadyToDeliver, model.StatusReadyToPickupAtBranch},
		To:          model.StatusOnTheWayToAddress,
		Description: "Shipment on the way to the recipient with courier #%d",
	},
	ActionDeliverToCustomer: {
		From:        []model.DeliveryStatus{model.StatusOnTheWayToAddress, model.StatusOnTheWay},
		To:          model.StatusDelivered,
		Bucket:      storage.BucketReceiptProof,
		Description: "Shipment delivered to the recipient by courier #%d",
	},
}

// Rule returns the source statuses, target and proof bucket of a courier action.
func Rule(action Action) (ActionRule, bool) {
	r, ok := courierRules[action]
	return r, ok
}

// CourierService moves paid shipments through pickup and last-mile delivery.
type CourierService struct {
	uow      store.UnitOfWorkFactory
	authz    Authorizer
	engine   *Engine
	uploader storage.Uploader
	logger   *slog.Logger
}

func NewCourierService(uow store.UnitOfWorkFactory, authz Authorizer, engine *Engine, uploader storage.Uploader, logger *slog.Logger) *CourierService {
	return &CourierService{
		uow:      uow,
		authz:    authz,
		engine:   engine,
		uploader: uploader,
		logger:   logger,
	}
}

func (c *CourierService) FindAll(ctx context.Context, userID int64) ([]model.Shipment, error) {
	if err := c.authz.Check(ctx, userID, []string{auth.PermDeliveryRead}, auth.ModeAny); err != nil {
		return nil, err
	}

	shipments, err := c.uow.Create().Shipments().ListByDeliveryStatus(ctx, CourierStatuses)
	if err != nil {
		c.logger.ErrorContext(ctx, "failed to list courier shipments", "error", err, "user_id", userID)
		return nil, internal.NewInternalError("failed to list courier shipments", err)
	}
	return shipments, nil
}

func (c *CourierService) Pick(ctx context.Context, trackingNumber string, userID int64) (*ActionResponse, error) {
	return c.Perform(ctx, ActionPick, trackingNumber, userID, nil)
}

func (c *CourierService) Pickup(ctx context.Context, trackingNumber string, userID int64, proof []byte) (*ActionResponse, error) {
	return c.Perform(ctx, ActionPickup, trackingNumber, userID, proof)
}

func (c *CourierService) DeliverToBranch(ctx context.Context, trackingNumber string, userID int64) (*ActionResponse, error) {
	return c.Perform(ctx, ActionDeliverToBranch, trackingNumber, userID, nil)
}

func (c *CourierService) PickFromBranch(ctx context.Context, trackingNumber string, userID int64) (*ActionResponse, error) {
	return c.Perform(ctx, ActionPickFromBranch, trackingNumber, userID, nil)
}

func (c *CourierService) PickupFromBranch(ctx context.Context, trackingNumber string, userID int64) (*ActionResponse, error) {
	return c.Perform(ctx, ActionPickupFromBranch, trackingNumber, userID, nil)
}

func (c *CourierService) DeliverToCustomer(ctx context.Context, trackingNumber string, userID int64, proof []byte) (*ActionResponse, error) {
	return c.Perform(ctx, ActionDeliverToCustomer, trackingNumber, userID, proof)
}

// Perform runs one courier action. The status write is a compare-and-set on
// the status read here, so two couriers racing on a parcel cannot both win.
func (c *CourierService) Perform(ctx context.Context, action Action, trackingNumber string, userID int64, proof []byte) (*ActionResponse, error) {
	rule, ok := courierRules[action]
	if !ok {
		return nil, internal.NewValidationError(fmt.Sprintf("unknown courier action %q", action), internal.ErrCodeValidationFailed)
	}

	if err := c.authz.Check(ctx, userID, []string{auth.PermDeliveryUpdate}, auth.ModeAny); err != nil {
		return nil, err
	}

	if rule.RequiresProof() && len(proof) == 0 {
		return nil, internal.NewValidationFieldError("proof_image", "proof image is required", internal.ErrCodeProofRequired)
	}

	reader := c.uow.Create()
	branch, err := reader.Branches().GetEmployeeBranch(ctx, userID)
	if err != nil {
		return nil, err
	}

	sh, err := reader.Shipments().GetByTrackingNumber(ctx, trackingNumber)
	if err != nil {
		return nil, err
	}

	current := sh.DeliveryStatus
	if !sh.PaymentStatus.IsPaid() || !rule.Allows(current) {
		c.logger.InfoContext(ctx, "courier action rejected",
			"action", action,
			"tracking_number", trackingNumber,
			"delivery_status", current)
		return nil, internal.NewInvalidStateError(
			fmt.Sprintf("Shipment %s cannot move from %q to %s", trackingNumber, current, rule.To),
			internal.ErrCodeInvalidStatus)
	}

	var proofURL string
	if rule.RequiresProof() {
		proofURL, err = c.uploader.Upload(ctx, proof, rule.Bucket, "")
		if err != nil {
			c.logger.ErrorContext(ctx, "failed to upload proof", "error", err, "tracking_number", trackingNumber)
			return nil, internal.NewUpstreamError("Failed to upload proof image", internal.ErrCodeStorageFailed, err)
		}
	}

	var change *Change
	err = store.WithinTx(ctx, c.uow, func(uow store.UnitOfWork) error {
		change, err = c.engine.Apply(ctx, uow, TransitionRequest{
			ShipmentID:  sh.ID,
			To:          rule.To,
			Actor:       &userID,
			Branch:      &branch.ID,
			Description: fmt.Sprintf(rule.Description, userID),
			From:        &current,
		})
		if err != nil {
			return err
		}

		switch rule.Bucket {
		case storage.BucketPickupProof:
			return uow.Shipments().SetPickupProof(ctx, sh.ID, proofURL)
		case storage.BucketReceiptProof:
			return uow.Shipments().SetReceiptProof(ctx, sh.ID, proofURL)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	c.engine.Announce(ctx, change)

	c.logger.InfoContext(ctx, "courier action applied",
		"action", action,
		"tracking_number", trackingNumber,
		"from", current,
		"to", rule.To,
		"user_id", userID,
		"branch_id", branch.ID)

	return &ActionResponse{
		Message:        fmt.Sprintf("Shipment %s is now %s", trackingNumber, rule.To),
		ShipmentID:     sh.ID,
		TrackingNumber: trackingNumber,
		DeliveryStatus: rule.To,
		ProofURL:       proofURL,
	}, nil
}
