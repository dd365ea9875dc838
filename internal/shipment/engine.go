package shipment

import (
	"context"
	"fmt"
	"log/slog"

	model "github.com/frahmantamala/courier-fulfillment/internal/core/datamodel/shipment"
	"github.com/frahmantamala/courier-fulfillment/internal/core/events"
	"github.com/frahmantamala/courier-fulfillment/internal/core/store"
)

type TransitionRequest struct {
	ShipmentID  int64
	To          model.DeliveryStatus
	Actor       *int64
	Branch      *int64
	Description string
	// From turns the write into a compare-and-set against the stored status.
	From *model.DeliveryStatus
}

// Change is what Apply did, kept so the caller can announce it after commit.
type Change struct {
	History        *model.History
	ShipmentID     int64
	TrackingNumber string
	From           model.DeliveryStatus
	To             model.DeliveryStatus
}

// Engine writes delivery statuses together with their audit row. It does not
// judge legality; callers check CanTransition or an ActionRule first.
type Engine struct {
	uow       store.UnitOfWorkFactory
	publisher events.Publisher
	logger    *slog.Logger
}

func NewEngine(uow store.UnitOfWorkFactory, publisher events.Publisher, logger *slog.Logger) *Engine {
	return &Engine{
		uow:       uow,
		publisher: publisher,
		logger:    logger.With("component", "status_engine"),
	}
}

func (e *Engine) Transition(ctx context.Context, req TransitionRequest) (*model.History, error) {
	var change *Change
	err := store.WithinTx(ctx, e.uow, func(uow store.UnitOfWork) error {
		var err error
		change, err = e.Apply(ctx, uow, req)
		return err
	})
	if err != nil {
		return nil, err
	}

	e.Announce(ctx, change)
	return change.History, nil
}

// Apply performs the transition inside the caller's unit of work.
func (e *Engine) Apply(ctx context.Context, uow store.UnitOfWork, req TransitionRequest) (*Change, error) {
	current, err := uow.Shipments().GetByID(ctx, req.ShipmentID)
	if err != nil {
		return nil, err
	}

	if req.Actor != nil {
		if _, err := uow.Users().GetByID(ctx, *req.Actor); err != nil {
			return nil, err
		}
	}
	if req.Branch != nil {
		if _, err := uow.Branches().GetByID(ctx, *req.Branch); err != nil {
			return nil, err
		}
	}

	if err := uow.Shipments().UpdateDeliveryStatus(ctx, req.ShipmentID, req.From, req.To); err != nil {
		return nil, err
	}

	description := req.Description
	if description == "" {
		description = fmt.Sprintf("Shipment status updated to %s", req.To)
	}

	h := &model.History{
		ShipmentID:  req.ShipmentID,
		Status:      string(req.To),
		Description: description,
		UserID:      req.Actor,
		BranchID:    req.Branch,
	}
	if err := uow.Histories().Append(ctx, h); err != nil {
		return nil, err
	}

	from := current.DeliveryStatus
	if req.From != nil {
		from = *req.From
	}

	c := &Change{
		History:    h,
		ShipmentID: req.ShipmentID,
		From:       from,
		To:         req.To,
	}
	if current.TrackingNumber != nil {
		c.TrackingNumber = *current.TrackingNumber
	}
	return c, nil
}

// Announce publishes a committed change. Publishing failures are logged only.
func (e *Engine) Announce(ctx context.Context, c *Change) {
	if e.publisher == nil || c == nil {
		return
	}

	event := events.NewShipmentStatusChangedEvent(c.ShipmentID, c.TrackingNumber, string(c.From), string(c.To))
	if err := e.publisher.Publish(ctx, event); err != nil {
		e.logger.WarnContext(ctx, "failed to publish status change",
			"shipment_id", c.ShipmentID,
			"to", c.To,
			"error", err)
	}
}
