// Package shipment books parcels and moves them through the delivery state
// machine on behalf of senders and couriers.
package shipment

import (
	model "github.com/frahmantamala/courier-fulfillment/internal/core/datamodel/shipment"
)

var transitions = map[model.DeliveryStatus][]model.DeliveryStatus{
	model.StatusUnset:         {model.StatusReadyToPickup},
	model.StatusReadyToPickup: {model.StatusWaitingPickup},
	model.StatusWaitingPickup: {model.StatusPickedUp},
	model.StatusPickedUp:      {model.StatusInTransit},
	model.StatusInTransit: {
		model.StatusArrivedAtBranch,
		model.StatusDepartedFromBranch,
		model.StatusReadyToPickupAtBranch,
	},
	model.StatusArrivedAtBranch: {
		model.StatusArrivedAtBranch,
		model.StatusAtBranch,
		model.StatusDepartedFromBranch,
		model.StatusReadyToPickupAtBranch,
	},
	model.StatusAtBranch: {
		model.StatusArrivedAtBranch,
		model.StatusDepartedFromBranch,
		model.StatusReadyToPickupAtBranch,
	},
	model.StatusDepartedFromBranch: {
		model.StatusInTransit,
		model.StatusArrivedAtBranch,
		model.StatusDepartedFromBranch,
		model.StatusReadyToPickupAtBranch,
	},
	model.StatusReadyToPickupAtBranch: {model.StatusReadyToDeliver, model.StatusOnTheWayToAddress},
	model.StatusReadyToDeliver:        {model.StatusOnTheWayToAddress},
	model.StatusOnTheWayToAddress:     {model.StatusOnTheWay, model.StatusDelivered},
	model.StatusOnTheWay:              {model.StatusDelivered},
	model.StatusDelivered:             nil,
}

// CanTransition reports whether to may follow from in the delivery flow.
func CanTransition(from, to model.DeliveryStatus) bool {
	for _, next := range transitions[from] {
		if next == to {
			return true
		}
	}
	return false
}

func IsTerminal(s model.DeliveryStatus) bool {
	return s == model.StatusDelivered
}

// BranchScanSources are the statuses a parcel may hold when a branch scans it.
var BranchScanSources = []model.DeliveryStatus{
	model.StatusInTransit,
	model.StatusArrivedAtBranch,
	model.StatusAtBranch,
	model.StatusDepartedFromBranch,
}

// CourierStatuses are the statuses listed on the courier work queue.
var CourierStatuses = []model.DeliveryStatus{
	model.StatusReadyToPickup,
	model.StatusWaitingPickup,
	model.StatusPickedUp,
	model.StatusReadyToPickupAtBranch,
	model.StatusReadyToDeliver,
	model.StatusOnTheWayToAddress,
	model.StatusOnTheWay,
	model.StatusDelivered,
}

type Action string

const (
	ActionPick              Action = "pick"
	ActionPickup            Action = "pickup"
	ActionDeliverToBranch   Action = "deliver-to-branch"
	ActionPickFromBranch    Action = "pick-shipment-from-branch"
	ActionPickupFromBranch  Action = "pickup-shipment-from-branch"
	ActionDeliverToCustomer Action = "deliver-to-customer"
)

// CourierActions is every courier action in delivery order.
var CourierActions = []Action{
	ActionPick,
	ActionPickup,
	ActionDeliverToBranch,
	ActionPickFromBranch,
	ActionPickupFromBranch,
	ActionDeliverToCustomer,
}

// ActionRule describes one courier action. Bucket is set when the action
// needs a proof photo.
type ActionRule struct {
	From        []model.DeliveryStatus
	To          model.DeliveryStatus
	Bucket      string
	Description string
}

func (r ActionRule) RequiresProof() bool {
	return r.Bucket != ""
}

func (r ActionRule) Allows(current model.DeliveryStatus) bool {
	return containsStatus(r.From, current)
}

func containsStatus(list []model.DeliveryStatus, s model.DeliveryStatus) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
