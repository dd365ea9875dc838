package events

import (
	"time"

	"github.com/google/uuid"
)

const (
	EventTypeShipmentStatusChanged = "shipment.status_changed"
	EventTypePaymentStatusChanged  = "payment.status_changed"
)

// Types lists every event the service emits, for forwarders that relay all of them.
var Types = []string{EventTypeShipmentStatusChanged, EventTypePaymentStatusChanged}

type ShipmentStatusChangedEvent struct {
	BaseEvent
	ShipmentID     int64  `json:"shipment_id"`
	TrackingNumber string `json:"tracking_number,omitempty"`
	From           string `json:"from"`
	To             string `json:"to"`
}

func NewShipmentStatusChangedEvent(shipmentID int64, trackingNumber, from, to string) *ShipmentStatusChangedEvent {
	return &ShipmentStatusChangedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypeShipmentStatusChanged,
			Timestamp: time.Now().UTC(),
			Data: map[string]interface{}{
				"shipment_id":     shipmentID,
				"tracking_number": trackingNumber,
				"from":            from,
				"to":              to,
			},
		},
		ShipmentID:     shipmentID,
		TrackingNumber: trackingNumber,
		From:           from,
		To:             to,
	}
}

type PaymentStatusChangedEvent struct {
	BaseEvent
	PaymentID  int64  `json:"payment_id"`
	ShipmentID int64  `json:"shipment_id"`
	ExternalID string `json:"external_id"`
	Status     string `json:"status"`
}

func NewPaymentStatusChangedEvent(paymentID, shipmentID int64, externalID, status string) *PaymentStatusChangedEvent {
	return &PaymentStatusChangedEvent{
		BaseEvent: BaseEvent{
			ID:        uuid.New().String(),
			Type:      EventTypePaymentStatusChanged,
			Timestamp: time.Now().UTC(),
			Data: map[string]interface{}{
				"payment_id":  paymentID,
				"shipment_id": shipmentID,
				"external_id": externalID,
				"status":      status,
			},
		},
		PaymentID:  paymentID,
		ShipmentID: shipmentID,
		ExternalID: externalID,
		Status:     status,
	}
}
