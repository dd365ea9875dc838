package shipment

type DeliveryStatus string

const (
	StatusUnset                 DeliveryStatus = ""
	StatusReadyToPickup         DeliveryStatus = "READY_TO_PICKUP"
	StatusWaitingPickup         DeliveryStatus = "WAITING_PICKUP"
	StatusPickedUp              DeliveryStatus = "PICKED_UP"
	StatusInTransit             DeliveryStatus = "IN_TRANSIT"
	StatusArrivedAtBranch       DeliveryStatus = "ARRIVED_AT_BRANCH"
	StatusAtBranch              DeliveryStatus = "AT_BRANCH"
	StatusDepartedFromBranch    DeliveryStatus = "DEPARTED_FROM_BRANCH"
	StatusReadyToPickupAtBranch DeliveryStatus = "READY_TO_PICKUP_AT_BRANCH"
	StatusReadyToDeliver        DeliveryStatus = "READY_TO_DELIVER"
	StatusOnTheWayToAddress     DeliveryStatus = "ON_THE_WAY_TO_ADDRESS"
	StatusOnTheWay              DeliveryStatus = "ON_THE_WAY"
	StatusDelivered             DeliveryStatus = "DELIVERED"
)

type PaymentStatus string

const (
	PaymentPending PaymentStatus = "PENDING"
	PaymentPaid    PaymentStatus = "PAID"
	PaymentSettled PaymentStatus = "SETTLED"
	PaymentExpired PaymentStatus = "EXPIRED"
	PaymentFailed  PaymentStatus = "FAILED"
)

// IsPaid reports whether the gateway considers the money received.
func (s PaymentStatus) IsPaid() bool {
	return s == PaymentPaid || s == PaymentSettled
}

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentPending, PaymentPaid, PaymentSettled, PaymentExpired, PaymentFailed:
		return true
	}
	return false
}

type ScanType string

const (
	ScanIn  ScanType = "IN"
	ScanOut ScanType = "OUT"
)

func (t ScanType) Valid() bool {
	return t == ScanIn || t == ScanOut
}
