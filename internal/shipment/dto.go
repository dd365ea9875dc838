package shipment

import (
	"regexp"
	"strings"

	"github.com/frahmantamala/courier-fulfillment/internal"
	"github.com/frahmantamala/courier-fulfillment/internal/core/common/validation"
	"github.com/frahmantamala/courier-fulfillment/internal/core/datamodel/payment"
	model "github.com/frahmantamala/courier-fulfillment/internal/core/datamodel/shipment"
	"github.com/frahmantamala/courier-fulfillment/internal/paymentgateway"
)

var (
	recipientNamePattern  = regexp.MustCompile(`^[a-zA-Z\s]+$`)
	recipientPhonePattern = regexp.MustCompile(`^(\+62|62|0)[0-9]{9,13}$`)
)

// CreateShipmentDTO is the booking request. Weight is in grams.
type CreateShipmentDTO struct {
	PickupAddressID    int64  `json:"pickup_address_id"`
	DestinationAddress string `json:"destination_address"`
	RecipientName      string `json:"recipient_name"`
	RecipientPhone     string `json:"recipient_phone"`
	Weight             int64  `json:"weight"`
	PackageType        string `json:"package_type"`
	DeliveryType       string `json:"delivery_type"`
}

func (dto *CreateShipmentDTO) Normalize() {
	dto.DestinationAddress = strings.TrimSpace(dto.DestinationAddress)
	dto.RecipientName = strings.TrimSpace(dto.RecipientName)
	dto.RecipientPhone = strings.TrimSpace(dto.RecipientPhone)
	dto.PackageType = strings.TrimSpace(dto.PackageType)
	dto.DeliveryType = strings.TrimSpace(dto.DeliveryType)
}

func (dto CreateShipmentDTO) Validate() error {
	v := validation.NewValidator()

	v.Field("pickup_address_id", dto.PickupAddressID).
		Required().
		Positive(internal.ErrCodeValidationFailed)

	v.Field("destination_address", dto.DestinationAddress).
		Required().
		MinLength(10).
		MaxLength(500)

	v.Field("recipient_name", dto.RecipientName).
		Required().
		MinLength(2).
		MaxLength(100).
		Pattern(recipientNamePattern, "recipient_name can only contain letters and spaces", internal.ErrCodeInvalidName)

	v.Field("recipient_phone", dto.RecipientPhone).
		Required().
		Pattern(recipientPhonePattern, "recipient_phone must be a valid Indonesian phone number", internal.ErrCodeInvalidPhone)

	v.Field("weight", dto.Weight).
		Required().
		Positive(internal.ErrCodeInvalidWeight)

	v.Field("package_type", dto.PackageType).
		Required().
		MinLength(2).
		MaxLength(50)

	v.Field("delivery_type", dto.DeliveryType).
		Required().
		MinLength(2).
		MaxLength(50)

	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

type CreateResult struct {
	Shipment *model.Shipment         `json:"shipment"`
	Payment  *payment.Payment        `json:"payment"`
	Invoice  *paymentgateway.Invoice `json:"invoice"`
}

// ActionResponse is returned by the courier endpoints.
type ActionResponse struct {
	Message        string               `json:"message"`
	ShipmentID     int64                `json:"shipment_id"`
	TrackingNumber string               `json:"tracking_number"`
	DeliveryStatus model.DeliveryStatus `json:"delivery_status"`
	ProofURL       string               `json:"proof_url,omitempty"`
}
