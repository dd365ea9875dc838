package payment

import (
	"strings"
	"time"

	"github.com/frahmantamala/courier-fulfillment/internal"
	"github.com/frahmantamala/courier-fulfillment/internal/core/common/validation"
	model "github.com/frahmantamala/courier-fulfillment/internal/core/datamodel/shipment"
)

// WebhookPayload is the invoice callback body sent by the payment gateway.
type WebhookPayload struct {
	ID            string     `json:"id"`
	ExternalID    string     `json:"external_id"`
	Status        string     `json:"status"`
	Amount        float64    `json:"amount"`
	PaidAmount    float64    `json:"paid_amount"`
	PaymentMethod string     `json:"payment_method"`
	PaidAt        *time.Time `json:"paid_at,omitempty"`
	PayerEmail    string     `json:"payer_email"`
	Currency      string     `json:"currency"`
	MerchantName  string     `json:"merchant_name"`
}

func (p WebhookPayload) PaymentStatus() model.PaymentStatus {
	return model.PaymentStatus(strings.ToUpper(strings.TrimSpace(p.Status)))
}

func (p WebhookPayload) Validate() error {
	v := validation.NewValidator()

	v.Field("id", strings.TrimSpace(p.ID)).Required()
	v.Field("external_id", strings.TrimSpace(p.ExternalID)).Required()
	v.Field("status", p.PaymentStatus()).
		Custom(func(value interface{}) *internal.AppError {
			if s, _ := value.(model.PaymentStatus); !s.Valid() {
				return internal.NewValidationFieldError("status",
					"status must be one of PENDING, PAID, SETTLED, EXPIRED, FAILED", internal.ErrCodeValidationFailed)
			}
			return nil
		})

	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

// CallbackResponse is the acknowledgement body the gateway expects.
type CallbackResponse struct {
	Status  string `json:"status"`
	Message string `json:"message"`
}
