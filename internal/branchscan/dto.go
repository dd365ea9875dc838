package branchscan

import (
	"strings"

	"github.com/frahmantamala/courier-fulfillment/internal"
	"github.com/frahmantamala/courier-fulfillment/internal/core/common/validation"
	model "github.com/frahmantamala/courier-fulfillment/internal/core/datamodel/shipment"
)

type ScanDTO struct {
	TrackingNumber  string         `json:"tracking_number"`
	Type            model.ScanType `json:"type"`
	IsReadyToPickup bool           `json:"is_ready_to_pickup"`
}

func (dto ScanDTO) Validate() error {
	v := validation.NewValidator()

	v.Field("tracking_number", strings.TrimSpace(dto.TrackingNumber)).
		Required().
		MaxLength(64)

	v.Field("type", dto.Type).
		Custom(func(value interface{}) *internal.AppError {
			if t, _ := value.(model.ScanType); !t.Valid() {
				return internal.NewValidationFieldError("type", "type must be IN or OUT", internal.ErrCodeValidationFailed)
			}
			return nil
		})

	if err := v.Validate(); err != nil {
		return err
	}
	return nil
}

type ScanRequest struct {
	TrackingNumber  string
	Type            model.ScanType
	IsReadyToPickup bool
	UserID          int64
}
