package payment

import (
	"time"
)

const (
	StatusPending = "PENDING"
	StatusPaid    = "PAID"
	StatusSettled = "SETTLED"
	StatusExpired = "EXPIRED"
	StatusFailed  = "FAILED"
)

type Payment struct {
	ID             int64     `json:"id" gorm:"primaryKey"`
	ShipmentID     int64     `json:"shipment_id" gorm:"column:shipment_id;not null;uniqueIndex"`
	ExternalID     string    `json:"external_id" gorm:"column:external_id;not null;uniqueIndex"`
	InvoiceID      string    `json:"invoice_id" gorm:"column:invoice_id;not null"`
	Status         string    `json:"status" gorm:"column:status;size:20;not null"`
	PaymentMethod  *string   `json:"payment_method,omitempty" gorm:"column:payment_method"`
	InvoiceURL     string    `json:"invoice_url" gorm:"column:invoice_url;not null"`
	ExpirationDate time.Time `json:"expiration_date" gorm:"column:expiration_date;not null;index"`
	CreatedAt      time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`
}
