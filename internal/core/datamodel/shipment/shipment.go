package shipment

import (
	"time"

	"github.com/frahmantamala/courier-fulfillment/internal/core/datamodel/branch"
	"github.com/frahmantamala/courier-fulfillment/internal/core/datamodel/payment"
	"github.com/frahmantamala/courier-fulfillment/internal/core/datamodel/user"
)

type Shipment struct {
	ID             int64          `json:"id" gorm:"primaryKey"`
	TrackingNumber *string        `json:"tracking_number,omitempty" gorm:"column:tracking_number;uniqueIndex"`
	PaymentStatus  PaymentStatus  `json:"payment_status" gorm:"column:payment_status;size:20;not null"`
	DeliveryStatus DeliveryStatus `json:"delivery_status" gorm:"column:delivery_status;size:50;not null;default:''"`
	Distance       float64        `json:"distance" gorm:"column:distance;not null"`
	Price          int64          `json:"price" gorm:"column:price;not null"`
	QRCodeImage    *string        `json:"qr_code_image,omitempty" gorm:"column:qr_code_image"`
	CreatedAt      time.Time      `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time      `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`

	Detail    *Detail          `json:"shipment_detail,omitempty" gorm:"foreignKey:ShipmentID"`
	Payment   *payment.Payment `json:"payment,omitempty" gorm:"foreignKey:ShipmentID"`
	Histories []History        `json:"shipment_history,omitempty" gorm:"foreignKey:ShipmentID"`
}

// Detail is owned 1:1 by a Shipment and is immutable after booking except
// for the courier proof images.
type Detail struct {
	ID                   int64     `json:"id" gorm:"primaryKey"`
	ShipmentID           int64     `json:"shipment_id" gorm:"column:shipment_id;not null;uniqueIndex"`
	UserID               int64     `json:"user_id" gorm:"column:user_id;not null;index"`
	PickupAddressID      int64     `json:"pickup_address_id" gorm:"column:pickup_address_id;not null"`
	DestinationAddress   string    `json:"destination_address" gorm:"column:destination_address;not null"`
	RecipientName        string    `json:"recipient_name" gorm:"column:recipient_name;not null"`
	RecipientPhone       string    `json:"recipient_phone" gorm:"column:recipient_phone;not null"`
	Weight               int64     `json:"weight" gorm:"column:weight;not null"`
	PackageType          string    `json:"package_type" gorm:"column:package_type;not null"`
	DeliveryType         string    `json:"delivery_type" gorm:"column:delivery_type;not null"`
	DestinationLatitude  float64   `json:"destination_latitude" gorm:"column:destination_latitude"`
	DestinationLongitude float64   `json:"destination_longitude" gorm:"column:destination_longitude"`
	BasePrice            int64     `json:"base_price" gorm:"column:base_price;not null"`
	WeightPrice          int64     `json:"weight_price" gorm:"column:weight_price;not null"`
	DistancePrice        int64     `json:"distance_price" gorm:"column:distance_price;not null"`
	PickupProof          *string   `json:"pickup_proof,omitempty" gorm:"column:pickup_proof"`
	ReceiptProof         *string   `json:"receipt_proof,omitempty" gorm:"column:receipt_proof"`
	CreatedAt            time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
	UpdatedAt            time.Time `json:"updated_at" gorm:"column:updated_at;autoUpdateTime"`

	User          *user.User    `json:"user,omitempty" gorm:"foreignKey:UserID"`
	PickupAddress *user.Address `json:"pickup_address,omitempty" gorm:"foreignKey:PickupAddressID"`
}

func (Detail) TableName() string {
	return "shipment_details"
}

// History is append-only. Status holds either a delivery or a payment status.
type History struct {
	ID          int64     `json:"id" gorm:"primaryKey"`
	ShipmentID  int64     `json:"shipment_id" gorm:"column:shipment_id;not null;index"`
	Status      string    `json:"status" gorm:"column:status;size:50;not null"`
	Description string    `json:"description" gorm:"column:description;not null"`
	UserID      *int64    `json:"user_id,omitempty" gorm:"column:user_id;index"`
	BranchID    *int64    `json:"branch_id,omitempty" gorm:"column:branch_id"`
	CreatedAt   time.Time `json:"created_at" gorm:"column:created_at;autoCreateTime"`
}

func (History) TableName() string {
	return "shipment_histories"
}

type BranchLog struct {
	ID              int64          `json:"id" gorm:"primaryKey"`
	ShipmentID      int64          `json:"shipment_id" gorm:"column:shipment_id;not null;index"`
	BranchID        int64          `json:"branch_id" gorm:"column:branch_id;not null;index:idx_branch_logs_tracking_branch,priority:2"`
	TrackingNumber  string         `json:"tracking_number" gorm:"column:tracking_number;not null;index:idx_branch_logs_tracking_branch,priority:1"`
	Type            ScanType       `json:"type" gorm:"column:type;size:3;not null"`
	Status          DeliveryStatus `json:"status" gorm:"column:status;size:50;not null"`
	Description     string         `json:"description" gorm:"column:description;not null"`
	ScannedByUserID int64          `json:"scanned_by_user_id" gorm:"column:scanned_by_user_id;not null"`
	ScanTime        time.Time      `json:"scan_time" gorm:"column:scan_time;not null"`
	CreatedAt       time.Time      `json:"created_at" gorm:"column:created_at;autoCreateTime"`

	Shipment *Shipment      `json:"shipment,omitempty" gorm:"foreignKey:ShipmentID"`
	Branch   *branch.Branch `json:"branch,omitempty" gorm:"foreignKey:BranchID"`
}

func (BranchLog) TableName() string {
	return "shipment_branch_logs"
}
