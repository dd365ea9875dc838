// Package storetest opens throwaway SQLite databases with the fulfillment
// schema and seeds the rows most tests need.
package storetest

import (
	"fmt"
	"sync/atomic"
	"time"

	"github.com/frahmantamala/courier-fulfillment/internal/core/datamodel/branch"
	"github.com/frahmantamala/courier-fulfillment/internal/core/datamodel/payment"
	"github.com/frahmantamala/courier-fulfillment/internal/core/datamodel/shipment"
	"github.com/frahmantamala/courier-fulfillment/internal/core/datamodel/user"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"
)

var seq atomic.Int64

// Open returns an in-memory database migrated with every model. The pool is
// capped at one connection so all statements see the same memory database.
func Open() (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{
		Logger: logger.Default.LogMode(logger.Silent),
		NowFunc: func() time.Time {
			return time.Now().UTC()
		},
	})
	if err != nil {
		return nil, err
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, err
	}
	sqlDB.SetMaxOpenConns(1)

	err = db.AutoMigrate(
		&user.Permission{},
		&user.Role{},
		&user.User{},
		&user.Address{},
		&branch.Branch{},
		&branch.EmployeeBranch{},
		&shipment.Shipment{},
		&shipment.Detail{},
		&payment.Payment{},
		&shipment.History{},
		&shipment.BranchLog{},
	)
	if err != nil {
		return nil, err
	}
	return db, nil
}

// Fixtures seeds rows directly through gorm.
type Fixtures struct {
	DB *gorm.DB
}

func (f Fixtures) Role(name string, permissions ...string) *user.Role {
	role := &user.Role{Name: name}
	for _, p := range permissions {
		perm := user.Permission{Name: p}
		must(f.DB.Where(user.Permission{Name: p}).FirstOrCreate(&perm).Error)
		role.Permissions = append(role.Permissions, perm)
	}
	must(f.DB.Create(role).Error)
	return role
}

func (f Fixtures) User(role *user.Role) *user.User {
	n := seq.Add(1)
	u := &user.User{
		Email:        fmt.Sprintf("user%d@example.com", n),
		Name:         fmt.Sprintf("User %d", n),
		PasswordHash: "x",
		RoleID:       role.ID,
		IsActive:     true,
	}
	must(f.DB.Omit("Role").Create(u).Error)
	return u
}

func (f Fixtures) Branch(name string) *branch.Branch {
	b := &branch.Branch{Name: name, Address: name + " street"}
	must(f.DB.Create(b).Error)
	return b
}

func (f Fixtures) Assign(u *user.User, b *branch.Branch) {
	must(f.DB.Omit("Branch").Create(&branch.EmployeeBranch{UserID: u.ID, BranchID: b.ID}).Error)
}

func (f Fixtures) Address(u *user.User, lat, lng float64) *user.Address {
	a := &user.Address{
		UserID:    u.ID,
		Label:     "Home",
		Address:   "Jl. Sudirman No. 1, Jakarta",
		Latitude:  &lat,
		Longitude: &lng,
	}
	must(f.DB.Omit("User").Create(a).Error)
	return a
}

// Shipment books a pending shipment with detail and payment for owner.
func (f Fixtures) Shipment(owner *user.User, addr *user.Address) (*shipment.Shipment, *payment.Payment) {
	s := &shipment.Shipment{
		PaymentStatus: shipment.PaymentPending,
		Distance:      12.5,
		Price:         15000,
	}
	must(f.DB.Omit("Detail", "Payment", "Histories").Create(s).Error)

	d := &shipment.Detail{
		ShipmentID:         s.ID,
		UserID:             owner.ID,
		PickupAddressID:    addr.ID,
		DestinationAddress: "Jl. Merdeka No. 10, Bandung",
		RecipientName:      "Budi Santoso",
		RecipientPhone:     "081234567890",
		Weight:             1000,
		PackageType:        "box",
		DeliveryType:       "reguler",
		BasePrice:          10000,
		WeightPrice:        5000,
	}
	must(f.DB.Omit("User", "PickupAddress").Create(d).Error)

	p := &payment.Payment{
		ShipmentID:     s.ID,
		ExternalID:     fmt.Sprintf("INV-%d-%d", time.Now().UnixMilli(), s.ID),
		InvoiceID:      fmt.Sprintf("inv_%d", s.ID),
		Status:         payment.StatusPending,
		InvoiceURL:     "https://checkout.example.com/" + fmt.Sprint(s.ID),
		ExpirationDate: time.Now().Add(24 * time.Hour).UTC(),
	}
	must(f.DB.Create(p).Error)

	s.Detail = d
	return s, p
}

// Paid moves s past payment with the given tracking number and delivery status.
func (f Fixtures) Paid(s *shipment.Shipment, trackingNumber string, status shipment.DeliveryStatus) {
	must(f.DB.Model(&shipment.Shipment{}).Where("id = ?", s.ID).Updates(map[string]interface{}{
		"tracking_number": trackingNumber,
		"payment_status":  shipment.PaymentPaid,
		"delivery_status": status,
	}).Error)
	must(f.DB.Model(&payment.Payment{}).Where("shipment_id = ?", s.ID).Update("status", payment.StatusPaid).Error)
	s.TrackingNumber = &trackingNumber
	s.PaymentStatus = shipment.PaymentPaid
	s.DeliveryStatus = status
}

func must(err error) {
	if err != nil {
		panic(err)
	}
}
