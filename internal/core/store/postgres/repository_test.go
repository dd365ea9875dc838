package postgres_test

import (
	"context"
	"errors"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"
	"gorm.io/gorm"

	"github.com/frahmantamala/courier-fulfillment/internal"
	"github.com/frahmantamala/courier-fulfillment/internal/core/datamodel/payment"
	"github.com/frahmantamala/courier-fulfillment/internal/core/datamodel/shipment"
	"github.com/frahmantamala/courier-fulfillment/internal/core/datamodel/user"
	"github.com/frahmantamala/courier-fulfillment/internal/core/store"
	"github.com/frahmantamala/courier-fulfillment/internal/core/store/postgres"
	"github.com/frahmantamala/courier-fulfillment/internal/core/store/storetest"
)

var _ = ginkgo.Describe("Gorm repositories", func() {
	var (
		ctx   context.Context
		db    *gorm.DB
		fx    storetest.Fixtures
		owner *user.User
		addr  *user.Address
	)

	ginkgo.BeforeEach(func() {
		var err error
		ctx = context.Background()
		db, err = storetest.Open()
		gomega.Expect(err).ToNot(gomega.HaveOccurred())

		fx = storetest.Fixtures{DB: db}
		owner = fx.User(fx.Role("Customer", "shipments.create"))
		addr = fx.Address(owner, -6.2, 106.8)
	})

	ginkgo.Describe("ShipmentRepository", func() {
		ginkgo.It("maps a missing row to the shipment NotFound error", func() {
			repo := postgres.NewShipmentRepository(db)

			_, err := repo.GetByID(ctx, 999)

			gomega.Expect(errors.Is(err, internal.ErrShipmentNotFound)).To(gomega.BeTrue())
		})

		ginkgo.It("loads detail, payment and ordered histories", func() {
			s, _ := fx.Shipment(owner, addr)
			histories := postgres.NewHistoryRepository(db)
			gomega.Expect(histories.Append(ctx, &shipment.History{ShipmentID: s.ID, Status: "PENDING", Description: "first"})).To(gomega.Succeed())
			gomega.Expect(histories.Append(ctx, &shipment.History{ShipmentID: s.ID, Status: "PAID", Description: "second"})).To(gomega.Succeed())

			got, err := postgres.NewShipmentRepository(db).GetWithRelations(ctx, s.ID)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(got.Detail).ToNot(gomega.BeNil())
			gomega.Expect(got.Detail.PickupAddress.ID).To(gomega.Equal(addr.ID))
			gomega.Expect(got.Payment).ToNot(gomega.BeNil())
			gomega.Expect(got.Histories).To(gomega.HaveLen(2))
			gomega.Expect(got.Histories[0].Description).To(gomega.Equal("first"))
		})

		ginkgo.It("lists only shipments owned by the user", func() {
			other := fx.User(fx.Role("Other", "shipments.create"))
			mine, _ := fx.Shipment(owner, addr)
			fx.Shipment(other, fx.Address(other, 1, 1))

			got, err := postgres.NewShipmentRepository(db).ListByOwner(ctx, owner.ID)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(got).To(gomega.HaveLen(1))
			gomega.Expect(got[0].ID).To(gomega.Equal(mine.ID))
		})

		ginkgo.It("filters paid shipments by history participant", func() {
			courier := fx.User(fx.Role("Courier", "delivery.update"))
			touched, _ := fx.Shipment(owner, addr)
			untouched, _ := fx.Shipment(owner, addr)
			pending, _ := fx.Shipment(owner, addr)
			fx.Paid(touched, "KN1", shipment.StatusReadyToPickup)
			fx.Paid(untouched, "KN2", shipment.StatusReadyToPickup)
			_ = pending
			histories := postgres.NewHistoryRepository(db)
			gomega.Expect(histories.Append(ctx, &shipment.History{ShipmentID: touched.ID, Status: "WAITING_PICKUP", Description: "picked", UserID: &courier.ID})).To(gomega.Succeed())
			repo := postgres.NewShipmentRepository(db)

			all, err := repo.ListPaid(ctx, nil)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(all).To(gomega.HaveLen(2))

			scoped, err := repo.ListPaid(ctx, &courier.ID)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(scoped).To(gomega.HaveLen(1))
			gomega.Expect(scoped[0].ID).To(gomega.Equal(touched.ID))
		})

		ginkgo.Context("UpdateDeliveryStatus", func() {
			ginkgo.It("writes when the expected status matches", func() {
				s, _ := fx.Shipment(owner, addr)
				fx.Paid(s, "KN10", shipment.StatusReadyToPickup)
				repo := postgres.NewShipmentRepository(db)
				from := shipment.StatusReadyToPickup

				gomega.Expect(repo.UpdateDeliveryStatus(ctx, s.ID, &from, shipment.StatusWaitingPickup)).To(gomega.Succeed())

				got, _ := repo.GetByID(ctx, s.ID)
				gomega.Expect(got.DeliveryStatus).To(gomega.Equal(shipment.StatusWaitingPickup))
			})

			ginkgo.It("reports a conflict when the status moved on", func() {
				s, _ := fx.Shipment(owner, addr)
				fx.Paid(s, "KN11", shipment.StatusPickedUp)
				from := shipment.StatusReadyToPickup

				err := postgres.NewShipmentRepository(db).UpdateDeliveryStatus(ctx, s.ID, &from, shipment.StatusWaitingPickup)

				gomega.Expect(errors.Is(err, internal.ErrStatusConflict)).To(gomega.BeTrue())
			})

			ginkgo.It("reports NotFound for an unknown shipment", func() {
				err := postgres.NewShipmentRepository(db).UpdateDeliveryStatus(ctx, 404, nil, shipment.StatusWaitingPickup)

				gomega.Expect(errors.Is(err, internal.ErrShipmentNotFound)).To(gomega.BeTrue())
			})
		})

		ginkgo.It("assigns the tracking number only once", func() {
			s, _ := fx.Shipment(owner, addr)
			repo := postgres.NewShipmentRepository(db)

			first, err := repo.MarkPaid(ctx, s.ID, "KN77", "http://files/qr/KN77.png", shipment.PaymentPaid)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			second, err := repo.MarkPaid(ctx, s.ID, "KN78", "http://files/qr/KN78.png", shipment.PaymentSettled)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())

			gomega.Expect(first).To(gomega.BeTrue())
			gomega.Expect(second).To(gomega.BeFalse())
			got, _ := repo.GetByID(ctx, s.ID)
			gomega.Expect(*got.TrackingNumber).To(gomega.Equal("KN77"))
			gomega.Expect(got.DeliveryStatus).To(gomega.Equal(shipment.StatusReadyToPickup))
		})

		ginkgo.It("guards payment status changes", func() {
			s, _ := fx.Shipment(owner, addr)
			repo := postgres.NewShipmentRepository(db)

			ok, err := repo.SetPaymentStatusIf(ctx, s.ID, shipment.PaymentExpired, shipment.PaymentPending)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(ok).To(gomega.BeTrue())

			ok, err = repo.SetPaymentStatusIf(ctx, s.ID, shipment.PaymentExpired, shipment.PaymentPending)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(ok).To(gomega.BeFalse())

			ok, err = repo.SetPaymentStatusUnless(ctx, s.ID, shipment.PaymentExpired, shipment.PaymentPaid)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(ok).To(gomega.BeFalse())
		})

		ginkgo.It("records proof images on the detail row", func() {
			s, _ := fx.Shipment(owner, addr)
			repo := postgres.NewShipmentRepository(db)

			gomega.Expect(repo.SetPickupProof(ctx, s.ID, "http://files/pickup.png")).To(gomega.Succeed())
			gomega.Expect(repo.SetReceiptProof(ctx, 404, "http://files/receipt.png")).To(gomega.MatchError(internal.ErrDetailNotFound))

			d, err := repo.GetDetail(ctx, s.ID)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(*d.PickupProof).To(gomega.Equal("http://files/pickup.png"))
		})
	})

	ginkgo.Describe("PaymentRepository", func() {
		ginkgo.It("only moves a payment out of the expected status", func() {
			_, p := fx.Shipment(owner, addr)
			repo := postgres.NewPaymentRepository(db)

			ok, err := repo.SetStatusIf(ctx, p.ID, payment.StatusPending, payment.StatusExpired)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(ok).To(gomega.BeTrue())

			ok, err = repo.SetStatusIf(ctx, p.ID, payment.StatusPending, payment.StatusExpired)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(ok).To(gomega.BeFalse())
		})

		ginkgo.It("updates status and method", func() {
			_, p := fx.Shipment(owner, addr)
			repo := postgres.NewPaymentRepository(db)
			method := "BANK_TRANSFER"

			gomega.Expect(repo.UpdateStatus(ctx, p.ID, payment.StatusPaid, &method)).To(gomega.Succeed())

			got, err := repo.GetByExternalID(ctx, p.ExternalID)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(got.Status).To(gomega.Equal(payment.StatusPaid))
			gomega.Expect(*got.PaymentMethod).To(gomega.Equal(method))
		})

		ginkgo.It("lists pending payments past their expiry", func() {
			_, overdue := fx.Shipment(owner, addr)
			fx.Shipment(owner, addr)
			gomega.Expect(db.Model(&payment.Payment{}).Where("id = ?", overdue.ID).
				Update("expiration_date", time.Now().Add(-time.Minute).UTC()).Error).To(gomega.Succeed())

			got, err := postgres.NewPaymentRepository(db).ListOverduePending(ctx, time.Now().UTC(), 10)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(got).To(gomega.HaveLen(1))
			gomega.Expect(got[0].ID).To(gomega.Equal(overdue.ID))
		})
	})

	ginkgo.Describe("Branch repositories", func() {
		ginkgo.It("resolves the employee branch", func() {
			staff := fx.User(fx.Role("Staff", "delivery.update"))
			b := fx.Branch("Bandung Hub")
			fx.Assign(staff, b)
			repo := postgres.NewBranchRepository(db)

			got, err := repo.GetEmployeeBranch(ctx, staff.ID)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(got.Name).To(gomega.Equal("Bandung Hub"))

			_, err = repo.GetEmployeeBranch(ctx, owner.ID)
			gomega.Expect(errors.Is(err, internal.ErrBranchNotFound)).To(gomega.BeTrue())
		})

		ginkgo.It("returns the most recent scan per branch", func() {
			staff := fx.User(fx.Role("Staff", "delivery.update"))
			b := fx.Branch("Jakarta Hub")
			s, _ := fx.Shipment(owner, addr)
			logs := postgres.NewBranchLogRepository(db)
			now := time.Now().UTC()

			none, err := logs.Latest(ctx, "KN1", b.ID)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(none).To(gomega.BeNil())

			for i, typ := range []shipment.ScanType{shipment.ScanIn, shipment.ScanOut} {
				gomega.Expect(logs.Create(ctx, &shipment.BranchLog{
					ShipmentID: s.ID, BranchID: b.ID, TrackingNumber: "KN1", Type: typ,
					Status: shipment.StatusArrivedAtBranch, Description: "scan",
					ScannedByUserID: staff.ID, ScanTime: now.Add(time.Duration(i) * time.Second),
				})).To(gomega.Succeed())
			}

			latest, err := logs.Latest(ctx, "KN1", b.ID)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(latest.Type).To(gomega.Equal(shipment.ScanOut))

			scoped, err := logs.List(ctx, &b.ID)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(scoped).To(gomega.HaveLen(2))
			gomega.Expect(scoped[0].Branch.Name).To(gomega.Equal("Jakarta Hub"))
		})
	})

	ginkgo.Describe("UserRepository", func() {
		ginkgo.It("loads role permissions", func() {
			got, err := postgres.NewUserRepository(db).GetWithPermissions(ctx, owner.ID)

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(got.Role.Name).To(gomega.Equal("Customer"))
			gomega.Expect(got.Role.Permissions).To(gomega.HaveLen(1))
		})

		ginkgo.It("maps a missing address", func() {
			_, err := postgres.NewAddressRepository(db).GetByID(ctx, 404)

			gomega.Expect(errors.Is(err, internal.ErrAddressNotFound)).To(gomega.BeTrue())
		})
	})

	ginkgo.Describe("WithinTx", func() {
		ginkgo.It("rolls back every write when the callback fails", func() {
			s, _ := fx.Shipment(owner, addr)
			factory := postgres.NewUnitOfWorkFactory(db)
			boom := errors.New("boom")

			err := store.WithinTx(ctx, factory, func(uow store.UnitOfWork) error {
				if err := uow.Histories().Append(ctx, &shipment.History{ShipmentID: s.ID, Status: "X", Description: "tx"}); err != nil {
					return err
				}
				return boom
			})

			gomega.Expect(errors.Is(err, boom)).To(gomega.BeTrue())
			rows, err := postgres.NewHistoryRepository(db).ListByShipment(ctx, s.ID)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			gomega.Expect(rows).To(gomega.BeEmpty())
		})

		ginkgo.It("commits when the callback succeeds", func() {
			s, _ := fx.Shipment(owner, addr)
			factory := postgres.NewUnitOfWorkFactory(db)

			err := store.WithinTx(ctx, factory, func(uow store.UnitOfWork) error {
				return uow.Histories().Append(ctx, &shipment.History{ShipmentID: s.ID, Status: "X", Description: "tx"})
			})

			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			rows, _ := postgres.NewHistoryRepository(db).ListByShipment(ctx, s.ID)
			gomega.Expect(rows).To(gomega.HaveLen(1))
		})

		ginkgo.It("refuses to commit without a transaction", func() {
			uow := postgres.NewUnitOfWorkFactory(db).Create()

			gomega.Expect(uow.Commit(ctx)).To(gomega.MatchError(gorm.ErrInvalidTransaction))
		})
	})
})
