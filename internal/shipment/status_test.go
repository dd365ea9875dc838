package shipment_test

import (
	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	model "github.com/frahmantamala/courier-fulfillment/internal/core/datamodel/shipment"
	"github.com/frahmantamala/courier-fulfillment/internal/shipment"
	"github.com/frahmantamala/courier-fulfillment/internal/storage"
)

var _ = ginkgo.Describe("Delivery state machine", func() {
	ginkgo.DescribeTable("CanTransition",
		func(from, to model.DeliveryStatus, want bool) {
			gomega.Expect(shipment.CanTransition(from, to)).To(gomega.Equal(want))
		},
		ginkgo.Entry("payment opens the flow", model.StatusUnset, model.StatusReadyToPickup, true),
		ginkgo.Entry("courier accepts pickup", model.StatusReadyToPickup, model.StatusWaitingPickup, true),
		ginkgo.Entry("branch arrival from transit", model.StatusInTransit, model.StatusArrivedAtBranch, true),
		ginkgo.Entry("departure after arrival", model.StatusArrivedAtBranch, model.StatusDepartedFromBranch, true),
		ginkgo.Entry("re-arrival after departure", model.StatusDepartedFromBranch, model.StatusArrivedAtBranch, true),
		ginkgo.Entry("branch to customer hop", model.StatusReadyToPickupAtBranch, model.StatusOnTheWayToAddress, true),
		ginkgo.Entry("final delivery", model.StatusOnTheWayToAddress, model.StatusDelivered, true),
		ginkgo.Entry("skipping pickup", model.StatusReadyToPickup, model.StatusPickedUp, false),
		ginkgo.Entry("going backwards", model.StatusPickedUp, model.StatusWaitingPickup, false),
		ginkgo.Entry("leaving a delivered parcel", model.StatusDelivered, model.StatusOnTheWay, false),
	)

	ginkgo.It("treats only DELIVERED as terminal", func() {
		gomega.Expect(shipment.IsTerminal(model.StatusDelivered)).To(gomega.BeTrue())
		gomega.Expect(shipment.IsTerminal(model.StatusOnTheWay)).To(gomega.BeFalse())
	})

	ginkgo.It("keeps every courier rule inside the state machine", func() {
		for _, action := range []shipment.Action{
			shipment.ActionPick,
			shipment.ActionPickup,
			shipment.ActionDeliverToBranch,
			shipment.ActionPickFromBranch,
			shipment.ActionPickupFromBranch,
			shipment.ActionDeliverToCustomer,
		} {
			rule, ok := shipment.Rule(action)
			gomega.Expect(ok).To(gomega.BeTrue(), string(action))
			for _, from := range rule.From {
				gomega.Expect(shipment.CanTransition(from, rule.To)).To(gomega.BeTrue(), "%s: %s -> %s", action, from, rule.To)
			}
		}
	})

	ginkgo.It("asks for proof on pickup and final delivery only", func() {
		pickup, _ := shipment.Rule(shipment.ActionPickup)
		deliver, _ := shipment.Rule(shipment.ActionDeliverToCustomer)
		pick, _ := shipment.Rule(shipment.ActionPick)

		gomega.Expect(pickup.Bucket).To(gomega.Equal(storage.BucketPickupProof))
		gomega.Expect(deliver.Bucket).To(gomega.Equal(storage.BucketReceiptProof))
		gomega.Expect(pick.RequiresProof()).To(gomega.BeFalse())
	})
})
