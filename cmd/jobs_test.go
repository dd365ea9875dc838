package cmd

import (
	"context"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/frahmantamala/courier-fulfillment/internal"
	datapayment "github.com/frahmantamala/courier-fulfillment/internal/core/datamodel/payment"
	"github.com/frahmantamala/courier-fulfillment/internal/core/store/postgres"
	"github.com/frahmantamala/courier-fulfillment/internal/core/store/storetest"
	"github.com/frahmantamala/courier-fulfillment/internal/jobs"
	"github.com/frahmantamala/courier-fulfillment/internal/notification"
)

type recordingSender struct {
	mu   sync.Mutex
	sent []notification.Message
}

func (s *recordingSender) Send(_ context.Context, msg notification.Message) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sent = append(s.sent, msg)
	return nil
}

func (s *recordingSender) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.sent)
}

var _ = ginkgo.Describe("in-process jobs", func() {
	discard := slog.New(slog.NewTextHandler(io.Discard, nil))
	jobsConfig := internal.JobsConfig{
		Backend:       "memory",
		Workers:       2,
		PollInterval:  10 * time.Millisecond,
		EmailAttempts: 3,
		BackoffBase:   10 * time.Millisecond,
		BackoffFactor: 2,
		SweepSpec:     "0 0 * * * *",
	}

	ginkgo.It("runs jobs inside the server only for the memory backend", func() {
		gomega.Expect(runsJobsInProcess(&internal.Config{Jobs: internal.JobsConfig{Backend: "memory"}})).To(gomega.BeTrue())
		gomega.Expect(runsJobsInProcess(&internal.Config{Jobs: internal.JobsConfig{Backend: "redis"}})).To(gomega.BeFalse())
	})

	ginkgo.It("drains the queue the server enqueues into", func() {
		ctx := context.Background()
		db, err := storetest.Open()
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		fx := storetest.Fixtures{DB: db}
		owner := fx.User(fx.Role("Customer"))
		_, pay := fx.Shipment(owner, fx.Address(owner, -6.2, 106.8))

		queue := jobs.NewMemoryQueue()
		sender := &recordingSender{}
		stop, err := startInProcessJobs(ctx, jobsConfig, queue, postgres.NewUnitOfWorkFactory(db), sender, discard)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		defer stop()

		scheduler := jobs.NewScheduler(queue, jobsConfig.EmailAttempts, discard)
		_, err = scheduler.ScheduleEmail(ctx, jobs.EmailPayload{Type: jobs.EmailTesting, To: owner.Email})
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		_, err = scheduler.ScheduleExpiry(ctx, jobs.ExpiryPayload{
			PaymentID:  pay.ID,
			ShipmentID: pay.ShipmentID,
			ExternalID: pay.ExternalID,
		}, time.Now().Add(-time.Minute))
		gomega.Expect(err).ToNot(gomega.HaveOccurred())

		gomega.Eventually(sender.count, 2*time.Second, 10*time.Millisecond).Should(gomega.Equal(1))
		gomega.Eventually(func() string {
			p, err := postgres.NewPaymentRepository(db).GetByID(ctx, pay.ID)
			gomega.Expect(err).ToNot(gomega.HaveOccurred())
			return p.Status
		}, 2*time.Second, 10*time.Millisecond).Should(gomega.Equal(datapayment.StatusExpired))
	})

	ginkgo.It("refuses a separate worker on the memory backend", func() {
		cfg := &internal.Config{Jobs: jobsConfig}

		err := startJobsWorker(context.Background(), cfg)

		gomega.Expect(err).To(gomega.MatchError(gomega.ContainSubstring("memory job backend")))
	})
})
