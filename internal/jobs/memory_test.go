package jobs_test

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/frahmantamala/courier-fulfillment/internal/jobs"
)

type fakeClock struct {
	mu  sync.Mutex
	now time.Time
}

func newFakeClock() *fakeClock {
	return &fakeClock{now: time.Date(2026, 3, 1, 10, 0, 0, 0, time.UTC)}
}

func (c *fakeClock) Now() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.now
}

func (c *fakeClock) Advance(d time.Duration) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.now = c.now.Add(d)
}

var _ = ginkgo.Describe("MemoryQueue", func() {
	var (
		ctx   context.Context
		clock *fakeClock
		q     *jobs.MemoryQueue
	)

	ginkgo.BeforeEach(func() {
		ctx = context.Background()
		clock = newFakeClock()
		q = jobs.NewMemoryQueue().WithClock(clock.Now)
	})

	ginkgo.It("does not hand out a job before its time", func() {
		_, err := q.Enqueue(ctx, jobs.EnqueueRequest{Kind: jobs.KindEmail, Delay: time.Minute})
		gomega.Expect(err).ToNot(gomega.HaveOccurred())

		job, err := q.Claim(ctx, clock.Now())
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(job).To(gomega.BeNil())

		clock.Advance(time.Minute)
		job, err = q.Claim(ctx, clock.Now())
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(job.Status).To(gomega.Equal(jobs.StatusRunning))
		gomega.Expect(job.Attempt).To(gomega.Equal(1))
	})

	ginkgo.It("claims in not-before order", func() {
		late, _ := q.Enqueue(ctx, jobs.EnqueueRequest{Kind: jobs.KindEmail, Delay: 2 * time.Second})
		early, _ := q.Enqueue(ctx, jobs.EnqueueRequest{Kind: jobs.KindEmail, Delay: time.Second})
		clock.Advance(time.Hour)

		first, _ := q.Claim(ctx, clock.Now())
		second, _ := q.Claim(ctx, clock.Now())

		gomega.Expect(first.ID).To(gomega.Equal(early.ID))
		gomega.Expect(second.ID).To(gomega.Equal(late.ID))
	})

	ginkgo.It("replaces the scheduled job for a key", func() {
		old, _ := q.Enqueue(ctx, jobs.EnqueueRequest{Kind: jobs.KindPaymentExpiry, Key: "payment-expiry:1", Delay: time.Hour})
		fresh, _ := q.Enqueue(ctx, jobs.EnqueueRequest{Kind: jobs.KindPaymentExpiry, Key: "payment-expiry:1", Delay: 2 * time.Hour})

		got, err := q.Get(ctx, old.ID)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(got.Status).To(gomega.Equal(jobs.StatusCancelled))

		clock.Advance(3 * time.Hour)
		claimed, _ := q.Claim(ctx, clock.Now())
		gomega.Expect(claimed.ID).To(gomega.Equal(fresh.ID))
		again, _ := q.Claim(ctx, clock.Now())
		gomega.Expect(again).To(gomega.BeNil())
	})

	ginkgo.It("cancels only scheduled jobs", func() {
		_, _ = q.Enqueue(ctx, jobs.EnqueueRequest{Kind: jobs.KindPaymentExpiry, Key: "k"})

		claimed, _ := q.Claim(ctx, clock.Now())
		gomega.Expect(claimed).ToNot(gomega.BeNil())

		ok, err := q.Cancel(ctx, "k")
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(ok).To(gomega.BeFalse())

		ok, _ = q.Cancel(ctx, "missing")
		gomega.Expect(ok).To(gomega.BeFalse())
	})

	ginkgo.It("cancels a scheduled job so it never runs", func() {
		_, _ = q.Enqueue(ctx, jobs.EnqueueRequest{Kind: jobs.KindPaymentExpiry, Key: "k"})

		ok, err := q.Cancel(ctx, "k")
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(ok).To(gomega.BeTrue())

		claimed, _ := q.Claim(ctx, clock.Now().Add(time.Hour))
		gomega.Expect(claimed).To(gomega.BeNil())
	})

	ginkgo.It("retries with the error recorded and finishes as failed", func() {
		_, _ = q.Enqueue(ctx, jobs.EnqueueRequest{Kind: jobs.KindEmail, MaxAttempts: 2})
		job, _ := q.Claim(ctx, clock.Now())

		gomega.Expect(q.Retry(ctx, job, clock.Now().Add(time.Second), errors.New("smtp down"))).To(gomega.Succeed())
		gomega.Expect(job.Status).To(gomega.Equal(jobs.StatusScheduled))
		gomega.Expect(job.LastError).To(gomega.Equal("smtp down"))

		clock.Advance(time.Second)
		job, _ = q.Claim(ctx, clock.Now())
		gomega.Expect(job.Attempt).To(gomega.Equal(2))
		gomega.Expect(q.Fail(ctx, job, errors.New("still down"))).To(gomega.Succeed())

		got, _ := q.Get(ctx, job.ID)
		gomega.Expect(got.Status).To(gomega.Equal(jobs.StatusFailed))
	})

	ginkgo.It("release undoes the claim", func() {
		_, _ = q.Enqueue(ctx, jobs.EnqueueRequest{Kind: jobs.KindEmail})
		job, _ := q.Claim(ctx, clock.Now())

		gomega.Expect(q.Release(ctx, job)).To(gomega.Succeed())

		again, _ := q.Claim(ctx, clock.Now())
		gomega.Expect(again.ID).To(gomega.Equal(job.ID))
		gomega.Expect(again.Attempt).To(gomega.Equal(1))
	})

	ginkgo.It("hands a due job to exactly one of many concurrent claimers", func() {
		_, _ = q.Enqueue(ctx, jobs.EnqueueRequest{Kind: jobs.KindEmail})

		var (
			wg   sync.WaitGroup
			mu   sync.Mutex
			wins int
		)
		for i := 0; i < 20; i++ {
			wg.Add(1)
			go func() {
				defer wg.Done()
				job, _ := q.Claim(ctx, clock.Now())
				if job != nil {
					mu.Lock()
					wins++
					mu.Unlock()
				}
			}()
		}
		wg.Wait()

		gomega.Expect(wins).To(gomega.Equal(1))
	})
})

var _ = ginkgo.DescribeTable("Backoff.Delay",
	func(failures int, want time.Duration) {
		gomega.Expect(jobs.DefaultBackoff().Delay(failures)).To(gomega.Equal(want))
	},
	ginkgo.Entry("first retry", 1, time.Second),
	ginkgo.Entry("second retry", 2, 2*time.Second),
	ginkgo.Entry("third retry", 3, 4*time.Second),
	ginkgo.Entry("clamps below one", 0, time.Second),
)
