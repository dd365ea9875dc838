package jobs_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/onsi/ginkgo/v2"
	"github.com/onsi/gomega"

	"github.com/frahmantamala/courier-fulfillment/internal/jobs"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

var _ = ginkgo.Describe("Runner", func() {
	var (
		q      *jobs.MemoryQueue
		runner *jobs.Runner
		ctx    context.Context
		cancel context.CancelFunc
		done   chan struct{}
	)

	ginkgo.BeforeEach(func() {
		q = jobs.NewMemoryQueue()
		runner = jobs.NewRunner(q, jobs.RunnerConfig{
			Workers:      2,
			PollInterval: 5 * time.Millisecond,
			Backoff:      jobs.Backoff{Base: 10 * time.Millisecond, Factor: 2},
		}, discard)
		ctx, cancel = context.WithCancel(context.Background())
		done = make(chan struct{})
	})

	start := func() {
		go func() {
			defer close(done)
			_ = runner.Run(ctx)
		}()
	}

	ginkgo.AfterEach(func() {
		cancel()
		gomega.Eventually(done).Should(gomega.BeClosed())
	})

	ginkgo.It("runs a due job and marks it done", func() {
		var ran atomic.Int32
		runner.Register(jobs.KindEmail, jobs.HandlerFunc(func(ctx context.Context, job *jobs.Job) error {
			ran.Add(1)
			return nil
		}))
		job, _ := q.Enqueue(context.Background(), jobs.EnqueueRequest{Kind: jobs.KindEmail})

		start()

		gomega.Eventually(func() jobs.Status {
			got, _ := q.Get(context.Background(), job.ID)
			return got.Status
		}).Should(gomega.Equal(jobs.StatusDone))
		gomega.Expect(ran.Load()).To(gomega.Equal(int32(1)))
	})

	ginkgo.It("retries with backoff and drops after the last attempt", func() {
		var (
			mu    sync.Mutex
			times []time.Time
		)
		runner.Register(jobs.KindEmail, jobs.HandlerFunc(func(ctx context.Context, job *jobs.Job) error {
			mu.Lock()
			times = append(times, time.Now())
			mu.Unlock()
			return errors.New("smtp unavailable")
		}))
		job, _ := q.Enqueue(context.Background(), jobs.EnqueueRequest{Kind: jobs.KindEmail, MaxAttempts: 3})

		start()

		gomega.Eventually(func() jobs.Status {
			got, _ := q.Get(context.Background(), job.ID)
			return got.Status
		}).Should(gomega.Equal(jobs.StatusFailed))

		mu.Lock()
		defer mu.Unlock()
		gomega.Expect(times).To(gomega.HaveLen(3))
		gomega.Expect(times[1].Sub(times[0])).To(gomega.BeNumerically(">=", 10*time.Millisecond))
		gomega.Expect(times[2].Sub(times[1])).To(gomega.BeNumerically(">=", 20*time.Millisecond))
	})

	ginkgo.It("runs an expiry job once even when it fails", func() {
		var ran atomic.Int32
		runner.Register(jobs.KindPaymentExpiry, jobs.HandlerFunc(func(ctx context.Context, job *jobs.Job) error {
			ran.Add(1)
			return errors.New("db down")
		}))
		job, _ := q.Enqueue(context.Background(), jobs.EnqueueRequest{Kind: jobs.KindPaymentExpiry, Key: "payment-expiry:1", MaxAttempts: 1})

		start()

		gomega.Eventually(func() jobs.Status {
			got, _ := q.Get(context.Background(), job.ID)
			return got.Status
		}).Should(gomega.Equal(jobs.StatusFailed))
		gomega.Consistently(ran.Load, 50*time.Millisecond).Should(gomega.Equal(int32(1)))
	})

	ginkgo.It("fails jobs of an unknown kind without retrying", func() {
		job, _ := q.Enqueue(context.Background(), jobs.EnqueueRequest{Kind: jobs.Kind("mystery"), MaxAttempts: 5})

		start()

		gomega.Eventually(func() jobs.Status {
			got, _ := q.Get(context.Background(), job.ID)
			return got.Status
		}).Should(gomega.Equal(jobs.StatusFailed))
	})

	ginkgo.It("recovers a panicking handler as a failure", func() {
		runner.Register(jobs.KindEmail, jobs.HandlerFunc(func(ctx context.Context, job *jobs.Job) error {
			panic("boom")
		}))
		job, _ := q.Enqueue(context.Background(), jobs.EnqueueRequest{Kind: jobs.KindEmail, MaxAttempts: 1})

		start()

		gomega.Eventually(func() string {
			got, _ := q.Get(context.Background(), job.ID)
			return got.LastError
		}).Should(gomega.ContainSubstring("panicked"))
	})

	ginkgo.It("does not run more jobs at once than it has workers", func() {
		var (
			running atomic.Int32
			peak    atomic.Int32
			release = make(chan struct{})
		)
		runner.Register(jobs.KindEmail, jobs.HandlerFunc(func(ctx context.Context, job *jobs.Job) error {
			n := running.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			<-release
			running.Add(-1)
			return nil
		}))
		for i := 0; i < 5; i++ {
			_, _ = q.Enqueue(context.Background(), jobs.EnqueueRequest{Kind: jobs.KindEmail})
		}

		start()

		gomega.Eventually(running.Load).Should(gomega.Equal(int32(2)))
		gomega.Consistently(running.Load, 30*time.Millisecond).Should(gomega.Equal(int32(2)))
		close(release)
		gomega.Eventually(running.Load).Should(gomega.Equal(int32(0)))
		gomega.Expect(peak.Load()).To(gomega.Equal(int32(2)))
	})
})

var _ = ginkgo.Describe("Scheduler", func() {
	var (
		ctx   context.Context
		clock *fakeClock
		q     *jobs.MemoryQueue
		s     *jobs.Scheduler
	)

	ginkgo.BeforeEach(func() {
		ctx = context.Background()
		clock = newFakeClock()
		q = jobs.NewMemoryQueue().WithClock(clock.Now)
		s = jobs.NewScheduler(q, 3, discard)
	})

	ginkgo.It("schedules a past expiry to fire immediately", func() {
		job, err := s.ScheduleExpiry(ctx, jobs.ExpiryPayload{PaymentID: 4, ShipmentID: 7}, time.Now().Add(-time.Hour))

		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(job.Key).To(gomega.Equal("payment-expiry:4"))
		gomega.Expect(job.MaxAttempts).To(gomega.Equal(1))
		claimed, _ := q.Claim(ctx, clock.Now())
		gomega.Expect(claimed).ToNot(gomega.BeNil())
	})

	ginkgo.It("cancels a pending expiry by payment id", func() {
		_, _ = s.ScheduleExpiry(ctx, jobs.ExpiryPayload{PaymentID: 4}, time.Now().Add(time.Hour))

		cancelled, err := s.CancelExpiry(ctx, 4)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(cancelled).To(gomega.BeTrue())

		cancelled, err = s.CancelExpiry(ctx, 4)
		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(cancelled).To(gomega.BeFalse())
	})

	ginkgo.It("defaults emails to immediate with three attempts", func() {
		job, err := s.ScheduleEmail(ctx, jobs.EmailPayload{Type: jobs.EmailPaymentSuccess, To: "a@b.c", TrackingNumber: "KN1"})

		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(job.MaxAttempts).To(gomega.Equal(3))
		gomega.Expect(job.NotBefore).To(gomega.Equal(clock.Now()))

		var p jobs.EmailPayload
		gomega.Expect(job.Decode(&p)).To(gomega.Succeed())
		gomega.Expect(p.TrackingNumber).To(gomega.Equal("KN1"))
	})

	ginkgo.It("honours email options", func() {
		job, err := s.ScheduleEmail(ctx, jobs.EmailPayload{Type: jobs.EmailTesting}, jobs.WithDelay(time.Minute), jobs.WithAttempts(1))

		gomega.Expect(err).ToNot(gomega.HaveOccurred())
		gomega.Expect(job.MaxAttempts).To(gomega.Equal(1))
		gomega.Expect(job.NotBefore).To(gomega.Equal(clock.Now().Add(time.Minute)))
	})
})

type countingExpirer struct {
	calls atomic.Int32
}

func (c *countingExpirer) ExpireOverdue(ctx context.Context, now time.Time, limit int) (int, error) {
	c.calls.Add(1)
	return 2, nil
}

var _ = ginkgo.Describe("ExpirySweep", func() {
	ginkgo.It("delegates to the expirer on each run", func() {
		exp := &countingExpirer{}
		sweep := jobs.NewExpirySweep(exp, "", discard)

		gomega.Expect(sweep.RunOnce(context.Background())).To(gomega.Equal(2))
		gomega.Expect(exp.calls.Load()).To(gomega.Equal(int32(1)))
	})

	ginkgo.It("runs on its cron schedule", func() {
		exp := &countingExpirer{}
		sweep := jobs.NewExpirySweep(exp, "* * * * * *", discard)

		gomega.Expect(sweep.Start()).To(gomega.Succeed())
		defer sweep.Stop()

		gomega.Eventually(exp.calls.Load, 3*time.Second).Should(gomega.BeNumerically(">=", 1))
	})

	ginkgo.It("rejects an invalid cron schedule", func() {
		sweep := jobs.NewExpirySweep(&countingExpirer{}, "not a schedule", discard)

		gomega.Expect(sweep.Start()).ToNot(gomega.Succeed())
	})
})
