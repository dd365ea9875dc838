package cmd

import (
	"context"
	"errors"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/frahmantamala/courier-fulfillment/internal"
	"github.com/frahmantamala/courier-fulfillment/internal/core/store"
	"github.com/frahmantamala/courier-fulfillment/internal/core/store/postgres"
	"github.com/frahmantamala/courier-fulfillment/internal/jobs"
	"github.com/frahmantamala/courier-fulfillment/internal/notification"
	"github.com/frahmantamala/courier-fulfillment/internal/payment"
	"github.com/frahmantamala/courier-fulfillment/pkg/logger"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start background workers",
}

var jobsWorkerCmd = &cobra.Command{
	Use:   "jobs",
	Short: "Run delayed jobs and the overdue payment sweep",
	Long:  `Run payment expiry and email jobs from the job queue, and periodically expire overdue payments whose job was lost.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(configPath)
		if err != nil {
			return err
		}
		if workers > 0 {
			cfg.Jobs.Workers = workers
		}
		return startJobsWorker(cmd.Context(), cfg)
	},
}

var workers int

func startJobsWorker(ctx context.Context, cfg *internal.Config) error {
	log := logger.LoggerWrapper()

	if runsJobsInProcess(cfg) {
		return errors.New("the memory job backend is not shared between processes; jobs run inside the server, use the redis backend for a separate worker")
	}

	sqlDB, db, err := initDB(cfg.Database)
	if err != nil {
		return err
	}
	defer sqlDB.Close()

	queue, redisClient := jobBackend(cfg)
	if redisClient != nil {
		defer redisClient.Close()
	}

	runner, expiry := newJobRunner(cfg.Jobs, queue, postgres.NewUnitOfWorkFactory(db), smtpSender(cfg.SMTP), log)

	sweep := jobs.NewExpirySweep(expiry, cfg.Jobs.SweepSpec, log)
	if err := sweep.Start(); err != nil {
		return err
	}
	defer sweep.Stop()

	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	log.Info("job worker started", "backend", cfg.Jobs.Backend, "workers", cfg.Jobs.Workers)

	g, ctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return runner.Run(ctx)
	})
	g.Go(func() error {
		// catch up on payments that fell overdue while no worker was running
		sweep.RunOnce(ctx)
		return nil
	})

	err = g.Wait()
	log.Info("job worker stopped")
	return err
}

// runsJobsInProcess reports whether the server drains its own queue. A
// memory queue lives and dies with the process that enqueued into it.
func runsJobsInProcess(cfg *internal.Config) bool {
	return cfg.Jobs.Backend == "memory"
}

func newJobRunner(cfg internal.JobsConfig, queue jobs.Queue, uow store.UnitOfWorkFactory, sender notification.Sender, log *slog.Logger) (*jobs.Runner, *payment.ExpiryHandler) {
	expiry := payment.NewExpiryHandler(uow, log)

	runner := jobs.NewRunner(queue, jobs.RunnerConfig{
		Workers:      cfg.Workers,
		PollInterval: cfg.PollInterval,
		Backoff:      jobs.Backoff{Base: cfg.BackoffBase, Factor: cfg.BackoffFactor},
	}, log)
	runner.Register(jobs.KindPaymentExpiry, expiry)
	runner.Register(jobs.KindEmail, notification.NewEmailHandler(sender, log))

	return runner, expiry
}

func smtpSender(cfg internal.SMTPConfig) *notification.SMTPSender {
	return notification.NewSMTPSender(notification.SMTPConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		From:     cfg.From,
	})
}

// startInProcessJobs runs the job runner and the expiry sweep next to the
// HTTP server. The returned stop waits for in-flight jobs.
func startInProcessJobs(ctx context.Context, cfg internal.JobsConfig, queue jobs.Queue, uow store.UnitOfWorkFactory, sender notification.Sender, log *slog.Logger) (func(), error) {
	runner, expiry := newJobRunner(cfg, queue, uow, sender, log)

	sweep := jobs.NewExpirySweep(expiry, cfg.SweepSpec, log)
	if err := sweep.Start(); err != nil {
		return nil, err
	}

	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = runner.Run(ctx)
	}()

	log.Info("running jobs in process", "workers", cfg.Workers)
	return func() {
		cancel()
		<-done
		sweep.Stop()
	}, nil
}

func init() {
	jobsWorkerCmd.Flags().IntVar(&workers, "workers", 0, "number of concurrent job workers (overrides config)")

	workerCmd.AddCommand(jobsWorkerCmd)
	rootCmd.AddCommand(workerCmd)
}
