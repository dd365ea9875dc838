package jobs

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"
)

type Handler interface {
	Handle(ctx context.Context, job *Job) error
}

type HandlerFunc func(ctx context.Context, job *Job) error

func (f HandlerFunc) Handle(ctx context.Context, job *Job) error {
	return f(ctx, job)
}

type Worker struct {
	ID         int
	WorkerPool chan chan *Job
	JobChannel chan *Job
	Logger     *slog.Logger
}

func NewWorker(id int, workerPool chan chan *Job, logger *slog.Logger) *Worker {
	return &Worker{
		ID:         id,
		WorkerPool: workerPool,
		JobChannel: make(chan *Job),
		Logger:     logger,
	}
}

// Start registers the worker as idle, runs whatever it is handed, and
// repeats until ctx is cancelled.
func (w *Worker) Start(ctx context.Context, wg *sync.WaitGroup, processFunc func(*Job)) {
	wg.Add(1)
	go func() {
		defer wg.Done()

		for {
			select {
			case w.WorkerPool <- w.JobChannel:
			case <-ctx.Done():
				w.Logger.Debug("worker shutting down", "worker_id", w.ID)
				return
			}

			select {
			case job := <-w.JobChannel:
				w.Logger.Debug("worker processing job", "worker_id", w.ID, "job_id", job.ID, "kind", job.Kind)
				processFunc(job)
			case <-ctx.Done():
				w.Logger.Debug("worker shutting down", "worker_id", w.ID)
				return
			}
		}
	}()
}

type RunnerConfig struct {
	Workers      int
	PollInterval time.Duration
	JobTimeout   time.Duration
	Backoff      Backoff
}

// Runner claims due jobs only when a worker is idle, so the queue is never
// drained faster than jobs can run.
type Runner struct {
	queue    Queue
	handlers map[Kind]Handler
	config   RunnerConfig
	logger   *slog.Logger
	now      func() time.Time

	workerPool chan chan *Job
	wg         sync.WaitGroup
}

func NewRunner(queue Queue, config RunnerConfig, logger *slog.Logger) *Runner {
	if config.Workers <= 0 {
		config.Workers = 5
	}
	if config.PollInterval <= 0 {
		config.PollInterval = 500 * time.Millisecond
	}
	if config.JobTimeout <= 0 {
		config.JobTimeout = time.Minute
	}
	if config.Backoff.Base <= 0 {
		config.Backoff = DefaultBackoff()
	}

	return &Runner{
		queue:      queue,
		handlers:   make(map[Kind]Handler),
		config:     config,
		logger:     logger.With("component", "job_runner"),
		now:        time.Now,
		workerPool: make(chan chan *Job, config.Workers),
	}
}

func (r *Runner) Register(kind Kind, h Handler) {
	r.handlers[kind] = h
}

// Run blocks until ctx is cancelled and every in-flight job has finished.
func (r *Runner) Run(ctx context.Context) error {
	for i := 0; i < r.config.Workers; i++ {
		NewWorker(i, r.workerPool, r.logger).Start(ctx, &r.wg, r.process)
	}

	r.logger.Info("job runner started",
		"workers", r.config.Workers,
		"poll_interval", r.config.PollInterval)

	r.dispatch(ctx)
	r.wg.Wait()

	r.logger.Info("job runner stopped")
	return nil
}

func (r *Runner) dispatch(ctx context.Context) {
	for {
		var jobChannel chan *Job
		select {
		case jobChannel = <-r.workerPool:
		case <-ctx.Done():
			return
		}

		job, ok := r.claim(ctx)
		if !ok {
			return
		}

		select {
		case jobChannel <- job:
		case <-ctx.Done():
			r.release(job)
			return
		}
	}
}

// claim polls until a job is due. It reports false on shutdown.
func (r *Runner) claim(ctx context.Context) (*Job, bool) {
	ticker := time.NewTicker(r.config.PollInterval)
	defer ticker.Stop()

	for {
		job, err := r.queue.Claim(ctx, r.now())
		if err != nil {
			r.logger.Error("failed to claim job", "error", err)
		}
		if job != nil {
			if ctx.Err() != nil {
				r.release(job)
				return nil, false
			}
			return job, true
		}

		select {
		case <-ticker.C:
		case <-ctx.Done():
			return nil, false
		}
	}
}

func (r *Runner) release(job *Job) {
	if err := r.queue.Release(context.Background(), job); err != nil {
		r.logger.Error("failed to release job", "job_id", job.ID, "error", err)
		return
	}
	r.logger.Info("claimed job released on shutdown", "job_id", job.ID, "kind", job.Kind)
}

func (r *Runner) process(job *Job) {
	// In-flight jobs finish on shutdown; only the timeout bounds them.
	ctx, cancel := context.WithTimeout(context.Background(), r.config.JobTimeout)
	defer cancel()

	log := r.logger.With("job_id", job.ID, "kind", job.Kind, "attempt", job.Attempt)

	handler, ok := r.handlers[job.Kind]
	if !ok {
		log.Error("no handler registered for job kind")
		if err := r.queue.Fail(ctx, job, fmt.Errorf("no handler for kind %q", job.Kind)); err != nil {
			log.Error("failed to mark job failed", "error", err)
		}
		return
	}

	err := r.run(ctx, handler, job)
	if err == nil {
		if err := r.queue.Done(ctx, job); err != nil {
			log.Error("failed to mark job done", "error", err)
		}
		return
	}

	if job.Attempt < job.MaxAttempts {
		delay := r.config.Backoff.Delay(job.Attempt)
		log.Warn("job failed, retrying", "error", err, "retry_in", delay)
		if rerr := r.queue.Retry(ctx, job, r.now().Add(delay), err); rerr != nil {
			log.Error("failed to reschedule job", "error", rerr)
		}
		return
	}

	log.Warn("job dropped after max attempts", "error", err, "max_attempts", job.MaxAttempts)
	if ferr := r.queue.Fail(ctx, job, err); ferr != nil {
		log.Error("failed to mark job failed", "error", ferr)
	}
}

func (r *Runner) run(ctx context.Context, h Handler, job *Job) (err error) {
	defer func() {
		if rec := recover(); rec != nil {
			err = fmt.Errorf("job handler panicked: %v", rec)
		}
	}()
	return h.Handle(ctx, job)
}
