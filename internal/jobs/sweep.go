package jobs

import (
	"context"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"
)

// OverdueExpirer expires PENDING payments whose deadline has passed.
type OverdueExpirer interface {
	ExpireOverdue(ctx context.Context, now time.Time, limit int) (int, error)
}

// ExpirySweep periodically expires payments whose delayed job was lost,
// for example with the in-memory backend across a restart.
type ExpirySweep struct {
	expirer OverdueExpirer
	spec    string
	limit   int
	cron    *cron.Cron
	logger  *slog.Logger
}

func NewExpirySweep(expirer OverdueExpirer, spec string, logger *slog.Logger) *ExpirySweep {
	if spec == "" {
		spec = "0 * * * * *"
	}
	return &ExpirySweep{
		expirer: expirer,
		spec:    spec,
		limit:   100,
		cron:    cron.New(cron.WithSeconds()),
		logger:  logger.With("component", "expiry_sweep"),
	}
}

func (s *ExpirySweep) Start() error {
	_, err := s.cron.AddFunc(s.spec, func() {
		s.RunOnce(context.Background())
	})
	if err != nil {
		return err
	}

	s.cron.Start()
	s.logger.Info("expiry sweep started", "spec", s.spec)
	return nil
}

// Stop waits for a running sweep to finish.
func (s *ExpirySweep) Stop() {
	<-s.cron.Stop().Done()
	s.logger.Info("expiry sweep stopped")
}

func (s *ExpirySweep) RunOnce(ctx context.Context) int {
	n, err := s.expirer.ExpireOverdue(ctx, time.Now(), s.limit)
	if err != nil {
		s.logger.ErrorContext(ctx, "expiry sweep failed", "error", err)
	}
	if n > 0 {
		s.logger.InfoContext(ctx, "overdue payments expired", "count", n)
	}
	return n
}
