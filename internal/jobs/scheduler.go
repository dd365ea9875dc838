package jobs

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"
)

type EmailType string

const (
	EmailTesting             EmailType = "testing"
	EmailPaymentNotification EmailType = "payment-notification"
	EmailPaymentSuccess      EmailType = "payment-success"
)

type ExpiryPayload struct {
	PaymentID  int64  `json:"payment_id"`
	ShipmentID int64  `json:"shipment_id"`
	ExternalID string `json:"external_id"`
}

type EmailPayload struct {
	Type           EmailType  `json:"type"`
	To             string     `json:"to"`
	ShipmentID     int64      `json:"shipment_id,omitempty"`
	Amount         int64      `json:"amount,omitempty"`
	PaymentURL     string     `json:"payment_url,omitempty"`
	ExpiryDate     *time.Time `json:"expiry_date,omitempty"`
	TrackingNumber string     `json:"tracking_number,omitempty"`
}

func ExpiryKey(paymentID int64) string {
	return fmt.Sprintf("payment-expiry:%d", paymentID)
}

type emailOptions struct {
	delay    time.Duration
	attempts int
}

type EmailOption func(*emailOptions)

func WithDelay(d time.Duration) EmailOption {
	return func(o *emailOptions) { o.delay = d }
}

func WithAttempts(n int) EmailOption {
	return func(o *emailOptions) { o.attempts = n }
}

type Scheduler struct {
	queue         Queue
	emailAttempts int
	now           func() time.Time
	logger        *slog.Logger
}

func NewScheduler(queue Queue, emailAttempts int, logger *slog.Logger) *Scheduler {
	if emailAttempts <= 0 {
		emailAttempts = 3
	}
	return &Scheduler{
		queue:         queue,
		emailAttempts: emailAttempts,
		now:           time.Now,
		logger:        logger.With("component", "job_scheduler"),
	}
}

// ScheduleExpiry fires once at fireAt, or immediately when fireAt has passed.
func (s *Scheduler) ScheduleExpiry(ctx context.Context, p ExpiryPayload, fireAt time.Time) (*Job, error) {
	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}

	delay := fireAt.Sub(s.now())
	if delay < 0 {
		delay = 0
	}

	job, err := s.queue.Enqueue(ctx, EnqueueRequest{
		Kind:        KindPaymentExpiry,
		Key:         ExpiryKey(p.PaymentID),
		Payload:     payload,
		Delay:       delay,
		MaxAttempts: 1,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("payment expiry scheduled",
		"payment_id", p.PaymentID,
		"external_id", p.ExternalID,
		"fire_at", job.NotBefore)
	return job, nil
}

// CancelExpiry is advisory: the expiry handler re-checks the payment status.
func (s *Scheduler) CancelExpiry(ctx context.Context, paymentID int64) (bool, error) {
	cancelled, err := s.queue.Cancel(ctx, ExpiryKey(paymentID))
	if err != nil {
		return false, err
	}
	s.logger.Info("payment expiry cancel", "payment_id", paymentID, "cancelled", cancelled)
	return cancelled, nil
}

func (s *Scheduler) ScheduleEmail(ctx context.Context, p EmailPayload, opts ...EmailOption) (*Job, error) {
	o := emailOptions{attempts: s.emailAttempts}
	for _, opt := range opts {
		opt(&o)
	}

	payload, err := json.Marshal(p)
	if err != nil {
		return nil, err
	}

	job, err := s.queue.Enqueue(ctx, EnqueueRequest{
		Kind:        KindEmail,
		Payload:     payload,
		Delay:       o.delay,
		MaxAttempts: o.attempts,
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("email scheduled", "type", p.Type, "shipment_id", p.ShipmentID, "job_id", job.ID)
	return job, nil
}
