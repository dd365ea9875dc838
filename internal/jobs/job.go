// Package jobs schedules delayed work (payment expiry, emails) on a
// durable queue and runs it on a bounded worker pool.
package jobs

import (
	"context"
	"encoding/json"
	"errors"
	"time"
)

type Kind string

const (
	KindPaymentExpiry Kind = "payment-expiry"
	KindEmail         Kind = "email"
)

type Status string

const (
	StatusScheduled Status = "scheduled"
	StatusRunning   Status = "running"
	StatusDone      Status = "done"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

var ErrJobNotFound = errors.New("job not found")

type Job struct {
	ID          string          `json:"id"`
	Kind        Kind            `json:"kind"`
	Key         string          `json:"key,omitempty"`
	Payload     json.RawMessage `json:"payload"`
	NotBefore   time.Time       `json:"not_before"`
	Attempt     int             `json:"attempt"`
	MaxAttempts int             `json:"max_attempts"`
	Status      Status          `json:"status"`
	LastError   string          `json:"last_error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// Decode unmarshals the payload into v.
func (j *Job) Decode(v interface{}) error {
	return json.Unmarshal(j.Payload, v)
}

type EnqueueRequest struct {
	Kind Kind
	// Key is the cancellation handle. At most one scheduled job exists per
	// key; enqueueing again replaces it. Empty means no handle.
	Key         string
	Payload     json.RawMessage
	Delay       time.Duration
	MaxAttempts int
}

// Queue stores delayed jobs. Claim hands each due job to exactly one caller;
// a running job can no longer be cancelled.
type Queue interface {
	Enqueue(ctx context.Context, req EnqueueRequest) (*Job, error)
	// Cancel reports false when the job is running, finished or unknown.
	Cancel(ctx context.Context, key string) (bool, error)
	// Claim returns nil without error when nothing is due.
	Claim(ctx context.Context, now time.Time) (*Job, error)
	Done(ctx context.Context, job *Job) error
	Retry(ctx context.Context, job *Job, notBefore time.Time, cause error) error
	Fail(ctx context.Context, job *Job, cause error) error
	// Release puts a claimed job back untouched, as if it was never claimed.
	Release(ctx context.Context, job *Job) error
	Get(ctx context.Context, id string) (*Job, error)
}

func normalize(req EnqueueRequest) EnqueueRequest {
	if req.MaxAttempts <= 0 {
		req.MaxAttempts = 1
	}
	if req.Delay < 0 {
		req.Delay = 0
	}
	if req.Payload == nil {
		req.Payload = json.RawMessage("null")
	}
	return req
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
