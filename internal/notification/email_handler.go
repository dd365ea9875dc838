package notification

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/frahmantamala/courier-fulfillment/internal/jobs"
)

// EmailHandler runs email jobs. A failed send is returned so the runner
// retries it; an unknown type is logged and dropped.
type EmailHandler struct {
	sender Sender
	logger *slog.Logger
}

func NewEmailHandler(sender Sender, logger *slog.Logger) *EmailHandler {
	return &EmailHandler{
		sender: sender,
		logger: logger.With("component", "email_handler"),
	}
}

func (h *EmailHandler) Handle(ctx context.Context, job *jobs.Job) error {
	var p jobs.EmailPayload
	if err := job.Decode(&p); err != nil {
		h.logger.Error("undecodable email job dropped", "job_id", job.ID, "error", err)
		return nil
	}

	msg, known, err := Render(p)
	if !known {
		h.logger.Warn("unknown email type", "type", p.Type, "job_id", job.ID)
		return nil
	}
	if err != nil {
		return err
	}

	if err := h.sender.Send(ctx, msg); err != nil {
		return fmt.Errorf("send %s email: %w", p.Type, err)
	}

	h.logger.Info("email sent", "type", p.Type, "shipment_id", p.ShipmentID, "attempt", job.Attempt)
	return nil
}
