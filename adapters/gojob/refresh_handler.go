package gojob

import (
	"context"
	"fmt"
	"time"

	"github.com/goliatone/go-payments/core"
)

// RefreshService is the slice of the payment service the scheduled refresh
// tick needs.
type RefreshService interface {
	Refresh(ctx context.Context, req core.RefreshRequest) (core.ConnectionRecord, error)
}

// RefreshJobHandler runs the scheduled token refresh for the mode named in
// the job parameters.
type RefreshJobHandler struct {
	service RefreshService
	logger  core.Logger
}

func NewRefreshJobHandler(service RefreshService, logger core.Logger) *RefreshJobHandler {
	return &RefreshJobHandler{service: service, logger: logger}
}

func (h *RefreshJobHandler) Handle(ctx context.Context, msg *core.JobExecutionMessage) error {
	if h == nil || h.service == nil {
		return fmt.Errorf("gojob: refresh service is not configured")
	}
	if msg == nil {
		return fmt.Errorf("gojob: execution message is required")
	}

	rawMode, _ := msg.Parameters["mode"].(string)
	mode, err := core.ParseMode(rawMode)
	if err != nil {
		return fmt.Errorf("gojob: refresh job %q: %w", msg.JobID, err)
	}

	record, err := h.service.Refresh(ctx, core.RefreshRequest{
		Mode:    mode,
		Trigger: core.RefreshTriggerScheduled,
	})
	if err != nil {
		if h.logger != nil {
			h.logger.Error("scheduled refresh failed", "mode", string(mode), "error", err)
		}
		return err
	}
	if h.logger != nil {
		h.logger.Info("scheduled refresh complete",
			"mode", string(mode),
			"expires_at", record.TokenExpiresAt.Format(time.RFC3339),
		)
	}
	return nil
}

// ProcessDelivery drains one delivery through the handler, acking on success
// and nacking with a classifier-derived decision on failure. The attempt
// count feeds the retry policy so poisoned ticks eventually dead-letter.
func ProcessDelivery(ctx context.Context, handler *RefreshJobHandler, delivery core.JobDelivery, attempt int, retryDelay time.Duration) error {
	if handler == nil {
		return fmt.Errorf("gojob: refresh handler is required")
	}
	if delivery == nil {
		return fmt.Errorf("gojob: delivery is required")
	}

	err := handler.Handle(ctx, delivery.Message())
	if err == nil {
		return delivery.Ack(ctx)
	}

	opts := NackOptionsForError(err, retryDelay)
	if nackable, ok := delivery.(interface {
		NackForAttempt(ctx context.Context, opts core.JobNackOptions, attempt int) error
	}); ok {
		if nackErr := nackable.NackForAttempt(ctx, opts, attempt); nackErr != nil {
			return nackErr
		}
		return err
	}
	if nackErr := delivery.Nack(ctx, opts); nackErr != nil {
		return nackErr
	}
	return err
}
