package webhooks

import (
	"context"
	"time"

	"github.com/goliatone/go-payments/core"
)

const (
	DeliveryStatusPending    = "pending"
	DeliveryStatusProcessing = "processing"
	DeliveryStatusProcessed  = "processed"
	DeliveryStatusRetryReady = "retry_ready"
	DeliveryStatusDead       = "dead"
)

// Request is one inbound webhook delivery, raw bytes included. Verification
// always runs against Body exactly as received.
type Request struct {
	GatewayID string
	Mode      core.Mode
	Headers   map[string]string
	Body      []byte
	Metadata  map[string]any
}

type Result struct {
	Accepted   bool
	StatusCode int
	Metadata   map[string]any
}

type Verifier interface {
	Verify(ctx context.Context, req Request) error
}

type Handler interface {
	Handle(ctx context.Context, req Request) (Result, error)
}

type EventIDExtractor func(req Request) (string, error)

type DeliveryRecord struct {
	ID            string
	ClaimID       string
	GatewayID     string
	Mode          core.Mode
	EventID       string
	Status        string
	Attempts      int
	LastError     string
	NextAttemptAt *time.Time
	CreatedAt     time.Time
	UpdatedAt     time.Time
}

// DeliveryLedger makes webhook dispatch idempotent per event id. Claim hands
// out a short lease so a crashed worker does not strand the delivery, and a
// duplicate arriving while another claim is live reports claimed=false.
type DeliveryLedger interface {
	Claim(ctx context.Context, gatewayID string, mode core.Mode, eventID string, payload []byte, lease time.Duration) (DeliveryRecord, bool, error)
	Get(ctx context.Context, gatewayID string, mode core.Mode, eventID string) (DeliveryRecord, error)
	Complete(ctx context.Context, claimID string) error
	Fail(ctx context.Context, claimID string, cause error, nextAttemptAt time.Time, maxAttempts int) error
}

type RetryPolicy interface {
	NextDelay(attempt int) time.Duration
}

type ExponentialRetryPolicy struct {
	Initial time.Duration
	Max     time.Duration
}

func (p ExponentialRetryPolicy) NextDelay(attempt int) time.Duration {
	initial := p.Initial
	if initial <= 0 {
		initial = time.Second
	}
	maximum := p.Max
	if maximum <= 0 {
		maximum = 30 * time.Second
	}
	delay := initial
	for i := 1; i < attempt; i++ {
		delay *= 2
		if delay >= maximum {
			return maximum
		}
	}
	if delay > maximum {
		return maximum
	}
	return delay
}
