package webhooks

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Processor runs one delivery end to end: verify the signature, claim the
// event id, dispatch to the handler, then settle the claim. Duplicate event
// ids are acknowledged without reaching the handler.
type Processor struct {
	Verifier    Verifier
	Ledger      DeliveryLedger
	Handler     Handler
	ExtractID   EventIDExtractor
	RetryPolicy RetryPolicy
	ClaimLease  time.Duration
	MaxAttempts int
	Now         func() time.Time
}

func NewProcessor(verifier Verifier, ledger DeliveryLedger, handler Handler) *Processor {
	return &Processor{
		Verifier:    verifier,
		Ledger:      ledger,
		Handler:     handler,
		ExtractID:   BodyEventIDExtractor("event_id"),
		RetryPolicy: ExponentialRetryPolicy{},
		ClaimLease:  defaultClaimLease,
		MaxAttempts: 8,
		Now: func() time.Time {
			return time.Now().UTC()
		},
	}
}

func (p *Processor) Process(ctx context.Context, req Request) (Result, error) {
	if p == nil || p.Handler == nil || p.Ledger == nil {
		return Result{}, fmt.Errorf("webhooks: processor requires handler and ledger")
	}

	gatewayID := strings.TrimSpace(req.GatewayID)
	if gatewayID == "" {
		return Result{}, fmt.Errorf("webhooks: gateway id is required")
	}
	req.GatewayID = gatewayID
	if err := req.Mode.Validate(); err != nil {
		return Result{}, err
	}

	if p.Verifier != nil {
		if err := p.Verifier.Verify(ctx, req); err != nil {
			return Result{
				Accepted:   false,
				StatusCode: http.StatusUnauthorized,
				Metadata: map[string]any{
					"gateway_id": gatewayID,
					"mode":       string(req.Mode),
					"rejected":   true,
				},
			}, err
		}
	}

	extractor := p.ExtractID
	if extractor == nil {
		extractor = BodyEventIDExtractor("event_id")
	}
	eventID, err := extractor(req)
	if err != nil {
		return Result{}, err
	}

	delivery, claimed, err := p.Ledger.Claim(ctx, gatewayID, req.Mode, eventID, req.Body, p.claimLease())
	if err != nil {
		return Result{}, err
	}
	if !claimed {
		return Result{
			Accepted:   true,
			StatusCode: http.StatusOK,
			Metadata: map[string]any{
				"gateway_id": gatewayID,
				"mode":       string(req.Mode),
				"event_id":   delivery.EventID,
				"status":     delivery.Status,
				"deduped":    true,
			},
		}, nil
	}

	result, err := p.Handler.Handle(ctx, req)
	if err != nil {
		nextAttemptAt := p.now().Add(p.retryPolicy().NextDelay(delivery.Attempts))
		_ = p.Ledger.Fail(ctx, delivery.ClaimID, err, nextAttemptAt, p.maxAttempts())
		return Result{}, err
	}
	if !result.Accepted || result.StatusCode >= http.StatusInternalServerError {
		retryErr := fmt.Errorf("webhooks: delivery handler returned retryable status %d", result.StatusCode)
		nextAttemptAt := p.now().Add(p.retryPolicy().NextDelay(delivery.Attempts))
		_ = p.Ledger.Fail(ctx, delivery.ClaimID, retryErr, nextAttemptAt, p.maxAttempts())
		return result, retryErr
	}

	if err := p.Ledger.Complete(ctx, delivery.ClaimID); err != nil {
		return Result{}, err
	}
	result.Metadata = ensureMetadata(result.Metadata)
	result.Metadata["gateway_id"] = gatewayID
	result.Metadata["event_id"] = eventID
	return result, nil
}

func (p *Processor) now() time.Time {
	if p != nil && p.Now != nil {
		return p.Now().UTC()
	}
	return time.Now().UTC()
}

func (p *Processor) retryPolicy() RetryPolicy {
	if p != nil && p.RetryPolicy != nil {
		return p.RetryPolicy
	}
	return ExponentialRetryPolicy{}
}

func (p *Processor) claimLease() time.Duration {
	if p != nil && p.ClaimLease > 0 {
		return p.ClaimLease
	}
	return defaultClaimLease
}

func (p *Processor) maxAttempts() int {
	if p != nil && p.MaxAttempts > 0 {
		return p.MaxAttempts
	}
	return 8
}

func ensureMetadata(metadata map[string]any) map[string]any {
	if len(metadata) == 0 {
		return map[string]any{}
	}
	return metadata
}
