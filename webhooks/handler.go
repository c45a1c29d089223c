package webhooks

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-payments/core"
	glog "github.com/goliatone/go-logger/glog"
)

const (
	EventPaymentCreated       = "payment.created"
	EventPaymentUpdated       = "payment.updated"
	EventRefundCreated        = "refund.created"
	EventAuthorizationRevoked = "oauth.authorization.revoked"
)

// Event is the decoded webhook envelope. Object fields are populated
// according to Type; unknown types keep only the envelope.
type Event struct {
	EventID    string    `json:"event_id"`
	Type       string    `json:"type"`
	MerchantID string    `json:"merchant_id"`
	CreatedAt  time.Time `json:"created_at"`
	Data       EventData `json:"data"`
}

type EventData struct {
	Type   string      `json:"type"`
	ID     string      `json:"id"`
	Object EventObject `json:"object"`
}

type EventObject struct {
	Payment *PaymentObject `json:"payment,omitempty"`
	Refund  *RefundObject  `json:"refund,omitempty"`
}

type PaymentObject struct {
	ID     string `json:"id"`
	Status string `json:"status"`
}

type RefundObject struct {
	ID        string `json:"id"`
	PaymentID string `json:"payment_id"`
	Status    string `json:"status"`
}

// EventHandler applies verified events to the stores. Payment and refund
// events move transactions through their lifecycle; a revocation flips the
// stored record invalid without waiting for the next refresh probe.
type EventHandler struct {
	Connections  core.ConnectionStore
	Transactions core.TransactionStore
	Logger       core.Logger
}

func NewEventHandler(connections core.ConnectionStore, transactions core.TransactionStore, logger core.Logger) *EventHandler {
	return &EventHandler{
		Connections:  connections,
		Transactions: transactions,
		Logger:       glog.Ensure(logger),
	}
}

func (h *EventHandler) Handle(ctx context.Context, req Request) (Result, error) {
	if h == nil {
		return Result{}, fmt.Errorf("webhooks: event handler is not configured")
	}

	var event Event
	if err := json.Unmarshal(req.Body, &event); err != nil {
		return Result{}, fmt.Errorf("webhooks: decode event: %w", err)
	}

	switch strings.TrimSpace(event.Type) {
	case EventPaymentCreated, EventPaymentUpdated:
		return h.handlePayment(ctx, req, event)
	case EventRefundCreated:
		return h.handleRefund(ctx, req, event)
	case EventAuthorizationRevoked:
		return h.handleRevocation(ctx, req, event)
	default:
		h.logInfo(ctx, "webhook event ignored", map[string]any{
			"gateway_id": req.GatewayID,
			"mode":       string(req.Mode),
			"event_type": event.Type,
			"event_id":   event.EventID,
		})
		return Result{
			Accepted:   true,
			StatusCode: http.StatusOK,
			Metadata:   map[string]any{"ignored": true, "event_type": event.Type},
		}, nil
	}
}

func (h *EventHandler) handlePayment(ctx context.Context, req Request, event Event) (Result, error) {
	payment := event.Data.Object.Payment
	if payment == nil || strings.TrimSpace(payment.ID) == "" {
		return Result{}, fmt.Errorf("webhooks: payment event %q is missing the payment object", event.EventID)
	}

	var target core.TransactionStatus
	switch strings.ToUpper(strings.TrimSpace(payment.Status)) {
	case "COMPLETED", "APPROVED":
		target = core.TransactionStatusCompleted
	case "FAILED", "CANCELED":
		target = core.TransactionStatusFailed
	default:
		// intermediate provider status, nothing to move yet
		return Result{Accepted: true, StatusCode: http.StatusOK, Metadata: map[string]any{"ignored": true}}, nil
	}

	return h.transitionTransaction(ctx, req, payment.ID, target)
}

func (h *EventHandler) handleRefund(ctx context.Context, req Request, event Event) (Result, error) {
	refund := event.Data.Object.Refund
	if refund == nil || strings.TrimSpace(refund.PaymentID) == "" {
		return Result{}, fmt.Errorf("webhooks: refund event %q is missing the refund object", event.EventID)
	}
	return h.transitionTransaction(ctx, req, refund.PaymentID, core.TransactionStatusRefunded)
}

func (h *EventHandler) handleRevocation(ctx context.Context, req Request, event Event) (Result, error) {
	if h.Connections == nil {
		return Result{}, fmt.Errorf("webhooks: connection store is required for revocation events")
	}
	reason := fmt.Sprintf("authorization revoked (event %s)", strings.TrimSpace(event.EventID))
	if err := h.Connections.SetProbeResult(ctx, req.Mode, false, reason); err != nil {
		if errors.Is(err, core.ErrConnectionNotFound) {
			// nothing stored for this mode, acknowledge and move on
			return Result{Accepted: true, StatusCode: http.StatusOK, Metadata: map[string]any{"ignored": true}}, nil
		}
		return Result{}, err
	}
	h.logInfo(ctx, "connection invalidated by revocation event", map[string]any{
		"gateway_id": req.GatewayID,
		"mode":       string(req.Mode),
		"event_id":   event.EventID,
	})
	return Result{Accepted: true, StatusCode: http.StatusOK, Metadata: map[string]any{"invalidated": true}}, nil
}

func (h *EventHandler) transitionTransaction(ctx context.Context, req Request, gatewayTransactionID string, target core.TransactionStatus) (Result, error) {
	if h.Transactions == nil {
		return Result{}, fmt.Errorf("webhooks: transaction store is required for payment events")
	}

	txn, err := h.Transactions.GetByGatewayID(ctx, req.Mode, gatewayTransactionID)
	if err != nil {
		// charge submission may still be racing the webhook; retry later
		return Result{}, fmt.Errorf("webhooks: transaction lookup for %q: %w", gatewayTransactionID, err)
	}

	if err := h.Transactions.UpdateStatus(ctx, txn.ID, target); err != nil {
		if errors.Is(err, core.ErrInvalidTransactionStatusTransition) {
			h.logInfo(ctx, "webhook transition skipped for settled transaction", map[string]any{
				"transaction_id": txn.ID,
				"current":        string(txn.Status),
				"target":         string(target),
			})
			return Result{Accepted: true, StatusCode: http.StatusOK, Metadata: map[string]any{"ignored": true}}, nil
		}
		return Result{}, err
	}

	return Result{
		Accepted:   true,
		StatusCode: http.StatusOK,
		Metadata: map[string]any{
			"transaction_id": txn.ID,
			"status":         string(target),
		},
	}, nil
}

func (h *EventHandler) logInfo(ctx context.Context, message string, fields map[string]any) {
	if h == nil || h.Logger == nil {
		return
	}
	logger := h.Logger
	if ctx != nil {
		logger = logger.WithContext(ctx)
	}
	if fieldsLogger, ok := logger.(core.FieldsLogger); ok {
		logger = fieldsLogger.WithFields(fields)
	}
	logger.Info(message)
}

var _ Handler = (*EventHandler)(nil)
