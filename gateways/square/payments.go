package square

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-payments/core"
)

type moneyPayload struct {
	Amount   int64  `json:"amount"`
	Currency string `json:"currency"`
}

type paymentPayload struct {
	SourceID       string       `json:"source_id"`
	IdempotencyKey string       `json:"idempotency_key"`
	AmountMoney    moneyPayload `json:"amount_money"`
	LocationID     string       `json:"location_id,omitempty"`
	ReferenceID    string       `json:"reference_id,omitempty"`
	Note           string       `json:"note,omitempty"`
}

type paymentEnvelope struct {
	Payment struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"payment"`
}

// CreatePayment submits one charge. The idempotency key makes retried
// submissions converge on a single provider payment.
func (c *Client) CreatePayment(ctx context.Context, record core.ConnectionRecord, req core.PaymentRequest) (core.PaymentResult, error) {
	if err := record.Mode.Validate(); err != nil {
		return core.PaymentResult{}, err
	}
	bearer := strings.TrimSpace(record.AccessToken)
	if bearer == "" {
		return core.PaymentResult{}, fmt.Errorf("square: access token is required")
	}
	if strings.TrimSpace(req.SourceToken) == "" {
		return core.PaymentResult{}, fmt.Errorf("square: source token is required")
	}
	if strings.TrimSpace(req.IdempotencyKey) == "" {
		return core.PaymentResult{}, fmt.Errorf("square: idempotency key is required")
	}
	if req.AmountMinor <= 0 {
		return core.PaymentResult{}, fmt.Errorf("square: amount must be positive")
	}

	payload := paymentPayload{
		SourceID:       strings.TrimSpace(req.SourceToken),
		IdempotencyKey: strings.TrimSpace(req.IdempotencyKey),
		AmountMoney: moneyPayload{
			Amount:   req.AmountMinor,
			Currency: strings.ToUpper(strings.TrimSpace(req.Currency)),
		},
		LocationID:  strings.TrimSpace(req.LocationID),
		ReferenceID: strings.TrimSpace(req.ReferenceID),
		Note:        strings.TrimSpace(req.Note),
	}

	response := paymentEnvelope{}
	if err := c.doJSON(ctx, record.Mode, http.MethodPost, "/v2/payments", bearer, payload, &response); err != nil {
		return core.PaymentResult{}, err
	}
	paymentID := strings.TrimSpace(response.Payment.ID)
	if paymentID == "" {
		return core.PaymentResult{}, &core.ProviderError{
			GatewayID: GatewayID,
			Detail:    "payment response missing id",
		}
	}
	status := strings.ToUpper(strings.TrimSpace(response.Payment.Status))
	return core.PaymentResult{
		GatewayTransactionID: paymentID,
		Status:               status,
		Completed:            status == "COMPLETED",
	}, nil
}

type refundPayload struct {
	PaymentID      string       `json:"payment_id"`
	IdempotencyKey string       `json:"idempotency_key"`
	AmountMoney    moneyPayload `json:"amount_money"`
	Reason         string       `json:"reason,omitempty"`
}

type refundEnvelope struct {
	Refund struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	} `json:"refund"`
}

func (c *Client) CreateRefund(ctx context.Context, record core.ConnectionRecord, req core.RefundRequest) (core.RefundResult, error) {
	if err := record.Mode.Validate(); err != nil {
		return core.RefundResult{}, err
	}
	bearer := strings.TrimSpace(record.AccessToken)
	if bearer == "" {
		return core.RefundResult{}, fmt.Errorf("square: access token is required")
	}
	if strings.TrimSpace(req.GatewayTransactionID) == "" {
		return core.RefundResult{}, fmt.Errorf("square: payment id is required")
	}
	if strings.TrimSpace(req.IdempotencyKey) == "" {
		return core.RefundResult{}, fmt.Errorf("square: idempotency key is required")
	}
	if req.AmountMinor <= 0 {
		return core.RefundResult{}, fmt.Errorf("square: refund amount must be positive")
	}

	payload := refundPayload{
		PaymentID:      strings.TrimSpace(req.GatewayTransactionID),
		IdempotencyKey: strings.TrimSpace(req.IdempotencyKey),
		AmountMoney: moneyPayload{
			Amount:   req.AmountMinor,
			Currency: strings.ToUpper(strings.TrimSpace(req.Currency)),
		},
		Reason: strings.TrimSpace(req.Reason),
	}

	response := refundEnvelope{}
	if err := c.doJSON(ctx, record.Mode, http.MethodPost, "/v2/refunds", bearer, payload, &response); err != nil {
		return core.RefundResult{}, err
	}
	refundID := strings.TrimSpace(response.Refund.ID)
	if refundID == "" {
		return core.RefundResult{}, &core.ProviderError{
			GatewayID: GatewayID,
			Detail:    "refund response missing id",
		}
	}
	return core.RefundResult{
		GatewayRefundID: refundID,
		Status:          strings.ToUpper(strings.TrimSpace(response.Refund.Status)),
	}, nil
}
