package square

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/goliatone/go-payments/core"
)

// cadenceVocabulary maps the neutral cadence onto the provider's billing
// interval names.
var cadenceVocabulary = map[core.Cadence]string{
	core.CadenceDaily:      "DAILY",
	core.CadenceWeekly:     "WEEKLY",
	core.CadenceMonthly:    "MONTHLY",
	core.CadenceQuarterly:  "QUARTERLY",
	core.CadenceSemiannual: "EVERY_SIX_MONTHS",
	core.CadenceAnnual:     "ANNUAL",
}

type customerPayload struct {
	IdempotencyKey string `json:"idempotency_key"`
	ReferenceID    string `json:"reference_id,omitempty"`
	Note           string `json:"note,omitempty"`
}

type customerEnvelope struct {
	Customer struct {
		ID string `json:"id"`
	} `json:"customer"`
}

type subscriptionPayload struct {
	IdempotencyKey string       `json:"idempotency_key"`
	LocationID     string       `json:"location_id"`
	CustomerID     string       `json:"customer_id"`
	CardToken      string       `json:"card_token"`
	Cadence        string       `json:"cadence"`
	PlanName       string       `json:"plan_name"`
	PriceMoney     moneyPayload `json:"price_money"`
}

type subscriptionEnvelope struct {
	Subscription struct {
		ID               string `json:"id"`
		Status           string `json:"status"`
		CustomerID       string `json:"customer_id"`
		InitialPaymentID string `json:"initial_payment_id"`
	} `json:"subscription"`
}

// CreateSubscription provisions a provider customer and starts the recurring
// plan against it. The initial charge, when the provider takes it inline,
// comes back as InitialPaymentID.
func (c *Client) CreateSubscription(ctx context.Context, record core.ConnectionRecord, req core.SubscriptionRequest) (core.SubscriptionResult, error) {
	if err := record.Mode.Validate(); err != nil {
		return core.SubscriptionResult{}, err
	}
	bearer := strings.TrimSpace(record.AccessToken)
	if bearer == "" {
		return core.SubscriptionResult{}, fmt.Errorf("square: access token is required")
	}
	if err := req.Cadence.Validate(); err != nil {
		return core.SubscriptionResult{}, err
	}
	if strings.TrimSpace(req.SourceToken) == "" {
		return core.SubscriptionResult{}, fmt.Errorf("square: source token is required")
	}
	if strings.TrimSpace(req.IdempotencyKey) == "" {
		return core.SubscriptionResult{}, fmt.Errorf("square: idempotency key is required")
	}
	if req.AmountMinor <= 0 {
		return core.SubscriptionResult{}, fmt.Errorf("square: amount must be positive")
	}

	customer := customerEnvelope{}
	err := c.doJSON(ctx, record.Mode, http.MethodPost, "/v2/customers", bearer, customerPayload{
		IdempotencyKey: strings.TrimSpace(req.IdempotencyKey) + "-customer",
		ReferenceID:    strings.TrimSpace(req.CustomerRef),
	}, &customer)
	if err != nil {
		return core.SubscriptionResult{}, err
	}
	customerID := strings.TrimSpace(customer.Customer.ID)
	if customerID == "" {
		return core.SubscriptionResult{}, &core.ProviderError{
			GatewayID: GatewayID,
			Detail:    "customer response missing id",
		}
	}

	payload := subscriptionPayload{
		IdempotencyKey: strings.TrimSpace(req.IdempotencyKey),
		LocationID:     strings.TrimSpace(req.LocationID),
		CustomerID:     customerID,
		CardToken:      strings.TrimSpace(req.SourceToken),
		Cadence:        cadenceVocabulary[req.Cadence],
		PlanName:       strings.TrimSpace(req.PlanName),
		PriceMoney: moneyPayload{
			Amount:   req.AmountMinor,
			Currency: strings.ToUpper(strings.TrimSpace(req.Currency)),
		},
	}

	response := subscriptionEnvelope{}
	if err := c.doJSON(ctx, record.Mode, http.MethodPost, "/v2/subscriptions", bearer, payload, &response); err != nil {
		return core.SubscriptionResult{}, err
	}
	subscriptionID := strings.TrimSpace(response.Subscription.ID)
	if subscriptionID == "" {
		return core.SubscriptionResult{}, &core.ProviderError{
			GatewayID: GatewayID,
			Detail:    "subscription response missing id",
		}
	}
	return core.SubscriptionResult{
		GatewaySubscriptionID: subscriptionID,
		GatewayCustomerID:     customerID,
		InitialPaymentID:      strings.TrimSpace(response.Subscription.InitialPaymentID),
		Active:                strings.EqualFold(response.Subscription.Status, "ACTIVE"),
	}, nil
}

// CancelSubscription ends the recurring plan. A subscription the provider
// already canceled (or no longer knows) counts as canceled.
func (c *Client) CancelSubscription(ctx context.Context, record core.ConnectionRecord, gatewaySubscriptionID string) (core.CancelSubscriptionResult, error) {
	if err := record.Mode.Validate(); err != nil {
		return core.CancelSubscriptionResult{}, err
	}
	bearer := strings.TrimSpace(record.AccessToken)
	if bearer == "" {
		return core.CancelSubscriptionResult{}, fmt.Errorf("square: access token is required")
	}
	gatewaySubscriptionID = strings.TrimSpace(gatewaySubscriptionID)
	if gatewaySubscriptionID == "" {
		return core.CancelSubscriptionResult{}, fmt.Errorf("square: subscription id is required")
	}

	path := "/v2/subscriptions/" + url.PathEscape(gatewaySubscriptionID) + "/cancel"
	err := c.doJSON(ctx, record.Mode, http.MethodPost, path, bearer, nil, nil)
	if err == nil {
		return core.CancelSubscriptionResult{}, nil
	}
	if providerErr, ok := err.(*core.ProviderError); ok {
		if providerErr.StatusCode == http.StatusNotFound {
			return core.CancelSubscriptionResult{AlreadyCanceled: true}, nil
		}
		if strings.EqualFold(providerErr.Code, "SUBSCRIPTION_ALREADY_CANCELED") {
			return core.CancelSubscriptionResult{AlreadyCanceled: true}, nil
		}
	}
	return core.CancelSubscriptionResult{}, err
}
