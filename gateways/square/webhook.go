package square

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"

	"github.com/goliatone/go-payments/core"
	"github.com/goliatone/go-payments/webhooks"
)

type webhookSubscription struct {
	ID              string   `json:"id,omitempty"`
	Name            string   `json:"name"`
	NotificationURL string   `json:"notification_url"`
	EventTypes      []string `json:"event_types"`
	Enabled         bool     `json:"enabled"`
}

type webhookSubscriptionEnvelope struct {
	Subscription webhookSubscription `json:"subscription"`
}

// RegisterWebhook creates (or reuses) the provider-side subscription that
// delivers events to notificationURL. Returns the subscription id.
func (c *Client) RegisterWebhook(ctx context.Context, record core.ConnectionRecord, notificationURL string) (string, error) {
	if err := record.Mode.Validate(); err != nil {
		return "", err
	}
	bearer := strings.TrimSpace(record.AccessToken)
	if bearer == "" {
		return "", fmt.Errorf("square: access token is required")
	}
	notificationURL = strings.TrimSpace(notificationURL)
	if notificationURL == "" {
		return "", fmt.Errorf("square: notification url is required")
	}

	payload := webhookSubscriptionEnvelope{
		Subscription: webhookSubscription{
			Name:            fmt.Sprintf("payments-%s", record.Mode),
			NotificationURL: notificationURL,
			EventTypes:      strings.Split(defaultWebhookEventTypes, ","),
			Enabled:         true,
		},
	}

	response := webhookSubscriptionEnvelope{}
	if err := c.doJSON(ctx, record.Mode, http.MethodPost, "/v2/webhooks/subscriptions", bearer, payload, &response); err != nil {
		return "", err
	}
	subscriptionID := strings.TrimSpace(response.Subscription.ID)
	if subscriptionID == "" {
		return "", &core.ProviderError{
			GatewayID: GatewayID,
			Detail:    "webhook subscription response missing id",
		}
	}
	return subscriptionID, nil
}

// UnregisterWebhook deletes the subscription recorded on the connection. A
// subscription the provider no longer knows about counts as removed.
func (c *Client) UnregisterWebhook(ctx context.Context, record core.ConnectionRecord) error {
	if err := record.Mode.Validate(); err != nil {
		return err
	}
	subscriptionID := strings.TrimSpace(record.WebhookSubscriptionID)
	if subscriptionID == "" {
		return nil
	}
	bearer := strings.TrimSpace(record.AccessToken)
	if bearer == "" {
		return fmt.Errorf("square: access token is required")
	}

	path := "/v2/webhooks/subscriptions/" + url.PathEscape(subscriptionID)
	err := c.doJSON(ctx, record.Mode, http.MethodDelete, path, bearer, nil, nil)
	if err == nil {
		return nil
	}
	if providerErr, ok := err.(*core.ProviderError); ok && providerErr.StatusCode == http.StatusNotFound {
		return nil
	}
	return err
}

// WebhookVerifier builds the signature check for one mode's signing secret.
// The provider signs the raw body with HMAC-SHA256 and sends it base64
// encoded in the signature header.
func WebhookVerifier(signingSecret string) webhooks.HeaderHMACVerifier {
	return webhooks.HeaderHMACVerifier{
		Header:   defaultSignatureHeader,
		Secret:   signingSecret,
		Encoding: "base64",
	}
}

// WebhookTemplate bundles the verifier and event id extractor the processor
// needs for this gateway.
func WebhookTemplate(signingSecret string) webhooks.GatewayWebhookTemplate {
	return webhooks.GatewayWebhookTemplate{
		GatewayID: GatewayID,
		Verifier:  WebhookVerifier(signingSecret),
		Extractor: webhooks.BodyEventIDExtractor(defaultEventIDBodyField),
	}
}
