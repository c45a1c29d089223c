package webhooks

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/base64"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"strings"
)

// GatewayWebhookTemplate bundles the verification and event-id extraction
// rules one gateway ships with.
type GatewayWebhookTemplate struct {
	GatewayID string
	Verifier  Verifier
	Extractor EventIDExtractor
}

// HeaderHMACVerifier checks an HMAC-SHA256 signature computed over the raw
// request body. Comparison is constant time in both encodings.
type HeaderHMACVerifier struct {
	Header   string
	Prefix   string
	Secret   string
	Encoding string // hex | base64
}

func (v HeaderHMACVerifier) Verify(_ context.Context, req Request) error {
	header := strings.TrimSpace(headerValue(req.Headers, v.Header))
	if header == "" {
		return fmt.Errorf("webhooks: %s signature header is required", strings.TrimSpace(v.Header))
	}
	secret := strings.TrimSpace(v.Secret)
	if secret == "" {
		return fmt.Errorf("webhooks: signature secret is required")
	}
	signature := strings.TrimPrefix(header, strings.TrimSpace(v.Prefix))
	signature = strings.TrimSpace(signature)
	if signature == "" {
		return fmt.Errorf("webhooks: signature value is required")
	}

	mac := hmac.New(sha256.New, []byte(secret))
	_, _ = mac.Write(req.Body)
	expected := mac.Sum(nil)

	switch strings.ToLower(strings.TrimSpace(v.Encoding)) {
	case "base64":
		decoded, err := base64.StdEncoding.DecodeString(signature)
		if err != nil {
			return fmt.Errorf("webhooks: decode base64 signature: %w", err)
		}
		if subtle.ConstantTimeCompare(decoded, expected) != 1 {
			return fmt.Errorf("webhooks: signature verification failed")
		}
	default:
		decoded, err := hex.DecodeString(signature)
		if err != nil {
			return fmt.Errorf("webhooks: decode hex signature: %w", err)
		}
		if subtle.ConstantTimeCompare(decoded, expected) != 1 {
			return fmt.Errorf("webhooks: signature verification failed")
		}
	}
	return nil
}

// SignBody produces the signature value a sender would place in the header.
// Exported for tests and for local loopback deliveries.
func (v HeaderHMACVerifier) SignBody(body []byte) string {
	mac := hmac.New(sha256.New, []byte(strings.TrimSpace(v.Secret)))
	_, _ = mac.Write(body)
	sum := mac.Sum(nil)
	var encoded string
	switch strings.ToLower(strings.TrimSpace(v.Encoding)) {
	case "base64":
		encoded = base64.StdEncoding.EncodeToString(sum)
	default:
		encoded = hex.EncodeToString(sum)
	}
	return strings.TrimSpace(v.Prefix) + encoded
}

func HeaderEventIDExtractor(headers ...string) EventIDExtractor {
	keys := append([]string(nil), headers...)
	return func(req Request) (string, error) {
		for _, key := range keys {
			if value := strings.TrimSpace(headerValue(req.Headers, key)); value != "" {
				return value, nil
			}
		}
		return "", fmt.Errorf("webhooks: event id is required for dedupe")
	}
}

// BodyEventIDExtractor reads the event id field from the JSON payload.
func BodyEventIDExtractor(field string) EventIDExtractor {
	field = strings.TrimSpace(field)
	return func(req Request) (string, error) {
		var payload map[string]json.RawMessage
		if err := json.Unmarshal(req.Body, &payload); err != nil {
			return "", fmt.Errorf("webhooks: decode event payload: %w", err)
		}
		raw, ok := payload[field]
		if !ok {
			return "", fmt.Errorf("webhooks: event id field %q is required for dedupe", field)
		}
		var value string
		if err := json.Unmarshal(raw, &value); err != nil {
			return "", fmt.Errorf("webhooks: decode event id: %w", err)
		}
		value = strings.TrimSpace(value)
		if value == "" {
			return "", fmt.Errorf("webhooks: event id field %q is empty", field)
		}
		return value, nil
	}
}

func ChainEventIDExtractors(extractors ...EventIDExtractor) EventIDExtractor {
	list := append([]EventIDExtractor(nil), extractors...)
	return func(req Request) (string, error) {
		var lastErr error
		for _, extractor := range list {
			if extractor == nil {
				continue
			}
			eventID, err := extractor(req)
			if err == nil && strings.TrimSpace(eventID) != "" {
				return strings.TrimSpace(eventID), nil
			}
			if err != nil {
				lastErr = err
			}
		}
		if lastErr != nil {
			return "", lastErr
		}
		return "", fmt.Errorf("webhooks: event id is required for dedupe")
	}
}

func headerValue(headers map[string]string, key string) string {
	if len(headers) == 0 {
		return ""
	}
	for existing, value := range headers {
		if strings.EqualFold(strings.TrimSpace(existing), strings.TrimSpace(key)) {
			return strings.TrimSpace(value)
		}
	}
	return ""
}
