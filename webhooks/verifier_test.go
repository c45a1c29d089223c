package webhooks

import (
	"context"
	"strings"
	"testing"
)

func TestHeaderHMACVerifierBase64(t *testing.T) {
	verifier := HeaderHMACVerifier{
		Header:   "X-Gateway-Signature",
		Secret:   "wh-secret",
		Encoding: "base64",
	}
	body := []byte(`{"event_id":"evt-1","type":"payment.updated"}`)

	req := Request{
		Headers: map[string]string{"X-Gateway-Signature": verifier.SignBody(body)},
		Body:    body,
	}
	if err := verifier.Verify(context.Background(), req); err != nil {
		t.Fatalf("verify: %v", err)
	}

	// header lookup is case-insensitive
	req.Headers = map[string]string{"x-gateway-signature": verifier.SignBody(body)}
	if err := verifier.Verify(context.Background(), req); err != nil {
		t.Fatalf("verify with lowercase header: %v", err)
	}
}

func TestHeaderHMACVerifierRejectsTamperedBody(t *testing.T) {
	verifier := HeaderHMACVerifier{
		Header:   "X-Gateway-Signature",
		Secret:   "wh-secret",
		Encoding: "base64",
	}
	body := []byte(`{"event_id":"evt-1"}`)
	signature := verifier.SignBody(body)

	req := Request{
		Headers: map[string]string{"X-Gateway-Signature": signature},
		Body:    []byte(`{"event_id":"evt-2"}`),
	}
	if err := verifier.Verify(context.Background(), req); err == nil {
		t.Fatal("expected tampered body to fail verification")
	}
}

func TestHeaderHMACVerifierRejectsWrongSecret(t *testing.T) {
	signer := HeaderHMACVerifier{Header: "X-Gateway-Signature", Secret: "other-secret", Encoding: "base64"}
	verifier := HeaderHMACVerifier{Header: "X-Gateway-Signature", Secret: "wh-secret", Encoding: "base64"}
	body := []byte(`{"event_id":"evt-1"}`)

	req := Request{
		Headers: map[string]string{"X-Gateway-Signature": signer.SignBody(body)},
		Body:    body,
	}
	if err := verifier.Verify(context.Background(), req); err == nil {
		t.Fatal("expected signature from another secret to fail")
	}
}

func TestHeaderHMACVerifierMissingHeader(t *testing.T) {
	verifier := HeaderHMACVerifier{Header: "X-Gateway-Signature", Secret: "wh-secret", Encoding: "base64"}
	err := verifier.Verify(context.Background(), Request{Body: []byte("{}")})
	if err == nil || !strings.Contains(err.Error(), "signature header is required") {
		t.Fatalf("expected missing header error, got %v", err)
	}
}

func TestHeaderHMACVerifierHexWithPrefix(t *testing.T) {
	verifier := HeaderHMACVerifier{
		Header:   "X-Signature-256",
		Prefix:   "sha256=",
		Secret:   "wh-secret",
		Encoding: "hex",
	}
	body := []byte(`{"event_id":"evt-9"}`)

	req := Request{
		Headers: map[string]string{"X-Signature-256": verifier.SignBody(body)},
		Body:    body,
	}
	if err := verifier.Verify(context.Background(), req); err != nil {
		t.Fatalf("verify hex with prefix: %v", err)
	}
}

func TestBodyEventIDExtractor(t *testing.T) {
	extract := BodyEventIDExtractor("event_id")

	eventID, err := extract(Request{Body: []byte(`{"event_id":"evt-42","type":"refund.created"}`)})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if eventID != "evt-42" {
		t.Fatalf("expected evt-42, got %q", eventID)
	}

	if _, err := extract(Request{Body: []byte(`{"type":"refund.created"}`)}); err == nil {
		t.Fatal("expected missing event id to fail")
	}
	if _, err := extract(Request{Body: []byte(`not json`)}); err == nil {
		t.Fatal("expected malformed payload to fail")
	}
}

func TestChainEventIDExtractors(t *testing.T) {
	extract := ChainEventIDExtractors(
		HeaderEventIDExtractor("X-Event-Id"),
		BodyEventIDExtractor("event_id"),
	)

	eventID, err := extract(Request{Body: []byte(`{"event_id":"evt-7"}`)})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if eventID != "evt-7" {
		t.Fatalf("expected body fallback, got %q", eventID)
	}

	eventID, err = extract(Request{
		Headers: map[string]string{"X-Event-Id": "evt-8"},
		Body:    []byte(`{"event_id":"evt-7"}`),
	})
	if err != nil {
		t.Fatalf("extract: %v", err)
	}
	if eventID != "evt-8" {
		t.Fatalf("expected header to win, got %q", eventID)
	}
}
