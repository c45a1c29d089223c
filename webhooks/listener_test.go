package webhooks

import (
	"bytes"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/goliatone/go-payments/core"
)

func newTestListener(t *testing.T) (*ListenerHandler, map[core.Mode]HeaderHMACVerifier, *scriptedHandler) {
	t.Helper()

	verifiers := map[core.Mode]HeaderHMACVerifier{
		core.ModeTest: {Header: "X-Gateway-Signature", Secret: "test-secret", Encoding: "base64"},
		core.ModeLive: {Header: "X-Gateway-Signature", Secret: "live-secret", Encoding: "base64"},
	}
	handler := &scriptedHandler{result: Result{Accepted: true, StatusCode: http.StatusOK}}

	processors := map[core.Mode]*Processor{}
	for mode, verifier := range verifiers {
		processors[mode] = NewProcessor(verifier, NewMemoryDeliveryLedger(), handler)
	}
	return NewListenerHandler("square", processors, nil), verifiers, handler
}

func deliver(t *testing.T, listener *ListenerHandler, body []byte, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()

	req := httptest.NewRequest(http.MethodPost, "/payments/listener?gateway=square", bytes.NewReader(body))
	for key, value := range headers {
		req.Header.Set(key, value)
	}
	recorder := httptest.NewRecorder()
	listener.ServeHTTP(recorder, req)
	return recorder
}

func TestListenerRoutesByVerifierMatch(t *testing.T) {
	listener, verifiers, handler := newTestListener(t)
	body := []byte(`{"event_id":"evt-1","type":"payment.updated"}`)

	// signed with the live secret, so the test verifier rejects first
	signer := verifiers[core.ModeLive]
	recorder := deliver(t, listener, body, map[string]string{"X-Gateway-Signature": signer.SignBody(body)})

	if recorder.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", recorder.Code, recorder.Body.String())
	}
	if handler.calls != 1 {
		t.Fatalf("expected one dispatch, got %d", handler.calls)
	}
	if handler.last.Mode != core.ModeLive {
		t.Fatalf("expected live-mode dispatch, got %s", handler.last.Mode)
	}
}

func TestListenerRejectsBadSignature(t *testing.T) {
	listener, _, handler := newTestListener(t)
	body := []byte(`{"event_id":"evt-2","type":"payment.updated"}`)

	recorder := deliver(t, listener, body, map[string]string{"X-Gateway-Signature": "bm9wZQ=="})
	if recorder.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", recorder.Code)
	}
	if handler.calls != 0 {
		t.Fatal("unverified delivery must not dispatch")
	}
}

func TestListenerDedupesRedelivery(t *testing.T) {
	listener, verifiers, handler := newTestListener(t)
	body := []byte(`{"event_id":"evt-3","type":"refund.created"}`)
	signer := verifiers[core.ModeTest]
	headers := map[string]string{"X-Gateway-Signature": signer.SignBody(body)}

	if recorder := deliver(t, listener, body, headers); recorder.Code != http.StatusOK {
		t.Fatalf("first delivery: expected 200, got %d", recorder.Code)
	}
	recorder := deliver(t, listener, body, headers)
	if recorder.Code != http.StatusOK {
		t.Fatalf("redelivery: expected 200, got %d", recorder.Code)
	}
	if handler.calls != 1 {
		t.Fatalf("redelivery must not dispatch again, got %d calls", handler.calls)
	}

	var payload map[string]any
	if err := json.Unmarshal(recorder.Body.Bytes(), &payload); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if deduped, _ := payload["deduped"].(bool); !deduped {
		t.Fatalf("expected deduped response, got %+v", payload)
	}
}

func TestListenerHandlerFailureReturns500(t *testing.T) {
	listener, verifiers, handler := newTestListener(t)
	handler.err = fmt.Errorf("transaction store unavailable")
	body := []byte(`{"event_id":"evt-4","type":"payment.updated"}`)
	signer := verifiers[core.ModeTest]

	recorder := deliver(t, listener, body, map[string]string{"X-Gateway-Signature": signer.SignBody(body)})
	if recorder.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500 so the gateway redelivers, got %d", recorder.Code)
	}
}

func TestListenerMethodNotAllowed(t *testing.T) {
	listener, _, _ := newTestListener(t)

	req := httptest.NewRequest(http.MethodGet, "/payments/listener?gateway=square", nil)
	recorder := httptest.NewRecorder()
	listener.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusMethodNotAllowed {
		t.Fatalf("expected 405, got %d", recorder.Code)
	}
	if allow := recorder.Header().Get("Allow"); allow != http.MethodPost {
		t.Fatalf("expected Allow: POST, got %q", allow)
	}
}

func TestListenerUnknownGateway(t *testing.T) {
	listener, _, _ := newTestListener(t)

	req := httptest.NewRequest(http.MethodPost, "/payments/listener?gateway=stripe", bytes.NewReader([]byte(`{}`)))
	recorder := httptest.NewRecorder()
	listener.ServeHTTP(recorder, req)

	if recorder.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", recorder.Code)
	}
}
