package webhooks

import (
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"

	"github.com/goliatone/go-payments/core"
	glog "github.com/goliatone/go-logger/glog"
)

const defaultMaxBodyBytes = 1 << 20

// ListenerHandler is the single inbound surface: POST /listener?gateway=<id>.
// The sender does not say which mode it is delivering for, so the listener
// tries each mode's verifier in order; the first signature match routes the
// event. Verification failure on every mode is a 400.
type ListenerHandler struct {
	GatewayID    string
	Processors   map[core.Mode]*Processor
	Logger       core.Logger
	MaxBodyBytes int64
}

func NewListenerHandler(gatewayID string, processors map[core.Mode]*Processor, logger core.Logger) *ListenerHandler {
	return &ListenerHandler{
		GatewayID:    strings.TrimSpace(gatewayID),
		Processors:   processors,
		Logger:       glog.Ensure(logger),
		MaxBodyBytes: defaultMaxBodyBytes,
	}
}

func (h *ListenerHandler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if h == nil || len(h.Processors) == 0 {
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "listener is not configured"})
		return
	}
	if r.Method != http.MethodPost {
		w.Header().Set("Allow", http.MethodPost)
		writeJSON(w, http.StatusMethodNotAllowed, map[string]any{"error": "method not allowed"})
		return
	}
	if gateway := strings.TrimSpace(r.URL.Query().Get("gateway")); gateway != "" && !strings.EqualFold(gateway, h.GatewayID) {
		writeJSON(w, http.StatusNotFound, map[string]any{"error": fmt.Sprintf("unknown gateway %q", gateway)})
		return
	}

	maxBytes := h.MaxBodyBytes
	if maxBytes <= 0 {
		maxBytes = defaultMaxBodyBytes
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxBytes))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]any{"error": "unreadable body"})
		return
	}

	headers := map[string]string{}
	for key := range r.Header {
		headers[key] = r.Header.Get(key)
	}

	for _, mode := range core.Modes() {
		processor, ok := h.Processors[mode]
		if !ok || processor == nil {
			continue
		}
		result, processErr := processor.Process(r.Context(), Request{
			GatewayID: h.GatewayID,
			Mode:      mode,
			Headers:   headers,
			Body:      body,
		})
		if processErr == nil {
			status := result.StatusCode
			if status == 0 {
				status = http.StatusOK
			}
			payload := ensureMetadata(result.Metadata)
			payload["accepted"] = result.Accepted
			writeJSON(w, status, payload)
			return
		}
		if signatureRejected(result) {
			continue
		}

		h.logError(r, "webhook processing failed", map[string]any{
			"gateway_id": h.GatewayID,
			"mode":       string(mode),
			"error":      processErr.Error(),
		})
		// non-2xx tells the gateway to redeliver; the ledger dedupes
		writeJSON(w, http.StatusInternalServerError, map[string]any{"error": "processing failed"})
		return
	}

	writeJSON(w, http.StatusBadRequest, map[string]any{"error": "signature verification failed"})
}

func signatureRejected(result Result) bool {
	if result.StatusCode != http.StatusUnauthorized {
		return false
	}
	rejected, _ := result.Metadata["rejected"].(bool)
	return rejected
}

func (h *ListenerHandler) logError(r *http.Request, message string, fields map[string]any) {
	if h == nil || h.Logger == nil {
		return
	}
	logger := h.Logger
	if r != nil {
		logger = logger.WithContext(r.Context())
	}
	if fieldsLogger, ok := logger.(core.FieldsLogger); ok {
		logger = fieldsLogger.WithFields(fields)
	}
	logger.Error(message)
}

func writeJSON(w http.ResponseWriter, status int, payload map[string]any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}
