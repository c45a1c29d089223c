package square

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/goliatone/go-payments/core"
)

const (
	// GatewayID is the identifier this client registers under.
	GatewayID = "square"

	defaultRequestTimeout    = 30 * time.Second
	maxResponseBodyBytes     = 1 << 20
	defaultAPIVersion        = "2025-07-16"
	defaultLiveBaseURL       = "https://connect.squareup.com"
	defaultSandboxBaseURL    = "https://connect.squareupsandbox.com"
	defaultAuthorizeScope    = "MERCHANT_PROFILE_READ PAYMENTS_WRITE PAYMENTS_READ SUBSCRIPTIONS_WRITE CUSTOMERS_WRITE"
	defaultSignatureHeader   = "X-Gateway-Signature"
	defaultEventIDBodyField  = "event_id"
	defaultWebhookEventTypes = "payment.created,payment.updated,refund.created,oauth.authorization.revoked"
)

type HTTPDoer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Credentials is one mode's application pair. The sandbox and production
// applications are distinct registrations with the provider.
type Credentials struct {
	ApplicationID     string
	ApplicationSecret string
}

type Config struct {
	Credentials    map[core.Mode]Credentials
	HTTPClient     HTTPDoer
	RequestTimeout time.Duration
	APIVersion     string
	AuthorizeScope string
	Now            func() time.Time

	// BaseURL overrides the per-mode endpoint, mainly for tests.
	BaseURL func(mode core.Mode) string
}

// Client implements core.PaymentGateway against the provider's REST surface.
// OAuth calls authenticate with the mode's application pair; everything else
// uses the bearer token carried on the ConnectionRecord.
type Client struct {
	config     Config
	httpClient HTTPDoer
}

func NewClient(cfg Config) *Client {
	if cfg.RequestTimeout <= 0 {
		cfg.RequestTimeout = defaultRequestTimeout
	}
	if cfg.Now == nil {
		cfg.Now = func() time.Time { return time.Now().UTC() }
	}
	if cfg.APIVersion == "" {
		cfg.APIVersion = defaultAPIVersion
	}
	if cfg.AuthorizeScope == "" {
		cfg.AuthorizeScope = defaultAuthorizeScope
	}
	if cfg.BaseURL == nil {
		cfg.BaseURL = defaultBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: cfg.RequestTimeout}
	}
	return &Client{config: cfg, httpClient: httpClient}
}

func (c *Client) ID() string {
	return GatewayID
}

// Register wires a configured client into the gateway registry.
func Register(registry core.Registry, cfg Config) (*Client, error) {
	if registry == nil {
		return nil, fmt.Errorf("square: registry is required")
	}
	client := NewClient(cfg)
	if err := registry.Register(client); err != nil {
		return nil, err
	}
	return client, nil
}

func defaultBaseURL(mode core.Mode) string {
	if mode == core.ModeLive {
		return defaultLiveBaseURL
	}
	return defaultSandboxBaseURL
}

func (c *Client) credentials(mode core.Mode) (Credentials, error) {
	creds, ok := c.config.Credentials[mode]
	if !ok {
		return Credentials{}, fmt.Errorf("square: credentials for mode %q are not configured", mode)
	}
	if strings.TrimSpace(creds.ApplicationID) == "" || strings.TrimSpace(creds.ApplicationSecret) == "" {
		return Credentials{}, fmt.Errorf("square: credentials for mode %q are incomplete", mode)
	}
	return creds, nil
}

func (c *Client) endpoint(mode core.Mode, path string) string {
	base := strings.TrimRight(c.config.BaseURL(mode), "/")
	return base + path
}

func (c *Client) now() time.Time {
	if c != nil && c.config.Now != nil {
		return c.config.Now().UTC()
	}
	return time.Now().UTC()
}

// doJSON executes one API call and decodes the response into out. Non-2xx
// responses are turned into *core.ProviderError carrying the provider's first
// error code, so the shared classifier can sort them.
func (c *Client) doJSON(ctx context.Context, mode core.Mode, method, path, bearer string, payload any, out any) error {
	if c == nil || c.httpClient == nil {
		return fmt.Errorf("square: http client is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	requestCtx := ctx
	cancel := func() {}
	if c.config.RequestTimeout > 0 {
		requestCtx, cancel = context.WithTimeout(ctx, c.config.RequestTimeout)
	}
	defer cancel()

	var body io.Reader
	if payload != nil {
		encoded, err := json.Marshal(payload)
		if err != nil {
			return fmt.Errorf("square: encode request: %w", err)
		}
		body = bytes.NewReader(encoded)
	}

	req, err := http.NewRequestWithContext(requestCtx, method, c.endpoint(mode, path), body)
	if err != nil {
		return fmt.Errorf("square: build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("Square-Version", c.config.APIVersion)
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	response, err := c.httpClient.Do(req)
	if err != nil {
		return &core.ProviderError{
			GatewayID: GatewayID,
			Detail:    "request failed",
			Cause:     err,
		}
	}
	defer response.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(response.Body, maxResponseBodyBytes+1))
	if err != nil {
		return &core.ProviderError{
			GatewayID:  GatewayID,
			StatusCode: response.StatusCode,
			Detail:     "read response",
			Cause:      err,
		}
	}
	if int64(len(raw)) > maxResponseBodyBytes {
		return &core.ProviderError{
			GatewayID:  GatewayID,
			StatusCode: response.StatusCode,
			Detail:     fmt.Sprintf("response exceeds %d bytes", maxResponseBodyBytes),
		}
	}

	if response.StatusCode < http.StatusOK || response.StatusCode >= http.StatusMultipleChoices {
		return providerErrorFromResponse(response.StatusCode, raw)
	}

	if out != nil && len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, out); err != nil {
			return &core.ProviderError{
				GatewayID:  GatewayID,
				StatusCode: response.StatusCode,
				Detail:     "decode response",
				Cause:      err,
			}
		}
	}
	return nil
}

type apiError struct {
	Category string `json:"category"`
	Code     string `json:"code"`
	Detail   string `json:"detail"`
	Field    string `json:"field"`
}

type errorEnvelope struct {
	Errors []apiError `json:"errors"`
	// legacy oauth endpoints use a flat error shape
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description"`
}

func providerErrorFromResponse(statusCode int, raw []byte) *core.ProviderError {
	envelope := errorEnvelope{}
	_ = json.Unmarshal(raw, &envelope)

	code := ""
	detail := ""
	if len(envelope.Errors) > 0 {
		code = strings.TrimSpace(envelope.Errors[0].Code)
		detail = strings.TrimSpace(envelope.Errors[0].Detail)
	}
	if code == "" {
		code = strings.ToUpper(strings.TrimSpace(envelope.Error))
	}
	if detail == "" {
		detail = strings.TrimSpace(envelope.ErrorDescription)
	}
	if detail == "" {
		detail = http.StatusText(statusCode)
	}
	return &core.ProviderError{
		GatewayID:  GatewayID,
		StatusCode: statusCode,
		Code:       code,
		Detail:     detail,
	}
}

var _ core.PaymentGateway = (*Client)(nil)
