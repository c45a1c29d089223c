package square

import (
	"context"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goliatone/go-payments/core"
)

type tokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	MerchantID   string `json:"merchant_id"`
	ExpiresAt    string `json:"expires_at"`
	TokenType    string `json:"token_type"`
}

// BeginAuthorize builds the provider consent URL. No network call happens
// here; the state token round-trips through the provider untouched.
func (c *Client) BeginAuthorize(_ context.Context, req core.BeginAuthorizeRequest) (core.BeginAuthorizeResponse, error) {
	if c == nil {
		return core.BeginAuthorizeResponse{}, fmt.Errorf("square: client is not configured")
	}
	if err := req.Mode.Validate(); err != nil {
		return core.BeginAuthorizeResponse{}, err
	}
	state := strings.TrimSpace(req.State)
	if state == "" {
		return core.BeginAuthorizeResponse{}, fmt.Errorf("square: state is required")
	}
	creds, err := c.credentials(req.Mode)
	if err != nil {
		return core.BeginAuthorizeResponse{}, err
	}

	values := url.Values{}
	values.Set("client_id", creds.ApplicationID)
	values.Set("response_type", "code")
	values.Set("scope", c.config.AuthorizeScope)
	values.Set("state", state)
	values.Set("session", "false")
	if redirect := strings.TrimSpace(req.RedirectURI); redirect != "" {
		values.Set("redirect_uri", redirect)
	}

	return core.BeginAuthorizeResponse{
		URL:   c.endpoint(req.Mode, "/oauth2/authorize") + "?" + values.Encode(),
		State: state,
	}, nil
}

func (c *Client) ExchangeCode(ctx context.Context, req core.ExchangeCodeRequest) (core.TokenExchangeResult, error) {
	if err := req.Mode.Validate(); err != nil {
		return core.TokenExchangeResult{}, err
	}
	code := strings.TrimSpace(req.Code)
	if code == "" {
		return core.TokenExchangeResult{}, fmt.Errorf("square: authorization code is required")
	}
	creds, err := c.credentials(req.Mode)
	if err != nil {
		return core.TokenExchangeResult{}, err
	}

	payload := map[string]any{
		"client_id":     creds.ApplicationID,
		"client_secret": creds.ApplicationSecret,
		"grant_type":    "authorization_code",
		"code":          code,
	}
	if redirect := strings.TrimSpace(req.RedirectURI); redirect != "" {
		payload["redirect_uri"] = redirect
	}

	response := tokenResponse{}
	if err := c.doJSON(ctx, req.Mode, http.MethodPost, "/oauth2/token", "", payload, &response); err != nil {
		return core.TokenExchangeResult{}, err
	}
	return c.tokenResult(response)
}

// RefreshToken exchanges the stored refresh token for a new access token.
// Providers may rotate the refresh token; callers keep the old one when the
// response omits it.
func (c *Client) RefreshToken(ctx context.Context, record core.ConnectionRecord) (core.TokenExchangeResult, error) {
	if err := record.Mode.Validate(); err != nil {
		return core.TokenExchangeResult{}, err
	}
	refreshToken := strings.TrimSpace(record.RefreshToken)
	if refreshToken == "" {
		return core.TokenExchangeResult{}, fmt.Errorf("square: refresh token is required")
	}
	creds, err := c.credentials(record.Mode)
	if err != nil {
		return core.TokenExchangeResult{}, err
	}

	payload := map[string]any{
		"client_id":     creds.ApplicationID,
		"client_secret": creds.ApplicationSecret,
		"grant_type":    "refresh_token",
		"refresh_token": refreshToken,
	}

	response := tokenResponse{}
	if err := c.doJSON(ctx, record.Mode, http.MethodPost, "/oauth2/token", "", payload, &response); err != nil {
		return core.TokenExchangeResult{}, err
	}
	return c.tokenResult(response)
}

func (c *Client) tokenResult(response tokenResponse) (core.TokenExchangeResult, error) {
	accessToken := strings.TrimSpace(response.AccessToken)
	if accessToken == "" {
		return core.TokenExchangeResult{}, &core.ProviderError{
			GatewayID: GatewayID,
			Detail:    "token response missing access token",
		}
	}
	result := core.TokenExchangeResult{
		AccessToken:  accessToken,
		RefreshToken: strings.TrimSpace(response.RefreshToken),
		MerchantID:   strings.TrimSpace(response.MerchantID),
		IssuedAt:     c.now(),
	}
	if expires := strings.TrimSpace(response.ExpiresAt); expires != "" {
		parsed, err := time.Parse(time.RFC3339, expires)
		if err != nil {
			return core.TokenExchangeResult{}, &core.ProviderError{
				GatewayID: GatewayID,
				Detail:    fmt.Sprintf("unparseable token expiry %q", expires),
				Cause:     err,
			}
		}
		result.ExpiresAt = parsed.UTC()
	}
	return result, nil
}
