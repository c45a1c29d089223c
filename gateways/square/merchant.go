package square

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/goliatone/go-payments/core"
)

type locationResponse struct {
	Locations []struct {
		ID       string `json:"id"`
		Name     string `json:"name"`
		Status   string `json:"status"`
		Currency string `json:"currency"`
		Type     string `json:"type"`
	} `json:"locations"`
}

// PrimaryLocation resolves the charge location for a connected merchant: the
// first active physical location, falling back to the first active one.
func (c *Client) PrimaryLocation(ctx context.Context, record core.ConnectionRecord) (core.Location, error) {
	if err := record.Mode.Validate(); err != nil {
		return core.Location{}, err
	}
	bearer := strings.TrimSpace(record.AccessToken)
	if bearer == "" {
		return core.Location{}, fmt.Errorf("square: access token is required")
	}

	response := locationResponse{}
	if err := c.doJSON(ctx, record.Mode, http.MethodGet, "/v2/locations", bearer, nil, &response); err != nil {
		return core.Location{}, err
	}

	var fallback *core.Location
	for _, location := range response.Locations {
		if !strings.EqualFold(location.Status, "ACTIVE") {
			continue
		}
		candidate := core.Location{ID: location.ID, Currency: strings.ToUpper(location.Currency)}
		if strings.EqualFold(location.Type, "PHYSICAL") {
			return candidate, nil
		}
		if fallback == nil {
			value := candidate
			fallback = &value
		}
	}
	if fallback != nil {
		return *fallback, nil
	}
	return core.Location{}, &core.ProviderError{
		GatewayID: GatewayID,
		Detail:    "merchant has no active locations",
	}
}
