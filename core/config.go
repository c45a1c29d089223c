package core

import (
	"fmt"
	"strings"
)

type ModeConfig struct {
	ApplicationID        string `koanf:"application_id" mapstructure:"application_id"`
	ApplicationSecret    string `koanf:"application_secret" mapstructure:"application_secret"`
	WebhookSigningSecret string `koanf:"webhook_signing_secret" mapstructure:"webhook_signing_secret"`
}

type Config struct {
	ServiceName     string     `koanf:"service_name" mapstructure:"service_name"`
	GatewayID       string     `koanf:"gateway_id" mapstructure:"gateway_id"`
	OrgCurrency     string     `koanf:"org_currency" mapstructure:"org_currency"`
	NotificationURL string     `koanf:"notification_url" mapstructure:"notification_url"`
	RefreshLeadDays int        `koanf:"refresh_lead_days" mapstructure:"refresh_lead_days"`
	TimeoutSeconds  int        `koanf:"timeout_seconds" mapstructure:"timeout_seconds"`
	Test            ModeConfig `koanf:"test" mapstructure:"test"`
	Live            ModeConfig `koanf:"live" mapstructure:"live"`
}

func DefaultConfig() Config {
	return Config{
		ServiceName:     "payments",
		GatewayID:       "square",
		OrgCurrency:     "USD",
		RefreshLeadDays: 14,
		TimeoutSeconds:  30,
	}
}

func (c Config) Validate() error {
	if strings.TrimSpace(c.ServiceName) == "" {
		return fmt.Errorf("core: service_name is required")
	}
	if strings.TrimSpace(c.GatewayID) == "" {
		return fmt.Errorf("core: gateway_id is required")
	}
	if strings.TrimSpace(c.OrgCurrency) == "" {
		return fmt.Errorf("core: org_currency is required")
	}
	if c.RefreshLeadDays < 0 {
		return fmt.Errorf("core: refresh_lead_days must not be negative")
	}
	if c.TimeoutSeconds < 0 {
		return fmt.Errorf("core: timeout_seconds must not be negative")
	}
	return nil
}

// ModeSettings returns the credential block for one mode.
func (c Config) ModeSettings(mode Mode) (ModeConfig, error) {
	switch mode {
	case ModeTest:
		return c.Test, nil
	case ModeLive:
		return c.Live, nil
	default:
		return ModeConfig{}, fmt.Errorf("%w: %q", ErrInvalidMode, string(mode))
	}
}
