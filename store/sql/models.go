package sqlstore

import (
	"time"

	"github.com/uptrace/bun"
)

type paymentConnectionRecord struct {
	bun.BaseModel `bun:"table:payment_connections,alias:pc"`

	ID                    string    `bun:"id,pk"`
	Mode                  string    `bun:"mode,notnull,unique"`
	GatewayID             string    `bun:"gateway_id,notnull"`
	AccessToken           string    `bun:"access_token,notnull"`
	RefreshToken          string    `bun:"refresh_token,notnull"`
	MerchantID            string    `bun:"merchant_id"`
	LocationID            string    `bun:"location_id"`
	LocationCurrency      string    `bun:"location_currency"`
	WebhookSubscriptionID string    `bun:"webhook_subscription_id"`
	TokenIssuedAt         time.Time `bun:"token_issued_at,nullzero"`
	TokenExpiresAt        time.Time `bun:"token_expires_at,nullzero"`
	LastProbeOK           bool      `bun:"last_probe_ok,notnull"`
	LastProbeError        string    `bun:"last_probe_error"`
	CreatedAt             time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt             time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type paymentTransactionRecord struct {
	bun.BaseModel `bun:"table:payment_transactions,alias:pt"`

	ID                   string    `bun:"id,pk"`
	DonationID           string    `bun:"donation_id,notnull"`
	Mode                 string    `bun:"mode,notnull"`
	GatewayTransactionID string    `bun:"gateway_transaction_id"`
	AmountMinor          int64     `bun:"amount_minor,notnull"`
	Currency             string    `bun:"currency,notnull"`
	LocationID           string    `bun:"location_id"`
	Note                 string    `bun:"note"`
	Kind                 string    `bun:"kind,notnull"`
	Status               string    `bun:"status,notnull"`
	CreatedAt            time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt            time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type paymentSubscriptionRecord struct {
	bun.BaseModel `bun:"table:payment_subscriptions,alias:ps"`

	ID                    string    `bun:"id,pk"`
	DonationID            string    `bun:"donation_id,notnull"`
	Mode                  string    `bun:"mode,notnull"`
	GatewaySubscriptionID string    `bun:"gateway_subscription_id"`
	GatewayCustomerID     string    `bun:"gateway_customer_id"`
	Cadence               string    `bun:"cadence,notnull"`
	PlanName              string    `bun:"plan_name"`
	CustomerRef           string    `bun:"customer_ref"`
	Status                string    `bun:"status,notnull"`
	CreatedAt             time.Time `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt             time.Time `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}

type paymentWebhookDeliveryRecord struct {
	bun.BaseModel `bun:"table:payment_webhook_deliveries,alias:pwd"`

	ID            string     `bun:"id,pk"`
	ClaimID       string     `bun:"claim_id,notnull"`
	GatewayID     string     `bun:"gateway_id,notnull"`
	Mode          string     `bun:"mode,notnull"`
	EventID       string     `bun:"event_id,notnull"`
	Status        string     `bun:"status,notnull"`
	Attempts      int        `bun:"attempts,notnull"`
	LastError     string     `bun:"last_error"`
	LeaseUntil    *time.Time `bun:"lease_until,nullzero"`
	NextAttemptAt *time.Time `bun:"next_attempt_at,nullzero"`
	Payload       []byte     `bun:"payload"`
	CreatedAt     time.Time  `bun:"created_at,nullzero,notnull,default:current_timestamp"`
	UpdatedAt     time.Time  `bun:"updated_at,nullzero,notnull,default:current_timestamp"`
}
