package core

import (
	"errors"
	"fmt"
	"strings"
	"time"
)

var (
	ErrInvalidMode                         = errors.New("core: invalid mode")
	ErrInvalidCadence                      = errors.New("core: invalid cadence")
	ErrInvalidTransactionStatusTransition  = errors.New("core: invalid transaction status transition")
	ErrInvalidSubscriptionStatusTransition = errors.New("core: invalid subscription status transition")
	ErrTransactionNotFound                 = errors.New("core: transaction not found")
	ErrSubscriptionNotFound                = errors.New("core: subscription not found")
	ErrConnectionNotFound                  = errors.New("core: connection record not found")
)

// Mode selects an isolated credential/environment pair. Connection state is
// duplicated per mode and never shared across them.
type Mode string

const (
	ModeTest Mode = "test"
	ModeLive Mode = "live"
)

func ParseMode(value string) (Mode, error) {
	switch strings.TrimSpace(strings.ToLower(value)) {
	case string(ModeTest):
		return ModeTest, nil
	case string(ModeLive):
		return ModeLive, nil
	default:
		return "", fmt.Errorf("%w: %q", ErrInvalidMode, value)
	}
}

func (m Mode) Validate() error {
	_, err := ParseMode(string(m))
	return err
}

// Modes returns the fixed mode set in deterministic order.
func Modes() []Mode {
	return []Mode{ModeTest, ModeLive}
}

type ConnectionStatus string

const (
	ConnectionStatusDisconnected     ConnectionStatus = "disconnected"
	ConnectionStatusMissing          ConnectionStatus = "missing"
	ConnectionStatusInvalid          ConnectionStatus = "invalid"
	ConnectionStatusCurrencyMismatch ConnectionStatus = "currency_mismatch"
	ConnectionStatusExpired          ConnectionStatus = "expired"
	ConnectionStatusConnected        ConnectionStatus = "connected"
)

// ConnectionRecord is the persisted credential set for one mode. It is owned
// exclusively by the ConnectionStore: writers replace the whole record,
// readers get a value copy and never mutate through it.
type ConnectionRecord struct {
	Mode                  Mode
	GatewayID             string
	AccessToken           string
	RefreshToken          string
	MerchantID            string
	LocationID            string
	LocationCurrency      string
	WebhookSubscriptionID string
	TokenIssuedAt         time.Time
	TokenExpiresAt        time.Time
	LastProbeOK           bool
	LastProbeError        string
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (r ConnectionRecord) HasTokens() bool {
	return strings.TrimSpace(r.AccessToken) != "" && strings.TrimSpace(r.RefreshToken) != ""
}

type TransactionKind string

const (
	TransactionKindSingle              TransactionKind = "single"
	TransactionKindSubscriptionInitial TransactionKind = "subscription_initial"
)

type TransactionStatus string

const (
	TransactionStatusPending   TransactionStatus = "pending"
	TransactionStatusCompleted TransactionStatus = "completed"
	TransactionStatusFailed    TransactionStatus = "failed"
	TransactionStatusRefunded  TransactionStatus = "refunded"
)

// Transaction captures a submitted charge. The request fields are immutable
// after submission; only Status moves, driven by webhook deliveries.
type Transaction struct {
	ID                   string
	DonationID           string
	Mode                 Mode
	GatewayTransactionID string
	AmountMinor          int64
	Currency             string
	LocationID           string
	Note                 string
	Kind                 TransactionKind
	Status               TransactionStatus
	CreatedAt            time.Time
	UpdatedAt            time.Time
}

func (t *Transaction) TransitionTo(status TransactionStatus, now time.Time) error {
	if t == nil {
		return nil
	}
	if t.Status == status {
		t.UpdatedAt = now
		return nil
	}
	if !transactionTransitionAllowed(t.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidTransactionStatusTransition, t.Status, status)
	}
	t.Status = status
	t.UpdatedAt = now
	return nil
}

func transactionTransitionAllowed(current, next TransactionStatus) bool {
	allowed := map[TransactionStatus]map[TransactionStatus]struct{}{
		TransactionStatusPending: {
			TransactionStatusCompleted: {},
			TransactionStatusFailed:    {},
			TransactionStatusRefunded:  {},
		},
		TransactionStatusCompleted: {
			TransactionStatusRefunded: {},
		},
		TransactionStatusFailed:   {},
		TransactionStatusRefunded: {},
	}
	_, ok := allowed[current][next]
	return ok
}

// Cadence is the recurrence interval of a subscription. Gateways translate it
// into their own vocabulary.
type Cadence string

const (
	CadenceDaily      Cadence = "daily"
	CadenceWeekly     Cadence = "weekly"
	CadenceMonthly    Cadence = "monthly"
	CadenceQuarterly  Cadence = "quarterly"
	CadenceSemiannual Cadence = "semiannual"
	CadenceAnnual     Cadence = "annual"
)

func (c Cadence) Validate() error {
	switch c {
	case CadenceDaily, CadenceWeekly, CadenceMonthly, CadenceQuarterly, CadenceSemiannual, CadenceAnnual:
		return nil
	default:
		return fmt.Errorf("%w: %q", ErrInvalidCadence, string(c))
	}
}

type SubscriptionStatus string

const (
	SubscriptionStatusPending  SubscriptionStatus = "pending"
	SubscriptionStatusActive   SubscriptionStatus = "active"
	SubscriptionStatusCanceled SubscriptionStatus = "canceled"
)

type Subscription struct {
	ID                    string
	DonationID            string
	Mode                  Mode
	GatewaySubscriptionID string
	GatewayCustomerID     string
	Cadence               Cadence
	PlanName              string
	CustomerRef           string
	Status                SubscriptionStatus
	CreatedAt             time.Time
	UpdatedAt             time.Time
}

func (s *Subscription) TransitionTo(status SubscriptionStatus, now time.Time) error {
	if s == nil {
		return nil
	}
	if s.Status == status {
		s.UpdatedAt = now
		return nil
	}
	if !subscriptionTransitionAllowed(s.Status, status) {
		return fmt.Errorf("%w: %s -> %s", ErrInvalidSubscriptionStatusTransition, s.Status, status)
	}
	s.Status = status
	s.UpdatedAt = now
	return nil
}

func subscriptionTransitionAllowed(current, next SubscriptionStatus) bool {
	allowed := map[SubscriptionStatus]map[SubscriptionStatus]struct{}{
		SubscriptionStatusPending: {
			SubscriptionStatusActive:   {},
			SubscriptionStatusCanceled: {},
		},
		SubscriptionStatusActive: {
			SubscriptionStatusCanceled: {},
		},
		SubscriptionStatusCanceled: {},
	}
	_, ok := allowed[current][next]
	return ok
}

// RefreshTrigger distinguishes an operator-driven renewal from the scheduled
// tick. Both run the same exchange; only logging and retry policy differ.
type RefreshTrigger string

const (
	RefreshTriggerManual    RefreshTrigger = "manual"
	RefreshTriggerScheduled RefreshTrigger = "scheduled"
)
