package sqlstore

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/goliatone/go-payments/core"
	"github.com/goliatone/go-payments/webhooks"
	"github.com/google/uuid"
	"github.com/uptrace/bun"
)

// WebhookDeliveryStore is the durable delivery ledger. One row per
// gateway/mode/event id; claims rotate the claim_id column so a stale holder
// can never settle a delivery someone else reclaimed.
type WebhookDeliveryStore struct {
	db *bun.DB

	// Now is injectable for lease tests.
	Now func() time.Time
}

func NewWebhookDeliveryStore(db *bun.DB) (*WebhookDeliveryStore, error) {
	if db == nil {
		return nil, fmt.Errorf("sqlstore: bun db is required")
	}
	return &WebhookDeliveryStore{
		db:  db,
		Now: func() time.Time { return time.Now().UTC() },
	}, nil
}

func (s *WebhookDeliveryStore) Claim(
	ctx context.Context,
	gatewayID string,
	mode core.Mode,
	eventID string,
	payload []byte,
	lease time.Duration,
) (webhooks.DeliveryRecord, bool, error) {
	if s == nil || s.db == nil {
		return webhooks.DeliveryRecord{}, false, fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	gatewayID = strings.TrimSpace(gatewayID)
	eventID = strings.TrimSpace(eventID)
	if gatewayID == "" || eventID == "" {
		return webhooks.DeliveryRecord{}, false, fmt.Errorf("sqlstore: gateway id and event id are required")
	}
	if err := mode.Validate(); err != nil {
		return webhooks.DeliveryRecord{}, false, err
	}
	if lease <= 0 {
		lease = 30 * time.Second
	}

	now := s.now()
	leaseUntil := now.Add(lease)
	record := &paymentWebhookDeliveryRecord{
		ID:         uuid.NewString(),
		ClaimID:    uuid.NewString(),
		GatewayID:  gatewayID,
		Mode:       string(mode),
		EventID:    eventID,
		Status:     webhooks.DeliveryStatusProcessing,
		Attempts:   1,
		LeaseUntil: &leaseUntil,
		Payload:    append([]byte(nil), payload...),
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if _, err := s.db.NewInsert().Model(record).Exec(ctx); err != nil {
		if !isUniqueViolation(err) {
			return webhooks.DeliveryRecord{}, false, err
		}
		return s.reclaim(ctx, gatewayID, mode, eventID, lease)
	}
	return deliveryToDomain(record), true, nil
}

// reclaim applies the dedupe rules against the existing row: terminal rows
// and rows under a live lease or before their retry window stay put; anything
// else gets a fresh claim.
func (s *WebhookDeliveryStore) reclaim(
	ctx context.Context,
	gatewayID string,
	mode core.Mode,
	eventID string,
	lease time.Duration,
) (webhooks.DeliveryRecord, bool, error) {
	existing, err := s.fetch(ctx, gatewayID, mode, eventID)
	if err != nil {
		return webhooks.DeliveryRecord{}, false, err
	}

	now := s.now()
	switch existing.Status {
	case webhooks.DeliveryStatusProcessed, webhooks.DeliveryStatusDead:
		return deliveryToDomain(existing), false, nil
	case webhooks.DeliveryStatusProcessing:
		if existing.LeaseUntil != nil && existing.LeaseUntil.After(now) {
			return deliveryToDomain(existing), false, nil
		}
	case webhooks.DeliveryStatusRetryReady:
		if existing.NextAttemptAt != nil && existing.NextAttemptAt.After(now) {
			return deliveryToDomain(existing), false, nil
		}
	}

	claimID := uuid.NewString()
	leaseUntil := now.Add(lease)
	result, err := s.db.NewUpdate().
		Model((*paymentWebhookDeliveryRecord)(nil)).
		Set("claim_id = ?", claimID).
		Set("status = ?", webhooks.DeliveryStatusProcessing).
		Set("attempts = ?", existing.Attempts+1).
		Set("lease_until = ?", leaseUntil).
		Set("next_attempt_at = NULL").
		Set("updated_at = ?", now).
		Where("id = ?", existing.ID).
		Where("claim_id = ?", existing.ClaimID).
		Exec(ctx)
	if err != nil {
		return webhooks.DeliveryRecord{}, false, err
	}
	if affected, affErr := result.RowsAffected(); affErr == nil && affected == 0 {
		// someone else reclaimed between our read and write
		current, fetchErr := s.fetch(ctx, gatewayID, mode, eventID)
		if fetchErr != nil {
			return webhooks.DeliveryRecord{}, false, fetchErr
		}
		return deliveryToDomain(current), false, nil
	}

	existing.ClaimID = claimID
	existing.Status = webhooks.DeliveryStatusProcessing
	existing.Attempts++
	existing.LeaseUntil = &leaseUntil
	existing.NextAttemptAt = nil
	existing.UpdatedAt = now
	return deliveryToDomain(existing), true, nil
}

func (s *WebhookDeliveryStore) Get(ctx context.Context, gatewayID string, mode core.Mode, eventID string) (webhooks.DeliveryRecord, error) {
	if s == nil || s.db == nil {
		return webhooks.DeliveryRecord{}, fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	record, err := s.fetch(ctx, strings.TrimSpace(gatewayID), mode, strings.TrimSpace(eventID))
	if err != nil {
		return webhooks.DeliveryRecord{}, err
	}
	return deliveryToDomain(record), nil
}

func (s *WebhookDeliveryStore) Complete(ctx context.Context, claimID string) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return fmt.Errorf("sqlstore: claim id is required")
	}
	result, err := s.db.NewUpdate().
		Model((*paymentWebhookDeliveryRecord)(nil)).
		Set("status = ?", webhooks.DeliveryStatusProcessed).
		Set("lease_until = NULL").
		Set("next_attempt_at = NULL").
		Set("updated_at = ?", s.now()).
		Where("claim_id = ?", claimID).
		Exec(ctx)
	if err != nil {
		return err
	}
	if affected, affErr := result.RowsAffected(); affErr == nil && affected == 0 {
		return fmt.Errorf("sqlstore: claim %q is no longer held", claimID)
	}
	return nil
}

func (s *WebhookDeliveryStore) Fail(ctx context.Context, claimID string, cause error, nextAttemptAt time.Time, maxAttempts int) error {
	if s == nil || s.db == nil {
		return fmt.Errorf("sqlstore: webhook delivery store is not configured")
	}
	claimID = strings.TrimSpace(claimID)
	if claimID == "" {
		return fmt.Errorf("sqlstore: claim id is required")
	}

	existing := &paymentWebhookDeliveryRecord{}
	err := s.db.NewSelect().
		Model(existing).
		Where("?TableAlias.claim_id = ?", claimID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("sqlstore: claim %q is no longer held", claimID)
		}
		return err
	}

	status := webhooks.DeliveryStatusRetryReady
	if maxAttempts > 0 && existing.Attempts >= maxAttempts {
		status = webhooks.DeliveryStatusDead
	}
	lastError := ""
	if cause != nil {
		lastError = cause.Error()
	}
	_, err = s.db.NewUpdate().
		Model((*paymentWebhookDeliveryRecord)(nil)).
		Set("status = ?", status).
		Set("last_error = ?", lastError).
		Set("lease_until = NULL").
		Set("next_attempt_at = ?", nextAttemptAt.UTC()).
		Set("updated_at = ?", s.now()).
		Where("claim_id = ?", claimID).
		Exec(ctx)
	return err
}

func (s *WebhookDeliveryStore) fetch(ctx context.Context, gatewayID string, mode core.Mode, eventID string) (*paymentWebhookDeliveryRecord, error) {
	record := &paymentWebhookDeliveryRecord{}
	err := s.db.NewSelect().
		Model(record).
		Where("?TableAlias.gateway_id = ?", gatewayID).
		Where("?TableAlias.mode = ?", string(mode)).
		Where("?TableAlias.event_id = ?", eventID).
		Limit(1).
		Scan(ctx)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("sqlstore: webhook delivery not found for %s/%s event %q", gatewayID, mode, eventID)
		}
		return nil, err
	}
	return record, nil
}

func (s *WebhookDeliveryStore) now() time.Time {
	if s != nil && s.Now != nil {
		return s.Now().UTC()
	}
	return time.Now().UTC()
}

func deliveryToDomain(record *paymentWebhookDeliveryRecord) webhooks.DeliveryRecord {
	if record == nil {
		return webhooks.DeliveryRecord{}
	}
	result := webhooks.DeliveryRecord{
		ID:        record.ID,
		ClaimID:   record.ClaimID,
		GatewayID: record.GatewayID,
		Mode:      core.Mode(record.Mode),
		EventID:   record.EventID,
		Status:    record.Status,
		Attempts:  record.Attempts,
		LastError: record.LastError,
		CreatedAt: record.CreatedAt,
		UpdatedAt: record.UpdatedAt,
	}
	if record.NextAttemptAt != nil {
		value := *record.NextAttemptAt
		result.NextAttemptAt = &value
	}
	return result
}

func isUniqueViolation(err error) bool {
	message := strings.ToLower(strings.TrimSpace(err.Error()))
	return strings.Contains(message, "unique constraint failed") ||
		strings.Contains(message, "duplicate key value violates unique constraint")
}

var _ webhooks.DeliveryLedger = (*WebhookDeliveryStore)(nil)
