package webhooks

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/goliatone/go-payments/core"
	"github.com/google/uuid"
)

const defaultClaimLease = 30 * time.Second

// MemoryDeliveryLedger is the single-process DeliveryLedger. A SQL-backed
// ledger for multi-process deployments lives in store/sql.
type MemoryDeliveryLedger struct {
	mu      sync.Mutex
	entries map[string]*DeliveryRecord
	byClaim map[string]string
	Now     func() time.Time
}

func NewMemoryDeliveryLedger() *MemoryDeliveryLedger {
	return &MemoryDeliveryLedger{
		entries: map[string]*DeliveryRecord{},
		byClaim: map[string]string{},
		Now:     func() time.Time { return time.Now().UTC() },
	}
}

func ledgerKey(gatewayID string, mode core.Mode, eventID string) string {
	return gatewayID + "|" + string(mode) + "|" + eventID
}

func (l *MemoryDeliveryLedger) Claim(_ context.Context, gatewayID string, mode core.Mode, eventID string, _ []byte, lease time.Duration) (DeliveryRecord, bool, error) {
	if l == nil {
		return DeliveryRecord{}, false, fmt.Errorf("webhooks: delivery ledger is not configured")
	}
	gatewayID = strings.TrimSpace(gatewayID)
	eventID = strings.TrimSpace(eventID)
	if gatewayID == "" || eventID == "" {
		return DeliveryRecord{}, false, fmt.Errorf("webhooks: gateway id and event id are required")
	}
	if lease <= 0 {
		lease = defaultClaimLease
	}
	now := l.now()
	key := ledgerKey(gatewayID, mode, eventID)

	l.mu.Lock()
	defer l.mu.Unlock()

	record, ok := l.entries[key]
	if !ok {
		record = &DeliveryRecord{
			ID:        uuid.NewString(),
			ClaimID:   uuid.NewString(),
			GatewayID: gatewayID,
			Mode:      mode,
			EventID:   eventID,
			Status:    DeliveryStatusProcessing,
			Attempts:  1,
			CreatedAt: now,
			UpdatedAt: now,
		}
		l.entries[key] = record
		l.byClaim[record.ClaimID] = key
		return *record, true, nil
	}

	switch record.Status {
	case DeliveryStatusProcessed, DeliveryStatusDead:
		return *record, false, nil
	case DeliveryStatusProcessing:
		if now.Before(record.UpdatedAt.Add(lease)) {
			return *record, false, nil
		}
	case DeliveryStatusRetryReady:
		if record.NextAttemptAt != nil && now.Before(*record.NextAttemptAt) {
			return *record, false, nil
		}
	}

	delete(l.byClaim, record.ClaimID)
	record.ClaimID = uuid.NewString()
	record.Status = DeliveryStatusProcessing
	record.Attempts++
	record.NextAttemptAt = nil
	record.UpdatedAt = now
	l.byClaim[record.ClaimID] = key
	return *record, true, nil
}

func (l *MemoryDeliveryLedger) Get(_ context.Context, gatewayID string, mode core.Mode, eventID string) (DeliveryRecord, error) {
	if l == nil {
		return DeliveryRecord{}, fmt.Errorf("webhooks: delivery ledger is not configured")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	record, ok := l.entries[ledgerKey(strings.TrimSpace(gatewayID), mode, strings.TrimSpace(eventID))]
	if !ok {
		return DeliveryRecord{}, fmt.Errorf("webhooks: delivery not found")
	}
	return *record, nil
}

func (l *MemoryDeliveryLedger) Complete(_ context.Context, claimID string) error {
	if l == nil {
		return fmt.Errorf("webhooks: delivery ledger is not configured")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	record, err := l.byClaimLocked(claimID)
	if err != nil {
		return err
	}
	record.Status = DeliveryStatusProcessed
	record.LastError = ""
	record.NextAttemptAt = nil
	record.UpdatedAt = l.now()
	return nil
}

func (l *MemoryDeliveryLedger) Fail(_ context.Context, claimID string, cause error, nextAttemptAt time.Time, maxAttempts int) error {
	if l == nil {
		return fmt.Errorf("webhooks: delivery ledger is not configured")
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	record, err := l.byClaimLocked(claimID)
	if err != nil {
		return err
	}
	if cause != nil {
		record.LastError = cause.Error()
	}
	if maxAttempts > 0 && record.Attempts >= maxAttempts {
		record.Status = DeliveryStatusDead
		record.NextAttemptAt = nil
	} else {
		record.Status = DeliveryStatusRetryReady
		next := nextAttemptAt.UTC()
		record.NextAttemptAt = &next
	}
	record.UpdatedAt = l.now()
	return nil
}

func (l *MemoryDeliveryLedger) byClaimLocked(claimID string) (*DeliveryRecord, error) {
	key, ok := l.byClaim[strings.TrimSpace(claimID)]
	if !ok {
		return nil, fmt.Errorf("webhooks: claim not found")
	}
	record, ok := l.entries[key]
	if !ok {
		return nil, fmt.Errorf("webhooks: claim not found")
	}
	return record, nil
}

func (l *MemoryDeliveryLedger) now() time.Time {
	if l != nil && l.Now != nil {
		return l.Now().UTC()
	}
	return time.Now().UTC()
}

var _ DeliveryLedger = (*MemoryDeliveryLedger)(nil)
