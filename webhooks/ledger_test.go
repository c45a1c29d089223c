package webhooks

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/goliatone/go-payments/core"
)

func TestMemoryDeliveryLedgerClaimOnce(t *testing.T) {
	ledger := NewMemoryDeliveryLedger()

	record, claimed, err := ledger.Claim(context.Background(), "square", core.ModeTest, "evt-1", nil, time.Minute)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if !claimed {
		t.Fatal("first claim must succeed")
	}

	_, claimed, err = ledger.Claim(context.Background(), "square", core.ModeTest, "evt-1", nil, time.Minute)
	if err != nil {
		t.Fatalf("second claim: %v", err)
	}
	if claimed {
		t.Fatal("second claim within the lease must dedupe")
	}

	// same event id in the other mode is a distinct delivery
	_, claimed, err = ledger.Claim(context.Background(), "square", core.ModeLive, "evt-1", nil, time.Minute)
	if err != nil {
		t.Fatalf("other-mode claim: %v", err)
	}
	if !claimed {
		t.Fatal("modes must dedupe independently")
	}

	if err := ledger.Complete(context.Background(), record.ClaimID); err != nil {
		t.Fatalf("complete: %v", err)
	}
	_, claimed, err = ledger.Claim(context.Background(), "square", core.ModeTest, "evt-1", nil, time.Minute)
	if err != nil {
		t.Fatalf("claim after complete: %v", err)
	}
	if claimed {
		t.Fatal("processed delivery must never be claimed again")
	}
}

func TestMemoryDeliveryLedgerLeaseExpiryReclaims(t *testing.T) {
	ledger := NewMemoryDeliveryLedger()
	current := time.Now().UTC()
	ledger.Now = func() time.Time { return current }

	first, claimed, err := ledger.Claim(context.Background(), "square", core.ModeTest, "evt-2", nil, 30*time.Second)
	if err != nil || !claimed {
		t.Fatalf("first claim: claimed=%v err=%v", claimed, err)
	}

	current = current.Add(time.Minute)
	second, claimed, err := ledger.Claim(context.Background(), "square", core.ModeTest, "evt-2", nil, 30*time.Second)
	if err != nil {
		t.Fatalf("reclaim: %v", err)
	}
	if !claimed {
		t.Fatal("expired lease must be reclaimable")
	}
	if second.ClaimID == first.ClaimID {
		t.Fatal("reclaim must mint a new claim id")
	}
	if second.Attempts != 2 {
		t.Fatalf("expected attempt 2, got %d", second.Attempts)
	}
}

func TestMemoryDeliveryLedgerFailSchedulesRetry(t *testing.T) {
	ledger := NewMemoryDeliveryLedger()
	current := time.Now().UTC()
	ledger.Now = func() time.Time { return current }

	record, _, err := ledger.Claim(context.Background(), "square", core.ModeTest, "evt-3", nil, time.Minute)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}

	next := current.Add(10 * time.Second)
	if err := ledger.Fail(context.Background(), record.ClaimID, fmt.Errorf("handler blew up"), next, 8); err != nil {
		t.Fatalf("fail: %v", err)
	}

	_, claimed, err := ledger.Claim(context.Background(), "square", core.ModeTest, "evt-3", nil, time.Minute)
	if err != nil {
		t.Fatalf("claim before retry window: %v", err)
	}
	if claimed {
		t.Fatal("delivery must wait for its retry window")
	}

	current = current.Add(11 * time.Second)
	_, claimed, err = ledger.Claim(context.Background(), "square", core.ModeTest, "evt-3", nil, time.Minute)
	if err != nil {
		t.Fatalf("claim after retry window: %v", err)
	}
	if !claimed {
		t.Fatal("delivery must be claimable after its retry window")
	}
}

func TestMemoryDeliveryLedgerDeadLetterAfterMaxAttempts(t *testing.T) {
	ledger := NewMemoryDeliveryLedger()
	current := time.Now().UTC()
	ledger.Now = func() time.Time { return current }

	record, _, err := ledger.Claim(context.Background(), "square", core.ModeTest, "evt-4", nil, time.Minute)
	if err != nil {
		t.Fatalf("claim: %v", err)
	}
	if err := ledger.Fail(context.Background(), record.ClaimID, fmt.Errorf("nope"), current, 1); err != nil {
		t.Fatalf("fail: %v", err)
	}

	stored, err := ledger.Get(context.Background(), "square", core.ModeTest, "evt-4")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if stored.Status != DeliveryStatusDead {
		t.Fatalf("expected dead delivery, got %s", stored.Status)
	}

	current = current.Add(time.Hour)
	_, claimed, err := ledger.Claim(context.Background(), "square", core.ModeTest, "evt-4", nil, time.Minute)
	if err != nil {
		t.Fatalf("claim dead: %v", err)
	}
	if claimed {
		t.Fatal("dead deliveries stay dead")
	}
}
