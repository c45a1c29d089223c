package core

import (
	"context"
	"testing"
	"time"
)

func TestMemoryStateTokenStoreConsumeOnce(t *testing.T) {
	store := NewMemoryStateTokenStore(time.Minute)

	token, err := generateStateToken()
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if err := store.Save(context.Background(), StateTokenRecord{Token: token, Mode: ModeTest}); err != nil {
		t.Fatalf("save: %v", err)
	}

	record, err := store.Consume(context.Background(), token)
	if err != nil {
		t.Fatalf("consume: %v", err)
	}
	if record.Mode != ModeTest {
		t.Fatalf("expected test mode, got %q", record.Mode)
	}

	if _, err := store.Consume(context.Background(), token); err == nil {
		t.Fatal("expected second consume to fail")
	}
}

func TestMemoryStateTokenStoreExpiry(t *testing.T) {
	store := NewMemoryStateTokenStore(time.Minute)

	err := store.Save(context.Background(), StateTokenRecord{
		Token:     "expired-token",
		Mode:      ModeLive,
		CreatedAt: time.Now().UTC().Add(-2 * time.Minute),
		ExpiresAt: time.Now().UTC().Add(-time.Minute),
	})
	if err != nil {
		t.Fatalf("save: %v", err)
	}

	if _, err := store.Consume(context.Background(), "expired-token"); err == nil {
		t.Fatal("expected expired token to be rejected")
	}
	// rejection also removes it
	if _, err := store.Consume(context.Background(), "expired-token"); err == nil {
		t.Fatal("expected expired token to be gone")
	}
}

func TestGenerateStateTokenUniqueness(t *testing.T) {
	seen := map[string]struct{}{}
	for i := 0; i < 64; i++ {
		token, err := generateStateToken()
		if err != nil {
			t.Fatalf("generate: %v", err)
		}
		if token == "" {
			t.Fatal("empty token")
		}
		if _, dup := seen[token]; dup {
			t.Fatalf("duplicate token %q", token)
		}
		seen[token] = struct{}{}
	}
}
