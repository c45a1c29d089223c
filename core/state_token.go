package core

import (
	"context"
	"crypto/rand"
	"encoding/base64"
	"fmt"
	"strings"
	"sync"
	"time"
)

const defaultStateTokenTTL = 15 * time.Minute

// StateTokenRecord binds a connect state token to the mode and redirect it
// was issued for. Redemption with a different mode is a mismatch.
type StateTokenRecord struct {
	Token       string
	Mode        Mode
	GatewayID   string
	RedirectURI string
	CreatedAt   time.Time
	ExpiresAt   time.Time
}

type MemoryStateTokenStore struct {
	mu      sync.Mutex
	ttl     time.Duration
	entries map[string]StateTokenRecord
}

func NewMemoryStateTokenStore(ttl time.Duration) *MemoryStateTokenStore {
	if ttl <= 0 {
		ttl = defaultStateTokenTTL
	}
	return &MemoryStateTokenStore{
		ttl:     ttl,
		entries: map[string]StateTokenRecord{},
	}
}

func (s *MemoryStateTokenStore) Save(_ context.Context, record StateTokenRecord) error {
	if s == nil {
		return fmt.Errorf("core: state token store is not configured")
	}
	token := strings.TrimSpace(record.Token)
	if token == "" {
		return fmt.Errorf("core: state token is required")
	}

	now := time.Now().UTC()
	if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	if record.ExpiresAt.IsZero() {
		record.ExpiresAt = record.CreatedAt.Add(s.ttl)
	}

	s.mu.Lock()
	s.entries[token] = record
	s.mu.Unlock()

	return nil
}

func (s *MemoryStateTokenStore) Consume(_ context.Context, token string) (StateTokenRecord, error) {
	if s == nil {
		return StateTokenRecord{}, fmt.Errorf("core: state token store is not configured")
	}
	token = strings.TrimSpace(token)
	if token == "" {
		return StateTokenRecord{}, fmt.Errorf("core: state token is required")
	}

	s.mu.Lock()
	record, ok := s.entries[token]
	if ok {
		delete(s.entries, token)
	}
	s.mu.Unlock()

	if !ok {
		return StateTokenRecord{}, fmt.Errorf("core: state token not found")
	}
	if !record.ExpiresAt.IsZero() && time.Now().UTC().After(record.ExpiresAt) {
		return StateTokenRecord{}, fmt.Errorf("core: state token expired")
	}

	return record, nil
}

func generateStateToken() (string, error) {
	raw := make([]byte, 24)
	if _, err := rand.Read(raw); err != nil {
		return "", fmt.Errorf("core: generate state token: %w", err)
	}
	return base64.RawURLEncoding.EncodeToString(raw), nil
}

var _ StateTokenStore = (*MemoryStateTokenStore)(nil)
