package core

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryConnectionStore keeps one record per mode. Default wiring for tests
// and single-process deployments; SQL-backed stores live in store/sql.
type MemoryConnectionStore struct {
	mu      sync.Mutex
	records map[Mode]ConnectionRecord
	nowFn   func() time.Time
}

func NewMemoryConnectionStore() *MemoryConnectionStore {
	return &MemoryConnectionStore{
		records: map[Mode]ConnectionRecord{},
		nowFn:   func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryConnectionStore) Get(_ context.Context, mode Mode) (ConnectionRecord, error) {
	if s == nil {
		return ConnectionRecord{}, fmt.Errorf("core: connection store is not configured")
	}
	if err := mode.Validate(); err != nil {
		return ConnectionRecord{}, err
	}

	s.mu.Lock()
	record, ok := s.records[mode]
	s.mu.Unlock()

	if !ok {
		return ConnectionRecord{}, fmt.Errorf("%w: mode %q", ErrConnectionNotFound, mode)
	}
	return record, nil
}

func (s *MemoryConnectionStore) Save(_ context.Context, record ConnectionRecord) error {
	if s == nil {
		return fmt.Errorf("core: connection store is not configured")
	}
	if err := record.Mode.Validate(); err != nil {
		return err
	}

	now := s.nowFn()
	s.mu.Lock()
	if existing, ok := s.records[record.Mode]; ok && !existing.CreatedAt.IsZero() {
		record.CreatedAt = existing.CreatedAt
	} else if record.CreatedAt.IsZero() {
		record.CreatedAt = now
	}
	record.UpdatedAt = now
	s.records[record.Mode] = record
	s.mu.Unlock()

	return nil
}

func (s *MemoryConnectionStore) Clear(_ context.Context, mode Mode) error {
	if s == nil {
		return fmt.Errorf("core: connection store is not configured")
	}
	if err := mode.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	delete(s.records, mode)
	s.mu.Unlock()

	return nil
}

func (s *MemoryConnectionStore) SetProbeResult(_ context.Context, mode Mode, ok bool, reason string) error {
	if s == nil {
		return fmt.Errorf("core: connection store is not configured")
	}
	if err := mode.Validate(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	record, found := s.records[mode]
	if !found {
		return fmt.Errorf("%w: mode %q", ErrConnectionNotFound, mode)
	}
	record.LastProbeOK = ok
	record.LastProbeError = strings.TrimSpace(reason)
	if ok {
		record.LastProbeError = ""
	}
	record.UpdatedAt = s.nowFn()
	s.records[mode] = record
	return nil
}

type MemoryTransactionStore struct {
	mu    sync.Mutex
	items map[string]Transaction
	nowFn func() time.Time
}

func NewMemoryTransactionStore() *MemoryTransactionStore {
	return &MemoryTransactionStore{
		items: map[string]Transaction{},
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemoryTransactionStore) Create(_ context.Context, txn Transaction) (Transaction, error) {
	if s == nil {
		return Transaction{}, fmt.Errorf("core: transaction store is not configured")
	}
	if strings.TrimSpace(txn.ID) == "" {
		txn.ID = uuid.NewString()
	}
	now := s.nowFn()
	if txn.CreatedAt.IsZero() {
		txn.CreatedAt = now
	}
	txn.UpdatedAt = now
	if txn.Status == "" {
		txn.Status = TransactionStatusPending
	}

	s.mu.Lock()
	s.items[txn.ID] = txn
	s.mu.Unlock()

	return txn, nil
}

func (s *MemoryTransactionStore) Get(_ context.Context, id string) (Transaction, error) {
	if s == nil {
		return Transaction{}, fmt.Errorf("core: transaction store is not configured")
	}
	s.mu.Lock()
	txn, ok := s.items[strings.TrimSpace(id)]
	s.mu.Unlock()
	if !ok {
		return Transaction{}, fmt.Errorf("%w: %q", ErrTransactionNotFound, id)
	}
	return txn, nil
}

func (s *MemoryTransactionStore) GetByGatewayID(_ context.Context, mode Mode, gatewayTransactionID string) (Transaction, error) {
	if s == nil {
		return Transaction{}, fmt.Errorf("core: transaction store is not configured")
	}
	gatewayTransactionID = strings.TrimSpace(gatewayTransactionID)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, txn := range s.items {
		if txn.Mode == mode && txn.GatewayTransactionID == gatewayTransactionID {
			return txn, nil
		}
	}
	return Transaction{}, fmt.Errorf("%w: gateway id %q", ErrTransactionNotFound, gatewayTransactionID)
}

func (s *MemoryTransactionStore) UpdateStatus(_ context.Context, id string, status TransactionStatus) error {
	if s == nil {
		return fmt.Errorf("core: transaction store is not configured")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	txn, ok := s.items[strings.TrimSpace(id)]
	if !ok {
		return fmt.Errorf("%w: %q", ErrTransactionNotFound, id)
	}
	if err := txn.TransitionTo(status, s.nowFn()); err != nil {
		return err
	}
	s.items[txn.ID] = txn
	return nil
}

type MemorySubscriptionStore struct {
	mu    sync.Mutex
	items map[string]Subscription
	nowFn func() time.Time
}

func NewMemorySubscriptionStore() *MemorySubscriptionStore {
	return &MemorySubscriptionStore{
		items: map[string]Subscription{},
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

func (s *MemorySubscriptionStore) Create(_ context.Context, sub Subscription) (Subscription, error) {
	if s == nil {
		return Subscription{}, fmt.Errorf("core: subscription store is not configured")
	}
	if strings.TrimSpace(sub.ID) == "" {
		sub.ID = uuid.NewString()
	}
	now := s.nowFn()
	if sub.CreatedAt.IsZero() {
		sub.CreatedAt = now
	}
	sub.UpdatedAt = now
	if sub.Status == "" {
		sub.Status = SubscriptionStatusPending
	}

	s.mu.Lock()
	s.items[sub.ID] = sub
	s.mu.Unlock()

	return sub, nil
}

func (s *MemorySubscriptionStore) Get(_ context.Context, id string) (Subscription, error) {
	if s == nil {
		return Subscription{}, fmt.Errorf("core: subscription store is not configured")
	}
	s.mu.Lock()
	sub, ok := s.items[strings.TrimSpace(id)]
	s.mu.Unlock()
	if !ok {
		return Subscription{}, fmt.Errorf("%w: %q", ErrSubscriptionNotFound, id)
	}
	return sub, nil
}

func (s *MemorySubscriptionStore) GetByGatewayID(_ context.Context, mode Mode, gatewaySubscriptionID string) (Subscription, error) {
	if s == nil {
		return Subscription{}, fmt.Errorf("core: subscription store is not configured")
	}
	gatewaySubscriptionID = strings.TrimSpace(gatewaySubscriptionID)

	s.mu.Lock()
	defer s.mu.Unlock()
	for _, sub := range s.items {
		if sub.Mode == mode && sub.GatewaySubscriptionID == gatewaySubscriptionID {
			return sub, nil
		}
	}
	return Subscription{}, fmt.Errorf("%w: gateway id %q", ErrSubscriptionNotFound, gatewaySubscriptionID)
}

func (s *MemorySubscriptionStore) UpdateStatus(_ context.Context, id string, status SubscriptionStatus) error {
	if s == nil {
		return fmt.Errorf("core: subscription store is not configured")
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	sub, ok := s.items[strings.TrimSpace(id)]
	if !ok {
		return fmt.Errorf("%w: %q", ErrSubscriptionNotFound, id)
	}
	if err := sub.TransitionTo(status, s.nowFn()); err != nil {
		return err
	}
	s.items[sub.ID] = sub
	return nil
}

var (
	_ ConnectionStore   = (*MemoryConnectionStore)(nil)
	_ TransactionStore  = (*MemoryTransactionStore)(nil)
	_ SubscriptionStore = (*MemorySubscriptionStore)(nil)
)
