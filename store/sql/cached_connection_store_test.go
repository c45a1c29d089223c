package sqlstore

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/goliatone/go-payments/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

type stubConnectionStore struct {
	mu       sync.Mutex
	record   core.ConnectionRecord
	missing  bool
	getCalls int
}

func (s *stubConnectionStore) Get(_ context.Context, mode core.Mode) (core.ConnectionRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls++
	if s.missing {
		return core.ConnectionRecord{}, core.ErrConnectionNotFound
	}
	return s.record, nil
}

func (s *stubConnectionStore) Save(_ context.Context, record core.ConnectionRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = record
	s.missing = false
	return nil
}

func (s *stubConnectionStore) Clear(_ context.Context, _ core.Mode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record = core.ConnectionRecord{}
	s.missing = true
	return nil
}

func (s *stubConnectionStore) SetProbeResult(_ context.Context, _ core.Mode, ok bool, reason string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.record.LastProbeOK = ok
	s.record.LastProbeError = reason
	return nil
}

func newTestConnectionCacheService(t *testing.T) repositorycache.CacheService {
	t.Helper()
	config := repositorycache.DefaultConfig()
	config.TTL = time.Minute
	service, err := repositorycache.NewCacheService(config)
	if err != nil {
		t.Fatalf("new cache service: %v", err)
	}
	return service
}

func TestCachedConnectionStore_GetMissFetchThenHit(t *testing.T) {
	base := &stubConnectionStore{
		record: core.ConnectionRecord{
			Mode:         core.ModeTest,
			GatewayID:    "square",
			AccessToken:  "access",
			RefreshToken: "refresh",
			LastProbeOK:  true,
		},
	}
	store, err := NewCachedConnectionStore(base, newTestConnectionCacheService(t))
	if err != nil {
		t.Fatalf("new cached connection store: %v", err)
	}

	if _, err := store.Get(context.Background(), core.ModeTest); err != nil {
		t.Fatalf("first get: %v", err)
	}
	if base.getCalls != 1 {
		t.Fatalf("expected one base read, got %d", base.getCalls)
	}

	record, err := store.Get(context.Background(), core.ModeTest)
	if err != nil {
		t.Fatalf("second get: %v", err)
	}
	if base.getCalls != 1 {
		t.Fatalf("second get must hit the cache, base reads=%d", base.getCalls)
	}
	if record.AccessToken != "access" {
		t.Fatalf("unexpected record: %+v", record)
	}
}

func TestCachedConnectionStore_SaveInvalidates(t *testing.T) {
	base := &stubConnectionStore{
		record: core.ConnectionRecord{Mode: core.ModeTest, GatewayID: "square", AccessToken: "old", RefreshToken: "r"},
	}
	store, err := NewCachedConnectionStore(base, newTestConnectionCacheService(t))
	if err != nil {
		t.Fatalf("new cached connection store: %v", err)
	}

	if _, err := store.Get(context.Background(), core.ModeTest); err != nil {
		t.Fatalf("prime cache: %v", err)
	}

	if err := store.Save(context.Background(), core.ConnectionRecord{
		Mode:         core.ModeTest,
		GatewayID:    "square",
		AccessToken:  "new",
		RefreshToken: "r",
	}); err != nil {
		t.Fatalf("save: %v", err)
	}

	record, err := store.Get(context.Background(), core.ModeTest)
	if err != nil {
		t.Fatalf("get after save: %v", err)
	}
	if record.AccessToken != "new" {
		t.Fatalf("stale cache read after save: %+v", record)
	}
	if base.getCalls != 2 {
		t.Fatalf("expected invalidation to force a base read, got %d", base.getCalls)
	}
}

func TestCachedConnectionStore_ClearInvalidates(t *testing.T) {
	base := &stubConnectionStore{
		record: core.ConnectionRecord{Mode: core.ModeLive, GatewayID: "square", AccessToken: "a", RefreshToken: "r"},
	}
	store, err := NewCachedConnectionStore(base, newTestConnectionCacheService(t))
	if err != nil {
		t.Fatalf("new cached connection store: %v", err)
	}

	if _, err := store.Get(context.Background(), core.ModeLive); err != nil {
		t.Fatalf("prime cache: %v", err)
	}
	if err := store.Clear(context.Background(), core.ModeLive); err != nil {
		t.Fatalf("clear: %v", err)
	}

	if _, err := store.Get(context.Background(), core.ModeLive); !errors.Is(err, core.ErrConnectionNotFound) {
		t.Fatalf("expected not-found after clear, got %v", err)
	}
}

func TestConnectionCacheKeyRejectsInvalidMode(t *testing.T) {
	if _, err := ConnectionCacheKey(core.Mode("staging")); err == nil {
		t.Fatal("expected invalid mode to fail")
	}
	key, err := ConnectionCacheKey(core.ModeTest)
	if err != nil {
		t.Fatalf("cache key: %v", err)
	}
	if key != "go-payments::connection::v1::test" {
		t.Fatalf("unexpected key %q", key)
	}
}
