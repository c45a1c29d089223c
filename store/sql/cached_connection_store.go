package sqlstore

import (
	"context"
	"fmt"
	"net/url"
	"strings"

	"github.com/goliatone/go-payments/core"
	repositorycache "github.com/goliatone/go-repository-cache/cache"
)

const connectionCacheKeyPrefix = "go-payments::connection::v1"

// CachedConnectionStore fronts the connection row with a read-through cache.
// Status derivation runs on every charge, so the hot read path should not hit
// the database; all writers invalidate the mode's key.
type CachedConnectionStore struct {
	base  core.ConnectionStore
	cache repositorycache.CacheService
}

func NewCachedConnectionStore(base core.ConnectionStore, cacheService repositorycache.CacheService) (*CachedConnectionStore, error) {
	if base == nil {
		return nil, fmt.Errorf("sqlstore: base connection store is required")
	}
	if cacheService == nil {
		return nil, fmt.Errorf("sqlstore: connection cache service is required")
	}
	return &CachedConnectionStore{base: base, cache: cacheService}, nil
}

// ConnectionCacheKey returns the deterministic cache key for one mode's
// connection row: go-payments::connection::v1::<mode>.
func ConnectionCacheKey(mode core.Mode) (string, error) {
	if err := mode.Validate(); err != nil {
		return "", err
	}
	return strings.Join([]string{connectionCacheKeyPrefix, url.PathEscape(string(mode))}, "::"), nil
}

func (s *CachedConnectionStore) Get(ctx context.Context, mode core.Mode) (core.ConnectionRecord, error) {
	if s == nil || s.base == nil || s.cache == nil {
		return core.ConnectionRecord{}, fmt.Errorf("sqlstore: cached connection store is not configured")
	}
	cacheKey, err := ConnectionCacheKey(mode)
	if err != nil {
		return core.ConnectionRecord{}, err
	}
	return repositorycache.GetOrFetch(ctx, s.cache, cacheKey, func(ctx context.Context) (core.ConnectionRecord, error) {
		return s.base.Get(ctx, mode)
	})
}

func (s *CachedConnectionStore) Save(ctx context.Context, record core.ConnectionRecord) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached connection store is not configured")
	}
	if err := s.base.Save(ctx, record); err != nil {
		return err
	}
	return s.invalidate(ctx, record.Mode)
}

func (s *CachedConnectionStore) Clear(ctx context.Context, mode core.Mode) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached connection store is not configured")
	}
	if err := s.base.Clear(ctx, mode); err != nil {
		return err
	}
	return s.invalidate(ctx, mode)
}

func (s *CachedConnectionStore) SetProbeResult(ctx context.Context, mode core.Mode, ok bool, reason string) error {
	if s == nil || s.base == nil || s.cache == nil {
		return fmt.Errorf("sqlstore: cached connection store is not configured")
	}
	if err := s.base.SetProbeResult(ctx, mode, ok, reason); err != nil {
		return err
	}
	return s.invalidate(ctx, mode)
}

func (s *CachedConnectionStore) invalidate(ctx context.Context, mode core.Mode) error {
	cacheKey, err := ConnectionCacheKey(mode)
	if err != nil {
		return err
	}
	return s.cache.Delete(ctx, cacheKey)
}

var _ core.ConnectionStore = (*CachedConnectionStore)(nil)
