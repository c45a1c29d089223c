package core

import (
	"context"
	"fmt"
	"sync"
	"time"
)

const defaultRefreshLockTTL = 30 * time.Second

// MemoryModeLocker serializes refresh runs in-process. Expired entries are
// reclaimed on the next Acquire, so a crashed holder blocks only until the
// TTL lapses.
type MemoryModeLocker struct {
	mu    sync.Mutex
	locks map[Mode]time.Time
	nowFn func() time.Time
}

func NewMemoryModeLocker() *MemoryModeLocker {
	return &MemoryModeLocker{
		locks: make(map[Mode]time.Time),
		nowFn: func() time.Time { return time.Now().UTC() },
	}
}

func (l *MemoryModeLocker) Acquire(_ context.Context, mode Mode, ttl time.Duration) (LockHandle, error) {
	if l == nil {
		return nil, fmt.Errorf("core: mode locker is not configured")
	}
	if err := mode.Validate(); err != nil {
		return nil, err
	}
	if ttl <= 0 {
		ttl = defaultRefreshLockTTL
	}

	now := l.nowFn()
	l.mu.Lock()
	defer l.mu.Unlock()

	if until, ok := l.locks[mode]; ok && now.Before(until) {
		return nil, fmt.Errorf("core: refresh lock already held for mode %q", mode)
	}
	l.locks[mode] = now.Add(ttl)
	return &modeLockHandle{locker: l, mode: mode}, nil
}

type modeLockHandle struct {
	locker *MemoryModeLocker
	mode   Mode
	once   sync.Once
}

func (h *modeLockHandle) Unlock(_ context.Context) error {
	if h == nil || h.locker == nil {
		return nil
	}
	h.once.Do(func() {
		h.locker.mu.Lock()
		delete(h.locker.locks, h.mode)
		h.locker.mu.Unlock()
	})
	return nil
}

var _ ModeLocker = (*MemoryModeLocker)(nil)
