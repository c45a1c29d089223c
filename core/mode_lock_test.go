package core

import (
	"context"
	"testing"
	"time"
)

func TestMemoryModeLockerContention(t *testing.T) {
	locker := NewMemoryModeLocker()

	handle, err := locker.Acquire(context.Background(), ModeTest, time.Minute)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	if _, err := locker.Acquire(context.Background(), ModeTest, time.Minute); err == nil {
		t.Fatal("expected second acquire to fail while held")
	}

	// modes lock independently
	other, err := locker.Acquire(context.Background(), ModeLive, time.Minute)
	if err != nil {
		t.Fatalf("acquire other mode: %v", err)
	}
	_ = other.Unlock(context.Background())

	if err := handle.Unlock(context.Background()); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if _, err := locker.Acquire(context.Background(), ModeTest, time.Minute); err != nil {
		t.Fatalf("acquire after unlock: %v", err)
	}
}

func TestMemoryModeLockerTTLReclaim(t *testing.T) {
	locker := NewMemoryModeLocker()
	current := time.Now().UTC()
	locker.nowFn = func() time.Time { return current }

	if _, err := locker.Acquire(context.Background(), ModeTest, 30*time.Second); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	current = current.Add(time.Minute)
	if _, err := locker.Acquire(context.Background(), ModeTest, 30*time.Second); err != nil {
		t.Fatalf("expected expired lock to be reclaimed: %v", err)
	}
}

func TestMemoryModeLockerUnlockTwice(t *testing.T) {
	locker := NewMemoryModeLocker()

	handle, err := locker.Acquire(context.Background(), ModeLive, time.Minute)
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	if err := handle.Unlock(context.Background()); err != nil {
		t.Fatalf("unlock: %v", err)
	}
	if err := handle.Unlock(context.Background()); err != nil {
		t.Fatalf("second unlock must be a no-op: %v", err)
	}
}
