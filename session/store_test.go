package session

import (
	"testing"
	"time"

	"github.com/byteness/credsession/cserrors"
)

func TestStoreInsertGetRemove(t *testing.T) {
	s := NewStore()
	id := NewID(time.Now().Add(15 * time.Minute))
	s.Insert(id, &Record{}, time.Now().Add(15*time.Minute))

	if _, err := s.Get(id); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if _, err := s.Remove(id); err != nil {
		t.Fatalf("Remove: %v", err)
	}
	if _, err := s.Get(id); cserrors.CodeOf(err) != cserrors.CodeInvalidState {
		t.Fatalf("expected InvalidState after removal, got %v", err)
	}
}

func TestStoreGetMissingIsInvalidState(t *testing.T) {
	s := NewStore()
	_, err := s.Get(NewID(time.Now()))
	if cserrors.CodeOf(err) != cserrors.CodeInvalidState {
		t.Fatalf("expected InvalidState, got %v", err)
	}
}

func TestExpireBeforePrunesOnlyExpired(t *testing.T) {
	s := NewStore()
	now := time.Now()

	oldID := NewID(now.Add(-time.Minute))
	freshID := NewID(now.Add(15 * time.Minute))
	s.Insert(oldID, &Record{}, now.Add(-time.Minute))
	s.Insert(freshID, &Record{}, now.Add(15*time.Minute))

	removed := s.ExpireBefore(now)
	if removed != 1 {
		t.Fatalf("expected exactly 1 expired entry, got %d", removed)
	}
	if s.Len() != 1 {
		t.Fatalf("expected 1 remaining session, got %d", s.Len())
	}
	if _, err := s.Get(freshID); err != nil {
		t.Fatalf("expected the fresh session to survive pruning: %v", err)
	}
	if _, err := s.Get(oldID); err == nil {
		t.Fatalf("expected the expired session to be gone")
	}
}

func TestStoreSizeMonotonicBetweenExpireAndInsert(t *testing.T) {
	s := NewStore()
	now := time.Now()
	for i := 0; i < 5; i++ {
		id := NewID(now.Add(-time.Duration(i+1) * time.Minute))
		s.Insert(id, &Record{}, now.Add(-time.Duration(i+1)*time.Minute))
	}
	before := s.Len()
	s.ExpireBefore(now)
	after := s.Len()
	if after > before {
		t.Fatalf("store size must not grow from ExpireBefore alone: before=%d after=%d", before, after)
	}
}

func TestHandleTryLockIsNonBlockingOnContention(t *testing.T) {
	h := &Handle{Record: &Record{}}
	unlock, ok := h.TryLock()
	if !ok {
		t.Fatalf("expected first TryLock to succeed")
	}
	if _, ok := h.TryLock(); ok {
		t.Fatalf("expected a contended TryLock to fail immediately")
	}
	unlock()
	if _, ok := h.TryLock(); !ok {
		t.Fatalf("expected TryLock to succeed again after unlock")
	}
}

func TestNewIDOrderingMatchesExpiry(t *testing.T) {
	base := time.Now()
	earlier := NewID(base)
	later := NewID(base.Add(time.Hour))
	if compareUUID(earlier, later) >= 0 {
		t.Fatalf("expected an earlier-expiry id to sort before a later-expiry id")
	}
}
