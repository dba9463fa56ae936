package session

import (
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/byteness/credsession/cserrors"
)

// Handle wraps a Record behind an exclusive, non-blocking lock. Callers
// acquire it only via TryLock and must never hold it across suspension
// points — contention is a client-visible InvalidState error, never a
// block.
type Handle struct {
	mu     sync.Mutex
	Record *Record
	Expiry time.Time
}

// TryLock attempts to acquire exclusive access to the handle's record,
// returning ok=false immediately on contention rather than blocking.
func (h *Handle) TryLock() (unlock func(), ok bool) {
	if !h.mu.TryLock() {
		return nil, false
	}
	return h.mu.Unlock, true
}

// Store is the process-wide mapping from session identifier to handle.
// It owns no account-store I/O; it is this core's only shared mutable
// structure (§5), and the only one needing its own concurrency handling.
type Store struct {
	mu      sync.Mutex
	handles map[uuid.UUID]*Handle
	order   []uuid.UUID // sorted ascending by raw UUID bytes == ascending expiry
}

// NewStore builds an empty session store.
func NewStore() *Store {
	return &Store{handles: make(map[uuid.UUID]*Handle)}
}

// Insert adds a new handle for id, expiring at expiry.
func (s *Store) Insert(id uuid.UUID, record *Record, expiry time.Time) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.handles[id] = &Handle{Record: record, Expiry: expiry}
	i := sort.Search(len(s.order), func(i int) bool { return compareUUID(s.order[i], id) >= 0 })
	s.order = append(s.order, uuid.Nil)
	copy(s.order[i+1:], s.order[i:])
	s.order[i] = id
}

// Get returns the handle for id, or ErrInvalidState if absent.
func (s *Store) Get(id uuid.UUID) (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.handles[id]
	if !ok {
		return nil, cserrors.ErrInvalidState
	}
	return h, nil
}

// Remove deletes and returns the handle for id, or ErrInvalidState if
// absent.
func (s *Store) Remove(id uuid.UUID) (*Handle, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	h, ok := s.handles[id]
	if !ok {
		return nil, cserrors.ErrInvalidState
	}
	delete(s.handles, id)
	i := sort.Search(len(s.order), func(i int) bool { return compareUUID(s.order[i], id) >= 0 })
	if i < len(s.order) && s.order[i] == id {
		s.order = append(s.order[:i], s.order[i+1:]...)
	}
	return h, nil
}

// ExpireBefore removes every entry whose identifier encodes an expiry
// earlier than instant. Because identifiers sort by encoded expiry, this
// is a single prefix split of the ordered index rather than a scan.
func (s *Store) ExpireBefore(instant time.Time) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	cutoff := cutoffID(instant)
	i := sort.Search(len(s.order), func(i int) bool { return compareUUID(s.order[i], cutoff) >= 0 })
	expired := s.order[:i]
	for _, id := range expired {
		delete(s.handles, id)
	}
	s.order = s.order[i:]
	return len(expired)
}

// Len reports the number of live sessions, for tests and observability.
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.handles)
}

func compareUUID(a, b uuid.UUID) int {
	for i := range a {
		if a[i] != b[i] {
			if a[i] < b[i] {
				return -1
			}
			return 1
		}
	}
	return 0
}
