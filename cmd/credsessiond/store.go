package main

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/byteness/credsession/account"
	"github.com/byteness/credsession/credential"
	"github.com/byteness/credsession/cserrors"
	"github.com/byteness/credsession/intent"
)

// memEntryStore is an in-memory account.EntryStore: the demo binary's
// stand-in for the out-of-scope backing entry store a real deployment
// would supply.
type memEntryStore struct {
	mu   sync.Mutex
	data map[uuid.UUID]*account.Snapshot
}

func newMemEntryStore() *memEntryStore {
	return &memEntryStore{data: make(map[uuid.UUID]*account.Snapshot)}
}

func (s *memEntryStore) put(snap account.Snapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.data[snap.Subject] = &snap
}

func (s *memEntryStore) Fetch(ctx context.Context, subject uuid.UUID) (*account.Snapshot, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.data[subject]
	if !ok {
		return nil, cserrors.ErrInvalidState
	}
	clone := *snap
	return &clone, nil
}

func (s *memEntryStore) Apply(ctx context.Context, subject uuid.UUID, mods []account.Modification) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	snap, ok := s.data[subject]
	if !ok {
		return cserrors.ErrInvalidState
	}
	for _, mod := range mods {
		switch mod.Attribute {
		case account.AttrPrimaryCredential:
			if mod.Purge {
				snap.Primary = nil
			}
			if p, ok := mod.Present.(*credential.Primary); ok {
				snap.Primary = p
			}
		case account.AttrPasskeys:
			if mod.Purge {
				snap.Passkeys = make(map[uuid.UUID]credential.Passkey)
			}
			if entry, ok := mod.Present.(account.PasskeyEntry); ok {
				if snap.Passkeys == nil {
					snap.Passkeys = make(map[uuid.UUID]credential.Passkey)
				}
				snap.Passkeys[entry.ID] = entry.Passkey
			}
		}
	}
	return nil
}

// grantAllAccess is a stand-in access evaluator that always grants full
// edit rights, the demo binary's substitute for the out-of-scope
// access-control evaluator.
type grantAllAccess struct{}

func (grantAllAccess) Effective(ctx context.Context, ident account.Identity, target uuid.UUID, attrs []account.Attribute) (account.EffectivePermission, []account.Attribute, error) {
	return account.GrantAll, nil, nil
}

// memIntentStore is an in-memory intent.Store, the demo's stand-in for
// intent grants persisted as a multi-valued account attribute.
type memIntentStore struct {
	mu     sync.Mutex
	grants map[uuid.UUID][]intent.Grant
}

func newMemIntentStore() *memIntentStore {
	return &memIntentStore{grants: make(map[uuid.UUID][]intent.Grant)}
}

func (s *memIntentStore) Append(ctx context.Context, target uuid.UUID, g intent.Grant, now time.Time) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	kept := s.grants[target][:0]
	for _, existing := range s.grants[target] {
		if existing.Expiry.After(now) {
			kept = append(kept, existing)
		}
	}
	s.grants[target] = append(kept, g)
	return nil
}

func (s *memIntentStore) ListByIdentifier(ctx context.Context, intentID string) ([]intent.TargetedGrant, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []intent.TargetedGrant
	for target, grants := range s.grants {
		for _, g := range grants {
			if g.ID == intentID {
				out = append(out, intent.TargetedGrant{Target: target, Grant: g})
			}
		}
	}
	return out, nil
}

func (s *memIntentStore) ReplaceState(ctx context.Context, target uuid.UUID, updated intent.Grant) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	grants := s.grants[target]
	for i, g := range grants {
		if g.ID == updated.ID {
			grants[i] = updated
			return nil
		}
	}
	return cserrors.ErrInvalidState
}

// demoIdentity is a minimal account.Identity for the demo flows.
type demoIdentity struct{ readWrite bool }

func (d demoIdentity) ReadWrite() bool { return d.readWrite }
