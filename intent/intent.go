// Package intent implements the Intent Token Ledger: per-account
// delegated-edit grants that move through Valid, InProgress, and
// Consumed, persisted as a multi-valued attribute on the account entry.
//
// # Intent Identifier Format
//
// Identifiers are human-readable, word-joined random strings — typable
// by a subject copying an identifier from one device to another — rather
// than hex, unlike this ledger's sibling session identifiers.
package intent

import (
	"context"
	"crypto/rand"
	"encoding/binary"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/byteness/credsession/account"
	"github.com/byteness/credsession/cserrors"
)

// GrantState is one of a grant's three possible states. A grant exists
// in at most one of them; Consumed is terminal until expiry garbage-
// collects it.
type GrantState int

const (
	Valid GrantState = iota
	InProgress
	Consumed
)

func (s GrantState) String() string {
	switch s {
	case Valid:
		return "Valid"
	case InProgress:
		return "InProgress"
	case Consumed:
		return "Consumed"
	default:
		return "Unknown"
	}
}

// Grant is one delegated-edit authorization on a target account.
type Grant struct {
	ID     string
	State  GrantState
	Expiry time.Time
	Perms  account.Permissions

	// SessionID and SessionExpiry are populated only while State ==
	// InProgress: the session this grant was exchanged for.
	SessionID     uuid.UUID
	SessionExpiry time.Time
}

// Remaining reports how long the grant remains valid as of now, zero if
// already expired.
func (g Grant) Remaining(now time.Time) time.Duration {
	if !g.Expiry.After(now) {
		return 0
	}
	return g.Expiry.Sub(now)
}

// Store persists grants on the target account entry. Append/ReplaceState
// are expressed as Removed(old)+Present(new) pairs rather than whole-
// record overwrites, mirroring how the account entry's modification list
// works for any other multi-valued attribute.
type Store interface {
	// Append adds a new grant to target's ledger and removes any of
	// target's existing grants (regardless of state) whose Expiry is not
	// after now — the opportunistic GC step of issuance.
	Append(ctx context.Context, target uuid.UUID, g Grant, now time.Time) error
	// ListByIdentifier returns every grant across every account entry
	// carrying intentID. Ordinarily zero or one; more than one is an
	// identifier collision.
	ListByIdentifier(ctx context.Context, intentID string) ([]TargetedGrant, error)
	// ReplaceState transitions the grant at target, identified by
	// intentID, from its current persisted form to updated.
	ReplaceState(ctx context.Context, target uuid.UUID, updated Grant) error
}

// TargetedGrant pairs a Grant with the account entry it lives on, as
// returned by Store.ListByIdentifier.
type TargetedGrant struct {
	Target uuid.UUID
	Grant  Grant
}

const (
	minTTL     = 5 * time.Minute
	maxTTL     = 24 * time.Hour
	defaultTTL = 1 * time.Hour

	// sessionTTL is the fixed session lifetime created by Exchange,
	// matching the Update Transaction API's 15-minute hard cap.
	sessionTTL = 15 * time.Minute
)

func clampTTL(requested time.Duration) time.Duration {
	if requested <= 0 {
		return defaultTTL
	}
	if requested < minTTL {
		return minTTL
	}
	if requested > maxTTL {
		return maxTTL
	}
	return requested
}

// Issue performs the clamp/identifier/append steps of init-intent
// (permission derivation and the access-scope check are the caller's
// responsibility — they depend on account and session-layer collaborators
// this package does not import). now is the issuance instant;
// requestedTTL is clamped into [5 min, 24 h] with a 1 h default.
func Issue(ctx context.Context, store Store, target uuid.UUID, perms account.Permissions, now time.Time, requestedTTL time.Duration) (Grant, error) {
	id, err := newIdentifier()
	if err != nil {
		return Grant{}, err
	}
	grant := Grant{
		ID:     id,
		State:  Valid,
		Expiry: now.Add(clampTTL(requestedTTL)),
		Perms:  perms,
	}
	if err := store.Append(ctx, target, grant, now); err != nil {
		return Grant{}, err
	}
	return grant, nil
}

// ExchangeResult is what Exchange hands back to the update transaction
// API so it can open a session.
type ExchangeResult struct {
	Target        uuid.UUID
	Perms         account.Permissions
	SessionID     uuid.UUID
	SessionExpiry time.Time
}

// Exchange implements the exchange-intent steps that belong to the
// ledger: locate the grant, validate its state, and transition it to
// InProgress. Session creation itself (§4.5) is the caller's
// responsibility; Exchange only returns the session identifier/expiry
// the caller should use, generated here so the grant and the session it
// authorizes are bound atomically in the same ReplaceState write.
func Exchange(ctx context.Context, store Store, intentID string, now time.Time, newSessionID func(expiry time.Time) uuid.UUID) (ExchangeResult, error) {
	matches, err := store.ListByIdentifier(ctx, intentID)
	if err != nil {
		return ExchangeResult{}, err
	}
	if len(matches) == 0 {
		return ExchangeResult{}, cserrors.Wait(now.Add(150 * time.Second))
	}
	if len(matches) > 1 {
		return ExchangeResult{}, cserrors.ErrInvalidState
	}

	tg := matches[0]
	grant := tg.Grant

	switch grant.State {
	case Consumed:
		return ExchangeResult{}, cserrors.ErrSessionExpired
	case Valid:
		if !now.Before(grant.Expiry) {
			return ExchangeResult{}, cserrors.ErrSessionExpired
		}
	case InProgress:
		// Proceed unconditionally: a still-live prior session is
		// implicitly invalidated at commit time by the session-id
		// mismatch check, avoiding cross-replica locking here.
	default:
		return ExchangeResult{}, cserrors.ErrInvalidState
	}

	sessionExpiry := now.Add(sessionTTL)
	sessionID := newSessionID(sessionExpiry)

	updated := grant
	updated.State = InProgress
	updated.SessionID = sessionID
	updated.SessionExpiry = sessionExpiry
	if err := store.ReplaceState(ctx, tg.Target, updated); err != nil {
		return ExchangeResult{}, err
	}

	return ExchangeResult{
		Target:        tg.Target,
		Perms:         grant.Perms,
		SessionID:     sessionID,
		SessionExpiry: sessionExpiry,
	}, nil
}

// newIdentifier builds a word-joined random string, high-entropy and
// human-typable: twelve words from a fixed 32-word list joined by
// hyphens, spending 60 of the 64 bits drawn from crypto/rand.
func newIdentifier() (string, error) {
	var buf [8]byte
	if _, err := rand.Read(buf[:]); err != nil {
		return "", err
	}
	n := binary.BigEndian.Uint64(buf[:])
	words := make([]string, 12)
	for i := range words {
		words[i] = wordlist[n%uint64(len(wordlist))]
		n /= uint64(len(wordlist))
	}
	id := words[0]
	for _, w := range words[1:] {
		id = fmt.Sprintf("%s-%s", id, w)
	}
	return id, nil
}

// wordlist is a small fixed vocabulary for human-readable identifiers.
// A production deployment would draw from a much larger list (e.g.
// EFF's long wordlist); this is enough to keep collisions low relative
// to the exchange-time collision check in Exchange.
var wordlist = []string{
	"anchor", "basalt", "cinder", "delta", "ember", "flicker", "granite", "harbor",
	"indigo", "jigsaw", "kernel", "lumen", "marble", "nectar", "orbit", "pebble",
	"quartz", "raven", "sable", "timber", "umbra", "velvet", "willow", "xenon",
	"yonder", "zephyr", "amber", "birch", "cobalt", "drift", "ebony", "fable",
}
