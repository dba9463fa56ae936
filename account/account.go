// Package account models the account snapshot a credential update session
// is opened against, the permission triple derived from it, and the two
// out-of-scope collaborators a deploying server must supply: the backing
// entry store and the access-control evaluator.
package account

import (
	"context"
	"net/url"

	"github.com/google/uuid"

	"github.com/byteness/credsession/credential"
)

// Attribute identifies one of the account attributes a session can be
// granted edit or view access to.
type Attribute string

const (
	AttrPrimaryCredential Attribute = "primary_credential"
	AttrPasskeys          Attribute = "passkeys"
	AttrExtPortal         Attribute = "ext_cred_portal"
)

// Identity is the acting principal presented to the access evaluator and
// to init-intent's scope check. What it contains beyond an opaque
// comparable value is the embedding server's concern.
type Identity interface {
	// ReadWrite reports whether this identity holds a read-write session
	// scope, required by init-intent step 1.
	ReadWrite() bool
}

// EffectivePermission is the access evaluator's verdict for one identity
// against one target's attribute set.
type EffectivePermission int

const (
	Denied EffectivePermission = iota
	GrantAll
	AllowSubset
)

// AccessEvaluator answers effective-permission queries. This is the
// out-of-scope access-control evaluator collaborator.
type AccessEvaluator interface {
	Effective(ctx context.Context, ident Identity, target uuid.UUID, attrs []Attribute) (EffectivePermission, []Attribute, error)
}

// Modification is one entry of the modification list applied atomically
// to an account entry by EntryStore.Apply.
type Modification struct {
	Attribute Attribute
	Purge     bool
	Present   any
}

// Snapshot is the immutable copy of an account's authentication-relevant
// attributes captured at session open. It is cloned into the session
// record and discarded when the session drops.
type Snapshot struct {
	Subject          uuid.UUID
	DisplayName      string
	SPN              string
	Primary          *credential.Primary
	Passkeys         map[uuid.UUID]credential.Passkey
	RelatedInputs    []string
	SyncParentPortal *url.URL
}

// EntryStore is the out-of-scope backing entry store: queried for an
// account entry, modified by applying a modification list.
type EntryStore interface {
	Fetch(ctx context.Context, subject uuid.UUID) (*Snapshot, error)
	Apply(ctx context.Context, subject uuid.UUID, mods []Modification) error
}

// PasskeyEntry pairs a passkey with its credential id, the shape a
// Modification's Present field carries for AttrPasskeys — EntryStore
// decides how to persist it.
type PasskeyEntry struct {
	ID      uuid.UUID
	Passkey credential.Passkey
}

// Permissions is the three-boolean triple computed once at session open
// and frozen for the session's lifetime.
type Permissions struct {
	PrimaryCanEdit  bool
	PasskeysCanEdit bool
	ExtPortalCanView bool
}

// Any reports whether at least one permission bit is set, the gate
// init/init-intent enforce before allowing a session or grant to exist.
func (p Permissions) Any() bool {
	return p.PrimaryCanEdit || p.PasskeysCanEdit || p.ExtPortalCanView
}

// DerivePermissions implements the permission-derivation algorithm shared
// by direct init and intent issuance: one effective-permission query over
// the primary credential, passkeys and external portal attributes, with
// each bit set when the verdict covers that attribute. The portal bit is
// evaluated only when the account has a parent sync reference. It does
// not reject an all-false triple; callers check Permissions.Any.
func DerivePermissions(ctx context.Context, evaluator AccessEvaluator, ident Identity, snap *Snapshot) (Permissions, error) {
	perm, allowed, err := evaluator.Effective(ctx, ident, snap.Subject, []Attribute{AttrPrimaryCredential, AttrPasskeys, AttrExtPortal})
	if err != nil {
		return Permissions{}, err
	}

	canEdit := func(attr Attribute) bool {
		switch perm {
		case Denied:
			return false
		case GrantAll:
			return true
		case AllowSubset:
			for _, a := range allowed {
				if a == attr {
					return true
				}
			}
			return false
		default:
			return false
		}
	}

	out := Permissions{
		PrimaryCanEdit:  canEdit(AttrPrimaryCredential),
		PasskeysCanEdit: canEdit(AttrPasskeys),
	}
	if snap.SyncParentPortal != nil {
		out.ExtPortalCanView = canEdit(AttrExtPortal)
	}
	return out, nil
}
