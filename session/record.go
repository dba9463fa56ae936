package session

import (
	"net/url"
	"time"

	"github.com/google/uuid"

	"github.com/byteness/credsession/account"
	"github.com/byteness/credsession/credential"
	"github.com/byteness/credsession/cserrors"
	"github.com/byteness/credsession/mfastate"
	"github.com/byteness/credsession/totp"
)

// portalKind classifies ExtPortal.
type portalKind string

const (
	PortalNone   portalKind = "none"
	PortalHidden portalKind = "hidden"
	PortalSome   portalKind = "some"
)

// ExtPortal is the frozen external-portal descriptor resolved once at
// session open: None when the account has no parent sync reference,
// Hidden when it does but portal visibility is denied, Some(url) when
// visible.
type ExtPortal struct {
	Kind portalKind
	URL  *url.URL
}

func resolveExtPortal(snap *account.Snapshot, perms account.Permissions) ExtPortal {
	if snap.SyncParentPortal == nil {
		return ExtPortal{Kind: PortalNone}
	}
	if !perms.ExtPortalCanView {
		return ExtPortal{Kind: PortalHidden}
	}
	return ExtPortal{Kind: PortalSome, URL: snap.SyncParentPortal}
}

// Record is the mutable per-session working copy of an account's
// editable credential attributes plus MFA sub-state. It is created at
// session open, mutated under the Store's exclusive handle by edit
// operations, and discarded on commit, cancel, or expiry.
type Record struct {
	Snapshot  account.Snapshot
	Issuer    string
	IntentID  string // empty if this session was opened directly, not via intent exchange
	Perms     account.Permissions
	ExtPortal ExtPortal

	Primary  *credential.Primary
	Passkeys map[uuid.UUID]credential.Passkey
	MFA      mfastate.State
}

// Open builds a session record from an account snapshot and permission
// triple: the editable primary is the account's current primary iff
// primary_can_edit, the editable passkeys map is copied iff
// passkeys_can_edit, and the portal descriptor is resolved once and
// frozen.
func Open(snap account.Snapshot, perms account.Permissions, issuer, intentID string) *Record {
	r := &Record{
		Snapshot: snap,
		Issuer:   issuer,
		IntentID: intentID,
		Perms:    perms,
	}
	r.ExtPortal = resolveExtPortal(&snap, perms)
	if perms.PrimaryCanEdit {
		r.Primary = snap.Primary.Clone()
	}
	if perms.PasskeysCanEdit {
		r.Passkeys = make(map[uuid.UUID]credential.Passkey, len(snap.Passkeys))
		for id, pk := range snap.Passkeys {
			r.Passkeys[id] = pk
		}
	}
	return r
}

// CanCommit reports whether commit is currently policy-permitted. Always
// true today; reserved for future policy enforcement per the status
// record's can_commit field.
func (r *Record) CanCommit() bool { return true }

// SetPrimaryPassword replaces the password on the editable primary
// credential, preserving any attached TOTP bindings and backup codes, or
// constructs a new password-only primary if none exists. hash is the
// already-computed password hash; quality evaluation happens upstream in
// the update transaction API, which has access to the account's related
// inputs.
func (r *Record) SetPrimaryPassword(hash credential.PasswordHash) (*Status, error) {
	if !r.Perms.PrimaryCanEdit {
		return nil, cserrors.ErrAccessDenied
	}
	if r.Primary == nil {
		r.Primary = &credential.Primary{Password: hash}
	} else {
		r.Primary.Password = hash
	}
	return r.status(), nil
}

// DeletePrimary sets the editable primary to None.
func (r *Record) DeletePrimary() (*Status, error) {
	if !r.Perms.PrimaryCanEdit {
		return nil, cserrors.ErrAccessDenied
	}
	r.Primary = nil
	return r.status(), nil
}

// InitTOTP requires an idle MFA sub-state, generates a fresh secret with
// the given algorithm, and transitions to TotpInit.
func (r *Record) InitTOTP(alg totp.Algorithm) (*Status, error) {
	if !r.Perms.PrimaryCanEdit {
		return nil, cserrors.ErrAccessDenied
	}
	if !r.MFA.IsNone() {
		return nil, cserrors.ErrInvalidState
	}
	secret, err := totp.Generate(alg)
	if err != nil {
		return nil, err
	}
	r.MFA = mfastate.State{Kind: mfastate.TotpInit, Secret: secret}
	return r.status(), nil
}

// CheckTOTP verifies code against the secret under verification at time
// now. On success the TOTP is attached to the primary credential under
// label and sub-state clears. On failure a second attempt is made with
// the secret downgraded to SHA-1, to detect authenticator apps that
// silently ignore the declared algorithm; if that verifies, sub-state
// becomes TotpInvalidSha1 awaiting AcceptSHA1. Otherwise sub-state
// becomes TotpTryAgain.
func (r *Record) CheckTOTP(code, label string, now time.Time) (*Status, error) {
	if !r.Perms.PrimaryCanEdit {
		return nil, cserrors.ErrAccessDenied
	}
	var current totp.Secret
	switch r.MFA.Kind {
	case mfastate.TotpInit, mfastate.TotpTryAgain:
		current = r.MFA.Secret
	case mfastate.TotpInvalidSha1:
		current = r.MFA.SHA256Secret
	default:
		return nil, cserrors.ErrInvalidState
	}
	if r.Primary == nil {
		return nil, cserrors.ErrInvalidState
	}

	if current.Verify(code, now) {
		r.attachTOTP(label, current)
		r.MFA = mfastate.Reset()
		return r.status(), nil
	}

	downgraded := current.Downgrade()
	if downgraded.Verify(code, now) {
		r.MFA = mfastate.State{
			Kind:         mfastate.TotpInvalidSha1,
			SHA256Secret: current,
			SHA1Secret:   downgraded,
			Label:        label,
		}
		return r.status(), nil
	}

	r.MFA = mfastate.State{Kind: mfastate.TotpTryAgain, Secret: current}
	return r.status(), nil
}

// AcceptSHA1 attaches the SHA-1 variant captured by the preceding
// CheckTOTP call and clears sub-state. Only valid from TotpInvalidSha1.
func (r *Record) AcceptSHA1() (*Status, error) {
	if !r.Perms.PrimaryCanEdit {
		return nil, cserrors.ErrAccessDenied
	}
	if r.MFA.Kind != mfastate.TotpInvalidSha1 {
		return nil, cserrors.ErrInvalidState
	}
	if r.Primary == nil {
		return nil, cserrors.ErrInvalidState
	}
	r.attachTOTP(r.MFA.Label, r.MFA.SHA1Secret)
	r.MFA = mfastate.Reset()
	return r.status(), nil
}

func (r *Record) attachTOTP(label string, secret totp.Secret) {
	if r.Primary.TOTP == nil {
		r.Primary.TOTP = make(map[string]credential.TOTPBinding)
	}
	r.Primary.TOTP[label] = credential.TOTPBinding{Secret: secret}
}

// RemoveTOTP requires an idle MFA sub-state and removes the named TOTP
// from the primary credential. If that removal leaves the primary
// without any MFA, attached backup codes are removed as a consequence.
func (r *Record) RemoveTOTP(label string) (*Status, error) {
	if !r.Perms.PrimaryCanEdit {
		return nil, cserrors.ErrAccessDenied
	}
	if !r.MFA.IsNone() {
		return nil, cserrors.ErrInvalidState
	}
	if r.Primary == nil {
		return nil, cserrors.ErrInvalidState
	}
	delete(r.Primary.TOTP, label)
	if !r.Primary.HasMFA() {
		r.Primary.Backup = nil
	}
	return r.status(), nil
}

// InitBackupCodes generates a fresh set of backup codes and attaches
// them to the primary credential, failing with InvalidState if the
// primary does not yet have MFA. The plaintext codes are returned here
// and overlaid onto the status this call returns only — they are never
// retained in the record itself, so later status calls do not show them.
func (r *Record) InitBackupCodes() (*Status, []string, error) {
	if !r.Perms.PrimaryCanEdit {
		return nil, nil, cserrors.ErrAccessDenied
	}
	if r.Primary == nil || !r.Primary.HasMFA() {
		return nil, nil, cserrors.ErrInvalidState
	}
	codes, hashes := generateBackupCodes()
	r.Primary.Backup = &credential.BackupCodes{Hashes: hashes}
	status := r.status()
	status.MFARegState = MFARegStateView{Kind: MFABackupCodes, BackupCodes: codes}
	return status, codes, nil
}

// RemoveBackupCodes detaches backup codes, failing with InvalidState if
// none are present.
func (r *Record) RemoveBackupCodes() (*Status, error) {
	if !r.Perms.PrimaryCanEdit {
		return nil, cserrors.ErrAccessDenied
	}
	if r.Primary == nil || r.Primary.Backup == nil {
		return nil, cserrors.ErrInvalidState
	}
	r.Primary.Backup = nil
	return r.status(), nil
}

// InitPasskey requires an idle MFA sub-state and begins a WebAuthn
// registration ceremony scoped to the account's existing credential IDs.
func (r *Record) InitPasskey(ceremony credential.PasskeyCeremony) (*Status, error) {
	if !r.Perms.PasskeysCanEdit {
		return nil, cserrors.ErrAccessDenied
	}
	if !r.MFA.IsNone() {
		return nil, cserrors.ErrInvalidState
	}
	existing := make([][]byte, 0, len(r.Passkeys))
	for _, pk := range r.Passkeys {
		existing = append(existing, pk.Material)
	}
	challenge, ceremonyState, err := ceremony.BeginRegistration(existing)
	if err != nil {
		return nil, cserrors.Webauthn(err)
	}
	r.MFA = mfastate.State{
		Kind:    mfastate.PasskeyReg,
		Passkey: mfastate.PasskeyChallenge{Challenge: challenge, Ceremony: ceremonyState},
	}
	return r.status(), nil
}

// FinishPasskey completes a registration ceremony begun by InitPasskey,
// inserting a newly generated credential id, label and material into the
// editable passkey map and clearing sub-state. Only valid from
// PasskeyReg.
func (r *Record) FinishPasskey(label string, response []byte, ceremony credential.PasskeyCeremony) (*Status, error) {
	if !r.Perms.PasskeysCanEdit {
		return nil, cserrors.ErrAccessDenied
	}
	if r.MFA.Kind != mfastate.PasskeyReg {
		return nil, cserrors.ErrInvalidState
	}
	material, err := ceremony.FinishRegistration(r.MFA.Passkey.Ceremony, response)
	if err != nil {
		return nil, cserrors.Webauthn(err)
	}
	id := uuid.New()
	if r.Passkeys == nil {
		r.Passkeys = make(map[uuid.UUID]credential.Passkey)
	}
	r.Passkeys[id] = credential.Passkey{Label: label, Material: material}
	r.MFA = mfastate.Reset()
	return r.status(), nil
}

// RemovePasskey removes the entry if present; no error if absent.
func (r *Record) RemovePasskey(id uuid.UUID) (*Status, error) {
	if !r.Perms.PasskeysCanEdit {
		return nil, cserrors.ErrAccessDenied
	}
	delete(r.Passkeys, id)
	return r.status(), nil
}

// CancelMFARegistration unconditionally resets sub-state to None without
// touching the primary credential.
func (r *Record) CancelMFARegistration() *Status {
	r.MFA = mfastate.Reset()
	return r.status()
}
