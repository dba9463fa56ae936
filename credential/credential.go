// Package credential holds the value types for a primary credential
// (password plus attached TOTP bindings and backup codes) and for
// passkeys, along with the out-of-scope primitives the core's edit
// operations delegate to: password hashing and WebAuthn ceremonies.
package credential

import (
	"github.com/byteness/credsession/totp"
)

// PasswordHash is an opaque password hash produced by an injected
// PasswordHasher. This package never inspects its bytes.
type PasswordHash []byte

// PasswordHasher is the out-of-scope password hashing primitive.
type PasswordHasher interface {
	Hash(password string) (PasswordHash, error)
}

// TOTPBinding is one TOTP authenticator attached to a primary credential,
// keyed by its label in Primary.TOTP.
type TOTPBinding struct {
	Secret totp.Secret
}

// BackupCodes is a set of one-time recovery codes attached to a primary
// credential. Plaintext codes are never retained once generated — only
// their opaque hashes are kept here; the plaintext is surfaced to the
// caller exactly once, as a status overlay, by the operation that
// generated them.
type BackupCodes struct {
	Hashes [][]byte
}

// Remaining reports how many unused codes are left.
func (b *BackupCodes) Remaining() int {
	if b == nil {
		return 0
	}
	return len(b.Hashes)
}

// Primary is the account's single password credential, optionally
// carrying TOTP bindings and backup codes. Backup codes may only exist
// when TOTP is attached — enforced by session.Record's RemoveTOTP and
// InitBackupCodes, not by a flag on this struct.
type Primary struct {
	Password PasswordHash
	TOTP     map[string]TOTPBinding
	Backup   *BackupCodes
}

// HasMFA reports whether any second factor is attached.
func (p *Primary) HasMFA() bool {
	if p == nil {
		return false
	}
	return len(p.TOTP) > 0
}

// Clone returns a deep copy, used when opening a session record so edits
// never mutate the account snapshot in place.
func (p *Primary) Clone() *Primary {
	if p == nil {
		return nil
	}
	clone := &Primary{Password: append(PasswordHash(nil), p.Password...)}
	if p.TOTP != nil {
		clone.TOTP = make(map[string]TOTPBinding, len(p.TOTP))
		for k, v := range p.TOTP {
			v.Secret.Key = append([]byte(nil), v.Secret.Key...)
			clone.TOTP[k] = v
		}
	}
	if p.Backup != nil {
		clone.Backup = &BackupCodes{Hashes: make([][]byte, len(p.Backup.Hashes))}
		for i, h := range p.Backup.Hashes {
			clone.Backup.Hashes[i] = append([]byte(nil), h...)
		}
	}
	return clone
}

// Passkey is a WebAuthn/FIDO2 credential registered independently of the
// primary credential.
type Passkey struct {
	Label     string
	Material  []byte
}

// PasskeyCeremony is the out-of-scope WebAuthn registration/authentication
// primitive. BeginRegistration scopes a challenge to the account's
// existing credential IDs (so a new passkey cannot collide with one
// already registered); FinishRegistration completes it.
type PasskeyCeremony interface {
	BeginRegistration(existingCredentialIDs [][]byte) (challenge []byte, ceremonyState []byte, err error)
	FinishRegistration(ceremonyState []byte, response []byte) (material []byte, err error)
}
