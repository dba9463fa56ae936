package session

import (
	"crypto/rand"
	"crypto/sha256"
	"encoding/base32"
	"fmt"

	"github.com/google/uuid"

	"github.com/byteness/credsession/credential"
	"github.com/byteness/credsession/mfastate"
)

// MFAStateKind is the client-facing projection of mfastate.Kind.
type MFAStateKind string

const (
	MFANone            MFAStateKind = "None"
	MFATotpCheck       MFAStateKind = "TotpCheck"
	MFATotpTryAgain    MFAStateKind = "TotpTryAgain"
	MFATotpInvalidSha1 MFAStateKind = "TotpInvalidSha1"
	MFABackupCodes     MFAStateKind = "BackupCodes"
	MFAPasskey         MFAStateKind = "Passkey"
)

// MFARegStateView is the client-facing projection of the session's MFA
// sub-state. Most fields are populated only for the matching Kind; the
// BackupCodes variant is an overlay applied by InitBackupCodes onto the
// status it returns and is never stored back into Record.MFA.
type MFARegStateView struct {
	Kind        MFAStateKind
	TOTPSecret  string // base32, TotpCheck only
	BackupCodes []string
	Challenge   []byte // Passkey only
}

// CredentialSummary is the masked view of the primary credential: never
// the password hash or TOTP secrets, only enough to describe shape.
type CredentialSummary struct {
	Kind            string // "password" or "password_mfa"
	TOTPLabels      []string
	BackupCodeCount int
}

// PasskeyView is the client-facing view of one registered passkey.
type PasskeyView struct {
	ID    uuid.UUID
	Label string
}

// Status is the read projection of a Record, recomputed fresh on every
// call and never cached.
type Status struct {
	SPN             string
	DisplayName     string
	ExtPortal       ExtPortal
	MFARegState     MFARegStateView
	CanCommit       bool
	Primary         *CredentialSummary
	PrimaryCanEdit  bool
	Passkeys        []PasskeyView
	PasskeysCanEdit bool
}

func (r *Record) status() *Status {
	st := &Status{
		SPN:             r.Snapshot.SPN,
		DisplayName:     r.Snapshot.DisplayName,
		ExtPortal:       r.ExtPortal,
		CanCommit:       r.CanCommit(),
		PrimaryCanEdit:  r.Perms.PrimaryCanEdit,
		PasskeysCanEdit: r.Perms.PasskeysCanEdit,
	}

	st.MFARegState = r.projectMFARegState()
	st.Primary = summarizePrimary(r.Primary)

	for id, pk := range r.Passkeys {
		st.Passkeys = append(st.Passkeys, PasskeyView{ID: id, Label: pk.Label})
	}
	return st
}

// Status returns the current read projection of the record. Exported so
// the update transaction API can return a status without duplicating
// edit logic after every operation.
func (r *Record) Status() *Status { return r.status() }

func (r *Record) projectMFARegState() MFARegStateView {
	switch r.MFA.Kind {
	case mfastate.TotpInit:
		return MFARegStateView{Kind: MFATotpCheck, TOTPSecret: r.MFA.Secret.Base32()}
	case mfastate.TotpTryAgain:
		return MFARegStateView{Kind: MFATotpTryAgain}
	case mfastate.TotpInvalidSha1:
		return MFARegStateView{Kind: MFATotpInvalidSha1}
	case mfastate.PasskeyReg:
		return MFARegStateView{Kind: MFAPasskey, Challenge: r.MFA.Passkey.Challenge}
	default:
		return MFARegStateView{Kind: MFANone}
	}
}

func summarizePrimary(p *credential.Primary) *CredentialSummary {
	if p == nil {
		return nil
	}
	summary := &CredentialSummary{Kind: "password", BackupCodeCount: p.Backup.Remaining()}
	for label := range p.TOTP {
		summary.TOTPLabels = append(summary.TOTPLabels, label)
	}
	if p.HasMFA() {
		summary.Kind = "password_mfa"
	}
	return summary
}

// generateBackupCodes produces a fresh set of 8 human-typable backup
// codes plus their opaque (hashed) form for storage. Hashing here is a
// plain SHA-256 over the code bytes: a real deployment may prefer a
// slower KDF, but that policy belongs to the injected PasswordHasher
// used for primary passwords, not to this fixed-format recovery code.
func generateBackupCodes() (plaintext []string, hashes [][]byte) {
	const count = 8
	plaintext = make([]string, count)
	hashes = make([][]byte, count)
	for i := 0; i < count; i++ {
		buf := make([]byte, 5)
		_, _ = rand.Read(buf)
		code := base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(buf)
		plaintext[i] = fmt.Sprintf("%s-%s", code[:4], code[4:])
		sum := sha256.Sum256(buf)
		hashes[i] = sum[:]
	}
	return plaintext, hashes
}
