// Package mfastate implements the per-session MFA registration sub-state
// machine: a flat tagged union rather than a class hierarchy, carrying
// only the payload each state needs, per the core's design note that deep
// state hierarchies are unnecessary here.
package mfastate

import (
	"github.com/byteness/credsession/totp"
)

// Kind identifies which variant a State holds.
type Kind int

const (
	None Kind = iota
	TotpInit
	TotpTryAgain
	TotpInvalidSha1
	PasskeyReg
)

func (k Kind) String() string {
	switch k {
	case None:
		return "None"
	case TotpInit:
		return "TotpInit"
	case TotpTryAgain:
		return "TotpTryAgain"
	case TotpInvalidSha1:
		return "TotpInvalidSha1"
	case PasskeyReg:
		return "PasskeyReg"
	default:
		return "Unknown"
	}
}

// PasskeyChallenge is an opaque WebAuthn registration challenge plus
// whatever ceremony state the injected PasskeyCeremony needs to finish
// registration later. Both fields are opaque to this package.
type PasskeyChallenge struct {
	Challenge []byte
	Ceremony  []byte
}

// State is the flat tagged union. Only the fields relevant to Kind are
// meaningful; callers should switch on Kind before reading payload fields.
type State struct {
	Kind Kind

	// TotpInit, TotpTryAgain: the secret under verification.
	Secret totp.Secret

	// TotpInvalidSha1: both forms of the secret plus the label the caller
	// supplied to check-TOTP, carried forward so accept-SHA1 can attach
	// the credential under the same label without asking again.
	SHA256Secret totp.Secret
	SHA1Secret   totp.Secret
	Label        string

	// PasskeyReg: the in-progress registration ceremony.
	Passkey PasskeyChallenge
}

// IsNone reports whether the sub-state machine is idle.
func (s State) IsNone() bool { return s.Kind == None }

// Reset returns the idle sub-state. Used by cancel-MFA-registration and
// by the step that consumes the sub-state on success; session commit
// discards the whole record, sub-state included, without calling it.
func Reset() State { return State{Kind: None} }
