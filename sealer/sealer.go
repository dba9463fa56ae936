// Package sealer produces and opens the opaque session tokens handed to
// credential update session callers. It wraps an injected authenticated
// encryption primitive; the key material and its rotation are the
// surrounding server's concern, not this package's.
package sealer

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/byteness/credsession/cserrors"
)

// AEAD is the authenticated-encryption primitive this package seals
// tokens with. Implementations are expected to bind both confidentiality
// and integrity to the opaque payload; they are out of this core's scope.
type AEAD interface {
	Seal(plaintext []byte) (opaque []byte, err error)
	Open(opaque []byte) (plaintext []byte, err error)
}

// tokenBody is the plaintext sealed inside a token. Only these two
// fields cross the AEAD boundary; no credential material ever does.
type tokenBody struct {
	SessionID uuid.UUID `json:"sessionid"`
	MaxTTL    time.Time `json:"max_ttl"`
}

// TokenSealer seals and opens session tokens.
type TokenSealer struct {
	aead AEAD
}

// New builds a TokenSealer backed by the given AEAD primitive.
func New(aead AEAD) *TokenSealer {
	return &TokenSealer{aead: aead}
}

// Seal produces an opaque token binding sessionID to its hard expiry.
func (s *TokenSealer) Seal(sessionID uuid.UUID, expiry time.Time) ([]byte, error) {
	plaintext, err := json.Marshal(tokenBody{SessionID: sessionID, MaxTTL: expiry})
	if err != nil {
		return nil, cserrors.SerdeJSON(err)
	}
	opaque, err := s.aead.Seal(plaintext)
	if err != nil {
		return nil, cserrors.ErrSessionExpired
	}
	return opaque, nil
}

// Open recovers the session identifier and expiry from an opaque token.
// Any failure — authentication failure, decode failure — is reported as
// ErrSessionExpired so that tampering and expiry are indistinguishable to
// callers. Open does not itself check expiry against the current time;
// that comparison belongs to the caller, since Open only reports
// tamper/garble of the token itself.
func (s *TokenSealer) Open(token []byte) (uuid.UUID, time.Time, error) {
	plaintext, err := s.aead.Open(token)
	if err != nil {
		return uuid.Nil, time.Time{}, cserrors.ErrSessionExpired
	}
	var body tokenBody
	if err := json.Unmarshal(plaintext, &body); err != nil {
		return uuid.Nil, time.Time{}, cserrors.ErrSessionExpired
	}
	return body.SessionID, body.MaxTTL, nil
}
