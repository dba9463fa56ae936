package sealer

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/byteness/credsession/cserrors"
)

// xorAEAD is a fixture-only stand-in for a real AEAD primitive: good
// enough to exercise Seal/Open round-tripping and tamper detection
// without pulling a crypto library into a test file.
type xorAEAD struct {
	key     byte
	failOpen bool
}

func (x *xorAEAD) Seal(plaintext []byte) ([]byte, error) {
	out := make([]byte, len(plaintext))
	for i, b := range plaintext {
		out[i] = b ^ x.key
	}
	return out, nil
}

func (x *xorAEAD) Open(opaque []byte) ([]byte, error) {
	if x.failOpen {
		return nil, errors.New("authentication failed")
	}
	out := make([]byte, len(opaque))
	for i, b := range opaque {
		out[i] = b ^ x.key
	}
	return out, nil
}

func TestSealOpenRoundTrip(t *testing.T) {
	s := New(&xorAEAD{key: 0x5A})
	id := uuid.New()
	expiry := time.Now().Add(15 * time.Minute).Truncate(time.Millisecond)

	token, err := s.Seal(id, expiry)
	if err != nil {
		t.Fatalf("Seal: %v", err)
	}
	gotID, gotExpiry, err := s.Open(token)
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if gotID != id {
		t.Fatalf("session id round-trip mismatch: got %v want %v", gotID, id)
	}
	if !gotExpiry.Equal(expiry) {
		t.Fatalf("expiry round-trip mismatch: got %v want %v", gotExpiry, expiry)
	}
}

func TestOpenFailureIsSessionExpired(t *testing.T) {
	s := New(&xorAEAD{key: 0x5A, failOpen: true})
	_, _, err := s.Open([]byte("garbage"))
	if !errors.Is(err, cserrors.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired, got %v", err)
	}
}

func TestOpenGarbledPayloadIsSessionExpired(t *testing.T) {
	aead := &xorAEAD{key: 0x5A}
	s := New(aead)
	// Valid AEAD round-trip, but the plaintext inside isn't JSON at all.
	opaque, _ := aead.Seal([]byte("not json"))
	_, _, err := s.Open(opaque)
	if !errors.Is(err, cserrors.ErrSessionExpired) {
		t.Fatalf("expected ErrSessionExpired for a decode failure, got %v", err)
	}
}
