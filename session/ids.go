// Package session implements the Session Store and the per-session
// Record state machine of the credential update session core: the
// editable snapshot of credentials plus its MFA-registration sub-state,
// held behind a non-blocking per-session handle.
//
// # Session ID Format
//
// Session identifiers are time-encoded UUIDs: the leading 48 bits carry
// the session's expiry instant in milliseconds since the Unix epoch, and
// the remaining bits are random. Ordering an identifier by its raw bytes
// therefore orders sessions by expiry, so Store.ExpireBefore is a single
// ordered-index split rather than a per-entry timer.
package session

import (
	"crypto/rand"
	"time"

	"github.com/google/uuid"
)

// NewID derives a session identifier whose byte ordering matches expiry.
// It must not be built from pure randomness — see the package doc and
// Store.ExpireBefore.
func NewID(expiry time.Time) uuid.UUID {
	var id [16]byte
	ms := uint64(expiry.UnixMilli())
	id[0] = byte(ms >> 40)
	id[1] = byte(ms >> 32)
	id[2] = byte(ms >> 24)
	id[3] = byte(ms >> 16)
	id[4] = byte(ms >> 8)
	id[5] = byte(ms)
	_, _ = rand.Read(id[6:])
	id[6] = (id[6] & 0x0f) | 0x70 // RFC 9562 version nibble, time-ordered layout
	id[8] = (id[8] & 0x3f) | 0x80 // RFC 9562 variant bits
	return uuid.UUID(id)
}

// cutoffID returns the smallest possible identifier whose encoded expiry
// equals instant: all-zero random suffix. Every real identifier encoding
// an earlier expiry sorts strictly before it.
func cutoffID(instant time.Time) uuid.UUID {
	var id [16]byte
	ms := uint64(instant.UnixMilli())
	id[0] = byte(ms >> 40)
	id[1] = byte(ms >> 32)
	id[2] = byte(ms >> 24)
	id[3] = byte(ms >> 16)
	id[4] = byte(ms >> 8)
	id[5] = byte(ms)
	return uuid.UUID(id)
}
