// Package totp implements RFC 6238 time-based one-time passwords for the
// credential update session core, including the SHA-1 downgrade detection
// needed by the check-TOTP edit operation to tolerate authenticator apps
// that silently ignore the declared HMAC algorithm.
package totp

import (
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/base32"
	"encoding/binary"
	"fmt"
	"hash"
	"strings"
	"time"
)

// Algorithm identifies the HMAC hash backing a secret.
type Algorithm string

const (
	SHA1   Algorithm = "SHA1"
	SHA256 Algorithm = "SHA256"
)

func (a Algorithm) newHash() func() hash.Hash {
	if a == SHA1 {
		return sha1.New
	}
	return sha256.New
}

const (
	// DefaultDigits is the OTP length issued for new secrets.
	DefaultDigits = 6
	// DefaultPeriod is the time step in seconds.
	DefaultPeriod = 30
	// DefaultSkew is the number of adjacent periods accepted for clock drift.
	DefaultSkew = 1
)

// Secret is a TOTP shared secret bound to an algorithm, digit count, and
// period. New secrets default to SHA256, the stronger of the two
// algorithms this core accepts; SHA1 is accepted only via Downgrade, used
// to detect authenticator apps that ignore the declared algorithm.
type Secret struct {
	Key       []byte
	Algorithm Algorithm
	Digits    int
	Period    int
}

// Generate creates a fresh random secret with the given algorithm.
func Generate(alg Algorithm) (Secret, error) {
	key := make([]byte, 20)
	if _, err := rand.Read(key); err != nil {
		return Secret{}, err
	}
	return Secret{Key: key, Algorithm: alg, Digits: DefaultDigits, Period: DefaultPeriod}, nil
}

// Downgrade returns a copy of the secret that computes codes using
// HMAC-SHA1 over the same raw key, used when the declared algorithm's
// verification fails but a SHA-1-computed code matches.
func (s Secret) Downgrade() Secret {
	d := s
	d.Algorithm = SHA1
	return d
}

// Base32 returns the secret's key, base32-encoded for provisioning URIs
// and client display.
func (s Secret) Base32() string {
	return base32.StdEncoding.WithPadding(base32.NoPadding).EncodeToString(s.Key)
}

// Verify checks code against the secret at time t, accepting the
// configured skew of adjacent periods to tolerate clock drift.
func (s Secret) Verify(code string, t time.Time) bool {
	digits := s.Digits
	if digits == 0 {
		digits = DefaultDigits
	}
	period := s.Period
	if period == 0 {
		period = DefaultPeriod
	}
	counter := uint64(t.Unix()) / uint64(period)

	for i := -DefaultSkew; i <= DefaultSkew; i++ {
		var adjusted uint64
		if i < 0 {
			adjusted = counter - uint64(-i)
		} else {
			adjusted = counter + uint64(i)
		}
		if generate(s.Key, s.Algorithm, adjusted, digits) == code {
			return true
		}
	}
	return false
}

// generate computes a single TOTP code per RFC 4226's dynamic truncation.
func generate(key []byte, alg Algorithm, counter uint64, digits int) string {
	counterBytes := make([]byte, 8)
	binary.BigEndian.PutUint64(counterBytes, counter)

	h := hmac.New(alg.newHash(), key)
	h.Write(counterBytes)
	sum := h.Sum(nil)

	offset := sum[len(sum)-1] & 0x0f
	code := binary.BigEndian.Uint32(sum[offset:offset+4]) & 0x7fffffff

	divisor := uint32(1)
	for i := 0; i < digits; i++ {
		divisor *= 10
	}
	return fmt.Sprintf("%0*d", digits, code%divisor)
}

// CodeAt computes the single TOTP code for secret at exactly time t,
// with no skew window. Exported for tests that need a deterministic code
// rather than Verify's tolerant match.
func CodeAt(secret Secret, t time.Time) string {
	digits := secret.Digits
	if digits == 0 {
		digits = DefaultDigits
	}
	period := secret.Period
	if period == 0 {
		period = DefaultPeriod
	}
	counter := uint64(t.Unix()) / uint64(period)
	return generate(secret.Key, secret.Algorithm, counter, digits)
}

// decodeBase32 accepts a secret string as produced by Base32, tolerating
// missing padding and surrounding whitespace, for tests and fixtures that
// build a Secret from a human-typed value rather than Generate.
func decodeBase32(s string) ([]byte, error) {
	s = strings.ToUpper(strings.TrimSpace(s))
	s = strings.TrimRight(s, "=")
	if mod := len(s) % 8; mod != 0 {
		s += strings.Repeat("=", 8-mod)
	}
	return base32.StdEncoding.DecodeString(s)
}

// FromBase32 reconstructs a Secret from its base32 encoding.
func FromBase32(encoded string, alg Algorithm) (Secret, error) {
	key, err := decodeBase32(encoded)
	if err != nil {
		return Secret{}, err
	}
	return Secret{Key: key, Algorithm: alg, Digits: DefaultDigits, Period: DefaultPeriod}, nil
}
