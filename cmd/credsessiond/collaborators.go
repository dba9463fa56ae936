package main

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/rand"
	"fmt"

	"golang.org/x/crypto/bcrypt"

	"github.com/byteness/credsession/credential"
	"github.com/byteness/credsession/quality"
)

// gcmSealer is a concrete sealer.AEAD backed by AES-GCM with a
// process-scoped random key, the demo's stand-in for a real deployment's
// rotated, process-scoped authenticated-encryption key.
type gcmSealer struct {
	gcm cipher.AEAD
}

func newGCMSealer() (*gcmSealer, error) {
	key := make([]byte, 32)
	if _, err := rand.Read(key); err != nil {
		return nil, err
	}
	block, err := aes.NewCipher(key)
	if err != nil {
		return nil, err
	}
	gcm, err := cipher.NewGCM(block)
	if err != nil {
		return nil, err
	}
	return &gcmSealer{gcm: gcm}, nil
}

func (s *gcmSealer) Seal(plaintext []byte) ([]byte, error) {
	nonce := make([]byte, s.gcm.NonceSize())
	if _, err := rand.Read(nonce); err != nil {
		return nil, err
	}
	return s.gcm.Seal(nonce, nonce, plaintext, nil), nil
}

func (s *gcmSealer) Open(opaque []byte) ([]byte, error) {
	nonceSize := s.gcm.NonceSize()
	if len(opaque) < nonceSize {
		return nil, fmt.Errorf("opaque token too short")
	}
	nonce, ciphertext := opaque[:nonceSize], opaque[nonceSize:]
	return s.gcm.Open(nil, nonce, ciphertext, nil)
}

// bcryptHasher implements credential.PasswordHasher over bcrypt, the
// demo's stand-in for the out-of-scope password-hashing primitive.
type bcryptHasher struct{}

func (bcryptHasher) Hash(password string) (credential.PasswordHash, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return nil, err
	}
	return credential.PasswordHash(hash), nil
}

// heuristicEstimator is a minimal stand-in for a zxcvbn-style entropy
// estimator: longer, more varied passwords score higher, and passwords
// containing one of the related inputs verbatim score zero. Not a
// substitute for a real estimator — the demo exists to exercise
// quality.Evaluate's wiring, not to judge real passwords.
type heuristicEstimator struct{}

func (heuristicEstimator) Estimate(password string, userInputs []string) quality.Entropy {
	for _, input := range userInputs {
		if input != "" && containsFold(password, input) {
			return quality.Entropy{Score: 0, Warning: "password contains account information"}
		}
	}
	classes := 0
	hasLower, hasUpper, hasDigit, hasSymbol := false, false, false, false
	for _, r := range password {
		switch {
		case r >= 'a' && r <= 'z':
			hasLower = true
		case r >= 'A' && r <= 'Z':
			hasUpper = true
		case r >= '0' && r <= '9':
			hasDigit = true
		default:
			hasSymbol = true
		}
	}
	for _, has := range []bool{hasLower, hasUpper, hasDigit, hasSymbol} {
		if has {
			classes++
		}
	}
	score := classes
	if len(password) >= 16 {
		score++
	}
	if score > 4 {
		score = 4
	}
	return quality.Entropy{Score: score, Suggestions: []string{"use a longer passphrase with mixed character classes"}}
}

func containsFold(s, substr string) bool {
	for i := 0; i+len(substr) <= len(s); i++ {
		if equalFold(s[i:i+len(substr)], substr) {
			return true
		}
	}
	return len(substr) == 0
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		ca, cb := a[i], b[i]
		if ca >= 'A' && ca <= 'Z' {
			ca += 'a' - 'A'
		}
		if cb >= 'A' && cb <= 'Z' {
			cb += 'a' - 'A'
		}
		if ca != cb {
			return false
		}
	}
	return true
}

// noopCeremony is a stand-in credential.PasskeyCeremony: it never touches
// a real authenticator, it just hands back deterministic bytes so the
// passkey enrollment flow can be exercised end to end.
type noopCeremony struct{}

func (noopCeremony) BeginRegistration(existingCredentialIDs [][]byte) ([]byte, []byte, error) {
	return []byte("challenge"), []byte("ceremony-state"), nil
}

func (noopCeremony) FinishRegistration(ceremonyState, response []byte) ([]byte, error) {
	return append([]byte("material:"), response...), nil
}
