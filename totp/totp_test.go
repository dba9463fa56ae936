package totp

import (
	"testing"
	"time"
)

func TestGenerateAndVerify(t *testing.T) {
	secret, err := Generate(SHA256)
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	now := time.Now()
	code := generate(secret.Key, secret.Algorithm, uint64(now.Unix())/uint64(DefaultPeriod), DefaultDigits)
	if !secret.Verify(code, now) {
		t.Fatalf("expected freshly generated code to verify")
	}
}

func TestVerifyRejectsWrongCode(t *testing.T) {
	secret, _ := Generate(SHA1)
	if secret.Verify("000000", time.Now()) {
		t.Fatalf("did not expect an arbitrary code to verify")
	}
}

func TestVerifyToleratesSkew(t *testing.T) {
	secret, _ := Generate(SHA256)
	now := time.Now()
	past := now.Add(-time.Duration(DefaultPeriod) * time.Second)
	code := generate(secret.Key, secret.Algorithm, uint64(past.Unix())/uint64(DefaultPeriod), DefaultDigits)
	if !secret.Verify(code, now) {
		t.Fatalf("expected a code from the adjacent period to verify within skew")
	}
}

func TestDowngradeComputesSHA1OverSameKey(t *testing.T) {
	secret, _ := Generate(SHA256)
	downgraded := secret.Downgrade()
	if downgraded.Algorithm != SHA1 {
		t.Fatalf("Downgrade did not switch algorithm")
	}
	if string(downgraded.Key) != string(secret.Key) {
		t.Fatalf("Downgrade must reuse the same raw key")
	}

	now := time.Now()
	sha1Code := generate(secret.Key, SHA1, uint64(now.Unix())/uint64(DefaultPeriod), DefaultDigits)
	if !downgraded.Verify(sha1Code, now) {
		t.Fatalf("expected the SHA-1-computed code to verify against the downgraded secret")
	}
	sha256Code := generate(secret.Key, SHA256, uint64(now.Unix())/uint64(DefaultPeriod), DefaultDigits)
	if sha1Code == sha256Code {
		t.Skip("collision between SHA1 and SHA256 codes, cannot assert divergence")
	}
	if downgraded.Verify(sha256Code, now) {
		t.Fatalf("did not expect the SHA-256 code to verify against the downgraded secret")
	}
}

func TestBase32RoundTrip(t *testing.T) {
	secret, _ := Generate(SHA256)
	encoded := secret.Base32()
	back, err := FromBase32(encoded, SHA256)
	if err != nil {
		t.Fatalf("FromBase32: %v", err)
	}
	if string(back.Key) != string(secret.Key) {
		t.Fatalf("round-trip key mismatch")
	}
}
