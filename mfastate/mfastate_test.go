package mfastate

import "testing"

func TestResetIsNone(t *testing.T) {
	s := Reset()
	if !s.IsNone() {
		t.Fatalf("expected Reset to produce the None state")
	}
	if s.Kind.String() != "None" {
		t.Fatalf("got %q, want None", s.Kind.String())
	}
}

func TestKindStringCoversAllVariants(t *testing.T) {
	for k, want := range map[Kind]string{
		None:            "None",
		TotpInit:        "TotpInit",
		TotpTryAgain:    "TotpTryAgain",
		TotpInvalidSha1: "TotpInvalidSha1",
		PasskeyReg:      "PasskeyReg",
	} {
		if got := k.String(); got != want {
			t.Errorf("Kind(%d).String() = %q, want %q", k, got, want)
		}
	}
}
