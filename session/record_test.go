package session

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/byteness/credsession/account"
	"github.com/byteness/credsession/credential"
	"github.com/byteness/credsession/cserrors"
	"github.com/byteness/credsession/totp"
)

func fullPerms() account.Permissions {
	return account.Permissions{PrimaryCanEdit: true, PasskeysCanEdit: true}
}

func TestOpenCopiesOnlyPermittedAttributes(t *testing.T) {
	snap := account.Snapshot{
		Primary:  &credential.Primary{Password: credential.PasswordHash{1}},
		Passkeys: map[uuid.UUID]credential.Passkey{uuid.New(): {Label: "yubikey"}},
	}
	r := Open(snap, account.Permissions{}, "issuer", "")
	if r.Primary != nil {
		t.Fatalf("expected no editable primary without primary_can_edit")
	}
	if len(r.Passkeys) != 0 {
		t.Fatalf("expected no editable passkeys without passkeys_can_edit")
	}
}

func TestEditDeniedWithoutPermission(t *testing.T) {
	r := Open(account.Snapshot{}, account.Permissions{}, "issuer", "")
	if _, err := r.SetPrimaryPassword(credential.PasswordHash{1}); !errors.Is(err, cserrors.ErrAccessDenied) {
		t.Fatalf("expected AccessDenied, got %v", err)
	}
}

func TestDeletePrimaryIdempotent(t *testing.T) {
	snap := account.Snapshot{Primary: &credential.Primary{Password: credential.PasswordHash{1}}}
	r := Open(snap, fullPerms(), "issuer", "")
	first, err := r.DeletePrimary()
	if err != nil {
		t.Fatalf("DeletePrimary: %v", err)
	}
	second, err := r.DeletePrimary()
	if err != nil {
		t.Fatalf("DeletePrimary: %v", err)
	}
	if first.Primary != nil || second.Primary != nil {
		t.Fatalf("expected no primary after either call")
	}
}

func TestTOTPHappyPath(t *testing.T) {
	r := Open(account.Snapshot{Primary: &credential.Primary{Password: credential.PasswordHash{1}}}, fullPerms(), "issuer", "")
	status, err := r.InitTOTP(totp.SHA256)
	if err != nil {
		t.Fatalf("InitTOTP: %v", err)
	}
	if status.MFARegState.Kind != MFATotpCheck {
		t.Fatalf("expected TotpCheck projection, got %v", status.MFARegState.Kind)
	}
	secret := r.MFA.Secret

	now := time.Now()
	wrongCode, err := r.CheckTOTP("000000", "phone", now)
	if err != nil {
		t.Fatalf("CheckTOTP: %v", err)
	}
	if wrongCode.MFARegState.Kind != MFATotpTryAgain && wrongCode.MFARegState.Kind != MFATotpInvalidSha1 {
		t.Fatalf("expected a wrong code to move off TotpInit, got %v", wrongCode.MFARegState.Kind)
	}

	final, err := r.CheckTOTP(totp.CodeAt(secret, now), "phone", now)
	if err != nil {
		t.Fatalf("CheckTOTP (correct): %v", err)
	}
	if final.MFARegState.Kind != MFANone {
		t.Fatalf("expected the correct code to clear the sub-state, got %v", final.MFARegState.Kind)
	}
	if _, ok := r.Primary.TOTP["phone"]; !ok {
		t.Fatalf("expected the TOTP to be attached under its label")
	}
}

func TestCheckTOTPRequiresPrimary(t *testing.T) {
	r := Open(account.Snapshot{}, fullPerms(), "issuer", "")
	r.MFA.Kind = 1 // TotpInit, set directly since no primary exists to Init against
	_, err := r.CheckTOTP("000000", "phone", time.Now())
	if !errors.Is(err, cserrors.ErrInvalidState) {
		t.Fatalf("expected InvalidState without a primary credential, got %v", err)
	}
}

func TestSHA1Acceptance(t *testing.T) {
	snap := account.Snapshot{Primary: &credential.Primary{Password: credential.PasswordHash{1}}}
	r := Open(snap, fullPerms(), "issuer", "")
	if _, err := r.InitTOTP(totp.SHA256); err != nil {
		t.Fatalf("InitTOTP: %v", err)
	}
	secret := r.MFA.Secret
	now := time.Now()
	sha1Code := sha1CodeFor(secret, now)

	status, err := r.CheckTOTP(sha1Code, "authapp", now)
	if err != nil {
		t.Fatalf("CheckTOTP: %v", err)
	}
	if status.MFARegState.Kind != MFATotpInvalidSha1 {
		t.Skip("generated SHA1 and SHA256 codes collided; cannot exercise downgrade path")
	}

	final, err := r.AcceptSHA1()
	if err != nil {
		t.Fatalf("AcceptSHA1: %v", err)
	}
	if final.MFARegState.Kind != MFANone {
		t.Fatalf("expected sub-state to clear after accepting SHA-1, got %v", final.MFARegState.Kind)
	}
	if _, ok := r.Primary.TOTP["authapp"]; !ok {
		t.Fatalf("expected the SHA-1 TOTP to be attached under its label")
	}
}

func sha1CodeFor(secret totp.Secret, now time.Time) string {
	return totp.CodeAt(secret.Downgrade(), now)
}

func TestRemoveTOTPDropsBackupCodesWhenLastFactorRemoved(t *testing.T) {
	secret, _ := totp.Generate(totp.SHA256)
	snap := account.Snapshot{Primary: &credential.Primary{
		Password: credential.PasswordHash{1},
		TOTP:     map[string]credential.TOTPBinding{"phone": {Secret: secret}},
		Backup:   &credential.BackupCodes{Hashes: [][]byte{{1}}},
	}}
	r := Open(snap, fullPerms(), "issuer", "")
	if _, err := r.RemoveTOTP("phone"); err != nil {
		t.Fatalf("RemoveTOTP: %v", err)
	}
	if r.Primary.Backup != nil {
		t.Fatalf("expected backup codes to be removed once the last TOTP factor is gone")
	}
}

func TestInitBackupCodesRequiresMFA(t *testing.T) {
	snap := account.Snapshot{Primary: &credential.Primary{Password: credential.PasswordHash{1}}}
	r := Open(snap, fullPerms(), "issuer", "")
	if _, _, err := r.InitBackupCodes(); !errors.Is(err, cserrors.ErrInvalidState) {
		t.Fatalf("expected InvalidState without MFA, got %v", err)
	}
}

func TestInitBackupCodesOverlayIsOneShot(t *testing.T) {
	secret, _ := totp.Generate(totp.SHA256)
	snap := account.Snapshot{Primary: &credential.Primary{
		Password: credential.PasswordHash{1},
		TOTP:     map[string]credential.TOTPBinding{"phone": {Secret: secret}},
	}}
	r := Open(snap, fullPerms(), "issuer", "")
	status, codes, err := r.InitBackupCodes()
	if err != nil {
		t.Fatalf("InitBackupCodes: %v", err)
	}
	if len(codes) != 8 || len(status.MFARegState.BackupCodes) != 8 {
		t.Fatalf("expected 8 backup codes")
	}
	if len(r.Status().MFARegState.BackupCodes) != 0 {
		t.Fatalf("expected the backup code overlay to not persist past the call that generated it")
	}
}

func TestRemovePasskeyNoErrorIfAbsent(t *testing.T) {
	r := Open(account.Snapshot{}, fullPerms(), "issuer", "")
	if _, err := r.RemovePasskey(uuid.New()); err != nil {
		t.Fatalf("expected no error removing an absent passkey, got %v", err)
	}
}

func TestCancelMFARegistrationResetsWithoutTouchingPrimary(t *testing.T) {
	snap := account.Snapshot{Primary: &credential.Primary{Password: credential.PasswordHash{9}}}
	r := Open(snap, fullPerms(), "issuer", "")
	if _, err := r.InitTOTP(totp.SHA256); err != nil {
		t.Fatalf("InitTOTP: %v", err)
	}
	status := r.CancelMFARegistration()
	if status.MFARegState.Kind != MFANone {
		t.Fatalf("expected sub-state reset, got %v", status.MFARegState.Kind)
	}
	if r.Primary.Password[0] != 9 {
		t.Fatalf("cancel must not touch the primary credential")
	}
}
