// Command credsessiond wires an in-memory entry store, access evaluator,
// and sealing key into a credential update session core and drives one
// end-to-end password + TOTP enrollment flow. It exists to give the
// ambient stack (structured logging, configuration) a runnable home —
// it is not a production transport; see the server's own non-goals.
package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/google/uuid"

	"github.com/byteness/credsession/account"
	"github.com/byteness/credsession/quality"
	"github.com/byteness/credsession/sealer"
	"github.com/byteness/credsession/session"
	"github.com/byteness/credsession/totp"
	"github.com/byteness/credsession/update"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "credsessiond:", err)
		os.Exit(1)
	}
}

func run() error {
	aead, err := newGCMSealer()
	if err != nil {
		return err
	}

	entries := newMemEntryStore()
	subject := uuid.New()
	entries.put(account.Snapshot{
		Subject:       subject,
		DisplayName:   "Ada Lovelace",
		SPN:           "ada@example.test",
		RelatedInputs: []string{"Ada Lovelace", "ada"},
	})

	core := &update.Core{
		Entries:   entries,
		Access:    grantAllAccess{},
		Intents:   newMemIntentStore(),
		Sessions:  session.NewStore(),
		Sealer:    sealer.New(aead),
		Estimator: heuristicEstimator{},
		Hasher:    bcryptHasher{},
		Ceremony:  noopCeremony{},
		Config:    update.Config{Quality: quality.Config{MinLength: 12, MinScore: 3}},
		Logger:    update.NewJSONLogger(os.Stdout),
	}

	ctx := context.Background()
	now := time.Now()

	grant, err := core.InitIntent(ctx, demoIdentity{readWrite: true}, subject, now, 10*time.Minute)
	if err != nil {
		return fmt.Errorf("init intent: %w", err)
	}
	fmt.Fprintf(os.Stderr, "issued intent %s, expires %s\n", grant.ID, grant.Expiry.Format(time.RFC3339))

	token, status, err := core.ExchangeIntent(ctx, grant.ID, "credsessiond-demo", now)
	if err != nil {
		return fmt.Errorf("exchange intent: %w", err)
	}
	fmt.Fprintf(os.Stderr, "session opened, primary_can_edit=%v passkeys_can_edit=%v\n", status.PrimaryCanEdit, status.PasskeysCanEdit)

	if _, err := core.SetPrimaryPassword(token, "a very long correct horse battery staple", now); err != nil {
		return fmt.Errorf("set primary password: %w", err)
	}

	status, err = core.InitTOTP(token, totp.SHA256, now)
	if err != nil {
		return fmt.Errorf("init totp: %w", err)
	}
	code := totp.CodeAt(secretFromStatus(status), now)
	if status, err = core.CheckTOTP(token, code, "authenticator", now); err != nil {
		return fmt.Errorf("check totp: %w", err)
	}
	if status.MFARegState.Kind != session.MFANone {
		return fmt.Errorf("unexpected MFA sub-state after check-totp: %v", status.MFARegState.Kind)
	}

	if err := core.Commit(ctx, token, now); err != nil {
		return fmt.Errorf("commit: %w", err)
	}

	snap, err := entries.Fetch(ctx, subject)
	if err != nil {
		return err
	}
	fmt.Fprintf(os.Stderr, "committed: primary present=%v, totp labels=%d\n", snap.Primary != nil, len(snap.Primary.TOTP))
	return nil
}

// secretFromStatus is a demo-only convenience: a real subject reads the
// base32 secret off status.MFARegState.TOTPSecret and feeds it to an
// authenticator app rather than regenerating the code in-process.
func secretFromStatus(status *session.Status) totp.Secret {
	secret, _ := totp.FromBase32(status.MFARegState.TOTPSecret, totp.SHA256)
	return secret
}
