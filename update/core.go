// Package update implements the Update Transaction API: the outward
// operations a credential update session core exposes — initialize
// (directly or via intent exchange), status, per-credential edits,
// commit, and cancel. It is the orchestrator that wires the Token
// Sealer, Session Store, Session Record, Intent Token Ledger, password
// quality, and the account's backing entry store and access evaluator
// together behind a single Go API.
//
// Concurrency contract: Init, InitIntent, ExchangeIntent, Commit, and
// Cancel are expected to run inside the embedding server's single-writer
// transaction against the account store — this core does not itself
// provide a global lock, since that boundary belongs to EntryStore. The
// Session Store's per-record handle is this core's only owned
// concurrency primitive.
package update

import (
	"context"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/google/go-cmp/cmp/cmpopts"
	"github.com/google/uuid"

	"github.com/byteness/credsession/account"
	"github.com/byteness/credsession/credential"
	"github.com/byteness/credsession/cserrors"
	"github.com/byteness/credsession/intent"
	"github.com/byteness/credsession/quality"
	"github.com/byteness/credsession/sealer"
	"github.com/byteness/credsession/session"
	"github.com/byteness/credsession/totp"
)

// Core is the credential update session core. Every field but Config and
// Logger is a required collaborator; the zero value is not usable.
type Core struct {
	Entries   account.EntryStore
	Access    account.AccessEvaluator
	Intents   intent.Store
	Sessions  *session.Store
	Sealer    *sealer.TokenSealer
	Estimator quality.Estimator
	Hasher    credential.PasswordHasher
	Ceremony  credential.PasskeyCeremony

	Config Config
	Logger Logger
}

func (c *Core) log(entry DecisionLogEntry) {
	if c.Logger == nil {
		return
	}
	c.Logger.LogDecision(entry)
}

func outcome(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

func detail(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}

// Init performs direct session initialization: the same permission
// derivation intent issuance uses, followed by opening a session with no
// associated intent grant.
func (c *Core) Init(ctx context.Context, ident account.Identity, target uuid.UUID, issuer string, now time.Time) ([]byte, *session.Status, error) {
	snap, err := c.Entries.Fetch(ctx, target)
	if err != nil {
		return nil, nil, err
	}
	perms, err := account.DerivePermissions(ctx, c.Access, ident, snap)
	if err != nil {
		return nil, nil, err
	}
	if !perms.Any() {
		return nil, nil, cserrors.ErrNotAuthorised
	}

	expiry := now.Add(SessionTTL)
	id := session.NewID(expiry)
	record := session.Open(*snap, perms, issuer, "")
	c.Sessions.Insert(id, record, expiry)

	token, err := c.Sealer.Seal(id, expiry)
	if err != nil {
		return nil, nil, err
	}
	c.log(DecisionLogEntry{Timestamp: now.Format(time.RFC3339), Event: "session_opened", Target: target.String(), SessionID: id.String(), Issuer: issuer, Outcome: "ok"})
	return token, record.Status(), nil
}

// InitIntent issues a delegated-edit grant on target: verifies the
// identity's read-write scope, applies an optional rate limit, derives
// permissions, and delegates the clamp/identifier/append steps to
// intent.Issue.
func (c *Core) InitIntent(ctx context.Context, ident account.Identity, target uuid.UUID, now time.Time, requestedTTL time.Duration) (intent.Grant, error) {
	if !ident.ReadWrite() {
		return intent.Grant{}, cserrors.ErrAccessDenied
	}

	if limiter := c.Config.IntentIssueLimiter; limiter != nil {
		reservation := limiter.Reserve()
		if !reservation.OK() {
			return intent.Grant{}, cserrors.ErrInvalidState
		}
		if delay := reservation.Delay(); delay > 0 {
			reservation.Cancel()
			return intent.Grant{}, cserrors.Wait(now.Add(delay))
		}
	}

	snap, err := c.Entries.Fetch(ctx, target)
	if err != nil {
		return intent.Grant{}, err
	}
	perms, err := account.DerivePermissions(ctx, c.Access, ident, snap)
	if err != nil {
		return intent.Grant{}, err
	}
	if !perms.Any() {
		return intent.Grant{}, cserrors.ErrNotAuthorised
	}

	grant, err := intent.Issue(ctx, c.Intents, target, perms, now, requestedTTL)
	c.log(DecisionLogEntry{Timestamp: now.Format(time.RFC3339), Event: "intent_issued", Target: target.String(), IntentID: grant.ID, Outcome: outcome(err), Detail: detail(err)})
	return grant, err
}

// ExchangeIntent resolves an intent identifier to a freshly opened
// session, delegating the ledger-side state transition to intent.Exchange
// and then building the session record the same way Init does.
func (c *Core) ExchangeIntent(ctx context.Context, intentID, issuer string, now time.Time) ([]byte, *session.Status, error) {
	result, err := intent.Exchange(ctx, c.Intents, intentID, now, session.NewID)
	if err != nil {
		c.log(DecisionLogEntry{Timestamp: now.Format(time.RFC3339), Event: "intent_exchanged", IntentID: intentID, Outcome: "error", Detail: err.Error()})
		return nil, nil, err
	}

	snap, err := c.Entries.Fetch(ctx, result.Target)
	if err != nil {
		return nil, nil, err
	}
	record := session.Open(*snap, result.Perms, issuer, intentID)
	c.Sessions.Insert(result.SessionID, record, result.SessionExpiry)

	token, err := c.Sealer.Seal(result.SessionID, result.SessionExpiry)
	if err != nil {
		return nil, nil, err
	}
	c.log(DecisionLogEntry{Timestamp: now.Format(time.RFC3339), Event: "intent_exchanged", Target: result.Target.String(), SessionID: result.SessionID.String(), IntentID: intentID, Outcome: "ok"})
	return token, record.Status(), nil
}

// openHandle opens a token, checks its expiry, and acquires the
// corresponding session's handle non-blockingly. Every status and edit
// call goes through this; unlock must be called exactly once.
func (c *Core) openHandle(token []byte, now time.Time) (id uuid.UUID, h *session.Handle, unlock func(), err error) {
	sessionID, expiry, err := c.Sealer.Open(token)
	if err != nil {
		return uuid.Nil, nil, nil, err
	}
	if !now.Before(expiry) {
		return uuid.Nil, nil, nil, cserrors.ErrSessionExpired
	}
	h, err = c.Sessions.Get(sessionID)
	if err != nil {
		return uuid.Nil, nil, nil, err
	}
	unlock, ok := h.TryLock()
	if !ok {
		return uuid.Nil, nil, nil, cserrors.ErrInvalidState
	}
	return sessionID, h, unlock, nil
}

// Status returns the session's current read projection.
func (c *Core) Status(token []byte, now time.Time) (*session.Status, error) {
	_, h, unlock, err := c.openHandle(token, now)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return h.Record.Status(), nil
}

// SetPrimaryPassword evaluates password quality against the session's
// account-derived related inputs, hashes the candidate via the injected
// PasswordHasher, and delegates the replacement to the record.
func (c *Core) SetPrimaryPassword(token []byte, password string, now time.Time) (*session.Status, error) {
	_, h, unlock, err := c.openHandle(token, now)
	if err != nil {
		return nil, err
	}
	defer unlock()

	r := h.Record
	if err := quality.Evaluate(c.Config.Quality, c.Estimator, password, r.Snapshot.RelatedInputs); err != nil {
		return nil, err
	}
	hash, err := c.Hasher.Hash(password)
	if err != nil {
		return nil, err
	}
	return r.SetPrimaryPassword(hash)
}

// DeletePrimary sets the editable primary credential to None.
func (c *Core) DeletePrimary(token []byte, now time.Time) (*session.Status, error) {
	_, h, unlock, err := c.openHandle(token, now)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return h.Record.DeletePrimary()
}

// InitTOTP begins TOTP enrollment with the given algorithm.
func (c *Core) InitTOTP(token []byte, alg totp.Algorithm, now time.Time) (*session.Status, error) {
	_, h, unlock, err := c.openHandle(token, now)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return h.Record.InitTOTP(alg)
}

// CheckTOTP verifies a TOTP code against the secret under registration.
func (c *Core) CheckTOTP(token []byte, code, label string, now time.Time) (*session.Status, error) {
	_, h, unlock, err := c.openHandle(token, now)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return h.Record.CheckTOTP(code, label, now)
}

// AcceptSHA1 attaches the SHA-1 variant surfaced by a prior CheckTOTP.
func (c *Core) AcceptSHA1(token []byte, now time.Time) (*session.Status, error) {
	_, h, unlock, err := c.openHandle(token, now)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return h.Record.AcceptSHA1()
}

// RemoveTOTP removes the named TOTP factor.
func (c *Core) RemoveTOTP(token []byte, label string, now time.Time) (*session.Status, error) {
	_, h, unlock, err := c.openHandle(token, now)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return h.Record.RemoveTOTP(label)
}

// InitBackupCodes generates a fresh set of backup codes.
func (c *Core) InitBackupCodes(token []byte, now time.Time) (*session.Status, []string, error) {
	_, h, unlock, err := c.openHandle(token, now)
	if err != nil {
		return nil, nil, err
	}
	defer unlock()
	return h.Record.InitBackupCodes()
}

// RemoveBackupCodes detaches backup codes.
func (c *Core) RemoveBackupCodes(token []byte, now time.Time) (*session.Status, error) {
	_, h, unlock, err := c.openHandle(token, now)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return h.Record.RemoveBackupCodes()
}

// InitPasskey begins a WebAuthn registration ceremony.
func (c *Core) InitPasskey(token []byte, now time.Time) (*session.Status, error) {
	_, h, unlock, err := c.openHandle(token, now)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return h.Record.InitPasskey(c.Ceremony)
}

// FinishPasskey completes a registration ceremony begun by InitPasskey.
func (c *Core) FinishPasskey(token []byte, label string, response []byte, now time.Time) (*session.Status, error) {
	_, h, unlock, err := c.openHandle(token, now)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return h.Record.FinishPasskey(label, response, c.Ceremony)
}

// RemovePasskey removes a registered passkey by credential id.
func (c *Core) RemovePasskey(token []byte, id uuid.UUID, now time.Time) (*session.Status, error) {
	_, h, unlock, err := c.openHandle(token, now)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return h.Record.RemovePasskey(id)
}

// CancelMFARegistration resets the session's MFA sub-state to None.
func (c *Core) CancelMFARegistration(token []byte, now time.Time) (*session.Status, error) {
	_, h, unlock, err := c.openHandle(token, now)
	if err != nil {
		return nil, err
	}
	defer unlock()
	return h.Record.CancelMFARegistration(), nil
}

// commitPreamble opens the token, removes the session from the store,
// and acquires its handle exclusively — the sequence shared by Commit
// and Cancel.
func (c *Core) commitPreamble(token []byte, now time.Time) (sessionID uuid.UUID, h *session.Handle, unlock func(), err error) {
	sessionID, expiry, err := c.Sealer.Open(token)
	if err != nil {
		return uuid.Nil, nil, nil, err
	}
	if !now.Before(expiry) {
		return uuid.Nil, nil, nil, cserrors.ErrSessionExpired
	}
	h, err = c.Sessions.Remove(sessionID)
	if err != nil {
		return uuid.Nil, nil, nil, err
	}
	unlock, ok := h.TryLock()
	if !ok {
		return uuid.Nil, nil, nil, cserrors.ErrInvalidState
	}
	return sessionID, h, unlock, nil
}

// Commit validates the record, reconciles the intent ledger if the
// session was opened via intent exchange, and applies the modification
// list atomically to the account. Per the commit-is-not-a-no-op law, an
// attribute is included in the modification list only if its editable
// value actually differs from the snapshot it was opened from.
func (c *Core) Commit(ctx context.Context, token []byte, now time.Time) error {
	sessionID, h, unlock, err := c.commitPreamble(token, now)
	if err != nil {
		return err
	}
	defer unlock()

	r := h.Record
	if !r.CanCommit() {
		return cserrors.ErrInvalidState
	}

	if r.IntentID != "" {
		if err := c.consumeIntent(ctx, r.IntentID, sessionID); err != nil {
			return err
		}
	}

	var mods []account.Modification
	if r.Perms.PrimaryCanEdit && !cmp.Equal(r.Primary, r.Snapshot.Primary, cmpopts.EquateEmpty()) {
		mods = append(mods, account.Modification{Attribute: account.AttrPrimaryCredential, Purge: true})
		if r.Primary != nil {
			mods = append(mods, account.Modification{Attribute: account.AttrPrimaryCredential, Present: r.Primary})
		}
	}
	if r.Perms.PasskeysCanEdit && !cmp.Equal(r.Passkeys, r.Snapshot.Passkeys, cmpopts.EquateEmpty()) {
		mods = append(mods, account.Modification{Attribute: account.AttrPasskeys, Purge: true})
		for id, pk := range r.Passkeys {
			mods = append(mods, account.Modification{Attribute: account.AttrPasskeys, Present: account.PasskeyEntry{ID: id, Passkey: pk}})
		}
	}

	if len(mods) == 0 {
		c.log(DecisionLogEntry{Timestamp: now.Format(time.RFC3339), Event: "commit", SessionID: sessionID.String(), Outcome: "ok", Detail: "no-op"})
		return nil
	}

	err = c.Entries.Apply(ctx, r.Snapshot.Subject, mods)
	c.log(DecisionLogEntry{Timestamp: now.Format(time.RFC3339), Event: "commit", Target: r.Snapshot.Subject.String(), SessionID: sessionID.String(), Outcome: outcome(err), Detail: detail(err)})
	return err
}

// consumeIntent reloads the grant backing an intent-originated session
// and transitions it to Consumed, refusing commit if it is not
// InProgress with a matching session id.
func (c *Core) consumeIntent(ctx context.Context, intentID string, sessionID uuid.UUID) error {
	matches, err := c.Intents.ListByIdentifier(ctx, intentID)
	if err != nil {
		return err
	}
	if len(matches) != 1 {
		return cserrors.ErrInvalidState
	}
	tg := matches[0]
	if tg.Grant.State != intent.InProgress || tg.Grant.SessionID != sessionID {
		return cserrors.ErrInvalidState
	}
	consumed := tg.Grant
	consumed.State = intent.Consumed
	return c.Intents.ReplaceState(ctx, tg.Target, consumed)
}

// Cancel releases the session without applying any credential change.
// If the session was opened via intent exchange, its grant is restored
// to Valid with its original expiry and permissions.
func (c *Core) Cancel(ctx context.Context, token []byte, now time.Time) error {
	sessionID, h, unlock, err := c.commitPreamble(token, now)
	if err != nil {
		return err
	}
	defer unlock()

	r := h.Record
	if r.IntentID != "" {
		matches, err := c.Intents.ListByIdentifier(ctx, r.IntentID)
		if err != nil {
			return err
		}
		if len(matches) != 1 {
			return cserrors.ErrInvalidState
		}
		tg := matches[0]
		if tg.Grant.State != intent.InProgress || tg.Grant.SessionID != sessionID {
			return cserrors.ErrInvalidState
		}
		restored := tg.Grant
		restored.State = intent.Valid
		restored.SessionID = uuid.Nil
		restored.SessionExpiry = time.Time{}
		if err := c.Intents.ReplaceState(ctx, tg.Target, restored); err != nil {
			return err
		}
	}

	c.log(DecisionLogEntry{Timestamp: now.Format(time.RFC3339), Event: "cancel", SessionID: sessionID.String(), Outcome: "ok"})
	return nil
}

// Prune removes from the store every session whose identifier encodes an
// expiry before now. Init and ExchangeIntent do not call it; expired
// sessions stay in the store until Prune is invoked.
func (c *Core) Prune(now time.Time) int {
	return c.Sessions.ExpireBefore(now)
}
