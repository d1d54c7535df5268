// Package engine executes signed intent batches against a balance ledger:
// signature verification, payload extraction, nonce and deadline
// validation, nonce commitment and intent application, in that order, with
// at-most-once execution per (signer, nonce).
package engine

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/holiman/uint256"
	"github.com/tos-network/intents/crypto"
	"github.com/tos-network/intents/log"
	"github.com/tos-network/intents/nonce"
	"github.com/tos-network/intents/payload"
)

var (
	ErrSignatureVerification  = errors.New("engine: signature verification failed")
	ErrWrongVerifyingContract = errors.New("engine: wrong verifying contract")
	ErrDeadlineExpired        = errors.New("engine: deadline expired")
	ErrPublicKeyNotRegistered = errors.New("engine: public key not registered for signer")
)

// Config wires an Engine. Salts and Ledger are scoped to one engine
// instance; there is no ambient global state.
type Config struct {
	VerifyingContract string
	Fees              FeesConfig
	Ledger            *MemLedger
	Salts             *nonce.Registry
	Inspector         Inspector
	Now               func() time.Time
	Logger            log.Logger

	// HasPublicKey decides whether key is authorized to sign for signer.
	// When nil the engine consults its own registry, populated through
	// AddPublicKey.
	HasPublicKey func(signer string, key crypto.PublicKey) bool
}

// Engine applies signed intent batches. Calls are synchronous and must be
// serialized by the caller; the engine holds no locks of its own.
type Engine struct {
	verifyingContract string
	fees              FeesConfig
	ledger            *MemLedger
	salts             *nonce.Registry
	inspector         Inspector
	nonces            map[string]*nonce.Nonces
	keys              map[string]map[string]struct{}
	hasPublicKey      func(signer string, key crypto.PublicKey) bool
	now               func() time.Time
	log               log.Logger
}

// New builds an engine from cfg, filling in defaults for absent
// collaborators.
func New(cfg Config) *Engine {
	e := &Engine{
		verifyingContract: cfg.VerifyingContract,
		fees:              cfg.Fees,
		ledger:            cfg.Ledger,
		salts:             cfg.Salts,
		inspector:         cfg.Inspector,
		nonces:            make(map[string]*nonce.Nonces),
		keys:              make(map[string]map[string]struct{}),
		hasPublicKey:      cfg.HasPublicKey,
		now:               cfg.Now,
		log:               cfg.Logger,
	}
	if e.hasPublicKey == nil {
		e.hasPublicKey = e.registeredKey
	}
	if e.ledger == nil {
		e.ledger = NewMemLedger()
	}
	if e.salts == nil {
		e.salts = nonce.NewRegistry(nil)
	}
	if e.inspector == nil {
		e.inspector = &LogInspector{}
	}
	if e.now == nil {
		e.now = time.Now
	}
	if e.log == nil {
		e.log = log.New("module", "engine")
	}
	return e
}

// Ledger exposes the engine's ledger, mainly for seeding and inspection.
func (e *Engine) Ledger() *MemLedger { return e.ledger }

// Fees returns the current fee schedule.
func (e *Engine) Fees() FeesConfig { return e.fees }

// SetFees replaces the fee schedule. Administrative surface, not reachable
// from signed payloads.
func (e *Engine) SetFees(fees FeesConfig) { e.fees = fees }

// AddPublicKey binds key to signer in the engine's own registry.
// Administrative surface, not reachable from signed payloads; ignored when
// Config.HasPublicKey supplied an external authority.
func (e *Engine) AddPublicKey(signer string, key crypto.PublicKey) {
	set, ok := e.keys[signer]
	if !ok {
		set = make(map[string]struct{})
		e.keys[signer] = set
	}
	set[key.String()] = struct{}{}
}

// RemovePublicKey drops the binding of key to signer.
func (e *Engine) RemovePublicKey(signer string, key crypto.PublicKey) {
	delete(e.keys[signer], key.String())
	if len(e.keys[signer]) == 0 {
		delete(e.keys, signer)
	}
}

// HasPublicKey reports whether key may sign for signer, through whichever
// authority the engine was configured with.
func (e *Engine) HasPublicKey(signer string, key crypto.PublicKey) bool {
	return e.hasPublicKey(signer, key)
}

func (e *Engine) registeredKey(signer string, key crypto.PublicKey) bool {
	_, ok := e.keys[signer][key.String()]
	return ok
}

func (e *Engine) trackerFor(account string) *nonce.Nonces {
	t, ok := e.nonces[account]
	if !ok {
		t = nonce.NewNonces()
		e.nonces[account] = t
	}
	return t
}

type nonceCommit struct {
	signer string
	n      nonce.Nonce
}

// ExecuteSignedIntents runs a batch in submission order. Authentication,
// parsing, temporal, replay and salt failures abort the whole batch with no
// surviving mutation. An arithmetic failure inside an intent reverts that
// intent's balance effects only: the signer's nonce stays spent, because
// authorization was consumed even though the operation was not
// economically valid.
func (e *Engine) ExecuteSignedIntents(batch []payload.MultiPayload) error {
	committed, err := e.execute(batch, e.inspector, e.ledger.Snapshot())
	if err != nil && !errors.Is(err, ErrArithmetic) {
		e.revert(committed.snapshot, committed.nonces)
	}
	return err
}

// Simulate runs the batch against a snapshot that is always reverted,
// collecting every observation. The engine's persistent state is unchanged
// regardless of outcome.
func (e *Engine) Simulate(batch []payload.MultiPayload) (*CollectingInspector, error) {
	collector := new(CollectingInspector)
	committed, err := e.execute(batch, collector, e.ledger.Snapshot())
	e.revert(committed.snapshot, committed.nonces)
	collector.Finalize()
	return collector, err
}

type executionRecord struct {
	snapshot int
	nonces   []nonceCommit
}

func (e *Engine) revert(snapshot int, commits []nonceCommit) {
	e.ledger.RevertToSnapshot(snapshot)
	for _, c := range commits {
		e.trackerFor(c.signer).Uncommit(c.n)
	}
}

func (e *Engine) execute(batch []payload.MultiPayload, insp Inspector, snapshot int) (executionRecord, error) {
	rec := executionRecord{snapshot: snapshot}
	now := e.now()
	var summaries []IntentsExecutedEvent

	for i := range batch {
		mp := &batch[i]
		pub, ok := mp.Verify()
		if !ok {
			return rec, fmt.Errorf("%w: payload %d", ErrSignatureVerification, i)
		}
		pl, err := payload.ExtractPayload[Intents](mp, now)
		if err != nil {
			return rec, fmt.Errorf("payload %d: %w", i, err)
		}
		e.log.Debug("payload verified", "standard", mp.Standard(), "signer", pl.SignerID, "key", pub)

		if pl.VerifyingContract != e.verifyingContract {
			return rec, fmt.Errorf("%w: %q, serving %q",
				ErrWrongVerifyingContract, pl.VerifyingContract, e.verifyingContract)
		}
		insp.OnDeadline(pl.Deadline)
		if pl.Deadline.HasExpired(now) {
			return rec, fmt.Errorf("%w: %s", ErrDeadlineExpired, pl.Deadline.Time)
		}
		// The signature only proves possession of pub. Spending a signer's
		// balance additionally requires pub to be bound to that signer.
		if !e.hasPublicKey(pl.SignerID, pub) {
			return rec, fmt.Errorf("%w: %s for %s", ErrPublicKeyNotRegistered, pub, pl.SignerID)
		}
		verifier := &nonce.Verifier{Salts: e.salts, Deadline: pl.Deadline, Now: now}
		if err := verifier.ValidForCommitment(pl.Nonce); err != nil {
			return rec, err
		}
		if err := e.trackerFor(pl.SignerID).Commit(pl.Nonce); err != nil {
			return rec, err
		}
		rec.nonces = append(rec.nonces, nonceCommit{signer: pl.SignerID, n: pl.Nonce})

		for j := range pl.Message.Intents {
			intent := &pl.Message.Intents[j]
			intentSnapshot := e.ledger.Snapshot()
			if err := e.applyIntent(pl.SignerID, intent, insp); err != nil {
				if errors.Is(err, ErrArithmetic) {
					e.ledger.RevertToSnapshot(intentSnapshot)
					// Earlier payloads survive an arithmetic abort, so
					// their summaries must still go out.
					if len(summaries) > 0 {
						insp.EmitEventEventually(Event{Kind: EventIntentsExecuted, Data: summaries})
					}
				}
				return rec, fmt.Errorf("payload %d intent %d: %w", i, j, err)
			}
			insp.OnIntentExecuted(pl.SignerID, intent.Hash())
		}
		summaries = append(summaries, IntentsExecutedEvent{
			Signer: pl.SignerID,
			Nonce:  pl.Nonce,
			Hash:   mp.Hash(),
		})
	}

	if len(summaries) > 0 {
		insp.EmitEventEventually(Event{Kind: EventIntentsExecuted, Data: summaries})
	}
	return rec, nil
}

// sortedKeys gives map iteration a stable order so fee accounting and
// events are deterministic.
func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (e *Engine) applyIntent(signer string, in *Intent, insp Inspector) error {
	switch {
	case in.Transfer != nil:
		return e.applyTransfer(signer, in.Transfer, insp)
	case in.TokenDiff != nil:
		return e.applyTokenDiff(signer, in.TokenDiff, insp)
	case in.Withdraw != nil:
		return e.applyWithdraw(signer, in.Withdraw, insp)
	default:
		return fmt.Errorf("%w: empty", ErrInvalidIntent)
	}
}

func (e *Engine) applyTransfer(signer string, t *TransferIntent, insp Inspector) error {
	if t.ReceiverID == "" || t.ReceiverID == signer {
		return fmt.Errorf("%w: transfer to %q", ErrInvalidIntent, t.ReceiverID)
	}
	if len(t.Tokens) == 0 {
		return fmt.Errorf("%w: transfer with no tokens", ErrInvalidIntent)
	}
	for _, token := range sortedKeys(t.Tokens) {
		amount := t.Tokens[token]
		if amount == nil || amount.IsZero() {
			return fmt.Errorf("%w: zero transfer of %s", ErrInvalidIntent, token)
		}
		if err := e.ledger.Sub(signer, token, &amount.Int); err != nil {
			return err
		}
		if err := e.ledger.Add(t.ReceiverID, token, &amount.Int); err != nil {
			return err
		}
	}
	insp.OnEvent(Event{Kind: EventTransfer, Data: TransferEvent{
		Sender:   signer,
		Receiver: t.ReceiverID,
		Tokens:   t.Tokens,
	}})
	return nil
}

func (e *Engine) applyTokenDiff(signer string, d *TokenDiffIntent, insp Inspector) error {
	if len(d.Diff) == 0 {
		return fmt.Errorf("%w: empty token diff", ErrInvalidIntent)
	}
	fees := make(map[string]*Amount)
	for _, token := range sortedKeys(d.Diff) {
		delta := d.Diff[token]
		if delta == nil || delta.Amount.IsZero() {
			return fmt.Errorf("%w: zero diff for %s", ErrInvalidIntent, token)
		}
		if delta.Neg {
			if err := e.ledger.Sub(signer, token, &delta.Amount); err != nil {
				return err
			}
			continue
		}
		fee := e.fees.Fee.FeeCeil(&delta.Amount)
		net := new(uint256.Int).Sub(&delta.Amount, fee)
		if !net.IsZero() {
			if err := e.ledger.Add(signer, token, net); err != nil {
				return err
			}
		}
		if !fee.IsZero() {
			if err := e.ledger.Add(e.fees.FeeCollector, token, fee); err != nil {
				return err
			}
			feeAmount := new(Amount)
			feeAmount.Set(fee)
			fees[token] = feeAmount
		}
	}
	insp.OnEvent(Event{Kind: EventTokenDiff, Data: TokenDiffEvent{
		Signer: signer,
		Diff:   d.Diff,
		Fees:   fees,
	}})
	return nil
}

func (e *Engine) applyWithdraw(signer string, w *WithdrawIntent, insp Inspector) error {
	if w.Token == "" || w.Amount == nil || w.Amount.IsZero() {
		return fmt.Errorf("%w: withdraw of %q", ErrInvalidIntent, w.Token)
	}
	if err := e.ledger.Sub(signer, w.Token, &w.Amount.Int); err != nil {
		return err
	}
	insp.OnEvent(Event{Kind: EventWithdraw, Data: WithdrawEvent{
		Signer: signer,
		Token:  w.Token,
		Amount: w.Amount,
	}})
	return nil
}

// RotateSalt installs the next derived salt as current, moving the old
// current into the previous slot.
func (e *Engine) RotateSalt() nonce.Salt {
	current, invalidated := e.salts.Rotate()
	e.log.Info("salt rotated", "current", current, "invalidated", len(invalidated))
	e.inspector.OnEvent(Event{Kind: EventSaltRotated, Data: SaltRotatedEvent{
		Current:     current,
		Invalidated: invalidated,
	}})
	return current
}

// InvalidateSalts removes salts from the accepted window.
func (e *Engine) InvalidateSalts(salts ...nonce.Salt) nonce.Salt {
	current := e.salts.Invalidate(salts...)
	e.log.Info("salts invalidated", "count", len(salts), "current", current)
	e.inspector.OnEvent(Event{Kind: EventSaltsInvalidated, Data: SaltsInvalidatedEvent{
		Salts:   salts,
		Current: current,
	}})
	return current
}

// CleanupNonces reclaims the storage of the given nonces for account,
// skipping any that are still spendable. Returns the number of prefix
// groups dropped.
func (e *Engine) CleanupNonces(account string, nonces []nonce.Nonce) int {
	verifier := &nonce.Verifier{Salts: e.salts, Now: e.now()}
	cleared := e.trackerFor(account).ClearExpired(verifier, nonces)
	if cleared > 0 {
		e.log.Debug("nonce storage reclaimed", "account", account, "groups", cleared)
	}
	return cleared
}

// Salts exposes the registry for inspection.
func (e *Engine) Salts() *nonce.Registry { return e.salts }
