package engine

import (
	"github.com/tos-network/intents/crypto"
	"github.com/tos-network/intents/log"
	"github.com/tos-network/intents/nonce"
)

// EventKind names an engine event.
type EventKind string

const (
	EventIntentsExecuted  EventKind = "intents_executed"
	EventSaltRotated      EventKind = "salt_rotated"
	EventSaltsInvalidated EventKind = "salts_invalidated"
	EventTransfer         EventKind = "transfer"
	EventTokenDiff        EventKind = "token_diff"
	EventWithdraw         EventKind = "withdraw"
)

// Event is a tagged engine notification.
type Event struct {
	Kind EventKind
	Data any
}

// TransferEvent reports an executed transfer intent.
type TransferEvent struct {
	Sender   string
	Receiver string
	Tokens   map[string]*Amount
}

// TokenDiffEvent reports an executed token diff, including the fees
// collected per token.
type TokenDiffEvent struct {
	Signer string
	Diff   map[string]*Delta
	Fees   map[string]*Amount
}

// WithdrawEvent reports tokens burned from the signer's balance.
type WithdrawEvent struct {
	Signer string
	Token  string
	Amount *Amount
}

// IntentsExecutedEvent summarizes one successfully executed payload.
type IntentsExecutedEvent struct {
	Signer string
	Nonce  nonce.Nonce
	Hash   crypto.Hash
}

// SaltRotatedEvent reports a salt rotation: the new current salt and any
// salts the rotation pushed out of the window.
type SaltRotatedEvent struct {
	Current     nonce.Salt
	Invalidated []nonce.Salt
}

// SaltsInvalidatedEvent reports an explicit invalidation.
type SaltsInvalidatedEvent struct {
	Salts   []nonce.Salt
	Current nonce.Salt
}

// Inspector observes engine state transitions. Calls must be free of side
// effects on engine state; the inspector decides whether to surface or
// buffer. Events passed to EmitEventEventually are held until Finalize,
// which the engine caller must run on every exit path.
type Inspector interface {
	OnDeadline(nonce.Deadline)
	OnIntentExecuted(signer string, intentHash crypto.Hash)
	OnEvent(Event)
	EmitEventEventually(Event)
	Finalize()
}

// CollectingInspector buffers everything it observes. Used for dry-run
// simulation and for tests.
type CollectingInspector struct {
	Deadlines []nonce.Deadline
	Executed  []crypto.Hash
	Events    []Event

	postponed []Event
}

func (c *CollectingInspector) OnDeadline(d nonce.Deadline) {
	c.Deadlines = append(c.Deadlines, d)
}

func (c *CollectingInspector) OnIntentExecuted(signer string, intentHash crypto.Hash) {
	c.Executed = append(c.Executed, intentHash)
}

func (c *CollectingInspector) OnEvent(ev Event) {
	c.Events = append(c.Events, ev)
}

func (c *CollectingInspector) EmitEventEventually(ev Event) {
	c.postponed = append(c.postponed, ev)
}

// Finalize flushes postponed events into Events.
func (c *CollectingInspector) Finalize() {
	c.Events = append(c.Events, c.postponed...)
	c.postponed = nil
}

// LogInspector writes every observation to a logger, buffering eventual
// events until Finalize.
type LogInspector struct {
	Logger log.Logger

	postponed []Event
}

func (l *LogInspector) logger() log.Logger {
	if l.Logger != nil {
		return l.Logger
	}
	return log.Root()
}

func (l *LogInspector) OnDeadline(d nonce.Deadline) {
	l.logger().Debug("payload deadline", "deadline", d.Time)
}

func (l *LogInspector) OnIntentExecuted(signer string, intentHash crypto.Hash) {
	l.logger().Info("intent executed", "signer", signer, "hash", intentHash)
}

func (l *LogInspector) OnEvent(ev Event) {
	l.logger().Info("engine event", "kind", ev.Kind, "data", ev.Data)
}

func (l *LogInspector) EmitEventEventually(ev Event) {
	l.postponed = append(l.postponed, ev)
}

func (l *LogInspector) Finalize() {
	for _, ev := range l.postponed {
		l.OnEvent(ev)
	}
	l.postponed = nil
}
