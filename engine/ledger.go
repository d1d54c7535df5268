package engine

import (
	"errors"
	"fmt"

	"github.com/holiman/uint256"
)

// Arithmetic failures spend the signer's nonce but revert only the
// offending intent's balance effects; every other failure aborts the batch.
var (
	ErrArithmetic          = errors.New("engine: arithmetic failure")
	ErrBalanceOverflow     = fmt.Errorf("%w: balance overflow", ErrArithmetic)
	ErrInsufficientBalance = fmt.Errorf("%w: insufficient balance", ErrArithmetic)
)

// Ledger holds token balances under checked arithmetic.
type Ledger interface {
	Add(account, token string, amount *uint256.Int) error
	Sub(account, token string, amount *uint256.Int) error
	Balance(account, token string) *uint256.Int
}

var _ Ledger = (*MemLedger)(nil)

// balanceChange records a single mutation for rollback.
type balanceChange struct {
	account string
	token   string
	prev    uint256.Int
	existed bool
}

// MemLedger is an in-memory Ledger with snapshot journaling: every mutation
// appends its undo record, and reverting to a snapshot unwinds the journal
// back to that point.
type MemLedger struct {
	balances map[string]map[string]*uint256.Int
	journal  []balanceChange
}

// NewMemLedger returns an empty ledger.
func NewMemLedger() *MemLedger {
	return &MemLedger{balances: make(map[string]map[string]*uint256.Int)}
}

// Balance returns the account's balance for token, zero if absent. The
// returned value is a copy.
func (l *MemLedger) Balance(account, token string) *uint256.Int {
	if b, ok := l.balances[account][token]; ok {
		return new(uint256.Int).Set(b)
	}
	return new(uint256.Int)
}

func (l *MemLedger) record(account, token string) {
	change := balanceChange{account: account, token: token}
	if b, ok := l.balances[account][token]; ok {
		change.prev.Set(b)
		change.existed = true
	}
	l.journal = append(l.journal, change)
}

func (l *MemLedger) set(account, token string, v *uint256.Int) {
	tokens, ok := l.balances[account]
	if !ok {
		tokens = make(map[string]*uint256.Int)
		l.balances[account] = tokens
	}
	tokens[token] = v
}

// Add credits amount to the account, failing on 256-bit overflow.
func (l *MemLedger) Add(account, token string, amount *uint256.Int) error {
	cur := l.Balance(account, token)
	sum, overflow := new(uint256.Int).AddOverflow(cur, amount)
	if overflow {
		return fmt.Errorf("%w: %s/%s", ErrBalanceOverflow, account, token)
	}
	l.record(account, token)
	l.set(account, token, sum)
	return nil
}

// Sub debits amount from the account, failing when the balance is short.
func (l *MemLedger) Sub(account, token string, amount *uint256.Int) error {
	cur := l.Balance(account, token)
	if cur.Lt(amount) {
		return fmt.Errorf("%w: %s/%s has %s, need %s",
			ErrInsufficientBalance, account, token, cur.Dec(), amount.Dec())
	}
	l.record(account, token)
	l.set(account, token, cur.Sub(cur, amount))
	return nil
}

// SetBalance installs a balance directly, bypassing checked arithmetic.
// Used to seed initial state; still journaled so snapshots hold.
func (l *MemLedger) SetBalance(account, token string, amount *uint256.Int) {
	l.record(account, token)
	l.set(account, token, new(uint256.Int).Set(amount))
}

// Snapshot returns a revision id for RevertToSnapshot.
func (l *MemLedger) Snapshot() int { return len(l.journal) }

// RevertToSnapshot unwinds every mutation made after the snapshot was
// taken. Reverting to a stale id (older than a prior revert) is a
// programming error and panics.
func (l *MemLedger) RevertToSnapshot(id int) {
	if id < 0 || id > len(l.journal) {
		panic(fmt.Sprintf("engine: revert to invalid snapshot %d (journal %d)", id, len(l.journal)))
	}
	for i := len(l.journal) - 1; i >= id; i-- {
		change := l.journal[i]
		if change.existed {
			l.set(change.account, change.token, new(uint256.Int).Set(&change.prev))
		} else {
			delete(l.balances[change.account], change.token)
			if len(l.balances[change.account]) == 0 {
				delete(l.balances, change.account)
			}
		}
	}
	l.journal = l.journal[:id]
}
