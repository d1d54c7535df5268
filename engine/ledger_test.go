package engine

import (
	"errors"
	"testing"

	"github.com/holiman/uint256"
)

func TestMemLedgerCheckedArithmetic(t *testing.T) {
	l := NewMemLedger()
	if err := l.Add("alice", "usdc", uint256.NewInt(100)); err != nil {
		t.Fatalf("add failed: %v", err)
	}
	if err := l.Sub("alice", "usdc", uint256.NewInt(40)); err != nil {
		t.Fatalf("sub failed: %v", err)
	}
	if got := l.Balance("alice", "usdc"); got.Uint64() != 60 {
		t.Fatalf("balance = %s, want 60", got.Dec())
	}

	if err := l.Sub("alice", "usdc", uint256.NewInt(61)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("want ErrInsufficientBalance, got %v", err)
	}
	if err := l.Sub("bob", "usdc", uint256.NewInt(1)); !errors.Is(err, ErrInsufficientBalance) {
		t.Fatalf("missing account: want ErrInsufficientBalance, got %v", err)
	}

	max := new(uint256.Int).Not(new(uint256.Int))
	l.SetBalance("carol", "usdc", max)
	if err := l.Add("carol", "usdc", uint256.NewInt(1)); !errors.Is(err, ErrBalanceOverflow) {
		t.Fatalf("want ErrBalanceOverflow, got %v", err)
	}
	if got := l.Balance("carol", "usdc"); !got.Eq(max) {
		t.Fatal("failed add mutated the balance")
	}
}

func TestMemLedgerSnapshotRevertNesting(t *testing.T) {
	l := NewMemLedger()
	l.SetBalance("alice", "usdc", uint256.NewInt(100))

	outer := l.Snapshot()
	if err := l.Add("alice", "usdc", uint256.NewInt(10)); err != nil {
		t.Fatal(err)
	}

	inner := l.Snapshot()
	if err := l.Sub("alice", "usdc", uint256.NewInt(50)); err != nil {
		t.Fatal(err)
	}
	if err := l.Add("bob", "usdc", uint256.NewInt(50)); err != nil {
		t.Fatal(err)
	}

	l.RevertToSnapshot(inner)
	if got := l.Balance("alice", "usdc"); got.Uint64() != 110 {
		t.Fatalf("after inner revert: alice = %s, want 110", got.Dec())
	}
	if got := l.Balance("bob", "usdc"); !got.IsZero() {
		t.Fatalf("after inner revert: bob = %s, want 0", got.Dec())
	}

	l.RevertToSnapshot(outer)
	if got := l.Balance("alice", "usdc"); got.Uint64() != 100 {
		t.Fatalf("after outer revert: alice = %s, want 100", got.Dec())
	}
}

func TestMemLedgerRevertDropsCreatedEntries(t *testing.T) {
	l := NewMemLedger()
	snap := l.Snapshot()
	if err := l.Add("alice", "usdc", uint256.NewInt(5)); err != nil {
		t.Fatal(err)
	}
	l.RevertToSnapshot(snap)
	if _, ok := l.balances["alice"]; ok {
		t.Fatal("reverted account still allocated")
	}
}
