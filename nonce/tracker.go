package nonce

import "fmt"

// Nonces is a single account's replay tracker over the 256-bit nonce space.
type Nonces struct {
	bitmap *Bitmap
}

// NewNonces returns an empty tracker.
func NewNonces() *Nonces {
	return &Nonces{bitmap: NewBitmap()}
}

// IsUsed reports whether n has been committed.
func (t *Nonces) IsUsed(n Nonce) bool { return t.bitmap.Get(n) }

// Commit marks n used. Committing an already used nonce fails with
// ErrNonceUsed and leaves the tracker unchanged.
func (t *Nonces) Commit(n Nonce) error {
	if !t.bitmap.Set(n) {
		return fmt.Errorf("%w: %s", ErrNonceUsed, n)
	}
	return nil
}

// Uncommit reverts a prior Commit. Used by journaled execution to roll back
// a batch whose later steps failed.
func (t *Nonces) Uncommit(n Nonce) { t.bitmap.Clear(n) }

// ClearExpired reclaims the prefix groups of the given nonces, but only
// those the verifier deems clearable. Returns how many groups were
// dropped. Reclaiming a still-spendable V1 nonce would reopen it for
// replay, so the clearing predicate is authoritative here; legacy nonces
// clear unconditionally and the caller accepts the replay reopening.
func (t *Nonces) ClearExpired(v *Verifier, nonces []Nonce) int {
	cleared := 0
	for _, n := range nonces {
		if !v.ValidForClearing(n) {
			continue
		}
		prefix := n.Prefix()
		if _, ok := t.bitmap.groups[prefix]; ok {
			t.bitmap.ClearPrefix(prefix)
			cleared++
		}
	}
	return cleared
}

// Groups exposes the live prefix-group count for storage accounting.
func (t *Nonces) Groups() int { return t.bitmap.Groups() }
