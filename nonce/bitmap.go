package nonce

import "github.com/holiman/uint256"

// Bitmap tracks used nonces over the full 256-bit nonce space. Storage is a
// map from the nonce's 248-bit prefix to a 256-bit bit-group, so membership
// checks and commits are O(1) and a whole prefix group can be reclaimed once
// every nonce under it is known expired.
type Bitmap struct {
	groups map[Prefix]*uint256.Int
}

// NewBitmap returns an empty bitmap.
func NewBitmap() *Bitmap {
	return &Bitmap{groups: make(map[Prefix]*uint256.Int)}
}

func bitMask(bit uint) *uint256.Int {
	return new(uint256.Int).Lsh(uint256.NewInt(1), bit)
}

// Get reports whether the bit for n is set.
func (b *Bitmap) Get(n Nonce) bool {
	group, ok := b.groups[n.Prefix()]
	if !ok {
		return false
	}
	return !new(uint256.Int).And(group, bitMask(n.Bit())).IsZero()
}

// Set marks the bit for n and reports whether it was previously unset.
func (b *Bitmap) Set(n Nonce) bool {
	prefix := n.Prefix()
	group, ok := b.groups[prefix]
	if !ok {
		group = new(uint256.Int)
		b.groups[prefix] = group
	}
	mask := bitMask(n.Bit())
	if !new(uint256.Int).And(group, mask).IsZero() {
		return false
	}
	group.Or(group, mask)
	return true
}

// Clear unsets the bit for n, dropping the group when it becomes empty.
func (b *Bitmap) Clear(n Nonce) {
	prefix := n.Prefix()
	group, ok := b.groups[prefix]
	if !ok {
		return
	}
	group.And(group, new(uint256.Int).Not(bitMask(n.Bit())))
	if group.IsZero() {
		delete(b.groups, prefix)
	}
}

// ClearPrefix drops the entire bit-group under prefix.
func (b *Bitmap) ClearPrefix(prefix Prefix) {
	delete(b.groups, prefix)
}

// Groups returns the number of live prefix groups, a proxy for storage cost.
func (b *Bitmap) Groups() int { return len(b.groups) }
