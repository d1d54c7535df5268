package nonce

import (
	"crypto/sha256"
	"encoding/binary"
)

// Registry tracks the salts accepted for V1 nonce commitment: exactly the
// current salt and at most one previous salt. The two-slot window bounds the
// set of nonces that must stay spendable across a rotation boundary without
// keeping unbounded salt history.
type Registry struct {
	seed    []byte
	index   uint32
	current Salt

	previous    Salt
	hasPrevious bool
}

// NewRegistry creates a registry whose salts are derived from seed, with
// salt #0 installed as current.
func NewRegistry(seed []byte) *Registry {
	r := &Registry{seed: append([]byte(nil), seed...)}
	r.current = deriveSalt(r.seed, 0)
	r.index = 1
	return r
}

// NewRegistryWithSalts creates a registry with explicitly assigned salts,
// bypassing seed derivation. Rotation from such a registry derives from a
// nil seed.
func NewRegistryWithSalts(current Salt, previous *Salt) *Registry {
	r := &Registry{current: current, index: 1}
	if previous != nil {
		r.previous = *previous
		r.hasPrevious = true
	}
	return r
}

// deriveSalt computes the salt at the given rotation index: the first four
// bytes of sha256(seed || index_be).
func deriveSalt(seed []byte, index uint32) Salt {
	var idx [4]byte
	binary.BigEndian.PutUint32(idx[:], index)
	sum := sha256.Sum256(append(append([]byte(nil), seed...), idx[:]...))
	var s Salt
	copy(s[:], sum[:SaltLength])
	return s
}

// Current returns the salt new nonces should be minted with.
func (r *Registry) Current() Salt { return r.current }

// Previous returns the previous salt, if one is still in the window.
func (r *Registry) Previous() (Salt, bool) { return r.previous, r.hasPrevious }

// IsValid reports whether salt is inside the accepted window.
func (r *Registry) IsValid(salt Salt) bool {
	if salt == r.current {
		return true
	}
	return r.hasPrevious && salt == r.previous
}

// Rotate moves current to previous and installs the next derived salt as
// current. It returns the new current salt and the salts pushed out of the
// window by the rotation.
func (r *Registry) Rotate() (Salt, []Salt) {
	var invalidated []Salt
	if r.hasPrevious {
		invalidated = append(invalidated, r.previous)
	}
	r.previous = r.current
	r.hasPrevious = true
	r.current = deriveSalt(r.seed, r.index)
	r.index++
	return r.current, invalidated
}

// Invalidate removes each listed salt from the window if present. Absent
// salts are skipped, so invalidation is idempotent. The registry always
// keeps a usable current salt: invalidating the current one immediately
// installs the next derived salt in its place. Returns the current salt.
func (r *Registry) Invalidate(salts ...Salt) Salt {
	for _, s := range salts {
		if r.hasPrevious && s == r.previous {
			r.previous = Salt{}
			r.hasPrevious = false
		}
		if s == r.current {
			r.current = deriveSalt(r.seed, r.index)
			r.index++
		}
	}
	return r.current
}
