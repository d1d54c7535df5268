package nonce

import (
	"fmt"
	"time"
)

// Verifier decides whether a nonce may be committed (spent) or cleared
// (garbage collected). The two predicates are deliberately asymmetric: a
// nonce can become unfit to spend before it becomes safe to reclaim, and a
// still-spendable nonce must never be reclaimed.
type Verifier struct {
	Salts    *Registry
	Deadline Deadline // outer authentication deadline of the payload
	Now      time.Time
}

// ValidForCommitment reports whether n may be spent now. Legacy nonces are
// always eligible; replay is caught separately by the tracker. V1 nonces
// must carry an in-window salt, must not have expired, and their embedded
// deadline must be no earlier than the outer authentication deadline.
func (v *Verifier) ValidForCommitment(n Nonce) error {
	sn, versioned, err := n.DecodeV1()
	if err != nil {
		return err
	}
	if !versioned {
		return nil
	}
	if !v.Salts.IsValid(sn.Salt) {
		return fmt.Errorf("%w: %s", ErrInvalidSalt, sn.Salt)
	}
	if v.Deadline.After(sn.Deadline) {
		return fmt.Errorf("%w: payload %s, nonce %s", ErrDeadlineSkew,
			v.Deadline.Format(time.RFC3339), sn.Deadline.Format(time.RFC3339))
	}
	if sn.Deadline.HasExpired(v.Now) {
		return fmt.Errorf("%w: deadline %s", ErrExpired, sn.Deadline.Format(time.RFC3339))
	}
	return nil
}

// ValidForClearing reports whether n's storage may be reclaimed. A V1 nonce
// is reclaimable once its salt left the valid window or its embedded
// deadline passed. A legacy nonce carries no self-expiry, so it is always
// reclaimable here; this predicate only ever runs on the explicit
// administrative cleanup path, and clearing reopens the nonce for spending.
func (v *Verifier) ValidForClearing(n Nonce) bool {
	sn, versioned, err := n.DecodeV1()
	if err != nil {
		return false
	}
	if !versioned {
		return true
	}
	return !v.Salts.IsValid(sn.Salt) || sn.Deadline.HasExpired(v.Now)
}
