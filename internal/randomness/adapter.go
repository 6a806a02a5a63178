// Package randomness wraps an external commit-reveal randomness oracle
// behind the capability interface spec.md §4.4 describes, generalized
// from the teacher's lottery.VRFService/vrf.Service request shape.
package randomness

import (
	"context"
	"errors"
)

// Handle is an opaque reference to a bound future slot, returned by Commit
// and presented again to Reveal.
type Handle struct {
	ID       string
	SeedSlot uint64
}

// RevealStatus distinguishes the three reveal outcomes of spec.md §4.4.
type RevealStatus int

const (
	RevealReady RevealStatus = iota
	RevealNotYetRevealed
	RevealExpired
)

// Result is the outcome of a Reveal call.
type Result struct {
	Status RevealStatus
	Seed   [32]byte
}

var (
	// ErrAlreadyRevealed is returned if a handle that was already consumed
	// is presented to Reveal again (prevents selective-revelation attacks).
	ErrAlreadyRevealed = errors.New("randomness handle already revealed")
)

// Adapter abstracts the external commit-reveal oracle. Implementations
// must enforce: a handle is fresh only when
// handle.SeedSlot == currentSlot-1; a stale handle returns RevealExpired;
// a consumed handle must not re-reveal.
type Adapter interface {
	// Commit binds a future slot for queueID and returns an opaque handle.
	Commit(ctx context.Context, queueID string, currentSlot uint64) (Handle, error)
	// Reveal resolves a handle's randomness given the chain's current slot.
	Reveal(ctx context.Context, handle Handle, currentSlot uint64) (Result, error)
}
