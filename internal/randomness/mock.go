package randomness

import (
	"context"
	"crypto/sha256"
	"encoding/binary"
	"sync"

	"github.com/google/uuid"
)

// MockAdapter is a deterministic commit-reveal substitute for tests,
// grounded on lottery.MockVRFService (service/testing.go): it derives a
// reproducible seed from the handle rather than calling any external
// service, and tracks consumed handles to enforce the no-re-reveal rule.
type MockAdapter struct {
	mu       sync.Mutex
	handles  map[string]Handle
	consumed map[string]bool
}

// NewMockAdapter constructs a MockAdapter.
func NewMockAdapter() *MockAdapter {
	return &MockAdapter{
		handles:  make(map[string]Handle),
		consumed: make(map[string]bool),
	}
}

func (m *MockAdapter) Commit(ctx context.Context, queueID string, currentSlot uint64) (Handle, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	h := Handle{ID: uuid.New().String(), SeedSlot: currentSlot + 1}
	m.handles[h.ID] = h
	return h, nil
}

func (m *MockAdapter) Reveal(ctx context.Context, handle Handle, currentSlot uint64) (Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	stored, ok := m.handles[handle.ID]
	if !ok || stored.SeedSlot != handle.SeedSlot {
		return Result{Status: RevealExpired}, nil
	}
	if m.consumed[handle.ID] {
		return Result{}, ErrAlreadyRevealed
	}
	if handle.SeedSlot != currentSlot-1 {
		if currentSlot <= handle.SeedSlot {
			return Result{Status: RevealNotYetRevealed}, nil
		}
		return Result{Status: RevealExpired}, nil
	}

	m.consumed[handle.ID] = true
	seed := deriveSeed(handle)
	return Result{Status: RevealReady, Seed: seed}, nil
}

func deriveSeed(handle Handle) [32]byte {
	var buf [8 + 36]byte
	n := copy(buf[:], handle.ID)
	binary.LittleEndian.PutUint64(buf[n:n+8], handle.SeedSlot)
	return sha256.Sum256(buf[:n+8])
}
