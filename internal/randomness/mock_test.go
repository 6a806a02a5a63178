package randomness

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMockAdapterRevealNotReadyBeforeSlot(t *testing.T) {
	m := NewMockAdapter()
	handle, err := m.Commit(context.Background(), "main", 100)
	require.NoError(t, err)
	assert.Equal(t, uint64(101), handle.SeedSlot)

	result, err := m.Reveal(context.Background(), handle, 100)
	require.NoError(t, err)
	assert.Equal(t, RevealNotYetRevealed, result.Status)
}

func TestMockAdapterRevealReadyAtFreshSlot(t *testing.T) {
	m := NewMockAdapter()
	handle, err := m.Commit(context.Background(), "main", 100)
	require.NoError(t, err)

	result, err := m.Reveal(context.Background(), handle, 102)
	require.NoError(t, err)
	assert.Equal(t, RevealReady, result.Status)
	assert.NotEqual(t, [32]byte{}, result.Seed)
}

func TestMockAdapterRevealExpiredAfterStaleSlot(t *testing.T) {
	m := NewMockAdapter()
	handle, err := m.Commit(context.Background(), "main", 100)
	require.NoError(t, err)

	result, err := m.Reveal(context.Background(), handle, 500)
	require.NoError(t, err)
	assert.Equal(t, RevealExpired, result.Status)
}

func TestMockAdapterRejectsDoubleReveal(t *testing.T) {
	m := NewMockAdapter()
	handle, err := m.Commit(context.Background(), "main", 100)
	require.NoError(t, err)

	_, err = m.Reveal(context.Background(), handle, 102)
	require.NoError(t, err)

	_, err = m.Reveal(context.Background(), handle, 102)
	assert.ErrorIs(t, err, ErrAlreadyRevealed)
}

func TestMockAdapterDeterministicSeedForSameHandle(t *testing.T) {
	handle := Handle{ID: "fixed-id", SeedSlot: 5}
	a := deriveSeed(handle)
	b := deriveSeed(handle)
	assert.Equal(t, a, b)
}
