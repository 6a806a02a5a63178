package draw

import (
	"sort"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestDeriveWinningNumbersIsDeterministic(t *testing.T) {
	seed := [32]byte{1, 2, 3, 4, 5}
	a := DeriveWinningNumbers(seed, 6, 46)
	b := DeriveWinningNumbers(seed, 6, 46)
	assert.Equal(t, a, b)
}

func TestDeriveWinningNumbersProducesUniqueSortedInRange(t *testing.T) {
	seed := [32]byte{9, 8, 7, 6, 5, 4, 3, 2, 1}
	out := DeriveWinningNumbers(seed, 6, 46)
	assert.Len(t, out, 6)

	seen := make(map[byte]bool)
	for _, n := range out {
		assert.False(t, seen[n], "duplicate number %d", n)
		seen[n] = true
		assert.GreaterOrEqual(t, int(n), 1)
		assert.LessOrEqual(t, int(n), 46)
	}
	assert.True(t, sort.SliceIsSorted(out, func(i, j int) bool { return out[i] < out[j] }))
}

func TestDeriveWinningNumbersDifferentSeedsDiffer(t *testing.T) {
	a := DeriveWinningNumbers([32]byte{1}, 6, 46)
	b := DeriveWinningNumbers([32]byte{2}, 6, 46)
	assert.NotEqual(t, a, b)
}

func TestDeriveWinningNumbersQuickPickParameters(t *testing.T) {
	seed := [32]byte{42}
	out := DeriveWinningNumbers(seed, 5, 35)
	assert.Len(t, out, 5)
	for _, n := range out {
		assert.LessOrEqual(t, int(n), 35)
	}
}

func TestBernoulliFromBytesRange(t *testing.T) {
	for _, b := range [][4]byte{{0, 0, 0, 0}, {255, 255, 255, 255}, {1, 2, 3, 4}} {
		v := BernoulliFromBytes(b)
		assert.Less(t, v, uint64(10_000))
	}
}
