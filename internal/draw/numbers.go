package draw

import (
	"crypto/sha256"
	"encoding/binary"
	"math"
	"sort"
)

// u32Stream deterministically expands a 32-byte seed into an unbounded stream
// of uint32 words by hashing the seed together with a monotonic counter.
// This gives the "deterministic PRNG seeded by the full 32 bytes" spec.md
// §4.3.1 requires without depending on any particular external PRNG
// construction.
type u32Stream struct {
	seed    [32]byte
	counter uint64
}

func newU32Stream(seed [32]byte) *u32Stream {
	return &u32Stream{seed: seed}
}

func (s *u32Stream) next() uint32 {
	var buf [40]byte
	copy(buf[:32], s.seed[:])
	binary.LittleEndian.PutUint64(buf[32:], s.counter)
	s.counter++
	digest := sha256.Sum256(buf[:])
	return binary.LittleEndian.Uint32(digest[:4])
}

// DeriveWinningNumbers implements spec.md §4.3.1: modular-unbiased
// rejection sampling over the u32 stream, producing pickCount unique,
// ascending-sorted numbers in [1, numberRange]. Deterministic for a fixed
// seed, as required for on-chain/off-chain reproducibility.
func DeriveWinningNumbers(seed [32]byte, pickCount, numberRange int) []byte {
	stream := newU32Stream(seed)
	threshold := uint32(math.MaxUint32) - (uint32(math.MaxUint32) % uint32(numberRange))

	used := make(map[int]bool, pickCount)
	out := make([]int, 0, pickCount)
	for len(out) < pickCount {
		x := stream.next()
		if x >= threshold {
			continue // biased tail, discard and redraw
		}
		n := 1 + int(x%uint32(numberRange))
		if used[n] {
			continue
		}
		used[n] = true
		out = append(out, n)
	}
	sort.Ints(out)

	result := make([]byte, pickCount)
	for i, n := range out {
		result[i] = byte(n)
	}
	return result
}

// BernoulliFromBytes reduces 4 bytes of revealed randomness mod 10_000 to
// drive the rolldown probabilistic trigger (spec.md §4.3.2).
func BernoulliFromBytes(b [4]byte) uint64 {
	v := binary.LittleEndian.Uint32(b[:])
	return uint64(v) % 10_000
}
