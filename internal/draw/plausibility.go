package draw

import (
	"fmt"
	"sort"

	"github.com/rolldown-labs/lottery-protocol/internal/protoerr"
)

// TierProbability is the exact per-ticket match probability for a prize
// tier, expressed as a rational p = Numerator/Denominator so the ceiling
// bound in spec.md §4.3.3 can be computed with integer arithmetic only.
type TierProbability struct {
	MatchCount  int
	Numerator   uint64
	Denominator uint64
}

// CheckPlausibility implements the advisory pre-checks of spec.md §4.3.3.
// tierProbs may be given in any order: the adjacent-tier monotonicity check
// sorts a copy by descending match count (e.g. Main: 6,5,4,3,2) and looks
// up each tier's count in tierCounts by match count.
func CheckPlausibility(tierCounts map[int]uint64, tierProbs []TierProbability, totalTickets uint64) error {
	var sum uint64
	for _, tp := range tierProbs {
		count := tierCounts[tp.MatchCount]
		sum += count

		// ceil(10 * totalTickets * q_t) with q_t = Numerator/Denominator
		bound := ceilDiv(10*totalTickets*tp.Numerator, tp.Denominator)
		if count > bound {
			return fmt.Errorf("%w: tier match=%d count %d exceeds bound %d", protoerr.ErrPlausibilityCheckFailed, tp.MatchCount, count, bound)
		}
	}

	if sum > totalTickets {
		return fmt.Errorf("%w: sum of winner counts %d exceeds total tickets %d", protoerr.ErrPlausibilityCheckFailed, sum, totalTickets)
	}

	if totalTickets >= 1000 {
		ordered := make([]TierProbability, len(tierProbs))
		copy(ordered, tierProbs)
		sort.Slice(ordered, func(i, j int) bool { return ordered[i].MatchCount > ordered[j].MatchCount })
		for i := 1; i < len(ordered); i++ {
			hi := tierCounts[ordered[i-1].MatchCount]
			lo := tierCounts[ordered[i].MatchCount]
			if lo > 10*hi && hi > 0 {
				return fmt.Errorf("%w: tier match=%d count %d not loosely monotonic with match=%d count %d",
					protoerr.ErrPlausibilityCheckFailed, ordered[i].MatchCount, lo, ordered[i-1].MatchCount, hi)
			}
		}
	}

	return nil
}

func ceilDiv(num, den uint64) uint64 {
	if den == 0 {
		return 0
	}
	return (num + den - 1) / den
}
