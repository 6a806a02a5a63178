package draw

// RolldownDecision is the outcome of evaluating spec.md §4.3.2. It is
// game-parameterized (soft/hard caps and the per-draw revealed bytes come
// from the caller), so the same formula drives both Main and QuickPick per
// the spec's open-question guidance.
type RolldownDecision struct {
	Active bool
	// PBps is the computed probability in bps when jackpot is in the
	// [soft_cap, hard_cap) band; zero otherwise.
	PBps uint64
	// Draw is the Bernoulli draw value (bytes [24:28] of the revealed
	// randomness reduced mod 10_000); zero unless PBps was evaluated.
	Draw uint64
}

// EvaluateRolldown implements spec.md §4.3.2 exactly. matchTopCount is the
// indexer-reported winner count for the top tier; revealedBernoulli is
// BernoulliFromBytes applied to bytes [24:28] of the revealed seed.
func EvaluateRolldown(matchTopCount int, jackpotBalance, softCap, hardCap uint64, revealedBernoulli uint64) RolldownDecision {
	if matchTopCount > 0 {
		return RolldownDecision{Active: false}
	}
	if jackpotBalance >= hardCap {
		return RolldownDecision{Active: true}
	}
	if jackpotBalance >= softCap {
		span := hardCap - softCap
		var pBps uint64
		if span > 0 {
			pBps = (jackpotBalance - softCap) * 10_000 / span
		}
		return RolldownDecision{
			Active: revealedBernoulli < pBps,
			PBps:   pBps,
			Draw:   revealedBernoulli,
		}
	}
	return RolldownDecision{Active: false}
}
