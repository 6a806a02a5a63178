// Package settlement distributes a draw's prize pool per spec.md §4.6:
// a fixed-prize path in normal mode, a pari-mutuel cascade in rolldown
// mode, and claim-on-demand payouts with solvency guards.
package settlement

import (
	"context"
	"fmt"

	"github.com/rolldown-labs/lottery-protocol/internal/indexer"
	"github.com/rolldown-labs/lottery-protocol/internal/ledger"
	"github.com/rolldown-labs/lottery-protocol/internal/protoerr"
)

// FixedTierTable gives the fixed per-winner payouts for every tier except
// the top one (which is paid from the jackpot). Keyed by match count.
type FixedTierTable map[int]uint64

// RolldownShareTable gives each tier's share of the rolldown pool in bps.
// Must sum to 10_000 across the non-top tiers.
type RolldownShareTable map[int]uint64

// MainFixedTiers: M5=$10,000, M4=$100, M3=$4. M2 has no entry: nothing in
// this package pays Match-2 tickets or grants a free-ticket credit for them.
var MainFixedTiers = FixedTierTable{
	5: 10_000_000_000,
	4: 100_000_000,
	3: 4_000_000,
}

// MainRolldownShares: Match-5=20%, Match-4=40%, Match-3=40%.
var MainRolldownShares = RolldownShareTable{
	5: 2_000,
	4: 4_000,
	3: 4_000,
}

// QPFixedTiers and QPRolldownShares are deploy-time configurable; these
// are reasonable defaults consistent with spec.md §4.6's "see config" note.
var QPFixedTiers = FixedTierTable{
	4: 50_000_000,
	3: 2_000_000,
}

var QPRolldownShares = RolldownShareTable{
	4: 6_000,
	3: 4_000,
}

func topTier(gameID ledger.GameID) int {
	if gameID == ledger.GameQuickPick {
		return 5
	}
	return 6
}

func fixedTable(gameID ledger.GameID) FixedTierTable {
	if gameID == ledger.GameQuickPick {
		return QPFixedTiers
	}
	return MainFixedTiers
}

func rolldownTable(gameID ledger.GameID) RolldownShareTable {
	if gameID == ledger.GameQuickPick {
		return QPRolldownShares
	}
	return MainRolldownShares
}

// Envelope is the authorized payout bookkeeping for one draw, written into
// the DrawRecord. It does not move funds to individual winners; claims do.
type Envelope struct {
	RolldownActive      bool
	PoolAllocated        uint64
	TierWinnerCount      map[int]uint64
	TierPerWinnerAmount  map[int]uint64 // both modes; Claim pays from it
	TierPool             map[int]uint64 // pari-mutuel tiers only (rolldown or reserve shortfall)
	NewJackpotBalance    uint64
	NewReserveBalance    uint64
	NewInsuranceBalance  uint64
	ReserveShortfall     bool
}

// Settle computes the draw's payout envelope and the resulting pool
// balances, implementing both modes of spec.md §4.6. It does not persist
// anything; callers apply the returned balances to GameState and write the
// Envelope fields into a DrawRecord.
func Settle(gameID ledger.GameID, state ledger.GameState, tierCounts indexer.TierCounts, rolldownActive bool) Envelope {
	top := topTier(gameID)
	env := Envelope{
		RolldownActive:      rolldownActive,
		TierWinnerCount:     map[int]uint64{},
		TierPerWinnerAmount: map[int]uint64{},
		TierPool:            map[int]uint64{},
		NewJackpotBalance:   state.JackpotBalance,
		NewReserveBalance:   state.ReserveBalance,
		NewInsuranceBalance: state.InsuranceBalance,
	}
	for tier, count := range tierCounts {
		env.TierWinnerCount[tier] = count
	}

	if rolldownActive {
		settleRolldown(gameID, state, &env, top)
	} else {
		settleNormal(gameID, state, &env, top)
	}

	var allocated uint64
	for tier, count := range env.TierWinnerCount {
		if amt, ok := env.TierPerWinnerAmount[tier]; ok {
			allocated += amt * count
		}
	}
	for _, pool := range env.TierPool {
		allocated += pool
	}
	env.PoolAllocated = allocated

	return env
}

func settleNormal(gameID ledger.GameID, state ledger.GameState, env *Envelope, top int) {
	topCount := env.TierWinnerCount[top]
	if topCount > 0 {
		env.TierPerWinnerAmount[top] = state.JackpotBalance / topCount
		env.NewJackpotBalance = state.SeedAmount
		replenishSeed(state, env)
	}
	// below-top-count == 0 leaves the jackpot to carry over untouched.

	fixed := fixedTable(gameID)
	var owed uint64
	for tier, amount := range fixed {
		owed += amount * env.TierWinnerCount[tier]
	}

	available := env.NewReserveBalance + env.NewInsuranceBalance
	if owed <= available {
		for tier, amount := range fixed {
			env.TierPerWinnerAmount[tier] = amount
		}
		fromReserve := owed
		if fromReserve > env.NewReserveBalance {
			fromReserve = env.NewReserveBalance
		}
		env.NewReserveBalance -= fromReserve
		env.NewInsuranceBalance -= owed - fromReserve
		return
	}

	// Reserve + insurance can't cover the fixed tiers: convert to
	// pari-mutuel using whatever funds ARE available and flag
	// env.ReserveShortfall (warning, not fatal). FinalizeDraw neither logs
	// nor records this flag.
	env.ReserveShortfall = true
	pool := available
	env.NewReserveBalance = 0
	env.NewInsuranceBalance = 0
	distributeParimutuel(fixed.shareTableFromAmounts(), pool, env)
}

func settleRolldown(gameID ledger.GameID, state ledger.GameState, env *Envelope, top int) {
	pool := state.JackpotBalance
	shares := rolldownTable(gameID)
	distributeParimutuel(shares, pool, env)
	env.NewJackpotBalance = state.SeedAmount
	replenishSeed(state, env)
}

// distributeParimutuel splits pool across tiers by bps share; each tier's
// per-winner amount is tier_pool/winner_count (integer division).
// Remainders and zero-winner tiers sweep to insurance, per the Design
// Notes' deterministic-rounding rule.
func distributeParimutuel(shares RolldownShareTable, pool uint64, env *Envelope) {
	var swept uint64
	for tier, bps := range shares {
		tierPool := pool * bps / 10_000
		env.TierPool[tier] = tierPool
		count := env.TierWinnerCount[tier]
		if count == 0 {
			swept += tierPool
			env.TierPool[tier] = 0
			continue
		}
		perWinner := tierPool / count
		remainder := tierPool - perWinner*count
		env.TierPerWinnerAmount[tier] = perWinner
		swept += remainder
	}
	env.NewInsuranceBalance += swept
}

// shareTableFromAmounts approximates a bps share table from a fixed-amount
// table's relative weights, used only on the reserve-shortfall fallback
// path where fixed tiers must be converted to pari-mutuel on the fly.
func (f FixedTierTable) shareTableFromAmounts() RolldownShareTable {
	var total uint64
	for _, amt := range f {
		total += amt
	}
	shares := make(RolldownShareTable, len(f))
	if total == 0 {
		return shares
	}
	for tier, amt := range f {
		shares[tier] = amt * 10_000 / total
	}
	return shares
}

func replenishSeed(state ledger.GameState, env *Envelope) {
	if env.NewJackpotBalance >= state.SeedAmount {
		return
	}
	deficit := state.SeedAmount - env.NewJackpotBalance
	fromReserve := deficit
	if fromReserve > env.NewReserveBalance {
		fromReserve = env.NewReserveBalance
	}
	env.NewReserveBalance -= fromReserve
	env.NewJackpotBalance += fromReserve
	deficit -= fromReserve

	if deficit == 0 {
		return
	}
	fromInsurance := deficit
	if fromInsurance > env.NewInsuranceBalance {
		fromInsurance = env.NewInsuranceBalance
	}
	env.NewInsuranceBalance -= fromInsurance
	env.NewJackpotBalance += fromInsurance
	// Any remaining deficit leaves jackpot below seed until topped up by
	// future purchases, per spec.md §4.6.
}

// ClaimResult is the payout resolved for one ticket's claim.
type ClaimResult struct {
	MatchCount int
	Amount     uint64
}

// Claim implements spec.md §4.6's claim_prize operation: verify ownership
// and claim state, recompute the match tier, look up the authorized
// per-winner amount, and atomically decrement the DrawRecord's tier
// counter so double-claims are ruled out. subIndex selects the sub-ticket
// within a TicketBulk record (1-20 sub-tickets per spec.md §4.2, each
// independently claimable via its own IsClaimedVec slot); it is ignored
// for a TicketSingle record.
func Claim(ctx context.Context, store ledger.Store, gameID ledger.GameID, caller string, ticketID string, subIndex int, pickCount int) (ClaimResult, error) {
	t, err := store.GetTicket(ctx, gameID, ticketID)
	if err != nil {
		return ClaimResult{}, err
	}
	if t.Owner != caller {
		return ClaimResult{}, protoerr.ErrNotTicketOwner
	}

	if t.Kind == ledger.TicketBulk {
		if subIndex < 0 || uint64(subIndex) >= t.TicketCount {
			return ClaimResult{}, fmt.Errorf("%w: sub-ticket index out of range", protoerr.ErrInvalidTicket)
		}
		if t.IsClaimedVec[subIndex] {
			return ClaimResult{}, protoerr.ErrAlreadyClaimed
		}
	} else if t.IsClaimed {
		return ClaimResult{}, protoerr.ErrAlreadyClaimed
	}

	rec, err := store.GetDrawRecord(ctx, gameID, t.DrawID)
	if err != nil {
		return ClaimResult{}, err
	}

	match := indexer.CountMatches(t.NumbersAt(subIndex, pickCount), rec.WinningNumbers)
	amount, ok := rec.TierPerWinnerAmount[match]
	if !ok || amount == 0 {
		return ClaimResult{}, fmt.Errorf("%w: ticket did not win", protoerr.ErrNotTicketOwner)
	}

	count := rec.TierWinnerCount[match]
	if count == 0 {
		return ClaimResult{}, protoerr.ErrPoolInsufficient
	}
	rec.TierWinnerCount[match] = count - 1

	if t.Kind == ledger.TicketBulk {
		t.IsClaimedVec[subIndex] = true
	} else {
		t.IsClaimed = true
	}
	if err := store.UpdateTicket(ctx, t); err != nil {
		return ClaimResult{}, err
	}
	if err := store.UpdateDrawRecord(ctx, rec); err != nil {
		return ClaimResult{}, err
	}

	return ClaimResult{MatchCount: match, Amount: amount}, nil
}
