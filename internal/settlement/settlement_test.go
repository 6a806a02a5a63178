package settlement_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rolldown-labs/lottery-protocol/internal/indexer"
	"github.com/rolldown-labs/lottery-protocol/internal/ledger"
	"github.com/rolldown-labs/lottery-protocol/internal/protoerr"
	"github.com/rolldown-labs/lottery-protocol/internal/settlement"
)

func baseState() ledger.GameState {
	return ledger.GameState{
		GameID:           ledger.GameMain,
		JackpotBalance:   10_000_000_000,
		ReserveBalance:   1_000_000_000,
		InsuranceBalance: 500_000_000,
		SeedAmount:       1_000_000_000,
		SoftCap:          50_000_000_000,
		HardCap:          100_000_000_000,
	}
}

func TestSettleNormalModeAwardsJackpotAndResetsSeed(t *testing.T) {
	state := baseState()
	counts := indexer.TierCounts{6: 2, 5: 0, 4: 0, 3: 0, 2: 0}
	env := settlement.Settle(ledger.GameMain, state, counts, false)

	assert.Equal(t, state.JackpotBalance/2, env.TierPerWinnerAmount[6])
	assert.Equal(t, state.SeedAmount, env.NewJackpotBalance)
}

func TestSettleNormalModeNoTopWinnerCarriesJackpotOver(t *testing.T) {
	state := baseState()
	state.ReserveBalance = settlement.MainFixedTiers[5] // reserve covers the fixed M5 payout
	counts := indexer.TierCounts{6: 0, 5: 1, 4: 0, 3: 0, 2: 0}
	env := settlement.Settle(ledger.GameMain, state, counts, false)

	assert.Equal(t, state.JackpotBalance, env.NewJackpotBalance)
	assert.Equal(t, settlement.MainFixedTiers[5], env.TierPerWinnerAmount[5])
}

func TestSettleRolldownDistributesJackpotAcrossLowerTiers(t *testing.T) {
	state := baseState()
	counts := indexer.TierCounts{6: 0, 5: 10, 4: 40, 3: 200, 2: 0}
	env := settlement.Settle(ledger.GameMain, state, counts, true)

	assert.True(t, env.RolldownActive)
	assert.Equal(t, state.SeedAmount, env.NewJackpotBalance)
	assert.Greater(t, env.TierPerWinnerAmount[5], uint64(0))
	assert.Greater(t, env.TierPerWinnerAmount[4], uint64(0))
	assert.Greater(t, env.TierPerWinnerAmount[3], uint64(0))

	var totalPaid uint64
	totalPaid += env.TierPerWinnerAmount[5] * counts[5]
	totalPaid += env.TierPerWinnerAmount[4] * counts[4]
	totalPaid += env.TierPerWinnerAmount[3] * counts[3]
	assert.LessOrEqual(t, totalPaid, state.JackpotBalance)
}

func TestSettleRolldownSweepsZeroWinnerTiersToInsurance(t *testing.T) {
	state := baseState()
	counts := indexer.TierCounts{6: 0, 5: 0, 4: 0, 3: 0, 2: 0}
	env := settlement.Settle(ledger.GameMain, state, counts, true)

	assert.Greater(t, env.NewInsuranceBalance, state.InsuranceBalance)
}

func TestClaimRejectsNonOwner(t *testing.T) {
	store := ledger.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.InitGame(ctx, baseState()))

	ticket := ledger.Ticket{Owner: "alice", GameID: ledger.GameMain, DrawID: 1, Kind: ledger.TicketSingle, Numbers: []byte{1, 2, 3, 4, 5, 6}, PurchaseTS: time.Now()}
	created, err := store.CreateTicket(ctx, ticket)
	require.NoError(t, err)

	rec := ledger.DrawRecord{
		GameID:              ledger.GameMain,
		DrawID:              1,
		WinningNumbers:      []byte{1, 2, 3, 4, 5, 6},
		TierWinnerCount:     map[int]uint64{6: 1},
		TierPerWinnerAmount: map[int]uint64{6: 5_000_000_000},
	}
	require.NoError(t, store.RecordDraw(ctx, rec))

	_, err = settlement.Claim(ctx, store, ledger.GameMain, "mallory", created.ID, 0, 6)
	assert.ErrorIs(t, err, protoerr.ErrNotTicketOwner)
}

func TestClaimSucceedsOnceAndPreventsDoubleClaim(t *testing.T) {
	store := ledger.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.InitGame(ctx, baseState()))

	ticket := ledger.Ticket{Owner: "alice", GameID: ledger.GameMain, DrawID: 1, Kind: ledger.TicketSingle, Numbers: []byte{1, 2, 3, 4, 5, 6}, PurchaseTS: time.Now()}
	created, err := store.CreateTicket(ctx, ticket)
	require.NoError(t, err)

	rec := ledger.DrawRecord{
		GameID:              ledger.GameMain,
		DrawID:              1,
		WinningNumbers:      []byte{1, 2, 3, 4, 5, 6},
		TierWinnerCount:     map[int]uint64{6: 1},
		TierPerWinnerAmount: map[int]uint64{6: 5_000_000_000},
	}
	require.NoError(t, store.RecordDraw(ctx, rec))

	result, err := settlement.Claim(ctx, store, ledger.GameMain, "alice", created.ID, 0, 6)
	require.NoError(t, err)
	assert.Equal(t, 6, result.MatchCount)
	assert.Equal(t, uint64(5_000_000_000), result.Amount)

	_, err = settlement.Claim(ctx, store, ledger.GameMain, "alice", created.ID, 0, 6)
	assert.ErrorIs(t, err, protoerr.ErrAlreadyClaimed)
}

// TestClaimBulkTicketClaimsEachWinningSubTicketIndependently guards against
// a bulk record's sub-tickets being conflated: sub-ticket 0 matches all 6
// numbers, sub-ticket 1 matches 5, and each must be claimable on its own
// index without the other's claim state interfering.
func TestClaimBulkTicketClaimsEachWinningSubTicketIndependently(t *testing.T) {
	store := ledger.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.InitGame(ctx, baseState()))

	ticket := ledger.Ticket{
		Owner:        "alice",
		GameID:       ledger.GameMain,
		DrawID:       1,
		Kind:         ledger.TicketBulk,
		TicketCount:  2,
		NumbersVec:   append(append([]byte{}, []byte{1, 2, 3, 4, 5, 6}...), []byte{1, 2, 3, 4, 5, 7}...),
		IsClaimedVec: make([]bool, 2),
		PurchaseTS:   time.Now(),
	}
	created, err := store.CreateTicket(ctx, ticket)
	require.NoError(t, err)

	rec := ledger.DrawRecord{
		GameID:              ledger.GameMain,
		DrawID:              1,
		WinningNumbers:      []byte{1, 2, 3, 4, 5, 6},
		TierWinnerCount:     map[int]uint64{6: 1, 5: 1},
		TierPerWinnerAmount: map[int]uint64{6: 5_000_000_000, 5: 10_000_000},
	}
	require.NoError(t, store.RecordDraw(ctx, rec))

	result0, err := settlement.Claim(ctx, store, ledger.GameMain, "alice", created.ID, 0, 6)
	require.NoError(t, err)
	assert.Equal(t, 6, result0.MatchCount)
	assert.Equal(t, uint64(5_000_000_000), result0.Amount)

	// Sub-ticket 0 being claimed must not block sub-ticket 1.
	result1, err := settlement.Claim(ctx, store, ledger.GameMain, "alice", created.ID, 1, 6)
	require.NoError(t, err)
	assert.Equal(t, 5, result1.MatchCount)
	assert.Equal(t, uint64(10_000_000), result1.Amount)

	_, err = settlement.Claim(ctx, store, ledger.GameMain, "alice", created.ID, 0, 6)
	assert.ErrorIs(t, err, protoerr.ErrAlreadyClaimed)
	_, err = settlement.Claim(ctx, store, ledger.GameMain, "alice", created.ID, 1, 6)
	assert.ErrorIs(t, err, protoerr.ErrAlreadyClaimed)
}
