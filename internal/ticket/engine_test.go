package ticket_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rolldown-labs/lottery-protocol/internal/ledger"
	"github.com/rolldown-labs/lottery-protocol/internal/protoerr"
	"github.com/rolldown-labs/lottery-protocol/internal/ticket"
)

func setupGame(t *testing.T, gameID ledger.GameID) (*ledger.MemoryStore, *ledger.Ledger) {
	t.Helper()
	store := ledger.NewMemoryStore()
	price := uint64(ledger.MainTicketPrice)
	pick := ledger.MainPickCount
	numRange := ledger.MainNumberRange
	interval := int64(ledger.MainDrawIntervalS)
	if gameID == ledger.GameQuickPick {
		price = ledger.QPTicketPrice
		pick = ledger.QPPickCount
		numRange = ledger.QPNumberRange
		interval = ledger.QPDrawIntervalS
	}
	state := ledger.GameState{
		GameID:         gameID,
		CurrentDrawID:  1,
		NextDrawTS:     1000,
		DrawIntervalS:  interval,
		PickCount:      pick,
		NumberRange:    numRange,
		TicketPrice:    price,
		SeedAmount:     1_000_000_000,
		JackpotBalance: 1_000_000_000,
		SoftCap:        50_000_000_000,
		HardCap:        100_000_000_000,
		Phase:          ledger.PhaseOpen,
		IsFunded:       true,
	}
	require.NoError(t, store.InitGame(context.Background(), state))
	if gameID == ledger.GameQuickPick {
		require.NoError(t, store.InitGame(context.Background(), ledger.GameState{GameID: ledger.GameMain, Phase: ledger.PhaseOpen, IsFunded: true}))
	}
	return store, ledger.New(store)
}

func TestValidateNumbersRejectsWrongCount(t *testing.T) {
	_, err := ticket.ValidateNumbers([]int{1, 2, 3}, 6, 46)
	assert.ErrorIs(t, err, protoerr.ErrWrongTicketCount)
}

func TestValidateNumbersRejectsOutOfRange(t *testing.T) {
	_, err := ticket.ValidateNumbers([]int{1, 2, 3, 4, 5, 47}, 6, 46)
	assert.ErrorIs(t, err, protoerr.ErrNumbersOutOfRange)
}

func TestValidateNumbersRejectsDuplicates(t *testing.T) {
	_, err := ticket.ValidateNumbers([]int{1, 2, 3, 4, 5, 5}, 6, 46)
	assert.ErrorIs(t, err, protoerr.ErrDuplicateNumbers)
}

func TestValidateNumbersSortsOutput(t *testing.T) {
	out, err := ticket.ValidateNumbers([]int{6, 1, 4, 2, 5, 3}, 6, 46)
	require.NoError(t, err)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, out)
}

func TestBuyTicketAppliesFeeSplitAndCreatesRecord(t *testing.T) {
	store, led := setupGame(t, ledger.GameMain)
	require.NoError(t, store.CreditWallet(context.Background(), "alice", ledger.MainTicketPrice))
	engine := ticket.New(led)

	tk, err := engine.BuyTicket(context.Background(), ledger.GameMain, "alice", []int{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)
	assert.NotEmpty(t, tk.ID)
	assert.Equal(t, "alice", tk.Owner)

	state, err := led.Load(context.Background(), ledger.GameMain)
	require.NoError(t, err)
	assert.Equal(t, uint64(1), state.TotalTicketsSold)
	assert.Greater(t, state.JackpotBalance, uint64(1_000_000_000))

	stats, err := store.GetUserStats(context.Background(), ledger.GameMain, "alice")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.TotalTickets)
	assert.Equal(t, uint64(ledger.MainTicketPrice), stats.TotalSpent)
}

func TestBuyTicketRejectsWhenPaused(t *testing.T) {
	store, led := setupGame(t, ledger.GameMain)
	state, err := store.LoadGame(context.Background(), ledger.GameMain)
	require.NoError(t, err)
	state.IsPaused = true
	require.NoError(t, store.SaveGame(context.Background(), state))

	engine := ticket.New(led)
	_, err = engine.BuyTicket(context.Background(), ledger.GameMain, "alice", []int{1, 2, 3, 4, 5, 6})
	assert.ErrorIs(t, err, protoerr.ErrPaused)
}

func TestQuickPickSpendGateBlocksUnmetWallet(t *testing.T) {
	store, led := setupGame(t, ledger.GameQuickPick)
	_ = store
	engine := ticket.New(led)

	_, err := engine.BuyTicket(context.Background(), ledger.GameQuickPick, "bob", []int{1, 2, 3, 4, 5})
	assert.ErrorIs(t, err, protoerr.ErrSpendGateNotMet)
}

func TestQuickPickSpendGatePassesAfterMainSpend(t *testing.T) {
	store, led := setupGame(t, ledger.GameQuickPick)
	require.NoError(t, store.SaveUserStats(context.Background(), ledger.UserStats{
		AccountID:  "bob",
		GameID:     ledger.GameMain,
		TotalSpent: ledger.QPSpendGateMicroUnits,
	}))
	require.NoError(t, store.CreditWallet(context.Background(), "bob", ledger.QPTicketPrice))

	engine := ticket.New(led)
	tk, err := engine.BuyTicket(context.Background(), ledger.GameQuickPick, "bob", []int{1, 2, 3, 4, 5})
	require.NoError(t, err)
	assert.Equal(t, ledger.GameQuickPick, tk.GameID)
}

func TestBuyTicketRejectsInsufficientFunds(t *testing.T) {
	_, led := setupGame(t, ledger.GameMain)
	engine := ticket.New(led)

	_, err := engine.BuyTicket(context.Background(), ledger.GameMain, "hank", []int{1, 2, 3, 4, 5, 6})
	assert.ErrorIs(t, err, protoerr.ErrInsufficientFunds)
}

func TestBuyTicketsBulkRejectsInsufficientFundsForTotalCost(t *testing.T) {
	store, led := setupGame(t, ledger.GameMain)
	require.NoError(t, store.CreditWallet(context.Background(), "ida", ledger.MainTicketPrice))
	engine := ticket.New(led)

	sets := [][]int{
		{1, 2, 3, 4, 5, 6},
		{10, 20, 30, 40, 41, 42},
	}
	_, err := engine.BuyTicketsBulk(context.Background(), ledger.GameMain, "ida", sets)
	assert.ErrorIs(t, err, protoerr.ErrInsufficientFunds)

	state, err := store.LoadGame(context.Background(), ledger.GameMain)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), state.TotalTicketsSold)
}

func TestBuyTicketsBulkIsAllOrNothing(t *testing.T) {
	store, led := setupGame(t, ledger.GameMain)
	require.NoError(t, store.CreditWallet(context.Background(), "carol", ledger.MainTicketPrice*2))
	engine := ticket.New(led)

	sets := [][]int{
		{1, 2, 3, 4, 5, 6},
		{1, 2, 3, 4, 5, 47}, // invalid: out of range
	}
	_, err := engine.BuyTicketsBulk(context.Background(), ledger.GameMain, "carol", sets)
	assert.ErrorIs(t, err, protoerr.ErrNumbersOutOfRange)

	state, err := store.LoadGame(context.Background(), ledger.GameMain)
	require.NoError(t, err)
	assert.Equal(t, uint64(0), state.TotalTicketsSold)
}

func TestBuyTicketsBulkRejectsOverMax(t *testing.T) {
	_, led := setupGame(t, ledger.GameMain)
	engine := ticket.New(led)

	sets := make([][]int, ticket.MaxBulkTickets+1)
	for i := range sets {
		sets[i] = []int{1, 2, 3, 4, 5, 6}
	}
	_, err := engine.BuyTicketsBulk(context.Background(), ledger.GameMain, "dan", sets)
	assert.ErrorIs(t, err, protoerr.ErrWrongTicketCount)
}

func TestBuyTicketsBulkCreatesFlattenedRecord(t *testing.T) {
	store, led := setupGame(t, ledger.GameMain)
	require.NoError(t, store.CreditWallet(context.Background(), "erin", ledger.MainTicketPrice*2))
	engine := ticket.New(led)

	sets := [][]int{
		{1, 2, 3, 4, 5, 6},
		{10, 20, 30, 40, 41, 42},
	}
	tk, err := engine.BuyTicketsBulk(context.Background(), ledger.GameMain, "erin", sets)
	require.NoError(t, err)
	assert.Equal(t, ledger.TicketBulk, tk.Kind)
	assert.Equal(t, uint64(2), tk.TicketCount)
	assert.Len(t, tk.NumbersVec, 12)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, tk.NumbersAt(0, 6))
	assert.Equal(t, []byte{10, 20, 30, 40, 41, 42}, tk.NumbersAt(1, 6))

	state, err := store.LoadGame(context.Background(), ledger.GameMain)
	require.NoError(t, err)
	assert.Equal(t, uint64(2), state.TotalTicketsSold)
}

func TestRedeemFreeTicketRequiresCredit(t *testing.T) {
	_, led := setupGame(t, ledger.GameMain)
	engine := ticket.New(led)

	_, err := engine.RedeemFreeTicket(context.Background(), "frank", []int{1, 2, 3, 4, 5, 6})
	assert.ErrorIs(t, err, protoerr.ErrInsufficientFunds)
}

func TestRedeemFreeTicketConsumesCreditWithoutTouchingPools(t *testing.T) {
	store, led := setupGame(t, ledger.GameMain)
	require.NoError(t, store.SaveUserStats(context.Background(), ledger.UserStats{
		AccountID:     "grace",
		GameID:        ledger.GameMain,
		Match2Credits: 2,
	}))
	before, err := store.LoadGame(context.Background(), ledger.GameMain)
	require.NoError(t, err)

	engine := ticket.New(led)
	tk, err := engine.RedeemFreeTicket(context.Background(), "grace", []int{1, 2, 3, 4, 5, 6})
	require.NoError(t, err)
	assert.Equal(t, "grace", tk.Owner)

	after, err := store.LoadGame(context.Background(), ledger.GameMain)
	require.NoError(t, err)
	assert.Equal(t, before.JackpotBalance, after.JackpotBalance)
	assert.Equal(t, before.ReserveBalance, after.ReserveBalance)

	stats, err := store.GetUserStats(context.Background(), ledger.GameMain, "grace")
	require.NoError(t, err)
	assert.Equal(t, uint64(1), stats.Match2Credits)
}
