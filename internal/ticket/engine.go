// Package ticket implements the ticket engine of spec.md §4.2: number
// validation, dynamic fee-split economics, and single/bulk purchase.
package ticket

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rolldown-labs/lottery-protocol/internal/ledger"
	"github.com/rolldown-labs/lottery-protocol/internal/protoerr"
)

// MaxBulkTickets is the upper bound on a single bulk purchase (spec.md §4.2).
const MaxBulkTickets = 20

// Engine validates and applies ticket purchases against a Ledger.
type Engine struct {
	ledger *ledger.Ledger
}

// New constructs a ticket Engine over the given Ledger.
func New(l *ledger.Ledger) *Engine {
	return &Engine{ledger: l}
}

// ValidateNumbers checks length, range, and uniqueness per spec.md §4.2.
// Unsorted input is accepted and sorted; the returned slice is always
// sorted ascending.
func ValidateNumbers(numbers []int, pickCount, numberRange int) ([]byte, error) {
	if len(numbers) != pickCount {
		return nil, fmt.Errorf("%w: expected %d numbers, got %d", protoerr.ErrWrongTicketCount, pickCount, len(numbers))
	}
	sorted := make([]int, len(numbers))
	copy(sorted, numbers)
	sort.Ints(sorted)

	seen := make(map[int]bool, len(sorted))
	out := make([]byte, len(sorted))
	for i, n := range sorted {
		if n < 1 || n > numberRange {
			return nil, fmt.Errorf("%w: %d not in [1,%d]", protoerr.ErrNumbersOutOfRange, n, numberRange)
		}
		if seen[n] {
			return nil, fmt.Errorf("%w: %d repeated", protoerr.ErrDuplicateNumbers, n)
		}
		seen[n] = true
		out[i] = byte(n)
	}
	return out, nil
}

// BuyTicket validates and applies a single-ticket purchase for buyer,
// returning the created Ticket.
func (e *Engine) BuyTicket(ctx context.Context, gameID ledger.GameID, buyer string, numbers []int) (ledger.Ticket, error) {
	state, err := e.ledger.Load(ctx, gameID)
	if err != nil {
		return ledger.Ticket{}, err
	}

	if err := e.checkGateable(ctx, state, buyer); err != nil {
		return ledger.Ticket{}, err
	}
	if err := e.checkSufficientFunds(ctx, buyer, state.TicketPrice); err != nil {
		return ledger.Ticket{}, err
	}

	sortedNumbers, err := ValidateNumbers(numbers, state.PickCount, state.NumberRange)
	if err != nil {
		return ledger.Ticket{}, err
	}

	split, err := ledger.ComputeFeeSplit(state.TicketPrice, state.JackpotBalance)
	if err != nil {
		return ledger.Ticket{}, err
	}

	newState, err := e.ledger.ApplyPurchase(ctx, gameID, split)
	if err != nil {
		return ledger.Ticket{}, err
	}

	t := ledger.Ticket{
		Owner:      buyer,
		GameID:     gameID,
		DrawID:     newState.CurrentDrawID,
		Kind:       ledger.TicketSingle,
		Numbers:    sortedNumbers,
		PurchaseTS: time.Now().UTC(),
	}
	created, err := e.ledger.Store().CreateTicket(ctx, t)
	if err != nil {
		return ledger.Ticket{}, err
	}

	if err := e.ledger.Store().DebitWallet(ctx, buyer, state.TicketPrice); err != nil {
		return ledger.Ticket{}, err
	}

	if err := e.recordSpend(ctx, gameID, buyer, state.TicketPrice); err != nil {
		return ledger.Ticket{}, err
	}

	return created, nil
}

// BuyTicketsBulk validates and applies an all-or-nothing batch of 1..20
// ticket purchases, returning one bulk Ticket record.
func (e *Engine) BuyTicketsBulk(ctx context.Context, gameID ledger.GameID, buyer string, numberSets [][]int) (ledger.Ticket, error) {
	if len(numberSets) < 1 || len(numberSets) > MaxBulkTickets {
		return ledger.Ticket{}, fmt.Errorf("%w: bulk size %d not in [1,%d]", protoerr.ErrWrongTicketCount, len(numberSets), MaxBulkTickets)
	}

	state, err := e.ledger.Load(ctx, gameID)
	if err != nil {
		return ledger.Ticket{}, err
	}

	if err := e.checkGateable(ctx, state, buyer); err != nil {
		return ledger.Ticket{}, err
	}
	totalCost := state.TicketPrice * uint64(len(numberSets))
	if err := e.checkSufficientFunds(ctx, buyer, totalCost); err != nil {
		return ledger.Ticket{}, err
	}

	flattened := make([]byte, 0, state.PickCount*len(numberSets))
	for _, numbers := range numberSets {
		sorted, err := ValidateNumbers(numbers, state.PickCount, state.NumberRange)
		if err != nil {
			return ledger.Ticket{}, err
		}
		flattened = append(flattened, sorted...)
	}

	// All-or-nothing: apply N fee splits only after every set validates.
	var lastState ledger.GameState = state
	for i := 0; i < len(numberSets); i++ {
		split, err := ledger.ComputeFeeSplit(lastState.TicketPrice, lastState.JackpotBalance)
		if err != nil {
			return ledger.Ticket{}, err
		}
		lastState, err = e.ledger.ApplyPurchase(ctx, gameID, split)
		if err != nil {
			return ledger.Ticket{}, err
		}
	}

	t := ledger.Ticket{
		Owner:         buyer,
		GameID:        gameID,
		DrawID:        lastState.CurrentDrawID,
		Kind:          ledger.TicketBulk,
		StartTicketID: lastState.TotalTicketsSold - uint64(len(numberSets)) + 1,
		TicketCount:   uint64(len(numberSets)),
		NumbersVec:    flattened,
		IsClaimedVec:  make([]bool, len(numberSets)),
		PurchaseTS:    time.Now().UTC(),
	}
	created, err := e.ledger.Store().CreateTicket(ctx, t)
	if err != nil {
		return ledger.Ticket{}, err
	}

	if err := e.ledger.Store().DebitWallet(ctx, buyer, totalCost); err != nil {
		return ledger.Ticket{}, err
	}

	if err := e.recordSpend(ctx, gameID, buyer, totalCost); err != nil {
		return ledger.Ticket{}, err
	}

	return created, nil
}

// RedeemFreeTicket consumes one Match-2 credit for a free Main ticket. Only
// valid for the Main game, per spec.md §6.
func (e *Engine) RedeemFreeTicket(ctx context.Context, buyer string, numbers []int) (ledger.Ticket, error) {
	stats, err := e.ledger.Store().GetUserStats(ctx, ledger.GameMain, buyer)
	if err != nil {
		return ledger.Ticket{}, err
	}
	if stats.Match2Credits == 0 {
		return ledger.Ticket{}, fmt.Errorf("%w: no match-2 credits available", protoerr.ErrInsufficientFunds)
	}

	state, err := e.ledger.Load(ctx, ledger.GameMain)
	if err != nil {
		return ledger.Ticket{}, err
	}
	if err := requireOpenAndFunded(state); err != nil {
		return ledger.Ticket{}, err
	}

	sortedNumbers, err := ValidateNumbers(numbers, state.PickCount, state.NumberRange)
	if err != nil {
		return ledger.Ticket{}, err
	}

	// A free ticket still needs a fresh record bound to the current draw,
	// but does not touch the pool accounts: the credit was already paid
	// for out of a prior ticket's face value.
	state.TotalTicketsSold++
	state.CurrentDrawTickets++
	if err := e.ledger.SaveGame(ctx, state); err != nil {
		return ledger.Ticket{}, err
	}

	t := ledger.Ticket{
		Owner:      buyer,
		GameID:     ledger.GameMain,
		DrawID:     state.CurrentDrawID,
		Kind:       ledger.TicketSingle,
		Numbers:    sortedNumbers,
		PurchaseTS: time.Now().UTC(),
	}
	created, err := e.ledger.Store().CreateTicket(ctx, t)
	if err != nil {
		return ledger.Ticket{}, err
	}

	stats.Match2Credits--
	if err := e.ledger.Store().SaveUserStats(ctx, stats); err != nil {
		return ledger.Ticket{}, err
	}

	return created, nil
}

func (e *Engine) checkGateable(ctx context.Context, state ledger.GameState, buyer string) error {
	if err := requireOpenAndFunded(state); err != nil {
		return err
	}
	if state.GameID == ledger.GameQuickPick {
		mainStats, err := e.ledger.Store().GetUserStats(ctx, ledger.GameMain, buyer)
		if err != nil {
			return err
		}
		if mainStats.TotalSpent < ledger.QPSpendGateMicroUnits {
			return protoerr.ErrSpendGateNotMet
		}
	}
	return nil
}

// checkSufficientFunds enforces spec.md §4.2's "buyer has sufficient token
// balance for N x ticket_price" purchase precondition. The actual debit
// happens only after the ticket record is created, so a later failure never
// leaves a buyer charged for a purchase that didn't go through.
func (e *Engine) checkSufficientFunds(ctx context.Context, buyer string, totalCost uint64) error {
	balance, err := e.ledger.Store().GetWalletBalance(ctx, buyer)
	if err != nil {
		return err
	}
	if balance < totalCost {
		return fmt.Errorf("%w: have %d, need %d", protoerr.ErrInsufficientFunds, balance, totalCost)
	}
	return nil
}

func requireOpenAndFunded(state ledger.GameState) error {
	if state.IsPaused {
		return protoerr.ErrPaused
	}
	if !state.IsFunded {
		return protoerr.ErrNotFunded
	}
	if state.Phase != ledger.PhaseOpen {
		return protoerr.ErrInvalidPhase
	}
	return nil
}

func (e *Engine) recordSpend(ctx context.Context, gameID ledger.GameID, buyer string, amount uint64) error {
	stats, err := e.ledger.Store().GetUserStats(ctx, gameID, buyer)
	if err != nil {
		return err
	}
	stats.GameID = gameID
	stats.AccountID = buyer
	stats.TotalTickets++
	stats.TotalSpent += amount
	return e.ledger.Store().SaveUserStats(ctx, stats)
}
