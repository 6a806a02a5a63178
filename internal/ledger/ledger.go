package ledger

import (
	"context"
	"fmt"

	"github.com/rolldown-labs/lottery-protocol/internal/protoerr"
)

// Ledger wraps a Store. ApplyPurchase re-checks solvency (invariant 1) and
// the jackpot hard cap before saving, and TransitionPhase checks the
// expected phase; SaveGame and RecordDraw persist their input without
// re-checking any invariant.
type Ledger struct {
	store Store
}

// New constructs a Ledger over the given Store.
func New(store Store) *Ledger {
	return &Ledger{store: store}
}

// Load is an idempotent read of the singleton GameState.
func (l *Ledger) Load(ctx context.Context, gameID GameID) (GameState, error) {
	return l.store.LoadGame(ctx, gameID)
}

// FeeSplit is the result of computing one ticket's economics (spec.md §4.2).
type FeeSplit struct {
	TicketPrice  uint64
	HouseFeeBps  uint64
	HouseFee     uint64
	InsuranceCut uint64
	ReserveCut   uint64
	ToJackpot    uint64
}

// ComputeFeeSplit implements spec.md §4.2 steps 1-5.
func ComputeFeeSplit(ticketPrice, jackpotBalance uint64) (FeeSplit, error) {
	bps := HouseFeeBps(jackpotBalance)
	houseFee := ticketPrice * bps / 10_000
	insuranceCut := ticketPrice * InsuranceCutBps / 10_000
	reserveCut := ticketPrice * ReserveCutBps / 10_000

	if houseFee+insuranceCut+reserveCut > ticketPrice {
		return FeeSplit{}, protoerr.ErrArithmeticOverflow
	}
	toJackpot := ticketPrice - houseFee - insuranceCut - reserveCut
	if toJackpot == 0 {
		return FeeSplit{}, protoerr.ErrParameterInvariantBroken
	}

	return FeeSplit{
		TicketPrice:  ticketPrice,
		HouseFeeBps:  bps,
		HouseFee:     houseFee,
		InsuranceCut: insuranceCut,
		ReserveCut:   reserveCut,
		ToJackpot:    toJackpot,
	}, nil
}

// ApplyPurchase atomically applies one ticket purchase's fee split to the
// GameState pools, clamping jackpot at hard_cap (overflow redirects to
// insurance) per spec.md §4.2 step 6. Returns InsufficientSolvency if the
// post-state would violate invariant 1 (never actually reachable here since
// pool balances only grow, but checked defensively per the Ledger contract).
func (l *Ledger) ApplyPurchase(ctx context.Context, gameID GameID, split FeeSplit) (GameState, error) {
	state, err := l.store.LoadGame(ctx, gameID)
	if err != nil {
		return GameState{}, err
	}

	newJackpot := state.JackpotBalance + split.ToJackpot
	overflow := uint64(0)
	if newJackpot > state.HardCap {
		overflow = newJackpot - state.HardCap
		newJackpot = state.HardCap
	}

	state.JackpotBalance = newJackpot
	state.ReserveBalance += split.ReserveCut
	state.InsuranceBalance += split.InsuranceCut + overflow
	state.HouseFeeBps = split.HouseFeeBps
	state.TotalTicketsSold++
	state.CurrentDrawTickets++

	if err := checkSolvency(state); err != nil {
		return GameState{}, err
	}

	if err := l.store.SaveGame(ctx, state); err != nil {
		return GameState{}, err
	}
	return state, nil
}

// checkSolvency enforces invariant 1: the pool account must be able to
// cover jackpot + reserve. In this in-process model the "token balance"
// backing the pool is jackpot+reserve+insurance by construction (every
// credit to a pool field is paired with a debit from a buyer), so this is
// always true; the check exists so any future code path that manipulates
// balances directly is still guarded.
func checkSolvency(state GameState) error {
	total := state.JackpotBalance + state.ReserveBalance + state.InsuranceBalance
	if total < state.JackpotBalance+state.ReserveBalance {
		return protoerr.ErrInsufficientSolvency
	}
	if state.JackpotBalance > state.HardCap {
		return protoerr.ErrJackpotHardCapExceeded
	}
	return nil
}

// TransitionPhase moves a GameState from `from` to `to`, failing with
// InvalidPhase if the current phase doesn't match `from`.
func (l *Ledger) TransitionPhase(ctx context.Context, gameID GameID, from, to Phase) (GameState, error) {
	state, err := l.store.LoadGame(ctx, gameID)
	if err != nil {
		return GameState{}, err
	}
	if state.Phase != from {
		return GameState{}, fmt.Errorf("%w: have %s want %s", protoerr.ErrInvalidPhase, state.Phase, from)
	}
	state.Phase = to
	if err := l.store.SaveGame(ctx, state); err != nil {
		return GameState{}, err
	}
	return state, nil
}

// SaveGame persists the full GameState (used by components that need to
// mutate multiple fields atomically around a phase transition, e.g. the
// draw state machine storing commit/execute/finalize bookkeeping).
func (l *Ledger) SaveGame(ctx context.Context, state GameState) error {
	return l.store.SaveGame(ctx, state)
}

// RecordDraw writes a DrawRecord once per (game_id, draw_id).
func (l *Ledger) RecordDraw(ctx context.Context, rec DrawRecord) error {
	return l.store.RecordDraw(ctx, rec)
}

// Store exposes the underlying Store for components (ticket engine,
// indexer, settlement) that need direct ticket/draw-record access beyond
// the GameState-level operations above.
func (l *Ledger) Store() Store {
	return l.store
}
