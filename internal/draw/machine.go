// Package draw implements the five-phase draw state machine of spec.md
// §4.3 (Open -> Committed -> Executed -> Indexed -> Finalized -> Open),
// generalized from lottery.Service's runDrawCycle into a game-parameterized
// Machine any caller (a scheduled bot, an HTTP admin endpoint, a test) can
// drive one step at a time.
package draw

import (
	"context"
	"fmt"

	"github.com/rolldown-labs/lottery-protocol/internal/indexer"
	"github.com/rolldown-labs/lottery-protocol/internal/ledger"
	"github.com/rolldown-labs/lottery-protocol/internal/protoerr"
	"github.com/rolldown-labs/lottery-protocol/internal/randomness"
	"github.com/rolldown-labs/lottery-protocol/internal/settlement"
)

// Clock abstracts wall-clock/slot time so tests can drive the machine
// deterministically, mirroring the teacher's clock-injection pattern in
// service_test.go.
type Clock interface {
	NowUnix() int64
	CurrentSlot() uint64
}

// Machine drives one game's draw lifecycle. It holds no game-specific
// state itself; every method loads and saves GameState via the Ledger.
type Machine struct {
	ledger *ledger.Ledger
	rng    randomness.Adapter
	clock  Clock
}

// New constructs a Machine over the given Ledger, randomness Adapter, and
// Clock.
func New(l *ledger.Ledger, rng randomness.Adapter, clock Clock) *Machine {
	return &Machine{ledger: l, rng: rng, clock: clock}
}

// CommitDraw implements spec.md §4.3's commit_draw: only legal from Open,
// only at or after next_draw_ts, and only once per draw cycle. It requests
// a randomness handle bound to the following slot and advances the phase
// to Committed.
func (m *Machine) CommitDraw(ctx context.Context, gameID ledger.GameID, queueID string) (ledger.GameState, error) {
	state, err := m.ledger.Load(ctx, gameID)
	if err != nil {
		return ledger.GameState{}, err
	}
	if state.Phase != ledger.PhaseOpen {
		return ledger.GameState{}, fmt.Errorf("%w: have %s want %s", protoerr.ErrInvalidPhase, state.Phase, ledger.PhaseOpen)
	}
	if state.IsPaused {
		return ledger.GameState{}, protoerr.ErrPaused
	}
	now := m.clock.NowUnix()
	if now < state.NextDrawTS {
		return ledger.GameState{}, fmt.Errorf("%w: next draw at %d, now %d", protoerr.ErrDrawNotReady, state.NextDrawTS, now)
	}

	slot := m.clock.CurrentSlot()
	handle, err := m.rng.Commit(ctx, queueID, slot)
	if err != nil {
		return ledger.GameState{}, err
	}

	state.Phase = ledger.PhaseCommitted
	state.CommitSlot = slot
	state.CommitTS = now
	state.RandomnessHandle = encodeHandle(handle)

	if err := m.ledger.SaveGame(ctx, state); err != nil {
		return ledger.GameState{}, err
	}
	return state, nil
}

// ExecuteDraw implements spec.md §4.3's execute_draw: only legal from
// Committed. It reveals the committed handle, rejecting with
// RandomnessNotReady/RandomnessExpired per the freshness rule
// handle.SeedSlot == currentSlot-1, derives the winning numbers, and
// advances the phase to Executed. Rolldown eligibility is NOT evaluated
// here (that happens at FinalizeDraw, once the indexer has reported the
// top-tier winner count — spec.md §4.3.2).
func (m *Machine) ExecuteDraw(ctx context.Context, gameID ledger.GameID) (ledger.GameState, [32]byte, error) {
	state, err := m.ledger.Load(ctx, gameID)
	if err != nil {
		return ledger.GameState{}, [32]byte{}, err
	}
	if state.Phase != ledger.PhaseCommitted {
		return ledger.GameState{}, [32]byte{}, fmt.Errorf("%w: have %s want %s", protoerr.ErrInvalidPhase, state.Phase, ledger.PhaseCommitted)
	}

	handle, err := decodeHandle(state.RandomnessHandle)
	if err != nil {
		return ledger.GameState{}, [32]byte{}, err
	}

	slot := m.clock.CurrentSlot()
	result, err := m.rng.Reveal(ctx, handle, slot)
	if err != nil {
		return ledger.GameState{}, [32]byte{}, err
	}
	switch result.Status {
	case randomness.RevealNotYetRevealed:
		return ledger.GameState{}, [32]byte{}, protoerr.ErrRandomnessNotReady
	case randomness.RevealExpired:
		return ledger.GameState{}, [32]byte{}, protoerr.ErrRandomnessExpired
	}

	winning := DeriveWinningNumbers(result.Seed, state.PickCount, state.NumberRange)

	state.Phase = ledger.PhaseExecuted
	state.WinningNumbers = winning

	if err := m.ledger.SaveGame(ctx, state); err != nil {
		return ledger.GameState{}, [32]byte{}, err
	}
	return state, result.Seed, nil
}

// IndexDraw implements spec.md §4.3's index_draw / verification-hash gate:
// only legal from Executed. It scans every ticket sold for the draw via
// the indexer, runs the plausibility guard, and advances to Indexed only
// if the guard passes. The caller is expected to separately submit the
// indexer's VerificationHash on-chain and have the chain recompute and
// compare it bit-for-bit before accepting the result (spec.md §4.5); this
// method performs the off-chain half of that gate.
func (m *Machine) IndexDraw(ctx context.Context, gameID ledger.GameID, nonce uint64, tierProbs []TierProbability) (ledger.GameState, indexer.ScanResult, error) {
	state, err := m.ledger.Load(ctx, gameID)
	if err != nil {
		return ledger.GameState{}, indexer.ScanResult{}, err
	}
	if state.Phase != ledger.PhaseExecuted {
		return ledger.GameState{}, indexer.ScanResult{}, fmt.Errorf("%w: have %s want %s", protoerr.ErrInvalidPhase, state.Phase, ledger.PhaseExecuted)
	}

	scan, err := indexer.Scan(ctx, m.ledger.Store(), gameID, state.CurrentDrawID, state.WinningNumbers, nonce, state.PickCount)
	if err != nil {
		return ledger.GameState{}, indexer.ScanResult{}, err
	}

	if err := CheckPlausibility(scan.TierCounts, tierProbs, scan.TotalTicketsScanned); err != nil {
		return ledger.GameState{}, indexer.ScanResult{}, err
	}

	state.Phase = ledger.PhaseIndexed
	if err := m.ledger.SaveGame(ctx, state); err != nil {
		return ledger.GameState{}, indexer.ScanResult{}, err
	}
	return state, scan, nil
}

// FinalizeSubmission is the authority-submitted payload for finalize_draw,
// exactly the `(per_tier_counts, nonce, verification_hash)` triple of
// spec.md §6's finalize_draw signature. TotalTicketsScanned rides along
// for the plausibility guard (§4.3.3), which finalize_draw re-runs
// authoritatively alongside the hash check (§4.3 line 122).
type FinalizeSubmission struct {
	TierCounts          indexer.TierCounts
	Nonce               uint64
	VerificationHash    [32]byte
	TotalTicketsScanned uint64
}

// FinalizeDraw implements spec.md §4.3's finalize_draw: only legal from
// Indexed. Per spec.md §4.3/§4.5, the authority submits counts/nonce/hash
// as untrusted input; this method recomputes VerificationHash from its own
// view of (draw_id, winning_numbers) plus the submitted (tier_counts,
// nonce) and rejects with ErrVerificationHashMismatch on any mismatch,
// with no state change (no save happens before this check). The
// plausibility guard (§4.3.3) is re-run here as the authoritative gate,
// rejecting with no state change as well. Only once both pass does this
// decide rolldown eligibility (spec.md §4.3.2 is explicit that rolldown is
// evaluated here, using the top-tier winner count the indexer reported,
// not at execute_draw), run settlement, write the DrawRecord, update pool
// balances, and cycle the game back to Open with its draw_id incremented
// and timers reset.
func (m *Machine) FinalizeDraw(ctx context.Context, gameID ledger.GameID, sub FinalizeSubmission, tierProbs []TierProbability, revealedSeed [32]byte) (ledger.GameState, ledger.DrawRecord, error) {
	state, err := m.ledger.Load(ctx, gameID)
	if err != nil {
		return ledger.GameState{}, ledger.DrawRecord{}, err
	}
	if state.Phase != ledger.PhaseIndexed {
		return ledger.GameState{}, ledger.DrawRecord{}, fmt.Errorf("%w: have %s want %s", protoerr.ErrInvalidPhase, state.Phase, ledger.PhaseIndexed)
	}

	recomputed := indexer.VerificationHash(gameID, state.CurrentDrawID, state.WinningNumbers, sub.TierCounts, sub.Nonce)
	if recomputed != sub.VerificationHash {
		return ledger.GameState{}, ledger.DrawRecord{}, protoerr.ErrVerificationHashMismatch
	}
	if err := CheckPlausibility(sub.TierCounts, tierProbs, sub.TotalTicketsScanned); err != nil {
		return ledger.GameState{}, ledger.DrawRecord{}, err
	}

	topTier := topTierFor(gameID)
	var bern [4]byte
	copy(bern[:], revealedSeed[24:28])
	decision := EvaluateRolldown(int(sub.TierCounts[topTier]), state.JackpotBalance, state.SoftCap, state.HardCap, BernoulliFromBytes(bern))

	env := settlement.Settle(gameID, state, sub.TierCounts, decision.Active)

	rec := ledger.DrawRecord{
		GameID:              gameID,
		DrawID:              state.CurrentDrawID,
		WinningNumbers:      state.WinningNumbers,
		RolldownWasActive:   decision.Active,
		PoolAllocated:       env.PoolAllocated,
		TierWinnerCount:     env.TierWinnerCount,
		TierPerWinnerAmount: env.TierPerWinnerAmount,
		TierPool:            env.TierPool,
		Nonce:               sub.Nonce,
		VerificationHash:    sub.VerificationHash,
		IsSettled:           true,
	}
	if err := m.ledger.RecordDraw(ctx, rec); err != nil {
		return ledger.GameState{}, ledger.DrawRecord{}, err
	}

	state.JackpotBalance = env.NewJackpotBalance
	state.ReserveBalance = env.NewReserveBalance
	state.InsuranceBalance = env.NewInsuranceBalance
	state.TotalPrizesPaid += env.PoolAllocated
	state.RolldownActive = decision.Active
	state.Phase = ledger.PhaseOpen
	state.CurrentDrawID++
	state.NextDrawTS += state.DrawIntervalS
	state.CurrentDrawTickets = 0
	state.RandomnessHandle = nil
	state.WinningNumbers = nil

	if err := m.ledger.SaveGame(ctx, state); err != nil {
		return ledger.GameState{}, ledger.DrawRecord{}, err
	}
	return state, rec, nil
}

// AbortDraw returns a game from Committed or Executed back to Open without
// settling anything, used when an operator detects an unrecoverable
// randomness or indexer failure and must resume the cycle at the next
// scheduled draw time rather than retry indefinitely (spec.md §6 exit code
// 2/3 paths). The draw_id is NOT incremented since no draw occurred.
func (m *Machine) AbortDraw(ctx context.Context, gameID ledger.GameID) (ledger.GameState, error) {
	state, err := m.ledger.Load(ctx, gameID)
	if err != nil {
		return ledger.GameState{}, err
	}
	if state.Phase != ledger.PhaseCommitted && state.Phase != ledger.PhaseExecuted {
		return ledger.GameState{}, fmt.Errorf("%w: cannot abort from %s", protoerr.ErrInvalidPhase, state.Phase)
	}

	state.Phase = ledger.PhaseOpen
	state.NextDrawTS += state.DrawIntervalS
	state.CommitSlot = 0
	state.CommitTS = 0
	state.RandomnessHandle = nil
	state.WinningNumbers = nil

	if err := m.ledger.SaveGame(ctx, state); err != nil {
		return ledger.GameState{}, err
	}
	return state, nil
}

func topTierFor(gameID ledger.GameID) int {
	if gameID == ledger.GameQuickPick {
		return ledger.QPPickCount
	}
	return ledger.MainPickCount
}

// encodeHandle/decodeHandle give GameState.RandomnessHandle a stable wire
// form (uuid string length-prefixed, then the seed slot) so it can be
// persisted through a Store that only knows about byte slices.
func encodeHandle(h randomness.Handle) []byte {
	idBytes := []byte(h.ID)
	buf := make([]byte, 0, 1+len(idBytes)+8)
	buf = append(buf, byte(len(idBytes)))
	buf = append(buf, idBytes...)
	buf = appendLE8(buf, h.SeedSlot)
	return buf
}

func decodeHandle(b []byte) (randomness.Handle, error) {
	if len(b) < 1 {
		return randomness.Handle{}, protoerr.ErrRandomnessHandleMismatch
	}
	n := int(b[0])
	if len(b) < 1+n+8 {
		return randomness.Handle{}, protoerr.ErrRandomnessHandleMismatch
	}
	id := string(b[1 : 1+n])
	slot := le8(b[1+n : 1+n+8])
	return randomness.Handle{ID: id, SeedSlot: slot}, nil
}

func appendLE8(buf []byte, v uint64) []byte {
	var b [8]byte
	for i := 0; i < 8; i++ {
		b[i] = byte(v >> (8 * i))
	}
	return append(buf, b[:]...)
}

func le8(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8; i++ {
		v |= uint64(b[i]) << (8 * i)
	}
	return v
}
