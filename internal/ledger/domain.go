// Package ledger holds the authoritative per-game state record, the three
// token-holding pool accounts, and the per-draw/per-ticket/per-user records
// described in spec.md §3.
package ledger

import "time"

// GameID identifies which of the two parallel games a record belongs to.
type GameID string

const (
	GameMain      GameID = "main"
	GameQuickPick GameID = "quickpick"
)

// Phase is the draw lifecycle state of a GameState.
type Phase string

const (
	PhaseOpen      Phase = "open"
	PhaseCommitted Phase = "committed"
	PhaseExecuted  Phase = "executed"
	PhaseIndexed   Phase = "indexed"
	PhaseFinalized Phase = "finalized"
)

// Main-game parameters (spec.md §3).
const (
	MainDrawIntervalS = 86_400
	MainPickCount     = 6
	MainNumberRange   = 46
	MainTicketPrice   = 2_500_000

	QPDrawIntervalS = 14_400
	QPPickCount     = 5
	QPNumberRange   = 35
	QPTicketPrice   = 1_500_000

	// QuickPick purchases require the wallet's Main lifetime spend to be
	// at least this many micro-units ($50).
	QPSpendGateMicroUnits = 50_000_000
)

// House-fee tier table (spec.md §4.2 step 1). Thresholds are in micro-units.
const (
	FeeTierThreshold1 = 500_000_000_000  // $500k
	FeeTierThreshold2 = 1_000_000_000_000 // $1M
	FeeTierThreshold3 = 1_500_000_000_000 // $1.5M

	FeeBpsTier0 = 2800
	FeeBpsTier1 = 3200
	FeeBpsTier2 = 3600
	FeeBpsTier3 = 4000

	InsuranceCutBps = 200 // 2%
	ReserveCutBps   = 300 // 3%
)

// HouseFeeBps is the deterministic tier-table lookup on jackpot_balance
// required by spec.md invariant 2 and testable property 2.
func HouseFeeBps(jackpotBalance uint64) uint64 {
	switch {
	case jackpotBalance < FeeTierThreshold1:
		return FeeBpsTier0
	case jackpotBalance < FeeTierThreshold2:
		return FeeBpsTier1
	case jackpotBalance < FeeTierThreshold3:
		return FeeBpsTier2
	default:
		return FeeBpsTier3
	}
}

// GameState is the singleton authoritative record for one game.
type GameState struct {
	Authority     string
	GameID        GameID
	CurrentDrawID uint64
	NextDrawTS    int64
	DrawIntervalS int64
	PickCount     int
	NumberRange   int
	TicketPrice   uint64
	HouseFeeBps   uint64

	JackpotBalance  uint64
	ReserveBalance  uint64
	InsuranceBalance uint64
	SeedAmount      uint64
	SoftCap         uint64
	HardCap         uint64

	Phase            Phase
	CommitSlot       uint64
	CommitTS         int64
	RandomnessHandle []byte
	WinningNumbers   []byte
	RolldownActive   bool

	TotalTicketsSold   uint64
	TotalPrizesPaid    uint64
	CurrentDrawTickets uint64

	IsFunded bool
	IsPaused bool
}

// TicketKind tags which physical representation a Ticket record uses.
type TicketKind int

const (
	TicketSingle TicketKind = iota
	TicketBulk
)

// Ticket is a purchased lottery ticket. Single tickets carry one set of
// Numbers; bulk tickets carry NumbersVec, a flattened PickCount*TicketCount
// byte slice starting at StartTicketID, per spec.md §3.
type Ticket struct {
	ID            string
	Owner         string
	GameID        GameID
	DrawID        uint64
	Kind          TicketKind
	Numbers       []byte // single: len == pick_count
	StartTicketID uint64 // bulk
	TicketCount   uint64 // bulk
	NumbersVec    []byte // bulk: len == pick_count * ticket_count

	IsClaimed bool
	// IsClaimedVec tracks per-sub-ticket claim state for a bulk record,
	// indexed [0, TicketCount).
	IsClaimedVec []bool

	PurchaseTS time.Time
}

// NumbersAt returns the sorted number set for sub-ticket i (0 for a single
// ticket, [0, TicketCount) for a bulk ticket).
func (t *Ticket) NumbersAt(i int, pickCount int) []byte {
	if t.Kind == TicketSingle {
		return t.Numbers
	}
	start := i * pickCount
	return t.NumbersVec[start : start+pickCount]
}

// PrizeTier is a per-game prize tier, keyed by match count.
type PrizeTier struct {
	MatchCount int
	// FixedAmount is the fixed per-winner payout for Normal mode. Zero for
	// the top tier, which is paid from the jackpot instead.
	FixedAmount uint64
	// RolldownShareBps is this tier's share of the rolldown pool in bps,
	// used only in Rolldown mode.
	RolldownShareBps uint64
}

// DrawRecord is the immutable (post-settlement) record of one finalized draw.
type DrawRecord struct {
	GameID             GameID
	DrawID             uint64
	WinningNumbers     []byte
	RolldownWasActive  bool
	PoolAllocated      uint64
	TierWinnerCount    map[int]uint64
	TierPerWinnerAmount map[int]uint64 // both modes
	TierPool           map[int]uint64 // pari-mutuel tiers only
	Nonce              uint64
	VerificationHash   [32]byte
	IsSettled          bool
}

// UserStats are lifetime per-wallet, per-game counters (spec.md §3).
type UserStats struct {
	AccountID     string
	GameID        GameID
	TotalTickets  uint64
	TotalSpent    uint64
	TotalWon      uint64
	Match2Credits uint64 // Main only
}
