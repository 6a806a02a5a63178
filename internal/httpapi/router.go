// Package httpapi exposes the read-only HTTP surface of spec.md §6: game
// state, next-draw timing, fee schedule, jackpot balance, rolldown
// eligibility, and draw-record/ticket/user-stats lookups. It is the first
// concrete home for gin-gonic/gin, declared in the teacher's go.mod but
// unexercised by any file in the retrieval pack.
package httpapi

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/rolldown-labs/lottery-protocol/internal/ledger"
	"github.com/rolldown-labs/lottery-protocol/internal/logging"
	"github.com/rolldown-labs/lottery-protocol/internal/protoerr"
)

// Server exposes read endpoints over a *ledger.Ledger. It never mutates
// state; all writes go through the operator daemon or the ticket engine.
type Server struct {
	ledger *ledger.Ledger
	log    *logging.Logger
	engine *gin.Engine
	limit  *rateLimiter
}

// New constructs a Server and registers its routes. Reads are throttled to
// requestsPerSecond per client IP with the given burst, grounded on the
// teacher's internal/middleware.RateLimiter.
func New(l *ledger.Ledger, log *logging.Logger, requestsPerSecond, burst int) *Server {
	engine := gin.New()
	engine.Use(gin.Recovery())

	s := &Server{ledger: l, log: log, engine: engine, limit: newRateLimiter(requestsPerSecond, burst, log)}
	engine.Use(s.limit.middleware())
	s.registerRoutes()
	return s
}

// Handler returns the underlying http.Handler for use with http.Server.
func (s *Server) Handler() http.Handler {
	return s.engine
}

func (s *Server) registerRoutes() {
	s.engine.GET("/healthz", s.handleHealthz)
	g := s.engine.Group("/v1/games/:game")
	g.GET("/state", s.handleGameState)
	g.GET("/draws/:draw_id", s.handleDrawRecord)
	g.GET("/tickets/:ticket_id", s.handleTicket)
	g.GET("/users/:account_id/stats", s.handleUserStats)
}

func (s *Server) handleHealthz(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func parseGameID(c *gin.Context) (ledger.GameID, bool) {
	switch c.Param("game") {
	case "main":
		return ledger.GameMain, true
	case "quickpick":
		return ledger.GameQuickPick, true
	default:
		c.JSON(http.StatusNotFound, gin.H{"error": "unknown game"})
		return "", false
	}
}

// gameStateView is the JSON projection of ledger.GameState exposed
// publicly; it omits RandomnessHandle, which is internal bookkeeping.
type gameStateView struct {
	GameID             string `json:"game_id"`
	CurrentDrawID      uint64 `json:"current_draw_id"`
	NextDrawTS         int64  `json:"next_draw_ts"`
	Phase              string `json:"phase"`
	TicketPrice        uint64 `json:"ticket_price"`
	HouseFeeBps        uint64 `json:"house_fee_bps"`
	JackpotBalance     uint64 `json:"jackpot_balance"`
	ReserveBalance     uint64 `json:"reserve_balance"`
	InsuranceBalance   uint64 `json:"insurance_balance"`
	SoftCap            uint64 `json:"soft_cap"`
	HardCap            uint64 `json:"hard_cap"`
	RolldownEligible   bool   `json:"rolldown_eligible"`
	RolldownActive     bool   `json:"rolldown_active"`
	CurrentDrawTickets uint64 `json:"current_draw_tickets"`
	IsFunded           bool   `json:"is_funded"`
	IsPaused           bool   `json:"is_paused"`
}

func (s *Server) handleGameState(c *gin.Context) {
	gameID, ok := parseGameID(c)
	if !ok {
		return
	}
	state, err := s.ledger.Load(c.Request.Context(), gameID)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, gameStateView{
		GameID:             string(state.GameID),
		CurrentDrawID:      state.CurrentDrawID,
		NextDrawTS:         state.NextDrawTS,
		Phase:              string(state.Phase),
		TicketPrice:        state.TicketPrice,
		HouseFeeBps:        state.HouseFeeBps,
		JackpotBalance:     state.JackpotBalance,
		ReserveBalance:     state.ReserveBalance,
		InsuranceBalance:   state.InsuranceBalance,
		SoftCap:            state.SoftCap,
		HardCap:            state.HardCap,
		RolldownEligible:   state.JackpotBalance >= state.SoftCap,
		RolldownActive:     state.RolldownActive,
		CurrentDrawTickets: state.CurrentDrawTickets,
		IsFunded:           state.IsFunded,
		IsPaused:           state.IsPaused,
	})
}

type drawRecordView struct {
	DrawID              uint64            `json:"draw_id"`
	WinningNumbers      []byte            `json:"winning_numbers"`
	RolldownWasActive   bool              `json:"rolldown_was_active"`
	PoolAllocated       uint64            `json:"pool_allocated"`
	TierWinnerCount     map[int]uint64    `json:"tier_winner_count"`
	TierPerWinnerAmount map[int]uint64    `json:"tier_per_winner_amount,omitempty"`
	TierPool            map[int]uint64    `json:"tier_pool,omitempty"`
	VerificationHash    string            `json:"verification_hash"`
}

func (s *Server) handleDrawRecord(c *gin.Context) {
	gameID, ok := parseGameID(c)
	if !ok {
		return
	}
	drawID, err := strconv.ParseUint(c.Param("draw_id"), 10, 64)
	if err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid draw_id"})
		return
	}
	rec, err := s.ledger.Store().GetDrawRecord(c.Request.Context(), gameID, drawID)
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, drawRecordView{
		DrawID:              rec.DrawID,
		WinningNumbers:      rec.WinningNumbers,
		RolldownWasActive:   rec.RolldownWasActive,
		PoolAllocated:       rec.PoolAllocated,
		TierWinnerCount:     rec.TierWinnerCount,
		TierPerWinnerAmount: rec.TierPerWinnerAmount,
		TierPool:            rec.TierPool,
		VerificationHash:    hashHex(rec.VerificationHash),
	})
}

type ticketView struct {
	ID         string `json:"id"`
	Owner      string `json:"owner"`
	DrawID     uint64 `json:"draw_id"`
	IsClaimed  bool   `json:"is_claimed"`
	PurchaseTS int64  `json:"purchase_ts"`
}

func (s *Server) handleTicket(c *gin.Context) {
	gameID, ok := parseGameID(c)
	if !ok {
		return
	}
	t, err := s.ledger.Store().GetTicket(c.Request.Context(), gameID, c.Param("ticket_id"))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, ticketView{
		ID:         t.ID,
		Owner:      t.Owner,
		DrawID:     t.DrawID,
		IsClaimed:  t.IsClaimed,
		PurchaseTS: t.PurchaseTS.Unix(),
	})
}

func (s *Server) handleUserStats(c *gin.Context) {
	gameID, ok := parseGameID(c)
	if !ok {
		return
	}
	stats, err := s.ledger.Store().GetUserStats(c.Request.Context(), gameID, c.Param("account_id"))
	if err != nil {
		writeErr(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func writeErr(c *gin.Context, err error) {
	switch {
	case isNotFound(err):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		c.JSON(http.StatusInternalServerError, gin.H{"error": err.Error()})
	}
}

func isNotFound(err error) bool {
	return err == protoerr.ErrNotFound
}

func hashHex(h [32]byte) string {
	const hexDigits = "0123456789abcdef"
	out := make([]byte, 64)
	for i, b := range h {
		out[i*2] = hexDigits[b>>4]
		out[i*2+1] = hexDigits[b&0x0f]
	}
	return string(out)
}
