// Package postgres implements ledger.Store against PostgreSQL via
// database/sql + lib/pq for writes and jmoiron/sqlx for the read-heavy
// list queries, grounded on the teacher's internal/app/runtime.openDatabase
// connection-pool setup and internal/database's sqlx-backed repositories.
package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"
	"github.com/jmoiron/sqlx"

	"github.com/rolldown-labs/lottery-protocol/internal/ledger"
	"github.com/rolldown-labs/lottery-protocol/internal/protoerr"
)

// Config mirrors config.DatabaseConfig's shape for the connection pool.
type Config struct {
	DSN             string
	MaxOpenConns    int
	MaxIdleConns    int
	ConnMaxLifetime time.Duration
}

// Store is a PostgreSQL-backed ledger.Store.
type Store struct {
	db *sqlx.DB
}

// Open opens and pings a connection pool, matching
// runtime.openDatabase's pool-tuning and startup-ping behavior.
func Open(ctx context.Context, cfg Config) (*Store, error) {
	if cfg.DSN == "" {
		return nil, fmt.Errorf("database dsn not configured")
	}
	db, err := sqlx.Open("postgres", cfg.DSN)
	if err != nil {
		return nil, err
	}
	if cfg.MaxOpenConns > 0 {
		db.SetMaxOpenConns(cfg.MaxOpenConns)
	}
	if cfg.MaxIdleConns > 0 {
		db.SetMaxIdleConns(cfg.MaxIdleConns)
	}
	if cfg.ConnMaxLifetime > 0 {
		db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
	}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := db.PingContext(pingCtx); err != nil {
		db.Close()
		return nil, err
	}
	return &Store{db: db}, nil
}

// Close releases the underlying connection pool.
func (s *Store) Close() error {
	return s.db.Close()
}

func mapErr(err error) error {
	if err == sql.ErrNoRows {
		return protoerr.ErrNotFound
	}
	return err
}

// --- GameState ---

const gameStateColumns = `game_id, authority, current_draw_id, next_draw_ts, draw_interval_s,
	pick_count, number_range, ticket_price, house_fee_bps, jackpot_balance,
	reserve_balance, insurance_balance, seed_amount, soft_cap, hard_cap,
	phase, commit_slot, commit_ts, randomness_handle, winning_numbers,
	rolldown_active, total_tickets_sold, total_prizes_paid,
	current_draw_tickets, is_funded, is_paused`

type gameStateRow struct {
	GameID             string `db:"game_id"`
	Authority          string `db:"authority"`
	CurrentDrawID      uint64 `db:"current_draw_id"`
	NextDrawTS         int64  `db:"next_draw_ts"`
	DrawIntervalS      int64  `db:"draw_interval_s"`
	PickCount          int    `db:"pick_count"`
	NumberRange        int    `db:"number_range"`
	TicketPrice        uint64 `db:"ticket_price"`
	HouseFeeBps        uint64 `db:"house_fee_bps"`
	JackpotBalance     uint64 `db:"jackpot_balance"`
	ReserveBalance     uint64 `db:"reserve_balance"`
	InsuranceBalance   uint64 `db:"insurance_balance"`
	SeedAmount         uint64 `db:"seed_amount"`
	SoftCap            uint64 `db:"soft_cap"`
	HardCap            uint64 `db:"hard_cap"`
	Phase              string `db:"phase"`
	CommitSlot         uint64 `db:"commit_slot"`
	CommitTS           int64  `db:"commit_ts"`
	RandomnessHandle   []byte `db:"randomness_handle"`
	WinningNumbers     []byte `db:"winning_numbers"`
	RolldownActive     bool   `db:"rolldown_active"`
	TotalTicketsSold   uint64 `db:"total_tickets_sold"`
	TotalPrizesPaid    uint64 `db:"total_prizes_paid"`
	CurrentDrawTickets uint64 `db:"current_draw_tickets"`
	IsFunded           bool   `db:"is_funded"`
	IsPaused           bool   `db:"is_paused"`
}

func (r gameStateRow) toDomain() ledger.GameState {
	return ledger.GameState{
		Authority:          r.Authority,
		GameID:             ledger.GameID(r.GameID),
		CurrentDrawID:      r.CurrentDrawID,
		NextDrawTS:         r.NextDrawTS,
		DrawIntervalS:      r.DrawIntervalS,
		PickCount:          r.PickCount,
		NumberRange:        r.NumberRange,
		TicketPrice:        r.TicketPrice,
		HouseFeeBps:        r.HouseFeeBps,
		JackpotBalance:     r.JackpotBalance,
		ReserveBalance:     r.ReserveBalance,
		InsuranceBalance:   r.InsuranceBalance,
		SeedAmount:         r.SeedAmount,
		SoftCap:            r.SoftCap,
		HardCap:            r.HardCap,
		Phase:              ledger.Phase(r.Phase),
		CommitSlot:         r.CommitSlot,
		CommitTS:           r.CommitTS,
		RandomnessHandle:   r.RandomnessHandle,
		WinningNumbers:     r.WinningNumbers,
		RolldownActive:     r.RolldownActive,
		TotalTicketsSold:   r.TotalTicketsSold,
		TotalPrizesPaid:    r.TotalPrizesPaid,
		CurrentDrawTickets: r.CurrentDrawTickets,
		IsFunded:           r.IsFunded,
		IsPaused:           r.IsPaused,
	}
}

func (s *Store) LoadGame(ctx context.Context, gameID ledger.GameID) (ledger.GameState, error) {
	var row gameStateRow
	err := s.db.GetContext(ctx, &row, `SELECT `+gameStateColumns+` FROM game_states WHERE game_id=$1`, string(gameID))
	if err != nil {
		return ledger.GameState{}, mapErr(err)
	}
	return row.toDomain(), nil
}

func (s *Store) SaveGame(ctx context.Context, state ledger.GameState) error {
	_, err := s.db.ExecContext(ctx, `
		UPDATE game_states SET
			authority=$2, current_draw_id=$3, next_draw_ts=$4, draw_interval_s=$5,
			pick_count=$6, number_range=$7, ticket_price=$8, house_fee_bps=$9,
			jackpot_balance=$10, reserve_balance=$11, insurance_balance=$12,
			seed_amount=$13, soft_cap=$14, hard_cap=$15, phase=$16, commit_slot=$17,
			commit_ts=$18, randomness_handle=$19, winning_numbers=$20,
			rolldown_active=$21, total_tickets_sold=$22, total_prizes_paid=$23,
			current_draw_tickets=$24, is_funded=$25, is_paused=$26
		WHERE game_id=$1`,
		string(state.GameID), state.Authority, state.CurrentDrawID, state.NextDrawTS,
		state.DrawIntervalS, state.PickCount, state.NumberRange, state.TicketPrice,
		state.HouseFeeBps, state.JackpotBalance, state.ReserveBalance, state.InsuranceBalance,
		state.SeedAmount, state.SoftCap, state.HardCap, string(state.Phase), state.CommitSlot,
		state.CommitTS, state.RandomnessHandle, state.WinningNumbers, state.RolldownActive,
		state.TotalTicketsSold, state.TotalPrizesPaid, state.CurrentDrawTickets,
		state.IsFunded, state.IsPaused)
	return err
}

func (s *Store) InitGame(ctx context.Context, state ledger.GameState) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO game_states (`+gameStateColumns+`)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12,$13,$14,$15,$16,$17,$18,$19,$20,$21,$22,$23,$24,$25,$26)
		ON CONFLICT (game_id) DO NOTHING`,
		string(state.GameID), state.Authority, state.CurrentDrawID, state.NextDrawTS,
		state.DrawIntervalS, state.PickCount, state.NumberRange, state.TicketPrice,
		state.HouseFeeBps, state.JackpotBalance, state.ReserveBalance, state.InsuranceBalance,
		state.SeedAmount, state.SoftCap, state.HardCap, string(state.Phase), state.CommitSlot,
		state.CommitTS, state.RandomnessHandle, state.WinningNumbers, state.RolldownActive,
		state.TotalTicketsSold, state.TotalPrizesPaid, state.CurrentDrawTickets,
		state.IsFunded, state.IsPaused)
	return err
}

// --- Tickets ---

type ticketRow struct {
	ID            string `db:"id"`
	Owner         string `db:"owner"`
	GameID        string `db:"game_id"`
	DrawID        uint64 `db:"draw_id"`
	Kind          int    `db:"kind"`
	Numbers       []byte `db:"numbers"`
	StartTicketID uint64 `db:"start_ticket_id"`
	TicketCount   uint64 `db:"ticket_count"`
	NumbersVec    []byte `db:"numbers_vec"`
	IsClaimed     bool   `db:"is_claimed"`
	IsClaimedVec  []byte `db:"is_claimed_vec"` // JSON-encoded []bool
	PurchaseTS    int64  `db:"purchase_ts"`
}

func (r ticketRow) toDomain() (ledger.Ticket, error) {
	var claimedVec []bool
	if len(r.IsClaimedVec) > 0 {
		if err := json.Unmarshal(r.IsClaimedVec, &claimedVec); err != nil {
			return ledger.Ticket{}, fmt.Errorf("decode is_claimed_vec: %w", err)
		}
	}
	return ledger.Ticket{
		ID:            r.ID,
		Owner:         r.Owner,
		GameID:        ledger.GameID(r.GameID),
		DrawID:        r.DrawID,
		Kind:          ledger.TicketKind(r.Kind),
		Numbers:       r.Numbers,
		StartTicketID: r.StartTicketID,
		TicketCount:   r.TicketCount,
		NumbersVec:    r.NumbersVec,
		IsClaimed:     r.IsClaimed,
		IsClaimedVec:  claimedVec,
		PurchaseTS:    time.Unix(r.PurchaseTS, 0).UTC(),
	}, nil
}

func (s *Store) CreateTicket(ctx context.Context, t ledger.Ticket) (ledger.Ticket, error) {
	claimedVec, err := json.Marshal(t.IsClaimedVec)
	if err != nil {
		return ledger.Ticket{}, err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO tickets (id, owner, game_id, draw_id, kind, numbers, start_ticket_id,
			ticket_count, numbers_vec, is_claimed, is_claimed_vec, purchase_ts)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11,$12)`,
		t.ID, t.Owner, string(t.GameID), t.DrawID, int(t.Kind), t.Numbers, t.StartTicketID,
		t.TicketCount, t.NumbersVec, t.IsClaimed, claimedVec, t.PurchaseTS.Unix())
	if err != nil {
		return ledger.Ticket{}, err
	}
	return t, nil
}

func (s *Store) GetTicket(ctx context.Context, gameID ledger.GameID, ticketID string) (ledger.Ticket, error) {
	var row ticketRow
	err := s.db.GetContext(ctx, &row,
		`SELECT id, owner, game_id, draw_id, kind, numbers, start_ticket_id, ticket_count,
			numbers_vec, is_claimed, is_claimed_vec, purchase_ts
		FROM tickets WHERE game_id=$1 AND id=$2`, string(gameID), ticketID)
	if err != nil {
		return ledger.Ticket{}, mapErr(err)
	}
	return row.toDomain()
}

func (s *Store) UpdateTicket(ctx context.Context, t ledger.Ticket) error {
	claimedVec, err := json.Marshal(t.IsClaimedVec)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE tickets SET is_claimed=$3, is_claimed_vec=$4 WHERE game_id=$1 AND id=$2`,
		string(t.GameID), t.ID, t.IsClaimed, claimedVec)
	return err
}

func (s *Store) ListTicketsByDraw(ctx context.Context, gameID ledger.GameID, drawID uint64) ([]ledger.Ticket, error) {
	var rows []ticketRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, owner, game_id, draw_id, kind, numbers, start_ticket_id, ticket_count,
			numbers_vec, is_claimed, is_claimed_vec, purchase_ts
		FROM tickets WHERE game_id=$1 AND draw_id=$2`, string(gameID), drawID)
	if err != nil {
		return nil, err
	}
	out := make([]ledger.Ticket, 0, len(rows))
	for _, r := range rows {
		t, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

func (s *Store) ListTicketsByOwner(ctx context.Context, gameID ledger.GameID, owner string, limit int) ([]ledger.Ticket, error) {
	var rows []ticketRow
	err := s.db.SelectContext(ctx, &rows,
		`SELECT id, owner, game_id, draw_id, kind, numbers, start_ticket_id, ticket_count,
			numbers_vec, is_claimed, is_claimed_vec, purchase_ts
		FROM tickets WHERE game_id=$1 AND owner=$2 ORDER BY purchase_ts DESC LIMIT $3`,
		string(gameID), owner, limit)
	if err != nil {
		return nil, err
	}
	out := make([]ledger.Ticket, 0, len(rows))
	for _, r := range rows {
		t, err := r.toDomain()
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// --- DrawRecord ---

type drawRecordRow struct {
	GameID              string `db:"game_id"`
	DrawID              uint64 `db:"draw_id"`
	WinningNumbers      []byte `db:"winning_numbers"`
	RolldownWasActive   bool   `db:"rolldown_was_active"`
	PoolAllocated       uint64 `db:"pool_allocated"`
	TierWinnerCount     []byte `db:"tier_winner_count"`     // JSON map[int]uint64
	TierPerWinnerAmount []byte `db:"tier_per_winner_amount"` // JSON map[int]uint64
	TierPool            []byte `db:"tier_pool"`              // JSON map[int]uint64
	Nonce               uint64 `db:"nonce"`
	VerificationHash    []byte `db:"verification_hash"`
	IsSettled           bool   `db:"is_settled"`
}

func marshalTierMap(m map[int]uint64) ([]byte, error) {
	return json.Marshal(m)
}

func unmarshalTierMap(b []byte) (map[int]uint64, error) {
	out := make(map[int]uint64)
	if len(b) == 0 {
		return out, nil
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, err
	}
	return out, nil
}

func (r drawRecordRow) toDomain() (ledger.DrawRecord, error) {
	winnerCount, err := unmarshalTierMap(r.TierWinnerCount)
	if err != nil {
		return ledger.DrawRecord{}, err
	}
	perWinner, err := unmarshalTierMap(r.TierPerWinnerAmount)
	if err != nil {
		return ledger.DrawRecord{}, err
	}
	tierPool, err := unmarshalTierMap(r.TierPool)
	if err != nil {
		return ledger.DrawRecord{}, err
	}
	var hash [32]byte
	copy(hash[:], r.VerificationHash)
	return ledger.DrawRecord{
		GameID:              ledger.GameID(r.GameID),
		DrawID:              r.DrawID,
		WinningNumbers:      r.WinningNumbers,
		RolldownWasActive:   r.RolldownWasActive,
		PoolAllocated:       r.PoolAllocated,
		TierWinnerCount:     winnerCount,
		TierPerWinnerAmount: perWinner,
		TierPool:            tierPool,
		Nonce:               r.Nonce,
		VerificationHash:    hash,
		IsSettled:           r.IsSettled,
	}, nil
}

func (s *Store) RecordDraw(ctx context.Context, rec ledger.DrawRecord) error {
	winnerCount, err := marshalTierMap(rec.TierWinnerCount)
	if err != nil {
		return err
	}
	perWinner, err := marshalTierMap(rec.TierPerWinnerAmount)
	if err != nil {
		return err
	}
	tierPool, err := marshalTierMap(rec.TierPool)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx, `
		INSERT INTO draw_records (game_id, draw_id, winning_numbers, rolldown_was_active,
			pool_allocated, tier_winner_count, tier_per_winner_amount, tier_pool, nonce,
			verification_hash, is_settled)
		VALUES ($1,$2,$3,$4,$5,$6,$7,$8,$9,$10,$11)`,
		string(rec.GameID), rec.DrawID, rec.WinningNumbers, rec.RolldownWasActive,
		rec.PoolAllocated, winnerCount, perWinner, tierPool, rec.Nonce,
		rec.VerificationHash[:], rec.IsSettled)
	return err
}

func (s *Store) GetDrawRecord(ctx context.Context, gameID ledger.GameID, drawID uint64) (ledger.DrawRecord, error) {
	var row drawRecordRow
	err := s.db.GetContext(ctx, &row, `
		SELECT game_id, draw_id, winning_numbers, rolldown_was_active, pool_allocated,
			tier_winner_count, tier_per_winner_amount, tier_pool, nonce, verification_hash, is_settled
		FROM draw_records WHERE game_id=$1 AND draw_id=$2`, string(gameID), drawID)
	if err != nil {
		return ledger.DrawRecord{}, mapErr(err)
	}
	return row.toDomain()
}

func (s *Store) UpdateDrawRecord(ctx context.Context, rec ledger.DrawRecord) error {
	winnerCount, err := marshalTierMap(rec.TierWinnerCount)
	if err != nil {
		return err
	}
	_, err = s.db.ExecContext(ctx,
		`UPDATE draw_records SET tier_winner_count=$3, is_settled=$4 WHERE game_id=$1 AND draw_id=$2`,
		string(rec.GameID), rec.DrawID, winnerCount, rec.IsSettled)
	return err
}

// --- UserStats ---

type userStatsRow struct {
	AccountID     string `db:"account_id"`
	GameID        string `db:"game_id"`
	TotalTickets  uint64 `db:"total_tickets"`
	TotalSpent    uint64 `db:"total_spent"`
	TotalWon      uint64 `db:"total_won"`
	Match2Credits uint64 `db:"match2_credits"`
}

func (s *Store) GetUserStats(ctx context.Context, gameID ledger.GameID, accountID string) (ledger.UserStats, error) {
	var row userStatsRow
	err := s.db.GetContext(ctx, &row,
		`SELECT account_id, game_id, total_tickets, total_spent, total_won, match2_credits
		FROM user_stats WHERE game_id=$1 AND account_id=$2`, string(gameID), accountID)
	if err == sql.ErrNoRows {
		return ledger.UserStats{AccountID: accountID, GameID: gameID}, nil
	}
	if err != nil {
		return ledger.UserStats{}, err
	}
	return ledger.UserStats{
		AccountID:     row.AccountID,
		GameID:        ledger.GameID(row.GameID),
		TotalTickets:  row.TotalTickets,
		TotalSpent:    row.TotalSpent,
		TotalWon:      row.TotalWon,
		Match2Credits: row.Match2Credits,
	}, nil
}

func (s *Store) SaveUserStats(ctx context.Context, stats ledger.UserStats) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO user_stats (account_id, game_id, total_tickets, total_spent, total_won, match2_credits)
		VALUES ($1,$2,$3,$4,$5,$6)
		ON CONFLICT (game_id, account_id) DO UPDATE SET
			total_tickets=$3, total_spent=$4, total_won=$5, match2_credits=$6`,
		stats.AccountID, string(stats.GameID), stats.TotalTickets, stats.TotalSpent,
		stats.TotalWon, stats.Match2Credits)
	return err
}

// --- Wallets ---

func (s *Store) GetWalletBalance(ctx context.Context, accountID string) (uint64, error) {
	var balance uint64
	err := s.db.GetContext(ctx, &balance, `SELECT balance FROM wallets WHERE account_id=$1`, accountID)
	if err == sql.ErrNoRows {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	return balance, nil
}

func (s *Store) CreditWallet(ctx context.Context, accountID string, amount uint64) error {
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO wallets (account_id, balance) VALUES ($1, $2)
		ON CONFLICT (account_id) DO UPDATE SET balance = wallets.balance + $2`,
		accountID, amount)
	return err
}

func (s *Store) DebitWallet(ctx context.Context, accountID string, amount uint64) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE wallets SET balance = balance - $2 WHERE account_id=$1 AND balance >= $2`,
		accountID, amount)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return protoerr.ErrInsufficientFunds
	}
	return nil
}

var _ ledger.Store = (*Store)(nil)
