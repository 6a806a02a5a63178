package ledger

import "context"

// Store defines the persistence interface for all ledger data, mirroring
// the teacher's lottery.Store: context-first, typed accessors that return
// a result-or-error value and never a partially mutated state.
type Store interface {
	// GameState operations.
	LoadGame(ctx context.Context, gameID GameID) (GameState, error)
	SaveGame(ctx context.Context, state GameState) error
	InitGame(ctx context.Context, state GameState) error

	// Ticket operations.
	CreateTicket(ctx context.Context, t Ticket) (Ticket, error)
	GetTicket(ctx context.Context, gameID GameID, ticketID string) (Ticket, error)
	UpdateTicket(ctx context.Context, t Ticket) error
	ListTicketsByDraw(ctx context.Context, gameID GameID, drawID uint64) ([]Ticket, error)
	ListTicketsByOwner(ctx context.Context, gameID GameID, owner string, limit int) ([]Ticket, error)

	// DrawRecord operations.
	RecordDraw(ctx context.Context, rec DrawRecord) error
	GetDrawRecord(ctx context.Context, gameID GameID, drawID uint64) (DrawRecord, error)
	UpdateDrawRecord(ctx context.Context, rec DrawRecord) error

	// UserStats operations.
	GetUserStats(ctx context.Context, gameID GameID, accountID string) (UserStats, error)
	SaveUserStats(ctx context.Context, stats UserStats) error

	// Wallet operations back spec.md §4.2's purchase precondition ("Buyer
	// has sufficient token balance for N x ticket_price"). Balances are
	// global per account, not scoped to a game.
	GetWalletBalance(ctx context.Context, accountID string) (uint64, error)
	CreditWallet(ctx context.Context, accountID string, amount uint64) error
	DebitWallet(ctx context.Context, accountID string, amount uint64) error
}

// ErrNotFound-style sentinels live in internal/protoerr; Store
// implementations must return protoerr.ErrNotFound for missing rows so
// callers can branch without depending on a specific backend's error type.
