package ledger

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/rolldown-labs/lottery-protocol/internal/protoerr"
)

// MemoryStore is an in-memory Store implementation for tests and the
// operator CLI's dry-run mode, grounded on lottery.MemoryStore's
// map+sync.RWMutex shape.
type MemoryStore struct {
	mu sync.RWMutex

	games   map[GameID]GameState
	tickets map[GameID]map[string]Ticket
	draws   map[GameID]map[uint64]DrawRecord
	stats   map[GameID]map[string]UserStats
	wallets map[string]uint64
}

// NewMemoryStore creates a new in-memory store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		games:   make(map[GameID]GameState),
		tickets: make(map[GameID]map[string]Ticket),
		draws:   make(map[GameID]map[uint64]DrawRecord),
		stats:   make(map[GameID]map[string]UserStats),
		wallets: make(map[string]uint64),
	}
}

func (s *MemoryStore) InitGame(ctx context.Context, state GameState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[state.GameID]; ok {
		return protoerr.ErrAlreadyInitialized
	}
	s.games[state.GameID] = state
	s.tickets[state.GameID] = make(map[string]Ticket)
	s.draws[state.GameID] = make(map[uint64]DrawRecord)
	s.stats[state.GameID] = make(map[string]UserStats)
	return nil
}

func (s *MemoryStore) LoadGame(ctx context.Context, gameID GameID) (GameState, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	g, ok := s.games[gameID]
	if !ok {
		return GameState{}, protoerr.ErrNotFound
	}
	return g, nil
}

func (s *MemoryStore) SaveGame(ctx context.Context, state GameState) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.games[state.GameID]; !ok {
		return protoerr.ErrNotFound
	}
	s.games[state.GameID] = state
	return nil
}

func (s *MemoryStore) CreateTicket(ctx context.Context, t Ticket) (Ticket, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.tickets[t.GameID]
	if !ok {
		return Ticket{}, protoerr.ErrNotFound
	}
	if t.ID == "" {
		t.ID = uuid.New().String()
	}
	bucket[t.ID] = t
	return t, nil
}

func (s *MemoryStore) GetTicket(ctx context.Context, gameID GameID, ticketID string) (Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bucket, ok := s.tickets[gameID]
	if !ok {
		return Ticket{}, protoerr.ErrNotFound
	}
	t, ok := bucket[ticketID]
	if !ok {
		return Ticket{}, protoerr.ErrNotFound
	}
	return t, nil
}

func (s *MemoryStore) UpdateTicket(ctx context.Context, t Ticket) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.tickets[t.GameID]
	if !ok {
		return protoerr.ErrNotFound
	}
	if _, ok := bucket[t.ID]; !ok {
		return protoerr.ErrNotFound
	}
	bucket[t.ID] = t
	return nil
}

func (s *MemoryStore) ListTicketsByDraw(ctx context.Context, gameID GameID, drawID uint64) ([]Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bucket, ok := s.tickets[gameID]
	if !ok {
		return nil, protoerr.ErrNotFound
	}
	var out []Ticket
	for _, t := range bucket {
		if t.DrawID == drawID {
			out = append(out, t)
		}
	}
	return out, nil
}

func (s *MemoryStore) ListTicketsByOwner(ctx context.Context, gameID GameID, owner string, limit int) ([]Ticket, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bucket, ok := s.tickets[gameID]
	if !ok {
		return nil, protoerr.ErrNotFound
	}
	var out []Ticket
	for _, t := range bucket {
		if t.Owner == owner {
			out = append(out, t)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out, nil
}

func (s *MemoryStore) RecordDraw(ctx context.Context, rec DrawRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.draws[rec.GameID]
	if !ok {
		return protoerr.ErrNotFound
	}
	if _, exists := bucket[rec.DrawID]; exists {
		return protoerr.ErrAlreadyFinalized
	}
	bucket[rec.DrawID] = rec
	return nil
}

func (s *MemoryStore) GetDrawRecord(ctx context.Context, gameID GameID, drawID uint64) (DrawRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bucket, ok := s.draws[gameID]
	if !ok {
		return DrawRecord{}, protoerr.ErrNotFound
	}
	rec, ok := bucket[drawID]
	if !ok {
		return DrawRecord{}, protoerr.ErrNotFound
	}
	return rec, nil
}

func (s *MemoryStore) UpdateDrawRecord(ctx context.Context, rec DrawRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.draws[rec.GameID]
	if !ok {
		return protoerr.ErrNotFound
	}
	if _, ok := bucket[rec.DrawID]; !ok {
		return protoerr.ErrNotFound
	}
	bucket[rec.DrawID] = rec
	return nil
}

func (s *MemoryStore) GetUserStats(ctx context.Context, gameID GameID, accountID string) (UserStats, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	bucket, ok := s.stats[gameID]
	if !ok {
		return UserStats{}, protoerr.ErrNotFound
	}
	stats, ok := bucket[accountID]
	if !ok {
		return UserStats{GameID: gameID, AccountID: accountID}, nil
	}
	return stats, nil
}

func (s *MemoryStore) SaveUserStats(ctx context.Context, stats UserStats) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	bucket, ok := s.stats[stats.GameID]
	if !ok {
		return protoerr.ErrNotFound
	}
	bucket[stats.AccountID] = stats
	return nil
}

func (s *MemoryStore) GetWalletBalance(ctx context.Context, accountID string) (uint64, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.wallets[accountID], nil
}

func (s *MemoryStore) CreditWallet(ctx context.Context, accountID string, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.wallets[accountID] += amount
	return nil
}

func (s *MemoryStore) DebitWallet(ctx context.Context, accountID string, amount uint64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.wallets[accountID] < amount {
		return protoerr.ErrInsufficientFunds
	}
	s.wallets[accountID] -= amount
	return nil
}
