package httpapi_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rolldown-labs/lottery-protocol/internal/httpapi"
	"github.com/rolldown-labs/lottery-protocol/internal/ledger"
	"github.com/rolldown-labs/lottery-protocol/internal/logging"
)

func newTestServer(t *testing.T) (*httpapi.Server, *ledger.MemoryStore) {
	t.Helper()
	store := ledger.NewMemoryStore()
	ctx := context.Background()
	require.NoError(t, store.InitGame(ctx, ledger.GameState{
		GameID:         ledger.GameMain,
		CurrentDrawID:  1,
		NextDrawTS:     1000,
		Phase:          ledger.PhaseOpen,
		TicketPrice:    ledger.MainTicketPrice,
		HouseFeeBps:    500,
		JackpotBalance: 2_000_000_000,
		SoftCap:        50_000_000_000,
		HardCap:        100_000_000_000,
		IsFunded:       true,
	}))
	return httpapi.New(ledger.New(store), logging.NewDefault("test"), 100, 100), store
}

func TestHealthz(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/healthz", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestGameStateUnknownGameReturns404(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/games/bogus/state", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestGameStateReturnsProjection(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/games/main/state", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "main", body["game_id"])
	assert.Equal(t, "open", body["phase"])
	assert.Equal(t, false, body["rolldown_eligible"])
}

func TestTicketNotFoundReturns404(t *testing.T) {
	srv, _ := newTestServer(t)
	req := httptest.NewRequest(http.MethodGet, "/v1/games/main/tickets/does-not-exist", nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestTicketLookupReturnsCreatedTicket(t *testing.T) {
	srv, store := newTestServer(t)
	ctx := context.Background()
	created, err := store.CreateTicket(ctx, ledger.Ticket{
		Owner:      "alice",
		GameID:     ledger.GameMain,
		DrawID:     1,
		Kind:       ledger.TicketSingle,
		Numbers:    []byte{1, 2, 3, 4, 5, 6},
		PurchaseTS: time.Now(),
	})
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodGet, "/v1/games/main/tickets/"+created.ID, nil)
	rec := httptest.NewRecorder()
	srv.Handler().ServeHTTP(rec, req)
	require.Equal(t, http.StatusOK, rec.Code)

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	assert.Equal(t, "alice", body["owner"])
}
