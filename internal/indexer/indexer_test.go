package indexer_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rolldown-labs/lottery-protocol/internal/indexer"
	"github.com/rolldown-labs/lottery-protocol/internal/ledger"
)

func TestCountMatches(t *testing.T) {
	cases := []struct {
		ticket, winning []byte
		want            int
	}{
		{[]byte{1, 2, 3, 4, 5, 6}, []byte{1, 2, 3, 4, 5, 6}, 6},
		{[]byte{1, 2, 3, 4, 5, 6}, []byte{7, 8, 9, 10, 11, 12}, 0},
		{[]byte{1, 2, 3, 4, 5, 6}, []byte{1, 2, 3, 40, 41, 42}, 3},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, indexer.CountMatches(c.ticket, c.winning))
	}
}

func TestVerificationHashIsBitExactAndDeterministic(t *testing.T) {
	counts := indexer.TierCounts{6: 0, 5: 1, 4: 3, 3: 20, 2: 100}
	h1 := indexer.VerificationHash(ledger.GameMain, 42, []byte{1, 2, 3, 4, 5, 6}, counts, 7)
	h2 := indexer.VerificationHash(ledger.GameMain, 42, []byte{1, 2, 3, 4, 5, 6}, counts, 7)
	assert.Equal(t, h1, h2)

	h3 := indexer.VerificationHash(ledger.GameMain, 42, []byte{1, 2, 3, 4, 5, 6}, counts, 8)
	assert.NotEqual(t, h1, h3)
}

type fakeTicketSource struct {
	tickets []ledger.Ticket
}

func (f fakeTicketSource) ListTicketsByDraw(ctx context.Context, gameID ledger.GameID, drawID uint64) ([]ledger.Ticket, error) {
	return f.tickets, nil
}

func TestScanTalliesAllSubTickets(t *testing.T) {
	winning := []byte{1, 2, 3, 4, 5, 6}
	src := fakeTicketSource{tickets: []ledger.Ticket{
		{Kind: ledger.TicketSingle, Numbers: []byte{1, 2, 3, 4, 5, 6}, PurchaseTS: time.Now()},
		{
			Kind:        ledger.TicketBulk,
			TicketCount: 2,
			NumbersVec:  append(append([]byte{}, []byte{1, 2, 3, 4, 5, 10}...), []byte{7, 8, 9, 10, 11, 12}...),
			PurchaseTS:  time.Now(),
		},
	}}

	result, err := indexer.Scan(context.Background(), src, ledger.GameMain, 1, winning, 99, 6)
	require.NoError(t, err)
	assert.Equal(t, uint64(3), result.TotalTicketsScanned)
	assert.Equal(t, uint64(1), result.TierCounts[6])
	assert.Equal(t, uint64(1), result.TierCounts[5])
	assert.Equal(t, uint64(0), result.TierCounts[0])

	wantHash := indexer.VerificationHash(ledger.GameMain, 1, winning, result.TierCounts, 99)
	assert.Equal(t, wantHash, result.VerificationHash)
}
