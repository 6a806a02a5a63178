// Package indexer implements the off-chain, deterministic ticket scanner
// and verification-hash commitment of spec.md §4.5. Its output format is
// part of the on-chain contract: finalize_draw recomputes the same hash
// and accepts only on byte-for-byte match.
package indexer

import (
	"context"
	"crypto/sha256"
	"encoding/binary"

	"github.com/rolldown-labs/lottery-protocol/internal/ledger"
)

// TierCounts maps match-count to winner count, keyed by the tiers scored
// for a given game (Main: {6,5,4,3,2}; QuickPick: {5,4,3}).
type TierCounts map[int]uint64

// ScanResult is the indexer's output per spec.md §6 ("Indexer interface").
type ScanResult struct {
	DrawID              uint64
	WinningNumbers      []byte
	TierCounts          TierCounts
	Nonce               uint64
	VerificationHash    [32]byte
	TotalTicketsScanned uint64
}

// Tiers scored per game, descending match count (spec.md §4.5).
var (
	MainTiers = []int{6, 5, 4, 3, 2}
	QPTiers   = []int{5, 4, 3}
)

func tiersFor(gameID ledger.GameID) []int {
	if gameID == ledger.GameQuickPick {
		return QPTiers
	}
	return MainTiers
}

// CountMatches counts, via sorted two-pointer merge, how many of
// ticketNumbers appear in winningNumbers. Both slices MUST already be
// sorted ascending (the ledger's stored representation guarantees this).
func CountMatches(ticketNumbers, winningNumbers []byte) int {
	i, j, matches := 0, 0, 0
	for i < len(ticketNumbers) && j < len(winningNumbers) {
		switch {
		case ticketNumbers[i] == winningNumbers[j]:
			matches++
			i++
			j++
		case ticketNumbers[i] < winningNumbers[j]:
			i++
		default:
			j++
		}
	}
	return matches
}

// TicketSource enumerates all ticket records for a given draw. It is
// satisfied by ledger.Store.ListTicketsByDraw.
type TicketSource interface {
	ListTicketsByDraw(ctx context.Context, gameID ledger.GameID, drawID uint64) ([]ledger.Ticket, error)
}

// Scan enumerates every ticket record for (gameID, drawID), tallies
// per-tier matches, and produces the verification hash binding the run.
// nonce is always used verbatim, zero included; Scan does not generate a
// random nonce, so choosing it is left to the caller.
func Scan(ctx context.Context, src TicketSource, gameID ledger.GameID, drawID uint64, winningNumbers []byte, nonce uint64, pickCount int) (ScanResult, error) {
	tickets, err := src.ListTicketsByDraw(ctx, gameID, drawID)
	if err != nil {
		return ScanResult{}, err
	}

	tiers := tiersFor(gameID)
	counts := make(TierCounts, len(tiers))
	for _, tier := range tiers {
		counts[tier] = 0
	}

	var total uint64
	for _, t := range tickets {
		n := 1
		if t.Kind == ledger.TicketBulk {
			n = int(t.TicketCount)
		}
		for i := 0; i < n; i++ {
			total++
			m := CountMatches(t.NumbersAt(i, pickCount), winningNumbers)
			if _, ok := counts[m]; ok {
				counts[m]++
			}
		}
	}

	hash := VerificationHash(gameID, drawID, winningNumbers, counts, nonce)

	return ScanResult{
		DrawID:              drawID,
		WinningNumbers:      winningNumbers,
		TierCounts:          counts,
		Nonce:               nonce,
		VerificationHash:    hash,
		TotalTicketsScanned: total,
	}, nil
}

// VerificationHash implements the bit-exact layout of spec.md §4.5.
//
// Main:      SHA-256(draw_id_le_8 || winning_numbers_6 || m6_le_4 || m5_le_4 || m4_le_4 || m3_le_4 || m2_le_4 || nonce_le_8)
// QuickPick: SHA-256(draw_id_le_8 || winning_numbers_5 || m5_le_4 || m4_le_4 || m3_le_4 || nonce_le_8)
func VerificationHash(gameID ledger.GameID, drawID uint64, winningNumbers []byte, counts TierCounts, nonce uint64) [32]byte {
	buf := make([]byte, 0, 42)
	buf = appendLE8(buf, drawID)
	buf = append(buf, winningNumbers...)

	for _, tier := range tiersFor(gameID) {
		buf = appendLE4(buf, counts[tier])
	}
	buf = appendLE8(buf, nonce)

	return sha256.Sum256(buf)
}

func appendLE8(buf []byte, v uint64) []byte {
	var b [8]byte
	binary.LittleEndian.PutUint64(b[:], v)
	return append(buf, b[:]...)
}

func appendLE4(buf []byte, v uint64) []byte {
	var b [4]byte
	binary.LittleEndian.PutUint32(b[:], uint32(v))
	return append(buf, b[:]...)
}
