package draw

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/rolldown-labs/lottery-protocol/internal/protoerr"
)

var mainProbs = []TierProbability{
	{MatchCount: 6, Numerator: 1, Denominator: 9_366_819},
	{MatchCount: 5, Numerator: 240, Denominator: 9_366_819},
	{MatchCount: 4, Numerator: 11_400, Denominator: 9_366_819},
	{MatchCount: 3, Numerator: 197_600, Denominator: 9_366_819},
	{MatchCount: 2, Numerator: 1_476_700, Denominator: 9_366_819},
}

func TestCheckPlausibilityAcceptsWithinBound(t *testing.T) {
	counts := map[int]uint64{6: 0, 5: 1, 4: 10, 3: 100, 2: 1000}
	err := CheckPlausibility(counts, mainProbs, 100_000)
	assert.NoError(t, err)
}

func TestCheckPlausibilityRejectsImplausibleTier(t *testing.T) {
	counts := map[int]uint64{6: 50, 5: 0, 4: 0, 3: 0, 2: 0}
	err := CheckPlausibility(counts, mainProbs, 1_000)
	assert.ErrorIs(t, err, protoerr.ErrPlausibilityCheckFailed)
}

func TestCheckPlausibilityRejectsSumExceedingTotal(t *testing.T) {
	counts := map[int]uint64{6: 0, 5: 0, 4: 0, 3: 0, 2: 1500}
	err := CheckPlausibility(counts, mainProbs, 1_000)
	assert.ErrorIs(t, err, protoerr.ErrPlausibilityCheckFailed)
}
