package draw

import "testing"

func TestEvaluateRolldownTopTierWinnerDisablesRolldown(t *testing.T) {
	d := EvaluateRolldown(1, 80_000_000_000, 50_000_000_000, 100_000_000_000, 9999)
	if d.Active {
		t.Fatal("rolldown must not activate when the top tier has a winner")
	}
}

func TestEvaluateRolldownBelowSoftCapNeverActivates(t *testing.T) {
	d := EvaluateRolldown(0, 10_000_000_000, 50_000_000_000, 100_000_000_000, 0)
	if d.Active {
		t.Fatal("rolldown must not activate below soft cap")
	}
}

func TestEvaluateRolldownAtOrAboveHardCapAlwaysActivates(t *testing.T) {
	d := EvaluateRolldown(0, 100_000_000_000, 50_000_000_000, 100_000_000_000, 0)
	if !d.Active {
		t.Fatal("rolldown must always activate at or above hard cap")
	}
}

func TestEvaluateRolldownBandIsLinearInterpolation(t *testing.T) {
	// Midway between soft and hard cap, pBps should be ~5000 (50%).
	soft, hard := uint64(0), uint64(100_000_000_000)
	jackpot := uint64(50_000_000_000)
	d := EvaluateRolldown(0, jackpot, soft, hard, 4999)
	if d.PBps != 5_000 {
		t.Fatalf("expected pBps=5000, got %d", d.PBps)
	}
	if !d.Active {
		t.Fatal("draw 4999 < pBps 5000 should activate")
	}

	d2 := EvaluateRolldown(0, jackpot, soft, hard, 5000)
	if d2.Active {
		t.Fatal("draw 5000 is not < pBps 5000, should not activate")
	}
}
