package scoring

import (
	"errors"
	"testing"
)

func TestSignalBonus_SumsBoundedDimensions(t *testing.T) {
	p := DefaultParams()
	bonus, err := SignalBonus(map[string]float64{
		"sentiment_shift":      3,
		"external_receptivity": 2,
	}, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if bonus != 5 {
		t.Fatalf("expected 5, got %v", bonus)
	}
}

func TestSignalBonus_RejectsDimensionAboveMax(t *testing.T) {
	p := DefaultParams()
	_, err := SignalBonus(map[string]float64{"sentiment_shift": 3.5}, p)
	var capErr *SignalCapError
	if !errors.As(err, &capErr) {
		t.Fatalf("expected SignalCapError, got %v", err)
	}
	if capErr.Dimension != "sentiment_shift" {
		t.Fatalf("unexpected dimension: %q", capErr.Dimension)
	}
}

func TestSignalBonus_RejectsUnknownDimension(t *testing.T) {
	p := DefaultParams()
	_, err := SignalBonus(map[string]float64{"hype": 1}, p)
	var capErr *SignalCapError
	if !errors.As(err, &capErr) {
		t.Fatalf("expected SignalCapError, got %v", err)
	}
}

func TestSignalBonus_RejectsTotalAboveCap(t *testing.T) {
	// The per-dimension table can in principle allow a raw sum above the
	// cap; the total bound still rejects it.
	p := DefaultParams()
	p.SignalMaxPoints = map[string]float64{
		"sentiment_shift": 8,
		"velocity":        8,
	}
	_, err := SignalBonus(map[string]float64{
		"sentiment_shift": 7,
		"velocity":        7,
	}, p)
	var capErr *SignalCapError
	if !errors.As(err, &capErr) {
		t.Fatalf("expected SignalCapError, got %v", err)
	}
	if capErr.Dimension != "" {
		t.Fatalf("expected total cap violation, got dimension %q", capErr.Dimension)
	}
}

func TestFinalScore_CappedAt100(t *testing.T) {
	if got := FinalScore(96, 8); got != 100 {
		t.Fatalf("expected 100, got %v", got)
	}
	if got := FinalScore(60, 8); got != 68 {
		t.Fatalf("expected 68, got %v", got)
	}
}

func TestDefaultSignalTableSumsToCap(t *testing.T) {
	var total float64
	for _, s := range SignalDimensions {
		total += s.Max
	}
	if total != SignalBonusCap {
		t.Fatalf("default signal table sums to %v, want %v", total, SignalBonusCap)
	}
}
