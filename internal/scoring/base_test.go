package scoring

import (
	"errors"
	"math"
	"testing"
)

func fullSubScores() map[string]float64 {
	out := make(map[string]float64, len(Components))
	for _, c := range Components {
		out[c.Name] = c.Max
	}
	return out
}

func TestBaseScore_PerfectProfileNormalizesTo100(t *testing.T) {
	p := DefaultParams()
	score, breakdown, err := BaseScore(fullSubScores(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if math.Abs(score-100) > 1e-9 {
		t.Fatalf("expected 100, got %v", score)
	}
	if len(breakdown) != len(Components) {
		t.Fatalf("expected %d breakdown entries, got %d", len(Components), len(breakdown))
	}
}

func TestBaseScore_Deterministic(t *testing.T) {
	p := DefaultParams()
	subs := map[string]float64{
		"team_execution": 2.5,
		"traction":       1.0,
		"market":         2.0,
		"momentum":       0.5,
	}
	first, _, err := BaseScore(subs, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for i := 0; i < 50; i++ {
		again, _, err := BaseScore(subs, p)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if again != first {
			t.Fatalf("run %d: score drifted from %v to %v", i, first, again)
		}
	}
}

func TestBaseScore_EmptyInputsScoreBoostOnly(t *testing.T) {
	p := DefaultParams()
	score, _, err := BaseScore(map[string]float64{}, p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := p.MinBaseBoost / p.NormalizationDivisor * 100
	if math.Abs(score-want) > 1e-9 {
		t.Fatalf("expected %v, got %v", want, score)
	}
}

func TestBaseScore_RejectsOutOfRangeSubScore(t *testing.T) {
	p := DefaultParams()
	_, _, err := BaseScore(map[string]float64{"team_execution": 3.5}, p)
	var subErr *SubScoreError
	if !errors.As(err, &subErr) {
		t.Fatalf("expected SubScoreError, got %v", err)
	}
	if subErr.Name != "team_execution" {
		t.Fatalf("unexpected component in error: %q", subErr.Name)
	}
}

func TestBaseScore_RejectsNegativeSubScore(t *testing.T) {
	p := DefaultParams()
	_, _, err := BaseScore(map[string]float64{"market": -0.1}, p)
	var subErr *SubScoreError
	if !errors.As(err, &subErr) {
		t.Fatalf("expected SubScoreError, got %v", err)
	}
}

func TestBaseScore_RejectsUnknownComponent(t *testing.T) {
	p := DefaultParams()
	_, _, err := BaseScore(map[string]float64{"charisma": 1.0}, p)
	var subErr *SubScoreError
	if !errors.As(err, &subErr) {
		t.Fatalf("expected SubScoreError, got %v", err)
	}
	if subErr.Name != "charisma" {
		t.Fatalf("unexpected component in error: %q", subErr.Name)
	}
}

func TestBaseScore_CappedAt100UnderSmallDivisor(t *testing.T) {
	p := DefaultParams()
	p.NormalizationDivisor = 30
	score, _, err := BaseScore(fullSubScores(), p)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if score != MaxBaseScore {
		t.Fatalf("expected cap at %v, got %v", MaxBaseScore, score)
	}
}
