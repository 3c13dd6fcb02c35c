package learning

import (
	"math"
	"testing"

	"github.com/fundbridge/fundbridge-backend/internal/scoring"
)

func TestAnalyze_ProposesBoundedNudgeTowardStableComponent(t *testing.T) {
	snaps := snapshotSet(t, 200, 400)
	gate, err := CheckGate(snaps, DefaultGateConfig())
	if err != nil || !gate.Passed {
		t.Fatalf("gate setup failed: %v / %+v", err, gate)
	}

	parent := scoring.DefaultParams()
	proposal, err := Analyze(snaps, gate, parent)
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if proposal == nil {
		t.Fatalf("expected a proposal from a cleanly separated population")
	}

	var teamChange *WeightChange
	for i := range proposal.Changes {
		if proposal.Changes[i].Component == "team_execution" {
			teamChange = &proposal.Changes[i]
		}
	}
	if teamChange == nil {
		t.Fatalf("expected team_execution nudge, got %+v", proposal.Changes)
	}
	if teamChange.To <= teamChange.From {
		t.Fatalf("positive effect should raise the weight: %+v", teamChange)
	}
	if math.Abs(teamChange.To-teamChange.From) > maxWeightNudge+1e-9 {
		t.Fatalf("nudge %v exceeds per-cycle bound %v", teamChange.To-teamChange.From, maxWeightNudge)
	}
	if proposal.ExpectedImprovement < MinImprovement {
		t.Fatalf("proposal below improvement floor: %v", proposal.ExpectedImprovement)
	}
}

func TestAnalyze_DoesNotTouchProtectedFields(t *testing.T) {
	snaps := snapshotSet(t, 200, 400)
	gate, err := CheckGate(snaps, DefaultGateConfig())
	if err != nil {
		t.Fatalf("CheckGate: %v", err)
	}
	parent := scoring.DefaultParams()
	proposal, err := Analyze(snaps, gate, parent)
	if err != nil || proposal == nil {
		t.Fatalf("analyze setup failed: %v", err)
	}

	for dim, max := range parent.SignalMaxPoints {
		if proposal.Params.SignalMaxPoints[dim] != max {
			t.Fatalf("signal table drifted for %s", dim)
		}
	}
	if proposal.Params.MultiplierFloor != parent.MultiplierFloor || proposal.Params.MultiplierCeiling != parent.MultiplierCeiling {
		t.Fatalf("multiplier band drifted")
	}
	if proposal.Params.NormalizationDivisor != parent.NormalizationDivisor || proposal.Params.MinBaseBoost != parent.MinBaseBoost {
		t.Fatalf("normalization tunables drifted")
	}
}

func TestAnalyze_ParentParamsUnchanged(t *testing.T) {
	snaps := snapshotSet(t, 200, 400)
	gate, err := CheckGate(snaps, DefaultGateConfig())
	if err != nil {
		t.Fatalf("CheckGate: %v", err)
	}
	parent := scoring.DefaultParams()
	before := parent.ComponentWeights["team_execution"]
	if _, err := Analyze(snaps, gate, parent); err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if parent.ComponentWeights["team_execution"] != before {
		t.Fatalf("Analyze mutated the parent params")
	}
}

func TestAnalyze_NoStableComponentsReturnsNil(t *testing.T) {
	snaps := snapshotSet(t, 200, 400)
	gate := &GateResult{Passed: true}
	proposal, err := Analyze(snaps, gate, scoring.DefaultParams())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if proposal != nil {
		t.Fatalf("expected nil proposal without stable components")
	}
}

func TestAnalyze_NegligibleEffectDiscarded(t *testing.T) {
	// Successes and failures have nearly identical features: any candidate
	// falls under the improvement floor and must be discarded, not proposed.
	snaps := snapshotSet(t, 200, 400)
	gate, err := CheckGate(snaps, DefaultGateConfig())
	if err != nil {
		t.Fatalf("CheckGate: %v", err)
	}
	// Keep the gate's stability verdict but flatten the actual rows.
	flat := snapshotSet(t, 200, 400)
	for _, s := range flat {
		s.Features = []byte(`{"team_execution":1.0,"traction":1.0,"market":1.0}`)
	}
	proposal, err := Analyze(flat, gate, scoring.DefaultParams())
	if err != nil {
		t.Fatalf("Analyze: %v", err)
	}
	if proposal != nil {
		t.Fatalf("expected nil proposal for flat features, got %+v", proposal)
	}
}
