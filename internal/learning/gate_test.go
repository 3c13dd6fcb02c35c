package learning

import (
	"encoding/json"
	"strings"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fundbridge/fundbridge-backend/internal/types"
)

// snapshotSet builds a balanced snapshot population spread over four
// quarters. Successful rows carry a higher team_execution feature so the
// component shows a consistent positive effect direction.
func snapshotSet(t *testing.T, successes, failures int) []*types.TrainingSnapshot {
	t.Helper()
	buckets := []string{"2025Q3", "2025Q4", "2026Q1", "2026Q2"}
	out := make([]*types.TrainingSnapshot, 0, successes+failures)
	add := func(n int, success bool, teamScore float64) {
		for i := 0; i < n; i++ {
			features, err := json.Marshal(map[string]float64{
				"team_execution": teamScore,
				"traction":       1.0,
				"market":         1.0,
			})
			if err != nil {
				t.Fatalf("marshal features: %v", err)
			}
			out = append(out, &types.TrainingSnapshot{
				ID:         uuid.New(),
				StartupID:  uuid.New(),
				ScoreDate:  time.Now().AddDate(-1, 0, 0),
				Features:   features,
				Success:    success,
				TimeBucket: buckets[i%len(buckets)],
			})
		}
	}
	add(successes, true, 2.5)
	add(failures, false, 0.5)
	return out
}

func TestCheckGate_PassesWithSufficientBalancedSample(t *testing.T) {
	snaps := snapshotSet(t, 200, 400)
	gate, err := CheckGate(snaps, DefaultGateConfig())
	if err != nil {
		t.Fatalf("CheckGate: %v", err)
	}
	if !gate.Passed {
		t.Fatalf("expected gate pass, reasons: %v", gate.Reasons)
	}
	if gate.SuccessCount != 200 || gate.FailureCount != 400 {
		t.Fatalf("unexpected counts: %d/%d", gate.SuccessCount, gate.FailureCount)
	}
	if gate.BucketCount != 4 {
		t.Fatalf("expected 4 buckets, got %d", gate.BucketCount)
	}
}

func TestCheckGate_OneBelowMinimumFails(t *testing.T) {
	// 199 successes against the 200 floor: one row short must flip the
	// outcome, there is no tolerance band.
	snaps := snapshotSet(t, 199, 400)
	gate, err := CheckGate(snaps, DefaultGateConfig())
	if err != nil {
		t.Fatalf("CheckGate: %v", err)
	}
	if gate.Passed {
		t.Fatalf("expected gate failure at 199 successes")
	}
	found := false
	for _, r := range gate.Reasons {
		if strings.Contains(r, "successes 199") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected sample-size reason, got %v", gate.Reasons)
	}
}

func TestCheckGate_PositiveRateOutOfBand(t *testing.T) {
	// 300 successes vs 300 failures is a 0.50 rate: allowed. One more
	// success pushes past the band.
	atEdge := snapshotSet(t, 300, 300)
	gate, err := CheckGate(atEdge, DefaultGateConfig())
	if err != nil {
		t.Fatalf("CheckGate: %v", err)
	}
	if !gate.Passed {
		t.Fatalf("rate 0.50 should pass, reasons: %v", gate.Reasons)
	}

	over := snapshotSet(t, 301, 299)
	gate, err = CheckGate(over, DefaultGateConfig())
	if err != nil {
		t.Fatalf("CheckGate: %v", err)
	}
	if gate.Passed {
		t.Fatalf("rate above 0.50 should fail")
	}
}

func TestCheckGate_TooFewBucketsFails(t *testing.T) {
	snaps := snapshotSet(t, 250, 400)
	for _, s := range snaps {
		s.TimeBucket = "2026Q1"
	}
	gate, err := CheckGate(snaps, DefaultGateConfig())
	if err != nil {
		t.Fatalf("CheckGate: %v", err)
	}
	if gate.Passed {
		t.Fatalf("single time bucket must fail the gate")
	}
	found := false
	for _, r := range gate.Reasons {
		if strings.Contains(r, "time buckets") {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected bucket reason, got %v", gate.Reasons)
	}
}

func TestCheckGate_NoStableComponentFails(t *testing.T) {
	// Flip the effect direction per bucket so no component can reach the
	// agreement threshold.
	snaps := snapshotSet(t, 240, 400)
	for i, s := range snaps {
		high := 2.5
		low := 0.5
		// Alternate direction by bucket index parity.
		flip := strings.HasSuffix(s.TimeBucket, "Q1") || strings.HasSuffix(s.TimeBucket, "Q3")
		team := high
		if (s.Success && flip) || (!s.Success && !flip) {
			team = low
		}
		features, err := json.Marshal(map[string]float64{"team_execution": team})
		if err != nil {
			t.Fatalf("marshal features row %d: %v", i, err)
		}
		s.Features = features
	}
	gate, err := CheckGate(snaps, DefaultGateConfig())
	if err != nil {
		t.Fatalf("CheckGate: %v", err)
	}
	if gate.Passed {
		t.Fatalf("alternating effect directions must fail stability, reasons: %v", gate.Reasons)
	}
}

func TestCheckGate_StabilityReportsAgreement(t *testing.T) {
	snaps := snapshotSet(t, 200, 400)
	gate, err := CheckGate(snaps, DefaultGateConfig())
	if err != nil {
		t.Fatalf("CheckGate: %v", err)
	}
	var team *ComponentStability
	for i := range gate.Stability {
		if gate.Stability[i].Component == "team_execution" {
			team = &gate.Stability[i]
		}
	}
	if team == nil {
		t.Fatalf("expected stability entry for team_execution")
	}
	if !team.Stable || team.Direction != 1 {
		t.Fatalf("expected stable positive direction, got %+v", team)
	}
	if team.Agreement < 0.75 {
		t.Fatalf("expected agreement >= 0.75, got %v", team.Agreement)
	}
}

func TestCheckGate_EmptySnapshotFailsEveryPrecondition(t *testing.T) {
	gate, err := CheckGate(nil, DefaultGateConfig())
	if err != nil {
		t.Fatalf("CheckGate: %v", err)
	}
	if gate.Passed {
		t.Fatalf("empty snapshot must fail the gate")
	}
	if len(gate.Reasons) == 0 {
		t.Fatalf("expected enumerated reasons")
	}
}
