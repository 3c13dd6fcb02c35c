package learning

import (
	"fmt"
	"math"

	"github.com/fundbridge/fundbridge-backend/internal/scoring"
	"github.com/fundbridge/fundbridge-backend/internal/types"
)

const (
	// MinImprovement is the floor under which a candidate recommendation is
	// discarded as noise-driven churn.
	MinImprovement = 0.02

	// maxWeightNudge bounds how far a single learning cycle may move any one
	// component weight.
	maxWeightNudge = 0.25

	learningRate = 0.5
)

// WeightChange is one proposed component-weight move.
type WeightChange struct {
	Component string  `json:"component"`
	From      float64 `json:"from"`
	To        float64 `json:"to"`
	Effect    float64 `json:"effect"`
}

// Proposal is a fully analyzed candidate: new params plus the diff and its
// projected improvement. It only ever becomes a draft version pending human
// approval.
type Proposal struct {
	Params              *scoring.Params
	Changes             []WeightChange
	ExpectedImprovement float64
}

// Analyze derives per-component weight nudges from the snapshot, restricted
// to components the gate found directionally stable, and projects the
// improvement in score separation between successful and failed startups.
// A nil return with nil error means no candidate cleared the improvement
// floor, which is a normal outcome.
func Analyze(snapshots []*types.TrainingSnapshot, gate *GateResult, parent *scoring.Params) (*Proposal, error) {
	rows, err := decodeRows(snapshots)
	if err != nil {
		return nil, err
	}

	stableDirections := make(map[string]int)
	for _, s := range gate.Stability {
		if s.Stable {
			stableDirections[s.Component] = s.Direction
		}
	}
	if len(stableDirections) == 0 {
		return nil, nil
	}

	candidate := cloneParams(parent)
	var changes []WeightChange
	for _, c := range scoring.Components {
		direction, stable := stableDirections[c.Name]
		if !stable {
			continue
		}
		effect := overallEffect(rows, c.Name)
		if effect == 0 {
			continue
		}
		nudge := learningRate * effect / c.Max
		if nudge > maxWeightNudge {
			nudge = maxWeightNudge
		}
		if nudge < -maxWeightNudge {
			nudge = -maxWeightNudge
		}
		// Respect the gate's direction even when the pooled effect disagrees
		// with an individual bucket.
		if float64(direction)*nudge < 0 {
			continue
		}
		from := parent.ComponentWeights[c.Name]
		to := from + nudge
		if to < scoring.ComponentWeightMin {
			to = scoring.ComponentWeightMin
		}
		if to > scoring.ComponentWeightMax {
			to = scoring.ComponentWeightMax
		}
		if to == from {
			continue
		}
		candidate.ComponentWeights[c.Name] = to
		changes = append(changes, WeightChange{Component: c.Name, From: from, To: to, Effect: effect})
	}
	if len(changes) == 0 {
		return nil, nil
	}

	improvement, err := projectedImprovement(rows, parent, candidate)
	if err != nil {
		return nil, err
	}
	if improvement < MinImprovement {
		return nil, nil
	}
	return &Proposal{Params: candidate, Changes: changes, ExpectedImprovement: improvement}, nil
}

func overallEffect(rows []trainingRow, component string) float64 {
	var successSum, failSum float64
	var successes, failures int
	for _, row := range rows {
		v := row.features[component]
		if row.success {
			successSum += v
			successes++
		} else {
			failSum += v
			failures++
		}
	}
	if successes == 0 || failures == 0 {
		return 0
	}
	return successSum/float64(successes) - failSum/float64(failures)
}

// projectedImprovement compares how well the candidate separates successes
// from failures relative to the parent, measured on mean base score.
func projectedImprovement(rows []trainingRow, parent, candidate *scoring.Params) (float64, error) {
	parentSep, err := separation(rows, parent)
	if err != nil {
		return 0, err
	}
	candidateSep, err := separation(rows, candidate)
	if err != nil {
		return 0, err
	}
	if parentSep <= 0 {
		if candidateSep > 0 {
			return 1, nil
		}
		return 0, nil
	}
	return (candidateSep - parentSep) / math.Abs(parentSep), nil
}

func separation(rows []trainingRow, p *scoring.Params) (float64, error) {
	var successSum, failSum float64
	var successes, failures int
	for _, row := range rows {
		score, _, err := scoring.BaseScore(row.features, p)
		if err != nil {
			return 0, fmt.Errorf("score training row: %w", err)
		}
		if row.success {
			successSum += score
			successes++
		} else {
			failSum += score
			failures++
		}
	}
	if successes == 0 || failures == 0 {
		return 0, nil
	}
	return successSum/float64(successes) - failSum/float64(failures), nil
}

func cloneParams(p *scoring.Params) *scoring.Params {
	weights := make(map[string]float64, len(p.ComponentWeights))
	for k, v := range p.ComponentWeights {
		weights[k] = v
	}
	signal := make(map[string]float64, len(p.SignalMaxPoints))
	for k, v := range p.SignalMaxPoints {
		signal[k] = v
	}
	return &scoring.Params{
		ComponentWeights:     weights,
		SignalMaxPoints:      signal,
		NormalizationDivisor: p.NormalizationDivisor,
		MinBaseBoost:         p.MinBaseBoost,
		MultiplierFloor:      p.MultiplierFloor,
		MultiplierCeiling:    p.MultiplierCeiling,
	}
}
