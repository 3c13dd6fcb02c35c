package learning

import (
	"encoding/json"
	"fmt"

	"github.com/fundbridge/fundbridge-backend/internal/scoring"
	"github.com/fundbridge/fundbridge-backend/internal/types"
)

// GateConfig holds the deterministic preconditions a learning cycle must
// satisfy before it may propose anything. Failing the gate is a normal,
// logged outcome, not an error.
type GateConfig struct {
	MinSuccesses       int
	MinFailures        int
	PositiveRateMin    float64
	PositiveRateMax    float64
	MinBuckets         int
	AgreementThreshold float64
}

func DefaultGateConfig() GateConfig {
	return GateConfig{
		MinSuccesses:       200,
		MinFailures:        200,
		PositiveRateMin:    0.02,
		PositiveRateMax:    0.50,
		MinBuckets:         4,
		AgreementThreshold: 0.75,
	}
}

// ComponentStability records cross-time agreement for one component's effect
// direction.
type ComponentStability struct {
	Component string  `json:"component"`
	Direction int     `json:"direction"`
	Agreement float64 `json:"agreement"`
	Buckets   int     `json:"buckets"`
	Stable    bool    `json:"stable"`
}

type GateResult struct {
	Passed       bool                 `json:"passed"`
	Reasons      []string             `json:"reasons,omitempty"`
	SuccessCount int                  `json:"success_count"`
	FailureCount int                  `json:"failure_count"`
	PositiveRate float64              `json:"positive_rate"`
	BucketCount  int                  `json:"bucket_count"`
	Stability    []ComponentStability `json:"stability"`
}

// trainingRow is a decoded snapshot: features by component name plus label.
type trainingRow struct {
	features map[string]float64
	success  bool
	bucket   string
}

func decodeRows(snapshots []*types.TrainingSnapshot) ([]trainingRow, error) {
	rows := make([]trainingRow, 0, len(snapshots))
	for _, snap := range snapshots {
		var features map[string]float64
		if err := json.Unmarshal(snap.Features, &features); err != nil {
			return nil, fmt.Errorf("decode features for snapshot %s: %w", snap.ID, err)
		}
		rows = append(rows, trainingRow{features: features, success: snap.Success, bucket: snap.TimeBucket})
	}
	return rows, nil
}

// CheckGate evaluates sample-size, positive-rate, and cross-time stability
// preconditions against the materialized snapshot.
func CheckGate(snapshots []*types.TrainingSnapshot, cfg GateConfig) (*GateResult, error) {
	rows, err := decodeRows(snapshots)
	if err != nil {
		return nil, err
	}

	result := &GateResult{}
	for _, row := range rows {
		if row.success {
			result.SuccessCount++
		} else {
			result.FailureCount++
		}
	}
	total := result.SuccessCount + result.FailureCount
	if total > 0 {
		result.PositiveRate = float64(result.SuccessCount) / float64(total)
	}

	if result.SuccessCount < cfg.MinSuccesses {
		result.Reasons = append(result.Reasons, fmt.Sprintf("successes %d below minimum %d", result.SuccessCount, cfg.MinSuccesses))
	}
	if result.FailureCount < cfg.MinFailures {
		result.Reasons = append(result.Reasons, fmt.Sprintf("failures %d below minimum %d", result.FailureCount, cfg.MinFailures))
	}
	if result.PositiveRate < cfg.PositiveRateMin || result.PositiveRate > cfg.PositiveRateMax {
		result.Reasons = append(result.Reasons, fmt.Sprintf("positive rate %.4f outside [%.2f, %.2f]", result.PositiveRate, cfg.PositiveRateMin, cfg.PositiveRateMax))
	}

	buckets := bucketRows(rows)
	result.BucketCount = len(buckets)
	result.Stability = componentStability(buckets, cfg)
	if result.BucketCount < cfg.MinBuckets {
		result.Reasons = append(result.Reasons, fmt.Sprintf("time buckets %d below minimum %d", result.BucketCount, cfg.MinBuckets))
	} else if !anyStable(result.Stability) {
		result.Reasons = append(result.Reasons, "no component shows a stable effect direction across time buckets")
	}

	result.Passed = len(result.Reasons) == 0
	return result, nil
}

func bucketRows(rows []trainingRow) map[string][]trainingRow {
	buckets := make(map[string][]trainingRow)
	for _, row := range rows {
		buckets[row.bucket] = append(buckets[row.bucket], row)
	}
	return buckets
}

// componentStability computes, per component, the per-bucket effect
// direction (mean feature among successes minus mean among failures) and how
// often the directions agree. A component is stable when the majority
// direction holds in at least the agreement-threshold share of buckets that
// produced a direction at all.
func componentStability(buckets map[string][]trainingRow, cfg GateConfig) []ComponentStability {
	out := make([]ComponentStability, 0, len(scoring.Components))
	for _, c := range scoring.Components {
		var positive, negative int
		for _, rows := range buckets {
			effect, ok := bucketEffect(rows, c.Name)
			if !ok {
				continue
			}
			if effect > 0 {
				positive++
			} else if effect < 0 {
				negative++
			}
		}
		decided := positive + negative
		stability := ComponentStability{Component: c.Name, Buckets: decided}
		if decided > 0 {
			if positive >= negative {
				stability.Direction = 1
				stability.Agreement = float64(positive) / float64(decided)
			} else {
				stability.Direction = -1
				stability.Agreement = float64(negative) / float64(decided)
			}
			stability.Stable = decided >= cfg.MinBuckets && stability.Agreement >= cfg.AgreementThreshold
		}
		out = append(out, stability)
	}
	return out
}

func bucketEffect(rows []trainingRow, component string) (float64, bool) {
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
		return 0, false
	}
	return successSum/float64(successes) - failSum/float64(failures), true
}

func anyStable(stability []ComponentStability) bool {
	for _, s := range stability {
		if s.Stable {
			return true
		}
	}
	return false
}
