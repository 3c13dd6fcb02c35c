package scoring

import (
	"fmt"
	"sort"
)

const MaxBaseScore = 100.0

// SubScoreError reports a sub-score input that is unknown or outside its
// bound. Out-of-range inputs are refused, not clamped.
type SubScoreError struct {
	Name  string
	Value float64
	Max   float64
}

func (e *SubScoreError) Error() string {
	if e.Max == 0 {
		return fmt.Sprintf("unknown sub-score %q", e.Name)
	}
	return fmt.Sprintf("sub-score %s=%.4g outside [0, %.4g]", e.Name, e.Value, e.Max)
}

// ComponentPoints is one component's contribution to the raw total.
type ComponentPoints struct {
	Component string  `json:"component"`
	Raw       float64 `json:"raw"`
	Weight    float64 `json:"weight"`
	Points    float64 `json:"points"`
}

// BaseScore computes the 0–100 composite from the bounded sub-scores:
//
//	rawTotal = minBaseBoost + Σ(weight × subScore)
//	score    = min(100, rawTotal / normalizationDivisor × 100)
//
// The signal bonus and the psychological multiplier are separate layers and
// must never enter rawTotal; mixing them in corrupts calibration across the
// whole population.
func BaseScore(subScores map[string]float64, p *Params) (float64, []ComponentPoints, error) {
	if err := validateSubScores(subScores); err != nil {
		return 0, nil, err
	}

	rawTotal := p.MinBaseBoost
	breakdown := make([]ComponentPoints, 0, len(Components))
	for _, c := range Components {
		raw := subScores[c.Name]
		weight := p.ComponentWeights[c.Name]
		points := raw * weight
		rawTotal += points
		breakdown = append(breakdown, ComponentPoints{
			Component: c.Name,
			Raw:       raw,
			Weight:    weight,
			Points:    points,
		})
	}

	score := rawTotal / p.NormalizationDivisor * 100
	if score > MaxBaseScore {
		score = MaxBaseScore
	}
	return score, breakdown, nil
}

func validateSubScores(subScores map[string]float64) error {
	names := make([]string, 0, len(subScores))
	for name := range subScores {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		max, known := componentMax(name)
		if !known {
			return &SubScoreError{Name: name}
		}
		if v := subScores[name]; v < 0 || v > max {
			return &SubScoreError{Name: name, Value: v, Max: max}
		}
	}
	return nil
}
