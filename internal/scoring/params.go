package scoring

import (
	"encoding/json"
	"fmt"

	"github.com/fundbridge/fundbridge-backend/internal/types"
)

// Params is the decoded, in-memory view of a WeightVersion. Every scoring
// function is a pure function of (inputs, Params) so identical inputs under
// the same active version always produce identical scores.
type Params struct {
	ComponentWeights     map[string]float64
	SignalMaxPoints      map[string]float64
	NormalizationDivisor float64
	MinBaseBoost         float64
	MultiplierFloor      float64
	MultiplierCeiling    float64
}

// DefaultParams returns the shipped tuning: unit weights, the default signal
// table, and a divisor equal to the maximum attainable raw total so a perfect
// profile normalizes to exactly 100.
func DefaultParams() *Params {
	weights := make(map[string]float64, len(Components))
	for _, c := range Components {
		weights[c.Name] = 1.0
	}
	signal := make(map[string]float64, len(SignalDimensions))
	for _, s := range SignalDimensions {
		signal[s.Name] = s.Max
	}
	boost := 10.0
	return &Params{
		ComponentWeights:     weights,
		SignalMaxPoints:      signal,
		NormalizationDivisor: boost + MaxRawComponentTotal(),
		MinBaseBoost:         boost,
		MultiplierFloor:      0.7,
		MultiplierCeiling:    1.5,
	}
}

func ParamsFromVersion(v *types.WeightVersion) (*Params, error) {
	if v == nil {
		return nil, fmt.Errorf("nil weight version")
	}
	p := &Params{
		NormalizationDivisor: v.NormalizationDivisor,
		MinBaseBoost:         v.MinBaseBoost,
		MultiplierFloor:      v.MultiplierFloor,
		MultiplierCeiling:    v.MultiplierCeiling,
	}
	if err := json.Unmarshal(v.ComponentWeights, &p.ComponentWeights); err != nil {
		return nil, fmt.Errorf("decode component weights for version %s: %w", v.Tag, err)
	}
	if err := json.Unmarshal(v.SignalMaxPoints, &p.SignalMaxPoints); err != nil {
		return nil, fmt.Errorf("decode signal max points for version %s: %w", v.Tag, err)
	}
	return p, nil
}

// ToVersion encodes params into a new draft WeightVersion row. The caller
// owns id, tag, provenance and parent wiring.
func (p *Params) ToVersion() (*types.WeightVersion, error) {
	weights, err := json.Marshal(p.ComponentWeights)
	if err != nil {
		return nil, err
	}
	signal, err := json.Marshal(p.SignalMaxPoints)
	if err != nil {
		return nil, err
	}
	return &types.WeightVersion{
		Status:               types.WeightVersionDraft,
		ComponentWeights:     weights,
		SignalMaxPoints:      signal,
		NormalizationDivisor: p.NormalizationDivisor,
		MinBaseBoost:         p.MinBaseBoost,
		MultiplierFloor:      p.MultiplierFloor,
		MultiplierCeiling:    p.MultiplierCeiling,
	}, nil
}
