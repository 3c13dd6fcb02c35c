package scoring

import (
	"fmt"
	"sort"
	"strings"
)

// Fixed guardrail bounds. A candidate WeightVersion violating any of these is
// refused outright with every violation enumerated; nothing is clamped.
const (
	DivisorMin = 30.0
	DivisorMax = 60.0

	BaseBoostMin = 0.0
	BaseBoostMax = 20.0

	MultiplierFloorMin = 0.5
	MultiplierFloorMax = 1.0

	MultiplierCeilingMin = 1.0
	MultiplierCeilingMax = 2.0

	ComponentWeightMin = 0.0
	ComponentWeightMax = 3.0

	// SignalBonusCap is the hard ceiling on the total signal contribution.
	// No retraining may push the sum of the signal max-points table above it.
	SignalBonusCap = 10.0
)

type GuardrailViolation struct {
	Field string  `json:"field"`
	Value float64 `json:"value"`
	Min   float64 `json:"min"`
	Max   float64 `json:"max"`
}

func (v GuardrailViolation) String() string {
	return fmt.Sprintf("%s=%.4g outside [%.4g, %.4g]", v.Field, v.Value, v.Min, v.Max)
}

// GuardrailError carries every violated bound so review surfaces see the
// whole picture in one rejection.
type GuardrailError struct {
	Violations []GuardrailViolation
}

func (e *GuardrailError) Error() string {
	parts := make([]string, 0, len(e.Violations))
	for _, v := range e.Violations {
		parts = append(parts, v.String())
	}
	return "guardrail violations: " + strings.Join(parts, "; ")
}

// ValidateParams runs every tunable against its fixed bound. It runs on
// manual edits and again before any learned draft may be offered for
// approval.
func ValidateParams(p *Params) error {
	var violations []GuardrailViolation

	check := func(field string, value, min, max float64) {
		if value < min || value > max {
			violations = append(violations, GuardrailViolation{Field: field, Value: value, Min: min, Max: max})
		}
	}

	check("normalization_divisor", p.NormalizationDivisor, DivisorMin, DivisorMax)
	check("min_base_boost", p.MinBaseBoost, BaseBoostMin, BaseBoostMax)
	check("multiplier_floor", p.MultiplierFloor, MultiplierFloorMin, MultiplierFloorMax)
	check("multiplier_ceiling", p.MultiplierCeiling, MultiplierCeilingMin, MultiplierCeilingMax)

	names := make([]string, 0, len(p.ComponentWeights))
	for name := range p.ComponentWeights {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if _, known := componentMax(name); !known {
			violations = append(violations, GuardrailViolation{Field: "component_weights." + name, Value: p.ComponentWeights[name], Min: ComponentWeightMin, Max: ComponentWeightMax})
			continue
		}
		check("component_weights."+name, p.ComponentWeights[name], ComponentWeightMin, ComponentWeightMax)
	}
	for _, c := range Components {
		if _, ok := p.ComponentWeights[c.Name]; !ok {
			violations = append(violations, GuardrailViolation{Field: "component_weights." + c.Name, Value: 0, Min: ComponentWeightMin, Max: ComponentWeightMax})
		}
	}

	var signalTotal float64
	sigNames := make([]string, 0, len(p.SignalMaxPoints))
	for name := range p.SignalMaxPoints {
		sigNames = append(sigNames, name)
	}
	sort.Strings(sigNames)
	for _, name := range sigNames {
		max := p.SignalMaxPoints[name]
		if _, known := signalMax(name); !known {
			violations = append(violations, GuardrailViolation{Field: "signal_max_points." + name, Value: max, Min: 0, Max: SignalBonusCap})
			continue
		}
		check("signal_max_points."+name, max, 0, SignalBonusCap)
		signalTotal += max
	}
	if signalTotal > SignalBonusCap {
		violations = append(violations, GuardrailViolation{Field: "signal_max_points.total", Value: signalTotal, Min: 0, Max: SignalBonusCap})
	}

	if len(violations) > 0 {
		return &GuardrailError{Violations: violations}
	}
	return nil
}
