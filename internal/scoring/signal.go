package scoring

import (
	"fmt"
	"sort"
)

// SignalCapError reports an attempt to compute or persist a signal bonus
// above the hard cap. Callers must treat this as a rejection; the value is
// never silently clamped.
type SignalCapError struct {
	Dimension string
	Value     float64
	Max       float64
}

func (e *SignalCapError) Error() string {
	if e.Dimension == "" {
		return fmt.Sprintf("total signal bonus %.4g exceeds cap %.4g", e.Value, e.Max)
	}
	return fmt.Sprintf("signal dimension %s=%.4g exceeds max %.4g", e.Dimension, e.Value, e.Max)
}

// SignalBonus sums the capped market-sentiment sub-signals into the bounded
// additive term. Each input is checked against the version's max-points table
// and the total against SignalBonusCap.
func SignalBonus(inputs map[string]float64, p *Params) (float64, error) {
	names := make([]string, 0, len(inputs))
	for name := range inputs {
		names = append(names, name)
	}
	sort.Strings(names)

	var total float64
	for _, name := range names {
		max, known := p.SignalMaxPoints[name]
		if !known {
			return 0, &SignalCapError{Dimension: name, Value: inputs[name], Max: 0}
		}
		v := inputs[name]
		if v < 0 || v > max {
			return 0, &SignalCapError{Dimension: name, Value: v, Max: max}
		}
		total += v
	}
	if total > SignalBonusCap {
		return 0, &SignalCapError{Value: total, Max: SignalBonusCap}
	}
	return total, nil
}

// FinalScore applies the signal bonus on top of the base score, capped at
// 100.
func FinalScore(baseScore, signalBonus float64) float64 {
	final := baseScore + signalBonus
	if final > MaxBaseScore {
		final = MaxBaseScore
	}
	return final
}
