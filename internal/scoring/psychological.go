package scoring

// Multiplier computes the clamped behavioral multiplier:
//
//	clamp(1.0 + Σ(positive flag weights) − Σ(risk flag weights), band)
//
// Unknown flags are ignored; the flag vocabularies are fixed, so an unknown
// key is upstream noise rather than a scoring input.
func Multiplier(flags map[string]bool, p *Params) float64 {
	m := 1.0
	for name, set := range flags {
		if !set {
			continue
		}
		if w, ok := PositiveFlags[name]; ok {
			m += w
		}
		if w, ok := RiskFlags[name]; ok {
			m -= w
		}
	}
	if m < p.MultiplierFloor {
		m = p.MultiplierFloor
	}
	if m > p.MultiplierCeiling {
		m = p.MultiplierCeiling
	}
	return m
}

// EnhancedScore is base × multiplier, stored alongside the base score so the
// unadjusted composite always survives for audit.
func EnhancedScore(baseScore, multiplier float64) float64 {
	enhanced := baseScore * multiplier
	if enhanced > MaxBaseScore {
		enhanced = MaxBaseScore
	}
	return enhanced
}
