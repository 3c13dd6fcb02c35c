package scoring

// Component is one bounded scoring dimension. Max is the ceiling for the raw
// sub-score input; values above it are rejected at validation, never clamped.
type Component struct {
	Name string
	Max  float64
}

// Components is the fixed set of base-score dimensions. The weights applied
// to them are business-tunable configuration (WeightVersion); the set itself
// and the per-dimension bounds are an architectural contract.
var Components = []Component{
	{Name: "team_execution", Max: 3},
	{Name: "traction", Max: 3},
	{Name: "market", Max: 2},
	{Name: "product", Max: 2},
	{Name: "vision", Max: 2},
	{Name: "founder_fit", Max: 2},
	{Name: "revenue_growth", Max: 2},
	{Name: "retention", Max: 2},
	{Name: "unit_economics", Max: 2},
	{Name: "differentiation", Max: 2},
	{Name: "timing", Max: 1},
	{Name: "team_completeness", Max: 1},
	{Name: "technical_moat", Max: 1},
	{Name: "distribution", Max: 1},
	{Name: "capital_efficiency", Max: 1},
	{Name: "board_quality", Max: 1},
	{Name: "customer_love", Max: 1},
	{Name: "pipeline_depth", Max: 1},
	{Name: "geographic_reach", Max: 1},
	{Name: "regulatory_readiness", Max: 1},
	{Name: "competitive_position", Max: 1},
	{Name: "narrative_clarity", Max: 1},
	{Name: "momentum", Max: 1},
}

// SignalDimensions are the market-sentiment sub-signals. Their maxima live in
// the WeightVersion's protected signal max-points table; the values here are
// the shipped defaults and sum to exactly SignalBonusCap.
var SignalDimensions = []Component{
	{Name: "sentiment_shift", Max: 3},
	{Name: "external_receptivity", Max: 2},
	{Name: "signal_momentum", Max: 2},
	{Name: "convergence", Max: 1.5},
	{Name: "velocity", Max: 1.5},
}

// Behavioral flags and their multiplier contributions. Positive flags raise
// the multiplier, risk flags lower it; the result is clamped to the version's
// band.
var PositiveFlags = map[string]float64{
	"oversubscribed":       0.15,
	"follow_on":            0.10,
	"competitive_urgency":  0.10,
}

var RiskFlags = map[string]float64{
	"founder_departure": 0.25,
	"instability":       0.15,
}

func componentMax(name string) (float64, bool) {
	for _, c := range Components {
		if c.Name == name {
			return c.Max, true
		}
	}
	return 0, false
}

func signalMax(name string) (float64, bool) {
	for _, c := range SignalDimensions {
		if c.Name == name {
			return c.Max, true
		}
	}
	return 0, false
}

// MaxRawComponentTotal is the sum of every component ceiling at weight 1.0,
// used when deriving the default normalization divisor.
func MaxRawComponentTotal() float64 {
	var total float64
	for _, c := range Components {
		total += c.Max
	}
	return total
}
