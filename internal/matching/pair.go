package matching

import (
	"encoding/json"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/fundbridge/fundbridge-backend/internal/scoring"
	"github.com/fundbridge/fundbridge-backend/internal/types"
)

// Factor point budget. The five factors top out at 100 combined:
// sector 25 + stage 20 + tier 15 + quality 30 + signal 10.
const (
	sectorExactPoints     = 12.0
	sectorSynonymPoints   = 8.0
	sectorSubstringPoints = 6.0
	sectorCap             = 25.0

	stageExactPoints    = 20.0
	stageAdjacentPoints = 10.0

	tierElitePoints    = 15.0
	tierStrongPoints   = 10.0
	tierStandardPoints = 5.0

	qualityCap = 30.0

	// Minimum-floor contributions for unrecognized categorical input. The
	// pair stays in consideration at low confidence instead of silently
	// dropping out.
	unknownStageFloor  = 4.0
	missingSectorFloor = 2.0
)

// Reason codes logged when categorical input degrades to a floor.
const (
	ReasonUnknownStage   = "unknown_stage"
	ReasonMissingSectors = "missing_sectors"
)

// Curated sector synonym pairs, both directions.
var sectorSynonyms = map[string]string{
	"fintech":        "payments",
	"payments":       "fintech",
	"saas":           "software",
	"software":       "saas",
	"healthtech":     "digital health",
	"digital health": "healthtech",
	"ai":             "machine learning",
	"machine learning": "ai",
	"ecommerce":      "marketplace",
	"marketplace":    "ecommerce",
	"climate":        "cleantech",
	"cleantech":      "climate",
}

// StartupView is the normalized, decoded form of a StartupProfile used for
// pair scoring. Reasons collects degradation codes hit during normalization.
type StartupView struct {
	ID          uuid.UUID
	Sectors     []string
	Stage       string
	StageKnown  bool
	BaseScore   float64
	SignalBonus float64
	Reasons     []string
}

type InvestorView struct {
	ID             uuid.UUID
	Name           string
	Sectors        []string
	AcceptedStages []string
	Tier           string
	QualityScore   float64
}

func NewStartupView(s *types.StartupProfile) (*StartupView, error) {
	v := &StartupView{
		ID:          s.ID,
		BaseScore:   s.BaseScore,
		SignalBonus: s.SignalBonus,
	}
	if len(s.Sectors) > 0 {
		if err := json.Unmarshal(s.Sectors, &v.Sectors); err != nil {
			return nil, fmt.Errorf("decode sectors for startup %s: %w", s.ID, err)
		}
	}
	stage, ok := scoring.CanonicalStage(s.Stage)
	if ok {
		v.Stage = stage
		v.StageKnown = true
	} else {
		v.Reasons = append(v.Reasons, ReasonUnknownStage)
	}
	if len(v.Sectors) == 0 {
		v.Reasons = append(v.Reasons, ReasonMissingSectors)
	}
	return v, nil
}

func NewInvestorView(inv *types.InvestorProfile) (*InvestorView, error) {
	v := &InvestorView{
		ID:           inv.ID,
		Name:         inv.Name,
		Tier:         inv.Tier,
		QualityScore: inv.QualityScore,
	}
	if len(inv.Sectors) > 0 {
		if err := json.Unmarshal(inv.Sectors, &v.Sectors); err != nil {
			return nil, fmt.Errorf("decode sectors for investor %s: %w", inv.ID, err)
		}
	}
	var rawStages []string
	if len(inv.AcceptedStages) > 0 {
		if err := json.Unmarshal(inv.AcceptedStages, &rawStages); err != nil {
			return nil, fmt.Errorf("decode accepted stages for investor %s: %w", inv.ID, err)
		}
	}
	// Both sides of a stage comparison are normalized to the canonical label
	// set before comparison, even when the upstream record carries a numeric
	// code.
	for _, raw := range rawStages {
		if stage, ok := scoring.CanonicalStage(raw); ok {
			v.AcceptedStages = append(v.AcceptedStages, stage)
		}
	}
	return v, nil
}

// PairScore is a pure function of the two views: a weighted sum of the five
// independent factors, each contributing one structured rationale entry.
func PairScore(s *StartupView, inv *InvestorView) (float64, []types.MatchFactor, []string) {
	var reasons []string
	factors := make([]types.MatchFactor, 0, 5)

	sectorPoints, sectorWhy, sectorReasons := sectorOverlap(s.Sectors, inv.Sectors)
	reasons = append(reasons, sectorReasons...)
	factors = append(factors, types.MatchFactor{Factor: "sector_overlap", Points: sectorPoints, Rationale: sectorWhy})

	stagePoints, stageWhy, stageReasons := stageAlignment(s, inv)
	reasons = append(reasons, stageReasons...)
	factors = append(factors, types.MatchFactor{Factor: "stage_alignment", Points: stagePoints, Rationale: stageWhy})

	tierPoints, tierWhy := tierBonus(inv.Tier)
	factors = append(factors, types.MatchFactor{Factor: "investor_tier", Points: tierPoints, Rationale: tierWhy})

	qualityPoints := s.BaseScore / scoring.MaxBaseScore * qualityCap
	factors = append(factors, types.MatchFactor{
		Factor:    "startup_quality",
		Points:    qualityPoints,
		Rationale: fmt.Sprintf("base score %.1f/100 scaled to %.0f-point budget", s.BaseScore, qualityCap),
	})

	signalPoints := s.SignalBonus
	factors = append(factors, types.MatchFactor{
		Factor:    "market_signal",
		Points:    signalPoints,
		Rationale: fmt.Sprintf("precomputed market-signal bonus %.1f/%.0f", signalPoints, scoring.SignalBonusCap),
	})

	total := sectorPoints + stagePoints + tierPoints + qualityPoints + signalPoints
	return total, factors, reasons
}

func sectorOverlap(startupSectors, investorSectors []string) (float64, string, []string) {
	if len(startupSectors) == 0 || len(investorSectors) == 0 {
		return missingSectorFloor, "sector tokens missing on one side, floor contribution", []string{ReasonMissingSectors}
	}

	investorSet := make(map[string]struct{}, len(investorSectors))
	for _, sec := range investorSectors {
		investorSet[normalizeSector(sec)] = struct{}{}
	}

	var points float64
	var hits []string
	for _, raw := range startupSectors {
		sec := normalizeSector(raw)
		if _, ok := investorSet[sec]; ok {
			points += sectorExactPoints
			hits = append(hits, sec)
			continue
		}
		if syn, ok := sectorSynonyms[sec]; ok {
			if _, match := investorSet[syn]; match {
				points += sectorSynonymPoints
				hits = append(hits, sec+"~"+syn)
				continue
			}
		}
		if substringHit(sec, investorSet) {
			points += sectorSubstringPoints
			hits = append(hits, sec+"*")
		}
	}
	if points > sectorCap {
		points = sectorCap
	}
	if len(hits) == 0 {
		return 0, "no sector overlap", nil
	}
	sort.Strings(hits)
	return points, "sector overlap on " + strings.Join(hits, ", "), nil
}

func substringHit(sector string, investorSet map[string]struct{}) bool {
	for other := range investorSet {
		if sector == other {
			continue
		}
		if strings.Contains(other, sector) || strings.Contains(sector, other) {
			return true
		}
	}
	return false
}

func normalizeSector(raw string) string {
	return strings.ToLower(strings.TrimSpace(raw))
}

func stageAlignment(s *StartupView, inv *InvestorView) (float64, string, []string) {
	if !s.StageKnown {
		return unknownStageFloor, "startup stage unrecognized, floor contribution", []string{ReasonUnknownStage}
	}
	if len(inv.AcceptedStages) == 0 {
		return unknownStageFloor, "investor accepted stages unrecognized, floor contribution", []string{ReasonUnknownStage}
	}
	best := -1
	for _, stage := range inv.AcceptedStages {
		d := scoring.StageDistance(s.Stage, stage)
		if d < 0 {
			continue
		}
		if best < 0 || d < best {
			best = d
		}
	}
	switch {
	case best == 0:
		return stageExactPoints, fmt.Sprintf("stage %s in investor's accepted list", s.Stage), nil
	case best == 1:
		return stageAdjacentPoints, fmt.Sprintf("stage %s adjacent to investor's accepted stages", s.Stage), nil
	default:
		return 0, fmt.Sprintf("stage %s outside investor's range", s.Stage), nil
	}
}

func tierBonus(tier string) (float64, string) {
	switch tier {
	case types.InvestorTierElite:
		return tierElitePoints, "elite-tier investor"
	case types.InvestorTierStrong:
		return tierStrongPoints, "strong-tier investor"
	default:
		return tierStandardPoints, "standard-tier investor"
	}
}

// ConfidenceTier buckets a match score for presentation. The engine persists
// anything at or above the lower persistence floor regardless of tier.
func ConfidenceTier(score float64) string {
	switch {
	case score >= 65:
		return types.ConfidenceHigh
	case score >= 50:
		return types.ConfidenceMedium
	default:
		return types.ConfidenceLow
	}
}
