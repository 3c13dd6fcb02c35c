package scoring

import "strings"

// Canonical stage labels. Ingestion is expected to deliver these already
// canonicalized; CanonicalStage exists so the matching engine can normalize
// both sides of a comparison even when an upstream record slips through with
// a numeric code or a loose alias.
const (
	StagePreSeed = "PreSeed"
	StageSeed    = "Seed"
	StageSeriesA = "SeriesA"
	StageSeriesB = "SeriesB"
	StageSeriesC = "SeriesC"
	StageGrowth  = "Growth"
)

var CanonicalStages = []string{
	StagePreSeed,
	StageSeed,
	StageSeriesA,
	StageSeriesB,
	StageSeriesC,
	StageGrowth,
}

var stageAliases = map[string]string{
	"0":         StagePreSeed,
	"preseed":   StagePreSeed,
	"pre-seed":  StagePreSeed,
	"pre seed":  StagePreSeed,
	"1":         StageSeed,
	"seed":      StageSeed,
	"2":         StageSeriesA,
	"seriesa":   StageSeriesA,
	"series a":  StageSeriesA,
	"series-a":  StageSeriesA,
	"a":         StageSeriesA,
	"3":         StageSeriesB,
	"seriesb":   StageSeriesB,
	"series b":  StageSeriesB,
	"series-b":  StageSeriesB,
	"b":         StageSeriesB,
	"4":         StageSeriesC,
	"seriesc":   StageSeriesC,
	"series c":  StageSeriesC,
	"series-c":  StageSeriesC,
	"c":         StageSeriesC,
	"5":         StageGrowth,
	"growth":    StageGrowth,
	"late":       StageGrowth,
	"late stage": StageGrowth,
	"latestage":  StageGrowth,
}

// CanonicalStage maps a raw stage value (canonical label, loose alias, or
// numeric code) to its canonical label. ok is false for unrecognized input.
func CanonicalStage(raw string) (string, bool) {
	trimmed := strings.TrimSpace(raw)
	for _, s := range CanonicalStages {
		if trimmed == s {
			return s, true
		}
	}
	if canonical, ok := stageAliases[strings.ToLower(trimmed)]; ok {
		return canonical, true
	}
	return "", false
}

// StageDistance is the number of steps between two canonical stages in the
// funding progression; -1 when either label is unknown.
func StageDistance(a, b string) int {
	ai, bi := -1, -1
	for i, s := range CanonicalStages {
		if s == a {
			ai = i
		}
		if s == b {
			bi = i
		}
	}
	if ai < 0 || bi < 0 {
		return -1
	}
	if ai > bi {
		return ai - bi
	}
	return bi - ai
}
