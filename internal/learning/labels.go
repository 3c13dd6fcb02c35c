package learning

import (
	"time"

	"github.com/google/uuid"

	"github.com/fundbridge/fundbridge-backend/internal/types"
)

// OutcomeWindow is how long after the scoring timestamp an outcome event may
// count toward a label.
const OutcomeWindow = 180 * 24 * time.Hour

// successThresholds is the allowlist of label sources: independently
// time-stamped real-world events and the value each must cross. Anything not
// in this table cannot label a row.
var successThresholds = map[string]float64{
	types.OutcomeFundingRound:    500_000,
	types.OutcomeRevenueReport:   100_000,
	types.OutcomeRetentionReport: 70,
}

// forbiddenLabelSources is the structural denylist of score-derived fields.
// Labeling from the score itself (or anything computed from it) is the
// circular-label failure mode that once corrupted a full recalibration, so
// the check is code, not convention.
var forbiddenLabelSources = map[string]struct{}{
	"base_score":       {},
	"enhanced_score":   {},
	"signal_bonus":     {},
	"psych_multiplier": {},
	"match_score":      {},
	"score_breakdown":  {},
}

func IsForbiddenLabelSource(field string) bool {
	_, forbidden := forbiddenLabelSources[field]
	return forbidden
}

// Label is the outcome derived for one training row.
type Label struct {
	Success bool
	EventID *uuid.UUID
	Source  string
	// Mature is false while the outcome window is still open and no
	// qualifying event has arrived; immature rows are excluded from training
	// rather than labeled as failures.
	Mature bool
}

// DeriveLabel inspects outcome events against the score date. Only events
// strictly after scoreDate and within the window count; an event at or
// before scoreDate is feature-adjacent data, never outcome evidence.
func DeriveLabel(scoreDate, now time.Time, events []*types.OutcomeEvent) Label {
	windowEnd := scoreDate.Add(OutcomeWindow)
	for _, ev := range events {
		if !ev.OccurredAt.After(scoreDate) {
			continue
		}
		if ev.OccurredAt.After(windowEnd) {
			continue
		}
		threshold, allowed := successThresholds[ev.EventType]
		if !allowed {
			continue
		}
		if ev.Value >= threshold {
			id := ev.ID
			return Label{Success: true, EventID: &id, Source: ev.EventType, Mature: true}
		}
	}
	if now.After(windowEnd) {
		return Label{Success: false, Mature: true}
	}
	return Label{Mature: false}
}

// TimeBucket tags a score date with its quarter for stability analysis.
func TimeBucket(scoreDate time.Time) string {
	quarter := (int(scoreDate.Month())-1)/3 + 1
	return scoreDate.Format("2006") + "Q" + string(rune('0'+quarter))
}
