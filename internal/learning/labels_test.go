package learning

import (
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/fundbridge/fundbridge-backend/internal/types"
)

func event(evType string, value float64, occurred time.Time) *types.OutcomeEvent {
	return &types.OutcomeEvent{
		ID:         uuid.New(),
		EventType:  evType,
		Value:      value,
		OccurredAt: occurred,
	}
}

func TestDeriveLabel_FundingRoundAboveThresholdSucceeds(t *testing.T) {
	scoreDate := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	ev := event(types.OutcomeFundingRound, 750_000, scoreDate.AddDate(0, 2, 0))
	label := DeriveLabel(scoreDate, scoreDate.AddDate(0, 7, 0), []*types.OutcomeEvent{ev})
	if !label.Success || !label.Mature {
		t.Fatalf("expected mature success, got %+v", label)
	}
	if label.EventID == nil || *label.EventID != ev.ID {
		t.Fatalf("expected label traced to event %s", ev.ID)
	}
	if label.Source != types.OutcomeFundingRound {
		t.Fatalf("unexpected source %q", label.Source)
	}
}

func TestDeriveLabel_EventAtScoreDateDoesNotCount(t *testing.T) {
	// An event at or before the score date is not outcome evidence; letting
	// it through would leak the label into the features.
	scoreDate := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	atScore := event(types.OutcomeFundingRound, 1_000_000, scoreDate)
	before := event(types.OutcomeFundingRound, 1_000_000, scoreDate.AddDate(0, -1, 0))
	label := DeriveLabel(scoreDate, scoreDate.AddDate(1, 0, 0), []*types.OutcomeEvent{atScore, before})
	if label.Success {
		t.Fatalf("expected no success from pre-score events, got %+v", label)
	}
	if !label.Mature {
		t.Fatalf("window closed, expected mature failure")
	}
}

func TestDeriveLabel_EventAfterWindowDoesNotCount(t *testing.T) {
	scoreDate := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	late := event(types.OutcomeFundingRound, 1_000_000, scoreDate.Add(OutcomeWindow+time.Hour))
	label := DeriveLabel(scoreDate, scoreDate.AddDate(1, 0, 0), []*types.OutcomeEvent{late})
	if label.Success {
		t.Fatalf("expected event outside window ignored, got %+v", label)
	}
}

func TestDeriveLabel_BelowThresholdIsNotSuccess(t *testing.T) {
	scoreDate := time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC)
	small := event(types.OutcomeFundingRound, 499_999, scoreDate.AddDate(0, 1, 0))
	label := DeriveLabel(scoreDate, scoreDate.AddDate(1, 0, 0), []*types.OutcomeEvent{small})
	if label.Success {
		t.Fatalf("expected sub-threshold round to not label success")
	}
}

func TestDeriveLabel_OpenWindowWithoutSuccessIsImmature(t *testing.T) {
	scoreDate := time.Date(2026, 6, 1, 0, 0, 0, 0, time.UTC)
	now := scoreDate.AddDate(0, 2, 0)
	label := DeriveLabel(scoreDate, now, nil)
	if label.Mature {
		t.Fatalf("open window without events must be immature, got %+v", label)
	}
	if label.Success {
		t.Fatalf("immature rows are never successes")
	}
}

func TestDeriveLabel_RetentionAndRevenueThresholds(t *testing.T) {
	scoreDate := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	now := scoreDate.AddDate(1, 0, 0)

	rev := event(types.OutcomeRevenueReport, 100_000, scoreDate.AddDate(0, 3, 0))
	if label := DeriveLabel(scoreDate, now, []*types.OutcomeEvent{rev}); !label.Success {
		t.Fatalf("revenue at threshold should succeed")
	}
	ret := event(types.OutcomeRetentionReport, 69.9, scoreDate.AddDate(0, 3, 0))
	if label := DeriveLabel(scoreDate, now, []*types.OutcomeEvent{ret}); label.Success {
		t.Fatalf("retention below threshold should not succeed")
	}
}

func TestDeriveLabel_UnknownEventTypeIgnored(t *testing.T) {
	scoreDate := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	odd := event("press_mention", 1_000_000_000, scoreDate.AddDate(0, 1, 0))
	label := DeriveLabel(scoreDate, scoreDate.AddDate(1, 0, 0), []*types.OutcomeEvent{odd})
	if label.Success {
		t.Fatalf("non-allowlisted event types must not label rows")
	}
}

func TestIsForbiddenLabelSource_DenylistsScoreDerivedFields(t *testing.T) {
	for _, field := range []string{"base_score", "enhanced_score", "signal_bonus", "psych_multiplier", "match_score", "score_breakdown"} {
		if !IsForbiddenLabelSource(field) {
			t.Fatalf("expected %q to be forbidden", field)
		}
	}
	if IsForbiddenLabelSource(types.OutcomeFundingRound) {
		t.Fatalf("allowlisted outcome type flagged as forbidden")
	}
}

func TestTimeBucket_QuarterFormat(t *testing.T) {
	cases := map[time.Time]string{
		time.Date(2026, 1, 15, 0, 0, 0, 0, time.UTC):  "2026Q1",
		time.Date(2026, 3, 31, 0, 0, 0, 0, time.UTC):  "2026Q1",
		time.Date(2026, 4, 1, 0, 0, 0, 0, time.UTC):   "2026Q2",
		time.Date(2026, 9, 30, 0, 0, 0, 0, time.UTC):  "2026Q3",
		time.Date(2025, 12, 31, 0, 0, 0, 0, time.UTC): "2025Q4",
	}
	for date, want := range cases {
		if got := TimeBucket(date); got != want {
			t.Fatalf("TimeBucket(%s) = %q, want %q", date, got, want)
		}
	}
}
