package learning

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/fundbridge/fundbridge-backend/internal/logger"
	"github.com/fundbridge/fundbridge-backend/internal/repos"
	"github.com/fundbridge/fundbridge-backend/internal/types"
)

type refreshFixture struct {
	db        *gorm.DB
	startups  repos.StartupProfileRepo
	events    repos.OutcomeEventRepo
	snapshots repos.TrainingSnapshotRepo
	refresher *Refresher
}

func newRefreshFixture(t *testing.T) *refreshFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&types.StartupProfile{}, &types.OutcomeEvent{}, &types.TrainingSnapshot{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	log := logger.NewNop()
	f := &refreshFixture{
		db:        db,
		startups:  repos.NewStartupProfileRepo(db, log),
		events:    repos.NewOutcomeEventRepo(db, log),
		snapshots: repos.NewTrainingSnapshotRepo(db, log),
	}
	f.refresher = NewRefresher(log, f.startups, f.events, f.snapshots)
	return f
}

func (f *refreshFixture) addScoredStartup(t *testing.T, scoredAt time.Time) *types.StartupProfile {
	t.Helper()
	subs, _ := json.Marshal(map[string]float64{"team_execution": 2.0, "traction": 1.5})
	s := &types.StartupProfile{
		ExternalRef: uuid.NewString(),
		Name:        "s",
		Status:      types.StartupStatusApproved,
		SubScores:   subs,
		BaseScore:   55,
		ScoredAt:    &scoredAt,
	}
	if err := f.startups.Create(context.Background(), nil, s); err != nil {
		t.Fatalf("create startup: %v", err)
	}
	return s
}

func (f *refreshFixture) addEvent(t *testing.T, startupID uuid.UUID, evType string, value float64, occurred time.Time) {
	t.Helper()
	err := f.events.Create(context.Background(), nil, &types.OutcomeEvent{
		StartupID:  startupID,
		EventType:  evType,
		Value:      value,
		OccurredAt: occurred,
	})
	if err != nil {
		t.Fatalf("create event: %v", err)
	}
}

func TestRefresh_WritesMatureRowsWithLabels(t *testing.T) {
	f := newRefreshFixture(t)
	ctx := context.Background()

	// Closed window, qualifying funding round: mature success.
	winner := f.addScoredStartup(t, time.Now().UTC().AddDate(-1, 0, 0))
	f.addEvent(t, winner.ID, types.OutcomeFundingRound, 800_000, time.Now().UTC().AddDate(0, -10, 0))

	// Closed window, no events: mature failure.
	loser := f.addScoredStartup(t, time.Now().UTC().AddDate(-1, 0, 0))

	written, err := f.refresher.Refresh(ctx)
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if written != 2 {
		t.Fatalf("expected 2 rows written, got %d", written)
	}

	rows, err := f.snapshots.ListAll(ctx, nil)
	if err != nil {
		t.Fatalf("list snapshots: %v", err)
	}
	byStartup := map[uuid.UUID]*types.TrainingSnapshot{}
	for _, r := range rows {
		byStartup[r.StartupID] = r
	}
	win := byStartup[winner.ID]
	if win == nil || !win.Success {
		t.Fatalf("expected success label for funded startup, got %+v", win)
	}
	if win.LabelSource != types.OutcomeFundingRound || win.LabelEventID == nil {
		t.Fatalf("success label must trace to its event: %+v", win)
	}
	lose := byStartup[loser.ID]
	if lose == nil || lose.Success {
		t.Fatalf("expected failure label for eventless startup, got %+v", lose)
	}

	// Features carry the as-of sub-scores, not derived score fields.
	var features map[string]float64
	if err := json.Unmarshal(win.Features, &features); err != nil {
		t.Fatalf("decode features: %v", err)
	}
	if features["team_execution"] != 2.0 {
		t.Fatalf("unexpected features: %v", features)
	}
	for field := range features {
		if IsForbiddenLabelSource(field) {
			t.Fatalf("score-derived field %q leaked into features", field)
		}
	}
}

func TestRefresh_SkipsRowsWithOpenWindow(t *testing.T) {
	f := newRefreshFixture(t)

	// Scored last month: the outcome window is still open and no success has
	// arrived, so the row is immature and excluded rather than labeled as a
	// failure.
	f.addScoredStartup(t, time.Now().UTC().AddDate(0, -1, 0))

	written, err := f.refresher.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if written != 0 {
		t.Fatalf("expected immature row skipped, wrote %d", written)
	}
}

func TestRefresh_EarlySuccessCountsBeforeWindowCloses(t *testing.T) {
	f := newRefreshFixture(t)

	// Window still open but a qualifying event already landed: the label is
	// decided, so the row is mature.
	s := f.addScoredStartup(t, time.Now().UTC().AddDate(0, -2, 0))
	f.addEvent(t, s.ID, types.OutcomeFundingRound, 600_000, time.Now().UTC().AddDate(0, -1, 0))

	written, err := f.refresher.Refresh(context.Background())
	if err != nil {
		t.Fatalf("refresh: %v", err)
	}
	if written != 1 {
		t.Fatalf("expected early success written, got %d", written)
	}
}

func TestRefresh_IsIdempotentPerScoreDate(t *testing.T) {
	f := newRefreshFixture(t)
	f.addScoredStartup(t, time.Now().UTC().AddDate(-1, 0, 0))

	for i := 0; i < 3; i++ {
		if _, err := f.refresher.Refresh(context.Background()); err != nil {
			t.Fatalf("refresh %d: %v", i, err)
		}
	}
	rows, err := f.snapshots.ListAll(context.Background(), nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected 1 row after repeated refreshes, got %d", len(rows))
	}
}
