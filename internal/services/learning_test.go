package services

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/fundbridge/fundbridge-backend/internal/learning"
	"github.com/fundbridge/fundbridge-backend/internal/logger"
	"github.com/fundbridge/fundbridge-backend/internal/repos"
	"github.com/fundbridge/fundbridge-backend/internal/scoring"
	"github.com/fundbridge/fundbridge-backend/internal/types"
)

// stubMatchService records enqueues so tests can assert that activation
// triggers a recompute without standing up the whole engine.
type stubMatchService struct {
	enqueued int
}

func (s *stubMatchService) EnqueueRun(ctx context.Context, scope *uuid.UUID) (*types.MatchRun, error) {
	s.enqueued++
	return &types.MatchRun{ID: uuid.New(), Status: types.MatchRunQueued, ScopeStartupID: scope}, nil
}
func (s *stubMatchService) GetRun(ctx context.Context, id uuid.UUID) (*types.MatchRun, error) {
	return nil, nil
}
func (s *stubMatchService) ExecuteRun(ctx context.Context, run *types.MatchRun) error { return nil }
func (s *stubMatchService) TopMatches(ctx context.Context, startupID uuid.UUID, page, pageSize int) ([]MatchRow, error) {
	return nil, nil
}
func (s *stubMatchService) CountCheck(ctx context.Context, startupID uuid.UUID) (*MatchCountCheck, error) {
	return nil, nil
}

type learningFixture struct {
	db              *gorm.DB
	versions        repos.WeightVersionRepo
	snapshots       repos.TrainingSnapshotRepo
	recommendations repos.RecommendationRepo
	weights         WeightService
	matches         *stubMatchService
	svc             LearningService
}

func newLearningFixture(t *testing.T) *learningFixture {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	err = db.AutoMigrate(
		&types.StartupProfile{},
		&types.OutcomeEvent{},
		&types.TrainingSnapshot{},
		&types.WeightVersion{},
		&types.ScoringConfig{},
		&types.Recommendation{},
	)
	if err != nil {
		t.Fatalf("migrate: %v", err)
	}
	log := logger.NewNop()
	f := &learningFixture{
		db:              db,
		versions:        repos.NewWeightVersionRepo(db, log),
		snapshots:       repos.NewTrainingSnapshotRepo(db, log),
		recommendations: repos.NewRecommendationRepo(db, log),
		matches:         &stubMatchService{},
	}
	f.weights = NewWeightService(db, log, f.versions, f.matches)
	startups := repos.NewStartupProfileRepo(db, log)
	events := repos.NewOutcomeEventRepo(db, log)
	refresher := learning.NewRefresher(log, startups, events, f.snapshots)
	f.svc = NewLearningService(db, log, refresher, f.snapshots, f.versions, f.recommendations, f.weights)
	return f
}

func (f *learningFixture) activateSeed(t *testing.T) *types.WeightVersion {
	t.Helper()
	ctx := context.Background()
	seed, err := f.weights.CreateManual(ctx, "seed", scoring.DefaultParams())
	if err != nil {
		t.Fatalf("create seed: %v", err)
	}
	if err := f.weights.Activate(ctx, seed.ID, "test"); err != nil {
		t.Fatalf("activate seed: %v", err)
	}
	return seed
}

// seedSnapshots writes a separable snapshot population: successes score high
// on team_execution, failures low, spread over four quarters.
func (f *learningFixture) seedSnapshots(t *testing.T, successes, failures int) {
	t.Helper()
	buckets := []string{"2025Q3", "2025Q4", "2026Q1", "2026Q2"}
	var rows []*types.TrainingSnapshot
	add := func(n int, success bool, team float64) {
		for i := 0; i < n; i++ {
			features, _ := json.Marshal(map[string]float64{"team_execution": team, "traction": 1.0})
			rows = append(rows, &types.TrainingSnapshot{
				StartupID:  uuid.New(),
				ScoreDate:  time.Now().UTC().AddDate(-1, 0, -i),
				Features:   features,
				Success:    success,
				TimeBucket: buckets[i%len(buckets)],
			})
		}
	}
	add(successes, true, 2.5)
	add(failures, false, 0.5)
	if err := f.snapshots.UpsertBatch(context.Background(), nil, rows); err != nil {
		t.Fatalf("seed snapshots: %v", err)
	}
}

func TestRunCycle_GateFailureIsNormalOutcome(t *testing.T) {
	f := newLearningFixture(t)
	f.activateSeed(t)

	outcome, err := f.svc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle with empty snapshot must not error: %v", err)
	}
	if outcome.Gate == nil || outcome.Gate.Passed {
		t.Fatalf("expected failed gate, got %+v", outcome.Gate)
	}
	if outcome.Recommendation != nil {
		t.Fatalf("failed gate must not produce a recommendation")
	}
}

func TestRunCycle_ProposesDraftPendingApproval(t *testing.T) {
	f := newLearningFixture(t)
	seed := f.activateSeed(t)
	f.seedSnapshots(t, 250, 500)

	outcome, err := f.svc.RunCycle(context.Background())
	if err != nil {
		t.Fatalf("cycle: %v", err)
	}
	if outcome.Recommendation == nil {
		t.Fatalf("expected recommendation, got %+v", outcome)
	}
	rec := outcome.Recommendation
	if rec.Status != types.RecommendationPending {
		t.Fatalf("recommendation must await a human decision, got %s", rec.Status)
	}

	draft, err := f.versions.GetByID(context.Background(), nil, rec.DraftVersionID)
	if err != nil || draft == nil {
		t.Fatalf("draft version missing: %v", err)
	}
	if draft.Status != types.WeightVersionDraft {
		t.Fatalf("proposed version must stay a draft, got %s", draft.Status)
	}
	if draft.Provenance != types.ProvenanceLearned || draft.ParentID == nil || *draft.ParentID != seed.ID {
		t.Fatalf("draft provenance not recorded: %+v", draft)
	}
	if string(draft.SignalMaxPoints) != string(seed.SignalMaxPoints) {
		t.Fatalf("draft signal table differs from parent")
	}

	// The active version is untouched until a human approves.
	active, err := f.versions.GetActive(context.Background(), nil)
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if active.ID != seed.ID {
		t.Fatalf("cycle must never auto-activate, active is %s", active.Tag)
	}
}

func TestApproveRecommendation_ActivatesDraftAndEnqueuesRun(t *testing.T) {
	f := newLearningFixture(t)
	f.activateSeed(t)
	f.seedSnapshots(t, 250, 500)

	outcome, err := f.svc.RunCycle(context.Background())
	if err != nil || outcome.Recommendation == nil {
		t.Fatalf("cycle setup failed: %v / %+v", err, outcome)
	}
	enqueuedBefore := f.matches.enqueued

	if err := f.svc.ApproveRecommendation(context.Background(), outcome.Recommendation.ID, "reviewer"); err != nil {
		t.Fatalf("approve: %v", err)
	}

	active, err := f.versions.GetActive(context.Background(), nil)
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if active.ID != outcome.Recommendation.DraftVersionID {
		t.Fatalf("expected draft activated on approval")
	}
	if f.matches.enqueued != enqueuedBefore+1 {
		t.Fatalf("approval must enqueue a recompute run")
	}

	rec, err := f.recommendations.GetByID(context.Background(), nil, outcome.Recommendation.ID)
	if err != nil || rec == nil {
		t.Fatalf("get recommendation: %v", err)
	}
	if rec.Status != types.RecommendationApproved || rec.DecidedBy != "reviewer" {
		t.Fatalf("decision not recorded: %+v", rec)
	}

	// A decided recommendation cannot be decided again.
	if err := f.svc.ApproveRecommendation(context.Background(), rec.ID, "reviewer"); err == nil {
		t.Fatalf("expected double-decision rejection")
	}
}

func TestRejectRecommendation_KeepsActiveVersion(t *testing.T) {
	f := newLearningFixture(t)
	seed := f.activateSeed(t)
	f.seedSnapshots(t, 250, 500)

	outcome, err := f.svc.RunCycle(context.Background())
	if err != nil || outcome.Recommendation == nil {
		t.Fatalf("cycle setup failed: %v / %+v", err, outcome)
	}

	if err := f.svc.RejectRecommendation(context.Background(), outcome.Recommendation.ID, "reviewer"); err != nil {
		t.Fatalf("reject: %v", err)
	}

	active, err := f.versions.GetActive(context.Background(), nil)
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if active.ID != seed.ID {
		t.Fatalf("rejection must not change the active version")
	}
	draft, err := f.versions.GetByID(context.Background(), nil, outcome.Recommendation.DraftVersionID)
	if err != nil || draft == nil {
		t.Fatalf("get draft: %v", err)
	}
	if draft.Status != types.WeightVersionRejected {
		t.Fatalf("expected draft marked rejected, got %s", draft.Status)
	}
}
