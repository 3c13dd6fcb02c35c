package services

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fundbridge/fundbridge-backend/internal/learning"
	"github.com/fundbridge/fundbridge-backend/internal/logger"
	"github.com/fundbridge/fundbridge-backend/internal/repos"
	"github.com/fundbridge/fundbridge-backend/internal/scoring"
	"github.com/fundbridge/fundbridge-backend/internal/types"
)

// CycleOutcome reports how one learning cycle ended. Gate failure is a
// normal outcome; Recommendation is only set when a draft was proposed.
type CycleOutcome struct {
	Gate           *learning.GateResult  `json:"gate"`
	Recommendation *types.Recommendation `json:"recommendation,omitempty"`
	Discarded      string                `json:"discarded,omitempty"`
}

type LearningService interface {
	RefreshSnapshots(ctx context.Context) (int, error)
	RunCycle(ctx context.Context) (*CycleOutcome, error)
	ListRecommendations(ctx context.Context, status string) ([]*types.Recommendation, error)
	ApproveRecommendation(ctx context.Context, id uuid.UUID, actor string) error
	RejectRecommendation(ctx context.Context, id uuid.UUID, actor string) error
}

type learningService struct {
	db              *gorm.DB
	log             *logger.Logger
	refresher       *learning.Refresher
	snapshots       repos.TrainingSnapshotRepo
	versions        repos.WeightVersionRepo
	recommendations repos.RecommendationRepo
	weights         WeightService
	gateConfig      learning.GateConfig
}

func NewLearningService(db *gorm.DB, baseLog *logger.Logger, refresher *learning.Refresher, snapshots repos.TrainingSnapshotRepo, versions repos.WeightVersionRepo, recommendations repos.RecommendationRepo, weights WeightService) LearningService {
	return &learningService{
		db:              db,
		log:             baseLog.With("service", "LearningService"),
		refresher:       refresher,
		snapshots:       snapshots,
		versions:        versions,
		recommendations: recommendations,
		weights:         weights,
		gateConfig:      learning.DefaultGateConfig(),
	}
}

func (s *learningService) RefreshSnapshots(ctx context.Context) (int, error) {
	return s.refresher.Refresh(ctx)
}

// RunCycle executes gate check → analyze → propose. It never activates
// anything: the only outputs are a draft version and a pending
// recommendation awaiting a human decision.
func (s *learningService) RunCycle(ctx context.Context) (*CycleOutcome, error) {
	snapshots, err := s.snapshots.ListAll(ctx, nil)
	if err != nil {
		return nil, err
	}

	gate, err := learning.CheckGate(snapshots, s.gateConfig)
	if err != nil {
		return nil, err
	}
	if !gate.Passed {
		s.log.Info("Learning gate failed, cycle ends without recommendation",
			"successes", gate.SuccessCount,
			"failures", gate.FailureCount,
			"positive_rate", gate.PositiveRate,
			"reasons", gate.Reasons,
		)
		return &CycleOutcome{Gate: gate}, nil
	}

	parentVersion, err := s.versions.GetActive(ctx, nil)
	if err != nil {
		return nil, err
	}
	parentParams, err := scoring.ParamsFromVersion(parentVersion)
	if err != nil {
		return nil, err
	}

	proposal, err := learning.Analyze(snapshots, gate, parentParams)
	if err != nil {
		return nil, err
	}
	if proposal == nil {
		s.log.Info("Learning cycle produced no candidate above the improvement floor")
		return &CycleOutcome{Gate: gate, Discarded: "below improvement floor"}, nil
	}

	// A learned draft must clear the same guardrails as a manual edit before
	// it may be offered for approval.
	if err := scoring.ValidateParams(proposal.Params); err != nil {
		s.log.Warn("Learned candidate violates guardrails, discarded", "error", err)
		return &CycleOutcome{Gate: gate, Discarded: err.Error()}, nil
	}

	draft, err := proposal.Params.ToVersion()
	if err != nil {
		return nil, err
	}
	parentID := parentVersion.ID
	draft.Tag = fmt.Sprintf("learned-%s", time.Now().UTC().Format("20060102-150405"))
	draft.Provenance = types.ProvenanceLearned
	draft.ParentID = &parentID
	// Protected fields are carried from the parent verbatim; the repo
	// re-checks byte equality on write.
	draft.SignalMaxPoints = parentVersion.SignalMaxPoints
	draft.MultiplierFloor = parentVersion.MultiplierFloor
	draft.MultiplierCeiling = parentVersion.MultiplierCeiling
	if err := s.versions.Create(ctx, nil, draft); err != nil {
		return nil, err
	}

	diffJSON, err := json.Marshal(proposal.Changes)
	if err != nil {
		return nil, err
	}
	stabilityJSON, err := json.Marshal(gate.Stability)
	if err != nil {
		return nil, err
	}
	rec := &types.Recommendation{
		DraftVersionID:      draft.ID,
		ParentVersionID:     parentID,
		WeightDiff:          diffJSON,
		SuccessCount:        gate.SuccessCount,
		FailureCount:        gate.FailureCount,
		PositiveRate:        gate.PositiveRate,
		StabilityResult:     stabilityJSON,
		ExpectedImprovement: proposal.ExpectedImprovement,
		Status:              types.RecommendationPending,
	}
	if err := s.recommendations.Create(ctx, nil, rec); err != nil {
		return nil, err
	}

	s.log.Info("Learning cycle proposed draft version",
		"draft_version_id", draft.ID,
		"recommendation_id", rec.ID,
		"changes", len(proposal.Changes),
		"expected_improvement", proposal.ExpectedImprovement,
	)
	return &CycleOutcome{Gate: gate, Recommendation: rec}, nil
}

func (s *learningService) ListRecommendations(ctx context.Context, status string) ([]*types.Recommendation, error) {
	return s.recommendations.List(ctx, nil, status)
}

// ApproveRecommendation records the human decision and activates the draft,
// which in turn enqueues the recompute.
func (s *learningService) ApproveRecommendation(ctx context.Context, id uuid.UUID, actor string) error {
	rec, err := s.recommendations.GetByID(ctx, nil, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("recommendation %s not found", id)
	}
	if rec.Status != types.RecommendationPending {
		return fmt.Errorf("recommendation %s already decided (%s)", id, rec.Status)
	}
	if err := s.recommendations.Decide(ctx, nil, id, types.RecommendationApproved, actor); err != nil {
		return err
	}
	return s.weights.Activate(ctx, rec.DraftVersionID, actor)
}

func (s *learningService) RejectRecommendation(ctx context.Context, id uuid.UUID, actor string) error {
	rec, err := s.recommendations.GetByID(ctx, nil, id)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("recommendation %s not found", id)
	}
	if rec.Status != types.RecommendationPending {
		return fmt.Errorf("recommendation %s already decided (%s)", id, rec.Status)
	}
	if err := s.recommendations.Decide(ctx, nil, id, types.RecommendationRejected, actor); err != nil {
		return err
	}
	return s.versions.UpdateStatus(ctx, nil, rec.DraftVersionID, types.WeightVersionRejected)
}
