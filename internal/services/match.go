package services

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/fundbridge/fundbridge-backend/internal/logger"
	"github.com/fundbridge/fundbridge-backend/internal/matching"
	"github.com/fundbridge/fundbridge-backend/internal/repos"
	"github.com/fundbridge/fundbridge-backend/internal/types"
)

// regenerationLockKey is the advisory-lock key serializing full regeneration
// cycles. Two concurrent runs over the same population would interleave
// partial writes.
const regenerationLockKey = 7_441_002

// ErrRunInProgress is returned when another regeneration holds the advisory
// lock.
var ErrRunInProgress = errors.New("a regeneration run is already in progress")

type MatchRow struct {
	InvestorID     uuid.UUID           `json:"investor_id"`
	MatchScore     float64             `json:"match_score"`
	ConfidenceTier string              `json:"confidence_tier"`
	Breakdown      []types.MatchFactor `json:"breakdown"`
	Status         string              `json:"status"`
}

type MatchCountCheck struct {
	Total int64 `json:"total"`
	Ready bool  `json:"ready"`
}

type MatchService interface {
	EnqueueRun(ctx context.Context, scope *uuid.UUID) (*types.MatchRun, error)
	GetRun(ctx context.Context, id uuid.UUID) (*types.MatchRun, error)
	ExecuteRun(ctx context.Context, run *types.MatchRun) error
	TopMatches(ctx context.Context, startupID uuid.UUID, page, pageSize int) ([]MatchRow, error)
	CountCheck(ctx context.Context, startupID uuid.UUID) (*MatchCountCheck, error)
}

type matchService struct {
	db             *gorm.DB
	log            *logger.Logger
	engine         *matching.Engine
	scoringService ScoringService
	matches        repos.MatchRepo
	runs           repos.MatchRunRepo
	versions       repos.WeightVersionRepo
	readyThreshold int64
}

func NewMatchService(db *gorm.DB, baseLog *logger.Logger, engine *matching.Engine, scoringService ScoringService, matches repos.MatchRepo, runs repos.MatchRunRepo, versions repos.WeightVersionRepo, readyThreshold int64) MatchService {
	if readyThreshold <= 0 {
		readyThreshold = 5
	}
	return &matchService{
		db:             db,
		log:            baseLog.With("service", "MatchService"),
		engine:         engine,
		scoringService: scoringService,
		matches:        matches,
		runs:           runs,
		versions:       versions,
		readyThreshold: readyThreshold,
	}
}

func (s *matchService) EnqueueRun(ctx context.Context, scope *uuid.UUID) (*types.MatchRun, error) {
	run := &types.MatchRun{Status: types.MatchRunQueued, ScopeStartupID: scope}
	if err := s.runs.Create(ctx, nil, run); err != nil {
		return nil, err
	}
	s.log.Info("Regeneration run enqueued", "run_id", run.ID, "scoped", scope != nil)
	return run, nil
}

func (s *matchService) GetRun(ctx context.Context, id uuid.UUID) (*types.MatchRun, error) {
	return s.runs.GetByID(ctx, nil, id)
}

// ExecuteRun performs one claimed regeneration cycle: rescore the population
// under the active version, then score/rank/persist the cross-product. The
// advisory lock enforces single-writer discipline beyond the worker's row
// claim.
func (s *matchService) ExecuteRun(ctx context.Context, run *types.MatchRun) error {
	locked, unlock, err := s.acquireAdvisoryLock(ctx)
	if err != nil {
		return err
	}
	if !locked {
		return ErrRunInProgress
	}
	defer unlock()

	start := time.Now()
	version, err := s.versions.GetActive(ctx, nil)
	if err != nil {
		return s.failRun(ctx, run, fmt.Errorf("resolve active version: %w", err))
	}

	if _, err := s.scoringService.RescoreAll(ctx, run.ScopeStartupID); err != nil {
		return s.failRun(ctx, run, fmt.Errorf("rescore population: %w", err))
	}

	report, err := s.engine.Run(ctx, run, version.ID)
	if err != nil {
		return s.failRun(ctx, run, err)
	}

	now := time.Now().UTC()
	updates := map[string]interface{}{
		"status":            types.MatchRunSucceeded,
		"startup_count":     report.Startups,
		"investor_count":    report.Investors,
		"pairs_scored":      report.PairsScored,
		"matches_persisted": report.MatchesPersisted,
		"failed_batches":    report.FailedBatches,
		"finished_at":       now,
		"duration_ms":       time.Since(start).Milliseconds(),
	}
	if err := s.runs.UpdateFields(ctx, nil, run.ID, updates); err != nil {
		return err
	}
	if report.FailedBatches > 0 {
		// Operational alert: the run finished best-effort with write gaps.
		s.log.Error("Regeneration finished with failed batches",
			"run_id", run.ID,
			"failed_batches", report.FailedBatches,
			"matches_persisted", report.MatchesPersisted,
		)
	}
	return nil
}

func (s *matchService) failRun(ctx context.Context, run *types.MatchRun, cause error) error {
	now := time.Now().UTC()
	_ = s.runs.UpdateFields(ctx, nil, run.ID, map[string]interface{}{
		"status":        types.MatchRunFailed,
		"last_error":    cause.Error(),
		"last_error_at": now,
		"finished_at":   now,
	})
	s.log.Error("Regeneration run failed", "run_id", run.ID, "error", cause)
	return cause
}

// acquireAdvisoryLock takes the Postgres session advisory lock for the
// regeneration scope. On non-Postgres dialects (tests) it is a no-op grant:
// exclusivity there comes from the worker's SKIP LOCKED claim.
func (s *matchService) acquireAdvisoryLock(ctx context.Context) (bool, func(), error) {
	if s.db == nil || s.db.Dialector.Name() != "postgres" {
		return true, func() {}, nil
	}
	var locked bool
	if err := s.db.WithContext(ctx).Raw("SELECT pg_try_advisory_lock(?)", regenerationLockKey).Scan(&locked).Error; err != nil {
		return false, nil, fmt.Errorf("acquire advisory lock: %w", err)
	}
	if !locked {
		return false, func() {}, nil
	}
	unlock := func() {
		if err := s.db.Exec("SELECT pg_advisory_unlock(?)", regenerationLockKey).Error; err != nil {
			s.log.Warn("Failed to release advisory lock", "error", err)
		}
	}
	return true, unlock, nil
}

// TopMatches reads persisted matches for one startup, ranked, paginated.
// Reads never block on an in-progress regeneration; they observe the last
// committed state.
func (s *matchService) TopMatches(ctx context.Context, startupID uuid.UUID, page, pageSize int) ([]MatchRow, error) {
	if page < 1 {
		page = 1
	}
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}
	rows, err := s.matches.ListByStartup(ctx, nil, startupID, (page-1)*pageSize, pageSize)
	if err != nil {
		return nil, err
	}
	out := make([]MatchRow, 0, len(rows))
	for _, m := range rows {
		var breakdown []types.MatchFactor
		if len(m.Breakdown) > 0 {
			if err := json.Unmarshal(m.Breakdown, &breakdown); err != nil {
				return nil, fmt.Errorf("decode breakdown for match %s: %w", m.ID, err)
			}
		}
		out = append(out, MatchRow{
			InvestorID:     m.InvestorID,
			MatchScore:     m.MatchScore,
			ConfidenceTier: m.ConfidenceTier,
			Breakdown:      breakdown,
			Status:         m.Status,
		})
	}
	return out, nil
}

// CountCheck is the cheap existence query callers use to decide between
// rendering and polling again.
func (s *matchService) CountCheck(ctx context.Context, startupID uuid.UUID) (*MatchCountCheck, error) {
	total, err := s.matches.CountByStartup(ctx, nil, startupID)
	if err != nil {
		return nil, err
	}
	return &MatchCountCheck{Total: total, Ready: total >= s.readyThreshold}, nil
}
