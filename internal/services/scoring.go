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
	"github.com/fundbridge/fundbridge-backend/internal/repos"
	"github.com/fundbridge/fundbridge-backend/internal/scoring"
	"github.com/fundbridge/fundbridge-backend/internal/types"
)

// FastPathTimeout bounds the synchronous single-startup scoring path. Work
// that cannot finish inside it falls back to an async run instead of
// blocking a request thread on population-scale work.
const FastPathTimeout = 2 * time.Second

// ErrStartupNotFound is returned from single-startup lookups so callers can
// shape a structured not-found response.
var ErrStartupNotFound = errors.New("startup not found")

type ScoreResult struct {
	StartupID       uuid.UUID `json:"startup_id"`
	BaseScore       float64   `json:"base_score"`
	SignalBonus     float64   `json:"signal_bonus"`
	PsychMultiplier float64   `json:"psych_multiplier"`
	EnhancedScore   float64   `json:"enhanced_score"`
	FinalScore      float64   `json:"final_score"`
	Pending         bool      `json:"pending"`
	RunID           *uuid.UUID `json:"run_id,omitempty"`
}

type ScoringService interface {
	RescoreStartup(ctx context.Context, tx *gorm.DB, startup *types.StartupProfile, version *types.WeightVersion) (*ScoreResult, error)
	RescoreAll(ctx context.Context, scope *uuid.UUID) (int, error)
	ScoreStartupFast(ctx context.Context, id uuid.UUID) (*ScoreResult, error)
}

type scoringService struct {
	db       *gorm.DB
	log      *logger.Logger
	startups repos.StartupProfileRepo
	versions repos.WeightVersionRepo
	runs     repos.MatchRunRepo
	pageSize int
}

func NewScoringService(db *gorm.DB, baseLog *logger.Logger, startups repos.StartupProfileRepo, versions repos.WeightVersionRepo, runs repos.MatchRunRepo) ScoringService {
	return &scoringService{
		db:       db,
		log:      baseLog.With("service", "ScoringService"),
		startups: startups,
		versions: versions,
		runs:     runs,
		pageSize: 1000,
	}
}

// RescoreStartup recomputes the layered composite for one startup under the
// given version: base from the bounded sub-scores, then the signal bonus and
// psychological multiplier as separate layers on top.
func (s *scoringService) RescoreStartup(ctx context.Context, tx *gorm.DB, startup *types.StartupProfile, version *types.WeightVersion) (*ScoreResult, error) {
	params, err := scoring.ParamsFromVersion(version)
	if err != nil {
		return nil, err
	}

	var subScores map[string]float64
	if len(startup.SubScores) > 0 {
		if err := json.Unmarshal(startup.SubScores, &subScores); err != nil {
			return nil, fmt.Errorf("decode sub-scores for startup %s: %w", startup.ID, err)
		}
	}
	var signalInputs map[string]float64
	if len(startup.SignalInputs) > 0 {
		if err := json.Unmarshal(startup.SignalInputs, &signalInputs); err != nil {
			return nil, fmt.Errorf("decode signal inputs for startup %s: %w", startup.ID, err)
		}
	}
	var flags map[string]bool
	if len(startup.BehavioralFlags) > 0 {
		if err := json.Unmarshal(startup.BehavioralFlags, &flags); err != nil {
			return nil, fmt.Errorf("decode behavioral flags for startup %s: %w", startup.ID, err)
		}
	}

	baseScore, breakdown, err := scoring.BaseScore(subScores, params)
	if err != nil {
		return nil, fmt.Errorf("base score for startup %s: %w", startup.ID, err)
	}
	signalBonus, err := scoring.SignalBonus(signalInputs, params)
	if err != nil {
		return nil, fmt.Errorf("signal bonus for startup %s: %w", startup.ID, err)
	}
	multiplier := scoring.Multiplier(flags, params)
	enhanced := scoring.EnhancedScore(baseScore, multiplier)

	breakdownJSON, err := json.Marshal(breakdown)
	if err != nil {
		return nil, err
	}
	scoredAt := time.Now().UTC()
	if err := s.startups.UpdateScore(ctx, tx, startup.ID, repos.ScoreUpdate{
		BaseScore:       baseScore,
		SignalBonus:     signalBonus,
		PsychMultiplier: multiplier,
		EnhancedScore:   enhanced,
		Breakdown:       breakdownJSON,
		WeightVersionID: version.ID,
		ScoredAt:        scoredAt,
	}); err != nil {
		return nil, err
	}

	return &ScoreResult{
		StartupID:       startup.ID,
		BaseScore:       baseScore,
		SignalBonus:     signalBonus,
		PsychMultiplier: multiplier,
		EnhancedScore:   enhanced,
		FinalScore:      scoring.FinalScore(baseScore, signalBonus),
	}, nil
}

// RescoreAll recomputes every approved startup (or one, when scoped) under
// the active version, paging until an empty page.
func (s *scoringService) RescoreAll(ctx context.Context, scope *uuid.UUID) (int, error) {
	version, err := s.versions.GetActive(ctx, nil)
	if err != nil {
		return 0, err
	}

	if scope != nil {
		startup, gErr := s.startups.GetByID(ctx, nil, *scope)
		if gErr != nil {
			return 0, gErr
		}
		if startup == nil {
			return 0, fmt.Errorf("startup %s: %w", scope, ErrStartupNotFound)
		}
		if _, rErr := s.RescoreStartup(ctx, nil, startup, version); rErr != nil {
			return 0, rErr
		}
		return 1, nil
	}

	rescored := 0
	for offset := 0; ; offset += s.pageSize {
		page, pErr := s.startups.ListByStatus(ctx, nil, types.StartupStatusApproved, offset, s.pageSize)
		if pErr != nil {
			return rescored, pErr
		}
		if len(page) == 0 {
			break
		}
		for _, startup := range page {
			if _, rErr := s.RescoreStartup(ctx, nil, startup, version); rErr != nil {
				// One bad profile should not sink a population rescore.
				s.log.Warn("Rescore failed for startup", "startup_id", startup.ID, "error", rErr)
				continue
			}
			rescored++
		}
	}
	s.log.Info("Population rescored", "count", rescored)
	return rescored, nil
}

// ScoreStartupFast is the narrow synchronous path: it rescores one startup
// under a tight deadline and, when the deadline is exceeded, enqueues a
// scoped run and reports pending instead of blocking.
func (s *scoringService) ScoreStartupFast(ctx context.Context, id uuid.UUID) (*ScoreResult, error) {
	fastCtx, cancel := context.WithTimeout(ctx, FastPathTimeout)
	defer cancel()

	startup, err := s.startups.GetByID(fastCtx, nil, id)
	if err == nil && startup == nil {
		return nil, fmt.Errorf("startup %s: %w", id, ErrStartupNotFound)
	}
	var result *ScoreResult
	if err == nil {
		var version *types.WeightVersion
		version, err = s.versions.GetActive(fastCtx, nil)
		if err == nil {
			result, err = s.RescoreStartup(fastCtx, nil, startup, version)
		}
	}
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(fastCtx.Err(), context.DeadlineExceeded) {
			scopeID := id
			run := &types.MatchRun{Status: types.MatchRunQueued, ScopeStartupID: &scopeID}
			if cErr := s.runs.Create(ctx, nil, run); cErr != nil {
				return nil, fmt.Errorf("fast path timed out and fallback enqueue failed: %w", cErr)
			}
			s.log.Warn("Fast-path score timed out, falling back to async run", "startup_id", id, "run_id", run.ID)
			runID := run.ID
			return &ScoreResult{StartupID: id, Pending: true, RunID: &runID}, nil
		}
		return nil, err
	}
	return result, nil
}
