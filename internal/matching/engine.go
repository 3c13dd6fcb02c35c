package matching

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/fundbridge/fundbridge-backend/internal/bus"
	"github.com/fundbridge/fundbridge-backend/internal/logger"
	"github.com/fundbridge/fundbridge-backend/internal/repos"
	"github.com/fundbridge/fundbridge-backend/internal/types"
)

type Config struct {
	// TopN is the per-startup cap applied after full ranking.
	TopN int
	// PersistenceFloor decides whether a pair is worth storing at all. It is
	// deliberately far below the display tiers; raising it to match them
	// would silently discard viable candidates.
	PersistenceFloor float64
	PageSize         int
	BatchSize        int
	Parallelism      int
}

func DefaultConfig() Config {
	return Config{
		TopN:             100,
		PersistenceFloor: 30,
		PageSize:         1000,
		BatchSize:        500,
		Parallelism:      4,
	}
}

// Report is the operational summary of one regeneration run.
type Report struct {
	Startups         int
	Investors        int
	PairsScored      int
	MatchesPersisted int
	FailedBatches    int
	StaleDeleted     int64
	LoadDuration     time.Duration
	ScoreDuration    time.Duration
	PersistDuration  time.Duration
}

// Engine scores the full startup×investor cross-product, ranks
// deterministically, and persists a bounded top-N per startup. Phases:
// Load → Normalize → Score-all-pairs → Rank → Filter-to-top-N → Persist →
// Report.
type Engine struct {
	log       *logger.Logger
	startups  repos.StartupProfileRepo
	investors repos.InvestorProfileRepo
	matches   repos.MatchRepo
	bus       bus.Publisher
	cfg       Config
}

func NewEngine(baseLog *logger.Logger, startups repos.StartupProfileRepo, investors repos.InvestorProfileRepo, matches repos.MatchRepo, publisher bus.Publisher, cfg Config) *Engine {
	if cfg.TopN <= 0 {
		cfg.TopN = DefaultConfig().TopN
	}
	if cfg.PageSize <= 0 {
		cfg.PageSize = DefaultConfig().PageSize
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = DefaultConfig().BatchSize
	}
	if cfg.Parallelism <= 0 {
		cfg.Parallelism = DefaultConfig().Parallelism
	}
	if publisher == nil {
		publisher = bus.NewNopPublisher()
	}
	return &Engine{
		log:       baseLog.With("component", "MatchingEngine"),
		startups:  startups,
		investors: investors,
		matches:   matches,
		bus:       publisher,
		cfg:       cfg,
	}
}

func (e *Engine) Run(ctx context.Context, run *types.MatchRun, weightVersionID uuid.UUID) (*Report, error) {
	log := e.log.With("run_id", run.ID)
	report := &Report{}

	loadStart := time.Now()
	startups, investors, err := e.load(ctx, run)
	if err != nil {
		return nil, err
	}
	report.LoadDuration = time.Since(loadStart)
	report.Startups = len(startups)
	report.Investors = len(investors)
	log.Info("Populations loaded",
		"startups", report.Startups,
		"investors", report.Investors,
		"duration_ms", report.LoadDuration.Milliseconds(),
	)
	e.publish(ctx, run.ID, "loaded", map[string]interface{}{
		"startups":  report.Startups,
		"investors": report.Investors,
	})
	if len(startups) == 0 || len(investors) == 0 {
		log.Warn("Nothing to match", "startups", len(startups), "investors", len(investors))
		return report, nil
	}

	// Normalize once; decode failures on a single profile skip that profile
	// with a logged reason rather than failing the run.
	startupViews := make([]*StartupView, 0, len(startups))
	for _, s := range startups {
		view, vErr := NewStartupView(s)
		if vErr != nil {
			log.Warn("Skipping undecodable startup", "startup_id", s.ID, "error", vErr)
			continue
		}
		for _, reason := range view.Reasons {
			log.Warn("Startup input degraded", "startup_id", s.ID, "reason_code", reason)
		}
		startupViews = append(startupViews, view)
	}
	investorViews := make([]*InvestorView, 0, len(investors))
	for _, inv := range investors {
		view, vErr := NewInvestorView(inv)
		if vErr != nil {
			log.Warn("Skipping undecodable investor", "investor_id", inv.ID, "error", vErr)
			continue
		}
		investorViews = append(investorViews, view)
	}

	scoreStart := time.Now()
	candidates, pairsScored, err := e.scoreAll(ctx, run, weightVersionID, startupViews, investorViews)
	if err != nil {
		return nil, err
	}
	report.ScoreDuration = time.Since(scoreStart)
	report.PairsScored = pairsScored
	log.Info("Cross-product scored",
		"pairs_scored", pairsScored,
		"candidates_kept", len(candidates),
		"duration_ms", report.ScoreDuration.Milliseconds(),
	)
	e.publish(ctx, run.ID, "scored", map[string]interface{}{
		"pairs_scored": pairsScored,
	})

	persistStart := time.Now()
	persisted, failedBatches := e.persist(ctx, candidates)
	report.PersistDuration = time.Since(persistStart)
	report.MatchesPersisted = persisted
	report.FailedBatches = failedBatches

	startupIDs := make([]uuid.UUID, 0, len(startupViews))
	for _, v := range startupViews {
		startupIDs = append(startupIDs, v.ID)
	}
	stale, delErr := e.matches.DeleteStaleForStartups(ctx, nil, startupIDs, run.ID)
	if delErr != nil {
		log.Warn("Stale match cleanup failed", "error", delErr)
	}
	report.StaleDeleted = stale

	log.Info("Regeneration run complete",
		"startups", report.Startups,
		"investors", report.Investors,
		"pairs_scored", report.PairsScored,
		"matches_persisted", report.MatchesPersisted,
		"failed_batches", report.FailedBatches,
		"stale_deleted", report.StaleDeleted,
		"load_ms", report.LoadDuration.Milliseconds(),
		"score_ms", report.ScoreDuration.Milliseconds(),
		"persist_ms", report.PersistDuration.Milliseconds(),
	)
	e.publish(ctx, run.ID, "persisted", map[string]interface{}{
		"matches_persisted": report.MatchesPersisted,
		"failed_batches":    report.FailedBatches,
	})
	return report, nil
}

// load pages both populations until an empty page comes back. A single
// bounded fetch would silently truncate one side of the cross-product, so
// the page loop plus the known-population check below are both load-bearing.
func (e *Engine) load(ctx context.Context, run *types.MatchRun) ([]*types.StartupProfile, []*types.InvestorProfile, error) {
	if run.ScopeStartupID != nil {
		startup, err := e.startups.GetByID(ctx, nil, *run.ScopeStartupID)
		if err != nil {
			return nil, nil, fmt.Errorf("load scoped startup: %w", err)
		}
		var startups []*types.StartupProfile
		if startup != nil && startup.Status == types.StartupStatusApproved {
			startups = append(startups, startup)
		}
		investors, err := e.loadInvestors(ctx)
		if err != nil {
			return nil, nil, err
		}
		return startups, investors, nil
	}

	startups, err := e.loadStartups(ctx)
	if err != nil {
		return nil, nil, err
	}
	investors, err := e.loadInvestors(ctx)
	if err != nil {
		return nil, nil, err
	}
	return startups, investors, nil
}

func (e *Engine) loadStartups(ctx context.Context) ([]*types.StartupProfile, error) {
	expected, err := e.startups.CountByStatus(ctx, nil, types.StartupStatusApproved)
	if err != nil {
		return nil, fmt.Errorf("count startups: %w", err)
	}
	for attempt := 0; attempt < 2; attempt++ {
		var all []*types.StartupProfile
		for offset := 0; ; offset += e.cfg.PageSize {
			page, pErr := e.startups.ListByStatus(ctx, nil, types.StartupStatusApproved, offset, e.cfg.PageSize)
			if pErr != nil {
				return nil, fmt.Errorf("page startups at offset %d: %w", offset, pErr)
			}
			if len(page) == 0 {
				break
			}
			all = append(all, page...)
		}
		if int64(len(all)) >= expected {
			return all, nil
		}
		e.log.Warn("Startup population fetch came up short, retrying",
			"expected", expected, "loaded", len(all), "attempt", attempt+1)
	}
	return nil, fmt.Errorf("startup population truncated: expected %d rows", expected)
}

func (e *Engine) loadInvestors(ctx context.Context) ([]*types.InvestorProfile, error) {
	expected, err := e.investors.Count(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("count investors: %w", err)
	}
	for attempt := 0; attempt < 2; attempt++ {
		var all []*types.InvestorProfile
		for offset := 0; ; offset += e.cfg.PageSize {
			page, pErr := e.investors.List(ctx, nil, offset, e.cfg.PageSize)
			if pErr != nil {
				return nil, fmt.Errorf("page investors at offset %d: %w", offset, pErr)
			}
			if len(page) == 0 {
				break
			}
			all = append(all, page...)
		}
		if int64(len(all)) >= expected {
			return all, nil
		}
		e.log.Warn("Investor population fetch came up short, retrying",
			"expected", expected, "loaded", len(all), "attempt", attempt+1)
	}
	return nil, fmt.Errorf("investor population truncated: expected %d rows", expected)
}

// scoreAll scores every pair before any threshold is applied, then ranks per
// startup and truncates to top-N. Filtering before ranking is the documented
// failure mode that once discarded over 99% of valid candidates; the floor
// is only consulted after the full candidate set is ranked.
func (e *Engine) scoreAll(ctx context.Context, run *types.MatchRun, weightVersionID uuid.UUID, startups []*StartupView, investors []*InvestorView) ([]*types.Match, int, error) {
	var (
		mu          sync.Mutex
		kept        []*types.Match
		pairsScored int
	)

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(e.cfg.Parallelism)

	for _, startup := range startups {
		s := startup
		g.Go(func() error {
			if gctx.Err() != nil {
				return gctx.Err()
			}
			ranked, scored, err := e.scoreStartup(run, weightVersionID, s, investors)
			if err != nil {
				return err
			}
			mu.Lock()
			kept = append(kept, ranked...)
			pairsScored += scored
			mu.Unlock()
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, 0, err
	}
	return kept, pairsScored, nil
}

type scoredPair struct {
	investorID uuid.UUID
	score      float64
	factors    []types.MatchFactor
}

func (e *Engine) scoreStartup(run *types.MatchRun, weightVersionID uuid.UUID, s *StartupView, investors []*InvestorView) ([]*types.Match, int, error) {
	pairs := make([]scoredPair, 0, len(investors))
	for _, inv := range investors {
		score, factors, reasons := PairScore(s, inv)
		for _, reason := range reasons {
			e.log.Debug("Pair input degraded",
				"startup_id", s.ID, "investor_id", inv.ID, "reason_code", reason)
		}
		pairs = append(pairs, scoredPair{investorID: inv.ID, score: score, factors: factors})
	}

	// Deterministic order: (−score, investor_id) under a stable sort.
	sort.SliceStable(pairs, func(i, j int) bool {
		if pairs[i].score != pairs[j].score {
			return pairs[i].score > pairs[j].score
		}
		return pairs[i].investorID.String() < pairs[j].investorID.String()
	})

	runID := run.ID
	versionID := weightVersionID
	out := make([]*types.Match, 0, e.cfg.TopN)
	for _, p := range pairs {
		if len(out) >= e.cfg.TopN {
			break
		}
		if p.score < e.cfg.PersistenceFloor {
			// Ranked order means everything after this is below the floor too.
			break
		}
		breakdown, err := json.Marshal(p.factors)
		if err != nil {
			return nil, 0, fmt.Errorf("marshal breakdown for pair (%s, %s): %w", s.ID, p.investorID, err)
		}
		out = append(out, &types.Match{
			StartupID:       s.ID,
			InvestorID:      p.investorID,
			MatchScore:      p.score,
			ConfidenceTier:  ConfidenceTier(p.score),
			Breakdown:       breakdown,
			Status:          types.MatchStatusSuggested,
			RunID:           &runID,
			WeightVersionID: &versionID,
		})
	}
	return out, len(pairs), nil
}

// persist writes in bounded batches; a failed batch is counted and logged
// and the run continues best-effort.
func (e *Engine) persist(ctx context.Context, candidates []*types.Match) (int, int) {
	var persisted, failedBatches int
	for start := 0; start < len(candidates); start += e.cfg.BatchSize {
		end := start + e.cfg.BatchSize
		if end > len(candidates) {
			end = len(candidates)
		}
		batch := candidates[start:end]
		if err := e.matches.UpsertBatch(ctx, nil, batch); err != nil {
			failedBatches++
			e.log.Error("Match batch upsert failed",
				"batch_start", start, "batch_size", len(batch), "error", err)
			continue
		}
		persisted += len(batch)
	}
	return persisted, failedBatches
}

func (e *Engine) publish(ctx context.Context, runID uuid.UUID, phase string, detail map[string]interface{}) {
	e.bus.PublishRunEvent(ctx, bus.RunEvent{
		RunID:  runID.String(),
		Phase:  phase,
		Detail: detail,
	})
}
