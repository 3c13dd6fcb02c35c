package services

import (
	"context"
	"fmt"
	"os"

	"github.com/google/uuid"
	"gopkg.in/yaml.v3"
	"gorm.io/gorm"

	"github.com/fundbridge/fundbridge-backend/internal/logger"
	"github.com/fundbridge/fundbridge-backend/internal/repos"
	"github.com/fundbridge/fundbridge-backend/internal/scoring"
	"github.com/fundbridge/fundbridge-backend/internal/types"
)

// seedFile is the YAML shape of the shipped initial weight version.
type seedFile struct {
	Tag                  string             `yaml:"tag"`
	ComponentWeights     map[string]float64 `yaml:"component_weights"`
	SignalMaxPoints      map[string]float64 `yaml:"signal_max_points"`
	NormalizationDivisor float64            `yaml:"normalization_divisor"`
	MinBaseBoost         float64            `yaml:"min_base_boost"`
	MultiplierFloor      float64            `yaml:"multiplier_floor"`
	MultiplierCeiling    float64            `yaml:"multiplier_ceiling"`
}

// VersionDiff compares a version against its parent (or the active version
// for parentless versions).
type VersionDiff struct {
	VersionID uuid.UUID            `json:"version_id"`
	AgainstID uuid.UUID            `json:"against_id"`
	Changes   []WeightDiffEntry    `json:"changes"`
	Tunables  map[string][2]float64 `json:"tunables,omitempty"`
}

type WeightDiffEntry struct {
	Component string  `json:"component"`
	From      float64 `json:"from"`
	To        float64 `json:"to"`
}

type WeightService interface {
	List(ctx context.Context) ([]*types.WeightVersion, error)
	Get(ctx context.Context, id uuid.UUID) (*types.WeightVersion, error)
	Diff(ctx context.Context, id uuid.UUID) (*VersionDiff, error)
	CreateManual(ctx context.Context, tag string, params *scoring.Params) (*types.WeightVersion, error)
	Activate(ctx context.Context, id uuid.UUID, actor string) error
	EnsureSeeded(ctx context.Context, path string) error
}

type weightService struct {
	db       *gorm.DB
	log      *logger.Logger
	versions repos.WeightVersionRepo
	matches  MatchService
}

func NewWeightService(db *gorm.DB, baseLog *logger.Logger, versions repos.WeightVersionRepo, matches MatchService) WeightService {
	return &weightService{
		db:       db,
		log:      baseLog.With("service", "WeightService"),
		versions: versions,
		matches:  matches,
	}
}

func (s *weightService) List(ctx context.Context) ([]*types.WeightVersion, error) {
	return s.versions.List(ctx, nil)
}

func (s *weightService) Get(ctx context.Context, id uuid.UUID) (*types.WeightVersion, error) {
	return s.versions.GetByID(ctx, nil, id)
}

func (s *weightService) Diff(ctx context.Context, id uuid.UUID) (*VersionDiff, error) {
	version, err := s.versions.GetByID(ctx, nil, id)
	if err != nil {
		return nil, err
	}
	if version == nil {
		return nil, fmt.Errorf("version %s not found", id)
	}
	var against *types.WeightVersion
	if version.ParentID != nil {
		against, err = s.versions.GetByID(ctx, nil, *version.ParentID)
	} else {
		against, err = s.versions.GetActive(ctx, nil)
	}
	if err != nil {
		return nil, err
	}
	if against == nil {
		return nil, fmt.Errorf("no comparison version for %s", id)
	}

	versionParams, err := scoring.ParamsFromVersion(version)
	if err != nil {
		return nil, err
	}
	againstParams, err := scoring.ParamsFromVersion(against)
	if err != nil {
		return nil, err
	}

	diff := &VersionDiff{VersionID: version.ID, AgainstID: against.ID, Tunables: map[string][2]float64{}}
	for _, c := range scoring.Components {
		from := againstParams.ComponentWeights[c.Name]
		to := versionParams.ComponentWeights[c.Name]
		if from != to {
			diff.Changes = append(diff.Changes, WeightDiffEntry{Component: c.Name, From: from, To: to})
		}
	}
	if against.NormalizationDivisor != version.NormalizationDivisor {
		diff.Tunables["normalization_divisor"] = [2]float64{against.NormalizationDivisor, version.NormalizationDivisor}
	}
	if against.MinBaseBoost != version.MinBaseBoost {
		diff.Tunables["min_base_boost"] = [2]float64{against.MinBaseBoost, version.MinBaseBoost}
	}
	return diff, nil
}

// CreateManual guardrail-checks and stores a manually tuned draft version.
func (s *weightService) CreateManual(ctx context.Context, tag string, params *scoring.Params) (*types.WeightVersion, error) {
	if err := scoring.ValidateParams(params); err != nil {
		return nil, err
	}
	version, err := params.ToVersion()
	if err != nil {
		return nil, err
	}
	version.Tag = tag
	version.Provenance = types.ProvenanceManual
	if err := s.versions.Create(ctx, nil, version); err != nil {
		return nil, err
	}
	s.log.Info("Manual weight version created", "tag", tag, "version_id", version.ID)
	return version, nil
}

// Activate re-validates guardrails, swaps the active pointer atomically and
// enqueues a full regeneration so persisted scores follow the new version.
func (s *weightService) Activate(ctx context.Context, id uuid.UUID, actor string) error {
	version, err := s.versions.GetByID(ctx, nil, id)
	if err != nil {
		return err
	}
	if version == nil {
		return fmt.Errorf("version %s not found", id)
	}
	params, err := scoring.ParamsFromVersion(version)
	if err != nil {
		return err
	}
	if err := scoring.ValidateParams(params); err != nil {
		return err
	}
	if err := s.versions.Activate(ctx, nil, id); err != nil {
		return err
	}
	s.log.Info("Weight version activated", "version_id", id, "tag", version.Tag, "actor", actor)
	if _, err := s.matches.EnqueueRun(ctx, nil); err != nil {
		// Activation already committed; the recompute can be re-triggered.
		s.log.Error("Failed to enqueue recompute after activation", "version_id", id, "error", err)
	}
	return nil
}

// EnsureSeeded bootstraps the first active version from the shipped YAML
// tuning when the system has no active pointer yet.
func (s *weightService) EnsureSeeded(ctx context.Context, path string) error {
	_, err := s.versions.GetActive(ctx, nil)
	if err == nil {
		return nil
	}
	if err != repos.ErrNoActiveVersion {
		return err
	}

	params := scoring.DefaultParams()
	tag := "seed-v1"
	if path != "" {
		raw, readErr := os.ReadFile(path)
		if readErr == nil {
			var seed seedFile
			if yErr := yaml.Unmarshal(raw, &seed); yErr != nil {
				return fmt.Errorf("parse seed weights %s: %w", path, yErr)
			}
			if seed.Tag != "" {
				tag = seed.Tag
			}
			if len(seed.ComponentWeights) > 0 {
				params.ComponentWeights = seed.ComponentWeights
			}
			if len(seed.SignalMaxPoints) > 0 {
				params.SignalMaxPoints = seed.SignalMaxPoints
			}
			if seed.NormalizationDivisor > 0 {
				params.NormalizationDivisor = seed.NormalizationDivisor
			}
			if seed.MinBaseBoost > 0 {
				params.MinBaseBoost = seed.MinBaseBoost
			}
			if seed.MultiplierFloor > 0 {
				params.MultiplierFloor = seed.MultiplierFloor
			}
			if seed.MultiplierCeiling > 0 {
				params.MultiplierCeiling = seed.MultiplierCeiling
			}
		} else {
			s.log.Warn("Seed weights file unreadable, using defaults", "path", path, "error", readErr)
		}
	}
	if err := scoring.ValidateParams(params); err != nil {
		return fmt.Errorf("seed weights fail guardrails: %w", err)
	}

	existing, err := s.versions.GetByTag(ctx, nil, tag)
	if err != nil {
		return err
	}
	if existing == nil {
		existing, err = s.CreateManual(ctx, tag, params)
		if err != nil {
			return err
		}
	}
	if err := s.versions.Activate(ctx, nil, existing.ID); err != nil {
		return err
	}
	s.log.Info("Seed weight version activated", "tag", tag, "version_id", existing.ID)
	return nil
}
