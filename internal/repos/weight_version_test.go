package repos

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"

	"github.com/fundbridge/fundbridge-backend/internal/logger"
	"github.com/fundbridge/fundbridge-backend/internal/scoring"
	"github.com/fundbridge/fundbridge-backend/internal/types"
)

func testDB(t *testing.T, models ...interface{}) *gorm.DB {
	t.Helper()
	db, err := gorm.Open(sqlite.Open("file:"+uuid.NewString()+"?mode=memory&cache=shared"), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Silent),
	})
	if err != nil {
		t.Fatalf("open sqlite: %v", err)
	}
	if err := db.AutoMigrate(models...); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return db
}

func newVersion(t *testing.T, tag string) *types.WeightVersion {
	t.Helper()
	v, err := scoring.DefaultParams().ToVersion()
	if err != nil {
		t.Fatalf("ToVersion: %v", err)
	}
	v.Tag = tag
	v.Provenance = types.ProvenanceManual
	return v
}

func TestWeightVersionRepo_CreateLearnedRequiresParentProtectedFields(t *testing.T) {
	db := testDB(t, &types.WeightVersion{}, &types.ScoringConfig{})
	repo := NewWeightVersionRepo(db, logger.NewNop())
	ctx := context.Background()

	parent := newVersion(t, "parent")
	if err := repo.Create(ctx, nil, parent); err != nil {
		t.Fatalf("create parent: %v", err)
	}

	// Identical protected fields: accepted.
	ok := newVersion(t, "learned-ok")
	ok.Provenance = types.ProvenanceLearned
	ok.ParentID = &parent.ID
	ok.SignalMaxPoints = parent.SignalMaxPoints
	ok.MultiplierFloor = parent.MultiplierFloor
	ok.MultiplierCeiling = parent.MultiplierCeiling
	if err := repo.Create(ctx, nil, ok); err != nil {
		t.Fatalf("create compliant learned version: %v", err)
	}

	// Altered signal table: rejected at the storage boundary.
	bad := newVersion(t, "learned-bad-signal")
	bad.Provenance = types.ProvenanceLearned
	bad.ParentID = &parent.ID
	bad.SignalMaxPoints = []byte(`{"sentiment_shift":9}`)
	bad.MultiplierFloor = parent.MultiplierFloor
	bad.MultiplierCeiling = parent.MultiplierCeiling
	if err := repo.Create(ctx, nil, bad); !errors.Is(err, ErrProtectedFieldsChanged) {
		t.Fatalf("expected ErrProtectedFieldsChanged, got %v", err)
	}

	// Altered multiplier band: also rejected.
	badBand := newVersion(t, "learned-bad-band")
	badBand.Provenance = types.ProvenanceLearned
	badBand.ParentID = &parent.ID
	badBand.SignalMaxPoints = parent.SignalMaxPoints
	badBand.MultiplierFloor = parent.MultiplierFloor
	badBand.MultiplierCeiling = parent.MultiplierCeiling + 0.1
	if err := repo.Create(ctx, nil, badBand); !errors.Is(err, ErrProtectedFieldsChanged) {
		t.Fatalf("expected ErrProtectedFieldsChanged, got %v", err)
	}
}

func TestWeightVersionRepo_CreateLearnedRequiresParent(t *testing.T) {
	db := testDB(t, &types.WeightVersion{}, &types.ScoringConfig{})
	repo := NewWeightVersionRepo(db, logger.NewNop())

	orphan := newVersion(t, "orphan")
	orphan.Provenance = types.ProvenanceLearned
	if err := repo.Create(context.Background(), nil, orphan); err == nil {
		t.Fatalf("expected rejection of learned version without parent")
	}
}

func TestWeightVersionRepo_GetActiveWithoutPointer(t *testing.T) {
	db := testDB(t, &types.WeightVersion{}, &types.ScoringConfig{})
	repo := NewWeightVersionRepo(db, logger.NewNop())

	_, err := repo.GetActive(context.Background(), nil)
	if !errors.Is(err, ErrNoActiveVersion) {
		t.Fatalf("expected ErrNoActiveVersion, got %v", err)
	}
}

func TestWeightVersionRepo_ActivateSwapsPointerAndStatuses(t *testing.T) {
	db := testDB(t, &types.WeightVersion{}, &types.ScoringConfig{})
	repo := NewWeightVersionRepo(db, logger.NewNop())
	ctx := context.Background()

	first := newVersion(t, "v1")
	second := newVersion(t, "v2")
	if err := repo.Create(ctx, nil, first); err != nil {
		t.Fatalf("create v1: %v", err)
	}
	if err := repo.Create(ctx, nil, second); err != nil {
		t.Fatalf("create v2: %v", err)
	}

	if err := repo.Activate(ctx, nil, first.ID); err != nil {
		t.Fatalf("activate v1: %v", err)
	}
	active, err := repo.GetActive(ctx, nil)
	if err != nil {
		t.Fatalf("get active: %v", err)
	}
	if active.ID != first.ID || active.Status != types.WeightVersionActive {
		t.Fatalf("expected v1 active, got %s (%s)", active.Tag, active.Status)
	}

	if err := repo.Activate(ctx, nil, second.ID); err != nil {
		t.Fatalf("activate v2: %v", err)
	}
	active, err = repo.GetActive(ctx, nil)
	if err != nil {
		t.Fatalf("get active after swap: %v", err)
	}
	if active.ID != second.ID {
		t.Fatalf("expected v2 active after swap")
	}
	prior, err := repo.GetByID(ctx, nil, first.ID)
	if err != nil {
		t.Fatalf("get v1: %v", err)
	}
	if prior.Status != types.WeightVersionExpired {
		t.Fatalf("expected prior version expired, got %s", prior.Status)
	}

	// Rollback is just another pointer swap.
	if err := repo.Activate(ctx, nil, first.ID); err != nil {
		t.Fatalf("reactivate v1: %v", err)
	}
	active, err = repo.GetActive(ctx, nil)
	if err != nil {
		t.Fatalf("get active after rollback: %v", err)
	}
	if active.ID != first.ID {
		t.Fatalf("expected rollback to v1")
	}
}

func TestWeightVersionRepo_HistoryRetainedAcrossSwaps(t *testing.T) {
	db := testDB(t, &types.WeightVersion{}, &types.ScoringConfig{})
	repo := NewWeightVersionRepo(db, logger.NewNop())
	ctx := context.Background()

	for _, tag := range []string{"v1", "v2", "v3"} {
		v := newVersion(t, tag)
		if err := repo.Create(ctx, nil, v); err != nil {
			t.Fatalf("create %s: %v", tag, err)
		}
		if err := repo.Activate(ctx, nil, v.ID); err != nil {
			t.Fatalf("activate %s: %v", tag, err)
		}
	}
	all, err := repo.List(ctx, nil)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(all) != 3 {
		t.Fatalf("expected full history retained, got %d versions", len(all))
	}
}
