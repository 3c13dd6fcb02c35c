package learning

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/fundbridge/fundbridge-backend/internal/logger"
	"github.com/fundbridge/fundbridge-backend/internal/repos"
	"github.com/fundbridge/fundbridge-backend/internal/types"
)

const snapshotBatchSize = 500

// Refresher materializes the time-sliced training set. It runs only when
// explicitly triggered, never per read, and its duration is a first-class
// operational metric.
type Refresher struct {
	log      *logger.Logger
	startups repos.StartupProfileRepo
	events   repos.OutcomeEventRepo
	rows     repos.TrainingSnapshotRepo
	pageSize int
}

func NewRefresher(baseLog *logger.Logger, startups repos.StartupProfileRepo, events repos.OutcomeEventRepo, rows repos.TrainingSnapshotRepo) *Refresher {
	return &Refresher{
		log:      baseLog.With("component", "SnapshotRefresher"),
		startups: startups,
		events:   events,
		rows:     rows,
		pageSize: 1000,
	}
}

// Refresh rebuilds the materialized snapshot: one row per scored startup,
// features frozen at its scoring timestamp, label derived only from events
// strictly after it. Returns the number of mature rows written.
func (r *Refresher) Refresh(ctx context.Context) (int, error) {
	start := time.Now()
	now := time.Now().UTC()

	var batch []*types.TrainingSnapshot
	written := 0
	skippedImmature := 0

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		if err := r.rows.UpsertBatch(ctx, nil, batch); err != nil {
			return fmt.Errorf("persist snapshot batch: %w", err)
		}
		written += len(batch)
		batch = batch[:0]
		return nil
	}

	for offset := 0; ; offset += r.pageSize {
		page, err := r.startups.ListScored(ctx, nil, offset, r.pageSize)
		if err != nil {
			return 0, fmt.Errorf("page scored startups at offset %d: %w", offset, err)
		}
		if len(page) == 0 {
			break
		}
		for _, startup := range page {
			if startup.ScoredAt == nil {
				continue
			}
			scoreDate := startup.ScoredAt.UTC()
			windowEnd := scoreDate.Add(OutcomeWindow)

			events, eErr := r.events.ListForStartupBetween(ctx, nil, startup.ID, scoreDate, windowEnd)
			if eErr != nil {
				return 0, fmt.Errorf("load outcome events for %s: %w", startup.ID, eErr)
			}
			label := DeriveLabel(scoreDate, now, events)
			if !label.Mature {
				skippedImmature++
				continue
			}

			// Features come from the as-of sub-scores, never from derived
			// score fields.
			features := startup.SubScores
			if len(features) == 0 {
				features, _ = json.Marshal(map[string]float64{})
			}
			batch = append(batch, &types.TrainingSnapshot{
				StartupID:      startup.ID,
				ScoreDate:      scoreDate,
				Features:       features,
				Success:        label.Success,
				LabelEventID:   label.EventID,
				LabelSource:    label.Source,
				TimeBucket:     TimeBucket(scoreDate),
				WindowClosedAt: windowEnd,
			})
			if len(batch) >= snapshotBatchSize {
				if err := flush(); err != nil {
					return 0, err
				}
			}
		}
	}
	if err := flush(); err != nil {
		return 0, err
	}

	r.log.Info("Training snapshot refreshed",
		"rows_written", written,
		"skipped_immature", skippedImmature,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return written, nil
}
