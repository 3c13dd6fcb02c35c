package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/fundbridge/fundbridge-backend/internal/logger"
	"github.com/fundbridge/fundbridge-backend/internal/repos"
	"github.com/fundbridge/fundbridge-backend/internal/services"
	"github.com/fundbridge/fundbridge-backend/internal/types"
)

const (
	pollInterval      = 1 * time.Second
	heartbeatInterval = 15 * time.Second
	maxAttempts       = 3
	retryDelay        = 30 * time.Second
	staleRunning      = 5 * time.Minute
)

// Worker drains the match_runs queue. Multiple workers can run against the
// same database; SKIP LOCKED claiming keeps each run on exactly one of them.
type Worker struct {
	db      *gorm.DB
	log     *logger.Logger
	runs    repos.MatchRunRepo
	matches services.MatchService
}

func NewWorker(db *gorm.DB, baseLog *logger.Logger, runs repos.MatchRunRepo, matches services.MatchService) *Worker {
	return &Worker{
		db:      db,
		log:     baseLog.With("component", "MatchRunWorker"),
		runs:    runs,
		matches: matches,
	}
}

func (w *Worker) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(pollInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				run, err := w.runs.ClaimNextRunnable(ctx, nil, maxAttempts, retryDelay, staleRunning)
				if err != nil {
					w.log.Warn("ClaimNextRunnable failed", "error", err)
					continue
				}
				if run == nil {
					continue
				}
				w.execute(ctx, run)
			}
		}
	}()
}

func (w *Worker) execute(ctx context.Context, run *types.MatchRun) {
	w.log.Info("Claimed match run", "run_id", run.ID, "attempt", run.Attempts+1)

	hbCtx, stopHeartbeat := context.WithCancel(ctx)
	defer stopHeartbeat()
	go func() {
		ticker := time.NewTicker(heartbeatInterval)
		defer ticker.Stop()
		for {
			select {
			case <-hbCtx.Done():
				return
			case <-ticker.C:
				if err := w.runs.Heartbeat(hbCtx, nil, run.ID); err != nil {
					w.log.Warn("Heartbeat failed", "run_id", run.ID, "error", err)
				}
			}
		}
	}()

	// A panicking run is marked failed, not allowed to kill the worker.
	func() {
		defer func() {
			if r := recover(); r != nil {
				w.log.Error("Match run panicked", "run_id", run.ID, "panic", r)
				w.markFailed(ctx, run, fmt.Errorf("panic: %v", r))
			}
		}()
		if err := w.matches.ExecuteRun(ctx, run); err != nil {
			w.log.Error("Match run failed", "run_id", run.ID, "error", err)
			// ExecuteRun persists its own failures. The lock-contention
			// case never reached that path, so record it here to keep
			// the run retryable.
			if errors.Is(err, services.ErrRunInProgress) {
				w.markFailed(ctx, run, err)
			}
		}
	}()
}

func (w *Worker) markFailed(ctx context.Context, run *types.MatchRun, cause error) {
	now := time.Now().UTC()
	err := w.runs.UpdateFields(ctx, nil, run.ID, map[string]interface{}{
		"status":        types.MatchRunFailed,
		"last_error":    cause.Error(),
		"last_error_at": now,
		"finished_at":   now,
	})
	if err != nil {
		w.log.Error("Failed to mark run failed", "run_id", run.ID, "error", err)
	}
}
