package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"

	"github.com/fundbridge/fundbridge-backend/internal/logger"
	"github.com/fundbridge/fundbridge-backend/internal/services"
)

// Config holds cron expressions for the recurring jobs. An empty expression
// disables that job.
type Config struct {
	RegenerationSpec string
	SnapshotSpec     string
}

type Scheduler struct {
	log      *logger.Logger
	cron     *cron.Cron
	matches  services.MatchService
	learning services.LearningService
	cfg      Config
}

func New(baseLog *logger.Logger, matches services.MatchService, learning services.LearningService, cfg Config) *Scheduler {
	return &Scheduler{
		log:      baseLog.With("component", "Scheduler"),
		cron:     cron.New(),
		matches:  matches,
		learning: learning,
		cfg:      cfg,
	}
}

func (s *Scheduler) Start(ctx context.Context) error {
	if s.cfg.RegenerationSpec != "" {
		_, err := s.cron.AddFunc(s.cfg.RegenerationSpec, func() {
			run, err := s.matches.EnqueueRun(ctx, nil)
			if err != nil {
				s.log.Error("Scheduled regeneration enqueue failed", "error", err)
				return
			}
			s.log.Info("Scheduled regeneration enqueued", "run_id", run.ID)
		})
		if err != nil {
			return err
		}
		s.log.Info("Regeneration scheduled", "cron", s.cfg.RegenerationSpec)
	}

	if s.cfg.SnapshotSpec != "" {
		_, err := s.cron.AddFunc(s.cfg.SnapshotSpec, func() {
			rows, err := s.learning.RefreshSnapshots(ctx)
			if err != nil {
				s.log.Error("Scheduled snapshot refresh failed", "error", err)
				return
			}
			s.log.Info("Scheduled snapshot refresh finished", "rows_written", rows)
		})
		if err != nil {
			return err
		}
		s.log.Info("Snapshot refresh scheduled", "cron", s.cfg.SnapshotSpec)
	}

	s.cron.Start()
	go func() {
		<-ctx.Done()
		s.cron.Stop()
	}()
	return nil
}
