package scheduler

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog"

	"tournament-stats/internal/config"
	"tournament-stats/internal/service"
)

// Scheduler periodically retries reconciliation of queued telemetry
// payloads.
type Scheduler struct {
	cron   *cron.Cron
	ingest *service.IngestService
	cfg    *config.Config
	logger zerolog.Logger
}

func New(cfg *config.Config, ingest *service.IngestService, logger zerolog.Logger) *Scheduler {
	return &Scheduler{
		cron:   cron.New(),
		ingest: ingest,
		cfg:    cfg,
		logger: logger,
	}
}

func (s *Scheduler) Start() error {
	_, err := s.cron.AddFunc(s.cfg.ReconcileSchedule, func() {
		if _, err := s.ingest.ReconcilePending(context.Background()); err != nil {
			s.logger.Error().Err(err).Msg("scheduled reconciliation sweep failed")
		}
	})
	if err != nil {
		return err
	}
	s.cron.Start()
	s.logger.Info().Str("schedule", s.cfg.ReconcileSchedule).Msg("reconciliation scheduler started")
	return nil
}

func (s *Scheduler) Stop() {
	ctx := s.cron.Stop()
	<-ctx.Done()
	s.logger.Info().Msg("reconciliation scheduler stopped")
}
