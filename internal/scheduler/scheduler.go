// Package scheduler runs the periodic maintenance jobs behind the pipeline:
// consent directory reconciliation and transcript retention.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/veilcast/veilcast/internal/config"
	"github.com/veilcast/veilcast/pkg/format"
)

// jobTimeout bounds each maintenance run.
const jobTimeout = time.Minute

// ConsentRescanner reconciles the consent directory against the recognition
// database. Satisfied by the consent manager.
type ConsentRescanner interface {
	Rescan(ctx context.Context) error
}

// TranscriptSweeper removes transcripts created before the cutoff.
// Satisfied by the transcript repository.
type TranscriptSweeper interface {
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// Scheduler owns the cron runner. Jobs use 6-field cron expressions
// (seconds granularity); an empty expression disables that job.
type Scheduler struct {
	cfg         config.SchedulerConfig
	consents    ConsentRescanner
	transcripts TranscriptSweeper
	logger      *slog.Logger
	cron        *cron.Cron
}

// NewScheduler creates a scheduler for the configured maintenance jobs.
func NewScheduler(
	cfg config.SchedulerConfig,
	consents ConsentRescanner,
	transcripts TranscriptSweeper,
	logger *slog.Logger,
) *Scheduler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Scheduler{
		cfg:         cfg,
		consents:    consents,
		transcripts: transcripts,
		logger:      logger.With(slog.String("component", "scheduler")),
	}
}

// Start registers the configured jobs and starts the cron runner.
func (s *Scheduler) Start() error {
	if s.cron != nil {
		return fmt.Errorf("scheduler already started")
	}

	s.cron = cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)

	if s.consents != nil && s.cfg.ConsentRescanCron != "" {
		if _, err := s.cron.AddFunc(s.cfg.ConsentRescanCron, s.rescanConsents); err != nil {
			return fmt.Errorf("registering consent rescan job: %w", err)
		}
		s.logger.Info("consent rescan scheduled",
			slog.String("schedule", format.CronDescription(s.cfg.ConsentRescanCron)))
	}

	if s.transcripts != nil && s.cfg.TranscriptSweepCron != "" && s.cfg.TranscriptRetention > 0 {
		if _, err := s.cron.AddFunc(s.cfg.TranscriptSweepCron, s.sweepTranscripts); err != nil {
			return fmt.Errorf("registering transcript sweep job: %w", err)
		}
		s.logger.Info("transcript sweep scheduled",
			slog.String("schedule", format.CronDescription(s.cfg.TranscriptSweepCron)),
			slog.Duration("retention", s.cfg.TranscriptRetention.Duration()))
	}

	s.cron.Start()
	s.logger.Info("scheduler started")
	return nil
}

// Stop stops the cron runner, waiting for a running job to finish.
func (s *Scheduler) Stop() {
	if s.cron == nil {
		return
	}
	<-s.cron.Stop().Done()
	s.logger.Info("scheduler stopped")
}

func (s *Scheduler) rescanConsents() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	if err := s.consents.Rescan(ctx); err != nil {
		s.logger.Warn("consent rescan failed", slog.String("error", err.Error()))
	}
}

func (s *Scheduler) sweepTranscripts() {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()

	cutoff := time.Now().Add(-s.cfg.TranscriptRetention.Duration())
	deleted, err := s.transcripts.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.logger.Warn("transcript sweep failed", slog.String("error", err.Error()))
		return
	}
	if deleted > 0 {
		s.logger.Info("transcripts swept",
			slog.Int64("deleted", deleted),
			slog.Time("cutoff", cutoff))
	}
}
