package retention

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"orderflow/internal/config"
	"orderflow/internal/domain/interfaces"
	"orderflow/internal/metrics"
)

const defaultSchedule = "@hourly"

// Store is the part of the trade repository the job needs.
type Store interface {
	PruneBefore(ctx context.Context, cutoff time.Time, batchSize int) (int64, error)
	RecordRetentionRun(ctx context.Context, run interfaces.RetentionRun) error
}

// Job prunes persisted trades older than the retention horizon on a cron schedule.
type Job struct {
	store     Store
	horizon   time.Duration
	batchSize int
	schedule  string
	logger    *logrus.Entry
	metrics   *metrics.Metrics
	now       func() time.Time

	cron *cron.Cron
	mu   sync.Mutex
}

func NewJob(cfg config.RetentionConfig, store Store, logger *logrus.Logger, m *metrics.Metrics) (*Job, error) {
	if store == nil {
		return nil, errors.New("retention store is required")
	}
	if cfg.Hours <= 0 {
		return nil, fmt.Errorf("retention hours must be positive, got %d", cfg.Hours)
	}
	schedule := cfg.Schedule
	if schedule == "" {
		schedule = defaultSchedule
	}
	if logger == nil {
		logger = logrus.New()
	}
	return &Job{
		store:     store,
		horizon:   time.Duration(cfg.Hours) * time.Hour,
		batchSize: cfg.BatchSize,
		schedule:  schedule,
		logger:    logger.WithField("component", "retention"),
		metrics:   m,
		now:       time.Now,
	}, nil
}

// Run schedules the prune and blocks until ctx is done.
func (j *Job) Run(ctx context.Context) error {
	c := cron.New(cron.WithSeconds())
	if _, err := c.AddFunc(j.schedule, func() {
		if _, err := j.RunOnce(ctx); err != nil {
			j.logger.WithError(err).Warn("retention run failed")
		}
	}); err != nil {
		return fmt.Errorf("schedule retention %q: %w", j.schedule, err)
	}
	c.Start()
	j.logger.WithField("schedule", j.schedule).WithField("horizon", j.horizon.String()).Info("retention job started")

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// RunOnce deletes trades older than now minus the horizon and records the run.
// Runs are serialized.
func (j *Job) RunOnce(ctx context.Context) (int64, error) {
	j.mu.Lock()
	defer j.mu.Unlock()

	started := j.now().UTC()
	cutoff := started.Add(-j.horizon)
	deleted, err := j.store.PruneBefore(ctx, cutoff, j.batchSize)
	j.metrics.RetentionDeleted(deleted)

	run := interfaces.RetentionRun{
		StartedAt:  started,
		FinishedAt: j.now().UTC(),
		Cutoff:     cutoff,
		Deleted:    deleted,
	}
	if err != nil {
		run.Err = err.Error()
	}
	if recErr := j.store.RecordRetentionRun(ctx, run); recErr != nil {
		j.logger.WithError(recErr).Warn("failed to record retention run")
	}

	log := j.logger.WithFields(logrus.Fields{"cutoff": cutoff, "deleted": deleted})
	if err != nil {
		return deleted, err
	}
	log.Info("pruned expired trades")
	return deleted, nil
}
