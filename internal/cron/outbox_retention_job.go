package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/Luis3c4/IMEI/pkg/logger"
)

const (
	defaultRetentionDays = 30
	defaultMinAttempts   = 10
)

type txRunner interface {
	WithTx(context.Context, func(tx *gorm.DB) error) error
}

type retentionStore interface {
	DeletePublishedBefore(tx *gorm.DB, cutoff time.Time, minAttempts int) (int64, error)
}

// OutboxRetentionJobParams configure the outbox retention sweep.
type OutboxRetentionJobParams struct {
	Logger        *logger.Logger
	DB            txRunner
	Repository    retentionStore
	RetentionDays int
	MinAttempts   int
}

// NewOutboxRetentionJob builds the job that prunes relayed outbox rows.
// MinAttempts should match the publisher's terminal threshold so exhausted
// rows (whose payloads live in the DLQ) age out alongside published ones.
func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.DB == nil:
		return nil, errors.New("db runner required")
	case params.Repository == nil:
		return nil, errors.New("outbox repository required")
	}

	job := &outboxRetentionJob{
		logg:        params.Logger,
		db:          params.DB,
		repo:        params.Repository,
		windowDays:  params.RetentionDays,
		minAttempts: params.MinAttempts,
		now:         time.Now,
	}
	if job.windowDays <= 0 {
		job.windowDays = defaultRetentionDays
	}
	if job.minAttempts <= 0 {
		job.minAttempts = defaultMinAttempts
	}
	return job, nil
}

type outboxRetentionJob struct {
	logg        *logger.Logger
	db          txRunner
	repo        retentionStore
	windowDays  int
	minAttempts int
	now         func() time.Time
}

func (j *outboxRetentionJob) Name() string { return "outbox-retention" }

// cutoff is the oldest publish timestamp the sweep keeps.
func (j *outboxRetentionJob) cutoff() time.Time {
	return j.now().UTC().Add(-time.Duration(j.windowDays) * 24 * time.Hour)
}

func (j *outboxRetentionJob) Run(ctx context.Context) error {
	cutoff := j.cutoff()

	var deleted int64
	sweep := func(tx *gorm.DB) error {
		rows, err := j.repo.DeletePublishedBefore(tx, cutoff, j.minAttempts)
		deleted = rows
		return err
	}
	if err := j.db.WithTx(ctx, sweep); err != nil {
		return fmt.Errorf("outbox retention: %w", err)
	}

	logCtx := j.logg.WithFields(ctx, map[string]any{
		"retention_days": j.windowDays,
		"min_attempts":   j.minAttempts,
		"cutoff":         cutoff,
		"rows_deleted":   deleted,
	})
	j.logg.Info(logCtx, "outbox retention sweep complete")
	return nil
}
