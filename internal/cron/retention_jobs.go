package cron

import (
	"context"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/pdalogistics-backend/pkg/logger"
)

const (
	defaultOutboxRetention       = 30 * 24 * time.Hour
	defaultOutboxAttempts        = 10
	defaultNotificationRetention = 90 * 24 * time.Hour
)

// pruneJob deletes rows older than a moving cutoff inside one transaction.
type pruneJob struct {
	name      string
	logg      *logger.Logger
	db        txRunner
	retention time.Duration
	prune     func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
	fields    map[string]any
	now       func() time.Time
}

func (j *pruneJob) Name() string { return j.name }

func (j *pruneJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	var deleted int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		deleted, err = j.prune(ctx, tx, cutoff)
		return err
	})
	if err != nil {
		return fmt.Errorf("%s: %w", j.name, err)
	}

	fields := map[string]any{"job": j.name, "cutoff": cutoff, "rows_deleted": deleted}
	for k, v := range j.fields {
		fields[k] = v
	}
	j.logg.Info(j.logg.WithFields(ctx, fields), "prune complete")
	return nil
}

func orDefault(d, fallback time.Duration) time.Duration {
	if d <= 0 {
		return fallback
	}
	return d
}

func checkPruneDeps(logg *logger.Logger, db txRunner, repoSet bool, what string) error {
	switch {
	case logg == nil:
		return fmt.Errorf("logger required")
	case db == nil:
		return fmt.Errorf("db runner required")
	case !repoSet:
		return fmt.Errorf("%s repository required", what)
	}
	return nil
}

// OutboxRetentionJobParams wires the outbox pruning job. MaxAttempts matches
// the publisher's limit so exhausted rows are pruned with delivered ones.
type OutboxRetentionJobParams struct {
	Logger      *logger.Logger
	DB          txRunner
	Repository  outboxRetentionRepo
	Retention   time.Duration
	MaxAttempts int
}

type outboxRetentionRepo interface {
	DeletePublishedBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time, minAttemptCount int) (int64, error)
}

func NewOutboxRetentionJob(params OutboxRetentionJobParams) (Job, error) {
	if err := checkPruneDeps(params.Logger, params.DB, params.Repository != nil, "outbox"); err != nil {
		return nil, err
	}
	attempts := params.MaxAttempts
	if attempts <= 0 {
		attempts = defaultOutboxAttempts
	}
	repo := params.Repository
	return &pruneJob{
		name:      "outbox-retention",
		logg:      params.Logger,
		db:        params.DB,
		retention: orDefault(params.Retention, defaultOutboxRetention),
		prune: func(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error) {
			return repo.DeletePublishedBefore(ctx, tx, cutoff, attempts)
		},
		fields: map[string]any{"max_attempts": attempts},
		now:    time.Now,
	}, nil
}

// NotificationCleanupJobParams wires the inbox pruning job.
type NotificationCleanupJobParams struct {
	Logger     *logger.Logger
	DB         txRunner
	Repository notificationsCleanupRepo
	Retention  time.Duration
}

type notificationsCleanupRepo interface {
	DeleteReadBefore(ctx context.Context, tx *gorm.DB, cutoff time.Time) (int64, error)
}

// NewNotificationCleanupJob removes read notifications older than Retention.
// Unread rows are never pruned.
func NewNotificationCleanupJob(params NotificationCleanupJobParams) (Job, error) {
	if err := checkPruneDeps(params.Logger, params.DB, params.Repository != nil, "notifications"); err != nil {
		return nil, err
	}
	return &pruneJob{
		name:      "notification-cleanup",
		logg:      params.Logger,
		db:        params.DB,
		retention: orDefault(params.Retention, defaultNotificationRetention),
		prune:     params.Repository.DeleteReadBefore,
		now:       time.Now,
	}, nil
}
