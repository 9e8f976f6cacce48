package cron

import (
	"context"
	"errors"
	"fmt"
	"time"

	"gorm.io/gorm"

	"github.com/angelmondragon/kitstock-backend/pkg/logger"
)

const (
	defaultPublishedRetention  = 30 * 24 * time.Hour
	defaultDeadLetterRetention = 90 * 24 * time.Hour
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxPruner interface {
	DeletePublishedBefore(tx *gorm.DB, cutoff time.Time) (int64, error)
	DeleteDeadLettersBefore(tx *gorm.DB, cutoff time.Time) (int64, error)
}

// OutboxPruneJobParams configures the outbox cleanup job. Zero retentions
// fall back to 30 days for delivered rows and 90 for dead letters.
type OutboxPruneJobParams struct {
	Logger              *logger.Logger
	DB                  txRunner
	Outbox              outboxPruner
	Retention           time.Duration
	DeadLetterRetention time.Duration
}

// NewOutboxPruneJob deletes delivered outbox rows and old dead letters.
// Undelivered rows are never touched.
func NewOutboxPruneJob(params OutboxPruneJobParams) (Job, error) {
	switch {
	case params.Logger == nil:
		return nil, errors.New("logger required")
	case params.DB == nil:
		return nil, errors.New("db runner required")
	case params.Outbox == nil:
		return nil, errors.New("outbox repository required")
	}
	job := &outboxPruneJob{
		logg:       params.Logger,
		db:         params.DB,
		outbox:     params.Outbox,
		published:  params.Retention,
		deadLetter: params.DeadLetterRetention,
		now:        time.Now,
	}
	if job.published <= 0 {
		job.published = defaultPublishedRetention
	}
	if job.deadLetter <= 0 {
		job.deadLetter = defaultDeadLetterRetention
	}
	return job, nil
}

type outboxPruneJob struct {
	logg       *logger.Logger
	db         txRunner
	outbox     outboxPruner
	published  time.Duration
	deadLetter time.Duration
	now        func() time.Time
}

func (j *outboxPruneJob) Name() string { return "outbox_prune" }

func (j *outboxPruneJob) Run(ctx context.Context) error {
	now := j.now().UTC()
	var published, parked int64
	err := j.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		if published, err = j.outbox.DeletePublishedBefore(tx, now.Add(-j.published)); err != nil {
			return fmt.Errorf("published rows: %w", err)
		}
		if parked, err = j.outbox.DeleteDeadLettersBefore(tx, now.Add(-j.deadLetter)); err != nil {
			return fmt.Errorf("dead letters: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("outbox prune: %w", err)
	}
	if published+parked > 0 {
		j.logg.Info(j.logg.WithFields(ctx, map[string]any{
			"published_deleted":   published,
			"dead_letter_deleted": parked,
		}), "outbox pruned")
	}
	return nil
}
