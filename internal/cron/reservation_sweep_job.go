package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/kitstock-backend/pkg/logger"
)

type reservationSweeper interface {
	DeleteExpired(ctx context.Context, now time.Time) (int64, error)
}

// ReservationSweepJobParams configures the expired-hold sweeper.
type ReservationSweepJobParams struct {
	Logger  *logger.Logger
	Sweeper reservationSweeper
}

// NewReservationSweepJob deletes cart reservations whose expiry has passed.
func NewReservationSweepJob(params ReservationSweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sweeper == nil {
		return nil, fmt.Errorf("reservation sweeper required")
	}
	return &reservationSweepJob{logg: params.Logger, sweeper: params.Sweeper, now: time.Now}, nil
}

type reservationSweepJob struct {
	logg    *logger.Logger
	sweeper reservationSweeper
	now     func() time.Time
}

func (j *reservationSweepJob) Name() string { return "reservation_sweep" }

func (j *reservationSweepJob) Run(ctx context.Context) error {
	swept, err := j.sweeper.DeleteExpired(ctx, j.now().UTC())
	if err != nil {
		return fmt.Errorf("reservation sweep: %w", err)
	}
	if swept > 0 {
		j.logg.Info(j.logg.WithField(ctx, "rows_deleted", swept), "expired reservations swept")
	}
	return nil
}
