package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/angelmondragon/medcart-backend/pkg/logger"
)

const defaultRefillRetention = 90 * 24 * time.Hour

type refillPurger interface {
	PurgeDismissed(ctx context.Context, cutoff time.Time) (int64, error)
}

type RefillCleanupJobParams struct {
	Logger     *logger.Logger
	Repository refillPurger
	Retention  time.Duration
	Now        func() time.Time
}

// NewRefillCleanupJob deletes refill suggestions dismissed more than the
// retention period ago.
func NewRefillCleanupJob(params RefillCleanupJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Repository == nil {
		return nil, fmt.Errorf("refill repository required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultRefillRetention
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &refillCleanupJob{logg: params.Logger, repo: params.Repository, retention: retention, now: now}, nil
}

type refillCleanupJob struct {
	logg      *logger.Logger
	repo      refillPurger
	retention time.Duration
	now       func() time.Time
}

func (j *refillCleanupJob) Name() string { return "refill_cleanup" }

func (j *refillCleanupJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	deleted, err := j.repo.PurgeDismissed(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("purge dismissed refills: %w", err)
	}
	j.logg.Info(j.logg.WithField(ctx, "rows_deleted", deleted), "refill cleanup complete")
	return nil
}
