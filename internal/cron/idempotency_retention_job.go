package cron

import (
	"context"
	"fmt"
	"time"

	"github.com/fensho/marketplace-backend/pkg/logger"
)

const defaultIdempotencyRetention = 30 * 24 * time.Hour

type IdempotencyRetentionJobParams struct {
	Logger    *logger.Logger
	Keys      keyPurger
	Retention time.Duration
}

type keyPurger interface {
	PurgeKeysBefore(ctx context.Context, cutoff time.Time) (int64, error)
}

// NewIdempotencyRetentionJob drops claimed event keys once callers can no
// longer plausibly redeliver them.
func NewIdempotencyRetentionJob(params IdempotencyRetentionJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Keys == nil {
		return nil, fmt.Errorf("idempotency key purger required")
	}
	retention := params.Retention
	if retention <= 0 {
		retention = defaultIdempotencyRetention
	}
	return &idempotencyRetentionJob{
		logg:      params.Logger,
		keys:      params.Keys,
		retention: retention,
		now:       time.Now,
	}, nil
}

type idempotencyRetentionJob struct {
	logg      *logger.Logger
	keys      keyPurger
	retention time.Duration
	now       func() time.Time
}

func (j *idempotencyRetentionJob) Name() string { return "idempotency-retention" }

func (j *idempotencyRetentionJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC().Add(-j.retention)
	deleted, err := j.keys.PurgeKeysBefore(ctx, cutoff)
	if err != nil {
		return fmt.Errorf("idempotency retention: %w", err)
	}
	j.logg.Info(j.logg.WithFields(ctx, map[string]any{
		"cutoff":       cutoff,
		"rows_deleted": deleted,
	}), "idempotency retention cleanup complete")
	return nil
}
