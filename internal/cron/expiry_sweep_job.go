package cron

import (
	"context"
	"fmt"

	"github.com/promosynchq/promosync/internal/discounts"
	"github.com/promosynchq/promosync/pkg/logger"
)

// expirySweeper deactivates discounts whose end date has passed and
// removes their annotations from the affected products.
type expirySweeper interface {
	SweepExpired(ctx context.Context) (discounts.SyncSummary, error)
}

// ExpirySweepJobParams configures the scheduled expiry sweep.
type ExpirySweepJobParams struct {
	Logger  *logger.Logger
	Sweeper expirySweeper
}

// NewExpirySweepJob constructs the discount expiry sweep cron job.
func NewExpirySweepJob(params ExpirySweepJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Sweeper == nil {
		return nil, fmt.Errorf("sweeper required")
	}
	return &expirySweepJob{
		logg:    params.Logger,
		sweeper: params.Sweeper,
	}, nil
}

type expirySweepJob struct {
	logg    *logger.Logger
	sweeper expirySweeper
}

func (j *expirySweepJob) Name() string { return "discount-expiry-sweep" }

func (j *expirySweepJob) Run(ctx context.Context) error {
	summary, err := j.sweeper.SweepExpired(ctx)
	logCtx := j.logg.WithFields(ctx, map[string]any{
		"found":     summary.TotalFound,
		"processed": summary.Processed,
		"skipped":   summary.Skipped,
		"errors":    summary.Errors,
	})
	if err != nil {
		return fmt.Errorf("sweep expired discounts: %w", err)
	}
	j.logg.Info(logCtx, "expiry sweep complete")
	if summary.Errors > 0 {
		return fmt.Errorf("expiry sweep finished with %d errored discounts", summary.Errors)
	}
	return nil
}
