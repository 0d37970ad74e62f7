package cron

import (
	"context"
	"fmt"

	"go.uber.org/multierr"

	"github.com/promosynchq/promosync/internal/discounts"
	"github.com/promosynchq/promosync/pkg/db/models"
	"github.com/promosynchq/promosync/pkg/logger"
)

// shopLister surfaces shops whose discount state has never been synced.
type shopLister interface {
	ListUninitialized(ctx context.Context) ([]models.Shop, error)
}

// backfiller runs a whole-shop discount initialization pass.
type backfiller interface {
	InitializeAll(ctx context.Context, shop *models.Shop) (discounts.SyncSummary, error)
}

// BackfillJobParams configures the shop backfill job.
type BackfillJobParams struct {
	Logger     *logger.Logger
	Shops      shopLister
	Backfiller backfiller
}

// NewBackfillJob constructs the cron job that initializes discount
// state for shops that have not been swept before.
func NewBackfillJob(params BackfillJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Shops == nil {
		return nil, fmt.Errorf("shop repository required")
	}
	if params.Backfiller == nil {
		return nil, fmt.Errorf("backfiller required")
	}
	return &backfillJob{
		logg:       params.Logger,
		shops:      params.Shops,
		backfiller: params.Backfiller,
	}, nil
}

type backfillJob struct {
	logg       *logger.Logger
	shops      shopLister
	backfiller backfiller
}

func (j *backfillJob) Name() string { return "discount-backfill" }

func (j *backfillJob) Run(ctx context.Context) error {
	shops, err := j.shops.ListUninitialized(ctx)
	if err != nil {
		return fmt.Errorf("list uninitialized shops: %w", err)
	}
	if len(shops) == 0 {
		j.logg.Info(ctx, "no shops pending backfill")
		return nil
	}
	var errs []error
	for i := range shops {
		shop := shops[i]
		shopCtx := j.logg.WithShop(ctx, shop.Domain)
		summary, err := j.backfiller.InitializeAll(shopCtx, &shop)
		if err != nil {
			j.logg.Error(shopCtx, "shop backfill failed", err)
			errs = append(errs, fmt.Errorf("backfill %s: %w", shop.Domain, err))
			continue
		}
		logCtx := j.logg.WithFields(shopCtx, map[string]any{
			"found":     summary.TotalFound,
			"processed": summary.Processed,
			"skipped":   summary.Skipped,
			"errors":    summary.Errors,
		})
		j.logg.Info(logCtx, "shop backfill complete")
	}
	return multierr.Combine(errs...)
}
