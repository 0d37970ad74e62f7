package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/promosynchq/promosync/internal/cron"
	"github.com/promosynchq/promosync/internal/discounts"
	"github.com/promosynchq/promosync/internal/products"
	"github.com/promosynchq/promosync/internal/relationships"
	"github.com/promosynchq/promosync/internal/shops"
	"github.com/promosynchq/promosync/pkg/config"
	"github.com/promosynchq/promosync/pkg/db"
	"github.com/promosynchq/promosync/pkg/logger"
	"github.com/promosynchq/promosync/pkg/metrics"
	"github.com/promosynchq/promosync/pkg/migrate"
	"github.com/promosynchq/promosync/pkg/pacing"
	"github.com/promosynchq/promosync/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "cron-worker"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	cfg.Service.Kind = "cron-worker"

	logg = logger.New(logger.Options{
		ServiceName: "cron-worker",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	promRegistry := prometheus.NewRegistry()
	syncMetrics := metrics.NewSyncMetrics(promRegistry)

	registry, err := buildRegistry(cfg, logg, dbClient, syncMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to wire cron jobs", err)
		os.Exit(1)
	}

	lock, err := cron.NewRedisLock(redisClient, redisClient.LockKey(cfg.Service.Kind), cfg.Cron.LockTTL)
	if err != nil {
		logg.Error(context.Background(), "failed to create cron lock", err)
		os.Exit(1)
	}

	service, err := cron.NewService(cron.ServiceParams{
		Logger:   logg,
		Registry: registry,
		Lock:     lock,
		Metrics:  syncMetrics,
		Interval: cfg.Cron.Interval,
	})
	if err != nil {
		logg.Error(context.Background(), "failed to create cron service", err)
		os.Exit(1)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	ctx = logg.WithFields(ctx, map[string]any{
		"env":         cfg.App.Env,
		"serviceKind": cfg.Service.Kind,
	})
	logg.Info(ctx, "starting cron worker")

	go serveMetrics(ctx, cfg, logg, promRegistry)

	if err := service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
		logg.Error(ctx, "cron worker stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "cron worker shutting down gracefully")
}

func buildRegistry(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	syncMetrics *metrics.SyncMetrics,
) (*cron.Registry, error) {
	gormDB := dbClient.DB()

	ruleRepo, err := discounts.NewRepo(gormDB)
	if err != nil {
		return nil, err
	}
	shopRepo, err := shops.NewRepo(gormDB)
	if err != nil {
		return nil, err
	}
	productRepo, err := products.NewRepo(gormDB)
	if err != nil {
		return nil, err
	}
	linkRepo, err := relationships.NewRepo(gormDB)
	if err != nil {
		return nil, err
	}

	factory, err := discounts.NewShopClientFactory(cfg.Shopify, logg)
	if err != nil {
		return nil, err
	}

	targeting, err := discounts.NewTargetingResolver(discounts.TargetingResolverParams{
		Factory:  factory,
		Logger:   logg,
		PageSize: cfg.Sync.PageSize,
		PageGate: pacing.NewInterval(cfg.Sync.InterPageDelay),
	})
	if err != nil {
		return nil, err
	}

	annotations, err := discounts.NewAnnotationMerger(discounts.AnnotationMergerParams{
		Factory: factory,
		Logger:  logg,
	})
	if err != nil {
		return nil, err
	}

	batch, err := discounts.NewBatchExecutor(discounts.BatchExecutorParams{
		MaxBatchSize: cfg.Sync.MaxBatchSize,
		Gate:         pacing.NewInterval(cfg.Sync.InterCallDelay),
		Logger:       logg,
	})
	if err != nil {
		return nil, err
	}

	reconciler, err := relationships.NewService(relationships.Params{
		Links:    linkRepo,
		Products: productRepo,
		Rules:    ruleRepo,
		Logger:   logg,
	})
	if err != nil {
		return nil, err
	}

	syncService, err := discounts.NewService(discounts.ServiceParams{
		Factory:     factory,
		Targeting:   targeting,
		Annotations: annotations,
		Batch:       batch,
		Rules:       ruleRepo,
		Shops:       shopRepo,
		Mirror:      productRepo,
		Reconciler:  reconciler,
		Logger:      logg,
		Metrics:     syncMetrics,
		PageGate:    pacing.NewInterval(cfg.Sync.InterPageDelay),
		ItemGate:    pacing.NewInterval(cfg.Sync.InterCallDelay),
		PageSize:    cfg.Sync.PageSize,
	})
	if err != nil {
		return nil, err
	}

	sweepJob, err := cron.NewExpirySweepJob(cron.ExpirySweepJobParams{
		Logger:  logg,
		Sweeper: syncService,
	})
	if err != nil {
		return nil, err
	}

	backfillJob, err := cron.NewBackfillJob(cron.BackfillJobParams{
		Logger:     logg,
		Shops:      shopRepo,
		Backfiller: syncService,
	})
	if err != nil {
		return nil, err
	}

	return cron.NewRegistry(sweepJob, backfillJob), nil
}

func serveMetrics(ctx context.Context, cfg *config.Config, logg *logger.Logger, gatherer prometheus.Gatherer) {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	server := &http.Server{Addr: ":" + cfg.App.Port, Handler: mux}
	go func() {
		<-ctx.Done()
		_ = server.Close()
	}()
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "metrics endpoint stopped unexpectedly", err)
	}
}
