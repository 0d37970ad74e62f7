package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/promosynchq/promosync/api/routes"
	"github.com/promosynchq/promosync/internal/discounts"
	"github.com/promosynchq/promosync/internal/products"
	"github.com/promosynchq/promosync/internal/relationships"
	"github.com/promosynchq/promosync/internal/shops"
	shopifywebhook "github.com/promosynchq/promosync/internal/webhooks/shopify"
	"github.com/promosynchq/promosync/pkg/config"
	"github.com/promosynchq/promosync/pkg/db"
	"github.com/promosynchq/promosync/pkg/logger"
	"github.com/promosynchq/promosync/pkg/metrics"
	"github.com/promosynchq/promosync/pkg/migrate"
	"github.com/promosynchq/promosync/pkg/pacing"
	"github.com/promosynchq/promosync/pkg/redis"
)

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
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

	registry := prometheus.NewRegistry()
	syncMetrics := metrics.NewSyncMetrics(registry)

	webhookService, err := buildWebhookService(cfg, logg, dbClient, redisClient, syncMetrics)
	if err != nil {
		logg.Error(context.Background(), "failed to wire webhook pipeline", err)
		os.Exit(1)
	}

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting webhook receiver")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, redisClient, webhookService, registry),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "webhook receiver stopped unexpectedly", err)
		os.Exit(1)
	}
}

func buildWebhookService(
	cfg *config.Config,
	logg *logger.Logger,
	dbClient *db.Client,
	redisClient *redis.Client,
	syncMetrics *metrics.SyncMetrics,
) (*shopifywebhook.Service, error) {
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

	return shopifywebhook.NewService(shopifywebhook.Params{
		Processor: syncService,
		Shops:     shopRepo,
		Dedup:     redisClient,
		Logger:    logg,
	})
}
