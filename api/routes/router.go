package routes

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/promosynchq/promosync/api/controllers"
	webhookcontrollers "github.com/promosynchq/promosync/api/controllers/webhooks"
	"github.com/promosynchq/promosync/api/middleware"
	"github.com/promosynchq/promosync/pkg/config"
	"github.com/promosynchq/promosync/pkg/db"
	"github.com/promosynchq/promosync/pkg/logger"
	"github.com/promosynchq/promosync/pkg/redis"
)

// NewRouter wires the webhook receiver surface: health probes, metrics,
// and the signed Shopify webhook endpoint.
func NewRouter(
	cfg *config.Config,
	logg *logger.Logger,
	dbP db.Pinger,
	redisClient *redis.Client,
	webhookService webhookcontrollers.ShopifyWebhookService,
	gatherer prometheus.Gatherer,
) http.Handler {
	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
	)

	var cacheP db.Pinger
	if redisClient != nil {
		cacheP = redisClient
	}
	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, logg, dbP, cacheP))
	})

	if gatherer != nil {
		r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Route("/api/v1/webhooks", func(r chi.Router) {
		r.With(middleware.ShopifyHMAC(cfg.Shopify.WebhookSecret, logg)).
			Post("/shopify", webhookcontrollers.ShopifyWebhook(webhookService, logg))
	})

	return r
}
