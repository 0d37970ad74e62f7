package webhooks

import (
	"context"
	"io"
	"net/http"

	"github.com/promosynchq/promosync/api/responses"
	shopifywebhook "github.com/promosynchq/promosync/internal/webhooks/shopify"
	pkgerrors "github.com/promosynchq/promosync/pkg/errors"
	"github.com/promosynchq/promosync/pkg/logger"
)

const (
	webhookIDHeader  = "X-Shopify-Webhook-Id"
	topicHeader      = "X-Shopify-Topic"
	shopDomainHeader = "X-Shopify-Shop-Domain"
)

type ShopifyWebhookService interface {
	Handle(ctx context.Context, event shopifywebhook.Event) error
}

// ShopifyWebhook accepts verified discount webhook deliveries and hands
// them to the dispatch service. Signature checking happens upstream in
// middleware.
func ShopifyWebhook(svc ShopifyWebhookService, logg *logger.Logger) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()

		if svc == nil {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeInternal, "webhook service unavailable"))
			return
		}

		shopDomain := r.Header.Get(shopDomainHeader)
		if shopDomain == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "shop domain header missing"))
			return
		}

		topic := r.Header.Get(topicHeader)
		if topic == "" {
			responses.WriteError(ctx, logg, w, pkgerrors.New(pkgerrors.CodeValidation, "topic header missing"))
			return
		}

		payload, err := io.ReadAll(r.Body)
		if err != nil {
			responses.WriteError(ctx, logg, w, pkgerrors.Wrap(pkgerrors.CodeDependency, err, "read request body"))
			return
		}

		event := shopifywebhook.Event{
			ID:         r.Header.Get(webhookIDHeader),
			Topic:      topic,
			ShopDomain: shopDomain,
			Payload:    payload,
		}

		if logg != nil {
			ctx = logg.WithShop(ctx, shopDomain)
			ctx = logg.WithFields(ctx, map[string]any{
				"topic":      topic,
				"webhook_id": event.ID,
			})
		}

		if err := svc.Handle(ctx, event); err != nil {
			responses.WriteError(ctx, logg, w, err)
			return
		}

		responses.WriteSuccess(w, nil)
	}
}
