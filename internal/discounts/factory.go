package discounts

import (
	"github.com/promosynchq/promosync/pkg/config"
	"github.com/promosynchq/promosync/pkg/db/models"
	pkgerrors "github.com/promosynchq/promosync/pkg/errors"
	"github.com/promosynchq/promosync/pkg/logger"
	"github.com/promosynchq/promosync/pkg/shopify"
)

// ShopClientFactory builds per-tenant upstream clients from the shop's
// stored access token.
type ShopClientFactory struct {
	cfg    config.ShopifyConfig
	logger *logger.Logger
}

func NewShopClientFactory(cfg config.ShopifyConfig, logg *logger.Logger) (*ShopClientFactory, error) {
	if logg == nil {
		return nil, pkgerrors.New(pkgerrors.CodeInternal, "logger is required")
	}
	return &ShopClientFactory{cfg: cfg, logger: logg}, nil
}

func (f *ShopClientFactory) ClientFor(shop *models.Shop) (UpstreamClient, error) {
	if shop == nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "shop is required")
	}
	if !shop.HasSession() {
		return nil, pkgerrors.New(pkgerrors.CodeUnauthorized, "shop has no upstream session")
	}
	return shopify.NewClient(shop.Domain, *shop.AccessToken, f.cfg, f.logger)
}
