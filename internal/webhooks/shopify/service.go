// Package shopify dispatches verified Shopify webhook events into the
// discount sync core. Product topics are acknowledged and left to the
// product-sync subsystem that owns the local mirror.
package shopify

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/promosynchq/promosync/internal/discounts"
	"github.com/promosynchq/promosync/pkg/db/models"
	pkgerrors "github.com/promosynchq/promosync/pkg/errors"
	"github.com/promosynchq/promosync/pkg/logger"
)

// Topics this service reacts to.
const (
	TopicDiscountsCreate = "discounts/create"
	TopicDiscountsUpdate = "discounts/update"
	TopicDiscountsDelete = "discounts/delete"
)

const dedupTTL = 24 * time.Hour

// Event is one verified webhook delivery.
type Event struct {
	ID         string
	Topic      string
	ShopDomain string
	Payload    json.RawMessage
}

type discountProcessor interface {
	ProcessCreate(ctx context.Context, shop *models.Shop, payload discounts.WebhookDiscountPayload) error
	ProcessUpdate(ctx context.Context, shop *models.Shop, payload discounts.WebhookDiscountPayload) error
	ProcessDelete(ctx context.Context, shop *models.Shop, payload discounts.WebhookDiscountPayload) error
}

type shopResolver interface {
	FindByDomain(ctx context.Context, domain string) (*models.Shop, error)
}

type deduper interface {
	SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error)
	WebhookDedupKey(eventID string) string
}

// Service routes webhook events to the right sync operation.
type Service struct {
	processor discountProcessor
	shops     shopResolver
	dedup     deduper
	logger    *logger.Logger
}

// Params carries the service dependencies. Dedup is optional; without it
// replayed deliveries are processed again (the operations are idempotent).
type Params struct {
	Processor discountProcessor
	Shops     shopResolver
	Dedup     deduper
	Logger    *logger.Logger
}

// NewService validates params and builds the dispatcher.
func NewService(params Params) (*Service, error) {
	if params.Processor == nil {
		return nil, errors.New("webhook service requires a discount processor")
	}
	if params.Shops == nil {
		return nil, errors.New("webhook service requires a shop resolver")
	}
	if params.Logger == nil {
		return nil, errors.New("webhook service requires a logger")
	}
	return &Service{
		processor: params.Processor,
		shops:     params.Shops,
		dedup:     params.Dedup,
		logger:    params.Logger,
	}, nil
}

func (s *Service) alreadySeen(ctx context.Context, event Event) bool {
	if s.dedup == nil || event.ID == "" {
		return false
	}
	fresh, err := s.dedup.SetNX(ctx, s.dedup.WebhookDedupKey(event.ID), event.Topic, dedupTTL)
	if err != nil {
		// Redis being down must not drop deliveries.
		s.logger.Warn(ctx, "webhook dedup check failed, processing anyway")
		return false
	}
	return !fresh
}

// Handle processes one delivery. Unknown topics and replays are
// acknowledged without work so the sender never retries them.
func (s *Service) Handle(ctx context.Context, event Event) error {
	lctx := s.logger.WithFields(ctx, map[string]any{
		"topic": event.Topic,
		"shop":  event.ShopDomain,
	})

	if s.alreadySeen(ctx, event) {
		s.logger.Info(lctx, "duplicate webhook delivery suppressed")
		return nil
	}

	topic := strings.ToLower(strings.TrimSpace(event.Topic))
	switch topic {
	case TopicDiscountsCreate, TopicDiscountsUpdate, TopicDiscountsDelete:
	default:
		s.logger.Info(lctx, "webhook topic ignored")
		return nil
	}

	shop, err := s.shops.FindByDomain(ctx, event.ShopDomain)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			s.logger.Warn(lctx, "webhook for unknown shop dropped")
			return nil
		}
		return err
	}

	var payload discounts.WebhookDiscountPayload
	if err := json.Unmarshal(event.Payload, &payload); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeValidation, err, "decode discount webhook payload")
	}
	if strings.TrimSpace(payload.AdminGraphqlAPIID) == "" {
		return pkgerrors.New(pkgerrors.CodeValidation, "discount webhook missing admin_graphql_api_id")
	}

	switch topic {
	case TopicDiscountsCreate:
		return s.processor.ProcessCreate(ctx, shop, payload)
	case TopicDiscountsUpdate:
		return s.processor.ProcessUpdate(ctx, shop, payload)
	default:
		return s.processor.ProcessDelete(ctx, shop, payload)
	}
}
