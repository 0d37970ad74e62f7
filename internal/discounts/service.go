package discounts

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/promosynchq/promosync/internal/relationships"
	"github.com/promosynchq/promosync/pkg/db/models"
	"github.com/promosynchq/promosync/pkg/enums"
	pkgerrors "github.com/promosynchq/promosync/pkg/errors"
	"github.com/promosynchq/promosync/pkg/logger"
	"github.com/promosynchq/promosync/pkg/metrics"
	"github.com/promosynchq/promosync/pkg/pacing"
	"github.com/promosynchq/promosync/pkg/shopify"
)

type ruleStore interface {
	Upsert(ctx context.Context, rule *models.DiscountRule) error
	FindByDiscountID(ctx context.Context, shopID uuid.UUID, discountID string) (*models.DiscountRule, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.DiscountRule, error)
	FindExpired(ctx context.Context, now time.Time) ([]models.DiscountRule, error)
	Deactivate(ctx context.Context, ruleID uuid.UUID, status enums.DiscountStatus) error
	TouchLastRan(ctx context.Context, ruleID uuid.UUID, at time.Time) error
	KnownDiscountIDs(ctx context.Context, shopID uuid.UUID) (map[string]struct{}, error)
}

type shopStore interface {
	FindByID(ctx context.Context, id uuid.UUID) (*models.Shop, error)
	MarkInitialized(ctx context.Context, id uuid.UUID) error
}

type mirrorStore interface {
	FindByShopifyIDs(ctx context.Context, shopID uuid.UUID, shopifyIDs []string) ([]models.Product, error)
}

type targetingAPI interface {
	GetDiscountTargeting(ctx context.Context, shop *models.Shop, discountID string) (Targeting, error)
	Expand(ctx context.Context, shop *models.Shop, targeting Targeting) ([]string, error)
}

type annotationAPI interface {
	UpdateProductMetafield(ctx context.Context, shop *models.Shop, productGID string, data ExtractedDiscountData) error
	RemoveDiscountFromProduct(ctx context.Context, shop *models.Shop, productGID, discountID string) error
}

type batchRunner interface {
	Run(ctx context.Context, productGIDs []string, op BatchOperation) BatchResult
}

type linkReconciler interface {
	CreateBulk(ctx context.Context, shop *models.Shop, rule *models.DiscountRule, productShopifyIDs []string) relationships.BulkResult
	DeactivateBulk(ctx context.Context, shop *models.Shop, rule *models.DiscountRule, productIDs []uuid.UUID) relationships.BulkResult
	Links(ctx context.Context, discountRuleID uuid.UUID) ([]models.ProductDiscountLink, error)
	ActiveLinks(ctx context.Context, discountRuleID uuid.UUID) ([]models.ProductDiscountLink, error)
	ActiveLinksForProduct(ctx context.Context, productID uuid.UUID) ([]models.ProductDiscountLink, error)
	ProductsFor(ctx context.Context, links []models.ProductDiscountLink) ([]models.Product, error)
}

// SyncSummary aggregates a multi-discount pass.
type SyncSummary struct {
	TotalFound int
	Processed  int
	Skipped    int
	Errors     int
}

// Service orchestrates discount sync: webhook-driven single-discount
// updates, the scheduled expiry sweep, and whole-shop backfills.
type Service struct {
	factory     ClientFactory
	targeting   targetingAPI
	annotations annotationAPI
	batch       batchRunner
	rules       ruleStore
	shops       shopStore
	mirror      mirrorStore
	reconciler  linkReconciler
	logger      *logger.Logger
	metrics     *metrics.SyncMetrics
	now         func() time.Time
	pageGate    pacing.Gate
	itemGate    pacing.Gate
	pageSize    int
}

// ServiceParams carries the orchestrator dependencies. Metrics, clock, and
// gates are optional.
type ServiceParams struct {
	Factory     ClientFactory
	Targeting   targetingAPI
	Annotations annotationAPI
	Batch       batchRunner
	Rules       ruleStore
	Shops       shopStore
	Mirror      mirrorStore
	Reconciler  linkReconciler
	Logger      *logger.Logger
	Metrics     *metrics.SyncMetrics
	Now         func() time.Time
	PageGate    pacing.Gate
	ItemGate    pacing.Gate
	PageSize    int
}

// NewService validates params and builds the orchestrator.
func NewService(params ServiceParams) (*Service, error) {
	if params.Factory == nil {
		return nil, errors.New("discount service requires a client factory")
	}
	if params.Targeting == nil {
		return nil, errors.New("discount service requires a targeting resolver")
	}
	if params.Annotations == nil {
		return nil, errors.New("discount service requires an annotation merger")
	}
	if params.Batch == nil {
		return nil, errors.New("discount service requires a batch executor")
	}
	if params.Rules == nil {
		return nil, errors.New("discount service requires a rule store")
	}
	if params.Shops == nil {
		return nil, errors.New("discount service requires a shop store")
	}
	if params.Mirror == nil {
		return nil, errors.New("discount service requires a product mirror")
	}
	if params.Reconciler == nil {
		return nil, errors.New("discount service requires a relationship reconciler")
	}
	if params.Logger == nil {
		return nil, errors.New("discount service requires a logger")
	}

	now := params.Now
	if now == nil {
		now = time.Now
	}
	pageGate := params.PageGate
	if pageGate == nil {
		pageGate = pacing.None
	}
	itemGate := params.ItemGate
	if itemGate == nil {
		itemGate = pacing.None
	}
	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}

	return &Service{
		factory:     params.Factory,
		targeting:   params.Targeting,
		annotations: params.Annotations,
		batch:       params.Batch,
		rules:       params.Rules,
		shops:       params.Shops,
		mirror:      params.Mirror,
		reconciler:  params.Reconciler,
		logger:      params.Logger,
		metrics:     params.Metrics,
		now:         now,
		pageGate:    pageGate,
		itemGate:    itemGate,
		pageSize:    pageSize,
	}, nil
}

// fetchDetail queries the upstream discount union for the full object.
// Failures and misses return nil so callers can fall back to the webhook
// payload.
func (s *Service) fetchDetail(ctx context.Context, shop *models.Shop, discountID string) *shopify.DiscountNode {
	client, err := s.factory.ClientFor(shop)
	if err != nil {
		s.logger.Warn(s.logger.WithShop(ctx, shop.Domain), "no upstream client for detail fetch")
		return nil
	}
	for _, candidate := range DiscountIDCandidates(discountID) {
		node, err := client.GetDiscountNode(ctx, candidate)
		if err != nil {
			continue
		}
		if node != nil {
			return node
		}
	}
	return nil
}

// persistRule upserts the rule row and reloads it so the caller holds the
// persisted primary key.
func (s *Service) persistRule(ctx context.Context, shop *models.Shop, data ExtractedDiscountData, collectionIDs []string, active bool) (*models.DiscountRule, error) {
	rule := &models.DiscountRule{
		ShopID:        shop.ID,
		DiscountID:    data.ID,
		DiscountType:  data.Type,
		Title:         data.Title,
		Code:          data.Code,
		Status:        data.Status,
		IsActive:      active,
		StartsAt:      data.StartsAt,
		EndsAt:        data.EndsAt,
		Value:         data.ValueJSON(),
		CollectionIDs: pq.StringArray(collectionIDs),
	}
	if err := s.rules.Upsert(ctx, rule); err != nil {
		return nil, err
	}
	return s.rules.FindByDiscountID(ctx, shop.ID, data.ID)
}

// applyActiveDiscount runs the create-path product work for one active
// discount: annotation merge across the affected set, then link
// reconciliation. When the discount already has link rows those are
// reactivated instead of recomputing the affected set, which covers the
// common active/inactive toggle where targeting did not change.
func (s *Service) applyActiveDiscount(ctx context.Context, shop *models.Shop, data ExtractedDiscountData, targeting Targeting, operation string) error {
	rule, err := s.persistRule(ctx, shop, data, targeting.CollectionIDs, true)
	if err != nil {
		return err
	}

	affected, err := s.targeting.Expand(ctx, shop, targeting)
	if err != nil {
		return err
	}

	result := s.batch.Run(ctx, affected, func(ctx context.Context, productGID string) error {
		return s.annotations.UpdateProductMetafield(ctx, shop, productGID, data)
	})
	s.metrics.AddProductsSynced(operation, result.SuccessCount)
	s.metrics.AddProductFailures(operation, result.FailureCount)

	prior, err := s.reconciler.Links(ctx, rule.ID)
	if err != nil {
		return err
	}
	if len(prior) == 0 {
		s.reportLinkFailures(ctx, operation, s.reconciler.CreateBulk(ctx, shop, rule, affected))
	} else {
		products, err := s.reconciler.ProductsFor(ctx, prior)
		if err != nil {
			return err
		}
		gids := make([]string, 0, len(products))
		for _, product := range products {
			gids = append(gids, product.GID())
		}
		s.reportLinkFailures(ctx, operation, s.reconciler.CreateBulk(ctx, shop, rule, gids))
	}

	if err := s.rules.TouchLastRan(ctx, rule.ID, s.now()); err != nil {
		s.logger.Error(ctx, "touch discount last_ran", err)
	}
	return nil
}

// reportLinkFailures logs each per-pair reconciliation failure and counts
// the batch toward the operation's failure metric. Returns the number of
// failed pairs.
func (s *Service) reportLinkFailures(ctx context.Context, operation string, result relationships.BulkResult) int {
	for _, failure := range result.Errors {
		lctx := s.logger.WithField(ctx, "operation", operation)
		if failure.ProductID != "" {
			lctx = s.logger.WithProductID(lctx, failure.ProductID)
		}
		s.logger.Error(lctx, "link reconciliation failed", failure.Err)
	}
	if len(result.Errors) > 0 {
		s.metrics.AddProductFailures(operation, len(result.Errors))
	}
	return len(result.Errors)
}

func (s *Service) processUpsert(ctx context.Context, shop *models.Shop, payload WebhookDiscountPayload, operation string) error {
	data := ExtractFromWebhook(payload)
	lctx := s.logger.WithShop(s.logger.WithDiscountID(ctx, data.ID), shop.Domain)

	if node := s.fetchDetail(ctx, shop, data.GID); node != nil {
		data = ExtractFromNode(node)
	} else {
		s.logger.Warn(lctx, "detail fetch failed, using webhook payload")
	}

	if !data.IsActive() {
		_, err := s.persistRule(ctx, shop, data, nil, false)
		if err == nil {
			s.logger.Info(s.logger.WithField(lctx, "status", data.Status.String()), "discount persisted inactive")
		}
		return err
	}

	targeting, err := s.targeting.GetDiscountTargeting(ctx, shop, data.ID)
	if err != nil {
		return err
	}
	if targeting.NotFound {
		// The detail resolved moments ago; treat a vanished discount as an
		// empty product set rather than failing the webhook.
		s.logger.Warn(lctx, "discount vanished between fetch and targeting")
		targeting = Targeting{}
	}

	return s.applyActiveDiscount(ctx, shop, data, targeting, operation)
}

// ProcessCreate handles a discounts/create event.
func (s *Service) ProcessCreate(ctx context.Context, shop *models.Shop, payload WebhookDiscountPayload) error {
	return s.processUpsert(ctx, shop, payload, "create")
}

// ProcessUpdate handles a discounts/update event.
func (s *Service) ProcessUpdate(ctx context.Context, shop *models.Shop, payload WebhookDiscountPayload) error {
	return s.processUpsert(ctx, shop, payload, "update")
}

// retireRule transitions a rule to a terminal status and scrubs its
// annotation from exactly the products holding active links. The catalog is
// never scanned speculatively. Returns the number of link pairs that failed
// to deactivate so callers can count them as errored work.
func (s *Service) retireRule(ctx context.Context, shop *models.Shop, rule *models.DiscountRule, status enums.DiscountStatus, operation string) (int, error) {
	if err := s.rules.Deactivate(ctx, rule.ID, status); err != nil {
		return 0, err
	}

	links, err := s.reconciler.ActiveLinks(ctx, rule.ID)
	if err != nil {
		return 0, err
	}
	if len(links) == 0 {
		return 0, nil
	}

	products, err := s.reconciler.ProductsFor(ctx, links)
	if err != nil {
		return 0, err
	}
	gids := make([]string, 0, len(products))
	for _, product := range products {
		gids = append(gids, product.GID())
	}

	result := s.batch.Run(ctx, gids, func(ctx context.Context, productGID string) error {
		return s.annotations.RemoveDiscountFromProduct(ctx, shop, productGID, rule.DiscountID)
	})
	s.metrics.AddProductsSynced(operation, result.SuccessCount)
	s.metrics.AddProductFailures(operation, result.FailureCount)

	productIDs := make([]uuid.UUID, 0, len(links))
	for _, link := range links {
		productIDs = append(productIDs, link.ProductID)
	}
	failed := s.reportLinkFailures(ctx, operation, s.reconciler.DeactivateBulk(ctx, shop, rule, productIDs))
	return failed, nil
}

// ProcessDelete handles a discounts/delete event. An unknown discount is a
// no-op, not an error.
func (s *Service) ProcessDelete(ctx context.Context, shop *models.Shop, payload WebhookDiscountPayload) error {
	data := ExtractFromWebhook(payload)
	rule, err := s.rules.FindByDiscountID(ctx, shop.ID, data.ID)
	if err != nil {
		if pkgerrors.IsNotFound(err) {
			return nil
		}
		return err
	}
	_, err = s.retireRule(ctx, shop, rule, enums.DiscountStatusDeleted, "delete")
	return err
}

// SweepExpired retires every active rule whose end date has passed,
// processed per shop so one tenant's failure or missing credentials cannot
// block another's sweep. Shops without a valid upstream session get their
// rules deactivated locally with the annotation cleanup skipped and logged
// as a gap.
func (s *Service) SweepExpired(ctx context.Context) (SyncSummary, error) {
	summary := SyncSummary{}

	expired, err := s.rules.FindExpired(ctx, s.now())
	if err != nil {
		return summary, err
	}
	summary.TotalFound = len(expired)
	if len(expired) == 0 {
		return summary, nil
	}

	order := make([]uuid.UUID, 0)
	grouped := make(map[uuid.UUID][]models.DiscountRule)
	for _, rule := range expired {
		if _, ok := grouped[rule.ShopID]; !ok {
			order = append(order, rule.ShopID)
		}
		grouped[rule.ShopID] = append(grouped[rule.ShopID], rule)
	}

	for _, shopID := range order {
		rules := grouped[shopID]

		shop, err := s.shops.FindByID(ctx, shopID)
		if err != nil && !pkgerrors.IsNotFound(err) {
			s.logger.Error(s.logger.WithField(ctx, "shop_id", shopID.String()), "load shop for sweep", err)
			summary.Errors += len(rules)
			continue
		}
		if err != nil || !shop.HasSession() {
			for _, rule := range rules {
				lctx := s.logger.WithDiscountID(ctx, rule.DiscountID)
				if err := s.rules.Deactivate(ctx, rule.ID, enums.DiscountStatusExpired); err != nil {
					s.logger.Error(lctx, "deactivate expired discount", err)
					summary.Errors++
					continue
				}
				s.metrics.IncUpstreamCleanupSkipped()
				s.logger.Warn(lctx, "no upstream session, annotation cleanup skipped")
				summary.Skipped++
			}
			continue
		}

		lctx := s.logger.WithShop(ctx, shop.Domain)
		for _, rule := range rules {
			rule := rule
			linkFailures, err := s.retireRule(ctx, shop, &rule, enums.DiscountStatusExpired, "sweep")
			if err != nil {
				s.logger.Error(s.logger.WithDiscountID(lctx, rule.DiscountID), "sweep discount failed", err)
				summary.Errors++
				continue
			}
			summary.Errors += linkFailures
			s.metrics.IncDiscountsSwept()
			summary.Processed++
		}
	}

	return summary, nil
}

// InitializeAll backfills a shop's discounts from the upstream list. Known
// and non-active discounts are skipped; targeting resolution doubles as a
// validation gate so unresolvable discounts never reach persistence.
func (s *Service) InitializeAll(ctx context.Context, shop *models.Shop) (SyncSummary, error) {
	summary := SyncSummary{}

	known, err := s.rules.KnownDiscountIDs(ctx, shop.ID)
	if err != nil {
		return summary, err
	}
	client, err := s.factory.ClientFor(shop)
	if err != nil {
		return summary, err
	}

	lctx := s.logger.WithShop(ctx, shop.Domain)
	cursor := ""
	for {
		if err := s.pageGate.Wait(ctx); err != nil {
			return summary, err
		}
		page, err := client.ListDiscountNodes(ctx, cursor, s.pageSize)
		if err != nil {
			return summary, err
		}

		for i := range page.Nodes {
			summary.TotalFound++
			if err := s.itemGate.Wait(ctx); err != nil {
				return summary, err
			}

			data := ExtractFromNode(&page.Nodes[i])
			dctx := s.logger.WithDiscountID(lctx, data.ID)

			if _, ok := known[data.ID]; ok {
				summary.Skipped++
				continue
			}
			if !data.IsActive() {
				summary.Skipped++
				continue
			}

			targeting, err := s.targeting.GetDiscountTargeting(ctx, shop, data.ID)
			if err != nil {
				s.logger.Error(dctx, "targeting resolution failed", err)
				summary.Errors++
				continue
			}
			if targeting.NotFound {
				s.logger.Warn(dctx, "discount unresolvable, skipping backfill")
				summary.Skipped++
				continue
			}

			if err := s.applyActiveDiscount(ctx, shop, data, targeting, "initialize"); err != nil {
				s.logger.Error(dctx, "backfill discount failed", err)
				summary.Errors++
				continue
			}
			summary.Processed++
		}

		if !page.HasNextPage {
			break
		}
		cursor = page.EndCursor
	}

	if err := s.shops.MarkInitialized(ctx, shop.ID); err != nil {
		return summary, err
	}
	return summary, nil
}

// ResyncProduct regenerates one product's annotation purely from local
// state: the active link rows and their rule records. Satisfies the
// reconciler's resync hook.
func (s *Service) ResyncProduct(ctx context.Context, shop *models.Shop, productGID string) error {
	mirrored, err := s.mirror.FindByShopifyIDs(ctx, shop.ID, []string{productGID})
	if err != nil {
		return err
	}
	if len(mirrored) == 0 {
		return pkgerrors.New(pkgerrors.CodeNotFound, "product not in local mirror")
	}
	product := mirrored[0]

	links, err := s.reconciler.ActiveLinksForProduct(ctx, product.ID)
	if err != nil {
		return err
	}
	ruleIDs := make([]uuid.UUID, 0, len(links))
	for _, link := range links {
		ruleIDs = append(ruleIDs, link.DiscountRuleID)
	}
	rules, err := s.rules.FindByIDs(ctx, ruleIDs)
	if err != nil {
		return err
	}

	entries := make([]MetafieldDiscountEntry, 0, len(rules))
	for _, rule := range rules {
		var value DiscountValue
		if err := json.Unmarshal([]byte(rule.Value), &value); err != nil {
			value = DiscountValue{Kind: enums.DiscountValueUnknown}
		}
		entries = append(entries, MetafieldDiscountEntry{
			ID:        rule.DiscountID,
			Title:     rule.Title,
			Code:      rule.Code,
			ValueKind: value.Kind.String(),
			Value:     value.Display,
			EndsAt:    rule.EndsAt,
		})
	}

	payload, err := encodeEntries(entries)
	if err != nil {
		return err
	}
	client, err := s.factory.ClientFor(shop)
	if err != nil {
		return err
	}
	if err := client.SetProductMetafield(ctx, product.GID(), MetafieldNamespace, MetafieldKey, payload); err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeDependency, err, "write discount annotation")
	}
	return nil
}
