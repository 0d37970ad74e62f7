package relationships

import (
	"context"
	"errors"

	"github.com/google/uuid"

	"github.com/promosynchq/promosync/pkg/db/models"
	pkgerrors "github.com/promosynchq/promosync/pkg/errors"
	"github.com/promosynchq/promosync/pkg/logger"
)

type linkStore interface {
	FindPair(ctx context.Context, productID, discountRuleID uuid.UUID) (*models.ProductDiscountLink, error)
	Create(ctx context.Context, link *models.ProductDiscountLink) error
	CreateBatch(ctx context.Context, links []models.ProductDiscountLink) error
	Delete(ctx context.Context, productID, discountRuleID uuid.UUID) error
	SetActive(ctx context.Context, linkID uuid.UUID, active bool) error
	ListByDiscount(ctx context.Context, discountRuleID uuid.UUID) ([]models.ProductDiscountLink, error)
	ListActiveByDiscount(ctx context.Context, discountRuleID uuid.UUID) ([]models.ProductDiscountLink, error)
	ListActiveByProduct(ctx context.Context, productID uuid.UUID) ([]models.ProductDiscountLink, error)
	CountActiveByDiscount(ctx context.Context, discountRuleID uuid.UUID) (int, error)
	ActiveCountsByDiscount(ctx context.Context, shopID uuid.UUID) (map[uuid.UUID]int, error)
	ActiveCountsByProduct(ctx context.Context, shopID uuid.UUID) (map[uuid.UUID]int, error)
}

type productStore interface {
	FindByShopifyIDs(ctx context.Context, shopID uuid.UUID, shopifyIDs []string) ([]models.Product, error)
	FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error)
}

type ruleCounter interface {
	UpdateProductsCount(ctx context.Context, ruleID uuid.UUID, count int) error
}

// Resyncer regenerates a product's discount annotation from local state.
// The sync core performs its own annotation writes and wires no resyncer;
// externally-driven single-pair mutations wire one so the link table and
// the upstream annotation cannot silently diverge.
type Resyncer interface {
	ResyncProduct(ctx context.Context, shop *models.Shop, productGID string) error
}

// BulkError records one pair that could not be reconciled.
type BulkError struct {
	ProductID string
	Err       error
}

// BulkResult tallies a bulk reconciliation pass.
type BulkResult struct {
	Created int
	Updated int
	Skipped int
	Errors  []BulkError
}

// Statistics summarizes the link table for one shop with no upstream calls.
type Statistics struct {
	ActiveLinks      int
	CountsByDiscount map[uuid.UUID]int
	CountsByProduct  map[uuid.UUID]int
}

// Service reconciles the link table against annotation state. Each
// (product, discount) pair is in one of three states: absent, active, or
// inactive.
type Service struct {
	links    linkStore
	products productStore
	rules    ruleCounter
	resync   Resyncer
	logger   *logger.Logger
}

// Params carries the service dependencies. Resync is optional.
type Params struct {
	Links    linkStore
	Products productStore
	Rules    ruleCounter
	Resync   Resyncer
	Logger   *logger.Logger
}

// NewService validates params and builds the reconciler.
func NewService(params Params) (*Service, error) {
	if params.Links == nil {
		return nil, errors.New("relationship service requires a link store")
	}
	if params.Products == nil {
		return nil, errors.New("relationship service requires a product store")
	}
	if params.Rules == nil {
		return nil, errors.New("relationship service requires a rule counter")
	}
	if params.Logger == nil {
		return nil, errors.New("relationship service requires a logger")
	}
	return &Service{
		links:    params.Links,
		products: params.Products,
		rules:    params.Rules,
		resync:   params.Resync,
		logger:   params.Logger,
	}, nil
}

func (s *Service) afterMutation(ctx context.Context, shop *models.Shop, discountRuleID uuid.UUID, productIDs []uuid.UUID) {
	count, err := s.links.CountActiveByDiscount(ctx, discountRuleID)
	if err == nil {
		err = s.rules.UpdateProductsCount(ctx, discountRuleID, count)
	}
	if err != nil {
		s.logger.Error(ctx, "refresh discount products count", err)
	}

	if s.resync == nil || len(productIDs) == 0 {
		return
	}
	products, err := s.products.FindByIDs(ctx, productIDs)
	if err != nil {
		s.logger.Error(ctx, "load products for annotation resync", err)
		return
	}
	for _, product := range products {
		if err := s.resync.ResyncProduct(ctx, shop, product.GID()); err != nil {
			lctx := s.logger.WithProductID(ctx, product.ShopifyID)
			s.logger.Error(lctx, "annotation resync failed", err)
		}
	}
}

// Create links one pair, rejecting pairs that are already active. An
// inactive row is reactivated in place so the uniqueness invariant holds.
func (s *Service) Create(ctx context.Context, shop *models.Shop, productID, discountRuleID uuid.UUID) error {
	existing, err := s.links.FindPair(ctx, productID, discountRuleID)
	if err != nil && !pkgerrors.IsNotFound(err) {
		return err
	}

	switch {
	case existing == nil:
		link := &models.ProductDiscountLink{
			ShopID:         shop.ID,
			ProductID:      productID,
			DiscountRuleID: discountRuleID,
			IsActive:       true,
		}
		if err := s.links.Create(ctx, link); err != nil {
			return err
		}
	case existing.IsActive:
		return pkgerrors.New(pkgerrors.CodeConflict, "relationship already active")
	default:
		if err := s.links.SetActive(ctx, existing.ID, true); err != nil {
			return err
		}
	}

	s.afterMutation(ctx, shop, discountRuleID, []uuid.UUID{productID})
	return nil
}

// Remove hard-deletes one pair's row regardless of its active state.
func (s *Service) Remove(ctx context.Context, shop *models.Shop, productID, discountRuleID uuid.UUID) error {
	if _, err := s.links.FindPair(ctx, productID, discountRuleID); err != nil {
		return err
	}
	if err := s.links.Delete(ctx, productID, discountRuleID); err != nil {
		return err
	}
	s.afterMutation(ctx, shop, discountRuleID, []uuid.UUID{productID})
	return nil
}

// Toggle flips one pair: active rows are removed, absent pairs are created,
// inactive rows are reactivated.
func (s *Service) Toggle(ctx context.Context, shop *models.Shop, productID, discountRuleID uuid.UUID) error {
	existing, err := s.links.FindPair(ctx, productID, discountRuleID)
	if err != nil && !pkgerrors.IsNotFound(err) {
		return err
	}

	switch {
	case existing == nil:
		link := &models.ProductDiscountLink{
			ShopID:         shop.ID,
			ProductID:      productID,
			DiscountRuleID: discountRuleID,
			IsActive:       true,
		}
		if err := s.links.Create(ctx, link); err != nil {
			return err
		}
	case existing.IsActive:
		if err := s.links.Delete(ctx, productID, discountRuleID); err != nil {
			return err
		}
	default:
		if err := s.links.SetActive(ctx, existing.ID, true); err != nil {
			return err
		}
	}

	s.afterMutation(ctx, shop, discountRuleID, []uuid.UUID{productID})
	return nil
}

// CreateBulk reconciles a discount's link rows against the affected product
// set with upsert-reactivate semantics: absent pairs are inserted (after
// checking the product exists in the local mirror), inactive rows are
// reactivated, active rows are skipped. Individual bad pairs are tallied,
// never thrown.
func (s *Service) CreateBulk(ctx context.Context, shop *models.Shop, rule *models.DiscountRule, productShopifyIDs []string) BulkResult {
	result := BulkResult{}
	if rule == nil {
		result.Errors = append(result.Errors, BulkError{Err: pkgerrors.New(pkgerrors.CodeValidation, "nil discount rule")})
		return result
	}

	mirror, err := s.products.FindByShopifyIDs(ctx, shop.ID, productShopifyIDs)
	if err != nil {
		for _, id := range productShopifyIDs {
			result.Errors = append(result.Errors, BulkError{ProductID: id, Err: err})
		}
		return result
	}
	byShopifyID := make(map[string]models.Product, len(mirror))
	for _, product := range mirror {
		byShopifyID[product.ShopifyID] = product
	}

	var staged []models.ProductDiscountLink
	var touched []uuid.UUID
	for _, rawID := range productShopifyIDs {
		product, ok := byShopifyID[normalizeMirrorID(rawID)]
		if !ok {
			result.Errors = append(result.Errors, BulkError{
				ProductID: rawID,
				Err:       pkgerrors.New(pkgerrors.CodeNotFound, "product not in local mirror"),
			})
			continue
		}

		existing, err := s.links.FindPair(ctx, product.ID, rule.ID)
		if err != nil && !pkgerrors.IsNotFound(err) {
			result.Errors = append(result.Errors, BulkError{ProductID: rawID, Err: err})
			continue
		}

		switch {
		case existing == nil:
			staged = append(staged, models.ProductDiscountLink{
				ShopID:         shop.ID,
				ProductID:      product.ID,
				DiscountRuleID: rule.ID,
				IsActive:       true,
			})
			result.Created++
		case existing.IsActive:
			result.Skipped++
		default:
			if err := s.links.SetActive(ctx, existing.ID, true); err != nil {
				result.Errors = append(result.Errors, BulkError{ProductID: rawID, Err: err})
				continue
			}
			touched = append(touched, product.ID)
			result.Updated++
		}
	}

	// Staged IDs join touched only after the insert lands, so the resync
	// hook never fires for pairs that were never written.
	if len(staged) > 0 {
		if err := s.links.CreateBatch(ctx, staged); err != nil {
			result.Created = 0
			for range staged {
				result.Errors = append(result.Errors, BulkError{Err: err})
			}
		} else {
			for _, link := range staged {
				touched = append(touched, link.ProductID)
			}
		}
	}

	s.afterMutation(ctx, shop, rule.ID, touched)
	return result
}

// DeactivateBulk marks the given pairs inactive. Missing pairs are skipped,
// not errors.
func (s *Service) DeactivateBulk(ctx context.Context, shop *models.Shop, rule *models.DiscountRule, productIDs []uuid.UUID) BulkResult {
	result := BulkResult{}
	if rule == nil {
		result.Errors = append(result.Errors, BulkError{Err: pkgerrors.New(pkgerrors.CodeValidation, "nil discount rule")})
		return result
	}

	var touched []uuid.UUID
	for _, productID := range productIDs {
		existing, err := s.links.FindPair(ctx, productID, rule.ID)
		if err != nil {
			if pkgerrors.IsNotFound(err) {
				result.Skipped++
				continue
			}
			result.Errors = append(result.Errors, BulkError{ProductID: productID.String(), Err: err})
			continue
		}
		if !existing.IsActive {
			result.Skipped++
			continue
		}
		if err := s.links.SetActive(ctx, existing.ID, false); err != nil {
			result.Errors = append(result.Errors, BulkError{ProductID: productID.String(), Err: err})
			continue
		}
		touched = append(touched, productID)
		result.Updated++
	}

	s.afterMutation(ctx, shop, rule.ID, touched)
	return result
}

// ActiveLinks lists the active rows for one discount rule.
func (s *Service) ActiveLinks(ctx context.Context, discountRuleID uuid.UUID) ([]models.ProductDiscountLink, error) {
	return s.links.ListActiveByDiscount(ctx, discountRuleID)
}

// Links lists every row for one discount rule, active or not.
func (s *Service) Links(ctx context.Context, discountRuleID uuid.UUID) ([]models.ProductDiscountLink, error) {
	return s.links.ListByDiscount(ctx, discountRuleID)
}

// ActiveLinksForProduct lists the active rows carrying annotations on one
// product.
func (s *Service) ActiveLinksForProduct(ctx context.Context, productID uuid.UUID) ([]models.ProductDiscountLink, error) {
	return s.links.ListActiveByProduct(ctx, productID)
}

// ProductsFor loads the mirror rows behind a set of link rows.
func (s *Service) ProductsFor(ctx context.Context, links []models.ProductDiscountLink) ([]models.Product, error) {
	ids := make([]uuid.UUID, 0, len(links))
	for _, link := range links {
		ids = append(ids, link.ProductID)
	}
	return s.products.FindByIDs(ctx, ids)
}

// Statistics derives per-shop link counts purely from the table.
func (s *Service) Statistics(ctx context.Context, shop *models.Shop) (Statistics, error) {
	byDiscount, err := s.links.ActiveCountsByDiscount(ctx, shop.ID)
	if err != nil {
		return Statistics{}, err
	}
	byProduct, err := s.links.ActiveCountsByProduct(ctx, shop.ID)
	if err != nil {
		return Statistics{}, err
	}
	total := 0
	for _, count := range byDiscount {
		total += count
	}
	return Statistics{
		ActiveLinks:      total,
		CountsByDiscount: byDiscount,
		CountsByProduct:  byProduct,
	}, nil
}

func normalizeMirrorID(raw string) string {
	for i := len(raw) - 1; i >= 0; i-- {
		if raw[i] == '/' {
			return raw[i+1:]
		}
	}
	return raw
}
