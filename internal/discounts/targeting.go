package discounts

import (
	"context"
	"errors"

	"github.com/promosynchq/promosync/pkg/db/models"
	"github.com/promosynchq/promosync/pkg/logger"
	"github.com/promosynchq/promosync/pkg/pacing"
	"github.com/promosynchq/promosync/pkg/shopify"
)

// UpstreamClient is the slice of the admin API this package needs. Satisfied
// by *shopify.Client; tests substitute stubs.
type UpstreamClient interface {
	GetDiscountNode(ctx context.Context, discountGID string) (*shopify.DiscountNode, error)
	ListDiscountNodes(ctx context.Context, cursor string, pageSize int) (*shopify.DiscountNodePage, error)
	ListProductIDs(ctx context.Context, cursor string, pageSize int) (*shopify.IDPage, error)
	ListCollectionProductIDs(ctx context.Context, collectionGID, cursor string, pageSize int) (*shopify.IDPage, error)
	GetProductMetafield(ctx context.Context, productGID, namespace, key string) (string, error)
	SetProductMetafield(ctx context.Context, productGID, namespace, key, value string) error
}

// ClientFactory builds a per-shop upstream client from the shop's stored
// credentials.
type ClientFactory interface {
	ClientFor(shop *models.Shop) (UpstreamClient, error)
}

// Targeting describes which products a discount applies to. NotFound marks
// a discount that resolved under no candidate identifier, which is distinct
// from a discount that resolves but targets nothing.
type Targeting struct {
	AppliesToAllProducts bool
	ProductIDs           []string
	CollectionIDs        []string
	NotFound             bool
}

// TargetingResolver probes the upstream discount union and expands targeting
// clauses into concrete product id sets.
type TargetingResolver struct {
	factory  ClientFactory
	logger   *logger.Logger
	pageSize int
	pageGate pacing.Gate
}

// TargetingResolverParams carries the resolver's dependencies.
type TargetingResolverParams struct {
	Factory  ClientFactory
	Logger   *logger.Logger
	PageSize int
	PageGate pacing.Gate
}

// NewTargetingResolver validates params and builds a resolver.
func NewTargetingResolver(params TargetingResolverParams) (*TargetingResolver, error) {
	if params.Factory == nil {
		return nil, errors.New("targeting resolver requires a client factory")
	}
	if params.Logger == nil {
		return nil, errors.New("targeting resolver requires a logger")
	}
	pageSize := params.PageSize
	if pageSize <= 0 {
		pageSize = 100
	}
	gate := params.PageGate
	if gate == nil {
		gate = pacing.None
	}
	return &TargetingResolver{
		factory:  params.Factory,
		logger:   params.Logger,
		pageSize: pageSize,
		pageGate: gate,
	}, nil
}

func appendUnique(dst []string, seen map[string]struct{}, ids ...string) []string {
	for _, id := range ids {
		if id == "" {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		dst = append(dst, id)
	}
	return dst
}

// GetDiscountTargeting iterates the identifier candidates until one resolves
// upstream. A product or collection named in either the customer-gets or the
// customer-buys clause counts as targeted. Per-candidate failures are
// swallowed so batch callers keep moving; total resolution failure is the
// NotFound sentinel, not an error.
func (r *TargetingResolver) GetDiscountTargeting(ctx context.Context, shop *models.Shop, discountID string) (Targeting, error) {
	client, err := r.factory.ClientFor(shop)
	if err != nil {
		return Targeting{}, err
	}

	lctx := r.logger.WithShop(r.logger.WithDiscountID(ctx, discountID), shop.Domain)

	for _, candidate := range DiscountIDCandidates(discountID) {
		node, err := client.GetDiscountNode(ctx, candidate)
		if err != nil {
			r.logger.Warn(r.logger.WithField(lctx, "candidate", candidate), "discount candidate lookup failed")
			continue
		}
		if node == nil {
			continue
		}

		targeting := Targeting{}
		productSeen := make(map[string]struct{})
		collectionSeen := make(map[string]struct{})
		for _, clause := range []*shopify.ItemTargeting{node.CustomerGets, node.CustomerBuys} {
			if clause == nil {
				continue
			}
			if clause.AllItems {
				targeting.AppliesToAllProducts = true
			}
			targeting.ProductIDs = appendUnique(targeting.ProductIDs, productSeen, clause.ProductIDs...)
			targeting.CollectionIDs = appendUnique(targeting.CollectionIDs, collectionSeen, clause.CollectionIDs...)
		}
		return targeting, nil
	}

	return Targeting{NotFound: true}, nil
}

// GetAffectedProducts resolves targeting and expands it to the concrete set
// of product GIDs: the whole catalog for all-items discounts, the explicit
// product list otherwise, or the union of collection members as a fallback.
func (r *TargetingResolver) GetAffectedProducts(ctx context.Context, shop *models.Shop, discountID string) ([]string, error) {
	targeting, err := r.GetDiscountTargeting(ctx, shop, discountID)
	if err != nil {
		return nil, err
	}
	return r.Expand(ctx, shop, targeting)
}

// Expand turns an already-resolved targeting into the concrete product set
// without re-probing the discount.
func (r *TargetingResolver) Expand(ctx context.Context, shop *models.Shop, targeting Targeting) ([]string, error) {
	if targeting.NotFound {
		return nil, nil
	}

	client, err := r.factory.ClientFor(shop)
	if err != nil {
		return nil, err
	}

	switch {
	case targeting.AppliesToAllProducts:
		return r.listAllProducts(ctx, client)
	case len(targeting.ProductIDs) > 0:
		return targeting.ProductIDs, nil
	case len(targeting.CollectionIDs) > 0:
		return r.expandCollections(ctx, client, targeting.CollectionIDs)
	default:
		return nil, nil
	}
}

func (r *TargetingResolver) listAllProducts(ctx context.Context, client UpstreamClient) ([]string, error) {
	var ids []string
	seen := make(map[string]struct{})
	cursor := ""
	for {
		if err := r.pageGate.Wait(ctx); err != nil {
			return nil, err
		}
		page, err := client.ListProductIDs(ctx, cursor, r.pageSize)
		if err != nil {
			return nil, err
		}
		ids = appendUnique(ids, seen, page.IDs...)
		if !page.HasNextPage {
			return ids, nil
		}
		cursor = page.EndCursor
	}
}

func (r *TargetingResolver) expandCollections(ctx context.Context, client UpstreamClient, collectionIDs []string) ([]string, error) {
	var ids []string
	seen := make(map[string]struct{})
	for _, collectionID := range collectionIDs {
		cursor := ""
		for {
			if err := r.pageGate.Wait(ctx); err != nil {
				return nil, err
			}
			page, err := client.ListCollectionProductIDs(ctx, collectionID, cursor, r.pageSize)
			if err != nil {
				return nil, err
			}
			ids = appendUnique(ids, seen, page.IDs...)
			if !page.HasNextPage {
				break
			}
			cursor = page.EndCursor
		}
	}
	return ids, nil
}
