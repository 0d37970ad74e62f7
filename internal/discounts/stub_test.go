package discounts

import (
	"context"
	"io"
	"sync"

	"github.com/google/uuid"

	"github.com/promosynchq/promosync/pkg/db/models"
	"github.com/promosynchq/promosync/pkg/logger"
	"github.com/promosynchq/promosync/pkg/shopify"
)

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test", Output: io.Discard})
}

func testShop() *models.Shop {
	token := "shpat_test"
	return &models.Shop{
		ID:          uuid.New(),
		Domain:      "demo.myshopify.com",
		AccessToken: &token,
		IsActive:    true,
	}
}

type setMetafieldCall struct {
	ProductGID string
	Namespace  string
	Key        string
	Value      string
}

// stubUpstream fakes the admin API surface. Zero value behaves like an
// empty shop.
type stubUpstream struct {
	mu sync.Mutex

	nodes        map[string]*shopify.DiscountNode
	nodeErrs     map[string]error
	nodeCalls    []string
	discountPage []*shopify.DiscountNodePage

	productPages    []*shopify.IDPage
	collectionPages map[string][]*shopify.IDPage

	metafields    map[string]string
	metafieldErr  error
	setErr        error
	setCalls      []setMetafieldCall
	getCalls      []string
	discountIndex int
	productIndex  int
	colIndex      map[string]int
}

func (s *stubUpstream) GetDiscountNode(ctx context.Context, gid string) (*shopify.DiscountNode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nodeCalls = append(s.nodeCalls, gid)
	if err, ok := s.nodeErrs[gid]; ok {
		return nil, err
	}
	return s.nodes[gid], nil
}

func (s *stubUpstream) ListDiscountNodes(ctx context.Context, cursor string, pageSize int) (*shopify.DiscountNodePage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.discountIndex >= len(s.discountPage) {
		return &shopify.DiscountNodePage{}, nil
	}
	page := s.discountPage[s.discountIndex]
	s.discountIndex++
	return page, nil
}

func (s *stubUpstream) ListProductIDs(ctx context.Context, cursor string, pageSize int) (*shopify.IDPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.productIndex >= len(s.productPages) {
		return &shopify.IDPage{}, nil
	}
	page := s.productPages[s.productIndex]
	s.productIndex++
	return page, nil
}

func (s *stubUpstream) ListCollectionProductIDs(ctx context.Context, collectionGID, cursor string, pageSize int) (*shopify.IDPage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.colIndex == nil {
		s.colIndex = make(map[string]int)
	}
	pages := s.collectionPages[collectionGID]
	idx := s.colIndex[collectionGID]
	if idx >= len(pages) {
		return &shopify.IDPage{}, nil
	}
	s.colIndex[collectionGID] = idx + 1
	return pages[idx], nil
}

func (s *stubUpstream) GetProductMetafield(ctx context.Context, productGID, namespace, key string) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.getCalls = append(s.getCalls, productGID)
	if s.metafieldErr != nil {
		return "", s.metafieldErr
	}
	return s.metafields[productGID], nil
}

func (s *stubUpstream) SetProductMetafield(ctx context.Context, productGID, namespace, key, value string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.setErr != nil {
		return s.setErr
	}
	s.setCalls = append(s.setCalls, setMetafieldCall{
		ProductGID: productGID,
		Namespace:  namespace,
		Key:        key,
		Value:      value,
	})
	if s.metafields == nil {
		s.metafields = make(map[string]string)
	}
	s.metafields[productGID] = value
	return nil
}

type stubFactory struct {
	client UpstreamClient
	err    error
}

func (f *stubFactory) ClientFor(shop *models.Shop) (UpstreamClient, error) {
	if f.err != nil {
		return nil, f.err
	}
	return f.client, nil
}
