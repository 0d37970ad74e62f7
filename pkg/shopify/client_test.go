package shopify

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/promosynchq/promosync/pkg/config"
	"github.com/promosynchq/promosync/pkg/enums"
	pkgerrors "github.com/promosynchq/promosync/pkg/errors"
)

func testConfig() config.ShopifyConfig {
	return config.ShopifyConfig{
		APIVersion:  "2024-10",
		HTTPTimeout: 5 * time.Second,
	}
}

func newTestClient(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)

	client, err := NewClient("demo.myshopify.com", "shpat_test", testConfig(), nil, WithBaseURL(server.URL))
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return client, server
}

func respond(t *testing.T, w http.ResponseWriter, data string) {
	t.Helper()
	w.Header().Set("Content-Type", "application/json")
	if _, err := w.Write([]byte(`{"data":` + data + `}`)); err != nil {
		t.Fatalf("write response: %v", err)
	}
}

func TestNewClientValidation(t *testing.T) {
	if _, err := NewClient("", "token", testConfig(), nil); err == nil {
		t.Fatal("expected error for empty domain")
	}
	if _, err := NewClient("demo.myshopify.com", "  ", testConfig(), nil); err == nil {
		t.Fatal("expected error for empty token")
	}
}

func TestGetDiscountNodeDecodesCodeBasic(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Shopify-Access-Token"); got != "shpat_test" {
			t.Errorf("access token header = %q", got)
		}
		var req graphqlRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Variables["id"] != "gid://shopify/DiscountCodeNode/123" {
			t.Errorf("id variable = %v", req.Variables["id"])
		}
		respond(t, w, `{
			"discountNode": {
				"id": "gid://shopify/DiscountCodeNode/123",
				"discount": {
					"__typename": "DiscountCodeBasic",
					"title": "Summer Sale",
					"status": "ACTIVE",
					"endsAt": "2026-10-01T00:00:00Z",
					"codes": {"nodes": [{"code": "SUMMER20"}]},
					"customerGets": {
						"value": {"__typename": "DiscountPercentage", "percentage": 0.2},
						"items": {
							"__typename": "DiscountProducts",
							"products": {"nodes": [{"id": "gid://shopify/Product/1"}, {"id": "gid://shopify/Product/2"}]}
						}
					}
				}
			}
		}`)
	})

	node, err := client.GetDiscountNode(context.Background(), "gid://shopify/DiscountCodeNode/123")
	if err != nil {
		t.Fatalf("GetDiscountNode: %v", err)
	}
	if node == nil {
		t.Fatal("expected a node")
	}
	if node.Automatic {
		t.Error("code discount reported as automatic")
	}
	if node.Code != "SUMMER20" {
		t.Errorf("code = %q", node.Code)
	}
	if node.Value.Kind != enums.DiscountValuePercentage || node.Value.Percentage != 0.2 {
		t.Errorf("value = %+v", node.Value)
	}
	if node.EndsAt == nil {
		t.Error("endsAt not decoded")
	}
	if got := len(node.CustomerGets.ProductIDs); got != 2 {
		t.Errorf("product targeting count = %d", got)
	}
}

func TestGetDiscountNodeDecodesAutomaticBxgy(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		respond(t, w, `{
			"discountNode": {
				"id": "gid://shopify/DiscountAutomaticNode/77",
				"discount": {
					"__typename": "DiscountAutomaticBxgy",
					"title": "Buy One Get One",
					"status": "ACTIVE",
					"customerGets": {
						"items": {"__typename": "AllDiscountItems", "allItems": true}
					},
					"customerBuys": {
						"items": {
							"__typename": "DiscountCollections",
							"collections": {"nodes": [{"id": "gid://shopify/Collection/9"}]}
						}
					}
				}
			}
		}`)
	})

	node, err := client.GetDiscountNode(context.Background(), "gid://shopify/DiscountAutomaticNode/77")
	if err != nil {
		t.Fatalf("GetDiscountNode: %v", err)
	}
	if !node.Automatic {
		t.Error("automatic discount not flagged")
	}
	if node.Value.Kind != enums.DiscountValueBXGY {
		t.Errorf("value kind = %s", node.Value.Kind)
	}
	if !node.CustomerGets.AllItems {
		t.Error("customerGets should target all items")
	}
	if len(node.CustomerBuys.CollectionIDs) != 1 {
		t.Errorf("customerBuys collections = %v", node.CustomerBuys.CollectionIDs)
	}
}

func TestGetDiscountNodeMissingReturnsNil(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		respond(t, w, `{"discountNode": null}`)
	})

	node, err := client.GetDiscountNode(context.Background(), "gid://shopify/DiscountNode/404")
	if err != nil {
		t.Fatalf("GetDiscountNode: %v", err)
	}
	if node != nil {
		t.Fatalf("expected nil node, got %+v", node)
	}
}

func TestListDiscountNodesPaging(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		var req graphqlRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			t.Fatalf("decode request: %v", err)
		}
		if req.Variables["after"] != "cursor-1" {
			t.Errorf("after variable = %v", req.Variables["after"])
		}
		respond(t, w, `{
			"discountNodes": {
				"nodes": [
					{"id": "gid://shopify/DiscountAutomaticNode/1", "discount": {"__typename": "DiscountAutomaticBasic", "title": "A", "status": "ACTIVE"}},
					{"id": "gid://shopify/DiscountCodeNode/2", "discount": {"__typename": "DiscountCodeBasic", "title": "B", "status": "EXPIRED"}}
				],
				"pageInfo": {"hasNextPage": true, "endCursor": "cursor-2"}
			}
		}`)
	})

	page, err := client.ListDiscountNodes(context.Background(), "cursor-1", 50)
	if err != nil {
		t.Fatalf("ListDiscountNodes: %v", err)
	}
	if len(page.Nodes) != 2 {
		t.Fatalf("nodes = %d", len(page.Nodes))
	}
	if !page.HasNextPage || page.EndCursor != "cursor-2" {
		t.Errorf("page info = %+v", page)
	}
}

func TestListCollectionProductIDsMissingCollection(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		respond(t, w, `{"collection": null}`)
	})

	page, err := client.ListCollectionProductIDs(context.Background(), "gid://shopify/Collection/404", "", 0)
	if err != nil {
		t.Fatalf("ListCollectionProductIDs: %v", err)
	}
	if len(page.IDs) != 0 || page.HasNextPage {
		t.Errorf("expected empty final page, got %+v", page)
	}
}

func TestSetProductMetafieldUserError(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		respond(t, w, `{
			"metafieldsSet": {
				"metafields": [],
				"userErrors": [{"field": ["value"], "message": "Value is invalid JSON"}]
			}
		}`)
	})

	err := client.SetProductMetafield(context.Background(), "gid://shopify/Product/1", "promosync", "active_discounts", "{")
	if err == nil {
		t.Fatal("expected user error")
	}
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestGetProductMetafieldMissingValue(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		respond(t, w, `{"product": {"metafield": null}}`)
	})

	value, err := client.GetProductMetafield(context.Background(), "gid://shopify/Product/1", "promosync", "active_discounts")
	if err != nil {
		t.Fatalf("GetProductMetafield: %v", err)
	}
	if value != "" {
		t.Errorf("value = %q", value)
	}
}

func TestThrottledMapsToRateLimit(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"errors": [{"message": "Throttled", "extensions": {"code": "THROTTLED"}}]}`))
	})

	_, err := client.ListDiscountNodes(context.Background(), "", 10)
	if err == nil {
		t.Fatal("expected throttle error")
	}
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeRateLimit {
		t.Errorf("unexpected error: %v", err)
	}
}

func TestServerErrorMapsToDependency(t *testing.T) {
	client, _ := newTestClient(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadGateway)
	})

	_, err := client.ListProductIDs(context.Background(), "", 10)
	if err == nil {
		t.Fatal("expected error")
	}
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeDependency {
		t.Errorf("unexpected error: %v", err)
	}
}
