package webhooks

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	shopifywebhook "github.com/promosynchq/promosync/internal/webhooks/shopify"
	pkgerrors "github.com/promosynchq/promosync/pkg/errors"
	"github.com/promosynchq/promosync/pkg/logger"
	"github.com/promosynchq/promosync/pkg/types"
)

type fakeWebhookService struct {
	events []shopifywebhook.Event
	err    error
}

func (f *fakeWebhookService) Handle(ctx context.Context, event shopifywebhook.Event) error {
	f.events = append(f.events, event)
	return f.err
}

func testLogger() *logger.Logger {
	return logger.New(logger.Options{ServiceName: "test"})
}

func TestShopifyWebhookBuildsEventFromHeaders(t *testing.T) {
	svc := &fakeWebhookService{}
	handler := ShopifyWebhook(svc, testLogger())

	body := `{"admin_graphql_api_id":"gid://shopify/DiscountCodeNode/42"}`
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/shopify", strings.NewReader(body))
	req.Header.Set("X-Shopify-Webhook-Id", "evt-1")
	req.Header.Set("X-Shopify-Topic", "discounts/create")
	req.Header.Set("X-Shopify-Shop-Domain", "demo.myshopify.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if len(svc.events) != 1 {
		t.Fatalf("expected 1 event, got %d", len(svc.events))
	}
	event := svc.events[0]
	if event.ID != "evt-1" || event.Topic != "discounts/create" || event.ShopDomain != "demo.myshopify.com" {
		t.Fatalf("unexpected event fields: %+v", event)
	}
	if string(event.Payload) != body {
		t.Fatalf("payload not forwarded verbatim")
	}
}

func TestShopifyWebhookRejectsMissingShopDomain(t *testing.T) {
	svc := &fakeWebhookService{}
	handler := ShopifyWebhook(svc, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/shopify", strings.NewReader(`{}`))
	req.Header.Set("X-Shopify-Topic", "discounts/create")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	if len(svc.events) != 0 {
		t.Fatalf("service must not run without shop domain")
	}
}

func TestShopifyWebhookPropagatesServiceError(t *testing.T) {
	svc := &fakeWebhookService{err: pkgerrors.New(pkgerrors.CodeValidation, "discount id missing from payload")}
	handler := ShopifyWebhook(svc, testLogger())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/shopify", strings.NewReader(`{}`))
	req.Header.Set("X-Shopify-Topic", "discounts/update")
	req.Header.Set("X-Shopify-Shop-Domain", "demo.myshopify.com")
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rec.Code)
	}
	var body types.ErrorEnvelope
	if err := json.NewDecoder(rec.Body).Decode(&body); err != nil {
		t.Fatalf("decode error envelope: %v", err)
	}
	if body.Error.Code != string(pkgerrors.CodeValidation) {
		t.Fatalf("unexpected error code %s", body.Error.Code)
	}
}
