package routes

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	shopifywebhook "github.com/promosynchq/promosync/internal/webhooks/shopify"
	"github.com/promosynchq/promosync/pkg/config"
	"github.com/promosynchq/promosync/pkg/logger"
)

type noopWebhookService struct {
	handled int
}

func (n *noopWebhookService) Handle(ctx context.Context, event shopifywebhook.Event) error {
	n.handled++
	return nil
}

func newTestRouter(svc *noopWebhookService) http.Handler {
	cfg := &config.Config{}
	cfg.App.Env = "test"
	cfg.Shopify.WebhookSecret = "secret"
	logg := logger.New(logger.Options{ServiceName: "router-test"})
	return NewRouter(cfg, logg, nil, nil, svc, nil)
}

func TestRouterHealthLive(t *testing.T) {
	router := newTestRouter(&noopWebhookService{})
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rec.Code)
	}
	if rec.Header().Get("X-PromoSync-Env") != "test" {
		t.Fatalf("missing env header")
	}
}

func TestRouterWebhookRequiresSignature(t *testing.T) {
	svc := &noopWebhookService{}
	router := newTestRouter(svc)
	req := httptest.NewRequest(http.MethodPost, "/api/v1/webhooks/shopify", strings.NewReader(`{}`))
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for unsigned delivery, got %d", rec.Code)
	}
	if svc.handled != 0 {
		t.Fatalf("unsigned delivery must not reach the service")
	}
}

func TestRouterSetsRequestID(t *testing.T) {
	router := newTestRouter(&noopWebhookService{})
	req := httptest.NewRequest(http.MethodGet, "/health/live", nil)
	rec := httptest.NewRecorder()
	router.ServeHTTP(rec, req)
	if rec.Header().Get("X-Request-Id") == "" {
		t.Fatalf("expected request id header to be set")
	}
}
