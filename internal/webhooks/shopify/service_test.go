package shopify

import (
	"context"
	"encoding/json"
	"io"
	"testing"
	"time"

	"github.com/google/uuid"

	"github.com/promosynchq/promosync/internal/discounts"
	"github.com/promosynchq/promosync/pkg/db/models"
	pkgerrors "github.com/promosynchq/promosync/pkg/errors"
	"github.com/promosynchq/promosync/pkg/logger"
)

type call struct {
	op      string
	payload discounts.WebhookDiscountPayload
}

type stubProcessor struct {
	calls []call
	err   error
}

func (p *stubProcessor) ProcessCreate(ctx context.Context, shop *models.Shop, payload discounts.WebhookDiscountPayload) error {
	p.calls = append(p.calls, call{op: "create", payload: payload})
	return p.err
}

func (p *stubProcessor) ProcessUpdate(ctx context.Context, shop *models.Shop, payload discounts.WebhookDiscountPayload) error {
	p.calls = append(p.calls, call{op: "update", payload: payload})
	return p.err
}

func (p *stubProcessor) ProcessDelete(ctx context.Context, shop *models.Shop, payload discounts.WebhookDiscountPayload) error {
	p.calls = append(p.calls, call{op: "delete", payload: payload})
	return p.err
}

type stubShops struct {
	shop *models.Shop
}

func (s *stubShops) FindByDomain(ctx context.Context, domain string) (*models.Shop, error) {
	if s.shop != nil && s.shop.Domain == domain {
		return s.shop, nil
	}
	return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shop not found")
}

type stubDedup struct {
	seen map[string]bool
}

func (d *stubDedup) SetNX(ctx context.Context, key string, value any, ttl time.Duration) (bool, error) {
	if d.seen == nil {
		d.seen = make(map[string]bool)
	}
	if d.seen[key] {
		return false, nil
	}
	d.seen[key] = true
	return true, nil
}

func (d *stubDedup) WebhookDedupKey(eventID string) string {
	return "test:dedup:" + eventID
}

func newService(t *testing.T, processor *stubProcessor, dedup deduper) *Service {
	t.Helper()
	service, err := NewService(Params{
		Processor: processor,
		Shops:     &stubShops{shop: &models.Shop{ID: uuid.New(), Domain: "demo.myshopify.com", IsActive: true}},
		Dedup:     dedup,
		Logger:    logger.New(logger.Options{ServiceName: "test", Output: io.Discard}),
	})
	if err != nil {
		t.Fatalf("NewService: %v", err)
	}
	return service
}

func discountEvent(id, topic string) Event {
	payload, _ := json.Marshal(map[string]any{
		"admin_graphql_api_id": "gid://shopify/DiscountCodeNode/42",
		"title":                "Deal",
		"status":               "ACTIVE",
	})
	return Event{ID: id, Topic: topic, ShopDomain: "demo.myshopify.com", Payload: payload}
}

func TestHandleRoutesDiscountTopics(t *testing.T) {
	for topic, wantOp := range map[string]string{
		TopicDiscountsCreate: "create",
		TopicDiscountsUpdate: "update",
		TopicDiscountsDelete: "delete",
	} {
		processor := &stubProcessor{}
		service := newService(t, processor, nil)

		if err := service.Handle(context.Background(), discountEvent("e1", topic)); err != nil {
			t.Fatalf("Handle(%s): %v", topic, err)
		}
		if len(processor.calls) != 1 || processor.calls[0].op != wantOp {
			t.Errorf("topic %s routed to %+v", topic, processor.calls)
		}
	}
}

func TestHandleIgnoresProductTopics(t *testing.T) {
	processor := &stubProcessor{}
	service := newService(t, processor, nil)

	event := Event{ID: "e1", Topic: "products/update", ShopDomain: "demo.myshopify.com", Payload: []byte(`{}`)}
	if err := service.Handle(context.Background(), event); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(processor.calls) != 0 {
		t.Errorf("product topic reached the processor: %+v", processor.calls)
	}
}

func TestHandleSuppressesReplays(t *testing.T) {
	processor := &stubProcessor{}
	service := newService(t, processor, &stubDedup{})

	event := discountEvent("e1", TopicDiscountsCreate)
	if err := service.Handle(context.Background(), event); err != nil {
		t.Fatalf("first delivery: %v", err)
	}
	if err := service.Handle(context.Background(), event); err != nil {
		t.Fatalf("replay: %v", err)
	}
	if len(processor.calls) != 1 {
		t.Errorf("calls = %d, want replay suppressed", len(processor.calls))
	}
}

func TestHandleDropsUnknownShop(t *testing.T) {
	processor := &stubProcessor{}
	service := newService(t, processor, nil)

	event := discountEvent("e1", TopicDiscountsCreate)
	event.ShopDomain = "stranger.myshopify.com"
	if err := service.Handle(context.Background(), event); err != nil {
		t.Fatalf("Handle: %v", err)
	}
	if len(processor.calls) != 0 {
		t.Errorf("unknown shop reached the processor")
	}
}

func TestHandleRejectsPayloadWithoutID(t *testing.T) {
	processor := &stubProcessor{}
	service := newService(t, processor, nil)

	event := Event{ID: "e1", Topic: TopicDiscountsCreate, ShopDomain: "demo.myshopify.com", Payload: []byte(`{"title":"x"}`)}
	err := service.Handle(context.Background(), event)
	if err == nil {
		t.Fatal("expected validation error")
	}
	if appErr := pkgerrors.As(err); appErr == nil || appErr.Code() != pkgerrors.CodeValidation {
		t.Errorf("unexpected error: %v", err)
	}
}
