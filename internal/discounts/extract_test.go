package discounts

import (
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/promosynchq/promosync/pkg/enums"
	"github.com/promosynchq/promosync/pkg/shopify"
)

func TestExtractFromNodePercentage(t *testing.T) {
	endsAt := time.Date(2026, 10, 1, 0, 0, 0, 0, time.UTC)
	node := &shopify.DiscountNode{
		ID:        "gid://shopify/DiscountCodeNode/42",
		Automatic: false,
		Title:     "Summer Sale",
		Code:      "SUMMER20",
		Status:    "ACTIVE",
		EndsAt:    &endsAt,
		Value: shopify.DiscountValue{
			Kind:       enums.DiscountValuePercentage,
			Percentage: 0.2,
		},
	}

	data := ExtractFromNode(node)
	if data.ID != "42" {
		t.Errorf("ID = %q", data.ID)
	}
	if data.Type != enums.DiscountTypeCode {
		t.Errorf("Type = %s", data.Type)
	}
	if data.Value.Display != "20% off" {
		t.Errorf("Display = %q", data.Value.Display)
	}
	if !data.IsActive() {
		t.Error("ACTIVE discount reported inactive")
	}
}

func TestExtractFromNodeFixedAmount(t *testing.T) {
	node := &shopify.DiscountNode{
		ID:        "gid://shopify/DiscountAutomaticNode/7",
		Automatic: true,
		Title:     "Tenner",
		Status:    "EXPIRED",
		Value: shopify.DiscountValue{
			Kind:         enums.DiscountValueFixedAmount,
			Amount:       decimal.RequireFromString("10.5"),
			CurrencyCode: "USD",
		},
	}

	data := ExtractFromNode(node)
	if data.Type != enums.DiscountTypeAutomatic {
		t.Errorf("Type = %s", data.Type)
	}
	if data.Value.Display != "10.50 USD off" {
		t.Errorf("Display = %q", data.Value.Display)
	}
	if data.IsActive() {
		t.Error("EXPIRED discount reported active")
	}
}

func TestExtractFromNodeFallbacks(t *testing.T) {
	node := &shopify.DiscountNode{
		ID:     "gid://shopify/DiscountNode/99",
		Title:  "   ",
		Status: "something-new",
	}

	data := ExtractFromNode(node)
	if data.Title != "Discount 99" {
		t.Errorf("Title = %q", data.Title)
	}
	if data.Status != enums.DiscountStatusDisabled {
		t.Errorf("Status = %s", data.Status)
	}
	if data.Value.Kind != enums.DiscountValueUnknown {
		t.Errorf("Kind = %s", data.Value.Kind)
	}
}

func TestExtractFromWebhook(t *testing.T) {
	payload := WebhookDiscountPayload{
		AdminGraphqlAPIID: "gid://shopify/DiscountAutomaticNode/314",
		Title:             "Flash",
		Status:            "active",
	}

	data := ExtractFromWebhook(payload)
	if data.ID != "314" {
		t.Errorf("ID = %q", data.ID)
	}
	if data.Type != enums.DiscountTypeAutomatic {
		t.Errorf("Type = %s", data.Type)
	}
	if data.Status != enums.DiscountStatusActive {
		t.Errorf("Status = %s", data.Status)
	}
	if data.Value.Kind != enums.DiscountValueUnknown {
		t.Errorf("Kind = %s", data.Value.Kind)
	}
}

func TestValueJSONRoundTripsKind(t *testing.T) {
	data := ExtractedDiscountData{
		Value: DiscountValue{
			Kind:       enums.DiscountValuePercentage,
			Percentage: 0.15,
			Display:    "15% off",
		},
	}
	raw := data.ValueJSON()
	if !strings.Contains(raw, `"kind":"percentage"`) {
		t.Errorf("ValueJSON = %s", raw)
	}
	if !strings.Contains(raw, `"display":"15% off"`) {
		t.Errorf("ValueJSON = %s", raw)
	}
}
