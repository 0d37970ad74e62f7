package discounts

import (
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/promosynchq/promosync/pkg/enums"
	"github.com/promosynchq/promosync/pkg/shopify"
)

// DiscountValue is the normalized value union persisted onto rule rows and
// written into product annotations. Kind discriminates which fields carry
// meaning.
type DiscountValue struct {
	Kind         enums.DiscountValueKind `json:"kind"`
	Percentage   float64                 `json:"percentage,omitempty"`
	Amount       decimal.Decimal         `json:"amount,omitempty"`
	CurrencyCode string                  `json:"currency_code,omitempty"`
	Display      string                  `json:"display"`
}

// ExtractedDiscountData is the transient normal form every input shape is
// reduced to before persistence or annotation work.
type ExtractedDiscountData struct {
	ID       string
	GID      string
	Title    string
	Code     string
	Type     enums.DiscountType
	Status   enums.DiscountStatus
	StartsAt *time.Time
	EndsAt   *time.Time
	Value    DiscountValue
	Summary  string
}

// WebhookDiscountPayload is the minimal shape Shopify delivers on
// discounts/create|update|delete topics.
type WebhookDiscountPayload struct {
	AdminGraphqlAPIID string     `json:"admin_graphql_api_id"`
	Title             string     `json:"title"`
	Status            string     `json:"status"`
	StartsAt          *time.Time `json:"starts_at"`
	EndsAt            *time.Time `json:"ends_at"`
	CreatedAt         *time.Time `json:"created_at"`
	UpdatedAt         *time.Time `json:"updated_at"`
}

func displayFor(kind enums.DiscountValueKind, percentage float64, amount decimal.Decimal, currency string) string {
	switch kind {
	case enums.DiscountValuePercentage:
		pct := decimal.NewFromFloat(percentage).Mul(decimal.NewFromInt(100))
		return fmt.Sprintf("%s%% off", pct.String())
	case enums.DiscountValueFixedAmount:
		if currency != "" {
			return fmt.Sprintf("%s %s off", amount.StringFixed(2), currency)
		}
		return fmt.Sprintf("%s off", amount.StringFixed(2))
	case enums.DiscountValueBXGY:
		return "Buy X Get Y"
	default:
		return ""
	}
}

func valueFromNode(node *shopify.DiscountNode) DiscountValue {
	value := DiscountValue{
		Kind:         node.Value.Kind,
		Percentage:   node.Value.Percentage,
		Amount:       node.Value.Amount,
		CurrencyCode: node.Value.CurrencyCode,
	}
	if value.Kind == "" {
		value.Kind = enums.DiscountValueUnknown
	}
	value.Display = displayFor(value.Kind, value.Percentage, value.Amount, value.CurrencyCode)
	return value
}

func fallbackTitle(title, bareID string) string {
	trimmed := strings.TrimSpace(title)
	if trimmed != "" {
		return trimmed
	}
	return fmt.Sprintf("Discount %s", bareID)
}

// ExtractFromNode normalizes a detail-fetch or list-item discount node.
func ExtractFromNode(node *shopify.DiscountNode) ExtractedDiscountData {
	bare := NormalizeDiscountID(node.ID)

	discountType := enums.DiscountTypeCode
	if node.Automatic {
		discountType = enums.DiscountTypeAutomatic
	}

	status := enums.DiscountStatus(strings.ToUpper(strings.TrimSpace(node.Status)))
	if !status.IsValid() {
		status = enums.DiscountStatusDisabled
	}

	return ExtractedDiscountData{
		ID:       bare,
		GID:      node.ID,
		Title:    fallbackTitle(node.Title, bare),
		Code:     node.Code,
		Type:     discountType,
		Status:   status,
		StartsAt: node.StartsAt,
		EndsAt:   node.EndsAt,
		Value:    valueFromNode(node),
		Summary:  node.Summary,
	}
}

// ExtractFromWebhook normalizes a webhook-minimal payload. Webhooks omit
// value and targeting details, so the value kind is unknown until a detail
// fetch fills it in.
func ExtractFromWebhook(payload WebhookDiscountPayload) ExtractedDiscountData {
	bare := NormalizeDiscountID(payload.AdminGraphqlAPIID)

	discountType := enums.DiscountTypeCode
	if strings.Contains(payload.AdminGraphqlAPIID, "DiscountAutomatic") {
		discountType = enums.DiscountTypeAutomatic
	}

	status := enums.DiscountStatus(strings.ToUpper(strings.TrimSpace(payload.Status)))
	if !status.IsValid() {
		status = enums.DiscountStatusActive
	}

	return ExtractedDiscountData{
		ID:       bare,
		GID:      payload.AdminGraphqlAPIID,
		Title:    fallbackTitle(payload.Title, bare),
		Type:     discountType,
		Status:   status,
		StartsAt: payload.StartsAt,
		EndsAt:   payload.EndsAt,
		Value:    DiscountValue{Kind: enums.DiscountValueUnknown},
	}
}

// ValueJSON serializes the value union for the rule row's value column.
func (d ExtractedDiscountData) ValueJSON() string {
	raw, err := json.Marshal(d.Value)
	if err != nil {
		return "{}"
	}
	return string(raw)
}

// IsActive reports whether the discount should drive annotation work.
func (d ExtractedDiscountData) IsActive() bool {
	return d.Status == enums.DiscountStatusActive
}
