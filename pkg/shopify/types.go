package shopify

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"

	"github.com/promosynchq/promosync/pkg/enums"
)

// DiscountNode is a normalized view over the admin API discount union.
// Automatic and code discounts share the same shape here; Code is empty
// for automatic discounts.
type DiscountNode struct {
	ID           string
	Typename     string
	Automatic    bool
	Title        string
	Code         string
	Status       string
	Summary      string
	StartsAt     *time.Time
	EndsAt       *time.Time
	Value        DiscountValue
	CustomerGets *ItemTargeting
	CustomerBuys *ItemTargeting
}

// DiscountValue captures the discount amount union. Percentage is the
// upstream fraction (0.15 means 15 percent).
type DiscountValue struct {
	Kind         enums.DiscountValueKind
	Percentage   float64
	Amount       decimal.Decimal
	CurrencyCode string
}

// ItemTargeting captures which items a discount clause applies to.
// Exactly one of AllItems, ProductIDs, or CollectionIDs is populated.
type ItemTargeting struct {
	AllItems      bool
	ProductIDs    []string
	CollectionIDs []string
}

// DiscountNodePage is one page of a discount node listing.
type DiscountNodePage struct {
	Nodes       []DiscountNode
	EndCursor   string
	HasNextPage bool
}

// IDPage is one page of a resource ID listing.
type IDPage struct {
	IDs         []string
	EndCursor   string
	HasNextPage bool
}

type gqlPageInfo struct {
	HasNextPage bool   `json:"hasNextPage"`
	EndCursor   string `json:"endCursor"`
}

type gqlDiscountNode struct {
	ID       string          `json:"id"`
	Discount json.RawMessage `json:"discount"`
}

type gqlMoney struct {
	Amount       string `json:"amount"`
	CurrencyCode string `json:"currencyCode"`
}

type gqlDiscountValue struct {
	Typename   string    `json:"__typename"`
	Percentage float64   `json:"percentage"`
	Amount     *gqlMoney `json:"amount"`
}

type gqlDiscountItems struct {
	Typename string `json:"__typename"`
	AllItems bool   `json:"allItems"`
	Products struct {
		Nodes []struct {
			ID string `json:"id"`
		} `json:"nodes"`
	} `json:"products"`
	Collections struct {
		Nodes []struct {
			ID string `json:"id"`
		} `json:"nodes"`
	} `json:"collections"`
}

type gqlCustomerClause struct {
	Value *gqlDiscountValue `json:"value"`
	Items *gqlDiscountItems `json:"items"`
}

type gqlDiscount struct {
	Typename string     `json:"__typename"`
	Title    string     `json:"title"`
	Status   string     `json:"status"`
	Summary  string     `json:"summary"`
	StartsAt *time.Time `json:"startsAt"`
	EndsAt   *time.Time `json:"endsAt"`
	Codes    struct {
		Nodes []struct {
			Code string `json:"code"`
		} `json:"nodes"`
	} `json:"codes"`
	CustomerGets *gqlCustomerClause `json:"customerGets"`
	CustomerBuys *gqlCustomerClause `json:"customerBuys"`
}

const (
	typenameAutomaticBasic = "DiscountAutomaticBasic"
	typenameAutomaticBxgy  = "DiscountAutomaticBxgy"
	typenameCodeBasic      = "DiscountCodeBasic"
	typenameCodeBxgy       = "DiscountCodeBxgy"
)

func (n gqlDiscountNode) toDomain() (*DiscountNode, error) {
	if len(n.Discount) == 0 || string(n.Discount) == "null" {
		return nil, nil
	}

	var raw gqlDiscount
	if err := json.Unmarshal(n.Discount, &raw); err != nil {
		return nil, err
	}

	node := &DiscountNode{
		ID:       n.ID,
		Typename: raw.Typename,
		Title:    raw.Title,
		Status:   raw.Status,
		Summary:  raw.Summary,
		StartsAt: raw.StartsAt,
		EndsAt:   raw.EndsAt,
	}

	switch raw.Typename {
	case typenameAutomaticBasic, typenameAutomaticBxgy:
		node.Automatic = true
	}
	if len(raw.Codes.Nodes) > 0 {
		node.Code = raw.Codes.Nodes[0].Code
	}

	bxgy := raw.Typename == typenameAutomaticBxgy || raw.Typename == typenameCodeBxgy

	if raw.CustomerGets != nil {
		node.CustomerGets = raw.CustomerGets.Items.toTargeting()
		node.Value = raw.CustomerGets.Value.toValue(bxgy)
	} else if bxgy {
		node.Value = DiscountValue{Kind: enums.DiscountValueBXGY}
	}
	if raw.CustomerBuys != nil {
		node.CustomerBuys = raw.CustomerBuys.Items.toTargeting()
	}

	return node, nil
}

func (v *gqlDiscountValue) toValue(bxgy bool) DiscountValue {
	if bxgy {
		return DiscountValue{Kind: enums.DiscountValueBXGY}
	}
	if v == nil {
		return DiscountValue{Kind: enums.DiscountValueUnknown}
	}
	switch v.Typename {
	case "DiscountPercentage":
		return DiscountValue{Kind: enums.DiscountValuePercentage, Percentage: v.Percentage}
	case "DiscountAmount":
		value := DiscountValue{Kind: enums.DiscountValueFixedAmount}
		if v.Amount != nil {
			if amount, err := decimal.NewFromString(v.Amount.Amount); err == nil {
				value.Amount = amount
			}
			value.CurrencyCode = v.Amount.CurrencyCode
		}
		return value
	default:
		return DiscountValue{Kind: enums.DiscountValueUnknown}
	}
}

func (i *gqlDiscountItems) toTargeting() *ItemTargeting {
	if i == nil {
		return nil
	}
	targeting := &ItemTargeting{}
	switch i.Typename {
	case "AllDiscountItems":
		targeting.AllItems = true
	case "DiscountProducts":
		for _, node := range i.Products.Nodes {
			targeting.ProductIDs = append(targeting.ProductIDs, node.ID)
		}
	case "DiscountCollections":
		for _, node := range i.Collections.Nodes {
			targeting.CollectionIDs = append(targeting.CollectionIDs, node.ID)
		}
	default:
		if i.AllItems {
			targeting.AllItems = true
		}
	}
	return targeting
}
