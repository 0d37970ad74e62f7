package models

import (
	"time"

	"github.com/google/uuid"
)

// ProductDiscountLink asserts "this discount's annotation is currently on
// this product". At most one row exists per (product, discount) pair;
// re-linking an inactive pair reactivates it in place. The table is the
// local authority used to scope annotation cleanup without scanning the
// whole catalog.
type ProductDiscountLink struct {
	ID             uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ShopID         uuid.UUID `gorm:"column:shop_id;type:uuid;not null"`
	ProductID      uuid.UUID `gorm:"column:product_id;type:uuid;not null;uniqueIndex:idx_product_discount_pair"`
	DiscountRuleID uuid.UUID `gorm:"column:discount_rule_id;type:uuid;not null;uniqueIndex:idx_product_discount_pair"`
	IsActive       bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt      time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt      time.Time `gorm:"column:updated_at;autoUpdateTime"`
}
