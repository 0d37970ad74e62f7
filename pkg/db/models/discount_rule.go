package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/promosynchq/promosync/pkg/enums"
)

// DiscountRule is the local record of an upstream discount, one row per
// normalized discount id per shop. Rows are never hard-deleted; upstream
// deletion flips IsActive off and Status to DELETED.
type DiscountRule struct {
	ID            uuid.UUID            `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ShopID        uuid.UUID            `gorm:"column:shop_id;type:uuid;not null;uniqueIndex:idx_discount_rules_shop_discount"`
	DiscountID    string               `gorm:"column:discount_id;not null;uniqueIndex:idx_discount_rules_shop_discount"`
	DiscountType  enums.DiscountType   `gorm:"column:discount_type;not null"`
	Title         string               `gorm:"column:title;not null"`
	Code          string               `gorm:"column:code"`
	Status        enums.DiscountStatus `gorm:"column:status;not null"`
	IsActive      bool                 `gorm:"column:is_active;not null;default:true"`
	StartsAt      *time.Time           `gorm:"column:starts_at"`
	EndsAt        *time.Time           `gorm:"column:ends_at"`
	Value         string               `gorm:"column:value;type:jsonb;not null;default:'{}'"`
	CollectionIDs pq.StringArray       `gorm:"column:collection_ids;type:text[];not null;default:ARRAY[]::text[]"`
	ProductsCount int                  `gorm:"column:products_count;not null;default:0"`
	LastRan       *time.Time           `gorm:"column:last_ran"`
	CreatedAt     time.Time            `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt     time.Time            `gorm:"column:updated_at;autoUpdateTime"`
}
