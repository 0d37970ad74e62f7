package models

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Product is the local mirror of an upstream product. Rows are owned by the
// product-sync subsystem; the discount core only reads them to map external
// ids to local keys.
type Product struct {
	ID        uuid.UUID `gorm:"column:id;type:uuid;default:gen_random_uuid();primaryKey"`
	ShopID    uuid.UUID `gorm:"column:shop_id;type:uuid;not null;uniqueIndex:idx_products_shop_shopify"`
	ShopifyID string    `gorm:"column:shopify_id;not null;uniqueIndex:idx_products_shop_shopify"`
	Title     string    `gorm:"column:title;not null"`
	Handle    string    `gorm:"column:handle"`
	IsActive  bool      `gorm:"column:is_active;not null;default:true"`
	CreatedAt time.Time `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt time.Time `gorm:"column:updated_at;autoUpdateTime"`
}

// GID rebuilds the admin API global id from the stored bare id.
func (p Product) GID() string {
	if strings.HasPrefix(p.ShopifyID, "gid://") {
		return p.ShopifyID
	}
	return "gid://shopify/Product/" + p.ShopifyID
}
