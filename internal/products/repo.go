// Package products exposes read access to the local product mirror. The
// mirror rows are written by the separate product-sync subsystem; this
// service only ever reads them.
package products

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/promosynchq/promosync/pkg/db/models"
	pkgerrors "github.com/promosynchq/promosync/pkg/errors"
)

const productGIDPrefix = "gid://shopify/Product/"

// NormalizeProductID reduces a product GID to the bare id stored on mirror
// rows. Already-bare input passes through.
func NormalizeProductID(raw string) string {
	trimmed := strings.TrimSpace(raw)
	if idx := strings.LastIndex(trimmed, "/"); idx >= 0 {
		return trimmed[idx+1:]
	}
	return trimmed
}

// ProductGID rebuilds the admin API GID from a bare mirror id.
func ProductGID(shopifyID string) string {
	if strings.HasPrefix(shopifyID, "gid://") {
		return shopifyID
	}
	return productGIDPrefix + shopifyID
}

// Repo reads the product mirror table.
type Repo struct {
	db *gorm.DB
}

// NewRepo builds a product repo.
func NewRepo(db *gorm.DB) (*Repo, error) {
	if db == nil {
		return nil, fmt.Errorf("product repo requires a db handle")
	}
	return &Repo{db: db}, nil
}

// WithTx returns a repo bound to the given transaction.
func (r *Repo) WithTx(tx *gorm.DB) *Repo {
	return &Repo{db: tx}
}

// FindByShopifyIDs maps upstream product ids (bare or GID form) onto local
// mirror rows. Unknown ids are simply absent from the result.
func (r *Repo) FindByShopifyIDs(ctx context.Context, shopID uuid.UUID, shopifyIDs []string) ([]models.Product, error) {
	if len(shopifyIDs) == 0 {
		return nil, nil
	}
	bare := make([]string, 0, len(shopifyIDs))
	for _, id := range shopifyIDs {
		if normalized := NormalizeProductID(id); normalized != "" {
			bare = append(bare, normalized)
		}
	}

	var rows []models.Product
	err := r.db.WithContext(ctx).
		Where("shop_id = ? AND shopify_id IN ?", shopID, bare).
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "query product mirror")
	}
	return rows, nil
}

// FindByIDs loads mirror rows by local primary key.
func (r *Repo) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.Product, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rows []models.Product
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "query product mirror")
	}
	return rows, nil
}

// ExistsLocally reports whether a mirror row exists for the upstream id.
func (r *Repo) ExistsLocally(ctx context.Context, shopID uuid.UUID, shopifyID string) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Product{}).
		Where("shop_id = ? AND shopify_id = ?", shopID, NormalizeProductID(shopifyID)).
		Count(&count).Error
	if err != nil {
		return false, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "query product mirror")
	}
	return count > 0, nil
}
