// Package relationships owns the product-discount link table: the local
// authority for which products currently carry a discount's annotation.
package relationships

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/promosynchq/promosync/pkg/db"
	"github.com/promosynchq/promosync/pkg/db/models"
	pkgerrors "github.com/promosynchq/promosync/pkg/errors"
)

// Repo persists product-discount links. At most one row exists per
// (product_id, discount_rule_id) pair; the unique index enforces it.
type Repo struct {
	db *gorm.DB
}

// NewRepo builds a link repo.
func NewRepo(db *gorm.DB) (*Repo, error) {
	if db == nil {
		return nil, fmt.Errorf("relationship repo requires a db handle")
	}
	return &Repo{db: db}, nil
}

// WithTx returns a repo bound to the given transaction.
func (r *Repo) WithTx(tx *gorm.DB) *Repo {
	return &Repo{db: tx}
}

// FindPair loads the link row for one (product, discount) pair, or a
// NOT_FOUND error when no row exists.
func (r *Repo) FindPair(ctx context.Context, productID, discountRuleID uuid.UUID) (*models.ProductDiscountLink, error) {
	var link models.ProductDiscountLink
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND discount_rule_id = ?", productID, discountRuleID).
		First(&link).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "relationship not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "query relationship")
	}
	return &link, nil
}

// Create inserts one link row.
func (r *Repo) Create(ctx context.Context, link *models.ProductDiscountLink) error {
	if link == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "nil relationship")
	}
	if link.ID == uuid.Nil {
		link.ID = uuid.New()
	}
	if err := r.db.WithContext(ctx).Create(link).Error; err != nil {
		if db.IsUniqueViolation(err, "idx_product_discount_pair") {
			return pkgerrors.Wrap(pkgerrors.CodeConflict, err, "relationship already exists")
		}
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create relationship")
	}
	return nil
}

// CreateBatch inserts many link rows in one statement.
func (r *Repo) CreateBatch(ctx context.Context, links []models.ProductDiscountLink) error {
	if len(links) == 0 {
		return nil
	}
	for i := range links {
		if links[i].ID == uuid.Nil {
			links[i].ID = uuid.New()
		}
	}
	if err := r.db.WithContext(ctx).CreateInBatches(links, 200).Error; err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "create relationships")
	}
	return nil
}

// Delete hard-deletes one pair's row.
func (r *Repo) Delete(ctx context.Context, productID, discountRuleID uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND discount_rule_id = ?", productID, discountRuleID).
		Delete(&models.ProductDiscountLink{}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "delete relationship")
	}
	return nil
}

// SetActive flips one row's active flag.
func (r *Repo) SetActive(ctx context.Context, linkID uuid.UUID, active bool) error {
	err := r.db.WithContext(ctx).
		Model(&models.ProductDiscountLink{}).
		Where("id = ?", linkID).
		Update("is_active", active).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update relationship")
	}
	return nil
}

// ListByDiscount returns every link row for a discount rule, active or not.
func (r *Repo) ListByDiscount(ctx context.Context, discountRuleID uuid.UUID) ([]models.ProductDiscountLink, error) {
	var links []models.ProductDiscountLink
	err := r.db.WithContext(ctx).
		Where("discount_rule_id = ?", discountRuleID).
		Find(&links).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list relationships")
	}
	return links, nil
}

// ListActiveByDiscount returns only the active link rows for a rule.
func (r *Repo) ListActiveByDiscount(ctx context.Context, discountRuleID uuid.UUID) ([]models.ProductDiscountLink, error) {
	var links []models.ProductDiscountLink
	err := r.db.WithContext(ctx).
		Where("discount_rule_id = ? AND is_active = ?", discountRuleID, true).
		Find(&links).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list active relationships")
	}
	return links, nil
}

// CountActiveByDiscount counts active links for a rule.
func (r *Repo) CountActiveByDiscount(ctx context.Context, discountRuleID uuid.UUID) (int, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ProductDiscountLink{}).
		Where("discount_rule_id = ? AND is_active = ?", discountRuleID, true).
		Count(&count).Error
	if err != nil {
		return 0, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "count relationships")
	}
	return int(count), nil
}

// ListActiveByProduct returns the active link rows carrying annotations on
// one product.
func (r *Repo) ListActiveByProduct(ctx context.Context, productID uuid.UUID) ([]models.ProductDiscountLink, error) {
	var links []models.ProductDiscountLink
	err := r.db.WithContext(ctx).
		Where("product_id = ? AND is_active = ?", productID, true).
		Find(&links).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list product relationships")
	}
	return links, nil
}

type countRow struct {
	Key   uuid.UUID `gorm:"column:key"`
	Count int       `gorm:"column:count"`
}

// ActiveCountsByDiscount aggregates active link counts per discount rule
// for one shop.
func (r *Repo) ActiveCountsByDiscount(ctx context.Context, shopID uuid.UUID) (map[uuid.UUID]int, error) {
	return r.activeCounts(ctx, shopID, "discount_rule_id")
}

// ActiveCountsByProduct aggregates active link counts per product for one
// shop.
func (r *Repo) ActiveCountsByProduct(ctx context.Context, shopID uuid.UUID) (map[uuid.UUID]int, error) {
	return r.activeCounts(ctx, shopID, "product_id")
}

func (r *Repo) activeCounts(ctx context.Context, shopID uuid.UUID, column string) (map[uuid.UUID]int, error) {
	var rows []countRow
	err := r.db.WithContext(ctx).
		Model(&models.ProductDiscountLink{}).
		Select(column+" as key, count(*) as count").
		Where("shop_id = ? AND is_active = ?", shopID, true).
		Group(column).
		Scan(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "aggregate relationships")
	}
	counts := make(map[uuid.UUID]int, len(rows))
	for _, row := range rows {
		counts[row.Key] = row.Count
	}
	return counts, nil
}
