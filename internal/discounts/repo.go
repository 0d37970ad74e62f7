package discounts

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"

	"github.com/promosynchq/promosync/pkg/db/models"
	"github.com/promosynchq/promosync/pkg/enums"
	pkgerrors "github.com/promosynchq/promosync/pkg/errors"
)

// Repo persists discount rules. Rules are never hard-deleted; upstream
// deletion is recorded as is_active=false with the DELETED status.
type Repo struct {
	db *gorm.DB
}

// NewRepo builds a discount rule repo.
func NewRepo(db *gorm.DB) (*Repo, error) {
	if db == nil {
		return nil, fmt.Errorf("discount repo requires a db handle")
	}
	return &Repo{db: db}, nil
}

// WithTx returns a repo bound to the given transaction.
func (r *Repo) WithTx(tx *gorm.DB) *Repo {
	return &Repo{db: tx}
}

// Upsert writes a rule keyed on (shop_id, discount_id), updating the
// mutable columns in place when the row already exists.
func (r *Repo) Upsert(ctx context.Context, rule *models.DiscountRule) error {
	if rule == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "nil discount rule")
	}
	if rule.ID == uuid.Nil {
		rule.ID = uuid.New()
	}
	err := r.db.WithContext(ctx).
		Clauses(clause.OnConflict{
			Columns: []clause.Column{{Name: "shop_id"}, {Name: "discount_id"}},
			DoUpdates: clause.AssignmentColumns([]string{
				"discount_type", "title", "code", "status", "is_active",
				"starts_at", "ends_at", "value", "collection_ids", "updated_at",
			}),
		}).
		Create(rule).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "upsert discount rule")
	}
	return nil
}

// FindByDiscountID loads one rule by its normalized upstream id.
func (r *Repo) FindByDiscountID(ctx context.Context, shopID uuid.UUID, discountID string) (*models.DiscountRule, error) {
	var rule models.DiscountRule
	err := r.db.WithContext(ctx).
		Where("shop_id = ? AND discount_id = ?", shopID, NormalizeDiscountID(discountID)).
		First(&rule).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("discount rule %s not found", discountID))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "query discount rule")
	}
	return &rule, nil
}

// FindByIDs loads rules by primary key.
func (r *Repo) FindByIDs(ctx context.Context, ids []uuid.UUID) ([]models.DiscountRule, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	var rules []models.DiscountRule
	err := r.db.WithContext(ctx).Where("id IN ?", ids).Find(&rules).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "query discount rules")
	}
	return rules, nil
}

// FindExpired returns active rules whose end date has passed, across all
// tenants. Callers group the result per shop.
func (r *Repo) FindExpired(ctx context.Context, now time.Time) ([]models.DiscountRule, error) {
	var rules []models.DiscountRule
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND ends_at IS NOT NULL AND ends_at < ?", true, now).
		Order("shop_id asc").
		Find(&rules).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "query expired discount rules")
	}
	return rules, nil
}

// Deactivate transitions a rule to the given terminal status.
func (r *Repo) Deactivate(ctx context.Context, ruleID uuid.UUID, status enums.DiscountStatus) error {
	err := r.db.WithContext(ctx).
		Model(&models.DiscountRule{}).
		Where("id = ?", ruleID).
		Updates(map[string]any{
			"is_active": false,
			"status":    status.String(),
		}).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "deactivate discount rule")
	}
	return nil
}

// UpdateProductsCount refreshes the rule's cached link count.
func (r *Repo) UpdateProductsCount(ctx context.Context, ruleID uuid.UUID, count int) error {
	err := r.db.WithContext(ctx).
		Model(&models.DiscountRule{}).
		Where("id = ?", ruleID).
		Update("products_count", count).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "update discount products count")
	}
	return nil
}

// TouchLastRan records when the rule last went through a sync pass.
func (r *Repo) TouchLastRan(ctx context.Context, ruleID uuid.UUID, at time.Time) error {
	err := r.db.WithContext(ctx).
		Model(&models.DiscountRule{}).
		Where("id = ?", ruleID).
		Update("last_ran", at).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "touch discount last_ran")
	}
	return nil
}

// KnownDiscountIDs lists the normalized ids already persisted for a shop.
func (r *Repo) KnownDiscountIDs(ctx context.Context, shopID uuid.UUID) (map[string]struct{}, error) {
	var ids []string
	err := r.db.WithContext(ctx).
		Model(&models.DiscountRule{}).
		Where("shop_id = ?", shopID).
		Pluck("discount_id", &ids).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list known discount ids")
	}
	known := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		known[id] = struct{}{}
	}
	return known, nil
}
