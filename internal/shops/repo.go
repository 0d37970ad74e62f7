// Package shops stores the minimal tenant records the sync engine needs:
// one row per shop with its upstream credentials and initialization state.
package shops

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/promosynchq/promosync/pkg/db/models"
	pkgerrors "github.com/promosynchq/promosync/pkg/errors"
)

// Repo reads and updates tenant rows.
type Repo struct {
	db *gorm.DB
}

// NewRepo builds a shop repo.
func NewRepo(db *gorm.DB) (*Repo, error) {
	if db == nil {
		return nil, fmt.Errorf("shop repo requires a db handle")
	}
	return &Repo{db: db}, nil
}

// FindByDomain loads one tenant by its myshopify domain.
func (r *Repo) FindByDomain(ctx context.Context, domain string) (*models.Shop, error) {
	var shop models.Shop
	err := r.db.WithContext(ctx).Where("domain = ?", domain).First(&shop).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, fmt.Sprintf("shop %s not found", domain))
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "query shop")
	}
	return &shop, nil
}

// FindByID loads one tenant by primary key.
func (r *Repo) FindByID(ctx context.Context, id uuid.UUID) (*models.Shop, error) {
	var shop models.Shop
	err := r.db.WithContext(ctx).Where("id = ?", id).First(&shop).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "shop not found")
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "query shop")
	}
	return &shop, nil
}

// ListActive returns every active tenant, ordered by domain for stable
// sweep ordering.
func (r *Repo) ListActive(ctx context.Context) ([]models.Shop, error) {
	var rows []models.Shop
	err := r.db.WithContext(ctx).
		Where("is_active = ?", true).
		Order("domain asc").
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list shops")
	}
	return rows, nil
}

// ListUninitialized returns active tenants whose discount backfill has not
// completed yet.
func (r *Repo) ListUninitialized(ctx context.Context) ([]models.Shop, error) {
	var rows []models.Shop
	err := r.db.WithContext(ctx).
		Where("is_active = ? AND initialized = ?", true, false).
		Order("domain asc").
		Find(&rows).Error
	if err != nil {
		return nil, pkgerrors.Wrap(pkgerrors.CodeInternal, err, "list uninitialized shops")
	}
	return rows, nil
}

// MarkInitialized records a completed discount backfill for the tenant.
func (r *Repo) MarkInitialized(ctx context.Context, id uuid.UUID) error {
	err := r.db.WithContext(ctx).
		Model(&models.Shop{}).
		Where("id = ?", id).
		Update("initialized", true).Error
	if err != nil {
		return pkgerrors.Wrap(pkgerrors.CodeInternal, err, "mark shop initialized")
	}
	return nil
}
