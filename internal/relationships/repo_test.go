package relationships

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/promosynchq/promosync/pkg/db/models"
	pkgerrors "github.com/promosynchq/promosync/pkg/errors"
)

func setupLinkTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	dsn := fmt.Sprintf("file:%s?mode=memory&cache=shared", strings.ReplaceAll(t.Name(), "/", "_"))
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	require.NoError(t, err)

	ddl := `
CREATE TABLE IF NOT EXISTS product_discount_links (
  id TEXT PRIMARY KEY,
  shop_id TEXT NOT NULL,
  product_id TEXT NOT NULL,
  discount_rule_id TEXT NOT NULL,
  is_active INTEGER NOT NULL DEFAULT 1,
  created_at DATETIME,
  updated_at DATETIME
);
CREATE UNIQUE INDEX IF NOT EXISTS idx_product_discount_pair
  ON product_discount_links (product_id, discount_rule_id);`
	for _, stmt := range strings.Split(ddl, ";") {
		if strings.TrimSpace(stmt) == "" {
			continue
		}
		require.NoError(t, db.Exec(stmt).Error)
	}
	return db
}

func newLink(shopID, productID, ruleID uuid.UUID, active bool) models.ProductDiscountLink {
	return models.ProductDiscountLink{
		ID:             uuid.New(),
		ShopID:         shopID,
		ProductID:      productID,
		DiscountRuleID: ruleID,
		IsActive:       active,
	}
}

func TestRepoFindPairAndSetActive(t *testing.T) {
	db := setupLinkTestDB(t)
	repo, err := NewRepo(db)
	require.NoError(t, err)
	ctx := context.Background()

	shopID := uuid.New()
	productID := uuid.New()
	ruleID := uuid.New()

	link := newLink(shopID, productID, ruleID, true)
	require.NoError(t, repo.Create(ctx, &link))

	got, err := repo.FindPair(ctx, productID, ruleID)
	require.NoError(t, err)
	assert.Equal(t, link.ID, got.ID)
	assert.True(t, got.IsActive)

	require.NoError(t, repo.SetActive(ctx, link.ID, false))
	got, err = repo.FindPair(ctx, productID, ruleID)
	require.NoError(t, err)
	assert.False(t, got.IsActive)

	_, err = repo.FindPair(ctx, uuid.New(), ruleID)
	require.Error(t, err)
	assert.True(t, pkgerrors.As(err) != nil && pkgerrors.IsNotFound(err))
}

func TestRepoCreateBatchAndListByDiscount(t *testing.T) {
	db := setupLinkTestDB(t)
	repo, err := NewRepo(db)
	require.NoError(t, err)
	ctx := context.Background()

	shopID := uuid.New()
	ruleID := uuid.New()
	links := []models.ProductDiscountLink{
		newLink(shopID, uuid.New(), ruleID, true),
		newLink(shopID, uuid.New(), ruleID, true),
		newLink(shopID, uuid.New(), ruleID, false),
	}
	require.NoError(t, repo.CreateBatch(ctx, links))

	all, err := repo.ListByDiscount(ctx, ruleID)
	require.NoError(t, err)
	assert.Len(t, all, 3)

	active, err := repo.ListActiveByDiscount(ctx, ruleID)
	require.NoError(t, err)
	assert.Len(t, active, 2)

	count, err := repo.CountActiveByDiscount(ctx, ruleID)
	require.NoError(t, err)
	assert.Equal(t, 2, count)
}

func TestRepoActiveCountsGroupPerKey(t *testing.T) {
	db := setupLinkTestDB(t)
	repo, err := NewRepo(db)
	require.NoError(t, err)
	ctx := context.Background()

	shopID := uuid.New()
	productA := uuid.New()
	productB := uuid.New()
	ruleX := uuid.New()
	ruleY := uuid.New()

	require.NoError(t, repo.CreateBatch(ctx, []models.ProductDiscountLink{
		newLink(shopID, productA, ruleX, true),
		newLink(shopID, productA, ruleY, true),
		newLink(shopID, productB, ruleX, true),
		newLink(shopID, productB, ruleY, false),
	}))

	byDiscount, err := repo.ActiveCountsByDiscount(ctx, shopID)
	require.NoError(t, err)
	assert.Equal(t, 2, byDiscount[ruleX])
	assert.Equal(t, 1, byDiscount[ruleY])

	byProduct, err := repo.ActiveCountsByProduct(ctx, shopID)
	require.NoError(t, err)
	assert.Equal(t, 2, byProduct[productA])
	assert.Equal(t, 1, byProduct[productB])
}

func TestRepoDeleteRemovesPair(t *testing.T) {
	db := setupLinkTestDB(t)
	repo, err := NewRepo(db)
	require.NoError(t, err)
	ctx := context.Background()

	shopID := uuid.New()
	productID := uuid.New()
	ruleID := uuid.New()
	link := newLink(shopID, productID, ruleID, true)
	require.NoError(t, repo.Create(ctx, &link))

	require.NoError(t, repo.Delete(ctx, productID, ruleID))
	_, err = repo.FindPair(ctx, productID, ruleID)
	assert.True(t, pkgerrors.IsNotFound(err))
}
