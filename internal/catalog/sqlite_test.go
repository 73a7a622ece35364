package catalog_test

import (
	"context"
	"testing"

	"github.com/fjod/go_cart/stripe-checkout/internal/catalog"
	"github.com/fjod/go_cart/stripe-checkout/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func setupTestDB(t *testing.T) *catalog.SQLiteProvider {
	repo, err := catalog.NewSQLiteProvider(":memory:")
	if err != nil {
		t.Fatalf("Failed to create test repository: %v", err)
	}
	t.Cleanup(func() { repo.Close() })

	if err := repo.RunMigrations(); err != nil {
		t.Fatalf("Failed to run migrations: %v", err)
	}

	return repo
}

func TestListProducts_ReturnsSeededCatalog(t *testing.T) {
	repo := setupTestDB(t)

	products, err := repo.ListProducts(context.Background())

	require.NoError(t, err)
	require.Len(t, products, 3)
	assert.Equal(t, catalog.DefaultProducts(), products)
}

func TestRunMigrations_Twice(t *testing.T) {
	repo := setupTestDB(t)

	require.NoError(t, repo.RunMigrations())

	products, err := repo.ListProducts(context.Background())
	require.NoError(t, err)
	assert.Len(t, products, 3)
}

func TestListProducts_CancelledContext(t *testing.T) {
	repo := setupTestDB(t)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := repo.ListProducts(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.Canceled)
}

func TestGetProduct_ReturnsProduct(t *testing.T) {
	repo := setupTestDB(t)

	product, err := repo.GetProduct(context.Background(), "prod_3")

	require.NoError(t, err)
	assert.Equal(t, "Cap", product.Name)
	assert.Equal(t, int64(1499), product.Price)
}

func TestGetProduct_NotFound(t *testing.T) {
	repo := setupTestDB(t)

	_, err := repo.GetProduct(context.Background(), "prod_999")

	assert.ErrorIs(t, err, domain.ErrNotFound)
}
