package persistence

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/domain/stock"
)

func setupStockTestDB(t *testing.T) *gorm.DB {
	db, err := gorm.Open(sqlite.Open(":memory:"), &gorm.Config{})
	require.NoError(t, err)

	err = db.AutoMigrate(&stock.StockBatch{}, &stock.StockMovement{})
	require.NoError(t, err)

	return db
}

func createTestBatch(t *testing.T, repo *GormStockBatchRepository, tenantID, locationID, productID uuid.UUID, quantity, unitCost string, receivedAt time.Time, expiryDate *time.Time) *stock.StockBatch {
	t.Helper()
	batch, err := stock.NewStockBatch(
		tenantID, locationID, productID, "",
		decimal.RequireFromString(quantity),
		decimal.RequireFromString(unitCost),
		receivedAt, expiryDate,
	)
	require.NoError(t, err)
	require.NoError(t, repo.Create(context.Background(), batch))
	return batch
}

func TestGormStockBatchRepository_FindByID(t *testing.T) {
	db := setupStockTestDB(t)
	repo := NewGormStockBatchRepository(db)
	ctx := context.Background()

	t.Run("finds existing batch", func(t *testing.T) {
		receivedAt := time.Date(2025, 4, 2, 9, 30, 0, 0, time.UTC)
		expiry := time.Date(2025, 10, 1, 0, 0, 0, 0, time.UTC)
		created := createTestBatch(t, repo, uuid.New(), uuid.New(), uuid.New(), "10", "2.5", receivedAt, &expiry)

		found, err := repo.FindByID(ctx, created.ID)
		require.NoError(t, err)
		assert.Equal(t, created.ID, found.ID)
		assert.True(t, found.Remaining.Equal(decimal.RequireFromString("10")))
		assert.True(t, found.TotalValue.Equal(decimal.RequireFromString("25")))
		assert.True(t, found.ReceivedAt.Equal(receivedAt), "time columns must scan back from the store")
		require.NotNil(t, found.ExpiryDate)
		assert.True(t, found.ExpiryDate.Equal(expiry))
	})

	t.Run("returns not found for missing batch", func(t *testing.T) {
		_, err := repo.FindByID(ctx, uuid.New())
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormStockBatchRepository_FindEligible(t *testing.T) {
	db := setupStockTestDB(t)
	repo := NewGormStockBatchRepository(db)
	ctx := context.Background()

	tenantID := uuid.New()
	locationID := uuid.New()
	productID := uuid.New()

	newer := createTestBatch(t, repo, tenantID, locationID, productID, "5", "1", time.Date(2025, 3, 1, 0, 0, 0, 0, time.UTC), nil)
	older := createTestBatch(t, repo, tenantID, locationID, productID, "5", "1", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), nil)

	// depleted batch must not appear
	depleted := createTestBatch(t, repo, tenantID, locationID, productID, "5", "1", time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC), nil)
	require.NoError(t, repo.DecrementRemaining(ctx, depleted.ID, decimal.Zero, depleted.Version))

	// other product must not appear
	createTestBatch(t, repo, tenantID, locationID, uuid.New(), "5", "1", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), nil)

	// another tenant at the same location must not appear
	createTestBatch(t, repo, uuid.New(), locationID, productID, "5", "1", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC), nil)

	eligible, err := repo.FindEligible(ctx, tenantID, locationID, productID)
	require.NoError(t, err)
	require.Len(t, eligible, 2)
	assert.Equal(t, older.ID, eligible[0].ID, "oldest receipt comes first")
	assert.Equal(t, newer.ID, eligible[1].ID)
}

func TestGormStockBatchRepository_MarkExpired(t *testing.T) {
	db := setupStockTestDB(t)
	repo := NewGormStockBatchRepository(db)
	ctx := context.Background()

	tenantID := uuid.New()
	locationID := uuid.New()
	productID := uuid.New()
	asOf := time.Date(2025, 6, 10, 15, 30, 0, 0, time.UTC)

	yesterday := time.Date(2025, 6, 9, 23, 0, 0, 0, time.UTC)
	today := time.Date(2025, 6, 10, 0, 0, 0, 0, time.UTC)
	tomorrow := time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC)

	stale := createTestBatch(t, repo, tenantID, locationID, productID, "10", "1", time.Now().AddDate(0, -1, 0), &yesterday)
	expiringToday := createTestBatch(t, repo, tenantID, locationID, productID, "10", "1", time.Now().AddDate(0, -1, 0), &today)
	fresh := createTestBatch(t, repo, tenantID, locationID, productID, "10", "1", time.Now().AddDate(0, -1, 0), &tomorrow)
	noExpiry := createTestBatch(t, repo, tenantID, locationID, productID, "10", "1", time.Now().AddDate(0, -1, 0), nil)

	// stale batch under a different tenant stays untouched
	otherTenantStale := createTestBatch(t, repo, uuid.New(), locationID, productID, "10", "1", time.Now().AddDate(0, -1, 0), &yesterday)

	count, err := repo.MarkExpired(ctx, tenantID, locationID, productID, asOf)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count, "only the batch that expired before today is flagged")

	staleStored, err := repo.FindByID(ctx, stale.ID)
	require.NoError(t, err)
	assert.True(t, staleStored.Expired)
	assert.Equal(t, stale.Version+1, staleStored.Version)

	for _, id := range []uuid.UUID{expiringToday.ID, fresh.ID, noExpiry.ID, otherTenantStale.ID} {
		stored, err := repo.FindByID(ctx, id)
		require.NoError(t, err)
		assert.False(t, stored.Expired)
	}

	t.Run("idempotent", func(t *testing.T) {
		count, err := repo.MarkExpired(ctx, tenantID, locationID, productID, asOf)
		require.NoError(t, err)
		assert.Zero(t, count)

		stored, err := repo.FindByID(ctx, stale.ID)
		require.NoError(t, err)
		assert.Equal(t, stale.Version+1, stored.Version, "version unchanged on re-run")
	})
}

func TestGormStockBatchRepository_MarkAllExpired(t *testing.T) {
	db := setupStockTestDB(t)
	repo := NewGormStockBatchRepository(db)
	ctx := context.Background()

	asOf := time.Date(2025, 6, 10, 15, 30, 0, 0, time.UTC)
	yesterday := time.Date(2025, 6, 9, 23, 0, 0, 0, time.UTC)
	tomorrow := time.Date(2025, 6, 11, 0, 0, 0, 0, time.UTC)

	// stale batches at two different locations, one fresh batch
	staleA := createTestBatch(t, repo, uuid.New(), uuid.New(), uuid.New(), "10", "1", time.Now().AddDate(0, -1, 0), &yesterday)
	staleB := createTestBatch(t, repo, uuid.New(), uuid.New(), uuid.New(), "10", "1", time.Now().AddDate(0, -1, 0), &yesterday)
	fresh := createTestBatch(t, repo, uuid.New(), uuid.New(), uuid.New(), "10", "1", time.Now().AddDate(0, -1, 0), &tomorrow)

	count, err := repo.MarkAllExpired(ctx, asOf)
	require.NoError(t, err)
	assert.Equal(t, int64(2), count)

	for _, id := range []uuid.UUID{staleA.ID, staleB.ID} {
		stored, err := repo.FindByID(ctx, id)
		require.NoError(t, err)
		assert.True(t, stored.Expired)
	}
	freshStored, err := repo.FindByID(ctx, fresh.ID)
	require.NoError(t, err)
	assert.False(t, freshStored.Expired)
}

func TestGormStockBatchRepository_DecrementRemaining(t *testing.T) {
	db := setupStockTestDB(t)
	repo := NewGormStockBatchRepository(db)
	ctx := context.Background()

	t.Run("decrements with matching version", func(t *testing.T) {
		batch := createTestBatch(t, repo, uuid.New(), uuid.New(), uuid.New(), "10", "1", time.Now(), nil)

		err := repo.DecrementRemaining(ctx, batch.ID, decimal.RequireFromString("6"), batch.Version)
		require.NoError(t, err)

		stored, err := repo.FindByID(ctx, batch.ID)
		require.NoError(t, err)
		assert.True(t, stored.Remaining.Equal(decimal.RequireFromString("6")))
		assert.False(t, stored.Depleted)
		assert.Equal(t, batch.Version+1, stored.Version)
	})

	t.Run("sets depleted at zero", func(t *testing.T) {
		batch := createTestBatch(t, repo, uuid.New(), uuid.New(), uuid.New(), "10", "1", time.Now(), nil)

		err := repo.DecrementRemaining(ctx, batch.ID, decimal.Zero, batch.Version)
		require.NoError(t, err)

		stored, err := repo.FindByID(ctx, batch.ID)
		require.NoError(t, err)
		assert.True(t, stored.Depleted)
		assert.True(t, stored.Remaining.IsZero())
	})

	t.Run("stale version conflicts", func(t *testing.T) {
		batch := createTestBatch(t, repo, uuid.New(), uuid.New(), uuid.New(), "10", "1", time.Now(), nil)

		// a concurrent writer gets there first
		err := repo.DecrementRemaining(ctx, batch.ID, decimal.RequireFromString("8"), batch.Version)
		require.NoError(t, err)

		err = repo.DecrementRemaining(ctx, batch.ID, decimal.RequireFromString("5"), batch.Version)
		assert.ErrorIs(t, err, shared.ErrConcurrencyConflict)

		// the losing write must not have changed anything
		stored, err := repo.FindByID(ctx, batch.ID)
		require.NoError(t, err)
		assert.True(t, stored.Remaining.Equal(decimal.RequireFromString("8")))
	})

	t.Run("missing batch", func(t *testing.T) {
		err := repo.DecrementRemaining(ctx, uuid.New(), decimal.Zero, 1)
		assert.ErrorIs(t, err, shared.ErrNotFound)
	})
}

func TestGormStockBatchRepository_FindExpiringSoon(t *testing.T) {
	db := setupStockTestDB(t)
	repo := NewGormStockBatchRepository(db)
	ctx := context.Background()

	tenantID := uuid.New()
	locationID := uuid.New()
	productID := uuid.New()

	soon := time.Now().AddDate(0, 0, 5)
	later := time.Now().AddDate(0, 0, 60)

	expiringSoon, err := stock.NewStockBatch(tenantID, locationID, productID, "",
		decimal.NewFromInt(10), decimal.NewFromInt(1), time.Now(), &soon)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, expiringSoon))

	expiringLater, err := stock.NewStockBatch(tenantID, locationID, productID, "",
		decimal.NewFromInt(10), decimal.NewFromInt(1), time.Now(), &later)
	require.NoError(t, err)
	require.NoError(t, repo.Create(ctx, expiringLater))

	batches, err := repo.FindExpiringSoon(ctx, tenantID, 30)
	require.NoError(t, err)
	require.Len(t, batches, 1)
	assert.Equal(t, expiringSoon.ID, batches[0].ID)
}
