package integration

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	appstock "github.com/stockledger/backend/internal/application/stock"
	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/domain/stock"
	"github.com/stockledger/backend/internal/infrastructure/persistence"
)

type stockFixture struct {
	service      *appstock.StockService
	batchRepo    *persistence.GormStockBatchRepository
	movementRepo *persistence.GormStockMovementRepository
	tenantID     uuid.UUID
	locationID   uuid.UUID
	productID    uuid.UUID
}

func newStockFixture(t *testing.T, tdb *TestDB) *stockFixture {
	t.Helper()
	batchRepo := persistence.NewGormStockBatchRepository(tdb.DB)
	movementRepo := persistence.NewGormStockMovementRepository(tdb.DB)
	return &stockFixture{
		service:      appstock.NewStockService(persistence.NewGormTransactionScope(tdb.DB), batchRepo, movementRepo, nil),
		batchRepo:    batchRepo,
		movementRepo: movementRepo,
		tenantID:     uuid.New(),
		locationID:   uuid.New(),
		productID:    uuid.New(),
	}
}

func (f *stockFixture) createBatch(t *testing.T, quantity, unitCost string, receivedAt time.Time) *appstock.BatchResponse {
	t.Helper()
	cost := decimal.RequireFromString(unitCost)
	resp, err := f.service.CreateBatch(context.Background(), f.tenantID, appstock.CreateBatchRequest{
		LocationID: f.locationID,
		ProductID:  f.productID,
		Quantity:   decimal.RequireFromString(quantity),
		UnitCost:   &cost,
		ReceivedAt: receivedAt,
	})
	require.NoError(t, err)
	return resp
}

func TestStockFlow(t *testing.T) {
	tdb := NewTestDB(t)
	f := newStockFixture(t, tdb)
	ctx := context.Background()

	first := f.createBatch(t, "10", "100", time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC))
	second := f.createBatch(t, "10", "120", time.Date(2025, 1, 5, 0, 0, 0, 0, time.UTC))

	t.Run("consumes oldest batch first", func(t *testing.T) {
		result, err := f.service.Consume(ctx, f.tenantID, appstock.ConsumeRequest{
			LocationID:   f.locationID,
			ProductID:    f.productID,
			Quantity:     decimal.RequireFromString("12"),
			MovementType: stock.MovementTypeSale,
		})
		require.NoError(t, err)
		assert.True(t, result.Success)
		assert.True(t, result.TotalConsumed.Equal(decimal.RequireFromString("12")))
		assert.True(t, result.TotalCost.Equal(decimal.RequireFromString("1240")))
		require.Len(t, result.ConsumedBatches, 2)
		assert.Equal(t, first.ID, result.ConsumedBatches[0].BatchID)
		assert.Equal(t, second.ID, result.ConsumedBatches[1].BatchID)

		firstStored, err := f.batchRepo.FindByID(ctx, first.ID)
		require.NoError(t, err)
		assert.True(t, firstStored.Depleted)

		secondStored, err := f.batchRepo.FindByID(ctx, second.ID)
		require.NoError(t, err)
		assert.True(t, secondStored.Remaining.Equal(decimal.RequireFromString("8")))
	})

	t.Run("ledger reconciles against batch state", func(t *testing.T) {
		for _, batchID := range []uuid.UUID{first.ID, second.ID} {
			batch, err := f.batchRepo.FindByID(ctx, batchID)
			require.NoError(t, err)

			delta, err := f.movementRepo.SumDeltaByBatch(ctx, batchID)
			require.NoError(t, err)
			assert.True(t, delta.Equal(batch.Remaining),
				"receipt plus consumption deltas must equal remaining")
		}
	})

	t.Run("insufficient stock rolls back", func(t *testing.T) {
		before, err := f.batchRepo.FindEligible(ctx, f.tenantID, f.locationID, f.productID)
		require.NoError(t, err)

		_, err = f.service.Consume(ctx, f.tenantID, appstock.ConsumeRequest{
			LocationID:   f.locationID,
			ProductID:    f.productID,
			Quantity:     decimal.RequireFromString("1000"),
			MovementType: stock.MovementTypeSale,
		})
		require.Error(t, err)
		var domainErr *shared.DomainError
		require.True(t, errors.As(err, &domainErr))
		assert.Equal(t, "INSUFFICIENT_STOCK", domainErr.Code)

		after, err := f.batchRepo.FindEligible(ctx, f.tenantID, f.locationID, f.productID)
		require.NoError(t, err)
		require.Len(t, after, len(before))
		for i := range before {
			assert.True(t, before[i].Remaining.Equal(after[i].Remaining))
		}
	})
}

func TestStockFlow_ConcurrentConsumers(t *testing.T) {
	tdb := NewTestDB(t)
	f := newStockFixture(t, tdb)
	ctx := context.Background()

	// 20 units across two batches; 6 workers want 3 units each, so two
	// must come up short and no unit may be sold twice.
	f.createBatch(t, "10", "50", time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC))
	f.createBatch(t, "10", "60", time.Date(2025, 2, 2, 0, 0, 0, 0, time.UTC))

	const workers = 6
	requested := decimal.RequireFromString("3")

	var wg sync.WaitGroup
	results := make([]*appstock.ConsumptionResult, workers)
	errs := make([]error, workers)

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = f.service.Consume(ctx, f.tenantID, appstock.ConsumeRequest{
				LocationID:   f.locationID,
				ProductID:    f.productID,
				Quantity:     requested,
				MovementType: stock.MovementTypeSale,
				AllowPartial: true,
			})
		}(i)
	}
	wg.Wait()

	totalConsumed := decimal.Zero
	for i := 0; i < workers; i++ {
		if errs[i] != nil {
			// Retries can exhaust under heavy contention; that worker
			// consumed nothing.
			assert.True(t, errors.Is(errs[i], shared.ErrConcurrencyConflict), "unexpected error: %v", errs[i])
			continue
		}
		totalConsumed = totalConsumed.Add(results[i].TotalConsumed)
	}

	assert.True(t, totalConsumed.LessThanOrEqual(decimal.RequireFromString("20")),
		"consumed %s, more than available", totalConsumed)

	// Ground truth: stored remainders must account for exactly what was taken.
	batches, err := f.batchRepo.FindByLocationAndProduct(ctx, f.tenantID, f.locationID, f.productID)
	require.NoError(t, err)
	remaining := decimal.Zero
	for _, b := range batches {
		assert.False(t, b.Remaining.IsNegative(), "batch %s oversold", b.ID)
		remaining = remaining.Add(b.Remaining)
	}
	assert.True(t, remaining.Add(totalConsumed).Equal(decimal.RequireFromString("20")))
}

func TestStockFlow_ExpiryMarking(t *testing.T) {
	tdb := NewTestDB(t)
	f := newStockFixture(t, tdb)
	ctx := context.Background()

	yesterday := time.Now().AddDate(0, 0, -2)
	cost := decimal.RequireFromString("10")
	_, err := f.service.CreateBatch(ctx, f.tenantID, appstock.CreateBatchRequest{
		LocationID: f.locationID,
		ProductID:  f.productID,
		Quantity:   decimal.RequireFromString("5"),
		UnitCost:   &cost,
		ExpiryDate: &yesterday,
	})
	require.NoError(t, err)

	fresh := f.createBatch(t, "7", "10", time.Now())

	// Consumption skips the expired batch entirely.
	result, err := f.service.Consume(ctx, f.tenantID, appstock.ConsumeRequest{
		LocationID:   f.locationID,
		ProductID:    f.productID,
		Quantity:     decimal.RequireFromString("7"),
		MovementType: stock.MovementTypeConsumption,
	})
	require.NoError(t, err)
	assert.True(t, result.Success)
	require.Len(t, result.ConsumedBatches, 1)
	assert.Equal(t, fresh.ID, result.ConsumedBatches[0].BatchID)

	available, err := f.service.GetAvailableQuantity(ctx, f.tenantID, f.locationID, f.productID)
	require.NoError(t, err)
	assert.True(t, available.IsZero())
}
