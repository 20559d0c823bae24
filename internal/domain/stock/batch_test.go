package stock

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/stockledger/backend/internal/domain/shared"
)

func timePtr(t time.Time) *time.Time {
	return &t
}

func newTestBatch(t *testing.T, quantity, unitCost float64) *StockBatch {
	t.Helper()
	batch, err := NewStockBatch(
		uuid.New(), uuid.New(), uuid.New(),
		"B001",
		decimal.NewFromFloat(quantity),
		decimal.NewFromFloat(unitCost),
		time.Now(),
		nil,
	)
	require.NoError(t, err)
	return batch
}

func TestNewStockBatch(t *testing.T) {
	tenantID := uuid.New()
	locationID := uuid.New()
	productID := uuid.New()
	receivedAt := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("creates batch with remaining equal to quantity", func(t *testing.T) {
		batch, err := NewStockBatch(tenantID, locationID, productID, "B001",
			decimal.NewFromInt(10), decimal.NewFromInt(100), receivedAt, nil)
		require.NoError(t, err)

		assert.True(t, batch.Remaining.Equal(decimal.NewFromInt(10)))
		assert.True(t, batch.Quantity.Equal(decimal.NewFromInt(10)))
		assert.True(t, batch.TotalValue.Equal(decimal.NewFromInt(1000)))
		assert.False(t, batch.Depleted)
		assert.False(t, batch.Expired)
		assert.Equal(t, 1, batch.Version)
	})

	t.Run("rejects zero quantity", func(t *testing.T) {
		_, err := NewStockBatch(tenantID, locationID, productID, "",
			decimal.Zero, decimal.NewFromInt(100), receivedAt, nil)
		require.Error(t, err)

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_QUANTITY", domainErr.Code)
	})

	t.Run("rejects negative quantity", func(t *testing.T) {
		_, err := NewStockBatch(tenantID, locationID, productID, "",
			decimal.NewFromInt(-5), decimal.NewFromInt(100), receivedAt, nil)
		assert.Error(t, err)
	})

	t.Run("rejects negative unit cost", func(t *testing.T) {
		_, err := NewStockBatch(tenantID, locationID, productID, "",
			decimal.NewFromInt(10), decimal.NewFromInt(-1), receivedAt, nil)
		require.Error(t, err)

		var domainErr *shared.DomainError
		require.ErrorAs(t, err, &domainErr)
		assert.Equal(t, "INVALID_COST", domainErr.Code)
	})

	t.Run("allows zero unit cost", func(t *testing.T) {
		batch, err := NewStockBatch(tenantID, locationID, productID, "",
			decimal.NewFromInt(10), decimal.Zero, receivedAt, nil)
		require.NoError(t, err)
		assert.True(t, batch.TotalValue.IsZero())
	})

	t.Run("rejects empty identifiers", func(t *testing.T) {
		_, err := NewStockBatch(uuid.Nil, locationID, productID, "",
			decimal.NewFromInt(1), decimal.Zero, receivedAt, nil)
		assert.Error(t, err)

		_, err = NewStockBatch(tenantID, uuid.Nil, productID, "",
			decimal.NewFromInt(1), decimal.Zero, receivedAt, nil)
		assert.Error(t, err)

		_, err = NewStockBatch(tenantID, locationID, uuid.Nil, "",
			decimal.NewFromInt(1), decimal.Zero, receivedAt, nil)
		assert.Error(t, err)
	})
}

func TestStockBatchDeduct(t *testing.T) {
	t.Run("partial deduction keeps batch active", func(t *testing.T) {
		batch := newTestBatch(t, 10, 100)

		taken := batch.Deduct(decimal.NewFromInt(4))

		assert.True(t, taken.Equal(decimal.NewFromInt(4)))
		assert.True(t, batch.Remaining.Equal(decimal.NewFromInt(6)))
		assert.False(t, batch.Depleted)
		assert.Equal(t, 2, batch.Version)
	})

	t.Run("deduction to zero sets depleted flag", func(t *testing.T) {
		batch := newTestBatch(t, 10, 100)

		taken := batch.Deduct(decimal.NewFromInt(10))

		assert.True(t, taken.Equal(decimal.NewFromInt(10)))
		assert.True(t, batch.Remaining.IsZero())
		assert.True(t, batch.Depleted)
	})

	t.Run("deduction is capped at remaining", func(t *testing.T) {
		batch := newTestBatch(t, 10, 100)

		taken := batch.Deduct(decimal.NewFromInt(25))

		assert.True(t, taken.Equal(decimal.NewFromInt(10)))
		assert.True(t, batch.Remaining.IsZero())
		assert.True(t, batch.Depleted)
	})

	t.Run("original quantity is never mutated", func(t *testing.T) {
		batch := newTestBatch(t, 10, 100)
		batch.Deduct(decimal.NewFromInt(7))
		assert.True(t, batch.Quantity.Equal(decimal.NewFromInt(10)))
		assert.True(t, batch.TotalValue.Equal(decimal.NewFromInt(1000)))
	})
}

func TestStockBatchExpiry(t *testing.T) {
	now := time.Date(2024, 6, 15, 12, 0, 0, 0, time.UTC)

	t.Run("no expiry date means never expired", func(t *testing.T) {
		batch := newTestBatch(t, 10, 100)
		assert.False(t, batch.IsExpiredAsOf(now))
	})

	t.Run("expiry comparison is date-only", func(t *testing.T) {
		batch := newTestBatch(t, 10, 100)

		// Expiring today, earlier hour: still usable today.
		batch.ExpiryDate = timePtr(time.Date(2024, 6, 15, 1, 0, 0, 0, time.UTC))
		assert.False(t, batch.IsExpiredAsOf(now))

		// Expired yesterday.
		batch.ExpiryDate = timePtr(time.Date(2024, 6, 14, 23, 59, 0, 0, time.UTC))
		assert.True(t, batch.IsExpiredAsOf(now))

		// Expires tomorrow.
		batch.ExpiryDate = timePtr(time.Date(2024, 6, 16, 0, 0, 0, 0, time.UTC))
		assert.False(t, batch.IsExpiredAsOf(now))
	})

	t.Run("MarkExpired removes batch from eligibility even with stock", func(t *testing.T) {
		batch := newTestBatch(t, 10, 100)
		require.True(t, batch.IsEligible())

		batch.MarkExpired()

		assert.True(t, batch.Expired)
		assert.False(t, batch.IsEligible())
		assert.False(t, batch.Depleted, "expiry and depletion are independent flags")
		assert.True(t, batch.Remaining.GreaterThan(decimal.Zero))
	})

	t.Run("MarkExpired is idempotent", func(t *testing.T) {
		batch := newTestBatch(t, 10, 100)
		batch.MarkExpired()
		version := batch.Version

		batch.MarkExpired()

		assert.Equal(t, version, batch.Version)
		assert.True(t, batch.Expired)
	})
}

func TestStockBatchEligibility(t *testing.T) {
	t.Run("depleted batch is not eligible", func(t *testing.T) {
		batch := newTestBatch(t, 5, 100)
		batch.Deduct(decimal.NewFromInt(5))
		assert.False(t, batch.IsEligible())
	})

	t.Run("remaining value uses lot cost basis", func(t *testing.T) {
		batch := newTestBatch(t, 10, 12.5)
		batch.Deduct(decimal.NewFromInt(4))
		assert.True(t, batch.RemainingValue().Equal(decimal.NewFromInt(75)))
	})
}
