package stock

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func TestWeightedAverageCost(t *testing.T) {
	day1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	t.Run("computes quantity-weighted mean", func(t *testing.T) {
		a := batchWithReceipt(t, "A", 3, 10, day1)
		b := batchWithReceipt(t, "B", 2, 25, day1)

		avg := WeightedAverageCost([]StockBatch{a, b})
		assert.True(t, avg.Equal(decimal.NewFromInt(16)), "(3*10+2*25)/5 = 16, got %s", avg)
	})

	t.Run("returns zero with no eligible batches", func(t *testing.T) {
		assert.True(t, WeightedAverageCost(nil).IsZero())

		depleted := batchWithReceipt(t, "D", 10, 100, day1)
		depleted.Deduct(decimal.NewFromInt(10))
		assert.True(t, WeightedAverageCost([]StockBatch{depleted}).IsZero())
	})

	t.Run("excludes expired batches from the average", func(t *testing.T) {
		fresh := batchWithReceipt(t, "F", 5, 10, day1)
		expired := batchWithReceipt(t, "E", 5, 90, day1)
		expired.MarkExpired()

		avg := WeightedAverageCost([]StockBatch{fresh, expired})
		assert.True(t, avg.Equal(decimal.NewFromInt(10)))
	})

	t.Run("weights by remaining quantity, not original", func(t *testing.T) {
		a := batchWithReceipt(t, "A", 10, 10, day1)
		a.Deduct(decimal.NewFromInt(7)) // 3 remaining @ 10
		b := batchWithReceipt(t, "B", 2, 25, day1)

		avg := WeightedAverageCost([]StockBatch{a, b})
		assert.True(t, avg.Equal(decimal.NewFromInt(16)))
	})
}

func TestTotalStockValue(t *testing.T) {
	day1 := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)

	a := batchWithReceipt(t, "A", 3, 10, day1)
	b := batchWithReceipt(t, "B", 2, 25, day1)
	expired := batchWithReceipt(t, "E", 100, 1, day1)
	expired.MarkExpired()

	total := TotalStockValue([]StockBatch{a, b, expired})
	assert.True(t, total.Equal(decimal.NewFromInt(80)))
}
