package stock

import "github.com/shopspring/decimal"

// WeightedAverageCost computes the stock-quantity-weighted mean unit cost
// across eligible batches: sum(remaining_i * unitCost_i) / sum(remaining_i).
// Returns zero when no eligible stock exists.
func WeightedAverageCost(batches []StockBatch) decimal.Decimal {
	totalQuantity := decimal.Zero
	totalValue := decimal.Zero

	for _, batch := range batches {
		if !batch.IsEligible() {
			continue
		}
		totalQuantity = totalQuantity.Add(batch.Remaining)
		totalValue = totalValue.Add(batch.RemainingValue())
	}

	if totalQuantity.LessThanOrEqual(decimal.Zero) {
		return decimal.Zero
	}
	return totalValue.Div(totalQuantity).Round(4)
}

// TotalStockValue sums the remaining value of eligible batches at their
// lot-specific cost basis.
func TotalStockValue(batches []StockBatch) decimal.Decimal {
	total := decimal.Zero
	for _, batch := range batches {
		if batch.IsEligible() {
			total = total.Add(batch.RemainingValue())
		}
	}
	return total
}
