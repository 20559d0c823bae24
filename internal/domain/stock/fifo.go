package stock

import (
	"sort"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockledger/backend/internal/domain/shared"
)

// BatchAllocation records how much a consumption plan takes from one batch
type BatchAllocation struct {
	BatchID        uuid.UUID       // ID of the batch
	BatchNumber    string          // Batch number for display
	Quantity       decimal.Decimal // Amount taken from this batch
	UnitCost       decimal.Decimal // Unit cost of this batch
	TotalCost      decimal.Decimal // Quantity * UnitCost
	RemainingAfter decimal.Decimal // Remaining quantity in the batch after the take
	FullyConsumed  bool            // True if the batch is depleted by this take
}

// ConsumptionPlan is the complete result of planning a FIFO consumption
// across a set of eligible batches. A non-zero shortfall is a normal outcome,
// not an error: callers decide whether partial fulfilment is acceptable.
type ConsumptionPlan struct {
	Allocations         []BatchAllocation
	TotalConsumed       decimal.Decimal
	TotalCost           decimal.Decimal
	WeightedAverageCost decimal.Decimal // Average cost per unit actually consumed
	Shortfall           decimal.Decimal // Requested quantity that could not be fulfilled
	FullyFulfilled      bool
}

// SortFIFO orders batches oldest-receipt-first, tie-broken by creation
// timestamp so allocation order is deterministic when two batches share a
// receipt date. The input slice is sorted in place.
func SortFIFO(batches []StockBatch) {
	sort.SliceStable(batches, func(i, j int) bool {
		if !batches[i].ReceivedAt.Equal(batches[j].ReceivedAt) {
			return batches[i].ReceivedAt.Before(batches[j].ReceivedAt)
		}
		return batches[i].CreatedAt.Before(batches[j].CreatedAt)
	})
}

// FilterEligible returns only batches that can be consumed:
// not depleted, not expired, remaining quantity above zero.
func FilterEligible(batches []StockBatch) []StockBatch {
	eligible := make([]StockBatch, 0, len(batches))
	for _, batch := range batches {
		if batch.IsEligible() {
			eligible = append(eligible, batch)
		}
	}
	return eligible
}

// TotalAvailable sums remaining quantity across eligible batches
func TotalAvailable(batches []StockBatch) decimal.Decimal {
	total := decimal.Zero
	for _, batch := range batches {
		if batch.IsEligible() {
			total = total.Add(batch.Remaining)
		}
	}
	return total
}

// PlanConsumption walks batches in FIFO order and allocates the requested
// quantity across them. Batches are filtered for eligibility and sorted
// internally, so callers may pass the raw batch list.
//
// The plan never over-allocates: the total across allocations never exceeds
// the total available nor the requested quantity. When the eligible stock
// cannot cover the request, the plan carries the shortfall and allocates
// everything that is available.
func PlanConsumption(requested decimal.Decimal, batches []StockBatch) (*ConsumptionPlan, error) {
	if requested.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Requested quantity must be positive")
	}

	eligible := FilterEligible(batches)
	SortFIFO(eligible)

	allocations := make([]BatchAllocation, 0, len(eligible))
	remaining := requested
	totalConsumed := decimal.Zero
	totalCost := decimal.Zero

	for _, batch := range eligible {
		if remaining.IsZero() {
			break
		}

		take := decimal.Min(remaining, batch.Remaining)
		if take.LessThanOrEqual(decimal.Zero) {
			continue
		}

		remainingAfter := batch.Remaining.Sub(take)
		cost := take.Mul(batch.UnitCost)

		allocations = append(allocations, BatchAllocation{
			BatchID:        batch.ID,
			BatchNumber:    batch.BatchNumber,
			Quantity:       take,
			UnitCost:       batch.UnitCost,
			TotalCost:      cost,
			RemainingAfter: remainingAfter,
			FullyConsumed:  remainingAfter.IsZero(),
		})

		totalConsumed = totalConsumed.Add(take)
		totalCost = totalCost.Add(cost)
		remaining = remaining.Sub(take)
	}

	var avgCost decimal.Decimal
	if totalConsumed.GreaterThan(decimal.Zero) {
		avgCost = totalCost.Div(totalConsumed).Round(4)
	}

	return &ConsumptionPlan{
		Allocations:         allocations,
		TotalConsumed:       totalConsumed,
		TotalCost:           totalCost,
		WeightedAverageCost: avgCost,
		Shortfall:           remaining,
		FullyFulfilled:      remaining.IsZero(),
	}, nil
}
