package stock

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockledger/backend/internal/domain/stock"
)

// CreateBatchRequest describes a new receipt lot entering stock
type CreateBatchRequest struct {
	LocationID    uuid.UUID
	ProductID     uuid.UUID
	BatchNumber   string
	Quantity      decimal.Decimal
	UnitCost      *decimal.Decimal // nil: default to the current weighted average cost
	ReceivedAt    time.Time        // zero: now
	ExpiryDate    *time.Time
	MovementType  stock.MovementType // RECEIPT, ADJUSTMENT, AUDIT, TRANSFER_IN or RETURN
	ReferenceType string
	ReferenceID   string
	ActorID       *uuid.UUID
	Notes         string
}

// ConsumeRequest describes a FIFO stock deduction
type ConsumeRequest struct {
	LocationID    uuid.UUID
	ProductID     uuid.UUID
	Quantity      decimal.Decimal
	MovementType  stock.MovementType // SALE, CONSUMPTION, ADJUSTMENT, TRANSFER_OUT or AUDIT
	ReferenceType string
	ReferenceID   string
	ActorID       *uuid.UUID
	Notes         string
	// AllowPartial selects the caller's shortfall policy. When false
	// (billing, adjustments, audit postings) a shortfall rolls the whole
	// call back and surfaces INSUFFICIENT_STOCK. When true (manual
	// write-offs) the partial fulfilment commits and the shortfall is
	// reported in the result.
	AllowPartial bool
}

// ConsumedBatch reports one batch touched by a consumption
type ConsumedBatch struct {
	BatchID     uuid.UUID       `json:"batch_id"`
	BatchNumber string          `json:"batch_number"`
	Quantity    decimal.Decimal `json:"quantity"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	TotalCost   decimal.Decimal `json:"total_cost"`
	Depleted    bool            `json:"depleted"`
}

// ConsumptionResult is the structured outcome of a consume call.
// Success is false exactly when a shortfall remains; that is a reportable
// outcome, not an error.
type ConsumptionResult struct {
	Success             bool             `json:"success"`
	TotalConsumed       decimal.Decimal  `json:"total_consumed"`
	Shortfall           decimal.Decimal  `json:"shortfall"`
	TotalCost           decimal.Decimal  `json:"total_cost"`
	WeightedAverageCost decimal.Decimal  `json:"weighted_average_cost"`
	ConsumedBatches     []ConsumedBatch  `json:"consumed_batches"`
	Movements           []MovementResult `json:"movements"`
}

// MovementResult identifies a ledger entry written by an operation
type MovementResult struct {
	MovementID     uuid.UUID       `json:"movement_id"`
	BatchID        *uuid.UUID      `json:"batch_id,omitempty"`
	Quantity       decimal.Decimal `json:"quantity"`
	QuantityBefore decimal.Decimal `json:"quantity_before"`
	QuantityAfter  decimal.Decimal `json:"quantity_after"`
}

// ValuationResult reports the cost position of a product at a location
type ValuationResult struct {
	TotalQuantity       decimal.Decimal `json:"total_quantity"`
	TotalValue          decimal.Decimal `json:"total_value"`
	WeightedAverageCost decimal.Decimal `json:"weighted_average_cost"`
	BatchCount          int             `json:"batch_count"`
}

// AvailabilityResult reports whether a requested quantity can be covered
type AvailabilityResult struct {
	Available    bool            `json:"available"`
	CurrentStock decimal.Decimal `json:"current_stock"`
	Shortfall    decimal.Decimal `json:"shortfall"`
}

// BatchResponse is the application-level view of a stock batch
type BatchResponse struct {
	ID          uuid.UUID       `json:"id"`
	TenantID    uuid.UUID       `json:"tenant_id"`
	LocationID  uuid.UUID       `json:"location_id"`
	ProductID   uuid.UUID       `json:"product_id"`
	BatchNumber string          `json:"batch_number,omitempty"`
	Quantity    decimal.Decimal `json:"quantity"`
	Remaining   decimal.Decimal `json:"remaining"`
	UnitCost    decimal.Decimal `json:"unit_cost"`
	TotalValue  decimal.Decimal `json:"total_value"`
	ReceivedAt  time.Time       `json:"received_at"`
	ExpiryDate  *time.Time      `json:"expiry_date,omitempty"`
	Expired     bool            `json:"expired"`
	Depleted    bool            `json:"depleted"`
	SourceType  string          `json:"source_type,omitempty"`
	SourceID    string          `json:"source_id,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at"`
}

// ToBatchResponse maps a domain batch to its response representation
func ToBatchResponse(b *stock.StockBatch) BatchResponse {
	return BatchResponse{
		ID:          b.ID,
		TenantID:    b.TenantID,
		LocationID:  b.LocationID,
		ProductID:   b.ProductID,
		BatchNumber: b.BatchNumber,
		Quantity:    b.Quantity,
		Remaining:   b.Remaining,
		UnitCost:    b.UnitCost,
		TotalValue:  b.TotalValue,
		ReceivedAt:  b.ReceivedAt,
		ExpiryDate:  b.ExpiryDate,
		Expired:     b.Expired,
		Depleted:    b.Depleted,
		SourceType:  b.SourceType,
		SourceID:    b.SourceID,
		CreatedAt:   b.CreatedAt,
		UpdatedAt:   b.UpdatedAt,
	}
}

// MovementResponse is the application-level view of a ledger entry
type MovementResponse struct {
	ID             uuid.UUID       `json:"id"`
	TenantID       uuid.UUID       `json:"tenant_id"`
	LocationID     uuid.UUID       `json:"location_id"`
	ProductID      uuid.UUID       `json:"product_id"`
	BatchID        *uuid.UUID      `json:"batch_id,omitempty"`
	MovementType   string          `json:"movement_type"`
	Quantity       decimal.Decimal `json:"quantity"`
	QuantityBefore decimal.Decimal `json:"quantity_before"`
	QuantityAfter  decimal.Decimal `json:"quantity_after"`
	UnitCost       decimal.Decimal `json:"unit_cost"`
	ReferenceType  string          `json:"reference_type,omitempty"`
	ReferenceID    string          `json:"reference_id,omitempty"`
	Notes          string          `json:"notes,omitempty"`
	ActorID        *uuid.UUID      `json:"actor_id,omitempty"`
	OccurredAt     time.Time       `json:"occurred_at"`
}

// ToMovementResponse maps a domain movement to its response representation
func ToMovementResponse(m *stock.StockMovement) MovementResponse {
	return MovementResponse{
		ID:             m.ID,
		TenantID:       m.TenantID,
		LocationID:     m.LocationID,
		ProductID:      m.ProductID,
		BatchID:        m.BatchID,
		MovementType:   m.MovementType.String(),
		Quantity:       m.Quantity,
		QuantityBefore: m.QuantityBefore,
		QuantityAfter:  m.QuantityAfter,
		UnitCost:       m.UnitCost,
		ReferenceType:  m.ReferenceType,
		ReferenceID:    m.ReferenceID,
		Notes:          m.Notes,
		ActorID:        m.ActorID,
		OccurredAt:     m.OccurredAt,
	}
}

// MovementListFilter narrows ledger listings at the application boundary
type MovementListFilter struct {
	ProductID     *uuid.UUID
	BatchID       *uuid.UUID
	MovementTypes []stock.MovementType
	ReferenceType string
	ReferenceID   string
	StartDate     *time.Time
	EndDate       *time.Time
	Page          int
	PageSize      int
}
