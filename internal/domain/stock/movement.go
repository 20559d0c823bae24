package stock

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockledger/backend/internal/domain/shared"
)

// MovementType represents the kind of quantity change recorded in the ledger
type MovementType string

const (
	// MovementTypeReceipt represents stock received into a new batch
	MovementTypeReceipt MovementType = "RECEIPT"
	// MovementTypeSale represents stock deducted when a sale is finalized
	MovementTypeSale MovementType = "SALE"
	// MovementTypeConsumption represents an internal/manual consumption or write-off
	MovementTypeConsumption MovementType = "CONSUMPTION"
	// MovementTypeAdjustment represents a manual stock adjustment
	MovementTypeAdjustment MovementType = "ADJUSTMENT"
	// MovementTypeTransferOut represents stock transferred out to another location
	MovementTypeTransferOut MovementType = "TRANSFER_OUT"
	// MovementTypeTransferIn represents stock transferred in from another location
	MovementTypeTransferIn MovementType = "TRANSFER_IN"
	// MovementTypeReturn represents stock returned into inventory
	MovementTypeReturn MovementType = "RETURN"
	// MovementTypeAudit represents a variance posted from a stock audit
	MovementTypeAudit MovementType = "AUDIT"
)

// String returns the string representation of MovementType
func (t MovementType) String() string {
	return string(t)
}

// IsValid returns true if the movement type is valid
func (t MovementType) IsValid() bool {
	switch t {
	case MovementTypeReceipt,
		MovementTypeSale,
		MovementTypeConsumption,
		MovementTypeAdjustment,
		MovementTypeTransferOut,
		MovementTypeTransferIn,
		MovementTypeReturn,
		MovementTypeAudit:
		return true
	}
	return false
}

// IsOutbound returns true for movement types that may deduct stock via the
// FIFO consumption path. ADJUSTMENT and AUDIT are bidirectional: their
// decrease path consumes, their increase path creates a batch.
func (t MovementType) IsOutbound() bool {
	switch t {
	case MovementTypeSale,
		MovementTypeConsumption,
		MovementTypeAdjustment,
		MovementTypeTransferOut,
		MovementTypeAudit:
		return true
	}
	return false
}

// IsInbound returns true for movement types that may bring stock in through
// batch creation: receipts, transfers in, returns, and the increase paths of
// adjustments and audits.
func (t MovementType) IsInbound() bool {
	switch t {
	case MovementTypeReceipt,
		MovementTypeAdjustment,
		MovementTypeTransferIn,
		MovementTypeReturn,
		MovementTypeAudit:
		return true
	}
	return false
}

// AllMovementTypes returns every valid movement type
func AllMovementTypes() []MovementType {
	return []MovementType{
		MovementTypeReceipt,
		MovementTypeSale,
		MovementTypeConsumption,
		MovementTypeAdjustment,
		MovementTypeTransferOut,
		MovementTypeTransferIn,
		MovementTypeReturn,
		MovementTypeAudit,
	}
}

// StockMovement is an immutable ledger entry for one quantity change against
// one batch. Once created, movements are never updated or deleted; the ledger
// is the source of truth for reconstructing batch history.
type StockMovement struct {
	shared.BaseEntity
	TenantID       uuid.UUID       `gorm:"type:uuid;not null;index:idx_stock_movements_tenant_time,priority:1"`
	LocationID     uuid.UUID       `gorm:"type:uuid;not null;index:idx_stock_movements_loc_prod,priority:1"`
	ProductID      uuid.UUID       `gorm:"type:uuid;not null;index:idx_stock_movements_loc_prod,priority:2"`
	BatchID        *uuid.UUID      `gorm:"type:uuid;index:idx_stock_movements_batch"`
	MovementType   MovementType    `gorm:"type:varchar(30);not null;index:idx_stock_movements_type"`
	Quantity       decimal.Decimal `gorm:"type:decimal(18,4);not null"`                               // Signed delta: negative outflow, positive inflow
	QuantityBefore decimal.Decimal `gorm:"type:decimal(18,4);not null"`                               // Batch remaining before this movement
	QuantityAfter  decimal.Decimal `gorm:"type:decimal(18,4);not null"`                               // Batch remaining after this movement
	UnitCost       decimal.Decimal `gorm:"type:decimal(18,4);not null"`                               // Cost basis of the batch touched
	ReferenceType  string          `gorm:"type:varchar(30);index:idx_stock_movements_ref,priority:1"` // invoice, audit, transfer, ... (optional)
	ReferenceID    string          `gorm:"type:varchar(50);index:idx_stock_movements_ref,priority:2"`
	Notes          string          `gorm:"type:varchar(255)"`
	ActorID        *uuid.UUID      `gorm:"type:uuid"`
	OccurredAt     time.Time       `gorm:"not null;index:idx_stock_movements_tenant_time,priority:2"`
}

// TableName returns the table name for GORM
func (StockMovement) TableName() string {
	return "stock_movements"
}

// NewStockMovement creates a new ledger entry. The quantity delta must be
// non-zero and its sign must agree with before/after quantities.
func NewStockMovement(
	tenantID, locationID, productID uuid.UUID,
	movementType MovementType,
	quantity, quantityBefore, quantityAfter decimal.Decimal,
	unitCost decimal.Decimal,
) (*StockMovement, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if locationID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_LOCATION", "Location ID cannot be empty")
	}
	if productID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PRODUCT", "Product ID cannot be empty")
	}
	if !movementType.IsValid() {
		return nil, shared.NewDomainError("INVALID_MOVEMENT_TYPE", "Invalid movement type")
	}
	if quantity.IsZero() {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Movement quantity cannot be zero")
	}
	if !quantityBefore.Add(quantity).Equal(quantityAfter) {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Movement delta does not match before/after quantities")
	}
	if unitCost.IsNegative() {
		return nil, shared.NewDomainError("INVALID_COST", "Unit cost cannot be negative")
	}

	return &StockMovement{
		BaseEntity:     shared.NewBaseEntity(),
		TenantID:       tenantID,
		LocationID:     locationID,
		ProductID:      productID,
		MovementType:   movementType,
		Quantity:       quantity,
		QuantityBefore: quantityBefore,
		QuantityAfter:  quantityAfter,
		UnitCost:       unitCost,
		OccurredAt:     time.Now(),
	}, nil
}

// WithBatchID links the movement to the batch it changed
func (m *StockMovement) WithBatchID(batchID uuid.UUID) *StockMovement {
	m.BatchID = &batchID
	return m
}

// WithReference links the movement back to the causing operation
func (m *StockMovement) WithReference(referenceType, referenceID string) *StockMovement {
	m.ReferenceType = referenceType
	m.ReferenceID = referenceID
	return m
}

// WithNotes attaches a free-text reason to the movement
func (m *StockMovement) WithNotes(notes string) *StockMovement {
	m.Notes = notes
	return m
}

// WithActorID records who performed the operation
func (m *StockMovement) WithActorID(actorID uuid.UUID) *StockMovement {
	m.ActorID = &actorID
	return m
}

// IsInflow returns true if the movement increased the batch quantity
func (m *StockMovement) IsInflow() bool {
	return m.Quantity.GreaterThan(decimal.Zero)
}

// IsOutflow returns true if the movement decreased the batch quantity
func (m *StockMovement) IsOutflow() bool {
	return m.Quantity.LessThan(decimal.Zero)
}

// TotalCost returns the absolute value of the movement at the batch cost basis
func (m *StockMovement) TotalCost() decimal.Decimal {
	return m.Quantity.Abs().Mul(m.UnitCost)
}
