package stock

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockledger/backend/internal/domain/shared"
)

// StockBatch represents one physical receipt lot of a product at a location.
// Each batch carries its own unit cost fixed at receipt time; cost basis is
// lot-specific and never recalculated.
type StockBatch struct {
	shared.BaseEntity
	TenantID    uuid.UUID       `gorm:"type:uuid;not null;index:idx_stock_batches_tenant"`
	LocationID  uuid.UUID       `gorm:"type:uuid;not null;index:idx_stock_batches_loc_prod,priority:1"`
	ProductID   uuid.UUID       `gorm:"type:uuid;not null;index:idx_stock_batches_loc_prod,priority:2"`
	BatchNumber string          `gorm:"type:varchar(100)"`
	Quantity    decimal.Decimal `gorm:"type:decimal(18,4);not null"` // Original received quantity, immutable
	Remaining   decimal.Decimal `gorm:"type:decimal(18,4);not null"` // Current available quantity
	UnitCost    decimal.Decimal `gorm:"type:decimal(18,4);not null"` // Cost per unit, fixed at receipt
	TotalValue  decimal.Decimal `gorm:"type:decimal(18,4);not null"` // Quantity * UnitCost, fixed at receipt
	ReceivedAt  time.Time       `gorm:"not null;index:idx_stock_batches_received"`
	ExpiryDate  *time.Time
	Expired     bool   `gorm:"not null;default:false"` // Set only by the expiry marker
	Depleted    bool   `gorm:"not null;default:false"` // True iff Remaining is zero
	SourceType  string `gorm:"type:varchar(30)"`       // Operation that created this batch (optional)
	SourceID    string `gorm:"type:varchar(50)"`
	Version     int    `gorm:"not null;default:1"` // Optimistic concurrency token
}

// TableName returns the table name for GORM
func (StockBatch) TableName() string {
	return "stock_batches"
}

// NewStockBatch creates a new stock batch from a receipt.
// Remaining starts equal to the received quantity.
func NewStockBatch(
	tenantID, locationID, productID uuid.UUID,
	batchNumber string,
	quantity, unitCost decimal.Decimal,
	receivedAt time.Time,
	expiryDate *time.Time,
) (*StockBatch, error) {
	if tenantID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_TENANT", "Tenant ID cannot be empty")
	}
	if locationID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_LOCATION", "Location ID cannot be empty")
	}
	if productID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_PRODUCT", "Product ID cannot be empty")
	}
	if quantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	}
	if unitCost.IsNegative() {
		return nil, shared.NewDomainError("INVALID_COST", "Unit cost cannot be negative")
	}
	if receivedAt.IsZero() {
		receivedAt = time.Now()
	}

	return &StockBatch{
		BaseEntity:  shared.NewBaseEntity(),
		TenantID:    tenantID,
		LocationID:  locationID,
		ProductID:   productID,
		BatchNumber: batchNumber,
		Quantity:    quantity,
		Remaining:   quantity,
		UnitCost:    unitCost,
		TotalValue:  quantity.Mul(unitCost),
		ReceivedAt:  receivedAt,
		ExpiryDate:  expiryDate,
		Expired:     false,
		Depleted:    false,
		Version:     1,
	}, nil
}

// WithSource links the batch to the operation that created it
func (b *StockBatch) WithSource(sourceType, sourceID string) *StockBatch {
	b.SourceType = sourceType
	b.SourceID = sourceID
	return b
}

// Deduct reduces the remaining quantity and returns the amount actually taken
// (capped at what the batch holds). Sets the depleted flag when remaining
// reaches zero.
func (b *StockBatch) Deduct(quantity decimal.Decimal) decimal.Decimal {
	taken := decimal.Min(quantity, b.Remaining)
	b.Remaining = b.Remaining.Sub(taken)
	if b.Remaining.IsZero() {
		b.Depleted = true
	}
	b.Version++
	b.Touch()
	return taken
}

// HasStock returns true if the batch has remaining quantity and is not depleted
func (b *StockBatch) HasStock() bool {
	return b.Remaining.GreaterThan(decimal.Zero) && !b.Depleted
}

// IsEligible returns true if the batch can be consumed:
// not depleted, not flagged expired, remaining quantity above zero.
func (b *StockBatch) IsEligible() bool {
	return b.HasStock() && !b.Expired
}

// IsExpiredAsOf reports whether the batch's expiry date has passed relative
// to the given time. The comparison is date-only: a batch expiring today is
// still usable today.
func (b *StockBatch) IsExpiredAsOf(asOf time.Time) bool {
	if b.ExpiryDate == nil {
		return false
	}
	expiry := dateOnly(*b.ExpiryDate)
	return expiry.Before(dateOnly(asOf))
}

// MarkExpired flags the batch as expired, permanently removing it from FIFO
// eligibility. Idempotent. The batch record itself is never deleted.
func (b *StockBatch) MarkExpired() {
	if b.Expired {
		return
	}
	b.Expired = true
	b.Version++
	b.Touch()
}

// WillExpireWithin returns true if the batch has an expiry date falling
// within the given number of days from now.
func (b *StockBatch) WillExpireWithin(days int) bool {
	if b.ExpiryDate == nil {
		return false
	}
	deadline := time.Now().AddDate(0, 0, days)
	return b.ExpiryDate.Before(deadline)
}

// RemainingValue returns the value of the remaining quantity at the batch's
// receipt-time unit cost.
func (b *StockBatch) RemainingValue() decimal.Decimal {
	return b.Remaining.Mul(b.UnitCost)
}

// dateOnly truncates a timestamp to midnight UTC for date-level comparison
func dateOnly(t time.Time) time.Time {
	y, m, d := t.UTC().Date()
	return time.Date(y, m, d, 0, 0, 0, 0, time.UTC)
}
