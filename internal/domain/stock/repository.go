package stock

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/stockledger/backend/internal/domain/shared"
)

// BatchRepository defines the interface for stock batch persistence
type BatchRepository interface {
	// Create inserts a new batch. It never touches the movement ledger;
	// callers record the corresponding receipt movement themselves.
	Create(ctx context.Context, batch *StockBatch) error

	// FindByID finds a batch by its ID
	FindByID(ctx context.Context, id uuid.UUID) (*StockBatch, error)

	// FindByLocationAndProduct returns all of the tenant's batches for a
	// product at a location regardless of state, ordered by receipt date
	// ascending.
	FindByLocationAndProduct(ctx context.Context, tenantID, locationID, productID uuid.UUID) ([]StockBatch, error)

	// FindEligible returns the tenant's consumable batches (not depleted,
	// not expired, remaining > 0) ordered by receipt date ascending,
	// tie-broken by creation timestamp ascending.
	FindEligible(ctx context.Context, tenantID, locationID, productID uuid.UUID) ([]StockBatch, error)

	// FindExpiringSoon returns eligible batches whose expiry date falls
	// within the given number of days from now.
	FindExpiringSoon(ctx context.Context, tenantID uuid.UUID, withinDays int) ([]StockBatch, error)

	// MarkExpired flags every non-expired batch of the tenant's
	// product/location whose expiry date is strictly before asOf (date-only
	// comparison). Returns the number of batches newly flagged. Idempotent.
	MarkExpired(ctx context.Context, tenantID, locationID, productID uuid.UUID, asOf time.Time) (int64, error)

	// MarkAllExpired is the sweep variant of MarkExpired: it flags expired
	// batches across all locations and products.
	MarkAllExpired(ctx context.Context, asOf time.Time) (int64, error)

	// DecrementRemaining atomically reduces a batch's remaining quantity
	// with an optimistic version check. The write only succeeds if the
	// stored version still matches expectedVersion; otherwise
	// shared.ErrConcurrencyConflict is returned and nothing changes.
	// Sets the depleted flag when newRemaining is zero.
	DecrementRemaining(ctx context.Context, id uuid.UUID, newRemaining decimal.Decimal, expectedVersion int) error
}

// MovementFilter narrows ledger queries
type MovementFilter struct {
	shared.Filter
	ProductID     *uuid.UUID
	BatchID       *uuid.UUID
	MovementTypes []MovementType
	ReferenceType string
	ReferenceID   string
	StartDate     *time.Time
	EndDate       *time.Time
}

// MovementRepository defines the interface for the append-only movement
// ledger. No update or delete operation is exposed.
type MovementRepository interface {
	// Create appends a single ledger entry
	Create(ctx context.Context, movement *StockMovement) error

	// CreateBatch appends multiple ledger entries
	CreateBatch(ctx context.Context, movements []*StockMovement) error

	// FindByLocation lists the tenant's movements for a location,
	// filterable by product, movement type set, reference and date range.
	// Default order is newest-first. Returns the page and the total match
	// count.
	FindByLocation(ctx context.Context, tenantID, locationID uuid.UUID, filter MovementFilter) ([]StockMovement, int64, error)

	// FindByBatch returns all movements recorded against a batch,
	// oldest-first.
	FindByBatch(ctx context.Context, batchID uuid.UUID) ([]StockMovement, error)

	// SumDeltaByBatch sums the signed quantity deltas recorded against a
	// batch. Used for ledger reconciliation: for any batch the sum of
	// negative deltas equals remaining minus original.
	SumDeltaByBatch(ctx context.Context, batchID uuid.UUID) (decimal.Decimal, error)
}
