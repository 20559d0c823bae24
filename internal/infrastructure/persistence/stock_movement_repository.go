package persistence

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stockledger/backend/internal/domain/stock"
)

// GormStockMovementRepository implements stock.MovementRepository using GORM.
// The ledger is append-only: no update or delete is ever issued.
type GormStockMovementRepository struct {
	db *gorm.DB
}

// NewGormStockMovementRepository creates a new GormStockMovementRepository
func NewGormStockMovementRepository(db *gorm.DB) *GormStockMovementRepository {
	return &GormStockMovementRepository{db: db}
}

// Create appends a single ledger entry
func (r *GormStockMovementRepository) Create(ctx context.Context, movement *stock.StockMovement) error {
	return r.db.WithContext(ctx).Create(movement).Error
}

// CreateBatch appends multiple ledger entries
func (r *GormStockMovementRepository) CreateBatch(ctx context.Context, movements []*stock.StockMovement) error {
	if len(movements) == 0 {
		return nil
	}
	return r.db.WithContext(ctx).Create(movements).Error
}

// FindByLocation lists the tenant's movements for a location with the given
// filter, returning the requested page and the total match count
func (r *GormStockMovementRepository) FindByLocation(ctx context.Context, tenantID, locationID uuid.UUID, filter stock.MovementFilter) ([]stock.StockMovement, int64, error) {
	query := r.db.WithContext(ctx).
		Model(&stock.StockMovement{}).
		Where("tenant_id = ?", tenantID).
		Where("location_id = ?", locationID)
	query = applyMovementFilter(query, filter)

	var total int64
	if err := query.Count(&total).Error; err != nil {
		return nil, 0, err
	}

	paging := filter.Filter.Normalize()

	var movements []stock.StockMovement
	err := query.
		Order(movementOrder(filter)).
		Offset(paging.Offset()).
		Limit(paging.PageSize).
		Find(&movements).Error
	return movements, total, err
}

// FindByBatch returns all movements recorded against a batch, oldest first
func (r *GormStockMovementRepository) FindByBatch(ctx context.Context, batchID uuid.UUID) ([]stock.StockMovement, error) {
	var movements []stock.StockMovement
	err := r.db.WithContext(ctx).
		Where("batch_id = ?", batchID).
		Order("occurred_at ASC, created_at ASC").
		Find(&movements).Error
	return movements, err
}

// SumDeltaByBatch sums the signed quantity deltas recorded against a batch
func (r *GormStockMovementRepository) SumDeltaByBatch(ctx context.Context, batchID uuid.UUID) (decimal.Decimal, error) {
	var sum decimal.NullDecimal
	err := r.db.WithContext(ctx).
		Model(&stock.StockMovement{}).
		Where("batch_id = ?", batchID).
		Select("COALESCE(SUM(quantity), 0)").
		Scan(&sum).Error
	if err != nil {
		return decimal.Zero, err
	}
	if !sum.Valid {
		return decimal.Zero, nil
	}
	return sum.Decimal, nil
}

func applyMovementFilter(query *gorm.DB, filter stock.MovementFilter) *gorm.DB {
	if filter.ProductID != nil {
		query = query.Where("product_id = ?", *filter.ProductID)
	}
	if filter.BatchID != nil {
		query = query.Where("batch_id = ?", *filter.BatchID)
	}
	if len(filter.MovementTypes) > 0 {
		query = query.Where("movement_type IN ?", filter.MovementTypes)
	}
	if filter.ReferenceType != "" {
		query = query.Where("reference_type = ?", filter.ReferenceType)
	}
	if filter.ReferenceID != "" {
		query = query.Where("reference_id = ?", filter.ReferenceID)
	}
	if filter.StartDate != nil {
		query = query.Where("occurred_at >= ?", *filter.StartDate)
	}
	if filter.EndDate != nil {
		query = query.Where("occurred_at <= ?", *filter.EndDate)
	}
	return query
}

// movementOrder builds the ORDER BY clause from whitelisted input; unknown
// input falls back to newest-first
func movementOrder(filter stock.MovementFilter) string {
	column := ValidateSortField(filter.OrderBy, MovementSortFields, "occurred_at")
	return fmt.Sprintf("%s %s", column, ValidateSortOrder(filter.OrderDir))
}

var _ stock.MovementRepository = (*GormStockMovementRepository)(nil)
