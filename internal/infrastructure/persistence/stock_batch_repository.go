package persistence

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/domain/stock"
)

// GormStockBatchRepository implements stock.BatchRepository using GORM
type GormStockBatchRepository struct {
	db *gorm.DB
}

// NewGormStockBatchRepository creates a new GormStockBatchRepository
func NewGormStockBatchRepository(db *gorm.DB) *GormStockBatchRepository {
	return &GormStockBatchRepository{db: db}
}

// Create inserts a new batch
func (r *GormStockBatchRepository) Create(ctx context.Context, batch *stock.StockBatch) error {
	return r.db.WithContext(ctx).Create(batch).Error
}

// FindByID finds a batch by its ID
func (r *GormStockBatchRepository) FindByID(ctx context.Context, id uuid.UUID) (*stock.StockBatch, error) {
	var batch stock.StockBatch
	err := r.db.WithContext(ctx).First(&batch, "id = ?", id).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return &batch, nil
}

// FindByLocationAndProduct returns all of the tenant's batches for a product
// at a location regardless of state, oldest receipt first
func (r *GormStockBatchRepository) FindByLocationAndProduct(ctx context.Context, tenantID, locationID, productID uuid.UUID) ([]stock.StockBatch, error) {
	var batches []stock.StockBatch
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Where("location_id = ? AND product_id = ?", locationID, productID).
		Order("received_at ASC, created_at ASC").
		Find(&batches).Error
	return batches, err
}

// FindEligible returns the tenant's consumable batches in FIFO order: oldest
// receipt first, creation timestamp as the tie-breaker
func (r *GormStockBatchRepository) FindEligible(ctx context.Context, tenantID, locationID, productID uuid.UUID) ([]stock.StockBatch, error) {
	var batches []stock.StockBatch
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Where("location_id = ? AND product_id = ?", locationID, productID).
		Where("depleted = ? AND expired = ?", false, false).
		Where("remaining > 0").
		Order("received_at ASC, created_at ASC").
		Find(&batches).Error
	return batches, err
}

// FindExpiringSoon returns eligible batches whose expiry date falls within
// the given number of days from now, soonest first
func (r *GormStockBatchRepository) FindExpiringSoon(ctx context.Context, tenantID uuid.UUID, withinDays int) ([]stock.StockBatch, error) {
	cutoff := time.Now().AddDate(0, 0, withinDays)
	var batches []stock.StockBatch
	err := r.db.WithContext(ctx).
		Where("tenant_id = ?", tenantID).
		Where("depleted = ? AND expired = ?", false, false).
		Where("remaining > 0").
		Where("expiry_date IS NOT NULL AND expiry_date < ?", cutoff).
		Order("expiry_date ASC").
		Find(&batches).Error
	return batches, err
}

// MarkExpired flags batches whose expiry date is strictly before asOf's
// calendar date. A batch expiring today is still consumable. Set-based and
// idempotent: already-flagged batches never match again.
func (r *GormStockBatchRepository) MarkExpired(ctx context.Context, tenantID, locationID, productID uuid.UUID, asOf time.Time) (int64, error) {
	day := asOf.UTC()
	startOfDay := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)

	result := r.db.WithContext(ctx).
		Model(&stock.StockBatch{}).
		Where("tenant_id = ?", tenantID).
		Where("location_id = ? AND product_id = ?", locationID, productID).
		Where("expired = ?", false).
		Where("expiry_date IS NOT NULL AND expiry_date < ?", startOfDay).
		Updates(map[string]any{
			"expired":    true,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}

// MarkAllExpired is the background-sweep variant of MarkExpired without the
// tenant/location/product scope
func (r *GormStockBatchRepository) MarkAllExpired(ctx context.Context, asOf time.Time) (int64, error) {
	day := asOf.UTC()
	startOfDay := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)

	result := r.db.WithContext(ctx).
		Model(&stock.StockBatch{}).
		Where("expired = ?", false).
		Where("expiry_date IS NOT NULL AND expiry_date < ?", startOfDay).
		Updates(map[string]any{
			"expired":    true,
			"version":    gorm.Expr("version + 1"),
			"updated_at": time.Now(),
		})
	return result.RowsAffected, result.Error
}

// DecrementRemaining writes a batch's new remaining quantity with an
// optimistic version check. The row only changes when the stored version
// still matches expectedVersion; a concurrent writer bumps the version and
// makes this call fail with shared.ErrConcurrencyConflict so the caller can
// retry from a fresh read.
func (r *GormStockBatchRepository) DecrementRemaining(ctx context.Context, id uuid.UUID, newRemaining decimal.Decimal, expectedVersion int) error {
	result := r.db.WithContext(ctx).
		Model(&stock.StockBatch{}).
		Where("id = ? AND version = ?", id, expectedVersion).
		Updates(map[string]any{
			"remaining":  newRemaining,
			"depleted":   newRemaining.IsZero(),
			"version":    expectedVersion + 1,
			"updated_at": time.Now(),
		})
	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		// Either the row vanished or another writer bumped the version.
		var count int64
		if err := r.db.WithContext(ctx).Model(&stock.StockBatch{}).Where("id = ?", id).Count(&count).Error; err != nil {
			return err
		}
		if count == 0 {
			return shared.ErrNotFound
		}
		return shared.ErrConcurrencyConflict
	}
	return nil
}

var _ stock.BatchRepository = (*GormStockBatchRepository)(nil)
