package stock

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/stockledger/backend/internal/domain/shared"
	"github.com/stockledger/backend/internal/domain/stock"
)

// maxConsumeAttempts bounds the transparent retry on optimistic-lock
// conflicts. Each retry re-selects batches from a fresh read.
const maxConsumeAttempts = 3

// StockService implements the batch ledger use cases: receipt, FIFO
// consumption, expiry marking, availability and valuation queries, and
// ledger listings.
type StockService struct {
	txScope      TransactionScope
	batchRepo    stock.BatchRepository
	movementRepo stock.MovementRepository
	logger       *zap.Logger
}

// NewStockService creates a new StockService
func NewStockService(
	txScope TransactionScope,
	batchRepo stock.BatchRepository,
	movementRepo stock.MovementRepository,
	logger *zap.Logger,
) *StockService {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &StockService{
		txScope:      txScope,
		batchRepo:    batchRepo,
		movementRepo: movementRepo,
		logger:       logger.Named("stock_service"),
	}
}

// CreateBatch inserts a new receipt lot and writes the matching inflow
// ledger entry (quantityBefore = 0) in one transaction. When no unit cost
// is supplied, the current weighted average cost of the product at the
// location is used, so positive adjustments inherit the prevailing cost
// basis.
func (s *StockService) CreateBatch(ctx context.Context, tenantID uuid.UUID, req CreateBatchRequest) (*BatchResponse, error) {
	movementType := req.MovementType
	if movementType == "" {
		movementType = stock.MovementTypeReceipt
	}
	if !movementType.IsValid() || !movementType.IsInbound() {
		return nil, shared.NewDomainError("INVALID_MOVEMENT_TYPE", "Batch creation requires an inflow movement type")
	}

	var response *BatchResponse
	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		unitCost := decimal.Zero
		if req.UnitCost != nil {
			unitCost = *req.UnitCost
		} else {
			// Default to the weighted average of the currently eligible stock.
			if _, err := repos.BatchRepo().MarkExpired(ctx, tenantID, req.LocationID, req.ProductID, time.Now()); err != nil {
				return err
			}
			eligible, err := repos.BatchRepo().FindEligible(ctx, tenantID, req.LocationID, req.ProductID)
			if err != nil {
				return err
			}
			unitCost = stock.WeightedAverageCost(eligible)
		}

		batch, err := stock.NewStockBatch(
			tenantID, req.LocationID, req.ProductID,
			req.BatchNumber,
			req.Quantity, unitCost,
			req.ReceivedAt, req.ExpiryDate,
		)
		if err != nil {
			return err
		}
		if req.ReferenceType != "" {
			batch.WithSource(req.ReferenceType, req.ReferenceID)
		}

		if err := repos.BatchRepo().Create(ctx, batch); err != nil {
			return err
		}

		movement, err := stock.NewStockMovement(
			tenantID, req.LocationID, req.ProductID,
			movementType,
			batch.Quantity,  // positive delta
			decimal.Zero,    // a new batch starts from nothing
			batch.Remaining, // = original quantity
			batch.UnitCost,
		)
		if err != nil {
			return err
		}
		movement.WithBatchID(batch.ID)
		if req.ReferenceType != "" {
			movement.WithReference(req.ReferenceType, req.ReferenceID)
		}
		if req.Notes != "" {
			movement.WithNotes(req.Notes)
		}
		if req.ActorID != nil {
			movement.WithActorID(*req.ActorID)
		}
		if err := repos.MovementRepo().Create(ctx, movement); err != nil {
			return err
		}

		resp := ToBatchResponse(batch)
		response = &resp
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.logger.Info("stock batch created",
		zap.String("batch_id", response.ID.String()),
		zap.String("product_id", req.ProductID.String()),
		zap.String("quantity", response.Quantity.String()),
		zap.String("unit_cost", response.UnitCost.String()),
	)
	return response, nil
}

// Consume deducts the requested quantity from eligible batches in FIFO
// order. For every batch touched it decrements the remaining quantity with
// an optimistic version check and appends one ledger entry; all writes of
// one call share a transaction. A shortfall is a structured outcome, not an
// error, unless the request forbids partial fulfilment.
//
// On a version conflict (another consumption changed a selected batch
// between read and write) the whole allocation is retried from a fresh
// selection, up to maxConsumeAttempts, so the engine never oversells.
func (s *StockService) Consume(ctx context.Context, tenantID uuid.UUID, req ConsumeRequest) (*ConsumptionResult, error) {
	if req.Quantity.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	}
	if !req.MovementType.IsValid() || !req.MovementType.IsOutbound() {
		return nil, shared.NewDomainError("INVALID_MOVEMENT_TYPE", "Consumption requires an outbound movement type")
	}

	var result *ConsumptionResult
	var err error
	for attempt := 1; attempt <= maxConsumeAttempts; attempt++ {
		result, err = s.consumeOnce(ctx, tenantID, req)
		if err == nil || !errors.Is(err, shared.ErrConcurrencyConflict) {
			break
		}
		s.logger.Warn("consume conflicted with a concurrent write, retrying",
			zap.Int("attempt", attempt),
			zap.String("product_id", req.ProductID.String()),
		)
	}
	if err != nil {
		return nil, err
	}

	s.logger.Info("stock consumed",
		zap.String("product_id", req.ProductID.String()),
		zap.String("movement_type", req.MovementType.String()),
		zap.String("requested", req.Quantity.String()),
		zap.String("consumed", result.TotalConsumed.String()),
		zap.String("shortfall", result.Shortfall.String()),
	)
	return result, nil
}

// consumeOnce performs a single allocation attempt inside one transaction
func (s *StockService) consumeOnce(ctx context.Context, tenantID uuid.UUID, req ConsumeRequest) (*ConsumptionResult, error) {
	var result *ConsumptionResult

	err := s.txScope.Execute(ctx, func(repos TransactionalRepositories) error {
		// Expiry state is refreshed before every selection so stale
		// batches never enter the allocation.
		if _, err := repos.BatchRepo().MarkExpired(ctx, tenantID, req.LocationID, req.ProductID, time.Now()); err != nil {
			return err
		}

		batches, err := repos.BatchRepo().FindEligible(ctx, tenantID, req.LocationID, req.ProductID)
		if err != nil {
			return err
		}

		plan, err := stock.PlanConsumption(req.Quantity, batches)
		if err != nil {
			return err
		}

		if !plan.FullyFulfilled && !req.AllowPartial {
			return shared.NewDomainError("INSUFFICIENT_STOCK",
				fmt.Sprintf("Insufficient stock: requested %s, available %s",
					req.Quantity.String(), plan.TotalConsumed.String()))
		}

		if len(plan.Allocations) == 0 {
			// Nothing to allocate: report the full shortfall without
			// touching storage.
			result = &ConsumptionResult{
				Success:         false,
				TotalConsumed:   decimal.Zero,
				Shortfall:       req.Quantity,
				TotalCost:       decimal.Zero,
				ConsumedBatches: []ConsumedBatch{},
				Movements:       []MovementResult{},
			}
			return nil
		}

		versions := make(map[uuid.UUID]int, len(batches))
		remainings := make(map[uuid.UUID]decimal.Decimal, len(batches))
		for _, b := range batches {
			versions[b.ID] = b.Version
			remainings[b.ID] = b.Remaining
		}

		consumed := make([]ConsumedBatch, 0, len(plan.Allocations))
		movements := make([]*stock.StockMovement, 0, len(plan.Allocations))

		for _, alloc := range plan.Allocations {
			if err := repos.BatchRepo().DecrementRemaining(ctx, alloc.BatchID, alloc.RemainingAfter, versions[alloc.BatchID]); err != nil {
				return err
			}

			movement, err := stock.NewStockMovement(
				tenantID, req.LocationID, req.ProductID,
				req.MovementType,
				alloc.Quantity.Neg(),
				remainings[alloc.BatchID],
				alloc.RemainingAfter,
				alloc.UnitCost,
			)
			if err != nil {
				return err
			}
			movement.WithBatchID(alloc.BatchID)
			if req.ReferenceType != "" {
				movement.WithReference(req.ReferenceType, req.ReferenceID)
			}
			if req.Notes != "" {
				movement.WithNotes(req.Notes)
			}
			if req.ActorID != nil {
				movement.WithActorID(*req.ActorID)
			}
			movements = append(movements, movement)

			consumed = append(consumed, ConsumedBatch{
				BatchID:     alloc.BatchID,
				BatchNumber: alloc.BatchNumber,
				Quantity:    alloc.Quantity,
				UnitCost:    alloc.UnitCost,
				TotalCost:   alloc.TotalCost,
				Depleted:    alloc.FullyConsumed,
			})
		}

		if err := repos.MovementRepo().CreateBatch(ctx, movements); err != nil {
			return err
		}

		movementResults := make([]MovementResult, 0, len(movements))
		for _, m := range movements {
			movementResults = append(movementResults, MovementResult{
				MovementID:     m.ID,
				BatchID:        m.BatchID,
				Quantity:       m.Quantity,
				QuantityBefore: m.QuantityBefore,
				QuantityAfter:  m.QuantityAfter,
			})
		}

		result = &ConsumptionResult{
			Success:             plan.FullyFulfilled,
			TotalConsumed:       plan.TotalConsumed,
			Shortfall:           plan.Shortfall,
			TotalCost:           plan.TotalCost,
			WeightedAverageCost: plan.WeightedAverageCost,
			ConsumedBatches:     consumed,
			Movements:           movementResults,
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// MarkExpired flags every batch of the product at the location whose expiry
// date has passed (date-only comparison). Idempotent; exposed standalone for
// alerting and reporting besides its implicit invocation before selections.
func (s *StockService) MarkExpired(ctx context.Context, tenantID, locationID, productID uuid.UUID, asOf time.Time) (int64, error) {
	if asOf.IsZero() {
		asOf = time.Now()
	}
	count, err := s.batchRepo.MarkExpired(ctx, tenantID, locationID, productID, asOf)
	if err != nil {
		return 0, err
	}
	if count > 0 {
		s.logger.Info("batches marked expired",
			zap.String("location_id", locationID.String()),
			zap.String("product_id", productID.String()),
			zap.Int64("count", count),
		)
	}
	return count, nil
}

// CheckAvailability reports whether the requested quantity is covered by
// eligible stock, along with the current total and any shortfall.
func (s *StockService) CheckAvailability(ctx context.Context, tenantID, locationID, productID uuid.UUID, requested decimal.Decimal) (*AvailabilityResult, error) {
	if requested.LessThanOrEqual(decimal.Zero) {
		return nil, shared.NewDomainError("INVALID_QUANTITY", "Quantity must be positive")
	}

	current, err := s.GetAvailableQuantity(ctx, tenantID, locationID, productID)
	if err != nil {
		return nil, err
	}

	shortfall := decimal.Max(decimal.Zero, requested.Sub(current))
	return &AvailabilityResult{
		Available:    current.GreaterThanOrEqual(requested),
		CurrentStock: current,
		Shortfall:    shortfall,
	}, nil
}

// GetAvailableQuantity sums remaining quantity across eligible batches.
// This is the "system quantity" baseline used by reporting and audits.
func (s *StockService) GetAvailableQuantity(ctx context.Context, tenantID, locationID, productID uuid.UUID) (decimal.Decimal, error) {
	if _, err := s.batchRepo.MarkExpired(ctx, tenantID, locationID, productID, time.Now()); err != nil {
		return decimal.Zero, err
	}
	batches, err := s.batchRepo.FindEligible(ctx, tenantID, locationID, productID)
	if err != nil {
		return decimal.Zero, err
	}
	return stock.TotalAvailable(batches), nil
}

// GetWeightedAverageCost computes the quantity-weighted mean unit cost over
// eligible batches; zero when no eligible stock exists.
func (s *StockService) GetWeightedAverageCost(ctx context.Context, tenantID, locationID, productID uuid.UUID) (decimal.Decimal, error) {
	if _, err := s.batchRepo.MarkExpired(ctx, tenantID, locationID, productID, time.Now()); err != nil {
		return decimal.Zero, err
	}
	batches, err := s.batchRepo.FindEligible(ctx, tenantID, locationID, productID)
	if err != nil {
		return decimal.Zero, err
	}
	return stock.WeightedAverageCost(batches), nil
}

// GetValuation reports the current cost position of a product at a location:
// eligible quantity, its total value at receipt costs, and the weighted
// average unit cost.
func (s *StockService) GetValuation(ctx context.Context, tenantID, locationID, productID uuid.UUID) (*ValuationResult, error) {
	if _, err := s.batchRepo.MarkExpired(ctx, tenantID, locationID, productID, time.Now()); err != nil {
		return nil, err
	}
	batches, err := s.batchRepo.FindEligible(ctx, tenantID, locationID, productID)
	if err != nil {
		return nil, err
	}
	return &ValuationResult{
		TotalQuantity:       stock.TotalAvailable(batches),
		TotalValue:          stock.TotalStockValue(batches),
		WeightedAverageCost: stock.WeightedAverageCost(batches),
		BatchCount:          len(batches),
	}, nil
}

// ListBatches returns all batches of a product at a location regardless of
// state, receipt date ascending, for history and reporting.
func (s *StockService) ListBatches(ctx context.Context, tenantID, locationID, productID uuid.UUID) ([]BatchResponse, error) {
	batches, err := s.batchRepo.FindByLocationAndProduct(ctx, tenantID, locationID, productID)
	if err != nil {
		return nil, err
	}
	responses := make([]BatchResponse, 0, len(batches))
	for i := range batches {
		responses = append(responses, ToBatchResponse(&batches[i]))
	}
	return responses, nil
}

// BatchDetail couples a batch with its full movement history
type BatchDetail struct {
	Batch     BatchResponse      `json:"batch"`
	Movements []MovementResponse `json:"movements"`
}

// GetBatch returns a single batch with the ledger entries recorded against
// it. Batches of other tenants are reported as not found.
func (s *StockService) GetBatch(ctx context.Context, tenantID, id uuid.UUID) (*BatchDetail, error) {
	batch, err := s.batchRepo.FindByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if batch.TenantID != tenantID {
		return nil, shared.ErrNotFound
	}
	movements, err := s.movementRepo.FindByBatch(ctx, id)
	if err != nil {
		return nil, err
	}

	detail := &BatchDetail{
		Batch:     ToBatchResponse(batch),
		Movements: make([]MovementResponse, 0, len(movements)),
	}
	for i := range movements {
		detail.Movements = append(detail.Movements, ToMovementResponse(&movements[i]))
	}
	return detail, nil
}

// ListExpiringSoon returns eligible batches expiring within the window,
// for alerting collaborators.
func (s *StockService) ListExpiringSoon(ctx context.Context, tenantID uuid.UUID, withinDays int) ([]BatchResponse, error) {
	if withinDays <= 0 {
		return nil, shared.NewDomainError("INVALID_INPUT", "Expiry window must be positive")
	}
	batches, err := s.batchRepo.FindExpiringSoon(ctx, tenantID, withinDays)
	if err != nil {
		return nil, err
	}
	responses := make([]BatchResponse, 0, len(batches))
	for i := range batches {
		responses = append(responses, ToBatchResponse(&batches[i]))
	}
	return responses, nil
}

// ListMovements lists ledger entries for a location with optional product,
// type-set and date-range filters. Paginated, newest-first by default.
func (s *StockService) ListMovements(ctx context.Context, tenantID, locationID uuid.UUID, filter MovementListFilter) (*shared.Paginated[MovementResponse], error) {
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize < 1 || pageSize > 100 {
		pageSize = 20
	}

	repoFilter := stock.MovementFilter{
		Filter: shared.Filter{
			Page:     page,
			PageSize: pageSize,
			OrderBy:  "occurred_at",
			OrderDir: "desc",
		},
		ProductID:     filter.ProductID,
		BatchID:       filter.BatchID,
		MovementTypes: filter.MovementTypes,
		ReferenceType: filter.ReferenceType,
		ReferenceID:   filter.ReferenceID,
		StartDate:     filter.StartDate,
		EndDate:       filter.EndDate,
	}

	movements, total, err := s.movementRepo.FindByLocation(ctx, tenantID, locationID, repoFilter)
	if err != nil {
		return nil, err
	}

	responses := make([]MovementResponse, 0, len(movements))
	for i := range movements {
		responses = append(responses, ToMovementResponse(&movements[i]))
	}
	paginated := shared.NewPaginated(responses, total, page, pageSize)
	return &paginated, nil
}
