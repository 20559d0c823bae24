package handler

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	appstock "github.com/stockledger/backend/internal/application/stock"
	"github.com/stockledger/backend/internal/domain/stock"
	"github.com/stockledger/backend/internal/interfaces/http/dto"
	"github.com/stockledger/backend/internal/interfaces/http/middleware"
)

// StockHandler exposes the batch ledger over HTTP
type StockHandler struct {
	BaseHandler
	service *appstock.StockService
}

// NewStockHandler creates a new StockHandler
func NewStockHandler(service *appstock.StockService) *StockHandler {
	return &StockHandler{service: service}
}

// RegisterRoutes registers stock routes on the given router group
func (h *StockHandler) RegisterRoutes(rg *gin.RouterGroup) {
	group := rg.Group("/stock")
	{
		group.POST("/batches", h.CreateBatch)
		group.GET("/batches", h.ListBatches)
		group.GET("/batches/expiring", h.ListExpiringSoon)
		group.GET("/batches/:id", h.GetBatch)
		group.POST("/consume", h.Consume)
		group.POST("/expiry/mark", h.MarkExpired)
		group.GET("/availability", h.CheckAvailability)
		group.GET("/valuation", h.GetValuation)
		group.GET("/movements", h.ListMovements)
	}
}

// CreateBatchRequest is the HTTP payload for registering a receipt lot
type CreateBatchRequest struct {
	LocationID    string           `json:"location_id" binding:"required,uuid"`
	ProductID     string           `json:"product_id" binding:"required,uuid"`
	BatchNumber   string           `json:"batch_number" binding:"omitempty,max=100"`
	Quantity      decimal.Decimal  `json:"quantity" binding:"required,gt=0"`
	UnitCost      *decimal.Decimal `json:"unit_cost"`
	ReceivedAt    *time.Time       `json:"received_at"`
	ExpiryDate    *time.Time       `json:"expiry_date"`
	MovementType  string           `json:"movement_type" binding:"omitempty,oneof=RECEIPT ADJUSTMENT TRANSFER_IN RETURN AUDIT"`
	ReferenceType string           `json:"reference_type" binding:"omitempty,max=30"`
	ReferenceID   string           `json:"reference_id" binding:"omitempty,max=50"`
	ActorID       string           `json:"actor_id" binding:"omitempty,uuid"`
	Notes         string           `json:"notes" binding:"omitempty,max=255"`
}

// CreateBatch handles POST /stock/batches
func (h *StockHandler) CreateBatch(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Error(c, 400, dto.ErrCodeTenantRequired, "Tenant context is required")
		return
	}

	var req CreateBatchRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	appReq := appstock.CreateBatchRequest{
		LocationID:    uuid.MustParse(req.LocationID),
		ProductID:     uuid.MustParse(req.ProductID),
		BatchNumber:   req.BatchNumber,
		Quantity:      req.Quantity,
		UnitCost:      req.UnitCost,
		ExpiryDate:    req.ExpiryDate,
		MovementType:  stock.MovementType(req.MovementType),
		ReferenceType: req.ReferenceType,
		ReferenceID:   req.ReferenceID,
		Notes:         req.Notes,
	}
	if req.ReceivedAt != nil {
		appReq.ReceivedAt = *req.ReceivedAt
	}
	if req.ActorID != "" {
		actorID := uuid.MustParse(req.ActorID)
		appReq.ActorID = &actorID
	}

	batch, err := h.service.CreateBatch(c.Request.Context(), tenantID, appReq)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Created(c, batch)
}

// ConsumeStockRequest is the HTTP payload for a FIFO deduction
type ConsumeStockRequest struct {
	LocationID    string          `json:"location_id" binding:"required,uuid"`
	ProductID     string          `json:"product_id" binding:"required,uuid"`
	Quantity      decimal.Decimal `json:"quantity" binding:"required,gt=0"`
	MovementType  string          `json:"movement_type" binding:"required,oneof=SALE CONSUMPTION ADJUSTMENT TRANSFER_OUT AUDIT"`
	AllowPartial  bool            `json:"allow_partial"`
	ReferenceType string          `json:"reference_type" binding:"omitempty,max=30"`
	ReferenceID   string          `json:"reference_id" binding:"omitempty,max=50"`
	ActorID       string          `json:"actor_id" binding:"omitempty,uuid"`
	Notes         string          `json:"notes" binding:"omitempty,max=255"`
}

// Consume handles POST /stock/consume
func (h *StockHandler) Consume(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Error(c, 400, dto.ErrCodeTenantRequired, "Tenant context is required")
		return
	}

	var req ConsumeStockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	appReq := appstock.ConsumeRequest{
		LocationID:    uuid.MustParse(req.LocationID),
		ProductID:     uuid.MustParse(req.ProductID),
		Quantity:      req.Quantity,
		MovementType:  stock.MovementType(req.MovementType),
		AllowPartial:  req.AllowPartial,
		ReferenceType: req.ReferenceType,
		ReferenceID:   req.ReferenceID,
		Notes:         req.Notes,
	}
	if req.ActorID != "" {
		actorID := uuid.MustParse(req.ActorID)
		appReq.ActorID = &actorID
	}

	result, err := h.service.Consume(c.Request.Context(), tenantID, appReq)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// MarkExpiredRequest is the HTTP payload for an explicit expiry sweep
type MarkExpiredRequest struct {
	LocationID string     `json:"location_id" binding:"required,uuid"`
	ProductID  string     `json:"product_id" binding:"required,uuid"`
	AsOf       *time.Time `json:"as_of"`
}

// MarkExpired handles POST /stock/expiry/mark
func (h *StockHandler) MarkExpired(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Error(c, 400, dto.ErrCodeTenantRequired, "Tenant context is required")
		return
	}

	var req MarkExpiredRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	asOf := time.Now()
	if req.AsOf != nil {
		asOf = *req.AsOf
	}

	count, err := h.service.MarkExpired(c.Request.Context(), tenantID,
		uuid.MustParse(req.LocationID), uuid.MustParse(req.ProductID), asOf)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, gin.H{"marked": count})
}

// locationProductQuery binds the common location/product query pair
type locationProductQuery struct {
	LocationID string `form:"location_id" binding:"required,uuid"`
	ProductID  string `form:"product_id" binding:"required,uuid"`
}

// ListBatches handles GET /stock/batches
func (h *StockHandler) ListBatches(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Error(c, 400, dto.ErrCodeTenantRequired, "Tenant context is required")
		return
	}

	var query locationProductQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	batches, err := h.service.ListBatches(c.Request.Context(), tenantID,
		uuid.MustParse(query.LocationID), uuid.MustParse(query.ProductID))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batches)
}

// GetBatch handles GET /stock/batches/:id
func (h *StockHandler) GetBatch(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Error(c, 400, dto.ErrCodeTenantRequired, "Tenant context is required")
		return
	}

	var req dto.IDRequest
	if err := c.ShouldBindUri(&req); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	detail, err := h.service.GetBatch(c.Request.Context(), tenantID, uuid.MustParse(req.ID))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, detail)
}

// ListExpiringSoon handles GET /stock/batches/expiring
func (h *StockHandler) ListExpiringSoon(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Error(c, 400, dto.ErrCodeTenantRequired, "Tenant context is required")
		return
	}

	var query struct {
		WithinDays int `form:"within_days" binding:"omitempty,min=1,max=365"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}
	if query.WithinDays == 0 {
		query.WithinDays = 30
	}

	batches, err := h.service.ListExpiringSoon(c.Request.Context(), tenantID, query.WithinDays)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, batches)
}

// CheckAvailability handles GET /stock/availability
func (h *StockHandler) CheckAvailability(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Error(c, 400, dto.ErrCodeTenantRequired, "Tenant context is required")
		return
	}

	var query struct {
		locationProductQuery
		Quantity decimal.Decimal `form:"quantity" binding:"required"`
	}
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.service.CheckAvailability(c.Request.Context(), tenantID,
		uuid.MustParse(query.LocationID), uuid.MustParse(query.ProductID), query.Quantity)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// GetValuation handles GET /stock/valuation
func (h *StockHandler) GetValuation(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Error(c, 400, dto.ErrCodeTenantRequired, "Tenant context is required")
		return
	}

	var query locationProductQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	result, err := h.service.GetValuation(c.Request.Context(), tenantID,
		uuid.MustParse(query.LocationID), uuid.MustParse(query.ProductID))
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.Success(c, result)
}

// ListMovementsQuery binds the ledger listing filters
type ListMovementsQuery struct {
	dto.ListRequest
	LocationID    string   `form:"location_id" binding:"required,uuid"`
	ProductID     string   `form:"product_id" binding:"omitempty,uuid"`
	BatchID       string   `form:"batch_id" binding:"omitempty,uuid"`
	MovementTypes []string `form:"movement_type"`
	ReferenceType string   `form:"reference_type"`
	ReferenceID   string   `form:"reference_id"`
	StartDate     string   `form:"start_date" binding:"omitempty,datetime=2006-01-02"`
	EndDate       string   `form:"end_date" binding:"omitempty,datetime=2006-01-02"`
}

// ListMovements handles GET /stock/movements
func (h *StockHandler) ListMovements(c *gin.Context) {
	tenantID, err := getTenantID(c)
	if err != nil {
		h.Error(c, 400, dto.ErrCodeTenantRequired, "Tenant context is required")
		return
	}

	var query ListMovementsQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		middleware.HandleValidationError(c, err)
		return
	}

	filter := appstock.MovementListFilter{
		Page:          query.Page,
		PageSize:      query.PageSize,
		ReferenceType: query.ReferenceType,
		ReferenceID:   query.ReferenceID,
	}
	if query.ProductID != "" {
		productID := uuid.MustParse(query.ProductID)
		filter.ProductID = &productID
	}
	if query.BatchID != "" {
		batchID := uuid.MustParse(query.BatchID)
		filter.BatchID = &batchID
	}
	for _, raw := range query.MovementTypes {
		movementType := stock.MovementType(raw)
		if !movementType.IsValid() {
			h.Error(c, 400, dto.ErrCodeValidation, "unknown movement type: "+raw)
			return
		}
		filter.MovementTypes = append(filter.MovementTypes, movementType)
	}
	if query.StartDate != "" {
		start, _ := time.Parse("2006-01-02", query.StartDate)
		filter.StartDate = &start
	}
	if query.EndDate != "" {
		end, _ := time.Parse("2006-01-02", query.EndDate)
		end = end.Add(24*time.Hour - time.Nanosecond) // inclusive end of day
		filter.EndDate = &end
	}

	page, err := h.service.ListMovements(c.Request.Context(), tenantID, uuid.MustParse(query.LocationID), filter)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	h.SuccessWithMeta(c, page.Items, page.Total, page.Page, page.PageSize)
}
