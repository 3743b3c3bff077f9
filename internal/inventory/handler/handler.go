package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/fekuna/stockholm-inventory-service/internal/auth"
	"github.com/fekuna/stockholm-inventory-service/internal/inventory"
	"github.com/fekuna/stockholm-inventory-service/internal/inventory/dto"
	"github.com/fekuna/stockholm-inventory-service/internal/item"
	"github.com/fekuna/stockholm-inventory-service/internal/pkg/logger"
	"github.com/fekuna/stockholm-inventory-service/internal/variant"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

type InventoryHandler struct {
	uc     inventory.UseCase
	logger logger.ZapLogger
}

func NewInventoryHandler(uc inventory.UseCase, log logger.ZapLogger) *InventoryHandler {
	return &InventoryHandler{
		uc:     uc,
		logger: log,
	}
}

// RegisterRoutes mounts the merchant-scoped routes; rg must run JWTAuth.
func (h *InventoryHandler) RegisterRoutes(rg *gin.RouterGroup) {
	inv := rg.Group("/inventory")
	inv.GET("/low-stock", h.ListLowStock)
	inv.GET("/low-stock/count", h.LowStockCount)
	inv.POST("/adjust", h.AdjustStock)
	inv.GET("/items/:id/movements", h.ListMovements)
}

// Sweep is the scheduler trigger. Mount it behind CronAuth.
func (h *InventoryHandler) Sweep(c *gin.Context) {
	res, err := h.uc.Sweep(c.Request.Context())
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, res)
}

func (h *InventoryHandler) ListLowStock(c *gin.Context) {
	items, err := h.uc.ListLowStock(c.Request.Context(), auth.GetMerchantID(c.Request.Context()))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "total": len(items)})
}

func (h *InventoryHandler) LowStockCount(c *gin.Context) {
	n, err := h.uc.LowStockCount(c.Request.Context(), auth.GetMerchantID(c.Request.Context()))
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"count": n})
}

type adjustRequest struct {
	ItemID      string `json:"item_id" binding:"required"`
	SKU         string `json:"sku"`
	Delta       int    `json:"delta"`
	Reason      string `json:"reason"`
	ReferenceID string `json:"reference_id"`
}

func (h *InventoryHandler) AdjustStock(c *gin.Context) {
	var req adjustRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	itemID, err := uuid.Parse(req.ItemID)
	if err != nil {
		h.writeError(c, item.ErrItemNotFound)
		return
	}

	ctx := c.Request.Context()
	movement, err := h.uc.AdjustStock(ctx, &dto.AdjustStockInput{
		MerchantID:   auth.GetMerchantID(ctx),
		ItemID:       itemID.String(),
		SKU:          req.SKU,
		Delta:        req.Delta,
		MovementType: dto.MovementAdjustment,
		Reason:       req.Reason,
		ReferenceID:  req.ReferenceID,
		UserID:       auth.GetUserID(ctx),
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, movement)
}

func (h *InventoryHandler) ListMovements(c *gin.Context) {
	itemID, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.writeError(c, item.ErrItemNotFound)
		return
	}
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", "50"))
	if pageSize < 1 || pageSize > 200 {
		pageSize = 50
	}

	movements, total, err := h.uc.ListMovements(c.Request.Context(), &dto.MovementFilters{
		MerchantID: auth.GetMerchantID(c.Request.Context()),
		ItemID:     itemID.String(),
		Page:       page,
		PageSize:   pageSize,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"movements": movements, "total": total})
}

func (h *InventoryHandler) writeError(c *gin.Context, err error) {
	var ve *variant.ValidationError
	switch {
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error(), "field": ve.Field})
	case errors.Is(err, item.ErrItemNotFound), errors.Is(err, inventory.ErrVariantNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	case errors.Is(err, inventory.ErrInsufficientStock), errors.Is(err, inventory.ErrConcurrentUpdate):
		c.JSON(http.StatusConflict, gin.H{"error": err.Error()})
	case errors.Is(err, inventory.ErrStockBusy):
		c.JSON(http.StatusServiceUnavailable, gin.H{"error": err.Error()})
	default:
		h.logger.Error("inventory request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
