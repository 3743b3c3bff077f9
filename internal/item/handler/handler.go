package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/fekuna/stockholm-inventory-service/internal/auth"
	"github.com/fekuna/stockholm-inventory-service/internal/item"
	"github.com/fekuna/stockholm-inventory-service/internal/item/dto"
	"github.com/fekuna/stockholm-inventory-service/internal/pkg/logger"
	"github.com/fekuna/stockholm-inventory-service/internal/variant"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type ItemHandler struct {
	uc     item.UseCase
	logger logger.ZapLogger
}

func NewItemHandler(uc item.UseCase, log logger.ZapLogger) *ItemHandler {
	return &ItemHandler{
		uc:     uc,
		logger: log,
	}
}

// RegisterRoutes mounts the item API on rg, which must already run JWTAuth.
func (h *ItemHandler) RegisterRoutes(rg *gin.RouterGroup) {
	items := rg.Group("/items")
	items.GET("", h.ListItems)
	items.POST("", h.CreateItem)
	items.POST("/variants/preview", h.PreviewVariants)
	items.GET("/:id", h.GetItem)
	items.PUT("/:id", h.UpdateItem)
	items.DELETE("/:id", h.DeleteItem)
}

type itemRequest struct {
	Name              string              `json:"name"`
	SKU               string              `json:"sku"`
	Quantity          any                 `json:"quantity"`
	LowStockThreshold int                 `json:"low_stock_threshold"`
	Attributes        []variant.Attribute `json:"attributes"`
	// Variants is either the serialized form field (a string holding a JSON
	// array) or the array itself.
	Variants json.RawMessage `json:"variants"`
}

func (r *itemRequest) fields(merchantID string) (dto.ItemFields, error) {
	payload, err := variantsPayload(r.Variants)
	if err != nil {
		return dto.ItemFields{}, err
	}
	return dto.ItemFields{
		MerchantID:        merchantID,
		Name:              r.Name,
		SKU:               r.SKU,
		Quantity:          variant.CoerceQty(r.Quantity),
		LowStockThreshold: r.LowStockThreshold,
		Attributes:        r.Attributes,
		Variants:          payload,
	}, nil
}

func variantsPayload(raw json.RawMessage) (string, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return "", nil
	}
	if raw[0] == '"' {
		var s string
		if err := json.Unmarshal(raw, &s); err != nil {
			return "", variant.NewValidationError("variants", "invalid string")
		}
		return s, nil
	}
	return string(raw), nil
}

type previewRequest struct {
	Attributes []variant.Attribute `json:"attributes"`
	BaseSKU    string              `json:"base_sku"`
	Variants   []variant.State     `json:"variants"`
	Edits      []dto.VariantEdit   `json:"edits"`
	Quantity   any                 `json:"quantity"`
	Cap        int                 `json:"cap"`
}

func (h *ItemHandler) ListItems(c *gin.Context) {
	page, _ := strconv.Atoi(c.DefaultQuery("page", "1"))
	if page < 1 {
		page = 1
	}
	pageSize, _ := strconv.Atoi(c.DefaultQuery("page_size", strconv.Itoa(defaultPageSize)))
	if pageSize < 1 || pageSize > maxPageSize {
		pageSize = defaultPageSize
	}

	filters := &dto.ItemFilters{
		MerchantID:  auth.GetMerchantID(c.Request.Context()),
		SearchQuery: c.Query("q"),
		SortBy:      c.Query("sort_by"),
		SortOrder:   c.Query("sort_order"),
		Page:        page,
		PageSize:    pageSize,
	}

	entries, total, err := h.uc.ListItems(c.Request.Context(), filters)
	if err != nil {
		h.writeError(c, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items":     entries,
		"total":     total,
		"page":      page,
		"page_size": pageSize,
	})
}

// itemID returns the :id path parameter in canonical form. An id that is not
// a UUID cannot name an item, so it is answered with 404 here.
func (h *ItemHandler) itemID(c *gin.Context) (string, bool) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.writeError(c, item.ErrItemNotFound)
		return "", false
	}
	return id.String(), true
}

func (h *ItemHandler) GetItem(c *gin.Context) {
	id, ok := h.itemID(c)
	if !ok {
		return
	}
	detail, err := h.uc.GetItem(c.Request.Context(), auth.GetMerchantID(c.Request.Context()), id)
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *ItemHandler) CreateItem(c *gin.Context) {
	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	fields, err := req.fields(auth.GetMerchantID(c.Request.Context()))
	if err != nil {
		h.writeError(c, err)
		return
	}

	detail, err := h.uc.CreateItem(c.Request.Context(), &dto.CreateItemInput{ItemFields: fields})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusCreated, detail)
}

func (h *ItemHandler) UpdateItem(c *gin.Context) {
	id, ok := h.itemID(c)
	if !ok {
		return
	}
	var req itemRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}
	fields, err := req.fields(auth.GetMerchantID(c.Request.Context()))
	if err != nil {
		h.writeError(c, err)
		return
	}

	detail, err := h.uc.UpdateItem(c.Request.Context(), &dto.UpdateItemInput{ID: id, ItemFields: fields})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, detail)
}

func (h *ItemHandler) DeleteItem(c *gin.Context) {
	id, ok := h.itemID(c)
	if !ok {
		return
	}
	if err := h.uc.DeleteItem(c.Request.Context(), auth.GetMerchantID(c.Request.Context()), id); err != nil {
		h.writeError(c, err)
		return
	}
	c.Status(http.StatusNoContent)
}

func (h *ItemHandler) PreviewVariants(c *gin.Context) {
	var req previewRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "invalid request body"})
		return
	}

	preview, err := h.uc.PreviewVariants(c.Request.Context(), &dto.PreviewVariantsInput{
		Attributes:   req.Attributes,
		BaseSKU:      req.BaseSKU,
		Variants:     req.Variants,
		Edits:        req.Edits,
		ItemQuantity: variant.CoerceQty(req.Quantity),
		Cap:          req.Cap,
	})
	if err != nil {
		h.writeError(c, err)
		return
	}
	c.JSON(http.StatusOK, preview)
}

func (h *ItemHandler) writeError(c *gin.Context, err error) {
	var dup *variant.DuplicateSKUError
	var ve *variant.ValidationError
	switch {
	case errors.As(err, &dup):
		skus := dup.SKUs
		if skus == nil {
			skus = []string{}
		}
		c.JSON(http.StatusConflict, gin.H{"error": "duplicate SKU", "skus": skus})
	case errors.As(err, &ve):
		c.JSON(http.StatusBadRequest, gin.H{"error": ve.Error(), "field": ve.Field})
	case errors.Is(err, item.ErrItemNotFound):
		c.JSON(http.StatusNotFound, gin.H{"error": err.Error()})
	default:
		h.logger.Error("item request failed", zap.String("path", c.FullPath()), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
