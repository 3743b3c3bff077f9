package handler

import (
	"net/http"

	"github.com/fekuna/stockholm-inventory-service/internal/backfill"
	"github.com/fekuna/stockholm-inventory-service/internal/pkg/logger"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

type BackfillHandler struct {
	uc     backfill.UseCase
	logger logger.ZapLogger
}

func NewBackfillHandler(uc backfill.UseCase, log logger.ZapLogger) *BackfillHandler {
	return &BackfillHandler{
		uc:     uc,
		logger: log,
	}
}

// Run triggers the legacy variant migration. Mount it behind an admin check.
func (h *BackfillHandler) Run(c *gin.Context) {
	res, err := h.uc.Run(c.Request.Context())
	if err != nil {
		h.logger.Error("backfill failed", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "backfill failed"})
		return
	}
	c.JSON(http.StatusOK, res)
}
