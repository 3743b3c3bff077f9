package inventory

import (
	"context"

	"github.com/fekuna/stockholm-inventory-service/internal/inventory/dto"
	"github.com/fekuna/stockholm-inventory-service/internal/model"
)

type UseCase interface {
	// Sweep re-evaluates low stock for every merchant and refreshes the
	// cached badge counts. Cache failures are logged, never returned.
	Sweep(ctx context.Context) (*dto.SweepResult, error)
	LowStockCount(ctx context.Context, merchantID string) (int, error)
	ListLowStock(ctx context.Context, merchantID string) ([]model.StockLevel, error)

	AdjustStock(ctx context.Context, input *dto.AdjustStockInput) (*model.StockMovement, error)
	ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockMovement, int, error)
}
