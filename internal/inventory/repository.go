package inventory

import (
	"context"

	"github.com/fekuna/stockholm-inventory-service/internal/inventory/dto"
	"github.com/fekuna/stockholm-inventory-service/internal/model"
)

type Repository interface {
	// ListStockLevels returns every item with a threshold configured, with its
	// variant totals. An empty merchantID means all merchants.
	ListStockLevels(ctx context.Context, merchantID string) ([]model.StockLevel, error)

	FindItem(ctx context.Context, merchantID, itemID string) (*model.Item, error)
	FindVariantBySKU(ctx context.Context, itemID, sku string) (*model.ItemVariant, error)
	CountVariants(ctx context.Context, itemID string) (int, error)

	// AdjustStockWithMovement moves the target from QuantityBefore to
	// QuantityAfter and records the movement in one transaction. It fails with
	// ErrConcurrentUpdate if the stored quantity is no longer QuantityBefore.
	AdjustStockWithMovement(ctx context.Context, movement *model.StockMovement) error

	ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockMovement, int, error)
}
