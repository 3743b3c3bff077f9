package item

import (
	"context"

	"github.com/fekuna/stockholm-inventory-service/internal/item/dto"
	"github.com/fekuna/stockholm-inventory-service/internal/model"
)

type Repository interface {
	// FindByID returns nil, nil when the item does not exist for the merchant.
	FindByID(ctx context.Context, merchantID, id string) (*model.Item, error)
	FindVariants(ctx context.Context, itemID string) ([]model.ItemVariant, error)
	FindAll(ctx context.Context, filters *dto.ItemFilters) ([]model.ItemSummary, int, error)
	// FindSummariesByIDs loads list rows for search hits, in no particular
	// order. Ids that no longer exist for the merchant are left out.
	FindSummariesByIDs(ctx context.Context, merchantID string, ids []string) ([]model.ItemSummary, error)

	// Create and Update write the item row and replace its whole variant set
	// in one transaction.
	CreateWithVariants(ctx context.Context, item *model.Item, variants []model.ItemVariant) error
	UpdateWithVariants(ctx context.Context, item *model.Item, variants []model.ItemVariant) error
	Delete(ctx context.Context, merchantID, id string) error
}
