package item

import (
	"context"

	"github.com/fekuna/stockholm-inventory-service/internal/item/dto"
)

type UseCase interface {
	GetItem(ctx context.Context, merchantID, id string) (*dto.ItemDetail, error)
	ListItems(ctx context.Context, filters *dto.ItemFilters) ([]dto.ItemListEntry, int, error)
	CreateItem(ctx context.Context, input *dto.CreateItemInput) (*dto.ItemDetail, error)
	UpdateItem(ctx context.Context, input *dto.UpdateItemInput) (*dto.ItemDetail, error)
	DeleteItem(ctx context.Context, merchantID, id string) error

	// PreviewVariants runs the form builder step: generate combinations,
	// merge the session's variant state and materialize the replace-set.
	PreviewVariants(ctx context.Context, input *dto.PreviewVariantsInput) (*dto.VariantPreview, error)
}
