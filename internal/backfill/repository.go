package backfill

import (
	"context"
	"errors"

	"github.com/fekuna/stockholm-inventory-service/internal/model"
)

// ErrAlreadyMigrated means variant rows appeared for the item after it was
// listed, typically because another run got there first.
var ErrAlreadyMigrated = errors.New("item already has variant rows")

type Repository interface {
	// ListCandidates returns every item without variant rows.
	ListCandidates(ctx context.Context) ([]model.Item, error)
	// MigrateItem inserts variants and sets options in one transaction,
	// holding the item row lock and re-checking that it has no variants.
	MigrateItem(ctx context.Context, itemID string, options []byte, variants []model.ItemVariant) error
}
