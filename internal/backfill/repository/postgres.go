package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/fekuna/stockholm-inventory-service/internal/backfill"
	"github.com/fekuna/stockholm-inventory-service/internal/model"
	"github.com/jmoiron/sqlx"
	"github.com/jmoiron/sqlx/types"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) ListCandidates(ctx context.Context) ([]model.Item, error) {
	var items []model.Item
	query := `
        SELECT i.* FROM items i
        WHERE NOT EXISTS (SELECT 1 FROM item_variants v WHERE v.item_id = i.id)
        ORDER BY i.created_at, i.id
    `
	if err := r.DB.SelectContext(ctx, &items, query); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *PGRepository) MigrateItem(ctx context.Context, itemID string, options []byte, variants []model.ItemVariant) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var locked string
	if err := tx.GetContext(ctx, &locked, `SELECT id FROM items WHERE id = $1 FOR UPDATE`, itemID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return fmt.Errorf("item %s disappeared: %w", itemID, err)
		}
		return err
	}

	var existing int
	if err := tx.GetContext(ctx, &existing, `SELECT count(*) FROM item_variants WHERE item_id = $1`, itemID); err != nil {
		return err
	}
	if existing > 0 {
		return backfill.ErrAlreadyMigrated
	}

	if len(variants) > 0 {
		query := `
            INSERT INTO item_variants (id, item_id, attrs, qty, sku, position, created_at, updated_at)
            VALUES (:id, :item_id, :attrs, :qty, :sku, :position, :created_at, :updated_at)
        `
		if _, err := tx.NamedExecContext(ctx, query, variants); err != nil {
			return fmt.Errorf("insert variants: %w", err)
		}
	}

	if _, err := tx.ExecContext(ctx, `UPDATE items SET options = $1, updated_at = NOW() WHERE id = $2`,
		types.JSONText(options), itemID); err != nil {
		return fmt.Errorf("update options: %w", err)
	}

	return tx.Commit()
}
