package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/fekuna/stockholm-inventory-service/internal/item"
	"github.com/fekuna/stockholm-inventory-service/internal/item/dto"
	"github.com/fekuna/stockholm-inventory-service/internal/model"
	"github.com/fekuna/stockholm-inventory-service/internal/pkg/database/postgres"
	"github.com/fekuna/stockholm-inventory-service/internal/variant"
	"github.com/jmoiron/sqlx"
)

const variantSKUConstraint = "item_variants_item_sku_key"

// variantTotals is joined into list queries so quantities are summed in SQL.
const variantTotals = `
	LEFT JOIN (
		SELECT item_id, COUNT(*) AS variant_count, COALESCE(SUM(qty), 0) AS variant_qty
		FROM item_variants
		GROUP BY item_id
	) vt ON vt.item_id = i.id`

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) FindByID(ctx context.Context, merchantID, id string) (*model.Item, error) {
	var it model.Item
	query := `SELECT * FROM items WHERE id = $1 AND merchant_id = $2 LIMIT 1`
	err := r.DB.GetContext(ctx, &it, query, id, merchantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &it, nil
}

func (r *PGRepository) FindVariants(ctx context.Context, itemID string) ([]model.ItemVariant, error) {
	var variants []model.ItemVariant
	query := `SELECT * FROM item_variants WHERE item_id = $1 ORDER BY position, created_at`
	if err := r.DB.SelectContext(ctx, &variants, query, itemID); err != nil {
		return nil, err
	}
	return variants, nil
}

func (r *PGRepository) FindAll(ctx context.Context, f *dto.ItemFilters) ([]model.ItemSummary, int, error) {
	var items []model.ItemSummary
	var count int

	conditions := []string{}
	args := map[string]interface{}{}

	if f.MerchantID != "" {
		conditions = append(conditions, "i.merchant_id = :merchant_id")
		args["merchant_id"] = f.MerchantID
	}
	if f.SearchQuery != "" {
		conditions = append(conditions, "(i.name ILIKE :search OR i.sku ILIKE :search)")
		args["search"] = "%" + f.SearchQuery + "%"
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT count(*) FROM items i" + whereClause
	rows, err := r.DB.NamedQueryContext(ctx, countQuery, args)
	if err != nil {
		return nil, 0, err
	}
	if rows.Next() {
		if err := rows.Scan(&count); err != nil {
			rows.Close()
			return nil, 0, err
		}
	}
	rows.Close()

	orderBy := "i.updated_at DESC"
	if f.SortBy != "" {
		// whitelist only
		switch f.SortBy {
		case "name":
			orderBy = "i.name"
		case "quantity":
			orderBy = "CASE WHEN COALESCE(vt.variant_count, 0) > 0 THEN vt.variant_qty ELSE i.quantity END"
		default:
			orderBy = "i.updated_at"
		}
		if strings.ToLower(f.SortOrder) == "asc" {
			orderBy += " ASC"
		} else {
			orderBy += " DESC"
		}
	}

	query := fmt.Sprintf(`SELECT i.*,
		COALESCE(vt.variant_count, 0) AS variant_count,
		COALESCE(vt.variant_qty, 0) AS variant_qty
	FROM items i%s%s ORDER BY %s`, variantTotals, whereClause, orderBy)

	if f.PageSize > 0 {
		page := f.Page
		if page < 1 {
			page = 1
		}
		query += fmt.Sprintf(" LIMIT %d OFFSET %d", f.PageSize, (page-1)*f.PageSize)
	}

	nstmt, err := r.DB.PrepareNamedContext(ctx, query)
	if err != nil {
		return nil, 0, err
	}
	defer nstmt.Close()

	if err := nstmt.SelectContext(ctx, &items, args); err != nil {
		return nil, 0, err
	}

	return items, count, nil
}

func (r *PGRepository) FindSummariesByIDs(ctx context.Context, merchantID string, ids []string) ([]model.ItemSummary, error) {
	if len(ids) == 0 {
		return nil, nil
	}

	query, args, err := sqlx.In(`SELECT i.*,
		COALESCE(vt.variant_count, 0) AS variant_count,
		COALESCE(vt.variant_qty, 0) AS variant_qty
	FROM items i`+variantTotals+` WHERE i.merchant_id = ? AND i.id IN (?)`, merchantID, ids)
	if err != nil {
		return nil, err
	}

	var items []model.ItemSummary
	if err := r.DB.SelectContext(ctx, &items, r.DB.Rebind(query), args...); err != nil {
		return nil, err
	}
	return items, nil
}

func (r *PGRepository) CreateWithVariants(ctx context.Context, it *model.Item, variants []model.ItemVariant) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
        INSERT INTO items (
            id, merchant_id, name, sku, quantity, low_stock_threshold, options, created_at, updated_at
        )
        VALUES (
            :id, :merchant_id, :name, :sku, :quantity, :low_stock_threshold, :options, :created_at, :updated_at
        )
    `
	if _, err := tx.NamedExecContext(ctx, query, it); err != nil {
		return err
	}
	if err := insertVariants(ctx, tx, variants); err != nil {
		return err
	}

	return tx.Commit()
}

// UpdateWithVariants saves the item's fields and replaces its variant set.
// Rows whose id is in variants are updated in place, so stock movements keep
// pointing at them; rows missing from variants are deleted.
func (r *PGRepository) UpdateWithVariants(ctx context.Context, it *model.Item, variants []model.ItemVariant) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	query := `
        UPDATE items
        SET name = :name,
            sku = :sku,
            quantity = :quantity,
            low_stock_threshold = :low_stock_threshold,
            options = :options,
            updated_at = :updated_at
        WHERE id = :id AND merchant_id = :merchant_id
    `
	res, err := tx.NamedExecContext(ctx, query, it)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return item.ErrItemNotFound
	}

	if err := deleteOtherVariants(ctx, tx, it.ID, variants); err != nil {
		return err
	}
	if len(variants) > 0 {
		// Kept rows may trade SKUs; clearing them first keeps the unique
		// index satisfied while the batch is applied row by row.
		if _, err := tx.ExecContext(ctx, `UPDATE item_variants SET sku = NULL WHERE item_id = $1`, it.ID); err != nil {
			return err
		}
	}
	if err := insertVariants(ctx, tx, variants); err != nil {
		return err
	}

	return tx.Commit()
}

func deleteOtherVariants(ctx context.Context, tx *sqlx.Tx, itemID string, keep []model.ItemVariant) error {
	if len(keep) == 0 {
		_, err := tx.ExecContext(ctx, `DELETE FROM item_variants WHERE item_id = $1`, itemID)
		return err
	}

	ids := make([]string, 0, len(keep))
	for _, v := range keep {
		ids = append(ids, v.ID)
	}
	query, args, err := sqlx.In(`DELETE FROM item_variants WHERE item_id = ? AND id NOT IN (?)`, itemID, ids)
	if err != nil {
		return err
	}
	_, err = tx.ExecContext(ctx, tx.Rebind(query), args...)
	return err
}

func (r *PGRepository) Delete(ctx context.Context, merchantID, id string) error {
	res, err := r.DB.ExecContext(ctx, "DELETE FROM items WHERE id = $1 AND merchant_id = $2", id, merchantID)
	if err != nil {
		return err
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return item.ErrItemNotFound
	}
	return nil
}

// insertVariants writes the rows in one batch statement. A row whose id
// already exists is updated, keeping its created_at.
func insertVariants(ctx context.Context, tx *sqlx.Tx, variants []model.ItemVariant) error {
	if len(variants) == 0 {
		return nil
	}
	query := `
        INSERT INTO item_variants (id, item_id, attrs, qty, sku, position, created_at, updated_at)
        VALUES (:id, :item_id, :attrs, :qty, :sku, :position, :created_at, :updated_at)
        ON CONFLICT (id) DO UPDATE
        SET attrs = EXCLUDED.attrs,
            qty = EXCLUDED.qty,
            sku = EXCLUDED.sku,
            position = EXCLUDED.position,
            updated_at = EXCLUDED.updated_at
    `
	if _, err := tx.NamedExecContext(ctx, query, variants); err != nil {
		if postgres.IsUniqueViolation(err, variantSKUConstraint) {
			return &variant.DuplicateSKUError{}
		}
		return fmt.Errorf("insert variants: %w", err)
	}
	return nil
}
