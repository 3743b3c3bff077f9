package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/fekuna/stockholm-inventory-service/internal/inventory"
	"github.com/fekuna/stockholm-inventory-service/internal/inventory/dto"
	"github.com/fekuna/stockholm-inventory-service/internal/model"
	"github.com/jmoiron/sqlx"
)

type PGRepository struct {
	DB *sqlx.DB
}

func NewPGRepository(db *sqlx.DB) *PGRepository {
	return &PGRepository{DB: db}
}

func (r *PGRepository) ListStockLevels(ctx context.Context, merchantID string) ([]model.StockLevel, error) {
	var levels []model.StockLevel
	query := `
        SELECT i.id, i.merchant_id, i.name, i.quantity, i.low_stock_threshold,
            COALESCE(vt.variant_count, 0) AS variant_count,
            COALESCE(vt.variant_qty, 0) AS variant_qty
        FROM items i
        LEFT JOIN (
            SELECT item_id, COUNT(*) AS variant_count, COALESCE(SUM(qty), 0) AS variant_qty
            FROM item_variants
            GROUP BY item_id
        ) vt ON vt.item_id = i.id
        WHERE i.low_stock_threshold > 0 AND ($1 = '' OR i.merchant_id = $1)
        ORDER BY i.merchant_id, i.name
    `
	if err := r.DB.SelectContext(ctx, &levels, query, merchantID); err != nil {
		return nil, err
	}
	return levels, nil
}

func (r *PGRepository) FindItem(ctx context.Context, merchantID, itemID string) (*model.Item, error) {
	var it model.Item
	err := r.DB.GetContext(ctx, &it, `SELECT * FROM items WHERE id = $1 AND merchant_id = $2 LIMIT 1`, itemID, merchantID)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &it, nil
}

func (r *PGRepository) FindVariantBySKU(ctx context.Context, itemID, sku string) (*model.ItemVariant, error) {
	var v model.ItemVariant
	err := r.DB.GetContext(ctx, &v, `SELECT * FROM item_variants WHERE item_id = $1 AND sku = $2 LIMIT 1`, itemID, sku)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, err
	}
	return &v, nil
}

func (r *PGRepository) CountVariants(ctx context.Context, itemID string) (int, error) {
	var n int
	err := r.DB.GetContext(ctx, &n, `SELECT count(*) FROM item_variants WHERE item_id = $1`, itemID)
	return n, err
}

func (r *PGRepository) AdjustStockWithMovement(ctx context.Context, m *model.StockMovement) error {
	tx, err := r.DB.BeginTxx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	// 1. Update quantity, guarded by the value the caller read
	var res sql.Result
	if m.VariantID != nil {
		res, err = tx.ExecContext(ctx,
			`UPDATE item_variants SET qty = $1, updated_at = $2 WHERE id = $3 AND qty = $4`,
			m.QuantityAfter, m.CreatedAt, *m.VariantID, m.QuantityBefore)
	} else {
		res, err = tx.ExecContext(ctx,
			`UPDATE items SET quantity = $1, updated_at = $2 WHERE id = $3 AND quantity = $4`,
			m.QuantityAfter, m.CreatedAt, m.ItemID, m.QuantityBefore)
	}
	if err != nil {
		return fmt.Errorf("failed to update stock: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return inventory.ErrConcurrentUpdate
	}

	// 2. Log movement
	insertLogQuery := `
        INSERT INTO stock_movements (
            id, merchant_id, item_id, variant_id,
            movement_type, quantity_change, quantity_before, quantity_after,
            reference_id, notes, created_by, created_at
        )
        VALUES (
            :id, :merchant_id, :item_id, :variant_id,
            :movement_type, :quantity_change, :quantity_before, :quantity_after,
            :reference_id, :notes, :created_by, :created_at
        )
    `
	if _, err := tx.NamedExecContext(ctx, insertLogQuery, m); err != nil {
		return fmt.Errorf("failed to log movement: %w", err)
	}

	return tx.Commit()
}

func (r *PGRepository) ListMovements(ctx context.Context, f *dto.MovementFilters) ([]model.StockMovement, int, error) {
	var movements []model.StockMovement
	var count int

	conditions := []string{}
	args := map[string]interface{}{}

	if f.MerchantID != "" {
		conditions = append(conditions, "merchant_id = :merchant_id")
		args["merchant_id"] = f.MerchantID
	}
	if f.ItemID != "" {
		conditions = append(conditions, "item_id = :item_id")
		args["item_id"] = f.ItemID
	}
	if f.StartDate != nil {
		conditions = append(conditions, "created_at >= :start_date")
		args["start_date"] = *f.StartDate
	}
	if f.EndDate != nil {
		conditions = append(conditions, "created_at < :end_date")
		args["end_date"] = *f.EndDate
	}

	whereClause := ""
	if len(conditions) > 0 {
		whereClause = " WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := "SELECT count(*) FROM stock_movements" + whereClause
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

	query := "SELECT * FROM stock_movements" + whereClause + " ORDER BY created_at DESC"
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

	err = nstmt.SelectContext(ctx, &movements, args)
	return movements, count, err
}
