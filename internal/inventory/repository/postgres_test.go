package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/fekuna/stockholm-inventory-service/internal/inventory"
	"github.com/fekuna/stockholm-inventory-service/internal/model"
	"github.com/jmoiron/sqlx"
)

func newMockRepo(t *testing.T) (*PGRepository, sqlmock.Sqlmock) {
	t.Helper()
	db, mock, err := sqlmock.New()
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { db.Close() })
	return NewPGRepository(sqlx.NewDb(db, "pgx")), mock
}

func TestListStockLevels(t *testing.T) {
	repo, mock := newMockRepo(t)
	mock.ExpectQuery(`FROM items i\s+LEFT JOIN .* WHERE i.low_stock_threshold > 0`).
		WithArgs("").
		WillReturnRows(sqlmock.NewRows([]string{
			"id", "merchant_id", "name", "quantity", "low_stock_threshold", "variant_count", "variant_qty",
		}).AddRow("i1", "m1", "Tee", 100, 5, 2, 3))

	levels, err := repo.ListStockLevels(context.Background(), "")
	if err != nil {
		t.Fatal(err)
	}
	if len(levels) != 1 || levels[0].VariantQty != 3 || levels[0].ItemID != "i1" {
		t.Errorf("levels = %+v", levels)
	}
}

func TestAdjustStockWithMovementVariant(t *testing.T) {
	repo, mock := newMockRepo(t)
	variantID := "v1"
	m := &model.StockMovement{
		ID: "mv1", MerchantID: "m1", ItemID: "i1", VariantID: &variantID,
		MovementType: "sale", QuantityChange: -2, QuantityBefore: 5, QuantityAfter: 3,
		CreatedAt: time.Now(),
	}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE item_variants SET qty = \$1, updated_at = \$2 WHERE id = \$3 AND qty = \$4`).
		WithArgs(3, sqlmock.AnyArg(), "v1", 5).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`INSERT INTO stock_movements`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.AdjustStockWithMovement(context.Background(), m); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestAdjustStockWithMovementDetectsConcurrentChange(t *testing.T) {
	repo, mock := newMockRepo(t)
	m := &model.StockMovement{ID: "mv1", ItemID: "i1", QuantityBefore: 5, QuantityAfter: 6, CreatedAt: time.Now()}

	mock.ExpectBegin()
	mock.ExpectExec(`UPDATE items SET quantity = \$1`).
		WithArgs(6, sqlmock.AnyArg(), "i1", 5).
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	err := repo.AdjustStockWithMovement(context.Background(), m)
	if !errors.Is(err, inventory.ErrConcurrentUpdate) {
		t.Fatalf("err = %v, want ErrConcurrentUpdate", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
