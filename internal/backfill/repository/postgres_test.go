package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/fekuna/stockholm-inventory-service/internal/backfill"
	"github.com/fekuna/stockholm-inventory-service/internal/model"
	"github.com/fekuna/stockholm-inventory-service/internal/variant"
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

func TestMigrateItem(t *testing.T) {
	repo, mock := newMockRepo(t)
	v, err := model.NewItemVariant("i1", 0, variant.State{Attrs: map[string]string{"Color": "Blue"}, Qty: 3}, time.Now())
	if err != nil {
		t.Fatal(err)
	}

	mock.ExpectBegin()
	mock.ExpectQuery(`SELECT id FROM items WHERE id = \$1 FOR UPDATE`).
		WithArgs("i1").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("i1"))
	mock.ExpectQuery(`SELECT count\(\*\) FROM item_variants WHERE item_id = \$1`).
		WithArgs("i1").
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(0))
	mock.ExpectExec(`INSERT INTO item_variants`).WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(`UPDATE items SET options = \$1`).
		WithArgs(sqlmock.AnyArg(), "i1").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectCommit()

	if err := repo.MigrateItem(context.Background(), "i1", []byte(`{"Color":["Blue"]}`), []model.ItemVariant{v}); err != nil {
		t.Fatal(err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}

func TestMigrateItemAlreadyMigrated(t *testing.T) {
	repo, mock := newMockRepo(t)

	mock.ExpectBegin()
	mock.ExpectQuery(`FOR UPDATE`).WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow("i1"))
	mock.ExpectQuery(`SELECT count\(\*\) FROM item_variants`).
		WillReturnRows(sqlmock.NewRows([]string{"count"}).AddRow(2))
	mock.ExpectRollback()

	err := repo.MigrateItem(context.Background(), "i1", []byte(`{}`), nil)
	if !errors.Is(err, backfill.ErrAlreadyMigrated) {
		t.Fatalf("err = %v, want ErrAlreadyMigrated", err)
	}
	if err := mock.ExpectationsWereMet(); err != nil {
		t.Error(err)
	}
}
