package usecase

import (
	"context"
	"encoding/json"
	"errors"
	"reflect"
	"sort"
	"testing"

	"github.com/alicebob/miniredis/v2"
	"github.com/fekuna/stockholm-inventory-service/internal/backfill"
	"github.com/fekuna/stockholm-inventory-service/internal/model"
	"github.com/fekuna/stockholm-inventory-service/internal/pkg/cache"
	"github.com/fekuna/stockholm-inventory-service/internal/pkg/logger"
	"github.com/jmoiron/sqlx/types"
	"github.com/redis/go-redis/v9"
)

// memRepo keeps items and variant rows in memory and applies the same guard
// as the database: an item with rows is never a candidate.
type memRepo struct {
	items    []model.Item
	variants map[string][]model.ItemVariant
	failFor  map[string]error
}

func newMemRepo(items ...model.Item) *memRepo {
	return &memRepo{items: items, variants: map[string][]model.ItemVariant{}, failFor: map[string]error{}}
}

func (r *memRepo) ListCandidates(context.Context) ([]model.Item, error) {
	var out []model.Item
	for _, it := range r.items {
		if len(r.variants[it.ID]) == 0 {
			out = append(out, it)
		}
	}
	return out, nil
}

func (r *memRepo) MigrateItem(_ context.Context, itemID string, options []byte, variants []model.ItemVariant) error {
	if err := r.failFor[itemID]; err != nil {
		return err
	}
	if len(r.variants[itemID]) > 0 {
		return backfill.ErrAlreadyMigrated
	}
	r.variants[itemID] = variants
	for i := range r.items {
		if r.items[i].ID == itemID {
			r.items[i].Options = types.JSONText(options)
		}
	}
	return nil
}

func (r *memRepo) item(id string) model.Item {
	for _, it := range r.items {
		if it.ID == id {
			return it
		}
	}
	return model.Item{}
}

func legacyItem(id, options string) model.Item {
	return model.Item{BaseModel: model.BaseModel{ID: id}, MerchantID: "m1", Options: types.JSONText(options)}
}

func TestRunIsIdempotent(t *testing.T) {
	repo := newMemRepo(
		legacyItem("a", `{"_variants":[{"attrs":{"Size":"S"},"qty":2},{"attrs":{"Size":"M"},"qty":"5","sku":"A-M"}]}`),
		legacyItem("b", `{"__variants":[{"attrs":{"Color":"Red"},"qty":1}]}`),
		legacyItem("plain", `{"Color":["Red"]}`),
		legacyItem("empty", `{"_variants":[]}`),
		legacyItem("broken", `[1,2]`),
	)
	uc := NewBackfillUseCase(repo, nil, logger.NewNop())

	first, err := uc.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if *first != (backfill.Result{MigratedCount: 2, Skipped: 3}) {
		t.Errorf("first run = %+v", first)
	}
	if len(repo.variants["a"]) != 2 || len(repo.variants["b"]) != 1 {
		t.Fatalf("variants = %v", repo.variants)
	}

	second, err := uc.Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if second.MigratedCount != 0 {
		t.Errorf("second run migrated %d items", second.MigratedCount)
	}
	if len(repo.variants["a"]) != 2 || len(repo.variants["b"]) != 1 {
		t.Errorf("second run duplicated rows: %v", repo.variants)
	}
}

func TestRunMergesOptions(t *testing.T) {
	repo := newMemRepo(legacyItem("a", `{"Color":["Red"],"_variants":[{"attrs":{"Color":"Blue"},"qty":3}]}`))
	uc := NewBackfillUseCase(repo, nil, logger.NewNop())

	if _, err := uc.Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	var opts map[string]any
	if err := json.Unmarshal(repo.item("a").Options, &opts); err != nil {
		t.Fatal(err)
	}
	if _, ok := opts["_variants"]; ok {
		t.Error("_variants survived the backfill")
	}
	var colors []string
	for _, c := range opts["Color"].([]any) {
		colors = append(colors, c.(string))
	}
	sort.Strings(colors)
	if !reflect.DeepEqual(colors, []string{"Blue", "Red"}) {
		t.Errorf("Color = %v", colors)
	}

	rows := repo.variants["a"]
	if len(rows) != 1 {
		t.Fatalf("rows = %d, want 1", len(rows))
	}
	st, err := rows[0].State()
	if err != nil {
		t.Fatal(err)
	}
	if st.Qty != 3 || st.Attrs["Color"] != "Blue" || st.SKU != "" || rows[0].SKU != nil {
		t.Errorf("row = %+v", st)
	}
}

func TestRunContinuesPastFailures(t *testing.T) {
	repo := newMemRepo(
		legacyItem("bad", `{"_variants":[{"attrs":{"Size":"S"},"qty":1}]}`),
		legacyItem("raced", `{"_variants":[{"attrs":{"Size":"S"},"qty":1}]}`),
		legacyItem("good", `{"_variants":[{"attrs":{"Size":"S"},"qty":1}]}`),
	)
	repo.failFor["bad"] = errors.New("connection reset")
	repo.failFor["raced"] = backfill.ErrAlreadyMigrated

	res, err := NewBackfillUseCase(repo, nil, logger.NewNop()).Run(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if *res != (backfill.Result{MigratedCount: 1, Skipped: 1, Failed: 1}) {
		t.Errorf("result = %+v", res)
	}
}

func TestRunDropsRepeatedLegacySKU(t *testing.T) {
	repo := newMemRepo(legacyItem("a", `{"_variants":[
		{"attrs":{"Size":"S"},"sku":"X"},
		{"attrs":{"Size":"M"},"sku":"X"},
		{"attrs":{"Size":"L"},"sku":"Y"}
	]}`))

	if _, err := NewBackfillUseCase(repo, nil, logger.NewNop()).Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	var skus []string
	for _, v := range repo.variants["a"] {
		if v.SKU == nil {
			skus = append(skus, "")
		} else {
			skus = append(skus, *v.SKU)
		}
	}
	if !reflect.DeepEqual(skus, []string{"X", "", "Y"}) {
		t.Errorf("skus = %q", skus)
	}
}

func TestRunInvalidatesMerchantCaches(t *testing.T) {
	mr := miniredis.RunT(t)
	rc := &cache.RedisClient{Client: redis.NewClient(&redis.Options{Addr: mr.Addr()})}
	defer rc.Close()
	mr.Set(cache.LowStockCountKey("m1"), "2")
	mr.Set("items:list:m1:abc", "[]")
	mr.Set(cache.LowStockCountKey("m2"), "7")

	repo := newMemRepo(legacyItem("a", `{"_variants":[{"attrs":{"Size":"S"},"qty":1}]}`))
	if _, err := NewBackfillUseCase(repo, rc, logger.NewNop()).Run(context.Background()); err != nil {
		t.Fatal(err)
	}

	if mr.Exists(cache.LowStockCountKey("m1")) || mr.Exists("items:list:m1:abc") {
		t.Error("m1 caches not invalidated")
	}
	if !mr.Exists(cache.LowStockCountKey("m2")) {
		t.Error("untouched merchant lost its badge")
	}
}
