package usecase

import (
	"context"
	"errors"
	"reflect"
	"sync"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/fekuna/stockholm-inventory-service/internal/inventory"
	"github.com/fekuna/stockholm-inventory-service/internal/inventory/dto"
	"github.com/fekuna/stockholm-inventory-service/internal/item"
	"github.com/fekuna/stockholm-inventory-service/internal/model"
	"github.com/fekuna/stockholm-inventory-service/internal/pkg/cache"
	"github.com/fekuna/stockholm-inventory-service/internal/pkg/logger"
	"github.com/fekuna/stockholm-inventory-service/internal/variant"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

type fakeRepo struct {
	mu        sync.Mutex
	levels    []model.StockLevel
	items     map[string]*model.Item
	variants  map[string][]model.ItemVariant
	movements []model.StockMovement
	levelCall int
	adjustErr error
}

func newFakeRepo() *fakeRepo {
	return &fakeRepo{items: map[string]*model.Item{}, variants: map[string][]model.ItemVariant{}}
}

func (r *fakeRepo) ListStockLevels(_ context.Context, merchantID string) ([]model.StockLevel, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.levelCall++
	var out []model.StockLevel
	for _, l := range r.levels {
		if merchantID == "" || l.MerchantID == merchantID {
			out = append(out, l)
		}
	}
	return out, nil
}

func (r *fakeRepo) FindItem(_ context.Context, merchantID, itemID string) (*model.Item, error) {
	it, ok := r.items[itemID]
	if !ok || it.MerchantID != merchantID {
		return nil, nil
	}
	return it, nil
}

func (r *fakeRepo) FindVariantBySKU(_ context.Context, itemID, sku string) (*model.ItemVariant, error) {
	for i, v := range r.variants[itemID] {
		if v.SKU != nil && *v.SKU == sku {
			return &r.variants[itemID][i], nil
		}
	}
	return nil, nil
}

func (r *fakeRepo) CountVariants(_ context.Context, itemID string) (int, error) {
	return len(r.variants[itemID]), nil
}

func (r *fakeRepo) AdjustStockWithMovement(_ context.Context, m *model.StockMovement) error {
	if r.adjustErr != nil {
		return r.adjustErr
	}
	if m.VariantID != nil {
		for i, v := range r.variants[m.ItemID] {
			if v.ID == *m.VariantID {
				r.variants[m.ItemID][i].Qty = m.QuantityAfter
			}
		}
	} else {
		r.items[m.ItemID].Quantity = m.QuantityAfter
	}
	r.movements = append(r.movements, *m)
	return nil
}

func (r *fakeRepo) ListMovements(context.Context, *dto.MovementFilters) ([]model.StockMovement, int, error) {
	return r.movements, len(r.movements), nil
}

func newTestUseCase(t *testing.T, repo inventory.Repository, log logger.ZapLogger) (inventory.UseCase, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	rc := &cache.RedisClient{Client: redis.NewClient(&redis.Options{Addr: mr.Addr(), MaxRetries: -1})}
	t.Cleanup(func() { rc.Close() })
	return NewInventoryUseCase(repo, rc, log), mr
}

func sampleLevels() []model.StockLevel {
	return []model.StockLevel{
		// scalar item at its threshold
		{ItemID: "a", MerchantID: "m1", Quantity: 5, LowStockThreshold: 5},
		// variants sum to 3; the stale scalar 100 must be ignored
		{ItemID: "b", MerchantID: "m1", Quantity: 100, LowStockThreshold: 5, VariantCount: 2, VariantQty: 3},
		// variants sum above threshold; the scalar 0 must be ignored
		{ItemID: "c", MerchantID: "m1", Quantity: 0, LowStockThreshold: 5, VariantCount: 1, VariantQty: 9},
		{ItemID: "d", MerchantID: "m2", Quantity: 50, LowStockThreshold: 5},
	}
}

func TestSweepUsesAggregatedQuantity(t *testing.T) {
	repo := newFakeRepo()
	repo.levels = sampleLevels()
	uc, mr := newTestUseCase(t, repo, logger.NewNop())
	mr.Set(cache.LowStockCountKey("gone"), "4")

	res, err := uc.Sweep(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if res.LowStockCount != 2 || !reflect.DeepEqual(res.ItemIDs, []string{"a", "b"}) {
		t.Errorf("Sweep = %+v", res)
	}

	if v, _ := mr.Get(cache.LowStockCountKey("m1")); v != "2" {
		t.Errorf("m1 badge = %q, want 2", v)
	}
	if v, _ := mr.Get(cache.LowStockCountKey("m2")); v != "0" {
		t.Errorf("m2 badge = %q, want 0", v)
	}
	if mr.Exists(cache.LowStockCountKey("gone")) {
		t.Error("stale badge kept")
	}

	again, err := uc.Sweep(context.Background())
	if err != nil || !reflect.DeepEqual(again, res) {
		t.Errorf("second sweep = %+v, %v", again, err)
	}
}

func TestSweepSwallowsCacheFailure(t *testing.T) {
	repo := newFakeRepo()
	repo.levels = sampleLevels()
	core, logs := observer.New(zapcore.WarnLevel)
	uc, mr := newTestUseCase(t, repo, logger.FromZap(zap.New(core)))
	mr.Close()

	res, err := uc.Sweep(context.Background())
	if err != nil {
		t.Fatalf("Sweep returned cache error: %v", err)
	}
	if res.LowStockCount != 2 {
		t.Errorf("LowStockCount = %d, want 2", res.LowStockCount)
	}
	if logs.FilterMessage("failed to refresh low-stock badges").Len() != 1 {
		t.Errorf("cache failure not logged: %v", logs.All())
	}
}

func TestSweepConcurrent(t *testing.T) {
	repo := newFakeRepo()
	repo.levels = sampleLevels()
	uc, _ := newTestUseCase(t, repo, logger.NewNop())

	var wg sync.WaitGroup
	errs := make(chan error, 8)
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			res, err := uc.Sweep(context.Background())
			if err == nil && res.LowStockCount != 2 {
				err = errors.New("inconsistent sweep")
			}
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)
	for err := range errs {
		if err != nil {
			t.Error(err)
		}
	}
}

func TestLowStockCountCachesBadge(t *testing.T) {
	repo := newFakeRepo()
	repo.levels = sampleLevels()
	uc, mr := newTestUseCase(t, repo, logger.NewNop())

	for i := 0; i < 2; i++ {
		n, err := uc.LowStockCount(context.Background(), "m1")
		if err != nil || n != 2 {
			t.Fatalf("LowStockCount = %d, %v", n, err)
		}
	}
	if repo.levelCall != 1 {
		t.Errorf("ListStockLevels called %d times, want 1", repo.levelCall)
	}
	if ttl := mr.TTL(cache.LowStockCountKey("m1")); ttl != cache.LowStockTTL {
		t.Errorf("badge TTL = %v", ttl)
	}
}

func TestListLowStockFillsOnHand(t *testing.T) {
	repo := newFakeRepo()
	repo.levels = sampleLevels()
	uc, _ := newTestUseCase(t, repo, logger.NewNop())

	low, err := uc.ListLowStock(context.Background(), "m1")
	if err != nil {
		t.Fatal(err)
	}
	if len(low) != 2 || low[0].OnHand != 5 || low[1].OnHand != 3 {
		t.Errorf("low = %+v", low)
	}
}

func variantRow(t *testing.T, itemID, sku string, qty int) model.ItemVariant {
	t.Helper()
	v, err := model.NewItemVariant(itemID, 0, variant.State{Attrs: map[string]string{"Size": sku}, Qty: qty, SKU: sku}, time.Now())
	if err != nil {
		t.Fatal(err)
	}
	return v
}

func TestAdjustStock(t *testing.T) {
	repo := newFakeRepo()
	repo.items["plain"] = &model.Item{BaseModel: model.BaseModel{ID: "plain"}, MerchantID: "m1", Quantity: 4}
	repo.items["tee"] = &model.Item{BaseModel: model.BaseModel{ID: "tee"}, MerchantID: "m1", Quantity: 99}
	repo.variants["tee"] = []model.ItemVariant{variantRow(t, "tee", "TS-S", 2)}
	uc, mr := newTestUseCase(t, repo, logger.NewNop())

	tests := []struct {
		name    string
		input   dto.AdjustStockInput
		wantErr func(error) bool
		after   int
	}{
		{"scalar restock", dto.AdjustStockInput{MerchantID: "m1", ItemID: "plain", Delta: 6}, nil, 10},
		{"variant sale", dto.AdjustStockInput{MerchantID: "m1", ItemID: "tee", SKU: "TS-S", Delta: -2}, nil, 0},
		{"oversell", dto.AdjustStockInput{MerchantID: "m1", ItemID: "tee", SKU: "TS-S", Delta: -1},
			func(err error) bool { return errors.Is(err, inventory.ErrInsufficientStock) }, 0},
		{"sku required", dto.AdjustStockInput{MerchantID: "m1", ItemID: "tee", Delta: 1}, variant.IsValidation, 0},
		{"unknown sku", dto.AdjustStockInput{MerchantID: "m1", ItemID: "tee", SKU: "nope", Delta: 1},
			func(err error) bool { return errors.Is(err, inventory.ErrVariantNotFound) }, 0},
		{"other merchant", dto.AdjustStockInput{MerchantID: "m2", ItemID: "plain", Delta: 1},
			func(err error) bool { return errors.Is(err, item.ErrItemNotFound) }, 0},
		{"zero delta", dto.AdjustStockInput{MerchantID: "m1", ItemID: "plain"}, variant.IsValidation, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mr.Set(cache.LowStockCountKey("m1"), "1")
			m, err := uc.AdjustStock(context.Background(), &tt.input)
			if tt.wantErr != nil {
				if !tt.wantErr(err) {
					t.Fatalf("err = %v", err)
				}
				return
			}
			if err != nil {
				t.Fatal(err)
			}
			if m.QuantityAfter != tt.after || m.QuantityChange != tt.input.Delta {
				t.Errorf("movement = %+v", m)
			}
			if mr.Exists(cache.LowStockCountKey("m1")) {
				t.Error("badge not invalidated")
			}
			if mr.Exists(cache.ItemLockKey(tt.input.ItemID)) {
				t.Error("lock not released")
			}
		})
	}

	if repo.items["tee"].Quantity != 99 || repo.variants["tee"][0].Qty != 0 {
		t.Errorf("variant adjustment touched the wrong quantity")
	}
}

func TestAdjustStockBusy(t *testing.T) {
	repo := newFakeRepo()
	repo.items["plain"] = &model.Item{BaseModel: model.BaseModel{ID: "plain"}, MerchantID: "m1", Quantity: 4}
	uc, mr := newTestUseCase(t, repo, logger.NewNop())
	mr.Set(cache.ItemLockKey("plain"), "someone-else")

	_, err := uc.AdjustStock(context.Background(), &dto.AdjustStockInput{MerchantID: "m1", ItemID: "plain", Delta: 1})
	if !errors.Is(err, inventory.ErrStockBusy) {
		t.Fatalf("err = %v, want ErrStockBusy", err)
	}
	if v, _ := mr.Get(cache.ItemLockKey("plain")); v != "someone-else" {
		t.Error("foreign lock was released")
	}
}
