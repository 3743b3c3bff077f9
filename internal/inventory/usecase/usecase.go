package usecase

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"time"

	"github.com/fekuna/stockholm-inventory-service/internal/inventory"
	"github.com/fekuna/stockholm-inventory-service/internal/inventory/dto"
	"github.com/fekuna/stockholm-inventory-service/internal/item"
	"github.com/fekuna/stockholm-inventory-service/internal/model"
	"github.com/fekuna/stockholm-inventory-service/internal/pkg/cache"
	"github.com/fekuna/stockholm-inventory-service/internal/pkg/logger"
	"github.com/fekuna/stockholm-inventory-service/internal/variant"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const (
	lockAttempts = 3
	lockRetry    = 100 * time.Millisecond
	lockTTL      = 5 * time.Second
)

type inventoryUseCase struct {
	repo   inventory.Repository
	cache  *cache.RedisClient
	logger logger.ZapLogger
}

func NewInventoryUseCase(repo inventory.Repository, cache *cache.RedisClient, log logger.ZapLogger) inventory.UseCase {
	return &inventoryUseCase{
		repo:   repo,
		cache:  cache,
		logger: log,
	}
}

func (uc *inventoryUseCase) Sweep(ctx context.Context) (*dto.SweepResult, error) {
	levels, err := uc.repo.ListStockLevels(ctx, "")
	if err != nil {
		return nil, err
	}

	res := &dto.SweepResult{ItemIDs: []string{}}
	counts := make(map[string]int)
	for _, l := range levels {
		if _, ok := counts[l.MerchantID]; !ok {
			counts[l.MerchantID] = 0
		}
		if isLow(&l) {
			counts[l.MerchantID]++
			res.ItemIDs = append(res.ItemIDs, l.ItemID)
		}
	}
	res.LowStockCount = len(res.ItemIDs)

	uc.refreshBadges(ctx, counts)

	uc.logger.Info("low-stock sweep finished",
		zap.Int("items", len(levels)),
		zap.Int("low_stock", res.LowStockCount),
	)
	return res, nil
}

// refreshBadges writes every merchant's count and drops badges of merchants
// that no longer track anything. Failures only cost a cache miss later.
func (uc *inventoryUseCase) refreshBadges(ctx context.Context, counts map[string]int) {
	pipe := uc.cache.Client.Pipeline()
	for merchantID, n := range counts {
		pipe.Set(ctx, cache.LowStockCountKey(merchantID), n, cache.LowStockTTL)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		uc.logger.Warn("failed to refresh low-stock badges", zap.Error(err))
		return
	}

	iter := uc.cache.Client.Scan(ctx, 0, cache.LowStockCountPattern, 100).Iterator()
	var stale []string
	for iter.Next(ctx) {
		key := iter.Val()
		if _, ok := counts[strings.TrimPrefix(key, cache.LowStockCountKey(""))]; !ok {
			stale = append(stale, key)
		}
	}
	if err := iter.Err(); err != nil {
		uc.logger.Warn("failed to scan low-stock badges", zap.Error(err))
		return
	}
	if len(stale) > 0 {
		if err := uc.cache.Client.Del(ctx, stale...).Err(); err != nil {
			uc.logger.Warn("failed to drop stale low-stock badges", zap.Error(err))
		}
	}
}

func (uc *inventoryUseCase) LowStockCount(ctx context.Context, merchantID string) (int, error) {
	key := cache.LowStockCountKey(merchantID)
	val, err := uc.cache.Client.Get(ctx, key).Result()
	if err == nil {
		if n, err := strconv.Atoi(val); err == nil {
			return n, nil
		}
	} else if !errors.Is(err, redis.Nil) {
		uc.logger.Warn("failed to read low-stock badge", zap.String("merchant_id", merchantID), zap.Error(err))
	}

	low, err := uc.ListLowStock(ctx, merchantID)
	if err != nil {
		return 0, err
	}
	if err := uc.cache.Client.Set(ctx, key, len(low), cache.LowStockTTL).Err(); err != nil {
		uc.logger.Warn("failed to cache low-stock badge", zap.String("merchant_id", merchantID), zap.Error(err))
	}
	return len(low), nil
}

func (uc *inventoryUseCase) ListLowStock(ctx context.Context, merchantID string) ([]model.StockLevel, error) {
	levels, err := uc.repo.ListStockLevels(ctx, merchantID)
	if err != nil {
		return nil, err
	}
	low := make([]model.StockLevel, 0, len(levels))
	for _, l := range levels {
		if isLow(&l) {
			low = append(low, l)
		}
	}
	return low, nil
}

// isLow fills in OnHand through the shared aggregator.
func isLow(l *model.StockLevel) bool {
	l.OnHand = variant.AggregateTotals(l.Quantity, l.VariantCount, l.VariantQty)
	return variant.IsLowStock(l.LowStockThreshold, l.OnHand)
}

func (uc *inventoryUseCase) AdjustStock(ctx context.Context, input *dto.AdjustStockInput) (*model.StockMovement, error) {
	if input.ItemID == "" {
		return nil, variant.NewValidationError("item_id", "is required")
	}
	if input.Delta == 0 {
		return nil, variant.NewValidationError("delta", "must not be zero")
	}

	// 0. Acquire lock
	lockKey := cache.ItemLockKey(input.ItemID)
	lockValue := uuid.New().String()
	acquired := false
	for i := 0; i < lockAttempts; i++ {
		ok, err := uc.cache.AcquireLock(ctx, lockKey, lockValue, lockTTL)
		if err != nil {
			uc.logger.Error("failed to acquire lock redis error", zap.Error(err))
		}
		if ok {
			acquired = true
			break
		}
		time.Sleep(lockRetry)
	}
	if !acquired {
		return nil, inventory.ErrStockBusy
	}
	defer func() {
		if err := uc.cache.ReleaseLock(context.Background(), lockKey, lockValue); err != nil {
			uc.logger.Warn("failed to release stock lock", zap.String("item_id", input.ItemID), zap.Error(err))
		}
	}()

	// 1. Read current quantity
	it, err := uc.repo.FindItem(ctx, input.MerchantID, input.ItemID)
	if err != nil {
		return nil, err
	}
	if it == nil {
		return nil, item.ErrItemNotFound
	}

	var variantID *string
	before := it.Quantity
	if input.SKU != "" {
		v, err := uc.repo.FindVariantBySKU(ctx, it.ID, input.SKU)
		if err != nil {
			return nil, err
		}
		if v == nil {
			return nil, inventory.ErrVariantNotFound
		}
		variantID = &v.ID
		before = v.Qty
	} else {
		n, err := uc.repo.CountVariants(ctx, it.ID)
		if err != nil {
			return nil, err
		}
		if n > 0 {
			return nil, variant.NewValidationError("sku", "is required for items with variants")
		}
	}

	after := before + input.Delta
	if after < 0 {
		return nil, inventory.ErrInsufficientStock
	}
	if after > variant.MaxQty {
		return nil, variant.NewValidationError("delta", "quantity would exceed the maximum")
	}

	movementType := input.MovementType
	if movementType == "" {
		movementType = dto.MovementAdjustment
	}

	movement := &model.StockMovement{
		ID:             uuid.New().String(),
		MerchantID:     it.MerchantID,
		ItemID:         it.ID,
		VariantID:      variantID,
		MovementType:   movementType,
		QuantityChange: input.Delta,
		QuantityBefore: before,
		QuantityAfter:  after,
		ReferenceID:    optionalString(input.ReferenceID),
		Notes:          input.Reason,
		CreatedBy:      optionalString(input.UserID),
		CreatedAt:      time.Now(),
	}

	// 2. Write quantity and movement together
	if err := uc.repo.AdjustStockWithMovement(ctx, movement); err != nil {
		return nil, err
	}

	uc.invalidate(ctx, it.MerchantID)
	return movement, nil
}

func (uc *inventoryUseCase) ListMovements(ctx context.Context, filters *dto.MovementFilters) ([]model.StockMovement, int, error) {
	return uc.repo.ListMovements(ctx, filters)
}

func (uc *inventoryUseCase) invalidate(ctx context.Context, merchantID string) {
	if err := uc.cache.Client.Del(ctx, cache.LowStockCountKey(merchantID)).Err(); err != nil {
		uc.logger.Warn("failed to invalidate low-stock badge", zap.String("merchant_id", merchantID), zap.Error(err))
	}
	if err := uc.cache.DeletePattern(ctx, cache.ItemListPattern(merchantID)); err != nil {
		uc.logger.Warn("failed to invalidate item list cache", zap.String("merchant_id", merchantID), zap.Error(err))
	}
}

func optionalString(s string) *string {
	if s == "" || s == "unknown" {
		return nil
	}
	return &s
}
