package usecase

import (
	"context"
	"errors"
	"time"

	"github.com/fekuna/stockholm-inventory-service/internal/backfill"
	"github.com/fekuna/stockholm-inventory-service/internal/model"
	"github.com/fekuna/stockholm-inventory-service/internal/pkg/cache"
	"github.com/fekuna/stockholm-inventory-service/internal/pkg/logger"
	"github.com/fekuna/stockholm-inventory-service/internal/variant"
	"go.uber.org/zap"
)

type backfillUseCase struct {
	repo   backfill.Repository
	cache  *cache.RedisClient
	logger logger.ZapLogger
}

// NewBackfillUseCase builds the legacy variant migration. cache may be nil
// when run from the command line without Redis.
func NewBackfillUseCase(repo backfill.Repository, cache *cache.RedisClient, log logger.ZapLogger) backfill.UseCase {
	return &backfillUseCase{
		repo:   repo,
		cache:  cache,
		logger: log,
	}
}

func (uc *backfillUseCase) Run(ctx context.Context) (*backfill.Result, error) {
	items, err := uc.repo.ListCandidates(ctx)
	if err != nil {
		return nil, err
	}

	res := &backfill.Result{}
	touched := make(map[string]bool)
	for i := range items {
		if err := ctx.Err(); err != nil {
			uc.logger.Warn("backfill interrupted", zap.Int("migrated", res.MigratedCount), zap.Error(err))
			break
		}

		it := &items[i]
		log := uc.logger.With(zap.String("item_id", it.ID), zap.String("merchant_id", it.MerchantID))

		opts, err := variant.ParseOptions(it.Options)
		if err != nil || opts.Legacy == nil {
			res.Skipped++
			continue
		}

		rebuilt, variants, err := migrationFor(it, opts.Legacy, log)
		if err != nil {
			log.Error("failed to prepare backfill", zap.Error(err))
			res.Failed++
			continue
		}

		err = uc.repo.MigrateItem(ctx, it.ID, rebuilt, variants)
		switch {
		case errors.Is(err, backfill.ErrAlreadyMigrated):
			res.Skipped++
		case err != nil:
			log.Error("failed to backfill item", zap.Error(err))
			res.Failed++
		default:
			res.MigratedCount++
			touched[it.MerchantID] = true
			log.Debug("item backfilled", zap.Int("variants", len(variants)))
		}
	}

	for merchantID := range touched {
		uc.invalidate(merchantID)
	}

	uc.logger.Info("backfill finished",
		zap.Int("migrated", res.MigratedCount),
		zap.Int("skipped", res.Skipped),
		zap.Int("failed", res.Failed),
	)
	return res, nil
}

// migrationFor builds the item's variant rows and rebuilt options blob. A SKU
// repeated across legacy entries is kept on the first entry only.
func migrationFor(it *model.Item, legacy *variant.LegacyVariantsPayload, log logger.ZapLogger) ([]byte, []model.ItemVariant, error) {
	rebuilt, err := variant.RebuildOptions(it.Options, variant.DeriveAttributeOptions(legacy.Variants))
	if err != nil {
		return nil, nil, err
	}

	now := time.Now()
	seen := make(map[string]bool, len(legacy.Variants))
	variants := make([]model.ItemVariant, 0, len(legacy.Variants))
	for i, lv := range legacy.Variants {
		st := variant.State{Attrs: lv.Attrs, Qty: lv.Qty, SKU: lv.SKU}
		switch {
		case st.SKU == "":
		case seen[st.SKU]:
			log.Warn("dropping repeated legacy SKU", zap.String("sku", st.SKU), zap.Int("position", i))
			st.SKU = ""
		default:
			seen[st.SKU] = true
		}
		v, err := model.NewItemVariant(it.ID, i, st, now)
		if err != nil {
			return nil, nil, err
		}
		variants = append(variants, v)
	}
	return rebuilt, variants, nil
}

func (uc *backfillUseCase) invalidate(merchantID string) {
	if uc.cache == nil {
		return
	}
	ctx := context.Background()
	if err := uc.cache.DeletePattern(ctx, cache.ItemListPattern(merchantID)); err != nil {
		uc.logger.Warn("failed to invalidate item list cache", zap.String("merchant_id", merchantID), zap.Error(err))
	}
	if err := uc.cache.Client.Del(ctx, cache.LowStockCountKey(merchantID)).Err(); err != nil {
		uc.logger.Warn("failed to invalidate low-stock badge", zap.String("merchant_id", merchantID), zap.Error(err))
	}
}
