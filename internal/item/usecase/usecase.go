package usecase

import (
	"context"
	"crypto/md5"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/fekuna/stockholm-inventory-service/internal/item"
	"github.com/fekuna/stockholm-inventory-service/internal/item/dto"
	"github.com/fekuna/stockholm-inventory-service/internal/model"
	"github.com/fekuna/stockholm-inventory-service/internal/pkg/cache"
	"github.com/fekuna/stockholm-inventory-service/internal/pkg/logger"
	"github.com/fekuna/stockholm-inventory-service/internal/pkg/search"
	"github.com/fekuna/stockholm-inventory-service/internal/variant"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
	"go.uber.org/zap"
)

const itemsIndex = "items"

const itemsMapping = `{
	"mappings": {
		"properties": {
			"merchant_id": { "type": "keyword" },
			"name": { "type": "text" },
			"sku": { "type": "keyword" },
			"options_summary": { "type": "text" },
			"updated_at": { "type": "date" }
		}
	}
}`

type itemUseCase struct {
	repo   item.Repository
	cache  *cache.RedisClient
	es     *search.Client
	logger logger.ZapLogger
	cap    int
}

// NewItemUseCase wires the item use case. es may be nil, in which case search
// goes straight to the database. combinationCap <= 0 means the default cap.
func NewItemUseCase(repo item.Repository, cache *cache.RedisClient, es *search.Client, log logger.ZapLogger, combinationCap int) item.UseCase {
	if combinationCap <= 0 {
		combinationCap = variant.DefaultCombinationCap
	}
	return &itemUseCase{
		repo:   repo,
		cache:  cache,
		es:     es,
		logger: log,
		cap:    combinationCap,
	}
}

func (uc *itemUseCase) GetItem(ctx context.Context, merchantID, id string) (*dto.ItemDetail, error) {
	it, err := uc.repo.FindByID(ctx, merchantID, id)
	if err != nil {
		return nil, err
	}
	if it == nil {
		return nil, item.ErrItemNotFound
	}

	variants, err := uc.repo.FindVariants(ctx, it.ID)
	if err != nil {
		return nil, err
	}
	states, err := model.VariantStates(variants)
	if err != nil {
		return nil, err
	}
	return uc.toDetail(it, states), nil
}

func (uc *itemUseCase) ListItems(ctx context.Context, filters *dto.ItemFilters) ([]dto.ItemListEntry, int, error) {
	cacheKey, err := uc.generateCacheKey(filters)
	if err == nil {
		val, err := uc.cache.Client.Get(ctx, cacheKey).Result()
		if err == nil {
			var result struct {
				Items []dto.ItemListEntry
				Count int
			}
			if err := json.Unmarshal([]byte(val), &result); err == nil {
				return result.Items, result.Count, nil
			}
		}
	}

	if filters.SearchQuery != "" && uc.es != nil {
		entries, total, err := uc.searchItems(ctx, filters)
		if err == nil {
			return entries, total, nil
		}
		uc.logger.Error("ES search failed, falling back to DB", zap.Error(err))
	}

	summaries, count, err := uc.repo.FindAll(ctx, filters)
	if err != nil {
		return nil, 0, err
	}
	entries := make([]dto.ItemListEntry, 0, len(summaries))
	for i := range summaries {
		entries = append(entries, uc.toListEntry(&summaries[i]))
	}

	if cacheKey != "" {
		cacheData := struct {
			Items []dto.ItemListEntry
			Count int
		}{
			Items: entries,
			Count: count,
		}
		if data, err := json.Marshal(cacheData); err == nil {
			if err := uc.cache.Client.Set(ctx, cacheKey, data, cache.ListTTL).Err(); err != nil {
				uc.logger.Warn("failed to cache item list", zap.Error(err))
			}
		}
	}

	return entries, count, nil
}

func (uc *itemUseCase) searchItems(ctx context.Context, filters *dto.ItemFilters) ([]dto.ItemListEntry, int, error) {
	q := map[string]interface{}{
		"query": map[string]interface{}{
			"bool": map[string]interface{}{
				"must": []map[string]interface{}{
					{
						"query_string": map[string]interface{}{
							"query":  fmt.Sprintf("*%s*", filters.SearchQuery),
							"fields": []string{"name^3", "sku", "options_summary"},
						},
					},
					{
						"term": map[string]interface{}{
							"merchant_id": filters.MerchantID,
						},
					},
				},
			},
		},
	}
	if filters.PageSize > 0 {
		page := filters.Page
		if page < 1 {
			page = 1
		}
		q["from"] = (page - 1) * filters.PageSize
		q["size"] = filters.PageSize
	}

	res, err := uc.es.Search(ctx, itemsIndex, q)
	if err != nil {
		return nil, 0, err
	}
	ids := make([]string, 0, len(res.Hits.Hits))
	for _, hit := range res.Hits.Hits {
		ids = append(ids, hit.ID)
	}

	// The index only ranks; quantities are read from the database so a hit
	// agrees with the detail view after any stock change.
	summaries, err := uc.repo.FindSummariesByIDs(ctx, filters.MerchantID, ids)
	if err != nil {
		return nil, 0, err
	}
	byID := make(map[string]*model.ItemSummary, len(summaries))
	for i := range summaries {
		byID[summaries[i].ID] = &summaries[i]
	}

	entries := make([]dto.ItemListEntry, 0, len(ids))
	for _, id := range ids {
		if s, ok := byID[id]; ok {
			entries = append(entries, uc.toListEntry(s))
		}
	}
	return entries, res.Hits.Total.Value, nil
}

func (uc *itemUseCase) CreateItem(ctx context.Context, input *dto.CreateItemInput) (*dto.ItemDetail, error) {
	attrs, states, err := prepareFields(&input.ItemFields)
	if err != nil {
		return nil, err
	}

	options, err := variant.ReplaceAttributeOptions(nil, variant.OptionsFromAttributes(attrs), false)
	if err != nil {
		return nil, err
	}

	now := time.Now()
	it := &model.Item{
		BaseModel:         model.BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
		MerchantID:        input.MerchantID,
		Name:              strings.TrimSpace(input.Name),
		SKU:               optionalString(input.SKU),
		Quantity:          variant.CoerceQty(input.Quantity),
		LowStockThreshold: input.LowStockThreshold,
		Options:           types.JSONText(options),
	}

	variants, err := buildVariants(it.ID, states, nil, now)
	if err != nil {
		return nil, err
	}
	if err := uc.repo.CreateWithVariants(ctx, it, variants); err != nil {
		return nil, err
	}

	detail := uc.toDetail(it, states)
	uc.afterWrite(it.MerchantID, detail)
	return detail, nil
}

func (uc *itemUseCase) UpdateItem(ctx context.Context, input *dto.UpdateItemInput) (*dto.ItemDetail, error) {
	it, err := uc.repo.FindByID(ctx, input.MerchantID, input.ID)
	if err != nil {
		return nil, err
	}
	if it == nil {
		return nil, item.ErrItemNotFound
	}

	attrs, states, err := prepareFields(&input.ItemFields)
	if err != nil {
		return nil, err
	}

	prior, err := uc.repo.FindVariants(ctx, it.ID)
	if err != nil {
		return nil, err
	}

	// Legacy entries stay in the blob until the backfill moves them, unless
	// this save already brings normalized rows.
	options, err := variant.ReplaceAttributeOptions(it.Options, variant.OptionsFromAttributes(attrs), len(states) == 0)
	if err != nil {
		return nil, err
	}

	it.Name = strings.TrimSpace(input.Name)
	it.SKU = optionalString(input.SKU)
	it.Quantity = variant.CoerceQty(input.Quantity)
	it.LowStockThreshold = input.LowStockThreshold
	it.Options = types.JSONText(options)
	it.UpdatedAt = time.Now()

	variants, err := buildVariants(it.ID, states, prior, it.UpdatedAt)
	if err != nil {
		return nil, err
	}
	if err := uc.repo.UpdateWithVariants(ctx, it, variants); err != nil {
		return nil, err
	}

	detail := uc.toDetail(it, states)
	uc.afterWrite(it.MerchantID, detail)
	return detail, nil
}

func (uc *itemUseCase) DeleteItem(ctx context.Context, merchantID, id string) error {
	if err := uc.repo.Delete(ctx, merchantID, id); err != nil {
		return err
	}

	uc.invalidateItemCache(ctx, merchantID)
	if uc.es != nil {
		go func() {
			if err := uc.es.Delete(context.Background(), itemsIndex, id); err != nil {
				uc.logger.Error("failed to delete item from ES", zap.String("item_id", id), zap.Error(err))
			}
		}()
	}
	return nil
}

func (uc *itemUseCase) PreviewVariants(ctx context.Context, input *dto.PreviewVariantsInput) (*dto.VariantPreview, error) {
	attrs := variant.NormalizeAttributes(input.Attributes)
	if err := variant.ValidateAttributes(attrs); err != nil {
		return nil, err
	}

	limit := input.Cap
	if limit <= 0 || limit > uc.cap {
		limit = uc.cap
	}
	gen := variant.Generate(attrs, limit)

	store := variant.NewStore()
	if err := store.Seed(input.Variants); err != nil {
		return nil, variant.NewValidationError("variants", err.Error())
	}
	for _, e := range input.Edits {
		if e.Qty != nil {
			if err := store.SetQty(e.Attrs, *e.Qty); err != nil {
				return nil, variant.NewValidationError("edits", err.Error())
			}
		}
		if e.SKU != nil {
			if err := store.SetSKU(e.Attrs, *e.SKU); err != nil {
				return nil, variant.NewValidationError("edits", err.Error())
			}
		}
	}

	states := store.Materialize(gen.Combinations, input.BaseSKU)
	labels := make([]string, 0, len(gen.Combinations))
	for _, c := range gen.Combinations {
		labels = append(labels, c.Label())
	}
	dups := variant.DuplicateSKUs(states)
	if dups == nil {
		dups = []string{}
	}

	return &dto.VariantPreview{
		Variants:      states,
		Labels:        labels,
		Total:         gen.Total,
		Truncated:     gen.Truncated,
		DuplicateSKUs: dups,
		Quantity:      variant.AggregateQuantity(input.ItemQuantity, states),
	}, nil
}

// prepareFields validates a submission and returns its normalized attributes
// and the sanitized variant replace-set.
func prepareFields(f *dto.ItemFields) ([]variant.Attribute, []variant.State, error) {
	if strings.TrimSpace(f.Name) == "" {
		return nil, nil, variant.NewValidationError("name", "is required")
	}
	if f.LowStockThreshold < 0 {
		return nil, nil, variant.NewValidationError("low_stock_threshold", "must not be negative")
	}

	attrs := variant.NormalizeAttributes(f.Attributes)
	if err := variant.ValidateAttributes(attrs); err != nil {
		return nil, nil, err
	}

	states, err := variant.ParseStates(f.Variants)
	if err != nil {
		return nil, nil, err
	}
	if dups := variant.DuplicateSKUs(states); len(dups) > 0 {
		return nil, nil, &variant.DuplicateSKUError{SKUs: dups}
	}
	return attrs, states, nil
}

// buildVariants turns the replace-set into rows. A combination that already
// has a row in prior keeps that row's id and created_at.
func buildVariants(itemID string, states []variant.State, prior []model.ItemVariant, now time.Time) ([]model.ItemVariant, error) {
	existing := make(map[string]model.BaseModel, len(prior))
	for _, p := range prior {
		st, err := p.State()
		if err != nil {
			continue
		}
		if key, err := variant.KeyOf(st.Attrs); err == nil {
			existing[key] = p.BaseModel
		}
	}

	variants := make([]model.ItemVariant, 0, len(states))
	for i, st := range states {
		v, err := model.NewItemVariant(itemID, i, st, now)
		if err != nil {
			return nil, err
		}
		if base, ok := existing[variant.MustKeyOf(st.Attrs)]; ok {
			v.ID = base.ID
			v.CreatedAt = base.CreatedAt
		}
		variants = append(variants, v)
	}
	return variants, nil
}

func (uc *itemUseCase) toDetail(it *model.Item, states []variant.State) *dto.ItemDetail {
	opts := uc.parseOptions(it)
	qty := variant.AggregateQuantity(it.Quantity, states)
	if states == nil {
		states = []variant.State{}
	}

	return &dto.ItemDetail{
		ID:                it.ID,
		MerchantID:        it.MerchantID,
		Name:              it.Name,
		SKU:               derefString(it.SKU),
		Quantity:          qty,
		ScalarQuantity:    it.Quantity,
		LowStockThreshold: it.LowStockThreshold,
		LowStock:          variant.IsLowStock(it.LowStockThreshold, qty),
		Attributes:        variant.AttributesFromOptions(opts.Attributes),
		OptionsSummary:    variant.Summarize(opts.Attributes),
		Variants:          states,
		CreatedAt:         it.CreatedAt,
		UpdatedAt:         it.UpdatedAt,
	}
}

func (uc *itemUseCase) toListEntry(s *model.ItemSummary) dto.ItemListEntry {
	qty := variant.AggregateTotals(s.Quantity, s.VariantCount, s.VariantQty)
	opts := uc.parseOptions(&s.Item)
	return dto.ItemListEntry{
		ID:                s.ID,
		MerchantID:        s.MerchantID,
		Name:              s.Name,
		SKU:               derefString(s.SKU),
		Quantity:          qty,
		LowStockThreshold: s.LowStockThreshold,
		LowStock:          variant.IsLowStock(s.LowStockThreshold, qty),
		HasVariants:       s.VariantCount > 0,
		OptionsSummary:    variant.Summarize(opts.Attributes),
		UpdatedAt:         s.UpdatedAt,
	}
}

// parseOptions never fails a read: a corrupt blob shows as no attributes.
func (uc *itemUseCase) parseOptions(it *model.Item) variant.Options {
	opts, err := variant.ParseOptions(it.Options)
	if err != nil {
		uc.logger.Warn("unreadable item options", zap.String("item_id", it.ID), zap.Error(err))
		return variant.Options{Attributes: variant.AttributeOptions{}}
	}
	return opts
}

// afterWrite drops cached lists and the low-stock badge before returning, so
// the next read sees the write, and indexes the item in the background.
func (uc *itemUseCase) afterWrite(merchantID string, detail *dto.ItemDetail) {
	uc.invalidateItemCache(context.Background(), merchantID)

	doc := dto.ItemSearchDocument{
		ID:             detail.ID,
		MerchantID:     detail.MerchantID,
		Name:           detail.Name,
		SKU:            detail.SKU,
		OptionsSummary: detail.OptionsSummary,
		UpdatedAt:      detail.UpdatedAt,
	}
	go uc.syncToElastic(context.Background(), doc)
}

func (uc *itemUseCase) syncToElastic(ctx context.Context, doc dto.ItemSearchDocument) {
	if uc.es == nil {
		return
	}
	_ = uc.es.CreateIndex(ctx, itemsIndex, itemsMapping)

	if err := uc.es.Index(ctx, itemsIndex, doc.ID, doc); err != nil {
		uc.logger.Error("failed to index item", zap.String("item_id", doc.ID), zap.Error(err))
	}
}

func (uc *itemUseCase) generateCacheKey(filters *dto.ItemFilters) (string, error) {
	data, err := json.Marshal(filters)
	if err != nil {
		return "", err
	}
	return cache.ItemListKey(filters.MerchantID, md5.Sum(data)), nil
}

func (uc *itemUseCase) invalidateItemCache(ctx context.Context, merchantID string) {
	if err := uc.cache.DeletePattern(ctx, cache.ItemListPattern(merchantID)); err != nil {
		uc.logger.Warn("failed to invalidate item list cache", zap.String("merchant_id", merchantID), zap.Error(err))
	}
	if err := uc.cache.Client.Del(ctx, cache.LowStockCountKey(merchantID)).Err(); err != nil {
		uc.logger.Warn("failed to invalidate low-stock badge", zap.String("merchant_id", merchantID), zap.Error(err))
	}
}

func optionalString(s string) *string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	return &s
}

func derefString(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

