package model

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/fekuna/stockholm-inventory-service/internal/variant"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx/types"
)

type Item struct {
	BaseModel
	MerchantID        string         `db:"merchant_id" json:"merchant_id"`
	Name              string         `db:"name" json:"name"`
	SKU               *string        `db:"sku" json:"sku"`
	Quantity          int            `db:"quantity" json:"quantity"` // only meaningful without variants
	LowStockThreshold int            `db:"low_stock_threshold" json:"low_stock_threshold"`
	Options           types.JSONText `db:"options" json:"options"`
	Variants          []ItemVariant  `db:"-" json:"variants"`
}

// ItemVariant is one materialized combination. Attrs is a copy of the
// assignment so the row stays meaningful if the item's attributes change.
type ItemVariant struct {
	BaseModel
	ItemID   string         `db:"item_id" json:"item_id"`
	Attrs    types.JSONText `db:"attrs" json:"attrs"`
	Qty      int            `db:"qty" json:"qty"`
	SKU      *string        `db:"sku" json:"sku"`
	Position int            `db:"position" json:"position"`
}

// ItemSummary is a list row: the item plus its variant totals summed in SQL.
type ItemSummary struct {
	Item
	VariantCount int `db:"variant_count" json:"variant_count"`
	VariantQty   int `db:"variant_qty" json:"variant_qty"`
}

func NewItemVariant(itemID string, position int, st variant.State, now time.Time) (ItemVariant, error) {
	attrs, err := json.Marshal(st.Attrs)
	if err != nil {
		return ItemVariant{}, fmt.Errorf("marshal variant attrs: %w", err)
	}
	var sku *string
	if st.SKU != "" {
		s := st.SKU
		sku = &s
	}
	return ItemVariant{
		BaseModel: BaseModel{ID: uuid.New().String(), CreatedAt: now, UpdatedAt: now},
		ItemID:    itemID,
		Attrs:     types.JSONText(attrs),
		Qty:       st.Qty,
		SKU:       sku,
		Position:  position,
	}, nil
}

func (v ItemVariant) State() (variant.State, error) {
	st := variant.State{Attrs: map[string]string{}, Qty: v.Qty}
	if len(v.Attrs) > 0 {
		if err := json.Unmarshal(v.Attrs, &st.Attrs); err != nil {
			return variant.State{}, fmt.Errorf("variant %s attrs: %w", v.ID, err)
		}
	}
	if v.SKU != nil {
		st.SKU = *v.SKU
	}
	return st, nil
}

func VariantStates(variants []ItemVariant) ([]variant.State, error) {
	states := make([]variant.State, 0, len(variants))
	for _, v := range variants {
		st, err := v.State()
		if err != nil {
			return nil, err
		}
		states = append(states, st)
	}
	return states, nil
}
