package model

import "time"

// StockLevel is what the low-stock sweep reads per item.
type StockLevel struct {
	ItemID            string `db:"id" json:"item_id"`
	MerchantID        string `db:"merchant_id" json:"merchant_id"`
	Name              string `db:"name" json:"name"`
	Quantity          int    `db:"quantity" json:"-"`
	LowStockThreshold int    `db:"low_stock_threshold" json:"low_stock_threshold"`
	VariantCount      int    `db:"variant_count" json:"-"`
	VariantQty        int    `db:"variant_qty" json:"-"`
	OnHand            int    `db:"-" json:"on_hand"`
}

// StockMovement records one change of an item's or variant's quantity.
type StockMovement struct {
	ID             string    `db:"id" json:"id"`
	MerchantID     string    `db:"merchant_id" json:"merchant_id"`
	ItemID         string    `db:"item_id" json:"item_id"`
	VariantID      *string   `db:"variant_id" json:"variant_id,omitempty"`
	MovementType   string    `db:"movement_type" json:"movement_type"`
	QuantityChange int       `db:"quantity_change" json:"quantity_change"`
	QuantityBefore int       `db:"quantity_before" json:"quantity_before"`
	QuantityAfter  int       `db:"quantity_after" json:"quantity_after"`
	ReferenceID    *string   `db:"reference_id" json:"reference_id,omitempty"`
	Notes          string    `db:"notes" json:"notes"`
	CreatedBy      *string   `db:"created_by" json:"created_by,omitempty"`
	CreatedAt      time.Time `db:"created_at" json:"created_at"`
}
