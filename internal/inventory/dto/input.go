package dto

const (
	MovementAdjustment = "adjustment"
	MovementSale       = "sale"
	MovementRestock    = "restock"
)

// AdjustStockInput changes one item's on-hand quantity by Delta. SKU selects
// the variant and is required when the item has variants.
type AdjustStockInput struct {
	MerchantID   string
	ItemID       string
	SKU          string
	Delta        int
	MovementType string
	Reason       string
	ReferenceID  string
	UserID       string
}
