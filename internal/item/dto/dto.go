package dto

import (
	"time"

	"github.com/fekuna/stockholm-inventory-service/internal/variant"
)

type ItemFilters struct {
	MerchantID  string
	SearchQuery string // name or sku
	SortBy      string // name, quantity, updated_at
	SortOrder   string // asc, desc
	Page        int
	PageSize    int
}

// ItemDetail is an item as the detail view and exports see it. Quantity is
// always the aggregated on-hand quantity; ScalarQuantity is the item's own
// field, used only when it has no variants.
type ItemDetail struct {
	ID                string              `json:"id"`
	MerchantID        string              `json:"merchant_id"`
	Name              string              `json:"name"`
	SKU               string              `json:"sku,omitempty"`
	Quantity          int                 `json:"quantity"`
	ScalarQuantity    int                 `json:"scalar_quantity"`
	LowStockThreshold int                 `json:"low_stock_threshold"`
	LowStock          bool                `json:"low_stock"`
	Attributes        []variant.Attribute `json:"attributes"`
	OptionsSummary    string              `json:"options_summary,omitempty"`
	Variants          []variant.State     `json:"variants"`
	CreatedAt         time.Time           `json:"created_at"`
	UpdatedAt         time.Time           `json:"updated_at"`
}

// ItemListEntry is a list row. Quantity and LowStock always come from the
// database, including for search hits.
type ItemListEntry struct {
	ID                string    `json:"id"`
	MerchantID        string    `json:"merchant_id"`
	Name              string    `json:"name"`
	SKU               string    `json:"sku,omitempty"`
	Quantity          int       `json:"quantity"`
	LowStockThreshold int       `json:"low_stock_threshold"`
	LowStock          bool      `json:"low_stock"`
	HasVariants       bool      `json:"has_variants"`
	OptionsSummary    string    `json:"options_summary,omitempty"`
	UpdatedAt         time.Time `json:"updated_at"`
}

type VariantPreview struct {
	Variants      []variant.State `json:"variants"`
	Labels        []string        `json:"labels"`
	Total         int             `json:"total"`
	Truncated     bool            `json:"truncated"`
	DuplicateSKUs []string        `json:"duplicate_skus"`
	Quantity      int             `json:"quantity"`
}

// ItemSearchDocument is what the search index holds. It carries only what
// search matches and ranks on; stock changes do not touch the index.
type ItemSearchDocument struct {
	ID             string    `json:"id"`
	MerchantID     string    `json:"merchant_id"`
	Name           string    `json:"name"`
	SKU            string    `json:"sku,omitempty"`
	OptionsSummary string    `json:"options_summary,omitempty"`
	UpdatedAt      time.Time `json:"updated_at"`
}
