package dto

import "github.com/fekuna/stockholm-inventory-service/internal/variant"

type ItemFields struct {
	MerchantID        string
	Name              string
	SKU               string
	Quantity          int
	LowStockThreshold int
	Attributes        []variant.Attribute
	// Variants is the form's serialized replace-set: a JSON array of
	// {attrs, qty, sku}.
	Variants string
}

type CreateItemInput struct {
	ItemFields
}

type UpdateItemInput struct {
	ID string
	ItemFields
}

// VariantEdit is one interactive change; nil fields are left untouched.
type VariantEdit struct {
	Attrs map[string]string `json:"attrs"`
	Qty   *int              `json:"qty"`
	SKU   *string           `json:"sku"`
}

type PreviewVariantsInput struct {
	Attributes []variant.Attribute
	BaseSKU    string
	// Variants is the state already known for the session (persisted rows
	// or the previous preview).
	Variants []variant.State
	Edits    []VariantEdit
	// ItemQuantity is the scalar fallback used when no combination exists.
	ItemQuantity int
	Cap          int
}
