package inventory

import "errors"

var (
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrVariantNotFound   = errors.New("variant not found")
	ErrStockBusy         = errors.New("item is being adjusted, try again")
	ErrConcurrentUpdate  = errors.New("stock changed during adjustment")
)
