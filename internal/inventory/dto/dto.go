package dto

import "time"

type SweepResult struct {
	LowStockCount int      `json:"low_stock_count"`
	ItemIDs       []string `json:"item_ids"`
}

type MovementFilters struct {
	MerchantID string
	ItemID     string
	StartDate  *time.Time
	EndDate    *time.Time
	Page       int
	PageSize   int
}
