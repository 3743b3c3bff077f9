package cache

import (
	"fmt"
	"time"
)

const (
	ListTTL     = 5 * time.Minute
	LowStockTTL = 10 * time.Minute
)

func ItemListKey(merchantID string, filterHash [16]byte) string {
	return fmt.Sprintf("items:list:%s:%x", merchantID, filterHash)
}

func ItemListPattern(merchantID string) string {
	return fmt.Sprintf("items:list:%s:*", merchantID)
}

// LowStockCountKey holds the merchant's low-stock badge count.
func LowStockCountKey(merchantID string) string {
	return "lowstock:count:" + merchantID
}

const LowStockCountPattern = "lowstock:count:*"

func ItemLockKey(itemID string) string {
	return "lock:item:" + itemID
}
