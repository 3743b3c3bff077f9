package variant

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
)

// MaxQty is the largest quantity stored; the qty columns are 32-bit integers.
const MaxQty = math.MaxInt32

// AggregateQuantity is the on-hand quantity of an item: the sum of its
// variant quantities when it has variants, otherwise its own scalar quantity.
// Every read path that shows or exports a quantity goes through here (or
// AggregateTotals), so list, detail and sweep never disagree.
func AggregateQuantity(itemQty int, variants []State) int {
	sum := 0
	for _, v := range variants {
		sum += clampQty(v.Qty)
	}
	return AggregateTotals(itemQty, len(variants), sum)
}

// AggregateTotals applies the same rule to totals summed elsewhere (in SQL).
func AggregateTotals(itemQty, variantCount, variantSum int) int {
	if variantCount > 0 {
		return clampQty(variantSum)
	}
	return clampQty(itemQty)
}

// IsLowStock reports qty at or below threshold. A threshold of 0 means the
// item is not tracked and is never low.
func IsLowStock(threshold, qty int) bool {
	return threshold > 0 && qty <= threshold
}

// CoerceQty turns loosely typed input (JSON numbers, numeric strings) into a
// quantity. Anything invalid, non-finite or negative becomes 0; fractions are
// truncated.
func CoerceQty(v any) int {
	switch t := v.(type) {
	case int:
		return clampQty(t)
	case int32:
		return clampQty(int(t))
	case int64:
		return coerceFloat(float64(t))
	case float32:
		return coerceFloat(float64(t))
	case float64:
		return coerceFloat(t)
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return 0
		}
		return coerceFloat(f)
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(t), 64)
		if err != nil {
			return 0
		}
		return coerceFloat(f)
	default:
		return 0
	}
}

func coerceFloat(f float64) int {
	if math.IsNaN(f) || math.IsInf(f, 0) || f <= 0 {
		return 0
	}
	if f >= MaxQty {
		return MaxQty
	}
	return int(f)
}

func clampQty(n int) int {
	if n < 0 {
		return 0
	}
	if n > MaxQty {
		return MaxQty
	}
	return n
}
