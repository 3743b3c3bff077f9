package variant

import (
	"math"
	"strings"
)

// DefaultCombinationCap bounds how many combinations a single Generate call
// returns when the caller does not pass a cap.
const DefaultCombinationCap = 50

// Pair is one attribute assignment inside a combination.
type Pair struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Combination assigns exactly one value to every attribute that has values.
// Pairs keep the attribute order the combination was generated in.
type Combination struct {
	Pairs []Pair `json:"pairs"`
}

func (c Combination) Assignment() map[string]string {
	m := make(map[string]string, len(c.Pairs))
	for _, p := range c.Pairs {
		m[p.Name] = p.Value
	}
	return m
}

// Label renders the combination for display, e.g. "S / Red".
func (c Combination) Label() string {
	parts := make([]string, len(c.Pairs))
	for i, p := range c.Pairs {
		parts[i] = p.Value
	}
	return strings.Join(parts, " / ")
}

type GenerateResult struct {
	Combinations []Combination `json:"combinations"`
	// Total is the size of the full product before the cap was applied.
	Total     int  `json:"total"`
	Truncated bool `json:"truncated"`
}

// Generate expands attrs into their Cartesian product, depth-first in
// attribute order and value order. Attributes without values are skipped
// rather than zeroing the product. At most limit combinations are returned;
// the rest are dropped and Truncated is set.
func Generate(attrs []Attribute, limit int) GenerateResult {
	if limit <= 0 {
		limit = DefaultCombinationCap
	}

	axes := make([]Attribute, 0, len(attrs))
	for _, a := range NormalizeAttributes(attrs) {
		if len(a.Values) > 0 {
			axes = append(axes, a)
		}
	}
	if len(axes) == 0 {
		return GenerateResult{}
	}

	total := productSize(axes)
	res := GenerateResult{
		Combinations: make([]Combination, 0, min(total, limit)),
		Total:        total,
		Truncated:    total > limit,
	}

	path := make([]Pair, len(axes))
	var walk func(depth int) bool
	walk = func(depth int) bool {
		if len(res.Combinations) >= limit {
			return false
		}
		if depth == len(axes) {
			pairs := make([]Pair, len(path))
			copy(pairs, path)
			res.Combinations = append(res.Combinations, Combination{Pairs: pairs})
			return true
		}
		for _, v := range axes[depth].Values {
			path[depth] = Pair{Name: axes[depth].Name, Value: v}
			if !walk(depth + 1) {
				return false
			}
		}
		return true
	}
	walk(0)

	return res
}

// productSize saturates at math.MaxInt instead of overflowing.
func productSize(axes []Attribute) int {
	total := 1
	for _, a := range axes {
		n := len(a.Values)
		if total > math.MaxInt/n {
			return math.MaxInt
		}
		total *= n
	}
	return total
}
