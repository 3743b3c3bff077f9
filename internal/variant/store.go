package variant

import (
	"fmt"
	"sort"
	"strings"
)

// State is one variant's quantity and SKU, in the {attrs, qty, sku} shape the
// form submits and the repository persists. An empty SKU means unset.
type State struct {
	Attrs map[string]string `json:"attrs"`
	Qty   int               `json:"qty"`
	SKU   string            `json:"sku,omitempty"`
}

// Store holds variant state for one edit session, keyed by KeyOf(attrs).
// Entries that no current combination reaches are retained, so removing an
// attribute and adding it back restores the quantities entered before.
//
// A Store is owned by a single session and is not safe for concurrent use.
type Store struct {
	states map[string]State
}

func NewStore() *Store {
	return &Store{states: make(map[string]State)}
}

// Seed loads persisted states. A later state with the same key replaces an
// earlier one.
func (s *Store) Seed(persisted []State) error {
	for _, p := range persisted {
		key, err := KeyOf(p.Attrs)
		if err != nil {
			return err
		}
		s.states[key] = State{
			Attrs: copyAttrs(p.Attrs),
			Qty:   clampQty(p.Qty),
			SKU:   strings.TrimSpace(p.SKU),
		}
	}
	return nil
}

func (s *Store) Get(key string) (State, bool) {
	st, ok := s.states[key]
	return st, ok
}

func (s *Store) Len() int {
	return len(s.states)
}

// SetQty upserts the quantity at assign's key. Negative values become 0.
func (s *Store) SetQty(assign map[string]string, qty int) error {
	return s.update(assign, func(st *State) {
		st.Qty = clampQty(qty)
	})
}

// SetSKU upserts the SKU at assign's key. A blank SKU clears it.
func (s *Store) SetSKU(assign map[string]string, sku string) error {
	return s.update(assign, func(st *State) {
		st.SKU = strings.TrimSpace(sku)
	})
}

func (s *Store) update(assign map[string]string, apply func(*State)) error {
	key, err := KeyOf(assign)
	if err != nil {
		return err
	}
	st, ok := s.states[key]
	if !ok {
		st = State{Attrs: copyAttrs(assign)}
	}
	apply(&st)
	s.states[key] = st
	return nil
}

// Materialize returns the ordered replace-set for combos. Known state is
// looked up by content; a variant without a SKU gets "{hint}-{n}" (n is the
// 1-based position in combos) when the trimmed hint is non-empty.
func (s *Store) Materialize(combos []Combination, baseSKUHint string) []State {
	hint := strings.TrimSpace(baseSKUHint)
	out := make([]State, 0, len(combos))
	for i, c := range combos {
		st := State{Attrs: c.Assignment()}
		if key, err := KeyOf(st.Attrs); err == nil {
			if prev, ok := s.states[key]; ok {
				st.Qty = prev.Qty
				st.SKU = prev.SKU
			}
		}
		if st.SKU == "" && hint != "" {
			st.SKU = fmt.Sprintf("%s-%d", hint, i+1)
		}
		out = append(out, st)
	}
	return out
}

// DuplicateSKUs lists, sorted, every non-empty SKU used by more than one state.
func DuplicateSKUs(states []State) []string {
	counts := make(map[string]int, len(states))
	for _, st := range states {
		if st.SKU != "" {
			counts[st.SKU]++
		}
	}
	var dups []string
	for sku, n := range counts {
		if n > 1 {
			dups = append(dups, sku)
		}
	}
	sort.Strings(dups)
	return dups
}

func copyAttrs(attrs map[string]string) map[string]string {
	out := make(map[string]string, len(attrs))
	for k, v := range attrs {
		out[k] = v
	}
	return out
}
