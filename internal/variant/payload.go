package variant

import (
	"encoding/json"
	"strings"
)

// ParseStates decodes the opaque variants field of an item submission, a JSON
// array of {attrs, qty, sku}. Quantities are coerced, SKUs trimmed and
// entries without any attribute dropped, so a half-edited form still saves.
// A payload that is not a JSON array, or that names one combination twice,
// is rejected.
func ParseStates(payload string) ([]State, error) {
	payload = strings.TrimSpace(payload)
	if payload == "" || payload == "null" {
		return nil, nil
	}

	var elems []json.RawMessage
	if err := json.Unmarshal([]byte(payload), &elems); err != nil {
		return nil, NewValidationError("variants", "must be a JSON array of {attrs, qty, sku}")
	}

	states := make([]State, 0, len(elems))
	seen := make(map[string]bool, len(elems))
	for _, e := range elems {
		var entry legacyEntry
		if err := json.Unmarshal(e, &entry); err != nil {
			continue
		}
		st := State{Attrs: make(map[string]string, len(entry.Attrs)), Qty: CoerceQty(entry.Qty)}
		for name, v := range entry.Attrs {
			name = strings.TrimSpace(name)
			if s, ok := stringify(v); ok && name != "" {
				st.Attrs[name] = s
			}
		}
		if len(st.Attrs) == 0 {
			continue
		}
		key, err := KeyOf(st.Attrs)
		if err != nil {
			return nil, NewValidationError("variants", err.Error())
		}
		if seen[key] {
			return nil, NewValidationError("variants", "combination "+quote(key)+" appears more than once")
		}
		seen[key] = true
		if sku, ok := entry.SKU.(string); ok {
			st.SKU = strings.TrimSpace(sku)
		}
		states = append(states, st)
	}
	return states, nil
}

// EncodeStates is the inverse of ParseStates.
func EncodeStates(states []State) (string, error) {
	if states == nil {
		states = []State{}
	}
	b, err := json.Marshal(states)
	if err != nil {
		return "", err
	}
	return string(b), nil
}
