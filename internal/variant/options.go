package variant

import (
	"bytes"
	"encoding/json"
	"errors"
	"sort"
	"strconv"
	"strings"
)

const (
	legacyVariantsKey    = "_variants"
	legacyVariantsAltKey = "__variants"

	// LegacyPayloadVersion tags payloads read from the embedded _variants array.
	LegacyPayloadVersion = 1
)

var ErrOptionsNotObject = errors.New("variant: options blob is not a JSON object")

// AttributeOptions maps an attribute name to its allowed values. It is the
// display/filter view of an item's options blob.
type AttributeOptions map[string][]string

// LegacyVariant is one entry of the pre-normalization options._variants array.
type LegacyVariant struct {
	Attrs map[string]string
	Qty   int
	SKU   string
}

type LegacyVariantsPayload struct {
	Version  int
	Variants []LegacyVariant
}

// Options is a parsed options blob. Legacy is nil when the blob carries no
// legacy variant entries.
type Options struct {
	Attributes AttributeOptions
	Legacy     *LegacyVariantsPayload
}

// ParseOptions splits a raw options blob into attribute option lists and the
// legacy variant payload. Keys starting with '_' are internal and never show
// up as attributes; non-array values are ignored. An empty or null blob
// parses to empty Options.
func ParseOptions(raw []byte) (Options, error) {
	opts := Options{Attributes: AttributeOptions{}}

	obj, err := decodeObject(raw)
	if err != nil {
		return opts, err
	}

	for key, val := range obj {
		if strings.HasPrefix(key, "_") {
			continue
		}
		if values, ok := stringList(val); ok {
			opts.Attributes[key] = values
		}
	}

	legacy := parseLegacyVariants(obj[legacyVariantsKey])
	if len(legacy) == 0 {
		legacy = parseLegacyVariants(obj[legacyVariantsAltKey])
	}
	if len(legacy) > 0 {
		opts.Legacy = &LegacyVariantsPayload{Version: LegacyPayloadVersion, Variants: legacy}
	}
	return opts, nil
}

// DeriveAttributeOptions collects, per attribute name, the distinct non-empty
// values seen across variants, in first-seen order.
func DeriveAttributeOptions(variants []LegacyVariant) AttributeOptions {
	out := AttributeOptions{}
	seen := make(map[string]map[string]bool)
	for _, v := range variants {
		names := make([]string, 0, len(v.Attrs))
		for name := range v.Attrs {
			names = append(names, name)
		}
		sort.Strings(names)

		for _, name := range names {
			value := v.Attrs[name]
			if value == "" {
				continue
			}
			if seen[name] == nil {
				seen[name] = make(map[string]bool)
			}
			if seen[name][value] {
				continue
			}
			seen[name][value] = true
			out[name] = append(out[name], value)
		}
	}
	return out
}

// OptionsFromAttributes is the options mapping saved with an item's
// attribute list.
func OptionsFromAttributes(attrs []Attribute) AttributeOptions {
	out := AttributeOptions{}
	for _, a := range NormalizeAttributes(attrs) {
		out[a.Name] = a.Values
	}
	return out
}

// RebuildOptions drops every '_'-prefixed key from raw and set-unions derived
// into the existing option arrays. Existing values keep their order and new
// ones are appended, so curated lists never shrink. A derived key whose
// existing value is not an array is overwritten. Other keys are kept as is.
// Running it again with the same input yields the same blob.
func RebuildOptions(raw []byte, derived AttributeOptions) ([]byte, error) {
	obj, err := decodeObject(raw)
	if err != nil {
		return nil, err
	}

	for key := range obj {
		if strings.HasPrefix(key, "_") {
			delete(obj, key)
		}
	}

	for name, values := range derived {
		existing, _ := stringList(obj[name])
		merged := unionValues(existing, values)
		b, err := json.Marshal(merged)
		if err != nil {
			return nil, err
		}
		obj[name] = b
	}

	return json.Marshal(obj)
}

// ReplaceAttributeOptions sets the blob's attribute lists to opts, dropping
// lists not in opts. Internal '_' keys survive only with keepInternal. An
// unreadable existing blob is replaced.
func ReplaceAttributeOptions(raw []byte, opts AttributeOptions, keepInternal bool) ([]byte, error) {
	out := make(map[string]json.RawMessage, len(opts))
	if keepInternal {
		if obj, err := decodeObject(raw); err == nil {
			for key, val := range obj {
				if strings.HasPrefix(key, "_") {
					out[key] = val
				}
			}
		}
	}
	for name, values := range opts {
		if values == nil {
			values = []string{}
		}
		b, err := json.Marshal(values)
		if err != nil {
			return nil, err
		}
		out[name] = b
	}
	return json.Marshal(out)
}

// Summarize renders options as "Color: Red, Blue; Size: S, M" for list views.
func Summarize(opts AttributeOptions) string {
	parts := make([]string, 0, len(opts))
	for _, a := range AttributesFromOptions(opts) {
		if len(a.Values) == 0 {
			continue
		}
		parts = append(parts, a.Name+": "+strings.Join(a.Values, ", "))
	}
	return strings.Join(parts, "; ")
}

func decodeObject(raw []byte) (map[string]json.RawMessage, error) {
	obj := make(map[string]json.RawMessage)
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null")) {
		return obj, nil
	}
	if trimmed[0] != '{' {
		return nil, ErrOptionsNotObject
	}
	if err := json.Unmarshal(trimmed, &obj); err != nil {
		return nil, errors.Join(ErrOptionsNotObject, err)
	}
	return obj, nil
}

type legacyEntry struct {
	Attrs map[string]any `json:"attrs"`
	Qty   any            `json:"qty"`
	SKU   any            `json:"sku"`
}

// parseLegacyVariants is lenient: entries that are not objects are skipped,
// attribute values are stringified and quantities coerced.
func parseLegacyVariants(raw json.RawMessage) []LegacyVariant {
	if len(raw) == 0 {
		return nil
	}
	var elems []json.RawMessage
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil
	}

	out := make([]LegacyVariant, 0, len(elems))
	for _, e := range elems {
		var entry legacyEntry
		if err := json.Unmarshal(e, &entry); err != nil {
			continue
		}
		lv := LegacyVariant{Attrs: make(map[string]string, len(entry.Attrs)), Qty: CoerceQty(entry.Qty)}
		for name, v := range entry.Attrs {
			name = strings.TrimSpace(name)
			if s, ok := stringify(v); ok && name != "" {
				lv.Attrs[name] = s
			}
		}
		if sku, ok := entry.SKU.(string); ok {
			lv.SKU = strings.TrimSpace(sku)
		}
		out = append(out, lv)
	}
	return out
}

func stringList(raw json.RawMessage) ([]string, bool) {
	if len(raw) == 0 {
		return nil, false
	}
	var elems []any
	if err := json.Unmarshal(raw, &elems); err != nil {
		return nil, false
	}
	out := make([]string, 0, len(elems))
	for _, e := range elems {
		if s, ok := stringify(e); ok {
			out = append(out, s)
		}
	}
	return out, true
}

func stringify(v any) (string, bool) {
	var s string
	switch t := v.(type) {
	case string:
		s = strings.TrimSpace(t)
	case float64:
		s = strconv.FormatFloat(t, 'f', -1, 64)
	case bool:
		s = strconv.FormatBool(t)
	default:
		return "", false
	}
	return s, s != ""
}

func unionValues(existing, add []string) []string {
	out := make([]string, 0, len(existing)+len(add))
	seen := make(map[string]bool, len(existing)+len(add))
	for _, list := range [][]string{existing, add} {
		for _, v := range list {
			if v == "" || seen[v] {
				continue
			}
			seen[v] = true
			out = append(out, v)
		}
	}
	return out
}
