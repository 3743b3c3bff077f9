package variant

import (
	"sort"
	"strings"
)

// Attribute is a named axis of variation for an item, e.g. Color: [Red, Blue].
type Attribute struct {
	Name   string   `json:"name"`
	Values []string `json:"values"`
}

// NormalizeAttributes trims names and values, drops empty and repeated values
// and keeps only the first row for a given name. Rows left without values are
// kept: they are still being edited and simply contribute nothing to Generate.
func NormalizeAttributes(attrs []Attribute) []Attribute {
	out := make([]Attribute, 0, len(attrs))
	seen := make(map[string]bool, len(attrs))
	for _, a := range attrs {
		name := strings.TrimSpace(a.Name)
		if name == "" || seen[name] {
			continue
		}
		seen[name] = true
		out = append(out, Attribute{Name: name, Values: normalizeValues(a.Values)})
	}
	return out
}

// ValidateAttributes reports names or values that cannot be represented in a
// variant key.
func ValidateAttributes(attrs []Attribute) error {
	for _, a := range attrs {
		if strings.ContainsAny(a.Name, pairSeparator+kvSeparator) {
			return NewValidationError("attributes", "attribute name "+quote(a.Name)+" must not contain '|' or '='")
		}
		for _, v := range a.Values {
			if strings.Contains(v, pairSeparator) {
				return NewValidationError("attributes", "value "+quote(v)+" of "+quote(a.Name)+" must not contain '|'")
			}
		}
	}
	return nil
}

// AttributesFromOptions turns a stored options mapping back into an attribute
// list, ordered by name since the JSON object carries no order.
func AttributesFromOptions(opts AttributeOptions) []Attribute {
	names := make([]string, 0, len(opts))
	for name := range opts {
		names = append(names, name)
	}
	sort.Strings(names)

	out := make([]Attribute, 0, len(names))
	for _, name := range names {
		out = append(out, Attribute{Name: name, Values: append([]string(nil), opts[name]...)})
	}
	return out
}

func normalizeValues(values []string) []string {
	out := make([]string, 0, len(values))
	seen := make(map[string]bool, len(values))
	for _, v := range values {
		v = strings.TrimSpace(v)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}

func quote(s string) string {
	return "\"" + s + "\""
}
