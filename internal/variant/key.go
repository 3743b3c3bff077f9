package variant

import (
	"errors"
	"fmt"
	"sort"
	"strings"
)

// Names may contain neither separator; values may contain '=' but not '|'.
const (
	pairSeparator = "|"
	kvSeparator   = "="
)

var (
	ErrKeyDelimiter = errors.New("variant: attribute contains a reserved key delimiter")
	ErrMalformedKey = errors.New("variant: malformed key")
)

// KeyOf returns the canonical identity of an assignment: pairs sorted by
// name (byte order), rendered as name=value and joined with '|'. The key does
// not depend on map iteration or attribute order, so state keyed by it
// survives reordering of attributes.
func KeyOf(assign map[string]string) (string, error) {
	names := make([]string, 0, len(assign))
	for name, value := range assign {
		if strings.ContainsAny(name, pairSeparator+kvSeparator) || strings.Contains(value, pairSeparator) {
			return "", fmt.Errorf("%w: %q=%q", ErrKeyDelimiter, name, value)
		}
		names = append(names, name)
	}
	sort.Strings(names)

	var b strings.Builder
	for i, name := range names {
		if i > 0 {
			b.WriteString(pairSeparator)
		}
		b.WriteString(name)
		b.WriteString(kvSeparator)
		b.WriteString(assign[name])
	}
	return b.String(), nil
}

// MustKeyOf is KeyOf for assignments already checked by ValidateAttributes.
func MustKeyOf(assign map[string]string) string {
	key, err := KeyOf(assign)
	if err != nil {
		panic(err)
	}
	return key
}

// ParseKey is the inverse of KeyOf.
func ParseKey(key string) (map[string]string, error) {
	assign := make(map[string]string)
	if key == "" {
		return assign, nil
	}
	for _, part := range strings.Split(key, pairSeparator) {
		name, value, ok := strings.Cut(part, kvSeparator)
		if !ok {
			return nil, fmt.Errorf("%w: %q", ErrMalformedKey, key)
		}
		if _, dup := assign[name]; dup {
			return nil, fmt.Errorf("%w: repeated attribute %q", ErrMalformedKey, name)
		}
		assign[name] = value
	}
	return assign, nil
}
