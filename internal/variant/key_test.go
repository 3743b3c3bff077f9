package variant

import (
	"errors"
	"reflect"
	"testing"
)

func TestKeyOfIsOrderIndependent(t *testing.T) {
	a := map[string]string{}
	a["Size"] = "M"
	a["Color"] = "Blue"
	a["Fit"] = "Slim"

	b := map[string]string{}
	b["Fit"] = "Slim"
	b["Color"] = "Blue"
	b["Size"] = "M"

	ka, err := KeyOf(a)
	if err != nil {
		t.Fatal(err)
	}
	kb, err := KeyOf(b)
	if err != nil {
		t.Fatal(err)
	}
	if ka != kb {
		t.Errorf("keys differ: %q vs %q", ka, kb)
	}
	if ka != "Color=Blue|Fit=Slim|Size=M" {
		t.Errorf("unexpected key %q", ka)
	}
}

func TestKeyOfUsesOrdinalComparison(t *testing.T) {
	key := MustKeyOf(map[string]string{"b": "1", "B": "2", "a": "3"})
	if key != "B=2|a=3|b=1" {
		t.Errorf("key = %q, want byte-order sort", key)
	}
}

func TestKeyOfRejectsDelimiters(t *testing.T) {
	for _, assign := range []map[string]string{
		{"Si|ze": "S"},
		{"Si=ze": "S"},
		{"Size": "S|M"},
	} {
		if _, err := KeyOf(assign); !errors.Is(err, ErrKeyDelimiter) {
			t.Errorf("KeyOf(%v) error = %v, want ErrKeyDelimiter", assign, err)
		}
	}
}

func TestParseKeyRoundTrip(t *testing.T) {
	tests := []map[string]string{
		{},
		{"Color": "Red"},
		{"Color": "Red", "Size": "XL"},
		{"Formula": "a=b", "Empty": ""},
	}
	for _, assign := range tests {
		key := MustKeyOf(assign)
		got, err := ParseKey(key)
		if err != nil {
			t.Fatalf("ParseKey(%q): %v", key, err)
		}
		if !reflect.DeepEqual(got, assign) {
			t.Errorf("ParseKey(KeyOf(%v)) = %v", assign, got)
		}
	}
}

func TestParseKeyMalformed(t *testing.T) {
	for _, key := range []string{"Color", "Color=Red|Size", "A=1|A=2"} {
		if _, err := ParseKey(key); !errors.Is(err, ErrMalformedKey) {
			t.Errorf("ParseKey(%q) error = %v, want ErrMalformedKey", key, err)
		}
	}
}
