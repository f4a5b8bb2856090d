package jsonutil

import (
	"errors"
	"reflect"
	"testing"
)

func TestUnmarshal(t *testing.T) {
	v, err := Unmarshal([]byte(`{"kind":"tm:ltm:pool:poolcollectionstate","items":[{"name":"p1"}],"n":2}`))
	if err != nil {
		t.Fatalf("Unmarshal() error: %v", err)
	}

	obj, ok := v.(map[string]any)
	if !ok {
		t.Fatalf("Unmarshal() type = %T, want map", v)
	}
	if obj["n"] != float64(2) {
		t.Errorf("n = %v, want 2", obj["n"])
	}
	items, ok := obj["items"].([]any)
	if !ok || len(items) != 1 {
		t.Errorf("items = %v, want one element", obj["items"])
	}
}

func TestUnmarshal_Invalid(t *testing.T) {
	_, err := Unmarshal([]byte(`{"a":`))
	if !errors.Is(err, ErrSyntax) {
		t.Errorf("Unmarshal() error = %v, want ErrSyntax", err)
	}
}

func TestUnmarshalDuplicateKeys(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  any
	}{
		{
			name:  "no duplicates",
			input: `{"a":1,"b":"x"}`,
			want:  map[string]any{"a": float64(1), "b": "x"},
		},
		{
			name:  "two values",
			input: `{"a":1,"a":2}`,
			want:  map[string]any{"a": []any{float64(1), float64(2)}},
		},
		{
			name:  "three values keep order",
			input: `{"a":"x","b":true,"a":"y","a":"z"}`,
			want:  map[string]any{"a": []any{"x", "y", "z"}, "b": true},
		},
		{
			name:  "array value is not confused with coalesced",
			input: `{"a":[1],"a":[2]}`,
			want:  map[string]any{"a": []any{[]any{float64(1)}, []any{float64(2)}}},
		},
		{
			name:  "nested objects",
			input: `{"o":{"k":null,"k":false},"list":[{"x":1,"x":2}]}`,
			want: map[string]any{
				"o":    map[string]any{"k": []any{nil, false}},
				"list": []any{map[string]any{"x": []any{float64(1), float64(2)}}},
			},
		},
		{
			name:  "empty containers",
			input: `{"a":{},"b":[]}`,
			want:  map[string]any{"a": map[string]any{}, "b": []any{}},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := UnmarshalDuplicateKeys([]byte(tt.input))
			if err != nil {
				t.Fatalf("UnmarshalDuplicateKeys() error: %v", err)
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("UnmarshalDuplicateKeys() = %#v, want %#v", got, tt.want)
			}
		})
	}
}

func TestUnmarshalDuplicateKeys_Invalid(t *testing.T) {
	for _, input := range []string{`{"a":}`, `{"a":1} {"b":2}`, ``} {
		if _, err := UnmarshalDuplicateKeys([]byte(input)); !errors.Is(err, ErrSyntax) {
			t.Errorf("UnmarshalDuplicateKeys(%q) error = %v, want ErrSyntax", input, err)
		}
	}
}
