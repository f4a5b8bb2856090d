// Package jsonutil decodes appliance response bodies.
//
// Regular bodies go through goccy/go-json. Bodies that may repeat an object key
// (some appliance shell/command outputs do) can be decoded with UnmarshalDuplicateKeys,
// which keeps every value instead of the last one.
package jsonutil

import (
	"bytes"
	jsonstd "encoding/json"
	"errors"
	"fmt"
	"io"

	"github.com/goccy/go-json"
)

// ErrSyntax wraps every decoding failure.
var ErrSyntax = errors.New("invalid JSON")

// Unmarshal decodes data into a generic value (map[string]any, []any, string,
// float64, bool or nil).
func Unmarshal(data []byte) (any, error) {
	var v any
	if err := json.Unmarshal(data, &v); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	return v, nil
}

// Marshal encodes v.
func Marshal(v any) ([]byte, error) {
	return json.Marshal(v)
}

// UnmarshalDuplicateKeys decodes data like Unmarshal, except that repeated keys
// inside one object are collected into an array in first-seen order.
func UnmarshalDuplicateKeys(data []byte) (any, error) {
	dec := jsonstd.NewDecoder(bytes.NewReader(data))
	v, err := decodeValue(dec)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrSyntax, err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, fmt.Errorf("%w: trailing data after top-level value", ErrSyntax)
	}
	return v, nil
}

func decodeValue(dec *jsonstd.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	switch t := tok.(type) {
	case jsonstd.Delim:
		switch t {
		case '{':
			return decodeObject(dec)
		case '[':
			return decodeArray(dec)
		}
		return nil, fmt.Errorf("unexpected delimiter %q", t)
	default:
		// string, float64, bool or nil
		return t, nil
	}
}

func decodeObject(dec *jsonstd.Decoder) (map[string]any, error) {
	obj := make(map[string]any)
	coalesced := make(map[string]bool)

	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, err
		}
		key, ok := tok.(string)
		if !ok {
			return nil, fmt.Errorf("object key must be a string, got %v", tok)
		}
		val, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}

		prev, seen := obj[key]
		switch {
		case !seen:
			obj[key] = val
		case coalesced[key]:
			obj[key] = append(prev.([]any), val)
		default:
			obj[key] = []any{prev, val}
			coalesced[key] = true
		}
	}

	// closing '}'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return obj, nil
}

func decodeArray(dec *jsonstd.Decoder) ([]any, error) {
	arr := make([]any, 0)
	for dec.More() {
		val, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		arr = append(arr, val)
	}
	// closing ']'
	if _, err := dec.Token(); err != nil {
		return nil, err
	}
	return arr, nil
}
