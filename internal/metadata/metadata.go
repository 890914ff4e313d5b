// Package metadata defines the scalar metadata values attached to documents
// and the codec that folds a document title into the flat record stored by
// the vector index.
//
// A stored record has no native title field, so the title travels under the
// reserved key [TitleKey]. Flattening a map that already carries a "title"
// key overwrites that entry; the original value is lost on the way back.
package metadata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strconv"
)

// TitleKey is the reserved record key that holds the document title.
const TitleKey = "title"

// ErrUnsupported is returned when a value is not a string, number or bool.
var ErrUnsupported = errors.New("metadata: unsupported value type")

// Kind identifies which variant a [Value] holds.
type Kind uint8

const (
	// KindString is a UTF-8 string.
	KindString Kind = iota + 1
	// KindNumber is an IEEE-754 double.
	KindNumber
	// KindBool is a boolean.
	KindBool
)

// String returns the lowercase kind name.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	default:
		return "invalid"
	}
}

// Value is a tagged union of string, number and bool. The zero Value is
// invalid and is rejected by [Map.Validate].
type Value struct {
	kind Kind
	s    string
	n    float64
	b    bool
}

// String builds a string value.
func String(s string) Value { return Value{kind: KindString, s: s} }

// Number builds a numeric value.
func Number(n float64) Value { return Value{kind: KindNumber, n: n} }

// Bool builds a boolean value.
func Bool(b bool) Value { return Value{kind: KindBool, b: b} }

// Kind reports the variant held by v.
func (v Value) Kind() Kind { return v.kind }

// Valid reports whether v holds one of the three supported variants.
func (v Value) Valid() bool { return v.kind >= KindString && v.kind <= KindBool }

// AsString returns the string payload and whether v is a string.
func (v Value) AsString() (string, bool) { return v.s, v.kind == KindString }

// AsNumber returns the numeric payload and whether v is a number.
func (v Value) AsNumber() (float64, bool) { return v.n, v.kind == KindNumber }

// AsBool returns the boolean payload and whether v is a bool.
func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

// String renders v for display. Numbers use the shortest exact form.
func (v Value) String() string {
	switch v.kind {
	case KindString:
		return v.s
	case KindNumber:
		return strconv.FormatFloat(v.n, 'g', -1, 64)
	case KindBool:
		return strconv.FormatBool(v.b)
	default:
		return ""
	}
}

// Any returns the payload as a plain Go value (string, float64 or bool).
func (v Value) Any() any {
	switch v.kind {
	case KindString:
		return v.s
	case KindNumber:
		return v.n
	case KindBool:
		return v.b
	default:
		return nil
	}
}

// MarshalJSON encodes v as the bare JSON scalar.
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindString:
		return json.Marshal(v.s)
	case KindNumber:
		if math.IsNaN(v.n) || math.IsInf(v.n, 0) {
			return nil, fmt.Errorf("metadata: number %v is not representable in JSON", v.n)
		}
		return json.Marshal(v.n)
	case KindBool:
		return json.Marshal(v.b)
	default:
		return nil, fmt.Errorf("%w: zero value", ErrUnsupported)
	}
}

// UnmarshalJSON accepts a JSON string, number or boolean. null, arrays and
// objects are rejected.
func (v *Value) UnmarshalJSON(data []byte) error {
	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return fmt.Errorf("%w: empty input", ErrUnsupported)
	}
	switch data[0] {
	case '"':
		var s string
		if err := json.Unmarshal(data, &s); err != nil {
			return fmt.Errorf("metadata: decode string: %w", err)
		}
		*v = String(s)
	case 't', 'f':
		var b bool
		if err := json.Unmarshal(data, &b); err != nil {
			return fmt.Errorf("metadata: decode bool: %w", err)
		}
		*v = Bool(b)
	case 'n':
		return fmt.Errorf("%w: null", ErrUnsupported)
	case '[', '{':
		return fmt.Errorf("%w: nested values are not allowed", ErrUnsupported)
	default:
		var n float64
		if err := json.Unmarshal(data, &n); err != nil {
			return fmt.Errorf("metadata: decode number: %w", err)
		}
		*v = Number(n)
	}
	return nil
}

// Map is the free-form metadata attached to a document.
type Map map[string]Value

// Clone returns a shallow copy of m. A nil map clones to an empty map.
func (m Map) Clone() Map {
	out := make(Map, len(m)+1)
	for k, v := range m {
		out[k] = v
	}
	return out
}

// Validate returns an error naming the first key holding an invalid value.
func (m Map) Validate() error {
	for k, v := range m {
		if !v.Valid() {
			return fmt.Errorf("%w: key %q", ErrUnsupported, k)
		}
	}
	return nil
}

// Any converts m to a map of plain Go values.
func (m Map) Any() map[string]any {
	out := make(map[string]any, len(m))
	for k, v := range m {
		out[k] = v.Any()
	}
	return out
}

// Equal reports whether m and o hold the same keys and values.
func (m Map) Equal(o Map) bool {
	if len(m) != len(o) {
		return false
	}
	for k, v := range m {
		ov, ok := o[k]
		if !ok || ov != v {
			return false
		}
	}
	return true
}

// FromAny converts a map of plain Go values into a Map. Integer and float
// types become numbers; anything other than a scalar is rejected.
func FromAny(in map[string]any) (Map, error) {
	out := make(Map, len(in))
	for k, raw := range in {
		v, err := valueOf(raw)
		if err != nil {
			return nil, fmt.Errorf("metadata: key %q: %w", k, err)
		}
		out[k] = v
	}
	return out, nil
}

func valueOf(raw any) (Value, error) {
	switch x := raw.(type) {
	case Value:
		if !x.Valid() {
			return Value{}, ErrUnsupported
		}
		return x, nil
	case string:
		return String(x), nil
	case bool:
		return Bool(x), nil
	case float64:
		return Number(x), nil
	case float32:
		return Number(float64(x)), nil
	case int:
		return Number(float64(x)), nil
	case int8:
		return Number(float64(x)), nil
	case int16:
		return Number(float64(x)), nil
	case int32:
		return Number(float64(x)), nil
	case int64:
		return Number(float64(x)), nil
	case uint:
		return Number(float64(x)), nil
	case uint8:
		return Number(float64(x)), nil
	case uint16:
		return Number(float64(x)), nil
	case uint32:
		return Number(float64(x)), nil
	case uint64:
		return Number(float64(x)), nil
	case json.Number:
		n, err := x.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrUnsupported, err)
		}
		return Number(n), nil
	default:
		return Value{}, fmt.Errorf("%w: %T", ErrUnsupported, raw)
	}
}

// Flatten returns a copy of m with the title stored under [TitleKey].
// m is never modified.
func Flatten(title string, m Map) Map {
	rec := m.Clone()
	rec[TitleKey] = String(title)
	return rec
}

// Unflatten splits a stored record into the title and the remaining
// metadata. A missing title yields "". rec is never modified.
func Unflatten(rec Map) (string, Map) {
	title := ""
	out := make(Map, len(rec))
	for k, v := range rec {
		if k == TitleKey {
			title = v.String()
			continue
		}
		out[k] = v
	}
	return title, out
}
