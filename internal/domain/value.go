package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"strconv"
)

// Kind identifies which variant a Value holds.
type Kind uint8

const (
	KindNull Kind = iota
	KindScalar
	KindObject
	KindList
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindScalar:
		return "scalar"
	case KindObject:
		return "object"
	case KindList:
		return "list"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a node of a JSON-like tree: null, a scalar (string, bool or
// json.Number), an object or a list. The zero Value is null.
type Value struct {
	kind   Kind
	scalar any
	object map[string]Value
	list   []Value
}

// Null is the null Value.
var Null = Value{}

// Scalar wraps a string, bool or number. Integers and floats are stored as
// json.Number so they render exactly as they were received; nil yields Null.
func Scalar(v any) Value {
	switch typed := v.(type) {
	case nil:
		return Null
	case string, bool, json.Number:
		return Value{kind: KindScalar, scalar: typed}
	case int:
		return Value{kind: KindScalar, scalar: json.Number(strconv.Itoa(typed))}
	case int64:
		return Value{kind: KindScalar, scalar: json.Number(strconv.FormatInt(typed, 10))}
	case float64:
		return Value{kind: KindScalar, scalar: json.Number(strconv.FormatFloat(typed, 'g', -1, 64))}
	default:
		return Value{kind: KindScalar, scalar: fmt.Sprint(typed)}
	}
}

// Object builds an object Value. A nil map yields an empty object.
func Object(fields map[string]Value) Value {
	if fields == nil {
		fields = map[string]Value{}
	}
	return Value{kind: KindObject, object: fields}
}

// List builds a list Value.
func List(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindList, list: items}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

// Field returns the named field of an object. It reports false for absent
// fields and for values that are not objects; the returned Value is then Null.
func (v Value) Field(name string) (Value, bool) {
	if v.kind != KindObject {
		return Null, false
	}
	field, ok := v.object[name]
	return field, ok
}

// Items returns the elements of a list, or nil for any other kind.
func (v Value) Items() []Value {
	if v.kind != KindList {
		return nil
	}
	return v.list
}

// Raw returns the scalar payload (string, bool or json.Number), or nil.
func (v Value) Raw() any {
	if v.kind != KindScalar {
		return nil
	}
	return v.scalar
}

// Interface converts the Value back into plain Go values as produced by
// encoding/json with UseNumber.
func (v Value) Interface() any {
	switch v.kind {
	case KindScalar:
		return v.scalar
	case KindObject:
		out := make(map[string]any, len(v.object))
		for key, field := range v.object {
			out[key] = field.Interface()
		}
		return out
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Interface()
		}
		return out
	default:
		return nil
	}
}

// String renders scalars as text, null as the empty string and containers as JSON.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindScalar:
		switch typed := v.scalar.(type) {
		case string:
			return typed
		case bool:
			return strconv.FormatBool(typed)
		case json.Number:
			return typed.String()
		default:
			return fmt.Sprint(typed)
		}
	default:
		encoded, err := json.Marshal(v)
		if err != nil {
			return ""
		}
		return string(encoded)
	}
}

// Key is a kind-qualified rendering used to tell values apart when grouping:
// the string "1" and the number 1 have different keys, while the numbers 1
// and 1.0 share one.
func (v Value) Key() string {
	switch v.kind {
	case KindNull:
		return "z:"
	case KindScalar:
		switch v.scalar.(type) {
		case string:
			return "s:" + v.String()
		case bool:
			return "b:" + v.String()
		default:
			return "n:" + v.numberKey()
		}
	default:
		return "j:" + v.String()
	}
}

func (v Value) numberKey() string {
	number, ok := v.Number()
	if !ok {
		return v.String()
	}
	switch n := number.(type) {
	case int64:
		return strconv.FormatInt(n, 10)
	case float64:
		if n == math.Trunc(n) && math.Abs(n) < 1<<63 {
			return strconv.FormatInt(int64(n), 10)
		}
		return strconv.FormatFloat(n, 'g', -1, 64)
	default:
		return v.String()
	}
}

// Number returns the numeric payload of a number scalar. Integral numbers are
// returned as int64, everything else as float64.
func (v Value) Number() (any, bool) {
	number, ok := v.scalar.(json.Number)
	if v.kind != KindScalar || !ok {
		return nil, false
	}
	if i, err := number.Int64(); err == nil {
		return i, true
	}
	if f, err := number.Float64(); err == nil {
		return f, true
	}
	return nil, false
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindScalar:
		return json.Marshal(v.scalar)
	case KindObject:
		return json.Marshal(v.object)
	case KindList:
		return json.Marshal(v.list)
	default:
		return []byte("null"), nil
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := ParseJSON(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// ParseJSON decodes a JSON document into a Value, keeping numbers exact.
func ParseJSON(data []byte) (Value, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return Null, fmt.Errorf("decode tree: %w", err)
	}
	return FromAny(raw)
}

// FromAny converts decoded JSON (maps, slices and scalars) into a Value.
func FromAny(raw any) (Value, error) {
	switch typed := raw.(type) {
	case nil:
		return Null, nil
	case string, bool, json.Number, int, int64, float64:
		return Scalar(typed), nil
	case map[string]any:
		fields := make(map[string]Value, len(typed))
		for key, field := range typed {
			converted, err := FromAny(field)
			if err != nil {
				return Null, fmt.Errorf("field %s: %w", key, err)
			}
			fields[key] = converted
		}
		return Object(fields), nil
	case []any:
		items := make([]Value, len(typed))
		for i, item := range typed {
			converted, err := FromAny(item)
			if err != nil {
				return Null, fmt.Errorf("item %d: %w", i, err)
			}
			items[i] = converted
		}
		return List(items...), nil
	case Value:
		return typed, nil
	default:
		return Null, fmt.Errorf("unsupported tree value of type %T", raw)
	}
}
