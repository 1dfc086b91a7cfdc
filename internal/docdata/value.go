// Package docdata holds the dynamically typed JSON tree stored in a
// document's data column.
package docdata

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"sort"
)

type Kind uint8

const (
	KindNull Kind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k Kind) String() string {
	switch k {
	case KindNull:
		return "null"
	case KindBool:
		return "bool"
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindArray:
		return "array"
	case KindObject:
		return "object"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// Value is a JSON value. The zero Value is null.
type Value struct {
	kind   Kind
	b      bool
	num    json.Number
	str    string
	arr    []Value
	object Object
}

// Object is a JSON object keyed by member name.
type Object map[string]Value

var (
	ErrNotObject    = errors.New("json value is not an object")
	ErrTrailingData = errors.New("unexpected data after json value")
)

func Null() Value                { return Value{} }
func Bool(v bool) Value          { return Value{kind: KindBool, b: v} }
func Number(n json.Number) Value { return Value{kind: KindNumber, num: n} }
func String(s string) Value      { return Value{kind: KindString, str: s} }

func Array(items ...Value) Value {
	if items == nil {
		items = []Value{}
	}
	return Value{kind: KindArray, arr: items}
}

func FromObject(o Object) Value {
	if o == nil {
		o = Object{}
	}
	return Value{kind: KindObject, object: o}
}

func (v Value) Kind() Kind { return v.kind }

func (v Value) IsNull() bool { return v.kind == KindNull }

func (v Value) AsBool() (bool, bool) { return v.b, v.kind == KindBool }

func (v Value) AsNumber() (json.Number, bool) { return v.num, v.kind == KindNumber }

func (v Value) AsString() (string, bool) { return v.str, v.kind == KindString }

func (v Value) AsArray() ([]Value, bool) { return v.arr, v.kind == KindArray }

func (v Value) AsObject() (Object, bool) { return v.object, v.kind == KindObject }

// Get returns the member of an object value.
func (v Value) Get(key string) (Value, bool) {
	if v.kind != KindObject {
		return Value{}, false
	}
	member, ok := v.object[key]
	return member, ok
}

func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindNull:
		return []byte("null"), nil
	case KindBool:
		if v.b {
			return []byte("true"), nil
		}
		return []byte("false"), nil
	case KindNumber:
		if v.num == "" {
			return []byte("0"), nil
		}
		return []byte(v.num), nil
	case KindString:
		return json.Marshal(v.str)
	case KindArray:
		if v.arr == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.arr)
	case KindObject:
		if v.object == nil {
			return []byte("{}"), nil
		}
		return json.Marshal(map[string]Value(v.object))
	default:
		return nil, fmt.Errorf("marshal %s", v.kind)
	}
}

func (v *Value) UnmarshalJSON(data []byte) error {
	raw, err := DecodeStrict(bytes.NewReader(data))
	if err != nil {
		return err
	}
	parsed, err := FromInterface(raw)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// DecodeStrict decodes exactly one JSON value from r, keeping numbers as
// json.Number. Anything but whitespace after the value is an error.
func DecodeStrict(r io.Reader) (any, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil {
		return nil, err
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return nil, ErrTrailingData
	}
	return raw, nil
}

// FromInterface converts a decoded encoding/json tree into a Value.
// Floats and integers are accepted in addition to json.Number.
func FromInterface(raw any) (Value, error) {
	switch typed := raw.(type) {
	case nil:
		return Null(), nil
	case bool:
		return Bool(typed), nil
	case json.Number:
		return Number(typed), nil
	case float64:
		return Number(json.Number(fmt.Sprint(typed))), nil
	case int:
		return Number(json.Number(fmt.Sprint(typed))), nil
	case int64:
		return Number(json.Number(fmt.Sprint(typed))), nil
	case string:
		return String(typed), nil
	case []any:
		items := make([]Value, 0, len(typed))
		for _, item := range typed {
			converted, err := FromInterface(item)
			if err != nil {
				return Value{}, err
			}
			items = append(items, converted)
		}
		return Array(items...), nil
	case map[string]any:
		obj := make(Object, len(typed))
		for key, item := range typed {
			converted, err := FromInterface(item)
			if err != nil {
				return Value{}, err
			}
			obj[key] = converted
		}
		return FromObject(obj), nil
	case Value:
		return typed, nil
	default:
		return Value{}, fmt.Errorf("unsupported json type %T", raw)
	}
}

// Interface returns the plain Go tree for v, numbers stay json.Number.
func (v Value) Interface() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindNumber:
		return v.num
	case KindString:
		return v.str
	case KindArray:
		out := make([]any, 0, len(v.arr))
		for _, item := range v.arr {
			out = append(out, item.Interface())
		}
		return out
	case KindObject:
		return v.object.Interface()
	default:
		return nil
	}
}

func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindNull:
		return true
	case KindBool:
		return v.b == other.b
	case KindNumber:
		return numbersEqual(v.num, other.num)
	case KindString:
		return v.str == other.str
	case KindArray:
		if len(v.arr) != len(other.arr) {
			return false
		}
		for i := range v.arr {
			if !v.arr[i].Equal(other.arr[i]) {
				return false
			}
		}
		return true
	case KindObject:
		return v.object.Equal(other.object)
	default:
		return false
	}
}

// numbersEqual treats 1 and 1.0 as equal; Postgres jsonb normalizes
// numeric text on the way back out.
func numbersEqual(a, b json.Number) bool {
	if a == b {
		return true
	}
	af, errA := a.Float64()
	bf, errB := b.Float64()
	return errA == nil && errB == nil && af == bf
}

func (o Object) Equal(other Object) bool {
	if len(o) != len(other) {
		return false
	}
	for key, value := range o {
		otherValue, ok := other[key]
		if !ok || !value.Equal(otherValue) {
			return false
		}
	}
	return true
}

func (o Object) Interface() map[string]any {
	out := make(map[string]any, len(o))
	for key, value := range o {
		out[key] = value.Interface()
	}
	return out
}

func (o Object) Keys() []string {
	keys := make([]string, 0, len(o))
	for key := range o {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys
}

func (o Object) MarshalJSON() ([]byte, error) {
	if o == nil {
		return []byte("{}"), nil
	}
	return json.Marshal(map[string]Value(o))
}

func (o *Object) UnmarshalJSON(data []byte) error {
	if string(bytes.TrimSpace(data)) == "null" {
		*o = nil
		return nil
	}
	parsed, err := ParseObject(data)
	if err != nil {
		return err
	}
	*o = parsed
	return nil
}

// ParseObject decodes data and fails unless it is a JSON object.
func ParseObject(data []byte) (Object, error) {
	var v Value
	if err := v.UnmarshalJSON(data); err != nil {
		return nil, fmt.Errorf("decode json object: %w", err)
	}
	obj, ok := v.AsObject()
	if !ok {
		return nil, fmt.Errorf("%w: got %s", ErrNotObject, v.kind)
	}
	return obj, nil
}

// ExtractedPair is one entry of the conventional dataExtracted list.
type ExtractedPair struct {
	Key   string
	Value string
}

// SchemaName returns the first schemaName label found on the object.
func (o Object) SchemaName() string {
	names := schemaNamesOf(o["schemaName"])
	if len(names) == 0 {
		return ""
	}
	return names[0]
}

// ExtractedPairs returns the conventional dataExtracted key/value list.
// Non-string values are rendered as JSON text.
func (o Object) ExtractedPairs() []ExtractedPair {
	items, ok := o["dataExtracted"].AsArray()
	if !ok {
		return nil
	}
	pairs := make([]ExtractedPair, 0, len(items))
	for _, item := range items {
		entry, ok := item.AsObject()
		if !ok {
			continue
		}
		key, _ := entry["key"].AsString()
		pairs = append(pairs, ExtractedPair{Key: key, Value: entry["value"].Text()})
	}
	return pairs
}

// Text renders a value for display: strings as-is, null as empty,
// everything else as compact JSON.
func (v Value) Text() string {
	switch v.kind {
	case KindNull:
		return ""
	case KindString:
		return v.str
	default:
		encoded, err := v.MarshalJSON()
		if err != nil {
			return ""
		}
		return string(encoded)
	}
}
