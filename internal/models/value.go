package models

import (
	"encoding/json"
	"fmt"
	"sort"
)

// ValueKind discriminates the shapes a tracked field value can take.
type ValueKind int

const (
	KindNull ValueKind = iota
	KindBool
	KindNumber
	KindString
	KindArray
	KindObject
)

func (k ValueKind) String() string {
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
		return "unknown"
	}
}

// Value is a tagged union over the JSON-like shapes stored in field columns:
// scalars, arrays, or small objects. Consumers branch on Kind; only the
// accessor matching Kind holds data.
type Value struct {
	Kind   ValueKind
	Bool   bool
	Number float64
	Str    string
	Array  []Value
	Object map[string]Value
}

// Null returns the null value.
func Null() Value { return Value{Kind: KindNull} }

// BoolValue wraps a boolean.
func BoolValue(b bool) Value { return Value{Kind: KindBool, Bool: b} }

// NumberValue wraps a number.
func NumberValue(n float64) Value { return Value{Kind: KindNumber, Number: n} }

// StringValue wraps a string.
func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }

// ArrayValue wraps an ordered list.
func ArrayValue(items ...Value) Value { return Value{Kind: KindArray, Array: items} }

// ObjectValue wraps a key-value mapping.
func ObjectValue(fields map[string]Value) Value { return Value{Kind: KindObject, Object: fields} }

// IsNull reports whether the value is null.
func (v Value) IsNull() bool { return v.Kind == KindNull }

// ParseValue decodes a JSON document into a Value.
func ParseValue(data []byte) (Value, error) {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return Null(), err
	}
	return fromInterface(raw)
}

func fromInterface(raw interface{}) (Value, error) {
	switch t := raw.(type) {
	case nil:
		return Null(), nil
	case bool:
		return BoolValue(t), nil
	case float64:
		return NumberValue(t), nil
	case string:
		return StringValue(t), nil
	case []interface{}:
		items := make([]Value, 0, len(t))
		for _, item := range t {
			v, err := fromInterface(item)
			if err != nil {
				return Null(), err
			}
			items = append(items, v)
		}
		return Value{Kind: KindArray, Array: items}, nil
	case map[string]interface{}:
		fields := make(map[string]Value, len(t))
		for key, item := range t {
			v, err := fromInterface(item)
			if err != nil {
				return Null(), err
			}
			fields[key] = v
		}
		return Value{Kind: KindObject, Object: fields}, nil
	default:
		return Null(), fmt.Errorf("unsupported value type %T", raw)
	}
}

// Interface converts the value back to the generic form used by encoding/json.
func (v Value) Interface() interface{} {
	switch v.Kind {
	case KindBool:
		return v.Bool
	case KindNumber:
		return v.Number
	case KindString:
		return v.Str
	case KindArray:
		items := make([]interface{}, len(v.Array))
		for i, item := range v.Array {
			items[i] = item.Interface()
		}
		return items
	case KindObject:
		fields := make(map[string]interface{}, len(v.Object))
		for key, item := range v.Object {
			fields[key] = item.Interface()
		}
		return fields
	default:
		return nil
	}
}

// MarshalJSON implements json.Marshaler.
func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

// UnmarshalJSON implements json.Unmarshaler.
func (v *Value) UnmarshalJSON(data []byte) error {
	parsed, err := ParseValue(data)
	if err != nil {
		return err
	}
	*v = parsed
	return nil
}

// String renders the value compactly for logs and chat replies.
func (v Value) String() string {
	switch v.Kind {
	case KindNull:
		return "null"
	case KindBool:
		return fmt.Sprintf("%t", v.Bool)
	case KindNumber:
		return fmt.Sprintf("%g", v.Number)
	case KindString:
		return v.Str
	case KindArray:
		out := "["
		for i, item := range v.Array {
			if i > 0 {
				out += ", "
			}
			out += item.String()
		}
		return out + "]"
	case KindObject:
		keys := make([]string, 0, len(v.Object))
		for key := range v.Object {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		out := "{"
		for i, key := range keys {
			if i > 0 {
				out += ", "
			}
			out += key + ": " + v.Object[key].String()
		}
		return out + "}"
	default:
		return ""
	}
}
