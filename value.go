package listingkit

import (
	"encoding/json"
	"sort"
)

// ValueKind identifies which variant a Value holds.
type ValueKind uint8

const (
	KindNull ValueKind = iota
	KindString
	KindNumber
	KindBool
	// KindStyle is an object used as an inline style map.
	KindStyle
	KindObject
	KindList
)

func (k ValueKind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindBool:
		return "bool"
	case KindStyle:
		return "style"
	case KindObject:
		return "object"
	case KindList:
		return "list"
	default:
		return "null"
	}
}

// Value is a prop value. Exactly one field matching Kind is meaningful.
type Value struct {
	Kind   ValueKind
	Str    string
	Num    float64
	Bool   bool
	Fields map[string]Value // KindStyle, KindObject
	Items  []Value          // KindList
}

func StringValue(s string) Value  { return Value{Kind: KindString, Str: s} }
func NumberValue(n float64) Value { return Value{Kind: KindNumber, Num: n} }
func BoolValue(b bool) Value      { return Value{Kind: KindBool, Bool: b} }

// StyleValue builds a style map. Nested values are kept as given.
func StyleValue(fields map[string]Value) Value { return Value{Kind: KindStyle, Fields: fields} }

func ObjectValue(fields map[string]Value) Value { return Value{Kind: KindObject, Fields: fields} }

func ListValue(items ...Value) Value { return Value{Kind: KindList, Items: items} }

// ValueOf converts a decoded JSON value into a Value. Objects become
// KindObject; use Props decoding to get KindStyle for the style key.
func ValueOf(v interface{}) Value {
	switch val := v.(type) {
	case nil:
		return Value{}
	case string:
		return StringValue(val)
	case float64:
		return NumberValue(val)
	case int:
		return NumberValue(float64(val))
	case int64:
		return NumberValue(float64(val))
	case json.Number:
		f, _ := val.Float64()
		return NumberValue(f)
	case bool:
		return BoolValue(val)
	case map[string]interface{}:
		fields := make(map[string]Value, len(val))
		for k, item := range val {
			fields[k] = ValueOf(item)
		}
		return ObjectValue(fields)
	case []interface{}:
		items := make([]Value, len(val))
		for i, item := range val {
			items[i] = ValueOf(item)
		}
		return ListValue(items...)
	case Value:
		return val
	default:
		return Value{}
	}
}

// Interface converts the Value back to its JSON-shaped Go form.
func (v Value) Interface() interface{} {
	switch v.Kind {
	case KindString:
		return v.Str
	case KindNumber:
		return v.Num
	case KindBool:
		return v.Bool
	case KindStyle, KindObject:
		out := make(map[string]interface{}, len(v.Fields))
		for k, f := range v.Fields {
			out[k] = f.Interface()
		}
		return out
	case KindList:
		out := make([]interface{}, len(v.Items))
		for i, item := range v.Items {
			out[i] = item.Interface()
		}
		return out
	default:
		return nil
	}
}

// Keys returns the field names of a style or object value in sorted order.
func (v Value) Keys() []string {
	keys := make([]string, 0, len(v.Fields))
	for k := range v.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

func (v Value) MarshalJSON() ([]byte, error) {
	return json.Marshal(v.Interface())
}

func (v *Value) UnmarshalJSON(data []byte) error {
	var raw interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*v = ValueOf(raw)
	return nil
}

// Props maps prop names to values.
type Props map[string]Value

// PropsOf converts a decoded JSON object into Props. An object under the
// "style" key becomes a KindStyle value.
func PropsOf(m map[string]interface{}) Props {
	if m == nil {
		return nil
	}
	props := make(Props, len(m))
	for k, raw := range m {
		v := ValueOf(raw)
		if k == "style" && v.Kind == KindObject {
			v.Kind = KindStyle
		}
		props[k] = v
	}
	return props
}

// Text returns the prop as a string when it holds one.
func (p Props) Text(key string) (string, bool) {
	v, ok := p[key]
	if !ok || v.Kind != KindString {
		return "", false
	}
	return v.Str, true
}

func (p *Props) UnmarshalJSON(data []byte) error {
	var raw map[string]interface{}
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	*p = PropsOf(raw)
	return nil
}
