package wire

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"
)

// Kind identifies which variant of the Value union is populated
type Kind uint8

const (
	KindNumber Kind = iota
	KindText
	KindList
)

// String returns the kind name
func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindText:
		return "text"
	case KindList:
		return "list"
	default:
		return fmt.Sprintf("unknown(%d)", k)
	}
}

// Value is a message argument: a number, a text atom or a nested list of
// values. The zero Value is the number 0.
type Value struct {
	kind Kind
	num  float64
	text string
	list []Value
}

// Number creates a numeric Value
func Number(f float64) Value {
	return Value{kind: KindNumber, num: f}
}

// Text creates a text Value
func Text(s string) Value {
	return Value{kind: KindText, text: s}
}

// List creates a nested list Value
func List(values ...Value) Value {
	if values == nil {
		values = []Value{}
	}
	return Value{kind: KindList, list: values}
}

// Kind returns the populated variant
func (v Value) Kind() Kind {
	return v.kind
}

// Number returns the numeric payload and whether v is a number
func (v Value) Number() (float64, bool) {
	return v.num, v.kind == KindNumber
}

// Text returns the text payload and whether v is text
func (v Value) Text() (string, bool) {
	return v.text, v.kind == KindText
}

// List returns the nested values and whether v is a list
func (v Value) List() ([]Value, bool) {
	return v.list, v.kind == KindList
}

// Any converts the value into plain Go data: float64, string or []any
func (v Value) Any() any {
	switch v.kind {
	case KindText:
		return v.text
	case KindList:
		out := make([]any, len(v.list))
		for i, item := range v.list {
			out[i] = item.Any()
		}
		return out
	default:
		return v.num
	}
}

// String renders the value the way the host console prints atoms
func (v Value) String() string {
	switch v.kind {
	case KindText:
		return v.text
	case KindList:
		parts := make([]string, len(v.list))
		for i, item := range v.list {
			parts[i] = item.String()
		}
		return strings.Join(parts, " ")
	default:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	}
}

// Equal reports whether two values have the same kind and payload
func (v Value) Equal(other Value) bool {
	if v.kind != other.kind {
		return false
	}
	switch v.kind {
	case KindText:
		return v.text == other.text
	case KindList:
		if len(v.list) != len(other.list) {
			return false
		}
		for i := range v.list {
			if !v.list[i].Equal(other.list[i]) {
				return false
			}
		}
		return true
	default:
		return v.num == other.num
	}
}

// MarshalJSON encodes the value as a JSON number, string or array
func (v Value) MarshalJSON() ([]byte, error) {
	switch v.kind {
	case KindText:
		return json.Marshal(v.text)
	case KindList:
		if v.list == nil {
			return []byte("[]"), nil
		}
		return json.Marshal(v.list)
	default:
		return json.Marshal(v.num)
	}
}

// UnmarshalJSON decodes a JSON number, string or array
func (v *Value) UnmarshalJSON(data []byte) error {
	var raw any
	if err := json.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

// MarshalCBOR encodes the value as a CBOR float, text string or array
func (v Value) MarshalCBOR() ([]byte, error) {
	return cbor.Marshal(v.Any())
}

// UnmarshalCBOR decodes a CBOR number, text string or array
func (v *Value) UnmarshalCBOR(data []byte) error {
	var raw any
	if err := cbor.Unmarshal(data, &raw); err != nil {
		return err
	}
	decoded, err := FromAny(raw)
	if err != nil {
		return err
	}
	*v = decoded
	return nil
}

// ErrUnsupportedValue is returned when data has no Value representation
var ErrUnsupportedValue = errors.New("unsupported value")

// FromAny converts decoded or script-exported data into a Value.
//
// Integers and finite floats become numbers, booleans become 1 or 0, strings
// become text and slices or arrays become lists. NaN, infinities, maps, nil
// and any other shape are rejected with ErrUnsupportedValue.
func FromAny(x any) (Value, error) {
	switch t := x.(type) {
	case Value:
		return t, nil
	case []Value:
		return List(t...), nil
	case float64:
		return finite(t)
	case float32:
		return finite(float64(t))
	case int:
		return Number(float64(t)), nil
	case int8:
		return Number(float64(t)), nil
	case int16:
		return Number(float64(t)), nil
	case int32:
		return Number(float64(t)), nil
	case int64:
		return Number(float64(t)), nil
	case uint:
		return Number(float64(t)), nil
	case uint8:
		return Number(float64(t)), nil
	case uint16:
		return Number(float64(t)), nil
	case uint32:
		return Number(float64(t)), nil
	case uint64:
		return Number(float64(t)), nil
	case json.Number:
		f, err := t.Float64()
		if err != nil {
			return Value{}, fmt.Errorf("%w: %v", ErrUnsupportedValue, err)
		}
		return finite(f)
	case bool:
		if t {
			return Number(1), nil
		}
		return Number(0), nil
	case string:
		return Text(t), nil
	case []any:
		items := make([]Value, len(t))
		for i, item := range t {
			converted, err := FromAny(item)
			if err != nil {
				return Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			items[i] = converted
		}
		return List(items...), nil
	case nil:
		return Value{}, fmt.Errorf("%w: null", ErrUnsupportedValue)
	}

	rv := reflect.ValueOf(x)
	if rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array {
		items := make([]Value, rv.Len())
		for i := range items {
			converted, err := FromAny(rv.Index(i).Interface())
			if err != nil {
				return Value{}, fmt.Errorf("index %d: %w", i, err)
			}
			items[i] = converted
		}
		return List(items...), nil
	}

	return Value{}, fmt.Errorf("%w: %T", ErrUnsupportedValue, x)
}

// finite rejects NaN and infinities, which have no JSON encoding
func finite(f float64) (Value, error) {
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return Value{}, fmt.Errorf("%w: non-finite number %v", ErrUnsupportedValue, f)
	}
	return Number(f), nil
}

// Values converts each argument with FromAny
func Values(xs ...any) ([]Value, error) {
	out := make([]Value, len(xs))
	for i, x := range xs {
		v, err := FromAny(x)
		if err != nil {
			return nil, fmt.Errorf("argument %d: %w", i, err)
		}
		out[i] = v
	}
	return out, nil
}

// ParseAtom converts a host argument word into a Value: a number when the
// word parses as one, text otherwise
func ParseAtom(word string) Value {
	if f, err := strconv.ParseFloat(word, 64); err == nil && !math.IsNaN(f) && !math.IsInf(f, 0) {
		return Number(f)
	}
	return Text(word)
}
