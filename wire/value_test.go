package wire

import (
	"encoding/json"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TEST001: Test zero Value is the number 0
func Test001_zero_value_is_number(t *testing.T) {
	var v Value
	n, ok := v.Number()
	assert.True(t, ok)
	assert.Equal(t, 0.0, n)
	assert.Equal(t, KindNumber, v.Kind())
}

// TEST002: Test JSON encoding of each kind including nested lists
func Test002_value_json_shapes(t *testing.T) {
	v := List(Number(1.5), Text("foo"), List(Number(2), List()))
	data, err := json.Marshal(v)
	require.NoError(t, err)
	assert.JSONEq(t, `[1.5,"foo",[2,[]]]`, string(data))

	var decoded Value
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.True(t, v.Equal(decoded), "decoded %v", decoded)
}

// TEST003: Test FromAny maps Go data into the value union
func Test003_from_any_conversions(t *testing.T) {
	cases := []struct {
		in   any
		want Value
	}{
		{3, Number(3)},
		{int64(-2), Number(-2)},
		{float32(0.5), Number(0.5)},
		{json.Number("7.25"), Number(7.25)},
		{true, Number(1)},
		{false, Number(0)},
		{"hi", Text("hi")},
		{[]any{1.0, "a"}, List(Number(1), Text("a"))},
		{[]string{"x", "y"}, List(Text("x"), Text("y"))},
		{[]Value{Text("z")}, List(Text("z"))},
	}
	for _, tc := range cases {
		got, err := FromAny(tc.in)
		require.NoError(t, err, "input %#v", tc.in)
		assert.True(t, tc.want.Equal(got), "input %#v: got %v", tc.in, got)
	}
}

// TEST004: Test FromAny rejects null, maps and nested unsupported shapes
func Test004_from_any_rejects_unsupported(t *testing.T) {
	for _, in := range []any{nil, map[string]any{"a": 1}, struct{}{}, []any{1.0, nil}} {
		_, err := FromAny(in)
		assert.ErrorIs(t, err, ErrUnsupportedValue, "input %#v", in)
	}
}

// TEST005: Test ParseAtom keeps numeric words as numbers and everything else as text
func Test005_parse_atom(t *testing.T) {
	assert.True(t, Number(42).Equal(ParseAtom("42")))
	assert.True(t, Number(-0.25).Equal(ParseAtom("-0.25")))
	assert.True(t, Text("foo").Equal(ParseAtom("foo")))
	assert.True(t, Text("NaN").Equal(ParseAtom("NaN")))
	assert.True(t, Text("inf").Equal(ParseAtom("inf")))
}

func TestValueString(t *testing.T) {
	assert.Equal(t, "1 two 3.5", List(Number(1), Text("two"), Number(3.5)).String())
	assert.Equal(t, "list", KindList.String())
}

func TestValueEqualDistinguishesKinds(t *testing.T) {
	assert.False(t, Number(1).Equal(Text("1")))
	assert.False(t, List(Number(1)).Equal(List(Number(1), Number(2))))
}

// TEST006: Test FromAny rejects NaN and infinities at any depth
func Test006_from_any_rejects_non_finite(t *testing.T) {
	for _, in := range []any{math.NaN(), math.Inf(1), float32(math.Inf(-1)), []any{1.0, math.NaN()}} {
		_, err := FromAny(in)
		assert.ErrorIs(t, err, ErrUnsupportedValue, "input %#v", in)
		assert.Contains(t, err.Error(), "non-finite number")
	}
}
