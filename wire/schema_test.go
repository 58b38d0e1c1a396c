package wire

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TEST040: Test strict decoder accepts conforming records
func Test040_strict_accepts_valid(t *testing.T) {
	d := JSONLines.NewDecoder(DefaultLimits(), Strict())
	results := d.Feed([]byte(`{"type":"message","inlet":0,"selector":"list","args":[1,"a",[2,["b"]]]}` + "\n"))
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)
	assert.Equal(t, "list", results[0].Message.Selector)
}

// TEST041: Test strict decoder rejects schema violations with descriptions
func Test041_strict_rejects_invalid(t *testing.T) {
	d := JSONLines.NewDecoder(DefaultLimits(), Strict())
	bad := []string{
		`{"type":"message","args":[]}`,
		`{"type":"message","selector":""}`,
		`{"type":"message","selector":"x","inlet":-1}`,
		`{"type":"message","selector":"x","args":[{"k":1}]}`,
		`{"type":"message","selector":"x","args":[true]}`,
	}
	for _, rec := range bad {
		results := d.Feed([]byte(rec + "\n"))
		require.Len(t, results, 1, rec)
		assert.Equal(t, FramingSchema, framingKind(t, results[0].Err), rec)
		assert.True(t, strings.HasPrefix(results[0].Err.Error(), "Invalid message record: "), rec)
	}
}

// TEST042: Test strict mode leaves non-message records ignored rather than rejected
func Test042_strict_ignores_other_types(t *testing.T) {
	d := JSONLines.NewDecoder(DefaultLimits(), Strict())
	assert.Empty(t, d.Feed([]byte(`{"type":"control","whatever":true}`+"\n")))
}

func TestCompileMessageSchema(t *testing.T) {
	schema, err := CompileMessageSchema()
	require.NoError(t, err)
	assert.NoError(t, schema.ValidateJSON([]byte(`{"type":"message","selector":"bang"}`)))
}
