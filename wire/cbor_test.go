package wire

import (
	"encoding/binary"
	"testing"

	"github.com/fxamacker/cbor/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func cborFrame(t *testing.T, v any) []byte {
	t.Helper()
	payload, err := cbor.Marshal(v)
	require.NoError(t, err)
	out := make([]byte, 4+len(payload))
	binary.BigEndian.PutUint32(out, uint32(len(payload)))
	copy(out[4:], payload)
	return out
}

// TEST030: Test CBOR frame decodes into the same message as the JSON record
func Test030_cbor_frame_decode(t *testing.T) {
	frame := cborFrame(t, map[string]any{
		"type":     "message",
		"inlet":    1,
		"selector": "list",
		"args":     []any{1.5, "a", []any{2}},
	})

	d := CBORFrames.NewDecoder(DefaultLimits())
	results := d.Feed(frame)
	require.Len(t, results, 1)
	require.NoError(t, results[0].Err)

	msg := results[0].Message
	assert.Equal(t, 1, msg.Inlet)
	assert.Equal(t, "list", msg.Selector)
	require.Len(t, msg.Args, 3)
	assert.True(t, List(Number(2)).Equal(msg.Args[2]))
}

// TEST031: Test a frame delivered one byte at a time is decoded once complete
func Test031_cbor_frame_byte_by_byte(t *testing.T) {
	frame := cborFrame(t, map[string]any{"type": "message", "selector": "bang"})
	d := CBORFrames.NewDecoder(DefaultLimits())

	var results []Result
	for i := range frame {
		results = append(results, d.Feed(frame[i:i+1])...)
		if i < len(frame)-1 {
			assert.Empty(t, results)
		}
	}
	require.Len(t, results, 1)
	assert.Equal(t, "bang", results[0].Message.Selector)
	assert.Equal(t, 0, d.Buffered())
}

// TEST032: Test oversize frame is skipped without buffering and the next frame decodes
func Test032_cbor_oversize_frame_skipped(t *testing.T) {
	big := cborFrame(t, map[string]any{"type": "message", "selector": string(make([]byte, 200))})
	next := cborFrame(t, map[string]any{"type": "message", "selector": "after"})

	d := CBORFrames.NewDecoder(Limits{MaxRecord: 64})
	results := d.Feed(big[:100])
	require.Len(t, results, 1)
	assert.Equal(t, FramingOversize, framingKind(t, results[0].Err))

	results = d.Feed(append(append([]byte{}, big[100:]...), next...))
	require.Len(t, results, 1)
	assert.Equal(t, "after", results[0].Message.Selector)
}

// TEST033: Test non-message frames are ignored and garbage frames are malformed
func Test033_cbor_ignored_and_malformed(t *testing.T) {
	d := CBORFrames.NewDecoder(DefaultLimits())
	ignored := cborFrame(t, map[string]any{"type": "other"})
	garbage := []byte{0, 0, 0, 1, 0xff}

	results := d.Feed(append(ignored, garbage...))
	require.Len(t, results, 1)
	assert.Equal(t, FramingMalformed, framingKind(t, results[0].Err))
}

// TEST034: Test CBOR encoding carries the same keys as the JSON record
func Test034_cbor_encode_roundtrip(t *testing.T) {
	data, err := CBORFrames.Encode(NewEmit(3, "float", []Value{Number(0.5)}))
	require.NoError(t, err)
	require.Greater(t, len(data), 4)
	assert.Equal(t, uint32(len(data)-4), binary.BigEndian.Uint32(data[:4]))

	var decoded map[string]any
	require.NoError(t, cbor.Unmarshal(data[4:], &decoded))
	assert.Equal(t, "outlet", decoded["type"])
	assert.EqualValues(t, 3, decoded["outlet"])
	assert.Equal(t, "float", decoded["selector"])
	assert.Equal(t, []any{0.5}, decoded["args"])
}
