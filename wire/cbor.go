package wire

import (
	"encoding/binary"
	"fmt"

	"github.com/fxamacker/cbor/v2"
)

// frameHeaderSize is the 4-byte big-endian length prefix of a CBOR frame
const frameHeaderSize = 4

// CBORFrames carries the same records as JSONLines, each encoded as a CBOR
// map behind a 4-byte big-endian length prefix.
var CBORFrames Codec = cborFrames{}

type cborFrames struct{}

func (cborFrames) Name() string { return CodecCBORFrames }

func (cborFrames) Encode(msg OutboundMessage) ([]byte, error) {
	rec, err := msg.record()
	if err != nil {
		return nil, err
	}
	payload, err := cbor.Marshal(rec)
	if err != nil {
		return nil, fmt.Errorf("failed to encode CBOR record: %w", err)
	}
	if len(payload) > MaxRecordHardLimit {
		return nil, fmt.Errorf("encoded record size %d exceeds hard limit %d", len(payload), MaxRecordHardLimit)
	}

	out := make([]byte, frameHeaderSize+len(payload))
	binary.BigEndian.PutUint32(out[:frameHeaderSize], uint32(len(payload)))
	copy(out[frameHeaderSize:], payload)
	return out, nil
}

func (cborFrames) NewDecoder(limits Limits, _ ...DecoderOption) Decoder {
	return &frameDecoder{limits: limits.Normalize()}
}

// frameDecoder reassembles length-prefixed frames from arbitrary chunks.
// An oversize frame is reported once when its header arrives and its payload
// is skipped without being buffered.
type frameDecoder struct {
	limits Limits
	buf    []byte
	skip   int
}

func (d *frameDecoder) Buffered() int {
	return len(d.buf)
}

func (d *frameDecoder) Feed(chunk []byte) []Result {
	var results []Result

	if d.skip > 0 {
		n := min(d.skip, len(chunk))
		d.skip -= n
		chunk = chunk[n:]
	}
	d.buf = append(d.buf, chunk...)

	for {
		if d.skip > 0 {
			n := min(d.skip, len(d.buf))
			d.skip -= n
			d.buf = d.buf[n:]
			if d.skip > 0 {
				break
			}
		}
		if len(d.buf) < frameHeaderSize {
			break
		}

		length := int(binary.BigEndian.Uint32(d.buf[:frameHeaderSize]))
		if length > d.limits.MaxRecord {
			results = append(results, Result{Err: oversize(d.limits.MaxRecord)})
			d.buf = d.buf[frameHeaderSize:]
			d.skip = length
			continue
		}
		if len(d.buf) < frameHeaderSize+length {
			break
		}

		payload := d.buf[frameHeaderSize : frameHeaderSize+length]
		msg, ok, err := decodeFrame(payload)
		d.buf = d.buf[frameHeaderSize+length:]
		switch {
		case err != nil:
			results = append(results, Result{Err: err})
		case ok:
			results = append(results, Result{Message: msg})
		}
	}

	if len(d.buf) == 0 {
		d.buf = nil
	}
	return results
}

// decodeFrame decodes one CBOR payload. Empty frames and records that are not
// host messages are skipped.
func decodeFrame(payload []byte) (InboundMessage, bool, error) {
	if len(payload) == 0 {
		return InboundMessage{}, false, nil
	}

	var raw any
	if err := cbor.Unmarshal(payload, &raw); err != nil {
		return InboundMessage{}, false, malformed(err)
	}
	fields, ok := raw.(map[any]any)
	if !ok {
		return InboundMessage{}, false, nil
	}
	if kind, _ := fields["type"].(string); kind != string(TypeMessage) {
		return InboundMessage{}, false, nil
	}

	var rec inboundRecord
	if err := cbor.Unmarshal(payload, &rec); err != nil {
		return InboundMessage{}, false, malformed(err)
	}
	return rec.message(), true, nil
}
