package wire

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"
)

// Result is one decoded record: either a message or the framing error that
// caused the record to be discarded
type Result struct {
	Message InboundMessage
	Err     error
}

// Decoder turns a stream of byte chunks into records. Feed returns every
// record completed by chunk, in arrival order; a trailing partial record is
// buffered until the rest arrives.
type Decoder interface {
	Feed(chunk []byte) []Result
	// Buffered reports how many bytes of a partial record are pending
	Buffered() int
}

// Codec encodes outbound records and creates decoders for inbound ones
type Codec interface {
	Name() string
	NewDecoder(limits Limits, opts ...DecoderOption) Decoder
	Encode(msg OutboundMessage) ([]byte, error)
}

// DecoderOption configures a decoder created by a Codec
type DecoderOption func(*decoderConfig)

type decoderConfig struct {
	schema *MessageSchema
}

// WithSchema validates every inbound message record against schema before it
// is decoded. Codecs that do not carry JSON text ignore it.
func WithSchema(schema *MessageSchema) DecoderOption {
	return func(c *decoderConfig) {
		c.schema = schema
	}
}

// Codec names accepted by CodecByName
const (
	CodecJSONLines  = "jsonl"
	CodecCBORFrames = "cbor"
)

// CodecByName returns the codec registered under name
func CodecByName(name string) (Codec, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", CodecJSONLines, "json":
		return JSONLines, nil
	case CodecCBORFrames:
		return CBORFrames, nil
	default:
		return nil, fmt.Errorf("unknown codec %q", name)
	}
}

// JSONLines is the host protocol: one JSON object per line, terminated by '\n'
var JSONLines Codec = jsonLines{}

type jsonLines struct{}

func (jsonLines) Name() string { return CodecJSONLines }

// Encode produces exactly one terminated record
func (jsonLines) Encode(msg OutboundMessage) ([]byte, error) {
	rec, err := msg.record()
	if err != nil {
		return nil, err
	}
	buf := &bytes.Buffer{}
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	// Encoder.Encode appends the '\n' terminator
	if err := enc.Encode(rec); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

func (jsonLines) NewDecoder(limits Limits, opts ...DecoderOption) Decoder {
	cfg := decoderConfig{}
	for _, opt := range opts {
		opt(&cfg)
	}
	return &lineDecoder{
		limits: limits.Normalize(),
		schema: cfg.schema,
	}
}

// lineDecoder owns the read buffer for the JSON lines codec.
//
// At most one partial record is pending at a time. When the pending record
// grows past MaxRecord it is dropped, one oversize error is reported, and
// input is skipped up to the next terminator.
type lineDecoder struct {
	limits   Limits
	schema   *MessageSchema
	buf      []byte
	skipping bool
}

func (d *lineDecoder) Buffered() int {
	return len(d.buf)
}

func (d *lineDecoder) Feed(chunk []byte) []Result {
	var results []Result

	for len(chunk) > 0 {
		newline := bytes.IndexByte(chunk, '\n')
		if newline < 0 {
			if d.skipping {
				return results
			}
			if len(d.buf)+len(chunk) > d.limits.MaxRecord {
				results = append(results, Result{Err: oversize(d.limits.MaxRecord)})
				d.buf = d.buf[:0]
				d.skipping = true
				return results
			}
			d.buf = append(d.buf, chunk...)
			return results
		}

		line := chunk[:newline]
		chunk = chunk[newline+1:]

		if d.skipping {
			d.skipping = false
			continue
		}

		record := line
		if len(d.buf) > 0 {
			d.buf = append(d.buf, line...)
			record = d.buf
		}
		if len(record) > d.limits.MaxRecord {
			results = append(results, Result{Err: oversize(d.limits.MaxRecord)})
			d.buf = d.buf[:0]
			continue
		}

		msg, ok, err := d.decodeRecord(record)
		d.buf = d.buf[:0]
		switch {
		case err != nil:
			results = append(results, Result{Err: err})
		case ok:
			results = append(results, Result{Message: msg})
		}
	}

	return results
}

// decodeRecord decodes one line. ok is false for blank lines and for
// records that are not host messages; those are skipped without error.
func (d *lineDecoder) decodeRecord(record []byte) (InboundMessage, bool, error) {
	record = bytes.TrimSpace(record)
	if len(record) == 0 {
		return InboundMessage{}, false, nil
	}
	if !json.Valid(record) {
		var raw any
		return InboundMessage{}, false, malformed(json.Unmarshal(record, &raw))
	}

	var head struct {
		Type any `json:"type"`
	}
	if err := json.Unmarshal(record, &head); err != nil {
		// Valid JSON that is not an object carries no discriminator
		return InboundMessage{}, false, nil
	}
	if head.Type != string(TypeMessage) {
		return InboundMessage{}, false, nil
	}

	if d.schema != nil {
		if err := d.schema.ValidateJSON(record); err != nil {
			return InboundMessage{}, false, err
		}
	}

	var rec inboundRecord
	if err := json.Unmarshal(record, &rec); err != nil {
		return InboundMessage{}, false, malformed(err)
	}
	return rec.message(), true, nil
}
