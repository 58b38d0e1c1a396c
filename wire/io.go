package wire

import (
	"fmt"
	"io"
	"sync"
)

// RecordWriter writes encoded records to a stream. Each record goes out in a
// single Write under a mutex, so concurrent emitters never interleave.
type RecordWriter struct {
	mu     sync.Mutex
	writer io.Writer
	codec  Codec
	limits Limits
}

// NewRecordWriter creates a RecordWriter using codec and default limits
func NewRecordWriter(w io.Writer, codec Codec) *RecordWriter {
	if codec == nil {
		codec = JSONLines
	}
	return &RecordWriter{
		writer: w,
		codec:  codec,
		limits: DefaultLimits(),
	}
}

// SetLimits updates the writer's limits
func (rw *RecordWriter) SetLimits(limits Limits) {
	rw.mu.Lock()
	rw.limits = limits.Normalize()
	rw.mu.Unlock()
}

// Codec returns the codec records are encoded with
func (rw *RecordWriter) Codec() Codec {
	return rw.codec
}

// WriteMessage encodes msg and writes it as one record. A record larger than
// MaxRecord is not written and a FramingOversize error is returned; a record
// the codec cannot encode yields FramingEncode.
func (rw *RecordWriter) WriteMessage(msg OutboundMessage) error {
	data, err := rw.codec.Encode(msg)
	if err != nil {
		return &FramingError{Kind: FramingEncode, Detail: err.Error()}
	}

	rw.mu.Lock()
	defer rw.mu.Unlock()

	if len(data) > rw.limits.MaxRecord {
		return oversize(rw.limits.MaxRecord)
	}
	if _, err := rw.writer.Write(data); err != nil {
		return fmt.Errorf("failed to write %s record: %w", msg.Type, err)
	}
	return nil
}
