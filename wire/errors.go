package wire

import "fmt"

// FramingErrorKind classifies why a record could not be decoded or encoded
type FramingErrorKind int

const (
	// FramingMalformed: the record text is not a valid structured record
	FramingMalformed FramingErrorKind = iota
	// FramingOversize: the record exceeded Limits.MaxRecord
	FramingOversize
	// FramingSchema: the record parsed but violates the inbound message schema
	FramingSchema
	// FramingEncode: an outbound record could not be encoded
	FramingEncode
)

// String returns the kind name used in metrics labels
func (k FramingErrorKind) String() string {
	switch k {
	case FramingMalformed:
		return "malformed"
	case FramingOversize:
		return "oversize"
	case FramingSchema:
		return "schema"
	case FramingEncode:
		return "encode"
	default:
		return fmt.Sprintf("unknown(%d)", int(k))
	}
}

// FramingError is a non-fatal error for a single record. The record is
// discarded and decoding continues with the next one.
type FramingError struct {
	Kind   FramingErrorKind
	Detail string
	Limit  int
}

func (e *FramingError) Error() string {
	switch e.Kind {
	case FramingMalformed:
		return fmt.Sprintf("Parse error: %s", e.Detail)
	case FramingOversize:
		return fmt.Sprintf("Record exceeds max_record limit of %d bytes", e.Limit)
	case FramingSchema:
		return fmt.Sprintf("Invalid message record: %s", e.Detail)
	case FramingEncode:
		return fmt.Sprintf("Cannot encode record: %s", e.Detail)
	default:
		return fmt.Sprintf("Framing error: %s", e.Detail)
	}
}

func malformed(err error) *FramingError {
	return &FramingError{Kind: FramingMalformed, Detail: err.Error()}
}

func oversize(limit int) *FramingError {
	return &FramingError{Kind: FramingOversize, Limit: limit}
}
