package wire

// Default maximum record size (1 MB). A record longer than this without a
// terminator is discarded and reported as an oversize framing error.
const DefaultMaxRecord int = 1_048_576

// Hard limit on record size (16 MB) - prevents unbounded buffer growth
const MaxRecordHardLimit int = 16_777_216

// Limits bounds the size of records accepted and produced by a codec
type Limits struct {
	MaxRecord int `cbor:"max_record" json:"max_record"`
}

// DefaultLimits returns the default record limits
func DefaultLimits() Limits {
	return Limits{
		MaxRecord: DefaultMaxRecord,
	}
}

// Normalize clamps the limits into the supported range. Zero or negative
// values fall back to the defaults.
func (l Limits) Normalize() Limits {
	if l.MaxRecord <= 0 {
		l.MaxRecord = DefaultMaxRecord
	}
	l.MaxRecord = min(l.MaxRecord, MaxRecordHardLimit)
	return l
}
