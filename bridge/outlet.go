package bridge

import (
	"fmt"
	"strings"

	"github.com/machinefabric/pdbridge-go/wire"
)

// Selectors produced by the outlet marshaler
const (
	SelectorBang     = "bang"
	SelectorFloat    = "float"
	SelectorSymbol   = "symbol"
	SelectorList     = "list"
	SelectorAnything = FallbackSelector
)

// Sink accepts outbound records
type Sink interface {
	Send(msg wire.OutboundMessage)
}

// Marshal builds the outlet record for a handler emission:
//
//	no values       -> bang []
//	one number      -> float [n]
//	one text        -> symbol [s]
//	one list        -> anything [list]
//	two or more     -> list [values...]
//
// outlet is passed through unchecked; the host discards indices it does not have.
func Marshal(outlet int, values ...wire.Value) wire.OutboundMessage {
	switch len(values) {
	case 0:
		return wire.NewEmit(outlet, SelectorBang, []wire.Value{})
	case 1:
		v := values[0]
		switch v.Kind() {
		case wire.KindNumber:
			return wire.NewEmit(outlet, SelectorFloat, []wire.Value{v})
		case wire.KindText:
			return wire.NewEmit(outlet, SelectorSymbol, []wire.Value{v})
		default:
			return wire.NewEmit(outlet, SelectorAnything, []wire.Value{v})
		}
	default:
		args := make([]wire.Value, len(values))
		copy(args, values)
		return wire.NewEmit(outlet, SelectorList, args)
	}
}

// JoinText renders console arguments separated by single spaces
func JoinText(args ...any) string {
	parts := make([]string, len(args))
	for i, a := range args {
		parts[i] = fmt.Sprint(a)
	}
	return strings.Join(parts, " ")
}

// Outlets writes handler output to a Sink
type Outlets struct {
	sink Sink
}

// NewOutlets creates an Outlets writing to sink
func NewOutlets(sink Sink) *Outlets {
	return &Outlets{sink: sink}
}

// Emit sends values out of outlet
func (o *Outlets) Emit(outlet int, values ...wire.Value) {
	o.sink.Send(Marshal(outlet, values...))
}

// Post writes a log record to the host console
func (o *Outlets) Post(args ...any) {
	o.sink.Send(wire.NewLog(JoinText(args...)))
}

// Error writes an error record to the host console
func (o *Outlets) Error(args ...any) {
	o.sink.Send(wire.NewError(JoinText(args...)))
}
