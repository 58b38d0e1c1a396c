package bridge

import (
	"time"

	"github.com/machinefabric/pdbridge-go/wire"
)

// Dispatch routes reported to an Observer
const (
	RouteDirect    = "direct"
	RouteFallback  = "fallback"
	RouteUnhandled = "unhandled"
)

// Observer receives runtime events for metrics collection
type Observer interface {
	// RecordRead is called for every decoded inbound message
	RecordRead()
	// RecordWritten is called after a record reaches the output stream
	RecordWritten(kind wire.RecordType)
	FramingError(kind wire.FramingErrorKind)
	// Dispatched is called once per message after every handler has returned
	Dispatched(route string, handlers, failures int, elapsed time.Duration)
}

type nopObserver struct{}

func (nopObserver) RecordRead() {}
func (nopObserver) RecordWritten(wire.RecordType) {}
func (nopObserver) FramingError(wire.FramingErrorKind) {}
func (nopObserver) Dispatched(string, int, int, time.Duration) {}
