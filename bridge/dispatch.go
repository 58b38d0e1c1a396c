package bridge

import (
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/machinefabric/pdbridge-go/wire"
)

// Tracer is implemented by errors that carry their own stack trace, such as
// script exceptions
type Tracer interface {
	Trace() string
}

// HandlerError is a failure inside one handler invocation. It is reported to
// the host and never stops the dispatch of remaining handlers.
type HandlerError struct {
	Selector string
	Cause    error
	Trace    string
}

func (e *HandlerError) Error() string {
	return fmt.Sprintf("Handler error in '%s': %s", e.Selector, e.Cause)
}

func (e *HandlerError) Unwrap() error {
	return e.Cause
}

// Report returns the text of the error record: the message followed by the
// trace, if any, on the next lines
func (e *HandlerError) Report() string {
	if e.Trace == "" {
		return e.Error()
	}
	return e.Error() + "\n" + e.Trace
}

// PanicError wraps a value recovered from a panicking handler
type PanicError struct {
	Value any
}

func (e *PanicError) Error() string {
	if err, ok := e.Value.(error); ok {
		return err.Error()
	}
	return fmt.Sprint(e.Value)
}

// Dispatcher routes inbound messages to registered handlers. It runs one
// message at a time; Dispatch must not be called concurrently.
type Dispatcher struct {
	registry *Registry
	outlets  *Outlets
	host     HostInfo
	logger   *slog.Logger
	observer Observer
	active   atomic.Pointer[Context]
}

// NewDispatcher creates a Dispatcher reporting handler errors through outlets
func NewDispatcher(registry *Registry, outlets *Outlets, host HostInfo, logger *slog.Logger, observer Observer) *Dispatcher {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	if observer == nil {
		observer = nopObserver{}
	}
	return &Dispatcher{
		registry: registry,
		outlets:  outlets,
		host:     host.clone(),
		logger:   logger,
		observer: observer,
	}
}

// Active returns the context of the handler currently running, or the zero
// Context when no handler is running
func (d *Dispatcher) Active() Context {
	if ctx := d.active.Load(); ctx != nil {
		return *ctx
	}
	return Context{}
}

// Dispatch delivers msg to every handler registered for its selector, in
// registration order. When none is registered the fallback handlers receive
// it with the original selector and arguments.
func (d *Dispatcher) Dispatch(inlet int, msg wire.InboundMessage) {
	start := time.Now()
	route := RouteDirect

	handlers := d.registry.Lookup(msg.Selector)
	if len(handlers) == 0 && msg.Selector != FallbackSelector {
		handlers = d.registry.Lookup(FallbackSelector)
		route = RouteFallback
	}
	if len(handlers) == 0 {
		d.logger.Debug("No handler for message", "selector", msg.Selector, "inlet", inlet)
		d.observer.Dispatched(RouteUnhandled, 0, 0, time.Since(start))
		return
	}

	failures := 0
	for _, handler := range handlers {
		ctx := &Context{
			ID:       uuid.New(),
			Inlet:    inlet,
			Selector: msg.Selector,
			outlets:  d.outlets,
			host:     d.host,
		}
		args := make([]wire.Value, len(msg.Args))
		copy(args, msg.Args)

		if herr := d.invoke(ctx, handler, args); herr != nil {
			failures++
			d.logger.Warn("Handler failed", "selector", msg.Selector, "invocation", ctx.ID, "error", herr.Cause)
			d.outlets.Error(herr.Report())
		}
	}

	d.observer.Dispatched(route, len(handlers), failures, time.Since(start))
}

// invoke runs one handler with ctx active, converting returned errors and
// panics into a HandlerError. The active context is cleared on every path.
func (d *Dispatcher) invoke(ctx *Context, handler Handler, args []wire.Value) (herr *HandlerError) {
	d.active.Store(ctx)
	defer d.active.Store(nil)

	defer func() {
		if r := recover(); r != nil {
			herr = &HandlerError{
				Selector: ctx.Selector,
				Cause:    &PanicError{Value: r},
				Trace:    string(debug.Stack()),
			}
		}
	}()

	if err := handler(ctx, args); err != nil {
		herr = &HandlerError{Selector: ctx.Selector, Cause: err}
		var tracer Tracer
		if errors.As(err, &tracer) {
			herr.Trace = tracer.Trace()
		}
	}
	return herr
}
