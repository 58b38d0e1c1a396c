package bridge

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"

	"github.com/google/uuid"
	"github.com/machinefabric/pdbridge-go/wire"
)

// DefaultReadBuffer is the size of each read from the input stream
const DefaultReadBuffer = 4096

// Runtime handles all I/O between the host and the registered handlers.
//
// A reader goroutine pulls chunks from the input stream; a single processing
// loop decodes them and dispatches each message to completion before the
// next one is considered.
type Runtime struct {
	in         io.Reader
	writer     *wire.RecordWriter
	codec      wire.Codec
	limits     wire.Limits
	strict     bool
	readBuffer int
	host       HostInfo
	logger     *slog.Logger
	observer   Observer

	sessionID  uuid.UUID
	registry   *Registry
	outlets    *Outlets
	dispatcher *Dispatcher
	readyOnce  sync.Once
}

// Option configures a Runtime
type Option func(*Runtime)

// WithCodec selects the wire codec. Defaults to wire.JSONLines.
func WithCodec(codec wire.Codec) Option {
	return func(r *Runtime) {
		if codec != nil {
			r.codec = codec
		}
	}
}

// WithLimits sets the record limits for both directions
func WithLimits(limits wire.Limits) Option {
	return func(r *Runtime) {
		r.limits = limits.Normalize()
	}
}

// WithStrictSchema validates inbound records against the message schema
func WithStrictSchema(strict bool) Option {
	return func(r *Runtime) {
		r.strict = strict
	}
}

// WithLogger sets the diagnostic logger. It must not write to the output stream.
func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) {
		if logger != nil {
			r.logger = logger
		}
	}
}

// WithObserver sets the metrics observer
func WithObserver(observer Observer) Option {
	return func(r *Runtime) {
		if observer != nil {
			r.observer = observer
		}
	}
}

// WithHostInfo sets the host description handlers can read
func WithHostInfo(host HostInfo) Option {
	return func(r *Runtime) {
		r.host = host.clone()
	}
}

// WithReadBuffer sets the size of each read from the input stream
func WithReadBuffer(size int) Option {
	return func(r *Runtime) {
		if size > 0 {
			r.readBuffer = size
		}
	}
}

// NewRuntime creates a runtime reading host records from in and writing
// records to out
func NewRuntime(in io.Reader, out io.Writer, opts ...Option) *Runtime {
	r := &Runtime{
		in:         in,
		codec:      wire.JSONLines,
		limits:     wire.DefaultLimits(),
		readBuffer: DefaultReadBuffer,
		host:       DefaultHostInfo(),
		logger:     slog.New(slog.DiscardHandler),
		observer:   nopObserver{},
		sessionID:  uuid.New(),
		registry:   NewRegistry(),
	}
	for _, opt := range opts {
		opt(r)
	}

	r.logger = r.logger.With("session", r.sessionID.String())
	r.writer = wire.NewRecordWriter(out, r.codec)
	r.writer.SetLimits(r.limits)
	r.outlets = NewOutlets(r)
	r.dispatcher = NewDispatcher(r.registry, r.outlets, r.host, r.logger, r.observer)
	return r
}

// SessionID identifies this runtime instance in diagnostics
func (r *Runtime) SessionID() uuid.UUID {
	return r.sessionID
}

// Registry returns the handler registry
func (r *Runtime) Registry() *Registry {
	return r.registry
}

// Send writes one record. Failures cannot be reported on the output stream
// itself, so they go to the diagnostic logger. A record that is oversize or
// cannot be encoded (a NaN number, say) is replaced with an error record.
func (r *Runtime) Send(msg wire.OutboundMessage) {
	err := r.writer.WriteMessage(msg)
	if err == nil {
		r.observer.RecordWritten(msg.Type)
		return
	}

	var fe *wire.FramingError
	if errors.As(err, &fe) && msg.Type != wire.TypeError {
		r.logger.Warn("Outbound record dropped", "type", msg.Type, "error", err)
		r.observer.FramingError(fe.Kind)
		r.Send(wire.NewError(fmt.Sprintf("Outbound %s record dropped: %s", msg.Type, err)))
		return
	}
	r.logger.Error("Failed to write record", "type", msg.Type, "error", err)
}

// Ready writes the ready record. Only the first call writes.
func (r *Runtime) Ready() {
	r.readyOnce.Do(func() {
		r.Send(wire.NewReady())
	})
}

// Run processes host records until the input stream ends or ctx is
// cancelled. The ready record is written first if Ready was not called.
// Returns nil at end of input and ctx.Err() on cancellation.
func (r *Runtime) Run(ctx context.Context) error {
	r.Ready()

	var opts []wire.DecoderOption
	if r.strict {
		opts = append(opts, wire.Strict())
	}
	decoder := r.codec.NewDecoder(r.limits, opts...)

	chunks := make(chan []byte)
	readErr := make(chan error, 1)
	go r.readLoop(ctx, chunks, readErr)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case chunk, ok := <-chunks:
			if !ok {
				if pending := decoder.Buffered(); pending > 0 {
					r.logger.Debug("Discarding unterminated record at end of input", "bytes", pending)
				}
				return <-readErr
			}
			r.process(decoder.Feed(chunk))
		}
	}
}

// readLoop forwards input chunks until EOF or a read error. A Read blocked
// when ctx is cancelled returns only when the input stream is closed.
func (r *Runtime) readLoop(ctx context.Context, chunks chan<- []byte, readErr chan<- error) {
	buf := make([]byte, r.readBuffer)
	for {
		n, err := r.in.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			select {
			case chunks <- chunk:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				readErr <- nil
			} else {
				readErr <- fmt.Errorf("failed to read input: %w", err)
			}
			close(chunks)
			return
		}
	}
}

func (r *Runtime) process(results []wire.Result) {
	for _, res := range results {
		if res.Err != nil {
			var fe *wire.FramingError
			if errors.As(res.Err, &fe) {
				r.observer.FramingError(fe.Kind)
			}
			r.logger.Debug("Discarded inbound record", "error", res.Err)
			r.Send(wire.NewError(res.Err.Error()))
			continue
		}

		r.observer.RecordRead()
		r.dispatcher.Dispatch(res.Message.Inlet, res.Message)
	}
}

// On registers handler for selector
func (r *Runtime) On(selector string, handler Handler) HandlerID {
	return r.registry.Register(selector, handler)
}

// OnTagged registers handler with an identity tag
func (r *Runtime) OnTagged(selector string, handler Handler, tag any) HandlerID {
	return r.registry.RegisterTagged(selector, handler, tag)
}

// Off removes one registration
func (r *Runtime) Off(selector string, id HandlerID) bool {
	return r.registry.Unregister(selector, id)
}

// OffTag removes the first registration whose tag satisfies match
func (r *Runtime) OffTag(selector string, match func(tag any) bool) bool {
	return r.registry.UnregisterTag(selector, match)
}

// OffAll removes every handler for selector
func (r *Runtime) OffAll(selector string) {
	r.registry.UnregisterAll(selector)
}

// Emit sends values out of outlet
func (r *Runtime) Emit(outlet int, values ...wire.Value) {
	r.outlets.Emit(outlet, values...)
}

// Post writes a log record
func (r *Runtime) Post(args ...any) {
	r.outlets.Post(args...)
}

// Error writes an error record
func (r *Runtime) Error(args ...any) {
	r.outlets.Error(args...)
}

// Host returns the host description
func (r *Runtime) Host() HostInfo {
	return r.host.clone()
}

// Active returns the context of the running handler, or the zero Context
func (r *Runtime) Active() Context {
	return r.dispatcher.Active()
}
