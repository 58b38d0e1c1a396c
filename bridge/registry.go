package bridge

import (
	"sort"
	"sync"

	"github.com/google/uuid"
	"github.com/machinefabric/pdbridge-go/wire"
)

// FallbackSelector receives messages whose selector has no handlers
const FallbackSelector = "anything"

// Handler is the function signature for message handlers.
// Receives the dispatch context and the message arguments; a returned error
// is reported to the host as a handler error.
type Handler func(ctx *Context, args []wire.Value) error

// HandlerID identifies one registration
type HandlerID uuid.UUID

// String returns the canonical UUID form
func (id HandlerID) String() string {
	return uuid.UUID(id).String()
}

type registration struct {
	id      HandlerID
	handler Handler
	tag     any
}

// Registry maps selectors to ordered handler lists
type Registry struct {
	mu       sync.RWMutex
	handlers map[string][]registration
}

// NewRegistry creates an empty registry
func NewRegistry() *Registry {
	return &Registry{handlers: make(map[string][]registration)}
}

// Register appends handler to the list for selector
func (r *Registry) Register(selector string, handler Handler) HandlerID {
	return r.RegisterTagged(selector, handler, nil)
}

// RegisterTagged appends handler with an opaque tag. Script layers use the
// tag to find a registration again by callback identity.
func (r *Registry) RegisterTagged(selector string, handler Handler, tag any) HandlerID {
	if handler == nil {
		panic("bridge: nil handler registered for selector " + selector)
	}
	id := HandlerID(uuid.New())

	r.mu.Lock()
	defer r.mu.Unlock()
	r.handlers[selector] = append(r.handlers[selector], registration{id: id, handler: handler, tag: tag})
	return id
}

// Unregister removes the registration with id. Reports whether one was removed.
func (r *Registry) Unregister(selector string, id HandlerID) bool {
	return r.removeFirst(selector, func(reg registration) bool { return reg.id == id })
}

// UnregisterTag removes the first registration under selector whose tag
// satisfies match
func (r *Registry) UnregisterTag(selector string, match func(tag any) bool) bool {
	return r.removeFirst(selector, func(reg registration) bool {
		return reg.tag != nil && match(reg.tag)
	})
}

// UnregisterAll clears every handler for selector
func (r *Registry) UnregisterAll(selector string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.handlers, selector)
}

func (r *Registry) removeFirst(selector string, pred func(registration) bool) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	list := r.handlers[selector]
	for i, reg := range list {
		if !pred(reg) {
			continue
		}
		// build a new slice so snapshots handed out earlier stay intact
		next := make([]registration, 0, len(list)-1)
		next = append(next, list[:i]...)
		next = append(next, list[i+1:]...)
		if len(next) == 0 {
			delete(r.handlers, selector)
		} else {
			r.handlers[selector] = next
		}
		return true
	}
	return false
}

// Lookup returns a copy of the handlers registered for selector, in
// registration order. Changes made after the call do not affect the copy.
func (r *Registry) Lookup(selector string) []Handler {
	r.mu.RLock()
	defer r.mu.RUnlock()

	list := r.handlers[selector]
	if len(list) == 0 {
		return nil
	}
	out := make([]Handler, len(list))
	for i, reg := range list {
		out[i] = reg.handler
	}
	return out
}

// Len returns the number of handlers registered for selector
func (r *Registry) Len(selector string) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.handlers[selector])
}

// Selectors lists every selector with at least one handler, sorted
func (r *Registry) Selectors() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	out := make([]string, 0, len(r.handlers))
	for sel, list := range r.handlers {
		if len(list) > 0 {
			out = append(out, sel)
		}
	}
	sort.Strings(out)
	return out
}
