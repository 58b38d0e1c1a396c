package bridge

import (
	"github.com/google/uuid"
	"github.com/machinefabric/pdbridge-go/wire"
)

// HostInfo describes the host object the runtime is attached to. Handlers
// read it; only the process owner sets it.
type HostInfo struct {
	Inlets    int
	Outlets   int
	Arguments []wire.Value
}

// DefaultHostInfo returns one inlet, one outlet and no arguments
func DefaultHostInfo() HostInfo {
	return HostInfo{Inlets: 1, Outlets: 1, Arguments: []wire.Value{}}
}

func (h HostInfo) clone() HostInfo {
	args := make([]wire.Value, len(h.Arguments))
	copy(args, h.Arguments)
	h.Arguments = args
	return h
}

// Context describes one handler invocation. The zero Context (inlet 0, empty
// selector) is what scripts observe outside any invocation.
type Context struct {
	ID       uuid.UUID
	Inlet    int
	Selector string

	outlets *Outlets
	host    HostInfo
}

// Emit sends values out of outlet
func (c *Context) Emit(outlet int, values ...wire.Value) {
	if c.outlets != nil {
		c.outlets.Emit(outlet, values...)
	}
}

// Post writes a log record
func (c *Context) Post(args ...any) {
	if c.outlets != nil {
		c.outlets.Post(args...)
	}
}

// Error writes an error record
func (c *Context) Error(args ...any) {
	if c.outlets != nil {
		c.outlets.Error(args...)
	}
}

// Host returns the host description
func (c *Context) Host() HostInfo {
	return c.host.clone()
}
