// Package pdbridge provides flat re-exports of the bridge submodules, for
// Go programs that register handlers directly instead of loading a script.
package pdbridge

import (
	"github.com/machinefabric/pdbridge-go/bridge"
	"github.com/machinefabric/pdbridge-go/script"
	"github.com/machinefabric/pdbridge-go/wire"
)

// Wire types and functions
type Value = wire.Value
type Kind = wire.Kind
type InboundMessage = wire.InboundMessage
type OutboundMessage = wire.OutboundMessage
type Limits = wire.Limits
type Codec = wire.Codec
type FramingError = wire.FramingError

var Number = wire.Number
var Text = wire.Text
var List = wire.List
var FromAny = wire.FromAny
var ParseAtom = wire.ParseAtom
var DefaultLimits = wire.DefaultLimits
var CodecByName = wire.CodecByName

// Runtime types and functions
type Runtime = bridge.Runtime
type Option = bridge.Option
type Handler = bridge.Handler
type HandlerID = bridge.HandlerID
type Context = bridge.Context
type HostInfo = bridge.HostInfo
type HandlerError = bridge.HandlerError
type Observer = bridge.Observer

var NewRuntime = bridge.NewRuntime
var WithCodec = bridge.WithCodec
var WithLimits = bridge.WithLimits
var WithStrictSchema = bridge.WithStrictSchema
var WithLogger = bridge.WithLogger
var WithObserver = bridge.WithObserver
var WithHostInfo = bridge.WithHostInfo
var Marshal = bridge.Marshal

// Script loading
type Loader = script.Loader
type API = script.API

var LoadScript = script.Load

// Selector constants
const (
	SelectorBang     = bridge.SelectorBang
	SelectorFloat    = bridge.SelectorFloat
	SelectorSymbol   = bridge.SelectorSymbol
	SelectorList     = bridge.SelectorList
	SelectorAnything = bridge.SelectorAnything
)

// Protocol constants
const DefaultMaxRecord = wire.DefaultMaxRecord
const APIVersion = script.APIVersion
