// Package script loads user scripts and binds them to a bridge runtime.
//
// A Loader reads a script file, evaluates it and lets it register handlers
// through the API. Loaders are picked by file extension with ForPath.
package script

import (
	"fmt"
	"path/filepath"
	"strings"

	"github.com/machinefabric/pdbridge-go/bridge"
	"github.com/machinefabric/pdbridge-go/wire"
)

// APIVersion is reported to scripts as pd.version
const APIVersion = "0.1.0"

// API is the runtime surface a script can reach. *bridge.Runtime implements it.
type API interface {
	On(selector string, handler bridge.Handler) bridge.HandlerID
	OnTagged(selector string, handler bridge.Handler, tag any) bridge.HandlerID
	Off(selector string, id bridge.HandlerID) bool
	OffTag(selector string, match func(tag any) bool) bool
	OffAll(selector string)
	Emit(outlet int, values ...wire.Value)
	Post(args ...any)
	Error(args ...any)
	Host() bridge.HostInfo
	Active() bridge.Context
}

var _ API = (*bridge.Runtime)(nil)

// Loader evaluates the script at path against api
type Loader interface {
	Load(path string, api API) error
}

// LoaderFunc adapts a function to the Loader interface
type LoaderFunc func(path string, api API) error

func (f LoaderFunc) Load(path string, api API) error {
	return f(path, api)
}

// LoadError reports why a script could not be loaded
type LoadError struct {
	Path string
	Op   string
	Err  error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Path, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

// ForPath returns the loader for path's extension
func ForPath(path string) (Loader, error) {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".js", ".cjs", ".mjs", ".ts", ".mts", ".cts", ".tsx":
		return JavaScript, nil
	default:
		return nil, &LoadError{Path: path, Op: "select loader for", Err: fmt.Errorf("unsupported script type %q", filepath.Ext(path))}
	}
}

// Load picks a loader for path and evaluates the script
func Load(path string, api API) error {
	loader, err := ForPath(path)
	if err != nil {
		return err
	}
	return loader.Load(path, api)
}
