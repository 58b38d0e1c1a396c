package script

import (
	"errors"
	"fmt"
	"os"
	"sync"

	"github.com/dop251/goja"
	"github.com/machinefabric/pdbridge-go/bridge"
	"github.com/machinefabric/pdbridge-go/wire"
)

// Module names resolved by require() to the pd object
var moduleNames = map[string]bool{
	"pd-api": true,
	"pdnode": true,
}

// JavaScript loads JavaScript and TypeScript files into a fresh goja
// runtime per script
var JavaScript Loader = LoaderFunc(func(path string, api API) error {
	src, err := os.ReadFile(path)
	if err != nil {
		return &LoadError{Path: path, Op: "read", Err: err}
	}
	_, err = RunJavaScript(path, string(src), api)
	return err
})

// ScriptError is an exception thrown by script code
type ScriptError struct {
	Message string
	Stack   string
}

func (e *ScriptError) Error() string {
	return e.Message
}

// Trace returns the script stack, satisfying bridge.Tracer
func (e *ScriptError) Trace() string {
	return e.Stack
}

// VM is a goja runtime bound to an API. Every entry into the runtime holds
// mu; goja runtimes are not safe for concurrent use.
type VM struct {
	mu  sync.Mutex
	rt  *goja.Runtime
	api API
	pd  *goja.Object
}

// RunJavaScript compiles and runs src as the script named name
func RunJavaScript(name, src string, api API) (*VM, error) {
	vm := NewVM(api)
	if err := vm.Run(name, src); err != nil {
		return nil, err
	}
	return vm, nil
}

// NewVM creates a runtime with the pd object, console and require installed
func NewVM(api API) *VM {
	vm := &VM{rt: goja.New(), api: api}
	vm.pd = vm.newPD()

	module := vm.rt.NewObject()
	exports := vm.rt.NewObject()
	_ = module.Set("exports", exports)

	_ = vm.rt.Set("pd", vm.pd)
	_ = vm.rt.Set("console", vm.newConsole())
	_ = vm.rt.Set("require", vm.require)
	_ = vm.rt.Set("module", module)
	_ = vm.rt.Set("exports", exports)
	return vm
}

// Run compiles and executes src, transpiling it first when name is a
// TypeScript or ES module file. Failures are returned as a *LoadError.
func (vm *VM) Run(name, src string) error {
	program, err := compile(name, src)
	if err != nil {
		return err
	}

	vm.mu.Lock()
	defer vm.mu.Unlock()
	if _, err := vm.rt.RunProgram(program); err != nil {
		return &LoadError{Path: name, Op: "execute", Err: scriptError(err)}
	}
	return nil
}

func (vm *VM) require(call goja.FunctionCall) goja.Value {
	name := call.Argument(0).String()
	if moduleNames[name] {
		return vm.pd
	}
	panic(vm.rt.NewGoError(fmt.Errorf("Cannot find module '%s'", name)))
}

func (vm *VM) newPD() *goja.Object {
	rt := vm.rt
	pd := rt.NewObject()
	host := vm.api.Host()

	hostArgs := make([]any, len(host.Arguments))
	for i, v := range host.Arguments {
		hostArgs[i] = vm.toJS(v)
	}

	_ = pd.DefineDataProperty("inlets", rt.ToValue(host.Inlets), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE)
	_ = pd.DefineDataProperty("outlets", rt.ToValue(host.Outlets), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE)
	_ = pd.DefineDataProperty("args", rt.NewArray(hostArgs...), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE)
	_ = pd.DefineDataProperty("version", rt.ToValue(APIVersion), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_TRUE)

	_ = pd.DefineAccessorProperty("inlet", rt.ToValue(func(goja.FunctionCall) goja.Value {
		return rt.ToValue(vm.api.Active().Inlet)
	}), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)
	_ = pd.DefineAccessorProperty("messagename", rt.ToValue(func(goja.FunctionCall) goja.Value {
		return rt.ToValue(vm.api.Active().Selector)
	}), nil, goja.FLAG_FALSE, goja.FLAG_TRUE)

	_ = pd.Set("outlet", vm.outlet)
	_ = pd.Set("post", func(call goja.FunctionCall) goja.Value {
		vm.api.Post(jsText(call.Arguments)...)
		return goja.Undefined()
	})
	_ = pd.Set("error", func(call goja.FunctionCall) goja.Value {
		vm.api.Error(jsText(call.Arguments)...)
		return goja.Undefined()
	})
	_ = pd.Set("on", vm.on)
	_ = pd.Set("off", vm.off)
	return pd
}

func (vm *VM) newConsole() *goja.Object {
	console := vm.rt.NewObject()
	post := func(call goja.FunctionCall) goja.Value {
		vm.api.Post(jsText(call.Arguments)...)
		return goja.Undefined()
	}
	for _, name := range []string{"log", "info", "warn", "debug"} {
		_ = console.Set(name, post)
	}
	_ = console.Set("error", func(call goja.FunctionCall) goja.Value {
		vm.api.Error(jsText(call.Arguments)...)
		return goja.Undefined()
	})
	return console
}

// outlet implements pd.outlet(n, ...values)
func (vm *VM) outlet(call goja.FunctionCall) goja.Value {
	n := int(call.Argument(0).ToInteger())
	var values []wire.Value
	if len(call.Arguments) > 1 {
		values = make([]wire.Value, 0, len(call.Arguments)-1)
		for i, arg := range call.Arguments[1:] {
			v, err := wire.FromAny(arg.Export())
			if err != nil {
				panic(vm.rt.NewTypeError("pd.outlet argument %d: %v", i+1, err))
			}
			values = append(values, v)
		}
	}
	vm.api.Emit(n, values...)
	return goja.Undefined()
}

// on implements pd.on(selector, callback)
func (vm *VM) on(call goja.FunctionCall) goja.Value {
	selector := call.Argument(0).String()
	fn := call.Argument(1)
	callable, ok := goja.AssertFunction(fn)
	if !ok {
		panic(vm.rt.NewTypeError("Callback must be a function"))
	}

	vm.api.OnTagged(selector, func(ctx *bridge.Context, args []wire.Value) error {
		return vm.call(callable, ctx, args)
	}, fn)
	return goja.Undefined()
}

// off implements pd.off(selector, callback?). Without a callback every
// handler for the selector is removed.
func (vm *VM) off(call goja.FunctionCall) goja.Value {
	selector := call.Argument(0).String()
	fn := call.Argument(1)
	if goja.IsUndefined(fn) || goja.IsNull(fn) {
		vm.api.OffAll(selector)
		return vm.rt.ToValue(true)
	}
	removed := vm.api.OffTag(selector, func(tag any) bool {
		v, ok := tag.(goja.Value)
		return ok && v.SameAs(fn)
	})
	return vm.rt.ToValue(removed)
}

// call invokes a script callback with (inlet, ...args)
func (vm *VM) call(callable goja.Callable, ctx *bridge.Context, args []wire.Value) error {
	vm.mu.Lock()
	defer vm.mu.Unlock()

	jsArgs := make([]goja.Value, 0, len(args)+1)
	jsArgs = append(jsArgs, vm.rt.ToValue(ctx.Inlet))
	for _, a := range args {
		jsArgs = append(jsArgs, vm.toJS(a))
	}
	if _, err := callable(goja.Undefined(), jsArgs...); err != nil {
		return scriptError(err)
	}
	return nil
}

// toJS converts a wire value into a script value; lists become real arrays
func (vm *VM) toJS(v wire.Value) goja.Value {
	switch v.Kind() {
	case wire.KindText:
		s, _ := v.Text()
		return vm.rt.ToValue(s)
	case wire.KindList:
		items, _ := v.List()
		out := make([]any, len(items))
		for i, item := range items {
			out[i] = vm.toJS(item)
		}
		return vm.rt.NewArray(out...)
	default:
		n, _ := v.Number()
		return vm.rt.ToValue(n)
	}
}

func jsText(args []goja.Value) []any {
	out := make([]any, len(args))
	for i, a := range args {
		out[i] = a.String()
	}
	return out
}

// scriptError converts a goja exception into a ScriptError carrying the
// message and stack of the thrown value
func scriptError(err error) error {
	var ex *goja.Exception
	if !errors.As(err, &ex) {
		return err
	}

	se := &ScriptError{Message: ex.Error(), Stack: ex.String()}
	thrown := ex.Value()
	if obj, ok := thrown.(*goja.Object); ok {
		if m := obj.Get("message"); m != nil && !goja.IsUndefined(m) {
			se.Message = m.String()
		}
		if s := obj.Get("stack"); s != nil && !goja.IsUndefined(s) {
			se.Stack = s.String()
		}
	} else if thrown != nil {
		se.Message = thrown.String()
	}
	return se
}
