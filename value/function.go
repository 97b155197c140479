package value

import (
	"github.com/wippyai/jsbridge/errors"
	"github.com/wippyai/jsbridge/resource"
)

// Func is a host function callable from guest code. Arguments arrive
// already converted to host values; the result is converted back.
type Func func(args ...any) (any, error)

// Function is a host-callable proxy for a guest function. It does not hold
// the guest value itself: the bridge keeps it in a root table under Handle,
// and call resolves it on every invocation, so a released root fails
// cleanly instead of touching a collected value.
type Function struct {
	wrapper *Wrapper
	call    func(args []any) (any, error)
	name    string
	handle  resource.Handle
}

// NewFunction creates a Function backed by the rooted guest value h.
func NewFunction(name string, h resource.Handle, call func(args []any) (any, error)) *Function {
	f := &Function{name: name, handle: h, call: call}
	f.wrapper = newWrapper(KindFunction, f)
	return f
}

// Call invokes the guest function synchronously in the guest's current
// execution context.
func (f *Function) Call(args ...any) (any, error) {
	if f.wrapper.Released() {
		return nil, errors.Released(errors.PhaseRuntime, "function "+f.label())
	}
	return f.call(args)
}

// Name returns the guest function's name, possibly empty.
func (f *Function) Name() string { return f.name }

// Handle returns the root handle of the guest function.
func (f *Function) Handle() resource.Handle { return f.handle }

// Wrapper returns the wrapper the guest root is registered under.
func (f *Function) Wrapper() *Wrapper { return f.wrapper }

// Release drops the host's claim on the guest function.
func (f *Function) Release() { f.wrapper.Release() }

func (f *Function) String() string {
	return "[Function " + f.label() + "]"
}

func (f *Function) label() string {
	if f.name == "" {
		return "(anonymous)"
	}
	return f.name
}
