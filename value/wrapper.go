package value

import "sync/atomic"

// Wrapper owns exactly one host value on behalf of the bridge. Its identity
// is what the liveness tracker keys guest roots on: as long as a Wrapper is
// reachable from host code, every guest value registered for it stays
// rooted.
type Wrapper struct {
	value    any
	kind     Kind
	released atomic.Bool
}

// Wrap inspects v and returns a wrapper of the matching kind.
func Wrap(v any) (*Wrapper, error) {
	kind, err := KindOf(v)
	if err != nil {
		return nil, err
	}
	return &Wrapper{value: v, kind: kind}, nil
}

func newWrapper(kind Kind, v any) *Wrapper {
	return &Wrapper{value: v, kind: kind}
}

// Kind returns the runtime tag of the wrapped value.
func (w *Wrapper) Kind() Kind { return w.kind }

// Value returns the wrapped host value.
func (w *Wrapper) Value() any { return w.value }

// Release marks the wrapper unreachable from the host even though Go still
// references it. The next collection releases its guest roots. Use it to
// break host/guest reference cycles the collector cannot see through.
func (w *Wrapper) Release() { w.released.Store(true) }

// Released reports whether Release was called.
func (w *Wrapper) Released() bool { return w.released.Load() }

func (w *Wrapper) String() string {
	return Format(w.value)
}
