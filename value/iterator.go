package value

import (
	"errors"
	"iter"

	bridgeerrors "github.com/wippyai/jsbridge/errors"
	"github.com/wippyai/jsbridge/resource"
)

// ErrExhausted is the host "no more items" signal. Iterators return it
// (possibly wrapped) from Next once they are done.
var ErrExhausted = errors.New("iterator exhausted")

// Iterator is a stateful host iterator.
type Iterator interface {
	Next() (any, error)
}

// Attributer is implemented by host iterators that expose named
// attributes to guest code besides the iteration protocol.
type Attributer interface {
	Attr(name string) (any, bool)
}

// SliceIterator returns an Iterator over items.
func SliceIterator(items []any) Iterator {
	return &sliceIterator{items: items}
}

type sliceIterator struct {
	items []any
	pos   int
}

func (it *sliceIterator) Next() (any, error) {
	if it.pos >= len(it.items) {
		return nil, ErrExhausted
	}
	v := it.items[it.pos]
	it.pos++
	return v, nil
}

// GuestIterator is a host iterator backed lazily by a rooted guest
// iterator (a generator, Map, Set or any object with Symbol.iterator).
type GuestIterator struct {
	wrapper *Wrapper
	next    func() (any, bool, error)
	handle  resource.Handle
	done    bool
}

// NewGuestIterator creates a GuestIterator backed by the rooted guest
// iterator h. next reports (item, done, err).
func NewGuestIterator(h resource.Handle, next func() (any, bool, error)) *GuestIterator {
	it := &GuestIterator{handle: h, next: next}
	it.wrapper = newWrapper(KindIterable, it)
	return it
}

// Next advances the guest iterator. After the guest reports done, every
// call returns ErrExhausted.
func (it *GuestIterator) Next() (any, error) {
	if it.done {
		return nil, ErrExhausted
	}
	if it.wrapper.Released() {
		return nil, bridgeerrors.Released(bridgeerrors.PhaseIterate, "iterator")
	}
	v, done, err := it.next()
	if err != nil {
		return nil, err
	}
	if done {
		it.done = true
		return nil, ErrExhausted
	}
	return v, nil
}

// All returns a single-use sequence over the remaining items. Iteration
// stops at the first error without reporting it; use Results when the
// error matters.
func (it *GuestIterator) All() iter.Seq[any] {
	return func(yield func(any) bool) {
		for {
			v, err := it.Next()
			if err != nil {
				return
			}
			if !yield(v) {
				return
			}
		}
	}
}

// Results returns a single-use sequence over the remaining items paired
// with a nil error. A failing step is yielded once as (nil, err) and ends
// the sequence; exhaustion ends it without an error.
func (it *GuestIterator) Results() iter.Seq2[any, error] {
	return func(yield func(any, error) bool) {
		for {
			v, err := it.Next()
			if errors.Is(err, ErrExhausted) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(v, nil) {
				return
			}
		}
	}
}

// Handle returns the root handle of the guest iterator.
func (it *GuestIterator) Handle() resource.Handle { return it.handle }

// Wrapper returns the wrapper the guest root is registered under.
func (it *GuestIterator) Wrapper() *Wrapper { return it.wrapper }

// Release drops the host's claim on the guest iterator.
func (it *GuestIterator) Release() { it.wrapper.Release() }

func (it *GuestIterator) String() string { return "[Iterator]" }
