package bridge

import (
	stderrors "errors"
	"iter"
	"runtime"

	"github.com/dop251/goja"

	"github.com/wippyai/jsbridge/errors"
	"github.com/wippyai/jsbridge/value"
)

// iterableIteratorName is the guest global holding the IterableIterator
// class.
const iterableIteratorName = "IterableIterator"

// cursor is the host side of one guest iteration. Once the host signals
// exhaustion it stays done.
type cursor struct {
	next func() (any, error)
	stop func()
	done bool
}

func (c *cursor) advance() (any, bool, error) {
	if c.done {
		return nil, true, nil
	}
	v, err := c.next()
	if stderrors.Is(err, value.ErrExhausted) {
		c.finish()
		return nil, true, nil
	}
	if err != nil {
		return nil, false, err
	}
	return v, false, nil
}

func (c *cursor) finish() {
	c.done = true
	if c.stop != nil {
		c.stop()
		c.stop = nil
	}
}

func iteratorCursor(it value.Iterator) *cursor {
	return &cursor{next: it.Next}
}

// seqCursor pulls from a fresh run of seq. A cursor dropped before the
// sequence ends has its pull stopped once it is collected.
func seqCursor(seq iter.Seq[any]) *cursor {
	next, stop := iter.Pull(seq)
	c := &cursor{
		next: func() (any, error) {
			v, ok := next()
			if !ok {
				return nil, value.ErrExhausted
			}
			return v, nil
		},
		stop: stop,
	}
	runtime.AddCleanup(c, func(stop func()) { stop() }, stop)
	return c
}

// hostRef carries a host value through the guest so a proxy binding
// converts back to the value it was made from.
type hostRef struct {
	v any
}

// newIterableProxy builds the direct proxy over a host iterator or
// sequence. Property lookup resolves "next", then Symbol.iterator, then
// the host's own attributes when it exposes any.
//
// A value.Iterator is stateful: "next" and every IterableIterator made from
// the proxy share one cursor. An iter.Seq starts a fresh run for each
// Symbol.iterator call; "next" drives a run of its own.
func (b *Bridge) newIterableProxy(src any) goja.Value {
	var shared *cursor
	sharedCursor := func() *cursor {
		if shared == nil {
			shared = b.cursorFor(src)
		}
		return shared
	}
	freshCursor := func() *cursor {
		if seq, ok := src.(iter.Seq[any]); ok {
			return seqCursor(seq)
		}
		return sharedCursor()
	}

	nextFn := b.rt.ToValue(func(goja.FunctionCall) goja.Value {
		return b.iteratorResult(sharedCursor())
	})
	iteratorFn := b.rt.ToValue(func(goja.FunctionCall) goja.Value {
		obj, err := b.rt.New(b.iterCtor, b.rt.ToValue(freshCursor()))
		if err != nil {
			panic(err)
		}
		return obj
	})
	ref := b.rt.ToValue(&hostRef{v: src})
	attrs, _ := src.(value.Attributer)

	target := b.rt.NewObject()
	proxy := b.rt.NewProxy(target, &goja.ProxyTrapConfig{
		Get: func(target *goja.Object, prop string, _ goja.Value) goja.Value {
			if prop == "next" {
				return nextFn
			}
			if attrs != nil {
				if v, ok := attrs.Attr(prop); ok {
					gv, err := b.ToGuest(v)
					if err != nil {
						panic(b.throwable(err))
					}
					return gv
				}
			}
			if v := target.Get(prop); v != nil {
				return v
			}
			return goja.Undefined()
		},
		Has: func(target *goja.Object, prop string) bool {
			if prop == "next" {
				return true
			}
			if attrs != nil {
				if _, ok := attrs.Attr(prop); ok {
					return true
				}
			}
			return target.Get(prop) != nil
		},
		GetSym: func(target *goja.Object, sym *goja.Symbol, _ goja.Value) goja.Value {
			switch sym {
			case goja.SymIterator:
				return iteratorFn
			case b.hostKey:
				return ref
			}
			if v := target.GetSymbol(sym); v != nil {
				return v
			}
			return goja.Undefined()
		},
		HasSym: func(target *goja.Object, sym *goja.Symbol) bool {
			return sym == goja.SymIterator || sym == b.hostKey || target.GetSymbol(sym) != nil
		},
	})
	return b.rt.ToValue(proxy)
}

func (b *Bridge) cursorFor(src any) *cursor {
	switch s := src.(type) {
	case value.Iterator:
		return iteratorCursor(s)
	case iter.Seq[any]:
		return seqCursor(s)
	}
	return &cursor{done: true}
}

// iteratorResult advances c and builds the guest {done, value} record.
// Host failures other than exhaustion are thrown into the guest.
func (b *Bridge) iteratorResult(c *cursor) goja.Value {
	v, done, err := c.advance()
	if err != nil {
		panic(b.throwable(errors.Wrap(errors.PhaseIterate, errors.KindGuestException, err, "host iterator failed")))
	}
	res := b.rt.NewObject()
	if done {
		_ = res.Set("done", true)
		return res
	}
	gv, err := b.ToGuest(v)
	if err != nil {
		panic(b.throwable(err))
	}
	_ = res.Set("done", false)
	_ = res.Set("value", gv)
	return res
}

// defineIterableIterator installs the IterableIterator class on the global
// object. Instances inherit %IteratorPrototype%, so they are iterable
// themselves, and keep their cursor in a slot keyed by a symbol guest code
// cannot name.
func (b *Bridge) defineIterableIterator() error {
	ctor := b.rt.ToValue(func(call goja.ConstructorCall) *goja.Object {
		if call.NewTarget == nil {
			panic(b.rt.NewTypeError("Class constructor IterableIterator cannot be invoked without 'new'"))
		}
		c, ok := cursorOf(call.Argument(0))
		if !ok {
			panic(b.rt.NewTypeError("IterableIterator must be created from a host iterable"))
		}
		if err := call.This.DefineDataPropertySymbol(b.cursorKey, b.rt.ToValue(c), goja.FLAG_FALSE, goja.FLAG_FALSE, goja.FLAG_FALSE); err != nil {
			panic(err)
		}
		return nil
	}).(*goja.Object)

	if err := ctor.DefineDataProperty("name", b.rt.ToValue(iterableIteratorName), goja.FLAG_FALSE, goja.FLAG_TRUE, goja.FLAG_FALSE); err != nil {
		return err
	}
	proto, ok := ctor.Get("prototype").(*goja.Object)
	if !ok {
		return errors.NotFound(errors.PhaseInit, "prototype", iterableIteratorName)
	}
	if err := proto.SetPrototype(b.iterProto); err != nil {
		return err
	}
	next := b.rt.ToValue(func(call goja.FunctionCall) goja.Value {
		this, ok := call.This.(*goja.Object)
		if !ok {
			panic(b.rt.NewTypeError("IterableIterator.prototype.next called on a non-object"))
		}
		c, ok := cursorOf(this.GetSymbol(b.cursorKey))
		if !ok {
			panic(b.rt.NewTypeError("IterableIterator.prototype.next called on an incompatible receiver"))
		}
		return b.iteratorResult(c)
	})
	if err := proto.DefineDataProperty("next", next, goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_FALSE); err != nil {
		return err
	}
	if err := b.rt.GlobalObject().DefineDataProperty(iterableIteratorName, ctor, goja.FLAG_TRUE, goja.FLAG_TRUE, goja.FLAG_FALSE); err != nil {
		return err
	}
	b.iterCtor = ctor
	return nil
}

func cursorOf(v goja.Value) (*cursor, bool) {
	if v == nil || goja.IsUndefined(v) {
		return nil, false
	}
	c, ok := v.Export().(*cursor)
	return c, ok && c != nil
}
