package bridge

import (
	"github.com/dop251/goja"

	"github.com/wippyai/jsbridge/errors"
	"github.com/wippyai/jsbridge/resource"
	"github.com/wippyai/jsbridge/value"
)

// root pins obj in the root table. The same guest object converted twice
// resolves to the same handle, so wrappers sharing a guest value share its
// root and the tracker only releases it once none of them is reachable.
func (b *Bridge) root(obj *goja.Object) resource.Handle {
	b.rootMu.Lock()
	defer b.rootMu.Unlock()
	if h, ok := b.rootIndex[obj]; ok {
		return h
	}
	h := b.roots.Insert(resource.ClassRoot, obj)
	if h != 0 {
		b.rootIndex[obj] = h
	}
	return h
}

// track roots obj and registers the wrapper built for its handle as one
// step with respect to sweeps.
func (b *Bridge) track(obj *goja.Object, wrap func(resource.Handle) *value.Wrapper) {
	b.regMu.Lock()
	defer b.regMu.Unlock()
	h := b.root(obj)
	b.tracker.Register(wrap(h), h)
}

// resolve returns the guest object pinned under h.
func (b *Bridge) resolve(phase errors.Phase, h resource.Handle, what string) (*goja.Object, error) {
	v, ok := b.roots.GetTyped(h, resource.ClassRoot)
	if !ok {
		return nil, errors.Released(phase, what)
	}
	return v.(*goja.Object), nil
}

// rootIndexObserver forgets index entries for roots the tracker released.
type rootIndexObserver struct {
	b *Bridge
}

func (o *rootIndexObserver) OnResourceEvent(e resource.Event) {
	if e.Type != resource.EventDropped {
		return
	}
	obj, ok := e.Value.(*goja.Object)
	if !ok {
		return
	}
	o.b.rootMu.Lock()
	if o.b.rootIndex[obj] == e.Handle {
		delete(o.b.rootIndex, obj)
	}
	o.b.rootMu.Unlock()
}
