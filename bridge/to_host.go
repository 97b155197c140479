package bridge

import (
	"math"
	"math/big"
	"strconv"
	"time"

	"github.com/dop251/goja"
	"github.com/iancoleman/orderedmap"

	"github.com/wippyai/jsbridge/errors"
	"github.com/wippyai/jsbridge/resource"
	"github.com/wippyai/jsbridge/value"
)

// ToHost converts a guest value into a host value.
//
// Numbers within ±(2^53-1) that are integral become int64 and all others
// float64. The guest has a single number type, so a host float64 with an
// integral value such as 3.0 comes back as int64(3); -0, infinities, NaN
// and integral values past the safe range stay float64. BigInt becomes
// *big.Int; Date becomes time.Time in UTC. Arrays and plain objects are
// copied eagerly into []any and *orderedmap.OrderedMap. Functions and other
// iterables stay in the guest: the result is a *value.Function or
// *value.GuestIterator whose guest value is rooted until the wrapper is no
// longer reachable.
func (b *Bridge) ToHost(v goja.Value) (out any, err error) {
	if err := b.checkOpen(errors.PhaseDecode); err != nil {
		return nil, err
	}
	if ex := b.rt.Try(func() {
		out, err = b.toHost(v, nil, nil)
	}); ex != nil {
		return nil, b.guestError(errors.PhaseDecode, ex)
	}
	return out, err
}

func (b *Bridge) toHost(v goja.Value, path []string, visiting map[*goja.Object]struct{}) (any, error) {
	if v == nil || goja.IsUndefined(v) {
		return nil, nil
	}
	if goja.IsNull(v) {
		return value.Null{}, nil
	}
	switch x := v.(type) {
	case *goja.Symbol:
		return nil, errors.Unsupported(errors.PhaseDecode, path, "symbol")
	case *goja.Object:
		return b.objectToHost(x, path, visiting)
	}
	return exportPrimitive(v.Export(), path)
}

func exportPrimitive(v any, path []string) (any, error) {
	switch n := v.(type) {
	case int64, string, bool, *big.Int:
		return n, nil
	case float64:
		if n == math.Trunc(n) && math.Abs(n) <= maxSafeInteger && !isNegativeZero(n) {
			return int64(n), nil
		}
		return n, nil
	}
	return nil, errors.TypeMismatch(errors.PhaseDecode, path, "", "primitive")
}

func (b *Bridge) objectToHost(obj *goja.Object, path []string, visiting map[*goja.Object]struct{}) (any, error) {
	if hv, ok := b.hostValueOf(obj); ok {
		return hv, nil
	}
	if _, ok := goja.AssertFunction(obj); ok {
		return b.wrapFunction(obj), nil
	}

	switch obj.ClassName() {
	case "Array":
		return b.arrayToHost(obj, path, visiting)
	case "Date":
		t, ok := obj.Export().(time.Time)
		if !ok {
			return nil, errors.New(errors.PhaseDecode, errors.KindInvalidInput).
				Path(path...).
				JSType("Date").
				Detail("invalid date").
				Build()
		}
		return t.UTC(), nil
	case "Error":
		return guestErrorOf(errors.PhaseRuntime, obj), nil
	case "Number", "String", "Boolean", "BigInt":
		return b.unbox(obj, path)
	case "Object":
		if !isIterable(obj) {
			return b.objectToMap(obj, path, visiting)
		}
	}

	if isIterable(obj) {
		return b.wrapIterable(obj, path)
	}
	return nil, errors.Unsupported(errors.PhaseDecode, path, obj.ClassName())
}

// unbox returns the primitive behind a wrapper object such as new String("s").
func (b *Bridge) unbox(obj *goja.Object, path []string) (any, error) {
	valueOf, ok := goja.AssertFunction(obj.Get("valueOf"))
	if !ok {
		return nil, errors.NotFound(errors.PhaseDecode, "method", "valueOf")
	}
	v, err := valueOf(obj)
	if err != nil {
		return nil, b.guestError(errors.PhaseDecode, err)
	}
	return exportPrimitive(v.Export(), path)
}

func (b *Bridge) arrayToHost(obj *goja.Object, path []string, visiting map[*goja.Object]struct{}) (any, error) {
	visiting, err := enter(obj, path, visiting)
	if err != nil {
		return nil, err
	}
	defer delete(visiting, obj)

	n := obj.Get("length").ToInteger()
	if n > int64(b.cfg.MaxArrayLength) {
		return nil, errors.New(errors.PhaseDecode, errors.KindLimitExceeded).
			Path(path...).
			Detail("array length %d exceeds the limit of %d", n, b.cfg.MaxArrayLength).
			Build()
	}
	out := make([]any, n)
	for i := range n {
		key := strconv.FormatInt(i, 10)
		item, err := b.toHost(obj.Get(key), append(path, key), visiting)
		if err != nil {
			return nil, err
		}
		out[i] = item
	}
	return out, nil
}

func (b *Bridge) objectToMap(obj *goja.Object, path []string, visiting map[*goja.Object]struct{}) (any, error) {
	visiting, err := enter(obj, path, visiting)
	if err != nil {
		return nil, err
	}
	defer delete(visiting, obj)

	m := orderedmap.New()
	m.SetEscapeHTML(false)
	for _, k := range obj.Keys() {
		item, err := b.toHost(obj.Get(k), append(path, k), visiting)
		if err != nil {
			return nil, err
		}
		m.Set(k, item)
	}
	return m, nil
}

// enter marks obj as being converted. Eager copies cannot represent cycles.
func enter(obj *goja.Object, path []string, visiting map[*goja.Object]struct{}) (map[*goja.Object]struct{}, error) {
	if visiting == nil {
		visiting = make(map[*goja.Object]struct{})
	}
	if _, ok := visiting[obj]; ok {
		return nil, errors.New(errors.PhaseDecode, errors.KindInvalidInput).
			Path(path...).
			Detail("cyclic structure cannot be copied").
			Build()
	}
	visiting[obj] = struct{}{}
	return visiting, nil
}

// wrapFunction roots a guest function and returns its host proxy.
func (b *Bridge) wrapFunction(obj *goja.Object) *value.Function {
	name := ""
	if n := obj.Get("name"); n != nil && !goja.IsUndefined(n) {
		name = n.String()
	}
	var f *value.Function
	b.track(obj, func(h resource.Handle) *value.Wrapper {
		f = value.NewFunction(name, h, func(args []any) (any, error) {
			return b.callRoot(h, name, args)
		})
		return f.Wrapper()
	})
	return f
}

func (b *Bridge) callRoot(h resource.Handle, name string, args []any) (any, error) {
	if err := b.checkOpen(errors.PhaseRuntime); err != nil {
		return nil, err
	}
	obj, err := b.resolve(errors.PhaseRuntime, h, "function "+name)
	if err != nil {
		return nil, err
	}
	fn, ok := goja.AssertFunction(obj)
	if !ok {
		return nil, errors.TypeMismatch(errors.PhaseRuntime, nil, "", obj.ClassName())
	}

	gargs := make([]goja.Value, len(args))
	for i, arg := range args {
		gv, err := b.toGuest(arg, []string{strconv.Itoa(i)})
		if err != nil {
			return nil, err
		}
		gargs[i] = gv
	}

	res, err := fn(goja.Undefined(), gargs...)
	if err != nil {
		return nil, b.guestError(errors.PhaseRuntime, err)
	}
	return b.ToHost(res)
}

// wrapIterable roots the guest iterator obtained from obj[Symbol.iterator]
// and returns its host proxy.
func (b *Bridge) wrapIterable(obj *goja.Object, path []string) (any, error) {
	method, _ := goja.AssertFunction(obj.GetSymbol(goja.SymIterator))
	res, err := method(obj)
	if err != nil {
		return nil, b.guestError(errors.PhaseDecode, err)
	}
	itObj, ok := res.(*goja.Object)
	if !ok {
		return nil, errors.New(errors.PhaseDecode, errors.KindTypeMismatch).
			Path(path...).
			JSType(res.String()).
			Detail("Symbol.iterator did not return an object").
			Build()
	}

	var it *value.GuestIterator
	b.track(itObj, func(h resource.Handle) *value.Wrapper {
		it = value.NewGuestIterator(h, func() (any, bool, error) {
			return b.stepRoot(h)
		})
		return it.Wrapper()
	})
	return it, nil
}

func (b *Bridge) stepRoot(h resource.Handle) (any, bool, error) {
	if err := b.checkOpen(errors.PhaseIterate); err != nil {
		return nil, false, err
	}
	itObj, err := b.resolve(errors.PhaseIterate, h, "iterator")
	if err != nil {
		return nil, false, err
	}
	next, ok := goja.AssertFunction(itObj.Get("next"))
	if !ok {
		return nil, false, errors.NotFound(errors.PhaseIterate, "method", "next")
	}
	res, err := next(itObj)
	if err != nil {
		return nil, false, b.guestError(errors.PhaseIterate, err)
	}
	result, ok := res.(*goja.Object)
	if !ok {
		return nil, false, errors.New(errors.PhaseIterate, errors.KindTypeMismatch).
			JSType(res.String()).
			Detail("iterator result is not an object").
			Build()
	}
	if truthy(result.Get("done")) {
		return nil, true, nil
	}
	item, err := b.ToHost(result.Get("value"))
	if err != nil {
		return nil, false, err
	}
	return item, false, nil
}

// hostValueOf recovers the host value behind a proxy binding.
func (b *Bridge) hostValueOf(obj *goja.Object) (any, bool) {
	ref := obj.GetSymbol(b.hostKey)
	if ref == nil || goja.IsUndefined(ref) {
		return nil, false
	}
	hr, ok := ref.Export().(*hostRef)
	if !ok {
		return nil, false
	}
	return hr.v, true
}

func isIterable(obj *goja.Object) bool {
	_, ok := goja.AssertFunction(obj.GetSymbol(goja.SymIterator))
	return ok
}

func truthy(v goja.Value) bool {
	return v != nil && v.ToBoolean()
}
