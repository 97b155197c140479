package bridge

import (
	stderrors "errors"
	"fmt"
	"maps"
	"math"
	"math/big"
	"reflect"
	"slices"
	"strconv"
	"time"

	"github.com/dop251/goja"
	"github.com/iancoleman/orderedmap"

	"github.com/wippyai/jsbridge/errors"
	"github.com/wippyai/jsbridge/value"
)

// maxSafeInteger is the largest integer a guest number holds exactly.
const maxSafeInteger = 1<<53 - 1

// ToGuest converts a host value into a guest value.
//
// Scalars convert exactly; integers past the guest's safe range become
// BigInt. Maps and slices are copied eagerly, so later host mutations are
// not visible to the guest. Functions and iterators are exposed lazily.
func (b *Bridge) ToGuest(v any) (goja.Value, error) {
	if err := b.checkOpen(errors.PhaseEncode); err != nil {
		return nil, err
	}
	return b.toGuest(v, nil)
}

func (b *Bridge) toGuest(v any, path []string) (goja.Value, error) {
	if gv, ok := v.(goja.Value); ok {
		return gv, nil
	}
	if w, ok := v.(*value.Wrapper); ok && w != nil {
		v = w.Value()
	}

	kind, err := value.KindOf(v)
	if errors.IsKind(err, errors.KindNilPointer) {
		return nil, errors.NilPointer(errors.PhaseEncode, path, fmt.Sprintf("%T", v))
	}
	if err != nil {
		return nil, errors.Unsupported(errors.PhaseEncode, path, fmt.Sprintf("%T", v))
	}
	switch kind {
	case value.KindNone:
		return goja.Undefined(), nil
	case value.KindNull:
		return goja.Null(), nil
	case value.KindBool:
		return b.rt.ToValue(v.(bool)), nil
	case value.KindString:
		return b.rt.ToValue(v.(string)), nil
	case value.KindInt:
		rv := reflect.ValueOf(v)
		if rv.CanInt() {
			return b.fromInt64(rv.Int()), nil
		}
		return b.fromUint64(rv.Uint()), nil
	case value.KindFloat:
		return b.rt.ToValue(reflect.ValueOf(v).Float()), nil
	case value.KindBigInt:
		return b.rt.ToValue(v.(*big.Int)), nil
	case value.KindDate:
		return b.newDate(v.(time.Time), path)
	case value.KindDict:
		return b.dictToGuest(v, path)
	case value.KindList:
		return b.listToGuest(v, path)
	case value.KindFunction:
		return b.functionToGuest(v)
	case value.KindIterable:
		return b.iterableToGuest(v)
	}
	return nil, errors.Unsupported(errors.PhaseEncode, path, fmt.Sprintf("%T", v))
}

// dictToGuest copies an ordered map in key order and any other string-keyed
// map in sorted key order. A nil map becomes null.
func (b *Bridge) dictToGuest(v any, path []string) (goja.Value, error) {
	switch x := v.(type) {
	case orderedmap.OrderedMap:
		return b.dictToGuest(&x, path)
	case *orderedmap.OrderedMap:
		if x == nil {
			return goja.Null(), nil
		}
		return b.newObject(x.Keys(), func(k string) any {
			item, _ := x.Get(k)
			return item
		}, path)
	case map[string]any:
		if x == nil {
			return goja.Null(), nil
		}
		keys := slices.Sorted(maps.Keys(x))
		return b.newObject(keys, func(k string) any { return x[k] }, path)
	}

	rv := reflect.ValueOf(v)
	if rv.IsNil() {
		return goja.Null(), nil
	}
	keys := make([]string, 0, rv.Len())
	for _, k := range rv.MapKeys() {
		keys = append(keys, k.String())
	}
	slices.Sort(keys)
	return b.newObject(keys, func(k string) any {
		return rv.MapIndex(reflect.ValueOf(k).Convert(rv.Type().Key())).Interface()
	}, path)
}

func (b *Bridge) listToGuest(v any, path []string) (goja.Value, error) {
	if x, ok := v.([]any); ok {
		return b.newArray(len(x), func(i int) any { return x[i] }, path)
	}
	rv := reflect.ValueOf(v)
	return b.newArray(rv.Len(), func(i int) any { return rv.Index(i).Interface() }, path)
}

// functionToGuest exposes a host function, or hands back the guest
// function a *value.Function proxies.
func (b *Bridge) functionToGuest(v any) (goja.Value, error) {
	switch x := v.(type) {
	case value.Func:
		return b.hostFunction(x), nil
	case func(...any) (any, error):
		return b.hostFunction(x), nil
	case *value.Function:
		if x == nil {
			return goja.Undefined(), nil
		}
		if x.Wrapper().Released() {
			return nil, errors.Released(errors.PhaseEncode, "function "+x.Name())
		}
		return b.resolve(errors.PhaseEncode, x.Handle(), "function "+x.Name())
	}
	return nil, errors.Unsupported(errors.PhaseEncode, nil, fmt.Sprintf("%T", v))
}

// iterableToGuest wraps a host iterator in an IterableIterator proxy, or
// hands back the guest iterator a *value.GuestIterator proxies.
func (b *Bridge) iterableToGuest(v any) (goja.Value, error) {
	if x, ok := v.(*value.GuestIterator); ok {
		if x == nil {
			return goja.Undefined(), nil
		}
		if x.Wrapper().Released() {
			return nil, errors.Released(errors.PhaseEncode, "iterator")
		}
		return b.resolve(errors.PhaseEncode, x.Handle(), "iterator")
	}
	return b.newIterableProxy(v), nil
}

func (b *Bridge) fromInt64(n int64) goja.Value {
	if n > maxSafeInteger || n < -maxSafeInteger {
		return b.rt.ToValue(big.NewInt(n))
	}
	return b.rt.ToValue(n)
}

func (b *Bridge) fromUint64(n uint64) goja.Value {
	if n > maxSafeInteger {
		return b.rt.ToValue(new(big.Int).SetUint64(n))
	}
	return b.rt.ToValue(int64(n))
}

// newDate builds a guest Date with millisecond precision.
func (b *Bridge) newDate(t time.Time, path []string) (goja.Value, error) {
	ms := t.UnixMilli()
	if ms > maxDateMillis || ms < -maxDateMillis {
		return nil, errors.Overflow(errors.PhaseEncode, path, t, "Date")
	}
	d, err := b.rt.New(b.rt.Get("Date"), b.rt.ToValue(ms))
	if err != nil {
		return nil, b.guestError(errors.PhaseEncode, err)
	}
	return d, nil
}

// maxDateMillis is the guest Date range, 100,000,000 days either side of
// the epoch.
const maxDateMillis = 8.64e15

func (b *Bridge) newObject(keys []string, get func(string) any, path []string) (goja.Value, error) {
	obj := b.rt.NewObject()
	for _, k := range keys {
		item, err := b.toGuest(get(k), append(path, k))
		if err != nil {
			return nil, err
		}
		if err := obj.Set(k, item); err != nil {
			return nil, b.guestError(errors.PhaseEncode, err)
		}
	}
	return obj, nil
}

func (b *Bridge) newArray(n int, get func(int) any, path []string) (goja.Value, error) {
	items := make([]any, n)
	for i := range n {
		item, err := b.toGuest(get(i), append(path, strconv.Itoa(i)))
		if err != nil {
			return nil, err
		}
		items[i] = item
	}
	return b.rt.NewArray(items...), nil
}

// hostFunction exposes fn as a guest function. Arguments and the result
// cross through the type factory; a returned error is thrown into the
// guest, rethrowing the original guest exception when there is one.
func (b *Bridge) hostFunction(fn value.Func) goja.Value {
	return b.rt.ToValue(func(call goja.FunctionCall) goja.Value {
		args := make([]any, len(call.Arguments))
		for i, arg := range call.Arguments {
			hv, err := b.ToHost(arg)
			if err != nil {
				panic(b.throwable(err))
			}
			args[i] = hv
		}
		res, err := fn(args...)
		if err != nil {
			panic(b.throwable(err))
		}
		gv, err := b.ToGuest(res)
		if err != nil {
			panic(b.throwable(err))
		}
		return gv
	})
}

// throwable turns a host error into something a native function can panic
// with to raise it in the guest.
func (b *Bridge) throwable(err error) any {
	var ex *goja.Exception
	if stderrors.As(err, &ex) {
		return ex
	}
	var be *errors.Error
	if stderrors.As(err, &be) && (be.Kind == errors.KindTypeMismatch || be.Kind == errors.KindUnsupported) {
		return b.rt.NewTypeError(be.Error())
	}
	return b.rt.NewGoError(err)
}

func isNegativeZero(f float64) bool {
	return f == 0 && math.Signbit(f)
}
