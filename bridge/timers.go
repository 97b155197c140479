package bridge

import (
	"context"
	"math"
	"time"

	"github.com/dop251/goja"
	"go.uber.org/zap"

	"github.com/wippyai/jsbridge/errors"
	"github.com/wippyai/jsbridge/eventloop"
	"github.com/wippyai/jsbridge/resource"
	"github.com/wippyai/jsbridge/value"
)

// maxDelayMillis caps timer delays at what a signed 32-bit millisecond count
// holds.
const maxDelayMillis = math.MaxInt32

// asyncHandle is a scheduled timer callback kept in the async table.
// Removing it from the table stops the underlying loop timer.
type asyncHandle struct {
	fn    *value.Function
	timer *eventloop.Timer
}

func (a *asyncHandle) Drop() {
	if a.timer != nil {
		a.timer.Stop()
	}
}

// setTimeout implements the guest global. The callback is rooted until it
// fires or is cleared; the returned id is never reused.
func (b *Bridge) setTimeout(call goja.FunctionCall) goja.Value {
	cb := call.Argument(0)
	if _, ok := goja.AssertFunction(cb); !ok {
		panic(b.rt.NewTypeError("setTimeout: callback must be a function"))
	}
	if !b.loop.Running() {
		panic(b.throwable(errors.NoEventLoop("setTimeout")))
	}
	if b.cfg.MaxTimers > 0 && b.async.Len() >= b.cfg.MaxTimers {
		panic(b.throwable(errors.New(errors.PhaseSchedule, errors.KindLimitExceeded).
			Detail("at most %d timers may be pending", b.cfg.MaxTimers).
			Build()))
	}

	if len(call.Arguments) > 2 {
		bound, err := b.bindFn(goja.Undefined(), cb, b.rt.NewArray(valuesToAny(call.Arguments[2:])...))
		if err != nil {
			panic(err)
		}
		cb = bound
	}
	delay := timerDelay(call.Argument(1))

	hv, err := b.ToHost(cb)
	if err != nil {
		panic(b.throwable(err))
	}
	fn, ok := hv.(*value.Function)
	if !ok {
		panic(b.rt.NewTypeError("setTimeout: callback must be a function"))
	}

	h := &asyncHandle{fn: fn}
	id := b.async.Insert(resource.ClassAsync, h)
	if id == 0 {
		fn.Release()
		panic(b.throwable(errors.Closed(errors.PhaseSchedule, "timer table")))
	}
	t, err := b.loop.AfterFunc(delay, func() { b.fireTimer(id) })
	if err != nil {
		b.async.Remove(id)
		fn.Release()
		panic(b.throwable(err))
	}
	h.timer = t

	b.log.Debug("timer scheduled", zap.Uint32("id", uint32(id)), zap.Duration("delay", delay))
	return b.rt.ToValue(int64(id))
}

// clearTimeout cancels a pending timer. Ids that are not numbers, unknown
// or already spent are ignored.
func (b *Bridge) clearTimeout(call goja.FunctionCall) goja.Value {
	id, ok := timerID(call.Argument(0))
	if !ok {
		return goja.Undefined()
	}
	if _, ok := b.async.GetTyped(id, resource.ClassAsync); !ok {
		return goja.Undefined()
	}
	if v, ok := b.async.Remove(id); ok {
		v.(*asyncHandle).fn.Release()
		b.log.Debug("timer cleared", zap.Uint32("id", uint32(id)))
	}
	return goja.Undefined()
}

// fireTimer runs on the loop. The handle is dropped before the callback
// runs, so clearTimeout from inside the callback is a no-op.
func (b *Bridge) fireTimer(id resource.Handle) {
	if b.closed.Load() {
		return
	}
	v, ok := b.async.Remove(id)
	if !ok {
		return
	}
	fn := v.(*asyncHandle).fn
	_, err := fn.Call()
	fn.Release()
	if err != nil {
		b.log.Error("timer callback failed", zap.Uint32("id", uint32(id)), zap.Error(err))
		if b.cfg.OnError != nil {
			b.cfg.OnError(err)
		}
	}
	b.maybeCollect(context.Background())
}

// timerDelay coerces a guest delay to a duration. Missing, NaN and negative
// delays mean zero.
func timerDelay(v goja.Value) time.Duration {
	if v == nil || goja.IsUndefined(v) {
		return 0
	}
	ms := v.ToFloat()
	if math.IsNaN(ms) || ms <= 0 {
		return 0
	}
	ms = min(ms, maxDelayMillis)
	return time.Duration(ms * float64(time.Millisecond))
}

func timerID(v goja.Value) (resource.Handle, bool) {
	if v == nil || !goja.IsNumber(v) {
		return 0, false
	}
	f := v.ToFloat()
	if f != math.Trunc(f) || f <= 0 || f > math.MaxUint32 {
		return 0, false
	}
	return resource.Handle(f), true
}

func valuesToAny(vs []goja.Value) []any {
	out := make([]any, len(vs))
	for i, v := range vs {
		out[i] = v
	}
	return out
}
