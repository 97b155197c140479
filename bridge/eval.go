package bridge

import (
	"context"
	stderrors "errors"
	"fmt"
	"runtime"
	"time"

	"github.com/dop251/goja"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wippyai/jsbridge/errors"
	"github.com/wippyai/jsbridge/liveness"
)

// Eval compiles src and runs it in the bridge's global realm, returning the
// completion value converted to a host value. Compile and runtime failures
// come back as *errors.GuestError. Cancelling ctx interrupts the script.
//
// A function result stays rooted for as long as the returned
// *value.Function is reachable; other results hold no guest roots.
func (b *Bridge) Eval(ctx context.Context, src string) (result any, err error) {
	if err := b.checkOpen(errors.PhaseRuntime); err != nil {
		return nil, err
	}
	ctx, span := b.tracer.Start(ctx, "jsbridge.Eval", trace.WithAttributes(
		attribute.String("jsbridge.source_name", b.cfg.SourceName),
		attribute.Int("jsbridge.source_length", len(src)),
	))
	defer func() {
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
		}
		span.End()
	}()

	if err := ctx.Err(); err != nil {
		return nil, err
	}

	prg, err := goja.Compile(b.cfg.SourceName, src, b.cfg.Strict)
	if err != nil {
		return nil, b.guestError(errors.PhaseCompile, err)
	}

	res, err := b.run(ctx, prg)
	if err != nil {
		return nil, b.guestError(errors.PhaseRuntime, err)
	}
	result, err = b.ToHost(res)
	if err != nil {
		return nil, err
	}
	b.maybeCollect(ctx)
	return result, nil
}

// run executes prg, interrupting it if ctx is done first.
func (b *Bridge) run(ctx context.Context, prg *goja.Program) (goja.Value, error) {
	interrupted := make(chan struct{})
	stop := context.AfterFunc(ctx, func() {
		b.rt.Interrupt(context.Cause(ctx))
		close(interrupted)
	})
	res, err := b.rt.RunProgram(prg)
	if !stop() {
		<-interrupted
		b.rt.ClearInterrupt()
	}
	return res, err
}

// Collect forces a collection pass: a host collection so unreachable
// wrappers are noticed, the liveness sweep, then a second host collection
// that reclaims the guest values the sweep unrooted.
//
// Roots of reclaimed wrappers are also released without Collect: every
// tracked wrapper schedules a sweep when the Go collector reclaims it.
// Collect only makes that happen now, and sweeps wrappers that were
// released explicitly. The returned stats cover this pass alone.
func (b *Bridge) Collect(ctx context.Context) liveness.Stats {
	if b.closed.Load() {
		return liveness.Stats{}
	}
	_, span := b.tracer.Start(ctx, "jsbridge.Collect")
	defer span.End()

	start := time.Now()
	runtime.GC()
	stats := b.sweep()
	runtime.GC()
	b.lastCollect = time.Now()

	span.SetAttributes(
		attribute.Int("jsbridge.tracked", stats.Tracked),
		attribute.Int("jsbridge.swept", stats.Swept),
		attribute.Int("jsbridge.released", stats.Released),
		attribute.Int("jsbridge.retained", stats.Retained),
	)
	b.log.Debug("collection",
		zap.Int("swept", stats.Swept),
		zap.Int("released", stats.Released),
		zap.Int("roots", b.roots.Len()),
		zap.Duration("took", time.Since(start)),
	)
	return stats
}

// scheduleSweep is called once the Go collector has reclaimed a tracked
// wrapper. Wrappers reclaimed in one burst share a single sweep, which runs
// on its own goroutine so roots are released even while nobody drives the
// loop.
func (b *Bridge) scheduleSweep() {
	if b.closed.Load() || !b.sweepQueued.CompareAndSwap(false, true) {
		return
	}
	go b.sweep()
}

// sweep runs one liveness pass. It excludes track, so a root is never
// released between being pinned and being registered.
func (b *Bridge) sweep() liveness.Stats {
	b.sweepQueued.Store(false)
	b.regMu.Lock()
	defer b.regMu.Unlock()
	if b.closed.Load() {
		return liveness.Stats{}
	}
	return b.tracker.OnGCBegin()
}

func (b *Bridge) maybeCollect(ctx context.Context) {
	if b.cfg.CollectInterval <= 0 || time.Since(b.lastCollect) < b.cfg.CollectInterval {
		return
	}
	b.Collect(ctx)
}

// guestError translates an engine failure into a *errors.GuestError.
// Errors that did not come from the engine are returned unchanged.
func (b *Bridge) guestError(phase errors.Phase, err error) error {
	var interrupted *goja.InterruptedError
	if stderrors.As(err, &interrupted) {
		return &errors.GuestError{
			Cause:   err,
			Phase:   phase,
			Name:    "InterruptedError",
			Message: fmt.Sprint(interrupted.Value()),
		}
	}

	var overflow *goja.StackOverflowError
	if stderrors.As(err, &overflow) {
		return &errors.GuestError{
			Cause:   err,
			Phase:   phase,
			Name:    "RangeError",
			Message: "maximum call stack size exceeded",
			Stack:   overflow.String(),
		}
	}

	var ex *goja.Exception
	if stderrors.As(err, &ex) {
		ge := guestErrorFromValue(phase, ex.Value())
		ge.Cause = ex
		if ge.Stack == "" {
			ge.Stack = ex.String()
		}
		return ge
	}

	var syntax *goja.CompilerSyntaxError
	if stderrors.As(err, &syntax) {
		return &errors.GuestError{
			Cause:   err,
			Phase:   phase,
			Name:    "SyntaxError",
			Message: syntax.Message,
		}
	}

	var compile *goja.CompilerReferenceError
	if stderrors.As(err, &compile) {
		return &errors.GuestError{
			Cause:   err,
			Phase:   phase,
			Name:    "ReferenceError",
			Message: compile.Message,
		}
	}
	return err
}

func guestErrorFromValue(phase errors.Phase, v goja.Value) *errors.GuestError {
	if obj, ok := v.(*goja.Object); ok {
		return guestErrorOf(phase, obj)
	}
	msg := ""
	if v != nil {
		msg = v.String()
	}
	return &errors.GuestError{Phase: phase, Message: msg}
}

// guestErrorOf reads name, message and stack off a guest error object.
func guestErrorOf(phase errors.Phase, obj *goja.Object) *errors.GuestError {
	return &errors.GuestError{
		Phase:   phase,
		Name:    stringProp(obj, "name"),
		Message: stringProp(obj, "message"),
		Stack:   stringProp(obj, "stack"),
	}
}

func stringProp(obj *goja.Object, name string) string {
	v := obj.Get(name)
	if v == nil || goja.IsUndefined(v) || goja.IsNull(v) {
		return ""
	}
	return v.String()
}
