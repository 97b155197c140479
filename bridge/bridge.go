package bridge

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/dop251/goja"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wippyai/jsbridge/errors"
	"github.com/wippyai/jsbridge/eventloop"
	"github.com/wippyai/jsbridge/liveness"
	"github.com/wippyai/jsbridge/resource"
	"github.com/wippyai/jsbridge/value"
)

const tracerName = "github.com/wippyai/jsbridge/bridge"

// bootstrapSource runs once per bridge. It hands back the intrinsics the
// bridge needs but cannot reach from Go directly.
const bootstrapSource = `(function () {
	"use strict";
	return {
		iteratorPrototype: Object.getPrototypeOf(Object.getPrototypeOf([][Symbol.iterator]())),
		bind: function (fn, args) { return fn.bind(globalThis, ...args); }
	};
})()`

// Bridge is one guest realm together with everything that ties it to the
// host: the root and timer tables, the liveness tracker and the event loop
// timers are scheduled on.
//
// A Bridge is not safe for concurrent use. Drive it from a single
// goroutine, normally the one running its loop.
type Bridge struct {
	rt      *goja.Runtime
	loop    *eventloop.Loop
	roots   *resource.UnifiedTable
	async   *resource.UnifiedTable
	tracker *liveness.Tracker
	log     *zap.Logger
	tp      trace.TracerProvider
	tracer  trace.Tracer

	rootIndex map[*goja.Object]resource.Handle
	indexObs  *rootIndexObserver

	iterCtor  *goja.Object
	iterProto *goja.Object
	bindFn    goja.Callable
	hostKey   *goja.Symbol
	cursorKey *goja.Symbol

	lastCollect time.Time
	globals     []global
	cfg         Config

	rootMu      sync.Mutex
	regMu       sync.Mutex
	closed      atomic.Bool
	sweepQueued atomic.Bool
	ownsLoop    bool
	loopSet     bool
}

// New creates a bridge with a fresh guest realm. Each setup step fails with
// its own PhaseInit error.
func New(opts ...Option) (*Bridge, error) {
	b := &Bridge{
		cfg:       DefaultConfig(),
		log:       Logger(),
		rootIndex: make(map[*goja.Object]resource.Handle),
		hostKey:   goja.NewSymbol("jsbridge.host"),
		cursorKey: goja.NewSymbol("jsbridge.cursor"),
		ownsLoop:  true,
	}
	for _, opt := range opts {
		opt(b)
	}
	if b.tp == nil {
		b.tp = otel.GetTracerProvider()
	}
	b.tracer = b.tp.Tracer(tracerName)

	prg, err := goja.Compile("jsbridge:bootstrap", bootstrapSource, true)
	if err != nil {
		return nil, errors.Initialization("guest engine could not be initialized", err)
	}
	b.rt = goja.New()

	if !b.loopSet {
		b.loop = eventloop.New(eventloop.WithLogger(b.log))
	}
	if b.loop == nil {
		return nil, errors.Initialization("could not create an execution context", nil)
	}
	if err := b.bootstrap(prg); err != nil {
		b.abort()
		return nil, errors.Initialization("could not create an execution context", err)
	}

	b.roots = resource.NewTable()
	b.async = resource.NewTable(resource.Monotonic())
	b.indexObs = &rootIndexObserver{b: b}
	b.roots.Subscribe(b.indexObs)
	b.tracker = liveness.New(b.roots,
		liveness.WithLogger(b.log),
		liveness.WithUnreachable(b.scheduleSweep),
	)

	if err := b.defineIterableIterator(); err != nil {
		b.abort()
		return nil, errors.Initialization("could not create a global object", err)
	}
	if err := b.defineGlobals(); err != nil {
		b.abort()
		return nil, errors.Initialization("could not define global functions", err)
	}

	b.lastCollect = time.Now()
	b.log.Debug("bridge initialized",
		zap.String("source_name", b.cfg.SourceName),
		zap.Bool("strict", b.cfg.Strict),
		zap.Int("globals", len(b.globals)),
	)
	return b, nil
}

func (b *Bridge) bootstrap(prg *goja.Program) error {
	res, err := b.rt.RunProgram(prg)
	if err != nil {
		return err
	}
	helpers, ok := res.(*goja.Object)
	if !ok {
		return errors.TypeMismatch(errors.PhaseInit, nil, "", res.ExportType().String())
	}
	proto, ok := helpers.Get("iteratorPrototype").(*goja.Object)
	if !ok {
		return errors.NotFound(errors.PhaseInit, "intrinsic", "%IteratorPrototype%")
	}
	bind, ok := goja.AssertFunction(helpers.Get("bind"))
	if !ok {
		return errors.NotFound(errors.PhaseInit, "helper", "bind")
	}
	b.iterProto = proto
	b.bindFn = bind
	return nil
}

func (b *Bridge) defineGlobals() error {
	obj := b.rt.GlobalObject()
	if err := obj.Set("setTimeout", b.setTimeout); err != nil {
		return err
	}
	if err := obj.Set("clearTimeout", b.clearTimeout); err != nil {
		return err
	}
	for _, g := range b.globals {
		if g.name == "" {
			return errors.InvalidInput(errors.PhaseInit, "global function name is empty")
		}
		if g.fn == nil {
			return errors.NilPointer(errors.PhaseInit, []string{g.name}, "value.Func")
		}
		if err := obj.Set(g.name, b.hostFunction(g.fn)); err != nil {
			return err
		}
	}
	return nil
}

func (b *Bridge) abort() {
	if b.ownsLoop && b.loop != nil {
		_ = b.loop.Close()
	}
}

// Runtime returns the underlying guest runtime.
func (b *Bridge) Runtime() *goja.Runtime { return b.rt }

// Loop returns the loop timers are scheduled on.
func (b *Bridge) Loop() *eventloop.Loop { return b.loop }

// Tracker returns the liveness tracker guarding the bridge's roots.
func (b *Bridge) Tracker() *liveness.Tracker { return b.tracker }

// Roots returns the number of guest values currently pinned for host
// wrappers.
func (b *Bridge) Roots() int { return b.roots.Len() }

// PendingTimers returns the number of scheduled timers that have neither
// fired nor been cancelled.
func (b *Bridge) PendingTimers() int { return b.async.Len() }

// ToCodepoints reinterprets a host string as a code point sequence.
func (b *Bridge) ToCodepoints(v any) ([]rune, error) {
	return value.ToCodepoints(v)
}

// Close cancels pending timers, unroots every guest value and closes the
// loop if the bridge created it. Host proxies still held by callers fail
// with a released error afterwards.
func (b *Bridge) Close() error {
	if !b.closed.CompareAndSwap(false, true) {
		return nil
	}
	pending := b.async.Len()
	_ = b.async.Close()

	b.regMu.Lock()
	_ = b.tracker.Close()
	b.roots.Unsubscribe(b.indexObs)
	_ = b.roots.Close()
	b.regMu.Unlock()

	b.rootMu.Lock()
	clear(b.rootIndex)
	b.rootMu.Unlock()

	if b.ownsLoop {
		_ = b.loop.Close()
	}
	b.log.Debug("bridge closed", zap.Int("cancelled_timers", pending))
	return nil
}

func (b *Bridge) checkOpen(phase errors.Phase) error {
	if b.closed.Load() {
		return errors.Closed(phase, "bridge")
	}
	return nil
}
