package eventloop

import (
	"context"
	"sync"
	"time"

	"github.com/dop251/goja"
	gojaloop "github.com/dop251/goja_nodejs/eventloop"
	"go.uber.org/zap"

	bridgeerrors "github.com/wippyai/jsbridge/errors"
)

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the loop's logger.
func WithLogger(l *zap.Logger) Option {
	return func(loop *Loop) {
		loop.log = l
	}
}

// Loop schedules tasks and timers on a goja_nodejs event loop. Tasks run
// one at a time on whichever goroutine drives the loop (Run or Serve);
// Submit and AfterFunc may be called from any goroutine.
//
// The underlying loop is used as a scheduler only. Its own runtime never
// sees guest code; tasks close over whatever runtime they need.
type Loop struct {
	el  *gojaloop.EventLoop
	log *zap.Logger

	mu      sync.Mutex
	pending int
	gen     uint64
	driving bool
	closed  bool
}

// New creates an idle loop.
func New(opts ...Option) *Loop {
	l := &Loop{
		el:  gojaloop.NewEventLoop(gojaloop.EnableConsole(false)),
		log: Logger(),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

// Submit queues fn to run on the loop. Tasks run in submission order.
func (l *Loop) Submit(fn func()) error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return bridgeerrors.Closed(bridgeerrors.PhaseSchedule, "event loop")
	}
	l.pending++
	l.mu.Unlock()

	if !l.el.RunOnLoop(func(*goja.Runtime) { l.runTask(fn) }) {
		l.done()
		return bridgeerrors.Closed(bridgeerrors.PhaseSchedule, "event loop")
	}
	return nil
}

// runTask runs a submitted task unless the loop was closed meanwhile.
func (l *Loop) runTask(fn func()) {
	l.mu.Lock()
	closed := l.closed
	if !closed {
		l.pending--
	}
	l.mu.Unlock()
	if !closed {
		l.run(fn)
	}
}

// AfterFunc schedules fn to run on the loop once d has elapsed. The delay
// counts from the moment the driving goroutine picks the timer up.
func (l *Loop) AfterFunc(d time.Duration, fn func()) (*Timer, error) {
	d = max(d, 0)
	t := &Timer{loop: l, fn: fn}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil, bridgeerrors.Closed(bridgeerrors.PhaseSchedule, "event loop")
	}
	l.pending++
	l.mu.Unlock()

	t.timer = l.el.SetTimeout(func(*goja.Runtime) { t.fire() }, d)
	if t.timer == nil {
		l.done()
		return nil, bridgeerrors.Closed(bridgeerrors.PhaseSchedule, "event loop")
	}
	return t, nil
}

// Run drives the loop until it is idle, ctx is done or the loop is closed.
// Task panics are logged and do not stop the loop.
func (l *Loop) Run(ctx context.Context) error {
	return l.drive(ctx, func() { l.el.Run(func(*goja.Runtime) {}) }, false)
}

// Serve drives the loop until ctx is done or the loop is closed, waiting for
// new submissions while idle.
func (l *Loop) Serve(ctx context.Context) error {
	return l.drive(ctx, l.el.StartInForeground, true)
}

func (l *Loop) drive(ctx context.Context, pass func(), serve bool) (err error) {
	if err := ctx.Err(); err != nil {
		return err
	}

	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		if serve {
			return nil
		}
		return bridgeerrors.Closed(bridgeerrors.PhaseSchedule, "event loop")
	}
	if l.driving {
		l.mu.Unlock()
		return bridgeerrors.InvalidInput(bridgeerrors.PhaseSchedule, "event loop is already being driven")
	}
	l.driving = true
	l.gen++
	gen := l.gen
	l.mu.Unlock()

	defer func() {
		l.mu.Lock()
		l.driving = false
		closed := l.closed
		l.mu.Unlock()
		if closed {
			l.terminate()
		}
	}()

	stop := context.AfterFunc(ctx, func() { l.stop(gen) })
	defer stop()

	for {
		pass()

		l.mu.Lock()
		closed, idle := l.closed, l.pending == 0
		l.mu.Unlock()
		switch {
		case closed:
			return nil
		case ctx.Err() != nil:
			return ctx.Err()
		case idle && !serve:
			return nil
		}
	}
}

// stop asks the driver of generation gen to return. The request runs on
// the loop itself, so it cannot race a driver that is still starting up.
func (l *Loop) stop(gen uint64) {
	l.el.RunOnLoop(func(*goja.Runtime) {
		l.mu.Lock()
		current := l.driving && l.gen == gen
		l.mu.Unlock()
		if current {
			l.el.StopNoWait()
		}
	})
}

// Running reports whether some goroutine is currently driving the loop.
func (l *Loop) Running() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.driving
}

// Pending returns the number of queued tasks plus armed timers.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.pending
}

// Close stops every timer and drops queued tasks. A driver returns once the
// task it is running finishes; Close may be called from inside a task.
func (l *Loop) Close() error {
	l.mu.Lock()
	if l.closed {
		l.mu.Unlock()
		return nil
	}
	l.closed = true
	dropped := l.pending
	l.pending = 0
	driving, gen := l.driving, l.gen
	l.mu.Unlock()

	if dropped > 0 {
		l.log.Debug("event loop closed with pending work", zap.Int("dropped", dropped))
	}
	if driving {
		l.stop(gen)
		return nil
	}
	l.terminate()
	return nil
}

// terminate cancels the underlying loop's timers. It must not overlap a
// driver, which holds for both callers: Close when nobody drives and the
// driver itself on its way out.
func (l *Loop) terminate() {
	l.el.Terminate()
}

func (l *Loop) done() {
	l.mu.Lock()
	if l.pending > 0 {
		l.pending--
	}
	l.mu.Unlock()
}

func (l *Loop) run(fn func()) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("task panicked", zap.Any("panic", r))
		}
	}()
	fn()
}

// Timer is a pending AfterFunc callback.
type Timer struct {
	loop    *Loop
	timer   *gojaloop.Timer
	fn      func()
	stopped bool
	ran     bool
}

// Stop cancels the timer. It reports whether the callback was prevented
// from running; stopping a timer that already ran or was already stopped
// returns false.
func (t *Timer) Stop() bool {
	l := t.loop
	l.mu.Lock()
	if t.stopped || t.ran || l.closed {
		l.mu.Unlock()
		return false
	}
	t.stopped = true
	l.pending--
	l.mu.Unlock()

	l.el.ClearTimeout(t.timer)
	return true
}

func (t *Timer) fire() {
	l := t.loop
	l.mu.Lock()
	if t.stopped || t.ran || l.closed {
		l.mu.Unlock()
		return
	}
	t.ran = true
	l.pending--
	l.mu.Unlock()
	l.run(t.fn)
}
