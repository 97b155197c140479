package bridge

import (
	"time"

	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/wippyai/jsbridge/eventloop"
	"github.com/wippyai/jsbridge/value"
)

// DefaultSourceName is the file name guest stack traces report for
// evaluated source.
const DefaultSourceName = "noname"

// DefaultMaxArrayLength is the longest guest array ToHost copies unless
// Config.MaxArrayLength says otherwise.
const DefaultMaxArrayLength = 1 << 24

// Config holds the tunables of a Bridge.
type Config struct {
	// OnError receives errors raised by timer callbacks. They are always
	// logged; the loop keeps running either way.
	OnError func(error)

	// SourceName labels evaluated source in guest stack traces.
	SourceName string

	// CollectInterval, when positive, makes Eval and timer dispatch run
	// Collect once at least this much time passed since the last pass.
	CollectInterval time.Duration

	// MaxTimers caps the number of pending timers; zero means unlimited.
	MaxTimers int

	// MaxArrayLength caps the length of guest arrays copied to the host.
	// A longer array, sparse or not, fails with KindLimitExceeded. Zero
	// means DefaultMaxArrayLength.
	MaxArrayLength int

	// Strict compiles evaluated source in strict mode.
	Strict bool
}

// DefaultConfig returns the configuration New starts from.
func DefaultConfig() Config {
	return Config{SourceName: DefaultSourceName, MaxArrayLength: DefaultMaxArrayLength}
}

// Option configures a Bridge.
type Option func(*Bridge)

// WithConfig replaces the bridge configuration. An empty SourceName and a
// non-positive MaxArrayLength fall back to their defaults.
func WithConfig(cfg Config) Option {
	return func(b *Bridge) {
		if cfg.SourceName == "" {
			cfg.SourceName = DefaultSourceName
		}
		if cfg.MaxArrayLength <= 0 {
			cfg.MaxArrayLength = DefaultMaxArrayLength
		}
		b.cfg = cfg
	}
}

// WithLogger sets the bridge's logger. It is also handed to the tracker and
// to the loop the bridge creates.
func WithLogger(l *zap.Logger) Option {
	return func(b *Bridge) {
		b.log = l
	}
}

// WithTracerProvider sets where Eval and Collect spans go. The global
// provider is used by default.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(b *Bridge) {
		b.tp = tp
	}
}

// WithLoop makes the bridge schedule timers on an existing loop instead of
// creating its own. The bridge does not close a loop it did not create.
func WithLoop(loop *eventloop.Loop) Option {
	return func(b *Bridge) {
		b.loop = loop
		b.ownsLoop = false
		b.loopSet = true
	}
}

// WithGlobal defines a host function on the guest global object.
func WithGlobal(name string, fn value.Func) Option {
	return func(b *Bridge) {
		b.globals = append(b.globals, global{name: name, fn: fn})
	}
}

type global struct {
	fn   value.Func
	name string
}
