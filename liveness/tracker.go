package liveness

import (
	"runtime"
	"sync"
	"weak"

	"go.uber.org/zap"

	"github.com/wippyai/jsbridge/resource"
	"github.com/wippyai/jsbridge/value"
)

// Stats summarizes one collection pass.
type Stats struct {
	Tracked  int // entries before the pass
	Swept    int // entries removed
	Released int // handles unrooted
	Retained int // handles kept because another entry still holds them
}

// Option configures a Tracker.
type Option func(*Tracker)

// WithLogger sets the tracker's logger.
func WithLogger(l *zap.Logger) Option {
	return func(t *Tracker) {
		t.log = l
	}
}

// WithUnreachable sets fn to be called after the Go collector reclaims a
// registered wrapper. It runs on the runtime's cleanup goroutine, so it
// should only schedule a sweep, not perform one.
func WithUnreachable(fn func()) Option {
	return func(t *Tracker) {
		t.unreachable = fn
	}
}

// Tracker maps each live wrapper to the guest roots it caused to be pinned.
//
// Wrappers are referenced weakly: the tracker never keeps a host value
// alive. A wrapper is unreachable once the Go collector has reclaimed it or
// once Release was called on it.
type Tracker struct {
	roots       *resource.UnifiedTable
	entries     map[weak.Pointer[value.Wrapper]]*entry
	log         *zap.Logger
	unreachable func()
	mu          sync.Mutex
}

type entry struct {
	ref     weak.Pointer[value.Wrapper]
	handles []resource.Handle
}

// New creates a tracker releasing roots from the given table.
func New(roots *resource.UnifiedTable, opts ...Option) *Tracker {
	t := &Tracker{
		roots:   roots,
		entries: make(map[weak.Pointer[value.Wrapper]]*entry),
		log:     Logger(),
	}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Register records that w needs the rooted guest value h. Registering the
// same pair twice is a no-op.
func (t *Tracker) Register(w *value.Wrapper, h resource.Handle) {
	if w == nil || h == 0 {
		return
	}
	ref := weak.Make(w)

	t.mu.Lock()
	defer t.mu.Unlock()

	e, ok := t.entries[ref]
	if !ok {
		t.entries[ref] = &entry{ref: ref, handles: []resource.Handle{h}}
		if t.unreachable != nil {
			runtime.AddCleanup(w, func(fn func()) { fn() }, t.unreachable)
		}
		return
	}
	for _, existing := range e.handles {
		if existing == h {
			return
		}
	}
	e.handles = append(e.handles, h)
}

// OnGCBegin runs before each guest collection. Entries whose wrapper is
// unreachable are removed; each of their handles is unrooted unless another
// entry still holds it. Reachable entries are left untouched.
//
// It only removes table entries and logs: it must not call into the guest
// or into host code.
func (t *Tracker) OnGCBegin() Stats {
	t.mu.Lock()
	defer t.mu.Unlock()

	stats := Stats{Tracked: len(t.entries)}
	for ref, e := range t.entries {
		if w := ref.Value(); w != nil && !w.Released() {
			continue
		}
		for _, h := range e.handles {
			if t.heldElsewhere(ref, h) {
				stats.Retained++
				continue
			}
			if _, ok := t.roots.Remove(h); ok {
				stats.Released++
			}
		}
		delete(t.entries, ref)
		stats.Swept++
	}

	if stats.Swept > 0 {
		t.log.Debug("liveness sweep",
			zap.Int("tracked", stats.Tracked),
			zap.Int("swept", stats.Swept),
			zap.Int("released", stats.Released),
			zap.Int("retained", stats.Retained),
		)
	}
	return stats
}

func (t *Tracker) heldElsewhere(self weak.Pointer[value.Wrapper], h resource.Handle) bool {
	for ref, other := range t.entries {
		if ref == self {
			continue
		}
		for _, oh := range other.handles {
			if oh == h {
				return true
			}
		}
	}
	return false
}

// Len returns the number of tracked wrappers.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.entries)
}

// Handles returns the handles registered for w.
func (t *Tracker) Handles(w *value.Wrapper) []resource.Handle {
	t.mu.Lock()
	defer t.mu.Unlock()
	e, ok := t.entries[weak.Make(w)]
	if !ok {
		return nil
	}
	return append([]resource.Handle(nil), e.handles...)
}

// Close unroots every tracked handle and forgets all entries.
func (t *Tracker) Close() error {
	t.mu.Lock()
	defer t.mu.Unlock()
	for ref, e := range t.entries {
		for _, h := range e.handles {
			t.roots.Remove(h)
		}
		delete(t.entries, ref)
	}
	return nil
}
