package liveness

import (
	"runtime"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/wippyai/jsbridge/resource"
	"github.com/wippyai/jsbridge/value"
)

func newRoots(t *testing.T, n int) (*resource.UnifiedTable, []resource.Handle) {
	t.Helper()
	roots := resource.NewTable()
	handles := make([]resource.Handle, n)
	for i := range handles {
		handles[i] = roots.Insert(resource.ClassRoot, i)
		if handles[i] == 0 {
			t.Fatalf("Insert %d returned zero handle", i)
		}
	}
	return roots, handles
}

func mustWrap(t *testing.T, v any) *value.Wrapper {
	t.Helper()
	w, err := value.Wrap(v)
	if err != nil {
		t.Fatalf("Wrap: %v", err)
	}
	return w
}

func TestTracker_RegisterIdempotent(t *testing.T) {
	roots, hs := newRoots(t, 2)
	tr := New(roots)
	w := mustWrap(t, "a")

	tr.Register(w, hs[0])
	tr.Register(w, hs[0])
	tr.Register(w, hs[1])
	tr.Register(nil, hs[1])
	tr.Register(w, 0)

	if tr.Len() != 1 {
		t.Errorf("Len = %d, want 1", tr.Len())
	}
	if diff := cmp.Diff(hs, tr.Handles(w)); diff != "" {
		t.Errorf("handles mismatch (-want +got):\n%s", diff)
	}
}

func TestTracker_ReachableUntouched(t *testing.T) {
	roots, hs := newRoots(t, 1)
	tr := New(roots)
	w := mustWrap(t, 1)
	tr.Register(w, hs[0])

	stats := tr.OnGCBegin()
	if stats.Swept != 0 || stats.Released != 0 {
		t.Errorf("stats = %+v, want nothing swept", stats)
	}
	if _, ok := roots.Get(hs[0]); !ok {
		t.Error("root of a reachable wrapper was released")
	}
	runtime.KeepAlive(w)
}

func TestTracker_ReleasedWrapper(t *testing.T) {
	roots, hs := newRoots(t, 2)
	tr := New(roots)
	w := mustWrap(t, 1)
	tr.Register(w, hs[0])
	tr.Register(w, hs[1])

	w.Release()
	stats := tr.OnGCBegin()

	want := Stats{Tracked: 1, Swept: 1, Released: 2}
	if diff := cmp.Diff(want, stats); diff != "" {
		t.Errorf("stats mismatch (-want +got):\n%s", diff)
	}
	if roots.Len() != 0 {
		t.Errorf("roots.Len = %d, want 0", roots.Len())
	}
	if tr.Len() != 0 {
		t.Errorf("tracker.Len = %d, want 0", tr.Len())
	}
}

func TestTracker_SharedHandle(t *testing.T) {
	roots, hs := newRoots(t, 1)
	tr := New(roots)
	a := mustWrap(t, "a")
	b := mustWrap(t, "b")
	tr.Register(a, hs[0])
	tr.Register(b, hs[0])

	a.Release()
	stats := tr.OnGCBegin()
	if stats.Retained != 1 || stats.Released != 0 {
		t.Errorf("first pass stats = %+v, want one retained", stats)
	}
	if _, ok := roots.Get(hs[0]); !ok {
		t.Fatal("shared root released while another wrapper holds it")
	}

	b.Release()
	stats = tr.OnGCBegin()
	if stats.Released != 1 {
		t.Errorf("second pass stats = %+v, want one released", stats)
	}
	if _, ok := roots.Get(hs[0]); ok {
		t.Error("shared root still pinned after both wrappers became unreachable")
	}
}

func TestTracker_CollectedWrapper(t *testing.T) {
	roots, hs := newRoots(t, 1)
	tr := New(roots)
	registerTemporary(t, tr, hs[0])

	for i := 0; i < 5 && tr.Len() > 0; i++ {
		runtime.GC()
		tr.OnGCBegin()
	}
	if tr.Len() != 0 {
		t.Fatalf("tracker.Len = %d after collection, want 0", tr.Len())
	}
	if _, ok := roots.Get(hs[0]); ok {
		t.Error("root of a collected wrapper is still pinned")
	}
}

//go:noinline
func registerTemporary(t *testing.T, tr *Tracker, h resource.Handle) {
	tr.Register(mustWrap(t, []any{"temporary"}), h)
}

func TestTracker_Close(t *testing.T) {
	roots, hs := newRoots(t, 2)
	tr := New(roots)
	w := mustWrap(t, 1)
	tr.Register(w, hs[0])
	tr.Register(w, hs[1])

	if err := tr.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if roots.Len() != 0 || tr.Len() != 0 {
		t.Errorf("after Close roots=%d tracker=%d, want 0/0", roots.Len(), tr.Len())
	}
	runtime.KeepAlive(w)
}

func TestTracker_UnreachableHook(t *testing.T) {
	roots, hs := newRoots(t, 1)
	reclaimed := make(chan struct{}, 1)
	tr := New(roots, WithUnreachable(func() {
		select {
		case reclaimed <- struct{}{}:
		default:
		}
	}))
	registerTemporary(t, tr, hs[0])

	deadline := time.After(5 * time.Second)
	for {
		runtime.GC()
		select {
		case <-reclaimed:
			if stats := tr.OnGCBegin(); stats.Released != 1 {
				t.Errorf("stats = %+v, want one released", stats)
			}
			return
		case <-deadline:
			t.Fatal("hook not called after the wrapper was reclaimed")
		case <-time.After(5 * time.Millisecond):
		}
	}
}

func TestTracker_UnreachableHookSkipsLiveWrapper(t *testing.T) {
	roots, hs := newRoots(t, 2)
	var calls atomic.Int32
	tr := New(roots, WithUnreachable(func() { calls.Add(1) }))
	w := mustWrap(t, "kept")
	tr.Register(w, hs[0])
	tr.Register(w, hs[1])

	runtime.GC()
	runtime.GC()
	if n := calls.Load(); n != 0 {
		t.Errorf("hook called %d times for a reachable wrapper", n)
	}
	runtime.KeepAlive(w)
}
