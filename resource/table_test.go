package resource

import (
	"sync"
	"testing"

	"github.com/google/go-cmp/cmp"
)

type recordingObserver struct {
	events []Event
}

func (o *recordingObserver) OnResourceEvent(e Event) {
	o.events = append(o.events, e)
}

func TestUnifiedTable_Lookup(t *testing.T) {
	table := NewTable()
	root := table.Insert(ClassRoot, "guest")
	timer := table.Insert(ClassAsync, 7)
	if root == 0 || timer == 0 || root == timer {
		t.Fatalf("handles = %d, %d; want two distinct non-zero handles", root, timer)
	}

	tests := []struct {
		name   string
		handle Handle
		class  Class
		want   any
		ok     bool
	}{
		{name: "root", handle: root, class: ClassRoot, want: "guest", ok: true},
		{name: "async", handle: timer, class: ClassAsync, want: 7, ok: true},
		{name: "wrong class", handle: root, class: ClassAsync},
		{name: "zero handle", handle: 0, class: ClassRoot},
		{name: "unknown handle", handle: 999, class: ClassRoot},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, ok := table.GetTyped(tt.handle, tt.class)
			if ok != tt.ok || got != tt.want {
				t.Errorf("GetTyped(%d, %s) = %v, %v; want %v, %v", tt.handle, tt.class, got, ok, tt.want, tt.ok)
			}
		})
	}

	if got, ok := table.Remove(root); !ok || got != "guest" {
		t.Fatalf("Remove = %v, %v", got, ok)
	}
	if _, ok := table.Get(root); ok {
		t.Error("Get succeeded after Remove")
	}
	if _, ok := table.Remove(root); ok {
		t.Error("second Remove succeeded")
	}
	if table.Len() != 1 {
		t.Errorf("Len = %d, want 1", table.Len())
	}
}

func TestUnifiedTable_Events(t *testing.T) {
	table := NewTable()
	obs := &recordingObserver{}
	table.Subscribe(obs)

	h := table.Insert(ClassAsync, "cb")
	table.Remove(h)
	table.Remove(h)
	table.Unsubscribe(obs)
	table.Insert(ClassAsync, "unseen")

	want := []Event{
		{Type: EventCreated, Handle: h, Class: ClassAsync, Value: "cb"},
		{Type: EventDropped, Handle: h, Class: ClassAsync, Value: "cb"},
	}
	if diff := cmp.Diff(want, obs.events); diff != "" {
		t.Errorf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestUnifiedTable_RecyclesHandles(t *testing.T) {
	table := NewTable()
	h1 := table.Insert(ClassRoot, "a")
	table.Remove(h1)
	if h2 := table.Insert(ClassRoot, "b"); h2 != h1 {
		t.Fatalf("handle %d not reused, got %d", h1, h2)
	}
}

func TestUnifiedTable_Close(t *testing.T) {
	table := NewTable()
	obs := &recordingObserver{}
	table.Subscribe(obs)

	d := &dropCounter{}
	table.Insert(ClassRoot, d)
	table.Insert(ClassRoot, "b")

	if err := table.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}
	if d.count != 1 {
		t.Fatalf("Expected Drop() on close, called %d times", d.count)
	}
	if table.Len() != 0 {
		t.Fatalf("Expected Len() == 0 after Close, got %d", table.Len())
	}
	if len(obs.events) != 2 {
		t.Fatalf("Close notified observers: %d events", len(obs.events))
	}

	if h := table.Insert(ClassRoot, "c"); h != 0 {
		t.Fatal("Expected Insert to fail after Close")
	}
	if err := table.Close(); err != nil {
		t.Fatalf("second Close failed: %v", err)
	}
	if d.count != 1 {
		t.Fatalf("second Close dropped again: %d", d.count)
	}
}

func TestUnifiedTable_MonotonicChurn(t *testing.T) {
	table := NewTable(Monotonic())

	var last Handle
	for range 100_000 {
		h := table.Insert(ClassAsync, struct{}{})
		if h <= last {
			t.Fatalf("handle %d not greater than %d", h, last)
		}
		last = h
		table.Remove(h)
	}
	if table.Len() != 0 {
		t.Fatalf("Len = %d, want 0", table.Len())
	}
	if n := table.store.len(); n != 0 {
		t.Fatalf("store retains %d slots after churn", n)
	}
}

func TestUnifiedTable_Concurrent(t *testing.T) {
	for name, opts := range map[string][]Option{
		"recycling": nil,
		"monotonic": {Monotonic()},
	} {
		t.Run(name, func(t *testing.T) {
			table := NewTable(opts...)
			var wg sync.WaitGroup
			for i := range 100 {
				wg.Add(1)
				go func() {
					defer wg.Done()
					h := table.Insert(ClassRoot, i)
					if v, ok := table.Get(h); !ok || v != i {
						t.Errorf("Get(%d) = %v, %v; want %d", h, v, ok, i)
					}
					table.Remove(h)
				}()
			}
			wg.Wait()
			if table.Len() != 0 {
				t.Fatalf("Expected Len() == 0, got %d", table.Len())
			}
		})
	}
}

func TestUnifiedTable_ObserverReenters(t *testing.T) {
	table := NewTable()
	table.Subscribe(observerFunc(func(e Event) {
		if e.Type == EventDropped {
			table.Len()
		}
	}))
	h := table.Insert(ClassRoot, "a")
	if _, ok := table.Remove(h); !ok {
		t.Fatal("Remove failed")
	}
}

type observerFunc func(Event)

func (f observerFunc) OnResourceEvent(e Event) { f(e) }

type dropCounter struct {
	count int
}

func (d *dropCounter) Drop() {
	d.count++
}

func TestUnifiedTable_DropperInterface(t *testing.T) {
	table := NewTable()
	d := &dropCounter{}

	h := table.Insert(ClassRoot, d)
	table.Remove(h)

	if d.count != 1 {
		t.Fatalf("Expected Drop() to be called once, called %d times", d.count)
	}
}

func TestClass_String(t *testing.T) {
	tests := map[Class]string{
		ClassRoot:  "root",
		ClassAsync: "async",
		Class(99):  "unknown",
	}
	for c, want := range tests {
		if got := c.String(); got != want {
			t.Errorf("Class(%d).String() = %q, want %q", c, got, want)
		}
	}
}
