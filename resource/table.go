package resource

import (
	"slices"
	"sync"
)

// Option configures a UnifiedTable.
type Option func(*UnifiedTable)

// Monotonic makes the table hand out strictly increasing handles that are
// never reused, even after the value is removed.
func Monotonic() Option {
	return func(t *UnifiedTable) {
		t.store = newSequenceStore()
	}
}

// UnifiedTable maps handles to values of any class. It is safe for
// concurrent use. Observers are notified after the table's lock is
// released, so they may call back into the table.
type UnifiedTable struct {
	store     store
	observers []Observer
	mu        sync.Mutex
	obsMu     sync.RWMutex
	closed    bool
}

// NewTable creates an empty table that recycles freed handles.
func NewTable(opts ...Option) *UnifiedTable {
	t := &UnifiedTable{store: newRecyclingStore()}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Insert adds a value and returns its handle, or 0 if the table is closed
// or out of handles.
func (t *UnifiedTable) Insert(class Class, value any) Handle {
	h, err := t.insert(class, value)
	if err != nil {
		return 0
	}
	t.notify(Event{Type: EventCreated, Handle: h, Class: class, Value: value})
	return h
}

func (t *UnifiedTable) insert(class Class, value any) (Handle, error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.closed {
		return 0, ErrClosed
	}
	return t.store.put(slot{value: value, class: class})
}

// Get retrieves a value by handle.
func (t *UnifiedTable) Get(handle Handle) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.store.get(handle)
	return s.value, ok
}

// GetTyped retrieves a value only if it has the expected class.
func (t *UnifiedTable) GetTyped(handle Handle, class Class) (any, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	s, ok := t.store.get(handle)
	if !ok || s.class != class {
		return nil, false
	}
	return s.value, true
}

// Remove drops a value and returns (value, true) if found. A Dropper value
// is told before observers are.
func (t *UnifiedTable) Remove(handle Handle) (any, bool) {
	t.mu.Lock()
	s, ok := t.store.take(handle)
	t.mu.Unlock()
	if !ok {
		return nil, false
	}

	if d, ok := s.value.(Dropper); ok {
		d.Drop()
	}
	t.notify(Event{Type: EventDropped, Handle: handle, Class: s.class, Value: s.value})
	return s.value, true
}

// Subscribe adds an observer for lifecycle events.
func (t *UnifiedTable) Subscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	t.observers = append(t.observers, o)
}

// Unsubscribe removes an observer.
func (t *UnifiedTable) Unsubscribe(o Observer) {
	t.obsMu.Lock()
	defer t.obsMu.Unlock()
	if i := slices.Index(t.observers, o); i >= 0 {
		t.observers = slices.Delete(t.observers, i, i+1)
	}
}

// Len returns the number of live handles.
func (t *UnifiedTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.store.len()
}

// Close drops every value, calling Drop on those that implement Dropper,
// and makes later inserts fail. Observers are not notified.
func (t *UnifiedTable) Close() error {
	t.mu.Lock()
	if t.closed {
		t.mu.Unlock()
		return nil
	}
	t.closed = true
	slots := t.store.drain()
	t.mu.Unlock()

	for _, s := range slots {
		if d, ok := s.value.(Dropper); ok {
			d.Drop()
		}
	}
	return nil
}

func (t *UnifiedTable) notify(e Event) {
	t.obsMu.RLock()
	defer t.obsMu.RUnlock()
	for _, o := range t.observers {
		o.OnResourceEvent(e)
	}
}
