package resource

import (
	"errors"
	"math"
)

var (
	ErrClosed    = errors.New("resource table closed")
	ErrExhausted = errors.New("resource handles exhausted")
)

type slot struct {
	value any
	class Class
}

// store holds the slots of a table. Stores are not synchronized; the
// owning table serializes access.
type store interface {
	put(slot) (Handle, error)
	get(Handle) (slot, bool)
	take(Handle) (slot, bool)
	len() int
	drain() []slot
}

// recyclingStore keeps slots in a dense slice and hands freed handles out
// again, most recently freed first.
type recyclingStore struct {
	slots []slot
	used  []bool
	free  []Handle
	live  int
}

func newRecyclingStore() *recyclingStore {
	return &recyclingStore{
		slots: make([]slot, 0, 64),
		used:  make([]bool, 0, 64),
	}
}

func (s *recyclingStore) put(v slot) (Handle, error) {
	if n := len(s.free); n > 0 {
		h := s.free[n-1]
		s.free = s.free[:n-1]
		s.slots[h-1] = v
		s.used[h-1] = true
		s.live++
		return h, nil
	}
	if len(s.slots) >= math.MaxUint32 {
		return 0, ErrExhausted
	}
	s.slots = append(s.slots, v)
	s.used = append(s.used, true)
	s.live++
	return Handle(len(s.slots)), nil
}

func (s *recyclingStore) index(h Handle) (int, bool) {
	i := int(h) - 1
	if h == 0 || i >= len(s.slots) || !s.used[i] {
		return 0, false
	}
	return i, true
}

func (s *recyclingStore) get(h Handle) (slot, bool) {
	i, ok := s.index(h)
	if !ok {
		return slot{}, false
	}
	return s.slots[i], true
}

func (s *recyclingStore) take(h Handle) (slot, bool) {
	i, ok := s.index(h)
	if !ok {
		return slot{}, false
	}
	v := s.slots[i]
	s.slots[i] = slot{}
	s.used[i] = false
	s.free = append(s.free, h)
	s.live--
	return v, true
}

func (s *recyclingStore) len() int { return s.live }

func (s *recyclingStore) drain() []slot {
	out := make([]slot, 0, s.live)
	for i, v := range s.slots {
		if s.used[i] {
			out = append(out, v)
		}
	}
	s.slots, s.used, s.free, s.live = nil, nil, nil, 0
	return out
}

// sequenceStore hands out strictly increasing handles and never reuses
// one. Only live slots are kept, so memory follows the live count rather
// than the number of handles ever issued.
type sequenceStore struct {
	slots map[Handle]slot
	next  Handle
}

func newSequenceStore() *sequenceStore {
	return &sequenceStore{slots: make(map[Handle]slot)}
}

func (s *sequenceStore) put(v slot) (Handle, error) {
	if s.next == math.MaxUint32 {
		return 0, ErrExhausted
	}
	s.next++
	s.slots[s.next] = v
	return s.next, nil
}

func (s *sequenceStore) get(h Handle) (slot, bool) {
	v, ok := s.slots[h]
	return v, ok
}

func (s *sequenceStore) take(h Handle) (slot, bool) {
	v, ok := s.slots[h]
	if ok {
		delete(s.slots, h)
	}
	return v, ok
}

func (s *sequenceStore) len() int { return len(s.slots) }

func (s *sequenceStore) drain() []slot {
	out := make([]slot, 0, len(s.slots))
	for _, v := range s.slots {
		out = append(out, v)
	}
	clear(s.slots)
	return out
}
