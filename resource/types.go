package resource

// Handle is an opaque reference to a value in a table.
// Handle 0 is reserved and always invalid.
type Handle uint32

// Class tags what a handle refers to.
type Class uint32

const (
	// ClassRoot marks a guest value pinned on behalf of a host wrapper.
	ClassRoot Class = iota + 1
	// ClassAsync marks a scheduled, cancelable timer callback.
	ClassAsync
)

func (c Class) String() string {
	switch c {
	case ClassRoot:
		return "root"
	case ClassAsync:
		return "async"
	default:
		return "unknown"
	}
}

// Event types for lifecycle notifications.
type EventType uint8

const (
	EventCreated EventType = iota
	EventDropped
)

// Event represents a lifecycle event.
type Event struct {
	Value  any
	Handle Handle
	Class  Class
	Type   EventType
}

// Observer receives notifications about lifecycle events.
type Observer interface {
	OnResourceEvent(Event)
}

// Dropper is optionally implemented by values that need cleanup when
// their handle is removed.
type Dropper interface {
	Drop()
}
