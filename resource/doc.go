// Package resource provides handle tables for values that cross the bridge.
//
// A handle is a small integer standing for a value held on the host side.
// The bridge uses two classes of handles:
//
//	ClassRoot  - a guest value pinned for a host wrapper (see package liveness)
//	ClassAsync - a scheduled timer callback (setTimeout ids)
//
// # Handle Table
//
// The UnifiedTable maps handles to Go values:
//
//	table := resource.NewTable()
//
//	// Insert a value, get a handle
//	handle := table.Insert(resource.ClassRoot, guestValue)
//
//	// Retrieve value by handle
//	value, ok := table.Get(handle)
//
//	// Remove and get value
//	value, ok := table.Remove(handle)
//
// Handles of removed values are recycled unless the table is created with
// Monotonic(), in which case every handle is handed out once. Timer ids use
// a monotonic table so a stale id can never cancel a newer timer.
//
// # Observers
//
// Register observers to track lifecycle events:
//
//	table.Subscribe(observer)
//
//	func (o *observer) OnResourceEvent(event resource.Event) {
//	    switch event.Type {
//	    case resource.EventCreated:
//	        log.Printf("%s %d created", event.Class, event.Handle)
//	    case resource.EventDropped:
//	        log.Printf("%s %d dropped", event.Class, event.Handle)
//	    }
//	}
//
// # Memory Management
//
// Values are not released automatically: a handle pins its value until
// Remove is called. Values implementing Dropper are notified on removal and
// when the table is closed.
package resource
