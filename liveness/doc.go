// Package liveness keeps guest values alive exactly as long as the host
// wrappers that need them.
//
// Every host proxy backed by a guest value (a guest function, a guest
// iterator) pins that value in a root table and registers the root handle
// against its value.Wrapper. Before each guest collection the bridge calls
// OnGCBegin, which drops the roots of wrappers that are no longer reachable
// from Go. Reachability is observed through weak pointers; an explicit
// Wrapper.Release counts as unreachable too, which is how callers break
// cycles through the guest heap.
//
// OnGCBegin is not driven by a timer. A tracker built WithUnreachable gets
// a callback from the Go runtime each time a registered wrapper is
// reclaimed, and the bridge answers it with a sweep.
//
// A handle registered by several wrappers is only unrooted once none of
// them is reachable.
package liveness
