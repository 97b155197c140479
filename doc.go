// Package jsbridge bridges Go values and a goja JavaScript runtime.
//
// Values cross in both directions. Host scalars, containers, times, big
// integers, functions and iterators become guest values; guest values come
// back as Go values, with functions and iterables wrapped as host proxies
// that keep their guest object rooted until the proxy is released or
// collected.
//
//	jsbridge/
//	├── bridge/      Type factory, eval entry point, iterable proxies, timers
//	├── value/       Host-side wrappers and value formatting
//	├── liveness/    Weak tracking of host proxies over guest roots
//	├── resource/    Handle tables used for roots and pending timers
//	├── eventloop/   Single-threaded task loop driving guest callbacks
//	├── errors/      Structured errors with phase and kind
//	├── config/      Environment configuration
//	└── cmd/jsbridge CLI and interactive shell
//
// # Quick Start
//
// Evaluate a script and wait for its timers:
//
//	res, err := jsbridge.Run(ctx, "setTimeout(() => {}, 10); 1 + 2")
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(res) // 3
//
// For long-lived use, create a bridge.Bridge and drive its loop directly.
//
// # Thread Safety
//
// A Bridge and its runtime belong to the goroutine driving its loop. Other
// goroutines hand work over with Loop().Submit.
package jsbridge
