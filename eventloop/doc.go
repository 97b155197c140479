// Package eventloop is the host event loop the timer bridge schedules onto.
//
// A Loop wraps a goja_nodejs event loop and adds what the bridge needs on
// top of it: a pending count, a way to ask whether anyone is driving the
// loop, context cancellation and panic recovery per task. Exactly one
// goroutine drives it at a time through Run (until idle) or Serve (until
// closed); every task runs on that goroutine, so guest engine calls made
// from tasks never race. Submit and AfterFunc are safe from any goroutine.
//
//	loop := eventloop.New()
//	loop.Submit(func() { ... })
//	loop.AfterFunc(10*time.Millisecond, func() { ... })
//	err := loop.Run(ctx)
package eventloop
