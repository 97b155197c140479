// Package bridge connects Go to an embedded ECMAScript engine.
//
// A Bridge owns one guest realm and converts values in both directions:
//
//	b, err := bridge.New(bridge.WithLogger(log))
//	if err != nil {
//		return err
//	}
//	defer b.Close()
//
//	v, err := b.Eval(ctx, "({a: 1, b: [2, 3]})")
//	// v is *orderedmap.OrderedMap{"a": 1, "b": []any{2, 3}}
//
// Scalars, dates, arrays and plain objects are copied. Functions and
// iterators are not: guest functions come back as *value.Function and guest
// iterables as *value.GuestIterator, each pinning the guest value in a root
// table until the liveness tracker sees the host wrapper is gone. That
// happens on its own once the Go collector reclaims the wrapper; Collect
// forces it. Host iterators (value.Iterator, iter.Seq[any]) reach the guest
// as proxies that implement the iteration protocol through the global
// IterableIterator class.
//
// Guest numbers have no integer/float distinction, so ToHost reports every
// integral number in the safe range as int64: float64(3) round-trips as
// int64(3), while -0 keeps its sign as float64. Arrays longer than
// Config.MaxArrayLength are refused rather than allocated.
//
// setTimeout and clearTimeout schedule guest callbacks on an
// eventloop.Loop. Timers can only be created while the loop is being
// driven, so scripts that use them are normally submitted to the loop:
//
//	loop := b.Loop()
//	_ = loop.Submit(func() { _, err = b.Eval(ctx, src) })
//	_ = loop.Run(ctx)
//
// A Bridge is single-threaded; guest code only runs on the goroutine
// driving its loop.
package bridge
