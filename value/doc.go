// Package value defines the host side of the bridge: the closed set of value
// kinds, the Wrapper that owns one host value, and the lazily backed host
// proxies for guest functions and iterators.
//
// Host values map to kinds as follows:
//
//	nil                               KindNone     (guest undefined)
//	value.Null                        KindNull
//	bool                              KindBool
//	int*, uint*                       KindInt      (BigInt past 2^53-1)
//	float32, float64                  KindFloat
//	string                            KindString
//	time.Time                         KindDate
//	*big.Int                          KindBigInt
//	*orderedmap.OrderedMap, map[string]T  KindDict  (eager copy)
//	[]T                               KindList     (eager copy)
//	value.Func, *value.Function       KindFunction (lazy)
//	value.Iterator, iter.Seq[any]     KindIterable (lazy proxy)
//
// Anything else is a conversion error, never a silent coercion.
package value
