package value

import (
	"fmt"
	"math/big"
	"reflect"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/iancoleman/orderedmap"
)

// Format renders a host value for debugging, recursing into containers.
// Strings are quoted only when nested.
func Format(v any) string {
	var b strings.Builder
	format(&b, v, 0)
	return b.String()
}

func format(b *strings.Builder, v any, depth int) {
	switch x := v.(type) {
	case nil:
		b.WriteString("undefined")
	case Null, *Null:
		b.WriteString("null")
	case string:
		if depth > 0 {
			b.WriteString(strconv.Quote(x))
		} else {
			b.WriteString(x)
		}
	case time.Time:
		b.WriteString(x.UTC().Format(time.RFC3339Nano))
	case *big.Int:
		b.WriteString(x.String())
		b.WriteByte('n')
	case *orderedmap.OrderedMap:
		formatDict(b, x.Keys(), func(k string) any { v, _ := x.Get(k); return v }, depth)
	case orderedmap.OrderedMap:
		formatDict(b, x.Keys(), func(k string) any { v, _ := x.Get(k); return v }, depth)
	case map[string]any:
		keys := make([]string, 0, len(x))
		for k := range x {
			keys = append(keys, k)
		}
		sort.Strings(keys)
		formatDict(b, keys, func(k string) any { return x[k] }, depth)
	case []any:
		b.WriteByte('[')
		for i, item := range x {
			if i > 0 {
				b.WriteString(", ")
			}
			format(b, item, depth+1)
		}
		b.WriteByte(']')
	case Func, func(...any) (any, error):
		b.WriteString("[Function (host)]")
	case fmt.Stringer:
		b.WriteString(x.String())
	case Iterator:
		b.WriteString("[Iterator]")
	default:
		rv := reflect.ValueOf(v)
		if (rv.Kind() == reflect.Slice || rv.Kind() == reflect.Array) && rv.Type().Elem().Kind() != reflect.Uint8 {
			items := make([]any, rv.Len())
			for i := range items {
				items[i] = rv.Index(i).Interface()
			}
			format(b, items, depth)
			return
		}
		fmt.Fprintf(b, "%v", v)
	}
}

func formatDict(b *strings.Builder, keys []string, get func(string) any, depth int) {
	b.WriteByte('{')
	for i, k := range keys {
		if i > 0 {
			b.WriteString(", ")
		}
		b.WriteString(k)
		b.WriteString(": ")
		format(b, get(k), depth+1)
	}
	b.WriteByte('}')
}
