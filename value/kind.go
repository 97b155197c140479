package value

import (
	"fmt"
	"iter"
	"math/big"
	"reflect"
	"time"

	"github.com/iancoleman/orderedmap"

	"github.com/wippyai/jsbridge/errors"
)

// Kind is the runtime tag of a host value. The set is closed: every
// conversion direction and the proxy protocol switch over all of it.
type Kind uint8

const (
	KindNone Kind = iota // nil, guest undefined
	KindNull
	KindInt
	KindFloat
	KindString
	KindBool
	KindDate
	KindBigInt
	KindDict
	KindList
	KindFunction
	KindIterable
)

var kindNames = [...]string{
	KindNone:     "none",
	KindNull:     "null",
	KindInt:      "int",
	KindFloat:    "float",
	KindString:   "string",
	KindBool:     "bool",
	KindDate:     "date",
	KindBigInt:   "bigint",
	KindDict:     "dict",
	KindList:     "list",
	KindFunction: "function",
	KindIterable: "iterable",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Null is the host representation of the guest null value.
type Null struct{}

func (Null) String() string { return "null" }

// KindOf inspects the dynamic type of a host value.
// Values with no guest representation yield a conversion error.
func KindOf(v any) (Kind, error) {
	switch x := v.(type) {
	case nil:
		return KindNone, nil
	case Null, *Null:
		return KindNull, nil
	case bool:
		return KindBool, nil
	case int, int8, int16, int32, int64, uint, uint8, uint16, uint32, uint64, uintptr:
		return KindInt, nil
	case float32, float64:
		return KindFloat, nil
	case string:
		return KindString, nil
	case time.Time:
		return KindDate, nil
	case *big.Int:
		if x == nil {
			return KindNone, errors.NilPointer(errors.PhaseEncode, nil, "*big.Int")
		}
		return KindBigInt, nil
	case *orderedmap.OrderedMap, orderedmap.OrderedMap, map[string]any:
		return KindDict, nil
	case []any:
		return KindList, nil
	case Func, func(...any) (any, error), *Function:
		return KindFunction, nil
	case Iterator, iter.Seq[any]:
		return KindIterable, nil
	case *Wrapper:
		if x == nil {
			return KindNone, nil
		}
		return x.kind, nil
	}

	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Slice, reflect.Array:
		if rv.Type().Elem().Kind() == reflect.Uint8 {
			break
		}
		return KindList, nil
	case reflect.Map:
		if rv.Type().Key().Kind() == reflect.String {
			return KindDict, nil
		}
	case reflect.Pointer:
		if rv.IsNil() {
			return KindNone, nil
		}
	}

	return KindNone, errors.New(errors.PhaseEncode, errors.KindUnsupported).
		GoType(fmt.Sprintf("%T", v)).
		Detail("no guest representation").
		Build()
}
