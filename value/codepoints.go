package value

import (
	"fmt"
	"unicode/utf16"
	"unicode/utf8"

	"github.com/wippyai/jsbridge/errors"
)

// ToCodepoints reinterprets a host string as a fixed-width code point
// sequence. Guest strings are UTF-16; when they carry surrogate halves that
// were encoded one by one (WTF-8), the halves are joined into the code point
// they stand for. A lone surrogate is kept as its code unit.
func ToCodepoints(v any) ([]rune, error) {
	s, ok := v.(string)
	if !ok {
		return nil, errors.New(errors.PhaseRuntime, errors.KindTypeMismatch).
			GoType(fmt.Sprintf("%T", v)).
			JSType("string").
			Detail("toCodepoints expects a string as its first argument").
			Build()
	}

	out := make([]rune, 0, len(s))
	for i := 0; i < len(s); {
		if hi, ok := surrogateAt(s, i); ok {
			if utf16.IsSurrogate(hi) && hi < 0xDC00 {
				if lo, ok := surrogateAt(s, i+3); ok && lo >= 0xDC00 {
					out = append(out, utf16.DecodeRune(hi, lo))
					i += 6
					continue
				}
			}
			out = append(out, hi)
			i += 3
			continue
		}
		r, size := utf8.DecodeRuneInString(s[i:])
		out = append(out, r)
		i += size
	}
	return out, nil
}

// surrogateAt decodes a three-byte WTF-8 surrogate at s[i:].
func surrogateAt(s string, i int) (rune, bool) {
	if i+2 >= len(s) || s[i] != 0xED {
		return 0, false
	}
	b1, b2 := s[i+1], s[i+2]
	if b1 < 0xA0 || b1 > 0xBF || b2&0xC0 != 0x80 {
		return 0, false
	}
	return 0xD000 | rune(b1&0x3F)<<6 | rune(b2&0x3F), true
}
