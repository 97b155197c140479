package errors

import "strings"

// GuestError is a failure that originated inside the guest engine: a
// compile error, an uncaught exception or an interrupted script. It is
// distinct from Error, which describes failures of the bridge itself.
type GuestError struct {
	Cause   error
	Phase   Phase
	Name    string
	Message string
	Stack   string
}

func (e *GuestError) Error() string {
	var b strings.Builder
	b.WriteString(e.Name)
	if e.Name == "" {
		b.WriteString("Error")
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	return b.String()
}

// Unwrap returns the engine exception
func (e *GuestError) Unwrap() error {
	return e.Cause
}

// Is matches any *GuestError, or an *Error with KindGuestException and
// the same phase.
func (e *GuestError) Is(target error) bool {
	switch t := target.(type) {
	case *GuestError:
		return t.Phase == "" || t.Phase == e.Phase
	case *Error:
		return t.Kind == KindGuestException && t.Phase == e.Phase
	}
	return false
}
